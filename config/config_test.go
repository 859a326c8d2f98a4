package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gorustyt/solonav/bake"
	"github.com/gorustyt/solonav/detour"
	"github.com/gorustyt/solonav/navsys"
)

const sample = `
# tool config
navmesh: level1.bin
bake: {
  cellSize: 0.25
  agentRadius: 0.5
}
query: {
  extents: [1, 2, 1]
  excludeFlags: 0
  areaCosts: { "63": 2.5 }
}
server: {
  addr: 127.0.0.1:9000
}
log: {
  level: debug
}
`

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "level1.bin", cfg.NavMesh)
	assert.Equal(t, float32(0.25), cfg.Bake.CellSize)
	assert.Equal(t, float32(0.5), cfg.Bake.AgentRadius)
	assert.Equal(t, bake.DefaultBakeConfig().CellHeight, cfg.Bake.CellHeight)
	assert.Equal(t, [3]float32{1, 2, 1}, cfg.Query.Extents)
	assert.Equal(t, uint16(0), cfg.Query.ExcludeFlags)
	assert.Equal(t, navsys.NewDefaultFilter().GetIncludeFlags(), cfg.Query.IncludeFlags)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestParseStripsBOM(t *testing.T) {
	cfg, err := Parse(append([]byte{0xEF, 0xBB, 0xBF}, []byte("navmesh: a.bin")...))
	require.NoError(t, err)
	assert.Equal(t, "a.bin", cfg.NavMesh)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"syntax", "bake: {"},
		{"bake", "bake: { cellSize: 0 }"},
		{"extents", "query: { extents: [1, 0, 1] }"},
		{"area id", `query: { areaCosts: { "x": 1 } }`},
		{"area range", `query: { areaCosts: { "64": 1 } }`},
		{"negative cost", `query: { areaCosts: { "1": -1 } }`},
		{"addr", `server: { addr: "" }`},
		{"log level", "log: {\n level: loud\n}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "navmesh.hjson")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "level1.bin", cfg.NavMesh)

	_, err = Load(filepath.Join(t.TempDir(), "missing.hjson"))
	assert.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Query.AreaCosts = map[string]float32{"5": 3}
	data, err := cfg.Marshal()
	require.NoError(t, err)
	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestApply(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)
	ns := navsys.New(nil)
	require.NoError(t, cfg.Query.Apply(ns))

	assert.Equal(t, mgl32.Vec3{1, 2, 1}, ns.DefaultSearchExtents())
	f := ns.Filter()
	assert.Equal(t, uint16(0), f.GetExcludeFlags())
	assert.Equal(t, float32(2.5), f.GetAreaCost(int(63)))
	assert.Equal(t, float32(1), f.GetAreaCost(0))
	assert.Equal(t, uint16(detour.DT_POLYFLAGS_WALK|detour.DT_POLYFLAGS_DOOR), f.GetIncludeFlags())
}
