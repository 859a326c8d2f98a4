package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gorustyt/solonav/common/message"
)

const quadObj = `v 0 0 0
v 0 0 10
v 10 0 10
v 10 0 0
f 1 2 3
f 1 3 4
`

func run(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	c := rootCmd()
	c.SetOut(&out)
	c.SetErr(&out)
	c.SetArgs(append(args, "--log-level", "error"))
	err := c.Execute()
	return out.String(), err
}

func bakeFixture(t *testing.T) (dir, bin string) {
	dir = t.TempDir()
	obj := filepath.Join(dir, "level.obj")
	require.NoError(t, os.WriteFile(obj, []byte(quadObj), 0o644))
	bin = filepath.Join(dir, "level.bin")
	_, err := run(t, "bake", obj, "-o", bin,
		"--report", filepath.Join(dir, "report.pb"),
		"--save-soup", filepath.Join(dir, "level.soup"))
	require.NoError(t, err)
	return dir, bin
}

func TestBakeCommand(t *testing.T) {
	dir, bin := bakeFixture(t)
	assert.FileExists(t, bin)

	data, err := os.ReadFile(filepath.Join(dir, "report.pb"))
	require.NoError(t, err)
	report, err := message.DecodeMap(data)
	require.NoError(t, err)
	assert.EqualValues(t, 1, report["polys"])
	assert.EqualValues(t, 2, report["trianglesProduced"])

	// The cached soup bakes to the same bytes.
	bin2 := filepath.Join(dir, "again.bin")
	_, err = run(t, "bake", filepath.Join(dir, "level.soup"), "-o", bin2)
	require.NoError(t, err)
	a, _ := os.ReadFile(bin)
	b, _ := os.ReadFile(bin2)
	assert.Equal(t, a, b)

	_, err = run(t, "bake", filepath.Join(dir, "level.fbx"))
	assert.ErrorContains(t, err, "unsupported geometry")
}

func TestQueryCommands(t *testing.T) {
	_, bin := bakeFixture(t)

	out, err := run(t, "path", "-m", bin, "1", "0", "1", "8", "0", "8")
	require.NoError(t, err)
	var p pathOutput
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.True(t, p.Found)
	assert.Len(t, p.Points, 2)

	out, err = run(t, "nearest", "-m", bin, "5", "0", "5")
	require.NoError(t, err)
	var n nearestOutput
	require.NoError(t, json.Unmarshal([]byte(out), &n))
	assert.True(t, n.Found)
	assert.Equal(t, uint32(1), n.Ref)

	out, err = run(t, "raycast", "-m", bin, "5", "0", "5", "20", "0", "5")
	require.NoError(t, err)
	var r raycastOutput
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.True(t, r.Hit)

	_, err = run(t, "nearest", "-m", bin, "5", "zero", "5")
	assert.Error(t, err)
	_, err = run(t, "nearest", "-m", filepath.Join(t.TempDir(), "missing.bin"), "5", "0", "5")
	assert.Error(t, err)
}

func TestDumpCommand(t *testing.T) {
	dir, bin := bakeFixture(t)

	objOut := filepath.Join(dir, "navmesh.obj")
	_, err := run(t, "dump", bin, "-o", objOut)
	require.NoError(t, err)
	data, err := os.ReadFile(objOut)
	require.NoError(t, err)
	assert.Contains(t, string(data), "g poly1")

	out, err := run(t, "dump", bin, "--what", "draw", "--bvtree")
	require.NoError(t, err)
	assert.Contains(t, out, "l ")

	out, err = run(t, "dump", filepath.Join(dir, "level.obj"), "--what", "polymesh")
	require.NoError(t, err)
	assert.Contains(t, out, "o NavMesh")

	_, err = run(t, "dump", bin, "--what", "polymesh")
	assert.Error(t, err)
}

func TestConfigCommand(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "navmesh.hjson")
	require.NoError(t, os.WriteFile(cfgPath, []byte("navmesh: custom.bin\n"), 0o644))
	out, err := run(t, "config", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "custom.bin")
	assert.Contains(t, out, "cellSize")

	_, err = run(t, "config", "--config", filepath.Join(t.TempDir(), "missing.hjson"))
	assert.Error(t, err)
}
