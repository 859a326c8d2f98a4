package bake

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gorustyt/solonav/common/message"
	"github.com/gorustyt/solonav/detour"
	"github.com/gorustyt/solonav/geometry"
	"github.com/gorustyt/solonav/recast"
)

func quad(x0, z0, x1, z1, y float32) *geometry.TriangleSoup {
	return &geometry.TriangleSoup{
		Verts: []float32{
			x0, y, z0,
			x0, y, z1,
			x1, y, z1,
			x1, y, z0,
		},
		Tris: []int32{0, 1, 2, 0, 2, 3},
	}
}

func newTestBaker(t *testing.T) *Baker {
	return NewBaker(DefaultBakeConfig(), zaptest.NewLogger(t))
}

func TestBakeConfigRcConfig(t *testing.T) {
	cfg := DefaultBakeConfig()
	require.NoError(t, cfg.Validate())
	rc := cfg.RcConfig([3]float32{0, 0, 0}, [3]float32{10, 1, 3.1})
	assert.Equal(t, 10, rc.WalkableHeight)
	assert.Equal(t, 4, rc.WalkableClimb)
	assert.Equal(t, 2, rc.WalkableRadius)
	assert.Equal(t, 40, rc.MaxEdgeLen)
	assert.InDelta(t, 1.8, rc.DetailSampleDist, 1e-5)
	assert.InDelta(t, 0.2, rc.DetailSampleMaxError, 1e-5)
	assert.Equal(t, 34, rc.Width)
	assert.Equal(t, 11, rc.Height)

	cfg.DetailSampleDist = 0.05
	rc = cfg.RcConfig([3]float32{}, [3]float32{1, 1, 1})
	assert.Zero(t, rc.DetailSampleDist)
}

func TestBakeConfigValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(c *BakeConfig)
		field string
	}{
		{"cell size", func(c *BakeConfig) { c.CellSize = 0 }, "cellSize"},
		{"cell height", func(c *BakeConfig) { c.CellHeight = -1 }, "cellHeight"},
		{"radius", func(c *BakeConfig) { c.AgentRadius = -0.1 }, "agentRadius"},
		{"slope", func(c *BakeConfig) { c.AgentMaxSlope = 90 }, "agentMaxSlope"},
		{"nvp low", func(c *BakeConfig) { c.VertsPerPoly = 2 }, "vertsPerPoly"},
		{"nvp high", func(c *BakeConfig) { c.VertsPerPoly = 7 }, "vertsPerPoly"},
		{"areas", func(c *BakeConfig) { c.RegionMinArea = -1 }, "regionMinArea"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultBakeConfig()
			tt.edit(&cfg)
			err := cfg.Validate()
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestBakeFlatQuad(t *testing.T) {
	b := newTestBaker(t)
	res, err := b.Build(quad(0, 0, 10, 10, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Report.Regions)
	assert.Equal(t, 1, res.Report.Polys)
	assert.Equal(t, 4, res.Report.PolyVerts)
	assert.Equal(t, 1, res.Report.WalkablePolys)
	assert.Equal(t, uint16(detour.DT_POLYFLAGS_WALK), res.PolyMesh.Flags[0])
	require.NotNil(t, res.Detail)

	params := res.CreateParams(b.Config())
	data, stripped, err := PackNavMesh(params, nil)
	require.NoError(t, err)
	assert.False(t, stripped)

	nav, err := detour.NewDtNavMesh(data)
	require.NoError(t, err)
	h := nav.GetHeader()
	assert.EqualValues(t, res.PolyMesh.NPolys, h.PolyCount)
	assert.EqualValues(t, res.PolyMesh.NVerts, h.VertCount)
	assert.Equal(t, res.PolyMesh.Bmin, h.Bmin)
	assert.Equal(t, res.PolyMesh.Bmax, h.Bmax)
	assert.True(t, h.BuildBvTree)
	for i := 0; i < nav.VertCount(); i++ {
		v := nav.GetVert(i)
		assert.InDelta(t, 0.2, v[1], 1e-4)
	}
}

func TestBakeTwoFloors(t *testing.T) {
	soup := quad(0, 0, 4, 10, 0)
	soup.Append(quad(6, 0, 10, 10, 0))
	res, err := newTestBaker(t).Build(soup)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Report.Regions)
	assert.Equal(t, 2, res.Report.Polys)
	assert.Equal(t, 2, res.Report.WalkablePolys)
}

func TestBakeExcludesWall(t *testing.T) {
	soup := quad(0, 0, 10, 10, 0)
	soup.Append(&geometry.TriangleSoup{
		Verts: []float32{
			9, 0, 0,
			9, 0, 10,
			9, 3, 10,
			9, 3, 0,
		},
		Tris: []int32{0, 1, 2, 0, 2, 3},
	})
	res, err := newTestBaker(t).Build(soup)
	require.NoError(t, err)
	pm := res.PolyMesh
	require.GreaterOrEqual(t, res.Report.WalkablePolys, 1)
	for i := 0; i < pm.NVerts; i++ {
		v := pm.Verts[i*3:]
		x := pm.Bmin[0] + float32(v[0])*pm.Cs
		y := pm.Bmin[1] + float32(v[1])*pm.Ch
		assert.LessOrEqual(t, x, float32(9.0))
		assert.Less(t, y, float32(1.0))
	}
}

func TestBakeIsDeterministic(t *testing.T) {
	soup := quad(0, 0, 10, 10, 0)
	soup.Append(quad(12, 0, 20, 6, 0.5))
	a, _, err := newTestBaker(t).Bake(soup)
	require.NoError(t, err)
	b, _, err := newTestBaker(t).Bake(soup)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBakeEmptyGeometry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.navmesh")
	_, err := newTestBaker(t).BakeToFile(&geometry.TriangleSoup{}, path)
	require.Error(t, err)
	assert.Equal(t, StageGeometry, FailedStage(err))
	assert.ErrorIs(t, err, geometry.ErrEmptyGeometry)
	assert.NoFileExists(t, path)
}

func TestBakeBadConfig(t *testing.T) {
	cfg := DefaultBakeConfig()
	cfg.CellSize = 0
	_, err := NewBaker(cfg, nil).Build(quad(0, 0, 10, 10, 0))
	assert.Equal(t, StageConfig, FailedStage(err))
}

func TestBakeSteepGeometryHasNoWalkableSurface(t *testing.T) {
	// Two walls, nothing to stand on.
	soup := &geometry.TriangleSoup{
		Verts: []float32{
			0, 0, 0,
			0, 0, 10,
			0, 5, 10,
			0, 5, 0,
		},
		Tris: []int32{0, 1, 2, 0, 2, 3},
	}
	soup.Append(&geometry.TriangleSoup{
		Verts: []float32{
			0, 0, 0,
			0, 5, 0,
			10, 5, 0,
			10, 0, 0,
		},
		Tris: []int32{0, 1, 2, 0, 2, 3},
	})
	path := filepath.Join(t.TempDir(), "steep.navmesh")
	_, err := newTestBaker(t).BakeToFile(soup, path)
	require.Error(t, err)
	assert.Equal(t, StageCompact, FailedStage(err))
	assert.ErrorIs(t, err, recast.ErrNoWalkableSpans)
	assert.NoFileExists(t, path)
}

func TestBakeRejectsHugeWorld(t *testing.T) {
	// 30km at the default 0.3 cell size is a 100000 cell wide grid.
	_, err := newTestBaker(t).Build(quad(0, 0, 30000, 30000, 0))
	require.Error(t, err)
	assert.Equal(t, StageRasterize, FailedStage(err))
	assert.ErrorIs(t, err, recast.ErrGridTooLarge)
}

func TestBakeFailsWhenDetailFails(t *testing.T) {
	buildPolyMeshDetail = func(*recast.RcContext, *recast.RcPolyMesh, *recast.RcCompactHeightfield, float32, float32) (*recast.RcPolyMeshDetail, error) {
		return nil, fmt.Errorf("%w: polygon 0 has 300 verts 10 tris", recast.ErrDetailMeshTooLarge)
	}
	t.Cleanup(func() { buildPolyMeshDetail = recast.RcBuildPolyMeshDetail })

	path := filepath.Join(t.TempDir(), "detail.navmesh")
	_, err := newTestBaker(t).BakeToFile(quad(0, 0, 10, 10, 0), path)
	require.Error(t, err)
	assert.Equal(t, StageDetail, FailedStage(err))
	assert.ErrorIs(t, err, recast.ErrDetailMeshTooLarge)
	assert.NoFileExists(t, path)
}

func TestWriteNavMeshRejectsUnflaggedMesh(t *testing.T) {
	b := newTestBaker(t)
	res, err := b.Build(quad(0, 0, 10, 10, 0))
	require.NoError(t, err)
	params := res.CreateParams(b.Config())
	params.PolyFlags = make([]uint16, params.PolyCount)

	path := filepath.Join(t.TempDir(), "out.navmesh")
	_, err = WriteNavMesh(params, path, nil)
	var ve *detour.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Reason, "flag")
	assert.NoFileExists(t, path)
}

func TestWriteNavMeshRetriesWithoutDetail(t *testing.T) {
	b := newTestBaker(t)
	res, err := b.Build(quad(0, 0, 10, 10, 0))
	require.NoError(t, err)
	params := res.CreateParams(b.Config())
	params.DetailMeshes = params.DetailMeshes[:2]

	path := filepath.Join(t.TempDir(), "out.navmesh")
	stripped, err := WriteNavMesh(params, path, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, stripped)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	nav, err := detour.NewDtNavMesh(data)
	require.NoError(t, err)
	assert.Equal(t, 1, nav.PolyCount())
	assert.EqualValues(t, 2, nav.GetHeader().DetailTriCount)
}

func TestBakeToFileOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "level.navmesh")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	report, err := newTestBaker(t).BakeToFile(quad(0, 0, 10, 10, 0), path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, report.Bytes, len(data))
	_, err = detour.NewDtNavMesh(data)
	assert.NoError(t, err)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReportEncode(t *testing.T) {
	_, report, err := newTestBaker(t).Bake(quad(0, 0, 10, 10, 0))
	require.NoError(t, err)
	data, err := report.Encode()
	require.NoError(t, err)
	fields, err := message.DecodeMap(data)
	require.NoError(t, err)
	assert.Equal(t, float64(1), fields["polys"])
	assert.Equal(t, false, fields["detailStripped"])
	assert.Contains(t, fields["stagesMs"], "build regions")
}
