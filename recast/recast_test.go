package recast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Default agent: cs 0.3, ch 0.2, height 2, radius 0.6, climb 0.9, slope 45.
func testConfig(bmin, bmax [3]float32) RcConfig {
	cfg := RcConfig{
		Cs:                     0.3,
		Ch:                     0.2,
		Bmin:                   bmin,
		Bmax:                   bmax,
		WalkableSlopeAngle:     45,
		WalkableHeight:         10,
		WalkableClimb:          4,
		WalkableRadius:         2,
		MaxEdgeLen:             40,
		MaxSimplificationError: 1.3,
		MinRegionArea:          8,
		MergeRegionArea:        20,
		MaxVertsPerPoly:        6,
		DetailSampleDist:       1.8,
		DetailSampleMaxError:   0.2,
	}
	cfg.Width, cfg.Height = RcCalcGridSize(bmin, bmax, cfg.Cs)
	return cfg
}

type testBuild struct {
	cfg   RcConfig
	hf    *RcHeightfield
	chf   *RcCompactHeightfield
	cset  *RcContourSet
	pmesh *RcPolyMesh
	dmesh *RcPolyMeshDetail
}

func runPipeline(t *testing.T, verts []float32, tris []int32) *testBuild {
	t.Helper()
	ctx := NewRcContext(func(category RcLogCategory, msg string) {
		t.Logf("%v: %s", category, msg)
	})
	bmin, bmax := RcCalcBounds(verts)
	b := &testBuild{cfg: testConfig(bmin, bmax)}
	cfg := &b.cfg

	var err error
	b.hf, err = RcCreateHeightfield(ctx, cfg.Width, cfg.Height, cfg.Bmin, cfg.Bmax, cfg.Cs, cfg.Ch)
	require.NoError(t, err)
	areas := make([]uint8, len(tris)/3)
	RcMarkWalkableTriangles(ctx, cfg.WalkableSlopeAngle, verts, tris, areas)
	require.NoError(t, RcRasterizeTriangles(ctx, verts, tris, areas, b.hf, cfg.WalkableClimb))

	RcFilterLowHangingWalkableObstacles(ctx, cfg.WalkableClimb, b.hf)
	RcFilterLedgeSpans(ctx, cfg.WalkableHeight, cfg.WalkableClimb, b.hf)
	RcFilterWalkableLowHeightSpans(ctx, cfg.WalkableHeight, b.hf)

	b.chf, err = RcBuildCompactHeightfield(ctx, cfg.WalkableHeight, cfg.WalkableClimb, b.hf)
	require.NoError(t, err)
	RcErodeWalkableArea(ctx, cfg.WalkableRadius, b.chf)
	RcBuildDistanceField(ctx, b.chf)
	require.NoError(t, RcBuildRegions(ctx, b.chf, cfg.MinRegionArea, cfg.MergeRegionArea))

	b.cset, err = RcBuildContours(ctx, b.chf, cfg.MaxSimplificationError, cfg.MaxEdgeLen, RC_CONTOUR_TESS_WALL_EDGES)
	require.NoError(t, err)
	b.pmesh, err = RcBuildPolyMesh(ctx, b.cset, cfg.MaxVertsPerPoly)
	require.NoError(t, err)
	b.dmesh, err = RcBuildPolyMeshDetail(ctx, b.pmesh, b.chf, cfg.DetailSampleDist, cfg.DetailSampleMaxError)
	require.NoError(t, err)
	return b
}

func quad(x0, z0, x1, z1, y float32) ([]float32, []int32) {
	verts := []float32{
		x0, y, z0,
		x0, y, z1,
		x1, y, z1,
		x1, y, z0,
	}
	return verts, []int32{0, 1, 2, 0, 2, 3}
}

func TestRcCalcGridSize(t *testing.T) {
	w, h := RcCalcGridSize([3]float32{0, 0, 0}, [3]float32{10, 1, 3.1}, 0.3)
	assert.Equal(t, 34, w)
	assert.Equal(t, 11, h)
}

func TestRcCalcBounds(t *testing.T) {
	bmin, bmax := RcCalcBounds([]float32{1, 2, 3, -1, 5, 0, 4, -2, 1})
	assert.Equal(t, [3]float32{-1, -2, 0}, bmin)
	assert.Equal(t, [3]float32{4, 5, 3}, bmax)
}

func TestRcMarkWalkableTriangles(t *testing.T) {
	verts := []float32{
		0, 0, 0,
		0, 0, 1,
		1, 0, 0,
		0, 1, 0,
	}
	tris := []int32{
		0, 1, 2, // flat, facing up
		0, 3, 1, // vertical wall
	}
	areas := make([]uint8, 2)
	RcMarkWalkableTriangles(nil, 45, verts, tris, areas)
	assert.Equal(t, []uint8{RC_WALKABLE_AREA, RC_NULL_AREA}, areas)

	areas = []uint8{RC_WALKABLE_AREA, RC_WALKABLE_AREA}
	RcClearUnwalkableTriangles(nil, 45, verts, tris, areas)
	assert.Equal(t, []uint8{RC_WALKABLE_AREA, RC_NULL_AREA}, areas)
}

func TestHeightfieldAddSpanMerges(t *testing.T) {
	hf, err := RcCreateHeightfield(nil, 2, 2, [3]float32{}, [3]float32{1, 1, 1}, 0.5, 0.1)
	require.NoError(t, err)

	require.NoError(t, hf.AddSpan(0, 0, 0, 2, RC_NULL_AREA, 1))
	require.NoError(t, hf.AddSpan(0, 0, 5, 8, RC_WALKABLE_AREA, 1))
	require.NoError(t, hf.AddSpan(0, 0, 1, 3, RC_WALKABLE_AREA, 1))

	s := hf.Spans[0]
	require.NotNil(t, s)
	assert.Equal(t, uint16(0), s.Min)
	assert.Equal(t, uint16(3), s.Max)
	assert.Equal(t, RC_WALKABLE_AREA, s.Area)
	require.NotNil(t, s.Next)
	assert.Equal(t, uint16(5), s.Next.Min)
	assert.Equal(t, uint16(8), s.Next.Max)
	assert.Nil(t, s.Next.Next)
	assert.Equal(t, 2, hf.SpanCount())

	assert.Error(t, hf.AddSpan(2, 0, 0, 1, RC_WALKABLE_AREA, 1))
	assert.Error(t, hf.AddSpan(0, 0, 4, 4, RC_WALKABLE_AREA, 1))
}

func TestRcCreateHeightfieldRejectsEmptyGrid(t *testing.T) {
	_, err := RcCreateHeightfield(nil, 0, 4, [3]float32{}, [3]float32{1, 1, 1}, 0.3, 0.2)
	assert.ErrorIs(t, err, ErrEmptyGrid)
}

func TestRcCreateHeightfieldRejectsHugeGrid(t *testing.T) {
	for _, dims := range [][2]int{{RC_MAX_GRID_SIZE + 1, 1}, {1, RC_MAX_GRID_SIZE + 1}, {100000, 100000}, {8193, 8193}} {
		_, err := RcCreateHeightfield(nil, dims[0], dims[1], [3]float32{}, [3]float32{1, 1, 1}, 0.3, 0.2)
		assert.ErrorIs(t, err, ErrGridTooLarge, "%v", dims)
	}
	// A long thin grid is fine as long as both limits hold.
	hf, err := RcCreateHeightfield(nil, RC_MAX_GRID_SIZE, 2, [3]float32{}, [3]float32{1, 1, 1}, 0.3, 0.2)
	require.NoError(t, err)
	assert.Len(t, hf.Spans, RC_MAX_GRID_SIZE*2)
}

func TestRcRasterizeTrianglesValidatesIndices(t *testing.T) {
	hf, err := RcCreateHeightfield(nil, 4, 4, [3]float32{}, [3]float32{1, 1, 1}, 0.25, 0.1)
	require.NoError(t, err)
	verts, _ := quad(0, 0, 1, 1, 0)
	err = RcRasterizeTriangles(nil, verts, []int32{0, 1, 7}, []uint8{RC_WALKABLE_AREA}, hf, 1)
	assert.Error(t, err)
}

func TestRcFilterWalkableLowHeightSpans(t *testing.T) {
	hf, err := RcCreateHeightfield(nil, 1, 1, [3]float32{}, [3]float32{1, 1, 1}, 1, 0.1)
	require.NoError(t, err)
	require.NoError(t, hf.AddSpan(0, 0, 0, 1, RC_WALKABLE_AREA, 0))
	require.NoError(t, hf.AddSpan(0, 0, 3, 5, RC_WALKABLE_AREA, 0))

	RcFilterWalkableLowHeightSpans(nil, 4, hf)
	s := hf.Spans[0]
	assert.Equal(t, RC_NULL_AREA, s.Area)
	// Nothing above the top span.
	assert.Equal(t, RC_WALKABLE_AREA, s.Next.Area)
}

func TestRcFilterLowHangingWalkableObstacles(t *testing.T) {
	hf, err := RcCreateHeightfield(nil, 1, 1, [3]float32{}, [3]float32{1, 1, 1}, 1, 0.1)
	require.NoError(t, err)
	require.NoError(t, hf.AddSpan(0, 0, 0, 2, RC_WALKABLE_AREA, 0))
	require.NoError(t, hf.AddSpan(0, 0, 3, 4, RC_NULL_AREA, 0))
	require.NoError(t, hf.AddSpan(0, 0, 5, 6, RC_NULL_AREA, 0))

	RcFilterLowHangingWalkableObstacles(nil, 2, hf)
	s := hf.Spans[0]
	assert.Equal(t, RC_WALKABLE_AREA, s.Next.Area)
	// Consecutive obstacles are not promoted.
	assert.Equal(t, RC_NULL_AREA, s.Next.Next.Area)
}

// stepField is a 5x5 field, flat at height 1 for x < 3 and at height step
// from x = 3 on.
func stepField(t *testing.T, step uint16) *RcHeightfield {
	hf, err := RcCreateHeightfield(nil, 5, 5, [3]float32{}, [3]float32{5, 5, 5}, 1, 0.1)
	require.NoError(t, err)
	for z := 0; z < 5; z++ {
		for x := 0; x < 5; x++ {
			top := uint16(1)
			if x >= 3 {
				top = step
			}
			require.NoError(t, hf.AddSpan(x, z, 0, top, RC_WALKABLE_AREA, 0))
		}
	}
	return hf
}

func TestRcFilterLedgeSpans(t *testing.T) {
	const walkableHeight, walkableClimb = 4, 2
	area := func(hf *RcHeightfield, x, z int) uint8 { return hf.Spans[x+z*hf.Width].Area }

	tests := []struct {
		name      string
		step      uint16
		upperEdge uint8
	}{
		{"step taller than climb", 10, RC_NULL_AREA},
		{"climbable step", 3, RC_WALKABLE_AREA},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hf := stepField(t, tt.step)
			RcFilterLedgeSpans(nil, walkableHeight, walkableClimb, hf)

			for z := 1; z < 4; z++ {
				// The lower floor next to the step keeps its area.
				assert.Equal(t, RC_WALKABLE_AREA, area(hf, 1, z), "z %d", z)
				assert.Equal(t, RC_WALKABLE_AREA, area(hf, 2, z), "z %d", z)
				// The top of the step is a ledge only when the drop is too high.
				assert.Equal(t, tt.upperEdge, area(hf, 3, z), "z %d", z)
			}
			// Columns on the grid border drop off the field.
			for i := 0; i < 5; i++ {
				assert.Equal(t, RC_NULL_AREA, area(hf, 0, i))
				assert.Equal(t, RC_NULL_AREA, area(hf, i, 0))
				assert.Equal(t, RC_NULL_AREA, area(hf, 4, i))
			}
		})
	}
}

func TestRcBuildCompactHeightfieldEmpty(t *testing.T) {
	hf, err := RcCreateHeightfield(nil, 2, 2, [3]float32{}, [3]float32{1, 1, 1}, 0.5, 0.1)
	require.NoError(t, err)
	_, err = RcBuildCompactHeightfield(nil, 10, 4, hf)
	assert.ErrorIs(t, err, ErrNoWalkableSpans)
}

func TestCompactConnections(t *testing.T) {
	hf, err := RcCreateHeightfield(nil, 2, 1, [3]float32{}, [3]float32{2, 2, 1}, 1, 0.1)
	require.NoError(t, err)
	require.NoError(t, hf.AddSpan(0, 0, 0, 1, RC_WALKABLE_AREA, 0))
	require.NoError(t, hf.AddSpan(1, 0, 0, 2, RC_WALKABLE_AREA, 0))

	chf, err := RcBuildCompactHeightfield(nil, 10, 4, hf)
	require.NoError(t, err)
	require.Equal(t, 2, chf.SpanCount)

	s0 := &chf.Spans[chf.Cells[0].Index]
	assert.Equal(t, 0, RcGetCon(s0, 2))
	assert.Equal(t, RC_NOT_CONNECTED, RcGetCon(s0, 0))
	assert.Equal(t, RC_NOT_CONNECTED, RcGetCon(s0, 1))
	s1 := &chf.Spans[chf.Cells[1].Index]
	assert.Equal(t, 0, RcGetCon(s1, 0))

	// A step higher than the climb is not connected.
	chf, err = RcBuildCompactHeightfield(nil, 10, 0, hf)
	require.NoError(t, err)
	assert.Equal(t, RC_NOT_CONNECTED, RcGetCon(&chf.Spans[0], 2))
}

func TestRcSetCon(t *testing.T) {
	var s RcCompactSpan
	for dir := 0; dir < 4; dir++ {
		RcSetCon(&s, dir, RC_NOT_CONNECTED)
	}
	RcSetCon(&s, 1, 5)
	assert.Equal(t, 5, RcGetCon(&s, 1))
	assert.Equal(t, RC_NOT_CONNECTED, RcGetCon(&s, 0))
	assert.Equal(t, RC_NOT_CONNECTED, RcGetCon(&s, 2))
	RcSetCon(&s, 1, 0)
	assert.Equal(t, 0, RcGetCon(&s, 1))
}

func TestRcBuildRegionsRequiresDistanceField(t *testing.T) {
	verts, tris := quad(0, 0, 4, 4, 0)
	bmin, bmax := RcCalcBounds(verts)
	cfg := testConfig(bmin, bmax)
	hf, err := RcCreateHeightfield(nil, cfg.Width, cfg.Height, cfg.Bmin, cfg.Bmax, cfg.Cs, cfg.Ch)
	require.NoError(t, err)
	require.NoError(t, RcRasterizeTriangles(nil, verts, tris, []uint8{RC_WALKABLE_AREA, RC_WALKABLE_AREA}, hf, 1))
	chf, err := RcBuildCompactHeightfield(nil, cfg.WalkableHeight, cfg.WalkableClimb, hf)
	require.NoError(t, err)
	assert.Error(t, RcBuildRegions(nil, chf, 8, 20))
}

func TestErosionShrinksFlatPlane(t *testing.T) {
	verts, tris := quad(0, 0, 10, 10, 0)
	b := runPipeline(t, verts, tris)

	walkable := 0
	for i := 0; i < b.chf.SpanCount; i++ {
		if b.chf.Areas[i] != RC_NULL_AREA {
			walkable++
		}
	}
	// 34x34 grid, ledge filter drops the outer ring, erosion two more rings.
	assert.Equal(t, 28*28, walkable)
}

func TestFlatPlanePipeline(t *testing.T) {
	verts, tris := quad(0, 0, 10, 10, 0)
	b := runPipeline(t, verts, tris)

	assert.Equal(t, uint16(1), b.chf.MaxRegions)
	require.Len(t, b.cset.Conts, 1)
	assert.Equal(t, 4, b.cset.Conts[0].NVerts())

	require.Equal(t, 1, b.pmesh.NPolys)
	assert.Equal(t, 4, b.pmesh.NVerts)
	assert.Equal(t, 4, b.pmesh.PolyVertCount(0))
	assert.Equal(t, RC_WALKABLE_AREA, b.pmesh.Areas[0])
	for i := 0; i < b.pmesh.NVerts; i++ {
		v := b.pmesh.Verts[i*3:]
		x := b.pmesh.Bmin[0] + float32(v[0])*b.pmesh.Cs
		z := b.pmesh.Bmin[2] + float32(v[2])*b.pmesh.Cs
		y := b.pmesh.Bmin[1] + float32(v[1])*b.pmesh.Ch
		assert.True(t, x > 0.8 && x < 9.4, "x %v", x)
		assert.True(t, z > 0.8 && z < 9.4, "z %v", z)
		assert.InDelta(t, 0.2, y, 1e-4)
	}
	// No neighbours on a single polygon.
	p := b.pmesh.Poly(0)
	for j := 0; j < b.pmesh.Nvp; j++ {
		assert.Equal(t, RC_MESH_NULL_IDX, p[b.pmesh.Nvp+j])
	}

	require.Equal(t, 1, b.dmesh.NMeshes)
	assert.GreaterOrEqual(t, b.dmesh.NTris, 2)
	assert.Equal(t, uint32(b.dmesh.NVerts), b.dmesh.Meshes[1])
	for i := 0; i < b.dmesh.NVerts; i++ {
		assert.InDelta(t, 0.4, b.dmesh.Verts[i*3+1], 1e-3)
	}
}

func TestTwoSeparateFloors(t *testing.T) {
	v1, t1 := quad(0, 0, 4, 10, 0)
	v2, t2 := quad(6, 0, 10, 10, 0)
	verts := append(v1, v2...)
	tris := append(t1, t2[0]+4, t2[1]+4, t2[2]+4, t2[3]+4, t2[4]+4, t2[5]+4)
	b := runPipeline(t, verts, tris)

	assert.Equal(t, uint16(2), b.chf.MaxRegions)
	require.Equal(t, 2, b.pmesh.NPolys)
	assert.ElementsMatch(t, []uint16{1, 2}, b.pmesh.Regs)
	// Islands never share an edge.
	for i := 0; i < b.pmesh.NPolys; i++ {
		p := b.pmesh.Poly(i)
		for j := 0; j < b.pmesh.Nvp; j++ {
			assert.Equal(t, RC_MESH_NULL_IDX, p[b.pmesh.Nvp+j])
		}
	}
}

func TestPipelineIsDeterministic(t *testing.T) {
	verts, tris := quad(0, 0, 10, 10, 0)
	// A wall along x = 9.
	verts = append(verts,
		9, 0, 0,
		9, 0, 10,
		9, 3, 10,
		9, 3, 0,
	)
	tris = append(tris, 4, 5, 6, 4, 6, 7)

	a := runPipeline(t, verts, tris)
	b := runPipeline(t, verts, tris)
	assert.Equal(t, a.pmesh.Verts, b.pmesh.Verts)
	assert.Equal(t, a.pmesh.Polys, b.pmesh.Polys)
	assert.Equal(t, a.dmesh.Verts, b.dmesh.Verts)
	assert.Equal(t, a.dmesh.Tris, b.dmesh.Tris)

	for i := 0; i < a.pmesh.NVerts; i++ {
		v := a.pmesh.Verts[i*3:]
		x := a.pmesh.Bmin[0] + float32(v[0])*a.pmesh.Cs
		y := a.pmesh.Bmin[1] + float32(v[1])*a.pmesh.Ch
		assert.LessOrEqual(t, x, float32(9.0))
		assert.Less(t, y, float32(1.0))
	}
}

func TestTriangulateSquare(t *testing.T) {
	// Counter-clockwise on xz as produced by the contour tracer.
	verts := []int{
		0, 0, 0, 0,
		0, 0, 4, 0,
		4, 0, 4, 0,
		4, 0, 0, 0,
	}
	indices := []int{0, 1, 2, 3}
	tris, n := triangulate(4, verts, indices, nil)
	assert.Equal(t, 2, n)
	assert.Len(t, tris, 6)
}

func TestContextTimers(t *testing.T) {
	var logged []string
	ctx := NewRcContext(func(category RcLogCategory, msg string) {
		logged = append(logged, category.String()+" "+msg)
	})
	ctx.StartTimer(RC_TIMER_TOTAL)
	ctx.Warning("step %d", 1)
	ctx.StopTimer(RC_TIMER_TOTAL)
	assert.Equal(t, []string{"warning step 1"}, logged)
	assert.GreaterOrEqual(t, int64(ctx.AccumulatedTime(RC_TIMER_TOTAL)), int64(0))
	ctx.ResetTimers()
	assert.Zero(t, ctx.AccumulatedTime(RC_TIMER_TOTAL))

	// A nil context discards everything.
	var nilCtx *RcContext
	nilCtx.Progress("ignored")
	nilCtx.StartTimer(RC_TIMER_TOTAL)
	assert.Zero(t, nilCtx.AccumulatedTime(RC_TIMER_TOTAL))
}
