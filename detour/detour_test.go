package detour

import (
	"errors"
	"math"
	"testing"

	"github.com/gorustyt/solonav/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const N = DT_NULL_IDX

// twoQuadParams describes two 5x5 quads side by side along x, sharing the
// edge at x=5. Grid units are 0.5.
func twoQuadParams(flagsB uint16, bvTree bool) *DtNavMeshCreateParams {
	return &DtNavMeshCreateParams{
		Verts: []uint16{
			0, 0, 0,
			0, 0, 10,
			10, 0, 10,
			10, 0, 0,
			20, 0, 10,
			20, 0, 0,
		},
		VertCount: 6,
		Polys: []uint16{
			0, 1, 2, 3, N, N, N, N, 1, N, N, N,
			3, 2, 4, 5, N, N, 0, N, N, N, N, N,
		},
		PolyFlags:      []uint16{DT_POLYFLAGS_WALK, flagsB},
		PolyAreas:      []uint8{63, 63},
		PolyCount:      2,
		Nvp:            6,
		WalkableHeight: 2,
		WalkableRadius: 0.6,
		WalkableClimb:  0.9,
		Bmin:           [3]float32{0, 0, 0},
		Bmax:           [3]float32{10, 1, 5},
		Cs:             0.5,
		Ch:             0.5,
		BuildBvTree:    bvTree,
	}
}

func newTestQuery(t *testing.T, p *DtNavMeshCreateParams) *DtNavMeshQuery {
	bin, err := DtCreateNavMeshData(p)
	require.NoError(t, err)
	nav, err := NewDtNavMesh(bin)
	require.NoError(t, err)
	q, status := NewDtNavMeshQuery(nav, 2048)
	require.True(t, status.Succeed())
	return q
}

func TestNavMeshDataRoundTrip(t *testing.T) {
	bin, err := DtCreateNavMeshData(twoQuadParams(DT_POLYFLAGS_WALK, true))
	require.NoError(t, err)
	assert.Equal(t, 0, len(bin)%4)

	var data NavMeshData
	require.NoError(t, data.FromBin(bin))
	assert.EqualValues(t, 2, data.Header.PolyCount)
	assert.EqualValues(t, 6, data.Header.VertCount)
	assert.EqualValues(t, 4, data.Header.DetailTriCount)
	assert.EqualValues(t, 3, data.Header.BvNodeCount)
	assert.Equal(t, [DT_VERTS_PER_POLYGON]uint16{0, 0, 2, 0, 0, 0}, data.Polys[0].Neis)
	assert.Equal(t, [DT_VERTS_PER_POLYGON]uint16{1, 0, 0, 0, 0, 0}, data.Polys[1].Neis)
	assert.EqualValues(t, 63, data.Polys[0].GetArea())
	assert.Equal(t, bin, data.ToBin())
}

func TestFromBinRejectsBadInput(t *testing.T) {
	bin, err := DtCreateNavMeshData(twoQuadParams(DT_POLYFLAGS_WALK, true))
	require.NoError(t, err)

	var data NavMeshData
	bad := append([]byte(nil), bin...)
	bad[0] ^= 0xff
	assert.ErrorIs(t, data.FromBin(bad), ErrWrongMagic)

	bad = append([]byte(nil), bin...)
	bad[4] = 9
	assert.ErrorIs(t, data.FromBin(bad), ErrWrongVersion)

	assert.ErrorIs(t, data.FromBin(bin[:len(bin)-4]), ErrCorruptData)
	assert.ErrorIs(t, data.FromBin(bin[:10]), ErrCorruptData)
	assert.ErrorIs(t, data.FromBin(nil), ErrCorruptData)

	// Vertex index of the first polygon points past the vertex table.
	bad = append([]byte(nil), bin...)
	off := dtHeaderSize + common.Align4(6*3*2)
	bad[off] = 0x40
	assert.ErrorIs(t, data.FromBin(bad), ErrCorruptData)
}

func TestCreateParamsValidation(t *testing.T) {
	var verr *ValidationError

	p := twoQuadParams(DT_POLYFLAGS_WALK, true)
	p.PolyCount = 0
	p.Polys = nil
	_, err := DtCreateNavMeshData(p)
	require.True(t, errors.As(err, &verr))

	p = twoQuadParams(0, true)
	p.PolyFlags[0] = 0
	_, err = DtCreateNavMeshData(p)
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Reason, "flag")

	p = twoQuadParams(DT_POLYFLAGS_WALK, true)
	p.Polys[1] = 40
	_, err = DtCreateNavMeshData(p)
	require.True(t, errors.As(err, &verr))

	// Fewer than 3 vertices per polygon cannot describe an area.
	for _, nvp := range []int{1, 2, DT_VERTS_PER_POLYGON + 1} {
		p = twoQuadParams(DT_POLYFLAGS_WALK, true)
		p.Nvp = nvp
		_, err = DtCreateNavMeshData(p)
		require.True(t, errors.As(err, &verr), "nvp %d", nvp)
		assert.Contains(t, verr.Reason, "verts per poly")
	}
}

func TestCreateReportsInconsistentDetailAsPackError(t *testing.T) {
	p := twoQuadParams(DT_POLYFLAGS_WALK, true)
	p.DetailMeshes = []uint32{0, 4, 0, 2}
	_, err := DtCreateNavMeshData(p)
	var perr *PackError
	require.True(t, errors.As(err, &perr))
	assert.ErrorIs(t, err, errDetailInconsistent)

	// Same mesh packs once the detail is dropped.
	p.DetailMeshes = nil
	_, err = DtCreateNavMeshData(p)
	assert.NoError(t, err)
}

func TestCreateWithDetailMesh(t *testing.T) {
	p := twoQuadParams(DT_POLYFLAGS_WALK, true)
	// One extra centre vertex per quad.
	p.DetailMeshes = []uint32{
		0, 5, 0, 4,
		5, 5, 4, 4,
	}
	p.DetailVerts = []float32{
		0, 0, 0, 0, 0, 5, 5, 0, 5, 5, 0, 0, 2.5, 0.5, 2.5,
		5, 0, 0, 5, 0, 5, 10, 0, 5, 10, 0, 0, 7.5, 0.5, 2.5,
	}
	p.DetailVertsCount = 10
	tris := []uint8{
		0, 1, 4, 1,
		1, 2, 4, 1,
		2, 3, 4, 1,
		3, 0, 4, 1,
	}
	p.DetailTris = append(append([]uint8(nil), tris...), tris...)
	p.DetailTriCount = 8

	data, err := DtCreateNavMesh(p)
	require.NoError(t, err)
	assert.EqualValues(t, 2, data.Header.DetailVertCount)
	assert.EqualValues(t, 1, data.DetailMeshes[1].VertBase)
	assert.EqualValues(t, 1, data.DetailMeshes[1].VertCount)

	nav := NewDtNavMeshFromData(data)
	q, _ := NewDtNavMeshQuery(nav, 64)
	h, status := q.GetPolyHeight(1, []float32{2.5, 3, 2.5})
	require.True(t, status.Succeed())
	assert.InDelta(t, 0.5, h, 1e-4)
}

func TestBVTreeMatchesLinearQuery(t *testing.T) {
	withTree := newTestQuery(t, twoQuadParams(DT_POLYFLAGS_WALK, true))
	linear := newTestQuery(t, twoQuadParams(DT_POLYFLAGS_WALK, false))
	filter := NewDtQueryFilter()

	for _, c := range [][3]float32{{1, 0, 1}, {4.9, 0, 2}, {7, 0, 4}, {9.5, 0.5, 0.5}} {
		ext := []float32{0.2, 1, 0.2}
		a, status := withTree.QueryPolygons(c[:], ext, filter, 8)
		require.True(t, status.Succeed())
		b, _ := linear.QueryPolygons(c[:], ext, filter, 8)
		assert.Subset(t, a, b, "center %v", c)
	}
}

func TestFindNearestPoly(t *testing.T) {
	q := newTestQuery(t, twoQuadParams(DT_POLYFLAGS_WALK, true))
	filter := NewDtQueryFilter()
	ext := []float32{2, 4, 2}

	ref, pt, status := q.FindNearestPoly([]float32{2.5, 1, 2.5}, ext, filter)
	require.True(t, status.Succeed())
	assert.Equal(t, DtPolyRef(1), ref)
	assert.InDeltaSlice(t, []float32{2.5, 0, 2.5}, pt, 1e-4)

	ref, _, status = q.FindNearestPoly([]float32{7.5, -0.5, 2.5}, ext, filter)
	require.True(t, status.Succeed())
	assert.Equal(t, DtPolyRef(2), ref)

	ref, pt, status = q.FindNearestPoly([]float32{50, 0, 50}, ext, filter)
	assert.True(t, status.Succeed())
	assert.Equal(t, DtPolyRef(0), ref)
	assert.Nil(t, pt)
}

func TestFindPathAndStraightPath(t *testing.T) {
	q := newTestQuery(t, twoQuadParams(DT_POLYFLAGS_WALK, true))
	filter := NewDtQueryFilter()
	start := []float32{1, 0, 2.5}
	end := []float32{9, 0, 2.5}

	path := common.NewFixedStack[DtPolyRef](256)
	status := q.FindPath(1, 2, start, end, filter, path)
	require.True(t, status.Succeed())
	assert.False(t, status.Detail(DT_PARTIAL_RESULT))
	assert.Equal(t, []DtPolyRef{1, 2}, path.Slice())

	straight := common.NewFixedStack[DtStraightPathPoint](256)
	status = q.FindStraightPath(start, end, path.Slice(), straight, 0)
	require.True(t, status.Succeed())
	require.Equal(t, 2, straight.Len())
	first, last := straight.Index(0), straight.Index(1)
	assert.Equal(t, [3]float32{1, 0, 2.5}, first.Pos)
	assert.EqualValues(t, DT_STRAIGHTPATH_START, first.Flags)
	assert.Equal(t, DtPolyRef(1), first.Ref)
	assert.Equal(t, [3]float32{9, 0, 2.5}, last.Pos)
	assert.EqualValues(t, DT_STRAIGHTPATH_END, last.Flags)

	// Crossing vertices add the portal intersection at x=5.
	status = q.FindStraightPath(start, end, path.Slice(), straight, DT_STRAIGHTPATH_ALL_CROSSINGS)
	require.True(t, status.Succeed())
	require.Equal(t, 3, straight.Len())
	assert.InDelta(t, 5, straight.Index(1).Pos[0], 1e-4)
}

func TestFindPathSamePoly(t *testing.T) {
	q := newTestQuery(t, twoQuadParams(DT_POLYFLAGS_WALK, true))
	path := common.NewFixedStack[DtPolyRef](4)
	status := q.FindPath(1, 1, []float32{1, 0, 1}, []float32{4, 0, 4}, NewDtQueryFilter(), path)
	require.True(t, status.Succeed())
	assert.Equal(t, []DtPolyRef{1}, path.Slice())
}

func TestFindPathFilteredIsPartial(t *testing.T) {
	q := newTestQuery(t, twoQuadParams(DT_POLYFLAGS_DISABLED, true))
	filter := NewDtQueryFilter()
	filter.SetIncludeFlags(DT_POLYFLAGS_WALK | DT_POLYFLAGS_DOOR)
	filter.SetExcludeFlags(DT_POLYFLAGS_DISABLED)

	path := common.NewFixedStack[DtPolyRef](256)
	status := q.FindPath(1, 2, []float32{1, 0, 2.5}, []float32{9, 0, 2.5}, filter, path)
	require.True(t, status.Succeed())
	assert.True(t, status.Detail(DT_PARTIAL_RESULT))
	assert.Equal(t, []DtPolyRef{1}, path.Slice())
}

func TestFindPathBufferTooSmall(t *testing.T) {
	q := newTestQuery(t, twoQuadParams(DT_POLYFLAGS_WALK, true))
	path := common.NewFixedStack[DtPolyRef](1)
	status := q.FindPath(1, 2, []float32{1, 0, 2.5}, []float32{9, 0, 2.5}, NewDtQueryFilter(), path)
	assert.True(t, status.Detail(DT_BUFFER_TOO_SMALL))
	assert.Equal(t, []DtPolyRef{1}, path.Slice())
}

func TestFindPathInvalidRef(t *testing.T) {
	q := newTestQuery(t, twoQuadParams(DT_POLYFLAGS_WALK, true))
	path := common.NewFixedStack[DtPolyRef](4)
	status := q.FindPath(0, 2, []float32{1, 0, 1}, []float32{9, 0, 1}, NewDtQueryFilter(), path)
	assert.True(t, status.Failed())
	assert.True(t, status.Detail(DT_INVALID_PARAM))
	status = q.FindPath(1, 3, []float32{1, 0, 1}, []float32{9, 0, 1}, NewDtQueryFilter(), path)
	assert.True(t, status.Failed())
}

func TestRaycast(t *testing.T) {
	q := newTestQuery(t, twoQuadParams(DT_POLYFLAGS_WALK, true))
	filter := NewDtQueryFilter()

	hit := &DtRaycastHit{Path: common.NewFixedStack[DtPolyRef](16)}
	status := q.Raycast(1, []float32{1, 0, 2.5}, []float32{9, 0, 2.5}, filter, hit)
	require.True(t, status.Succeed())
	assert.Equal(t, float32(math.MaxFloat32), hit.T)
	assert.Equal(t, []DtPolyRef{1, 2}, hit.Path.Slice())

	status = q.Raycast(1, []float32{1, 0, 2.5}, []float32{12, 0, 2.5}, filter, hit)
	require.True(t, status.Succeed())
	assert.InDelta(t, 9.0/11.0, hit.T, 1e-4)
	assert.Equal(t, 2, hit.HitEdgeIndex)
	assert.InDeltaSlice(t, []float32{-1, 0, 0}, hit.HitNormal[:], 1e-4)
}

func TestClosestPointOnPolyBoundary(t *testing.T) {
	q := newTestQuery(t, twoQuadParams(DT_POLYFLAGS_WALK, true))
	pt, status := q.ClosestPointOnPolyBoundary(1, []float32{2, 3, 2})
	require.True(t, status.Succeed())
	assert.Equal(t, []float32{2, 3, 2}, pt)

	pt, status = q.ClosestPointOnPolyBoundary(1, []float32{-3, 0, 2})
	require.True(t, status.Succeed())
	assert.InDeltaSlice(t, []float32{0, 0, 2}, pt, 1e-4)

	_, status = q.ClosestPointOnPolyBoundary(9, []float32{0, 0, 0})
	assert.True(t, status.Failed())
}

func TestNodePool(t *testing.T) {
	pool := NewDtNodePool(2, 4)
	a := pool.GetNode(7)
	require.NotNil(t, a)
	assert.Same(t, a, pool.GetNode(7))
	assert.Same(t, a, pool.GetNodeAtIdx(pool.GetNodeIdx(a)))
	require.NotNil(t, pool.GetNode(9))
	assert.Nil(t, pool.GetNode(11))
	assert.Nil(t, pool.GetNodeAtIdx(0))

	pool.Clear()
	assert.Nil(t, pool.FindNode(7))
	assert.Equal(t, 0, pool.NodeCount())
}

func TestNodeQueueOrder(t *testing.T) {
	q := NewDtNodeQueue()
	nodes := []*DtNode{{Total: 5}, {Total: 1}, {Total: 3}}
	for _, n := range nodes {
		q.Offer(n)
	}
	nodes[0].Total = 0
	q.Update(nodes[0])

	var got []float32
	for !q.Empty() {
		got = append(got, q.Poll().Total)
	}
	assert.Equal(t, []float32{0, 1, 3}, got)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "success", DT_SUCCESS.String())
	assert.Equal(t, "failure|invalid param", (DT_FAILURE | DT_INVALID_PARAM).String())
	assert.Equal(t, "success|buffer too small|partial result", (DT_SUCCESS | DT_BUFFER_TOO_SMALL | DT_PARTIAL_RESULT).String())
}

// islandParams is a single 3x3 quad in the middle of 5x5 bounds.
func islandParams() *DtNavMeshCreateParams {
	return &DtNavMeshCreateParams{
		Verts: []uint16{
			4, 0, 4,
			4, 0, 10,
			10, 0, 10,
			10, 0, 4,
		},
		VertCount:      4,
		Polys:          []uint16{0, 1, 2, 3, N, N, N, N, N, N, N, N},
		PolyFlags:      []uint16{DT_POLYFLAGS_WALK},
		PolyAreas:      []uint8{63},
		PolyCount:      1,
		Nvp:            6,
		WalkableHeight: 2,
		WalkableRadius: 0.6,
		WalkableClimb:  0.9,
		Bmin:           [3]float32{0, 0, 0},
		Bmax:           [3]float32{5, 1, 5},
		Cs:             0.5,
		Ch:             0.5,
		BuildBvTree:    true,
	}
}

func TestQueryPolygonsUsesExactBounds(t *testing.T) {
	filter := NewDtQueryFilter()
	for _, bvTree := range []bool{true, false} {
		p := islandParams()
		p.BuildBvTree = bvTree
		q := newTestQuery(t, p)

		// Inside the mesh bounds but just short of the quad at x=2.
		ext := []float32{0.1, 0.1, 0.1}
		polys, status := q.QueryPolygons([]float32{1.8, 0, 3}, ext, filter, 8)
		require.True(t, status.Succeed())
		assert.Empty(t, polys, "bvtree %v", bvTree)

		ref, pt, status := q.FindNearestPoly([]float32{1.8, 0, 3}, ext, filter)
		assert.True(t, status.Succeed())
		assert.Equal(t, DtPolyRef(0), ref, "bvtree %v", bvTree)
		assert.Nil(t, pt)

		ref, pt, status = q.FindNearestPoly([]float32{1.95, 0, 3}, ext, filter)
		require.True(t, status.Succeed())
		assert.Equal(t, DtPolyRef(1), ref, "bvtree %v", bvTree)
		assert.InDeltaSlice(t, []float32{2, 0, 3}, pt, 1e-4)
	}
}

func corruptPolys(t *testing.T, edit func(d *NavMeshData)) *NavMeshData {
	t.Helper()
	bin, err := DtCreateNavMeshData(twoQuadParams(DT_POLYFLAGS_WALK, true))
	require.NoError(t, err)
	var data NavMeshData
	require.NoError(t, data.FromBin(bin))
	edit(&data)
	return &data
}

func TestFromBinRejectsBadPolyData(t *testing.T) {
	tests := []struct {
		name string
		edit func(d *NavMeshData)
	}{
		{"area out of range", func(d *NavMeshData) { d.Polys[1].Area = 200 }},
		{"area just past last id", func(d *NavMeshData) { d.Polys[0].Area = DT_MAX_AREAS }},
		{"self neighbour", func(d *NavMeshData) { d.Polys[0].Neis[2] = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := corruptPolys(t, tt.edit)
			var out NavMeshData
			assert.ErrorIs(t, out.FromBin(data.ToBin()), ErrCorruptData)
			_, err := NewDtNavMesh(data.ToBin())
			assert.ErrorIs(t, err, ErrCorruptData)
		})
	}
}

func TestRaycastStopsOnAdjacencyLoop(t *testing.T) {
	data := corruptPolys(t, func(d *NavMeshData) { d.Polys[0].Neis[2] = 1 })
	q, status := NewDtNavMeshQuery(NewDtNavMeshFromData(data), 64)
	require.True(t, status.Succeed())

	hit := &DtRaycastHit{Path: common.NewFixedStack[DtPolyRef](16)}
	status = q.Raycast(1, []float32{1, 0, 2.5}, []float32{9, 0, 2.5}, NewDtQueryFilter(), hit)
	assert.True(t, status.Failed())
	assert.False(t, status.Succeed())
}

func TestFilterAreaCostRange(t *testing.T) {
	f := NewDtQueryFilter()
	assert.True(t, f.SetAreaCost(63, 4))
	assert.Equal(t, float32(4), f.GetAreaCost(63))
	assert.False(t, f.SetAreaCost(DT_MAX_AREAS, 2))
	assert.False(t, f.SetAreaCost(-1, 2))
	assert.Zero(t, f.GetAreaCost(DT_MAX_AREAS))
}
