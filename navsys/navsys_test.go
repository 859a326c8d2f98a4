package navsys

import (
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gorustyt/solonav/bake"
	"github.com/gorustyt/solonav/detour"
	"github.com/gorustyt/solonav/geometry"
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

func bakeSoup(t *testing.T, soup *geometry.TriangleSoup) []byte {
	t.Helper()
	data, _, err := bake.NewBaker(bake.DefaultBakeConfig(), nil).Bake(soup)
	require.NoError(t, err)
	return data
}

func flatQuadSystem(t *testing.T) (*NavSystem, []byte) {
	t.Helper()
	data := bakeSoup(t, quad(0, 0, 10, 10, 0))
	s := New(zaptest.NewLogger(t))
	require.NoError(t, s.LoadFromMemory(data))
	return s, data
}

func TestFindPathSingleQuad(t *testing.T) {
	s, _ := flatQuadSystem(t)
	res := s.FindPath(mgl32.Vec3{2, 0, 2}, mgl32.Vec3{8, 0, 8})
	require.True(t, res.Success)
	require.Len(t, res.Points, 2)
	assert.Equal(t, []detour.DtPolyRef{1}, res.Polys)
	assert.InDelta(t, 2, res.Points[0].X(), 1e-4)
	assert.InDelta(t, 2, res.Points[0].Z(), 1e-4)
	assert.InDelta(t, 8, res.Points[1].X(), 1e-4)
	assert.InDelta(t, 8, res.Points[1].Z(), 1e-4)
	for _, p := range res.Points {
		assert.True(t, p.Y() >= 0 && p.Y() < 1, "y %v", p.Y())
	}
}

func TestFindPathDisjointFloors(t *testing.T) {
	soup := quad(0, 0, 4, 10, 0)
	soup.Append(quad(6, 0, 10, 10, 0))
	s := New(nil)
	require.NoError(t, s.LoadFromMemory(bakeSoup(t, soup)))

	res := s.FindPath(mgl32.Vec3{2, 0, 5}, mgl32.Vec3{8, 0, 5})
	assert.False(t, res.Success)
	assert.Empty(t, res.Points)
	assert.Empty(t, res.Polys)

	// Both ends on the same floor still work.
	res = s.FindPath(mgl32.Vec3{2, 0, 3}, mgl32.Vec3{2, 0, 7})
	assert.True(t, res.Success)
}

func TestNearestPoint(t *testing.T) {
	s, _ := flatQuadSystem(t)

	_, ref, ok := s.NearestPoint(mgl32.Vec3{50, 0, 50})
	assert.False(t, ok)
	assert.Zero(t, ref)

	pt, ref, ok := s.NearestPoint(mgl32.Vec3{5, 0, 5})
	require.True(t, ok)
	assert.Equal(t, detour.DtPolyRef(1), ref)
	assert.InDelta(t, 5, pt.X(), 1e-4)
	assert.InDelta(t, 5, pt.Z(), 1e-4)

	// Off the eroded border the point is pulled onto the polygon edge.
	pt, _, ok = s.NearestPoint(mgl32.Vec3{0.2, 0, 5})
	require.True(t, ok)
	assert.True(t, pt.X() > 0.5 && pt.X() < 1.5, "x %v", pt.X())
	assert.InDelta(t, 5, pt.Z(), 1e-4)

	// A tiny box that misses the mesh, even though it is inside the mesh
	// bounds and the BV tree's quantized box touches the polygon.
	_, ref, ok = s.NearestPoint(mgl32.Vec3{0.2, 0, 5}, WithExtents(mgl32.Vec3{0.1, 0.1, 0.1}))
	assert.False(t, ok)
	assert.Zero(t, ref)

	// A small box around a point on the polygon.
	pt, ref, ok = s.NearestPoint(mgl32.Vec3{5, 0, 5}, WithExtents(mgl32.Vec3{0.5, 0.5, 0.5}))
	require.True(t, ok)
	assert.Equal(t, detour.DtPolyRef(1), ref)
	assert.InDelta(t, 5, pt.X(), 1e-4)
	assert.InDelta(t, 5, pt.Z(), 1e-4)
}

func TestFilterExcludesPolygons(t *testing.T) {
	s, _ := flatQuadSystem(t)
	s.SetFilter(detour.DT_POLYFLAGS_SWIM, 0)
	_, _, ok := s.NearestPoint(mgl32.Vec3{5, 0, 5})
	assert.False(t, ok)
	assert.False(t, s.FindPath(mgl32.Vec3{2, 0, 2}, mgl32.Vec3{8, 0, 8}).Success)

	_, _, ok = s.NearestPoint(mgl32.Vec3{5, 0, 5}, WithFilter(NewDefaultFilter()))
	assert.True(t, ok)

	s.SetFilter(DefaultIncludeFlags, DefaultExcludeFlags)
	_, _, ok = s.NearestPoint(mgl32.Vec3{5, 0, 5})
	assert.True(t, ok)
}

func TestRaycastSurface(t *testing.T) {
	s, _ := flatQuadSystem(t)

	end := mgl32.Vec3{7, 0, 5}
	res, ok := s.RaycastSurface(mgl32.Vec3{3, 0, 5}, end)
	require.True(t, ok)
	assert.False(t, res.Hit)
	assert.Equal(t, float32(math.MaxFloat32), res.T)
	assert.Equal(t, end, res.Position)
	assert.Equal(t, []detour.DtPolyRef{1}, res.Polys)

	res, ok = s.RaycastSurface(mgl32.Vec3{5, 0, 5}, mgl32.Vec3{20, 0, 5})
	require.True(t, ok)
	require.True(t, res.Hit)
	assert.True(t, res.T > 0 && res.T < 1, "t %v", res.T)
	assert.True(t, res.Position.X() > 8.5 && res.Position.X() < 9.5, "x %v", res.Position.X())
	assert.InDelta(t, 1, math.Abs(float64(res.Normal.X())), 1e-3)

	_, ok = s.RaycastSurface(mgl32.Vec3{50, 0, 50}, mgl32.Vec3{60, 0, 50})
	assert.False(t, ok)
}

func TestQueriesWithoutMesh(t *testing.T) {
	s := New(nil)
	assert.False(t, s.Loaded())
	assert.False(t, s.FindPath(mgl32.Vec3{}, mgl32.Vec3{1, 0, 1}).Success)
	_, _, ok := s.NearestPoint(mgl32.Vec3{})
	assert.False(t, ok)
	_, ok = s.RaycastSurface(mgl32.Vec3{}, mgl32.Vec3{1, 0, 1})
	assert.False(t, ok)
	assert.Nil(t, s.DebugEdges(mgl32.Vec3{}, 10))
	_, err := s.Info()
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.ErrorIs(t, s.ReloadLast(), ErrNoLastFile)
	s.Unload()
}

func TestUnloadLoadIsIdempotent(t *testing.T) {
	s, data := flatQuadSystem(t)
	start, end := mgl32.Vec3{2, 0, 2}, mgl32.Vec3{8, 0, 8}
	want := s.FindPath(start, end)
	require.True(t, want.Success)

	s.Unload()
	s.Unload()
	assert.False(t, s.Loaded())
	assert.False(t, s.FindPath(start, end).Success)

	require.NoError(t, s.LoadFromMemory(data))
	require.NoError(t, s.LoadFromMemory(data))
	assert.Equal(t, want, s.FindPath(start, end))
}

func TestLoadFromMemoryCopiesInput(t *testing.T) {
	s, data := flatQuadSystem(t)
	want := s.FindPath(mgl32.Vec3{2, 0, 2}, mgl32.Vec3{8, 0, 8})
	for i := range data {
		data[i] = 0
	}
	assert.Equal(t, want, s.FindPath(mgl32.Vec3{2, 0, 2}, mgl32.Vec3{8, 0, 8}))
}

func TestLoadBadDataLeavesSystemUnloaded(t *testing.T) {
	s, data := flatQuadSystem(t)
	assert.Error(t, s.LoadFromMemory(nil))
	assert.False(t, s.Loaded())

	require.NoError(t, s.LoadFromMemory(data))
	assert.ErrorIs(t, s.LoadFromMemory(data[:40]), detour.ErrCorruptData)
	assert.False(t, s.Loaded())

	require.NoError(t, s.LoadFromMemory(data))
	bad := append([]byte(nil), data...)
	bad[0] ^= 0xff
	assert.ErrorIs(t, s.LoadFromMemory(bad), detour.ErrWrongMagic)
	assert.False(t, s.Loaded())
	assert.False(t, s.FindPath(mgl32.Vec3{2, 0, 2}, mgl32.Vec3{8, 0, 8}).Success)
	_, _, ok := s.NearestPoint(mgl32.Vec3{5, 0, 5})
	assert.False(t, ok)

	require.NoError(t, s.LoadFromMemory(data))
	require.Error(t, s.LoadFromFile(filepath.Join(t.TempDir(), "missing.navmesh")))
	assert.False(t, s.Loaded())
}

func TestLoadAndReloadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "level.navmesh")
	require.NoError(t, os.WriteFile(path, bakeSoup(t, quad(0, 0, 10, 10, 0)), 0o644))

	s := New(nil)
	require.NoError(t, s.LoadFromFile(path))
	assert.Equal(t, path, s.LastFile())
	info, err := s.Info()
	require.NoError(t, err)
	assert.Equal(t, 1, info.Polys)
	assert.Equal(t, path, info.File)

	s.SetFilter(0, 0)
	require.NoError(t, s.ReloadLast())
	_, _, ok := s.NearestPoint(mgl32.Vec3{5, 0, 5})
	assert.True(t, ok, "reload restores the default filter")

	assert.Error(t, s.ReloadFromFile(filepath.Join(dir, "missing.navmesh")))
	assert.False(t, s.Loaded())
	assert.Equal(t, path, s.LastFile())
}

func TestDebugEdges(t *testing.T) {
	s, _ := flatQuadSystem(t)
	lines := s.DebugEdges(mgl32.Vec3{5, 0, 5}, 20)
	var boundary, centroid int
	for _, l := range lines {
		switch l.Kind {
		case EdgeBoundary:
			boundary++
		case EdgeCentroid:
			centroid++
		}
	}
	assert.Equal(t, 4, boundary)
	assert.Equal(t, 2, centroid)
	assert.Empty(t, s.DebugEdges(mgl32.Vec3{50, 0, 50}, 1))
	assert.Nil(t, s.DebugEdges(mgl32.Vec3{5, 0, 5}, 0))
}

func TestConcurrentQueries(t *testing.T) {
	s, data := flatQuadSystem(t)
	want := s.FindPath(mgl32.Vec3{2, 0, 2}, mgl32.Vec3{8, 0, 8})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				res := s.FindPath(mgl32.Vec3{2, 0, 2}, mgl32.Vec3{8, 0, 8})
				if res.Success {
					assert.Equal(t, want.Points, res.Points)
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 10; j++ {
			s.Unload()
			assert.NoError(t, s.LoadFromMemory(data))
		}
	}()
	wg.Wait()
	assert.True(t, s.Loaded())
}
