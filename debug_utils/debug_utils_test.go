package debug_utils

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gorustyt/solonav/bake"
	"github.com/gorustyt/solonav/detour"
	"github.com/gorustyt/solonav/geometry"
)

func bakeQuad(t *testing.T) (*bake.Result, *detour.DtNavMesh) {
	soup := &geometry.TriangleSoup{
		Verts: []float32{0, 0, 0, 0, 0, 10, 10, 0, 10, 10, 0, 0},
		Tris:  []int32{0, 1, 2, 0, 2, 3},
	}
	b := bake.NewBaker(bake.DefaultBakeConfig(), zaptest.NewLogger(t))
	res, err := b.Build(soup)
	require.NoError(t, err)
	data, _, err := bake.PackNavMesh(res.CreateParams(b.Config()), zaptest.NewLogger(t))
	require.NoError(t, err)
	nav, err := detour.NewDtNavMesh(data)
	require.NoError(t, err)
	return res, nav
}

func countPrefix(s, prefix string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}

func TestColors(t *testing.T) {
	assert.Equal(t, Colorb{63, 63, 63, 255}, DuIntToCol(0, 255))
	assert.Equal(t, Colorb{100, 50, 25, 255}, DuDarkenCol(DuRGBA(200, 100, 50, 255)))
	assert.Equal(t, Colorb{128, 128, 128, 128}, DuLerpCol(DuRGBA(0, 0, 0, 0), DuRGBA(255, 255, 255, 255), 128))
	assert.Equal(t, Colorb{1, 2, 3, 9}, DuTransCol(DuRGBA(1, 2, 3, 4), 9))
	assert.Equal(t, "#ff800000", DuRGBA(255, 128, 0, 0).Hex())

	var c Colorb
	c.FromInt(DuRGBA(10, 20, 30, 40).Int())
	assert.Equal(t, Colorb{10, 20, 30, 40}, c)
}

func TestDisplayList(t *testing.T) {
	dd := NewDuDisplayList()
	dd.Begin(DU_DRAW_TRIS)
	dd.Vertex1(0, 0, 0, DuRGBA(255, 0, 0, 255))
	dd.Vertex1(1, 0, 0, DuRGBA(255, 0, 0, 255))
	dd.Vertex([]float32{0, 0, 1}, DuRGBA(255, 0, 0, 255))
	dd.End()
	dd.Begin(DU_DRAW_LINES, 2)
	dd.End()
	dd.Begin(DU_DRAW_LINES, 2)
	dd.Vertex1(0, 1, 0, DuRGBA(0, 0, 0, 255))
	dd.Vertex1(1, 1, 0, DuRGBA(0, 0, 0, 255))
	dd.End()

	require.Len(t, dd.Batches(), 2, "empty batches are dropped")
	assert.Equal(t, 1, dd.Count(DU_DRAW_TRIS))
	assert.Equal(t, 1, dd.Count(DU_DRAW_LINES))
	assert.Equal(t, float32(2), dd.Batches()[1].Size)

	var buf bytes.Buffer
	require.NoError(t, dd.WriteObj(&buf))
	out := buf.String()
	assert.Equal(t, 5, countPrefix(out, "v "))
	assert.Contains(t, out, "f 1 2 3\n")
	assert.Contains(t, out, "l 4 5\n")

	replay := NewDuDisplayList()
	dd.Draw(replay)
	assert.Equal(t, dd.Batches(), replay.Batches())

	dd.Clear()
	assert.Empty(t, dd.Batches())
}

func TestDrawPolyMesh(t *testing.T) {
	res, _ := bakeQuad(t)
	dd := NewDuDisplayList()
	DuDebugDrawPolyMesh(dd, res.PolyMesh)
	assert.Equal(t, 2, dd.Count(DU_DRAW_TRIS))
	assert.Equal(t, 4, dd.Count(DU_DRAW_LINES), "only boundary edges on a single poly")
	assert.Equal(t, 4, dd.Count(DU_DRAW_POINTS))

	dd.Clear()
	DuDebugDrawPolyMeshDetail(dd, res.Detail)
	assert.GreaterOrEqual(t, dd.Count(DU_DRAW_TRIS), 2)
	assert.GreaterOrEqual(t, dd.Count(DU_DRAW_LINES), 4)
}

func TestDrawNavMesh(t *testing.T) {
	_, nav := bakeQuad(t)
	dd := NewDuDisplayList()
	DuDebugDrawNavMesh(dd, nav, 0)
	assert.GreaterOrEqual(t, dd.Count(DU_DRAW_TRIS), 2)
	assert.Equal(t, 4, dd.Count(DU_DRAW_LINES))
	assert.Equal(t, 4, dd.Count(DU_DRAW_POINTS))
	for _, b := range dd.Batches() {
		if b.Prim == DU_DRAW_TRIS {
			assert.Equal(t, DuTransCol(DuAreaToCol(63), 64), b.Colors[0])
		}
	}

	dd.Clear()
	DuDebugDrawNavMeshBVTree(dd, nav)
	assert.Equal(t, 12, dd.Count(DU_DRAW_LINES))

	dd.Clear()
	DuDebugDrawNavMeshPoly(dd, nav, nav.GetPolyRef(0), DuRGBA(255, 0, 0, 255))
	assert.GreaterOrEqual(t, dd.Count(DU_DRAW_TRIS), 2)

	dd.Clear()
	DuDebugDrawNavMeshPoly(dd, nav, 0, DuRGBA(255, 0, 0, 255))
	assert.Empty(t, dd.Batches())
}

func TestDrawPath(t *testing.T) {
	dd := NewDuDisplayList()
	DuDebugDrawPath(dd, []float32{1, 0, 1, 5, 0, 5}, DuRGBA(255, 255, 0, 255))
	assert.Equal(t, 7, dd.Count(DU_DRAW_LINES))

	dd.Clear()
	DuDebugDrawPath(dd, nil, DuRGBA(255, 255, 0, 255))
	assert.Empty(t, dd.Batches())
}

func TestDumpObj(t *testing.T) {
	res, nav := bakeQuad(t)

	var buf bytes.Buffer
	require.NoError(t, DuDumpPolyMeshToObj(res.PolyMesh, &buf))
	assert.Equal(t, 4, countPrefix(buf.String(), "v "))
	assert.Equal(t, 2, countPrefix(buf.String(), "f "))

	buf.Reset()
	require.NoError(t, DuDumpPolyMeshDetailToObj(res.Detail, &buf))
	assert.Equal(t, res.Detail.NVerts, countPrefix(buf.String(), "v "))
	assert.Equal(t, res.Detail.NTris, countPrefix(buf.String(), "f "))

	buf.Reset()
	require.NoError(t, DuDumpNavMeshToObj(nav, &buf))
	assert.Contains(t, buf.String(), "g poly1\n")
	assert.Equal(t, countPrefix(buf.String(), "v "), 3*countPrefix(buf.String(), "f "))

	assert.ErrorIs(t, DuDumpNavMeshToObj(nil, &buf), ErrNilMesh)
	assert.ErrorIs(t, DuDumpPolyMeshToObj(nil, &buf), ErrNilMesh)
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestDumpWriteError(t *testing.T) {
	res, _ := bakeQuad(t)
	assert.EqualError(t, DuDumpPolyMeshToObj(res.PolyMesh, failWriter{}), "disk full")
}
