package geometry

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitQuad() Submesh {
	return Submesh{
		Positions: []mgl32.Vec3{{0, 0, 0}, {0, 0, 1}, {1, 0, 1}, {1, 0, 0}},
		Indices:   []uint32{0, 1, 2, 0, 2, 3},
	}
}

func TestGatherSkipsNonStatic(t *testing.T) {
	xform := mgl32.Translate3D(10, 2, 0)
	scene := SliceScene{
		{Name: "floor", Model: &StaticModel{Submeshes: []Submesh{unitQuad()}}},
		{Name: "moved", Model: &StaticModel{Submeshes: []Submesh{unitQuad()}}, Transform: &xform},
		{Name: "hero", Model: &SkinnedModel{Submeshes: []Submesh{unitQuad()}}},
		{Name: "empty"},
		{Name: "degenerate", Model: &StaticModel{Submeshes: []Submesh{{
			Positions: []mgl32.Vec3{{0, 0, 0}},
			Indices:   []uint32{0, 0},
		}}}},
	}
	soup, stats := Gather(scene)
	require.NoError(t, soup.Validate())
	assert.Equal(t, GatherStats{EntitiesScanned: 5, SubmeshesUsed: 2, TrianglesProduced: 4}, stats)
	assert.Equal(t, 8, soup.VertCount())
	assert.Equal(t, []int32{0, 1, 2, 0, 2, 3, 4, 5, 6, 4, 6, 7}, soup.Tris)

	bmin, bmax := soup.Bounds()
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, bmin)
	assert.Equal(t, mgl32.Vec3{11, 2, 1}, bmax)
}

func TestGatherDropsBadTriangles(t *testing.T) {
	sm := unitQuad()
	sm.Indices = append(sm.Indices, 0, 1, 9)
	soup, stats := Gather(SliceScene{{Model: &StaticModel{Submeshes: []Submesh{sm}}}})
	require.NoError(t, soup.Validate())
	assert.Equal(t, 2, stats.TrianglesProduced)
}

func TestGatherEmptyScene(t *testing.T) {
	soup, stats := Gather(SliceScene{})
	assert.ErrorIs(t, soup.Validate(), ErrEmptyGeometry)
	assert.Zero(t, stats)

	soup, _ = Gather(nil)
	assert.ErrorIs(t, soup.Validate(), ErrEmptyGeometry)
}

func TestSoupValidate(t *testing.T) {
	tests := []struct {
		name string
		soup *TriangleSoup
		ok   bool
	}{
		{"nil", nil, false},
		{"no tris", &TriangleSoup{Verts: []float32{0, 0, 0}}, false},
		{"ragged verts", &TriangleSoup{Verts: []float32{0, 0, 0, 1}, Tris: []int32{0, 0, 0}}, false},
		{"ragged tris", &TriangleSoup{Verts: []float32{0, 0, 0}, Tris: []int32{0, 0}}, false},
		{"out of range", &TriangleSoup{Verts: []float32{0, 0, 0}, Tris: []int32{0, 0, 1}}, false},
		{"negative", &TriangleSoup{Verts: []float32{0, 0, 0}, Tris: []int32{0, 0, -1}}, false},
		{"ok", &TriangleSoup{Verts: []float32{0, 0, 0, 1, 0, 0, 0, 0, 1}, Tris: []int32{0, 2, 1}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.soup.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSoupAppend(t *testing.T) {
	a := &TriangleSoup{Verts: []float32{0, 0, 0, 1, 0, 0, 0, 0, 1}, Tris: []int32{0, 2, 1}}
	b := &TriangleSoup{Verts: []float32{5, 0, 5, 6, 0, 5, 5, 0, 6}, Tris: []int32{0, 2, 1}}
	a.Append(b)
	assert.Equal(t, []int32{0, 2, 1, 3, 5, 4}, a.Tris)
	assert.NoError(t, a.Validate())
}

const quadObj = `# two triangles as one quad
v 0 0 0
v 0 0 2
v 2 0 2
v 2 0 0
vn 0 1 0
f 1//1 2//1 3//1 4//1
f -4 -2 -1
`

func TestParseObj(t *testing.T) {
	soup, err := ParseObj(strings.NewReader(quadObj), 0.5)
	require.NoError(t, err)
	require.NoError(t, soup.Validate())
	assert.Equal(t, 4, soup.VertCount())
	assert.Equal(t, []float32{0, 0, 0, 0, 0, 1, 1, 0, 1, 1, 0, 0}, soup.Verts)
	assert.Equal(t, []int32{0, 1, 2, 0, 2, 3, 0, 2, 3}, soup.Tris)
}

func TestParseObjErrors(t *testing.T) {
	_, err := ParseObj(strings.NewReader("v 0 0\n"), 1)
	assert.ErrorContains(t, err, "line 1")

	_, err = ParseObj(strings.NewReader("v 0 0 0\nf a b c\n"), 1)
	assert.ErrorContains(t, err, "line 2")
}

func TestLoadObjMissingFile(t *testing.T) {
	_, err := LoadObj(filepath.Join(t.TempDir(), "missing.obj"), 1)
	assert.Error(t, err)
}

func TestSoupCacheRoundTrip(t *testing.T) {
	soup, stats := Gather(SliceScene{{Model: &StaticModel{Submeshes: []Submesh{unitQuad()}}}})
	path := filepath.Join(t.TempDir(), "scene.soup")
	require.NoError(t, SaveSoup(path, soup, stats))

	got, gotStats, err := LoadSoup(path)
	require.NoError(t, err)
	assert.Equal(t, soup, got)
	assert.Equal(t, stats, gotStats)

	_, _, err = UnmarshalSoup([]byte{0xc1})
	assert.Error(t, err)
}
