package geometry

import (
	"github.com/go-gl/mathgl/mgl32"
)

type AssetKind int

const (
	AssetStatic AssetKind = iota + 1
	AssetSkinned
)

func (k AssetKind) String() string {
	switch k {
	case AssetStatic:
		return "static"
	case AssetSkinned:
		return "skinned"
	}
	return "unknown"
}

// Asset is the renderable model attached to an entity. Only static models
// contribute to the bake.
type Asset interface {
	Kind() AssetKind
	Meshes() []Submesh
}

// Submesh is one draw range of a model in model space.
type Submesh struct {
	Positions []mgl32.Vec3
	Indices   []uint32
}

type StaticModel struct {
	Submeshes []Submesh
}

func (m *StaticModel) Kind() AssetKind   { return AssetStatic }
func (m *StaticModel) Meshes() []Submesh { return m.Submeshes }

// SkinnedModel is animated geometry. It never walks into the bake.
type SkinnedModel struct {
	Submeshes []Submesh
	Bones     int
}

func (m *SkinnedModel) Kind() AssetKind   { return AssetSkinned }
func (m *SkinnedModel) Meshes() []Submesh { return m.Submeshes }

// Entity places a model in the world. A nil Transform is the identity.
type Entity struct {
	Name      string
	Model     Asset
	Transform *mgl32.Mat4
}

type Scene interface {
	Entities() []Entity
}

// SliceScene is a Scene over a plain slice.
type SliceScene []Entity

func (s SliceScene) Entities() []Entity { return s }

// GatherStats is diagnostic only.
type GatherStats struct {
	EntitiesScanned   int `json:"entitiesScanned"`
	SubmeshesUsed     int `json:"submeshesUsed"`
	TrianglesProduced int `json:"trianglesProduced"`
}

// Gather collects the world-space triangles of every static model in the
// scene. Entities without a model, non-static models and submeshes with
// fewer than three indices are skipped. Triangles referencing a missing
// position are dropped.
func Gather(scene Scene) (*TriangleSoup, GatherStats) {
	soup := &TriangleSoup{}
	var stats GatherStats
	if scene == nil {
		return soup, stats
	}
	for _, e := range scene.Entities() {
		stats.EntitiesScanned++
		if e.Model == nil || e.Model.Kind() != AssetStatic {
			continue
		}
		xform := mgl32.Ident4()
		if e.Transform != nil {
			xform = *e.Transform
		}
		for _, sm := range e.Model.Meshes() {
			if len(sm.Indices) < 3 || len(sm.Positions) == 0 {
				continue
			}
			n := gatherSubmesh(soup, &sm, xform)
			if n == 0 {
				continue
			}
			stats.SubmeshesUsed++
			stats.TrianglesProduced += n
		}
	}
	return soup, stats
}

func gatherSubmesh(soup *TriangleSoup, sm *Submesh, xform mgl32.Mat4) int {
	base := int32(soup.VertCount())
	npos := uint32(len(sm.Positions))
	ntris := 0
	used := false
	for i := 0; i+2 < len(sm.Indices); i += 3 {
		a, b, c := sm.Indices[i], sm.Indices[i+1], sm.Indices[i+2]
		if a >= npos || b >= npos || c >= npos {
			continue
		}
		if !used {
			for _, p := range sm.Positions {
				soup.AddVertex(mgl32.TransformCoordinate(p, xform))
			}
			used = true
		}
		soup.AddTriangle(base+int32(a), base+int32(b), base+int32(c))
		ntris++
	}
	return ntris
}
