package navsys

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gorustyt/solonav/common"
	"github.com/gorustyt/solonav/detour"
)

type EdgeKind int

const (
	EdgeBoundary EdgeKind = iota // polygon edge without a neighbour
	EdgeCentroid                 // marker cross at a polygon centre
)

type DebugLine struct {
	A, B mgl32.Vec3
	Kind EdgeKind
	Ref  detour.DtPolyRef
}

const centroidMarkRadius = 0.05

// DebugEdges returns the boundary edges and centre markers of every polygon
// overlapping the cube of half size radius around center, ignoring the
// default filter. Interior edges are skipped.
func (s *NavSystem) DebugEdges(center mgl32.Vec3, radius float32) []DebugLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.nav == nil || !(radius > 0) {
		return nil
	}
	nav := s.nav
	q, _ := s.queries.Get().(*detour.DtNavMeshQuery)
	if q == nil {
		return nil
	}
	defer s.queries.Put(q)

	ext := mgl32.Vec3{radius, radius, radius}
	refs, status := q.QueryPolygons(center[:], ext[:], detour.NewDtQueryFilter(), nav.PolyCount())
	if status.Failed() {
		return nil
	}
	lines := make([]DebugLine, 0, len(refs)*6)
	for _, ref := range refs {
		poly, status := nav.GetPolyByRef(ref)
		if status.Failed() {
			continue
		}
		nv := int(poly.VertCount)
		var c mgl32.Vec3
		for j := 0; j < nv; j++ {
			va := common.ToVec3(nav.GetVert(int(poly.Verts[j])))
			c = c.Add(va)
			if poly.Neis[j] != detour.DT_NULL_NEI {
				continue
			}
			vb := common.ToVec3(nav.GetVert(int(poly.Verts[(j+1)%nv])))
			lines = append(lines, DebugLine{A: va, B: vb, Kind: EdgeBoundary, Ref: ref})
		}
		c = c.Mul(1 / float32(nv))
		dx := mgl32.Vec3{centroidMarkRadius, 0, 0}
		dz := mgl32.Vec3{0, 0, centroidMarkRadius}
		lines = append(lines,
			DebugLine{A: c.Sub(dx), B: c.Add(dx), Kind: EdgeCentroid, Ref: ref},
			DebugLine{A: c.Sub(dz), B: c.Add(dz), Kind: EdgeCentroid, Ref: ref})
	}
	return lines
}

// MeshInfo summarises the loaded mesh.
type MeshInfo struct {
	Polys          int        `json:"polys"`
	Verts          int        `json:"verts"`
	DetailTris     int        `json:"detailTris"`
	BvNodes        int        `json:"bvNodes"`
	Bmin           mgl32.Vec3 `json:"bmin"`
	Bmax           mgl32.Vec3 `json:"bmax"`
	CellSize       float32    `json:"cellSize"`
	CellHeight     float32    `json:"cellHeight"`
	WalkableHeight float32    `json:"walkableHeight"`
	WalkableRadius float32    `json:"walkableRadius"`
	WalkableClimb  float32    `json:"walkableClimb"`
	File           string     `json:"file,omitempty"`
}

func (s *NavSystem) Info() (MeshInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.nav == nil {
		return MeshInfo{}, ErrNotLoaded
	}
	h := s.nav.GetHeader()
	return MeshInfo{
		Polys:          int(h.PolyCount),
		Verts:          int(h.VertCount),
		DetailTris:     int(h.DetailTriCount),
		BvNodes:        int(h.BvNodeCount),
		Bmin:           mgl32.Vec3(h.Bmin),
		Bmax:           mgl32.Vec3(h.Bmax),
		CellSize:       h.Cs,
		CellHeight:     h.Ch,
		WalkableHeight: h.WalkableHeight,
		WalkableRadius: h.WalkableRadius,
		WalkableClimb:  h.WalkableClimb,
		File:           s.lastFile,
	}, nil
}
