package detour

import (
	"errors"
	"fmt"
)

const (
	// The maximum number of vertices per navigation polygon.
	DT_VERTS_PER_POLYGON = 6

	// A magic number used to detect compatibility of navigation mesh data.
	DT_NAVMESH_MAGIC = 'S'<<24 | 'N'<<16 | 'A'<<8 | 'V'

	// A version number used to detect compatibility of navigation mesh data.
	DT_NAVMESH_VERSION = 1

	// The maximum number of user defined area ids.
	DT_MAX_AREAS = 64

	// Vertex slot sentinel, and the "no neighbour" value of a packed edge.
	DT_NULL_IDX = 0xffff
	DT_NULL_NEI = 0

	DT_DETAIL_EDGE_BOUNDARY = 0x01 // Detail triangle edge is part of the poly boundary
)

// Poly flags used by the bake and the default query filter.
const (
	DT_POLYFLAGS_WALK     = 0x01 // Ability to walk (ground, grass, road)
	DT_POLYFLAGS_SWIM     = 0x02 // Ability to swim (water).
	DT_POLYFLAGS_DOOR     = 0x04 // Ability to move through doors.
	DT_POLYFLAGS_JUMP     = 0x08 // Ability to jump.
	DT_POLYFLAGS_DISABLED = 0x10 // Disabled polygon
	DT_POLYFLAGS_ALL      = 0xffff
)

const (
	DT_STRAIGHTPATH_START = 0x01 // The vertex is the start position in the path.
	DT_STRAIGHTPATH_END   = 0x02 // The vertex is the end position in the path.
)

// Options for FindStraightPath.
const (
	DT_STRAIGHTPATH_AREA_CROSSINGS = 0x01 // Add a vertex at every polygon edge crossing where area changes.
	DT_STRAIGHTPATH_ALL_CROSSINGS  = 0x02 // Add a vertex at every polygon edge crossing.
)

var (
	ErrWrongMagic   = errors.New("navmesh data has wrong magic")
	ErrWrongVersion = errors.New("navmesh data has wrong version")
	ErrCorruptData  = errors.New("navmesh data is corrupt")
)

// DtPolyRef addresses a polygon of the loaded mesh. Zero is the null
// reference; a valid ref is the polygon index plus one.
type DtPolyRef uint32

func dtEncodePolyRef(ip int) DtPolyRef  { return DtPolyRef(ip + 1) }
func dtDecodePolyRef(ref DtPolyRef) int { return int(ref) - 1 }

// DtPoly is a convex polygon of the runtime mesh.
type DtPoly struct {
	// The indices of the polygon's vertices.
	// The actual vertices are located in DtNavMesh verts.
	Verts [DT_VERTS_PER_POLYGON]uint16

	// Packed data representing neighbor polygons references and flags for each edge.
	// 0 is a wall, otherwise the neighbour polygon index plus one.
	Neis [DT_VERTS_PER_POLYGON]uint16

	// The user defined polygon flags.
	Flags uint16

	// The user defined area id.
	Area uint8

	// The number of vertices in the polygon.
	VertCount uint8
}

func (p *DtPoly) SetArea(a uint8) { p.Area = a & 0x3f }
func (p *DtPoly) GetArea() uint8  { return p.Area }

// DtPolyDetail defines the location of detail sub-mesh data within a mesh.
type DtPolyDetail struct {
	VertBase  uint32 // The offset of the vertices in the DetailVerts slice.
	TriBase   uint32 // The offset of the triangles in the DetailTris slice.
	VertCount uint8  // The number of vertices in the sub-mesh.
	TriCount  uint8  // The number of triangles in the sub-mesh.
}

// DtBVNode is a bounding volume node. Negative I is an escape offset.
type DtBVNode struct {
	Bmin [3]uint16
	Bmax [3]uint16
	I    int32
}

// DtMeshHeader provides high level information about a navigation mesh.
type DtMeshHeader struct {
	Magic           uint32
	Version         int32
	PolyCount       int32
	VertCount       int32
	Nvp             int32
	DetailMeshCount int32
	DetailVertCount int32
	DetailTriCount  int32
	BvNodeCount     int32
	WalkableHeight  float32
	WalkableRadius  float32
	WalkableClimb   float32
	Cs              float32
	Ch              float32
	Bmin            [3]float32
	Bmax            [3]float32
	BvQuantFactor   float32
	BuildBvTree     bool
}

func (h *DtMeshHeader) check() error {
	if h.Magic != DT_NAVMESH_MAGIC {
		return ErrWrongMagic
	}
	if h.Version != DT_NAVMESH_VERSION {
		return fmt.Errorf("%w: got %d want %d", ErrWrongVersion, h.Version, DT_NAVMESH_VERSION)
	}
	if h.PolyCount <= 0 || h.VertCount <= 0 || h.VertCount > DT_NULL_IDX {
		return fmt.Errorf("%w: poly count %d vert count %d", ErrCorruptData, h.PolyCount, h.VertCount)
	}
	if h.Nvp < 3 || h.Nvp > DT_VERTS_PER_POLYGON {
		return fmt.Errorf("%w: verts per poly %d", ErrCorruptData, h.Nvp)
	}
	if h.DetailMeshCount != h.PolyCount {
		return fmt.Errorf("%w: detail mesh count %d", ErrCorruptData, h.DetailMeshCount)
	}
	if h.DetailVertCount < 0 || h.DetailTriCount < 0 || h.BvNodeCount < 0 {
		return fmt.Errorf("%w: negative section count", ErrCorruptData)
	}
	if !(h.Cs > 0) || !(h.Ch > 0) {
		return fmt.Errorf("%w: cell size %v/%v", ErrCorruptData, h.Cs, h.Ch)
	}
	return nil
}

// NavMeshData is the in-memory form of a baked navigation mesh blob.
// Vertices are kept in grid units, exactly as serialized.
type NavMeshData struct {
	Header       DtMeshHeader
	Verts        []uint16
	Polys        []DtPoly
	DetailMeshes []DtPolyDetail
	DetailVerts  []float32
	DetailTris   []uint8
	BvTree       []DtBVNode
}

// validate checks every index in the data against the section sizes.
func (d *NavMeshData) validate() error {
	h := &d.Header
	nverts := int(h.VertCount)
	for i := range d.Polys {
		p := &d.Polys[i]
		if p.VertCount < 3 || int(p.VertCount) > int(h.Nvp) {
			return fmt.Errorf("%w: poly %d has %d verts", ErrCorruptData, i, p.VertCount)
		}
		if p.Area >= DT_MAX_AREAS {
			return fmt.Errorf("%w: poly %d area %d", ErrCorruptData, i, p.Area)
		}
		for j := 0; j < int(p.VertCount); j++ {
			if int(p.Verts[j]) >= nverts {
				return fmt.Errorf("%w: poly %d vertex %d out of range", ErrCorruptData, i, p.Verts[j])
			}
			if int(p.Neis[j]) > int(h.PolyCount) {
				return fmt.Errorf("%w: poly %d neighbour %d out of range", ErrCorruptData, i, p.Neis[j])
			}
			if p.Neis[j] != DT_NULL_NEI && dtDecodePolyRef(DtPolyRef(p.Neis[j])) == i {
				return fmt.Errorf("%w: poly %d is its own neighbour", ErrCorruptData, i)
			}
		}
	}
	for i := range d.DetailMeshes {
		pd := &d.DetailMeshes[i]
		nv := int(d.Polys[i].VertCount)
		if int(pd.VertBase)+int(pd.VertCount) > int(h.DetailVertCount) ||
			int(pd.TriBase)+int(pd.TriCount) > int(h.DetailTriCount) {
			return fmt.Errorf("%w: detail mesh %d out of range", ErrCorruptData, i)
		}
		for k := 0; k < int(pd.TriCount); k++ {
			t := d.DetailTris[(int(pd.TriBase)+k)*4:]
			for j := 0; j < 3; j++ {
				if int(t[j]) >= nv+int(pd.VertCount) {
					return fmt.Errorf("%w: detail mesh %d triangle index out of range", ErrCorruptData, i)
				}
			}
		}
	}
	for i := range d.BvTree {
		n := &d.BvTree[i]
		if n.I >= h.PolyCount || (n.I < 0 && i-int(n.I) > len(d.BvTree)) {
			return fmt.Errorf("%w: bv node %d index %d out of range", ErrCorruptData, i, n.I)
		}
	}
	return nil
}
