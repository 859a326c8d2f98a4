package detour

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/gorustyt/solonav/common"
)

// DtNavMeshCreateParams collects the baked polygon and detail data used to
// create a runtime navigation mesh. Coarse vertices are in grid units.
type DtNavMeshCreateParams struct {
	// Polygon Mesh Attributes
	Verts     []uint16 // The polygon mesh vertices. [(x, y, z) * VertCount]
	VertCount int
	Polys     []uint16 // The polygon data. [Size: PolyCount * 2 * Nvp]
	PolyFlags []uint16 // The user defined flags assigned to each polygon.
	PolyAreas []uint8  // The user defined area ids assigned to each polygon.
	PolyCount int
	Nvp       int // Number maximum number of vertices per polygon.

	// Height Detail Attributes (Optional)
	DetailMeshes     []uint32  // [(vertBase, vertCount, triBase, triCount) * PolyCount]
	DetailVerts      []float32 // [(x, y, z) * DetailVertsCount]
	DetailVertsCount int
	DetailTris       []uint8 // [(vertA, vertB, vertC, flags) * DetailTriCount]
	DetailTriCount   int

	WalkableHeight float32 // The agent height. [Unit: wu]
	WalkableRadius float32 // The agent radius. [Unit: wu]
	WalkableClimb  float32 // The agent maximum traversable ledge. (Up/Down) [Unit: wu]
	Bmin           [3]float32
	Bmax           [3]float32
	Cs             float32 // The xz-plane cell size of the polygon mesh.
	Ch             float32 // The y-axis cell height of the polygon mesh.

	// True if a bounding volume tree should be built for the mesh.
	BuildBvTree bool
}

// ValidationError is returned when the create params break a hard
// precondition. It is terminal: retrying with the same mesh cannot succeed.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "navmesh params invalid: " + e.Reason }

// PackError is returned when the coarse mesh is valid but packing the
// remaining data failed. Packing without the detail mesh may still succeed.
type PackError struct {
	Step string
	Err  error
}

func (e *PackError) Error() string { return fmt.Sprintf("navmesh pack %s: %v", e.Step, e.Err) }
func (e *PackError) Unwrap() error { return e.Err }

var errDetailInconsistent = errors.New("detail mesh inconsistent with polygon mesh")

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the coarse mesh preconditions.
func (p *DtNavMeshCreateParams) Validate() error {
	if p.Nvp < 3 || p.Nvp > DT_VERTS_PER_POLYGON {
		return invalid("verts per poly %d outside [3,%d]", p.Nvp, DT_VERTS_PER_POLYGON)
	}
	if p.VertCount == 0 || len(p.Verts) == 0 {
		return invalid("no vertices")
	}
	if p.VertCount >= DT_NULL_IDX {
		return invalid("too many vertices %d", p.VertCount)
	}
	if len(p.Verts) < p.VertCount*3 {
		return invalid("vertex array holds %d values, need %d", len(p.Verts), p.VertCount*3)
	}
	if p.PolyCount == 0 || len(p.Polys) == 0 {
		return invalid("no polygons")
	}
	if p.PolyCount >= DT_NULL_IDX {
		return invalid("too many polygons %d", p.PolyCount)
	}
	if len(p.Polys) < p.PolyCount*2*p.Nvp || len(p.PolyFlags) < p.PolyCount || len(p.PolyAreas) < p.PolyCount {
		return invalid("polygon arrays shorter than poly count %d", p.PolyCount)
	}
	if !(p.Cs > 0) || !(p.Ch > 0) {
		return invalid("cell size %v and cell height %v must be positive", p.Cs, p.Ch)
	}
	walkable := false
	for i := 0; i < p.PolyCount; i++ {
		if p.PolyFlags[i] != 0 {
			walkable = true
		}
		poly := p.Polys[i*2*p.Nvp:]
		if poly[0] == DT_NULL_IDX {
			return invalid("polygon %d has no vertices", i)
		}
		nv := 0
		for j := 0; j < p.Nvp; j++ {
			if poly[j] == DT_NULL_IDX {
				break
			}
			if int(poly[j]) >= p.VertCount {
				return invalid("polygon %d vertex index %d out of range", i, poly[j])
			}
			nv++
		}
		if nv < 3 {
			return invalid("polygon %d has %d vertices", i, nv)
		}
		for j := 0; j < nv; j++ {
			nei := poly[p.Nvp+j]
			if nei != DT_NULL_IDX && int(nei) >= p.PolyCount {
				return invalid("polygon %d neighbour %d out of range", i, nei)
			}
		}
	}
	if !walkable {
		return invalid("no polygon carries a flag")
	}
	return nil
}

type bvItem struct {
	bmin [3]uint16
	bmax [3]uint16
	i    int
}

func calcExtends(items []bvItem, bmin, bmax []uint16) {
	copy(bmin, items[0].bmin[:])
	copy(bmax, items[0].bmax[:])
	for _, it := range items[1:] {
		for k := 0; k < 3; k++ {
			bmin[k] = min(bmin[k], it.bmin[k])
			bmax[k] = max(bmax[k], it.bmax[k])
		}
	}
}

func longestAxis(x, y, z uint16) int {
	axis := 0
	maxVal := x
	if y > maxVal {
		axis = 1
		maxVal = y
	}
	if z > maxVal {
		axis = 2
	}
	return axis
}

func subdivide(items []bvItem, nodes []DtBVNode, curNode *int) {
	icur := *curNode
	node := &nodes[*curNode]
	*curNode++

	if len(items) == 1 {
		// Leaf
		node.Bmin = items[0].bmin
		node.Bmax = items[0].bmax
		node.I = int32(items[0].i)
		return
	}
	// Split
	calcExtends(items, node.Bmin[:], node.Bmax[:])
	axis := longestAxis(node.Bmax[0]-node.Bmin[0], node.Bmax[1]-node.Bmin[1], node.Bmax[2]-node.Bmin[2])
	sort.SliceStable(items, func(a, b int) bool { return items[a].bmin[axis] < items[b].bmin[axis] })

	isplit := len(items) / 2
	subdivide(items[:isplit], nodes, curNode)
	subdivide(items[isplit:], nodes, curNode)

	// Negative index means escape.
	node.I = -int32(*curNode - icur)
}

func quantize(v, origin, factor float32, ceil bool) uint16 {
	f := (v - origin) * factor
	if ceil {
		f = common.Ceilf(f)
	}
	return uint16(common.Clamp(int(f), 0, 0xffff))
}

func createBVTree(p *DtNavMeshCreateParams, useDetail bool) []DtBVNode {
	quantFactor := 1 / p.Cs
	items := make([]bvItem, p.PolyCount)
	for i := range items {
		it := &items[i]
		it.i = i
		if useDetail {
			vb := int(p.DetailMeshes[i*4+0])
			ndv := int(p.DetailMeshes[i*4+1])
			var bmin, bmax [3]float32
			copy(bmin[:], common.GetVert3(p.DetailVerts, vb))
			copy(bmax[:], common.GetVert3(p.DetailVerts, vb))
			for j := 1; j < ndv; j++ {
				common.Vmin(bmin[:], common.GetVert3(p.DetailVerts, vb+j))
				common.Vmax(bmax[:], common.GetVert3(p.DetailVerts, vb+j))
			}
			// BV-tree uses cs for all dimensions
			for k := 0; k < 3; k++ {
				it.bmin[k] = quantize(bmin[k], p.Bmin[k], quantFactor, false)
				it.bmax[k] = quantize(bmax[k], p.Bmin[k], quantFactor, true)
			}
			continue
		}
		poly := p.Polys[i*p.Nvp*2:]
		copy(it.bmin[:], common.GetVert3(p.Verts, int(poly[0])))
		copy(it.bmax[:], common.GetVert3(p.Verts, int(poly[0])))
		for j := 1; j < p.Nvp; j++ {
			if poly[j] == DT_NULL_IDX {
				break
			}
			v := common.GetVert3(p.Verts, int(poly[j]))
			for k := 0; k < 3; k++ {
				it.bmin[k] = min(it.bmin[k], v[k])
				it.bmax[k] = max(it.bmax[k], v[k])
			}
		}
		// Remap y
		it.bmin[1] = uint16(common.Floorf(float32(it.bmin[1]) * p.Ch / p.Cs))
		it.bmax[1] = uint16(common.Ceilf(float32(it.bmax[1]) * p.Ch / p.Cs))
	}

	nodes := make([]DtBVNode, p.PolyCount*2)
	curNode := 0
	subdivide(items, nodes, &curNode)
	return nodes[:curNode]
}

func (p *DtNavMeshCreateParams) hasDetail() bool {
	return len(p.DetailMeshes) > 0
}

// checkDetail verifies the detail mesh against the coarse mesh.
func (p *DtNavMeshCreateParams) checkDetail(nverts []int) error {
	if len(p.DetailMeshes) != p.PolyCount*4 {
		return fmt.Errorf("%w: %d sub-mesh records for %d polygons", errDetailInconsistent, len(p.DetailMeshes)/4, p.PolyCount)
	}
	if len(p.DetailVerts) < p.DetailVertsCount*3 || len(p.DetailTris) < p.DetailTriCount*4 {
		return fmt.Errorf("%w: detail arrays shorter than their counts", errDetailInconsistent)
	}
	for i := 0; i < p.PolyCount; i++ {
		vb := int(p.DetailMeshes[i*4+0])
		ndv := int(p.DetailMeshes[i*4+1])
		tb := int(p.DetailMeshes[i*4+2])
		ntris := int(p.DetailMeshes[i*4+3])
		if ndv < nverts[i] || ndv > math.MaxUint8 || ntris > math.MaxUint8 || ntris == 0 {
			return fmt.Errorf("%w: polygon %d has %d detail verts and %d tris", errDetailInconsistent, i, ndv, ntris)
		}
		if vb+ndv > p.DetailVertsCount || tb+ntris > p.DetailTriCount {
			return fmt.Errorf("%w: polygon %d sub-mesh out of range", errDetailInconsistent, i)
		}
		for k := 0; k < ntris; k++ {
			t := p.DetailTris[(tb+k)*4:]
			if int(t[0]) >= ndv || int(t[1]) >= ndv || int(t[2]) >= ndv {
				return fmt.Errorf("%w: polygon %d triangle %d index out of range", errDetailInconsistent, i, k)
			}
		}
	}
	return nil
}

// DtCreateNavMesh builds the runtime mesh data from the params. A
// *ValidationError reports a broken precondition, a *PackError a failure
// while packing the detail data.
func DtCreateNavMesh(p *DtNavMeshCreateParams) (*NavMeshData, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	nvp := p.Nvp

	nverts := make([]int, p.PolyCount)
	for i := 0; i < p.PolyCount; i++ {
		poly := p.Polys[i*2*nvp:]
		for j := 0; j < nvp && poly[j] != DT_NULL_IDX; j++ {
			nverts[i]++
		}
	}

	data := &NavMeshData{}
	hasDetail := p.hasDetail()
	if hasDetail {
		if err := p.checkDetail(nverts); err != nil {
			return nil, &PackError{Step: "detail", Err: err}
		}
	}

	// Store vertices
	data.Verts = make([]uint16, p.VertCount*3)
	copy(data.Verts, p.Verts[:p.VertCount*3])

	// Store polygons
	data.Polys = make([]DtPoly, p.PolyCount)
	for i := range data.Polys {
		src := p.Polys[i*2*nvp:]
		poly := &data.Polys[i]
		poly.Flags = p.PolyFlags[i]
		poly.SetArea(p.PolyAreas[i])
		for j := range poly.Verts {
			poly.Verts[j] = DT_NULL_IDX
		}
		for j := 0; j < nverts[i]; j++ {
			poly.Verts[j] = src[j]
			if src[nvp+j] == DT_NULL_IDX {
				poly.Neis[j] = DT_NULL_NEI
			} else {
				poly.Neis[j] = src[nvp+j] + 1
			}
		}
		poly.VertCount = uint8(nverts[i])
	}

	// Store detail meshes and vertices.
	// The nav polygon vertices are stored as the first vertices on each mesh.
	// We compress the mesh data by skipping them and using the navmesh coordinates.
	data.DetailMeshes = make([]DtPolyDetail, p.PolyCount)
	if hasDetail {
		vbase := 0
		for i := 0; i < p.PolyCount; i++ {
			dtl := &data.DetailMeshes[i]
			vb := int(p.DetailMeshes[i*4+0])
			ndv := int(p.DetailMeshes[i*4+1])
			nv := nverts[i]
			dtl.VertBase = uint32(vbase)
			dtl.VertCount = uint8(ndv - nv)
			dtl.TriBase = p.DetailMeshes[i*4+2]
			dtl.TriCount = uint8(p.DetailMeshes[i*4+3])
			data.DetailVerts = append(data.DetailVerts, p.DetailVerts[(vb+nv)*3:(vb+ndv)*3]...)
			vbase += ndv - nv
		}
		data.DetailTris = make([]uint8, p.DetailTriCount*4)
		copy(data.DetailTris, p.DetailTris[:p.DetailTriCount*4])
	} else {
		// Create dummy detail mesh by triangulating polys.
		tbase := 0
		for i := 0; i < p.PolyCount; i++ {
			dtl := &data.DetailMeshes[i]
			nv := nverts[i]
			dtl.TriBase = uint32(tbase)
			dtl.TriCount = uint8(nv - 2)
			for j := 2; j < nv; j++ {
				// Bit for each edge that belongs to poly boundary.
				flags := uint8(1 << 2)
				if j == 2 {
					flags |= 1 << 0
				}
				if j == nv-1 {
					flags |= 1 << 4
				}
				data.DetailTris = append(data.DetailTris, 0, uint8(j-1), uint8(j), flags)
				tbase++
			}
		}
	}

	// Store and create BVtree.
	if p.BuildBvTree {
		data.BvTree = createBVTree(p, hasDetail)
	}

	data.Header = DtMeshHeader{
		Magic:           DT_NAVMESH_MAGIC,
		Version:         DT_NAVMESH_VERSION,
		PolyCount:       int32(p.PolyCount),
		VertCount:       int32(p.VertCount),
		Nvp:             int32(nvp),
		DetailMeshCount: int32(p.PolyCount),
		DetailVertCount: int32(len(data.DetailVerts) / 3),
		DetailTriCount:  int32(len(data.DetailTris) / 4),
		BvNodeCount:     int32(len(data.BvTree)),
		WalkableHeight:  p.WalkableHeight,
		WalkableRadius:  p.WalkableRadius,
		WalkableClimb:   p.WalkableClimb,
		Cs:              p.Cs,
		Ch:              p.Ch,
		Bmin:            p.Bmin,
		Bmax:            p.Bmax,
		BvQuantFactor:   1.0 / p.Cs,
		BuildBvTree:     p.BuildBvTree,
	}
	return data, nil
}

// DtCreateNavMeshData is DtCreateNavMesh followed by serialization.
func DtCreateNavMeshData(p *DtNavMeshCreateParams) ([]byte, error) {
	data, err := DtCreateNavMesh(p)
	if err != nil {
		return nil, err
	}
	return data.ToBin(), nil
}
