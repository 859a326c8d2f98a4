package detour

import (
	"math"

	"github.com/gorustyt/solonav/common"
)

// DtNavMesh is a loaded, immutable navigation mesh. All methods are safe
// for concurrent use.
type DtNavMesh struct {
	header       DtMeshHeader
	verts        []float32 // world space (x, y, z) per vertex
	polys        []DtPoly
	detailMeshes []DtPolyDetail
	detailVerts  []float32
	detailTris   []uint8
	bvTree       []DtBVNode
}

// NewDtNavMesh parses and validates a serialized mesh.
func NewDtNavMesh(bin []byte) (*DtNavMesh, error) {
	data := &NavMeshData{}
	if err := data.FromBin(bin); err != nil {
		return nil, err
	}
	return NewDtNavMeshFromData(data), nil
}

// NewDtNavMeshFromData builds the runtime mesh from already validated data.
func NewDtNavMeshFromData(data *NavMeshData) *DtNavMesh {
	h := data.Header
	m := &DtNavMesh{
		header:       h,
		verts:        make([]float32, len(data.Verts)),
		polys:        data.Polys,
		detailMeshes: data.DetailMeshes,
		detailVerts:  data.DetailVerts,
		detailTris:   data.DetailTris,
		bvTree:       data.BvTree,
	}
	for i := 0; i < len(data.Verts)/3; i++ {
		iv := common.GetVert3(data.Verts, i)
		v := common.GetVert3(m.verts, i)
		v[0] = h.Bmin[0] + float32(iv[0])*h.Cs
		v[1] = h.Bmin[1] + float32(iv[1])*h.Ch
		v[2] = h.Bmin[2] + float32(iv[2])*h.Cs
	}
	return m
}

func (m *DtNavMesh) GetHeader() DtMeshHeader { return m.header }
func (m *DtNavMesh) PolyCount() int          { return len(m.polys) }
func (m *DtNavMesh) VertCount() int          { return len(m.verts) / 3 }

// GetVert returns the world position of vertex i.
func (m *DtNavMesh) GetVert(i int) []float32 { return common.GetVert3(m.verts, i) }

// GetBVTree returns the bounding volume nodes, empty when the mesh was
// packed without a tree. The slice must not be modified.
func (m *DtNavMesh) GetBVTree() []DtBVNode { return m.bvTree }

// GetPolyRef returns the reference of the polygon at index i.
func (m *DtNavMesh) GetPolyRef(i int) DtPolyRef { return dtEncodePolyRef(i) }

func (m *DtNavMesh) IsValidPolyRef(ref DtPolyRef) bool {
	ip := dtDecodePolyRef(ref)
	return ip >= 0 && ip < len(m.polys)
}

func (m *DtNavMesh) GetPolyByRef(ref DtPolyRef) (*DtPoly, DtStatus) {
	if !m.IsValidPolyRef(ref) {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	return &m.polys[dtDecodePolyRef(ref)], DT_SUCCESS
}

func (m *DtNavMesh) getPolyByRefUnsafe(ref DtPolyRef) *DtPoly {
	return &m.polys[dtDecodePolyRef(ref)]
}

func (m *DtNavMesh) GetPolyFlags(ref DtPolyRef) (uint16, DtStatus) {
	poly, status := m.GetPolyByRef(ref)
	if status.Failed() {
		return 0, status
	}
	return poly.Flags, DT_SUCCESS
}

func (m *DtNavMesh) GetPolyArea(ref DtPolyRef) (uint8, DtStatus) {
	poly, status := m.GetPolyByRef(ref)
	if status.Failed() {
		return 0, status
	}
	return poly.GetArea(), DT_SUCCESS
}

// polyVerts copies the world positions of the polygon into out.
func (m *DtNavMesh) polyVerts(poly *DtPoly, out []float32) int {
	nv := int(poly.VertCount)
	for i := 0; i < nv; i++ {
		copy(out[i*3:i*3+3], common.GetVert3(m.verts, int(poly.Verts[i])))
	}
	return nv
}

// GetPolyVerts returns the world positions of the polygon vertices.
func (m *DtNavMesh) GetPolyVerts(ref DtPolyRef) ([]float32, DtStatus) {
	poly, status := m.GetPolyByRef(ref)
	if status.Failed() {
		return nil, status
	}
	out := make([]float32, int(poly.VertCount)*3)
	m.polyVerts(poly, out)
	return out, DT_SUCCESS
}

// detailTriVerts resolves the three corners of a detail triangle.
func (m *DtNavMesh) detailTriVerts(poly *DtPoly, pd *DtPolyDetail, t []uint8, v *[3][]float32) {
	for j := 0; j < 3; j++ {
		if t[j] < poly.VertCount {
			v[j] = common.GetVert3(m.verts, int(poly.Verts[t[j]]))
		} else {
			v[j] = common.GetVert3(m.detailVerts, int(pd.VertBase)+int(t[j]-poly.VertCount))
		}
	}
}

// GetDetailTriangles returns the detail triangles of a polygon as world
// space vertex triples.
func (m *DtNavMesh) GetDetailTriangles(ref DtPolyRef) ([]float32, DtStatus) {
	poly, status := m.GetPolyByRef(ref)
	if status.Failed() {
		return nil, status
	}
	pd := &m.detailMeshes[dtDecodePolyRef(ref)]
	out := make([]float32, 0, int(pd.TriCount)*9)
	var v [3][]float32
	for i := 0; i < int(pd.TriCount); i++ {
		m.detailTriVerts(poly, pd, m.detailTris[(int(pd.TriBase)+i)*4:], &v)
		out = append(out, v[0]...)
		out = append(out, v[1]...)
		out = append(out, v[2]...)
	}
	return out, DT_SUCCESS
}

func dtGetDetailTriEdgeFlags(triFlags uint8, edgeIndex int) uint8 {
	return (triFlags >> (edgeIndex * 2)) & 0x3
}

// closestPointOnDetailEdges finds the closest point on the detail mesh
// edges of the polygon, optionally limited to the polygon boundary.
func (m *DtNavMesh) closestPointOnDetailEdges(ip int, pos []float32, onlyBoundary bool) []float32 {
	poly := &m.polys[ip]
	pd := &m.detailMeshes[ip]

	dmin := float32(math.MaxFloat32)
	tmin := float32(0)
	var pmin, pmax []float32
	var v [3][]float32
	const anyBoundaryEdge = (DT_DETAIL_EDGE_BOUNDARY << 0) | (DT_DETAIL_EDGE_BOUNDARY << 2) | (DT_DETAIL_EDGE_BOUNDARY << 4)

	for i := 0; i < int(pd.TriCount); i++ {
		tris := m.detailTris[(int(pd.TriBase)+i)*4:]
		if onlyBoundary && (tris[3]&anyBoundaryEdge) == 0 {
			continue
		}
		m.detailTriVerts(poly, pd, tris, &v)
		for k, j := 0, 2; k < 3; j, k = k, k+1 {
			if (dtGetDetailTriEdgeFlags(tris[3], j)&DT_DETAIL_EDGE_BOUNDARY) == 0 && (onlyBoundary || tris[j] < tris[k]) {
				// Only looking at boundary edges and this is internal, or
				// this is an inner edge that we will see again or have already seen.
				continue
			}
			d, t := common.DistancePtSegSqr2D(pos, v[j], v[k])
			if d < dmin {
				dmin = d
				tmin = t
				pmin = v[j]
				pmax = v[k]
			}
		}
	}
	closest := make([]float32, 3)
	if pmin == nil {
		copy(closest, pos)
		return closest
	}
	common.Vlerp(closest, pmin, pmax, tmin)
	return closest
}

// getPolyHeight returns the height of the polygon surface below or above
// pos. It reports false when pos is outside the polygon in the xz-plane.
func (m *DtNavMesh) getPolyHeight(ip int, pos []float32) (float32, bool) {
	poly := &m.polys[ip]
	var verts [DT_VERTS_PER_POLYGON * 3]float32
	nv := m.polyVerts(poly, verts[:])
	if !dtPointInPolygon(pos, verts[:], nv) {
		return 0, false
	}

	// Find height at the location.
	pd := &m.detailMeshes[ip]
	var v [3][]float32
	for j := 0; j < int(pd.TriCount); j++ {
		t := m.detailTris[(int(pd.TriBase)+j)*4:]
		m.detailTriVerts(poly, pd, t, &v)
		if h, ok := dtClosestHeightPointTriangle(pos, v[0], v[1], v[2]); ok {
			return h, true
		}
	}

	// If all triangle checks failed above (can happen with degenerate triangles
	// or larger floating point values) the point is on an edge, so just select
	// closest.
	closest := m.closestPointOnDetailEdges(ip, pos, false)
	return closest[1], true
}

// closestPointOnPoly returns the point on the polygon surface closest to
// pos, and whether pos lies over the polygon in the xz-plane.
func (m *DtNavMesh) closestPointOnPoly(ref DtPolyRef, pos []float32) (closest []float32, posOverPoly bool) {
	ip := dtDecodePolyRef(ref)
	if h, ok := m.getPolyHeight(ip, pos); ok {
		closest = []float32{pos[0], h, pos[2]}
		return closest, true
	}
	return m.closestPointOnDetailEdges(ip, pos, true), false
}

// polyOverlapsBox tests the polygon's vertex bounds against the box.
func (m *DtNavMesh) polyOverlapsBox(p *DtPoly, qmin, qmax []float32) bool {
	var bmin, bmax [3]float32
	var verts [DT_VERTS_PER_POLYGON * 3]float32
	nv := m.polyVerts(p, verts[:])
	copy(bmin[:], verts[:3])
	copy(bmax[:], verts[:3])
	for j := 1; j < nv; j++ {
		common.Vmin(bmin[:], verts[j*3:])
		common.Vmax(bmax[:], verts[j*3:])
	}
	return common.OverlapBounds(qmin, qmax, bmin[:], bmax[:])
}

// queryPolygons collects the polygons whose bounds overlap the box.
func (m *DtNavMesh) queryPolygons(qmin, qmax []float32, filter *DtQueryFilter, maxPolys int) []DtPolyRef {
	h := &m.header
	var polys []DtPolyRef

	// A box outside the mesh bounds would be clamped onto its border below.
	if !common.OverlapBounds(qmin, qmax, h.Bmin[:], h.Bmax[:]) {
		return nil
	}

	if len(m.bvTree) > 0 {
		tbmin := h.Bmin
		tbmax := h.Bmax
		qfac := h.BvQuantFactor
		// Calculate quantized box
		var bmin, bmax [3]uint16
		for k := 0; k < 3; k++ {
			// Clamp query box to world box.
			lo := common.Clamp(qmin[k], tbmin[k], tbmax[k]) - tbmin[k]
			hi := common.Clamp(qmax[k], tbmin[k], tbmax[k]) - tbmin[k]
			// Quantize
			bmin[k] = uint16(qfac*lo) & 0xfffe
			bmax[k] = uint16(qfac*hi+1) | 1
		}

		// Traverse tree
		for i := 0; i < len(m.bvTree); {
			node := &m.bvTree[i]
			overlap := common.OverlapQuantBounds(bmin[:], bmax[:], node.Bmin[:], node.Bmax[:])
			isLeafNode := node.I >= 0

			if isLeafNode && overlap {
				// Quantization grows the query box, re-test the real bounds.
				ref := dtEncodePolyRef(int(node.I))
				p := &m.polys[node.I]
				if filter.PassFilter(ref, p) && m.polyOverlapsBox(p, qmin, qmax) && len(polys) < maxPolys {
					polys = append(polys, ref)
				}
			}

			if overlap || isLeafNode {
				i++
			} else {
				i += int(-node.I)
			}
		}
		return polys
	}

	for i := range m.polys {
		p := &m.polys[i]
		ref := dtEncodePolyRef(i)
		if !filter.PassFilter(ref, p) {
			continue
		}
		if m.polyOverlapsBox(p, qmin, qmax) && len(polys) < maxPolys {
			polys = append(polys, ref)
		}
	}
	return polys
}

// getPortalPoints returns the shared edge between two adjacent polygons.
func (m *DtNavMesh) getPortalPoints(from, to DtPolyRef) (left, right []float32, status DtStatus) {
	fromPoly, status := m.GetPolyByRef(from)
	if status.Failed() {
		return nil, nil, status
	}
	if !m.IsValidPolyRef(to) {
		return nil, nil, DT_FAILURE | DT_INVALID_PARAM
	}
	nv := int(fromPoly.VertCount)
	for j := 0; j < nv; j++ {
		if fromPoly.Neis[j] == DT_NULL_NEI || DtPolyRef(fromPoly.Neis[j]) != to {
			continue
		}
		v0 := int(fromPoly.Verts[j])
		v1 := int(fromPoly.Verts[(j+1)%nv])
		left = append([]float32(nil), common.GetVert3(m.verts, v0)...)
		right = append([]float32(nil), common.GetVert3(m.verts, v1)...)
		return left, right, DT_SUCCESS
	}
	return nil, nil, DT_FAILURE | DT_INVALID_PARAM
}

// getEdgeMidPoint returns the middle of the portal between two polygons.
func (m *DtNavMesh) getEdgeMidPoint(from, to DtPolyRef, mid []float32) DtStatus {
	left, right, status := m.getPortalPoints(from, to)
	if status.Failed() {
		return status
	}
	mid[0] = (left[0] + right[0]) * 0.5
	mid[1] = (left[1] + right[1]) * 0.5
	mid[2] = (left[2] + right[2]) * 0.5
	return DT_SUCCESS
}
