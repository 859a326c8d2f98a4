package recast

import (
	"fmt"

	"github.com/gorustyt/solonav/common"
)

const (
	vertexBucketCount = 1 << 12
	removableFlag     = 0x80000000
	indexMask         = 0x0fffffff
)

// / Represents a polygon mesh suitable for use in building a navigation mesh.
type RcPolyMesh struct {
	Verts    []uint16 // The mesh vertices. [Form: (x, y, z) * NVerts]
	Polys    []uint16 // Polygon and neighbour data. [Length: MaxPolys * 2 * Nvp]
	Regs     []uint16 // The region id assigned to each polygon.
	Flags    []uint16 // The user defined flags for each polygon.
	Areas    []uint8  // The area id assigned to each polygon.
	NVerts   int
	NPolys   int
	MaxPolys int
	Nvp      int // The maximum number of vertices per polygon.
	Bmin     [3]float32
	Bmax     [3]float32
	Cs       float32
	Ch       float32

	MaxEdgeError float32 // The max error of the polygon edges in the mesh.
}

// Poly returns the 2*Nvp slot slice of polygon i: vertex indices followed by
// neighbour polygon indices.
func (m *RcPolyMesh) Poly(i int) []uint16 {
	return m.Polys[i*m.Nvp*2 : (i+1)*m.Nvp*2]
}

// PolyVertCount returns the number of used vertex slots of polygon i.
func (m *RcPolyMesh) PolyVertCount(i int) int {
	return countPolyVerts(m.Poly(i), m.Nvp)
}

type rcEdge struct {
	vert     [2]uint16
	polyEdge [2]uint16
	poly     [2]uint16
}

func buildMeshAdjacency(polys []uint16, npolys, nverts, vertsPerPoly int) {
	maxEdgeCount := npolys * vertsPerPoly
	firstEdge := make([]uint16, nverts)
	nextEdge := make([]uint16, maxEdgeCount)
	edges := make([]rcEdge, 0, maxEdgeCount)
	for i := range firstEdge {
		firstEdge[i] = RC_MESH_NULL_IDX
	}

	polyEdge := func(t []uint16, j int) (v0, v1 uint16) {
		v0 = t[j]
		if j+1 >= vertsPerPoly || t[j+1] == RC_MESH_NULL_IDX {
			return v0, t[0]
		}
		return v0, t[j+1]
	}

	for i := 0; i < npolys; i++ {
		t := polys[i*vertsPerPoly*2:]
		for j := 0; j < vertsPerPoly; j++ {
			if t[j] == RC_MESH_NULL_IDX {
				break
			}
			v0, v1 := polyEdge(t, j)
			if v0 < v1 {
				edges = append(edges, rcEdge{
					vert:     [2]uint16{v0, v1},
					poly:     [2]uint16{uint16(i), uint16(i)},
					polyEdge: [2]uint16{uint16(j), 0},
				})
				// Insert edge
				nextEdge[len(edges)-1] = firstEdge[v0]
				firstEdge[v0] = uint16(len(edges) - 1)
			}
		}
	}

	for i := 0; i < npolys; i++ {
		t := polys[i*vertsPerPoly*2:]
		for j := 0; j < vertsPerPoly; j++ {
			if t[j] == RC_MESH_NULL_IDX {
				break
			}
			v0, v1 := polyEdge(t, j)
			if v0 > v1 {
				for e := firstEdge[v1]; e != RC_MESH_NULL_IDX; e = nextEdge[e] {
					edge := &edges[e]
					if edge.vert[1] == v0 && edge.poly[0] == edge.poly[1] {
						edge.poly[1] = uint16(i)
						edge.polyEdge[1] = uint16(j)
						break
					}
				}
			}
		}
	}

	// Store adjacency
	for _, e := range edges {
		if e.poly[0] != e.poly[1] {
			p0 := polys[int(e.poly[0])*vertsPerPoly*2:]
			p1 := polys[int(e.poly[1])*vertsPerPoly*2:]
			p0[vertsPerPoly+int(e.polyEdge[0])] = e.poly[1]
			p1[vertsPerPoly+int(e.polyEdge[1])] = e.poly[0]
		}
	}
}

func computeVertexHash(x, y, z int) int {
	const (
		h1 = 0x8da6b343 // Large multiplicative constants;
		h2 = 0xd8163841 // here arbitrarily chosen primes
		h3 = 0xcb1ab31f
	)
	n := uint32(h1)*uint32(x) + uint32(h2)*uint32(y) + uint32(h3)*uint32(z)
	return int(n & (vertexBucketCount - 1))
}

type vertexWelder struct {
	verts     []uint16
	firstVert []int
	nextVert  []int
}

func newVertexWelder(maxVertices int) *vertexWelder {
	w := &vertexWelder{
		verts:     make([]uint16, 0, maxVertices*3),
		firstVert: make([]int, vertexBucketCount),
		nextVert:  make([]int, 0, maxVertices),
	}
	for i := range w.firstVert {
		w.firstVert[i] = -1
	}
	return w
}

// add returns the index of a vertex at (x, z) whose height is within 2
// cells of y, creating it when no such vertex exists.
func (w *vertexWelder) add(x, y, z uint16) uint16 {
	bucket := computeVertexHash(int(x), 0, int(z))
	i := w.firstVert[bucket]
	for i != -1 {
		v := w.verts[i*3:]
		if v[0] == x && common.Abs(int(v[1])-int(y)) <= 2 && v[2] == z {
			return uint16(i)
		}
		i = w.nextVert[i]
	}

	// Could not find, create new.
	i = len(w.nextVert)
	w.verts = append(w.verts, x, y, z)
	w.nextVert = append(w.nextVert, w.firstVert[bucket])
	w.firstVert[bucket] = i
	return uint16(i)
}

// diagonalie returns true iff (v_i, v_j) is a proper internal *or* external
// diagonal of P, *ignoring edges incident to v_i and v_j*.
func diagonalie(i, j, n int, verts []int, indices []int, loose bool) bool {
	d0 := verts[(indices[i]&indexMask)*4:]
	d1 := verts[(indices[j]&indexMask)*4:]

	// For each edge (k,k+1) of P
	for k := 0; k < n; k++ {
		k1 := common.Next(k, n)
		// Skip edges incident to i or j
		if k == i || k1 == i || k == j || k1 == j {
			continue
		}
		p0 := verts[(indices[k]&indexMask)*4:]
		p1 := verts[(indices[k1]&indexMask)*4:]
		if common.Vequal2(d0, p0) || common.Vequal2(d1, p0) || common.Vequal2(d0, p1) || common.Vequal2(d1, p1) {
			continue
		}
		if loose {
			if common.IntersectProp(d0, d1, p0, p1) {
				return false
			}
		} else if common.Intersect(d0, d1, p0, p1) {
			return false
		}
	}
	return true
}

// inCone returns true iff the diagonal (i,j) is strictly internal to the
// polygon P in the neighborhood of the i endpoint.
func inCone(i, j, n int, verts []int, indices []int, loose bool) bool {
	pi := verts[(indices[i]&indexMask)*4:]
	pj := verts[(indices[j]&indexMask)*4:]
	pi1 := verts[(indices[common.Next(i, n)]&indexMask)*4:]
	pin1 := verts[(indices[common.Prev(i, n)]&indexMask)*4:]

	// If P[i] is a convex vertex [ i+1 left or on (i-1,i) ].
	if common.LeftOn(pin1, pi, pi1) {
		if loose {
			return common.LeftOn(pi, pj, pin1) && common.LeftOn(pj, pi, pi1)
		}
		return common.Left(pi, pj, pin1) && common.Left(pj, pi, pi1)
	}
	// Assume (i-1,i,i+1) not collinear.
	// else P[i] is reflex.
	return !(common.LeftOn(pi, pj, pi1) && common.LeftOn(pj, pi, pin1))
}

// diagonal returns true iff (v_i, v_j) is a proper internal diagonal of P.
func diagonal(i, j, n int, verts []int, indices []int) bool {
	return inCone(i, j, n, verts, indices, false) && diagonalie(i, j, n, verts, indices, false)
}

func diagonalLoose(i, j, n int, verts []int, indices []int) bool {
	return inCone(i, j, n, verts, indices, true) && diagonalie(i, j, n, verts, indices, true)
}

// triangulate ear-clips the contour polygon (verts in x,y,z,r form) and
// appends vertex index triples to tris. A negative count means the polygon
// could not be fully triangulated and only -ntris triangles were produced.
func triangulate(n int, verts []int, indices []int, tris []int) ([]int, int) {
	ntris := 0

	// The last bit of the index is used to indicate if the vertex can be removed.
	for i := 0; i < n; i++ {
		i1 := common.Next(i, n)
		i2 := common.Next(i1, n)
		if diagonal(i, i2, n, verts, indices) {
			indices[i1] |= removableFlag
		}
	}

	segLen := func(a, b int) int {
		p0 := verts[(indices[a]&indexMask)*4:]
		p2 := verts[(indices[b]&indexMask)*4:]
		dx := p2[0] - p0[0]
		dz := p2[2] - p0[2]
		return dx*dx + dz*dz
	}

	for n > 3 {
		minLen := -1
		mini := -1
		for i := 0; i < n; i++ {
			i1 := common.Next(i, n)
			if indices[i1]&removableFlag != 0 {
				l := segLen(i, common.Next(i1, n))
				if minLen < 0 || l < minLen {
					minLen = l
					mini = i
				}
			}
		}

		if mini == -1 {
			// We might get here because the contour has overlapping segments.
			// Try to recover by loosing up the inCone test a bit so that a
			// diagonal can be found and we can continue.
			minLen = -1
			for i := 0; i < n; i++ {
				i1 := common.Next(i, n)
				i2 := common.Next(i1, n)
				if diagonalLoose(i, i2, n, verts, indices) {
					l := segLen(i, common.Next(i2, n))
					if minLen < 0 || l < minLen {
						minLen = l
						mini = i
					}
				}
			}
			if mini == -1 {
				// The contour is messed up. This sometimes happens
				// if the contour simplification is too aggressive.
				return tris, -ntris
			}
		}

		i := mini
		i1 := common.Next(i, n)
		i2 := common.Next(i1, n)

		tris = append(tris, indices[i]&indexMask, indices[i1]&indexMask, indices[i2]&indexMask)
		ntris++

		// Removes P[i1] by copying P[i+1]...P[n-1] left one index.
		n--
		copy(indices[i1:n], indices[i1+1:n+1])

		if i1 >= n {
			i1 = 0
		}
		i = common.Prev(i1, n)
		// Update diagonal flags.
		if diagonal(common.Prev(i, n), i1, n, verts, indices) {
			indices[i] |= removableFlag
		} else {
			indices[i] &= indexMask
		}
		if diagonal(i, common.Next(i1, n), n, verts, indices) {
			indices[i1] |= removableFlag
		} else {
			indices[i1] &= indexMask
		}
	}

	// Append the remaining triangle.
	tris = append(tris, indices[0]&indexMask, indices[1]&indexMask, indices[2]&indexMask)
	ntris++
	return tris, ntris
}

func countPolyVerts(p []uint16, nvp int) int {
	for i := 0; i < nvp; i++ {
		if p[i] == RC_MESH_NULL_IDX {
			return i
		}
	}
	return nvp
}

func uleft(a, b, c []uint16) bool {
	return (int(b[0])-int(a[0]))*(int(c[2])-int(a[2]))-(int(c[0])-int(a[0]))*(int(b[2])-int(a[2])) < 0
}

// getPolyMergeValue returns the squared length of the edge shared by pa and
// pb when merging them keeps the result convex and within nvp vertices, or
// -1 when they cannot be merged.
func getPolyMergeValue(pa, pb []uint16, verts []uint16, nvp int) (value, ea, eb int) {
	na := countPolyVerts(pa, nvp)
	nb := countPolyVerts(pb, nvp)

	// If the merged polygon would be too big, do not merge.
	if na+nb-2 > nvp {
		return -1, -1, -1
	}

	// Check if the polygons share an edge.
	ea = -1
	eb = -1
	for i := 0; i < na; i++ {
		va0 := pa[i]
		va1 := pa[(i+1)%na]
		if va0 > va1 {
			va0, va1 = va1, va0
		}
		for j := 0; j < nb; j++ {
			vb0 := pb[j]
			vb1 := pb[(j+1)%nb]
			if vb0 > vb1 {
				vb0, vb1 = vb1, vb0
			}
			if va0 == vb0 && va1 == vb1 {
				ea = i
				eb = j
				break
			}
		}
	}

	// No common edge, cannot merge.
	if ea == -1 || eb == -1 {
		return -1, -1, -1
	}

	// Check to see if the merged polygon would be convex.
	va := pa[(ea+na-1)%na]
	vb := pa[ea]
	vc := pb[(eb+2)%nb]
	if !uleft(verts[int(va)*3:], verts[int(vb)*3:], verts[int(vc)*3:]) {
		return -1, -1, -1
	}

	va = pb[(eb+nb-1)%nb]
	vb = pb[eb]
	vc = pa[(ea+2)%na]
	if !uleft(verts[int(va)*3:], verts[int(vb)*3:], verts[int(vc)*3:]) {
		return -1, -1, -1
	}

	va = pa[ea]
	vb = pa[(ea+1)%na]
	dx := int(verts[int(va)*3+0]) - int(verts[int(vb)*3+0])
	dz := int(verts[int(va)*3+2]) - int(verts[int(vb)*3+2])
	return dx*dx + dz*dz, ea, eb
}

func mergePolyVerts(pa, pb []uint16, ea, eb int, tmp []uint16, nvp int) {
	na := countPolyVerts(pa, nvp)
	nb := countPolyVerts(pb, nvp)

	// Merge polygons.
	for i := range tmp[:nvp] {
		tmp[i] = RC_MESH_NULL_IDX
	}
	n := 0
	// Add pa
	for i := 0; i < na-1; i++ {
		tmp[n] = pa[(ea+1+i)%na]
		n++
	}
	// Add pb
	for i := 0; i < nb-1; i++ {
		tmp[n] = pb[(eb+1+i)%nb]
		n++
	}
	copy(pa[:nvp], tmp[:nvp])
}

// RcBuildPolyMesh converts the contour set into convex polygons with at most
// nvp vertices each and links polygons sharing an edge.
func RcBuildPolyMesh(ctx *RcContext, cset *RcContourSet, nvp int) (*RcPolyMesh, error) {
	ctx.StartTimer(RC_TIMER_BUILD_POLYMESH)
	defer ctx.StopTimer(RC_TIMER_BUILD_POLYMESH)

	if nvp < 3 || nvp > RC_VERTS_PER_POLYGON {
		return nil, fmt.Errorf("recast: max vertices per polygon %d out of range [3,%d]", nvp, RC_VERTS_PER_POLYGON)
	}

	mesh := &RcPolyMesh{
		Bmin:         cset.Bmin,
		Bmax:         cset.Bmax,
		Cs:           cset.Cs,
		Ch:           cset.Ch,
		Nvp:          nvp,
		MaxEdgeError: cset.MaxError,
	}

	maxVertices := 0
	maxTris := 0
	maxVertsPerCont := 0
	for _, cont := range cset.Conts {
		// Skip null contours.
		if cont.NVerts() < 3 {
			continue
		}
		maxVertices += cont.NVerts()
		maxTris += cont.NVerts() - 2
		maxVertsPerCont = max(maxVertsPerCont, cont.NVerts())
	}
	if maxVertices >= 0xfffe {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManyVertices, maxVertices, 0xfffe)
	}

	welder := newVertexWelder(maxVertices)
	mesh.MaxPolys = maxTris
	mesh.Polys = make([]uint16, 0, maxTris*nvp*2)
	mesh.Regs = make([]uint16, 0, maxTris)
	mesh.Areas = make([]uint8, 0, maxTris)

	indices := make([]int, maxVertsPerCont)
	tris := make([]int, 0, maxVertsPerCont*3)
	polys := make([]uint16, (maxVertsPerCont+1)*nvp)
	tmpPoly := polys[maxVertsPerCont*nvp:]

	for i, cont := range cset.Conts {
		// Skip null contours.
		if cont.NVerts() < 3 || cont.Area == RC_NULL_AREA {
			continue
		}

		// Triangulate contour
		for j := 0; j < cont.NVerts(); j++ {
			indices[j] = j
		}
		var ntris int
		tris, ntris = triangulate(cont.NVerts(), cont.Verts, indices, tris[:0])
		if ntris <= 0 {
			// Bad triangulation, should not happen.
			ctx.Warning("rcBuildPolyMesh: Bad triangulation Contour %d.", i)
			ntris = -ntris
		}

		// Add and merge vertices.
		for j := 0; j < cont.NVerts(); j++ {
			v := cont.Verts[j*4:]
			indices[j] = int(welder.add(uint16(v[0]), uint16(v[1]), uint16(v[2])))
		}

		// Build initial polygons.
		npolys := 0
		for j := range polys[:maxVertsPerCont*nvp] {
			polys[j] = RC_MESH_NULL_IDX
		}
		for j := 0; j < ntris; j++ {
			t := tris[j*3:]
			if t[0] != t[1] && t[0] != t[2] && t[1] != t[2] {
				polys[npolys*nvp+0] = uint16(indices[t[0]])
				polys[npolys*nvp+1] = uint16(indices[t[1]])
				polys[npolys*nvp+2] = uint16(indices[t[2]])
				npolys++
			}
		}
		if npolys == 0 {
			continue
		}

		// Merge polygons.
		if nvp > 3 {
			for {
				// Find best polygons to merge.
				bestMergeVal := 0
				bestPa, bestPb, bestEa, bestEb := 0, 0, 0, 0
				for j := 0; j < npolys-1; j++ {
					pj := polys[j*nvp : (j+1)*nvp]
					for k := j + 1; k < npolys; k++ {
						pk := polys[k*nvp : (k+1)*nvp]
						v, ea, eb := getPolyMergeValue(pj, pk, welder.verts, nvp)
						if v > bestMergeVal {
							bestMergeVal = v
							bestPa = j
							bestPb = k
							bestEa = ea
							bestEb = eb
						}
					}
				}
				if bestMergeVal <= 0 {
					// Could not merge any polygons, stop.
					break
				}
				// Found best, merge.
				pa := polys[bestPa*nvp : (bestPa+1)*nvp]
				pb := polys[bestPb*nvp : (bestPb+1)*nvp]
				mergePolyVerts(pa, pb, bestEa, bestEb, tmpPoly, nvp)
				if bestPb != npolys-1 {
					copy(pb, polys[(npolys-1)*nvp:npolys*nvp])
				}
				npolys--
			}
		}

		// Store polygons.
		for j := 0; j < npolys; j++ {
			mesh.Polys = append(mesh.Polys, polys[j*nvp:(j+1)*nvp]...)
			for k := 0; k < nvp; k++ {
				mesh.Polys = append(mesh.Polys, RC_MESH_NULL_IDX)
			}
			mesh.Regs = append(mesh.Regs, cont.Reg)
			mesh.Areas = append(mesh.Areas, cont.Area)
			mesh.NPolys++
			if mesh.NPolys > maxTris {
				return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManyPolygons, mesh.NPolys, maxTris)
			}
		}
	}

	mesh.Verts = welder.verts
	mesh.NVerts = len(welder.verts) / 3

	// Calculate adjacency.
	buildMeshAdjacency(mesh.Polys, mesh.NPolys, mesh.NVerts, nvp)

	// Just allocate the mesh flags array. The bake assigns them.
	mesh.Flags = make([]uint16, mesh.NPolys)

	if mesh.NVerts > 0xffff {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManyVertices, mesh.NVerts, 0xffff)
	}
	if mesh.NPolys > 0xffff {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManyPolygons, mesh.NPolys, 0xffff)
	}
	ctx.Progress("rcBuildPolyMesh: %d verts, %d polys", mesh.NVerts, mesh.NPolys)
	return mesh, nil
}
