package recast

import (
	"fmt"
	"math"

	"github.com/gorustyt/solonav/common"
)

const (
	rcUnsetHeight = 0xffff
	// Polygons built from more than one region carry this region id.
	RC_MULTIPLE_REGS = 0

	detailMaxVerts        = 127
	detailMaxTris         = 255 // Max tris for delaunay is 2n-2-k (n=num verts, k=num hull verts).
	detailMaxVertsPerEdge = 32

	evUndef = -1
	evHull  = -2
)

// / Contains triangle meshes that represent detailed height data associated
// / with the polygons in its associated polygon mesh object.
type RcPolyMeshDetail struct {
	Meshes  []uint32  // The sub-mesh data. [(vertBase, vertCount, triBase, triCount) * NMeshes]
	Verts   []float32 // The mesh vertices. [(x, y, z) * NVerts]
	Tris    []uint8   // The mesh triangles. [(vertA, vertB, vertC, flags) * NTris]
	NMeshes int
	NVerts  int
	NTris   int
}

type rcHeightPatch struct {
	data   []uint16
	xmin   int
	zmin   int
	width  int
	height int
}

func vdot2(a, b []float32) float32 {
	return a[0]*b[0] + a[2]*b[2]
}

func vdistSq2(p, q []float32) float32 {
	dx := q[0] - p[0]
	dz := q[2] - p[2]
	return dx*dx + dz*dz
}

func vdist2(p, q []float32) float32 {
	return common.Sqrtf(vdistSq2(p, q))
}

func vcross2(p1, p2, p3 []float32) float32 {
	u1 := p2[0] - p1[0]
	v1 := p2[2] - p1[2]
	u2 := p3[0] - p1[0]
	v2 := p3[2] - p1[2]
	return u1*v2 - v1*u2
}

func circumCircle(p1, p2, p3 []float32, c []float32) (r float32, ok bool) {
	const eps = 1e-6
	// Calculate the circle relative to p1, to avoid some precision issues.
	v1 := []float32{0, 0, 0}
	v2 := make([]float32, 3)
	v3 := make([]float32, 3)
	common.Vsub(v2, p2, p1)
	common.Vsub(v3, p3, p1)

	cp := vcross2(v1, v2, v3)
	if common.Abs(cp) > eps {
		v1Sq := vdot2(v1, v1)
		v2Sq := vdot2(v2, v2)
		v3Sq := vdot2(v3, v3)
		c[0] = (v1Sq*(v2[2]-v3[2]) + v2Sq*(v3[2]-v1[2]) + v3Sq*(v1[2]-v2[2])) / (2 * cp)
		c[1] = 0
		c[2] = (v1Sq*(v3[0]-v2[0]) + v2Sq*(v1[0]-v3[0]) + v3Sq*(v2[0]-v1[0])) / (2 * cp)
		r = vdist2(c, v1)
		common.Vadd(c, c, p1)
		return r, true
	}
	common.Vcopy(c, p1)
	return 0, false
}

func distPtTri(p, a, b, c []float32) float32 {
	v0 := make([]float32, 3)
	v1 := make([]float32, 3)
	v2 := make([]float32, 3)
	common.Vsub(v0, c, a)
	common.Vsub(v1, b, a)
	common.Vsub(v2, p, a)

	dot00 := vdot2(v0, v0)
	dot01 := vdot2(v0, v1)
	dot02 := vdot2(v0, v2)
	dot11 := vdot2(v1, v1)
	dot12 := vdot2(v1, v2)

	// Compute barycentric coordinates
	invDenom := 1.0 / (dot00*dot11 - dot01*dot01)
	u := (dot11*dot02 - dot01*dot12) * invDenom
	v := (dot00*dot12 - dot01*dot02) * invDenom

	// If point lies inside the triangle, return interpolated y-coord.
	const eps = 1e-4
	if u >= -eps && v >= -eps && (u+v) <= 1+eps {
		y := a[1] + v0[1]*u + v1[1]*v
		return common.Abs(y - p[1])
	}
	return math.MaxFloat32
}

func distancePtSeg(pt, p, q []float32) float32 {
	pqx := q[0] - p[0]
	pqy := q[1] - p[1]
	pqz := q[2] - p[2]
	dx := pt[0] - p[0]
	dy := pt[1] - p[1]
	dz := pt[2] - p[2]
	d := pqx*pqx + pqy*pqy + pqz*pqz
	t := pqx*dx + pqy*dy + pqz*dz
	if d > 0 {
		t /= d
	}
	t = common.Clamp(t, 0, 1)

	dx = p[0] + t*pqx - pt[0]
	dy = p[1] + t*pqy - pt[1]
	dz = p[2] + t*pqz - pt[2]
	return dx*dx + dy*dy + dz*dz
}

func distancePtSeg2d(pt, p, q []float32) float32 {
	d, _ := common.DistancePtSegSqr2D(pt, p, q)
	return d
}

func distToTriMesh(p, verts []float32, tris []int) float32 {
	dmin := float32(math.MaxFloat32)
	for i := 0; i < len(tris)/4; i++ {
		va := verts[tris[i*4+0]*3:]
		vb := verts[tris[i*4+1]*3:]
		vc := verts[tris[i*4+2]*3:]
		d := distPtTri(p, va, vb, vc)
		if d < dmin {
			dmin = d
		}
	}
	if dmin == math.MaxFloat32 {
		return -1
	}
	return dmin
}

// distToPoly returns the squared xz distance from p to the polygon outline,
// negative when p is inside.
func distToPoly(nvert int, verts, p []float32) float32 {
	dmin := float32(math.MaxFloat32)
	c := false
	for i, j := 0, nvert-1; i < nvert; j, i = i, i+1 {
		vi := verts[i*3:]
		vj := verts[j*3:]
		if ((vi[2] > p[2]) != (vj[2] > p[2])) &&
			(p[0] < (vj[0]-vi[0])*(p[2]-vi[2])/(vj[2]-vi[2])+vi[0]) {
			c = !c
		}
		dmin = min(dmin, distancePtSeg2d(p, vj, vi))
	}
	if c {
		return -dmin
	}
	return dmin
}

func getHeight(fx, fy, fz, ics, ch float32, radius int, hp *rcHeightPatch) uint16 {
	ix := int(common.Floorf(fx*ics + 0.01))
	iz := int(common.Floorf(fz*ics + 0.01))
	ix = common.Clamp(ix-hp.xmin, 0, hp.width-1)
	iz = common.Clamp(iz-hp.zmin, 0, hp.height-1)
	h := hp.data[ix+iz*hp.width]
	if h != rcUnsetHeight {
		return h
	}

	// Special case when data might be bad.
	// Walk adjacent cells in a spiral up to 'radius', and look
	// for a pixel which has a valid height.
	x, z, dx, dz := 1, 0, 1, 0
	maxSize := radius*2 + 1
	maxIter := maxSize*maxSize - 1

	nextRingIterStart := 8
	nextRingIters := 16

	dmin := float32(math.MaxFloat32)
	for i := 0; i < maxIter; i++ {
		nx := ix + x
		nz := iz + z
		if nx >= 0 && nz >= 0 && nx < hp.width && nz < hp.height {
			nh := hp.data[nx+nz*hp.width]
			if nh != rcUnsetHeight {
				d := common.Abs(float32(nh)*ch - fy)
				if d < dmin {
					h = nh
					dmin = d
				}
			}
		}

		// Stop at the first ring that produced a height: the best height in
		// the closest ring wins over anything further out.
		if i+1 == nextRingIterStart {
			if h != rcUnsetHeight {
				break
			}
			nextRingIterStart += nextRingIters
			nextRingIters += 8
		}

		if x == z || (x < 0 && x == -z) || (x > 0 && x == 1-z) {
			dx, dz = -dz, dx
		}
		x += dx
		z += dz
	}
	return h
}

type delaunay struct {
	ctx      *RcContext
	pts      []float32
	npts     int
	edges    []int
	maxEdges int
	nfaces   int
}

func (d *delaunay) nedges() int { return len(d.edges) / 4 }

func (d *delaunay) findEdge(s, t int) int {
	for i := 0; i < d.nedges(); i++ {
		e := d.edges[i*4:]
		if (e[0] == s && e[1] == t) || (e[0] == t && e[1] == s) {
			return i
		}
	}
	return evUndef
}

func (d *delaunay) addEdge(s, t, l, r int) int {
	if d.nedges() >= d.maxEdges {
		d.ctx.Errorf("addEdge: Too many edges (%d/%d).", d.nedges(), d.maxEdges)
		return evUndef
	}
	// Add edge if not already in the triangulation.
	if d.findEdge(s, t) != evUndef {
		return evUndef
	}
	d.edges = append(d.edges, s, t, l, r)
	return d.nedges() - 1
}

func updateLeftFace(e []int, s, t, f int) {
	if e[0] == s && e[1] == t && e[2] == evUndef {
		e[2] = f
	} else if e[1] == s && e[0] == t && e[3] == evUndef {
		e[3] = f
	}
}

func overlapSegSeg2d(a, b, c, d []float32) bool {
	a1 := vcross2(a, b, d)
	a2 := vcross2(a, b, c)
	if a1*a2 < 0 {
		a3 := vcross2(c, d, a)
		a4 := a3 + a2 - a1
		if a3*a4 < 0 {
			return true
		}
	}
	return false
}

func (d *delaunay) overlapEdges(s1, t1 int) bool {
	for i := 0; i < d.nedges(); i++ {
		s0 := d.edges[i*4+0]
		t0 := d.edges[i*4+1]
		// Same or connected edges do not overlap.
		if s0 == s1 || s0 == t1 || t0 == s1 || t0 == t1 {
			continue
		}
		if overlapSegSeg2d(d.pts[s0*3:], d.pts[t0*3:], d.pts[s1*3:], d.pts[t1*3:]) {
			return true
		}
	}
	return false
}

func (d *delaunay) completeFacet(e int) {
	const eps = 1e-5
	edge := d.edges[e*4:]

	// Cache s and t.
	var s, t int
	if edge[2] == evUndef {
		s = edge[0]
		t = edge[1]
	} else if edge[3] == evUndef {
		s = edge[1]
		t = edge[0]
	} else {
		// Edge already completed.
		return
	}

	// Find best point on left of edge.
	pt := d.npts
	c := []float32{0, 0, 0}
	r := float32(-1)
	for u := 0; u < d.npts; u++ {
		if u == s || u == t {
			continue
		}
		if vcross2(d.pts[s*3:], d.pts[t*3:], d.pts[u*3:]) <= eps {
			continue
		}
		if r < 0 {
			// The circle is not updated yet, do it now.
			pt = u
			r, _ = circumCircle(d.pts[s*3:], d.pts[t*3:], d.pts[u*3:], c)
			continue
		}
		dist := vdist2(c, d.pts[u*3:])
		const tol = 0.001
		if dist > r*(1+tol) {
			// Outside current circumcircle, skip.
			continue
		} else if dist < r*(1-tol) {
			// Inside safe circumcircle, update circle.
			pt = u
			r, _ = circumCircle(d.pts[s*3:], d.pts[t*3:], d.pts[u*3:], c)
		} else {
			// Inside epsilon circum circle, do extra tests to make sure the edge is valid.
			// s-u and t-u cannot overlap with s-pt nor t-pt if they exists.
			if d.overlapEdges(s, u) || d.overlapEdges(t, u) {
				continue
			}
			// Edge is valid.
			pt = u
			r, _ = circumCircle(d.pts[s*3:], d.pts[t*3:], d.pts[u*3:], c)
		}
	}

	// Add new triangle or update edge info if s-t is on hull.
	if pt < d.npts {
		// Update face information of edge being completed.
		updateLeftFace(d.edges[e*4:], s, t, d.nfaces)

		// Add new edge or update face info of old edge.
		if e = d.findEdge(pt, s); e == evUndef {
			d.addEdge(pt, s, d.nfaces, evUndef)
		} else {
			updateLeftFace(d.edges[e*4:], pt, s, d.nfaces)
		}

		// Add new edge or update face info of old edge.
		if e = d.findEdge(t, pt); e == evUndef {
			d.addEdge(t, pt, d.nfaces, evUndef)
		} else {
			updateLeftFace(d.edges[e*4:], t, pt, d.nfaces)
		}
		d.nfaces++
	} else {
		updateLeftFace(d.edges[e*4:], s, t, evHull)
	}
}

// delaunayHull triangulates pts constrained to the given hull and returns
// the triangles as (a, b, c, flags) quadruples.
func delaunayHull(ctx *RcContext, npts int, pts []float32, hull []int, tris, edges []int) ([]int, []int) {
	d := &delaunay{
		ctx:      ctx,
		pts:      pts,
		npts:     npts,
		edges:    edges[:0],
		maxEdges: npts * 10,
	}
	for i, j := 0, len(hull)-1; i < len(hull); j, i = i, i+1 {
		d.addEdge(hull[j], hull[i], evHull, evUndef)
	}

	for currentEdge := 0; currentEdge < d.nedges(); currentEdge++ {
		if d.edges[currentEdge*4+2] == evUndef {
			d.completeFacet(currentEdge)
		}
		if d.edges[currentEdge*4+3] == evUndef {
			d.completeFacet(currentEdge)
		}
	}

	// Create tris
	tris = tris[:0]
	for i := 0; i < d.nfaces*4; i++ {
		tris = append(tris, -1)
	}
	for i := 0; i < d.nedges(); i++ {
		e := d.edges[i*4:]
		if e[3] >= 0 {
			// Left face
			t := tris[e[3]*4:]
			if t[0] == -1 {
				t[0] = e[0]
				t[1] = e[1]
			} else if t[0] == e[1] {
				t[2] = e[0]
			} else if t[1] == e[0] {
				t[2] = e[1]
			}
		}
		if e[2] >= 0 {
			// Right
			t := tris[e[2]*4:]
			if t[0] == -1 {
				t[0] = e[1]
				t[1] = e[0]
			} else if t[0] == e[0] {
				t[2] = e[1]
			} else if t[1] == e[1] {
				t[2] = e[0]
			}
		}
	}

	for i := 0; i < len(tris)/4; i++ {
		t := tris[i*4:]
		if t[0] == -1 || t[1] == -1 || t[2] == -1 {
			ctx.Warning("delaunayHull: Removing dangling face %d [%d,%d,%d].", i, t[0], t[1], t[2])
			copy(t[:4], tris[len(tris)-4:])
			tris = tris[:len(tris)-4]
			i--
		}
	}
	return tris, d.edges
}

// Calculate minimum extend of the polygon.
func polyMinExtent(verts []float32, nverts int) float32 {
	minDist := float32(math.MaxFloat32)
	for i := 0; i < nverts; i++ {
		ni := (i + 1) % nverts
		p1 := verts[i*3:]
		p2 := verts[ni*3:]
		maxEdgeDist := float32(0)
		for j := 0; j < nverts; j++ {
			if j == i || j == ni {
				continue
			}
			maxEdgeDist = max(maxEdgeDist, distancePtSeg2d(verts[j*3:], p1, p2))
		}
		minDist = min(minDist, maxEdgeDist)
	}
	return common.Sqrtf(minDist)
}

func triangulateHull(verts []float32, hull []int, nin int, tris []int) []int {
	nhull := len(hull)
	start, left, right := 0, 1, nhull-1

	// Start from an ear with shortest perimeter.
	// This tends to favor well formed triangles as starting point.
	dmin := float32(math.MaxFloat32)
	for i := 0; i < nhull; i++ {
		if hull[i] >= nin {
			continue // Ears are triangles with original vertices as middle vertex while others are actually line segments on edges
		}
		pi := common.Prev(i, nhull)
		ni := common.Next(i, nhull)
		pv := verts[hull[pi]*3:]
		cv := verts[hull[i]*3:]
		nv := verts[hull[ni]*3:]
		d := vdist2(pv, cv) + vdist2(cv, nv) + vdist2(nv, pv)
		if d < dmin {
			start = i
			left = ni
			right = pi
			dmin = d
		}
	}

	// Add first triangle
	tris = append(tris, hull[start], hull[left], hull[right], 0)

	// Triangulate the polygon by moving left or right,
	// depending on which triangle has shorter perimeter.
	for common.Next(left, nhull) != right {
		// Check to see if se should advance left or right.
		nleft := common.Next(left, nhull)
		nright := common.Prev(right, nhull)

		cvleft := verts[hull[left]*3:]
		nvleft := verts[hull[nleft]*3:]
		cvright := verts[hull[right]*3:]
		nvright := verts[hull[nright]*3:]
		dleft := vdist2(cvleft, nvleft) + vdist2(nvleft, cvright)
		dright := vdist2(cvright, nvright) + vdist2(cvleft, nvright)

		if dleft < dright {
			tris = append(tris, hull[left], hull[nleft], hull[right], 0)
			left = nleft
		} else {
			tris = append(tris, hull[left], hull[nright], hull[right], 0)
			right = nright
		}
	}
	return tris
}

func getJitterX(i int) float32 {
	return (float32((uint32(i)*0x8da6b343)&0xffff)/65535.0*2.0 - 1.0)
}

func getJitterY(i int) float32 {
	return (float32((uint32(i)*0xd8163841)&0xffff)/65535.0*2.0 - 1.0)
}

type polyDetailBuilder struct {
	ctx                *RcContext
	chf                *RcCompactHeightfield
	hp                 *rcHeightPatch
	sampleDist         float32
	sampleMaxError     float32
	heightSearchRadius int

	verts   []float32
	tris    []int
	edges   []int
	samples []int
	hull    []int
	edge    []float32
	idx     []int
}

func newPolyDetailBuilder(ctx *RcContext, chf *RcCompactHeightfield, hp *rcHeightPatch, sampleDist, sampleMaxError float32, heightSearchRadius int) *polyDetailBuilder {
	return &polyDetailBuilder{
		ctx:                ctx,
		chf:                chf,
		hp:                 hp,
		sampleDist:         sampleDist,
		sampleMaxError:     sampleMaxError,
		heightSearchRadius: heightSearchRadius,
		verts:              make([]float32, 0, detailMaxVerts*3),
		hull:               make([]int, 0, detailMaxVerts),
		edge:               make([]float32, (detailMaxVertsPerEdge+1)*3),
		idx:                make([]int, detailMaxVertsPerEdge),
	}
}

// build triangulates one polygon given in local world coordinates. On return
// b.verts holds the detail vertices and b.tris the (a, b, c, 0) triangles.
func (b *polyDetailBuilder) build(in []float32, nin int) {
	sampleDist := b.sampleDist
	cs := b.chf.Cs
	ch := b.chf.Ch
	ics := 1.0 / cs

	b.verts = append(b.verts[:0], in[:nin*3]...)
	b.hull = b.hull[:0]
	b.edges = b.edges[:0]
	b.tris = b.tris[:0]

	// Calculate minimum extents of the polygon based on input data.
	minExtent := polyMinExtent(b.verts, nin)

	// Tessellate outlines.
	// This is done in separate pass in order to ensure
	// seamless height values across the ply boundaries.
	if sampleDist > 0 {
		for i, j := 0, nin-1; i < nin; j, i = i, i+1 {
			vj := in[j*3 : j*3+3]
			vi := in[i*3 : i*3+3]
			swapped := false
			// Make sure the segments are always handled in same order
			// using lexological sort or else there will be seams.
			if common.Abs(vj[0]-vi[0]) < 1e-6 {
				if vj[2] > vi[2] {
					vj, vi = vi, vj
					swapped = true
				}
			} else if vj[0] > vi[0] {
				vj, vi = vi, vj
				swapped = true
			}

			// Create samples along the edge.
			dx := vi[0] - vj[0]
			dy := vi[1] - vj[1]
			dz := vi[2] - vj[2]
			d := common.Sqrtf(dx*dx + dz*dz)
			nn := 1 + int(common.Floorf(d/sampleDist))
			if nn >= detailMaxVertsPerEdge {
				nn = detailMaxVertsPerEdge - 1
			}
			if len(b.verts)/3+nn >= detailMaxVerts {
				nn = detailMaxVerts - 1 - len(b.verts)/3
			}

			for k := 0; k <= nn; k++ {
				u := float32(k) / float32(nn)
				pos := b.edge[k*3:]
				pos[0] = vj[0] + dx*u
				pos[1] = vj[1] + dy*u
				pos[2] = vj[2] + dz*u
				pos[1] = float32(getHeight(pos[0], pos[1], pos[2], ics, ch, b.heightSearchRadius, b.hp)) * ch
			}

			// Simplify samples.
			idx := b.idx[:2]
			idx[0] = 0
			idx[1] = nn
			for k := 0; k < len(idx)-1; {
				a := idx[k]
				c := idx[k+1]
				va := b.edge[a*3:]
				vc := b.edge[c*3:]
				// Find maximum deviation along the segment.
				maxd := float32(0)
				maxi := -1
				for m := a + 1; m < c; m++ {
					dev := distancePtSeg(b.edge[m*3:], va, vc)
					if dev > maxd {
						maxd = dev
						maxi = m
					}
				}
				// If the max deviation is larger than accepted error,
				// add new point, else continue to next segment.
				if maxi != -1 && maxd > common.Sqr(b.sampleMaxError) {
					idx = append(idx, 0)
					copy(idx[k+2:], idx[k+1:len(idx)-1])
					idx[k+1] = maxi
				} else {
					k++
				}
			}

			b.hull = append(b.hull, j)
			// Add new vertices.
			if swapped {
				for k := len(idx) - 2; k > 0; k-- {
					b.hull = append(b.hull, len(b.verts)/3)
					b.verts = append(b.verts, b.edge[idx[k]*3:idx[k]*3+3]...)
				}
			} else {
				for k := 1; k < len(idx)-1; k++ {
					b.hull = append(b.hull, len(b.verts)/3)
					b.verts = append(b.verts, b.edge[idx[k]*3:idx[k]*3+3]...)
				}
			}
			b.idx = idx[:cap(idx)]
		}
	} else {
		// Without edge sampling the hull is the polygon itself.
		for i := 0; i < nin; i++ {
			b.hull = append(b.hull, i)
		}
	}

	// If the polygon minimum extent is small (sliver or small triangle), do not try to add internal points.
	if minExtent < sampleDist*2 || sampleDist <= 0 {
		b.tris = triangulateHull(b.verts, b.hull, nin, b.tris)
		return
	}

	// Tessellate the base mesh.
	// triangulateHull gives better results than delaunayHull for long thin
	// triangles when there are no internal points.
	b.tris = triangulateHull(b.verts, b.hull, nin, b.tris)
	if len(b.tris) == 0 {
		// Could not triangulate the poly, make sure there is some valid data there.
		b.ctx.Warning("buildPolyDetail: Could not triangulate polygon (%d verts).", len(b.verts)/3)
		return
	}

	// Create sample locations in a grid.
	bmin := []float32{in[0], in[1], in[2]}
	bmax := []float32{in[0], in[1], in[2]}
	for i := 1; i < nin; i++ {
		common.Vmin(bmin, in[i*3:])
		common.Vmax(bmax, in[i*3:])
	}
	x0 := int(common.Floorf(bmin[0] / sampleDist))
	x1 := int(common.Ceilf(bmax[0] / sampleDist))
	z0 := int(common.Floorf(bmin[2] / sampleDist))
	z1 := int(common.Ceilf(bmax[2] / sampleDist))
	b.samples = b.samples[:0]
	pt := make([]float32, 3)
	for z := z0; z < z1; z++ {
		for x := x0; x < x1; x++ {
			pt[0] = float32(x) * sampleDist
			pt[1] = (bmax[1] + bmin[1]) * 0.5
			pt[2] = float32(z) * sampleDist
			// Make sure the samples are not too close to the edges.
			if distToPoly(nin, in, pt) > -sampleDist/2 {
				continue
			}
			h := getHeight(pt[0], pt[1], pt[2], ics, ch, b.heightSearchRadius, b.hp)
			b.samples = append(b.samples, x, int(h), z, 0) // Not added
		}
	}

	// Add the samples starting from the one that has the most
	// error. The procedure stops when all samples are added
	// or when the max error is within treshold.
	nsamples := len(b.samples) / 4
	bestpt := make([]float32, 3)
	for iter := 0; iter < nsamples; iter++ {
		if len(b.verts)/3 >= detailMaxVerts {
			break
		}

		// Find sample with most error.
		bestd := float32(0)
		besti := -1
		for i := 0; i < nsamples; i++ {
			s := b.samples[i*4:]
			if s[3] != 0 {
				continue // skip added.
			}
			// The sample location is jittered to get rid of some bad triangulations
			// which are cause by symmetrical data from the grid structure.
			pt[0] = float32(s[0])*sampleDist + getJitterX(i)*cs*0.1
			pt[1] = float32(s[1]) * ch
			pt[2] = float32(s[2])*sampleDist + getJitterY(i)*cs*0.1
			d := distToTriMesh(pt, b.verts, b.tris)
			if d < 0 {
				continue // did not hit the mesh.
			}
			if d > bestd {
				bestd = d
				besti = i
				common.Vcopy(bestpt, pt)
			}
		}
		// If the max error is within accepted threshold, stop tesselating.
		if bestd <= b.sampleMaxError || besti == -1 {
			break
		}
		// Mark sample as added.
		b.samples[besti*4+3] = 1
		// Add the new sample point.
		b.verts = append(b.verts, bestpt...)

		// Create new triangulation.
		// TODO: Incremental add instead of full rebuild.
		b.tris, b.edges = delaunayHull(b.ctx, len(b.verts)/3, b.verts, b.hull, b.tris, b.edges)
	}

	if ntris := len(b.tris) / 4; ntris > detailMaxTris {
		b.tris = b.tris[:detailMaxTris*4]
		b.ctx.Errorf("rcBuildPolyMeshDetail: Shrinking triangle count from %d to max %d.", ntris, detailMaxTris)
	}
}

var seedOffsets = [9 * 2]int{0, 0, -1, -1, 0, -1, 1, -1, 1, 0, 1, 1, 0, 1, -1, 1, -1, 0}

func seedArrayWithPolyCenter(ctx *RcContext, chf *RcCompactHeightfield, poly []uint16, npoly int, verts []uint16, hp *rcHeightPatch, queue []int) []int {
	// Find cell closest to a poly vertex
	startCellX, startCellZ, startSpanIndex := 0, 0, -1
	dmin := rcUnsetHeight
	for j := 0; j < npoly && dmin > 0; j++ {
		for k := 0; k < 9 && dmin > 0; k++ {
			ax := int(verts[int(poly[j])*3+0]) + seedOffsets[k*2+0]
			ay := int(verts[int(poly[j])*3+1])
			az := int(verts[int(poly[j])*3+2]) + seedOffsets[k*2+1]
			if ax < hp.xmin || ax >= hp.xmin+hp.width || az < hp.zmin || az >= hp.zmin+hp.height {
				continue
			}
			c := &chf.Cells[ax+az*chf.Width]
			for i := int(c.Index); i < int(c.Index)+int(c.Count) && dmin > 0; i++ {
				d := common.Abs(ay - int(chf.Spans[i].Y))
				if d < dmin {
					startCellX = ax
					startCellZ = az
					startSpanIndex = i
					dmin = d
				}
			}
		}
	}
	queue = queue[:0]
	if startSpanIndex == -1 {
		ctx.Warning("getHeightData: no span found near polygon vertices")
		return queue
	}

	// Find center of the polygon
	pcx, pcz := 0, 0
	for j := 0; j < npoly; j++ {
		pcx += int(verts[int(poly[j])*3+0])
		pcz += int(verts[int(poly[j])*3+2])
	}
	pcx /= npoly
	pcz /= npoly

	// Use seeds array as a stack for DFS
	queue = append(queue, startCellX, startCellZ, startSpanIndex)
	dirs := [4]int{0, 1, 2, 3}
	for i := range hp.data[:hp.width*hp.height] {
		hp.data[i] = 0
	}

	// DFS to move to the center. Intermediate nodes are recorded since the
	// walk can get stuck on simplified contours even for convex polygons.
	cx, cz, ci := -1, -1, -1
	for {
		if len(queue) < 3 {
			ctx.Warning("Walk towards polygon center failed to reach center")
			break
		}
		ci = queue[len(queue)-1]
		cz = queue[len(queue)-2]
		cx = queue[len(queue)-3]
		queue = queue[:len(queue)-3]

		if cx == pcx && cz == pcz {
			break
		}

		// If we are already at the correct X-position, prefer direction
		// directly towards the center in the Z-axis; otherwise prefer
		// direction in the X-axis
		var directDir int
		if cx == pcx {
			if pcz > cz {
				directDir = common.GetDirForOffset(0, 1)
			} else {
				directDir = common.GetDirForOffset(0, -1)
			}
		} else {
			if pcx > cx {
				directDir = common.GetDirForOffset(1, 0)
			} else {
				directDir = common.GetDirForOffset(-1, 0)
			}
		}

		// Push the direct dir last so we start with this on next iteration
		dirs[directDir], dirs[3] = dirs[3], dirs[directDir]

		cs := &chf.Spans[ci]
		for _, dir := range dirs {
			if RcGetCon(cs, dir) == RC_NOT_CONNECTED {
				continue
			}
			newX := cx + common.GetDirOffsetX(dir)
			newZ := cz + common.GetDirOffsetZ(dir)

			hpx := newX - hp.xmin
			hpz := newZ - hp.zmin
			if hpx < 0 || hpx >= hp.width || hpz < 0 || hpz >= hp.height {
				continue
			}
			if hp.data[hpx+hpz*hp.width] != 0 {
				continue
			}
			hp.data[hpx+hpz*hp.width] = 1
			queue = append(queue, newX, newZ, int(chf.Cells[newX+newZ*chf.Width].Index)+RcGetCon(cs, dir))
		}

		dirs[directDir], dirs[3] = dirs[3], dirs[directDir]
	}

	queue = append(queue[:0], cx, cz, ci)
	for i := range hp.data[:hp.width*hp.height] {
		hp.data[i] = rcUnsetHeight
	}
	hp.data[cx-hp.xmin+(cz-hp.zmin)*hp.width] = chf.Spans[ci].Y
	return queue
}

func getHeightData(ctx *RcContext, chf *RcCompactHeightfield, poly []uint16, npoly int, verts []uint16, hp *rcHeightPatch, queue []int, region uint16) []int {
	queue = queue[:0]
	// Set all heights to RC_UNSET_HEIGHT.
	for i := range hp.data[:hp.width*hp.height] {
		hp.data[i] = rcUnsetHeight
	}

	empty := true

	// We cannot sample from this poly if it was created from polys
	// of different regions. If it was then it could potentially be overlapping
	// with polys of that region and the heights sampled here could be wrong.
	if region != RC_MULTIPLE_REGS {
		// Copy the height from the same region, and mark region borders
		// as seed points to fill the rest.
		for hz := 0; hz < hp.height; hz++ {
			z := hp.zmin + hz
			for hx := 0; hx < hp.width; hx++ {
				x := hp.xmin + hx
				c := &chf.Cells[x+z*chf.Width]
				for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
					s := &chf.Spans[i]
					if s.Reg != region {
						continue
					}
					// Store height
					hp.data[hx+hz*hp.width] = s.Y
					empty = false

					// If any of the neighbours is not in same region,
					// add the current location as flood fill start
					border := false
					for dir := 0; dir < 4; dir++ {
						if RcGetCon(s, dir) != RC_NOT_CONNECTED {
							_, _, ai := chf.neighbourIndex(x, z, s, dir)
							if chf.Spans[ai].Reg != region {
								border = true
								break
							}
						}
					}
					if border {
						queue = append(queue, x, z, i)
					}
					break
				}
			}
		}
	}

	// if the polygon does not contain any points from the current region (rare, but happens)
	// or if it could potentially be overlapping polygons of the same region,
	// then use the center as the seed point.
	if empty {
		queue = seedArrayWithPolyCenter(ctx, chf, poly, npoly, verts, hp, queue)
	}

	// BFS from the seeds so the fill never crosses onto overlapping polygons.
	for head := 0; head*3 < len(queue); head++ {
		cx := queue[head*3+0]
		cz := queue[head*3+1]
		ci := queue[head*3+2]

		cs := &chf.Spans[ci]
		for dir := 0; dir < 4; dir++ {
			if RcGetCon(cs, dir) == RC_NOT_CONNECTED {
				continue
			}
			ax, az, ai := chf.neighbourIndex(cx, cz, cs, dir)
			hx := ax - hp.xmin
			hz := az - hp.zmin
			if hx < 0 || hz < 0 || hx >= hp.width || hz >= hp.height {
				continue
			}
			if hp.data[hx+hz*hp.width] != rcUnsetHeight {
				continue
			}
			hp.data[hx+hz*hp.width] = chf.Spans[ai].Y
			queue = append(queue, ax, az, ai)
		}
	}
	return queue
}

func getEdgeFlags(va, vb, vpoly []float32, npoly int) uint8 {
	// The flag returned by this function matches the detail edge flags of
	// the runtime navmesh.
	// Figure out if edge (va,vb) is part of the polygon boundary.
	const thrSqr = 0.001 * 0.001
	for i, j := 0, npoly-1; i < npoly; j, i = i, i+1 {
		if distancePtSeg2d(va, vpoly[j*3:], vpoly[i*3:]) < thrSqr &&
			distancePtSeg2d(vb, vpoly[j*3:], vpoly[i*3:]) < thrSqr {
			return 1
		}
	}
	return 0
}

func getTriFlags(va, vb, vc, vpoly []float32, npoly int) uint8 {
	flags := uint8(0)
	flags |= getEdgeFlags(va, vb, vpoly, npoly) << 0
	flags |= getEdgeFlags(vb, vc, vpoly, npoly) << 2
	flags |= getEdgeFlags(vc, va, vpoly, npoly) << 4
	return flags
}

// RcBuildPolyMeshDetail builds a height-accurate triangle sub-mesh for every
// polygon of mesh by sampling the compact heightfield.
func RcBuildPolyMeshDetail(ctx *RcContext, mesh *RcPolyMesh, chf *RcCompactHeightfield, sampleDist, sampleMaxError float32) (*RcPolyMeshDetail, error) {
	ctx.StartTimer(RC_TIMER_BUILD_POLYMESHDETAIL)
	defer ctx.StopTimer(RC_TIMER_BUILD_POLYMESHDETAIL)

	dmesh := &RcPolyMeshDetail{}
	if mesh.NVerts == 0 || mesh.NPolys == 0 {
		return dmesh, nil
	}

	nvp := mesh.Nvp
	cs := mesh.Cs
	ch := mesh.Ch
	orig := mesh.Bmin
	heightSearchRadius := max(1, int(common.Ceilf(mesh.MaxEdgeError)))

	bounds := make([]int, mesh.NPolys*4)
	poly := make([]float32, nvp*3)

	// Find max size for a polygon area.
	maxhw, maxhh := 0, 0
	for i := 0; i < mesh.NPolys; i++ {
		p := mesh.Poly(i)
		xmin, xmax := chf.Width, 0
		zmin, zmax := chf.Height, 0
		for j := 0; j < nvp; j++ {
			if p[j] == RC_MESH_NULL_IDX {
				break
			}
			v := mesh.Verts[int(p[j])*3:]
			xmin = min(xmin, int(v[0]))
			xmax = max(xmax, int(v[0]))
			zmin = min(zmin, int(v[2]))
			zmax = max(zmax, int(v[2]))
		}
		xmin = max(0, xmin-1)
		xmax = min(chf.Width, xmax+1)
		zmin = max(0, zmin-1)
		zmax = min(chf.Height, zmax+1)
		bounds[i*4+0], bounds[i*4+1], bounds[i*4+2], bounds[i*4+3] = xmin, xmax, zmin, zmax
		if xmin >= xmax || zmin >= zmax {
			continue
		}
		maxhw = max(maxhw, xmax-xmin)
		maxhh = max(maxhh, zmax-zmin)
	}

	hp := &rcHeightPatch{data: make([]uint16, maxhw*maxhh)}
	builder := newPolyDetailBuilder(ctx, chf, hp, sampleDist, sampleMaxError, heightSearchRadius)
	var queue []int

	dmesh.NMeshes = mesh.NPolys
	dmesh.Meshes = make([]uint32, 0, dmesh.NMeshes*4)
	dmesh.Verts = make([]float32, 0, mesh.NVerts*2*3)
	dmesh.Tris = make([]uint8, 0, mesh.NVerts*2*4)

	for i := 0; i < mesh.NPolys; i++ {
		p := mesh.Poly(i)

		// Store polygon vertices for processing.
		npoly := 0
		for j := 0; j < nvp; j++ {
			if p[j] == RC_MESH_NULL_IDX {
				break
			}
			v := mesh.Verts[int(p[j])*3:]
			poly[j*3+0] = float32(v[0]) * cs
			poly[j*3+1] = float32(v[1]) * ch
			poly[j*3+2] = float32(v[2]) * cs
			npoly++
		}

		// Get the height data from the area of the polygon.
		hp.xmin = bounds[i*4+0]
		hp.zmin = bounds[i*4+2]
		hp.width = bounds[i*4+1] - bounds[i*4+0]
		hp.height = bounds[i*4+3] - bounds[i*4+2]
		if hp.width <= 0 || hp.height <= 0 {
			return nil, fmt.Errorf("%w: polygon %d has an empty footprint", ErrDetailMeshTooLarge, i)
		}
		queue = getHeightData(ctx, chf, p, npoly, mesh.Verts, hp, queue, mesh.Regs[i])

		// Build detail mesh.
		builder.build(poly, npoly)
		verts := builder.verts
		nverts := len(verts) / 3
		tris := builder.tris
		ntris := len(tris) / 4
		if nverts > 0xff || ntris > detailMaxTris {
			return nil, fmt.Errorf("%w: polygon %d has %d verts %d tris", ErrDetailMeshTooLarge, i, nverts, ntris)
		}

		// Move detail verts to world space.
		for j := 0; j < nverts; j++ {
			verts[j*3+0] += orig[0]
			verts[j*3+1] += orig[1] + chf.Ch // Is this offset necessary?
			verts[j*3+2] += orig[2]
		}
		// Offset poly too, will be used to flag checking.
		for j := 0; j < npoly; j++ {
			poly[j*3+0] += orig[0]
			poly[j*3+1] += orig[1]
			poly[j*3+2] += orig[2]
		}

		// Store detail submesh.
		dmesh.Meshes = append(dmesh.Meshes, uint32(dmesh.NVerts), uint32(nverts), uint32(dmesh.NTris), uint32(ntris))

		// Store vertices.
		dmesh.Verts = append(dmesh.Verts, verts...)
		dmesh.NVerts += nverts

		// Store triangles
		for j := 0; j < ntris; j++ {
			t := tris[j*4:]
			dmesh.Tris = append(dmesh.Tris, uint8(t[0]), uint8(t[1]), uint8(t[2]),
				getTriFlags(verts[t[0]*3:], verts[t[1]*3:], verts[t[2]*3:], poly, npoly))
			dmesh.NTris++
		}
	}

	ctx.Progress("rcBuildPolyMeshDetail: %d verts, %d tris", dmesh.NVerts, dmesh.NTris)
	return dmesh, nil
}
