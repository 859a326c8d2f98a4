package recast

import (
	"sort"

	"github.com/gorustyt/solonav/common"
)

const (
	// Region id mask and flags stored in the 4th component of contour vertices.
	RC_CONTOUR_REG_MASK = 0xffff
	RC_BORDER_VERTEX    = 0x10000
	RC_AREA_BORDER      = 0x20000

	// Tessellate solid (impassable) edges during contour simplification.
	RC_CONTOUR_TESS_WALL_EDGES = 0x01
	// Tessellate edges between areas during contour simplification.
	RC_CONTOUR_TESS_AREA_EDGES = 0x02

	rcMaxContourWalk = 40000
)

// RcContour is a simplified region outline. Vertices are (x, y, z, r) in
// voxel units, r holding the neighbour region id and edge flags.
type RcContour struct {
	Verts  []int
	RVerts []int // Raw, unsimplified outline.
	Reg    uint16
	Area   uint8
}

func (c *RcContour) NVerts() int  { return len(c.Verts) / 4 }
func (c *RcContour) NRVerts() int { return len(c.RVerts) / 4 }

type RcContourSet struct {
	Conts    []*RcContour
	Bmin     [3]float32
	Bmax     [3]float32
	Cs       float32
	Ch       float32
	Width    int
	Height   int
	MaxError float32
}

func getCornerHeight(x, z, i, dir int, chf *RcCompactHeightfield) int {
	s := &chf.Spans[i]
	ch := int(s.Y)
	dirp := (dir + 1) & 0x3
	if RcGetCon(s, dir) != RC_NOT_CONNECTED {
		ax, az, ai := chf.neighbourIndex(x, z, s, dir)
		as := &chf.Spans[ai]
		ch = max(ch, int(as.Y))
		if RcGetCon(as, dirp) != RC_NOT_CONNECTED {
			_, _, ai2 := chf.neighbourIndex(ax, az, as, dirp)
			ch = max(ch, int(chf.Spans[ai2].Y))
		}
	}
	if RcGetCon(s, dirp) != RC_NOT_CONNECTED {
		ax, az, ai := chf.neighbourIndex(x, z, s, dirp)
		as := &chf.Spans[ai]
		ch = max(ch, int(as.Y))
		if RcGetCon(as, dir) != RC_NOT_CONNECTED {
			_, _, ai2 := chf.neighbourIndex(ax, az, as, dir)
			ch = max(ch, int(chf.Spans[ai2].Y))
		}
	}
	return ch
}

func walkContour(x, z, i int, chf *RcCompactHeightfield, flags []uint8, points []int) []int {
	// Choose the first non-connected edge
	dir := 0
	for flags[i]&(1<<dir) == 0 {
		dir++
	}
	startDir := dir
	starti := i
	area := chf.Areas[i]

	for iter := 0; iter < rcMaxContourWalk; iter++ {
		if flags[i]&(1<<dir) != 0 {
			// Choose the edge corner
			isAreaBorder := false
			px := x
			py := getCornerHeight(x, z, i, dir, chf)
			pz := z
			switch dir {
			case 0:
				pz++
			case 1:
				px++
				pz++
			case 2:
				px++
			}
			r := 0
			s := &chf.Spans[i]
			if RcGetCon(s, dir) != RC_NOT_CONNECTED {
				_, _, ai := chf.neighbourIndex(x, z, s, dir)
				r = int(chf.Spans[ai].Reg)
				if area != chf.Areas[ai] {
					isAreaBorder = true
				}
			}
			if isAreaBorder {
				r |= RC_AREA_BORDER
			}
			points = append(points, px, py, pz, r)

			flags[i] &^= 1 << dir // Remove visited edges
			dir = (dir + 1) & 0x3 // Rotate CW
		} else {
			s := &chf.Spans[i]
			if RcGetCon(s, dir) == RC_NOT_CONNECTED {
				// Should not happen.
				return points
			}
			nx, nz, ni := chf.neighbourIndex(x, z, s, dir)
			x = nx
			z = nz
			i = ni
			dir = (dir + 3) & 0x3 // Rotate CCW
		}
		if starti == i && startDir == dir {
			break
		}
	}
	return points
}

func distancePtSegInt(x, z, px, pz, qx, qz int) float32 {
	pqx := float32(qx - px)
	pqz := float32(qz - pz)
	dx := float32(x - px)
	dz := float32(z - pz)
	d := pqx*pqx + pqz*pqz
	t := pqx*dx + pqz*dz
	if d > 0 {
		t /= d
	}
	t = common.Clamp(t, 0, 1)
	dx = float32(px) + t*pqx - float32(x)
	dz = float32(pz) + t*pqz - float32(z)
	return dx*dx + dz*dz
}

func insertPoint(simplified []int, at int, v ...int) []int {
	simplified = append(simplified, v...)
	copy(simplified[at+len(v):], simplified[at:len(simplified)-len(v)])
	copy(simplified[at:], v)
	return simplified
}

func simplifyContour(points, simplified []int, maxError float32, maxEdgeLen int, buildFlags int) []int {
	pn := len(points) / 4
	simplified = simplified[:0]

	// Add initial points.
	hasConnections := false
	for i := 0; i < len(points); i += 4 {
		if points[i+3]&RC_CONTOUR_REG_MASK != 0 {
			hasConnections = true
			break
		}
	}

	if hasConnections {
		// The contour has some portals to other regions.
		// Add a new point to every location where the region changes.
		for i := 0; i < pn; i++ {
			ii := (i + 1) % pn
			differentRegs := points[i*4+3]&RC_CONTOUR_REG_MASK != points[ii*4+3]&RC_CONTOUR_REG_MASK
			areaBorders := points[i*4+3]&RC_AREA_BORDER != points[ii*4+3]&RC_AREA_BORDER
			if differentRegs || areaBorders {
				simplified = append(simplified, points[i*4+0], points[i*4+1], points[i*4+2], i)
			}
		}
	}

	if len(simplified) == 0 {
		// If there is no connections at all,
		// create some initial points for the simplification process.
		// Find lower-left and upper-right vertices of the contour.
		llx, lly, llz, lli := points[0], points[1], points[2], 0
		urx, ury, urz, uri := points[0], points[1], points[2], 0
		for i := 0; i < pn; i++ {
			x := points[i*4+0]
			y := points[i*4+1]
			z := points[i*4+2]
			if x < llx || (x == llx && z < llz) {
				llx, lly, llz, lli = x, y, z, i
			}
			if x > urx || (x == urx && z > urz) {
				urx, ury, urz, uri = x, y, z, i
			}
		}
		simplified = append(simplified, llx, lly, llz, lli, urx, ury, urz, uri)
	}

	// Add points until all raw points are within
	// error tolerance to the simplified shape.
	for i := 0; i < len(simplified)/4; {
		ii := (i + 1) % (len(simplified) / 4)

		ax := simplified[i*4+0]
		az := simplified[i*4+2]
		ai := simplified[i*4+3]

		bx := simplified[ii*4+0]
		bz := simplified[ii*4+2]
		bi := simplified[ii*4+3]

		// Find maximum deviation from the segment.
		maxd := float32(0)
		maxi := -1
		var ci, cinc, endi int

		// Traverse the segment in lexilogical order so that the
		// max deviation is calculated similarly when traversing
		// opposite segments.
		if bx > ax || (bx == ax && bz > az) {
			cinc = 1
			ci = (ai + cinc) % pn
			endi = bi
		} else {
			cinc = pn - 1
			ci = (bi + cinc) % pn
			endi = ai
			ax, bx = bx, ax
			az, bz = bz, az
		}

		// Tessellate only outer edges or edges between areas.
		if points[ci*4+3]&RC_CONTOUR_REG_MASK == 0 || points[ci*4+3]&RC_AREA_BORDER != 0 {
			for ci != endi {
				d := distancePtSegInt(points[ci*4+0], points[ci*4+2], ax, az, bx, bz)
				if d > maxd {
					maxd = d
					maxi = ci
				}
				ci = (ci + cinc) % pn
			}
		}

		// If the max deviation is larger than accepted error,
		// add new point, else continue to next segment.
		if maxi != -1 && maxd > maxError*maxError {
			simplified = insertPoint(simplified, (i+1)*4, points[maxi*4+0], points[maxi*4+1], points[maxi*4+2], maxi)
		} else {
			i++
		}
	}

	// Split too long edges.
	if maxEdgeLen > 0 && buildFlags&(RC_CONTOUR_TESS_WALL_EDGES|RC_CONTOUR_TESS_AREA_EDGES) != 0 {
		for i := 0; i < len(simplified)/4; {
			ii := (i + 1) % (len(simplified) / 4)

			ax := simplified[i*4+0]
			az := simplified[i*4+2]
			ai := simplified[i*4+3]

			bx := simplified[ii*4+0]
			bz := simplified[ii*4+2]
			bi := simplified[ii*4+3]

			// Find maximum deviation from the segment.
			maxi := -1
			ci := (ai + 1) % pn

			// Tessellate only outer edges or edges between areas.
			tess := false
			// Wall edges.
			if buildFlags&RC_CONTOUR_TESS_WALL_EDGES != 0 && points[ci*4+3]&RC_CONTOUR_REG_MASK == 0 {
				tess = true
			}
			// Edges between areas.
			if buildFlags&RC_CONTOUR_TESS_AREA_EDGES != 0 && points[ci*4+3]&RC_AREA_BORDER != 0 {
				tess = true
			}

			if tess {
				dx := bx - ax
				dz := bz - az
				if dx*dx+dz*dz > maxEdgeLen*maxEdgeLen {
					// Round based on the segments in lexilogical order so that the
					// max tesselation is consistent regardless in which direction
					// segments are traversed.
					n := bi - ai
					if bi < ai {
						n = bi + pn - ai
					}
					if n > 1 {
						if bx > ax || (bx == ax && bz > az) {
							maxi = (ai + n/2) % pn
						} else {
							maxi = (ai + (n+1)/2) % pn
						}
					}
				}
			}

			// If the max deviation is larger than accepted error,
			// add new point, else continue to next segment.
			if maxi != -1 {
				simplified = insertPoint(simplified, (i+1)*4, points[maxi*4+0], points[maxi*4+1], points[maxi*4+2], maxi)
			} else {
				i++
			}
		}
	}

	for i := 0; i < len(simplified)/4; i++ {
		// The edge vertex flag is take from the current raw point,
		// and the neighbour region is take from the next raw point.
		ai := (simplified[i*4+3] + 1) % pn
		bi := simplified[i*4+3]
		simplified[i*4+3] = (points[ai*4+3] & (RC_CONTOUR_REG_MASK | RC_AREA_BORDER)) | (points[bi*4+3] & RC_BORDER_VERTEX)
	}
	return simplified
}

func calcAreaOfPolygon2D(verts []int, nverts int) int {
	area := 0
	for i, j := 0, nverts-1; i < nverts; j, i = i, i+1 {
		vi := verts[i*4:]
		vj := verts[j*4:]
		area += vi[0]*vj[2] - vj[0]*vi[2]
	}
	return (area + 1) / 2
}

func removeDegenerateSegments(simplified []int) []int {
	// Remove adjacent vertices which are equal on xz-plane,
	// or else the triangulator will get confused.
	npts := len(simplified) / 4
	for i := 0; i < npts; i++ {
		ni := common.Next(i, npts)
		if common.Vequal2(simplified[i*4:], simplified[ni*4:]) {
			// Degenerate segment, remove.
			copy(simplified[i*4:], simplified[(i+1)*4:])
			simplified = simplified[:len(simplified)-4]
			npts--
		}
	}
	return simplified
}

// inConeContour reports whether pj lies in the cone of contour vertex i.
func inConeContour(i, n int, verts, pj []int) bool {
	pi := verts[i*4:]
	pi1 := verts[common.Next(i, n)*4:]
	pin1 := verts[common.Prev(i, n)*4:]

	// If P[i] is a convex vertex [ i+1 left or on (i-1,i) ].
	if common.LeftOn(pin1, pi, pi1) {
		return common.Left(pi, pj, pin1) && common.Left(pj, pi, pi1)
	}
	// Assume (i-1,i,i+1) not collinear.
	// else P[i] is reflex.
	return !(common.LeftOn(pi, pj, pi1) && common.LeftOn(pj, pi, pin1))
}

func intersectSegContour(d0, d1 []int, i, n int, verts []int) bool {
	// For each edge (k,k+1) of P
	for k := 0; k < n; k++ {
		k1 := common.Next(k, n)
		// Skip edges incident to i.
		if i == k || i == k1 {
			continue
		}
		p0 := verts[k*4:]
		p1 := verts[k1*4:]
		if common.Vequal2(d0, p0) || common.Vequal2(d1, p0) || common.Vequal2(d0, p1) || common.Vequal2(d1, p1) {
			continue
		}
		if common.Intersect(d0, d1, p0, p1) {
			return true
		}
	}
	return false
}

func mergeContours(ca, cb *RcContour, ia, ib int) {
	na := ca.NVerts()
	nb := cb.NVerts()
	verts := make([]int, 0, (na+nb+2)*4)

	// Copy contour A.
	for i := 0; i <= na; i++ {
		src := ca.Verts[((ia+i)%na)*4:]
		verts = append(verts, src[0], src[1], src[2], src[3])
	}
	// Copy contour B
	for i := 0; i <= nb; i++ {
		src := cb.Verts[((ib+i)%nb)*4:]
		verts = append(verts, src[0], src[1], src[2], src[3])
	}
	ca.Verts = verts
	cb.Verts = nil
}

type contourHole struct {
	contour  *RcContour
	minx     int
	minz     int
	leftmost int
}

type contourRegion struct {
	outline *RcContour
	holes   []contourHole
}

type potentialDiagonal struct {
	vert int
	dist int
}

// Finds the lowest leftmost vertex of a contour.
func findLeftMostVertex(contour *RcContour) (minx, minz, leftmost int) {
	minx = contour.Verts[0]
	minz = contour.Verts[2]
	for i := 1; i < contour.NVerts(); i++ {
		x := contour.Verts[i*4+0]
		z := contour.Verts[i*4+2]
		if x < minx || (x == minx && z < minz) {
			minx = x
			minz = z
			leftmost = i
		}
	}
	return minx, minz, leftmost
}

func mergeRegionHoles(ctx *RcContext, region *contourRegion) {
	// Sort holes from left to right.
	for i := range region.holes {
		hole := &region.holes[i]
		hole.minx, hole.minz, hole.leftmost = findLeftMostVertex(hole.contour)
	}
	sort.SliceStable(region.holes, func(a, b int) bool {
		ha, hb := region.holes[a], region.holes[b]
		if ha.minx != hb.minx {
			return ha.minx < hb.minx
		}
		return ha.minz < hb.minz
	})

	outline := region.outline
	var diags []potentialDiagonal

	// Merge holes into the outline one by one.
	for i := range region.holes {
		hole := region.holes[i].contour
		index := -1
		bestVertex := region.holes[i].leftmost
		for iter := 0; iter < hole.NVerts(); iter++ {
			// Find potential diagonals.
			// The 'best' vertex must be in the cone described by 3 consecutive vertices of the outline.
			diags = diags[:0]
			corner := hole.Verts[bestVertex*4:]
			for j := 0; j < outline.NVerts(); j++ {
				if inConeContour(j, outline.NVerts(), outline.Verts, corner) {
					dx := outline.Verts[j*4+0] - corner[0]
					dz := outline.Verts[j*4+2] - corner[2]
					diags = append(diags, potentialDiagonal{vert: j, dist: dx*dx + dz*dz})
				}
			}
			// Sort potential diagonals by distance, we want to make the connection as short as possible.
			sort.SliceStable(diags, func(a, b int) bool { return diags[a].dist < diags[b].dist })

			// Find a diagonal that is not intersecting the outline not the remaining holes.
			index = -1
			for _, d := range diags {
				pt := outline.Verts[d.vert*4:]
				intersect := intersectSegContour(pt, corner, d.vert, outline.NVerts(), outline.Verts)
				for k := i; k < len(region.holes) && !intersect; k++ {
					h := region.holes[k].contour
					intersect = intersectSegContour(pt, corner, -1, h.NVerts(), h.Verts)
				}
				if !intersect {
					index = d.vert
					break
				}
			}
			// If found non-intersecting diagonal, stop looking.
			if index != -1 {
				break
			}
			// All the potential diagonals for the current vertex were intersecting, try next vertex.
			bestVertex = (bestVertex + 1) % hole.NVerts()
		}

		if index == -1 {
			ctx.Warning("mergeHoles: Failed to find merge points for region %d hole %d.", outline.Reg, i)
			continue
		}
		mergeContours(outline, hole, index, bestVertex)
	}
}

// RcBuildContours traces the boundary of every region of chf and simplifies
// it. Holes inside a region are stitched into the region's outline.
func RcBuildContours(ctx *RcContext, chf *RcCompactHeightfield, maxError float32, maxEdgeLen int, buildFlags int) (*RcContourSet, error) {
	ctx.StartTimer(RC_TIMER_BUILD_CONTOURS)
	defer ctx.StopTimer(RC_TIMER_BUILD_CONTOURS)

	w := chf.Width
	h := chf.Height
	cset := &RcContourSet{
		Bmin:     chf.Bmin,
		Bmax:     chf.Bmax,
		Cs:       chf.Cs,
		Ch:       chf.Ch,
		Width:    w,
		Height:   h,
		MaxError: maxError,
	}

	flags := make([]uint8, chf.SpanCount)

	// Mark boundaries.
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			c := &chf.Cells[x+z*w]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				res := uint8(0)
				s := &chf.Spans[i]
				if s.Reg == 0 {
					flags[i] = 0
					continue
				}
				for dir := 0; dir < 4; dir++ {
					r := uint16(0)
					if RcGetCon(s, dir) != RC_NOT_CONNECTED {
						_, _, ai := chf.neighbourIndex(x, z, s, dir)
						r = chf.Spans[ai].Reg
					}
					if r == s.Reg {
						res |= 1 << dir
					}
				}
				flags[i] = res ^ 0xf // Inverse, mark non connected edges.
			}
		}
	}

	var verts, simplified []int
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			c := &chf.Cells[x+z*w]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				if flags[i] == 0 || flags[i] == 0xf {
					flags[i] = 0
					continue
				}
				reg := chf.Spans[i].Reg
				if reg == 0 {
					continue
				}
				area := chf.Areas[i]

				verts = walkContour(x, z, i, chf, flags, verts[:0])
				simplified = simplifyContour(verts, simplified, maxError, maxEdgeLen, buildFlags)
				simplified = removeDegenerateSegments(simplified)

				// Store region->contour remap info.
				// Create contour.
				if len(simplified)/4 >= 3 {
					cont := &RcContour{
						Verts:  append([]int(nil), simplified...),
						RVerts: append([]int(nil), verts...),
						Reg:    reg,
						Area:   area,
					}
					cset.Conts = append(cset.Conts, cont)
				}
			}
		}
	}

	// Merge holes if needed.
	if len(cset.Conts) > 0 {
		// Calculate winding of all polygons.
		winding := make([]int8, len(cset.Conts))
		nholes := 0
		for i, cont := range cset.Conts {
			// If the contour is wound backwards, it is a hole.
			winding[i] = 1
			if calcAreaOfPolygon2D(cont.Verts, cont.NVerts()) < 0 {
				winding[i] = -1
				nholes++
			}
		}

		if nholes > 0 {
			// Collect outline contour and holes contours per region.
			// We assume that there is one outline and multiple holes.
			nregions := int(chf.MaxRegions) + 1
			regions := make([]contourRegion, nregions)
			for i, cont := range cset.Conts {
				if int(cont.Reg) >= nregions {
					continue
				}
				reg := &regions[cont.Reg]
				if winding[i] > 0 {
					if reg.outline != nil {
						ctx.Errorf("rcBuildContours: Multiple outlines for region %d.", cont.Reg)
					}
					reg.outline = cont
				} else {
					reg.holes = append(reg.holes, contourHole{contour: cont})
				}
			}
			// Finally merge each regions holes into the outline.
			for i := range regions {
				if len(regions[i].holes) == 0 {
					continue
				}
				if regions[i].outline != nil {
					mergeRegionHoles(ctx, &regions[i])
				} else {
					// The region does not have an outline.
					// This can happen if the contour becaomes selfoverlapping because of
					// too aggressive simplification settings.
					ctx.Errorf("rcBuildContours: Bad outline for region %d, contour simplification is likely too aggressive.", i)
				}
			}
			// Drop the hole contours that were folded into an outline.
			kept := cset.Conts[:0]
			for _, cont := range cset.Conts {
				if cont.NVerts() > 0 {
					kept = append(kept, cont)
				}
			}
			cset.Conts = kept
		}
	}

	ctx.Progress("rcBuildContours: %d contours", len(cset.Conts))
	return cset, nil
}
