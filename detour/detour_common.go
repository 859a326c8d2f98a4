package detour

import (
	"github.com/gorustyt/solonav/common"
)

func dtCalcPolyCenter(verts []float32, nverts int) []float32 {
	tc := make([]float32, 3)
	for j := 0; j < nverts; j++ {
		v := common.GetVert3(verts, j)
		tc[0] += v[0]
		tc[1] += v[1]
		tc[2] += v[2]
	}
	s := 1.0 / float32(nverts)
	tc[0] *= s
	tc[1] *= s
	tc[2] *= s
	return tc
}

// dtClosestHeightPointTriangle returns the height of the triangle abc at the
// xz location of p, or false when p is outside the triangle.
func dtClosestHeightPointTriangle(p, a, b, c []float32) (h float32, ok bool) {
	const eps = 1e-6
	var v0, v1, v2 [3]float32
	common.Vsub(v0[:], c, a)
	common.Vsub(v1[:], b, a)
	common.Vsub(v2[:], p, a)

	// Compute scaled barycentric coordinates
	denom := v0[0]*v1[2] - v0[2]*v1[0]
	if common.Abs(denom) < eps {
		return 0, false
	}
	u := v1[2]*v2[0] - v1[0]*v2[2]
	v := v0[0]*v2[2] - v0[2]*v2[0]
	if denom < 0 {
		denom = -denom
		u = -u
		v = -v
	}

	// If point lies inside the triangle, return interpolated ycoord.
	if u >= 0.0 && v >= 0.0 && (u+v) <= denom {
		return a[1] + (v0[1]*u+v1[1]*v)/denom, true
	}
	return 0, false
}

// All points are projected onto the xz-plane, so the y-values are ignored.
func dtPointInPolygon(pt, verts []float32, nverts int) bool {
	c := false
	for i, j := 0, nverts-1; i < nverts; j, i = i, i+1 {
		vi := common.GetVert3(verts, i)
		vj := common.GetVert3(verts, j)
		if ((vi[2] > pt[2]) != (vj[2] > pt[2])) && (pt[0] < (vj[0]-vi[0])*(pt[2]-vi[2])/(vj[2]-vi[2])+vi[0]) {
			c = !c
		}
	}
	return c
}

// dtDistancePtPolyEdgesSqr fills ed and et with the squared distance and
// segment parameter from pt to every polygon edge and reports whether pt is
// inside the polygon.
func dtDistancePtPolyEdgesSqr(pt, verts []float32, nverts int, ed, et []float32) bool {
	c := false
	for i, j := 0, nverts-1; i < nverts; j, i = i, i+1 {
		vi := common.GetVert3(verts, i)
		vj := common.GetVert3(verts, j)
		if ((vi[2] > pt[2]) != (vj[2] > pt[2])) && (pt[0] < (vj[0]-vi[0])*(pt[2]-vi[2])/(vj[2]-vi[2])+vi[0]) {
			c = !c
		}
		ed[j], et[j] = common.DistancePtSegSqr2D(pt, vj, vi)
	}
	return c
}

func vperpXZ(a, b []float32) float32 { return a[0]*b[2] - a[2]*b[0] }

func dtIntersectSegSeg2D(ap, aq, bp, bq []float32) (s, t float32, ok bool) {
	var u, v, w [3]float32
	common.Vsub(u[:], aq, ap)
	common.Vsub(v[:], bq, bp)
	common.Vsub(w[:], ap, bp)
	d := vperpXZ(u[:], v[:])
	if common.Abs(d) < 1e-6 {
		return 0, 0, false
	}
	s = vperpXZ(v[:], w[:]) / d
	t = vperpXZ(u[:], w[:]) / d
	return s, t, true
}

// dtIntersectSegmentPoly2D clips segment p0-p1 against a convex polygon.
// segMin/segMax are the entering and leaving edges, -1 when the segment
// starts or ends inside the polygon.
func dtIntersectSegmentPoly2D(p0, p1, verts []float32, nverts int) (tmin, tmax float32, segMin, segMax int, ok bool) {
	const eps = 0.000001

	tmin = 0
	tmax = 1
	segMin = -1
	segMax = -1

	var dir, edge, diff [3]float32
	common.Vsub(dir[:], p1, p0)

	for i, j := 0, nverts-1; i < nverts; j, i = i, i+1 {
		common.Vsub(edge[:], common.GetVert3(verts, i), common.GetVert3(verts, j))
		common.Vsub(diff[:], p0, common.GetVert3(verts, j))
		n := common.Vperp2D(edge[:], diff[:])
		d := common.Vperp2D(dir[:], edge[:])
		if common.Abs(d) < eps {
			// S is nearly parallel to this edge
			if n < 0 {
				return tmin, tmax, segMin, segMax, false
			}
			continue
		}
		t := n / d
		if d < 0 {
			// segment S is entering across this edge
			if t > tmin {
				tmin = t
				segMin = j
				// S enters after leaving polygon
				if tmin > tmax {
					return tmin, tmax, segMin, segMax, false
				}
			}
		} else {
			// segment S is leaving across this edge
			if t < tmax {
				tmax = t
				segMax = j
				// S leaves before entering polygon
				if tmax < tmin {
					return tmin, tmax, segMin, segMax, false
				}
			}
		}
	}
	return tmin, tmax, segMin, segMax, true
}
