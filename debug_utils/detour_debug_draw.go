package debug_utils

import (
	"github.com/gorustyt/solonav/common"
	"github.com/gorustyt/solonav/detour"
)

type DrawNavMeshFlags int

const (
	DU_DRAWNAVMESH_COLOR_POLYS DrawNavMeshFlags = 0x01 // One colour per polygon instead of per area.
	DU_DRAWNAVMESH_BVTREE      DrawNavMeshFlags = 0x02
)

func distancePtLine2d(pt, p, q []float32) float32 {
	pqx := q[0] - p[0]
	pqz := q[2] - p[2]
	dx := pt[0] - p[0]
	dz := pt[2] - p[2]
	d := pqx*pqx + pqz*pqz
	t := pqx*dx + pqz*dz
	if d != 0 {
		t /= d
	}
	dx = p[0] + t*pqx - pt[0]
	dz = p[2] + t*pqz - pt[2]
	return dx*dx + dz*dz
}

// polyTriangles returns the detail triangles of a polygon, or a fan over
// its vertices when the mesh was packed without detail.
func polyTriangles(nav *detour.DtNavMesh, ref detour.DtPolyRef) []float32 {
	tris, status := nav.GetDetailTriangles(ref)
	if status.Succeed() && len(tris) > 0 {
		return tris
	}
	verts, status := nav.GetPolyVerts(ref)
	if status.Failed() {
		return nil
	}
	nv := len(verts) / 3
	out := make([]float32, 0, (nv-2)*9)
	for i := 2; i < nv; i++ {
		out = append(out, verts[0:3]...)
		out = append(out, verts[(i-1)*3:i*3]...)
		out = append(out, verts[i*3:i*3+3]...)
	}
	return out
}

// drawPolyBoundaries draws the shared edges (inner) or the wall edges of
// every polygon.
func drawPolyBoundaries(dd DuDebugDraw, nav *detour.DtNavMesh, col Colorb, linew float32, inner bool) {
	const thr = 0.01 * 0.01
	dd.Begin(DU_DRAW_LINES, linew)
	for i := 0; i < nav.PolyCount(); i++ {
		ref := nav.GetPolyRef(i)
		p, _ := nav.GetPolyByRef(ref)
		verts, _ := nav.GetPolyVerts(ref)
		tris := polyTriangles(nav, ref)
		nv := int(p.VertCount)
		for j := 0; j < nv; j++ {
			c := col
			if inner {
				if p.Neis[j] == detour.DT_NULL_NEI {
					continue
				}
				nei, _ := nav.GetPolyByRef(detour.DtPolyRef(p.Neis[j]))
				if nei != nil && nei.GetArea() != p.GetArea() {
					c = DuRGBA(255, 255, 255, 48)
				}
			} else if p.Neis[j] != detour.DT_NULL_NEI {
				continue
			}
			v0 := verts[j*3 : j*3+3]
			v1 := verts[((j+1)%nv)*3 : ((j+1)%nv)*3+3]

			// Draw the detail triangle edges lying on this polygon edge so
			// the line follows the surface.
			for k := 0; k+9 <= len(tris); k += 9 {
				tv := [3][]float32{tris[k : k+3], tris[k+3 : k+6], tris[k+6 : k+9]}
				for m, n := 0, 2; m < 3; n, m = m, m+1 {
					if distancePtLine2d(tv[n], v0, v1) < thr &&
						distancePtLine2d(tv[m], v0, v1) < thr {
						dd.Vertex(tv[n], c)
						dd.Vertex(tv[m], c)
					}
				}
			}
		}
	}
	dd.End()
}

// DuDebugDrawNavMeshPoly highlights a single polygon.
func DuDebugDrawNavMeshPoly(dd DuDebugDraw, nav *detour.DtNavMesh, ref detour.DtPolyRef, col Colorb) {
	if dd == nil || nav == nil {
		return
	}
	if _, status := nav.GetPolyByRef(ref); status.Failed() {
		return
	}
	c := DuTransCol(col, 64)
	tris := polyTriangles(nav, ref)
	dd.DepthMask(false)
	dd.Begin(DU_DRAW_TRIS)
	for k := 0; k+3 <= len(tris); k += 3 {
		dd.Vertex(tris[k:k+3], c)
	}
	dd.End()
	dd.DepthMask(true)
}

// DuDebugDrawNavMesh draws the surface coloured by area, the inner poly
// boundaries, the outer boundary and the vertices.
func DuDebugDrawNavMesh(dd DuDebugDraw, nav *detour.DtNavMesh, flags DrawNavMeshFlags) {
	if dd == nil || nav == nil {
		return
	}
	dd.DepthMask(false)
	dd.Begin(DU_DRAW_TRIS)
	for i := 0; i < nav.PolyCount(); i++ {
		ref := nav.GetPolyRef(i)
		p, _ := nav.GetPolyByRef(ref)
		var col Colorb
		if flags&DU_DRAWNAVMESH_COLOR_POLYS != 0 {
			col = DuIntToCol(i, 192)
		} else {
			col = DuTransCol(dd.AreaToCol(int(p.GetArea())), 64)
		}
		tris := polyTriangles(nav, ref)
		for k := 0; k+3 <= len(tris); k += 3 {
			dd.Vertex(tris[k:k+3], col)
		}
	}
	dd.End()

	// Draw inter poly boundaries
	drawPolyBoundaries(dd, nav, DuRGBA(0, 48, 64, 32), 1.5, true)

	// Draw outer poly boundaries
	drawPolyBoundaries(dd, nav, DuRGBA(0, 48, 64, 220), 2.5, false)

	vcol := DuRGBA(0, 0, 0, 196)
	dd.Begin(DU_DRAW_POINTS, 3.0)
	for i := 0; i < nav.VertCount(); i++ {
		dd.Vertex(nav.GetVert(i), vcol)
	}
	dd.End()
	dd.DepthMask(true)

	if flags&DU_DRAWNAVMESH_BVTREE != 0 {
		DuDebugDrawNavMeshBVTree(dd, nav)
	}
}

// DuDebugDrawNavMeshBVTree draws the leaf boxes of the bounding volume tree.
func DuDebugDrawNavMeshBVTree(dd DuDebugDraw, nav *detour.DtNavMesh) {
	if dd == nil || nav == nil {
		return
	}
	h := nav.GetHeader()
	nodes := nav.GetBVTree()
	if len(nodes) == 0 || h.BvQuantFactor == 0 {
		return
	}
	cs := 1.0 / h.BvQuantFactor
	dd.Begin(DU_DRAW_LINES, 1.0)
	for i := range nodes {
		n := &nodes[i]
		if n.I < 0 { // Leaf indices are positive.
			continue
		}
		DuAppendBoxWire(dd,
			h.Bmin[0]+float32(n.Bmin[0])*cs,
			h.Bmin[1]+float32(n.Bmin[1])*cs,
			h.Bmin[2]+float32(n.Bmin[2])*cs,
			h.Bmin[0]+float32(n.Bmax[0])*cs,
			h.Bmin[1]+float32(n.Bmax[1])*cs,
			h.Bmin[2]+float32(n.Bmax[2])*cs,
			DuRGBA(255, 255, 255, 128))
	}
	dd.End()
}

// DuDebugDrawPath draws a straight path as a polyline with a cross at each
// corner.
func DuDebugDrawPath(dd DuDebugDraw, points []float32, col Colorb) {
	if dd == nil || len(points) < 3 {
		return
	}
	n := len(points) / 3
	dd.DepthMask(false)
	dd.Begin(DU_DRAW_LINES, 2.0)
	for i := 0; i+1 < n; i++ {
		a := common.GetVert3(points, i)
		b := common.GetVert3(points, i+1)
		dd.Vertex1(a[0], a[1]+0.1, a[2], col)
		dd.Vertex1(b[0], b[1]+0.1, b[2], col)
	}
	dd.End()
	dd.Begin(DU_DRAW_LINES, 1.0)
	for i := 0; i < n; i++ {
		p := common.GetVert3(points, i)
		DuAppendCross(dd, p[0], p[1]+0.1, p[2], 0.2, DuDarkenCol(col))
	}
	dd.End()
	dd.DepthMask(true)
}
