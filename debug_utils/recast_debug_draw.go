package debug_utils

import (
	"github.com/gorustyt/solonav/common"
	"github.com/gorustyt/solonav/recast"
)

// DuDebugDrawContours draws the simplified region outlines. Edges on an
// area border are lightened and border vertices are raised.
func DuDebugDrawContours(dd DuDebugDraw, cset *recast.RcContourSet, alphas ...float32) {
	if dd == nil || cset == nil {
		return
	}
	alpha := float32(1.0)
	if len(alphas) > 0 {
		alpha = alphas[0]
	}
	orig := cset.Bmin
	cs := cset.Cs
	ch := cset.Ch
	a := int(alpha * 255.0)

	dd.Begin(DU_DRAW_LINES, 2.5)
	for i, c := range cset.Conts {
		nv := c.NVerts()
		if nv == 0 {
			continue
		}
		color := DuIntToCol(int(c.Reg), a)
		bcolor := DuLerpCol(color, DuRGBA(255, 255, 255, a), 128)
		for j, k := 0, nv-1; j < nv; k, j = j, j+1 {
			va := common.GetVert4(c.Verts, k)
			vb := common.GetVert4(c.Verts, j)
			col := color
			if va[3]&recast.RC_AREA_BORDER != 0 {
				col = bcolor
			}
			dd.Vertex1(orig[0]+float32(va[0])*cs, orig[1]+float32(va[1]+1+(i&1))*ch, orig[2]+float32(va[2])*cs, col)
			dd.Vertex1(orig[0]+float32(vb[0])*cs, orig[1]+float32(vb[1]+1+(i&1))*ch, orig[2]+float32(vb[2])*cs, col)
		}
	}
	dd.End()

	dd.Begin(DU_DRAW_POINTS, 3.0)
	for i, c := range cset.Conts {
		color := DuDarkenCol(DuIntToCol(int(c.Reg), a))
		for j := 0; j < c.NVerts(); j++ {
			v := common.GetVert4(c.Verts, j)
			off := float32(0.0)
			colv := color
			if v[3]&recast.RC_BORDER_VERTEX != 0 {
				colv = DuRGBA(255, 255, 255, a)
				off = ch * 2
			}
			dd.Vertex1(orig[0]+float32(v[0])*cs, orig[1]+float32(v[1]+1+(i&1))*ch+off, orig[2]+float32(v[2])*cs, colv)
		}
	}
	dd.End()
}

// polyMeshVert converts a grid vertex of the poly mesh to world space,
// lifted slightly above the surface.
func polyMeshVert(mesh *recast.RcPolyMesh, i int, lift float32) (x, y, z float32) {
	v := common.GetVert3(mesh.Verts, i)
	x = mesh.Bmin[0] + float32(v[0])*mesh.Cs
	y = mesh.Bmin[1] + float32(v[1]+1)*mesh.Ch + lift
	z = mesh.Bmin[2] + float32(v[2])*mesh.Cs
	return
}

func DuDebugDrawPolyMesh(dd DuDebugDraw, mesh *recast.RcPolyMesh) {
	if dd == nil || mesh == nil {
		return
	}
	nvp := mesh.Nvp

	dd.Begin(DU_DRAW_TRIS)
	for i := 0; i < mesh.NPolys; i++ {
		p := mesh.Poly(i)
		area := mesh.Areas[i]
		var color Colorb
		switch area {
		case recast.RC_WALKABLE_AREA:
			color = DuRGBA(0, 192, 255, 64)
		case recast.RC_NULL_AREA:
			color = DuRGBA(0, 0, 0, 64)
		default:
			color = dd.AreaToCol(int(area))
		}
		for j := 2; j < nvp; j++ {
			if p[j] == recast.RC_MESH_NULL_IDX {
				break
			}
			for _, vi := range [3]uint16{p[0], p[j-1], p[j]} {
				x, y, z := polyMeshVert(mesh, int(vi), 0)
				dd.Vertex1(x, y, z, color)
			}
		}
	}
	dd.End()

	// Neighbour edges, then boundary edges.
	drawPolyMeshEdges(dd, mesh, DuRGBA(0, 48, 64, 32), 1.5, false)
	drawPolyMeshEdges(dd, mesh, DuRGBA(0, 48, 64, 220), 2.5, true)

	dd.Begin(DU_DRAW_POINTS, 3.0)
	colv := DuRGBA(0, 0, 0, 220)
	for i := 0; i < mesh.NVerts; i++ {
		x, y, z := polyMeshVert(mesh, i, 0.1)
		dd.Vertex1(x, y, z, colv)
	}
	dd.End()
}

func drawPolyMeshEdges(dd DuDebugDraw, mesh *recast.RcPolyMesh, col Colorb, linew float32, boundary bool) {
	nvp := mesh.Nvp
	dd.Begin(DU_DRAW_LINES, linew)
	for i := 0; i < mesh.NPolys; i++ {
		p := mesh.Poly(i)
		for j := 0; j < nvp; j++ {
			if p[j] == recast.RC_MESH_NULL_IDX {
				break
			}
			if (p[nvp+j] == recast.RC_MESH_NULL_IDX) != boundary {
				continue
			}
			nj := j + 1
			if nj >= nvp || p[nj] == recast.RC_MESH_NULL_IDX {
				nj = 0
			}
			x, y, z := polyMeshVert(mesh, int(p[j]), 0.1)
			dd.Vertex1(x, y, z, col)
			x, y, z = polyMeshVert(mesh, int(p[nj]), 0.1)
			dd.Vertex1(x, y, z, col)
		}
	}
	dd.End()
}

// DuDebugDrawPolyMeshDetail draws the detail triangles, one colour per
// polygon, with internal and external edges.
func DuDebugDrawPolyMeshDetail(dd DuDebugDraw, dmesh *recast.RcPolyMeshDetail) {
	if dd == nil || dmesh == nil {
		return
	}

	dd.Begin(DU_DRAW_TRIS)
	for i := 0; i < dmesh.NMeshes; i++ {
		verts, tris, ntris := detailSubmesh(dmesh, i)
		color := DuIntToCol(i, 192)
		for j := 0; j < ntris; j++ {
			t := tris[j*4:]
			dd.Vertex(common.GetVert3(verts, t[0]), color)
			dd.Vertex(common.GetVert3(verts, t[1]), color)
			dd.Vertex(common.GetVert3(verts, t[2]), color)
		}
	}
	dd.End()

	// Internal edges.
	drawDetailEdges(dd, dmesh, DuRGBA(0, 0, 0, 64), 1.0, false)
	// External edges.
	drawDetailEdges(dd, dmesh, DuRGBA(0, 0, 0, 64), 2.0, true)

	dd.Begin(DU_DRAW_POINTS, 3.0)
	colv := DuRGBA(0, 0, 0, 64)
	for i := 0; i < dmesh.NMeshes; i++ {
		m := dmesh.Meshes[i*4:]
		bverts, nverts := int(m[0]), int(m[1])
		for j := 0; j < nverts; j++ {
			dd.Vertex(common.GetVert3(dmesh.Verts, bverts+j), colv)
		}
	}
	dd.End()
}

func detailSubmesh(dmesh *recast.RcPolyMeshDetail, i int) (verts []float32, tris []uint8, ntris int) {
	m := dmesh.Meshes[i*4:]
	return dmesh.Verts[int(m[0])*3:], dmesh.Tris[int(m[2])*4:], int(m[3])
}

func drawDetailEdges(dd DuDebugDraw, dmesh *recast.RcPolyMeshDetail, col Colorb, linew float32, external bool) {
	dd.Begin(DU_DRAW_LINES, linew)
	for i := 0; i < dmesh.NMeshes; i++ {
		verts, tris, ntris := detailSubmesh(dmesh, i)
		for j := 0; j < ntris; j++ {
			t := tris[j*4:]
			for k, kp := 0, 2; k < 3; kp, k = k, k+1 {
				ef := (t[3] >> (kp * 2)) & 0x3
				if (ef != 0) != external {
					continue
				}
				// Shared internal edges are visited twice.
				if !external && t[kp] > t[k] {
					continue
				}
				dd.Vertex(common.GetVert3(verts, t[kp]), col)
				dd.Vertex(common.GetVert3(verts, t[k]), col)
			}
		}
	}
	dd.End()
}
