package debug_utils

import (
	"errors"
	"io"

	"github.com/gorustyt/solonav/common"
	"github.com/gorustyt/solonav/detour"
	"github.com/gorustyt/solonav/recast"
)

var ErrNilMesh = errors.New("debug_utils: nil mesh")

// DuDumpPolyMeshToObj writes the poly mesh as a Wavefront OBJ, polygons
// fanned into triangles.
func DuDumpPolyMeshToObj(pmesh *recast.RcPolyMesh, w io.Writer) error {
	if pmesh == nil {
		return ErrNilMesh
	}
	ow := &objWriter{w: w}
	ow.printf("# Recast Navmesh\n")
	ow.printf("o NavMesh\n")
	ow.printf("\n")

	for i := 0; i < pmesh.NVerts; i++ {
		x, y, z := polyMeshVert(pmesh, i, 0.1)
		ow.printf("v %f %f %f\n", x, y, z)
	}
	ow.printf("\n")

	nvp := pmesh.Nvp
	for i := 0; i < pmesh.NPolys; i++ {
		p := pmesh.Poly(i)
		for j := 2; j < nvp; j++ {
			if p[j] == recast.RC_MESH_NULL_IDX {
				break
			}
			ow.printf("f %d %d %d\n", int(p[0])+1, int(p[j-1])+1, int(p[j])+1)
		}
	}
	return ow.err
}

func DuDumpPolyMeshDetailToObj(dmesh *recast.RcPolyMeshDetail, w io.Writer) error {
	if dmesh == nil {
		return ErrNilMesh
	}
	ow := &objWriter{w: w}
	ow.printf("# Recast Navmesh\n")
	ow.printf("o NavMesh\n")
	ow.printf("\n")

	for i := 0; i < dmesh.NVerts; i++ {
		v := common.GetVert3(dmesh.Verts, i)
		ow.printf("v %f %f %f\n", v[0], v[1], v[2])
	}
	ow.printf("\n")

	for i := 0; i < dmesh.NMeshes; i++ {
		m := dmesh.Meshes[i*4:]
		bverts := int(m[0])
		_, tris, ntris := detailSubmesh(dmesh, i)
		for j := 0; j < ntris; j++ {
			t := tris[j*4:]
			ow.printf("f %d %d %d\n", bverts+int(t[0])+1, bverts+int(t[1])+1, bverts+int(t[2])+1)
		}
	}
	return ow.err
}

// DuDumpNavMeshToObj writes the runtime mesh surface. Every polygon gets its
// own group named after its ref, with the detail triangles when present.
func DuDumpNavMeshToObj(nav *detour.DtNavMesh, w io.Writer) error {
	if nav == nil {
		return ErrNilMesh
	}
	ow := &objWriter{w: w}
	ow.printf("# Detour Navmesh\n")
	ow.printf("o NavMesh\n")

	base := 1
	for i := 0; i < nav.PolyCount(); i++ {
		ref := nav.GetPolyRef(i)
		tris := polyTriangles(nav, ref)
		ow.printf("\ng poly%d\n", ref)
		for k := 0; k+3 <= len(tris); k += 3 {
			ow.printf("v %f %f %f\n", tris[k], tris[k+1], tris[k+2])
		}
		for k := 0; k < len(tris)/9; k++ {
			ow.printf("f %d %d %d\n", base+k*3, base+k*3+1, base+k*3+2)
		}
		base += len(tris) / 3
	}
	return ow.err
}
