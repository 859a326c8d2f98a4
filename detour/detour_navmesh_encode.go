package detour

import (
	"fmt"

	"github.com/gorustyt/solonav/common"
	"github.com/gorustyt/solonav/common/rw"
)

const (
	dtHeaderSize     = 4*9 + 4*5 + 4*6 + 4 + 4
	dtPolyDetailSize = 4 + 4 + 1 + 1 + 2
	dtBVNodeSize     = 2*3*2 + 4
)

func (h *DtMeshHeader) ToBin(w *rw.ReaderWriter) {
	w.WriteUInt32(h.Magic)
	w.WriteInt32(h.Version)
	w.WriteInt32(h.PolyCount)
	w.WriteInt32(h.VertCount)
	w.WriteInt32(h.Nvp)
	w.WriteInt32(h.DetailMeshCount)
	w.WriteInt32(h.DetailVertCount)
	w.WriteInt32(h.DetailTriCount)
	w.WriteInt32(h.BvNodeCount)
	w.WriteFloat32(h.WalkableHeight)
	w.WriteFloat32(h.WalkableRadius)
	w.WriteFloat32(h.WalkableClimb)
	w.WriteFloat32(h.Cs)
	w.WriteFloat32(h.Ch)
	w.WriteFloat32s(h.Bmin[:])
	w.WriteFloat32s(h.Bmax[:])
	w.WriteFloat32(h.BvQuantFactor)
	if h.BuildBvTree {
		w.WriteUInt8(1)
	} else {
		w.WriteUInt8(0)
	}
	w.PadZero(3)
}

func (h *DtMeshHeader) FromBin(r *rw.ReaderWriter) {
	h.Magic = r.ReadUInt32()
	h.Version = r.ReadInt32()
	h.PolyCount = r.ReadInt32()
	h.VertCount = r.ReadInt32()
	h.Nvp = r.ReadInt32()
	h.DetailMeshCount = r.ReadInt32()
	h.DetailVertCount = r.ReadInt32()
	h.DetailTriCount = r.ReadInt32()
	h.BvNodeCount = r.ReadInt32()
	h.WalkableHeight = r.ReadFloat32()
	h.WalkableRadius = r.ReadFloat32()
	h.WalkableClimb = r.ReadFloat32()
	h.Cs = r.ReadFloat32()
	h.Ch = r.ReadFloat32()
	r.ReadFloat32s(h.Bmin[:])
	r.ReadFloat32s(h.Bmax[:])
	h.BvQuantFactor = r.ReadFloat32()
	h.BuildBvTree = r.ReadUInt8() != 0
	r.Skip(3)
}

// ToBin writes the nvp used slots of the polygon; the remaining in-memory
// slots are always the sentinel and are not stored.
func (p *DtPoly) ToBin(w *rw.ReaderWriter, nvp int) {
	w.WriteUInt16s(p.Verts[:nvp])
	w.WriteUInt16s(p.Neis[:nvp])
	w.WriteUInt16(p.Flags)
	w.WriteUInt8(p.Area)
	w.WriteUInt8(p.VertCount)
}

func (p *DtPoly) FromBin(r *rw.ReaderWriter, nvp int) {
	for i := range p.Verts {
		p.Verts[i] = DT_NULL_IDX
	}
	r.ReadUInt16s(p.Verts[:nvp])
	r.ReadUInt16s(p.Neis[:nvp])
	p.Flags = r.ReadUInt16()
	p.Area = r.ReadUInt8()
	p.VertCount = r.ReadUInt8()
}

func (pd *DtPolyDetail) ToBin(w *rw.ReaderWriter) {
	w.WriteUInt32(pd.VertBase)
	w.WriteUInt32(pd.TriBase)
	w.WriteUInt8(pd.VertCount)
	w.WriteUInt8(pd.TriCount)
	w.PadZero(2)
}

func (pd *DtPolyDetail) FromBin(r *rw.ReaderWriter) {
	pd.VertBase = r.ReadUInt32()
	pd.TriBase = r.ReadUInt32()
	pd.VertCount = r.ReadUInt8()
	pd.TriCount = r.ReadUInt8()
	r.Skip(2)
}

func (n *DtBVNode) ToBin(w *rw.ReaderWriter) {
	w.WriteUInt16s(n.Bmin[:])
	w.WriteUInt16s(n.Bmax[:])
	w.WriteInt32(n.I)
}

func (n *DtBVNode) FromBin(r *rw.ReaderWriter) {
	r.ReadUInt16s(n.Bmin[:])
	r.ReadUInt16s(n.Bmax[:])
	n.I = r.ReadInt32()
}

// ToBin serializes the mesh. Every section starts on a 4-byte boundary.
func (d *NavMeshData) ToBin() []byte {
	w := rw.NewWriter()
	d.Header.ToBin(w)
	nvp := int(d.Header.Nvp)

	w.WriteUInt16s(d.Verts)
	w.PadAlign4()
	for i := range d.Polys {
		d.Polys[i].ToBin(w, nvp)
	}
	w.PadAlign4()
	for i := range d.DetailMeshes {
		d.DetailMeshes[i].ToBin(w)
	}
	w.WriteFloat32s(d.DetailVerts)
	w.WriteUInt8s(d.DetailTris)
	w.PadAlign4()
	for i := range d.BvTree {
		d.BvTree[i].ToBin(w)
	}
	return w.GetWriteBytes()
}

// FromBin parses a blob produced by ToBin. Section sizes are checked against
// the remaining input before anything is allocated.
func (d *NavMeshData) FromBin(data []byte) error {
	if len(data) < dtHeaderSize {
		return fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorruptData, len(data))
	}
	r := rw.NewReader(data)
	d.Header.FromBin(r)
	if err := r.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptData, err)
	}
	h := &d.Header
	if err := h.check(); err != nil {
		return err
	}
	nvp := int(h.Nvp)
	need := common.Align4(int(h.VertCount)*3*2) +
		common.Align4(int(h.PolyCount)*(nvp*4+4)) +
		int(h.DetailMeshCount)*dtPolyDetailSize + int(h.DetailVertCount)*3*4 +
		common.Align4(int(h.DetailTriCount)*4) +
		int(h.BvNodeCount)*dtBVNodeSize
	if need != r.Remaining() {
		return fmt.Errorf("%w: expected %d payload bytes, got %d", ErrCorruptData, need, r.Remaining())
	}

	d.Verts = make([]uint16, h.VertCount*3)
	r.ReadUInt16s(d.Verts)
	r.SkipAlign4()
	d.Polys = make([]DtPoly, h.PolyCount)
	for i := range d.Polys {
		d.Polys[i].FromBin(r, nvp)
	}
	r.SkipAlign4()
	d.DetailMeshes = make([]DtPolyDetail, h.DetailMeshCount)
	for i := range d.DetailMeshes {
		d.DetailMeshes[i].FromBin(r)
	}
	d.DetailVerts = make([]float32, h.DetailVertCount*3)
	r.ReadFloat32s(d.DetailVerts)
	d.DetailTris = make([]uint8, h.DetailTriCount*4)
	r.ReadUInt8s(d.DetailTris)
	r.SkipAlign4()
	d.BvTree = make([]DtBVNode, h.BvNodeCount)
	for i := range d.BvTree {
		d.BvTree[i].FromBin(r)
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptData, err)
	}
	return d.validate()
}
