package debug_utils

import (
	"fmt"
	"io"
	"math"
)

type DuDebugDrawPrimitives int

const (
	DU_DRAW_POINTS DuDebugDrawPrimitives = iota
	DU_DRAW_LINES
	DU_DRAW_TRIS
)

func (p DuDebugDrawPrimitives) String() string {
	switch p {
	case DU_DRAW_POINTS:
		return "points"
	case DU_DRAW_LINES:
		return "lines"
	case DU_DRAW_TRIS:
		return "tris"
	}
	return "unknown"
}

// vertsPerPrim is the number of vertices forming one primitive.
func (p DuDebugDrawPrimitives) vertsPerPrim() int {
	switch p {
	case DU_DRAW_LINES:
		return 2
	case DU_DRAW_TRIS:
		return 3
	}
	return 1
}

// DuDebugDraw receives batches of primitives. Vertices submitted between
// Begin and End belong to one batch.
type DuDebugDraw interface {
	DepthMask(state bool)

	/// Begin drawing primitives.
	///  @param prim [in] primitive type to draw, one of DU_DRAW_*.
	///  @param size [in] size of a primitive, applies to point size and line width only.
	Begin(prim DuDebugDrawPrimitives, size ...float32)

	/// Submit a vertex
	///  @param pos [in] position of the verts.
	///  @param color [in] color of the verts.
	Vertex(pos []float32, color Colorb)

	/// Submit a vertex
	///  @param x,y,z [in] position of the verts.
	///  @param color [in] color of the verts.
	Vertex1(x, y, z float32, color Colorb)

	/// End drawing primitives.
	End()

	/// Compute a color for given area.
	AreaToCol(area int) Colorb
}

// DuBatch is one recorded Begin/End block.
type DuBatch struct {
	Prim      DuDebugDrawPrimitives
	Size      float32
	DepthMask bool
	Pos       []float32
	Colors    []Colorb
}

func (b *DuBatch) VertCount() int { return len(b.Colors) }

// DuDisplayList records everything drawn into it.
type DuDisplayList struct {
	batches   []DuBatch
	cur       *DuBatch
	depthMask bool
}

func NewDuDisplayList() *DuDisplayList {
	return &DuDisplayList{depthMask: true}
}

func (d *DuDisplayList) DepthMask(state bool) { d.depthMask = state }

func (d *DuDisplayList) Begin(prim DuDebugDrawPrimitives, size ...float32) {
	s := float32(1)
	if len(size) > 0 {
		s = size[0]
	}
	d.batches = append(d.batches, DuBatch{Prim: prim, Size: s, DepthMask: d.depthMask})
	d.cur = &d.batches[len(d.batches)-1]
}

func (d *DuDisplayList) Vertex(pos []float32, color Colorb) {
	d.Vertex1(pos[0], pos[1], pos[2], color)
}

func (d *DuDisplayList) Vertex1(x, y, z float32, color Colorb) {
	if d.cur == nil {
		return
	}
	d.cur.Pos = append(d.cur.Pos, x, y, z)
	d.cur.Colors = append(d.cur.Colors, color)
}

func (d *DuDisplayList) End() {
	if d.cur != nil && d.cur.VertCount() == 0 {
		d.batches = d.batches[:len(d.batches)-1]
	}
	d.cur = nil
}

func (d *DuDisplayList) AreaToCol(area int) Colorb { return DuAreaToCol(area) }

func (d *DuDisplayList) Batches() []DuBatch { return d.batches }

func (d *DuDisplayList) Clear() {
	d.batches = d.batches[:0]
	d.cur = nil
}

// Count returns the number of complete primitives of the given type.
func (d *DuDisplayList) Count(prim DuDebugDrawPrimitives) int {
	n := 0
	for i := range d.batches {
		if d.batches[i].Prim == prim {
			n += d.batches[i].VertCount() / prim.vertsPerPrim()
		}
	}
	return n
}

// Draw replays the list into another DuDebugDraw.
func (d *DuDisplayList) Draw(dd DuDebugDraw) {
	if dd == nil {
		return
	}
	for i := range d.batches {
		b := &d.batches[i]
		dd.DepthMask(b.DepthMask)
		dd.Begin(b.Prim, b.Size)
		for j := 0; j < b.VertCount(); j++ {
			dd.Vertex(b.Pos[j*3:], b.Colors[j])
		}
		dd.End()
	}
}

// WriteObj exports the list as a Wavefront OBJ: triangles as faces, lines
// as polylines and points as point elements. Colours are dropped.
func (d *DuDisplayList) WriteObj(w io.Writer) error {
	ow := &objWriter{w: w}
	ow.printf("# debug draw\n")
	base := 1
	for i := range d.batches {
		b := &d.batches[i]
		nv := b.VertCount()
		for j := 0; j < nv; j++ {
			ow.printf("v %f %f %f\n", b.Pos[j*3], b.Pos[j*3+1], b.Pos[j*3+2])
		}
		per := b.Prim.vertsPerPrim()
		for j := 0; j+per <= nv; j += per {
			switch b.Prim {
			case DU_DRAW_TRIS:
				ow.printf("f %d %d %d\n", base+j, base+j+1, base+j+2)
			case DU_DRAW_LINES:
				ow.printf("l %d %d\n", base+j, base+j+1)
			default:
				ow.printf("p %d\n", base+j)
			}
		}
		base += nv
	}
	return ow.err
}

// objWriter keeps the first write error.
type objWriter struct {
	w   io.Writer
	err error
}

func (o *objWriter) printf(format string, args ...any) {
	if o.err != nil {
		return
	}
	_, o.err = fmt.Fprintf(o.w, format, args...)
}

func DuAppendBoxWire(dd DuDebugDraw, minx, miny, minz, maxx, maxy, maxz float32, col Colorb) {
	if dd == nil {
		return
	}
	// Top
	dd.Vertex1(minx, miny, minz, col)
	dd.Vertex1(maxx, miny, minz, col)
	dd.Vertex1(maxx, miny, minz, col)
	dd.Vertex1(maxx, miny, maxz, col)
	dd.Vertex1(maxx, miny, maxz, col)
	dd.Vertex1(minx, miny, maxz, col)
	dd.Vertex1(minx, miny, maxz, col)
	dd.Vertex1(minx, miny, minz, col)

	// bottom
	dd.Vertex1(minx, maxy, minz, col)
	dd.Vertex1(maxx, maxy, minz, col)
	dd.Vertex1(maxx, maxy, minz, col)
	dd.Vertex1(maxx, maxy, maxz, col)
	dd.Vertex1(maxx, maxy, maxz, col)
	dd.Vertex1(minx, maxy, maxz, col)
	dd.Vertex1(minx, maxy, maxz, col)
	dd.Vertex1(minx, maxy, minz, col)

	// Sides
	dd.Vertex1(minx, miny, minz, col)
	dd.Vertex1(minx, maxy, minz, col)
	dd.Vertex1(maxx, miny, minz, col)
	dd.Vertex1(maxx, maxy, minz, col)
	dd.Vertex1(maxx, miny, maxz, col)
	dd.Vertex1(maxx, maxy, maxz, col)
	dd.Vertex1(minx, miny, maxz, col)
	dd.Vertex1(minx, maxy, maxz, col)
}

func DuAppendCircle(dd DuDebugDraw, x, y, z, r float32, col Colorb) {
	if dd == nil {
		return
	}
	const numSeg = 40
	var dir [numSeg * 2]float32
	for i := 0; i < numSeg; i++ {
		a := float64(i) / numSeg * math.Pi * 2
		dir[i*2] = float32(math.Cos(a))
		dir[i*2+1] = float32(math.Sin(a))
	}
	for i, j := 0, numSeg-1; i < numSeg; j, i = i, i+1 {
		dd.Vertex1(x+dir[j*2+0]*r, y, z+dir[j*2+1]*r, col)
		dd.Vertex1(x+dir[i*2+0]*r, y, z+dir[i*2+1]*r, col)
	}
}

func DuAppendCross(dd DuDebugDraw, x, y, z, s float32, col Colorb) {
	if dd == nil {
		return
	}
	dd.Vertex1(x-s, y, z, col)
	dd.Vertex1(x+s, y, z, col)
	dd.Vertex1(x, y-s, z, col)
	dd.Vertex1(x, y+s, z, col)
	dd.Vertex1(x, y, z-s, col)
	dd.Vertex1(x, y, z+s, col)
}
