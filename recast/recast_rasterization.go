package recast

import (
	"fmt"

	"github.com/gorustyt/solonav/common"
)

const (
	RC_SPAN_HEIGHT_BITS = 13
	// Defines the maximum value for RcSpan.Min and RcSpan.Max.
	RC_SPAN_MAX_HEIGHT = (1 << RC_SPAN_HEIGHT_BITS) - 1
	// The number of spans allocated per span page.
	RC_SPANS_PER_POOL = 2048
	// Column top used when a span has nothing above it.
	rcMaxHeight = 0xffff
)

// RcSpan is one solid interval of a heightfield column.
type RcSpan struct {
	Min  uint16 // The lower limit of the span. [Limit: < Max]
	Max  uint16 // The upper limit of the span. [Limit: <= RC_SPAN_MAX_HEIGHT]
	Area uint8  // The area id assigned to the span.
	Next *RcSpan
}

// RcHeightfield is a dynamic voxel field: one linked list of spans per
// column, sorted from bottom to top without overlaps.
type RcHeightfield struct {
	Width  int
	Height int
	Bmin   [3]float32
	Bmax   [3]float32
	Cs     float32
	Ch     float32
	Spans  []*RcSpan

	pools    [][]RcSpan
	freelist *RcSpan
}

func RcCreateHeightfield(ctx *RcContext, width, height int, bmin, bmax [3]float32, cs, ch float32) (*RcHeightfield, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w (%d x %d)", ErrEmptyGrid, width, height)
	}
	if cs <= 0 || ch <= 0 {
		return nil, fmt.Errorf("recast: invalid cell size %v/%v", cs, ch)
	}
	if width > RC_MAX_GRID_SIZE || height > RC_MAX_GRID_SIZE || width*height > RC_MAX_GRID_CELLS {
		return nil, fmt.Errorf("%w (%d x %d, at most %d per side and %d cells)",
			ErrGridTooLarge, width, height, RC_MAX_GRID_SIZE, RC_MAX_GRID_CELLS)
	}
	return &RcHeightfield{
		Width:  width,
		Height: height,
		Bmin:   bmin,
		Bmax:   bmax,
		Cs:     cs,
		Ch:     ch,
		Spans:  make([]*RcSpan, width*height),
	}, nil
}

func (hf *RcHeightfield) allocSpan() *RcSpan {
	if hf.freelist == nil {
		pool := make([]RcSpan, RC_SPANS_PER_POOL)
		hf.pools = append(hf.pools, pool)
		for i := len(pool) - 1; i >= 0; i-- {
			pool[i].Next = hf.freelist
			hf.freelist = &pool[i]
		}
	}
	s := hf.freelist
	hf.freelist = s.Next
	s.Next = nil
	return s
}

func (hf *RcHeightfield) freeSpan(s *RcSpan) {
	if s == nil {
		return
	}
	*s = RcSpan{Next: hf.freelist}
	hf.freelist = s
}

// SpanCount returns the number of spans carrying a non-null area.
func (hf *RcHeightfield) SpanCount() int {
	n := 0
	for _, s := range hf.Spans {
		for ; s != nil; s = s.Next {
			if s.Area != RC_NULL_AREA {
				n++
			}
		}
	}
	return n
}

// AddSpan inserts [smin,smax) into column (x,z), merging with every span it
// overlaps. When the merged tops lie within flagMergeThr the larger area id
// wins, so walkable floors are not hidden by coincident geometry.
func (hf *RcHeightfield) AddSpan(x, z int, smin, smax uint16, area uint8, flagMergeThr int) error {
	if x < 0 || x >= hf.Width || z < 0 || z >= hf.Height {
		return fmt.Errorf("recast: span column (%d,%d) out of bounds", x, z)
	}
	if smin >= smax {
		return fmt.Errorf("recast: invalid span [%d,%d)", smin, smax)
	}
	hf.addSpan(x, z, smin, smax, area, flagMergeThr)
	return nil
}

func (hf *RcHeightfield) addSpan(x, z int, smin, smax uint16, area uint8, flagMergeThr int) {
	idx := x + z*hf.Width
	s := hf.allocSpan()
	s.Min = smin
	s.Max = smax
	s.Area = area

	// Empty cell, add the first span.
	if hf.Spans[idx] == nil {
		hf.Spans[idx] = s
		return
	}
	var prev *RcSpan
	cur := hf.Spans[idx]

	// Insert and merge spans.
	for cur != nil {
		if cur.Min > s.Max {
			// Current span is further than the new span, break.
			break
		} else if cur.Max < s.Min {
			// Current span is before the new span, advance.
			prev = cur
			cur = cur.Next
		} else {
			// Merge spans.
			if cur.Min < s.Min {
				s.Min = cur.Min
			}
			if cur.Max > s.Max {
				s.Max = cur.Max
			}
			// Merge flags.
			if common.Abs(int(s.Max)-int(cur.Max)) <= flagMergeThr {
				s.Area = max(s.Area, cur.Area)
			}
			// Remove current span.
			next := cur.Next
			hf.freeSpan(cur)
			if prev != nil {
				prev.Next = next
			} else {
				hf.Spans[idx] = next
			}
			cur = next
		}
	}

	// Insert new span.
	if prev != nil {
		s.Next = prev.Next
		prev.Next = s
	} else {
		s.Next = hf.Spans[idx]
		hf.Spans[idx] = s
	}
}

const (
	rcAxisX = 0
	rcAxisZ = 2
)

// dividePoly splits a convex polygon by the plane axis == x. out1 receives
// the part below the line, out2 the rest.
func dividePoly(in []float32, nin int, out1, out2 []float32, x float32, axis int) (n1, n2 int) {
	var d [12]float32
	for i := 0; i < nin; i++ {
		d[i] = x - in[i*3+axis]
	}
	m, n := 0, 0
	for i, j := 0, nin-1; i < nin; j, i = i, i+1 {
		ina := d[j] >= 0
		inb := d[i] >= 0
		if ina != inb {
			s := d[j] / (d[j] - d[i])
			out1[m*3+0] = in[j*3+0] + (in[i*3+0]-in[j*3+0])*s
			out1[m*3+1] = in[j*3+1] + (in[i*3+1]-in[j*3+1])*s
			out1[m*3+2] = in[j*3+2] + (in[i*3+2]-in[j*3+2])*s
			copy(out2[n*3:n*3+3], out1[m*3:m*3+3])
			m++
			n++
			// Points on the dividing line were already added above.
			if d[i] > 0 {
				copy(out1[m*3:m*3+3], in[i*3:i*3+3])
				m++
			} else if d[i] < 0 {
				copy(out2[n*3:n*3+3], in[i*3:i*3+3])
				n++
			}
		} else {
			if d[i] >= 0 {
				copy(out1[m*3:m*3+3], in[i*3:i*3+3])
				m++
				if d[i] != 0 {
					continue
				}
			}
			copy(out2[n*3:n*3+3], in[i*3:i*3+3])
			n++
		}
	}
	return m, n
}

func rasterizeTri(v0, v1, v2 []float32, area uint8, hf *RcHeightfield, bmin, bmax []float32,
	cs, ics, ich float32, flagMergeThr int, buf []float32) {
	w := hf.Width
	h := hf.Height
	by := bmax[1] - bmin[1]

	// Calculate the bounding box of the triangle.
	var tmin, tmax [3]float32
	common.Vcopy(tmin[:], v0)
	common.Vcopy(tmax[:], v0)
	common.Vmin(tmin[:], v1)
	common.Vmin(tmin[:], v2)
	common.Vmax(tmax[:], v1)
	common.Vmax(tmax[:], v2)

	// If the triangle does not touch the bbox of the heightfield, skip the triangle.
	if !common.OverlapBounds(bmin, bmax, tmin[:], tmax[:]) {
		return
	}

	// Calculate the footprint of the triangle on the grid's z-axis.
	z0 := int((tmin[2] - bmin[2]) * ics)
	z1 := int((tmax[2] - bmin[2]) * ics)
	// Use -1 rather than 0 to cut the polygon properly at the start of the tile.
	z0 = common.Clamp(z0, -1, h-1)
	z1 = common.Clamp(z1, 0, h-1)

	// Clip the triangle into all grid cells it touches.
	const stride = 12 * 3
	in := buf[0:stride]
	inRow := buf[stride : 2*stride]
	p1 := buf[2*stride : 3*stride]
	p2 := buf[3*stride : 4*stride]

	copy(in[0:3], v0)
	copy(in[3:6], v1)
	copy(in[6:9], v2)
	nvIn := 3
	nvRow := 0

	for z := z0; z <= z1; z++ {
		// Clip polygon to row. Store the remaining polygon as well.
		cz := bmin[2] + float32(z)*cs
		nvRow, nvIn = dividePoly(in, nvIn, inRow, p1, cz+cs, rcAxisZ)
		in, p1 = p1, in
		if nvRow < 3 {
			continue
		}
		if z < 0 {
			continue
		}
		// Find the horizontal bounds in the row.
		minX, maxX := inRow[0], inRow[0]
		for i := 1; i < nvRow; i++ {
			minX = min(minX, inRow[i*3])
			maxX = max(maxX, inRow[i*3])
		}
		x0 := int((minX - bmin[0]) * ics)
		x1 := int((maxX - bmin[0]) * ics)
		if x1 < 0 || x0 >= w {
			continue
		}
		x0 = common.Clamp(x0, -1, w-1)
		x1 = common.Clamp(x1, 0, w-1)

		nv2 := nvRow
		for x := x0; x <= x1; x++ {
			// Clip polygon to column. Store the remaining polygon as well.
			cx := bmin[0] + float32(x)*cs
			var nv int
			nv, nv2 = dividePoly(inRow, nv2, p1, p2, cx+cs, rcAxisX)
			inRow, p2 = p2, inRow
			if nv < 3 {
				continue
			}
			if x < 0 {
				continue
			}
			// Calculate min and max of the span.
			smin, smax := p1[1], p1[1]
			for i := 1; i < nv; i++ {
				smin = min(smin, p1[i*3+1])
				smax = max(smax, p1[i*3+1])
			}
			smin -= bmin[1]
			smax -= bmin[1]
			// Skip the span if it is outside the heightfield bbox.
			if smax < 0 {
				continue
			}
			if smin > by {
				continue
			}
			// Clamp the span to the heightfield bbox.
			smin = max(smin, 0)
			smax = min(smax, by)

			// Snap the span to the heightfield height grid.
			ismin := common.Clamp(int(common.Floorf(smin*ich)), 0, RC_SPAN_MAX_HEIGHT)
			ismax := common.Clamp(int(common.Ceilf(smax*ich)), ismin+1, RC_SPAN_MAX_HEIGHT)

			hf.addSpan(x, z, uint16(ismin), uint16(ismax), area, flagMergeThr)
		}
	}
}

// RcRasterizeTriangle rasterizes a single triangle into the heightfield.
func RcRasterizeTriangle(ctx *RcContext, v0, v1, v2 []float32, area uint8, hf *RcHeightfield, flagMergeThr int) {
	ctx.StartTimer(RC_TIMER_RASTERIZE_TRIANGLES)
	defer ctx.StopTimer(RC_TIMER_RASTERIZE_TRIANGLES)
	buf := make([]float32, 4*12*3)
	rasterizeTri(v0, v1, v2, area, hf, hf.Bmin[:], hf.Bmax[:], hf.Cs, 1/hf.Cs, 1/hf.Ch, flagMergeThr, buf)
}

// RcRasterizeTriangles rasterizes indexed triangles, one area id per triangle.
func RcRasterizeTriangles(ctx *RcContext, verts []float32, tris []int32, areas []uint8, hf *RcHeightfield, flagMergeThr int) error {
	ctx.StartTimer(RC_TIMER_RASTERIZE_TRIANGLES)
	defer ctx.StopTimer(RC_TIMER_RASTERIZE_TRIANGLES)

	ntris := len(tris) / 3
	if len(areas) < ntris {
		return fmt.Errorf("recast: %d area ids for %d triangles", len(areas), ntris)
	}
	nverts := int32(len(verts) / 3)
	ics := 1.0 / hf.Cs
	ich := 1.0 / hf.Ch
	buf := make([]float32, 4*12*3)
	for i := 0; i < ntris; i++ {
		t := common.GetVert3(tris, i)
		if t[0] < 0 || t[1] < 0 || t[2] < 0 || t[0] >= nverts || t[1] >= nverts || t[2] >= nverts {
			return fmt.Errorf("recast: triangle %d references vertex out of range", i)
		}
		rasterizeTri(common.GetVert3(verts, t[0]), common.GetVert3(verts, t[1]), common.GetVert3(verts, t[2]),
			areas[i], hf, hf.Bmin[:], hf.Bmax[:], hf.Cs, ics, ich, flagMergeThr, buf)
	}
	return nil
}
