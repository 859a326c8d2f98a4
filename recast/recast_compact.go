package recast

import (
	"fmt"

	"github.com/gorustyt/solonav/common"
)

// RcCompactCell indexes the spans of one column in RcCompactHeightfield.Spans.
type RcCompactCell struct {
	Index uint32 // Index of the first span in the column.
	Count uint8  // Number of spans in the column.
}

// RcCompactSpan is the open space above a walkable floor.
type RcCompactSpan struct {
	Y   uint16 // The lower extent of the span. (Measured from the heightfield's base.)
	Reg uint16 // The id of the region the span belongs to, or zero if not in a region.
	Con uint32 // Packed neighbour connection data, 6 bits per direction.
	H   uint8  // The height of the span. (Measured from Y.)
}

// RcCompactHeightfield keeps only the open spans of a heightfield together
// with their 4-neighbour connectivity.
type RcCompactHeightfield struct {
	Width          int
	Height         int
	SpanCount      int
	WalkableHeight int
	WalkableClimb  int
	MaxDistance    uint16
	MaxRegions     uint16
	Bmin           [3]float32
	Bmax           [3]float32
	Cs             float32
	Ch             float32
	Cells          []RcCompactCell
	Spans          []RcCompactSpan
	Dist           []uint16 // Border distance per span; nil until RcBuildDistanceField.
	Areas          []uint8
}

// RcSetCon sets the neighbour connection for the given direction.
func RcSetCon(s *RcCompactSpan, dir int, i int) {
	shift := uint32(dir * 6)
	con := s.Con
	s.Con = (con &^ (0x3f << shift)) | ((uint32(i) & 0x3f) << shift)
}

// RcGetCon returns the neighbour layer index for the direction, or RC_NOT_CONNECTED.
func RcGetCon(s *RcCompactSpan, dir int) int {
	shift := uint32(dir * 6)
	return int((s.Con >> shift) & 0x3f)
}

// neighbourIndex returns the span index of the connected neighbour in dir.
func (chf *RcCompactHeightfield) neighbourIndex(x, z int, s *RcCompactSpan, dir int) (nx, nz, ni int) {
	nx = x + common.GetDirOffsetX(dir)
	nz = z + common.GetDirOffsetZ(dir)
	ni = int(chf.Cells[nx+nz*chf.Width].Index) + RcGetCon(s, dir)
	return nx, nz, ni
}

// RcBuildCompactHeightfield converts the walkable spans of hf into a compact
// heightfield and links each span to the neighbour it can step onto.
func RcBuildCompactHeightfield(ctx *RcContext, walkableHeight, walkableClimb int, hf *RcHeightfield) (*RcCompactHeightfield, error) {
	ctx.StartTimer(RC_TIMER_BUILD_COMPACTHEIGHTFIELD)
	defer ctx.StopTimer(RC_TIMER_BUILD_COMPACTHEIGHTFIELD)

	w := hf.Width
	h := hf.Height
	spanCount := hf.SpanCount()
	if spanCount == 0 {
		return nil, ErrNoWalkableSpans
	}

	chf := &RcCompactHeightfield{
		Width:          w,
		Height:         h,
		SpanCount:      spanCount,
		WalkableHeight: walkableHeight,
		WalkableClimb:  walkableClimb,
		Bmin:           hf.Bmin,
		Bmax:           hf.Bmax,
		Cs:             hf.Cs,
		Ch:             hf.Ch,
		Cells:          make([]RcCompactCell, w*h),
		Spans:          make([]RcCompactSpan, spanCount),
		Areas:          make([]uint8, spanCount),
	}
	chf.Bmax[1] += float32(walkableHeight) * hf.Ch

	// Fill in cells and spans.
	idx := 0
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			s := hf.Spans[x+z*w]
			if s == nil {
				continue
			}
			c := &chf.Cells[x+z*w]
			c.Index = uint32(idx)
			c.Count = 0
			for ; s != nil; s = s.Next {
				if s.Area == RC_NULL_AREA {
					continue
				}
				if c.Count == 0xff {
					return nil, fmt.Errorf("%w: column (%d,%d) has more than 255 walkable spans", ErrTooManySpans, x, z)
				}
				bot := int(s.Max)
				top := rcMaxHeight
				if s.Next != nil {
					top = int(s.Next.Min)
				}
				chf.Spans[idx].Y = uint16(common.Clamp(bot, 0, 0xffff))
				chf.Spans[idx].H = uint8(common.Clamp(top-bot, 0, 0xff))
				chf.Areas[idx] = s.Area
				idx++
				c.Count++
			}
		}
	}

	// Find neighbour connections.
	tooHighNeighbour := 0
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			c := &chf.Cells[x+z*w]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				s := &chf.Spans[i]
				for dir := 0; dir < 4; dir++ {
					RcSetCon(s, dir, RC_NOT_CONNECTED)
					nx := x + common.GetDirOffsetX(dir)
					nz := z + common.GetDirOffsetZ(dir)
					// First check that the neighbour cell is in bounds.
					if nx < 0 || nz < 0 || nx >= w || nz >= h {
						continue
					}
					// Iterate over all neighbour spans and check if any of the is
					// accessible from current cell.
					nc := &chf.Cells[nx+nz*w]
					for k := int(nc.Index); k < int(nc.Index)+int(nc.Count); k++ {
						ns := &chf.Spans[k]
						bot := max(int(s.Y), int(ns.Y))
						top := min(int(s.Y)+int(s.H), int(ns.Y)+int(ns.H))

						// Check that the gap between the spans is walkable,
						// and that the climb height between the gaps is not too high.
						if top-bot >= walkableHeight && common.Abs(int(ns.Y)-int(s.Y)) <= walkableClimb {
							// Mark direction as walkable.
							lidx := k - int(nc.Index)
							if lidx < 0 || lidx >= RC_NOT_CONNECTED {
								tooHighNeighbour = max(tooHighNeighbour, lidx)
								continue
							}
							RcSetCon(s, dir, lidx)
							break
						}
					}
				}
			}
		}
	}
	if tooHighNeighbour > RC_NOT_CONNECTED-1 {
		ctx.Errorf("rcBuildCompactHeightfield: Heightfield has too many layers %d (max: %d)", tooHighNeighbour, RC_NOT_CONNECTED-1)
	}
	return chf, nil
}
