package recast

import "github.com/gorustyt/solonav/common"

// RcFilterLowHangingWalkableObstacles marks a non-walkable span walkable when
// its top is within walkableClimb of the walkable span directly below it, so
// curbs and stair steps do not block the floor underneath.
func RcFilterLowHangingWalkableObstacles(ctx *RcContext, walkableClimb int, hf *RcHeightfield) {
	ctx.StartTimer(RC_TIMER_FILTER_LOW_OBSTACLES)
	defer ctx.StopTimer(RC_TIMER_FILTER_LOW_OBSTACLES)

	for z := 0; z < hf.Height; z++ {
		for x := 0; x < hf.Width; x++ {
			var prev *RcSpan
			previousWalkable := false
			previousArea := RC_NULL_AREA
			for s := hf.Spans[x+z*hf.Width]; s != nil; prev, s = s, s.Next {
				walkable := s.Area != RC_NULL_AREA
				// If current span is not walkable, but there is walkable span just below it
				// and the height difference is small enough, mark the current span as walkable too.
				if !walkable && previousWalkable && int(s.Max)-int(prev.Max) <= walkableClimb {
					s.Area = previousArea
				}
				// Copy the original walkable value regardless of whether we changed it.
				// This prevents multiple consecutive non-walkable spans from being erroneously marked as walkable.
				previousWalkable = walkable
				previousArea = s.Area
			}
		}
	}
}

// RcFilterLedgeSpans marks walkable spans whose drop to any neighbour floor
// exceeds walkableClimb, or which sit on a steep local slope, as non-walkable.
// Neighbours outside the grid count as drops.
func RcFilterLedgeSpans(ctx *RcContext, walkableHeight, walkableClimb int, hf *RcHeightfield) {
	ctx.StartTimer(RC_TIMER_FILTER_BORDER)
	defer ctx.StopTimer(RC_TIMER_FILTER_BORDER)

	xSize := hf.Width
	zSize := hf.Height
	for z := 0; z < zSize; z++ {
		for x := 0; x < xSize; x++ {
			for s := hf.Spans[x+z*xSize]; s != nil; s = s.Next {
				// Skip non-walkable spans.
				if s.Area == RC_NULL_AREA {
					continue
				}
				floor := int(s.Max)
				ceiling := rcMaxHeight
				if s.Next != nil {
					ceiling = int(s.Next.Min)
				}

				// The difference between this walkable area and the lowest neighbor walkable area.
				lowestNeighborFloorDifference := rcMaxHeight

				// Min and max height of accessible neighbours.
				lowestTraversableNeighborFloor := floor
				highestTraversableNeighborFloor := floor

				for dir := 0; dir < 4; dir++ {
					nx := x + common.GetDirOffsetX(dir)
					nz := z + common.GetDirOffsetZ(dir)
					// Skip neighbours which are out of bounds.
					if nx < 0 || nz < 0 || nx >= xSize || nz >= zSize {
						lowestNeighborFloorDifference = -walkableClimb - 1
						break
					}
					ns := hf.Spans[nx+nz*xSize]

					// The most we can step down to the neighbor is the walkable climb distance.
					neighborCeiling := rcMaxHeight
					if ns != nil {
						neighborCeiling = int(ns.Min)
					}
					// Skip neighbour if the gap between the spans is too small.
					if min(ceiling, neighborCeiling)-floor >= walkableHeight {
						lowestNeighborFloorDifference = -walkableClimb - 1
						break
					}

					// For each span in the neighboring column...
					for ; ns != nil; ns = ns.Next {
						neighborFloor := int(ns.Max)
						neighborCeiling = rcMaxHeight
						if ns.Next != nil {
							neighborCeiling = int(ns.Next.Min)
						}
						// Only consider neighboring areas that have enough overlap to be potentially traversable.
						if min(ceiling, neighborCeiling)-max(floor, neighborFloor) < walkableHeight {
							// No space to traverse between them.
							continue
						}
						neighborFloorDifference := neighborFloor - floor
						lowestNeighborFloorDifference = min(lowestNeighborFloorDifference, neighborFloorDifference)

						// Find min/max accessible neighbor height.
						// Only consider neighbors that are at most walkableClimb away.
						if common.Abs(neighborFloorDifference) <= walkableClimb {
							lowestTraversableNeighborFloor = min(lowestTraversableNeighborFloor, neighborFloor)
							highestTraversableNeighborFloor = max(highestTraversableNeighborFloor, neighborFloor)
						} else if neighborFloorDifference < -walkableClimb {
							// We already know this will be considered a ledge span so we can early-out
							break
						}
					}
				}

				// The current span is close to a ledge if the magnitude of the drop to any neighbour span
				// is greater than the walkableClimb distance.
				if lowestNeighborFloorDifference < -walkableClimb {
					s.Area = RC_NULL_AREA
				} else if highestTraversableNeighborFloor-lowestTraversableNeighborFloor > walkableClimb {
					// If the difference between all neighbor floors is too large, this is a steep slope.
					s.Area = RC_NULL_AREA
				}
			}
		}
	}
}

// RcFilterWalkableLowHeightSpans marks walkable spans whose free space above
// is lower than walkableHeight as non-walkable.
func RcFilterWalkableLowHeightSpans(ctx *RcContext, walkableHeight int, hf *RcHeightfield) {
	ctx.StartTimer(RC_TIMER_FILTER_WALKABLE)
	defer ctx.StopTimer(RC_TIMER_FILTER_WALKABLE)

	// Remove walkable flag from spans which do not have enough
	// space above them for the agent to stand there.
	for z := 0; z < hf.Height; z++ {
		for x := 0; x < hf.Width; x++ {
			for s := hf.Spans[x+z*hf.Width]; s != nil; s = s.Next {
				bot := int(s.Max)
				top := rcMaxHeight
				if s.Next != nil {
					top = int(s.Next.Min)
				}
				if top-bot < walkableHeight {
					s.Area = RC_NULL_AREA
				}
			}
		}
	}
}
