package recast

// RcErodeWalkableArea clears the area of every span closer than radius cells
// to a non-walkable span or to the edge of the walkable field.
func RcErodeWalkableArea(ctx *RcContext, radius int, chf *RcCompactHeightfield) {
	ctx.StartTimer(RC_TIMER_ERODE_AREA)
	defer ctx.StopTimer(RC_TIMER_ERODE_AREA)

	w := chf.Width
	h := chf.Height
	dist := make([]uint8, chf.SpanCount)
	for i := range dist {
		dist[i] = 0xff
	}

	// Mark boundary cells.
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			c := &chf.Cells[x+z*w]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				if chf.Areas[i] == RC_NULL_AREA {
					dist[i] = 0
					continue
				}
				s := &chf.Spans[i]
				neighbourCount := 0
				for dir := 0; dir < 4; dir++ {
					if RcGetCon(s, dir) == RC_NOT_CONNECTED {
						break
					}
					_, _, ni := chf.neighbourIndex(x, z, s, dir)
					if chf.Areas[ni] == RC_NULL_AREA {
						break
					}
					neighbourCount++
				}
				// At least one missing neighbour.
				if neighbourCount != 4 {
					dist[i] = 0
				}
			}
		}
	}

	relax := func(i, ai int, cost uint8) {
		nd := dist[ai]
		if nd > 0xff-cost {
			nd = 0xff
		} else {
			nd += cost
		}
		if nd < dist[i] {
			dist[i] = nd
		}
	}

	// Pass 1
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			c := &chf.Cells[x+z*w]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				s := &chf.Spans[i]
				if RcGetCon(s, 0) != RC_NOT_CONNECTED {
					// (-1,0)
					ax, az, ai := chf.neighbourIndex(x, z, s, 0)
					relax(i, ai, 2)
					// (-1,-1)
					as := &chf.Spans[ai]
					if RcGetCon(as, 3) != RC_NOT_CONNECTED {
						_, _, aai := chf.neighbourIndex(ax, az, as, 3)
						relax(i, aai, 3)
					}
				}
				if RcGetCon(s, 3) != RC_NOT_CONNECTED {
					// (0,-1)
					ax, az, ai := chf.neighbourIndex(x, z, s, 3)
					relax(i, ai, 2)
					// (1,-1)
					as := &chf.Spans[ai]
					if RcGetCon(as, 2) != RC_NOT_CONNECTED {
						_, _, aai := chf.neighbourIndex(ax, az, as, 2)
						relax(i, aai, 3)
					}
				}
			}
		}
	}

	// Pass 2
	for z := h - 1; z >= 0; z-- {
		for x := w - 1; x >= 0; x-- {
			c := &chf.Cells[x+z*w]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				s := &chf.Spans[i]
				if RcGetCon(s, 2) != RC_NOT_CONNECTED {
					// (1,0)
					ax, az, ai := chf.neighbourIndex(x, z, s, 2)
					relax(i, ai, 2)
					// (1,1)
					as := &chf.Spans[ai]
					if RcGetCon(as, 1) != RC_NOT_CONNECTED {
						_, _, aai := chf.neighbourIndex(ax, az, as, 1)
						relax(i, aai, 3)
					}
				}
				if RcGetCon(s, 1) != RC_NOT_CONNECTED {
					// (0,1)
					ax, az, ai := chf.neighbourIndex(x, z, s, 1)
					relax(i, ai, 2)
					// (-1,1)
					as := &chf.Spans[ai]
					if RcGetCon(as, 0) != RC_NOT_CONNECTED {
						_, _, aai := chf.neighbourIndex(ax, az, as, 0)
						relax(i, aai, 3)
					}
				}
			}
		}
	}

	thr := radius * 2
	for i := 0; i < chf.SpanCount; i++ {
		if int(dist[i]) < thr {
			chf.Areas[i] = RC_NULL_AREA
		}
	}
}
