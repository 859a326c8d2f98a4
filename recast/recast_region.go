package recast

import (
	"fmt"
	"sort"
)

const (
	rcNbStacks       = 8
	rcExpandIters    = 8
	rcUnsetDistance  = 0xffff
	rcMaxRegionCount = 0xfffe
)

func calculateDistanceField(chf *RcCompactHeightfield, src []uint16) (maxDist uint16) {
	w := chf.Width
	h := chf.Height
	for i := range src {
		src[i] = rcUnsetDistance
	}

	// Mark boundary cells.
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			c := &chf.Cells[x+z*w]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				s := &chf.Spans[i]
				area := chf.Areas[i]
				nc := 0
				for dir := 0; dir < 4; dir++ {
					if RcGetCon(s, dir) != RC_NOT_CONNECTED {
						_, _, ai := chf.neighbourIndex(x, z, s, dir)
						if area == chf.Areas[ai] {
							nc++
						}
					}
				}
				if nc != 4 {
					src[i] = 0
				}
			}
		}
	}

	relax := func(i, ai int, cost int) {
		if int(src[ai])+cost < int(src[i]) {
			src[i] = uint16(int(src[ai]) + cost)
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

	for i := 0; i < chf.SpanCount; i++ {
		maxDist = max(src[i], maxDist)
	}
	return maxDist
}

func boxBlur(chf *RcCompactHeightfield, thr int, src, dst []uint16) []uint16 {
	w := chf.Width
	h := chf.Height
	thr *= 2
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			c := &chf.Cells[x+z*w]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				s := &chf.Spans[i]
				cd := int(src[i])
				if cd <= thr {
					dst[i] = uint16(cd)
					continue
				}
				d := cd
				for dir := 0; dir < 4; dir++ {
					if RcGetCon(s, dir) != RC_NOT_CONNECTED {
						ax, az, ai := chf.neighbourIndex(x, z, s, dir)
						d += int(src[ai])
						as := &chf.Spans[ai]
						dir2 := (dir + 1) & 0x3
						if RcGetCon(as, dir2) != RC_NOT_CONNECTED {
							_, _, ai2 := chf.neighbourIndex(ax, az, as, dir2)
							d += int(src[ai2])
						} else {
							d += cd
						}
					} else {
						d += cd * 2
					}
				}
				dst[i] = uint16((d + 5) / 9)
			}
		}
	}
	return dst
}

// RcBuildDistanceField computes for every span its chamfer distance to the
// nearest area boundary (2 per orthogonal step, 3 per diagonal step) and
// smooths it with a 3x3 box blur.
func RcBuildDistanceField(ctx *RcContext, chf *RcCompactHeightfield) {
	ctx.StartTimer(RC_TIMER_BUILD_DISTANCEFIELD)
	defer ctx.StopTimer(RC_TIMER_BUILD_DISTANCEFIELD)

	src := make([]uint16, chf.SpanCount)
	dst := make([]uint16, chf.SpanCount)
	chf.MaxDistance = calculateDistanceField(chf, src)
	// Blur
	chf.Dist = boxBlur(chf, 1, src, dst)
}

type levelStackEntry struct {
	x     int
	z     int
	index int
}

func floodRegion(x, z, i int, level, r uint16, chf *RcCompactHeightfield,
	srcReg, srcDist []uint16, stack []levelStackEntry) (bool, []levelStackEntry) {
	area := chf.Areas[i]

	// Flood fill mark region.
	stack = append(stack[:0], levelStackEntry{x, z, i})
	srcReg[i] = r
	srcDist[i] = 0

	lev := uint16(0)
	if level >= 2 {
		lev = level - 2
	}
	count := 0

	for len(stack) > 0 {
		back := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cx, cz, ci := back.x, back.z, back.index
		cs := &chf.Spans[ci]

		// Check if any of the neighbours already have a valid region set.
		ar := uint16(0)
		for dir := 0; dir < 4 && ar == 0; dir++ {
			// 8 connected
			if RcGetCon(cs, dir) == RC_NOT_CONNECTED {
				continue
			}
			ax, az, ai := chf.neighbourIndex(cx, cz, cs, dir)
			if chf.Areas[ai] != area {
				continue
			}
			nr := srcReg[ai]
			if nr != 0 && nr != r {
				ar = nr
				break
			}
			as := &chf.Spans[ai]
			dir2 := (dir + 1) & 0x3
			if RcGetCon(as, dir2) != RC_NOT_CONNECTED {
				_, _, ai2 := chf.neighbourIndex(ax, az, as, dir2)
				if chf.Areas[ai2] != area {
					continue
				}
				nr2 := srcReg[ai2]
				if nr2 != 0 && nr2 != r {
					ar = nr2
					break
				}
			}
		}
		if ar != 0 {
			srcReg[ci] = 0
			continue
		}
		count++

		// Expand neighbours.
		for dir := 0; dir < 4; dir++ {
			if RcGetCon(cs, dir) == RC_NOT_CONNECTED {
				continue
			}
			ax, az, ai := chf.neighbourIndex(cx, cz, cs, dir)
			if chf.Areas[ai] != area {
				continue
			}
			if chf.Dist[ai] >= lev && srcReg[ai] == 0 {
				srcReg[ai] = r
				srcDist[ai] = 0
				stack = append(stack, levelStackEntry{ax, az, ai})
			}
		}
	}
	return count > 0, stack
}

type dirtyEntry struct {
	index    int
	region   uint16
	distance uint16
}

func expandRegions(maxIter int, level uint16, chf *RcCompactHeightfield, srcReg, srcDist []uint16,
	stack []levelStackEntry, fillStack bool) []levelStackEntry {
	w := chf.Width
	h := chf.Height

	if fillStack {
		// Find cells revealed by the raised level.
		stack = stack[:0]
		for z := 0; z < h; z++ {
			for x := 0; x < w; x++ {
				c := &chf.Cells[x+z*w]
				for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
					if chf.Dist[i] >= level && srcReg[i] == 0 && chf.Areas[i] != RC_NULL_AREA {
						stack = append(stack, levelStackEntry{x, z, i})
					}
				}
			}
		}
	} else {
		// Mark all cells which already have a region.
		for j := range stack {
			i := stack[j].index
			if i >= 0 && srcReg[i] != 0 {
				stack[j].index = -1
			}
		}
	}

	var dirtyEntries []dirtyEntry
	iter := 0
	for len(stack) > 0 {
		failed := 0
		dirtyEntries = dirtyEntries[:0]
		for j := range stack {
			x, z, i := stack[j].x, stack[j].z, stack[j].index
			if i < 0 {
				failed++
				continue
			}
			r := srcReg[i]
			d2 := rcUnsetDistance
			area := chf.Areas[i]
			s := &chf.Spans[i]
			for dir := 0; dir < 4; dir++ {
				if RcGetCon(s, dir) == RC_NOT_CONNECTED {
					continue
				}
				_, _, ai := chf.neighbourIndex(x, z, s, dir)
				if chf.Areas[ai] != area {
					continue
				}
				if srcReg[ai] > 0 {
					if int(srcDist[ai])+2 < d2 {
						r = srcReg[ai]
						d2 = int(srcDist[ai]) + 2
					}
				}
			}
			if r != 0 {
				// Mark as used.
				stack[j].index = -1
				dirtyEntries = append(dirtyEntries, dirtyEntry{i, r, uint16(d2)})
			} else {
				failed++
			}
		}

		// Copy entries that differ between src and dst to keep them in sync.
		for _, e := range dirtyEntries {
			srcReg[e.index] = e.region
			srcDist[e.index] = e.distance
		}

		if failed == len(stack) {
			break
		}
		if level > 0 {
			iter++
			if iter >= maxIter {
				break
			}
		}
	}
	return stack
}

func sortCellsByLevel(startLevel uint16, chf *RcCompactHeightfield, srcReg []uint16,
	stacks *[rcNbStacks][]levelStackEntry, loglevelsPerStack uint) {
	w := chf.Width
	h := chf.Height
	start := int(startLevel >> loglevelsPerStack)
	for j := range stacks {
		stacks[j] = stacks[j][:0]
	}
	// Put all cells in the level range into the appropriate stacks.
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			c := &chf.Cells[x+z*w]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				if chf.Areas[i] == RC_NULL_AREA || srcReg[i] != 0 {
					continue
				}
				level := int(chf.Dist[i] >> loglevelsPerStack)
				sId := start - level
				if sId >= rcNbStacks {
					continue
				}
				if sId < 0 {
					sId = 0
				}
				stacks[sId] = append(stacks[sId], levelStackEntry{x, z, i})
			}
		}
	}
}

func appendStacks(src, dst []levelStackEntry, srcReg []uint16) []levelStackEntry {
	for _, e := range src {
		if e.index < 0 || srcReg[e.index] != 0 {
			continue
		}
		dst = append(dst, e)
	}
	return dst
}

// RcBuildRegions partitions the walkable spans into non-overlapping regions
// with a watershed flood over the distance field, then removes small islands
// and merges small regions into their neighbours.
func RcBuildRegions(ctx *RcContext, chf *RcCompactHeightfield, minRegionArea, mergeRegionArea int) error {
	ctx.StartTimer(RC_TIMER_BUILD_REGIONS)
	defer ctx.StopTimer(RC_TIMER_BUILD_REGIONS)

	if chf.Dist == nil {
		return fmt.Errorf("recast: distance field missing, build it before regions")
	}

	srcReg := make([]uint16, chf.SpanCount)
	srcDist := make([]uint16, chf.SpanCount)
	var lvlStacks [rcNbStacks][]levelStackEntry
	var stack []levelStackEntry

	regionId := uint16(1)
	level := (chf.MaxDistance + 1) &^ 1

	sId := -1
	for level > 0 {
		if level >= 2 {
			level -= 2
		} else {
			level = 0
		}
		sId = (sId + 1) & (rcNbStacks - 1)

		if sId == 0 {
			sortCellsByLevel(level, chf, srcReg, &lvlStacks, 1)
		} else {
			// Copy left overs from last level.
			lvlStacks[sId] = appendStacks(lvlStacks[sId-1], lvlStacks[sId], srcReg)
		}

		// Expand current regions until no empty connected cells found.
		lvlStacks[sId] = expandRegions(rcExpandIters, level, chf, srcReg, srcDist, lvlStacks[sId], false)

		// Mark new regions with IDs.
		for _, current := range lvlStacks[sId] {
			if current.index >= 0 && srcReg[current.index] == 0 {
				var ok bool
				ok, stack = floodRegion(current.x, current.z, current.index, level, regionId, chf, srcReg, srcDist, stack)
				if ok {
					if regionId == rcMaxRegionCount {
						return fmt.Errorf("%w: more than %d regions", ErrRegionIdOverflow, rcMaxRegionCount)
					}
					regionId++
				}
			}
		}
	}

	// Expand current regions until no empty connected cells found.
	expandRegions(rcExpandIters*8, 0, chf, srcReg, srcDist, stack, true)

	// Merge regions and filter out small regions.
	maxRegionId := mergeAndFilterRegions(ctx, minRegionArea, mergeRegionArea, regionId, chf, srcReg)
	chf.MaxRegions = maxRegionId

	// Write the result out.
	for i := 0; i < chf.SpanCount; i++ {
		chf.Spans[i].Reg = srcReg[i]
	}
	ctx.Progress("rcBuildRegions: %d regions", maxRegionId)
	return nil
}

type regionBorder struct {
	id    uint16
	count int
}

type rcRegion struct {
	spanCount int
	id        uint16
	area      uint8
	remap     bool
	// Neighbours sorted by id with the number of shared span edges.
	borders []regionBorder
	// Regions sharing a column with this one.
	floors []uint16
}

func (r *rcRegion) addBorder(id uint16, n int) {
	k := sort.Search(len(r.borders), func(i int) bool { return r.borders[i].id >= id })
	if k < len(r.borders) && r.borders[k].id == id {
		r.borders[k].count += n
		return
	}
	r.borders = append(r.borders, regionBorder{})
	copy(r.borders[k+1:], r.borders[k:])
	r.borders[k] = regionBorder{id: id, count: n}
}

func (r *rcRegion) removeBorder(id uint16) int {
	for k, b := range r.borders {
		if b.id == id {
			r.borders = append(r.borders[:k], r.borders[k+1:]...)
			return b.count
		}
	}
	return 0
}

func (r *rcRegion) addFloor(id uint16) {
	for _, f := range r.floors {
		if f == id {
			return
		}
	}
	r.floors = append(r.floors, id)
}

func (r *rcRegion) hasFloor(id uint16) bool {
	for _, f := range r.floors {
		if f == id {
			return true
		}
	}
	return false
}

// mergeAndFilterRegions removes islands smaller than minRegionArea, merges
// regions smaller than mergeRegionSize into the neighbour they share the
// longest border with (lowest id on ties) and compacts the ids to 1..n.
func mergeAndFilterRegions(ctx *RcContext, minRegionArea, mergeRegionSize int, maxRegionId uint16,
	chf *RcCompactHeightfield, srcReg []uint16) uint16 {
	w := chf.Width
	h := chf.Height
	nreg := int(maxRegionId) + 1
	regions := make([]rcRegion, nreg)
	for i := range regions {
		regions[i].id = uint16(i)
	}

	// Find edge of a region and find connections around the contour.
	for z := 0; z < h; z++ {
		for x := 0; x < w; x++ {
			c := &chf.Cells[x+z*w]
			for i := int(c.Index); i < int(c.Index)+int(c.Count); i++ {
				r := srcReg[i]
				if r == 0 || int(r) >= nreg {
					continue
				}
				reg := &regions[r]
				reg.spanCount++
				reg.area = chf.Areas[i]

				// Update floors.
				for j := int(c.Index); j < int(c.Index)+int(c.Count); j++ {
					if i == j {
						continue
					}
					floorId := srcReg[j]
					if floorId == 0 || int(floorId) >= nreg || floorId == r {
						continue
					}
					reg.addFloor(floorId)
				}

				s := &chf.Spans[i]
				for dir := 0; dir < 4; dir++ {
					if RcGetCon(s, dir) == RC_NOT_CONNECTED {
						continue
					}
					_, _, ai := chf.neighbourIndex(x, z, s, dir)
					nr := srcReg[ai]
					if nr != 0 && nr != r && int(nr) < nreg {
						reg.addBorder(nr, 1)
					}
				}
			}
		}
	}

	// Remove too small connected groups of regions.
	visited := make([]bool, nreg)
	var trace, stack []uint16
	for i := 1; i < nreg; i++ {
		if visited[i] || regions[i].spanCount == 0 {
			continue
		}
		// Count the total size of all the connected regions.
		spanCount := 0
		trace = trace[:0]
		stack = append(stack[:0], uint16(i))
		visited[i] = true
		for len(stack) > 0 {
			ri := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			creg := &regions[ri]
			spanCount += creg.spanCount
			trace = append(trace, ri)
			for _, b := range creg.borders {
				if visited[b.id] || regions[b.id].area != creg.area {
					continue
				}
				visited[b.id] = true
				stack = append(stack, b.id)
			}
		}
		// If the accumulated region size is too small, remove it.
		if spanCount < minRegionArea {
			for _, ri := range trace {
				regions[ri].spanCount = 0
				regions[ri].id = 0
			}
		}
	}
	// Drop borders towards removed regions.
	for i := 1; i < nreg; i++ {
		reg := &regions[i]
		kept := reg.borders[:0]
		for _, b := range reg.borders {
			if regions[b.id].id != 0 {
				kept = append(kept, b)
			}
		}
		reg.borders = kept
	}

	// Merge too small regions to neighbour regions.
	mergeThreshold := max(minRegionArea, mergeRegionSize)
	for {
		merged := false
		for i := 1; i < nreg; i++ {
			reg := &regions[i]
			if reg.id == 0 || reg.remap || reg.spanCount == 0 {
				continue
			}
			if reg.spanCount >= mergeThreshold {
				continue
			}
			// Find the neighbour sharing the longest border.
			best := -1
			bestCount := 0
			for _, b := range reg.borders {
				target := &regions[b.id]
				if target.id == 0 || target.remap || target.area != reg.area {
					continue
				}
				if reg.hasFloor(b.id) || target.hasFloor(uint16(i)) {
					continue
				}
				if b.count > bestCount {
					best = int(b.id)
					bestCount = b.count
				}
			}
			if best < 0 {
				continue
			}
			mergeRegionInto(regions, uint16(i), uint16(best))
			merged = true
		}
		if !merged {
			break
		}
	}

	// Compress region ids.
	newIds := make([]uint16, nreg)
	regIdGen := uint16(0)
	for i := 1; i < nreg; i++ {
		if regions[i].id == 0 || regions[i].remap || regions[i].spanCount == 0 {
			continue
		}
		regIdGen++
		newIds[i] = regIdGen
	}
	remap := func(r uint16) uint16 {
		for regions[r].remap {
			r = regions[r].id
		}
		if regions[r].id == 0 {
			return 0
		}
		return newIds[r]
	}

	// Remap regions.
	removed := 0
	for i := 0; i < chf.SpanCount; i++ {
		if srcReg[i] == 0 || int(srcReg[i]) >= nreg {
			continue
		}
		srcReg[i] = remap(srcReg[i])
		if srcReg[i] == 0 {
			removed++
		}
	}
	if removed > 0 {
		ctx.Progress("rcBuildRegions: removed %d spans of small islands", removed)
	}
	return regIdGen
}

// mergeRegionInto folds region a into region b.
func mergeRegionInto(regions []rcRegion, a, b uint16) {
	ra := &regions[a]
	rb := &regions[b]
	rb.spanCount += ra.spanCount
	for _, f := range ra.floors {
		rb.addFloor(f)
	}
	rb.removeBorder(a)
	for _, border := range ra.borders {
		if border.id == b {
			continue
		}
		rb.addBorder(border.id, border.count)
		n := &regions[border.id]
		cnt := n.removeBorder(a)
		n.addBorder(b, cnt)
		for k, f := range n.floors {
			if f == a {
				n.floors[k] = b
			}
		}
	}
	ra.spanCount = 0
	ra.borders = nil
	ra.remap = true
	ra.id = b
}
