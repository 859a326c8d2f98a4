package detour

import (
	"math"

	"github.com/gorustyt/solonav/common"
)

// Search heuristic scale.
const H_SCALE = 0.999

// DtQueryFilter defines polygon filtering and traversal costs for navigation
// mesh query operations.
type DtQueryFilter struct {
	areaCost     [DT_MAX_AREAS]float32 // Cost per area type. (Used by default implementation.)
	includeFlags uint16                // Flags for polygons that can be visited. (Used by default implementation.)
	excludeFlags uint16                // Flags for polygons that should not be visited. (Used by default implementation.)
}

func NewDtQueryFilter() *DtQueryFilter {
	f := &DtQueryFilter{includeFlags: DT_POLYFLAGS_ALL}
	for i := range f.areaCost {
		f.areaCost[i] = 1.0
	}
	return f
}

// PassFilter returns true if the polygon can be visited.
func (f *DtQueryFilter) PassFilter(ref DtPolyRef, poly *DtPoly) bool {
	return (poly.Flags&f.includeFlags) != 0 && (poly.Flags&f.excludeFlags) == 0
}

// GetCost returns cost to move from the beginning to the end of a line
// segment that is fully contained within a polygon.
func (f *DtQueryFilter) GetCost(pa, pb []float32, curPoly *DtPoly) float32 {
	return common.Vdist(pa, pb) * f.areaCost[curPoly.GetArea()]
}

func (f *DtQueryFilter) GetAreaCost(i int) float32 {
	if i < 0 || i >= DT_MAX_AREAS {
		return 0
	}
	return f.areaCost[i]
}

// SetAreaCost sets the traversal cost of an area. It reports false and
// changes nothing when i is not a valid area id.
func (f *DtQueryFilter) SetAreaCost(i int, cost float32) bool {
	if i < 0 || i >= DT_MAX_AREAS {
		return false
	}
	f.areaCost[i] = cost
	return true
}

func (f *DtQueryFilter) GetIncludeFlags() uint16      { return f.includeFlags }
func (f *DtQueryFilter) SetIncludeFlags(flags uint16) { f.includeFlags = flags }
func (f *DtQueryFilter) GetExcludeFlags() uint16      { return f.excludeFlags }
func (f *DtQueryFilter) SetExcludeFlags(flags uint16) { f.excludeFlags = flags }

// DtStraightPathPoint is one corner of a straight path.
type DtStraightPathPoint struct {
	Pos   [3]float32
	Flags uint8
	Ref   DtPolyRef // The polygon entered at this point, 0 at the end.
}

// DtRaycastHit provides information about a raycast hit.
type DtRaycastHit struct {
	// The hit parameter. (math.MaxFloat32 if no wall hit.)
	T float32

	// HitNormal The normal of the nearest wall hit. [(x, y, z)]
	HitNormal [3]float32

	// The index of the edge on the final polygon where the wall was hit.
	HitEdgeIndex int

	// Visited polygons, may be nil.
	Path *common.FixedStack[DtPolyRef]
}

// DtNavMeshQuery provides the ability to perform pathfinding related queries
// against a navigation mesh. A query object is not safe for concurrent use;
// the mesh it reads is.
type DtNavMeshQuery struct {
	nav      *DtNavMesh
	nodePool *DtNodePool
	openList NodeQueue[*DtNode]
}

func dtNextPow2(v uint32) uint32 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++
	return v
}

// NewDtNavMeshQuery creates a query against nav with a search node budget
// of maxNodes.
func NewDtNavMeshQuery(nav *DtNavMesh, maxNodes int) (*DtNavMeshQuery, DtStatus) {
	if nav == nil || maxNodes <= 0 || maxNodes >= int(DT_NULL_NODE_IDX) {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	hashSize := int(dtNextPow2(uint32(maxNodes / 4)))
	if hashSize < 1 {
		hashSize = 1
	}
	return &DtNavMeshQuery{
		nav:      nav,
		nodePool: NewDtNodePool(maxNodes, hashSize),
		openList: NewDtNodeQueue(),
	}, DT_SUCCESS
}

func (q *DtNavMeshQuery) GetAttachedNavMesh() *DtNavMesh { return q.nav }

// QueryPolygons finds polygons that overlap the search box.
func (q *DtNavMeshQuery) QueryPolygons(center, halfExtents []float32, filter *DtQueryFilter, maxPolys int) ([]DtPolyRef, DtStatus) {
	if !common.VisFinite(center) || !common.VisFinite(halfExtents) || filter == nil || maxPolys <= 0 {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}
	var bmin, bmax [3]float32
	common.Vsub(bmin[:], center, halfExtents)
	common.Vadd(bmax[:], center, halfExtents)
	return q.nav.queryPolygons(bmin[:], bmax[:], filter, maxPolys), DT_SUCCESS
}

// FindNearestPoly finds the polygon nearest to the specified center point.
// A zero ref with a success status means nothing was inside the box.
func (q *DtNavMeshQuery) FindNearestPoly(center, halfExtents []float32, filter *DtQueryFilter) (nearestRef DtPolyRef, nearestPt []float32, status DtStatus) {
	if !common.VisFinite(center) || !common.VisFinite(halfExtents) || filter == nil {
		return 0, nil, DT_FAILURE | DT_INVALID_PARAM
	}
	var bmin, bmax [3]float32
	common.Vsub(bmin[:], center, halfExtents)
	common.Vadd(bmax[:], center, halfExtents)

	polys := q.nav.queryPolygons(bmin[:], bmax[:], filter, math.MaxInt32)
	nearestDistanceSqr := float32(math.MaxFloat32)
	var diff [3]float32
	for _, ref := range polys {
		closestPtPoly, posOverPoly := q.nav.closestPointOnPoly(ref, center)

		// If a point is directly over a polygon and closer than
		// climb height, favor that instead of straight line nearest point.
		common.Vsub(diff[:], center, closestPtPoly)
		var d float32
		if posOverPoly {
			d = common.Abs(diff[1]) - q.nav.header.WalkableClimb
			if d > 0 {
				d = d * d
			} else {
				d = 0
			}
		} else {
			d = common.VlenSqr(diff[:])
		}

		if d < nearestDistanceSqr {
			nearestPt = closestPtPoly
			nearestDistanceSqr = d
			nearestRef = ref
		}
	}
	return nearestRef, nearestPt, DT_SUCCESS
}

// ClosestPointOnPoly uses the detail polygons to find the surface height.
func (q *DtNavMeshQuery) ClosestPointOnPoly(ref DtPolyRef, pos []float32) (closest []float32, posOverPoly bool, status DtStatus) {
	if !q.nav.IsValidPolyRef(ref) || !common.VisFinite(pos) {
		return nil, false, DT_FAILURE | DT_INVALID_PARAM
	}
	closest, posOverPoly = q.nav.closestPointOnPoly(ref, pos)
	return closest, posOverPoly, DT_SUCCESS
}

// ClosestPointOnPolyBoundary returns a point on the boundary closest to the
// source point if the source point is outside the polygon's xz-bounds, and
// the source point itself otherwise.
func (q *DtNavMeshQuery) ClosestPointOnPolyBoundary(ref DtPolyRef, pos []float32) ([]float32, DtStatus) {
	poly, status := q.nav.GetPolyByRef(ref)
	if status.Failed() || !common.VisFinite(pos) {
		return nil, DT_FAILURE | DT_INVALID_PARAM
	}

	// Collect vertices.
	var verts [DT_VERTS_PER_POLYGON * 3]float32
	var edged, edget [DT_VERTS_PER_POLYGON]float32
	nv := q.nav.polyVerts(poly, verts[:])

	closest := make([]float32, 3)
	if dtDistancePtPolyEdgesSqr(pos, verts[:], nv, edged[:], edget[:]) {
		// Point is inside the polygon, return the point.
		copy(closest, pos)
		return closest, DT_SUCCESS
	}
	// Point is outside the polygon, clamp to nearest edge.
	dmin := edged[0]
	imin := 0
	for i := 1; i < nv; i++ {
		if edged[i] < dmin {
			dmin = edged[i]
			imin = i
		}
	}
	va := verts[imin*3 : imin*3+3]
	vb := verts[((imin+1)%nv)*3 : ((imin+1)%nv)*3+3]
	common.Vlerp(closest, va, vb, edget[imin])
	return closest, DT_SUCCESS
}

// GetPolyHeight gets the height of the polygon at the provided position
// using the height detail.
func (q *DtNavMeshQuery) GetPolyHeight(ref DtPolyRef, pos []float32) (float32, DtStatus) {
	if !q.nav.IsValidPolyRef(ref) || !common.VisFinite(pos) {
		return 0, DT_FAILURE | DT_INVALID_PARAM
	}
	if h, ok := q.nav.getPolyHeight(dtDecodePolyRef(ref), pos); ok {
		return h, DT_SUCCESS
	}
	return 0, DT_FAILURE | DT_INVALID_PARAM
}

// FindPath finds a path from the start polygon to the end polygon and writes
// the polygon corridor into path, whose capacity bounds its length.
// DT_PARTIAL_RESULT is set when the end polygon was not reached, in which
// case the path leads to the polygon closest to the end.
func (q *DtNavMeshQuery) FindPath(startRef, endRef DtPolyRef, startPos, endPos []float32, filter *DtQueryFilter, path *common.FixedStack[DtPolyRef]) DtStatus {
	if path == nil || path.Cap() <= 0 || filter == nil {
		return DT_FAILURE | DT_INVALID_PARAM
	}
	path.Clear()
	// Validate input
	if !q.nav.IsValidPolyRef(startRef) || !q.nav.IsValidPolyRef(endRef) ||
		!common.VisFinite(startPos) || !common.VisFinite(endPos) {
		return DT_FAILURE | DT_INVALID_PARAM
	}

	if startRef == endRef {
		_ = path.Push(startRef)
		return DT_SUCCESS
	}

	q.nodePool.Clear()
	q.openList.Reset()

	startNode := q.nodePool.GetNode(startRef)
	copy(startNode.Pos[:], startPos)
	startNode.Pidx = 0
	startNode.Cost = 0
	startNode.Total = common.Vdist(startPos, endPos) * H_SCALE
	startNode.Id = startRef
	startNode.Flags = DT_NODE_OPEN
	q.openList.Offer(startNode)

	lastBestNode := startNode
	lastBestNodeCost := startNode.Total
	outOfNodes := false

	for !q.openList.Empty() {
		// Remove node from open list and put it in closed list.
		bestNode := q.openList.Poll()
		bestNode.Flags &= ^uint32(DT_NODE_OPEN)
		bestNode.Flags |= DT_NODE_CLOSED

		// Reached the goal, stop searching.
		if bestNode.Id == endRef {
			lastBestNode = bestNode
			break
		}

		// Get current poly and parent.
		bestRef := bestNode.Id
		bestPoly := q.nav.getPolyByRefUnsafe(bestRef)
		var parentRef DtPolyRef
		if bestNode.Pidx != 0 {
			parentRef = q.nodePool.GetNodeAtIdx(bestNode.Pidx).Id
		}

		for i := 0; i < int(bestPoly.VertCount); i++ {
			neighbourRef := DtPolyRef(bestPoly.Neis[i])

			// Skip invalid ids and do not expand back to where we came from.
			if neighbourRef == 0 || neighbourRef == parentRef {
				continue
			}

			neighbourPoly := q.nav.getPolyByRefUnsafe(neighbourRef)
			if !filter.PassFilter(neighbourRef, neighbourPoly) {
				continue
			}

			neighbourNode := q.nodePool.GetNode(neighbourRef)
			if neighbourNode == nil {
				outOfNodes = true
				continue
			}

			// If the node is visited the first time, calculate node position.
			if neighbourNode.Flags == 0 {
				q.nav.getEdgeMidPoint(bestRef, neighbourRef, neighbourNode.Pos[:])
			}

			// Calculate cost and heuristic.
			var cost, heuristic float32

			// Special case for last node.
			if neighbourRef == endRef {
				// Cost
				curCost := filter.GetCost(bestNode.Pos[:], neighbourNode.Pos[:], bestPoly)
				endCost := filter.GetCost(neighbourNode.Pos[:], endPos, neighbourPoly)
				cost = bestNode.Cost + curCost + endCost
				heuristic = 0
			} else {
				curCost := filter.GetCost(bestNode.Pos[:], neighbourNode.Pos[:], bestPoly)
				cost = bestNode.Cost + curCost
				heuristic = common.Vdist(neighbourNode.Pos[:], endPos) * H_SCALE
			}
			total := cost + heuristic

			// The node is already in open list and the new result is worse, skip.
			if (neighbourNode.Flags&DT_NODE_OPEN) != 0 && total >= neighbourNode.Total {
				continue
			}
			// The node is already visited and process, and the new result is worse, skip.
			if (neighbourNode.Flags&DT_NODE_CLOSED) != 0 && total >= neighbourNode.Total {
				continue
			}

			// Add or update the node.
			neighbourNode.Pidx = q.nodePool.GetNodeIdx(bestNode)
			neighbourNode.Id = neighbourRef
			neighbourNode.Flags = neighbourNode.Flags & ^uint32(DT_NODE_CLOSED)
			neighbourNode.Cost = cost
			neighbourNode.Total = total

			if (neighbourNode.Flags & DT_NODE_OPEN) != 0 {
				// Already in open, update node location.
				q.openList.Update(neighbourNode)
			} else {
				// Put the node in open list.
				neighbourNode.Flags |= DT_NODE_OPEN
				q.openList.Offer(neighbourNode)
			}

			// Update nearest node to target so far.
			if heuristic < lastBestNodeCost {
				lastBestNodeCost = heuristic
				lastBestNode = neighbourNode
			}
		}
	}

	status := q.getPathToNode(lastBestNode, path)
	if lastBestNode.Id != endRef {
		status |= DT_PARTIAL_RESULT
	}
	if outOfNodes {
		status |= DT_OUT_OF_NODES
	}
	return status
}

func (q *DtNavMeshQuery) getPathToNode(endNode *DtNode, path *common.FixedStack[DtPolyRef]) DtStatus {
	// Find the length of the entire path, end first.
	var nodes []*DtNode
	for cur := endNode; cur != nil; cur = q.nodePool.GetNodeAtIdx(cur.Pidx) {
		nodes = append(nodes, cur)
	}
	// If the path cannot be fully stored then keep the part nearest the start.
	length := len(nodes)
	writeCount := min(length, path.Cap())
	for i := length - 1; i >= length-writeCount; i-- {
		_ = path.Push(nodes[i].Id)
	}
	if length > path.Cap() {
		return DT_SUCCESS | DT_BUFFER_TOO_SMALL
	}
	return DT_SUCCESS
}

func appendVertex(pos []float32, flags uint8, ref DtPolyRef, straightPath *common.FixedStack[DtStraightPathPoint]) DtStatus {
	if n := straightPath.Len(); n > 0 {
		last := straightPath.Index(n - 1)
		if common.Vequal(last.Pos[:], pos) {
			// The vertices are equal, update flags and poly.
			last.Flags = flags
			last.Ref = ref
			straightPath.Set(n-1, last)
			return DT_IN_PROGRESS
		}
	}
	// Append new vertex.
	pt := DtStraightPathPoint{Flags: flags, Ref: ref}
	copy(pt.Pos[:], pos)
	if err := straightPath.Push(pt); err != nil {
		return DT_SUCCESS | DT_BUFFER_TOO_SMALL
	}
	// If there is no space to append more vertices, return.
	if straightPath.Full() {
		return DT_SUCCESS | DT_BUFFER_TOO_SMALL
	}
	// If reached end of path, return.
	if flags == DT_STRAIGHTPATH_END {
		return DT_SUCCESS
	}
	return DT_IN_PROGRESS
}

func (q *DtNavMeshQuery) appendPortals(startIdx, endIdx int, endPos []float32, path []DtPolyRef,
	straightPath *common.FixedStack[DtStraightPathPoint], options int) DtStatus {
	last, _ := straightPath.Top()
	startPos := last.Pos
	// Append or update last vertex
	for i := startIdx; i < endIdx; i++ {
		// Calculate portal
		from := path[i]
		fromPoly, status := q.nav.GetPolyByRef(from)
		if status.Failed() {
			return DT_FAILURE | DT_INVALID_PARAM
		}
		to := path[i+1]
		toPoly, status := q.nav.GetPolyByRef(to)
		if status.Failed() {
			return DT_FAILURE | DT_INVALID_PARAM
		}
		left, right, status := q.nav.getPortalPoints(from, to)
		if status.Failed() {
			break
		}
		if options&DT_STRAIGHTPATH_AREA_CROSSINGS != 0 {
			// Skip intersection if only area crossings are requested.
			if fromPoly.GetArea() == toPoly.GetArea() {
				continue
			}
		}

		// Append intersection
		if _, t, ok := dtIntersectSegSeg2D(startPos[:], endPos, left, right); ok {
			var pt [3]float32
			common.Vlerp(pt[:], left, right, t)
			stat := appendVertex(pt[:], 0, path[i+1], straightPath)
			if stat != DT_IN_PROGRESS {
				return stat
			}
		}
	}
	return DT_IN_PROGRESS
}

// FindStraightPath finds the straight path from the start to the end
// position within the polygon corridor, using the funnel algorithm. The
// capacity of straightPath bounds the number of corners.
func (q *DtNavMeshQuery) FindStraightPath(startPos, endPos []float32, path []DtPolyRef,
	straightPath *common.FixedStack[DtStraightPathPoint], options int) DtStatus {
	if straightPath == nil || straightPath.Cap() <= 0 {
		return DT_FAILURE | DT_INVALID_PARAM
	}
	straightPath.Clear()
	if !common.VisFinite(startPos) || !common.VisFinite(endPos) || len(path) == 0 || path[0] == 0 {
		return DT_FAILURE | DT_INVALID_PARAM
	}
	pathSize := len(path)
	crossings := options&(DT_STRAIGHTPATH_AREA_CROSSINGS|DT_STRAIGHTPATH_ALL_CROSSINGS) != 0

	closestStartPos, status := q.ClosestPointOnPolyBoundary(path[0], startPos)
	if status.Failed() {
		return DT_FAILURE | DT_INVALID_PARAM
	}
	closestEndPos, status := q.ClosestPointOnPolyBoundary(path[pathSize-1], endPos)
	if status.Failed() {
		return DT_FAILURE | DT_INVALID_PARAM
	}

	// Add start point.
	stat := appendVertex(closestStartPos, DT_STRAIGHTPATH_START, path[0], straightPath)
	if stat != DT_IN_PROGRESS {
		return stat
	}

	if pathSize > 1 {
		portalApex := append([]float32(nil), closestStartPos...)
		portalLeft := append([]float32(nil), portalApex...)
		portalRight := append([]float32(nil), portalApex...)
		apexIndex := 0
		leftIndex := 0
		rightIndex := 0

		leftPolyRef := path[0]
		rightPolyRef := path[0]

		for i := 0; i < pathSize; i++ {
			var left, right []float32
			if i+1 < pathSize {
				// Next portal.
				var status DtStatus
				left, right, status = q.nav.getPortalPoints(path[i], path[i+1])
				if status.Failed() {
					// Failed to get portal points, in practice this means that path[i+1] is invalid polygon.
					// Clamp the end point to path[i], and return the path so far.
					closestEndPos, status = q.ClosestPointOnPolyBoundary(path[i], endPos)
					if status.Failed() {
						// This should only happen when the first polygon is invalid.
						return DT_FAILURE | DT_INVALID_PARAM
					}

					// Append portals along the current straight path segment.
					if crossings {
						// Ignore status return value as we're just about to return anyway.
						q.appendPortals(apexIndex, i, closestEndPos, path, straightPath, options)
					}

					// Ignore status return value as we're just about to return anyway.
					appendVertex(closestEndPos, 0, path[i], straightPath)
					res := DT_SUCCESS | DT_PARTIAL_RESULT
					if straightPath.Full() {
						res |= DT_BUFFER_TOO_SMALL
					}
					return res
				}

				// If starting really close the portal, advance.
				if i == 0 {
					if d, _ := common.DistancePtSegSqr2D(portalApex, left, right); d < common.Sqr(float32(0.001)) {
						continue
					}
				}
			} else {
				// End of the path.
				left = append([]float32(nil), closestEndPos...)
				right = append([]float32(nil), closestEndPos...)
			}

			// Right vertex.
			if common.TriArea2D(portalApex, portalRight, right) <= 0.0 {
				if common.Vequal(portalApex, portalRight) || common.TriArea2D(portalApex, portalLeft, right) > 0.0 {
					copy(portalRight, right)
					rightPolyRef = 0
					if i+1 < pathSize {
						rightPolyRef = path[i+1]
					}
					rightIndex = i
				} else {
					// Append portals along the current straight path segment.
					if crossings {
						stat = q.appendPortals(apexIndex, leftIndex, portalLeft, path, straightPath, options)
						if stat != DT_IN_PROGRESS {
							return stat
						}
					}

					copy(portalApex, portalLeft)
					apexIndex = leftIndex

					var flags uint8
					if leftPolyRef == 0 {
						flags = DT_STRAIGHTPATH_END
					}

					// Append or update vertex
					stat = appendVertex(portalApex, flags, leftPolyRef, straightPath)
					if stat != DT_IN_PROGRESS {
						return stat
					}

					copy(portalLeft, portalApex)
					copy(portalRight, portalApex)
					leftIndex = apexIndex
					rightIndex = apexIndex

					// Restart
					i = apexIndex
					continue
				}
			}

			// Left vertex.
			if common.TriArea2D(portalApex, portalLeft, left) >= 0.0 {
				if common.Vequal(portalApex, portalLeft) || common.TriArea2D(portalApex, portalRight, left) < 0.0 {
					copy(portalLeft, left)
					leftPolyRef = 0
					if i+1 < pathSize {
						leftPolyRef = path[i+1]
					}
					leftIndex = i
				} else {
					// Append portals along the current straight path segment.
					if crossings {
						stat = q.appendPortals(apexIndex, rightIndex, portalRight, path, straightPath, options)
						if stat != DT_IN_PROGRESS {
							return stat
						}
					}

					copy(portalApex, portalRight)
					apexIndex = rightIndex

					var flags uint8
					if rightPolyRef == 0 {
						flags = DT_STRAIGHTPATH_END
					}

					// Append or update vertex
					stat = appendVertex(portalApex, flags, rightPolyRef, straightPath)
					if stat != DT_IN_PROGRESS {
						return stat
					}

					copy(portalLeft, portalApex)
					copy(portalRight, portalApex)
					leftIndex = apexIndex
					rightIndex = apexIndex

					// Restart
					i = apexIndex
					continue
				}
			}
		}

		// Append portals along the current straight path segment.
		if crossings {
			stat = q.appendPortals(apexIndex, pathSize-1, closestEndPos, path, straightPath, options)
			if stat != DT_IN_PROGRESS {
				return stat
			}
		}
	}

	// Ignore status return value as we're just about to return anyway.
	appendVertex(closestEndPos, DT_STRAIGHTPATH_END, 0, straightPath)
	if straightPath.Full() {
		return DT_SUCCESS | DT_BUFFER_TOO_SMALL
	}
	return DT_SUCCESS
}

// Raycast casts a 'walkability' ray along the surface of the navigation
// mesh from the start position toward the end position. hit.T is
// math.MaxFloat32 when the ray reaches the end position unobstructed.
func (q *DtNavMeshQuery) Raycast(startRef DtPolyRef, startPos, endPos []float32, filter *DtQueryFilter, hit *DtRaycastHit) DtStatus {
	if hit == nil || filter == nil {
		return DT_FAILURE | DT_INVALID_PARAM
	}
	hit.T = 0
	hit.HitNormal = [3]float32{}
	hit.HitEdgeIndex = -1
	if hit.Path != nil {
		hit.Path.Clear()
	}

	// Validate input
	if !q.nav.IsValidPolyRef(startRef) || !common.VisFinite(startPos) || !common.VisFinite(endPos) {
		return DT_FAILURE | DT_INVALID_PARAM
	}

	var verts [DT_VERTS_PER_POLYGON*3 + 3]float32
	status := DT_SUCCESS

	// Each step crosses into another polygon, so a walk longer than the
	// polygon count is looping through bad adjacency.
	maxSteps := int(q.nav.header.PolyCount)
	curRef := startRef
	for steps := 0; curRef != 0; steps++ {
		if steps > maxSteps {
			return DT_FAILURE | DT_INVALID_PARAM
		}
		// Cast ray against current polygon.
		poly := q.nav.getPolyByRefUnsafe(curRef)
		nv := q.nav.polyVerts(poly, verts[:])

		_, tmax, _, segMax, ok := dtIntersectSegmentPoly2D(startPos, endPos, verts[:], nv)
		if !ok {
			// Could not hit the polygon, keep the old t and report hit.
			return status
		}
		hit.HitEdgeIndex = segMax

		// Keep track of furthest t so far.
		if tmax > hit.T {
			hit.T = tmax
		}

		// Store visited polygons.
		if hit.Path != nil {
			if err := hit.Path.Push(curRef); err != nil {
				status |= DT_BUFFER_TOO_SMALL
			}
		}

		// Ray end is completely inside the polygon.
		if segMax == -1 {
			hit.T = math.MaxFloat32
			return status
		}

		// Follow neighbours.
		var nextRef DtPolyRef
		if nei := DtPolyRef(poly.Neis[segMax]); nei != 0 {
			if filter.PassFilter(nei, q.nav.getPolyByRefUnsafe(nei)) {
				nextRef = nei
			}
		}

		if nextRef == 0 {
			// No neighbour, we hit a wall.

			// Calculate hit normal.
			a := segMax
			b := 0
			if segMax+1 < nv {
				b = segMax + 1
			}
			va := verts[a*3:]
			vb := verts[b*3:]
			dx := vb[0] - va[0]
			dz := vb[2] - va[2]
			hit.HitNormal = [3]float32{dz, 0, -dx}
			common.Vnormalize(hit.HitNormal[:])
			return status
		}

		// No hit, advance to neighbour polygon.
		curRef = nextRef
	}
	return status
}
