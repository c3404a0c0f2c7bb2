package pathing

import "github.com/jakecoffman/cp"

type portalEdge struct {
	left  cp.Vector
	right cp.Vector
}

// corridorPortals returns the shared edges crossed when walking corridor.
func (m *NavMesh) corridorPortals(corridor []int) []portalEdge {
	portals := make([]portalEdge, 0, len(corridor)+1)
	for i := 1; i < len(corridor); i++ {
		left, right, ok := m.portal(corridor[i-1], corridor[i])
		if !ok {
			return nil
		}
		portals = append(portals, portalEdge{left: left, right: right})
	}
	return portals
}

// stringPull returns the shortest polyline from start to end that passes
// through every portal in order. The first point is start and the last is
// end.
func stringPull(start, end cp.Vector, portals []portalEdge, eps float64) []cp.Vector {
	edges := make([]portalEdge, 0, len(portals)+2)
	edges = append(edges, portalEdge{left: start, right: start})
	edges = append(edges, portals...)
	edges = append(edges, portalEdge{left: end, right: end})

	same := func(a, b cp.Vector) bool { return a.DistanceSq(b) <= eps*eps }
	points := []cp.Vector{start}
	push := func(p cp.Vector) {
		if !same(points[len(points)-1], p) {
			points = append(points, p)
		}
	}

	apex, left, right := start, start, start
	apexIdx, leftIdx, rightIdx := 0, 0, 0
	for i := 1; i < len(edges); i++ {
		l, r := edges[i].left, edges[i].right

		if right.Sub(apex).Cross(r.Sub(apex)) >= 0 {
			if same(apex, right) || left.Sub(apex).Cross(r.Sub(apex)) < 0 {
				right, rightIdx = r, i
			} else {
				push(left)
				apex, apexIdx = left, leftIdx
				left, right = apex, apex
				leftIdx, rightIdx = apexIdx, apexIdx
				i = apexIdx
				continue
			}
		}

		if left.Sub(apex).Cross(l.Sub(apex)) <= 0 {
			if same(apex, left) || right.Sub(apex).Cross(l.Sub(apex)) > 0 {
				left, leftIdx = l, i
			} else {
				push(right)
				apex, apexIdx = right, rightIdx
				left, right = apex, apex
				leftIdx, rightIdx = apexIdx, apexIdx
				i = apexIdx
				continue
			}
		}
	}
	push(end)
	return points
}
