package pathing

import (
	"container/heap"
	"math"

	"github.com/jakecoffman/cp"
)

// corridorSearch is A* over the triangle adjacency graph. Nodes are entered
// at the midpoint of the portal they were reached through, so costs are
// distances between portal midpoints.
type corridorSearch struct {
	mesh     *NavMesh
	target   cp.Vector
	distance float64
	effort   float64
	goals    map[int]cp.Vector

	cameFrom map[int]int
	gScore   map[int]float64
	entry    map[int]cp.Vector
}

// run returns the triangle corridor and the point where the path ends.
func (s *corridorSearch) run(start meshPoint) ([]int, cp.Vector, bool) {
	s.cameFrom = map[int]int{start.tri: -1}
	s.gScore = map[int]float64{start.tri: 0}
	s.entry = map[int]cp.Vector{start.tri: start.point}

	f0 := s.heuristic(start.point)
	if f0 > s.effort {
		return nil, cp.Vector{}, false
	}
	open := &openSet{}
	heap.Init(open)
	heap.Push(open, &openItem{tri: start.tri, f: f0})

	for open.Len() > 0 {
		current := heap.Pop(open).(*openItem)
		if current.finish {
			return s.reconstruct(current.tri), current.point, true
		}
		if current.g > s.gScore[current.tri] {
			continue
		}
		pos := s.entry[current.tri]

		if goal, ok := s.goals[current.tri]; ok {
			g := current.g + pos.Distance(goal)
			f := g + goal.Distance(s.target)
			if f <= s.effort {
				heap.Push(open, &openItem{tri: current.tri, f: f, g: g, finish: true, point: goal})
			}
		}

		for _, nb := range s.mesh.triangles[current.tri].Neighbors {
			if nb < 0 {
				continue
			}
			left, right, ok := s.mesh.portal(current.tri, nb)
			if !ok {
				continue
			}
			mid := left.Lerp(right, 0.5)
			tentativeG := current.g + pos.Distance(mid)
			if old, seen := s.gScore[nb]; seen && tentativeG >= old {
				continue
			}
			f := tentativeG + s.heuristic(mid)
			if f > s.effort {
				continue
			}
			s.cameFrom[nb] = current.tri
			s.gScore[nb] = tentativeG
			s.entry[nb] = mid
			heap.Push(open, &openItem{tri: nb, f: f, g: tentativeG})
		}
	}
	return nil, cp.Vector{}, false
}

// heuristic is a lower bound of the remaining cost: the straight distance to
// the target minus the accepted arrival distance.
func (s *corridorSearch) heuristic(p cp.Vector) float64 {
	return math.Max(0, p.Distance(s.target)-s.distance)
}

func (s *corridorSearch) reconstruct(goal int) []int {
	path := make([]int, 0, 16)
	for cur := goal; cur != -1; cur = s.cameFrom[cur] {
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

type openItem struct {
	tri    int
	f      float64
	g      float64
	finish bool
	point  cp.Vector
	index  int
}

type openSet []*openItem

func (o openSet) Len() int { return len(o) }
func (o openSet) Less(i, j int) bool {
	if o[i].f != o[j].f {
		return o[i].f < o[j].f
	}
	if o[i].finish != o[j].finish {
		return o[i].finish
	}
	return o[i].tri < o[j].tri
}
func (o openSet) Swap(i, j int) {
	o[i], o[j] = o[j], o[i]
	o[i].index = i
	o[j].index = j
}
func (o *openSet) Push(x any) {
	item := x.(*openItem)
	item.index = len(*o)
	*o = append(*o, item)
}
func (o *openSet) Pop() any {
	old := *o
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*o = old[:n-1]
	return item
}
