package pathing

import (
	"math"
	"sort"

	"github.com/jakecoffman/cp"
)

const maxGridCells = 256

// Triangle is a counter-clockwise triangle of a NavMesh. Neighbors[i] is the
// triangle across the edge Vertices[i] -> Vertices[(i+1)%3], or -1 on the
// mesh boundary.
type Triangle struct {
	Vertices  [3]int
	Neighbors [3]int
}

// NavMesh is a triangulation of the traversable part of a map together with
// triangle adjacency and a uniform grid for point location.
type NavMesh struct {
	points    []cp.Vector
	triangles []Triangle
	eps       float64

	grid gridIndex
}

type gridIndex struct {
	origin cp.Vector
	cell   float64
	cols   int
	rows   int
	cells  [][]int32
}

// newNavMesh builds adjacency and the spatial index. tris must be counter
// clockwise and must not overlap.
func newNavMesh(points []cp.Vector, tris [][3]int, eps float64) *NavMesh {
	m := &NavMesh{
		points:    points,
		triangles: make([]Triangle, len(tris)),
		eps:       eps,
	}
	type edgeKey struct{ a, b int }
	edges := make(map[edgeKey]int, len(tris)*3)
	for i, t := range tris {
		m.triangles[i] = Triangle{Vertices: t, Neighbors: [3]int{-1, -1, -1}}
		for k := 0; k < 3; k++ {
			edges[edgeKey{t[k], t[(k+1)%3]}] = i
		}
	}
	for i, t := range tris {
		for k := 0; k < 3; k++ {
			if j, ok := edges[edgeKey{t[(k+1)%3], t[k]}]; ok {
				m.triangles[i].Neighbors[k] = j
			}
		}
	}
	m.buildGrid()
	return m
}

func (m *NavMesh) buildGrid() {
	if len(m.triangles) == 0 {
		return
	}
	bb := boundingBox(m.points...)
	width := math.Max(bb.R-bb.L, m.eps)
	height := math.Max(bb.T-bb.B, m.eps)
	cell := math.Sqrt(width * height / float64(len(m.triangles)))
	cell = math.Max(cell, math.Max(width, height)/maxGridCells)
	g := gridIndex{
		origin: cp.Vector{X: bb.L, Y: bb.B},
		cell:   cell,
		cols:   int(math.Floor(width/cell)) + 1,
		rows:   int(math.Floor(height/cell)) + 1,
	}
	g.cells = make([][]int32, g.cols*g.rows)
	for i := range m.triangles {
		tbb := m.triangleBB(i)
		c0, r0 := g.cellOf(cp.Vector{X: tbb.L, Y: tbb.B})
		c1, r1 := g.cellOf(cp.Vector{X: tbb.R, Y: tbb.T})
		for r := r0; r <= r1; r++ {
			for c := c0; c <= c1; c++ {
				idx := r*g.cols + c
				g.cells[idx] = append(g.cells[idx], int32(i))
			}
		}
	}
	m.grid = g
}

func (g gridIndex) cellOf(p cp.Vector) (int, int) {
	c := int(math.Floor((p.X - g.origin.X) / g.cell))
	r := int(math.Floor((p.Y - g.origin.Y) / g.cell))
	return clampInt(c, 0, g.cols-1), clampInt(r, 0, g.rows-1)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// forEachNear calls fn for every triangle registered in a grid cell touched
// by the box around p with half size radius. A triangle may be reported more
// than once.
func (m *NavMesh) forEachNear(p cp.Vector, radius float64, fn func(tri int)) {
	if len(m.grid.cells) == 0 {
		return
	}
	c0, r0 := m.grid.cellOf(cp.Vector{X: p.X - radius, Y: p.Y - radius})
	c1, r1 := m.grid.cellOf(cp.Vector{X: p.X + radius, Y: p.Y + radius})
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			for _, t := range m.grid.cells[r*m.grid.cols+c] {
				fn(int(t))
			}
		}
	}
}

// Len returns the number of triangles.
func (m *NavMesh) Len() int {
	if m == nil {
		return 0
	}
	return len(m.triangles)
}

// Triangle returns the i-th triangle.
func (m *NavMesh) Triangle(i int) Triangle {
	return m.triangles[i]
}

// Corners returns the vertex positions of the i-th triangle.
func (m *NavMesh) Corners(i int) [3]cp.Vector {
	t := m.triangles[i].Vertices
	return [3]cp.Vector{m.points[t[0]], m.points[t[1]], m.points[t[2]]}
}

// Area returns the total area covered by the mesh.
func (m *NavMesh) Area() float64 {
	var total float64
	for i := range m.triangles {
		c := m.Corners(i)
		total += orient(c[0], c[1], c[2]) / 2
	}
	return total
}

func (m *NavMesh) triangleBB(i int) cp.BB {
	c := m.Corners(i)
	return boundingBox(c[0], c[1], c[2])
}

func (m *NavMesh) containsPoint(i int, p cp.Vector) bool {
	c := m.Corners(i)
	for k := 0; k < 3; k++ {
		a, b := c[k], c[(k+1)%3]
		if orient(a, b, p) < -m.eps*math.Max(a.Distance(b), 1) {
			return false
		}
	}
	return true
}

// closestPoint returns the point of triangle i closest to p.
func (m *NavMesh) closestPoint(i int, p cp.Vector) cp.Vector {
	if m.containsPoint(i, p) {
		return p
	}
	c := m.Corners(i)
	best := closestPointOnSegment(p, c[0], c[1])
	bestDist := best.DistanceSq(p)
	for k := 1; k < 3; k++ {
		q := closestPointOnSegment(p, c[k], c[(k+1)%3])
		if d := q.DistanceSq(p); d < bestDist {
			best, bestDist = q, d
		}
	}
	return best
}

// Locate returns the lowest indexed triangle containing p.
func (m *NavMesh) Locate(p cp.Vector) (int, bool) {
	found := -1
	m.forEachNear(p, 0, func(t int) {
		if (found < 0 || t < found) && m.containsPoint(t, p) {
			found = t
		}
	})
	return found, found >= 0
}

// Contains reports whether p lies on the mesh.
func (m *NavMesh) Contains(p cp.Vector) bool {
	_, ok := m.Locate(p)
	return ok
}

// meshPoint is a triangle together with its point closest to a query.
type meshPoint struct {
	tri   int
	point cp.Vector
	dist  float64
}

// nearest returns the triangle whose closest point to p is nearest, if that
// point is within maxDist. Ties go to the lowest triangle index.
func (m *NavMesh) nearest(p cp.Vector, maxDist float64) (meshPoint, bool) {
	if t, ok := m.Locate(p); ok {
		return meshPoint{tri: t, point: p}, true
	}
	best := meshPoint{tri: -1, dist: math.Inf(1)}
	m.forEachNear(p, maxDist, func(t int) {
		q := m.closestPoint(t, p)
		d := q.Distance(p)
		if d < best.dist || (d == best.dist && t < best.tri) {
			best = meshPoint{tri: t, point: q, dist: d}
		}
	})
	return best, best.tri >= 0 && best.dist <= maxDist+m.eps
}

// within returns every triangle whose closest point to p is within maxDist,
// ordered by triangle index.
func (m *NavMesh) within(p cp.Vector, maxDist float64) []meshPoint {
	seen := make(map[int]struct{})
	var out []meshPoint
	m.forEachNear(p, maxDist, func(t int) {
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		q := m.closestPoint(t, p)
		if d := q.Distance(p); d <= maxDist+m.eps {
			out = append(out, meshPoint{tri: t, point: q, dist: d})
		}
	})
	sortMeshPoints(out)
	return out
}

func sortMeshPoints(points []meshPoint) {
	sort.Slice(points, func(i, j int) bool { return points[i].tri < points[j].tri })
}

// portal returns the edge shared by triangles from and to as seen when
// moving from from into to.
func (m *NavMesh) portal(from, to int) (left, right cp.Vector, ok bool) {
	t := m.triangles[from]
	for k := 0; k < 3; k++ {
		if t.Neighbors[k] == to {
			right = m.points[t.Vertices[k]]
			left = m.points[t.Vertices[(k+1)%3]]
			return left, right, true
		}
	}
	return cp.Vector{}, cp.Vector{}, false
}
