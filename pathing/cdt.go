package pathing

import (
	"fmt"
	"math"
	"sort"

	"github.com/jakecoffman/cp"
)

// superVertices is the number of synthetic vertices of the enclosing
// triangle; they occupy the first indices of cdt.pts.
const superVertices = 3

type cdtTriangle struct {
	v [3]int
	// n[k] is the triangle across edge v[k] -> v[(k+1)%3], -1 if none.
	n [3]int
	// c[k] marks edge k as a constraint.
	c    [3]bool
	dead bool
}

// cdt is an incremental constrained Delaunay triangulation.
type cdt struct {
	eps   float64
	pts   []cp.Vector
	tris  []cdtTriangle
	vtri  []int
	last  int
	stamp []int
	epoch int
}

func newCDT(bounds MapBounds, points []cp.Vector, eps float64) *cdt {
	size := bounds.Size()
	m := math.Max(size.X, size.Y)
	center := bounds.Min.Add(size.Mult(0.5))
	pts := make([]cp.Vector, 0, len(points)+superVertices)
	pts = append(pts,
		center.Add(cp.Vector{X: -20 * m, Y: -m}),
		center.Add(cp.Vector{X: 20 * m, Y: -m}),
		center.Add(cp.Vector{X: 0, Y: 20 * m}),
	)
	pts = append(pts, points...)
	vtri := make([]int, len(pts))
	for i := range vtri {
		vtri[i] = -1
	}
	return &cdt{eps: eps, pts: pts, vtri: vtri}
}

func (c *cdt) newTriangle(a, b, d int) int {
	idx := len(c.tris)
	c.tris = append(c.tris, cdtTriangle{v: [3]int{a, b, d}, n: [3]int{-1, -1, -1}})
	c.stamp = append(c.stamp, 0)
	c.vtri[a], c.vtri[b], c.vtri[d] = idx, idx, idx
	return idx
}

func (c *cdt) build() error {
	c.last = c.newTriangle(0, 1, 2)
	for _, i := range hilbertOrder(c.pts[superVertices:]) {
		if err := c.insert(i + superVertices); err != nil {
			return err
		}
	}
	return nil
}

// inCircle is positive when p lies inside the circumcircle of triangle t.
func (c *cdt) inCircle(t int, p cp.Vector) float64 {
	v := c.tris[t].v
	a, b, d := c.pts[v[0]].Sub(p), c.pts[v[1]].Sub(p), c.pts[v[2]].Sub(p)
	return a.LengthSq()*b.Cross(d) + b.LengthSq()*d.Cross(a) + d.LengthSq()*a.Cross(b)
}

func (c *cdt) mark(t int) bool {
	if c.stamp[t] == c.epoch {
		return false
	}
	c.stamp[t] = c.epoch
	return true
}

func (c *cdt) marked(t int) bool {
	return c.stamp[t] == c.epoch
}

func (c *cdt) locate(p cp.Vector) (int, error) {
	t := c.last
	if t < 0 || t >= len(c.tris) || c.tris[t].dead {
		t = -1
		for i := len(c.tris) - 1; i >= 0; i-- {
			if !c.tris[i].dead {
				t = i
				break
			}
		}
	}
	limit := 4*len(c.tris) + 16
	for steps := 0; t >= 0 && steps < limit; steps++ {
		tri := c.tris[t]
		moved := false
		for j := 0; j < 3; j++ {
			k := (j + steps) % 3
			if orient(c.pts[tri.v[k]], c.pts[tri.v[(k+1)%3]], p) < 0 && tri.n[k] >= 0 {
				t = tri.n[k]
				moved = true
				break
			}
		}
		if !moved {
			return t, nil
		}
	}
	for i, tri := range c.tris {
		if tri.dead {
			continue
		}
		inside := true
		for k := 0; k < 3; k++ {
			a, b := c.pts[tri.v[k]], c.pts[tri.v[(k+1)%3]]
			if orient(a, b, p) < -c.eps*a.Distance(b) {
				inside = false
				break
			}
		}
		if inside {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: cannot locate point %v", ErrTriangulation, p)
}

type cavityEdge struct {
	a, b int
	out  int
	con  bool
}

// insert adds vertex pi with the Bowyer-Watson algorithm.
func (c *cdt) insert(pi int) error {
	p := c.pts[pi]
	start, err := c.locate(p)
	if err != nil {
		return err
	}

	c.epoch++
	c.mark(start)
	cavity := []int{start}
	for stack := []int{start}; len(stack) > 0; {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, nb := range c.tris[t].n {
			if nb < 0 || c.marked(nb) || c.inCircle(nb, p) <= 0 {
				continue
			}
			c.mark(nb)
			cavity = append(cavity, nb)
			stack = append(stack, nb)
		}
	}

	// Grow the cavity until p sees every boundary edge from its inner side.
	for round := 0; ; round++ {
		if round > 64 {
			return fmt.Errorf("%w: cavity around %v does not converge", ErrTriangulation, p)
		}
		grown := false
		for i := 0; i < len(cavity); i++ {
			tri := c.tris[cavity[i]]
			for k := 0; k < 3; k++ {
				nb := tri.n[k]
				if nb >= 0 && c.marked(nb) {
					continue
				}
				a, b := c.pts[tri.v[k]], c.pts[tri.v[(k+1)%3]]
				if orient(a, b, p) > c.eps*a.Distance(b) {
					continue
				}
				if nb < 0 {
					return fmt.Errorf("%w: point %v outside triangulation", ErrTriangulation, p)
				}
				c.mark(nb)
				cavity = append(cavity, nb)
				grown = true
			}
		}
		if !grown {
			break
		}
	}

	var boundary []cavityEdge
	onBoundary := make(map[int]struct{})
	for _, t := range cavity {
		tri := c.tris[t]
		for k := 0; k < 3; k++ {
			if nb := tri.n[k]; nb >= 0 && c.marked(nb) {
				continue
			}
			e := cavityEdge{a: tri.v[k], b: tri.v[(k+1)%3], out: tri.n[k], con: tri.c[k]}
			boundary = append(boundary, e)
			onBoundary[e.a] = struct{}{}
		}
	}
	for _, t := range cavity {
		for _, v := range c.tris[t].v {
			if _, ok := onBoundary[v]; !ok {
				return fmt.Errorf("%w: vertex %d swallowed while inserting %v", ErrTriangulation, v, p)
			}
		}
	}
	for _, t := range cavity {
		c.tris[t].dead = true
	}

	byStart := make(map[int]int, len(boundary))
	byEnd := make(map[int]int, len(boundary))
	created := make([]int, 0, len(boundary))
	for _, e := range boundary {
		if _, dup := byStart[e.a]; dup {
			return fmt.Errorf("%w: cavity around %v is not simple", ErrTriangulation, p)
		}
		idx := c.newTriangle(e.a, e.b, pi)
		c.tris[idx].n[0] = e.out
		c.tris[idx].c[0] = e.con
		if e.out >= 0 {
			c.relink(e.out, e.b, e.a, idx)
		}
		byStart[e.a] = idx
		byEnd[e.b] = idx
		created = append(created, idx)
	}
	for _, idx := range created {
		tri := &c.tris[idx]
		next, ok1 := byStart[tri.v[1]]
		prev, ok2 := byEnd[tri.v[0]]
		if !ok1 || !ok2 {
			return fmt.Errorf("%w: open cavity around %v", ErrTriangulation, p)
		}
		tri.n[1] = next
		tri.n[2] = prev
	}
	c.last = created[len(created)-1]
	return nil
}

// relink points the edge a->b of triangle t at nb.
func (c *cdt) relink(t, a, b, nb int) {
	tri := &c.tris[t]
	for k := 0; k < 3; k++ {
		if tri.v[k] == a && tri.v[(k+1)%3] == b {
			tri.n[k] = nb
			return
		}
	}
}

func (c *cdt) replaceNeighbor(t, old, nb int) {
	if t < 0 {
		return
	}
	tri := &c.tris[t]
	for k := 0; k < 3; k++ {
		if tri.n[k] == old {
			tri.n[k] = nb
			return
		}
	}
}

func indexOf(v [3]int, x int) int {
	for k := 0; k < 3; k++ {
		if v[k] == x {
			return k
		}
	}
	return -1
}

// fan returns the live triangles incident to vertex u.
func (c *cdt) fan(u int) []int {
	start := c.vtri[u]
	if start < 0 || c.tris[start].dead || indexOf(c.tris[start].v, u) < 0 {
		start = -1
		for i, tri := range c.tris {
			if !tri.dead && indexOf(tri.v, u) >= 0 {
				start = i
				break
			}
		}
		if start < 0 {
			return nil
		}
		c.vtri[u] = start
	}
	c.epoch++
	c.mark(start)
	out := []int{start}
	for i := 0; i < len(out); i++ {
		for _, nb := range c.tris[out[i]].n {
			if nb < 0 || c.marked(nb) || indexOf(c.tris[nb].v, u) < 0 {
				continue
			}
			c.mark(nb)
			out = append(out, nb)
		}
	}
	return out
}

// findEdge returns a triangle and edge index for the undirected edge a-b.
func (c *cdt) findEdge(a, b int) (int, int, bool) {
	for _, t := range c.fan(a) {
		v := c.tris[t].v
		for k := 0; k < 3; k++ {
			if (v[k] == a && v[(k+1)%3] == b) || (v[k] == b && v[(k+1)%3] == a) {
				return t, k, true
			}
		}
	}
	return -1, -1, false
}

// constrain marks the edge a-b as a constraint on both sides.
func (c *cdt) constrain(a, b int) bool {
	t, k, ok := c.findEdge(a, b)
	if !ok {
		return false
	}
	tri := &c.tris[t]
	tri.c[k] = true
	if nb := tri.n[k]; nb >= 0 {
		other := &c.tris[nb]
		for j := 0; j < 3; j++ {
			if other.n[j] == t {
				other.c[j] = true
			}
		}
	}
	return true
}

// quad returns the vertices around edge k of triangle t: the edge a->b, the
// apex d of t and the apex e of the neighbour.
func (c *cdt) quad(t, k int) (a, b, d, e, nb, m int) {
	tri := c.tris[t]
	a, b, d = tri.v[k], tri.v[(k+1)%3], tri.v[(k+2)%3]
	nb = tri.n[k]
	other := c.tris[nb]
	for j := 0; j < 3; j++ {
		if other.v[j] == b && other.v[(j+1)%3] == a {
			m = j
			break
		}
	}
	e = other.v[(m+2)%3]
	return a, b, d, e, nb, m
}

func (c *cdt) convexQuad(t, k int) bool {
	a, b, d, e, _, _ := c.quad(t, k)
	return orient(c.pts[d], c.pts[a], c.pts[e]) > 0 && orient(c.pts[e], c.pts[b], c.pts[d]) > 0
}

// flip replaces edge k of triangle t by the other diagonal of the quad and
// returns the endpoints of the new edge.
func (c *cdt) flip(t, k int) (int, int) {
	a, b, d, e, u, m := c.quad(t, k)
	tt, uu := c.tris[t], c.tris[u]
	nbBD, cBD := tt.n[(k+1)%3], tt.c[(k+1)%3]
	nbDA, cDA := tt.n[(k+2)%3], tt.c[(k+2)%3]
	nbAE, cAE := uu.n[(m+1)%3], uu.c[(m+1)%3]
	nbEB, cEB := uu.n[(m+2)%3], uu.c[(m+2)%3]

	c.tris[t] = cdtTriangle{v: [3]int{d, a, e}, n: [3]int{nbDA, nbAE, u}, c: [3]bool{cDA, cAE, false}}
	c.tris[u] = cdtTriangle{v: [3]int{e, b, d}, n: [3]int{nbEB, nbBD, t}, c: [3]bool{cEB, cBD, false}}
	c.replaceNeighbor(nbAE, u, t)
	c.replaceNeighbor(nbBD, t, u)
	c.vtri[a], c.vtri[b], c.vtri[d], c.vtri[e] = t, u, t, t
	return d, e
}

// insertConstraint forces the segment a-b into the triangulation.
func (c *cdt) insertConstraint(a, b int) error {
	work := [][2]int{{a, b}}
	for len(work) > 0 {
		e := work[len(work)-1]
		work = work[:len(work)-1]
		u, w := e[0], e[1]
		if u == w || c.constrain(u, w) {
			continue
		}
		crossed, via, err := c.crossings(u, w)
		if err != nil {
			return err
		}
		if via >= 0 {
			work = append(work, [2]int{via, w}, [2]int{u, via})
			continue
		}
		if err := c.flipOut(u, w, crossed); err != nil {
			return err
		}
		if !c.constrain(u, w) {
			return fmt.Errorf("%w: constraint %v-%v missing after recovery", ErrTriangulation, c.pts[u], c.pts[w])
		}
	}
	return nil
}

// crossings walks from u towards w and collects the edges the segment
// crosses. If the segment runs through a vertex, that vertex is returned
// instead so the caller can split the segment.
func (c *cdt) crossings(u, w int) ([][2]int, int, error) {
	A, B := c.pts[u], c.pts[w]
	ab := B.Sub(A)
	lenSq := ab.LengthSq()
	tol := c.eps * math.Sqrt(lenSq)
	onSegment := func(x int) bool {
		p := c.pts[x]
		if math.Abs(orient(A, B, p)) > tol {
			return false
		}
		t := p.Sub(A).Dot(ab) / lenSq
		return t > 0 && t < 1
	}

	t := -1
	var v1, v2 int
	for _, f := range c.fan(u) {
		tri := c.tris[f]
		i := indexOf(tri.v, u)
		x1, x2 := tri.v[(i+1)%3], tri.v[(i+2)%3]
		if onSegment(x1) {
			return nil, x1, nil
		}
		if onSegment(x2) {
			return nil, x2, nil
		}
		if orient(A, B, c.pts[x1]) < 0 && orient(A, B, c.pts[x2]) > 0 {
			t, v1, v2 = f, x1, x2
			break
		}
	}
	if t < 0 {
		return nil, -1, fmt.Errorf("%w: no triangle around %v faces %v", ErrTriangulation, A, B)
	}

	crossed := [][2]int{{v1, v2}}
	for steps := 0; ; steps++ {
		if steps > len(c.tris) {
			return nil, -1, fmt.Errorf("%w: walk from %v to %v does not terminate", ErrTriangulation, A, B)
		}
		tri := c.tris[t]
		k := -1
		for j := 0; j < 3; j++ {
			if tri.v[j] == v1 && tri.v[(j+1)%3] == v2 {
				k = j
				break
			}
		}
		if k < 0 || tri.n[k] < 0 {
			return nil, -1, fmt.Errorf("%w: broken adjacency near %v", ErrTriangulation, A)
		}
		if tri.c[k] {
			return nil, -1, fmt.Errorf("%w: constraints cross near %v-%v", ErrTriangulation, c.pts[v1], c.pts[v2])
		}
		t = tri.n[k]
		o := c.tris[t].v[(indexOf(c.tris[t].v, v1)+1)%3]
		if o == w {
			return crossed, -1, nil
		}
		if onSegment(o) {
			return nil, o, nil
		}
		if orient(A, B, c.pts[o]) < 0 {
			v1 = o
		} else {
			v2 = o
		}
		crossed = append(crossed, [2]int{v1, v2})
	}
}

// flipOut removes the crossed edges by flipping them (Sloan's method).
func (c *cdt) flipOut(u, w int, crossed [][2]int) error {
	A, B := c.pts[u], c.pts[w]
	queue := append([][2]int(nil), crossed...)
	limit := 64*len(crossed)*len(crossed) + 1024
	for it := 0; len(queue) > 0; it++ {
		if it > limit {
			return fmt.Errorf("%w: constraint %v-%v cannot be recovered", ErrTriangulation, A, B)
		}
		e := queue[0]
		queue = queue[1:]
		t, k, ok := c.findEdge(e[0], e[1])
		if !ok {
			return fmt.Errorf("%w: lost edge while recovering %v-%v", ErrTriangulation, A, B)
		}
		if !c.convexQuad(t, k) {
			queue = append(queue, e)
			continue
		}
		d, f := c.flip(t, k)
		if segmentsCrossProperly(A, B, c.pts[d], c.pts[f]) {
			queue = append(queue, [2]int{d, f})
		}
	}
	return nil
}

// restoreDelaunay flips unconstrained edges that violate the Delaunay
// criterion. It only improves triangle quality, so it stops after a bounded
// number of passes.
func (c *cdt) restoreDelaunay() {
	for pass := 0; pass < 32; pass++ {
		flipped := false
		for t := range c.tris {
			for k := 0; k < 3; k++ {
				tri := c.tris[t]
				if tri.dead || tri.c[k] || tri.n[k] < 0 {
					continue
				}
				a, b, d, e, _, _ := c.quad(t, k)
				if a < superVertices || b < superVertices || d < superVertices || e < superVertices {
					continue
				}
				if !c.violatesDelaunay(t, e) || !c.convexQuad(t, k) {
					continue
				}
				c.flip(t, k)
				flipped = true
			}
		}
		if !flipped {
			return
		}
	}
}

func (c *cdt) violatesDelaunay(t, e int) bool {
	v := c.tris[t].v
	p := c.pts[e]
	scale := 0.0
	for _, x := range v {
		d := c.pts[x].Sub(p)
		scale = math.Max(scale, math.Max(math.Abs(d.X), math.Abs(d.Y)))
	}
	return c.inCircle(t, p) > 1e-10*scale*scale*scale*scale
}

// extract returns the live triangles inside the bounds that are not
// excluded, with vertices renumbered.
func (c *cdt) extract(excluded func(centroid cp.Vector) bool) ([]cp.Vector, [][3]int) {
	remap := make([]int, len(c.pts))
	for i := range remap {
		remap[i] = -1
	}
	var points []cp.Vector
	var tris [][3]int
	for _, tri := range c.tris {
		if tri.dead || tri.v[0] < superVertices || tri.v[1] < superVertices || tri.v[2] < superVertices {
			continue
		}
		a, b, d := c.pts[tri.v[0]], c.pts[tri.v[1]], c.pts[tri.v[2]]
		longest := math.Max(a.Distance(b), math.Max(b.Distance(d), d.Distance(a)))
		if orient(a, b, d) <= c.eps*longest {
			continue
		}
		centroid := a.Add(b).Add(d).Mult(1.0 / 3)
		if excluded(centroid) {
			continue
		}
		var out [3]int
		for k, v := range tri.v {
			if remap[v] < 0 {
				remap[v] = len(points)
				points = append(points, c.pts[v])
			}
			out[k] = remap[v]
		}
		tris = append(tris, out)
	}
	return points, tris
}

// hilbertOrder returns point indices sorted along a Hilbert curve so that
// consecutive insertions are spatially close.
func hilbertOrder(points []cp.Vector) []int {
	order := make([]int, len(points))
	if len(points) == 0 {
		return order
	}
	bb := boundingBox(points...)
	w := math.Max(bb.R-bb.L, 1e-12)
	h := math.Max(bb.T-bb.B, 1e-12)
	const side = 1 << 16
	keys := make([]uint64, len(points))
	for i, p := range points {
		x := uint32(math.Min((p.X-bb.L)/w*(side-1), side-1))
		y := uint32(math.Min((p.Y-bb.B)/h*(side-1), side-1))
		keys[i] = hilbertIndex(side, x, y)
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return keys[order[i]] < keys[order[j]] })
	return order
}

func hilbertIndex(n, x, y uint32) uint64 {
	var d uint64
	for s := n / 2; s > 0; s /= 2 {
		var rx, ry uint32
		if x&s > 0 {
			rx = 1
		}
		if y&s > 0 {
			ry = 1
		}
		d += uint64(s) * uint64(s) * uint64((3*rx)^ry)
		if ry == 0 {
			if rx == 1 {
				x = n - 1 - x
				y = n - 1 - y
			}
			x, y = y, x
		}
	}
	return d
}
