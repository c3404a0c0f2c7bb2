package pathing

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/jakecoffman/cp"
)

var (
	// ErrMalformedPolygon is returned for exclusion polygons that are
	// degenerate or self intersecting.
	ErrMalformedPolygon = errors.New("pathing: malformed exclusion polygon")
	// ErrTriangulation is returned when a valid mesh could not be produced.
	ErrTriangulation = errors.New("pathing: triangulation failed")
)

// Triangulate computes a constrained triangulation of bounds in which every
// exclusion polygon edge is a constraint, and keeps the triangles outside all
// exclusion polygons. Triangles whose centroid lies on a polygon boundary
// count as excluded.
func Triangulate(bounds MapBounds, exclusions ExclusionArea) (*NavMesh, error) {
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	eps := bounds.epsilon()
	for _, fp := range exclusions.Footprints() {
		if err := validatePolygon(fp.Polygon, eps); err != nil {
			return nil, fmt.Errorf("%w: obstacle %d: %v", ErrMalformedPolygon, fp.Entity, err)
		}
	}

	segments := make([][2]cp.Vector, 0, 4+4*exclusions.Len())
	corners := bounds.Corners()
	for i := range corners {
		segments = append(segments, [2]cp.Vector{corners[i], corners[(i+1)%4]})
	}
	bb := bounds.BB()
	for _, fp := range exclusions.Footprints() {
		if !fp.BB().Intersects(bb) {
			continue
		}
		n := len(fp.Polygon)
		for i := range fp.Polygon {
			a, b, ok := clipSegment(fp.Polygon[i], fp.Polygon[(i+1)%n], bb)
			if ok && a.Distance(b) > eps {
				segments = append(segments, [2]cp.Vector{a, b})
			}
		}
	}

	pg := newPlanarGraph(eps)
	pg.addSegments(segments)

	c := newCDT(bounds, pg.points, eps)
	if err := c.build(); err != nil {
		return nil, err
	}
	for _, e := range pg.edges {
		if err := c.insertConstraint(e[0]+superVertices, e[1]+superVertices); err != nil {
			return nil, err
		}
	}
	c.restoreDelaunay()

	points, tris := c.extract(func(centroid cp.Vector) bool {
		return exclusions.Contains(centroid, eps)
	})
	return newNavMesh(points, tris, eps), nil
}

func validatePolygon(poly []cp.Vector, eps float64) error {
	n := len(poly)
	if n < 3 {
		return fmt.Errorf("%d vertices", n)
	}
	if math.Abs(signedArea(poly)) <= eps {
		return errors.New("zero area")
	}
	for i := 0; i < n; i++ {
		a, b := poly[i], poly[(i+1)%n]
		if a.Distance(b) <= eps {
			return fmt.Errorf("duplicate vertex %d", i)
		}
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			c, d := poly[j], poly[(j+1)%n]
			if segmentsCrossProperly(a, b, c, d) || distanceToSegment(c, a, b) <= eps || distanceToSegment(a, c, d) <= eps {
				return fmt.Errorf("edges %d and %d intersect", i, j)
			}
		}
	}
	return nil
}

// planarGraph turns possibly crossing segments into a set of vertices and
// edges that only meet at shared endpoints.
type planarGraph struct {
	eps    float64
	points []cp.Vector
	snap   map[[2]int64][]int
	edges  [][2]int
}

func newPlanarGraph(eps float64) *planarGraph {
	return &planarGraph{eps: eps, snap: make(map[[2]int64][]int)}
}

func (g *planarGraph) snapKey(p cp.Vector) [2]int64 {
	return [2]int64{int64(math.Floor(p.X / g.eps)), int64(math.Floor(p.Y / g.eps))}
}

// vertex returns the index of an existing vertex within eps of p, adding p
// otherwise.
func (g *planarGraph) vertex(p cp.Vector) int {
	key := g.snapKey(p)
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for _, idx := range g.snap[[2]int64{key[0] + dx, key[1] + dy}] {
				if g.points[idx].Distance(p) <= g.eps {
					return idx
				}
			}
		}
	}
	idx := len(g.points)
	g.points = append(g.points, p)
	g.snap[key] = append(g.snap[key], idx)
	return idx
}

type splitPoint struct {
	t      float64
	vertex int
}

func (g *planarGraph) addSegments(raw [][2]cp.Vector) {
	type segment struct {
		a, b   int
		splits []splitPoint
	}
	seen := make(map[[2]int]struct{})
	segs := make([]*segment, 0, len(raw))
	for _, s := range raw {
		a, b := g.vertex(s[0]), g.vertex(s[1])
		if a == b {
			continue
		}
		key := [2]int{min(a, b), max(a, b)}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		segs = append(segs, &segment{a: a, b: b})
	}

	// Bucket segments in a coarse grid so only nearby pairs are tested.
	bb := boundingBox(g.points...)
	cell := math.Max(math.Max(bb.R-bb.L, bb.T-bb.B)/math.Max(math.Sqrt(float64(len(segs))), 1), g.eps)
	cellOf := func(p cp.Vector) (int, int) {
		return int(math.Floor((p.X - bb.L) / cell)), int(math.Floor((p.Y - bb.B) / cell))
	}
	buckets := make(map[[2]int][]int)
	for i, s := range segs {
		sbb := boundingBox(g.points[s.a], g.points[s.b])
		c0, r0 := cellOf(cp.Vector{X: sbb.L - g.eps, Y: sbb.B - g.eps})
		c1, r1 := cellOf(cp.Vector{X: sbb.R + g.eps, Y: sbb.T + g.eps})
		for r := r0; r <= r1; r++ {
			for c := c0; c <= c1; c++ {
				buckets[[2]int{c, r}] = append(buckets[[2]int{c, r}], i)
			}
		}
	}

	keys := make([][2]int, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][1] != keys[j][1] {
			return keys[i][1] < keys[j][1]
		}
		return keys[i][0] < keys[j][0]
	})
	tested := make(map[[2]int]struct{})
	for _, key := range keys {
		ids := buckets[key]
		for x := 0; x < len(ids); x++ {
			for y := x + 1; y < len(ids); y++ {
				i, j := min(ids[x], ids[y]), max(ids[x], ids[y])
				if _, ok := tested[[2]int{i, j}]; ok {
					continue
				}
				tested[[2]int{i, j}] = struct{}{}
				s1, s2 := segs[i], segs[j]
				a, b := g.points[s1.a], g.points[s1.b]
				c, d := g.points[s2.a], g.points[s2.b]
				if !segmentsCrossProperly(a, b, c, d) {
					continue
				}
				t, u, ok := segmentIntersection(a, b, c, d)
				if !ok {
					continue
				}
				v := g.vertex(a.Lerp(b, t))
				s1.splits = append(s1.splits, splitPoint{t: t, vertex: v})
				s2.splits = append(s2.splits, splitPoint{t: u, vertex: v})
			}
		}
	}

	// Split every segment at the vertices lying on it, which also resolves
	// collinear overlaps between segments.
	for v, p := range g.points {
		c, r := cellOf(p)
		for _, i := range buckets[[2]int{c, r}] {
			s := segs[i]
			if v == s.a || v == s.b {
				continue
			}
			a, b := g.points[s.a], g.points[s.b]
			ab := b.Sub(a)
			t := p.Sub(a).Dot(ab) / ab.LengthSq()
			if t <= 0 || t >= 1 || distanceToSegment(p, a, b) > g.eps {
				continue
			}
			s.splits = append(s.splits, splitPoint{t: t, vertex: v})
		}
	}

	added := make(map[[2]int]struct{})
	for _, s := range segs {
		sort.Slice(s.splits, func(i, j int) bool { return s.splits[i].t < s.splits[j].t })
		chain := make([]int, 0, len(s.splits)+2)
		chain = append(chain, s.a)
		used := make(map[int]struct{}, len(s.splits))
		for _, sp := range s.splits {
			if _, dup := used[sp.vertex]; dup || sp.vertex == s.a || sp.vertex == s.b {
				continue
			}
			used[sp.vertex] = struct{}{}
			chain = append(chain, sp.vertex)
		}
		chain = append(chain, s.b)
		for k := 1; k < len(chain); k++ {
			u, w := chain[k-1], chain[k]
			if u == w {
				continue
			}
			key := [2]int{min(u, w), max(u, w)}
			if _, ok := added[key]; ok {
				continue
			}
			added[key] = struct{}{}
			g.edges = append(g.edges, [2]int{u, w})
		}
	}
}
