package pathing

import (
	"math"
	"sort"

	"github.com/jakecoffman/cp"
)

// orient returns twice the signed area of (a, b, c); positive when c lies to
// the left of a->b.
func orient(a, b, c cp.Vector) float64 {
	return b.Sub(a).Cross(c.Sub(a))
}

// signedArea is positive for counter-clockwise polygons.
func signedArea(poly []cp.Vector) float64 {
	var sum float64
	for i := range poly {
		j := (i + 1) % len(poly)
		sum += poly[i].Cross(poly[j])
	}
	return sum / 2
}

func closestPointOnSegment(p, a, b cp.Vector) cp.Vector {
	ab := b.Sub(a)
	lenSq := ab.LengthSq()
	if lenSq == 0 {
		return a
	}
	t := p.Sub(a).Dot(ab) / lenSq
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	return a.Add(ab.Mult(t))
}

func distanceToSegment(p, a, b cp.Vector) float64 {
	return p.Distance(closestPointOnSegment(p, a, b))
}

// pointInPolygon reports whether p is inside poly or within eps of its
// boundary. Points on the boundary count as inside.
func pointInPolygon(p cp.Vector, poly []cp.Vector, eps float64) bool {
	n := len(poly)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := poly[j], poly[i]
		if distanceToSegment(p, a, b) <= eps {
			return true
		}
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := a.X + (p.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			if p.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

// segmentIntersection returns the parameters along ab and cd of the single
// point where the segments cross. Parallel segments report false.
func segmentIntersection(a, b, c, d cp.Vector) (t, u float64, ok bool) {
	r := b.Sub(a)
	s := d.Sub(c)
	denom := r.Cross(s)
	if math.Abs(denom) < 1e-12*(r.Length()*s.Length()+1e-300) {
		return 0, 0, false
	}
	ac := c.Sub(a)
	t = ac.Cross(s) / denom
	u = ac.Cross(r) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return 0, 0, false
	}
	return t, u, true
}

// segmentsCrossProperly reports whether the open segments ab and cd cross at
// a single interior point.
func segmentsCrossProperly(a, b, c, d cp.Vector) bool {
	d1 := orient(c, d, a)
	d2 := orient(c, d, b)
	d3 := orient(a, b, c)
	d4 := orient(a, b, d)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// convexHull returns the counter-clockwise hull of points without collinear
// vertices.
func convexHull(points []cp.Vector) []cp.Vector {
	pts := append([]cp.Vector(nil), points...)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})
	uniq := pts[:0]
	for i, p := range pts {
		if i == 0 || !p.Equal(uniq[len(uniq)-1]) {
			uniq = append(uniq, p)
		}
	}
	pts = uniq
	if len(pts) < 3 {
		return pts
	}

	hull := make([]cp.Vector, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && orient(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && orient(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// boundingBox returns the axis aligned box around points.
func boundingBox(points ...cp.Vector) cp.BB {
	bb := cp.BB{L: math.Inf(1), B: math.Inf(1), R: math.Inf(-1), T: math.Inf(-1)}
	for _, p := range points {
		bb.L = math.Min(bb.L, p.X)
		bb.B = math.Min(bb.B, p.Y)
		bb.R = math.Max(bb.R, p.X)
		bb.T = math.Max(bb.T, p.Y)
	}
	return bb
}

// clipSegment clips ab to bb (Liang-Barsky). ok is false when nothing of the
// segment lies inside the box.
func clipSegment(a, b cp.Vector, bb cp.BB) (cp.Vector, cp.Vector, bool) {
	t0, t1 := 0.0, 1.0
	d := b.Sub(a)
	clip := func(p, q float64) bool {
		if p == 0 {
			return q >= 0
		}
		r := q / p
		if p < 0 {
			if r > t1 {
				return false
			}
			if r > t0 {
				t0 = r
			}
		} else {
			if r < t0 {
				return false
			}
			if r < t1 {
				t1 = r
			}
		}
		return true
	}
	if !clip(-d.X, a.X-bb.L) || !clip(d.X, bb.R-a.X) ||
		!clip(-d.Y, a.Y-bb.B) || !clip(d.Y, bb.T-a.Y) {
		return a, b, false
	}
	return a.Add(d.Mult(t0)), a.Add(d.Mult(t1)), true
}
