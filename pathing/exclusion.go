package pathing

import (
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/navmesh/logging"
)

const (
	// ExclusionOffset is the default clearance added around every obstacle
	// footprint so that paths keep some distance from obstacle edges.
	ExclusionOffset = 2.0
	circleSegments  = 12
)

// ObjectType identifies the kind of a static obstacle.
type ObjectType string

// Footprint is the ground shape of an object type in its local space. A
// footprint with no polygon is a circle of Radius around the origin.
type Footprint struct {
	Polygon []cp.Vector
	Radius  float64
}

// outline returns the footprint as a polygon. Circles are approximated by a
// regular polygon circumscribing the circle.
func (f Footprint) outline() []cp.Vector {
	if len(f.Polygon) > 0 {
		return f.Polygon
	}
	if f.Radius <= 0 {
		return nil
	}
	r := f.Radius / math.Cos(math.Pi/circleSegments)
	out := make([]cp.Vector, circleSegments)
	for i := range out {
		out[i] = cp.ForAngle(2 * math.Pi * float64(i) / circleSegments).Mult(r)
	}
	return out
}

// ObjectCache resolves object types to footprints. Implementations must be
// safe for concurrent reads because finder builds run off the control loop.
type ObjectCache interface {
	Footprint(objectType ObjectType) (Footprint, bool)
}

// ObstacleSnapshot is the state of one static obstacle when a build started.
type ObstacleSnapshot struct {
	Entity   uint64
	Position cp.Vector
	Rotation float64
	Type     ObjectType
}

// ObjectFootprint is the map space exclusion polygon of one obstacle.
type ObjectFootprint struct {
	Entity  uint64
	Polygon []cp.Vector
	bb      cp.BB
}

// BB returns the bounding box of the footprint.
func (f ObjectFootprint) BB() cp.BB {
	return f.bb
}

// Contains reports whether p is inside or on the boundary of the footprint.
func (f ObjectFootprint) Contains(p cp.Vector, eps float64) bool {
	if p.X < f.bb.L-eps || p.X > f.bb.R+eps || p.Y < f.bb.B-eps || p.Y > f.bb.T+eps {
		return false
	}
	return pointInPolygon(p, f.Polygon, eps)
}

// NewObjectFootprint wraps a map space polygon.
func NewObjectFootprint(entity uint64, polygon []cp.Vector) ObjectFootprint {
	poly := append([]cp.Vector(nil), polygon...)
	return ObjectFootprint{Entity: entity, Polygon: poly, bb: boundingBox(poly...)}
}

// ExclusionArea is the set of footprints used by one triangulation pass. It
// is never modified after construction.
type ExclusionArea struct {
	footprints []ObjectFootprint
}

// NewExclusionArea builds an area from already transformed footprints.
func NewExclusionArea(footprints ...ObjectFootprint) ExclusionArea {
	return ExclusionArea{footprints: append([]ObjectFootprint(nil), footprints...)}
}

// Len returns the number of footprints.
func (e ExclusionArea) Len() int {
	return len(e.footprints)
}

// Footprints returns the footprints. Callers must not modify the slice.
func (e ExclusionArea) Footprints() []ObjectFootprint {
	return e.footprints
}

// Contains reports whether p is inside or on the boundary of any footprint.
func (e ExclusionArea) Contains(p cp.Vector, eps float64) bool {
	for i := range e.footprints {
		if e.footprints[i].Contains(p, eps) {
			return true
		}
	}
	return false
}

// BuildExclusions converts obstacle snapshots into map space footprints
// dilated by offset. Obstacles whose type cannot be resolved are skipped with
// a warning.
func BuildExclusions(cache ObjectCache, obstacles []ObstacleSnapshot, offset float64, log logging.Logger) ExclusionArea {
	log = logging.OrNoOp(log)
	footprints := make([]ObjectFootprint, 0, len(obstacles))
	for _, obstacle := range obstacles {
		var shape Footprint
		ok := false
		if cache != nil {
			shape, ok = cache.Footprint(obstacle.Type)
		}
		if !ok {
			log.Warn("pathing: skipping obstacle with unknown footprint", "entity", obstacle.Entity, "type", obstacle.Type)
			continue
		}
		hull := convexHull(shape.outline())
		if len(hull) < 3 {
			log.Warn("pathing: skipping obstacle with degenerate footprint", "entity", obstacle.Entity, "type", obstacle.Type)
			continue
		}
		local := dilate(hull, offset)
		transform := cp.NewTransformRigid(obstacle.Position, obstacle.Rotation)
		poly := make([]cp.Vector, len(local))
		for i, v := range local {
			poly[i] = transform.Point(v)
		}
		footprints = append(footprints, NewObjectFootprint(obstacle.Entity, poly))
	}
	return ExclusionArea{footprints: footprints}
}

// dilate offsets a convex counter-clockwise polygon outwards by offset using
// bevel joins.
func dilate(hull []cp.Vector, offset float64) []cp.Vector {
	if offset <= 0 {
		return hull
	}
	n := len(hull)
	points := make([]cp.Vector, 0, 2*n)
	for i := range hull {
		prev := hull[(i+n-1)%n]
		cur := hull[i]
		next := hull[(i+1)%n]
		points = append(points,
			cur.Add(outwardNormal(prev, cur).Mult(offset)),
			cur.Add(outwardNormal(cur, next).Mult(offset)),
		)
	}
	return convexHull(points)
}

// outwardNormal is the unit normal on the right of a->b, which is the outside
// of a counter-clockwise polygon.
func outwardNormal(a, b cp.Vector) cp.Vector {
	d := b.Sub(a).Normalize()
	return cp.Vector{X: d.Y, Y: -d.X}
}
