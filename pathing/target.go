package pathing

import (
	"math"

	"github.com/jakecoffman/cp"
)

// PathQueryProps configures a single path search.
type PathQueryProps struct {
	// Distance is how close to the target location the path has to end.
	Distance float64
	// MaxEffort caps the estimated path cost the search may explore. Searches
	// that would exceed it give up and report no path.
	MaxEffort float64
}

// NewPathQueryProps panics on negative or NaN inputs.
func NewPathQueryProps(distance, maxEffort float64) PathQueryProps {
	if distance < 0 || math.IsNaN(distance) {
		panic("pathing: query distance must be non-negative")
	}
	if maxEffort < distance || math.IsNaN(maxEffort) {
		panic("pathing: max effort must not be smaller than distance")
	}
	return PathQueryProps{Distance: distance, MaxEffort: maxEffort}
}

// ExactPathQueryProps asks for a path ending exactly at the target with an
// unbounded search.
func ExactPathQueryProps() PathQueryProps {
	return PathQueryProps{Distance: 0, MaxEffort: math.Inf(1)}
}

// PathTarget is the destination an agent is trying to reach.
type PathTarget struct {
	Location cp.Vector
	Props    PathQueryProps
	// Permanent targets are kept when no path is found so that they are
	// retried after the next finder update.
	Permanent bool
}

// NewPathTarget builds a target.
func NewPathTarget(location cp.Vector, props PathQueryProps, permanent bool) PathTarget {
	return PathTarget{Location: location, Props: props, Permanent: permanent}
}

// Unbounded returns a copy of the target with an infinite search effort.
func (t PathTarget) Unbounded() PathTarget {
	t.Props.MaxEffort = math.Inf(1)
	return t
}

// Path is a sequence of waypoints starting at the agent position.
type Path struct {
	Waypoints []cp.Vector
}

// NewPath copies waypoints into a new path.
func NewPath(waypoints ...cp.Vector) Path {
	return Path{Waypoints: append([]cp.Vector(nil), waypoints...)}
}

// Len returns the number of waypoints.
func (p Path) Len() int {
	return len(p.Waypoints)
}

// Length returns the total length of the path.
func (p Path) Length() float64 {
	var total float64
	for i := 1; i < len(p.Waypoints); i++ {
		total += p.Waypoints[i-1].Distance(p.Waypoints[i])
	}
	return total
}

// Destination returns the last waypoint.
func (p Path) Destination() (cp.Vector, bool) {
	if len(p.Waypoints) == 0 {
		return cp.Vector{}, false
	}
	return p.Waypoints[len(p.Waypoints)-1], true
}
