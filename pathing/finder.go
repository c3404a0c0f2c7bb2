package pathing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/navmesh/logging"
)

const (
	// SourceTolerance is how far outside the mesh a path source may be and
	// still be snapped onto it.
	SourceTolerance = 1.0
	// TargetTolerance is added to a target's distance when deciding whether
	// an agent without a path is already close enough to skip a retry.
	TargetTolerance = 2.0
)

// PathFinder answers path queries on one immutable navmesh generation. It is
// safe for concurrent use.
type PathFinder struct {
	id         uuid.UUID
	mesh       *NavMesh
	exclusions ExclusionArea
}

// NewPathFinder returns a finder covering bounds with no obstacles.
func NewPathFinder(bounds MapBounds) *PathFinder {
	corners := bounds.Corners()
	mesh := newNavMesh(corners[:], [][3]int{{0, 1, 2}, {0, 2, 3}}, bounds.epsilon())
	return FromTriangles(mesh, ExclusionArea{})
}

// FromTriangles wraps a triangulated mesh and the exclusions it was built
// from.
func FromTriangles(mesh *NavMesh, exclusions ExclusionArea) *PathFinder {
	return &PathFinder{id: uuid.New(), mesh: mesh, exclusions: exclusions}
}

// CreateFinder builds the exclusion area for obstacles, triangulates the
// free space of bounds and wraps the result.
func CreateFinder(cache ObjectCache, bounds MapBounds, obstacles []ObstacleSnapshot, offset float64, log logging.Logger) (*PathFinder, error) {
	exclusions := BuildExclusions(cache, obstacles, offset, log)
	mesh, err := Triangulate(bounds, exclusions)
	if err != nil {
		return nil, fmt.Errorf("pathing: create finder: %w", err)
	}
	return FromTriangles(mesh, exclusions), nil
}

// ID identifies the finder generation.
func (f *PathFinder) ID() uuid.UUID {
	return f.id
}

func (f *PathFinder) Mesh() *NavMesh {
	return f.mesh
}

func (f *PathFinder) Exclusions() ExclusionArea {
	return f.exclusions
}

// FindPath searches a path from source to target. It returns false when the
// source is off the mesh, no triangle is within the target distance, or the
// search would cost more than the target's max effort. The path ends at the
// target when it can be reached, else at the closest reachable mesh point
// within the target distance.
func (f *PathFinder) FindPath(source cp.Vector, target PathTarget) (Path, bool) {
	if f == nil || f.mesh.Len() == 0 {
		return Path{}, false
	}
	start, ok := f.mesh.nearest(source, SourceTolerance)
	if !ok {
		return Path{}, false
	}
	if exact := f.mesh.within(target.Location, 0); len(exact) > 0 {
		if path, ok := f.route(source, start, target, exact); ok || target.Props.Distance <= 0 {
			return path, ok
		}
	}
	candidates := f.mesh.within(target.Location, target.Props.Distance)
	if len(candidates) == 0 {
		return Path{}, false
	}
	return f.route(source, start, target, candidates)
}

func (f *PathFinder) route(source cp.Vector, start meshPoint, target PathTarget, candidates []meshPoint) (Path, bool) {
	goals := make(map[int]cp.Vector, len(candidates))
	for _, c := range candidates {
		goals[c.tri] = c.point
	}

	waypoints := []cp.Vector{source}
	if start.point.DistanceSq(source) > f.mesh.eps*f.mesh.eps {
		waypoints = append(waypoints, start.point)
	}

	if goal, ok := goals[start.tri]; ok {
		if start.point.Distance(goal) > target.Props.MaxEffort {
			return Path{}, false
		}
		return NewPath(appendDistinct(waypoints, f.mesh.eps, goal)...), true
	}

	search := &corridorSearch{
		mesh:     f.mesh,
		target:   target.Location,
		distance: target.Props.Distance,
		effort:   target.Props.MaxEffort,
		goals:    goals,
	}
	corridor, end, ok := search.run(start)
	if !ok {
		return Path{}, false
	}
	pulled := stringPull(start.point, end, f.mesh.corridorPortals(corridor), f.mesh.eps)
	return NewPath(appendDistinct(waypoints, f.mesh.eps, pulled[1:]...)...), true
}

func appendDistinct(points []cp.Vector, eps float64, more ...cp.Vector) []cp.Vector {
	for _, p := range more {
		if len(points) > 0 && points[len(points)-1].DistanceSq(p) <= eps*eps {
			continue
		}
		points = append(points, p)
	}
	return points
}
