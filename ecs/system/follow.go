package system

import (
	"github.com/milk9111/navmesh/ecs"
	"github.com/milk9111/navmesh/ecs/component"
)

// DefaultTickSeconds matches a 60 TPS update loop.
const DefaultTickSeconds = 1.0 / 60.0

// PathFollowSystem moves agents with a MovableSolid along their Path. An agent
// that reaches the last waypoint drops the path, and drops its target too
// unless the target is permanent.
type PathFollowSystem struct {
	tick float64
}

func NewPathFollowSystem(tickSeconds float64) *PathFollowSystem {
	if tickSeconds <= 0 {
		tickSeconds = DefaultTickSeconds
	}
	return &PathFollowSystem{tick: tickSeconds}
}

func (s *PathFollowSystem) Update(w *ecs.World) {
	if w == nil {
		return
	}

	for _, e := range ecs.Query(w, component.PathComponent.Kind()) {
		path, _ := ecs.Get(w, e, component.PathComponent.Kind())
		mover, ok := ecs.Get(w, e, component.MovableSolidComponent.Kind())
		if !ok || mover.Speed <= 0 {
			continue
		}
		t, ok := ecs.Get(w, e, component.TransformComponent.Kind())
		if !ok {
			continue
		}

		pos := t.Position()
		budget := mover.Speed * s.tick
		for path.Next < path.Len() && budget > 0 {
			next := path.Waypoints[path.Next]
			d := pos.Distance(next)
			if d <= budget {
				pos = next
				budget -= d
				path.Next++
				continue
			}
			pos = pos.Lerp(next, budget/d)
			budget = 0
		}

		t.X, t.Y = pos.X, pos.Y
		ecs.MarkChanged(w, e, component.TransformComponent.Kind())

		if path.Next < path.Len() {
			continue
		}
		ecs.Remove(w, e, component.PathComponent.Kind())
		if target, ok := ecs.Get(w, e, component.PathTargetComponent.Kind()); ok && !target.Permanent {
			ecs.Remove(w, e, component.PathTargetComponent.Kind())
		}
	}
}
