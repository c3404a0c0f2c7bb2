package system

import (
	"sort"

	"github.com/milk9111/navmesh/ecs"
	"github.com/milk9111/navmesh/ecs/component"
	"github.com/milk9111/navmesh/pathing"
)

// FindLabeled returns the entity carrying the label name.
func FindLabeled(w *ecs.World, name string) (ecs.Entity, bool) {
	var found ecs.Entity
	ecs.ForEach(w, component.LabelComponent.Kind(), func(e ecs.Entity, l *component.Label) {
		if !found.Valid() && l.Name == name {
			found = e
		}
	})
	return found, found.Valid()
}

// Agents returns the sorted labels of every entity that can follow a path.
func Agents(w *ecs.World) []string {
	var names []string
	ecs.ForEach2(w, component.MovableSolidComponent.Kind(), component.LabelComponent.Kind(), func(_ ecs.Entity, _ *component.MovableSolid, l *component.Label) {
		names = append(names, l.Name)
	})
	sort.Strings(names)
	return names
}

// SpawnObstacle creates a labelled static obstacle.
func SpawnObstacle(w *ecs.World, name string, objectType pathing.ObjectType, t component.Transform) (ecs.Entity, error) {
	e := ecs.CreateEntity(w)
	if err := ecs.Add(w, e, component.LabelComponent.Kind(), &component.Label{Name: name}); err != nil {
		return ecs.Nil, err
	}
	if err := ecs.Add(w, e, component.TransformComponent.Kind(), &t); err != nil {
		return ecs.Nil, err
	}
	if err := ecs.Add(w, e, component.StaticSolidComponent.Kind(), &component.StaticSolid{Type: objectType}); err != nil {
		return ecs.Nil, err
	}
	return e, nil
}
