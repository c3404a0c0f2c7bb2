package ecs

import (
	"fmt"

	"github.com/milk9111/navmesh/ecs/component"
)

// Add inserts or replaces the component of kind on e.
func Add[T any](w *World, e Entity, kind component.ComponentKind[T], value *T) error {
	if !kind.Valid() {
		return ErrInvalidComponentKind
	}
	if value == nil {
		return fmt.Errorf("%w: %s", ErrNilComponent, kind)
	}
	if !w.entities.isAlive(e) {
		return fmt.Errorf("%w: %s on %s", ErrEntityNotAlive, kind, e)
	}
	w.store(kind.ID(), true).Set(e, value, w.nextSeq())
	return nil
}

// Get returns the component of kind on e.
func Get[T any](w *World, e Entity, kind component.ComponentKind[T]) (*T, bool) {
	v, ok := w.store(kind.ID(), false).Get(e).(*T)
	return v, ok
}

// Has reports whether e has a component of kind.
func Has[T any](w *World, e Entity, kind component.ComponentKind[T]) bool {
	return w.store(kind.ID(), false).Has(e)
}

// Remove deletes the component of kind from e and records the removal.
func Remove[T any](w *World, e Entity, kind component.ComponentKind[T]) bool {
	if !w.store(kind.ID(), false).Remove(e) {
		return false
	}
	w.recordRemoval(kind.ID(), e)
	return true
}

// MarkChanged stamps the component of kind on e as changed after it was
// mutated in place through the pointer returned by Get.
func MarkChanged[T any](w *World, e Entity, kind component.ComponentKind[T]) bool {
	s := w.store(kind.ID(), false)
	if !s.Has(e) {
		return false
	}
	return s.Touch(e, w.nextSeq())
}

// ForEach calls fn for every entity with a component of kind. fn must not
// add or remove components of the same kind.
func ForEach[T any](w *World, kind component.ComponentKind[T], fn func(Entity, *T)) {
	s := w.store(kind.ID(), false)
	for i, e := range s.Entities() {
		fn(e, s.Values()[i].(*T))
	}
}

// ForEach2 calls fn for every entity that has both components.
func ForEach2[A, B any](w *World, a component.ComponentKind[A], b component.ComponentKind[B], fn func(Entity, *A, *B)) {
	sa, sb := w.store(a.ID(), false), w.store(b.ID(), false)
	for i, e := range sa.Entities() {
		vb, ok := sb.Get(e).(*B)
		if !ok {
			continue
		}
		fn(e, sa.Values()[i].(*A), vb)
	}
}

// First returns any entity with a component of kind.
func First[T any](w *World, kind component.ComponentKind[T]) (Entity, bool) {
	ents := w.store(kind.ID(), false).Entities()
	if len(ents) == 0 {
		return 0, false
	}
	return ents[0], true
}

// Query returns the entities with a component of kind. The slice is a copy,
// so callers may change components while ranging over it.
func Query[T any](w *World, kind component.ComponentKind[T]) []Entity {
	return append([]Entity(nil), w.store(kind.ID(), false).Entities()...)
}

// ChangedSince calls fn for every component of kind written after seq.
func ChangedSince[T any](w *World, kind component.ComponentKind[T], seq uint64, fn func(Entity, *T)) {
	s := w.store(kind.ID(), false)
	for i, e := range s.Entities() {
		if s.denseChanged[i] > seq {
			fn(e, s.Values()[i].(*T))
		}
	}
}

// RemovedSince returns the entities that lost a component of kind after seq.
// Removal records live until the end of the frame after the one they were
// made in.
func RemovedSince[T any](w *World, kind component.ComponentKind[T], seq uint64) []Entity {
	var out []Entity
	for _, r := range w.removed[kind.ID()] {
		if r.seq > seq {
			out = append(out, r.entity)
		}
	}
	return out
}
