package ecs

import (
	"errors"
	"sort"

	"github.com/milk9111/navmesh/ecs/component"
)

var (
	ErrEntityNotAlive       = errors.New("ecs: entity not alive")
	ErrNilComponent         = errors.New("ecs: component is nil")
	ErrInvalidComponentKind = errors.New("ecs: invalid component kind")
)

// System updates a world each frame.
type System interface {
	Update(w *World)
}

type removal struct {
	entity Entity
	seq    uint64
}

// World owns entities, components, and system order.
//
// Every component write is stamped with a monotonically increasing change
// sequence. Consumers remember the last sequence they saw and ask for the
// changes and removals after it.
type World struct {
	entities entityStore
	systems  []System
	events   EventQueue

	stores  map[component.ComponentID]*SparseSet
	removed map[component.ComponentID][]removal
	seq     uint64
}

// NewWorld creates an empty ECS world.
func NewWorld() *World {
	return &World{
		stores:  make(map[component.ComponentID]*SparseSet),
		removed: make(map[component.ComponentID][]removal),
	}
}

// AddSystem appends a system to the update order.
func (w *World) AddSystem(s System) {
	if s == nil {
		return
	}
	w.systems = append(w.systems, s)
}

// Update runs all systems once, then drops this frame's events and the
// removal records older than the frame.
func (w *World) Update() {
	if w == nil {
		return
	}
	start := w.seq
	for _, s := range w.systems {
		if s != nil {
			s.Update(w)
		}
	}
	w.events.flush()
	w.pruneRemovals(start)
}

// Events returns the world event queue.
func (w *World) Events() *EventQueue {
	if w == nil {
		return nil
	}
	return &w.events
}

// Seq returns the sequence of the latest component change.
func (w *World) Seq() uint64 {
	return w.seq
}

func (w *World) nextSeq() uint64 {
	w.seq++
	return w.seq
}

func (w *World) store(id component.ComponentID, create bool) *SparseSet {
	s := w.stores[id]
	if s == nil && create {
		s = &SparseSet{}
		w.stores[id] = s
	}
	return s
}

func (w *World) recordRemoval(id component.ComponentID, e Entity) {
	w.removed[id] = append(w.removed[id], removal{entity: e, seq: w.nextSeq()})
}

func (w *World) pruneRemovals(before uint64) {
	for id, list := range w.removed {
		keep := list[:0]
		for _, r := range list {
			if r.seq > before {
				keep = append(keep, r)
			}
		}
		if len(keep) == 0 {
			delete(w.removed, id)
			continue
		}
		w.removed[id] = keep
	}
}

// CreateEntity allocates a new entity.
func CreateEntity(w *World) Entity {
	return w.entities.create()
}

// DestroyEntity removes every component of e and frees its slot. Component
// removals are recorded like explicit removals.
func DestroyEntity(w *World, e Entity) bool {
	if !w.entities.isAlive(e) {
		return false
	}
	ids := make([]component.ComponentID, 0, len(w.stores))
	for id := range w.stores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if w.stores[id].Remove(e) {
			w.recordRemoval(id, e)
		}
	}
	return w.entities.destroy(e)
}

// IsAlive reports whether an entity handle is valid.
func IsAlive(w *World, e Entity) bool {
	return w.entities.isAlive(e)
}

// Entities returns all live entities in slot order.
func Entities(w *World) []Entity {
	out := make([]Entity, 0, w.entities.count)
	w.entities.each(func(e Entity) {
		out = append(out, e)
	})
	return out
}
