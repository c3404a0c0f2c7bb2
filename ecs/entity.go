package ecs

import "fmt"

// Entity identifies an object in a World. The low half is the slot index and
// the high half counts how often the slot was reused, so a handle to a
// destroyed entity never matches the next occupant of its slot.
type Entity uint64

// Nil is the zero Entity. Slot 0 is never handed out.
const Nil Entity = 0

type entityID uint32
type generation uint32

func makeEntity(id entityID, gen generation) Entity {
	return Entity(gen)<<32 | Entity(id)
}

func (e Entity) id() entityID { return entityID(e & 0xffffffff) }
func (e Entity) generation() generation { return generation(e >> 32) }
func (e Entity) Valid() bool { return e.id() != 0 }

// Key returns the handle as a plain integer, for packages that track agents
// without depending on ecs.
func (e Entity) Key() uint64 { return uint64(e) }

// EntityFromKey is the inverse of Key.
func EntityFromKey(key uint64) Entity { return Entity(key) }

func (e Entity) String() string {
	if e == Nil {
		return "nil"
	}
	return fmt.Sprintf("%d.%d", e.id(), e.generation())
}
