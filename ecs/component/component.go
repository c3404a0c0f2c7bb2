// Package component declares the component kinds stored in an ecs.World.
// Each kind is a package level handle created once with NewComponent.
package component

import (
	"reflect"
	"sync"
)

// ComponentID indexes the per-kind storage of a World. Zero is never issued.
type ComponentID uint32

var registry struct {
	mu    sync.Mutex
	names []string
}

// ComponentKind is the typed key used to add, get and query components of
// type T.
type ComponentKind[T any] struct {
	id ComponentID
}

func (k ComponentKind[T]) ID() ComponentID { return k.id }
func (k ComponentKind[T]) Valid() bool { return k.id != 0 }
func (k ComponentKind[T]) String() string { return Name(k.id) }

// ComponentHandle is what component files export. It exists so declarations
// read as `FooComponent.Kind()` at call sites.
type ComponentHandle[T any] struct {
	kind ComponentKind[T]
}

// NewComponent registers a new kind named after T.
func NewComponent[T any]() ComponentHandle[T] {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.names = append(registry.names, reflect.TypeFor[T]().Name())
	return ComponentHandle[T]{kind: ComponentKind[T]{id: ComponentID(len(registry.names))}}
}

func (h ComponentHandle[T]) Kind() ComponentKind[T] { return h.kind }

// Name returns the type name a kind was registered with.
func Name(id ComponentID) string {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if id == 0 || int(id) > len(registry.names) {
		return "invalid"
	}
	return registry.names[id-1]
}
