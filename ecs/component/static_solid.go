package component

import "github.com/milk9111/navmesh/pathing"

// StaticSolid marks an obstacle the navmesh is cut around. Type resolves to
// a footprint through the object catalog.
type StaticSolid struct {
	Type pathing.ObjectType
}

var StaticSolidComponent = NewComponent[StaticSolid]()

// MovableSolid marks an agent that moves along paths.
type MovableSolid struct {
	// Speed is the distance covered per second when following a path.
	Speed float64
}

var MovableSolidComponent = NewComponent[MovableSolid]()
