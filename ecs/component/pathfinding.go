package component

import "github.com/milk9111/navmesh/pathing"

// PathTarget is the destination an agent is heading for.
type PathTarget struct {
	pathing.PathTarget
}

var PathTargetComponent = NewComponent[PathTarget]()

// Path is the latest path found towards the agent's PathTarget. Next is the
// index of the waypoint the agent is walking to.
type Path struct {
	pathing.Path
	Next int
}

var PathComponent = NewComponent[Path]()
