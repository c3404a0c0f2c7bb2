package component

import "github.com/milk9111/navmesh/pathing"

// MapBounds stores the playable area of the loaded map. A world has at most
// one.
type MapBounds struct {
	pathing.MapBounds
}

var MapBoundsComponent = NewComponent[MapBounds]()
