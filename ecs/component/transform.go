package component

import "github.com/jakecoffman/cp"

// Transform is the map space placement of an entity.
type Transform struct {
	X        float64
	Y        float64
	Rotation float64
}

func (t Transform) Position() cp.Vector {
	return cp.Vector{X: t.X, Y: t.Y}
}

var TransformComponent = NewComponent[Transform]()
