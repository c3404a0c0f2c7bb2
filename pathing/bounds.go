package pathing

import (
	"fmt"
	"math"

	"github.com/jakecoffman/cp"
)

// MapBounds is the axis aligned playable area of a map.
type MapBounds struct {
	Min cp.Vector
	Max cp.Vector
}

// NewMapBounds returns bounds spanning [0, width] x [0, height].
func NewMapBounds(width, height float64) MapBounds {
	return MapBounds{Max: cp.Vector{X: width, Y: height}}
}

// Validate reports an error for empty or inverted bounds.
func (b MapBounds) Validate() error {
	if !(b.Max.X > b.Min.X) || !(b.Max.Y > b.Min.Y) {
		return fmt.Errorf("pathing: invalid map bounds %v..%v", b.Min, b.Max)
	}
	return nil
}

// Size returns the width and height of the bounds.
func (b MapBounds) Size() cp.Vector {
	return b.Max.Sub(b.Min)
}

// Contains reports whether p lies in the closed bounds.
func (b MapBounds) Contains(p cp.Vector) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// Corners returns the four corners in counter-clockwise order.
func (b MapBounds) Corners() [4]cp.Vector {
	return [4]cp.Vector{
		b.Min,
		{X: b.Max.X, Y: b.Min.Y},
		b.Max,
		{X: b.Min.X, Y: b.Max.Y},
	}
}

// BB returns the bounds as a Chipmunk bounding box.
func (b MapBounds) BB() cp.BB {
	return cp.BB{L: b.Min.X, B: b.Min.Y, R: b.Max.X, T: b.Max.Y}
}

// epsilon is the snapping distance used by geometry on this map.
func (b MapBounds) epsilon() float64 {
	size := b.Size()
	return math.Max(math.Max(size.X, size.Y)*1e-9, 1e-12)
}
