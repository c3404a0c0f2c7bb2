package common

import "github.com/jakecoffman/cp"

func Lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// Viewport maps map space to screen pixels. Map y grows up, screen y grows
// down.
type Viewport struct {
	Scale   float64
	OriginX float64
	OriginY float64
	Height  float64
}

// Fit returns the viewport that shows the box min..max centered on a screen
// of width by height pixels with margin pixels on every side.
func Fit(min, max cp.Vector, width, height, margin float64) Viewport {
	w, h := max.X-min.X, max.Y-min.Y
	availW, availH := width-2*margin, height-2*margin
	scale := 1.0
	if w > 0 && h > 0 && availW > 0 && availH > 0 {
		scale = availW / w
		if s := availH / h; s < scale {
			scale = s
		}
	}
	offX := (width - w*scale) / 2
	offY := (height - h*scale) / 2
	return Viewport{
		Scale:   scale,
		OriginX: offX - min.X*scale,
		OriginY: offY - min.Y*scale,
		Height:  height,
	}
}

// ToScreen converts a map point to pixel coordinates.
func (v Viewport) ToScreen(p cp.Vector) (float32, float32) {
	x := v.OriginX + p.X*v.Scale
	y := v.Height - (v.OriginY + p.Y*v.Scale)
	return float32(x), float32(y)
}

// ToMap converts pixel coordinates back to a map point.
func (v Viewport) ToMap(x, y float64) cp.Vector {
	if v.Scale == 0 {
		return cp.Vector{}
	}
	return cp.Vector{
		X: (x - v.OriginX) / v.Scale,
		Y: (v.Height - y - v.OriginY) / v.Scale,
	}
}

// Zoom scales the viewport by factor around the pixel (x, y).
func (v Viewport) Zoom(factor, x, y float64) Viewport {
	anchor := v.ToMap(x, y)
	v.Scale *= factor
	v.OriginX = x - anchor.X*v.Scale
	v.OriginY = v.Height - y - anchor.Y*v.Scale
	return v
}
