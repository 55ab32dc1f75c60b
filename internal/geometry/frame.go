package geometry

import "math"

// Frame is the placement of an object on the canvas: top-left position,
// positive scale, rotation in degrees, flip flags and the object's natural
// (unscaled) size. Flips are flags, never negative scale.
type Frame struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	ScaleX   float64 `json:"scaleX"`
	ScaleY   float64 `json:"scaleY"`
	Rotation float64 `json:"rotation"`
	FlipX    bool    `json:"flipX"`
	FlipY    bool    `json:"flipY"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
}

// NewFrame returns an untransformed frame at the origin with the given natural size.
func NewFrame(natural Size) Frame {
	return Frame{ScaleX: 1, ScaleY: 1, Width: natural.Width, Height: natural.Height}
}

// Natural returns the unscaled size.
func (f Frame) Natural() Size {
	return Size{Width: f.Width, Height: f.Height}
}

// ScaledWidth is the effective width: natural width times ScaleX.
func (f Frame) ScaledWidth() float64 {
	return f.Width * f.ScaleX
}

// ScaledHeight is the effective height: natural height times ScaleY.
func (f Frame) ScaledHeight() float64 {
	return f.Height * f.ScaleY
}

// Box is the unrotated scaled box anchored at (X, Y).
func (f Frame) Box() Rect {
	return Rect{X: f.X, Y: f.Y, Width: f.ScaledWidth(), Height: f.ScaledHeight()}
}

// Matrix maps natural object coordinates to canvas coordinates. Rotation and
// flips pivot on the center of the scaled box.
func (f Frame) Matrix() Matrix2D {
	sx, sy := f.ScaleX, f.ScaleY
	if f.FlipX {
		sx = -sx
	}
	if f.FlipY {
		sy = -sy
	}
	cx, cy := f.Box().Center()
	return Translate(cx, cy).
		Multiply(RotateDegrees(f.Rotation)).
		Multiply(Scale(sx, sy)).
		Multiply(Translate(-f.Width/2, -f.Height/2))
}

// Bounds is the axis-aligned box of the transformed object in canvas space.
func (f Frame) Bounds() Rect {
	return f.Matrix().TransformRect(Rect{Width: f.Width, Height: f.Height})
}

// Valid reports whether the frame satisfies the scale invariant.
func (f Frame) Valid() bool {
	return f.ScaleX > 0 && f.ScaleY > 0 &&
		!math.IsNaN(f.X) && !math.IsNaN(f.Y) && !math.IsNaN(f.Rotation)
}

// NormalizeDegrees maps any angle into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}
