package geometry

import "math"

// Every transform returns a new frame and leaves its input untouched. A nil
// frame, or canvas bounds with a non-positive dimension, yields the input
// unchanged.

// Rotate adds delta degrees to the rotation and normalizes it into [0, 360).
func Rotate(f *Frame, delta float64) *Frame {
	if f == nil {
		return nil
	}
	out := *f
	out.Rotation = NormalizeDegrees(f.Rotation + delta)
	return &out
}

// FlipHorizontal toggles FlipX. Position is not changed.
func FlipHorizontal(f *Frame) *Frame {
	if f == nil {
		return nil
	}
	out := *f
	out.FlipX = !f.FlipX
	return &out
}

// FlipVertical toggles FlipY. Position is not changed.
func FlipVertical(f *Frame) *Frame {
	if f == nil {
		return nil
	}
	out := *f
	out.FlipY = !f.FlipY
	return &out
}

// AlignLeft places the scaled box flush against the left canvas edge.
func AlignLeft(f *Frame, canvas Size) *Frame {
	if f == nil || canvas.Degenerate() {
		return f
	}
	out := *f
	out.X = 0
	return &out
}

// AlignRight places the scaled box flush against the right canvas edge.
func AlignRight(f *Frame, canvas Size) *Frame {
	if f == nil || canvas.Degenerate() {
		return f
	}
	out := *f
	out.X = canvas.Width - f.ScaledWidth()
	return &out
}

// AlignTop places the scaled box flush against the top canvas edge.
func AlignTop(f *Frame, canvas Size) *Frame {
	if f == nil || canvas.Degenerate() {
		return f
	}
	out := *f
	out.Y = 0
	return &out
}

// AlignBottom places the scaled box flush against the bottom canvas edge.
func AlignBottom(f *Frame, canvas Size) *Frame {
	if f == nil || canvas.Degenerate() {
		return f
	}
	out := *f
	out.Y = canvas.Height - f.ScaledHeight()
	return &out
}

// AlignCenterH centers the scaled box horizontally.
func AlignCenterH(f *Frame, canvas Size) *Frame {
	if f == nil || canvas.Degenerate() {
		return f
	}
	out := *f
	out.X = (canvas.Width - f.ScaledWidth()) / 2
	return &out
}

// AlignCenterV centers the scaled box vertically.
func AlignCenterV(f *Frame, canvas Size) *Frame {
	if f == nil || canvas.Degenerate() {
		return f
	}
	out := *f
	out.Y = (canvas.Height - f.ScaledHeight()) / 2
	return &out
}

// ResetTransform recenters the object, zeroes rotation and clears both
// flips. Scale is preserved.
func ResetTransform(f *Frame, canvas Size) *Frame {
	if f == nil || canvas.Degenerate() {
		return f
	}
	out := *f
	out.X = (canvas.Width - f.ScaledWidth()) / 2
	out.Y = (canvas.Height - f.ScaledHeight()) / 2
	out.Rotation = 0
	out.FlipX = false
	out.FlipY = false
	return &out
}

// SnapToGrid rounds the position to the nearest multiple of step.
func SnapToGrid(f *Frame, step float64) *Frame {
	if f == nil || step <= 0 {
		return f
	}
	out := *f
	out.X = math.Round(f.X/step) * step
	out.Y = math.Round(f.Y/step) * step
	return &out
}

// Fit places an object of the given natural size on the canvas: uniform
// scale min(cw/w, ch/h, 1) so small images are never scaled up, centered.
func Fit(natural, canvas Size) Frame {
	f := NewFrame(natural)
	if natural.Degenerate() || canvas.Degenerate() {
		return f
	}
	scale := min(canvas.Width/natural.Width, canvas.Height/natural.Height, 1)
	f.ScaleX, f.ScaleY = scale, scale
	f.X = (canvas.Width - natural.Width*scale) / 2
	f.Y = (canvas.Height - natural.Height*scale) / 2
	return f
}

// FitInto scales an object uniformly by min(rw/w, rh/h) and centers it in r.
// Unlike Fit the scale is not capped at 1.
func FitInto(natural Size, r Rect) Frame {
	f := NewFrame(natural)
	if natural.Degenerate() || r.IsEmpty() {
		f.X, f.Y = r.X, r.Y
		return f
	}
	scale := min(r.Width/natural.Width, r.Height/natural.Height)
	f.ScaleX, f.ScaleY = scale, scale
	f.X = r.X + (r.Width-natural.Width*scale)/2
	f.Y = r.Y + (r.Height-natural.Height*scale)/2
	return f
}
