package geometry

import (
	"math"
	"testing"
)

const eps = 1e-9

func near(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func TestRotateRoundTrip(t *testing.T) {
	tests := []struct {
		start float64
		delta float64
	}{
		{0, 90},
		{45, 90},
		{270, 180},
		{10, -90},
		{359, 37.5},
	}

	for _, tt := range tests {
		f := &Frame{Rotation: tt.start, ScaleX: 1, ScaleY: 1}
		got := Rotate(Rotate(f, tt.delta), -tt.delta)
		if !near(got.Rotation, tt.start) {
			t.Errorf("Rotate(Rotate(%v, %v), %v) = %v", tt.start, tt.delta, -tt.delta, got.Rotation)
		}
	}
}

func TestRotateNormalizes(t *testing.T) {
	tests := []struct {
		start, delta, want float64
	}{
		{0, -90, 270},
		{270, 90, 0},
		{180, 180, 0},
		{90, 720, 90},
		{0, -450, 270},
	}
	for _, tt := range tests {
		got := Rotate(&Frame{Rotation: tt.start}, tt.delta)
		if !near(got.Rotation, tt.want) {
			t.Errorf("Rotate(%v, %v) = %v, want %v", tt.start, tt.delta, got.Rotation, tt.want)
		}
		if got.Rotation < 0 || got.Rotation >= 360 {
			t.Errorf("rotation %v outside [0,360)", got.Rotation)
		}
	}
}

func TestRotateDoesNotMutateInput(t *testing.T) {
	f := &Frame{Rotation: 30}
	Rotate(f, 90)
	if f.Rotation != 30 {
		t.Errorf("input mutated: %v", f.Rotation)
	}
}

func TestFlipKeepsPosition(t *testing.T) {
	f := &Frame{X: 12, Y: 34, ScaleX: 1, ScaleY: 1}
	h := FlipHorizontal(f)
	if !h.FlipX || h.FlipY || h.X != 12 || h.Y != 34 {
		t.Errorf("FlipHorizontal = %+v", h)
	}
	v := FlipVertical(h)
	if !v.FlipX || !v.FlipY || v.X != 12 || v.Y != 34 {
		t.Errorf("FlipVertical = %+v", v)
	}
	if back := FlipHorizontal(h); back.FlipX {
		t.Error("double flip should clear FlipX")
	}
}

func TestAlign(t *testing.T) {
	canvas := Size{Width: 800, Height: 600}
	f := &Frame{X: 37, Y: 91, ScaleX: 0.5, ScaleY: 0.25, Width: 400, Height: 400}

	tests := []struct {
		name  string
		op    Op
		wantX float64
		wantY float64
	}{
		{"left", AlignLeft, 0, 91},
		{"right", AlignRight, 600, 91},
		{"top", AlignTop, 37, 0},
		{"bottom", AlignBottom, 37, 500},
		{"centerH", AlignCenterH, 300, 91},
		{"centerV", AlignCenterV, 37, 250},
	}

	for _, tt := range tests {
		got := tt.op(f, canvas)
		if !near(got.X, tt.wantX) || !near(got.Y, tt.wantY) {
			t.Errorf("%s: got (%v, %v), want (%v, %v)", tt.name, got.X, got.Y, tt.wantX, tt.wantY)
		}
	}
}

func TestAlignRightFlush(t *testing.T) {
	canvas := Size{Width: 1024, Height: 768}
	for _, scale := range []float64{0.1, 0.33, 1, 1.7, 3} {
		f := &Frame{ScaleX: scale, ScaleY: scale, Width: 317, Height: 211}
		got := AlignRight(f, canvas)
		if !near(got.X+got.Width*got.ScaleX, canvas.Width) {
			t.Errorf("scale %v: right edge at %v, want %v", scale, got.X+got.Width*got.ScaleX, canvas.Width)
		}
	}
}

func TestDegenerateInputsAreNoOps(t *testing.T) {
	if Rotate(nil, 90) != nil {
		t.Error("Rotate(nil) should be nil")
	}
	if AlignLeft(nil, Size{Width: 10, Height: 10}) != nil {
		t.Error("AlignLeft(nil) should be nil")
	}

	f := &Frame{X: 5, Y: 6, ScaleX: 1, ScaleY: 1, Width: 10, Height: 10}
	for _, canvas := range []Size{{0, 600}, {800, 0}, {-1, -1}} {
		if got := AlignRight(f, canvas); got != f {
			t.Errorf("AlignRight with canvas %+v should return input", canvas)
		}
		if got := ResetTransform(f, canvas); got != f {
			t.Errorf("ResetTransform with canvas %+v should return input", canvas)
		}
	}
}

func TestResetTransform(t *testing.T) {
	f := &Frame{X: 1, Y: 2, ScaleX: 0.5, ScaleY: 0.5, Rotation: 90, FlipX: true, FlipY: true, Width: 200, Height: 100}
	got := ResetTransform(f, Size{Width: 800, Height: 600})
	if got.Rotation != 0 || got.FlipX || got.FlipY {
		t.Errorf("transform not cleared: %+v", got)
	}
	if got.ScaleX != 0.5 || got.ScaleY != 0.5 {
		t.Errorf("scale changed: %+v", got)
	}
	if !near(got.X, 350) || !near(got.Y, 275) {
		t.Errorf("not centered: (%v, %v)", got.X, got.Y)
	}
}

func TestFitScenario(t *testing.T) {
	f := Fit(Size{Width: 1000, Height: 500}, Size{Width: 800, Height: 600})
	if !near(f.ScaleX, 0.8) || !near(f.ScaleY, 0.8) {
		t.Errorf("scale = %v, want 0.8", f.ScaleX)
	}
	if !near(f.X, 0) || !near(f.Y, 100) {
		t.Errorf("position = (%v, %v), want (0, 100)", f.X, f.Y)
	}
}

func TestFitNeverUpscales(t *testing.T) {
	f := Fit(Size{Width: 200, Height: 100}, Size{Width: 800, Height: 600})
	if f.ScaleX != 1 {
		t.Errorf("scale = %v, want 1", f.ScaleX)
	}
	if !near(f.X, 300) || !near(f.Y, 250) {
		t.Errorf("position = (%v, %v)", f.X, f.Y)
	}
}

func TestFitInto(t *testing.T) {
	slot := Rect{X: 400, Y: 300, Width: 400, Height: 300}
	f := FitInto(Size{Width: 100, Height: 100}, slot)
	if !near(f.ScaleX, 3) {
		t.Errorf("scale = %v, want 3", f.ScaleX)
	}
	cx, cy := f.Box().Center()
	sx, sy := slot.Center()
	if !near(cx, sx) || !near(cy, sy) {
		t.Errorf("center = (%v, %v), want (%v, %v)", cx, cy, sx, sy)
	}
}

func TestSnapToGrid(t *testing.T) {
	got := SnapToGrid(&Frame{X: 74, Y: 26}, 50)
	if got.X != 50 || got.Y != 50 {
		t.Errorf("SnapToGrid = (%v, %v)", got.X, got.Y)
	}
}

func TestBoundsRotatesAboutCenter(t *testing.T) {
	f := Frame{X: 100, Y: 100, ScaleX: 1, ScaleY: 1, Rotation: 90, Width: 200, Height: 100}
	b := f.Bounds()
	if !near(b.Width, 100) || !near(b.Height, 200) {
		t.Errorf("bounds size = %vx%v, want 100x200", b.Width, b.Height)
	}
	cx, cy := b.Center()
	if !near(cx, 200) || !near(cy, 150) {
		t.Errorf("bounds center = (%v, %v), want (200, 150)", cx, cy)
	}
}

func TestLookupOp(t *testing.T) {
	op, ok := LookupOp("rotateCW")
	if !ok {
		t.Fatal("rotateCW not registered")
	}
	if got := op(&Frame{}, Size{Width: 1, Height: 1}); got.Rotation != 90 {
		t.Errorf("rotateCW rotation = %v", got.Rotation)
	}
	if _, ok := LookupOp("explode"); ok {
		t.Error("unknown op should not resolve")
	}
	if len(OpNames()) != 12 {
		t.Errorf("OpNames = %v", OpNames())
	}
}
