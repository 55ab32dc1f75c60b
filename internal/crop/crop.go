// Package crop turns an interactive selection over a displayed image into a
// new standalone raster.
package crop

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/disintegration/imaging"

	"github.com/creativecanvas/creativecanvas/backend-go/internal/asset"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/geometry"
)

var ErrInvalidSelection = errors.New("invalid crop selection")

// Unit is the coordinate unit of a selection.
type Unit string

const (
	Percent Unit = "%"
	Pixel   Unit = "px"
)

// Free is the unconstrained aspect ratio.
const Free = 0.0

// Aspect is a named aspect ratio preset. A zero Ratio means Free.
type Aspect struct {
	Label string  `json:"label"`
	Ratio float64 `json:"ratio"`
}

var aspects = []Aspect{
	{Label: "Free", Ratio: Free},
	{Label: "1:1 Square", Ratio: 1},
	{Label: "4:3", Ratio: 4.0 / 3.0},
	{Label: "16:9", Ratio: 16.0 / 9.0},
	{Label: "3:4", Ratio: 3.0 / 4.0},
	{Label: "9:16", Ratio: 9.0 / 16.0},
}

// Aspects lists the aspect presets offered by the crop tool.
func Aspects() []Aspect {
	return append([]Aspect(nil), aspects...)
}

// Selection is a crop rectangle in displayed-image space. With Unit Percent
// the values are percentages of the displayed size.
type Selection struct {
	Unit   Unit    `json:"unit"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ToPixels converts the selection to displayed pixels.
func (s Selection) ToPixels(displayed geometry.Size) Selection {
	if s.Unit != Percent {
		s.Unit = Pixel
		return s
	}
	return Selection{
		Unit:   Pixel,
		X:      s.X * displayed.Width / 100,
		Y:      s.Y * displayed.Height / 100,
		Width:  s.Width * displayed.Width / 100,
		Height: s.Height * displayed.Height / 100,
	}
}

// ToPercent converts the selection to percentages of the displayed size.
func (s Selection) ToPercent(displayed geometry.Size) Selection {
	if s.Unit == Percent {
		return s
	}
	return Selection{
		Unit:   Percent,
		X:      s.X / displayed.Width * 100,
		Y:      s.Y / displayed.Height * 100,
		Width:  s.Width / displayed.Width * 100,
		Height: s.Height / displayed.Height * 100,
	}
}

func (s Selection) valid() bool {
	return s.Width > 0 && s.Height > 0 &&
		!math.IsNaN(s.X) && !math.IsNaN(s.Y) && !math.IsInf(s.Width, 0) && !math.IsInf(s.Height, 0)
}

// Normalize makes sel satisfy aspect (width/height) within the displayed
// bounds. A fixed aspect keeps the selection's center and width, derives the
// height, then shrinks both if the box no longer fits. Free only clamps to
// the bounds. The result is in the unit of sel.
func Normalize(sel Selection, aspect float64, displayed geometry.Size) Selection {
	if displayed.Degenerate() {
		return sel
	}
	unit := sel.Unit
	px := sel.ToPixels(displayed)

	if aspect > 0 && px.Width > 0 {
		cx, cy := px.X+px.Width/2, px.Y+px.Height/2
		w := px.Width
		h := w / aspect
		if w > displayed.Width {
			w, h = displayed.Width, displayed.Width/aspect
		}
		if h > displayed.Height {
			w, h = displayed.Height*aspect, displayed.Height
		}
		px.Width, px.Height = w, h
		px.X, px.Y = cx-w/2, cy-h/2
	} else {
		px.Width = min(px.Width, displayed.Width)
		px.Height = min(px.Height, displayed.Height)
	}

	px.X = clamp(px.X, 0, displayed.Width-px.Width)
	px.Y = clamp(px.Y, 0, displayed.Height-px.Height)

	if unit == Percent {
		return px.ToPercent(displayed)
	}
	return px
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// Centered is the initial selection: half the displayed width, centered,
// constrained to aspect. Free starts as a centered 50% by 50% box.
func Centered(aspect float64, displayed geometry.Size) Selection {
	if aspect <= 0 || displayed.Degenerate() {
		return Selection{Unit: Percent, X: 25, Y: 25, Width: 50, Height: 50}
	}
	w := displayed.Width / 2
	sel := Selection{Unit: Pixel, Width: w, Height: w / aspect}
	sel.X = (displayed.Width - sel.Width) / 2
	sel.Y = (displayed.Height - sel.Height) / 2
	return Normalize(sel, aspect, displayed).ToPercent(displayed)
}

// Completed is a selection the user finished adjusting. Only completed
// selections can be extracted.
type Completed struct {
	Selection Selection
	Aspect    float64
}

// Tool tracks one crop interaction over a displayed image.
type Tool struct {
	displayed geometry.Size
	aspect    float64
	current   Selection
	completed *Completed
}

// Begin starts a new interaction with the centered initial selection.
func (t *Tool) Begin(displayed geometry.Size, aspect float64) error {
	if displayed.Degenerate() {
		return fmt.Errorf("%w: displayed image has no size", ErrInvalidSelection)
	}
	t.displayed = displayed
	t.aspect = aspect
	t.current = Centered(aspect, displayed)
	t.completed = nil
	return nil
}

// SetAspect switches the aspect preset and recenters the selection.
func (t *Tool) SetAspect(aspect float64) {
	t.aspect = aspect
	t.current = Centered(aspect, t.displayed)
	t.completed = nil
}

// Adjust moves or resizes the selection. Any previous completion is
// invalidated until Complete is called again.
func (t *Tool) Adjust(sel Selection) Selection {
	t.current = Normalize(sel, t.aspect, t.displayed)
	t.completed = nil
	return t.current
}

// Selection returns the in-progress selection.
func (t *Tool) Selection() Selection {
	return t.current
}

// Displayed returns the displayed image size the selection refers to.
func (t *Tool) Displayed() geometry.Size {
	return t.displayed
}

// Aspect returns the active aspect ratio.
func (t *Tool) Aspect() float64 {
	return t.aspect
}

// Complete finalizes the current selection.
func (t *Tool) Complete() (*Completed, error) {
	if t.displayed.Degenerate() {
		return nil, fmt.Errorf("%w: interaction not started", ErrInvalidSelection)
	}
	if !t.current.valid() {
		return nil, fmt.Errorf("%w: empty selection", ErrInvalidSelection)
	}
	t.completed = &Completed{Selection: t.current.ToPercent(t.displayed), Aspect: t.aspect}
	return t.completed, nil
}

// Completed returns the last completed selection, if any.
func (t *Tool) Completed() (*Completed, bool) {
	return t.completed, t.completed != nil
}

// Extract copies the completed region out of src. The selection is mapped
// from displayed to source pixels by natural/displayed. For a fixed aspect
// the pixel height is derived from the pixel width.
func Extract(src image.Image, displayed geometry.Size, c *Completed) (*image.NRGBA, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: selection was never completed", ErrInvalidSelection)
	}
	if src == nil || displayed.Degenerate() {
		return nil, fmt.Errorf("%w: no source image", ErrInvalidSelection)
	}

	b := src.Bounds()
	scaleX := float64(b.Dx()) / displayed.Width
	scaleY := float64(b.Dy()) / displayed.Height
	px := c.Selection.ToPixels(displayed)

	x := int(math.Round(px.X * scaleX))
	y := int(math.Round(px.Y * scaleY))
	w := min(int(math.Round(px.Width*scaleX)), b.Dx())
	h := min(int(math.Round(px.Height*scaleY)), b.Dy())
	if c.Aspect > 0 {
		h = int(math.Round(float64(w) / c.Aspect))
		if h > b.Dy() {
			w = int(float64(b.Dy()) * c.Aspect)
			h = int(math.Round(float64(w) / c.Aspect))
		}
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: resolves to %dx%d pixels", ErrInvalidSelection, w, h)
	}

	// Rounding can push the region past an edge; slide it back in rather
	// than clip it so the aspect survives.
	x = max(0, min(x, b.Dx()-w))
	y = max(0, min(y, b.Dy()-h))
	r := image.Rect(x, y, x+w, y+h).Add(b.Min)
	return imaging.Crop(src, r), nil
}

// Apply extracts the completed region and stores it as a brand new asset.
// The source asset is never modified.
func Apply(ctx context.Context, up asset.Uploader, src *asset.Decoded, displayed geometry.Size, c *Completed) (asset.Ref, error) {
	if src == nil {
		return asset.Ref{}, fmt.Errorf("%w: no source image", ErrInvalidSelection)
	}
	out, err := Extract(src.Image, displayed, c)
	if err != nil {
		return asset.Ref{}, err
	}
	name := fmt.Sprintf("cropped-%d.jpg", time.Now().UnixMilli())
	ref, err := up.Put(ctx, out, name)
	if err != nil {
		return asset.Ref{}, fmt.Errorf("upload crop: %w", err)
	}
	return ref, nil
}
