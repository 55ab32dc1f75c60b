package scene

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/creativecanvas/creativecanvas/backend-go/internal/asset"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/filter"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/geometry"
)

// Kind tags the payload an Object carries.
type Kind string

const (
	KindImage Kind = "image"
	KindLine  Kind = "line"
	KindPath  Kind = "path"
)

var (
	ErrNotFound      = errors.New("object not found")
	ErrInvalidTarget = errors.New("operation not applicable to object kind")
	ErrInvalidObject = errors.New("invalid object")
	ErrDuplicateID   = errors.New("duplicate object id")
	ErrSurface       = errors.New("surface rejected object")
)

// Object is a placed element on the canvas. Exactly one payload pointer is
// set, matching Kind.
type Object struct {
	ID         string         `json:"id"`
	Kind       Kind           `json:"kind"`
	Frame      geometry.Frame `json:"frame"`
	ZOrder     int64          `json:"zOrder"`
	Selectable bool           `json:"selectable"`
	SlotID     string         `json:"slotId,omitempty"`

	Image *ImageData `json:"image,omitempty"`
	Line  *LineData  `json:"line,omitempty"`
	Path  *PathData  `json:"path,omitempty"`
}

// ImageData is the image payload. Source holds decoded pixels and is never
// serialized; it is resolved again from Asset.Path on load.
type ImageData struct {
	Asset   asset.Ref      `json:"asset"`
	Filters filter.Stack   `json:"filters,omitempty"`
	Source  *asset.Decoded `json:"-"`
}

// LineData is a straight stroke between two canvas points.
type LineData struct {
	X1          float64 `json:"x1"`
	Y1          float64 `json:"y1"`
	X2          float64 `json:"x2"`
	Y2          float64 `json:"y2"`
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"strokeWidth"`
	Opacity     float64 `json:"opacity"`
	Tag         string  `json:"tag,omitempty"`
}

// Point is a canvas coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PathData is a free-hand brush stroke. Points are relative to the frame's
// top-left corner.
type PathData struct {
	Points      []Point `json:"points"`
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"strokeWidth"`
}

// NewImage builds an image object from a decoded asset placed at frame.
// The frame's natural size is taken from the decoded pixels.
func NewImage(src *asset.Decoded, frame geometry.Frame) (*Object, error) {
	if src == nil || src.Image == nil {
		return nil, fmt.Errorf("%w: image without pixels", ErrInvalidObject)
	}
	ref := src.Ref
	ref.Width, ref.Height = src.Width(), src.Height()
	frame.Width, frame.Height = float64(ref.Width), float64(ref.Height)

	o := &Object{
		Kind:       KindImage,
		Frame:      frame,
		Selectable: true,
		Image:      &ImageData{Asset: ref, Source: src},
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// NewLine builds a line object. The frame spans the line's bounding box.
func NewLine(line LineData, selectable bool) (*Object, error) {
	if line.Opacity == 0 {
		line.Opacity = 1
	}
	o := &Object{
		Kind: KindLine,
		Frame: geometry.Frame{
			X:      math.Min(line.X1, line.X2),
			Y:      math.Min(line.Y1, line.Y2),
			ScaleX: 1,
			ScaleY: 1,
			Width:  math.Abs(line.X2 - line.X1),
			Height: math.Abs(line.Y2 - line.Y1),
		},
		Selectable: selectable,
		Line:       &line,
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// NewPath builds a brush stroke from absolute canvas points.
func NewPath(points []Point, stroke string, width float64) (*Object, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: path needs at least two points", ErrInvalidObject)
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	rel := make([]Point, len(points))
	for i, p := range points {
		rel[i] = Point{X: p.X - minX, Y: p.Y - minY}
	}

	o := &Object{
		Kind: KindPath,
		Frame: geometry.Frame{
			X: minX, Y: minY, ScaleX: 1, ScaleY: 1,
			Width: maxX - minX, Height: maxY - minY,
		},
		Selectable: true,
		Path:       &PathData{Points: rel, Stroke: stroke, StrokeWidth: width},
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Validate checks the per-kind invariants.
func (o *Object) Validate() error {
	if !o.Frame.Valid() {
		return fmt.Errorf("%w: scale must be positive", ErrInvalidObject)
	}
	switch o.Kind {
	case KindImage:
		if o.Image == nil || o.Line != nil || o.Path != nil {
			return fmt.Errorf("%w: image payload mismatch", ErrInvalidObject)
		}
		if o.Image.Asset.Path == "" {
			return fmt.Errorf("%w: image without asset locator", ErrInvalidObject)
		}
		if o.Frame.Width <= 0 || o.Frame.Height <= 0 {
			return fmt.Errorf("%w: image without natural size", ErrInvalidObject)
		}
		if err := o.Image.Filters.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidObject, err)
		}
	case KindLine:
		if o.Line == nil || o.Image != nil || o.Path != nil {
			return fmt.Errorf("%w: line payload mismatch", ErrInvalidObject)
		}
		if o.Line.StrokeWidth < 0 {
			return fmt.Errorf("%w: negative stroke width", ErrInvalidObject)
		}
	case KindPath:
		if o.Path == nil || o.Image != nil || o.Line != nil {
			return fmt.Errorf("%w: path payload mismatch", ErrInvalidObject)
		}
		if len(o.Path.Points) < 2 {
			return fmt.Errorf("%w: path needs at least two points", ErrInvalidObject)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidObject, o.Kind)
	}
	return nil
}

// Clone returns a deep copy. Decoded pixels are shared; they are immutable.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	c := *o
	if o.Image != nil {
		img := *o.Image
		img.Filters = o.Image.Filters.Clone()
		c.Image = &img
	}
	if o.Line != nil {
		line := *o.Line
		c.Line = &line
	}
	if o.Path != nil {
		p := *o.Path
		p.Points = slices.Clone(o.Path.Points)
		c.Path = &p
	}
	return &c
}

// Bounds is the object's axis-aligned box in canvas space.
func (o *Object) Bounds() geometry.Rect {
	if o.Kind == KindLine {
		// Lines have no area; give them a stroke-wide box for hit testing.
		w := max(o.Line.StrokeWidth, 1)
		b := o.Frame.Box()
		return geometry.Rect{X: b.X - w/2, Y: b.Y - w/2, Width: b.Width + w, Height: b.Height + w}
	}
	return o.Frame.Bounds()
}
