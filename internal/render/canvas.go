// Package render is the software rendering surface behind a scene graph. It
// mirrors the scene's objects, keeps the filtered pixels of every image and
// rasterizes the composition with fogleman/gg.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/creativecanvas/creativecanvas/backend-go/internal/geometry"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/scene"
)

// SnapshotVersion is the version written into every snapshot blob.
const SnapshotVersion = 1

var (
	ErrNoPixels        = errors.New("image object has no decoded pixels")
	ErrBadSnapshot     = errors.New("malformed snapshot")
	ErrSnapshotVersion = errors.New("unsupported snapshot version")
)

type entry struct {
	obj    *scene.Object
	pixels *image.NRGBA // filtered, images only
}

// Canvas implements scene.Surface. It is safe for concurrent use.
type Canvas struct {
	mu         sync.Mutex
	width      int
	height     int
	background string
	objects    map[string]*entry
	frame      uint64
	onRedraw   func(frame uint64)
}

// New creates a canvas of the given pixel size.
func New(width, height int, background string) *Canvas {
	return &Canvas{
		width:      width,
		height:     height,
		background: background,
		objects:    make(map[string]*entry),
	}
}

// OnRedraw registers fn to be called after every redraw request. It is
// called without the canvas lock held.
func (c *Canvas) OnRedraw(fn func(frame uint64)) {
	c.mu.Lock()
	c.onRedraw = fn
	c.mu.Unlock()
}

// Size returns the canvas bounds.
func (c *Canvas) Size() geometry.Size {
	return geometry.Size{Width: float64(c.width), Height: float64(c.height)}
}

// Put adds or replaces an object. Image pixels are recomputed from the
// original source through the full filter stack unless neither the source
// nor the stack changed.
func (c *Canvas) Put(o *scene.Object) error {
	if o == nil {
		return fmt.Errorf("%w: nil object", scene.ErrInvalidObject)
	}
	obj := o.Clone()

	c.mu.Lock()
	prev := c.objects[obj.ID]
	c.mu.Unlock()

	var pixels *image.NRGBA
	if obj.Kind == scene.KindImage {
		if obj.Image.Source == nil || obj.Image.Source.Image == nil {
			return fmt.Errorf("put %s: %w", obj.ID, ErrNoPixels)
		}
		if prev != nil && prev.pixels != nil && prev.obj.Image != nil &&
			prev.obj.Image.Source == obj.Image.Source &&
			prev.obj.Image.Filters.Equal(obj.Image.Filters) {
			pixels = prev.pixels
		} else {
			pixels = ApplyFilters(obj.Image.Source.Image, obj.Image.Filters)
		}
	}

	c.mu.Lock()
	c.objects[obj.ID] = &entry{obj: obj, pixels: pixels}
	c.mu.Unlock()
	return nil
}

// Remove drops an object; unknown ids are ignored.
func (c *Canvas) Remove(id string) {
	c.mu.Lock()
	delete(c.objects, id)
	c.mu.Unlock()
}

// Clear drops every object and sets the background.
func (c *Canvas) Clear(background string) {
	c.mu.Lock()
	c.objects = make(map[string]*entry)
	c.background = background
	c.mu.Unlock()
}

// RequestRedraw bumps the frame counter and notifies the listener.
func (c *Canvas) RequestRedraw() {
	c.mu.Lock()
	c.frame++
	frame, fn := c.frame, c.onRedraw
	c.mu.Unlock()

	if fn != nil {
		fn(frame)
	}
}

// Frame returns the number of redraws requested so far.
func (c *Canvas) Frame() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

// Filtered returns the current filtered pixels of an image object.
func (c *Canvas) Filtered(id string) (*image.NRGBA, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.objects[id]
	if !ok || e.pixels == nil {
		return nil, false
	}
	return e.pixels, true
}

// ordered returns the entries back to front.
func (c *Canvas) ordered() []*entry {
	entries := make([]*entry, 0, len(c.objects))
	for _, e := range c.objects {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b *entry) int {
		if a.obj.ZOrder != b.obj.ZOrder {
			if a.obj.ZOrder < b.obj.ZOrder {
				return -1
			}
			return 1
		}
		return strings.Compare(a.obj.ID, b.obj.ID)
	})
	return entries
}

type snapshotJSON struct {
	Version    int             `json:"version"`
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Background string          `json:"background"`
	Objects    []*scene.Object `json:"objects"`
}

// Snapshot serializes the canvas state. Pixels are not included; images
// are referenced by their asset locator.
func (c *Canvas) Snapshot() ([]byte, error) {
	c.mu.Lock()
	snap := snapshotJSON{
		Version:    SnapshotVersion,
		Width:      c.width,
		Height:     c.height,
		Background: c.background,
		Objects:    []*scene.Object{},
	}
	for _, e := range c.ordered() {
		snap.Objects = append(snap.Objects, e.obj)
	}
	c.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// ParseSnapshot decodes a snapshot blob without touching the canvas.
func (c *Canvas) ParseSnapshot(blob []byte) (*scene.Snapshot, error) {
	return ParseSnapshot(blob)
}

// ParseSnapshot decodes a snapshot blob.
func ParseSnapshot(blob []byte) (*scene.Snapshot, error) {
	var snap snapshotJSON
	if err := json.Unmarshal(blob, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrSnapshotVersion, snap.Version)
	}
	for _, o := range snap.Objects {
		if o == nil {
			return nil, fmt.Errorf("%w: null object", ErrBadSnapshot)
		}
	}
	return &scene.Snapshot{Background: snap.Background, Objects: snap.Objects}, nil
}

// Render rasterizes the composition in z-order.
func (c *Canvas) Render() image.Image {
	c.mu.Lock()
	entries := c.ordered()
	background := c.background
	width, height := c.width, c.height
	c.mu.Unlock()

	dc := gg.NewContext(width, height)
	dc.SetHexColor(background)
	dc.Clear()

	for _, e := range entries {
		drawEntry(dc, e)
	}
	return dc.Image()
}

func drawEntry(dc *gg.Context, e *entry) {
	f := e.obj.Frame
	sx, sy := f.ScaleX, f.ScaleY
	if f.FlipX {
		sx = -sx
	}
	if f.FlipY {
		sy = -sy
	}
	cx, cy := f.Box().Center()

	dc.Push()
	defer dc.Pop()
	dc.Translate(cx, cy)
	dc.Rotate(geometry.Radians(f.Rotation))
	dc.Scale(sx, sy)
	dc.Translate(-f.Width/2, -f.Height/2)

	switch e.obj.Kind {
	case scene.KindImage:
		if e.pixels != nil {
			dc.DrawImage(e.pixels, 0, 0)
		}
	case scene.KindLine:
		l := e.obj.Line
		pts := l.Local()
		dc.SetColor(hexColor(l.Stroke, l.Opacity))
		dc.SetLineWidth(l.StrokeWidth)
		dc.DrawLine(pts[0].X, pts[0].Y, pts[1].X, pts[1].Y)
		dc.Stroke()
	case scene.KindPath:
		p := e.obj.Path
		dc.SetHexColor(p.Stroke)
		dc.SetLineWidth(p.StrokeWidth)
		dc.SetLineCapRound()
		dc.SetLineJoinRound()
		dc.MoveTo(p.Points[0].X, p.Points[0].Y)
		for _, pt := range p.Points[1:] {
			dc.LineTo(pt.X, pt.Y)
		}
		dc.Stroke()
	}
}

// EncodePNG renders the composition as PNG.
func (c *Canvas) EncodePNG(w io.Writer) error {
	return imaging.Encode(w, c.Render(), imaging.PNG)
}

// EncodeJPEG renders the composition as JPEG at the given quality.
func (c *Canvas) EncodeJPEG(w io.Writer, quality int) error {
	return imaging.Encode(w, c.Render(), imaging.JPEG, imaging.JPEGQuality(quality))
}

// hexColor parses a #rgb, #rrggbb or #rrggbbaa color with gg and scales its
// alpha by opacity. Unparseable input yields black.
func hexColor(s string, opacity float64) color.NRGBA {
	dc := gg.NewContext(1, 1)
	dc.SetHexColor(s)
	dc.Clear()
	c := color.NRGBAModel.Convert(dc.Image().At(0, 0)).(color.NRGBA)
	c.A = clampByte(float64(c.A) * opacity)
	return c
}
