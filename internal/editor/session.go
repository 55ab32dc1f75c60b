// Package editor owns one user's editing state: the scene graph, its
// rendering surface and the asynchronous asset loads that feed it. All
// graph mutations are serialized through the session.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/creativecanvas/creativecanvas/backend-go/internal/asset"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/collage"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/document"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/filter"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/geometry"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/render"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/scene"
)

var (
	ErrNoSelection = errors.New("no object selected")
	ErrStaleLoad   = errors.New("load superseded by a newer scene")
)

// Config configures a session.
type Config struct {
	Width      int
	Height     int
	Background string
	Loader     asset.Loader
	Uploader   asset.Uploader
	Logger     *slog.Logger
	Clock      func() time.Time
}

// Session is the editing state of one composition.
type Session struct {
	mu         sync.Mutex
	graph      *scene.Graph
	canvas     *render.Canvas
	loader     asset.Loader
	uploader   asset.Uploader
	serializer document.Serializer
	logger     *slog.Logger

	mode     document.Mode
	grid     bool
	snap     bool
	template *collage.Template
	binding  collage.Binding
	crop     *cropState

	pending sync.WaitGroup
}

// New creates a session with an empty canvas.
func New(cfg Config) *Session {
	if cfg.Width <= 0 {
		cfg.Width = 800
	}
	if cfg.Height <= 0 {
		cfg.Height = 600
	}
	if cfg.Background == "" {
		cfg.Background = scene.DefaultBackground
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	canvas := render.New(cfg.Width, cfg.Height, cfg.Background)
	s := &Session{
		graph:      scene.New(canvas),
		canvas:     canvas,
		loader:     cfg.Loader,
		uploader:   cfg.Uploader,
		serializer: document.Serializer{Clock: cfg.Clock},
		logger:     cfg.Logger,
		mode:       document.ModeSingle,
	}
	if cfg.Background != scene.DefaultBackground {
		if err := s.graph.SetBackground(cfg.Background); err != nil {
			s.logger.Warn("set initial background", "error", err)
		}
	}
	return s
}

// Canvas returns the rendering surface.
func (s *Session) Canvas() *render.Canvas {
	return s.canvas
}

// OnRender registers fn to run after every redraw. fn must not call back
// into the session synchronously.
func (s *Session) OnRender(fn func(frame uint64)) {
	s.canvas.OnRedraw(fn)
}

// Mode returns the current authoring mode.
func (s *Session) Mode() document.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Pending is the handle of an asynchronous asset load.
type Pending struct {
	done chan struct{}
	id   string
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) finish(id string, err error) {
	p.id, p.err = id, err
	close(p.done)
}

// Done is closed once the load has been applied or discarded.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the load completes and returns the id of the object it
// produced. A load discarded because the scene moved on reports ErrStaleLoad.
func (p *Pending) Wait(ctx context.Context) (string, error) {
	select {
	case <-p.done:
		return p.id, p.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Wait blocks until every outstanding load has completed.
func (s *Session) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// load decodes locator in the background and hands the result to apply
// under the session lock, unless the scene generation changed meanwhile.
// undo, if set, runs under the lock when the load or apply fails.
// Must be called with s.mu held.
func (s *Session) load(ctx context.Context, locator string, apply func(d *asset.Decoded) (string, error), undo func()) *Pending {
	p := newPending()
	gen := s.graph.Generation()
	s.pending.Add(1)

	go func() {
		defer s.pending.Done()

		d, err := s.loader.Load(ctx, locator)

		s.mu.Lock()
		defer s.mu.Unlock()

		if s.graph.Generation() != gen {
			s.logger.Debug("discarding stale asset load", "locator", locator, "generation", gen)
			p.finish("", ErrStaleLoad)
			return
		}
		if err == nil {
			var id string
			if id, err = apply(d); err == nil {
				p.finish(id, nil)
				return
			}
		}
		if !errors.Is(err, ErrStaleLoad) {
			s.logger.Warn("asset load failed", "locator", locator, "error", err)
			if undo != nil {
				undo()
			}
		}
		p.finish("", err)
	}()
	return p
}

// OpenImage replaces the composition with a single image, scaled to fit
// the canvas without upscaling and centered.
func (s *Session) OpenImage(ctx context.Context, locator string) *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	s.mode = document.ModeSingle
	return s.load(ctx, locator, s.placeImage, nil)
}

// AddImage adds another image on top of the composition.
func (s *Session) AddImage(ctx context.Context, locator string) *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, locator, s.placeImage, nil)
}

func (s *Session) placeImage(d *asset.Decoded) (string, error) {
	natural := geometry.Size{Width: float64(d.Width()), Height: float64(d.Height())}
	o, err := scene.NewImage(d, geometry.Fit(natural, s.graph.Size()))
	if err != nil {
		return "", err
	}
	added, err := s.graph.Add(o)
	if err != nil {
		return "", err
	}
	return added.ID, nil
}

// AddPath adds a free-hand brush stroke.
func (s *Session) AddPath(points []scene.Point, stroke string, width float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := scene.NewPath(points, stroke, width)
	if err != nil {
		return "", err
	}
	added, err := s.graph.Add(o)
	if err != nil {
		return "", err
	}
	return added.ID, nil
}

// Clear empties the canvas and drops collage and crop state. The grid, if
// shown, is redrawn.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.graph.Clear()
	s.template = nil
	s.binding = nil
	s.crop = nil
	if s.grid {
		if err := s.addGridLocked(); err != nil {
			s.logger.Error("failed to redraw grid", "error", err)
		}
	}
}

// SetBackground changes the canvas color.
func (s *Session) SetBackground(color string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.SetBackground(color)
}

// --- Selection ---

// Select selects an object by id.
func (s *Session) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Select(id)
}

// Deselect clears the selection.
func (s *Session) Deselect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph.Deselect()
}

// SelectAt selects the topmost selectable object under (x, y), or clears
// the selection when there is none. It returns the selected id.
func (s *Session) SelectAt(x, y float64) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.graph.HitTest(x, y)
	if id == "" {
		s.graph.Deselect()
		return ""
	}
	s.graph.Select(id)
	return id
}

// Selected returns a copy of the selected object.
func (s *Session) Selected() (*scene.Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Selected()
}

func (s *Session) selectedIDLocked() (string, error) {
	id := s.graph.SelectedID()
	if id == "" {
		return "", ErrNoSelection
	}
	return id, nil
}

// Delete removes the selected object.
func (s *Session) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.selectedIDLocked()
	if err != nil {
		return err
	}
	return s.graph.Remove(id)
}

// BringToFront raises the selected object above all others.
func (s *Session) BringToFront() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.selectedIDLocked()
	if err != nil {
		return err
	}
	return s.graph.BringToFront(id)
}

// SendToBack lowers the selected object below all others.
func (s *Session) SendToBack() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.selectedIDLocked()
	if err != nil {
		return err
	}
	return s.graph.SendToBack(id)
}

// --- Transforms ---

// Transform applies a named geometry operation to the selected object.
func (s *Session) Transform(name string) error {
	op, ok := geometry.LookupOp(name)
	if !ok {
		return fmt.Errorf("%w: transform %q", ErrUnknownCommand, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.selectedIDLocked()
	if err != nil {
		return err
	}
	return s.graph.ApplyTransform(id, op)
}

// Move places the selected object's top-left corner at (x, y), snapping to
// the grid when snapping is on.
func (s *Session) Move(x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.selectedIDLocked()
	if err != nil {
		return err
	}
	snap := s.snap
	return s.graph.ApplyTransform(id, func(f *geometry.Frame, _ geometry.Size) *geometry.Frame {
		out := *f
		out.X, out.Y = x, y
		if snap {
			return geometry.SnapToGrid(&out, GridSize)
		}
		return &out
	})
}

// Scale sets the selected object's uniform scale, keeping its center.
func (s *Session) Scale(scale float64) error {
	if scale <= 0 {
		return fmt.Errorf("%w: scale must be positive", scene.ErrInvalidObject)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.selectedIDLocked()
	if err != nil {
		return err
	}
	return s.graph.ApplyTransform(id, func(f *geometry.Frame, _ geometry.Size) *geometry.Frame {
		cx, cy := f.Box().Center()
		out := *f
		out.ScaleX, out.ScaleY = scale, scale
		out.X = cx - out.ScaledWidth()/2
		out.Y = cy - out.ScaledHeight()/2
		return &out
	})
}

// --- Filters ---

func (s *Session) updateFilters(fn func(st *filter.Stack) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.selectedIDLocked()
	if err != nil {
		return err
	}
	return s.graph.UpdateFilters(id, fn)
}

// SetFilter sets one filter on the selected image.
func (s *Session) SetFilter(kind filter.Kind, value float64) error {
	return s.updateFilters(func(st *filter.Stack) error { return st.Set(kind, value) })
}

// ClearFilter removes one filter from the selected image.
func (s *Session) ClearFilter(kind filter.Kind) error {
	return s.updateFilters(func(st *filter.Stack) error {
		if !kind.Valid() {
			return fmt.Errorf("%w: %q", filter.ErrUnknownKind, kind)
		}
		st.Clear(kind)
		return nil
	})
}

// ResetFilters removes every filter from the selected image.
func (s *Session) ResetFilters() error {
	return s.updateFilters(func(st *filter.Stack) error {
		st.Reset()
		return nil
	})
}

// ApplyPreset replaces the selected image's filters with a preset.
func (s *Session) ApplyPreset(id string) error {
	p, ok := filter.LookupPreset(id)
	if !ok {
		return fmt.Errorf("%w: preset %q", filter.ErrUnknownKind, id)
	}
	return s.updateFilters(func(st *filter.Stack) error { return st.ApplyPreset(p) })
}

// --- Grid ---

// GridSize is the spacing of grid lines and the snapping step.
const GridSize = 50

const gridTag = "grid"

// ToggleGrid shows or hides the alignment grid and returns the new state.
func (s *Session) ToggleGrid() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.grid {
		s.graph.RemoveWhere(isGridLine)
		s.grid = false
		return false, nil
	}
	if err := s.addGridLocked(); err != nil {
		return false, err
	}
	s.grid = true
	return true, nil
}

func isGridLine(o *scene.Object) bool {
	return o.Kind == scene.KindLine && o.Line.Tag == gridTag
}

func (s *Session) addGridLocked() error {
	size := s.graph.Size()
	var lines []*scene.Object
	add := func(l scene.LineData) error {
		l.Stroke, l.StrokeWidth, l.Opacity, l.Tag = "#e5e7eb", 1, 0.5, gridTag
		o, err := scene.NewLine(l, false)
		if err != nil {
			return err
		}
		lines = append(lines, o)
		return nil
	}
	for x := 0.0; x <= size.Width; x += GridSize {
		if err := add(scene.LineData{X1: x, Y1: 0, X2: x, Y2: size.Height}); err != nil {
			return err
		}
	}
	for y := 0.0; y <= size.Height; y += GridSize {
		if err := add(scene.LineData{X1: 0, Y1: y, X2: size.Width, Y2: y}); err != nil {
			return err
		}
	}
	_, err := s.graph.AddBatch(lines, true)
	return err
}

// SetSnapToGrid turns position snapping on or off.
func (s *Session) SetSnapToGrid(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = on
}

// --- Queries ---

// DrawList returns the draw commands of the current state.
func (s *Session) DrawList() []scene.DrawCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.DrawList()
}

// Objects returns copies of all objects, back to front.
func (s *Session) Objects() []*scene.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Objects()
}

// SelectionBounds returns the bounds of the selected object.
func (s *Session) SelectionBounds() geometry.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.SelectionBounds(s.graph.SelectedID())
}

// --- Persistence ---

// Save captures the composition as a document.
func (s *Session) Save() (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.serializer.Save(s.graph, s.mode, nil)
	if err != nil {
		return nil, err
	}
	if s.mode == document.ModeCollage && s.template != nil {
		doc.WithCollage(s.template.ID, s.binding)
	}
	return doc, nil
}

// Load restores a document. Images whose assets are missing are skipped
// and reported through a *document.LoadReport.
func (s *Session) Load(ctx context.Context, doc *document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resolve := func(ctx context.Context, ref asset.Ref) (*asset.Decoded, error) {
		return s.loader.Load(ctx, ref.Path)
	}
	mode, err := s.serializer.Load(ctx, doc, s.graph, resolve)
	var report *document.LoadReport
	if err != nil && !errors.As(err, &report) {
		return err
	}

	s.mode = mode
	s.crop = nil
	s.template, s.binding = nil, nil
	s.grid = false
	for _, o := range s.graph.Objects() {
		if isGridLine(o) {
			s.grid = true
			break
		}
	}
	if mode == document.ModeCollage && doc.Collage != nil {
		if tpl, lerr := collage.Lookup(doc.Collage.TemplateID); lerr == nil {
			s.template = &tpl
			s.binding = doc.Collage.Binding
		}
	}
	if report != nil {
		s.logger.Warn("composition loaded with missing assets", "missing", len(report.Missing))
		return report
	}
	return nil
}
