package scene

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/creativecanvas/creativecanvas/backend-go/internal/asset"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/filter"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/geometry"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/typeid"
)

// DefaultBackground is the canvas color after Clear.
const DefaultBackground = "#f8f9fa"

// Graph is the authoritative model of everything on the canvas. It is not
// safe for concurrent use; callers serialize access.
type Graph struct {
	surface    Surface
	objects    map[string]*Object
	order      []string // ids sorted by ZOrder, back to front
	nextZ      int64
	selected   string
	background string
	generation uint64
}

// New creates an empty graph bound to surface.
func New(surface Surface) *Graph {
	surface.Clear(DefaultBackground)
	return &Graph{
		surface:    surface,
		objects:    make(map[string]*Object),
		background: DefaultBackground,
	}
}

// Size returns the canvas bounds of the surface.
func (g *Graph) Size() geometry.Size {
	return g.surface.Size()
}

// Generation identifies the current logical version of the scene. It
// changes whenever the whole scene is replaced (Clear, Restore).
func (g *Graph) Generation() uint64 {
	return g.generation
}

// Background returns the canvas background color.
func (g *Graph) Background() string {
	return g.background
}

// Len returns the number of objects.
func (g *Graph) Len() int {
	return len(g.objects)
}

// Add inserts an object on top of the stack and selects it. An empty ID is
// assigned a fresh one. The stored copy is returned.
func (g *Graph) Add(o *Object) (*Object, error) {
	if o == nil {
		return nil, fmt.Errorf("%w: nil object", ErrInvalidObject)
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}

	obj := o.Clone()
	if obj.ID == "" {
		obj.ID = typeid.NewObjectID()
	}
	if _, exists := g.objects[obj.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, obj.ID)
	}
	obj.ZOrder = g.nextZ
	if err := g.surface.Put(obj); err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}
	g.nextZ++
	g.objects[obj.ID] = obj
	g.order = append(g.order, obj.ID)
	if obj.Selectable {
		g.selected = obj.ID
	}

	g.surface.RequestRedraw()
	return obj.Clone(), nil
}

// AddBatch inserts several objects as one mutation with a single redraw.
// With atBack they are stacked below everything already on the canvas and
// the selection is left alone. Either all objects are added or none.
func (g *Graph) AddBatch(objs []*Object, atBack bool) ([]*Object, error) {
	batch := make([]*Object, 0, len(objs))
	ids := make(map[string]bool, len(objs))
	for _, o := range objs {
		if o == nil {
			return nil, fmt.Errorf("%w: nil object", ErrInvalidObject)
		}
		if err := o.Validate(); err != nil {
			return nil, err
		}
		obj := o.Clone()
		if obj.ID == "" {
			obj.ID = typeid.NewObjectID()
		}
		if _, exists := g.objects[obj.ID]; exists || ids[obj.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, obj.ID)
		}
		ids[obj.ID] = true
		batch = append(batch, obj)
	}
	if len(batch) == 0 {
		return nil, nil
	}

	z := g.nextZ
	if atBack {
		z = -int64(len(batch))
		if len(g.order) > 0 {
			z += g.objects[g.order[0]].ZOrder
		}
	}
	for _, obj := range batch {
		obj.ZOrder = z
		z++
	}
	for i, obj := range batch {
		if err := g.surface.Put(obj); err != nil {
			for _, put := range batch[:i] {
				g.surface.Remove(put.ID)
			}
			return nil, fmt.Errorf("put object: %w", err)
		}
	}

	out := make([]*Object, len(batch))
	for i, obj := range batch {
		g.objects[obj.ID] = obj
		g.order = append(g.order, obj.ID)
		out[i] = obj.Clone()
	}
	if !atBack {
		g.nextZ = z
		if last := batch[len(batch)-1]; last.Selectable {
			g.selected = last.ID
		}
	}
	g.sortOrder()

	g.surface.RequestRedraw()
	return out, nil
}

// Remove deletes an object, clearing the selection if it was selected.
func (g *Graph) Remove(id string) error {
	if _, ok := g.objects[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	delete(g.objects, id)
	g.order = slices.DeleteFunc(g.order, func(x string) bool { return x == id })
	if g.selected == id {
		g.selected = ""
	}
	g.surface.Remove(id)

	g.surface.RequestRedraw()
	return nil
}

// RemoveWhere deletes every object matching fn and returns how many went.
func (g *Graph) RemoveWhere(fn func(o *Object) bool) int {
	removed := 0
	for _, id := range slices.Clone(g.order) {
		o := g.objects[id]
		if !fn(o) {
			continue
		}
		delete(g.objects, id)
		if g.selected == id {
			g.selected = ""
		}
		g.surface.Remove(id)
		removed++
	}
	if removed == 0 {
		return 0
	}
	g.order = slices.DeleteFunc(g.order, func(x string) bool { _, ok := g.objects[x]; return !ok })

	g.surface.RequestRedraw()
	return removed
}

// Clear removes every object, resets the background and the selection, and
// starts a new generation.
func (g *Graph) Clear() {
	g.objects = make(map[string]*Object)
	g.order = nil
	g.selected = ""
	g.background = DefaultBackground
	g.generation++
	g.surface.Clear(DefaultBackground)

	g.surface.RequestRedraw()
}

// SetBackground changes the canvas color. The surface is repainted from
// scratch; objects it refuses are reported with ErrSurface but stay in the
// graph.
func (g *Graph) SetBackground(color string) error {
	g.background = color
	g.surface.Clear(color)
	err := g.repaint()
	g.surface.RequestRedraw()
	return err
}

// repaint puts every object back on a freshly cleared surface.
func (g *Graph) repaint() error {
	var errs []error
	for _, id := range g.order {
		if err := g.surface.Put(g.objects[id]); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrSurface, id, err))
		}
	}
	return errors.Join(errs...)
}

// Select makes id the single selected object.
func (g *Graph) Select(id string) error {
	if _, ok := g.objects[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	g.selected = id
	g.surface.RequestRedraw()
	return nil
}

// Deselect clears the selection.
func (g *Graph) Deselect() {
	if g.selected == "" {
		return
	}
	g.selected = ""
	g.surface.RequestRedraw()
}

// SelectedID returns the selected object's id, or "".
func (g *Graph) SelectedID() string {
	return g.selected
}

// Selected returns a copy of the selected object.
func (g *Graph) Selected() (*Object, bool) {
	if g.selected == "" {
		return nil, false
	}
	return g.Get(g.selected)
}

// Get returns a copy of the object with id.
func (g *Graph) Get(id string) (*Object, bool) {
	o, ok := g.objects[id]
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

// Objects returns copies of all objects, back to front.
func (g *Graph) Objects() []*Object {
	out := make([]*Object, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.objects[id].Clone())
	}
	return out
}

// ApplyTransform replaces the object's frame with op's result.
func (g *Graph) ApplyTransform(id string, op geometry.Op) error {
	o, ok := g.objects[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	frame := o.Frame
	next := op(&frame, g.surface.Size())
	if next == nil {
		return nil
	}

	updated := o.Clone()
	updated.Frame = *next
	if err := updated.Validate(); err != nil {
		return err
	}
	return g.replace(updated)
}

// UpdateFilters runs fn on a copy of the image's filter stack and commits
// the result only if fn succeeds. Non-image targets are left untouched and
// reported with ErrInvalidTarget.
func (g *Graph) UpdateFilters(id string, fn func(s *filter.Stack) error) error {
	o, ok := g.objects[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if o.Kind != KindImage {
		return fmt.Errorf("%w: filters on %s", ErrInvalidTarget, o.Kind)
	}

	stack := o.Image.Filters.Clone()
	if err := fn(&stack); err != nil {
		return err
	}
	if err := stack.Validate(); err != nil {
		return err
	}

	updated := o.Clone()
	updated.Image.Filters = stack
	return g.replace(updated)
}

// BringToFront moves an object to the top of the stack.
func (g *Graph) BringToFront(id string) error {
	o, ok := g.objects[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	updated := o.Clone()
	updated.ZOrder = g.nextZ
	g.nextZ++
	return g.replace(updated)
}

// SendToBack moves an object below every other object.
func (g *Graph) SendToBack(id string) error {
	o, ok := g.objects[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	updated := o.Clone()
	if g.order[0] != id {
		updated.ZOrder = g.objects[g.order[0]].ZOrder - 1
	}
	return g.replace(updated)
}

// replace swaps in an updated copy of an existing object and keeps the
// order slice sorted.
func (g *Graph) replace(updated *Object) error {
	if err := g.surface.Put(updated); err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	g.objects[updated.ID] = updated
	g.sortOrder()

	g.surface.RequestRedraw()
	return nil
}

func (g *Graph) sortOrder() {
	slices.SortStableFunc(g.order, func(a, b string) int {
		za, zb := g.objects[a].ZOrder, g.objects[b].ZOrder
		switch {
		case za < zb:
			return -1
		case za > zb:
			return 1
		}
		return 0
	})
}

// Snapshot serializes the scene through the surface.
func (g *Graph) Snapshot() ([]byte, error) {
	return g.surface.Snapshot()
}

// ResolveFunc loads the pixels of an image asset during Restore.
type ResolveFunc func(ctx context.Context, ref asset.Ref) (*asset.Decoded, error)

// MissingAssetError reports an image dropped on restore because its asset
// could not be resolved.
type MissingAssetError struct {
	ObjectID string
	Locator  string
	Err      error
}

func (e *MissingAssetError) Error() string {
	return fmt.Sprintf("missing asset %s for object %s: %v", e.Locator, e.ObjectID, e.Err)
}

func (e *MissingAssetError) Unwrap() error {
	return e.Err
}

// Restore replaces the whole scene with the content of a snapshot. Images
// whose asset cannot be resolved are skipped and reported as
// *MissingAssetError values joined into the returned error; everything else
// loads. If the snapshot itself cannot be parsed, or ctx is cancelled, the
// current scene is left intact.
func (g *Graph) Restore(ctx context.Context, blob []byte, resolve ResolveFunc) error {
	snap, err := g.surface.ParseSnapshot(blob)
	if err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}

	objects := make(map[string]*Object, len(snap.Objects))
	order := make([]string, 0, len(snap.Objects))
	var nextZ int64
	var missing []error

	for _, o := range snap.Objects {
		if err := ctx.Err(); err != nil {
			return err
		}
		if o == nil || o.ID == "" || objects[o.ID] != nil {
			return fmt.Errorf("parse snapshot: %w", ErrInvalidObject)
		}
		if o.Kind == KindImage && o.Image != nil {
			src, err := resolve(ctx, o.Image.Asset)
			if err != nil {
				missing = append(missing, &MissingAssetError{ObjectID: o.ID, Locator: o.Image.Asset.Path, Err: err})
				continue
			}
			o.Image.Source = src
		}
		if err := o.Validate(); err != nil {
			return fmt.Errorf("restore %s: %w", o.ID, err)
		}
		objects[o.ID] = o
		order = append(order, o.ID)
		nextZ = max(nextZ, o.ZOrder+1)
	}

	background := snap.Background
	if background == "" {
		background = DefaultBackground
	}

	g.objects = objects
	g.order = order
	g.nextZ = nextZ
	g.selected = ""
	g.background = background
	g.generation++
	g.sortOrder()

	g.surface.Clear(background)
	putErr := g.repaint()
	g.surface.RequestRedraw()

	return errors.Join(append(missing, putErr)...)
}
