// Package collage turns a fixed-layout template plus a slot to asset binding
// into scene objects.
package collage

import (
	_ "embed"
	"errors"
	"fmt"
	"maps"

	"gopkg.in/yaml.v3"

	"github.com/creativecanvas/creativecanvas/backend-go/internal/asset"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/geometry"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/scene"
)

var (
	ErrUnknownTemplate = errors.New("unknown collage template")
	ErrUnknownSlot     = errors.New("unknown collage slot")
)

//go:embed templates.yaml
var catalogYAML []byte

// Slot is one rectangle of a template in reference canvas coordinates.
type Slot struct {
	ID     string  `yaml:"id" json:"id"`
	X      float64 `yaml:"x" json:"x"`
	Y      float64 `yaml:"y" json:"y"`
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

// Rect returns the slot rectangle.
func (s Slot) Rect() geometry.Rect {
	return geometry.Rect{X: s.X, Y: s.Y, Width: s.Width, Height: s.Height}
}

// Template is an immutable collage layout.
type Template struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Slots []Slot `yaml:"slots" json:"slots"`
}

// Slot returns the slot with id.
func (t Template) Slot(id string) (Slot, bool) {
	for _, s := range t.Slots {
		if s.ID == id {
			return s, true
		}
	}
	return Slot{}, false
}

var catalog = mustParseCatalog(catalogYAML)

func mustParseCatalog(data []byte) []Template {
	var templates []Template
	if err := yaml.Unmarshal(data, &templates); err != nil {
		panic(fmt.Sprintf("collage: parse catalog: %v", err))
	}
	for _, t := range templates {
		if t.ID == "" || len(t.Slots) == 0 {
			panic(fmt.Sprintf("collage: template %q has no slots", t.ID))
		}
		for _, s := range t.Slots {
			if s.Width <= 0 || s.Height <= 0 {
				panic(fmt.Sprintf("collage: template %s slot %s has empty rect", t.ID, s.ID))
			}
		}
	}
	return templates
}

// Templates returns the catalog in its fixed order.
func Templates() []Template {
	out := make([]Template, len(catalog))
	for i, t := range catalog {
		t.Slots = append([]Slot(nil), t.Slots...)
		out[i] = t
	}
	return out
}

// Lookup finds a template by id.
func Lookup(id string) (Template, error) {
	for _, t := range Templates() {
		if t.ID == id {
			return t, nil
		}
	}
	return Template{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, id)
}

// Binding maps slot ids to the asset placed in them. Partial bindings are
// valid. Bind and Unbind never modify the receiver.
type Binding map[string]asset.Ref

// Bind returns a copy of b with ref placed in slotID.
func (b Binding) Bind(slotID string, ref asset.Ref) Binding {
	out := maps.Clone(b)
	if out == nil {
		out = make(Binding, 1)
	}
	out[slotID] = ref
	return out
}

// Unbind returns a copy of b without slotID.
func (b Binding) Unbind(slotID string) Binding {
	out := maps.Clone(b)
	delete(out, slotID)
	return out
}

// Filled counts the template slots that have an asset bound.
func Filled(t Template, b Binding) int {
	n := 0
	for _, s := range t.Slots {
		if _, ok := b[s.ID]; ok {
			n++
		}
	}
	return n
}

// Materialize builds one image object per bound slot, in slot order. Each
// object is scaled uniformly by min(slot/natural) and centered in its slot.
// Unbound slots produce nothing. The objects carry the asset's natural size
// but no pixels; the caller resolves those before adding them to a graph.
func Materialize(t Template, b Binding) ([]*scene.Object, error) {
	var objects []*scene.Object
	for _, s := range t.Slots {
		ref, ok := b[s.ID]
		if !ok {
			continue
		}
		if !ref.Valid() {
			return nil, fmt.Errorf("materialize slot %s: %w: %q has no natural size", s.ID, scene.ErrInvalidObject, ref.Path)
		}
		natural := geometry.Size{Width: float64(ref.Width), Height: float64(ref.Height)}
		objects = append(objects, &scene.Object{
			Kind:       scene.KindImage,
			Frame:      MaterializeSlot(s, natural),
			Selectable: true,
			SlotID:     s.ID,
			Image:      &scene.ImageData{Asset: ref},
		})
	}
	return objects, nil
}

// MaterializeSlot computes the frame of an image with the given natural size
// placed in slot.
func MaterializeSlot(s Slot, natural geometry.Size) geometry.Frame {
	return geometry.FitInto(natural, s.Rect())
}

// NewSlotObject builds the image object for one slot from decoded pixels.
func NewSlotObject(s Slot, src *asset.Decoded) (*scene.Object, error) {
	if src == nil || src.Image == nil {
		return nil, fmt.Errorf("%w: slot %s without pixels", scene.ErrInvalidObject, s.ID)
	}
	natural := geometry.Size{Width: float64(src.Width()), Height: float64(src.Height())}
	o, err := scene.NewImage(src, MaterializeSlot(s, natural))
	if err != nil {
		return nil, err
	}
	o.SlotID = s.ID
	return o, nil
}
