package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/creativecanvas/creativecanvas/backend-go/internal/asset"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/collage"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/document"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/geometry"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/scene"
)

var ErrNotCollage = errors.New("no collage template selected")

// CollageStatus summarizes the collage being authored.
type CollageStatus struct {
	TemplateID string          `json:"templateId"`
	Filled     int             `json:"filled"`
	Total      int             `json:"total"`
	Binding    collage.Binding `json:"binding"`
}

// SelectTemplate starts a new collage from a template. The canvas is
// cleared; loads still in flight for the previous scene are discarded.
func (s *Session) SelectTemplate(id string) error {
	tpl, err := collage.Lookup(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	s.mode = document.ModeCollage
	s.template = &tpl
	s.binding = collage.Binding{}
	return nil
}

// BindSlot places an asset in a slot. The slot's previous object, if any,
// is replaced once the new asset has loaded. Completion order does not
// matter: a load only lands if its asset is still the one bound to the slot.
// If the load fails the slot goes back to what it held before.
func (s *Session) BindSlot(ctx context.Context, slotID, locator string) (*Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.template == nil {
		return nil, ErrNotCollage
	}
	slot, ok := s.template.Slot(slotID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", collage.ErrUnknownSlot, slotID)
	}

	prev, hadPrev := s.binding[slotID]
	s.binding = s.binding.Bind(slotID, asset.Ref{Path: locator})
	tpl := s.template

	restore := func() {
		if s.template != tpl || s.binding[slotID].Path != locator {
			return
		}
		if hadPrev {
			s.binding = s.binding.Bind(slotID, prev)
		} else {
			s.binding = s.binding.Unbind(slotID)
		}
	}

	return s.load(ctx, locator, func(d *asset.Decoded) (string, error) {
		if s.template != tpl || s.binding[slotID].Path != locator {
			s.logger.Debug("discarding superseded slot load", "slot", slotID, "locator", locator)
			return "", ErrStaleLoad
		}
		o, err := collage.NewSlotObject(slot, d)
		if err != nil {
			return "", err
		}
		s.graph.RemoveWhere(func(o *scene.Object) bool { return o.SlotID == slotID })
		added, err := s.graph.Add(o)
		if err != nil {
			return "", err
		}
		s.binding = s.binding.Bind(slotID, added.Image.Asset)
		return added.ID, nil
	}, restore), nil
}

// ResetLayout puts every loaded slot image back at its template geometry,
// undoing moves, scales and rotations. Slots still loading are skipped.
func (s *Session) ResetLayout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.template == nil {
		return ErrNotCollage
	}
	loaded := collage.Binding{}
	for id, ref := range s.binding {
		if ref.Valid() {
			loaded[id] = ref
		}
	}
	placed, err := collage.Materialize(*s.template, loaded)
	if err != nil {
		return err
	}

	bySlot := make(map[string]string)
	for _, o := range s.graph.Objects() {
		if o.SlotID != "" {
			bySlot[o.SlotID] = o.ID
		}
	}
	for _, p := range placed {
		id, ok := bySlot[p.SlotID]
		if !ok {
			continue
		}
		frame := p.Frame
		if err := s.graph.ApplyTransform(id, func(*geometry.Frame, geometry.Size) *geometry.Frame { return &frame }); err != nil {
			return err
		}
	}
	return nil
}

// UnbindSlot empties a slot and removes its object.
func (s *Session) UnbindSlot(slotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.template == nil {
		return ErrNotCollage
	}
	if _, ok := s.template.Slot(slotID); !ok {
		return fmt.Errorf("%w: %s", collage.ErrUnknownSlot, slotID)
	}
	s.binding = s.binding.Unbind(slotID)
	s.graph.RemoveWhere(func(o *scene.Object) bool { return o.SlotID == slotID })
	return nil
}

// Collage reports the template and slot fill state.
func (s *Session) Collage() (CollageStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.template == nil {
		return CollageStatus{}, ErrNotCollage
	}
	return CollageStatus{
		TemplateID: s.template.ID,
		Filled:     collage.Filled(*s.template, s.binding),
		Total:      len(s.template.Slots),
		Binding:    s.binding,
	}, nil
}

// SlotObjects maps every filled slot to the id of the object occupying it.
func (s *Session) SlotObjects() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string)
	for _, o := range s.graph.Objects() {
		if o.SlotID != "" {
			out[o.SlotID] = o.ID
		}
	}
	return out
}
