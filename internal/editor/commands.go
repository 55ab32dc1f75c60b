package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/creativecanvas/creativecanvas/backend-go/internal/crop"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/filter"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/geometry"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/scene"
)

var ErrUnknownCommand = errors.New("unknown command")

// Command is a user action addressed to a session by name. Only the fields
// the op needs are read.
type Command struct {
	Op string `json:"op"`

	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name,omitempty"`
	Locator string          `json:"locator,omitempty"`
	Slot    string          `json:"slot,omitempty"`
	Kind    filter.Kind     `json:"kind,omitempty"`
	Value   float64         `json:"value,omitempty"`
	X       float64         `json:"x,omitempty"`
	Y       float64         `json:"y,omitempty"`
	Enabled bool            `json:"enabled,omitempty"`
	Color   string          `json:"color,omitempty"`
	Points  []scene.Point   `json:"points,omitempty"`
	Width   float64         `json:"width,omitempty"`
	Aspect  float64         `json:"aspect,omitempty"`
	Display geometry.Size   `json:"display"`
	Crop    *crop.Selection `json:"crop,omitempty"`
}

// Execute runs one command. Loads started by the command are not waited
// for; the returned value is a small JSON-friendly result or nil.
func (s *Session) Execute(ctx context.Context, cmd Command) (any, error) {
	switch cmd.Op {
	case "open":
		s.OpenImage(ctx, cmd.Locator)
		return nil, nil
	case "add":
		s.AddImage(ctx, cmd.Locator)
		return nil, nil
	case "draw":
		id, err := s.AddPath(cmd.Points, cmd.Color, cmd.Width)
		return map[string]string{"id": id}, err
	case "clear":
		s.Clear()
		return nil, nil
	case "background":
		return nil, s.SetBackground(cmd.Color)

	case "select":
		return nil, s.Select(cmd.ID)
	case "deselect":
		s.Deselect()
		return nil, nil
	case "hitTest":
		return map[string]string{"id": s.SelectAt(cmd.X, cmd.Y)}, nil
	case "delete":
		return nil, s.Delete()
	case "bringToFront":
		return nil, s.BringToFront()
	case "sendToBack":
		return nil, s.SendToBack()

	case "transform":
		return nil, s.Transform(cmd.Name)
	case "move":
		return nil, s.Move(cmd.X, cmd.Y)
	case "scale":
		return nil, s.Scale(cmd.Value)

	case "setFilter":
		return nil, s.SetFilter(cmd.Kind, cmd.Value)
	case "clearFilter":
		return nil, s.ClearFilter(cmd.Kind)
	case "resetFilters":
		return nil, s.ResetFilters()
	case "preset":
		return nil, s.ApplyPreset(cmd.ID)

	case "toggleGrid":
		on, err := s.ToggleGrid()
		return map[string]bool{"grid": on}, err
	case "snap":
		s.SetSnapToGrid(cmd.Enabled)
		return nil, nil

	case "template":
		return nil, s.SelectTemplate(cmd.ID)
	case "bind":
		_, err := s.BindSlot(ctx, cmd.Slot, cmd.Locator)
		return nil, err
	case "unbind":
		return nil, s.UnbindSlot(cmd.Slot)
	case "relayout":
		return nil, s.ResetLayout()
	case "collage":
		return s.Collage()

	case "cropBegin":
		return s.BeginCrop(cmd.Display, cmd.Aspect)
	case "cropAdjust":
		if cmd.Crop == nil {
			return nil, fmt.Errorf("%w: missing selection", crop.ErrInvalidSelection)
		}
		return s.AdjustCrop(*cmd.Crop)
	case "cropAspect":
		return s.SetCropAspect(cmd.Aspect)
	case "cropComplete":
		return nil, s.CompleteCrop()
	case "cropCancel":
		s.CancelCrop()
		return nil, nil
	case "cropApply":
		ref, _, err := s.ApplyCrop(ctx)
		return ref, err

	case "save":
		return s.Save()
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Op)
}
