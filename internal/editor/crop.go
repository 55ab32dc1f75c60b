package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/creativecanvas/creativecanvas/backend-go/internal/asset"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/crop"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/geometry"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/scene"
)

var ErrNoCrop = errors.New("no crop in progress")

type cropState struct {
	tool   crop.Tool
	source *asset.Decoded
}

// BeginCrop starts cropping the selected image as displayed at the given
// size, with the initial centered selection for aspect.
func (s *Session) BeginCrop(displayed geometry.Size, aspect float64) (crop.Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.graph.Selected()
	if !ok {
		return crop.Selection{}, ErrNoSelection
	}
	if o.Kind != scene.KindImage || o.Image.Source == nil {
		return crop.Selection{}, fmt.Errorf("%w: crop on %s", scene.ErrInvalidTarget, o.Kind)
	}

	st := &cropState{source: o.Image.Source}
	if err := st.tool.Begin(displayed, aspect); err != nil {
		return crop.Selection{}, err
	}
	s.crop = st
	return st.tool.Selection(), nil
}

// AdjustCrop moves or resizes the crop selection.
func (s *Session) AdjustCrop(sel crop.Selection) (crop.Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.crop == nil {
		return crop.Selection{}, ErrNoCrop
	}
	return s.crop.tool.Adjust(sel), nil
}

// SetCropAspect switches the aspect preset and recenters the selection.
func (s *Session) SetCropAspect(aspect float64) (crop.Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.crop == nil {
		return crop.Selection{}, ErrNoCrop
	}
	s.crop.tool.SetAspect(aspect)
	return s.crop.tool.Selection(), nil
}

// CompleteCrop finalizes the selection so it can be applied.
func (s *Session) CompleteCrop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.crop == nil {
		return ErrNoCrop
	}
	_, err := s.crop.tool.Complete()
	return err
}

// CancelCrop abandons the crop.
func (s *Session) CancelCrop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crop = nil
}

// ApplyCrop extracts the completed selection, uploads it as a new asset and
// opens it as the current image. The source asset is left untouched.
func (s *Session) ApplyCrop(ctx context.Context) (asset.Ref, *Pending, error) {
	s.mu.Lock()
	st := s.crop
	if st == nil {
		s.mu.Unlock()
		return asset.Ref{}, nil, ErrNoCrop
	}
	completed, ok := st.tool.Completed()
	displayed := st.tool.Displayed()
	s.mu.Unlock()

	if !ok {
		return asset.Ref{}, nil, fmt.Errorf("%w: selection was never completed", crop.ErrInvalidSelection)
	}

	ref, err := crop.Apply(ctx, s.uploader, st.source, displayed, completed)
	if err != nil {
		return asset.Ref{}, nil, err
	}

	s.mu.Lock()
	if s.crop == st {
		s.crop = nil
	}
	s.mu.Unlock()

	return ref, s.OpenImage(ctx, ref.Path), nil
}
