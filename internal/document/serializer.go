package document

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/creativecanvas/creativecanvas/backend-go/internal/asset"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/collage"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/scene"
)

// Serializer converts between a scene graph and its Document. The zero value
// stamps documents with time.Now.
type Serializer struct {
	Clock func() time.Time
}

func (s Serializer) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// NewEmpty returns a document for a blank single-image composition.
func (s Serializer) NewEmpty() *Document {
	return &Document{
		Mode:      ModeSingle,
		Images:    []asset.Ref{},
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
	}
}

// Save snapshots g. When images is nil the asset list is derived from the
// image objects on the canvas.
func (s Serializer) Save(g *scene.Graph, mode Mode, images []asset.Ref) (*Document, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	data, err := g.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot scene: %w", err)
	}
	if images == nil {
		images = Images(g)
	}
	return &Document{
		Mode:       mode,
		CanvasData: data,
		Images:     images,
		Timestamp:  s.now().UTC().Format(time.RFC3339Nano),
	}, nil
}

// WithCollage records the template selection on a collage document.
func (d *Document) WithCollage(templateID string, b collage.Binding) *Document {
	d.Collage = &CollageState{TemplateID: templateID, Binding: b}
	return d
}

// Images lists the distinct assets referenced by image objects, back to front.
func Images(g *scene.Graph) []asset.Ref {
	refs := []asset.Ref{}
	seen := make(map[string]bool)
	for _, o := range g.Objects() {
		if o.Kind != scene.KindImage || seen[o.Image.Asset.Path] {
			continue
		}
		seen[o.Image.Asset.Path] = true
		refs = append(refs, o.Image.Asset)
	}
	return refs
}

// LoadReport lists the images that could not be restored. The rest of the
// scene loaded.
type LoadReport struct {
	Missing []*scene.MissingAssetError
}

func (r *LoadReport) Error() string {
	parts := make([]string, len(r.Missing))
	for i, m := range r.Missing {
		parts[i] = m.Error()
	}
	return fmt.Sprintf("%d image(s) not restored: %s", len(r.Missing), strings.Join(parts, "; "))
}

func (r *LoadReport) Unwrap() []error {
	errs := make([]error, len(r.Missing))
	for i, m := range r.Missing {
		errs[i] = m
	}
	return errs
}

// Load restores doc into g. Missing assets are reported through a
// *LoadReport while everything else loads; any other error leaves g as it
// was. A collage comes back as its flattened objects.
func (s Serializer) Load(ctx context.Context, doc *Document, g *scene.Graph, resolve scene.ResolveFunc) (Mode, error) {
	if err := Validate(doc); err != nil {
		return "", err
	}
	if len(doc.CanvasData) == 0 || bytes.Equal(doc.CanvasData, []byte("null")) {
		g.Clear()
		return doc.Mode, nil
	}

	err := g.Restore(ctx, doc.CanvasData, resolve)
	if err == nil {
		return doc.Mode, nil
	}

	var missing *scene.MissingAssetError
	if !errors.As(err, &missing) && !errors.Is(err, scene.ErrSurface) {
		return "", fmt.Errorf("restore scene: %w", err)
	}

	// The scene is in; sort out what did not make it.
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}
	report := &LoadReport{}
	for _, e := range errs {
		switch {
		case errors.As(e, &missing):
			report.Missing = append(report.Missing, missing)
		case errors.Is(e, scene.ErrSurface):
			slog.Warn("restored object not drawn", "error", e)
		}
	}
	if len(report.Missing) == 0 {
		return doc.Mode, nil
	}
	return doc.Mode, report
}

// Validate checks a decoded document.
func Validate(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: nil", ErrInvalidDocument)
	}
	if !doc.Mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, doc.Mode)
	}
	if doc.Timestamp != "" {
		if _, err := time.Parse(time.RFC3339Nano, doc.Timestamp); err != nil {
			return fmt.Errorf("%w: timestamp: %v", ErrInvalidDocument, err)
		}
	}
	if len(doc.CanvasData) > 0 && !json.Valid(doc.CanvasData) {
		return fmt.Errorf("%w: canvasData is not JSON", ErrInvalidDocument)
	}
	if doc.Collage != nil {
		if _, err := collage.Lookup(doc.Collage.TemplateID); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
	}
	return nil
}

// Marshal encodes a document after validating it.
func Marshal(doc *Document) ([]byte, error) {
	if err := Validate(doc); err != nil {
		return nil, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return data, nil
}

// Unmarshal decodes and validates a document.
func Unmarshal(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := Validate(&doc); err != nil {
		return nil, err
	}
	if doc.Images == nil {
		doc.Images = []asset.Ref{}
	}
	return &doc, nil
}
