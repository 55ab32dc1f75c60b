package document

import (
	"encoding/json"
	"errors"

	"github.com/creativecanvas/creativecanvas/backend-go/internal/asset"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/collage"
)

// Mode records which authoring path produced a composition.
type Mode string

const (
	ModeSingle  Mode = "single"
	ModeCollage Mode = "collage"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeSingle || m == ModeCollage
}

var (
	ErrInvalidMode     = errors.New("invalid document mode")
	ErrInvalidDocument = errors.New("invalid document")
)

// Document is the persisted form of a composition.
type Document struct {
	Mode       Mode            `json:"mode"`
	CanvasData json.RawMessage `json:"canvasData"`
	Images     []asset.Ref     `json:"images"`
	Timestamp  string          `json:"timestamp"`
	Collage    *CollageState   `json:"collage,omitempty"`
}

// CollageState is the template selection a collage was authored from. It is
// informational: the flattened scene in CanvasData stays authoritative.
type CollageState struct {
	TemplateID string          `json:"templateId"`
	Binding    collage.Binding `json:"binding"`
}
