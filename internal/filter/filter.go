// Package filter holds the declarative, ordered filter stack owned by an
// image object. It only describes filters; pixels are produced by the
// rendering surface, which always re-runs the whole stack from the original
// decoded asset.
package filter

import (
	"errors"
	"fmt"
	"math"
)

// Kind names a filter operation.
type Kind string

const (
	Brightness  Kind = "brightness"
	Contrast    Kind = "contrast"
	Saturation  Kind = "saturation"
	HueRotation Kind = "hueRotation"
	Blur        Kind = "blur"
	Grayscale   Kind = "grayscale"
	Sepia       Kind = "sepia"
	Invert      Kind = "invert"
)

var (
	ErrUnknownKind  = errors.New("unknown filter kind")
	ErrInvalidParam = errors.New("filter parameter out of range")
)

type valueRange struct {
	min, max float64
}

var numericRanges = map[Kind]valueRange{
	Brightness:  {-1, 1},
	Contrast:    {-1, 1},
	Saturation:  {-1, 1},
	HueRotation: {-math.Pi, math.Pi},
	Blur:        {0, 1},
}

var toggles = map[Kind]bool{
	Grayscale: true,
	Sepia:     true,
	Invert:    true,
}

// Kinds lists every filter in the order the editor presents them.
func Kinds() []Kind {
	return []Kind{Brightness, Contrast, Saturation, HueRotation, Blur, Grayscale, Sepia, Invert}
}

// IsToggle reports whether k is a present-or-absent filter without a value.
func (k Kind) IsToggle() bool {
	return toggles[k]
}

// Valid reports whether k is a known filter kind.
func (k Kind) Valid() bool {
	_, numeric := numericRanges[k]
	return numeric || toggles[k]
}

// Range returns the accepted value range of a numeric filter.
func (k Kind) Range() (lo, hi float64, ok bool) {
	r, ok := numericRanges[k]
	return r.min, r.max, ok
}

// Entry is one filter in a stack. Toggle filters carry no meaningful value.
type Entry struct {
	Kind  Kind    `json:"kind"`
	Value float64 `json:"value,omitempty"`
}

// Validate checks the kind and the value range.
func (e Entry) Validate() error {
	if e.Kind.IsToggle() {
		return nil
	}
	r, ok := numericRanges[e.Kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	if math.IsNaN(e.Value) || e.Value < r.min || e.Value > r.max {
		return fmt.Errorf("%w: %s=%v not in [%v, %v]", ErrInvalidParam, e.Kind, e.Value, r.min, r.max)
	}
	return nil
}
