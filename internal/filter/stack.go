package filter

import (
	"fmt"
	"slices"
)

// Stack is an ordered list of filters; order is application order and a
// kind appears at most once.
type Stack []Entry

// Clone returns an independent copy.
func (s Stack) Clone() Stack {
	if s == nil {
		return nil
	}
	return slices.Clone(s)
}

// Index returns the position of kind in the stack, or -1.
func (s Stack) Index(kind Kind) int {
	return slices.IndexFunc(s, func(e Entry) bool { return e.Kind == kind })
}

// Get returns the entry for kind.
func (s Stack) Get(kind Kind) (Entry, bool) {
	if i := s.Index(kind); i >= 0 {
		return s[i], true
	}
	return Entry{}, false
}

// Has reports whether kind is present.
func (s Stack) Has(kind Kind) bool {
	return s.Index(kind) >= 0
}

// Set replaces the entry of the same kind in place, or appends it.
// Toggle kinds store no value.
func (s *Stack) Set(kind Kind, value float64) error {
	if kind.IsToggle() {
		value = 0
	}
	e := Entry{Kind: kind, Value: value}
	if err := e.Validate(); err != nil {
		return err
	}
	if i := s.Index(kind); i >= 0 {
		(*s)[i] = e
		return nil
	}
	*s = append(*s, e)
	return nil
}

// Clear removes the entry for kind. Clearing an absent kind is not an error.
func (s *Stack) Clear(kind Kind) {
	if i := s.Index(kind); i >= 0 {
		*s = slices.Delete(*s, i, i+1)
	}
}

// Reset empties the stack.
func (s *Stack) Reset() {
	*s = nil
}

// ApplyPreset replaces the whole stack with the preset's entries in one
// step. On a validation error the stack is left as it was.
func (s *Stack) ApplyPreset(p Preset) error {
	next := make(Stack, 0, len(p.Entries))
	for _, e := range p.Entries {
		if err := next.Set(e.Kind, e.Value); err != nil {
			return fmt.Errorf("preset %s: %w", p.Name, err)
		}
	}
	*s = next
	return nil
}

// Validate checks every entry and rejects duplicated kinds.
func (s Stack) Validate() error {
	seen := make(map[Kind]bool, len(s))
	for _, e := range s {
		if err := e.Validate(); err != nil {
			return err
		}
		if seen[e.Kind] {
			return fmt.Errorf("%w: duplicate %s", ErrInvalidParam, e.Kind)
		}
		seen[e.Kind] = true
	}
	return nil
}

// Equal reports whether two stacks hold the same entries in the same order.
func (s Stack) Equal(other Stack) bool {
	return slices.Equal(s, other)
}
