package filter

import (
	"errors"
	"math"
	"testing"
)

func TestSetAppendsThenReplaces(t *testing.T) {
	var s Stack
	if err := s.Set(Brightness, 0.5); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(Blur, 0.2); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(Brightness, -0.25); err != nil {
		t.Fatalf("Set: %v", err)
	}

	want := Stack{{Kind: Brightness, Value: -0.25}, {Kind: Blur, Value: 0.2}}
	if !s.Equal(want) {
		t.Errorf("stack = %+v, want %+v", s, want)
	}
}

func TestSetToggleHasNoDuplicates(t *testing.T) {
	var s Stack
	s.Set(Sepia, 1)
	s.Set(Sepia, 7)
	if len(s) != 1 {
		t.Fatalf("len = %d, want 1", len(s))
	}
	if s[0].Value != 0 {
		t.Errorf("toggle stored value %v", s[0].Value)
	}
}

func TestSetRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		kind  Kind
		value float64
	}{
		{Brightness, 1.01},
		{Contrast, -2},
		{Saturation, math.NaN()},
		{HueRotation, math.Pi + 0.1},
		{Blur, -0.1},
		{Blur, 1.5},
	}

	for _, tt := range tests {
		var s Stack
		err := s.Set(tt.kind, tt.value)
		if !errors.Is(err, ErrInvalidParam) {
			t.Errorf("Set(%s, %v) err = %v, want ErrInvalidParam", tt.kind, tt.value, err)
		}
		if len(s) != 0 {
			t.Errorf("Set(%s, %v) modified stack", tt.kind, tt.value)
		}
	}

	var s Stack
	if err := s.Set("posterize", 0); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("unknown kind err = %v", err)
	}
}

func TestClearAndReset(t *testing.T) {
	s := Stack{{Kind: Brightness, Value: 0.1}, {Kind: Grayscale}, {Kind: Invert}}
	s.Clear(Grayscale)
	if s.Has(Grayscale) || len(s) != 2 {
		t.Errorf("after Clear: %+v", s)
	}
	s.Clear(Sepia)
	if len(s) != 2 {
		t.Errorf("clearing absent kind changed stack: %+v", s)
	}
	s.Reset()
	if len(s) != 0 {
		t.Errorf("after Reset: %+v", s)
	}
}

func TestApplyPresetReplacesEverything(t *testing.T) {
	s := Stack{{Kind: Invert}, {Kind: HueRotation, Value: 1}}
	vintage, ok := LookupPreset("vintage")
	if !ok {
		t.Fatal("vintage preset missing")
	}
	if err := s.ApplyPreset(vintage); err != nil {
		t.Fatalf("ApplyPreset: %v", err)
	}
	if s.Has(Invert) || s.Has(HueRotation) {
		t.Errorf("old entries survived: %+v", s)
	}
	if !s.Has(Sepia) {
		t.Error("vintage should enable sepia")
	}
	if e, _ := s.Get(Saturation); e.Value >= 0 {
		t.Errorf("vintage should desaturate, got %v", e.Value)
	}
}

func TestApplyPresetIsAtomic(t *testing.T) {
	s := Stack{{Kind: Invert}}
	bad := Preset{ID: "bad", Name: "Bad", Entries: []Entry{{Kind: Brightness, Value: 0.1}, {Kind: Blur, Value: 9}}}
	if err := s.ApplyPreset(bad); !errors.Is(err, ErrInvalidParam) {
		t.Fatalf("err = %v", err)
	}
	if !s.Equal(Stack{{Kind: Invert}}) {
		t.Errorf("stack changed on failed preset: %+v", s)
	}
}

func TestPresetsAreValid(t *testing.T) {
	ps := Presets()
	if len(ps) != 4 {
		t.Fatalf("got %d presets, want 4", len(ps))
	}
	for _, p := range ps {
		var s Stack
		if err := s.ApplyPreset(p); err != nil {
			t.Errorf("preset %s: %v", p.ID, err)
		}
		if err := s.Validate(); err != nil {
			t.Errorf("preset %s stack invalid: %v", p.ID, err)
		}
	}
}

func TestValidateRejectsDuplicates(t *testing.T) {
	s := Stack{{Kind: Blur, Value: 0.1}, {Kind: Blur, Value: 0.2}}
	if err := s.Validate(); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("err = %v", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := Stack{{Kind: Brightness, Value: 0.1}}
	c := s.Clone()
	c.Set(Brightness, 0.9)
	if s[0].Value != 0.1 {
		t.Error("clone shares backing array")
	}
}
