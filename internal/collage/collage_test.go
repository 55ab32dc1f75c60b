package collage

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/creativecanvas/creativecanvas/backend-go/internal/asset"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/geometry"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/scene"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func ref(path string, w, h int) asset.Ref {
	return asset.Ref{Path: path, Width: w, Height: h}
}

func TestCatalog(t *testing.T) {
	want := map[string]int{"template2": 2, "template3": 3, "template4": 4, "template6": 6}
	templates := Templates()
	if len(templates) != len(want) {
		t.Fatalf("got %d templates, want %d", len(templates), len(want))
	}
	for _, tpl := range templates {
		if n, ok := want[tpl.ID]; !ok || len(tpl.Slots) != n {
			t.Errorf("template %s has %d slots", tpl.ID, len(tpl.Slots))
		}
		// Every layout tiles the reference canvas exactly.
		var area float64
		for _, s := range tpl.Slots {
			area += s.Width * s.Height
		}
		if tpl.ID != "template6" && area != 800*600 {
			t.Errorf("template %s covers %v px", tpl.ID, area)
		}
	}

	if _, err := Lookup("template9"); !errors.Is(err, ErrUnknownTemplate) {
		t.Errorf("expected ErrUnknownTemplate, got %v", err)
	}
}

func TestTemplatesReturnsCopies(t *testing.T) {
	tpl := Templates()[0]
	tpl.Slots[0].Width = 1
	again, _ := Lookup(tpl.ID)
	if again.Slots[0].Width == 1 {
		t.Error("catalog mutated through returned template")
	}
}

func TestBindIsPure(t *testing.T) {
	var empty Binding
	b := empty.Bind("slot1", ref("/a.png", 10, 10))
	if len(empty) != 0 || len(b) != 1 {
		t.Fatal("Bind should return a new binding")
	}
	c := b.Unbind("slot1")
	if len(b) != 1 || len(c) != 0 {
		t.Fatal("Unbind should return a new binding")
	}
}

func TestMaterializeFullBinding(t *testing.T) {
	tpl, _ := Lookup("template4")
	var b Binding
	for i, s := range tpl.Slots {
		b = b.Bind(s.ID, ref("/img"+s.ID+".png", 1000+i*100, 500))
	}

	objects, err := Materialize(tpl, b)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if len(objects) != 4 {
		t.Fatalf("got %d objects, want 4", len(objects))
	}
	for i, o := range objects {
		slot := tpl.Slots[i]
		if o.SlotID != slot.ID {
			t.Errorf("object %d slot = %s, want %s", i, o.SlotID, slot.ID)
		}
		// Centered in the slot and no larger than it.
		cx, cy := o.Frame.Box().Center()
		sx, sy := slot.Rect().Center()
		if !approx(cx, sx) || !approx(cy, sy) {
			t.Errorf("object %d center (%v,%v), want (%v,%v)", i, cx, cy, sx, sy)
		}
		if o.Frame.ScaledWidth() > slot.Width+1e-9 || o.Frame.ScaledHeight() > slot.Height+1e-9 {
			t.Errorf("object %d overflows its slot", i)
		}
		if o.Frame.ScaleX != o.Frame.ScaleY {
			t.Errorf("object %d scaled non-uniformly", i)
		}
	}
}

func TestMaterializePartialBinding(t *testing.T) {
	tpl, _ := Lookup("template4")
	b := Binding{}.
		Bind("slot1", ref("/a.png", 400, 300)).
		Bind("slot3", ref("/b.png", 800, 300))

	objects, err := Materialize(tpl, b)
	if err != nil {
		t.Fatal(err)
	}
	if len(objects) != 2 || Filled(tpl, b) != 2 {
		t.Fatalf("got %d objects, want 2", len(objects))
	}

	b = b.Unbind("slot1")
	objects, _ = Materialize(tpl, b)
	if len(objects) != 1 || objects[0].SlotID != "slot3" {
		t.Fatalf("after unbind got %v", objects)
	}
	// 800x300 into 400x300: scale 0.5, 400x150 box centered vertically.
	f := objects[0].Frame
	if !approx(f.ScaleX, 0.5) || !approx(f.X, 0) || !approx(f.Y, 375) {
		t.Errorf("unexpected frame %+v", f)
	}
}

func TestMaterializeIdempotentGeometry(t *testing.T) {
	tpl, _ := Lookup("template3")
	b := Binding{}.Bind("slot3", ref("/a.png", 640, 480))

	first, _ := Materialize(tpl, b)
	second, _ := Materialize(tpl, b)
	if first[0].Frame != second[0].Frame {
		t.Errorf("frames differ: %+v vs %+v", first[0].Frame, second[0].Frame)
	}
}

func TestMaterializeRejectsUnsizedRef(t *testing.T) {
	tpl, _ := Lookup("template2")
	b := Binding{}.Bind("slot1", asset.Ref{Path: "/a.png"})
	if _, err := Materialize(tpl, b); !errors.Is(err, scene.ErrInvalidObject) {
		t.Errorf("expected ErrInvalidObject, got %v", err)
	}
}

func TestNewSlotObject(t *testing.T) {
	tpl, _ := Lookup("template2")
	slot := tpl.Slots[1]
	src := &asset.Decoded{Ref: ref("/a.png", 200, 200), Image: image.NewRGBA(image.Rect(0, 0, 200, 200))}

	o, err := NewSlotObject(slot, src)
	if err != nil {
		t.Fatal(err)
	}
	want := geometry.FitInto(geometry.Size{Width: 200, Height: 200}, slot.Rect())
	if o.Frame != want || o.SlotID != slot.ID {
		t.Errorf("got %+v, want frame %+v", o, want)
	}
}
