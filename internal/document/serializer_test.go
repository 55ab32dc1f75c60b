package document

import (
	"bytes"
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/creativecanvas/creativecanvas/backend-go/internal/asset"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/collage"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/filter"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/geometry"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/render"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/scene"
)

var fixedClock = func() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

type library map[string]*asset.Decoded

func (l library) add(path string, w, h int) *asset.Decoded {
	d := &asset.Decoded{
		Ref:   asset.Ref{Path: path, Filename: path[1:], Size: int64(w * h), Width: w, Height: h, Format: "png"},
		Image: image.NewNRGBA(image.Rect(0, 0, w, h)),
	}
	l[path] = d
	return d
}

func (l library) resolve(ctx context.Context, ref asset.Ref) (*asset.Decoded, error) {
	d, ok := l[ref.Path]
	if !ok {
		return nil, asset.ErrNotFound
	}
	return d, nil
}

func newGraph() *scene.Graph {
	return scene.New(render.New(800, 600, scene.DefaultBackground))
}

func buildScene(t *testing.T, lib library) *scene.Graph {
	t.Helper()
	g := newGraph()
	for _, path := range []string{"/a.png", "/b.png"} {
		src := lib.add(path, 400, 300)
		o, err := scene.NewImage(src, geometry.Fit(geometry.Size{Width: 400, Height: 300}, g.Size()))
		if err != nil {
			t.Fatal(err)
		}
		added, err := g.Add(o)
		if err != nil {
			t.Fatal(err)
		}
		g.ApplyTransform(added.ID, geometry.RotateBy(90))
		g.UpdateFilters(added.ID, func(s *filter.Stack) error { return s.Set(filter.Saturation, -0.5) })
	}
	line, _ := scene.NewLine(scene.LineData{X1: 0, Y1: 50, X2: 800, Y2: 50, Stroke: "#e5e7eb", StrokeWidth: 1, Opacity: 0.5}, false)
	g.Add(line)
	return g
}

func TestRoundTrip(t *testing.T) {
	lib := library{}
	g := buildScene(t, lib)
	ser := Serializer{Clock: fixedClock}

	doc, err := ser.Save(g, ModeSingle, nil)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if doc.Timestamp != "2024-03-01T12:00:00Z" {
		t.Errorf("timestamp = %s", doc.Timestamp)
	}
	if len(doc.Images) != 2 {
		t.Errorf("images = %v, want 2 refs", doc.Images)
	}

	data, err := Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}

	g2 := newGraph()
	mode, err := ser.Load(context.Background(), decoded, g2, lib.resolve)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if mode != ModeSingle {
		t.Errorf("mode = %s", mode)
	}

	before, _ := g.Snapshot()
	after, _ := g2.Snapshot()
	if !bytes.Equal(before, after) {
		t.Errorf("snapshot changed across save/load:\n%s\n%s", before, after)
	}
}

func TestLoadReportsMissingAssets(t *testing.T) {
	lib := library{}
	g := buildScene(t, lib)
	ser := Serializer{Clock: fixedClock}
	doc, _ := ser.Save(g, ModeCollage, nil)

	delete(lib, "/b.png")
	g2 := newGraph()
	mode, err := ser.Load(context.Background(), doc, g2, lib.resolve)

	var report *LoadReport
	if !errors.As(err, &report) {
		t.Fatalf("expected *LoadReport, got %v", err)
	}
	if len(report.Missing) != 1 || report.Missing[0].Locator != "/b.png" {
		t.Errorf("unexpected report %+v", report.Missing)
	}
	if !errors.Is(err, asset.ErrNotFound) {
		t.Error("report should unwrap to the load cause")
	}
	if mode != ModeCollage {
		t.Errorf("mode = %s", mode)
	}
	// One image and the grid line still load.
	if g2.Len() != 2 {
		t.Errorf("Len = %d, want 2", g2.Len())
	}
}

func TestLoadEmptyDocumentClears(t *testing.T) {
	lib := library{}
	g := buildScene(t, lib)
	ser := Serializer{Clock: fixedClock}

	if _, err := ser.Load(context.Background(), ser.NewEmpty(), g, lib.resolve); err != nil {
		t.Fatal(err)
	}
	if g.Len() != 0 {
		t.Errorf("Len = %d, want 0", g.Len())
	}
}

func TestLoadBadSnapshotLeavesGraph(t *testing.T) {
	lib := library{}
	g := buildScene(t, lib)
	doc := &Document{Mode: ModeSingle, CanvasData: []byte(`{"version":99}`)}

	if _, err := (Serializer{}).Load(context.Background(), doc, g, lib.resolve); err == nil {
		t.Fatal("expected error")
	}
	if g.Len() != 3 {
		t.Errorf("graph changed: Len = %d", g.Len())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		doc  *Document
		want error
	}{
		{"nil", nil, ErrInvalidDocument},
		{"bad mode", &Document{Mode: "video"}, ErrInvalidMode},
		{"bad timestamp", &Document{Mode: ModeSingle, Timestamp: "yesterday"}, ErrInvalidDocument},
		{"bad canvas", &Document{Mode: ModeSingle, CanvasData: []byte("{")}, ErrInvalidDocument},
		{"unknown template", (&Document{Mode: ModeCollage}).WithCollage("template9", nil), ErrInvalidDocument},
		{"ok", (&Document{Mode: ModeCollage}).WithCollage("template4", collage.Binding{}), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.doc)
			if tt.want == nil && err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSaveRejectsUnknownMode(t *testing.T) {
	if _, err := (Serializer{}).Save(newGraph(), "video", nil); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("expected ErrInvalidMode, got %v", err)
	}
}
