package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/creativecanvas/creativecanvas/backend-go/internal/asset"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/document"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/editor"
)

var red = color.NRGBA{R: 220, G: 20, B: 20, A: 255}

func testLoader(images map[string]image.Image) asset.Loader {
	return asset.LoaderFunc(func(ctx context.Context, locator string) (*asset.Decoded, error) {
		img, ok := images[locator]
		if !ok {
			return nil, fmt.Errorf("%w: %s", asset.ErrAssetLoad, locator)
		}
		b := img.Bounds()
		return &asset.Decoded{Ref: asset.Ref{Path: locator, Width: b.Dx(), Height: b.Dy()}, Image: img}, nil
	})
}

// savedDocument builds a composition holding one full-canvas image.
func savedDocument(t *testing.T, loader asset.Loader, locator string) []byte {
	t.Helper()
	s := editor.New(editor.Config{Width: 200, Height: 100, Loader: loader})
	s.OpenImage(context.Background(), locator)
	if err := s.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	doc, err := s.Save()
	if err != nil {
		t.Fatal(err)
	}
	data, err := document.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestExportRendersComposition(t *testing.T) {
	loader := testLoader(map[string]image.Image{"/uploads/images/red.png": imaging.New(200, 100, red)})
	h := NewHandler(loader, 200, 100, "#ffffff")
	body := savedDocument(t, loader, "/uploads/images/red.png")

	tests := []struct {
		query       string
		contentType string
		ext         string
	}{
		{"", "image/png", ".png"},
		{"?format=png&name=my%20card", "image/png", ".png"},
		{"?format=jpg", "image/jpeg", ".jpg"},
		{"?format=JPEG", "image/jpeg", ".jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/export"+tt.query, bytes.NewReader(body))
			rec := httptest.NewRecorder()
			h.Export(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body)
			}
			if got := rec.Header().Get("Content-Type"); got != tt.contentType {
				t.Errorf("Content-Type = %s", got)
			}
			if cd := rec.Header().Get("Content-Disposition"); !strings.HasSuffix(cd, tt.ext+`"`) {
				t.Errorf("Content-Disposition = %s", cd)
			}

			img, err := imaging.Decode(rec.Body)
			if err != nil {
				t.Fatal(err)
			}
			if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
				t.Errorf("size = %dx%d", b.Dx(), b.Dy())
			}
			r, g, _, _ := img.At(100, 50).RGBA()
			if r>>8 < 180 || g>>8 > 60 {
				t.Errorf("center pixel is not red: %d,%d", r>>8, g>>8)
			}
		})
	}
}

func TestExportMissingAssets(t *testing.T) {
	withImage := testLoader(map[string]image.Image{"/uploads/images/gone.png": imaging.New(50, 50, red)})
	body := savedDocument(t, withImage, "/uploads/images/gone.png")

	h := NewHandler(testLoader(nil), 200, 100, "#ffffff")
	rec := httptest.NewRecorder()
	h.Export(rec, httptest.NewRequest("POST", "/api/export", bytes.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("X-Missing-Assets"); got != "1" {
		t.Errorf("X-Missing-Assets = %q", got)
	}
}

func TestExportRejects(t *testing.T) {
	h := NewHandler(testLoader(nil), 200, 100, "#ffffff")
	tests := []struct {
		name  string
		query string
		body  string
	}{
		{"bad format", "?format=gif", `{"mode":"single"}`},
		{"not json", "", "{"},
		{"bad mode", "", `{"mode":"video","canvasData":{},"images":[],"timestamp":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Export(rec, httptest.NewRequest("POST", "/api/export"+tt.query, strings.NewReader(tt.body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d", rec.Code)
			}
		})
	}
}

func TestCatalog(t *testing.T) {
	h := NewHandler(testLoader(nil), 200, 100, "")
	rec := httptest.NewRecorder()
	h.Catalog(rec, httptest.NewRequest("GET", "/api/templates", nil))

	var got struct {
		Templates []struct {
			ID    string `json:"id"`
			Slots []any  `json:"slots"`
		} `json:"templates"`
		Presets []any    `json:"presets"`
		Aspects []any    `json:"aspects"`
		Filters []string `json:"filters"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got.Templates) == 0 || len(got.Templates[0].Slots) == 0 {
		t.Errorf("templates = %+v", got.Templates)
	}
	if len(got.Presets) == 0 || len(got.Aspects) != 6 || len(got.Filters) != 8 {
		t.Errorf("catalog = %d presets, %d aspects, %d filters", len(got.Presets), len(got.Aspects), len(got.Filters))
	}
}
