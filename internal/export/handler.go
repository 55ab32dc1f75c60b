package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/creativecanvas/creativecanvas/backend-go/internal/asset"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/collage"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/crop"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/document"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/editor"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/filter"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/typeid"
)

const (
	maxDocumentSize = 5 << 20 // 5MB
	jpegQuality     = 90
	renderTimeout   = 30 * time.Second
)

type Handler struct {
	loader     asset.Loader
	width      int
	height     int
	background string
}

// NewHandler renders compositions on a width x height canvas, resolving
// images through loader.
func NewHandler(loader asset.Loader, width, height int, background string) *Handler {
	return &Handler{loader: loader, width: width, height: height, background: background}
}

// Export handles POST /api/export?format=png|jpeg. The body is a composition
// document; the response is the rendered image. Images that can no longer be
// loaded are left out and counted in the X-Missing-Assets header.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	switch format {
	case "":
		format = "png"
	case "jpg":
		format = "jpeg"
	case "png", "jpeg":
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid format: must be png or jpeg"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentSize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document too large"})
		return
	}
	doc, err := document.Unmarshal(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	exportID := typeid.NewExportID()
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	session := editor.New(editor.Config{
		Width:      h.width,
		Height:     h.height,
		Background: h.background,
		Loader:     h.loader,
	})
	missing := 0
	if err := session.Load(ctx, doc); err != nil {
		var report *document.LoadReport
		if !errors.As(err, &report) {
			slog.Warn("export load failed", "export", exportID, "error", err)
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		missing = len(report.Missing)
	}
	if err := session.Wait(ctx); err != nil {
		slog.Error("export timed out waiting for assets", "export", exportID, "error", err)
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "rendering timed out"})
		return
	}

	var buf bytes.Buffer
	canvas := session.Canvas()
	if format == "png" {
		err = canvas.EncodePNG(&buf)
	} else {
		err = canvas.EncodeJPEG(&buf, jpegQuality)
	}
	if err != nil {
		slog.Error("encode export", "export", exportID, "format", format, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "encoding failed"})
		return
	}

	name := sanitizeName(r.URL.Query().Get("name"))
	ext := ".png"
	if format == "jpeg" {
		ext = ".jpg"
	}
	w.Header().Set("Content-Type", "image/"+format)
	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+ext+"\"")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if missing > 0 {
		w.Header().Set("X-Missing-Assets", strconv.Itoa(missing))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())

	slog.Info("export complete", "export", exportID, "format", format, "size", buf.Len(), "missing", missing)
}

// Catalog handles GET /api/templates: the collage templates together with
// the filter presets and crop aspect ratios the editor offers.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"templates": collage.Templates(),
		"presets":   filter.Presets(),
		"aspects":   crop.Aspects(),
		"filters":   filter.Kinds(),
	})
}

func sanitizeName(name string) string {
	if name == "" {
		return "composition"
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
