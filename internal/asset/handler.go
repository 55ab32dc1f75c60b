package asset

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

const maxFilesPerUpload = 10

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Handler serves image upload and retrieval endpoints.
type Handler struct {
	store   *Store
	maxSize int64
}

// NewHandler creates a handler that stores uploads in store. maxSize is the
// per-file limit in bytes.
func NewHandler(store *Store, maxSize int64) *Handler {
	return &Handler{store: store, maxSize: maxSize}
}

// Upload handles POST /api/upload/image (multipart form with an "image" field).
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+1<<20)

	if err := r.ParseMultipartForm(h.maxSize); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("file too large (max %dMB)", h.maxSize>>20)})
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["image"]
	if len(files) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no image file provided"})
		return
	}

	ref, err := h.save(r, files[0])
	if err != nil {
		handleUploadError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ref)
}

// UploadMany handles POST /api/upload/images (multipart form with up to ten
// "images" fields). Files are decoded and stored concurrently; the response
// keeps the request order.
func (h *Handler) UploadMany(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFilesPerUpload*h.maxSize+1<<20)

	if err := r.ParseMultipartForm(h.maxSize); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request too large"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no image files provided"})
		return
	}
	if len(files) > maxFilesPerUpload {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("at most %d images per upload", maxFilesPerUpload)})
		return
	}

	refs := make([]Ref, len(files))
	g, _ := errgroup.WithContext(r.Context())
	for i, fh := range files {
		g.Go(func() error {
			ref, err := h.save(r, fh)
			if err != nil {
				return fmt.Errorf("%s: %w", fh.Filename, err)
			}
			refs[i] = ref
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		handleUploadError(w, err)
		return
	}

	slog.Info("images uploaded", "count", len(refs))
	writeJSON(w, http.StatusOK, refs)
}

func (h *Handler) save(r *http.Request, fh *multipart.FileHeader) (Ref, error) {
	if fh.Size > h.maxSize {
		return Ref{}, ErrTooLarge
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	contentType := fh.Header.Get("Content-Type")
	if !allowedExt[ext] || !strings.HasPrefix(contentType, "image/") {
		return Ref{}, fmt.Errorf("%w: %s (%s)", ErrUnsupported, fh.Filename, contentType)
	}

	f, err := fh.Open()
	if err != nil {
		return Ref{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	return h.store.Save(r.Context(), f, fh.Filename)
}

// Serve returns an http.Handler that serves stored images with caching
// headers. Asset IDs are unique, so files are immutable.
func (h *Handler) Serve() http.Handler {
	fs := http.FileServer(http.Dir(h.store.Dir()))
	return http.StripPrefix(URLPrefix, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	}))
}

func handleUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnsupported):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "only image files are allowed"})
	case errors.Is(err, ErrTooLarge):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file too large"})
	default:
		slog.Error("upload failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to upload image"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
