package asset

import (
	"context"
	"errors"
	"image"
)

var (
	ErrAssetLoad   = errors.New("asset load failed")
	ErrNotFound    = errors.New("asset not found")
	ErrUnsupported = errors.New("unsupported image type")
	ErrTooLarge    = errors.New("image too large")
)

// Ref identifies a stored image and records its natural size. Path is the
// locator the loader resolves; it is also the public URL path.
type Ref struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Format   string `json:"format,omitempty"`
}

// Valid reports whether the ref has a locator and positive dimensions.
func (r Ref) Valid() bool {
	return r.Path != "" && r.Width > 0 && r.Height > 0
}

// Decoded is a loaded asset: its ref plus decoded pixels.
type Decoded struct {
	Ref   Ref
	Image image.Image
}

// Width is the decoded pixel width.
func (d *Decoded) Width() int { return d.Image.Bounds().Dx() }

// Height is the decoded pixel height.
func (d *Decoded) Height() int { return d.Image.Bounds().Dy() }

// Loader resolves a locator into decoded pixels. Failures wrap ErrAssetLoad.
type Loader interface {
	Load(ctx context.Context, locator string) (*Decoded, error)
}

// Uploader stores a raster produced by the editor (a crop, for instance) as
// a brand new asset.
type Uploader interface {
	Put(ctx context.Context, img image.Image, name string) (Ref, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, locator string) (*Decoded, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, locator string) (*Decoded, error) {
	return f(ctx, locator)
}
