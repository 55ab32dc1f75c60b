package asset

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/creativecanvas/creativecanvas/backend-go/internal/typeid"
)

// URLPrefix is the public path under which stored images are served.
const URLPrefix = "/uploads/images/"

var extByFormat = map[string]string{
	"jpeg": ".jpg",
	"png":  ".png",
	"gif":  ".gif",
	"webp": ".webp",
}

// Store keeps image files in a directory on local disk. It implements both
// Loader and Uploader.
type Store struct {
	dir     string
	maxSize int64
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string, maxSize int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}
	return &Store{dir: dir, maxSize: maxSize}, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save validates an uploaded image and stores its bytes unchanged under a
// fresh asset ID.
func (s *Store) Save(ctx context.Context, r io.Reader, originalName string) (Ref, error) {
	if err := ctx.Err(); err != nil {
		return Ref{}, err
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return Ref{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return Ref{}, ErrTooLarge
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Ref{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	ext, ok := extByFormat[format]
	if !ok {
		return Ref{}, fmt.Errorf("%w: %s", ErrUnsupported, format)
	}

	filename := typeid.NewAssetID() + ext
	if err := os.WriteFile(filepath.Join(s.dir, filename), data, 0644); err != nil {
		return Ref{}, fmt.Errorf("write asset: %w", err)
	}

	slog.Debug("asset stored", "file", filename, "original", originalName, "format", format)

	return Ref{
		Path:     URLPrefix + filename,
		Filename: filename,
		Size:     int64(len(data)),
		Width:    cfg.Width,
		Height:   cfg.Height,
		Format:   format,
	}, nil
}

// Put encodes img as a JPEG (quality 95) and stores it as a new asset.
func (s *Store) Put(ctx context.Context, img image.Image, name string) (Ref, error) {
	if err := ctx.Err(); err != nil {
		return Ref{}, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return Ref{}, fmt.Errorf("encode jpeg: %w", err)
	}

	filename := typeid.NewAssetID() + ".jpg"
	if err := os.WriteFile(filepath.Join(s.dir, filename), buf.Bytes(), 0644); err != nil {
		return Ref{}, fmt.Errorf("write asset: %w", err)
	}

	b := img.Bounds()
	slog.Debug("asset created", "file", filename, "name", name, "width", b.Dx(), "height", b.Dy())

	return Ref{
		Path:     URLPrefix + filename,
		Filename: filename,
		Size:     int64(buf.Len()),
		Width:    b.Dx(),
		Height:   b.Dy(),
		Format:   "jpeg",
	}, nil
}

// Load decodes the image behind a locator.
func (s *Store) Load(ctx context.Context, locator string) (*Decoded, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssetLoad, err)
	}

	p, err := s.resolve(locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssetLoad, err)
	}

	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %w: %s", ErrAssetLoad, ErrNotFound, locator)
		}
		return nil, fmt.Errorf("%w: %v", ErrAssetLoad, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssetLoad, err)
	}

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrAssetLoad, locator, err)
	}

	b := img.Bounds()
	return &Decoded{
		Ref: Ref{
			Path:     locator,
			Filename: filepath.Base(p),
			Size:     stat.Size(),
			Width:    b.Dx(),
			Height:   b.Dy(),
		},
		Image: img,
	}, nil
}

// Remove deletes the file behind a locator.
func (s *Store) Remove(locator string) error {
	p, err := s.resolve(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Path returns the file path of a locator inside the store.
func (s *Store) Path(locator string) (string, error) {
	return s.resolve(locator)
}

// resolve maps a locator to a file inside the store directory. Only a bare
// file name under URLPrefix (or a bare file name) is accepted.
func (s *Store) resolve(locator string) (string, error) {
	name := strings.TrimPrefix(locator, URLPrefix)
	if name == "" || name != path.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: bad locator %q", ErrNotFound, locator)
	}
	return filepath.Join(s.dir, name), nil
}
