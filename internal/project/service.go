package project

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/creativecanvas/creativecanvas/backend-go/internal/asset"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/db"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/document"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/typeid"
)

var (
	ErrNotFound  = errors.New("project not found")
	ErrForbidden = errors.New("forbidden")
	ErrInvalid   = errors.New("invalid project")
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 100

	// ThumbnailPrefix is the public path thumbnails are served under.
	ThumbnailPrefix = "/uploads/thumbnails/"
	thumbWidth      = 300
	thumbHeight     = 200
)

var fallbackThumbColor = color.NRGBA{R: 100, G: 149, B: 237, A: 255}

// Store is the slice of db.Store the project service needs.
type Store interface {
	CreateProject(ctx context.Context, p db.Project) (db.Project, error)
	GetProject(ctx context.Context, id string) (db.Project, error)
	ListProjects(ctx context.Context, ownerID string, limit, offset int) ([]db.Project, error)
	UpdateProject(ctx context.Context, id string, u db.ProjectUpdate) (db.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

type Service struct {
	store    Store
	loader   asset.Loader
	thumbDir string
}

func NewService(store Store, loader asset.Loader, thumbDir string) (*Service, error) {
	if err := os.MkdirAll(thumbDir, 0755); err != nil {
		return nil, fmt.Errorf("create thumbnail dir: %w", err)
	}
	return &Service{store: store, loader: loader, thumbDir: thumbDir}, nil
}

// ThumbnailDir is where generated thumbnails are written.
func (s *Service) ThumbnailDir() string {
	return s.thumbDir
}

type Project struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	OwnerID       string             `json:"ownerId"`
	ThumbnailPath string             `json:"thumbnailPath,omitempty"`
	Document      *document.Document `json:"document,omitempty"`
	CreatedAt     string             `json:"createdAt"`
	UpdatedAt     string             `json:"updatedAt"`
}

// Update lists the fields to change. Nil fields are left alone.
type Update struct {
	Name     *string
	Document *document.Document
}

func (s *Service) Create(ctx context.Context, ownerID, name string, doc *document.Document) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	data, err := encode(doc)
	if err != nil {
		return nil, err
	}

	row, err := s.store.CreateProject(ctx, db.Project{
		ID:      typeid.NewProjectID(),
		OwnerID: ownerID,
		Name:    name,
		Data:    data,
	})
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return toProject(row, true)
}

func (s *Service) Get(ctx context.Context, projectID, userID string) (*Project, error) {
	row, err := s.owned(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	return toProject(row, true)
}

// List returns the user's projects without their documents, most recently
// updated first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Project, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)
	offset = max(offset, 0)

	rows, err := s.store.ListProjects(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	projects := make([]Project, 0, len(rows))
	for _, row := range rows {
		p, err := toProject(row, false)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, nil
}

func (s *Service) Update(ctx context.Context, projectID, userID string, u Update) (*Project, error) {
	if _, err := s.owned(ctx, projectID, userID); err != nil {
		return nil, err
	}

	var upd db.ProjectUpdate
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalid)
		}
		upd.Name = &name
	}
	if u.Document != nil {
		data, err := encode(u.Document)
		if err != nil {
			return nil, err
		}
		upd.Data = data
	}

	row, err := s.store.UpdateProject(ctx, projectID, upd)
	if err != nil {
		return nil, storeError("update project", err)
	}
	return toProject(row, true)
}

func (s *Service) Delete(ctx context.Context, projectID, userID string) error {
	if _, err := s.owned(ctx, projectID, userID); err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		return storeError("delete project", err)
	}
	return nil
}

// GenerateThumbnail renders a 300x200 cover crop of the project's first
// image as a JPEG. Projects without a usable image get a solid cornflower
// blue PNG. It returns the public path of the thumbnail.
func (s *Service) GenerateThumbnail(ctx context.Context, projectID, userID string) (string, error) {
	row, err := s.owned(ctx, projectID, userID)
	if err != nil {
		return "", err
	}
	p, err := toProject(row, true)
	if err != nil {
		return "", err
	}

	name, err := s.writeThumbnail(ctx, projectID, p.Document)
	if err != nil {
		return "", err
	}

	publicPath := ThumbnailPrefix + name
	if _, err := s.store.UpdateProject(ctx, projectID, db.ProjectUpdate{ThumbnailPath: &publicPath}); err != nil {
		return "", storeError("save thumbnail path", err)
	}
	return publicPath, nil
}

func (s *Service) writeThumbnail(ctx context.Context, projectID string, doc *document.Document) (string, error) {
	if doc != nil && len(doc.Images) > 0 {
		src, err := s.loader.Load(ctx, doc.Images[0].Path)
		if err == nil {
			name := "project-" + projectID + ".jpg"
			thumb := imaging.Fill(src.Image, thumbWidth, thumbHeight, imaging.Center, imaging.Lanczos)
			if err := imaging.Save(thumb, filepath.Join(s.thumbDir, name), imaging.JPEGQuality(80)); err != nil {
				return "", fmt.Errorf("save thumbnail: %w", err)
			}
			return name, nil
		}
		slog.Warn("thumbnail from image failed, using fallback", "project", projectID, "error", err)
	}

	name := "project-" + projectID + ".png"
	fallback := imaging.New(thumbWidth, thumbHeight, fallbackThumbColor)
	if err := imaging.Save(fallback, filepath.Join(s.thumbDir, name)); err != nil {
		return "", fmt.Errorf("save thumbnail: %w", err)
	}
	return name, nil
}

// LoadDocument returns the stored document of a project, or nil if it was
// never saved. No ownership check: callers authorize first.
func (s *Service) LoadDocument(ctx context.Context, projectID string) (*document.Document, error) {
	row, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, storeError("get project", err)
	}
	p, err := toProject(row, true)
	if err != nil {
		return nil, err
	}
	return p.Document, nil
}

// SaveDocument replaces the stored document of a project.
func (s *Service) SaveDocument(ctx context.Context, projectID string, doc *document.Document) error {
	data, err := encode(doc)
	if err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("%w: nil document", ErrInvalid)
	}
	if _, err := s.store.UpdateProject(ctx, projectID, db.ProjectUpdate{Data: data}); err != nil {
		return storeError("save document", err)
	}
	return nil
}

func (s *Service) owned(ctx context.Context, projectID, userID string) (db.Project, error) {
	if typeid.Validate(projectID, typeid.PrefixProject) != nil {
		return db.Project{}, ErrNotFound
	}
	row, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return db.Project{}, storeError("get project", err)
	}
	if row.OwnerID != userID {
		return db.Project{}, ErrForbidden
	}
	return row, nil
}

func encode(doc *document.Document) ([]byte, error) {
	if doc == nil {
		return nil, nil
	}
	data, err := document.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return data, nil
}

func toProject(row db.Project, withDocument bool) (*Project, error) {
	p := &Project{
		ID:            row.ID,
		Name:          row.Name,
		OwnerID:       row.OwnerID,
		ThumbnailPath: row.ThumbnailPath,
		CreatedAt:     row.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     row.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if withDocument && row.Data != nil {
		doc, err := document.Unmarshal(row.Data)
		if err != nil {
			return nil, fmt.Errorf("decode document of %s: %w", row.ID, err)
		}
		p.Document = doc
	}
	return p, nil
}

func storeError(op string, err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
