// Package db persists users and projects. PostgreSQL (pgx) and embedded
// SQLite back the same Store interface; Open picks one from the database URL.
package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicate      = errors.New("duplicate key")
	ErrUnsupportedURL = errors.New("unsupported database url")
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
}

// Project is a stored composition. Data holds the composition document JSON
// and may be nil for a project that was never saved.
type Project struct {
	ID            string
	OwnerID       string
	Name          string
	ThumbnailPath string
	Data          []byte
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProjectUpdate lists the fields to change. Nil fields are left alone.
type ProjectUpdate struct {
	Name          *string
	ThumbnailPath *string
	Data          []byte
}

type Store interface {
	CreateUser(ctx context.Context, u User) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)

	CreateProject(ctx context.Context, p Project) (Project, error)
	GetProject(ctx context.Context, id string) (Project, error)
	// ListProjects returns the owner's projects, most recently updated first.
	ListProjects(ctx context.Context, ownerID string, limit, offset int) ([]Project, error)
	UpdateProject(ctx context.Context, id string, u ProjectUpdate) (Project, error)
	DeleteProject(ctx context.Context, id string) error

	Close()
}

// Open connects to the database named by url: postgres:// or postgresql://
// for PostgreSQL, sqlite://<path> for an embedded database file. The schema
// is created if missing.
func Open(ctx context.Context, url string) (Store, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		pool, err := NewPool(ctx, url)
		if err != nil {
			return nil, err
		}
		s := NewPostgres(pool)
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return s, nil

	case strings.HasPrefix(url, "sqlite://"):
		return OpenSQLite(ctx, strings.TrimPrefix(url, "sqlite://"))
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedURL, redact(url))
}

// redact drops everything before the host so credentials never reach logs.
func redact(url string) string {
	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		return "<invalid>"
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = rest[at+1:]
	}
	return scheme + "://" + rest
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// nullable maps nil data to SQL NULL so COALESCE keeps the stored value.
func nullable(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
