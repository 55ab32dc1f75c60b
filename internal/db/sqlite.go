package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		display_name TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		thumbnail_path TEXT NOT NULL DEFAULT '',
		data TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS projects_owner_updated ON projects (owner_id, updated_at DESC)`,
}

var sqlitePragmas = []string{
	"PRAGMA foreign_keys=ON",
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=10000",
	"PRAGMA synchronous=NORMAL",
}

// SQLite is a Store on an embedded database file. Timestamps are stored as
// unix milliseconds.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema. ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: pragmas are per connection and an in-memory
	// database only exists on the connection that created it.
	db.SetMaxOpenConns(1)

	for _, pragma := range sqlitePragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() {
	s.db.Close()
}

const sqliteUserColumns = `id, email, password, display_name, created_at`

func scanSqliteUser(row *sql.Row) (User, error) {
	var u User
	var created int64
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &created); err != nil {
		return User{}, sqliteError(err)
	}
	u.CreatedAt = time.UnixMilli(created).UTC()
	return u, nil
}

func (s *SQLite) CreateUser(ctx context.Context, u User) (User, error) {
	u.CreatedAt = now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+sqliteUserColumns+`) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.DisplayName, u.CreatedAt.UnixMilli())
	if err != nil {
		return User{}, sqliteError(err)
	}
	return u, nil
}

func (s *SQLite) UserByEmail(ctx context.Context, email string) (User, error) {
	return scanSqliteUser(s.db.QueryRowContext(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE email = ?`, email))
}

func (s *SQLite) UserByID(ctx context.Context, id string) (User, error) {
	return scanSqliteUser(s.db.QueryRowContext(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE id = ?`, id))
}

const sqliteProjectColumns = `id, owner_id, name, thumbnail_path, data, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSqliteProject(row rowScanner) (Project, error) {
	var p Project
	var data sql.NullString
	var created, updated int64
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.ThumbnailPath, &data, &created, &updated); err != nil {
		return Project{}, sqliteError(err)
	}
	if data.Valid {
		p.Data = []byte(data.String)
	}
	p.CreatedAt = time.UnixMilli(created).UTC()
	p.UpdatedAt = time.UnixMilli(updated).UTC()
	return p, nil
}

func (s *SQLite) CreateProject(ctx context.Context, p Project) (Project, error) {
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (`+sqliteProjectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerID, p.Name, p.ThumbnailPath, nullable(p.Data), p.CreatedAt.UnixMilli(), p.UpdatedAt.UnixMilli())
	if err != nil {
		return Project{}, sqliteError(err)
	}
	return p, nil
}

func (s *SQLite) GetProject(ctx context.Context, id string) (Project, error) {
	return scanSqliteProject(s.db.QueryRowContext(ctx, `SELECT `+sqliteProjectColumns+` FROM projects WHERE id = ?`, id))
}

func (s *SQLite) ListProjects(ctx context.Context, ownerID string, limit, offset int) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteProjectColumns+` FROM projects WHERE owner_id = ?
		 ORDER BY updated_at DESC, id LIMIT ? OFFSET ?`,
		ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		p, err := scanSqliteProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *SQLite) UpdateProject(ctx context.Context, id string, u ProjectUpdate) (Project, error) {
	return scanSqliteProject(s.db.QueryRowContext(ctx,
		`UPDATE projects SET
			name = COALESCE(?, name),
			thumbnail_path = COALESCE(?, thumbnail_path),
			data = COALESCE(?, data),
			updated_at = ?
		 WHERE id = ?
		 RETURNING `+sqliteProjectColumns,
		nullString(u.Name), nullString(u.ThumbnailPath), nullable(u.Data), now().UnixMilli(), id))
}

func (s *SQLite) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func sqliteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
	}
	return err
}
