package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens a pgx connection pool and verifies it.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		display_name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		thumbnail_path TEXT NOT NULL DEFAULT '',
		data JSONB,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS projects_owner_updated ON projects (owner_id, updated_at DESC)`,
}

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Postgres) Close() {
	s.pool.Close()
}

const pgUserColumns = `id, email, password, display_name, created_at`

func scanPgUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.CreatedAt)
	return u, pgError(err)
}

func (s *Postgres) CreateUser(ctx context.Context, u User) (User, error) {
	u.CreatedAt = now()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (`+pgUserColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Email, u.PasswordHash, u.DisplayName, u.CreatedAt)
	if err != nil {
		return User{}, pgError(err)
	}
	return u, nil
}

func (s *Postgres) UserByEmail(ctx context.Context, email string) (User, error) {
	return scanPgUser(s.pool.QueryRow(ctx, `SELECT `+pgUserColumns+` FROM users WHERE email = $1`, email))
}

func (s *Postgres) UserByID(ctx context.Context, id string) (User, error) {
	return scanPgUser(s.pool.QueryRow(ctx, `SELECT `+pgUserColumns+` FROM users WHERE id = $1`, id))
}

const pgProjectColumns = `id, owner_id, name, thumbnail_path, data, created_at, updated_at`

func scanPgProject(row pgx.Row) (Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.ThumbnailPath, &p.Data, &p.CreatedAt, &p.UpdatedAt)
	return p, pgError(err)
}

func (s *Postgres) CreateProject(ctx context.Context, p Project) (Project, error) {
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (`+pgProjectColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.OwnerID, p.Name, p.ThumbnailPath, nullable(p.Data), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return Project{}, pgError(err)
	}
	return p, nil
}

func (s *Postgres) GetProject(ctx context.Context, id string) (Project, error) {
	return scanPgProject(s.pool.QueryRow(ctx, `SELECT `+pgProjectColumns+` FROM projects WHERE id = $1`, id))
}

func (s *Postgres) ListProjects(ctx context.Context, ownerID string, limit, offset int) ([]Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgProjectColumns+` FROM projects WHERE owner_id = $1
		 ORDER BY updated_at DESC, id LIMIT $2 OFFSET $3`,
		ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		p, err := scanPgProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *Postgres) UpdateProject(ctx context.Context, id string, u ProjectUpdate) (Project, error) {
	return scanPgProject(s.pool.QueryRow(ctx,
		`UPDATE projects SET
			name = COALESCE($2, name),
			thumbnail_path = COALESCE($3, thumbnail_path),
			data = COALESCE($4::jsonb, data),
			updated_at = $5
		 WHERE id = $1
		 RETURNING `+pgProjectColumns,
		id, u.Name, u.ThumbnailPath, nullable(u.Data), now()))
}

func (s *Postgres) DeleteProject(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func pgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
