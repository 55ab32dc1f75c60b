package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/creativecanvas/creativecanvas/backend-go/internal/db"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]db.User
}

func (m *memUsers) CreateUser(ctx context.Context, u db.User) (db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return db.User{}, db.ErrDuplicate
		}
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *memUsers) UserByEmail(ctx context.Context, email string) (db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return db.User{}, db.ErrNotFound
}

func (m *memUsers) UserByID(ctx context.Context, id string) (db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return db.User{}, db.ErrNotFound
	}
	return u, nil
}

func newTestService() *Service {
	s := NewService(&memUsers{users: map[string]db.User{}}, "test-secret")
	s.cost = bcrypt.MinCost
	return s
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	res, err := s.Register(ctx, " Ada@Example.com ", "correct horse", "Ada")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.User.Email != "ada@example.com" || !strings.HasPrefix(res.User.ID, "user_") {
		t.Errorf("user = %+v", res.User)
	}

	userID, err := s.ValidateToken(res.Token)
	if err != nil || userID != res.User.ID {
		t.Errorf("ValidateToken = %q, %v", userID, err)
	}

	if _, err := s.Register(ctx, "ada@example.com", "another pass", "Ada 2"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}

	if _, err := s.Login(ctx, "ada@example.com", "correct horse"); err != nil {
		t.Errorf("Login: %v", err)
	}
	if _, err := s.Login(ctx, "ada@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := s.Login(ctx, "nobody@example.com", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestValidateTokenRejects(t *testing.T) {
	s := newTestService()
	res, err := s.Register(context.Background(), "ada@example.com", "correct horse", "Ada")
	if err != nil {
		t.Fatal(err)
	}

	other := newTestService()
	other.jwtSecret = []byte("other-secret")
	if _, err := other.ValidateToken(res.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign secret: %v", err)
	}

	s.now = func() time.Time { return time.Now().Add(-2 * tokenTTL) }
	expired, err := s.issueToken(res.User.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.ValidateToken(expired); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token: %v", err)
	}
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestService()
	res, _ := s.Register(context.Background(), "ada@example.com", "correct horse", "Ada")

	var seen string
	h := s.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"ok", "Bearer " + res.Token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
	if seen != res.User.ID {
		t.Errorf("context user = %q", seen)
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		target  string
		want    string
		wantErr error
	}{
		{"header", "Bearer abc", "/ws/editor", "abc", nil},
		{"query", "", "/ws/editor?token=xyz", "xyz", nil},
		{"header wins", "Bearer abc", "/ws/editor?token=xyz", "abc", nil},
		{"empty bearer", "Bearer ", "/ws/editor", "", ErrInvalidToken},
		{"none", "", "/ws/editor", "", ErrMissingToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got, err := TokenFromRequest(req)
			if got != tt.want || !errors.Is(err, tt.wantErr) {
				t.Errorf("TokenFromRequest = %q, %v", got, err)
			}
		})
	}
}

func TestRegisterHandlerValidation(t *testing.T) {
	h := NewHandler(newTestService())

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"missing fields", `{"email":"a@b.c"}`, http.StatusBadRequest},
		{"bad email", `{"email":"nope","password":"long enough","displayName":"A"}`, http.StatusBadRequest},
		{"short password", `{"email":"a@b.c","password":"short","displayName":"A"}`, http.StatusBadRequest},
		{"ok", `{"email":"a@b.c","password":"long enough","displayName":"A"}`, http.StatusCreated},
		{"taken", `{"email":"a@b.c","password":"long enough","displayName":"A"}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Register(rec, httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(tt.body)))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}
