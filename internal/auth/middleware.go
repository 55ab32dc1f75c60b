package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type contextKey string

const UserIDKey contextKey = "userID"

var ErrMissingToken = errors.New("missing token")

// TokenFromRequest reads a bearer token from the Authorization header, or
// from the token query parameter when the header is absent. Browsers cannot
// set headers on websocket upgrades.
func TokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || scheme != "Bearer" || token == "" {
			return "", fmt.Errorf("%w: invalid authorization format", ErrInvalidToken)
		}
		return token, nil
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", ErrMissingToken
}

// Authenticate returns the user a request's token belongs to.
func (s *Service) Authenticate(r *http.Request) (string, error) {
	token, err := TokenFromRequest(r)
	if err != nil {
		return "", err
	}
	return s.ValidateToken(token)
}

func (s *Service) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.Authenticate(r)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, ErrMissingToken) {
				msg = "missing authorization header"
			}
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": msg})
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}
