package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/fxforge/platform/internal/httpx"
)

type contextKey struct{ name string }

var claimsContextKey = &contextKey{name: "auth_claims"}

// ClaimsFromContext returns the authenticated claims, if any.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(Claims)
	return claims, ok
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	id, err := claims.UserID()
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Middleware rejects requests without a valid Bearer token and stores the
// claims in the request context.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httpx.JSON(w, http.StatusUnauthorized, httpx.ErrAuthenticationRequired)
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := s.Parse(token)
		if err != nil {
			httpx.JSON(w, http.StatusUnauthorized, httpx.ErrInvalidAuthentication)
			return
		}
		if _, err := claims.UserID(); err != nil {
			httpx.JSON(w, http.StatusUnauthorized, httpx.ErrInvalidAuthentication)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsContextKey, claims)))
	})
}

// RequireAdmin gates admin-only routes. Mount after Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok || !claims.Admin {
			httpx.JSON(w, http.StatusForbidden, httpx.ErrAdminOnly)
			return
		}
		next.ServeHTTP(w, r)
	})
}
