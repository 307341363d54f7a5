package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxforge/platform/internal/auth"
)

func newService(t *testing.T, ttl time.Duration) *auth.Service {
	t.Helper()
	svc, err := auth.NewService("test-signing-key-needs-32-bytes!", "fxforge", ttl)
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := auth.NewService("", "fxforge", time.Hour)
	assert.ErrorIs(t, err, auth.ErrMissingSigningKey)
}

func TestGenerateParseRoundTrip(t *testing.T) {
	t.Parallel()

	svc := newService(t, time.Hour)
	userID := uuid.New()

	token, err := svc.Generate(userID, true)
	require.NoError(t, err)

	claims, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.True(t, claims.Admin)
	assert.Equal(t, "fxforge", claims.Issuer)

	parsed, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, userID, parsed)
}

func TestParseRejectsTamperedToken(t *testing.T) {
	t.Parallel()

	svc := newService(t, time.Hour)
	token, err := svc.Generate(uuid.New(), false)
	require.NoError(t, err)

	_, err = svc.Parse(token + "x")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	other, err := auth.NewService("another-key-entirely-0123456789ab", "fxforge", time.Hour)
	require.NoError(t, err)
	_, err = other.Parse(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	t.Parallel()

	svc := newService(t, -time.Minute)
	token, err := svc.Generate(uuid.New(), false)
	require.NoError(t, err)

	_, err = svc.Parse(token)
	assert.ErrorIs(t, err, auth.ErrExpiredToken)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	svc := newService(t, time.Hour)
	userID := uuid.New()

	var gotUser uuid.UUID
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.UserIDFromContext(r.Context())
		require.True(t, ok)
		gotUser = id
		w.WriteHeader(http.StatusOK)
	})

	t.Run("valid token", func(t *testing.T) {
		t.Parallel()

		token, err := svc.Generate(userID, false)
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		svc.Middleware(next).ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, userID, gotUser)
	})

	t.Run("missing header", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()
		svc.Middleware(next).ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Authentication required")
	})

	t.Run("garbage token", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer nope")
		w := httptest.NewRecorder()
		svc.Middleware(next).ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireAdmin(t *testing.T) {
	t.Parallel()

	svc := newService(t, time.Hour)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	protected := svc.Middleware(auth.RequireAdmin(next))

	adminToken, err := svc.Generate(uuid.New(), true)
	require.NoError(t, err)
	userToken, err := svc.Generate(uuid.New(), false)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+adminToken)
	w := httptest.NewRecorder()
	protected.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNoContent, w.Code)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+userToken)
	w = httptest.NewRecorder()
	protected.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
