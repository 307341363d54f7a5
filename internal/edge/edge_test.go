package edge_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxforge/platform/internal/edge"
	"github.com/fxforge/platform/internal/license"
)

func TestNewRequiresCredentials(t *testing.T) {
	t.Parallel()

	_, err := edge.New("", "", "ns", "token")
	assert.ErrorIs(t, err, edge.ErrNotConfigured)

	_, err = edge.New("", "acc", "ns", "token")
	assert.NoError(t, err)
}

func TestSyncLicensePutsRecord(t *testing.T) {
	t.Parallel()

	var gotPath, gotMethod string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		require.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := edge.New(srv.URL, "acc", "ns", "token")
	require.NoError(t, err)

	expires := time.Date(2027, time.March, 1, 0, 0, 0, 0, time.UTC)
	err = c.SyncLicense(t.Context(), &license.License{
		Key:                   "FXF-AAAAA-BBBBB-CCCCC-DDDDD",
		Status:                license.StatusActive,
		ExpiresAt:             expires,
		ProductCode:           "TREND-RIDER",
		MaxConcurrentSessions: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/accounts/acc/storage/kv/namespaces/ns/values/license:FXF-AAAAA-BBBBB-CCCCC-DDDDD", gotPath)
	assert.Equal(t, "active", gotBody["status"])
	assert.Equal(t, "TREND-RIDER", gotBody["product_code"])
	assert.EqualValues(t, 2, gotBody["max_concurrent_sessions"])
}

func TestRemoveLicenseToleratesMissingKey(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := edge.New(srv.URL, "acc", "ns", "token")
	require.NoError(t, err)

	assert.NoError(t, c.RemoveLicense(t.Context(), "FXF-AAAAA-BBBBB-CCCCC-DDDDD"))
}

func TestSyncLicenseSurfacesAPIErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "namespace not found", http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := edge.New(srv.URL, "acc", "ns", "token")
	require.NoError(t, err)

	err = c.SyncLicense(t.Context(), &license.License{Key: "FXF-X"})
	assert.ErrorContains(t, err, "403")
}
