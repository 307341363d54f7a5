package artifact_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxforge/platform/internal/artifact"
	"github.com/fxforge/platform/internal/license"
)

type stubStore struct {
	artifacts []artifact.Artifact
}

func (s *stubStore) Get(_ context.Context, code, version string) (*artifact.Artifact, error) {
	for _, a := range s.artifacts {
		if a.ProductCode == code && a.Version == version {
			cp := a
			return &cp, nil
		}
	}
	return nil, artifact.ErrArtifactNotFound
}

func (s *stubStore) Latest(_ context.Context, code string) (*artifact.Artifact, error) {
	var latest *artifact.Artifact
	for i := range s.artifacts {
		a := &s.artifacts[i]
		if a.ProductCode != code {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, artifact.ErrArtifactNotFound
	}
	cp := *latest
	return &cp, nil
}

type stubLicenses struct {
	licenses []license.License
}

func (s *stubLicenses) ListByUser(context.Context, uuid.UUID) ([]license.License, error) {
	return s.licenses, nil
}

type stubPresigner struct{}

func (stubPresigner) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://s3.example.com/" + key + "?signed", nil
}

func activeLicense(code string) license.License {
	return license.License{
		ProductCode: code,
		Status:      license.StatusActive,
		ExpiresAt:   time.Now().UTC().Add(24 * time.Hour),
	}
}

func testService(licenses []license.License, artifacts []artifact.Artifact) *artifact.Service {
	return artifact.NewService(
		&stubStore{artifacts: artifacts},
		&stubLicenses{licenses: licenses},
		stubPresigner{},
		15*time.Minute,
	)
}

func TestResolveDownloadLatest(t *testing.T) {
	t.Parallel()

	svc := testService(
		[]license.License{activeLicense("TREND-RIDER")},
		[]artifact.Artifact{
			{ProductCode: "TREND-RIDER", Version: "1.0.0", ObjectKey: "ea/trend-rider/1.0.0.ex5",
				CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
			{ProductCode: "TREND-RIDER", Version: "1.2.0", ObjectKey: "ea/trend-rider/1.2.0.ex5",
				CreatedAt: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)},
		},
	)

	grant, err := svc.ResolveDownload(t.Context(), uuid.New(), "TREND-RIDER", "")
	require.NoError(t, err)

	assert.Equal(t, "1.2.0", grant.Version)
	assert.Equal(t, "https://s3.example.com/ea/trend-rider/1.2.0.ex5?signed", grant.URL)
	assert.Equal(t, 15*time.Minute, grant.ExpiresIn)
}

func TestResolveDownloadPinnedVersion(t *testing.T) {
	t.Parallel()

	svc := testService(
		[]license.License{activeLicense("TREND-RIDER")},
		[]artifact.Artifact{
			{ProductCode: "TREND-RIDER", Version: "1.0.0", ObjectKey: "ea/trend-rider/1.0.0.ex5"},
		},
	)

	grant, err := svc.ResolveDownload(t.Context(), uuid.New(), "TREND-RIDER", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", grant.Version)

	_, err = svc.ResolveDownload(t.Context(), uuid.New(), "TREND-RIDER", "9.9.9")
	assert.ErrorIs(t, err, artifact.ErrArtifactNotFound)
}

func TestResolveDownloadRequiresActiveLicense(t *testing.T) {
	t.Parallel()

	expired := activeLicense("TREND-RIDER")
	expired.ExpiresAt = time.Now().UTC().Add(-time.Hour)

	revoked := activeLicense("TREND-RIDER")
	revoked.Status = license.StatusRevoked

	otherProduct := activeLicense("SCALPER-X")

	tests := []struct {
		name     string
		licenses []license.License
	}{
		{"no licenses", nil},
		{"expired license", []license.License{expired}},
		{"revoked license", []license.License{revoked}},
		{"license for another product", []license.License{otherProduct}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := testService(tt.licenses, []artifact.Artifact{
				{ProductCode: "TREND-RIDER", Version: "1.0.0", ObjectKey: "k"},
			})
			_, err := svc.ResolveDownload(t.Context(), uuid.New(), "TREND-RIDER", "")
			assert.ErrorIs(t, err, artifact.ErrNoActiveLicense)
		})
	}
}
