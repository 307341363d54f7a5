package artifact

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fxforge/platform/internal/license"
)

// Service gates artifact downloads on license state.
type Service struct {
	store     Store
	licenses  LicenseReader
	presigner Presigner
	ttl       time.Duration
	now       func() time.Time
}

// LicenseReader is the slice of the license service the download gate needs.
type LicenseReader interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]license.License, error)
}

// NewService wires the download gate. ttl bounds the presigned URL lifetime.
func NewService(store Store, licenses LicenseReader, presigner Presigner, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Service{
		store:     store,
		licenses:  licenses,
		presigner: presigner,
		ttl:       ttl,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Download is the resolved download grant.
type Download struct {
	URL       string
	Version   string
	ExpiresIn time.Duration
}

// ResolveDownload checks the user holds an active, unexpired license for the
// product and returns a presigned URL for the requested build. An empty
// version means the latest build.
func (s *Service) ResolveDownload(ctx context.Context, userID uuid.UUID, productCode, version string) (*Download, error) {
	if err := s.authorize(ctx, userID, productCode); err != nil {
		return nil, err
	}

	var (
		a   *Artifact
		err error
	)
	if version == "" {
		a, err = s.store.Latest(ctx, productCode)
	} else {
		a, err = s.store.Get(ctx, productCode, version)
	}
	if err != nil {
		return nil, err
	}

	url, err := s.presigner.PresignGet(ctx, a.ObjectKey, s.ttl)
	if err != nil {
		return nil, err
	}

	return &Download{URL: url, Version: a.Version, ExpiresIn: s.ttl}, nil
}

func (s *Service) authorize(ctx context.Context, userID uuid.UUID, productCode string) error {
	licenses, err := s.licenses.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list licenses: %w", err)
	}

	now := s.now()
	for _, l := range licenses {
		if l.ProductCode == productCode && l.Status == license.StatusActive && !l.IsExpired(now) {
			return nil
		}
	}
	return ErrNoActiveLicense
}
