// Package artifact serves EA binaries out of S3. Downloads are gated on an
// active, unexpired license for the product and handed out as short-lived
// presigned URLs rather than proxied bytes.
package artifact

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fxforge/platform/internal/pg"
)

var (
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrNoActiveLicense  = errors.New("no active license for product")
)

// Artifact is one uploaded EA build.
type Artifact struct {
	ID          uuid.UUID
	ProductCode string
	Version     string
	ObjectKey   string
	SizeBytes   int64
	CreatedAt   time.Time
}

// Store reads the artifact catalog.
type Store interface {
	// Get returns a specific build of a product.
	Get(ctx context.Context, productCode, version string) (*Artifact, error)
	// Latest returns the newest build of a product.
	Latest(ctx context.Context, productCode string) (*Artifact, error)
}

type pgStore struct {
	pool *pgxpool.Pool
}

// NewStore returns a pgx-backed artifact store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

const artifactColumns = `id, product_code, version, object_key, size_bytes, created_at`

func (s *pgStore) Get(ctx context.Context, productCode, version string) (*Artifact, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+artifactColumns+` FROM ea_artifacts WHERE product_code = $1 AND version = $2`,
		productCode, version)
	return scanArtifact(row)
}

func (s *pgStore) Latest(ctx context.Context, productCode string) (*Artifact, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+artifactColumns+` FROM ea_artifacts WHERE product_code = $1
		 ORDER BY created_at DESC LIMIT 1`,
		productCode)
	return scanArtifact(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (*Artifact, error) {
	var a Artifact
	err := row.Scan(&a.ID, &a.ProductCode, &a.Version, &a.ObjectKey, &a.SizeBytes, &a.CreatedAt)
	if pg.IsNotFound(err) {
		return nil, ErrArtifactNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
