// Package profile stores the customer records mirrored from the identity
// provider: email, display name, and the admin flag.
package profile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fxforge/platform/internal/pg"
)

var ErrProfileNotFound = errors.New("profile not found")

// Profile is one customer record.
type Profile struct {
	UserID    uuid.UUID
	Email     string
	FullName  string
	IsAdmin   bool
	CreatedAt time.Time
}

// Store reads and writes profiles.
type Store interface {
	Get(ctx context.Context, userID uuid.UUID) (*Profile, error)
	// EmailFor returns just the email address; it satisfies the email
	// package's Directory interface.
	EmailFor(ctx context.Context, userID uuid.UUID) (string, error)
	Upsert(ctx context.Context, p *Profile) error
}

type pgStore struct {
	pool *pgxpool.Pool
}

// NewStore returns a pgx-backed profile store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) Get(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT user_id, email, coalesce(full_name, ''), is_admin, created_at
		 FROM profiles WHERE user_id = $1`, userID)

	var p Profile
	err := row.Scan(&p.UserID, &p.Email, &p.FullName, &p.IsAdmin, &p.CreatedAt)
	if pg.IsNotFound(err) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *pgStore) EmailFor(ctx context.Context, userID uuid.UUID) (string, error) {
	var email string
	err := s.pool.QueryRow(ctx,
		`SELECT email FROM profiles WHERE user_id = $1`, userID).Scan(&email)
	if pg.IsNotFound(err) {
		return "", ErrProfileNotFound
	}
	if err != nil {
		return "", err
	}
	return email, nil
}

func (s *pgStore) Upsert(ctx context.Context, p *Profile) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (user_id, email, full_name, is_admin)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET
		   email = excluded.email,
		   full_name = excluded.full_name,
		   is_admin = excluded.is_admin`,
		p.UserID, p.Email, p.FullName, p.IsAdmin)
	return err
}
