package license

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionLicense is a session joined with the parent license fields the
// heartbeat check needs.
type SessionLicense struct {
	Session
	LicenseStatus    Status
	LicenseExpiresAt time.Time
}

// Store persists licenses, sessions, the validation audit trail, and the
// webhook event ledger.
type Store interface {
	// InsertEvent appends to the idempotency ledger. A replayed event id
	// returns ErrDuplicateEvent.
	InsertEvent(ctx context.Context, ev Event) error

	// InsertLicense creates a license row. A colliding key returns
	// ErrDuplicateKey so the caller can regenerate and retry.
	InsertLicense(ctx context.Context, l *License) error

	GetByID(ctx context.Context, id uuid.UUID) (*License, error)
	GetByKey(ctx context.Context, key string) (*License, error)
	GetByCheckoutID(ctx context.Context, provider, checkoutID string) (*License, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]License, error)
	SetStatus(ctx context.Context, id uuid.UUID, status Status) error
	BindHardware(ctx context.Context, id uuid.UUID, fingerprint string) error
	TouchValidation(ctx context.Context, id uuid.UUID, at time.Time) error

	CountActiveSessions(ctx context.Context, licenseID uuid.UUID) (int, error)
	ActiveSessionByInstance(ctx context.Context, licenseID uuid.UUID, instanceID string) (*Session, error)
	// UpsertSession creates or replaces the session for an EA instance,
	// assigning a fresh token.
	UpsertSession(ctx context.Context, s *Session) error
	// RefreshSession advances the heartbeat and rolling expiry of an active
	// session and returns it joined with its license; ErrSessionNotFound when
	// no active session matches.
	RefreshSession(ctx context.Context, token, instanceID string, heartbeat, expiry time.Time) (*SessionLicense, error)
	DeactivateSession(ctx context.Context, id uuid.UUID) error
	DeactivateExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	RecordValidation(ctx context.Context, rec ValidationRecord) error
}
