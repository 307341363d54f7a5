package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fxforge/platform/internal/plan"
)

// keyAllocationAttempts bounds the insert-retry loop on key collisions. The
// keyspace makes even one collision vanishingly rare.
const keyAllocationAttempts = 5

// RateLimiter caps validation calls per license.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// EdgeSyncer replicates license state to the edge cache. Implementations are
// best-effort; the service logs and swallows their failures.
type EdgeSyncer interface {
	SyncLicense(ctx context.Context, l *License) error
	RemoveLicense(ctx context.Context, key string) error
}

// Notifier sends customer-facing notifications about license changes.
type Notifier interface {
	LicenseIssued(ctx context.Context, l *License) error
}

// Service implements license issuance, validation, and heartbeat processing.
type Service struct {
	store    Store
	plans    plan.Store
	limiter  RateLimiter
	edge     EdgeSyncer
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
}

// Option configures optional service collaborators.
type Option func(*Service)

func WithRateLimiter(rl RateLimiter) Option {
	return func(s *Service) { s.limiter = rl }
}

func WithEdgeSyncer(e EdgeSyncer) Option {
	return func(s *Service) { s.edge = e }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock overrides the time source, for tests with fixed time values.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the license service. Store and plan catalog are
// required; everything else is optional.
func NewService(store Store, plans plan.Store, log *slog.Logger, opts ...Option) *Service {
	if store == nil {
		panic("license: Store is required")
	}
	if plans == nil {
		panic("license: plan.Store is required")
	}

	s := &Service{
		store: store,
		plans: plans,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordEvent appends a webhook event to the idempotency ledger. It returns
// false when the event id was seen before, in which case the caller must
// acknowledge without side effects.
func (s *Service) RecordEvent(ctx context.Context, ev Event) (bool, error) {
	err := s.store.InsertEvent(ctx, ev)
	if errors.Is(err, ErrDuplicateEvent) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("record webhook event: %w", err)
	}
	return true, nil
}

// IssueParams describes a paid checkout extracted from a webhook event.
type IssueParams struct {
	Provider       string
	UserID         uuid.UUID
	PlanID         uuid.UUID
	CheckoutID     string
	SubscriptionID string
	OrderID        string
}

// Issue creates the license for a successful payment. It is idempotent per
// checkout id: a replay returns the already-issued license with created=false.
func (s *Service) Issue(ctx context.Context, params IssueParams) (*License, bool, error) {
	if params.CheckoutID != "" {
		existing, err := s.store.GetByCheckoutID(ctx, params.Provider, params.CheckoutID)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, fmt.Errorf("lookup license by checkout: %w", err)
		}
	}

	p, err := s.plans.Get(ctx, params.PlanID)
	if err != nil {
		return nil, false, err
	}

	issuedAt := s.now()
	expiresAt, err := p.Term.ExpiryFrom(issuedAt)
	if err != nil {
		return nil, false, err
	}

	l := &License{
		ID:                    uuid.New(),
		UserID:                params.UserID,
		Type:                  TypeIndividualEA,
		Status:                StatusActive,
		IssuedAt:              issuedAt,
		ExpiresAt:             expiresAt,
		EAProductID:           p.EAID,
		ProductCode:           p.EACode,
		PlanID:                p.ID,
		PlanTier:              p.Tier,
		PlanTerm:              p.Term,
		MaxAccounts:           p.MaxAccounts,
		MaxConcurrentSessions: p.MaxAccounts,
		Provider:              params.Provider,
		CheckoutID:            params.CheckoutID,
		SubscriptionID:        params.SubscriptionID,
		OrderID:               params.OrderID,
	}

	// The unique constraint on license_key is the real uniqueness guarantee;
	// a collision just means generate again.
	for attempt := 0; attempt < keyAllocationAttempts; attempt++ {
		key, err := GenerateKey()
		if err != nil {
			return nil, false, fmt.Errorf("generate license key: %w", err)
		}
		l.Key = key

		err = s.store.InsertLicense(ctx, l)
		if errors.Is(err, ErrDuplicateKey) {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("insert license: %w", err)
		}

		s.syncToEdge(ctx, l)
		s.notifyIssued(ctx, l)
		return l, true, nil
	}

	return nil, false, ErrKeyGeneration
}

func (s *Service) syncToEdge(ctx context.Context, l *License) {
	if s.edge == nil {
		return
	}
	if err := s.edge.SyncLicense(ctx, l); err != nil {
		s.log.WarnContext(ctx, "edge license sync failed", "license_key", l.Key, "error", err)
	}
}

func (s *Service) notifyIssued(ctx context.Context, l *License) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.LicenseIssued(ctx, l); err != nil {
		s.log.WarnContext(ctx, "license issued notification failed", "license_key", l.Key, "error", err)
	}
}

// ValidateParams is one EA instance's connect request.
type ValidateParams struct {
	Key           string
	Hardware      HardwareInfo
	EAProductCode string
	EAInstanceID  string
	MT5Account    string
	IPAddress     string
	UserAgent     string
}

// ValidateResult is returned to the EA on a successful connect.
type ValidateResult struct {
	SessionToken     string
	SessionExpiresAt time.Time
	LicenseExpiresAt time.Time
	MaxSessions      int
}

// Validate checks a license key for a connecting EA instance and opens (or
// refreshes) its session. Every attempt, failed or not, lands in the audit
// trail.
func (s *Service) Validate(ctx context.Context, params ValidateParams) (*ValidateResult, error) {
	now := s.now()
	fingerprint := params.Hardware.Fingerprint()

	audit := func(rec ValidationRecord) {
		rec.HardwareFingerprint = fingerprint
		rec.IPAddress = params.IPAddress
		rec.UserAgent = params.UserAgent
		rec.MT5Account = params.MT5Account
		rec.EAInstanceID = params.EAInstanceID
		if err := s.store.RecordValidation(ctx, rec); err != nil {
			s.log.WarnContext(ctx, "validation audit write failed", "error", err)
		}
	}

	l, err := s.store.GetByKey(ctx, params.Key)
	if errors.Is(err, ErrNotFound) {
		audit(ValidationRecord{Result: ResultNotFound, FailureReason: "license not found", Suspicious: true})
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup license: %w", err)
	}

	if l.Status != StatusActive {
		audit(ValidationRecord{LicenseID: l.ID, Result: ValidationResult(l.Status),
			FailureReason: fmt.Sprintf("license status: %s", l.Status)})
		return nil, fmt.Errorf("%w: %s", ErrLicenseNotActive, l.Status)
	}

	if l.IsExpired(now) {
		if err := s.store.SetStatus(ctx, l.ID, StatusExpired); err != nil {
			s.log.WarnContext(ctx, "failed to flip license to expired", "license_id", l.ID, "error", err)
		}
		audit(ValidationRecord{LicenseID: l.ID, Result: ResultExpired, FailureReason: "license expired"})
		return nil, ErrLicenseExpired
	}

	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, l.ID.String())
		if err != nil {
			s.log.WarnContext(ctx, "rate limiter unavailable, allowing validation", "error", err)
		} else if !ok {
			return nil, ErrRateLimited
		}
	}

	if l.ProductCode != params.EAProductCode {
		audit(ValidationRecord{LicenseID: l.ID, Result: ResultRevoked, Suspicious: true,
			FailureReason: fmt.Sprintf("EA %s not authorized for this license", params.EAProductCode)})
		return nil, ErrNotAuthorized
	}

	if l.HardwareFingerprint != "" && l.HardwareFingerprint != fingerprint {
		audit(ValidationRecord{LicenseID: l.ID, Result: ResultHardwareMismatch, Suspicious: true,
			FailureReason: "hardware fingerprint mismatch"})
		return nil, ErrHardwareMismatch
	}
	if l.HardwareFingerprint == "" {
		if err := s.store.BindHardware(ctx, l.ID, fingerprint); err != nil {
			s.log.WarnContext(ctx, "hardware binding failed", "license_id", l.ID, "error", err)
		}
	}

	if _, err := s.store.DeactivateExpiredSessions(ctx, now); err != nil {
		s.log.WarnContext(ctx, "expired session sweep failed", "error", err)
	}

	active, err := s.store.CountActiveSessions(ctx, l.ID)
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	if active >= l.MaxConcurrentSessions {
		// The same instance reconnecting replaces its own session and is not
		// a violation.
		if _, err := s.store.ActiveSessionByInstance(ctx, l.ID, params.EAInstanceID); err != nil {
			audit(ValidationRecord{LicenseID: l.ID, Result: ResultConcurrentExceeded,
				FailureReason: fmt.Sprintf("max concurrent sessions (%d) exceeded", l.MaxConcurrentSessions)})
			return nil, fmt.Errorf("%w: limit %d", ErrTooManySessions, l.MaxConcurrentSessions)
		}
	}

	sess := &Session{
		ID:                  uuid.New(),
		LicenseID:           l.ID,
		Token:               uuid.NewString(),
		EAInstanceID:        params.EAInstanceID,
		HardwareFingerprint: fingerprint,
		IPAddress:           params.IPAddress,
		UserAgent:           params.UserAgent,
		MT5Account:          params.MT5Account,
		LastHeartbeat:       now,
		ExpiresAt:           now.Add(SessionTTL),
		Active:              true,
	}
	if err := s.store.UpsertSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	if err := s.store.TouchValidation(ctx, l.ID, now); err != nil {
		s.log.WarnContext(ctx, "validation stat update failed", "license_id", l.ID, "error", err)
	}
	audit(ValidationRecord{LicenseID: l.ID, SessionID: sess.ID, Result: ResultValid})

	return &ValidateResult{
		SessionToken:     sess.Token,
		SessionExpiresAt: sess.ExpiresAt,
		LicenseExpiresAt: l.ExpiresAt,
		MaxSessions:      l.MaxConcurrentSessions,
	}, nil
}

// HeartbeatParams is one liveness ping from a running EA instance.
type HeartbeatParams struct {
	SessionToken string
	EAInstanceID string
}

// HeartbeatResult is returned when the session is still good.
type HeartbeatResult struct {
	SessionExpiresAt time.Time
	LicenseStatus    Status
}

// Heartbeat refreshes the session's rolling expiry and re-checks the parent
// license. A non-active or expired license deactivates the session; the
// caller should translate those errors into a terminate instruction. The
// license flip and session deactivation are two separate writes; the brief
// inconsistency window between them is accepted.
func (s *Service) Heartbeat(ctx context.Context, params HeartbeatParams) (*HeartbeatResult, error) {
	now := s.now()

	sl, err := s.store.RefreshSession(ctx, params.SessionToken, params.EAInstanceID, now, now.Add(SessionTTL))
	if errors.Is(err, ErrSessionNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}

	if sl.LicenseStatus != StatusActive {
		if err := s.store.DeactivateSession(ctx, sl.ID); err != nil {
			s.log.WarnContext(ctx, "session deactivation failed", "session_id", sl.ID, "error", err)
		}
		return nil, fmt.Errorf("%w: %s", ErrLicenseNotActive, sl.LicenseStatus)
	}

	if !sl.LicenseExpiresAt.IsZero() && sl.LicenseExpiresAt.Before(now) {
		if err := s.store.SetStatus(ctx, sl.LicenseID, StatusExpired); err != nil {
			s.log.WarnContext(ctx, "failed to flip license to expired", "license_id", sl.LicenseID, "error", err)
		}
		if err := s.store.DeactivateSession(ctx, sl.ID); err != nil {
			s.log.WarnContext(ctx, "session deactivation failed", "session_id", sl.ID, "error", err)
		}
		return nil, ErrLicenseExpired
	}

	if _, err := s.store.DeactivateExpiredSessions(ctx, now); err != nil {
		s.log.WarnContext(ctx, "expired session sweep failed", "error", err)
	}

	return &HeartbeatResult{
		SessionExpiresAt: sl.ExpiresAt,
		LicenseStatus:    sl.LicenseStatus,
	}, nil
}

// ListByUser returns a user's licenses, newest first.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]License, error) {
	return s.store.ListByUser(ctx, userID)
}

// Revoke flips a license to revoked and removes it from the edge cache.
func (s *Service) Revoke(ctx context.Context, id uuid.UUID) error {
	l, err := s.getByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.SetStatus(ctx, id, StatusRevoked); err != nil {
		return err
	}
	if s.edge != nil {
		if err := s.edge.RemoveLicense(ctx, l.Key); err != nil {
			s.log.WarnContext(ctx, "edge license removal failed", "license_key", l.Key, "error", err)
		}
	}
	return nil
}

// Resync pushes a license's current state to the edge cache on demand.
func (s *Service) Resync(ctx context.Context, id uuid.UUID) error {
	l, err := s.getByID(ctx, id)
	if err != nil {
		return err
	}
	if s.edge == nil {
		return nil
	}
	return s.edge.SyncLicense(ctx, l)
}

func (s *Service) getByID(ctx context.Context, id uuid.UUID) (*License, error) {
	return s.store.GetByID(ctx, id)
}
