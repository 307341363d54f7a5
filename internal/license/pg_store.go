package license

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fxforge/platform/internal/pg"
)

type pgStore struct {
	pool *pgxpool.Pool
}

// NewStore returns the pgx-backed license store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) InsertEvent(ctx context.Context, ev Event) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO webhook_events (provider, event_id, event_type, payload) VALUES ($1, $2, $3, $4)`,
		ev.Provider, ev.EventID, ev.EventType, ev.Payload)
	if pg.IsDuplicateKey(err) {
		return ErrDuplicateEvent
	}
	return err
}

const licenseColumns = `id, user_id, license_key, license_type, status, issued_at, expires_at,
	ea_product_id, product_code, ea_plan_id, plan_tier, plan_term, max_accounts, max_concurrent_sessions,
	coalesce(hardware_fingerprint, ''), provider, coalesce(checkout_id, ''),
	coalesce(subscription_id, ''), coalesce(order_id, ''), validation_count, last_validated_at`

func (s *pgStore) InsertLicense(ctx context.Context, l *License) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO licenses (id, user_id, license_key, license_type, status, issued_at, expires_at,
			ea_product_id, product_code, ea_plan_id, plan_tier, plan_term, max_accounts, max_concurrent_sessions,
			provider, checkout_id, subscription_id, order_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			nullif($16, ''), nullif($17, ''), nullif($18, ''))`,
		l.ID, l.UserID, l.Key, l.Type, l.Status, l.IssuedAt, l.ExpiresAt,
		l.EAProductID, l.ProductCode, l.PlanID, l.PlanTier, l.PlanTerm, l.MaxAccounts, l.MaxConcurrentSessions,
		l.Provider, l.CheckoutID, l.SubscriptionID, l.OrderID)
	if pg.IsDuplicateKey(err) {
		return ErrDuplicateKey
	}
	return err
}

func (s *pgStore) scanLicense(row interface{ Scan(...any) error }) (*License, error) {
	var l License
	var fingerprint, provider, checkoutID, subscriptionID, orderID string
	err := row.Scan(&l.ID, &l.UserID, &l.Key, &l.Type, &l.Status, &l.IssuedAt, &l.ExpiresAt,
		&l.EAProductID, &l.ProductCode, &l.PlanID, &l.PlanTier, &l.PlanTerm, &l.MaxAccounts, &l.MaxConcurrentSessions,
		&fingerprint, &provider, &checkoutID, &subscriptionID, &orderID,
		&l.ValidationCount, &l.LastValidatedAt)
	if pg.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	l.HardwareFingerprint = fingerprint
	l.Provider = provider
	l.CheckoutID = checkoutID
	l.SubscriptionID = subscriptionID
	l.OrderID = orderID
	return &l, nil
}

func (s *pgStore) GetByID(ctx context.Context, id uuid.UUID) (*License, error) {
	return s.scanLicense(s.pool.QueryRow(ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE id = $1`, id))
}

func (s *pgStore) GetByKey(ctx context.Context, key string) (*License, error) {
	return s.scanLicense(s.pool.QueryRow(ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE license_key = $1`, key))
}

func (s *pgStore) GetByCheckoutID(ctx context.Context, provider, checkoutID string) (*License, error) {
	return s.scanLicense(s.pool.QueryRow(ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE provider = $1 AND checkout_id = $2`,
		provider, checkoutID))
}

func (s *pgStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]License, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE user_id = $1 ORDER BY issued_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var licenses []License
	for rows.Next() {
		l, err := s.scanLicense(rows)
		if err != nil {
			return nil, err
		}
		licenses = append(licenses, *l)
	}
	return licenses, rows.Err()
}

func (s *pgStore) SetStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := s.pool.Exec(ctx, `UPDATE licenses SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) BindHardware(ctx context.Context, id uuid.UUID, fingerprint string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE licenses SET hardware_fingerprint = $2 WHERE id = $1 AND hardware_fingerprint IS NULL`,
		id, fingerprint)
	return err
}

func (s *pgStore) TouchValidation(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE licenses SET validation_count = validation_count + 1, last_validated_at = $2 WHERE id = $1`,
		id, at)
	return err
}

func (s *pgStore) CountActiveSessions(ctx context.Context, licenseID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM license_sessions WHERE license_id = $1 AND is_active`, licenseID).Scan(&n)
	return n, err
}

func (s *pgStore) ActiveSessionByInstance(ctx context.Context, licenseID uuid.UUID, instanceID string) (*Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, license_id, session_token, ea_instance_id, coalesce(hardware_fingerprint, ''),
			coalesce(ip_address, ''), coalesce(user_agent, ''), coalesce(mt5_account, ''),
			last_heartbeat, expires_at, is_active
		 FROM license_sessions WHERE license_id = $1 AND ea_instance_id = $2 AND is_active`,
		licenseID, instanceID)

	var sess Session
	err := row.Scan(&sess.ID, &sess.LicenseID, &sess.Token, &sess.EAInstanceID, &sess.HardwareFingerprint,
		&sess.IPAddress, &sess.UserAgent, &sess.MT5Account, &sess.LastHeartbeat, &sess.ExpiresAt, &sess.Active)
	if pg.IsNotFound(err) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *pgStore) UpsertSession(ctx context.Context, sess *Session) error {
	// One session row per EA instance; a reconnect replaces the token and
	// heartbeat window in place.
	_, err := s.pool.Exec(ctx,
		`INSERT INTO license_sessions (id, license_id, session_token, ea_instance_id, hardware_fingerprint,
			ip_address, user_agent, mt5_account, last_heartbeat, expires_at, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (ea_instance_id) DO UPDATE SET
			license_id = excluded.license_id,
			session_token = excluded.session_token,
			hardware_fingerprint = excluded.hardware_fingerprint,
			ip_address = excluded.ip_address,
			user_agent = excluded.user_agent,
			mt5_account = excluded.mt5_account,
			last_heartbeat = excluded.last_heartbeat,
			expires_at = excluded.expires_at,
			is_active = excluded.is_active`,
		sess.ID, sess.LicenseID, sess.Token, sess.EAInstanceID, sess.HardwareFingerprint,
		sess.IPAddress, sess.UserAgent, sess.MT5Account, sess.LastHeartbeat, sess.ExpiresAt, sess.Active)
	return err
}

func (s *pgStore) RefreshSession(ctx context.Context, token, instanceID string, heartbeat, expiry time.Time) (*SessionLicense, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE license_sessions sess
		 SET last_heartbeat = $3, expires_at = $4
		 FROM licenses l
		 WHERE sess.session_token = $1 AND sess.ea_instance_id = $2 AND sess.is_active
			AND l.id = sess.license_id
		 RETURNING sess.id, sess.license_id, sess.session_token, sess.ea_instance_id,
			coalesce(sess.hardware_fingerprint, ''), coalesce(sess.ip_address, ''),
			coalesce(sess.user_agent, ''), coalesce(sess.mt5_account, ''),
			sess.last_heartbeat, sess.expires_at, sess.is_active, l.status, l.expires_at`,
		token, instanceID, heartbeat, expiry)

	var out SessionLicense
	err := row.Scan(&out.ID, &out.LicenseID, &out.Token, &out.EAInstanceID, &out.HardwareFingerprint,
		&out.IPAddress, &out.UserAgent, &out.MT5Account, &out.LastHeartbeat, &out.ExpiresAt, &out.Active,
		&out.LicenseStatus, &out.LicenseExpiresAt)
	if pg.IsNotFound(err) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *pgStore) DeactivateSession(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE license_sessions SET is_active = false WHERE id = $1`, id)
	return err
}

func (s *pgStore) DeactivateExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE license_sessions SET is_active = false WHERE is_active AND expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *pgStore) RecordValidation(ctx context.Context, rec ValidationRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO license_validations (license_id, session_id, validation_result, hardware_fingerprint,
			ip_address, user_agent, mt5_account, ea_instance_id, failure_reason, suspicious_activity)
		 VALUES (nullif($1, '00000000-0000-0000-0000-000000000000'::uuid),
			nullif($2, '00000000-0000-0000-0000-000000000000'::uuid),
			$3, $4, $5, $6, $7, $8, nullif($9, ''), $10)`,
		rec.LicenseID, rec.SessionID, rec.Result, rec.HardwareFingerprint,
		rec.IPAddress, rec.UserAgent, rec.MT5Account, rec.EAInstanceID, rec.FailureReason, rec.Suspicious)
	return err
}
