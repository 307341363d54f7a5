package affiliate

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fxforge/platform/internal/pg"
)

// Store persists applications, affiliates, and the tracking rows.
type Store interface {
	InsertApplication(ctx context.Context, app *Application) error
	GetApplication(ctx context.Context, id uuid.UUID) (*Application, error)
	ApplicationByUser(ctx context.Context, userID uuid.UUID) (*Application, error)
	ListApplications(ctx context.Context, status ApplicationStatus) ([]Application, error)
	SetApplicationStatus(ctx context.Context, id uuid.UUID, status ApplicationStatus) error

	// InsertAffiliate creates the affiliate row; a colliding referral code
	// returns ErrDuplicateCode.
	InsertAffiliate(ctx context.Context, a *Affiliate) error
	AffiliateByUser(ctx context.Context, userID uuid.UUID) (*Affiliate, error)
	AffiliateByCode(ctx context.Context, code string) (*Affiliate, error)

	InsertClick(ctx context.Context, affiliateID uuid.UUID) error
	InsertSignup(ctx context.Context, affiliateID, referredUserID uuid.UUID) error
	InsertConversion(ctx context.Context, affiliateID uuid.UUID, amountCents, commissionCents int64) error
	StatsFor(ctx context.Context, affiliateID uuid.UUID) (*Stats, error)
}

type pgStore struct {
	pool *pgxpool.Pool
}

// NewStore returns a pgx-backed affiliate store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) InsertApplication(ctx context.Context, app *Application) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO affiliate_applications (id, user_id, email, full_name, social_link, status)
		 VALUES ($1, $2, $3, $4, nullif($5, ''), $6)`,
		app.ID, app.UserID, app.Email, app.FullName, app.SocialLink, app.Status)
	if pg.IsDuplicateKey(err) {
		return ErrAlreadyApplied
	}
	return err
}

const applicationColumns = `id, user_id, email, full_name, coalesce(social_link, ''), status, created_at`

func (s *pgStore) GetApplication(ctx context.Context, id uuid.UUID) (*Application, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM affiliate_applications WHERE id = $1`, id)
	return scanApplication(row)
}

func (s *pgStore) ApplicationByUser(ctx context.Context, userID uuid.UUID) (*Application, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM affiliate_applications WHERE user_id = $1`, userID)
	return scanApplication(row)
}

func (s *pgStore) ListApplications(ctx context.Context, status ApplicationStatus) ([]Application, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+applicationColumns+` FROM affiliate_applications
		 WHERE ($1 = '' OR status = $1) ORDER BY created_at`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *app)
	}
	return apps, rows.Err()
}

func (s *pgStore) SetApplicationStatus(ctx context.Context, id uuid.UUID, status ApplicationStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE affiliate_applications SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrApplicationNotFound
	}
	return nil
}

func (s *pgStore) InsertAffiliate(ctx context.Context, a *Affiliate) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO affiliates (id, user_id, referral_code, commission_rate_bps, payout_status)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.UserID, a.ReferralCode, a.CommissionRateBps, a.PayoutStatus)
	if pg.IsDuplicateKey(err) {
		return ErrDuplicateCode
	}
	return err
}

const affiliateColumns = `id, user_id, referral_code, commission_rate_bps, payout_status, created_at`

func (s *pgStore) AffiliateByUser(ctx context.Context, userID uuid.UUID) (*Affiliate, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+affiliateColumns+` FROM affiliates WHERE user_id = $1`, userID)
	return scanAffiliate(row)
}

func (s *pgStore) AffiliateByCode(ctx context.Context, code string) (*Affiliate, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+affiliateColumns+` FROM affiliates WHERE referral_code = $1`, code)
	return scanAffiliate(row)
}

func (s *pgStore) InsertClick(ctx context.Context, affiliateID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO affiliate_clicks (affiliate_id) VALUES ($1)`, affiliateID)
	return err
}

func (s *pgStore) InsertSignup(ctx context.Context, affiliateID, referredUserID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO affiliate_signups (affiliate_id, referred_user_id) VALUES ($1, $2)`,
		affiliateID, referredUserID)
	return err
}

func (s *pgStore) InsertConversion(ctx context.Context, affiliateID uuid.UUID, amountCents, commissionCents int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO affiliate_conversions (affiliate_id, amount_cents, commission_cents)
		 VALUES ($1, $2, $3)`,
		affiliateID, amountCents, commissionCents)
	return err
}

func (s *pgStore) StatsFor(ctx context.Context, affiliateID uuid.UUID) (*Stats, error) {
	row := s.pool.QueryRow(ctx, `SELECT
		(SELECT count(*) FROM affiliate_clicks WHERE affiliate_id = $1),
		(SELECT count(*) FROM affiliate_signups WHERE affiliate_id = $1),
		(SELECT count(*) FROM affiliate_conversions WHERE affiliate_id = $1),
		(SELECT coalesce(sum(commission_cents), 0) FROM affiliate_conversions WHERE affiliate_id = $1)`,
		affiliateID)

	var st Stats
	if err := row.Scan(&st.Clicks, &st.Signups, &st.Conversions, &st.EarnedCents); err != nil {
		return nil, err
	}
	return &st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*Application, error) {
	var app Application
	err := row.Scan(&app.ID, &app.UserID, &app.Email, &app.FullName, &app.SocialLink,
		&app.Status, &app.CreatedAt)
	if pg.IsNotFound(err) {
		return nil, ErrApplicationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func scanAffiliate(row rowScanner) (*Affiliate, error) {
	var a Affiliate
	err := row.Scan(&a.ID, &a.UserID, &a.ReferralCode, &a.CommissionRateBps,
		&a.PayoutStatus, &a.CreatedAt)
	if pg.IsNotFound(err) {
		return nil, ErrAffiliateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
