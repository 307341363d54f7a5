package discount

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fxforge/platform/internal/pg"
)

// Store persists campaigns.
type Store interface {
	Insert(ctx context.Context, c *Campaign) error
	Update(ctx context.Context, c *Campaign) error
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*Campaign, error)
	GetByCode(ctx context.Context, code string) (*Campaign, error)
	List(ctx context.Context) ([]Campaign, error)
	// ListLive returns campaigns live at the given time.
	ListLive(ctx context.Context, now time.Time) ([]Campaign, error)
	// IncrementRedemption bumps the redemption counter after a paid checkout.
	IncrementRedemption(ctx context.Context, id uuid.UUID) error
}

type pgStore struct {
	pool *pgxpool.Pool
}

// NewStore returns a pgx-backed campaign store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

const campaignColumns = `id, name, coalesce(promo_code, ''), discount_type, discount_value,
	coalesce(product_ids, '{}'), active, starts_at, ends_at,
	coalesce(max_redemptions, 0), redemption_count, created_at`

func (s *pgStore) Insert(ctx context.Context, c *Campaign) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO discount_campaigns
		   (id, name, promo_code, discount_type, discount_value, product_ids,
		    active, starts_at, ends_at, max_redemptions)
		 VALUES ($1, $2, nullif($3, ''), $4, $5, $6, $7, $8, $9, nullif($10, 0))`,
		c.ID, c.Name, c.PromoCode, c.Type, c.Value, c.ProductIDs,
		c.Active, c.StartsAt, c.EndsAt, c.MaxRedemptions)
	if pg.IsDuplicateKey(err) {
		return ErrDuplicateCode
	}
	return err
}

func (s *pgStore) Update(ctx context.Context, c *Campaign) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE discount_campaigns SET
		   name = $2, promo_code = nullif($3, ''), discount_type = $4,
		   discount_value = $5, product_ids = $6, active = $7,
		   starts_at = $8, ends_at = $9, max_redemptions = nullif($10, 0)
		 WHERE id = $1`,
		c.ID, c.Name, c.PromoCode, c.Type, c.Value, c.ProductIDs,
		c.Active, c.StartsAt, c.EndsAt, c.MaxRedemptions)
	if pg.IsDuplicateKey(err) {
		return ErrDuplicateCode
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

func (s *pgStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM discount_campaigns WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

func (s *pgStore) Get(ctx context.Context, id uuid.UUID) (*Campaign, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+campaignColumns+` FROM discount_campaigns WHERE id = $1`, id)
	return scanCampaign(row)
}

func (s *pgStore) GetByCode(ctx context.Context, code string) (*Campaign, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+campaignColumns+` FROM discount_campaigns WHERE promo_code = $1`, code)
	return scanCampaign(row)
}

func (s *pgStore) List(ctx context.Context) ([]Campaign, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+campaignColumns+` FROM discount_campaigns ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (s *pgStore) ListLive(ctx context.Context, now time.Time) ([]Campaign, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+campaignColumns+` FROM discount_campaigns
		 WHERE active AND starts_at <= $1 AND ends_at >= $1
		   AND (max_redemptions IS NULL OR redemption_count < max_redemptions)
		 ORDER BY created_at DESC`, now)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (s *pgStore) IncrementRedemption(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE discount_campaigns SET redemption_count = redemption_count + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*Campaign, error) {
	var c Campaign
	err := row.Scan(&c.ID, &c.Name, &c.PromoCode, &c.Type, &c.Value, &c.ProductIDs,
		&c.Active, &c.StartsAt, &c.EndsAt, &c.MaxRedemptions, &c.RedemptionCount, &c.CreatedAt)
	if pg.IsNotFound(err) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func collect(rows pgx.Rows) ([]Campaign, error) {
	defer rows.Close()
	var campaigns []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}
