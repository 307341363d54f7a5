package plan

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fxforge/platform/internal/pg"
)

// Store reads the plan catalog. Write access is an admin concern handled by
// migrations and the admin API.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*Plan, error)
	ListActive(ctx context.Context, eaID uuid.UUID) ([]Plan, error)
}

type pgStore struct {
	pool *pgxpool.Pool
}

// NewStore returns a pgx-backed plan store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

const planColumns = `p.id, p.ea_id, e.product_code, p.tier, p.term, p.price_cents, p.currency,
	p.max_accounts, p.is_active, coalesce(p.polar_product_id, ''), coalesce(p.stripe_price_id, ''),
	coalesce(p.polar_discount_id, '')`

const planFrom = ` FROM ea_plans p JOIN ea_products e ON e.id = p.ea_id`

func (s *pgStore) Get(ctx context.Context, id uuid.UUID) (*Plan, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+planColumns+planFrom+` WHERE p.id = $1`, id)

	var p Plan
	err := row.Scan(&p.ID, &p.EAID, &p.EACode, &p.Tier, &p.Term, &p.PriceCents, &p.Currency,
		&p.MaxAccounts, &p.Active, &p.PolarProductID, &p.StripePriceID, &p.PolarDiscountID)
	if pg.IsNotFound(err) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, errors.Join(errors.New("query plan"), err)
	}
	return &p, nil
}

func (s *pgStore) ListActive(ctx context.Context, eaID uuid.UUID) ([]Plan, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+planColumns+planFrom+` WHERE p.ea_id = $1 AND p.is_active ORDER BY p.price_cents`, eaID)
	if err != nil {
		return nil, errors.Join(errors.New("list plans"), err)
	}
	defer rows.Close()

	var plans []Plan
	for rows.Next() {
		var p Plan
		if err := rows.Scan(&p.ID, &p.EAID, &p.EACode, &p.Tier, &p.Term, &p.PriceCents, &p.Currency,
			&p.MaxAccounts, &p.Active, &p.PolarProductID, &p.StripePriceID, &p.PolarDiscountID); err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}
