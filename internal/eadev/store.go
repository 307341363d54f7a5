package eadev

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fxforge/platform/internal/pg"
)

// Store persists development requests.
type Store interface {
	Insert(ctx context.Context, req *Request) error
	Get(ctx context.Context, id uuid.UUID) (*Request, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Request, error)
	List(ctx context.Context, status Status) ([]Request, error)
	SetStatus(ctx context.Context, id uuid.UUID, status Status) error
}

type pgStore struct {
	pool *pgxpool.Pool
}

// NewStore returns a pgx-backed request store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

const requestColumns = `id, user_id, strategy_name, requirements, status, created_at, updated_at`

func (s *pgStore) Insert(ctx context.Context, req *Request) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ea_development (id, user_id, strategy_name, requirements, status)
		 VALUES ($1, $2, $3, $4, $5)`,
		req.ID, req.UserID, req.StrategyName, req.Requirements, req.Status)
	return err
}

func (s *pgStore) Get(ctx context.Context, id uuid.UUID) (*Request, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM ea_development WHERE id = $1`, id)
	return scanRequest(row)
}

func (s *pgStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]Request, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+requestColumns+` FROM ea_development
		 WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

func (s *pgStore) List(ctx context.Context, status Status) ([]Request, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+requestColumns+` FROM ea_development
		 WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC`, string(status))
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

func (s *pgStore) SetStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE ea_development SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*Request, error) {
	var req Request
	err := row.Scan(&req.ID, &req.UserID, &req.StrategyName, &req.Requirements,
		&req.Status, &req.CreatedAt, &req.UpdatedAt)
	if pg.IsNotFound(err) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func collectRequests(rows pgx.Rows) ([]Request, error) {
	defer rows.Close()
	var requests []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}
