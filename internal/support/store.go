package support

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fxforge/platform/internal/pg"
)

// Store persists tickets.
type Store interface {
	Insert(ctx context.Context, t *Ticket) error
	Get(ctx context.Context, id uuid.UUID) (*Ticket, error)
	List(ctx context.Context, status Status) ([]Ticket, error)
	SetStatus(ctx context.Context, id uuid.UUID, status Status) error
}

type pgStore struct {
	pool *pgxpool.Pool
}

// NewStore returns a pgx-backed ticket store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

const ticketColumns = `id, name, email, topic, message, status, created_at, updated_at`

func (s *pgStore) Insert(ctx context.Context, t *Ticket) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO support_tickets (id, name, email, topic, message, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.Name, t.Email, t.Topic, t.Message, t.Status)
	return err
}

func (s *pgStore) Get(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM support_tickets WHERE id = $1`, id)
	return scanTicket(row)
}

func (s *pgStore) List(ctx context.Context, status Status) ([]Ticket, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+ticketColumns+` FROM support_tickets
		 WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

func (s *pgStore) SetStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE support_tickets SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTicketNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*Ticket, error) {
	var t Ticket
	err := row.Scan(&t.ID, &t.Name, &t.Email, &t.Topic, &t.Message,
		&t.Status, &t.CreatedAt, &t.UpdatedAt)
	if pg.IsNotFound(err) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
