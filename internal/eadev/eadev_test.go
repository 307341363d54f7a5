package eadev_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxforge/platform/internal/eadev"
	"github.com/fxforge/platform/internal/email"
)

type memStore struct {
	requests map[uuid.UUID]*eadev.Request
}

func newMemStore() *memStore {
	return &memStore{requests: map[uuid.UUID]*eadev.Request{}}
}

func (m *memStore) Insert(_ context.Context, req *eadev.Request) error {
	cp := *req
	m.requests[req.ID] = &cp
	return nil
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (*eadev.Request, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, eadev.ErrRequestNotFound
	}
	cp := *req
	return &cp, nil
}

func (m *memStore) ListByUser(_ context.Context, userID uuid.UUID) ([]eadev.Request, error) {
	var out []eadev.Request
	for _, req := range m.requests {
		if req.UserID == userID {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (m *memStore) List(_ context.Context, status eadev.Status) ([]eadev.Request, error) {
	var out []eadev.Request
	for _, req := range m.requests {
		if status == "" || req.Status == status {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (m *memStore) SetStatus(_ context.Context, id uuid.UUID, status eadev.Status) error {
	req, ok := m.requests[id]
	if !ok {
		return eadev.ErrRequestNotFound
	}
	req.Status = status
	return nil
}

type recordingSender struct {
	sent []email.SendParams
}

func (s *recordingSender) SendEmail(_ context.Context, p email.SendParams) error {
	s.sent = append(s.sent, p)
	return nil
}

type stubDirectory map[uuid.UUID]string

func (d stubDirectory) EmailFor(_ context.Context, userID uuid.UUID) (string, error) {
	return d[userID], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func submitRequest(t *testing.T, svc *eadev.Service, userID uuid.UUID) *eadev.Request {
	t.Helper()
	req, err := svc.Submit(context.Background(), eadev.SubmitParams{
		UserID:       userID,
		StrategyName: "London breakout scalper",
		Requirements: "Trade GBPUSD at the London open with a trailing stop.",
	})
	require.NoError(t, err)
	return req
}

func TestSubmitCreatesPendingRequest(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := eadev.NewService(store, nil, nil, discardLogger())
	userID := uuid.New()

	req := submitRequest(t, svc, userID)
	assert.Equal(t, eadev.StatusPending, req.Status)

	mine, err := svc.ListMine(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestSubmitRequiresFields(t *testing.T) {
	t.Parallel()

	svc := eadev.NewService(newMemStore(), nil, nil, discardLogger())
	_, err := svc.Submit(context.Background(), eadev.SubmitParams{
		UserID:       uuid.New(),
		StrategyName: "  ",
		Requirements: "something",
	})
	assert.ErrorIs(t, err, eadev.ErrMissingFields)
}

func TestDecideApproveEmailsTrader(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	sender := &recordingSender{}
	userID := uuid.New()
	users := stubDirectory{userID: "trader@example.com"}
	svc := eadev.NewService(store, sender, users, discardLogger())
	req := submitRequest(t, svc, userID)

	decided, err := svc.Decide(context.Background(), req.ID, true)
	require.NoError(t, err)
	assert.Equal(t, eadev.StatusApproved, decided.Status)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "trader@example.com", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Subject, "approved")
}

func TestDecideReject(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	sender := &recordingSender{}
	userID := uuid.New()
	svc := eadev.NewService(store, sender, stubDirectory{userID: "t@example.com"}, discardLogger())
	req := submitRequest(t, svc, userID)

	decided, err := svc.Decide(context.Background(), req.ID, false)
	require.NoError(t, err)
	assert.Equal(t, eadev.StatusRejected, decided.Status)

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Subject, "Update")
}

func TestDecideTwiceFails(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := eadev.NewService(store, nil, nil, discardLogger())
	req := submitRequest(t, svc, uuid.New())

	_, err := svc.Decide(context.Background(), req.ID, true)
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), req.ID, false)
	assert.ErrorIs(t, err, eadev.ErrAlreadyDecided)
}

func TestDecideUnknownRequest(t *testing.T) {
	t.Parallel()

	svc := eadev.NewService(newMemStore(), nil, nil, discardLogger())
	_, err := svc.Decide(context.Background(), uuid.New(), true)
	assert.ErrorIs(t, err, eadev.ErrRequestNotFound)
}
