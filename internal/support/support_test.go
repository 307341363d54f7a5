package support_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxforge/platform/internal/email"
	"github.com/fxforge/platform/internal/support"
)

type memStore struct {
	tickets map[uuid.UUID]*support.Ticket
}

func newMemStore() *memStore {
	return &memStore{tickets: map[uuid.UUID]*support.Ticket{}}
}

func (m *memStore) Insert(_ context.Context, t *support.Ticket) error {
	cp := *t
	m.tickets[t.ID] = &cp
	return nil
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (*support.Ticket, error) {
	t, ok := m.tickets[id]
	if !ok {
		return nil, support.ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) List(_ context.Context, status support.Status) ([]support.Ticket, error) {
	var out []support.Ticket
	for _, t := range m.tickets {
		if status == "" || t.Status == status {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) SetStatus(_ context.Context, id uuid.UUID, status support.Status) error {
	t, ok := m.tickets[id]
	if !ok {
		return support.ErrTicketNotFound
	}
	t.Status = status
	return nil
}

type recordingSender struct {
	sent []email.SendParams
	fail error
}

func (s *recordingSender) SendEmail(_ context.Context, p email.SendParams) error {
	if s.fail != nil {
		return s.fail
	}
	s.sent = append(s.sent, p)
	return nil
}

func submitTicket(t *testing.T, svc *support.Service) *support.Ticket {
	t.Helper()
	ticket, err := svc.Submit(context.Background(), support.SubmitParams{
		Name:    "Sam Customer",
		Email:   "sam@example.com",
		Topic:   "License activation",
		Message: "My terminal says the key is invalid.",
	})
	require.NoError(t, err)
	return ticket
}

func TestSubmitCreatesPendingTicket(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := support.NewService(store, &recordingSender{})

	ticket := submitTicket(t, svc)
	assert.Equal(t, support.StatusPending, ticket.Status)

	got, err := svc.Get(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "License activation", got.Topic)
}

func TestSubmitRequiresAllFields(t *testing.T) {
	t.Parallel()

	svc := support.NewService(newMemStore(), &recordingSender{})
	_, err := svc.Submit(context.Background(), support.SubmitParams{
		Name:  "Sam",
		Email: "sam@example.com",
		Topic: " ",
	})
	assert.ErrorIs(t, err, support.ErrMissingFields)
}

func TestReplyEmailsCustomerAndAdvancesStatus(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	sender := &recordingSender{}
	svc := support.NewService(store, sender)
	ticket := submitTicket(t, svc)

	replied, err := svc.Reply(context.Background(), ticket.ID, support.ReplyParams{
		Subject: "Re: License activation",
		Message: "Please reinstall the EA and try again.",
	})
	require.NoError(t, err)
	assert.Equal(t, support.StatusInProgress, replied.Status)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "sam@example.com", sender.sent[0].To)
	assert.Equal(t, "Re: License activation", sender.sent[0].Subject)
	assert.Contains(t, sender.sent[0].BodyHTML, "Sam Customer")
}

func TestReplyKeepsInProgressStatus(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	sender := &recordingSender{}
	svc := support.NewService(store, sender)
	ticket := submitTicket(t, svc)

	_, err := svc.Reply(context.Background(), ticket.ID, support.ReplyParams{Subject: "Re:", Message: "First."})
	require.NoError(t, err)
	replied, err := svc.Reply(context.Background(), ticket.ID, support.ReplyParams{Subject: "Re:", Message: "Second."})
	require.NoError(t, err)

	assert.Equal(t, support.StatusInProgress, replied.Status)
	assert.Len(t, sender.sent, 2)
}

func TestReplyToResolvedTicketFails(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := support.NewService(store, &recordingSender{})
	ticket := submitTicket(t, svc)
	require.NoError(t, svc.Resolve(context.Background(), ticket.ID))

	_, err := svc.Reply(context.Background(), ticket.ID, support.ReplyParams{Subject: "Re:", Message: "Hi"})
	assert.ErrorIs(t, err, support.ErrTicketResolved)
}

func TestReplyFailedEmailKeepsStatus(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	sender := &recordingSender{fail: errors.New("postmark down")}
	svc := support.NewService(store, sender)
	ticket := submitTicket(t, svc)

	_, err := svc.Reply(context.Background(), ticket.ID, support.ReplyParams{Subject: "Re:", Message: "Hi"})
	require.Error(t, err)

	got, err := svc.Get(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, support.StatusPending, got.Status)
}

func TestListFiltersByStatus(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	svc := support.NewService(store, &recordingSender{})
	first := submitTicket(t, svc)
	submitTicket(t, svc)
	require.NoError(t, svc.Resolve(context.Background(), first.ID))

	pending, err := svc.List(context.Background(), support.StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	all, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
