package support

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/google/uuid"

	"github.com/fxforge/platform/internal/email"
)

// Service runs the ticket workflow.
type Service struct {
	store  Store
	sender email.Sender
}

// NewService wires the support service. The sender delivers reply emails;
// with a nil sender tickets can still be filed and resolved but not replied to.
func NewService(store Store, sender email.Sender) *Service {
	return &Service{store: store, sender: sender}
}

// SubmitParams is the public contact form payload.
type SubmitParams struct {
	Name    string
	Email   string
	Topic   string
	Message string
}

// Submit files a new ticket from the contact form.
func (s *Service) Submit(ctx context.Context, p SubmitParams) (*Ticket, error) {
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Email) == "" ||
		strings.TrimSpace(p.Topic) == "" || strings.TrimSpace(p.Message) == "" {
		return nil, ErrMissingFields
	}
	t := &Ticket{
		ID:      uuid.New(),
		Name:    strings.TrimSpace(p.Name),
		Email:   strings.TrimSpace(p.Email),
		Topic:   strings.TrimSpace(p.Topic),
		Message: p.Message,
		Status:  StatusPending,
	}
	if err := s.store.Insert(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns one ticket.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	return s.store.Get(ctx, id)
}

// List returns tickets, optionally filtered by status.
func (s *Service) List(ctx context.Context, status Status) ([]Ticket, error) {
	return s.store.List(ctx, status)
}

// ReplyParams is an admin's email response to a ticket.
type ReplyParams struct {
	Subject string
	Message string
}

// Reply emails the customer. The first reply to a pending ticket moves it
// to in_progress; replying to a resolved ticket is rejected.
func (s *Service) Reply(ctx context.Context, id uuid.UUID, p ReplyParams) (*Ticket, error) {
	if strings.TrimSpace(p.Subject) == "" || strings.TrimSpace(p.Message) == "" {
		return nil, ErrReplyMissingField
	}
	if s.sender == nil {
		return nil, email.ErrFailedToSendEmail
	}
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == StatusResolved {
		return nil, ErrTicketResolved
	}

	body := fmt.Sprintf("<p>Hi %s,</p><p>%s</p><p>Regarding your request: %s</p>",
		html.EscapeString(t.Name),
		strings.ReplaceAll(html.EscapeString(p.Message), "\n", "<br>"),
		html.EscapeString(t.Topic))
	err = s.sender.SendEmail(ctx, email.SendParams{
		To:       t.Email,
		Subject:  p.Subject,
		BodyHTML: body,
		Tag:      "support-reply",
	})
	if err != nil {
		return nil, err
	}

	if t.Status == StatusPending {
		if err := s.store.SetStatus(ctx, id, StatusInProgress); err != nil {
			return nil, err
		}
		t.Status = StatusInProgress
	}
	return t, nil
}

// Resolve closes a ticket.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID) error {
	return s.store.SetStatus(ctx, id, StatusResolved)
}
