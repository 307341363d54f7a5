package eadev

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/fxforge/platform/internal/email"
)

// Directory resolves a user's email for decision notifications.
type Directory interface {
	EmailFor(ctx context.Context, userID uuid.UUID) (string, error)
}

// Service runs the development-request workflow.
type Service struct {
	store  Store
	sender email.Sender
	users  Directory
	log    *slog.Logger
}

// NewService wires the service. sender and users may be nil; decision
// emails are then skipped.
func NewService(store Store, sender email.Sender, users Directory, log *slog.Logger) *Service {
	return &Service{store: store, sender: sender, users: users, log: log}
}

// SubmitParams is a trader's custom EA inquiry.
type SubmitParams struct {
	UserID       uuid.UUID
	StrategyName string
	Requirements string
}

// Submit files a new development request.
func (s *Service) Submit(ctx context.Context, p SubmitParams) (*Request, error) {
	if strings.TrimSpace(p.StrategyName) == "" || strings.TrimSpace(p.Requirements) == "" {
		return nil, ErrMissingFields
	}
	req := &Request{
		ID:           uuid.New(),
		UserID:       p.UserID,
		StrategyName: strings.TrimSpace(p.StrategyName),
		Requirements: p.Requirements,
		Status:       StatusPending,
	}
	if err := s.store.Insert(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// ListMine returns the caller's own requests.
func (s *Service) ListMine(ctx context.Context, userID uuid.UUID) ([]Request, error) {
	return s.store.ListByUser(ctx, userID)
}

// List returns requests for the admin queue, optionally filtered by status.
func (s *Service) List(ctx context.Context, status Status) ([]Request, error) {
	return s.store.List(ctx, status)
}

// Decide approves or rejects a pending request and emails the trader.
func (s *Service) Decide(ctx context.Context, id uuid.UUID, approve bool) (*Request, error) {
	req, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPending {
		return nil, ErrAlreadyDecided
	}

	status := StatusRejected
	if approve {
		status = StatusApproved
	}
	if err := s.store.SetStatus(ctx, id, status); err != nil {
		return nil, err
	}
	req.Status = status

	s.notifyDecision(ctx, req)
	return req, nil
}

func (s *Service) notifyDecision(ctx context.Context, req *Request) {
	if s.sender == nil || s.users == nil {
		return
	}
	to, err := s.users.EmailFor(ctx, req.UserID)
	if err != nil {
		s.log.WarnContext(ctx, "email lookup failed for dev request decision",
			slog.String("request_id", req.ID.String()), slog.Any("error", err))
		return
	}

	name := html.EscapeString(req.StrategyName)
	subject := fmt.Sprintf("Your EA development request %q was approved", req.StrategyName)
	body := fmt.Sprintf("<p>Good news! Your request to build <strong>%s</strong> has been approved. Our team will reach out with a quote and timeline.</p>", name)
	if req.Status == StatusRejected {
		subject = fmt.Sprintf("Update on your EA development request %q", req.StrategyName)
		body = fmt.Sprintf("<p>Thanks for your interest. We are not able to take on <strong>%s</strong> at this time.</p>", name)
	}

	err = s.sender.SendEmail(ctx, email.SendParams{
		To:       to,
		Subject:  subject,
		BodyHTML: body,
		Tag:      "eadev-decision",
	})
	if err != nil {
		s.log.ErrorContext(ctx, "dev request decision email failed",
			slog.String("request_id", req.ID.String()), slog.Any("error", err))
	}
}
