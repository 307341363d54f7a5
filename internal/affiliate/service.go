package affiliate

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fxforge/platform/internal/email"
)

const codeRetries = 5

// Service manages the affiliate program lifecycle.
type Service struct {
	store  Store
	sender email.Sender
	log    *slog.Logger
}

// NewService wires the affiliate service. sender may be nil; decision
// emails are then skipped.
func NewService(store Store, sender email.Sender, log *slog.Logger) *Service {
	return &Service{store: store, sender: sender, log: log}
}

// ApplyParams is a user's request to join the program.
type ApplyParams struct {
	UserID     uuid.UUID
	Email      string
	FullName   string
	SocialLink string
}

// Apply submits an application. A user can only apply once.
func (s *Service) Apply(ctx context.Context, p ApplyParams) (*Application, error) {
	app := &Application{
		ID:         uuid.New(),
		UserID:     p.UserID,
		Email:      p.Email,
		FullName:   p.FullName,
		SocialLink: p.SocialLink,
		Status:     ApplicationPending,
	}
	if err := s.store.InsertApplication(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// ApplicationFor returns the caller's own application, if any.
func (s *Service) ApplicationFor(ctx context.Context, userID uuid.UUID) (*Application, error) {
	return s.store.ApplicationByUser(ctx, userID)
}

// ListApplications returns applications, optionally filtered by status.
func (s *Service) ListApplications(ctx context.Context, status ApplicationStatus) ([]Application, error) {
	return s.store.ListApplications(ctx, status)
}

// Review decides a pending application. Approval allocates a referral code
// and creates the affiliate; either outcome emails the applicant.
func (s *Service) Review(ctx context.Context, id uuid.UUID, approve bool) (*Application, error) {
	app, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status != ApplicationPending {
		return nil, ErrAlreadyReviewed
	}

	status := ApplicationRejected
	if approve {
		if _, err := s.createAffiliate(ctx, app.UserID); err != nil {
			return nil, err
		}
		status = ApplicationApproved
	}
	if err := s.store.SetApplicationStatus(ctx, id, status); err != nil {
		return nil, err
	}
	app.Status = status

	s.notifyDecision(ctx, app)
	return app, nil
}

func (s *Service) createAffiliate(ctx context.Context, userID uuid.UUID) (*Affiliate, error) {
	for range codeRetries {
		code, err := generateCode()
		if err != nil {
			return nil, err
		}
		a := &Affiliate{
			ID:                uuid.New(),
			UserID:            userID,
			ReferralCode:      code,
			CommissionRateBps: DefaultCommissionRateBps,
			PayoutStatus:      "pending",
		}
		err = s.store.InsertAffiliate(ctx, a)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, ErrDuplicateCode) {
			return nil, err
		}
	}
	return nil, ErrCodeGeneration
}

func (s *Service) notifyDecision(ctx context.Context, app *Application) {
	if s.sender == nil {
		return
	}
	subject := "Your affiliate application was approved"
	body := fmt.Sprintf("<p>Hi %s,</p><p>Welcome to the program! Sign in to your dashboard to find your referral link and track your earnings.</p>",
		html.EscapeString(app.FullName))
	if app.Status == ApplicationRejected {
		subject = "Update on your affiliate application"
		body = fmt.Sprintf("<p>Hi %s,</p><p>Thanks for your interest. We are not able to accept your application at this time.</p>",
			html.EscapeString(app.FullName))
	}
	err := s.sender.SendEmail(ctx, email.SendParams{
		To:       app.Email,
		Subject:  subject,
		BodyHTML: body,
		Tag:      "affiliate-decision",
	})
	if err != nil {
		s.log.ErrorContext(ctx, "affiliate decision email failed",
			slog.String("application_id", app.ID.String()), slog.Any("error", err))
	}
}

// AffiliateFor returns the affiliate record for a user.
func (s *Service) AffiliateFor(ctx context.Context, userID uuid.UUID) (*Affiliate, error) {
	return s.store.AffiliateByUser(ctx, userID)
}

// TrackClick records a landing-page visit attributed to a referral code.
// Unknown codes are ignored so the endpoint leaks nothing.
func (s *Service) TrackClick(ctx context.Context, code string) error {
	a, err := s.store.AffiliateByCode(ctx, code)
	if errors.Is(err, ErrAffiliateNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.store.InsertClick(ctx, a.ID)
}

// TrackSignup attributes a new account to a referral code.
func (s *Service) TrackSignup(ctx context.Context, code string, referredUserID uuid.UUID) error {
	a, err := s.store.AffiliateByCode(ctx, code)
	if errors.Is(err, ErrAffiliateNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.store.InsertSignup(ctx, a.ID, referredUserID)
}

// TrackConversion records a paid checkout attributed to a referral code and
// books the affiliate's commission.
func (s *Service) TrackConversion(ctx context.Context, code string, amountCents int64) error {
	a, err := s.store.AffiliateByCode(ctx, code)
	if errors.Is(err, ErrAffiliateNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.store.InsertConversion(ctx, a.ID, amountCents, a.CommissionFor(amountCents))
}

// StatsFor aggregates tracking rows for the caller's affiliate record.
func (s *Service) StatsFor(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	a, err := s.store.AffiliateByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.store.StatsFor(ctx, a.ID)
}
