package discount

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrCampaignNotLive is returned when a promo code exists but the campaign is
// switched off, out of its window, or fully redeemed.
var ErrCampaignNotLive = errors.New("campaign is not live")

// Service wraps the store with validation and the live-window checks.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService builds the campaign service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create validates and persists a new campaign.
func (s *Service) Create(ctx context.Context, c *Campaign) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.PromoCode = strings.ToUpper(strings.TrimSpace(c.PromoCode))
	if err := c.Validate(); err != nil {
		return err
	}
	return s.store.Insert(ctx, c)
}

// Update validates and saves changes to an existing campaign.
func (s *Service) Update(ctx context.Context, c *Campaign) error {
	c.PromoCode = strings.ToUpper(strings.TrimSpace(c.PromoCode))
	if err := c.Validate(); err != nil {
		return err
	}
	return s.store.Update(ctx, c)
}

// Delete removes a campaign.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.Delete(ctx, id)
}

// Get returns one campaign.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Campaign, error) {
	return s.store.Get(ctx, id)
}

// List returns all campaigns for the admin dashboard.
func (s *Service) List(ctx context.Context) ([]Campaign, error) {
	return s.store.List(ctx)
}

// ListLive returns the campaigns customers may use right now.
func (s *Service) ListLive(ctx context.Context) ([]Campaign, error) {
	return s.store.ListLive(ctx, s.now())
}

// Lookup resolves a promo code entered at checkout. A known code on a
// campaign that is not live returns ErrCampaignNotLive.
func (s *Service) Lookup(ctx context.Context, code string) (*Campaign, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrCampaignNotFound
	}
	c, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !c.IsLive(s.now()) {
		return nil, ErrCampaignNotLive
	}
	return c, nil
}

// Redeem books one redemption against a campaign after a paid checkout.
func (s *Service) Redeem(ctx context.Context, id uuid.UUID) error {
	return s.store.IncrementRedemption(ctx, id)
}
