// Package discount manages promotional campaigns: percentage or fixed-amount
// discounts with a date window, an optional promo code, and a redemption cap.
package discount

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrDuplicateCode    = errors.New("promo code already in use")
	ErrInvalidCampaign  = errors.New("invalid campaign")
)

// Type is how a campaign's value is applied to the price.
type Type string

const (
	TypePercentage  Type = "percentage"
	TypeFixedAmount Type = "fixed_amount"
)

// Campaign is a discount offer shown at checkout.
type Campaign struct {
	ID              uuid.UUID
	Name            string
	PromoCode       string
	Type            Type
	Value           float64
	ProductIDs      []string
	Active          bool
	StartsAt        time.Time
	EndsAt          time.Time
	MaxRedemptions  int
	RedemptionCount int
	CreatedAt       time.Time
}

// Validate checks the campaign's invariants before it is persisted.
func (c *Campaign) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errInvalid("name is required")
	}
	if c.Type != TypePercentage && c.Type != TypeFixedAmount {
		return errInvalid("discount type must be percentage or fixed_amount")
	}
	if c.Value <= 0 {
		return errInvalid("discount value must be positive")
	}
	if c.Type == TypePercentage && c.Value > 100 {
		return errInvalid("percentage discount cannot exceed 100")
	}
	if c.StartsAt.IsZero() || c.EndsAt.IsZero() {
		return errInvalid("start and end dates are required")
	}
	if !c.EndsAt.After(c.StartsAt) {
		return errInvalid("end date must be after start date")
	}
	return nil
}

func errInvalid(msg string) error {
	return errors.Join(ErrInvalidCampaign, errors.New(msg))
}

// IsLive reports whether the campaign applies at the given time: switched on,
// inside its window, and under its redemption cap.
func (c *Campaign) IsLive(now time.Time) bool {
	if !c.Active || now.Before(c.StartsAt) || now.After(c.EndsAt) {
		return false
	}
	if c.MaxRedemptions > 0 && c.RedemptionCount >= c.MaxRedemptions {
		return false
	}
	return true
}

// AppliedCents returns the price in cents after the campaign's discount.
// The result never drops below zero.
func (c *Campaign) AppliedCents(amountCents int64) int64 {
	var discounted int64
	switch c.Type {
	case TypePercentage:
		discounted = amountCents - int64(float64(amountCents)*c.Value/100)
	case TypeFixedAmount:
		discounted = amountCents - int64(c.Value*100)
	default:
		return amountCents
	}
	if discounted < 0 {
		return 0
	}
	return discounted
}
