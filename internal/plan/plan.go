// Package plan holds the EA plan catalog: tier and billing term combinations
// priced per currency, each mapped to the payment providers' product ids.
package plan

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPlanNotFound   = errors.New("plan not found")
	ErrPlanInactive   = errors.New("plan is inactive")
	ErrInvalidTerm    = errors.New("invalid billing term")
	ErrMappingMissing = errors.New("provider product mapping missing for plan")
)

// Term is a plan's billing term.
type Term string

const (
	TermMonthly   Term = "monthly"
	TermQuarterly Term = "quarterly"
	TermYearly    Term = "yearly"
)

// Valid reports whether the term is one of the supported values.
func (t Term) Valid() bool {
	switch t {
	case TermMonthly, TermQuarterly, TermYearly:
		return true
	}
	return false
}

// ExpiryFrom returns the license expiry for a purchase at the given time:
// monthly adds one month, quarterly three, yearly one year. Calendar
// arithmetic, not fixed-day approximations.
func (t Term) ExpiryFrom(issued time.Time) (time.Time, error) {
	switch t {
	case TermMonthly:
		return issued.AddDate(0, 1, 0), nil
	case TermQuarterly:
		return issued.AddDate(0, 3, 0), nil
	case TermYearly:
		return issued.AddDate(1, 0, 0), nil
	}
	return time.Time{}, ErrInvalidTerm
}

// Tier is a plan's feature tier.
type Tier string

const (
	TierBasic      Tier = "basic"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Plan prices one tier × term combination of an EA product.
type Plan struct {
	ID          uuid.UUID
	EAID        uuid.UUID
	EACode      string // product code of the EA this plan sells
	Tier        Tier
	Term        Term
	PriceCents  int64
	Currency    string
	MaxAccounts int
	Active      bool

	// Provider-side identifiers used during checkout.
	PolarProductID  string
	StripePriceID   string
	PolarDiscountID string
}
