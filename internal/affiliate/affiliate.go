// Package affiliate runs the referral program: applications reviewed by an
// admin, a referral code per approved affiliate, and click/signup/conversion
// tracking with commissions in basis points.
package affiliate

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrApplicationNotFound = errors.New("affiliate application not found")
	ErrAlreadyApplied      = errors.New("application already submitted")
	ErrAlreadyReviewed     = errors.New("application already reviewed")
	ErrAffiliateNotFound   = errors.New("affiliate not found")
	ErrDuplicateCode       = errors.New("referral code already taken")
	ErrCodeGeneration      = errors.New("failed to allocate a unique referral code")
)

// ApplicationStatus is the review state of an application.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// Application is a request to join the program.
type Application struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Email      string
	FullName   string
	SocialLink string
	Status     ApplicationStatus
	CreatedAt  time.Time
}

// DefaultCommissionRateBps is the commission granted to new affiliates:
// 20% of the conversion amount.
const DefaultCommissionRateBps = 2000

// Affiliate is an approved member of the program.
type Affiliate struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	ReferralCode      string
	CommissionRateBps int
	PayoutStatus      string
	CreatedAt         time.Time
}

// Stats aggregates an affiliate's tracking rows.
type Stats struct {
	Clicks      int64 `json:"clicks"`
	Signups     int64 `json:"signups"`
	Conversions int64 `json:"conversions"`
	EarnedCents int64 `json:"earned_cents"`
}

// CommissionFor computes the commission on a conversion amount.
func (a Affiliate) CommissionFor(amountCents int64) int64 {
	return amountCents * int64(a.CommissionRateBps) / 10000
}

const (
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	codeLength   = 8
)

// generateCode returns a random uppercase referral code. Uniqueness is the
// store's unique constraint, not this function's.
func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
