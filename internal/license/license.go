// Package license implements the licensing core: webhook-driven issuance with
// an insert-once event ledger, key allocation, EA instance validation with
// hardware binding and session caps, and heartbeat-driven expiry.
package license

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fxforge/platform/internal/plan"
)

// Status is the lifecycle state of a license. Licenses are never deleted;
// revocation and expiry are status flips.
type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusSuspended Status = "suspended"
	StatusRevoked   Status = "revoked"
)

// Type distinguishes single-EA licenses from tier bundles.
type Type string

const (
	TypeIndividualEA Type = "individual_ea"
	TypeSubscription Type = "subscription"
)

// License entitles a user to run an EA product up to a concurrent session
// limit until it expires.
type License struct {
	ID                    uuid.UUID
	UserID                uuid.UUID
	Key                   string
	Type                  Type
	Status                Status
	IssuedAt              time.Time
	ExpiresAt             time.Time
	EAProductID           uuid.UUID
	ProductCode           string
	PlanID                uuid.UUID
	PlanTier              plan.Tier
	PlanTerm              plan.Term
	MaxAccounts           int
	MaxConcurrentSessions int
	HardwareFingerprint   string

	// Provenance of the purchase.
	Provider       string
	CheckoutID     string
	SubscriptionID string
	OrderID        string

	ValidationCount int64
	LastValidatedAt *time.Time
}

// IsExpired reports whether the license expiry has passed at the given time.
func (l *License) IsExpired(now time.Time) bool {
	return !l.ExpiresAt.IsZero() && l.ExpiresAt.Before(now)
}

// Session is an ephemeral heartbeat record for one running EA instance.
type Session struct {
	ID                  uuid.UUID
	LicenseID           uuid.UUID
	Token               string
	EAInstanceID        string
	HardwareFingerprint string
	IPAddress           string
	UserAgent           string
	MT5Account          string
	LastHeartbeat       time.Time
	ExpiresAt           time.Time
	Active              bool
}

// Event is one row of the webhook idempotency ledger. The unique
// (provider, event_id) pair is the only exactly-once mechanism.
type Event struct {
	Provider  string
	EventID   string
	EventType string
	Payload   []byte
}

// ValidationResult classifies a validation attempt for the audit trail.
type ValidationResult string

const (
	ResultValid              ValidationResult = "valid"
	ResultExpired            ValidationResult = "expired"
	ResultRevoked            ValidationResult = "revoked"
	ResultSuspended          ValidationResult = "suspended"
	ResultHardwareMismatch   ValidationResult = "hardware_mismatch"
	ResultConcurrentExceeded ValidationResult = "concurrent_violation"
	ResultNotFound           ValidationResult = "not_found"
)

// ValidationRecord is the audit row written for every validation attempt.
type ValidationRecord struct {
	LicenseID           uuid.UUID // zero when the key was unknown
	SessionID           uuid.UUID
	Result              ValidationResult
	HardwareFingerprint string
	IPAddress           string
	UserAgent           string
	MT5Account          string
	EAInstanceID        string
	FailureReason       string
	Suspicious          bool
}

// HardwareInfo carries the identifiers an EA instance reports about its host.
type HardwareInfo struct {
	CPUID         string `json:"cpu_id"`
	MotherboardID string `json:"motherboard_id"`
	DiskSerial    string `json:"disk_serial"`
	MACAddress    string `json:"mac_address"`
	SystemUUID    string `json:"system_uuid"`
}

// Fingerprint derives a stable 32-character fingerprint from the non-empty
// hardware components. Order matters; the same machine always hashes the same.
func (h HardwareInfo) Fingerprint() string {
	components := make([]string, 0, 5)
	for _, c := range []string{h.CPUID, h.MotherboardID, h.DiskSerial, h.MACAddress, h.SystemUUID} {
		if c != "" {
			components = append(components, c)
		}
	}
	if len(components) == 0 {
		return ""
	}
	sum := sha256.Sum256([]byte(strings.Join(components, "|")))
	return base64.RawURLEncoding.EncodeToString(sum[:])[:32]
}

// SessionTTL is the rolling session expiry refreshed by each heartbeat.
const SessionTTL = 24 * time.Hour
