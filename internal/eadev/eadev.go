// Package eadev tracks custom Expert Advisor development requests: a trader
// describes a strategy, an admin approves or rejects it, and the decision
// goes out by email.
package eadev

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRequestNotFound = errors.New("development request not found")
	ErrAlreadyDecided  = errors.New("request already decided")
	ErrMissingFields   = errors.New("strategy name and requirements are required")
)

// Status is the review state of a development request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Request is a custom EA build inquiry.
type Request struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	StrategyName string
	Requirements string
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
