// Package support handles customer support tickets: public submission, the
// admin queue, and email replies that move tickets through their lifecycle.
package support

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrTicketResolved    = errors.New("ticket already resolved")
	ErrMissingFields     = errors.New("name, email, topic, and message are required")
	ErrReplyMissingField = errors.New("subject and message are required")
)

// Status is a ticket's position in the support workflow. Tickets start
// pending, move to in_progress on the first reply, and end resolved.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
)

// Ticket is one customer support request.
type Ticket struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Topic     string
	Message   string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}
