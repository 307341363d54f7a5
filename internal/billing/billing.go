// Package billing normalizes the payment providers (Stripe, Polar, Paystack)
// behind one Provider interface: create a hosted checkout, verify its state,
// and parse signed webhook events into a common shape.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
	ErrNotConfigured    = errors.New("payment provider is not configured")
)

// CheckoutParams describes a checkout to open with a provider. Metadata is
// round-tripped through the provider and comes back on the webhook event.
type CheckoutParams struct {
	Email              string
	SuccessURL         string
	FailureURL         string
	ProductID          string // provider-side product or price id
	Currency           string
	AmountCents        int64 // legacy amount checkout only; 0 when a plan drives the price
	DiscountID         string
	AllowDiscountCodes bool
	Metadata           map[string]string
	Reference          string // caller-chosen reference, Paystack only
}

// CheckoutSession is the provider's answer to CreateCheckout.
type CheckoutSession struct {
	ID          string
	URL         string
	Status      string
	AccessCode  string // Paystack only
	AmountMinor int64
	Currency    string
}

// CheckoutStatus is a point-in-time view of a checkout used by the verify
// endpoint.
type CheckoutStatus struct {
	ID       string
	Status   string
	Paid     bool
	Metadata map[string]string
}

// Event is a webhook event normalized across providers. UserID and PlanID are
// uuid.Nil when the provider metadata did not carry them; callers decide how
// to treat that.
type Event struct {
	Provider       string
	ID             string
	Type           string
	UserID         uuid.UUID
	PlanID         uuid.UUID
	CheckoutID     string
	SubscriptionID string
	OrderID        string
	Raw            json.RawMessage
}

// Provider is one payment service. ParseWebhook must verify the request
// signature before trusting anything in the payload.
type Provider interface {
	Name() string
	CreateCheckout(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	VerifyCheckout(ctx context.Context, id string) (*CheckoutStatus, error)
	ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*Event, error)
}

// UpstreamError carries a provider's HTTP failure so handlers can pass the
// status and message through to the client.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string { return e.Message }

// parseMetadataIDs pulls the user and plan ids out of checkout metadata,
// tolerating absent or malformed values.
func parseMetadataIDs(meta map[string]string) (userID, planID uuid.UUID) {
	if v, ok := meta["user_id"]; ok {
		userID, _ = uuid.Parse(v)
	}
	if v, ok := meta["ea_plan_id"]; ok {
		planID, _ = uuid.Parse(v)
	}
	return userID, planID
}

// stringifyMetadata flattens provider metadata to strings. Providers echo
// back whatever JSON types were stored, numbers included.
func stringifyMetadata(meta map[string]any) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		}
	}
	return out
}
