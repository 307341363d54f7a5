package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Stripe wraps the official client. ProductID in CheckoutParams is a Stripe
// price id.
type Stripe struct {
	webhookSecret string
}

// NewStripe configures the stripe-go client key and returns the adapter.
func NewStripe(secretKey, webhookSecret string) *Stripe {
	stripe.Key = secretKey
	return &Stripe{webhookSecret: webhookSecret}
}

func (s *Stripe) Name() string { return "stripe" }

// CreateCheckout opens a hosted Stripe Checkout session.
func (s *Stripe) CreateCheckout(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	if stripe.Key == "" {
		return nil, fmt.Errorf("%w: stripe secret key missing", ErrNotConfigured)
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.FailureURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(params.ProductID),
			Quantity: stripe.Int64(1),
		}},
	}
	sessionParams.Context = ctx
	if params.Email != "" {
		sessionParams.CustomerEmail = stripe.String(params.Email)
	}
	if params.AllowDiscountCodes {
		sessionParams.AllowPromotionCodes = stripe.Bool(true)
	}
	if params.DiscountID != "" {
		sessionParams.Discounts = []*stripe.CheckoutSessionDiscountParams{{
			Coupon: stripe.String(params.DiscountID),
		}}
	}
	for k, v := range params.Metadata {
		sessionParams.AddMetadata(k, v)
	}

	sess, err := session.New(sessionParams)
	if err != nil {
		return nil, stripeError(err)
	}

	return &CheckoutSession{
		ID:          sess.ID,
		URL:         sess.URL,
		Status:      string(sess.Status),
		AmountMinor: sess.AmountTotal,
		Currency:    string(sess.Currency),
	}, nil
}

// VerifyCheckout fetches a checkout session's payment state.
func (s *Stripe) VerifyCheckout(ctx context.Context, id string) (*CheckoutStatus, error) {
	getParams := &stripe.CheckoutSessionParams{}
	getParams.Context = ctx

	sess, err := session.Get(id, getParams)
	if err != nil {
		return nil, stripeError(err)
	}

	return &CheckoutStatus{
		ID:       sess.ID,
		Status:   string(sess.Status),
		Paid:     sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Metadata: sess.Metadata,
	}, nil
}

// ParseWebhook verifies the Stripe-Signature header and normalizes the event.
func (s *Stripe) ParseWebhook(_ context.Context, payload []byte, header http.Header) (*Event, error) {
	sig := header.Get("Stripe-Signature")
	if sig == "" {
		return nil, ErrMissingSignature
	}

	ev, err := webhook.ConstructEvent(payload, sig, s.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{
		Provider: s.Name(),
		ID:       ev.ID,
		Type:     string(ev.Type),
		Raw:      payload,
	}

	if ev.Type == "checkout.session.completed" {
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		out.CheckoutID = sess.ID
		if sess.Subscription != nil {
			out.SubscriptionID = sess.Subscription.ID
		}
		out.UserID, out.PlanID = parseMetadataIDs(sess.Metadata)
	}

	return out, nil
}

func stripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &UpstreamError{Status: stripeErr.HTTPStatusCode, Message: stripeErr.Msg}
	}
	return err
}
