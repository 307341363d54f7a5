package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Polar talks to the Polar REST API with an organization access token.
type Polar struct {
	baseURL       string
	token         string
	webhookSecret string
	client        *http.Client
}

// NewPolar creates the Polar adapter. baseURL defaults to the public API.
func NewPolar(baseURL, token, webhookSecret string) *Polar {
	if baseURL == "" {
		baseURL = "https://api.polar.sh"
	}
	return &Polar{
		baseURL:       strings.TrimRight(baseURL, "/"),
		token:         token,
		webhookSecret: webhookSecret,
		client:        &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *Polar) Name() string { return "polar" }

type polarCheckoutRequest struct {
	Products           []string          `json:"products"`
	CustomerEmail      string            `json:"customer_email,omitempty"`
	SuccessURL         string            `json:"success_url"`
	ReturnURL          string            `json:"return_url,omitempty"`
	AllowDiscountCodes bool              `json:"allow_discount_codes"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	Currency           string            `json:"currency,omitempty"`
	Amount             int64             `json:"amount,omitempty"`
	DiscountID         string            `json:"discount_id,omitempty"`
}

type polarCheckout struct {
	ID       string         `json:"id"`
	Status   string         `json:"status"`
	URL      string         `json:"url"`
	Amount   int64          `json:"amount"`
	Currency string         `json:"currency"`
	Metadata map[string]any `json:"metadata"`
}

// CreateCheckout opens a hosted Polar checkout for a product.
func (p *Polar) CreateCheckout(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	if p.token == "" {
		return nil, fmt.Errorf("%w: polar access token missing", ErrNotConfigured)
	}

	req := polarCheckoutRequest{
		Products:           []string{params.ProductID},
		CustomerEmail:      params.Email,
		SuccessURL:         params.SuccessURL,
		ReturnURL:          params.FailureURL,
		AllowDiscountCodes: params.AllowDiscountCodes,
		Metadata:           params.Metadata,
		Currency:           strings.ToLower(params.Currency),
		Amount:             params.AmountCents,
		DiscountID:         params.DiscountID,
	}

	var checkout polarCheckout
	if err := p.do(ctx, http.MethodPost, "/v1/checkouts", req, &checkout); err != nil {
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			upstream.Message = "Failed to create Polar checkout: " + upstream.Message
		}
		return nil, err
	}

	return &CheckoutSession{
		ID:          checkout.ID,
		URL:         checkout.URL,
		Status:      checkout.Status,
		AmountMinor: checkout.Amount,
		Currency:    checkout.Currency,
	}, nil
}

// VerifyCheckout fetches a checkout's current state.
func (p *Polar) VerifyCheckout(ctx context.Context, id string) (*CheckoutStatus, error) {
	var checkout polarCheckout
	if err := p.do(ctx, http.MethodGet, "/v1/checkouts/"+id, nil, &checkout); err != nil {
		return nil, err
	}
	return &CheckoutStatus{
		ID:       checkout.ID,
		Status:   checkout.Status,
		Paid:     checkout.Status == "succeeded" || checkout.Status == "confirmed",
		Metadata: stringifyMetadata(checkout.Metadata),
	}, nil
}

type polarEvent struct {
	ID      string         `json:"id"`
	EventID string         `json:"event_id"`
	Type    string         `json:"type"`
	Event   string         `json:"event"`
	Data    polarEventData `json:"data"`
}

type polarEventData struct {
	ID             string `json:"id"`
	CheckoutID     string `json:"checkout_id"`
	SubscriptionID string `json:"subscription_id"`
	OrderID        string `json:"order_id"`
	Subscription   struct {
		ID string `json:"id"`
	} `json:"subscription"`
	Order struct {
		ID string `json:"id"`
	} `json:"order"`
	Metadata map[string]any `json:"metadata"`
}

// ParseWebhook verifies the delivery signature and normalizes the event.
func (p *Polar) ParseWebhook(_ context.Context, payload []byte, header http.Header) (*Event, error) {
	ok := VerifyPolarSignature(p.webhookSecret, payload,
		header.Get("webhook-id"),
		header.Get("webhook-timestamp"),
		header.Get("webhook-signature"),
		firstNonEmpty(header.Get("x-polar-signature"), header.Get("x-signature")),
	)
	if !ok {
		return nil, ErrInvalidSignature
	}

	var ev polarEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	id := firstNonEmpty(ev.ID, ev.EventID)
	eventType := firstNonEmpty(ev.Type, ev.Event)
	if id == "" || eventType == "" {
		return nil, fmt.Errorf("%w: missing event id or type", ErrInvalidPayload)
	}

	userID, planID := parseMetadataIDs(stringifyMetadata(ev.Data.Metadata))

	return &Event{
		Provider:       p.Name(),
		ID:             id,
		Type:           eventType,
		UserID:         userID,
		PlanID:         planID,
		CheckoutID:     firstNonEmpty(ev.Data.ID, ev.Data.CheckoutID),
		SubscriptionID: firstNonEmpty(ev.Data.SubscriptionID, ev.Data.Subscription.ID),
		OrderID:        firstNonEmpty(ev.Data.OrderID, ev.Data.Order.ID),
		Raw:            payload,
	}, nil
}

func (p *Polar) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode polar request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build polar request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("polar request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &UpstreamError{
			Status:  resp.StatusCode,
			Message: strings.TrimSpace(string(raw)),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode polar response: %w", err)
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
