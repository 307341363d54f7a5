package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// minKobo is Paystack's smallest chargeable amount.
const minKobo = 100

// Paystack talks to the Paystack REST API. Paystack charges in NGN, so USD
// plan prices are converted with a configured exchange rate before
// initializing a transaction.
type Paystack struct {
	baseURL       string
	secretKey     string
	webhookSecret string
	usdToNGN      float64
	client        *http.Client
}

// NewPaystack creates the Paystack adapter. When webhookSecret is empty the
// secret key doubles as the webhook signing secret, which is Paystack's
// default.
func NewPaystack(baseURL, secretKey, webhookSecret string, usdToNGN float64) *Paystack {
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}
	if webhookSecret == "" {
		webhookSecret = secretKey
	}
	return &Paystack{
		baseURL:       strings.TrimRight(baseURL, "/"),
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		usdToNGN:      usdToNGN,
		client:        &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *Paystack) Name() string { return "paystack" }

// ConvertToKobo maps a minor-unit amount in the given currency to kobo,
// applying the configured USD rate and clamping to Paystack's minimum charge.
func (p *Paystack) ConvertToKobo(amountMinor int64, currency string) (int64, error) {
	switch strings.ToUpper(currency) {
	case "NGN":
		if amountMinor < minKobo {
			return minKobo, nil
		}
		return amountMinor, nil
	case "USD":
		if p.usdToNGN <= 0 {
			return 0, fmt.Errorf("%w: USD to NGN rate not set", ErrNotConfigured)
		}
		kobo := int64(math.Round(float64(amountMinor) / 100 * p.usdToNGN * 100))
		if kobo < minKobo {
			kobo = minKobo
		}
		return kobo, nil
	default:
		return 0, fmt.Errorf("unsupported currency for Paystack: %s", strings.ToUpper(currency))
	}
}

type paystackInitRequest struct {
	Email       string         `json:"email"`
	Amount      int64          `json:"amount"`
	Currency    string         `json:"currency"`
	Reference   string         `json:"reference,omitempty"`
	CallbackURL string         `json:"callback_url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackInitData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// CreateCheckout initializes a Paystack transaction. AmountCents is taken in
// the params currency and converted to kobo.
func (p *Paystack) CreateCheckout(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	if p.secretKey == "" {
		return nil, fmt.Errorf("%w: paystack secret key missing", ErrNotConfigured)
	}
	if params.Email == "" {
		return nil, fmt.Errorf("%w: customer email is required", ErrInvalidPayload)
	}

	kobo, err := p.ConvertToKobo(params.AmountCents, params.Currency)
	if err != nil {
		return nil, err
	}

	meta := make(map[string]any, len(params.Metadata)+2)
	for k, v := range params.Metadata {
		meta[k] = v
	}
	if strings.EqualFold(params.Currency, "USD") {
		meta["display_amount_usd_cents"] = params.AmountCents
		meta["exchange_rate_usd_ngn"] = p.usdToNGN
	}

	req := paystackInitRequest{
		Email:       params.Email,
		Amount:      kobo,
		Currency:    "NGN",
		Reference:   params.Reference,
		CallbackURL: params.SuccessURL,
		Metadata:    meta,
	}

	var data paystackInitData
	if err := p.do(ctx, http.MethodPost, "/transaction/initialize", req, &data); err != nil {
		return nil, err
	}

	return &CheckoutSession{
		ID:          data.Reference,
		URL:         data.AuthorizationURL,
		Status:      "pending",
		AccessCode:  data.AccessCode,
		AmountMinor: kobo,
		Currency:    "NGN",
	}, nil
}

type paystackTxnData struct {
	ID        json.Number    `json:"id"`
	Reference string         `json:"reference"`
	Status    string         `json:"status"`
	Amount    int64          `json:"amount"`
	Currency  string         `json:"currency"`
	Metadata  map[string]any `json:"metadata"`
}

// VerifyCheckout fetches a transaction by reference and maps Paystack's
// status vocabulary onto the common one.
func (p *Paystack) VerifyCheckout(ctx context.Context, reference string) (*CheckoutStatus, error) {
	var txn paystackTxnData
	if err := p.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &txn); err != nil {
		return nil, err
	}

	status := strings.ToLower(txn.Status)
	switch status {
	case "success":
		status = "succeeded"
	case "abandoned":
		status = "failed"
	case "":
		status = "pending"
	}

	return &CheckoutStatus{
		ID:       firstNonEmpty(txn.Reference, reference),
		Status:   status,
		Paid:     status == "succeeded",
		Metadata: stringifyMetadata(txn.Metadata),
	}, nil
}

type paystackEvent struct {
	Event string          `json:"event"`
	Data  paystackTxnData `json:"data"`
}

// ParseWebhook verifies the x-paystack-signature header and normalizes the
// event. The transaction reference doubles as both event id and checkout id;
// Paystack has no separate delivery id.
func (p *Paystack) ParseWebhook(_ context.Context, payload []byte, header http.Header) (*Event, error) {
	sig := header.Get("x-paystack-signature")
	if sig == "" {
		return nil, ErrMissingSignature
	}
	if !VerifyPaystackSignature(p.webhookSecret, payload, sig) {
		return nil, ErrInvalidSignature
	}

	var ev paystackEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if ev.Event == "" || ev.Data.Reference == "" {
		return nil, fmt.Errorf("%w: missing event type or reference", ErrInvalidPayload)
	}

	meta := stringifyMetadata(ev.Data.Metadata)
	userID, planID := parseMetadataIDs(meta)

	return &Event{
		Provider:   p.Name(),
		ID:         ev.Data.Reference,
		Type:       ev.Event,
		UserID:     userID,
		PlanID:     planID,
		CheckoutID: ev.Data.Reference,
		Raw:        payload,
	}, nil
}

func (p *Paystack) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode paystack request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build paystack request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("paystack request: %w", err)
	}
	defer resp.Body.Close()

	var envelope paystackEnvelope
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&envelope)

	if resp.StatusCode >= http.StatusBadRequest || (decodeErr == nil && !envelope.Status) {
		msg := envelope.Message
		if msg == "" {
			msg = "Failed to initialize Paystack transaction"
		}
		return &UpstreamError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return fmt.Errorf("decode paystack response: %w", decodeErr)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode paystack data: %w", err)
		}
	}
	return nil
}
