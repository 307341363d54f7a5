package billing_test

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxforge/platform/internal/billing"
)

func TestPaystackConvertToKobo(t *testing.T) {
	t.Parallel()

	p := billing.NewPaystack("", "sk_test", "", 1600)

	tests := []struct {
		name     string
		amount   int64
		currency string
		want     int64
		wantErr  bool
	}{
		{"usd converts at configured rate", 49900, "USD", 79_840_000, false},
		{"ngn passes through", 500_000, "NGN", 500_000, false},
		{"tiny usd clamps to minimum", 1, "USD", 1600, false},
		{"tiny ngn clamps to minimum", 50, "NGN", 100, false},
		{"unsupported currency", 1000, "EUR", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := p.ConvertToKobo(tt.amount, tt.currency)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPaystackCreateCheckout(t *testing.T) {
	t.Parallel()

	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transaction/initialize", r.URL.Path)
		require.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data": map[string]any{
				"authorization_url": "https://checkout.paystack.com/abc",
				"access_code":       "abc",
				"reference":         "pay_ref_1",
			},
		})
	}))
	defer srv.Close()

	p := billing.NewPaystack(srv.URL, "sk_test", "", 1600)
	sess, err := p.CreateCheckout(t.Context(), billing.CheckoutParams{
		Email:       "buyer@example.com",
		AmountCents: 49900,
		Currency:    "USD",
		Reference:   "pay_ref_1",
		SuccessURL:  "https://app.example.com/payment/success?reference=pay_ref_1&psp=paystack",
		Metadata:    map[string]string{"user_id": "u-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "pay_ref_1", sess.ID)
	assert.Equal(t, "https://checkout.paystack.com/abc", sess.URL)
	assert.Equal(t, "pending", sess.Status)
	assert.Equal(t, "NGN", sess.Currency)
	assert.EqualValues(t, 79_840_000, sess.AmountMinor)

	assert.Equal(t, "NGN", received["currency"])
	meta, ok := received["metadata"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 49900, meta["display_amount_usd_cents"])
	assert.EqualValues(t, 1600, meta["exchange_rate_usd_ngn"])
}

func TestPaystackCreateCheckoutRequiresEmail(t *testing.T) {
	t.Parallel()

	p := billing.NewPaystack("", "sk_test", "", 1600)
	_, err := p.CreateCheckout(t.Context(), billing.CheckoutParams{AmountCents: 1000, Currency: "USD"})
	assert.Error(t, err)
}

func TestPaystackCreateCheckoutUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": false, "message": "Invalid key"})
	}))
	defer srv.Close()

	p := billing.NewPaystack(srv.URL, "sk_bad", "", 1600)
	_, err := p.CreateCheckout(t.Context(), billing.CheckoutParams{
		Email: "buyer@example.com", AmountCents: 1000, Currency: "USD",
	})

	var upstream *billing.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusBadRequest, upstream.Status)
	assert.Equal(t, "Invalid key", upstream.Message)
}

func TestPaystackVerifyCheckoutMapsStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		paystack string
		want     string
		paid     bool
	}{
		{"success", "succeeded", true},
		{"abandoned", "failed", false},
		{"pending", "pending", false},
	}

	for _, tt := range tests {
		t.Run(tt.paystack, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/transaction/verify/pay_ref_1", r.URL.Path)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"status": true,
					"data": map[string]any{
						"reference": "pay_ref_1",
						"status":    tt.paystack,
						"amount":    79_840_000,
						"currency":  "NGN",
					},
				})
			}))
			defer srv.Close()

			p := billing.NewPaystack(srv.URL, "sk_test", "", 1600)
			status, err := p.VerifyCheckout(t.Context(), "pay_ref_1")
			require.NoError(t, err)

			assert.Equal(t, tt.want, status.Status)
			assert.Equal(t, tt.paid, status.Paid)
		})
	}
}

func paystackSign(secret string, payload []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaystackParseWebhook(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	planID := uuid.New()

	payload, err := json.Marshal(map[string]any{
		"event": "charge.success",
		"data": map[string]any{
			"reference": "pay_ref_1",
			"status":    "success",
			"metadata": map[string]any{
				"user_id":    userID.String(),
				"ea_plan_id": planID.String(),
			},
		},
	})
	require.NoError(t, err)

	secret := "sk_test"
	header := http.Header{}
	header.Set("x-paystack-signature", paystackSign(secret, payload))

	p := billing.NewPaystack("", secret, "", 1600)
	ev, err := p.ParseWebhook(t.Context(), payload, header)
	require.NoError(t, err)

	assert.Equal(t, "paystack", ev.Provider)
	assert.Equal(t, "charge.success", ev.Type)
	assert.Equal(t, "pay_ref_1", ev.ID, "the reference doubles as the event id")
	assert.Equal(t, "pay_ref_1", ev.CheckoutID)
	assert.Equal(t, userID, ev.UserID)
	assert.Equal(t, planID, ev.PlanID)
}

func TestPaystackParseWebhookMissingSignature(t *testing.T) {
	t.Parallel()

	p := billing.NewPaystack("", "sk_test", "", 1600)
	_, err := p.ParseWebhook(t.Context(), []byte(`{}`), http.Header{})
	assert.ErrorIs(t, err, billing.ErrMissingSignature)
}
