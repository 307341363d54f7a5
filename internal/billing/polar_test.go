package billing_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxforge/platform/internal/billing"
)

func TestPolarCreateCheckout(t *testing.T) {
	t.Parallel()

	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/checkouts", r.URL.Path)
		require.Equal(t, "Bearer polar_oat_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chk_1",
			"status": "open",
			"url":    "https://polar.sh/checkout/chk_1",
		})
	}))
	defer srv.Close()

	p := billing.NewPolar(srv.URL, "polar_oat_test", "whsec")
	sess, err := p.CreateCheckout(t.Context(), billing.CheckoutParams{
		Email:              "buyer@example.com",
		ProductID:          "prod_1",
		Currency:           "USD",
		SuccessURL:         "https://app.example.com/payment/success?checkout_id={CHECKOUT_ID}&psp=polar",
		FailureURL:         "https://app.example.com/payment/failure",
		AllowDiscountCodes: true,
		Metadata:           map[string]string{"user_id": "u-1", "ea_plan_id": "p-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "chk_1", sess.ID)
	assert.Equal(t, "https://polar.sh/checkout/chk_1", sess.URL)
	assert.Equal(t, "open", sess.Status)

	assert.Equal(t, []any{"prod_1"}, received["products"])
	assert.Equal(t, "usd", received["currency"])
	assert.Equal(t, true, received["allow_discount_codes"])
	assert.Contains(t, received["success_url"], "{CHECKOUT_ID}")
}

func TestPolarCreateCheckoutUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid product"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	p := billing.NewPolar(srv.URL, "polar_oat_test", "whsec")
	_, err := p.CreateCheckout(t.Context(), billing.CheckoutParams{ProductID: "bad"})

	var upstream *billing.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusUnprocessableEntity, upstream.Status)
	assert.Contains(t, upstream.Message, "Failed to create Polar checkout")
	assert.Contains(t, upstream.Message, "invalid product")
}

func TestPolarCreateCheckoutRequiresToken(t *testing.T) {
	t.Parallel()

	p := billing.NewPolar("", "", "whsec")
	_, err := p.CreateCheckout(t.Context(), billing.CheckoutParams{ProductID: "prod_1"})
	assert.ErrorIs(t, err, billing.ErrNotConfigured)
}

func TestPolarVerifyCheckout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/checkouts/chk_1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       "chk_1",
			"status":   "succeeded",
			"metadata": map[string]any{"user_id": "u-1", "max_accounts": 2},
		})
	}))
	defer srv.Close()

	p := billing.NewPolar(srv.URL, "polar_oat_test", "whsec")
	status, err := p.VerifyCheckout(t.Context(), "chk_1")
	require.NoError(t, err)

	assert.True(t, status.Paid)
	assert.Equal(t, "succeeded", status.Status)
	assert.Equal(t, "u-1", status.Metadata["user_id"])
	assert.Equal(t, "2", status.Metadata["max_accounts"], "numeric metadata is flattened to strings")
}

func TestPolarParseWebhook(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	planID := uuid.New()

	payload, err := json.Marshal(map[string]any{
		"id":   "evt_1",
		"type": "checkout.succeeded",
		"data": map[string]any{
			"id": "chk_1",
			"subscription": map[string]any{"id": "sub_1"},
			"metadata": map[string]any{
				"user_id":      userID.String(),
				"ea_plan_id":   planID.String(),
				"max_accounts": 2,
			},
		},
	})
	require.NoError(t, err)

	secret := "whsec_test"
	header := http.Header{}
	header.Set("webhook-id", "msg_1")
	header.Set("webhook-timestamp", "1740000000")
	header.Set("webhook-signature", "v1="+polarSign(secret, "msg_1", "1740000000", payload))

	p := billing.NewPolar("", "polar_oat_test", secret)
	ev, err := p.ParseWebhook(t.Context(), payload, header)
	require.NoError(t, err)

	assert.Equal(t, "polar", ev.Provider)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, "checkout.succeeded", ev.Type)
	assert.Equal(t, userID, ev.UserID)
	assert.Equal(t, planID, ev.PlanID)
	assert.Equal(t, "chk_1", ev.CheckoutID)
	assert.Equal(t, "sub_1", ev.SubscriptionID)
}

func TestPolarParseWebhookRejectsBadSignature(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"id":"evt_1","type":"checkout.succeeded","data":{}}`)
	header := http.Header{}
	header.Set("webhook-id", "msg_1")
	header.Set("webhook-timestamp", "1740000000")
	header.Set("webhook-signature", "v1=bm9wZQ==")

	p := billing.NewPolar("", "polar_oat_test", "whsec_test")
	_, err := p.ParseWebhook(t.Context(), payload, header)
	assert.ErrorIs(t, err, billing.ErrInvalidSignature)
}

func TestPolarParseWebhookMissingMetadata(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"id":"evt_2","type":"checkout.succeeded","data":{"id":"chk_2","metadata":{}}}`)
	secret := "whsec_test"
	header := http.Header{}
	header.Set("webhook-id", "msg_2")
	header.Set("webhook-timestamp", "1740000000")
	header.Set("webhook-signature", "v1="+polarSign(secret, "msg_2", "1740000000", payload))

	p := billing.NewPolar("", "polar_oat_test", secret)
	ev, err := p.ParseWebhook(t.Context(), payload, header)
	require.NoError(t, err)

	assert.Equal(t, uuid.Nil, ev.UserID, "missing metadata yields zero ids, not an error")
	assert.Equal(t, uuid.Nil, ev.PlanID)
}
