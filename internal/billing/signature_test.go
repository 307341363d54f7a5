package billing_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fxforge/platform/internal/billing"
)

func polarSign(secret, id, ts string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(id + "." + ts + "."))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyPolarSignature(t *testing.T) {
	t.Parallel()

	secret := "whsec_test"
	payload := []byte(`{"type":"checkout.succeeded"}`)
	sig := polarSign(secret, "msg_1", "1740000000", payload)

	tests := []struct {
		name      string
		id, ts    string
		signature string
		legacy    string
		want      bool
	}{
		{"valid v1 signature", "msg_1", "1740000000", "v1=" + sig, "", true},
		{"valid among multiple candidates", "msg_1", "1740000000", "v1=garbage, v1=" + sig, "", true},
		{"bare signature without prefix", "msg_1", "1740000000", sig, "", true},
		{"wrong signature", "msg_1", "1740000000", "v1=bm9wZQ==", "", false},
		{"tampered timestamp", "msg_1", "1740000001", "v1=" + sig, "", false},
		{"no headers at all", "", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := billing.VerifyPolarSignature(secret, payload, tt.id, tt.ts, tt.signature, tt.legacy)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerifyPolarSignatureLegacyFallback(t *testing.T) {
	t.Parallel()

	secret := "whsec_test"
	payload := []byte(`{"type":"checkout.succeeded"}`)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	legacy := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, billing.VerifyPolarSignature(secret, payload, "", "", "", legacy))
	assert.False(t, billing.VerifyPolarSignature(secret, payload, "", "", "", "deadbeef"))
}

func TestVerifyPaystackSignature(t *testing.T) {
	t.Parallel()

	secret := "sk_test_abc"
	payload := []byte(`{"event":"charge.success"}`)

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	sig := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, billing.VerifyPaystackSignature(secret, payload, sig))
	assert.False(t, billing.VerifyPaystackSignature(secret, payload, ""))
	assert.False(t, billing.VerifyPaystackSignature(secret, []byte(`{"event":"tampered"}`), sig))
	assert.False(t, billing.VerifyPaystackSignature("wrong-secret", payload, sig))
}
