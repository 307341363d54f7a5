package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// VerifyPolarSignature checks Polar's standard-webhooks style signature: an
// HMAC-SHA256 over "id.timestamp.payload", base64-encoded, carried in the
// webhook-signature header as a comma-separated list of "v1=<sig>" entries.
// Older deliveries fall back to a plain hex HMAC in x-polar-signature.
func VerifyPolarSignature(secret string, payload []byte, id, timestamp, signature, legacySignature string) bool {
	if id != "" && timestamp != "" && signature != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(id))
		mac.Write([]byte("."))
		mac.Write([]byte(timestamp))
		mac.Write([]byte("."))
		mac.Write(payload)
		computed := base64.StdEncoding.EncodeToString(mac.Sum(nil))

		for _, part := range strings.Split(signature, ",") {
			candidate := strings.TrimSpace(part)
			if candidate == "" {
				continue
			}
			candidate = strings.TrimPrefix(candidate, "v1=")
			if hmac.Equal([]byte(candidate), []byte(computed)) {
				return true
			}
		}
		return false
	}

	if legacySignature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	computed := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(legacySignature), []byte(computed))
}

// VerifyPaystackSignature checks Paystack's x-paystack-signature header: a
// hex HMAC-SHA512 of the raw body under the secret key.
func VerifyPaystackSignature(secret string, payload []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	computed := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(computed))
}
