package license

import (
	"crypto/rand"
	"strings"
)

// keyAlphabet excludes 0/O/1/I/L so keys survive being read over the phone.
const keyAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	keyPrefix    = "FXF"
	keyGroups    = 4
	keyGroupSize = 5
)

// GenerateKey returns a random license key such as FXF-7Q2MW-ABCDE-FGHJK-MNPQR.
// Uniqueness is enforced by the store's unique constraint, not here.
func GenerateKey() (string, error) {
	raw := make([]byte, keyGroups*keyGroupSize)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(keyPrefix)
	for i, c := range raw {
		if i%keyGroupSize == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(keyAlphabet[int(c)%len(keyAlphabet)])
	}
	return b.String(), nil
}
