package license_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxforge/platform/internal/license"
)

func TestGenerateKeyFormat(t *testing.T) {
	t.Parallel()

	format := regexp.MustCompile(`^FXF(-[A-HJKMNP-Z2-9]{5}){4}$`)

	key, err := license.GenerateKey()
	require.NoError(t, err)
	assert.Regexp(t, format, key)

	// Ambiguous characters never appear.
	assert.NotRegexp(t, `[IOL01]`, key)
}

func TestGenerateKeyUniqueness(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		key, err := license.GenerateKey()
		require.NoError(t, err)
		_, dup := seen[key]
		require.False(t, dup, "generated a duplicate key: %s", key)
		seen[key] = struct{}{}
	}
}

func TestHardwareFingerprintStable(t *testing.T) {
	t.Parallel()

	hw := license.HardwareInfo{CPUID: "cpu-a", DiskSerial: "disk-b", MACAddress: "aa:bb"}
	first := hw.Fingerprint()

	assert.Len(t, first, 32)
	assert.Equal(t, first, hw.Fingerprint(), "same machine must hash the same")

	other := license.HardwareInfo{CPUID: "cpu-a", DiskSerial: "disk-b", MACAddress: "cc:dd"}
	assert.NotEqual(t, first, other.Fingerprint())
}

func TestHardwareFingerprintSkipsEmptyComponents(t *testing.T) {
	t.Parallel()

	sparse := license.HardwareInfo{CPUID: "cpu-a"}
	padded := license.HardwareInfo{CPUID: "cpu-a", MotherboardID: ""}
	assert.Equal(t, sparse.Fingerprint(), padded.Fingerprint())
}
