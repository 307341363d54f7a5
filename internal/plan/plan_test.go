package plan_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxforge/platform/internal/plan"
)

func TestTermExpiryFrom(t *testing.T) {
	t.Parallel()

	issued := time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		term plan.Term
		want time.Time
	}{
		{plan.TermMonthly, time.Date(2026, time.February, 15, 12, 0, 0, 0, time.UTC)},
		{plan.TermQuarterly, time.Date(2026, time.April, 15, 12, 0, 0, 0, time.UTC)},
		{plan.TermYearly, time.Date(2027, time.January, 15, 12, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(string(tt.term), func(t *testing.T) {
			t.Parallel()

			got, err := tt.term.ExpiryFrom(issued)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTermExpiryFromInvalid(t *testing.T) {
	t.Parallel()

	_, err := plan.Term("weekly").ExpiryFrom(time.Now())
	assert.ErrorIs(t, err, plan.ErrInvalidTerm)
}

func TestTermValid(t *testing.T) {
	t.Parallel()

	assert.True(t, plan.TermMonthly.Valid())
	assert.True(t, plan.TermQuarterly.Valid())
	assert.True(t, plan.TermYearly.Valid())
	assert.False(t, plan.Term("").Valid())
	assert.False(t, plan.Term("weekly").Valid())
}
