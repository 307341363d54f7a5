package ratelimit_test

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/fxforge/platform/internal/ratelimit"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	tests := []struct {
		name    string
		client  *redis.Client
		limit   int64
		window  time.Duration
		wantErr error
	}{
		{"valid", client, 10, time.Minute, nil},
		{"zero limit", client, 0, time.Minute, ratelimit.ErrInvalidLimit},
		{"negative limit", client, -1, time.Minute, ratelimit.ErrInvalidLimit},
		{"zero window", client, 10, 0, ratelimit.ErrInvalidInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l, err := ratelimit.New(tt.client, "test", tt.limit, tt.window)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, l)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestNewRequiresClient(t *testing.T) {
	t.Parallel()

	_, err := ratelimit.New(nil, "test", 10, time.Minute)
	assert.Error(t, err)
}

func TestAllowRequiresKey(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	l, err := ratelimit.New(client, "test", 10, time.Minute)
	assert.NoError(t, err)

	_, err = l.Allow(t.Context(), "")
	assert.ErrorIs(t, err, ratelimit.ErrKeyRequired)
}
