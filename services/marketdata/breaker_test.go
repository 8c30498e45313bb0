package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerProvider_OpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	failing := ProviderFunc(func(ctx context.Context, symbol string) (*Snapshot, error) {
		calls++
		return nil, errors.New("boom")
	})

	config := DefaultBreakerConfig()
	config.ConsecutiveFailures = 3
	config.Timeout = time.Hour
	b := NewBreakerProvider(failing, config)

	for i := 0; i < 3; i++ {
		_, err := b.Snapshot(context.Background(), "AAPL")
		require.Error(t, err)
	}
	assert.Equal(t, "open", b.State())

	_, err := b.Snapshot(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrProvider)
	assert.Equal(t, 3, calls, "open breaker does not reach the provider")
}

func TestBreakerProvider_PassesThrough(t *testing.T) {
	want := &Snapshot{Symbol: "MSFT"}
	ok := ProviderFunc(func(ctx context.Context, symbol string) (*Snapshot, error) {
		return want, nil
	})

	b := NewBreakerProvider(ok, DefaultBreakerConfig())
	got, err := b.Snapshot(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Equal(t, "closed", b.State())
}

func TestBreakerProvider_CancelDoesNotTrip(t *testing.T) {
	cancelled := ProviderFunc(func(ctx context.Context, symbol string) (*Snapshot, error) {
		return nil, context.Canceled
	})

	config := DefaultBreakerConfig()
	config.ConsecutiveFailures = 1
	b := NewBreakerProvider(cancelled, config)

	for i := 0; i < 3; i++ {
		_, err := b.Snapshot(context.Background(), "AAPL")
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, "closed", b.State())
}
