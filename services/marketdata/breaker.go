package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// BreakerConfig configures the provider circuit breaker
type BreakerConfig struct {
	Name                string
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// DefaultBreakerConfig returns reasonable breaker defaults for Yahoo
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:                "yahoo",
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// BreakerProvider stops calling the wrapped provider after repeated failures
// and fails fast until the breaker half-opens again.
type BreakerProvider struct {
	next    Provider
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerProvider wraps next with a circuit breaker
func NewBreakerProvider(next Provider, config BreakerConfig) *BreakerProvider {
	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Provider circuit breaker changed state")
		},
		// a cancelled caller says nothing about provider health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &BreakerProvider{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *BreakerProvider) Snapshot(ctx context.Context, symbol string) (*Snapshot, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.next.Snapshot(ctx, symbol)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrProvider, err)
		}
		return nil, err
	}
	return result.(*Snapshot), nil
}

// State returns the current breaker state name
func (b *BreakerProvider) State() string {
	return b.breaker.State().String()
}
