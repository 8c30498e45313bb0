// Package marketdata fetches metric snapshots for a ticker from an external
// finance provider.
package marketdata

import (
	"context"
	"errors"
	"time"
)

// ErrProvider marks failures of the upstream data provider.
var ErrProvider = errors.New("market data provider error")

// Snapshot is one provider response. A nil field means the provider did not
// report that value.
type Snapshot struct {
	Symbol               string    `json:"symbol" bson:"symbol"`
	TwoHundredDayAverage *float64  `json:"twoHundredDayAverage" bson:"two_hundred_day_average"`
	FiftyDayAverage      *float64  `json:"fiftyDayAverage" bson:"fifty_day_average"`
	CurrentPrice         *float64  `json:"currentPrice" bson:"current_price"`
	PreviousClose        *float64  `json:"previousClose" bson:"previous_close"`
	AverageVolume        *float64  `json:"averageVolume" bson:"average_volume"`
	MarketCap            *float64  `json:"marketCap" bson:"market_cap"`
	ForwardPE            *float64  `json:"forwardPE" bson:"forward_pe"`
	ForwardEps           *float64  `json:"forwardEps" bson:"forward_eps"`
	DividendYield        *float64  `json:"dividendYield" bson:"dividend_yield"`
	FetchedAt            time.Time `json:"fetchedAt" bson:"fetched_at"`

	// Cached is set when the snapshot was served from the cache rather than
	// fetched from the provider for this call.
	Cached bool `json:"-" bson:"-"`
}

// Provider returns the latest metric snapshot for a symbol.
type Provider interface {
	Snapshot(ctx context.Context, symbol string) (*Snapshot, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, symbol string) (*Snapshot, error)

func (f ProviderFunc) Snapshot(ctx context.Context, symbol string) (*Snapshot, error) {
	return f(ctx, symbol)
}
