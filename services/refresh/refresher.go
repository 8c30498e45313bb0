// Package refresh copies provider metrics into stored stocks.
package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"stock_screener/metrics"
	"stock_screener/models"
	"stock_screener/services/marketdata"
	"stock_screener/services/queue"
)

// StockRepository is the part of the store a refresh needs
type StockRepository interface {
	Get(ctx context.Context, id uint) (*models.Stock, error)
	Save(ctx context.Context, stock *models.Stock) error
}

// SnapshotArchive keeps raw provider snapshots
type SnapshotArchive interface {
	Record(ctx context.Context, snap *marketdata.Snapshot) error
}

// Publisher is told about every stock a refresh has saved
type Publisher interface {
	Publish(stock models.Stock)
}

// Refresher runs metric refreshes for stored stocks
type Refresher struct {
	store     StockRepository
	provider  marketdata.Provider
	archive   SnapshotArchive
	publisher Publisher
	metrics   *metrics.Registry
	now       func() time.Time
}

// Option customises a Refresher
type Option func(*Refresher)

func WithArchive(a SnapshotArchive) Option {
	return func(r *Refresher) { r.archive = a }
}

func WithPublisher(p Publisher) Option {
	return func(r *Refresher) { r.publisher = p }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(r *Refresher) { r.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(r *Refresher) { r.now = now }
}

// NewRefresher creates a new refresher
func NewRefresher(store StockRepository, provider marketdata.Provider, opts ...Option) *Refresher {
	r := &Refresher{
		store:    store,
		provider: provider,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh loads stock id, fetches one snapshot for its symbol, merges it and
// saves the stock. Nothing is written unless every step before the save
// succeeds.
func (r *Refresher) Refresh(ctx context.Context, id uint) (err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		r.metrics.ObserveRefresh(result, time.Since(start))
	}()

	stock, err := r.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("refresh %d: %w", id, err)
	}

	snap, err := r.provider.Snapshot(ctx, stock.Symbol)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", stock.Symbol, err)
	}

	if err := ApplySnapshot(stock, snap); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	refreshedAt := r.now()
	stock.RefreshedAt = &refreshedAt

	if err := r.store.Save(ctx, stock); err != nil {
		return fmt.Errorf("refresh %s: %w", stock.Symbol, err)
	}

	if r.archive != nil && !snap.Cached {
		if err := r.archive.Record(ctx, snap); err != nil {
			log.Warn().Err(err).Str("symbol", stock.Symbol).Msg("Failed to archive snapshot")
		}
	}
	if r.publisher != nil {
		r.publisher.Publish(*stock)
	}

	log.Info().
		Uint("id", stock.ID).
		Str("symbol", stock.Symbol).
		Dur("took", time.Since(start)).
		Msg("Stock refreshed")
	return nil
}

// Job wraps a refresh of id for the task queue
func (r *Refresher) Job(id uint) queue.Job {
	return queue.Job{
		Name: fmt.Sprintf("refresh:%d", id),
		Run: func(ctx context.Context) error {
			return r.Refresh(ctx, id)
		},
	}
}
