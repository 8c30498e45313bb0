package screener

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"stock_screener/models"
	"stock_screener/services/queue"
	"stock_screener/services/store"
)

var (
	// ErrInvalidFilter is returned when a threshold is not a number
	ErrInvalidFilter = errors.New("invalid filter value")
	// ErrEmptySymbol is returned when a stock is created without a symbol
	ErrEmptySymbol = errors.New("symbol is required")
)

// FilterParams are the query parameters understood by ParseFilter, in the
// order their clauses are applied.
var FilterParams = []string{
	"avg_volume",
	"market_cap",
	"dividend_yield",
	"percent_change",
	"forward_pe",
	"forward_eps",
	"ma50",
	"ma200",
}

// ScreenerFilter represents filter criteria for stock screening.
// A nil threshold or false toggle leaves that column unconstrained.
type ScreenerFilter struct {
	AvgVolume     *float64 `json:"avg_volume,omitempty"`     // avg_volume > x
	MarketCap     *float64 `json:"market_cap,omitempty"`     // market_cap > x
	DividendYield *float64 `json:"dividend_yield,omitempty"` // dividend_yield > x
	PercentChange *float64 `json:"percent_change,omitempty"` // percent_change > x
	ForwardPE     *float64 `json:"forward_pe,omitempty"`     // forward_pe < x
	ForwardEPS    *float64 `json:"forward_eps,omitempty"`    // forward_eps > x
	AboveMA50     bool     `json:"ma50,omitempty"`           // price > ma50
	AboveMA200    bool     `json:"ma200,omitempty"`          // price > ma200
}

// ParseFilter reads a filter from query parameters. Empty parameters are
// treated as absent. The ma50 and ma200 values are not interpreted: any
// non-empty value switches the clause on.
func ParseFilter(values url.Values) (ScreenerFilter, error) {
	var f ScreenerFilter

	thresholds := []struct {
		name string
		dst  **float64
	}{
		{"avg_volume", &f.AvgVolume},
		{"market_cap", &f.MarketCap},
		{"dividend_yield", &f.DividendYield},
		{"percent_change", &f.PercentChange},
		{"forward_pe", &f.ForwardPE},
		{"forward_eps", &f.ForwardEPS},
	}
	for _, t := range thresholds {
		raw := strings.TrimSpace(values.Get(t.name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return ScreenerFilter{}, fmt.Errorf("%w: %s=%q", ErrInvalidFilter, t.name, raw)
		}
		*t.dst = &v
	}

	f.AboveMA50 = strings.TrimSpace(values.Get("ma50")) != ""
	f.AboveMA200 = strings.TrimSpace(values.Get("ma200")) != ""

	return f, nil
}

// IsEmpty reports whether no clause is set
func (f ScreenerFilter) IsEmpty() bool {
	return len(f.Clauses()) == 0
}

// Clauses converts the filter into store filters. Comparisons are strict and
// a NULL column never satisfies one.
func (f ScreenerFilter) Clauses() []store.Filter {
	var clauses []store.Filter

	if f.AvgVolume != nil {
		clauses = append(clauses, where("avg_volume > ?", *f.AvgVolume))
	}
	if f.MarketCap != nil {
		clauses = append(clauses, where("market_cap > ?", *f.MarketCap))
	}
	if f.DividendYield != nil {
		clauses = append(clauses, where("dividend_yield > ?", *f.DividendYield))
	}
	if f.PercentChange != nil {
		clauses = append(clauses, where("percent_change > ?", *f.PercentChange))
	}
	if f.ForwardPE != nil {
		clauses = append(clauses, where("forward_pe < ?", *f.ForwardPE))
	}
	if f.ForwardEPS != nil {
		clauses = append(clauses, where("forward_eps > ?", *f.ForwardEPS))
	}
	if f.AboveMA50 {
		clauses = append(clauses, where("price > ma50"))
	}
	if f.AboveMA200 {
		clauses = append(clauses, where("price > ma200"))
	}

	return clauses
}

func where(query string, args ...interface{}) store.Filter {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	}
}

// Submitter accepts background jobs without waiting for them
type Submitter interface {
	Submit(job queue.Job) error
}

// JobFactory builds the refresh job for a stock id
type JobFactory interface {
	Job(id uint) queue.Job
}

// StockScreener provides stock registration and filtering
type StockScreener struct {
	store *store.StockStore
	queue Submitter
	jobs  JobFactory
}

// NewStockScreener creates a new stock screener instance
func NewStockScreener(s *store.StockStore, q Submitter, jobs JobFactory) *StockScreener {
	return &StockScreener{store: s, queue: q, jobs: jobs}
}

// CreateStock stores a new symbol and schedules its first refresh. It returns
// as soon as the row exists; the refresh outcome is never reported back.
func (ss *StockScreener) CreateStock(ctx context.Context, symbol string) (*models.Stock, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, ErrEmptySymbol
	}

	stock, err := ss.store.Create(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if err := ss.queue.Submit(ss.jobs.Job(stock.ID)); err != nil {
		// the row stays; the next scheduled refresh will fill it in
		log.Warn().Err(err).Uint("id", stock.ID).Str("symbol", symbol).Msg("Could not enqueue refresh")
	}

	log.Info().Uint("id", stock.ID).Str("symbol", symbol).Msg("Stock created")
	return stock, nil
}

// Screen returns every stock matching all clauses of filter
func (ss *StockScreener) Screen(ctx context.Context, filter ScreenerFilter) ([]models.Stock, error) {
	return ss.store.List(ctx, filter.Clauses()...)
}

// Get returns one stock by id
func (ss *StockScreener) Get(ctx context.Context, id uint) (*models.Stock, error) {
	return ss.store.Get(ctx, id)
}

// Enqueue schedules a refresh of an existing stock
func (ss *StockScreener) Enqueue(ctx context.Context, id uint) error {
	if _, err := ss.store.Get(ctx, id); err != nil {
		return err
	}
	return ss.queue.Submit(ss.jobs.Job(id))
}

// EnqueueAll schedules a refresh of every stored stock and returns how many
// were accepted by the queue.
func (ss *StockScreener) EnqueueAll(ctx context.Context) (int, error) {
	ids, err := ss.store.IDs(ctx)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, id := range ids {
		if err := ss.queue.Submit(ss.jobs.Job(id)); err != nil {
			log.Warn().Err(err).Uint("id", id).Msg("Refresh not enqueued")
			if errors.Is(err, queue.ErrQueueClosed) {
				return queued, err
			}
			continue
		}
		queued++
	}
	return queued, nil
}
