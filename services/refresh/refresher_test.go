package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_screener/models"
	"stock_screener/services/marketdata"
	"stock_screener/services/store"
	"stock_screener/services/store/storetest"
)

type fakeProvider struct {
	mu    sync.Mutex
	snaps map[string]*marketdata.Snapshot
	err   error
	calls int
}

func (p *fakeProvider) Snapshot(ctx context.Context, symbol string) (*marketdata.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	snap, ok := p.snaps[symbol]
	if !ok {
		return nil, marketdata.ErrProvider
	}
	copied := *snap
	return &copied, nil
}

type recorder struct {
	archived  []*marketdata.Snapshot
	published []models.Stock
	archErr   error
}

func (r *recorder) Record(ctx context.Context, snap *marketdata.Snapshot) error {
	r.archived = append(r.archived, snap)
	return r.archErr
}

func (r *recorder) Publish(stock models.Stock) {
	r.published = append(r.published, stock)
}

var fixedNow = time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)

func setup(t *testing.T, provider marketdata.Provider, opts ...Option) (*store.StockStore, *Refresher) {
	t.Helper()
	s := store.NewStockStore(storetest.NewDB(t))
	opts = append(opts, WithClock(func() time.Time { return fixedNow }))
	return s, NewRefresher(s, provider, opts...)
}

func TestRefresh_PersistsSnapshot(t *testing.T) {
	provider := &fakeProvider{snaps: map[string]*marketdata.Snapshot{"AAPL": fullSnapshot()}}
	rec := &recorder{}
	s, r := setup(t, provider, WithArchive(rec), WithPublisher(rec))
	ctx := context.Background()

	stock, err := s.Create(ctx, "AAPL")
	require.NoError(t, err)

	require.NoError(t, r.Refresh(ctx, stock.ID))

	got, err := s.Get(ctx, stock.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, *got.PercentChange)
	assert.Equal(t, 5.0, *got.MarketCap)
	assert.Equal(t, 2.0, *got.DividendYield)
	require.NotNil(t, got.RefreshedAt)
	assert.True(t, fixedNow.Equal(*got.RefreshedAt))

	assert.Equal(t, 1, provider.calls)
	assert.Len(t, rec.archived, 1)
	require.Len(t, rec.published, 1)
	assert.Equal(t, stock.ID, rec.published[0].ID)
}

func TestRefresh_Idempotent(t *testing.T) {
	provider := &fakeProvider{snaps: map[string]*marketdata.Snapshot{"AAPL": fullSnapshot()}}
	s, r := setup(t, provider)
	ctx := context.Background()

	stock, err := s.Create(ctx, "AAPL")
	require.NoError(t, err)

	require.NoError(t, r.Refresh(ctx, stock.ID))
	first, err := s.Get(ctx, stock.ID)
	require.NoError(t, err)

	require.NoError(t, r.Refresh(ctx, stock.ID))
	second, err := s.Get(ctx, stock.ID)
	require.NoError(t, err)

	first.UpdatedAt, second.UpdatedAt = time.Time{}, time.Time{}
	assert.Equal(t, first, second)
}

func TestRefresh_OmittedFieldKeepsStoredValue(t *testing.T) {
	provider := &fakeProvider{snaps: map[string]*marketdata.Snapshot{"AAPL": fullSnapshot()}}
	s, r := setup(t, provider)
	ctx := context.Background()

	stock, err := s.Create(ctx, "AAPL")
	require.NoError(t, err)
	require.NoError(t, r.Refresh(ctx, stock.ID))

	partial := fullSnapshot()
	partial.ForwardPE = nil
	partial.CurrentPrice = f(110)
	provider.snaps["AAPL"] = partial
	require.NoError(t, r.Refresh(ctx, stock.ID))

	got, err := s.Get(ctx, stock.ID)
	require.NoError(t, err)
	assert.Equal(t, 18.5, *got.ForwardPE)
	assert.Equal(t, 110.0, *got.Price)
	assert.InDelta(t, 10.0, *got.PercentChange, 1e-9)
}

func TestRefresh_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown id", func(t *testing.T) {
		provider := &fakeProvider{}
		_, r := setup(t, provider)

		err := r.Refresh(ctx, 999)
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.Equal(t, 0, provider.calls)
	})

	t.Run("provider error leaves record unchanged", func(t *testing.T) {
		provider := &fakeProvider{err: errors.New("timeout")}
		s, r := setup(t, provider)

		stock, err := s.Create(ctx, "AAPL")
		require.NoError(t, err)

		assert.Error(t, r.Refresh(ctx, stock.ID))
		got, err := s.Get(ctx, stock.ID)
		require.NoError(t, err)
		assert.Nil(t, got.Price)
		assert.Nil(t, got.RefreshedAt)
	})

	t.Run("missing previous close aborts before save", func(t *testing.T) {
		snap := fullSnapshot()
		snap.PreviousClose = nil
		provider := &fakeProvider{snaps: map[string]*marketdata.Snapshot{"AAPL": snap}}
		rec := &recorder{}
		s, r := setup(t, provider, WithPublisher(rec), WithArchive(rec))

		stock, err := s.Create(ctx, "AAPL")
		require.NoError(t, err)

		assert.ErrorIs(t, r.Refresh(ctx, stock.ID), ErrArithmetic)
		got, err := s.Get(ctx, stock.ID)
		require.NoError(t, err)
		assert.Nil(t, got.MarketCap)
		assert.Empty(t, rec.published)
		assert.Empty(t, rec.archived)
	})

	t.Run("archive failure does not fail the refresh", func(t *testing.T) {
		provider := &fakeProvider{snaps: map[string]*marketdata.Snapshot{"AAPL": fullSnapshot()}}
		rec := &recorder{archErr: errors.New("mongo down")}
		s, r := setup(t, provider, WithArchive(rec))

		stock, err := s.Create(ctx, "AAPL")
		require.NoError(t, err)
		assert.NoError(t, r.Refresh(ctx, stock.ID))
	})
}

func TestJob(t *testing.T) {
	provider := &fakeProvider{snaps: map[string]*marketdata.Snapshot{"MSFT": fullSnapshot()}}
	s, r := setup(t, provider)
	ctx := context.Background()

	stock, err := s.Create(ctx, "MSFT")
	require.NoError(t, err)

	job := r.Job(stock.ID)
	assert.Contains(t, job.Name, "refresh:")
	require.NoError(t, job.Run(ctx))

	got, err := s.Get(ctx, stock.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.Price)
}

func TestRefresh_CachedSnapshotKeepsSymbolAndIsNotArchived(t *testing.T) {
	upstream := &fakeProvider{snaps: map[string]*marketdata.Snapshot{"AAPL": fullSnapshot()}}
	rdb, mock := redismock.NewClientMock()
	cached := marketdata.NewCachedProvider(upstream, rdb, time.Minute, nil)

	data, err := json.Marshal(fullSnapshot())
	require.NoError(t, err)
	mock.ExpectGet("snapshot:AAPL").RedisNil()
	mock.ExpectSet("snapshot:AAPL", data, time.Minute).SetVal("OK")
	mock.ExpectGet("snapshot:AAPL").SetVal(string(data))
	mock.ExpectGet("snapshot:AAPL").SetVal(string(data))

	rec := &recorder{}
	s, r := setup(t, cached, WithArchive(rec), WithPublisher(rec))
	ctx := context.Background()

	upper, err := s.Create(ctx, "AAPL")
	require.NoError(t, err)
	lower, err := s.Create(ctx, "aapl")
	require.NoError(t, err)

	require.NoError(t, r.Refresh(ctx, upper.ID))
	require.NoError(t, r.Refresh(ctx, lower.ID))
	require.NoError(t, r.Refresh(ctx, lower.ID))

	assert.Equal(t, 1, upstream.calls)
	require.Len(t, rec.archived, 1, "only the fetched snapshot is archived")
	assert.Equal(t, "AAPL", rec.archived[0].Symbol)

	got, err := s.Get(ctx, lower.ID)
	require.NoError(t, err)
	assert.Equal(t, "aapl", got.Symbol)
	require.NotNil(t, got.PercentChange)
	assert.Equal(t, 50.0, *got.PercentChange)

	require.Len(t, rec.published, 3)
	assert.Equal(t, "aapl", rec.published[2].Symbol)
	assert.NoError(t, mock.ExpectationsWereMet())
}
