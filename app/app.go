// Package app assembles the screener's services from configuration.
package app

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"stock_screener/config"
	"stock_screener/metrics"
	"stock_screener/middleware"
	"stock_screener/models"
	"stock_screener/routes"
	"stock_screener/scheduler"
	"stock_screener/services/archive"
	"stock_screener/services/marketdata"
	"stock_screener/services/queue"
	"stock_screener/services/realtime"
	"stock_screener/services/refresh"
	"stock_screener/services/screener"
	"stock_screener/services/store"
)

// App holds every long-lived service
type App struct {
	Config    *config.Config
	DB        *gorm.DB
	Store     *store.StockStore
	Registry  *prometheus.Registry
	Metrics   *metrics.Registry
	Provider  marketdata.Provider
	Archive   *archive.MongoArchive
	Hub       *realtime.Hub
	Queue     *queue.TaskQueue
	Refresher *refresh.Refresher
	Screener  *screener.StockScreener
	Scheduler *scheduler.Scheduler

	redis   *redis.Client
	limiter *middleware.RateLimiter
}

// New connects to the database and the optional backends, then wires the
// services together. Nothing is started.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := config.InitDB(cfg)
	if err != nil {
		return nil, err
	}

	log.Info().Msg("Running database migrations...")
	if err := models.MigrateStockModels(db); err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		DB:       db,
		Store:    store.NewStockStore(db),
		Registry: prometheus.NewRegistry(),
		limiter:  middleware.NewRateLimiter(30, 5),
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.NewRegistry(a.Registry)

	a.Provider = a.buildProvider(ctx)

	a.Archive, err = archive.NewMongoArchive(ctx, cfg.MongoURI)
	if err != nil {
		// keep serving without history rather than refuse to start
		log.Warn().Err(err).Msg("Snapshot archive unavailable")
		a.Archive, _ = archive.NewMongoArchive(ctx, "")
	}

	a.Hub = realtime.NewHub(a.Metrics)
	a.Queue = queue.New(cfg.RefreshWorkers, cfg.RefreshQueueSize, a.Metrics)
	a.Refresher = refresh.NewRefresher(a.Store, a.Provider,
		refresh.WithArchive(a.Archive),
		refresh.WithPublisher(a.Hub),
		refresh.WithMetrics(a.Metrics),
	)
	a.Screener = screener.NewStockScreener(a.Store, a.Queue, a.Refresher)
	a.Scheduler = scheduler.NewScheduler(a.Screener, cfg.RefreshInterval)

	return a, nil
}

// buildProvider layers the breaker and, when Redis answers, the snapshot
// cache over the Yahoo client.
func (a *App) buildProvider(ctx context.Context) marketdata.Provider {
	yahooConfig := marketdata.DefaultYahooConfig()
	yahooConfig.BaseURL = a.Config.YahooBaseURL
	yahooConfig.RequestsPerSec = a.Config.ProviderRPS

	var provider marketdata.Provider = marketdata.NewYahooClient(yahooConfig, a.Metrics)
	provider = marketdata.NewBreakerProvider(provider, marketdata.DefaultBreakerConfig())

	if a.Config.RedisAddr == "" {
		return provider
	}

	rdb := redis.NewClient(&redis.Options{Addr: a.Config.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", a.Config.RedisAddr).Msg("Redis unavailable, snapshot cache disabled")
		rdb.Close()
		return provider
	}

	a.redis = rdb
	log.Info().Dur("ttl", a.Config.SnapshotCacheTTL).Msg("Snapshot cache enabled")
	return marketdata.NewCachedProvider(provider, rdb, a.Config.SnapshotCacheTTL, a.Metrics)
}

// Router builds the HTTP handler
func (a *App) Router() (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger())

	err := routes.SetupRoutes(router, routes.Dependencies{
		Store:        a.Store,
		Screener:     a.Screener,
		History:      a.Archive,
		Hub:          a.Hub,
		Gatherer:     a.Registry,
		StockLimiter: a.limiter,
		JWTSecret:    a.Config.JWTSecret,
	})
	if err != nil {
		return nil, err
	}
	return router, nil
}

// Start launches the workers, the websocket hub and rate limiter cleanup
func (a *App) Start(ctx context.Context) {
	a.Queue.Start(ctx)
	go a.Hub.Run(ctx)
	a.limiter.StartCleanup(ctx)
}

// Close drains the queue and releases every connection
func (a *App) Close() {
	a.Queue.Stop()
	a.Hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Archive.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to close MongoDB")
	}

	if a.redis != nil {
		a.redis.Close()
	}

	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
		log.Info().Msg("Database connection closed")
	}
}
