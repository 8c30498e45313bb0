package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stock_screener/controllers"
	"stock_screener/middleware"
	"stock_screener/services/realtime"
	"stock_screener/services/screener"
	"stock_screener/services/store"
	"stock_screener/templates"
)

// Dependencies are the services the HTTP layer is built on
type Dependencies struct {
	Store        *store.StockStore
	Screener     *screener.StockScreener
	History      controllers.SnapshotHistory
	Hub          *realtime.Hub
	Gatherer     prometheus.Gatherer
	StockLimiter *middleware.RateLimiter
	JWTSecret    string
}

// SetupRoutes sets up all routes
func SetupRoutes(router *gin.Engine, deps Dependencies) error {
	tmpl, err := templates.Load()
	if err != nil {
		return err
	}
	router.SetHTMLTemplate(tmpl)

	screenerController := controllers.NewScreenerController(deps.Screener)
	stockController := controllers.NewStockController(deps.Screener, deps.History)

	// Dashboard
	router.GET("/", screenerController.Dashboard)
	if deps.StockLimiter != nil {
		router.POST("/stock", middleware.RateLimitMiddleware(deps.StockLimiter), screenerController.CreateStock)
	} else {
		router.POST("/stock", screenerController.CreateStock)
	}

	// API v1 group
	api := router.Group("/api/v1")
	{
		stocks := api.Group("/stocks")
		{
			stocks.GET("", stockController.GetStocks)
			stocks.GET("/:id", stockController.GetStock)
			stocks.GET("/:id/history", stockController.GetStockHistory)
		}

		presets := api.Group("/screener/presets")
		{
			presets.GET("", screenerController.GetPresets)
			presets.GET("/:id", screenerController.RunPreset)
		}

		admin := api.Group("/admin")
		admin.Use(middleware.JWTAuthMiddleware(deps.JWTSecret), middleware.AdminRoleMiddleware(deps.JWTSecret))
		{
			admin.POST("/stocks/:id/refresh", stockController.RefreshStock)
			admin.POST("/refresh-all", stockController.RefreshAll)
		}
	}

	// Liveness probe - always returns OK if server is running
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness probe - checks the database
	router.GET("/ready", func(c *gin.Context) {
		if err := deps.Store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database ping failed",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
	if deps.Hub != nil {
		router.GET("/ws", gin.WrapF(deps.Hub.HandleWebSocket))
	}

	return nil
}
