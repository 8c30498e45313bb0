package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"stock_screener/services/archive"
	"stock_screener/services/marketdata"
	"stock_screener/services/queue"
	"stock_screener/services/screener"
	"stock_screener/services/store"
)

// SnapshotHistory reads archived provider snapshots
type SnapshotHistory interface {
	History(ctx context.Context, symbol string, limit int64) ([]marketdata.Snapshot, error)
}

// StockController handles stock-related API requests
type StockController struct {
	screener *screener.StockScreener
	history  SnapshotHistory
}

// NewStockController creates a new stock controller. history may be nil.
func NewStockController(ss *screener.StockScreener, history SnapshotHistory) *StockController {
	return &StockController{screener: ss, history: history}
}

// GetStocks returns every stock matching the query filters
// GET /api/v1/stocks
func (sc *StockController) GetStocks(c *gin.Context) {
	filter, err := screener.ParseFilter(c.Request.URL.Query())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stocks, err := sc.screener.Screen(c.Request.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to screen stocks")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stocks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":    stocks,
		"total":   len(stocks),
		"filters": filter,
	})
}

// GetStock returns a single stock by ID
// GET /api/v1/stocks/:id
func (sc *StockController) GetStock(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	stock, err := sc.screener.Get(c.Request.Context(), id)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stock})
}

// GetStockHistory returns archived snapshots for a stock, newest first
// GET /api/v1/stocks/:id/history
func (sc *StockController) GetStockHistory(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if err != nil || limit <= 0 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
		return
	}

	stock, err := sc.screener.Get(c.Request.Context(), id)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	if sc.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": archive.ErrDisabled.Error()})
		return
	}

	snaps, err := sc.history.History(c.Request.Context(), stock.Symbol, limit)
	if err != nil {
		if errors.Is(err, archive.ErrDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		log.Error().Err(err).Str("symbol", stock.Symbol).Msg("Failed to load history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol": stock.Symbol,
		"data":   snaps,
		"total":  len(snaps),
	})
}

// RefreshStock queues a refresh of one stock
// POST /api/v1/admin/stocks/:id/refresh
func (sc *StockController) RefreshStock(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := sc.screener.Enqueue(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Stock not found"})
		case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrQueueClosed):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "refresh queued", "id": id})
}

// RefreshAll queues a refresh of every stock
// POST /api/v1/admin/refresh-all
func (sc *StockController) RefreshAll(c *gin.Context) {
	queued, err := sc.screener.EnqueueAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "queued": queued})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "refresh queued", "queued": queued})
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid stock id"})
		return 0, false
	}
	return uint(id), true
}

func respondStoreError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Stock not found"})
		return
	}
	log.Error().Err(err).Msg("Failed to fetch stock")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stock"})
}
