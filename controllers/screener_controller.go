package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"stock_screener/services/screener"
)

// ScreenerController serves the dashboard and stock registration
type ScreenerController struct {
	screener *screener.StockScreener
}

// NewScreenerController creates a new screener controller
func NewScreenerController(ss *screener.StockScreener) *ScreenerController {
	return &ScreenerController{screener: ss}
}

// Dashboard renders the filtered stock table
// GET /
func (sc *ScreenerController) Dashboard(c *gin.Context) {
	filter, err := screener.ParseFilter(c.Request.URL.Query())
	if err != nil {
		c.HTML(http.StatusBadRequest, "error.html", gin.H{
			"title": "Invalid filter",
			"error": err.Error(),
		})
		return
	}

	stocks, err := sc.screener.Screen(c.Request.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to screen stocks")
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{
			"title": "Error",
			"error": "Failed to load stocks",
		})
		return
	}

	// echo the raw values back so the form keeps what the user typed
	filters := make(map[string]string, len(screener.FilterParams))
	for _, name := range screener.FilterParams {
		filters[name] = c.Query(name)
	}

	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"title":   "Dashboard",
		"stocks":  stocks,
		"filters": filters,
		"total":   len(stocks),
		"presets": screener.Presets(),
	})
}

// StockRequest is the body of POST /stock
type StockRequest struct {
	Symbol string `json:"symbol" binding:"required"`
}

// CreateStock registers a symbol and queues its first refresh
// POST /stock
func (sc *ScreenerController) CreateStock(c *gin.Context) {
	var req StockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "error", "message": err.Error()})
		return
	}

	if _, err := sc.screener.CreateStock(c.Request.Context(), req.Symbol); err != nil {
		if errors.Is(err, screener.ErrEmptySymbol) {
			c.JSON(http.StatusBadRequest, gin.H{"code": "error", "message": err.Error()})
			return
		}
		log.Error().Err(err).Str("symbol", req.Symbol).Msg("Failed to create stock")
		c.JSON(http.StatusInternalServerError, gin.H{"code": "error", "message": "failed to create stock"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": "success", "message": "stock created"})
}

// GetPresets returns predefined screener configurations
// GET /api/v1/screener/presets
func (sc *ScreenerController) GetPresets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": screener.Presets()})
}

// RunPreset runs a predefined screener
// GET /api/v1/screener/presets/:id
func (sc *ScreenerController) RunPreset(c *gin.Context) {
	presetID := c.Param("id")

	preset, found := screener.FindPreset(presetID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Preset not found"})
		return
	}

	stocks, err := sc.screener.Screen(c.Request.Context(), preset.Filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      stocks,
		"total":     len(stocks),
		"preset_id": presetID,
		"filters":   preset.Filter,
	})
}
