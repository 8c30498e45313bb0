// Package handler exposes the screener as a single serverless HTTP function.
package handler

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"stock_screener/app"
	"stock_screener/config"
)

var (
	router  http.Handler
	initErr error
	once    sync.Once
)

// setup builds the app on the first request. The scheduler is not started:
// a function instance does not live long enough for it to fire.
func setup() {
	cfg, err := config.LoadConfig()
	if err != nil {
		initErr = err
		return
	}
	config.SetupLogging(cfg)
	gin.SetMode(gin.ReleaseMode)

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		initErr = err
		return
	}

	r, err := a.Router()
	if err != nil {
		initErr = err
		return
	}
	a.Start(ctx)
	router = r
}

// Handler is the serverless function entry point
func Handler(w http.ResponseWriter, r *http.Request) {
	once.Do(setup)
	if initErr != nil {
		log.Error().Err(initErr).Msg("Service initialization failed")
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	router.ServeHTTP(w, r)
}
