package models

import (
	"time"

	"gorm.io/gorm"
)

// Stock is a tracked ticker and its last-known metrics.
// Metric columns stay NULL until the first refresh supplies them.
type Stock struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Symbol        string     `gorm:"index;not null" json:"symbol"`
	Price         *float64   `json:"price"`
	PreviousClose *float64   `json:"previous_close"`
	MA50          *float64   `gorm:"column:ma50" json:"ma50"`
	MA200         *float64   `gorm:"column:ma200" json:"ma200"`
	AvgVolume     *float64   `json:"avg_volume"` // millions of shares
	MarketCap     *float64   `json:"market_cap"` // units of 10 billion
	ForwardPE     *float64   `gorm:"column:forward_pe" json:"forward_pe"`
	ForwardEPS    *float64   `gorm:"column:forward_eps" json:"forward_eps"`
	DividendYield *float64   `json:"dividend_yield"` // percent
	PercentChange *float64   `json:"percent_change"`
	RefreshedAt   *time.Time `json:"refreshed_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// MigrateStockModels runs database migrations for stock-related models
func MigrateStockModels(db *gorm.DB) error {
	return db.AutoMigrate(&Stock{})
}
