package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"stock_screener/models"
)

// ErrNotFound is returned when no stock has the requested id
var ErrNotFound = errors.New("stock not found")

// Filter narrows a stock query. Filters passed to List are ANDed.
type Filter func(*gorm.DB) *gorm.DB

// StockStore persists stocks through gorm. Every call opens its own session
// bound to the caller's context, so no handle outlives an operation.
type StockStore struct {
	db *gorm.DB
}

// NewStockStore creates a new stock store
func NewStockStore(db *gorm.DB) *StockStore {
	return &StockStore{db: db}
}

func (s *StockStore) session(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// Create inserts a stock with only its symbol set
func (s *StockStore) Create(ctx context.Context, symbol string) (*models.Stock, error) {
	stock := &models.Stock{Symbol: symbol}
	if err := s.session(ctx).Create(stock).Error; err != nil {
		return nil, fmt.Errorf("failed to create stock %s: %w", symbol, err)
	}
	return stock, nil
}

// Get loads a stock by id
func (s *StockStore) Get(ctx context.Context, id uint) (*models.Stock, error) {
	var stock models.Stock
	if err := s.session(ctx).First(&stock, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("stock %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch stock %d: %w", id, err)
	}
	return &stock, nil
}

// List returns every stock matching all filters, ordered by id
func (s *StockStore) List(ctx context.Context, filters ...Filter) ([]models.Stock, error) {
	query := s.session(ctx).Model(&models.Stock{})
	for _, f := range filters {
		query = f(query)
	}

	stocks := []models.Stock{}
	if err := query.Order("id ASC").Find(&stocks).Error; err != nil {
		return nil, fmt.Errorf("failed to list stocks: %w", err)
	}
	return stocks, nil
}

// IDs returns the id of every stored stock
func (s *StockStore) IDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	if err := s.session(ctx).Model(&models.Stock{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list stock ids: %w", err)
	}
	return ids, nil
}

// Save overwrites every metric column of a previously loaded stock.
// id, symbol and created_at are never rewritten.
func (s *StockStore) Save(ctx context.Context, stock *models.Stock) error {
	result := s.session(ctx).
		Model(stock).
		Select("*").
		Omit("id", "symbol", "created_at").
		Updates(stock)
	if result.Error != nil {
		return fmt.Errorf("failed to save stock %d: %w", stock.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("stock %d: %w", stock.ID, ErrNotFound)
	}
	return nil
}

// Ping checks that the underlying database is reachable
func (s *StockStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
