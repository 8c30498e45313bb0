package refresh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_screener/models"
	"stock_screener/services/marketdata"
)

func f(v float64) *float64 {
	return &v
}

func fullSnapshot() *marketdata.Snapshot {
	return &marketdata.Snapshot{
		Symbol:               "AAPL",
		TwoHundredDayAverage: f(130),
		FiftyDayAverage:      f(140),
		CurrentPrice:         f(150),
		PreviousClose:        f(100),
		AverageVolume:        f(52_000_000),
		MarketCap:            f(50_000_000_000),
		ForwardPE:            f(18.5),
		ForwardEps:           f(7.1),
		DividendYield:        f(0.02),
	}
}

func TestApplySnapshot_Transforms(t *testing.T) {
	stock := &models.Stock{ID: 1, Symbol: "AAPL"}
	require.NoError(t, ApplySnapshot(stock, fullSnapshot()))

	assert.Equal(t, 130.0, *stock.MA200)
	assert.Equal(t, 140.0, *stock.MA50)
	assert.Equal(t, 150.0, *stock.Price)
	assert.Equal(t, 100.0, *stock.PreviousClose)
	assert.Equal(t, 52.0, *stock.AvgVolume)
	assert.Equal(t, 5.0, *stock.MarketCap)
	assert.Equal(t, 18.5, *stock.ForwardPE)
	assert.Equal(t, 7.1, *stock.ForwardEPS)
	assert.Equal(t, 2.0, *stock.DividendYield)
	assert.Equal(t, 50.0, *stock.PercentChange)
}

func TestApplySnapshot_AbsentFieldsKeepPriorValues(t *testing.T) {
	stock := &models.Stock{
		ID:            1,
		Symbol:        "KO",
		MA200:         f(55),
		DividendYield: f(3.1),
		ForwardEPS:    f(2.9),
	}
	snap := &marketdata.Snapshot{
		CurrentPrice:  f(60),
		PreviousClose: f(64),
		MarketCap:     f(2.6e11),
	}

	require.NoError(t, ApplySnapshot(stock, snap))

	assert.Equal(t, 55.0, *stock.MA200)
	assert.Equal(t, 3.1, *stock.DividendYield)
	assert.Equal(t, 2.9, *stock.ForwardEPS)
	assert.Nil(t, stock.MA50, "never-populated field stays null")
	assert.Nil(t, stock.ForwardPE)
	assert.Equal(t, 26.0, *stock.MarketCap)
	assert.Equal(t, -6.25, *stock.PercentChange)
}

func TestApplySnapshot_ArithmeticErrors(t *testing.T) {
	tests := []struct {
		name  string
		price *float64
		prev  *float64
	}{
		{"missing price", nil, f(100)},
		{"missing previous close", f(100), nil},
		{"zero previous close", f(100), f(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stock := &models.Stock{ID: 1, Symbol: "X", Price: f(9), PercentChange: f(1)}
			snap := fullSnapshot()
			snap.CurrentPrice = tt.price
			snap.PreviousClose = tt.prev

			err := ApplySnapshot(stock, snap)
			assert.ErrorIs(t, err, ErrArithmetic)
			// nothing was merged
			assert.Equal(t, 9.0, *stock.Price)
			assert.Equal(t, 1.0, *stock.PercentChange)
			assert.Nil(t, stock.MarketCap)
		})
	}
}
