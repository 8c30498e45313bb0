package refresh

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"stock_screener/models"
	"stock_screener/services/marketdata"
)

// ErrArithmetic is returned when percent change cannot be computed from a
// snapshot: price or previous close is missing, or previous close is zero.
var ErrArithmetic = errors.New("cannot compute percent change")

var hundred = decimal.NewFromInt(100)

// ApplySnapshot merges snap into stock. A field is overwritten only when the
// snapshot carries a value for it; percent change is always recomputed from
// the snapshot's own price and previous close. On error stock is left as it
// was.
func ApplySnapshot(stock *models.Stock, snap *marketdata.Snapshot) error {
	change, err := percentChange(snap.CurrentPrice, snap.PreviousClose)
	if err != nil {
		return fmt.Errorf("%s: %w", stock.Symbol, err)
	}

	applyIfPresent(&stock.MA200, snap.TwoHundredDayAverage, identity)
	applyIfPresent(&stock.MA50, snap.FiftyDayAverage, identity)
	applyIfPresent(&stock.Price, snap.CurrentPrice, identity)
	applyIfPresent(&stock.PreviousClose, snap.PreviousClose, identity)
	// shares -> millions, dollars -> units of 10 billion, fraction -> percent
	applyIfPresent(&stock.AvgVolume, snap.AverageVolume, shift(-6))
	applyIfPresent(&stock.MarketCap, snap.MarketCap, shift(-10))
	applyIfPresent(&stock.ForwardPE, snap.ForwardPE, identity)
	applyIfPresent(&stock.ForwardEPS, snap.ForwardEps, identity)
	applyIfPresent(&stock.DividendYield, snap.DividendYield, shift(2))
	stock.PercentChange = &change

	return nil
}

func applyIfPresent(dst **float64, src *float64, transform func(float64) float64) {
	if src == nil {
		return
	}
	v := transform(*src)
	*dst = &v
}

func identity(v float64) float64 {
	return v
}

// shift scales by a power of ten without binary float drift
func shift(exp int32) func(float64) float64 {
	return func(v float64) float64 {
		return decimal.NewFromFloat(v).Shift(exp).InexactFloat64()
	}
}

func percentChange(price, previousClose *float64) (float64, error) {
	if price == nil || previousClose == nil {
		return 0, fmt.Errorf("%w: price or previous close missing", ErrArithmetic)
	}
	if *previousClose == 0 {
		return 0, fmt.Errorf("%w: previous close is zero", ErrArithmetic)
	}

	p := decimal.NewFromFloat(*price)
	prev := decimal.NewFromFloat(*previousClose)
	return p.Div(prev).Sub(decimal.NewFromInt(1)).Mul(hundred).InexactFloat64(), nil
}
