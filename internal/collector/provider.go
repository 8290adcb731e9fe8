package collector

import (
	"context"
	"fmt"

	"RSIPipeline/internal/model"
)

// PriceProvider fetches daily OHLCV history for a symbol.
// Bars are returned in chronological order.
type PriceProvider interface {
	FetchDailyBars(ctx context.Context, symbol string, lookback Lookback) ([]model.PriceBar, error)
	Name() string
}

// Lookback is a history window expressed the way chart APIs take it.
type Lookback string

const (
	Lookback1mo Lookback = "1mo"
	Lookback3mo Lookback = "3mo"
	Lookback6mo Lookback = "6mo"
	Lookback1y  Lookback = "1y"
	Lookback2y  Lookback = "2y"
	Lookback5y  Lookback = "5y"
)

// DefaultLookback matches one year of trading history.
const DefaultLookback = Lookback1y

var tradingDays = map[Lookback]int{
	Lookback1mo: 21,
	Lookback3mo: 63,
	Lookback6mo: 126,
	Lookback1y:  252,
	Lookback2y:  504,
	Lookback5y:  1260,
}

// ParseLookback validates s. An empty string yields DefaultLookback.
func ParseLookback(s string) (Lookback, error) {
	if s == "" {
		return DefaultLookback, nil
	}
	lb := Lookback(s)
	if _, ok := tradingDays[lb]; !ok {
		return "", fmt.Errorf("unsupported lookback %q", s)
	}
	return lb, nil
}

// TradingDays is the approximate number of daily bars in the window.
func (l Lookback) TradingDays() int {
	if n, ok := tradingDays[l]; ok {
		return n
	}
	return tradingDays[DefaultLookback]
}
