package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"RSIPipeline/internal/calculator"
	"RSIPipeline/internal/collector"
	"RSIPipeline/internal/model"
)

// Analyzer fetches a symbol's daily bars and computes its latest RSI.
type Analyzer struct {
	provider collector.PriceProvider
	period   int
	lookback collector.Lookback

	// Timeout bounds one symbol's fetch. Zero means no per-symbol limit.
	Timeout time.Duration

	now func() time.Time
}

// NewAnalyzer creates an Analyzer. A non-positive period uses
// model.DefaultRSIPeriod and an empty lookback uses collector.DefaultLookback.
func NewAnalyzer(provider collector.PriceProvider, period int, lookback collector.Lookback) *Analyzer {
	if period <= 0 {
		period = model.DefaultRSIPeriod
	}
	if lookback == "" {
		lookback = collector.DefaultLookback
	}
	return &Analyzer{
		provider: provider,
		period:   period,
		lookback: lookback,
		now:      time.Now,
	}
}

// Period returns the RSI look-back in bars.
func (a *Analyzer) Period() int { return a.period }

// Analyze returns the RSI snapshot for the most recent bar of symbol.
// Failures are *Error values.
func (a *Analyzer) Analyze(ctx context.Context, symbol string) (model.RSIResult, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return model.RSIResult{}, NewDataUnavailable(symbol, "empty symbol", nil)
	}

	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	bars, err := a.provider.FetchDailyBars(ctx, symbol, a.lookback)
	if err != nil {
		return model.RSIResult{}, NewDataUnavailable(symbol, "fetch bars", err)
	}
	if len(bars) < a.period+1 {
		return model.RSIResult{}, NewDataUnavailable(symbol,
			fmt.Sprintf("insufficient history: %d bars, need %d", len(bars), a.period+1), nil)
	}

	rsi, err := calculator.LastRSI(bars, a.period)
	if err != nil {
		return model.RSIResult{}, NewComputationError(symbol, "compute rsi", err)
	}
	if math.IsNaN(rsi) || math.IsInf(rsi, 0) {
		return model.RSIResult{}, NewComputationError(symbol, "rsi undefined for latest bar", nil)
	}

	last := bars[len(bars)-1]
	if err := checkBar(last); err != nil {
		return model.RSIResult{}, NewDataUnavailable(symbol, "invalid latest bar", err)
	}
	return model.RSIResult{
		Symbol:    symbol,
		Date:      last.Day(),
		RSIValue:  rsi,
		RSIPeriod: a.period,
		Open:      last.Open,
		Close:     last.Close,
		High:      last.High,
		Low:       last.Low,
		Volume:    last.Volume,
		CreatedAt: a.now().UTC(),
	}, nil
}

// checkBar rejects a bar whose prices are not positive finite numbers or
// whose volume is negative.
func checkBar(b model.PriceBar) error {
	for _, f := range []struct {
		name string
		v    float64
	}{{"open", b.Open}, {"high", b.High}, {"low", b.Low}, {"close", b.Close}} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v <= 0 {
			return fmt.Errorf("%s must be a positive number, got %v", f.name, f.v)
		}
	}
	if b.Volume != nil && *b.Volume < 0 {
		return fmt.Errorf("volume must not be negative, got %d", *b.Volume)
	}
	return nil
}
