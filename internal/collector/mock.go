package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"RSIPipeline/internal/model"
)

// MockProvider returns controllable fixed data for development and testing.
// Bars holds per-symbol series; Errors makes a symbol fail. Symbols in
// neither map get a generated series around Price.
type MockProvider struct {
	Price  float64
	Bars   map[string][]model.PriceBar
	Errors map[string]error

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) FetchDailyBars(ctx context.Context, symbol string, lookback Lookback) ([]model.PriceBar, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[symbol]++
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := m.Errors[symbol]; ok {
		return nil, err
	}
	if bars, ok := m.Bars[symbol]; ok {
		return bars, nil
	}
	if m.Price <= 0 {
		return nil, fmt.Errorf("mock: no data for %s", symbol)
	}
	return GenerateBars(symbol, m.Price, lookback.TradingDays(), time.Now()), nil
}

// Calls reports how many times symbol was fetched.
func (m *MockProvider) Calls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[symbol]
}

// GenerateBars builds count daily bars ending the day before end, drifting
// gently upwards from basePrice.
func GenerateBars(symbol string, basePrice float64, count int, end time.Time) []model.PriceBar {
	bars := make([]model.PriceBar, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		if i%3 == 2 {
			p *= 0.998
		}
		vol := int64(1000000 + i*1000)
		bars[i] = model.PriceBar{
			Symbol: symbol,
			Time:   end.AddDate(0, 0, -(count - i)).UTC(),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: &vol,
		}
	}
	return bars
}
