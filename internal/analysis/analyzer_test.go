package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"RSIPipeline/internal/collector"
	"RSIPipeline/internal/model"
)

var testEnd = time.Date(2024, 5, 31, 20, 0, 0, 0, time.UTC)

// trendBars builds rising closes followed by flat ones, one bar per day
// ending at testEnd.
func trendBars(symbol string, rising, flat int) []model.PriceBar {
	n := rising + flat
	bars := make([]model.PriceBar, n)
	price := 100.0
	for i := 0; i < n; i++ {
		if i > 0 && i < rising {
			price++
		}
		vol := int64(1000 + i)
		bars[i] = model.PriceBar{
			Symbol: symbol,
			Time:   testEnd.AddDate(0, 0, i-n+1),
			Open:   price - 0.5,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: &vol,
		}
	}
	return bars
}

func constantBars(symbol string, n int) []model.PriceBar {
	return trendBars(symbol, 0, n)
}

// withLastBar applies edit to the most recent bar.
func withLastBar(bars []model.PriceBar, edit func(*model.PriceBar)) []model.PriceBar {
	edit(&bars[len(bars)-1])
	return bars
}

type blockingProvider struct{}

func (blockingProvider) Name() string { return "blocking" }

func (blockingProvider) FetchDailyBars(ctx context.Context, _ string, _ collector.Lookback) ([]model.PriceBar, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestAnalyzer_Analyze(t *testing.T) {
	provider := &collector.MockProvider{
		Bars: map[string][]model.PriceBar{"AAPL": trendBars("AAPL", 20, 10)},
	}
	a := NewAnalyzer(provider, 14, collector.Lookback3mo)
	fixed := time.Date(2024, 6, 1, 9, 0, 0, 0, time.FixedZone("X", 3600))
	a.now = func() time.Time { return fixed }

	got, err := a.Analyze(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Analyze() returned unexpected error: %v", err)
	}

	last := provider.Bars["AAPL"][29]
	if got.Symbol != "AAPL" || got.RSIPeriod != 14 {
		t.Errorf("unexpected identity: %+v", got)
	}
	if got.RSIValue != 100 {
		t.Errorf("RSIValue = %v, want 100", got.RSIValue)
	}
	if !got.Date.Equal(time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Date = %v, want 2024-05-31", got.Date)
	}
	if got.Open != last.Open || got.Close != last.Close || got.High != last.High || got.Low != last.Low {
		t.Errorf("OHLC does not match last bar: %+v vs %+v", got, last)
	}
	if got.Volume == nil || *got.Volume != *last.Volume {
		t.Errorf("Volume = %v, want %d", got.Volume, *last.Volume)
	}
	if !got.CreatedAt.Equal(fixed) || got.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt = %v, want %v in UTC", got.CreatedAt, fixed)
	}
}

func TestAnalyzer_Failures(t *testing.T) {
	boom := errors.New("provider down")
	negative := int64(-1)
	provider := &collector.MockProvider{
		Bars: map[string][]model.PriceBar{
			"SHORT": trendBars("SHORT", 10, 0),
			"EDGE":  trendBars("EDGE", 14, 0),
			"FLAT":  constantBars("FLAT", 30),
			"ZERO":  withLastBar(trendBars("ZERO", 20, 10), func(b *model.PriceBar) { b.Open = 0 }),
			"NEGV":  withLastBar(trendBars("NEGV", 20, 10), func(b *model.PriceBar) { b.Volume = &negative }),
		},
		Errors: map[string]error{"BAD": boom},
	}
	a := NewAnalyzer(provider, 14, collector.Lookback1y)

	tests := []struct {
		symbol string
		kind   Kind
	}{
		{"BAD", KindDataUnavailable},
		{"SHORT", KindDataUnavailable},
		{"EDGE", KindDataUnavailable},
		{"FLAT", KindComputationError},
		{"UNKNOWN", KindDataUnavailable},
		{"ZERO", KindDataUnavailable},
		{"NEGV", KindDataUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			_, err := a.Analyze(context.Background(), tt.symbol)
			if err == nil {
				t.Fatal("Analyze() expected error, got nil")
			}
			if KindOf(err) != tt.kind {
				t.Errorf("kind = %q, want %q (err: %v)", KindOf(err), tt.kind, err)
			}
		})
	}

	if _, err := a.Analyze(context.Background(), "BAD"); !errors.Is(err, boom) {
		t.Errorf("expected provider error to be wrapped, got %v", err)
	}
}

func TestAnalyzer_ExactMinimumHistory(t *testing.T) {
	provider := &collector.MockProvider{
		Bars: map[string][]model.PriceBar{"MIN": trendBars("MIN", 15, 0)},
	}
	a := NewAnalyzer(provider, 14, "")

	got, err := a.Analyze(context.Background(), "MIN")
	if err != nil {
		t.Fatalf("Analyze() with period+1 bars returned error: %v", err)
	}
	if got.RSIValue != 100 {
		t.Errorf("RSIValue = %v, want 100", got.RSIValue)
	}
}

func TestAnalyzer_EmptySymbol(t *testing.T) {
	provider := &collector.MockProvider{Price: 100}
	a := NewAnalyzer(provider, 14, "")

	_, err := a.Analyze(context.Background(), "  ")
	if !IsDataUnavailable(err) {
		t.Fatalf("expected data unavailable, got %v", err)
	}
	if provider.Calls("") != 0 {
		t.Error("provider should not be called for an empty symbol")
	}
}

func TestAnalyzer_Timeout(t *testing.T) {
	a := NewAnalyzer(blockingProvider{}, 14, "")
	a.Timeout = 20 * time.Millisecond

	_, err := a.Analyze(context.Background(), "SLOW")
	if !IsDataUnavailable(err) {
		t.Fatalf("expected data unavailable on timeout, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded cause, got %v", err)
	}
}

func TestAnalyzer_Defaults(t *testing.T) {
	a := NewAnalyzer(&collector.MockProvider{}, 0, "")
	if a.Period() != model.DefaultRSIPeriod {
		t.Errorf("Period() = %d, want %d", a.Period(), model.DefaultRSIPeriod)
	}
	if a.lookback != collector.DefaultLookback {
		t.Errorf("lookback = %q, want %q", a.lookback, collector.DefaultLookback)
	}
}

func TestError_Format(t *testing.T) {
	err := NewComputationError("X", "rsi undefined", nil)
	if err.Error() != "computation_error: X: rsi undefined" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if IsDataUnavailable(err) || !IsComputationError(err) {
		t.Error("kind helpers disagree with Kind")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("KindOf should be empty for foreign errors")
	}
}
