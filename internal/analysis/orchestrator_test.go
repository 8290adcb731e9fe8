package analysis

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"RSIPipeline/internal/collector"
	"RSIPipeline/internal/metrics"
	"RSIPipeline/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// funcAnalyzer adapts a function to SymbolAnalyzer.
type funcAnalyzer func(ctx context.Context, symbol string) (model.RSIResult, error)

func (f funcAnalyzer) Analyze(ctx context.Context, symbol string) (model.RSIResult, error) {
	return f(ctx, symbol)
}

func TestOrchestrator_IsolatesFailures(t *testing.T) {
	provider := &collector.MockProvider{
		Bars:   map[string][]model.PriceBar{"AAPL": trendBars("AAPL", 20, 10)},
		Errors: map[string]error{"BAD": errors.New("no such symbol")},
	}
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	o := NewOrchestrator(NewAnalyzer(provider, 14, ""), 2, m)

	report := o.Run(context.Background(), []string{"AAPL", "BAD"})

	if got := report.SuccessSymbols(); !reflect.DeepEqual(got, []string{"AAPL"}) {
		t.Errorf("successes = %v, want [AAPL]", got)
	}
	if len(report.Failures) != 1 || report.Failures[0].Symbol != "BAD" {
		t.Fatalf("failures = %+v, want exactly BAD", report.Failures)
	}
	if report.Failures[0].Reason == "" {
		t.Error("failure reason should not be empty")
	}
	if report.Attempted() != 2 {
		t.Errorf("Attempted() = %d, want 2", report.Attempted())
	}
	if got := testutil.ToFloat64(m.SymbolsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SymbolsTotal.WithLabelValues("data_unavailable")); got != 1 {
		t.Errorf("data_unavailable counter = %v, want 1", got)
	}
}

func TestOrchestrator_RecoversPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	o := NewOrchestrator(funcAnalyzer(func(_ context.Context, symbol string) (model.RSIResult, error) {
		if symbol == "BAD" {
			var cache map[string]int
			cache[symbol] = 1
		}
		return model.RSIResult{Symbol: symbol, RSIValue: 50, RSIPeriod: 14}, nil
	}), 2, m)

	report := o.Run(context.Background(), []string{"AAPL", "BAD", "MSFT"})

	if got := report.SuccessSymbols(); !reflect.DeepEqual(got, []string{"AAPL", "MSFT"}) {
		t.Errorf("successes = %v, want [AAPL MSFT]", got)
	}
	if len(report.Failures) != 1 || report.Failures[0].Symbol != "BAD" {
		t.Fatalf("failures = %+v, want exactly BAD", report.Failures)
	}
	if got := testutil.ToFloat64(m.SymbolsTotal.WithLabelValues("computation_error")); got != 1 {
		t.Errorf("computation_error counter = %v, want 1", got)
	}
}

func TestOrchestrator_AllFail(t *testing.T) {
	o := NewOrchestrator(NewAnalyzer(&collector.MockProvider{}, 14, ""), 0, nil)

	report := o.Run(context.Background(), []string{"A", "B", "C"})
	if len(report.Results) != 0 {
		t.Errorf("expected no results, got %d", len(report.Results))
	}
	failures := report.SortedFailures()
	if len(failures) != 3 || failures[0].Symbol != "A" || failures[2].Symbol != "C" {
		t.Errorf("unexpected failures %+v", failures)
	}
}

func TestOrchestrator_DeduplicatesSymbols(t *testing.T) {
	provider := &collector.MockProvider{Price: 50}
	o := NewOrchestrator(NewAnalyzer(provider, 14, collector.Lookback3mo), 4, nil)

	report := o.Run(context.Background(), []string{"MSFT", "MSFT", "AAPL", "MSFT"})
	if provider.Calls("MSFT") != 1 {
		t.Errorf("MSFT fetched %d times, want 1", provider.Calls("MSFT"))
	}
	if report.Attempted() != 2 {
		t.Errorf("Attempted() = %d, want 2", report.Attempted())
	}
}

func TestOrchestrator_EmptyInput(t *testing.T) {
	o := NewOrchestrator(NewAnalyzer(&collector.MockProvider{}, 14, ""), 2, nil)
	report := o.Run(context.Background(), nil)
	if report.Attempted() != 0 {
		t.Errorf("Attempted() = %d, want 0", report.Attempted())
	}
}

func TestOrchestrator_BoundedConcurrency(t *testing.T) {
	const workers = 3
	var inFlight, peak int32
	a := funcAnalyzer(func(ctx context.Context, symbol string) (model.RSIResult, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return model.RSIResult{Symbol: symbol, RSIValue: 50, RSIPeriod: 14}, nil
	})

	symbols := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}
	report := NewOrchestrator(a, workers, nil).Run(context.Background(), symbols)

	if len(report.Results) != len(symbols) {
		t.Errorf("expected %d results, got %d", len(symbols), len(report.Results))
	}
	if got := atomic.LoadInt32(&peak); got > workers {
		t.Errorf("peak concurrency %d exceeds %d workers", got, workers)
	}
}

func TestOrchestrator_CancelledContext(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	a := funcAnalyzer(func(ctx context.Context, symbol string) (model.RSIResult, error) {
		mu.Lock()
		seen[symbol] = true
		mu.Unlock()
		if err := ctx.Err(); err != nil {
			return model.RSIResult{}, NewDataUnavailable(symbol, "cancelled", err)
		}
		return model.RSIResult{Symbol: symbol}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := NewOrchestrator(a, 2, nil).Run(ctx, []string{"A", "B"})

	if len(report.Failures) != 2 {
		t.Errorf("expected both symbols to fail, got %+v", report.Failures)
	}
	if len(seen) != 2 {
		t.Errorf("expected every symbol to be attempted, saw %v", seen)
	}
}
