package analysis

import (
	"context"
	"time"

	"RSIPipeline/internal/logger"
	"RSIPipeline/internal/metrics"
	"RSIPipeline/internal/model"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

// DefaultWorkers is the worker pool size when none is configured.
const DefaultWorkers = 4

// SymbolAnalyzer is the per-symbol step the orchestrator fans out.
type SymbolAnalyzer interface {
	Analyze(ctx context.Context, symbol string) (model.RSIResult, error)
}

// Orchestrator runs an analyzer over many symbols on a bounded pool.
type Orchestrator struct {
	analyzer SymbolAnalyzer
	workers  int
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// NewOrchestrator creates an Orchestrator. m may be nil.
func NewOrchestrator(analyzer SymbolAnalyzer, workers int, m *metrics.Metrics) *Orchestrator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Orchestrator{
		analyzer: analyzer,
		workers:  workers,
		metrics:  m,
		log:      logger.Component("orchestrator"),
	}
}

type outcome struct {
	symbol string
	result model.RSIResult
	err    error
}

// Run analyzes every distinct symbol and returns the aggregated report.
// A failing symbol is recorded and never stops the others.
func (o *Orchestrator) Run(ctx context.Context, symbols []string) *model.AnalysisReport {
	unique := dedupe(symbols)
	start := time.Now()
	o.log.Info().Int("symbols", len(unique)).Int("workers", o.workers).Msg("analysis started")

	p := pool.NewWithResults[outcome]().WithMaxGoroutines(o.workers)
	for _, sym := range unique {
		p.Go(func() outcome {
			t0 := time.Now()
			res, err := o.analyze(ctx, sym)
			label := "ok"
			if err != nil {
				label = string(KindOf(err))
				if label == "" {
					label = string(KindDataUnavailable)
				}
			}
			o.metrics.ObserveSymbol(label, time.Since(t0))
			return outcome{symbol: sym, result: res, err: err}
		})
	}
	outcomes := p.Wait()

	report := model.NewAnalysisReport()
	for _, oc := range outcomes {
		if oc.err != nil {
			o.log.Warn().Str("symbol", oc.symbol).Err(oc.err).Msg("symbol failed")
			report.Failures = append(report.Failures, model.SymbolFailure{Symbol: oc.symbol, Reason: oc.err.Error()})
			continue
		}
		report.Results[oc.symbol] = oc.result
	}

	o.log.Info().
		Int("succeeded", len(report.Results)).
		Int("failed", len(report.Failures)).
		Dur("elapsed", time.Since(start)).
		Msg("analysis finished")
	return report
}

// analyze runs one symbol, converting a panic into a computation error.
func (o *Orchestrator) analyze(ctx context.Context, sym string) (res model.RSIResult, err error) {
	var pc panics.Catcher
	pc.Try(func() { res, err = o.analyzer.Analyze(ctx, sym) })
	if r := pc.Recovered(); r != nil {
		return model.RSIResult{}, NewComputationError(sym, "panic", r.AsError())
	}
	return res, err
}

func dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
