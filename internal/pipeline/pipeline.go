package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"RSIPipeline/internal/collector"
	"RSIPipeline/internal/logger"
	"RSIPipeline/internal/metrics"
	"RSIPipeline/internal/model"
	"RSIPipeline/internal/recorder"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Skip reasons reported in RunSummary.SkipReason.
const (
	SkipNoResults = "no successful results"
	SkipDisabled  = "result storage disabled"
)

// Run statuses recorded in metrics.
const (
	StatusOK            = "ok"
	StatusPartial       = "partial"
	StatusSkipped       = "skipped"
	StatusPersistFailed = "persist_failed"
	StatusFailed        = "failed"
)

// Analyzer fans a symbol list out to per-symbol RSI computation.
type Analyzer interface {
	Run(ctx context.Context, symbols []string) *model.AnalysisReport
}

// Notifier is told about every completed run.
type Notifier interface {
	NotifyRun(ctx context.Context, summary *model.RunSummary) error
}

// Options controls the optional steps of a run.
type Options struct {
	StoreResults bool
	CleanupDays  int // 0 disables retention cleanup
}

// Pipeline drives one full RSI ingestion run.
type Pipeline struct {
	universe  collector.SymbolUniverse
	analyzer  Analyzer
	store     recorder.Store
	persister *recorder.Persister
	metrics   *metrics.Metrics
	notifier  Notifier
	opts      Options

	now func() time.Time
	log zerolog.Logger
}

// New creates a Pipeline. m and n may be nil.
func New(universe collector.SymbolUniverse, analyzer Analyzer, store recorder.Store, table string,
	m *metrics.Metrics, n Notifier, opts Options) *Pipeline {
	return &Pipeline{
		universe:  universe,
		analyzer:  analyzer,
		store:     store,
		persister: recorder.NewPersister(store, table),
		metrics:   m,
		notifier:  n,
		opts:      opts,
		now:       time.Now,
		log:       logger.Component("pipeline"),
	}
}

// Run executes one pass: resolve symbols, analyze, persist, prune, report.
// Per-symbol failures are reported in the summary. An error is returned only
// when the store is unreachable or no symbols can be resolved.
func (p *Pipeline) Run(ctx context.Context, symbols []string) (*model.RunSummary, error) {
	summary := &model.RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: p.now().UTC(),
	}
	log := p.log.With().Str("run_id", summary.RunID).Logger()

	status, err := p.run(ctx, log, symbols, summary)
	summary.FinishedAt = p.now().UTC()
	p.metrics.ObserveRun(status, summary.FinishedAt.Sub(summary.StartedAt))
	if err != nil {
		log.Error().Err(err).Msg("run aborted")
		return nil, err
	}

	log.Info().
		Int("attempted", summary.Attempted).
		Int("succeeded", len(summary.Succeeded)).
		Int("failed", len(summary.Failed)).
		Bool("persist_skipped", summary.PersistSkipped).
		Int("inserted", summary.Persisted.InsertedCount).
		Str("status", status).
		Msg("run finished")

	if p.notifier != nil {
		if err := p.notifier.NotifyRun(ctx, summary); err != nil {
			log.Warn().Err(err).Msg("run notification failed")
		}
	}
	return summary, nil
}

func (p *Pipeline) run(ctx context.Context, log zerolog.Logger, symbols []string, summary *model.RunSummary) (string, error) {
	if p.opts.StoreResults {
		if err := p.store.Ping(ctx); err != nil {
			return StatusFailed, fmt.Errorf("store unavailable: %w", err)
		}
	}

	resolved, err := p.resolveSymbols(ctx, symbols)
	if err != nil {
		return StatusFailed, err
	}
	log.Info().Int("symbols", len(resolved)).Bool("store", p.opts.StoreResults).Msg("run started")

	report := p.analyzer.Run(ctx, resolved)
	summary.Attempted = report.Attempted()
	summary.Succeeded = report.SuccessSymbols()
	summary.Failed = report.SortedFailures()

	switch {
	case len(report.Results) == 0:
		summary.PersistSkipped = true
		summary.SkipReason = SkipNoResults
		log.Warn().Msg("no successful results, skipping persistence")
		return StatusSkipped, nil
	case !p.opts.StoreResults:
		summary.PersistSkipped = true
		summary.SkipReason = SkipDisabled
	default:
		summary.Persisted = p.persister.Persist(ctx, report.SortedResults())
		p.metrics.ObservePersist(summary.Persisted.Success, summary.Persisted.InsertedCount)
		if !summary.Persisted.Success {
			return StatusPersistFailed, nil
		}
		summary.Pruned = p.cleanup(ctx, log)
	}

	if len(summary.Failed) > 0 {
		return StatusPartial, nil
	}
	return StatusOK, nil
}

// resolveSymbols normalizes the explicit list, or the universe when it is empty.
func (p *Pipeline) resolveSymbols(ctx context.Context, explicit []string) ([]string, error) {
	raw := explicit
	if len(normalize(raw)) == 0 {
		if p.universe == nil {
			return nil, errors.New("no symbols given and no symbol universe configured")
		}
		listed, err := p.universe.ListSymbols(ctx)
		if err != nil {
			return nil, fmt.Errorf("list symbols: %w", err)
		}
		raw = listed
	}

	symbols := normalize(raw)
	if len(symbols) == 0 {
		return nil, errors.New("symbol universe is empty")
	}
	return symbols, nil
}

// cleanup prunes rows older than CleanupDays. Failures are logged only.
func (p *Pipeline) cleanup(ctx context.Context, log zerolog.Logger) int64 {
	if p.opts.CleanupDays <= 0 {
		return 0
	}
	today := p.now().UTC().Truncate(24 * time.Hour)
	cutoff := today.AddDate(0, 0, -p.opts.CleanupDays)

	n, err := p.store.DeleteOlderThan(ctx, p.persister.Table(), cutoff)
	if err != nil {
		log.Error().Err(err).Time("cutoff", cutoff).Msg("retention cleanup failed")
		return 0
	}
	p.metrics.ObservePruned(n)
	if n > 0 {
		log.Info().Int64("rows", n).Str("cutoff", cutoff.Format(time.DateOnly)).Msg("old rows pruned")
	}
	return n
}

// normalize trims, upper-cases and de-duplicates symbols, keeping first-seen order.
func normalize(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
