package recorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"RSIPipeline/internal/logger"
	"RSIPipeline/internal/model"

	"github.com/rs/zerolog"
)

var (
	// ErrNoResults is returned for an empty batch.
	ErrNoResults = errors.New("no results to persist")
	// ErrValidationFailed wraps the first invalid result of a batch.
	ErrValidationFailed = errors.New("validation failed")
	// ErrStorage wraps a store failure.
	ErrStorage = errors.New("storage error")
)

// Persister validates a batch of results and writes it in one store call.
type Persister struct {
	store Store
	table string
	now   func() time.Time
	log   zerolog.Logger
}

// NewPersister creates a Persister writing to table (DefaultTable if empty).
func NewPersister(store Store, table string) *Persister {
	if table == "" {
		table = DefaultTable
	}
	return &Persister{
		store: store,
		table: table,
		now:   time.Now,
		log:   logger.Component("persister"),
	}
}

// Table returns the destination table.
func (p *Persister) Table() string { return p.table }

// Write validates results, maps them to records and inserts them as one batch.
// Nothing is written unless every result is valid.
func (p *Persister) Write(ctx context.Context, results []model.RSIResult) (int, error) {
	if len(results) == 0 {
		return 0, ErrNoResults
	}
	if err := ValidateBatch(results); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	now := p.now().UTC()
	records := make([]Record, len(results))
	for i, r := range results {
		records[i] = ToRecord(r, now)
	}

	n, err := p.store.InsertBatch(ctx, p.table, records)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return n, nil
}

// Persist is Write reported as an outcome value.
func (p *Persister) Persist(ctx context.Context, results []model.RSIResult) model.PersistOutcome {
	n, err := p.Write(ctx, results)
	if err != nil {
		p.log.Error().Err(err).Int("results", len(results)).Str("table", p.table).Msg("persist failed")
		return model.PersistOutcome{Success: false, Error: err.Error()}
	}
	p.log.Info().Int("inserted", n).Str("table", p.table).Msg("results persisted")
	return model.PersistOutcome{Success: true, InsertedCount: n}
}
