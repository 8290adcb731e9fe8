package model

import (
	"sort"
	"time"
)

// SymbolFailure records why a symbol produced no result.
type SymbolFailure struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// AnalysisReport aggregates the per-symbol outcomes of one run.
type AnalysisReport struct {
	Results  map[string]RSIResult
	Failures []SymbolFailure
}

// NewAnalysisReport returns an empty report.
func NewAnalysisReport() *AnalysisReport {
	return &AnalysisReport{Results: make(map[string]RSIResult)}
}

// Attempted is the number of symbols that produced either a result or a failure.
func (r *AnalysisReport) Attempted() int {
	return len(r.Results) + len(r.Failures)
}

// SuccessSymbols returns the symbols with a result, sorted.
func (r *AnalysisReport) SuccessSymbols() []string {
	out := make([]string, 0, len(r.Results))
	for sym := range r.Results {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// SortedResults returns the results ordered by symbol.
func (r *AnalysisReport) SortedResults() []RSIResult {
	syms := r.SuccessSymbols()
	out := make([]RSIResult, len(syms))
	for i, sym := range syms {
		out[i] = r.Results[sym]
	}
	return out
}

// SortedFailures returns a copy of the failures ordered by symbol.
func (r *AnalysisReport) SortedFailures() []SymbolFailure {
	out := make([]SymbolFailure, len(r.Failures))
	copy(out, r.Failures)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// PersistOutcome is the result of one batch persist attempt.
type PersistOutcome struct {
	Success       bool   `json:"success"`
	InsertedCount int    `json:"inserted_count"`
	Error         string `json:"error,omitempty"`
}

// RunSummary is what a pipeline run reports back to its caller.
type RunSummary struct {
	RunID          string          `json:"run_id"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
	Attempted      int             `json:"attempted"`
	Succeeded      []string        `json:"succeeded"`
	Failed         []SymbolFailure `json:"failed"`
	Persisted      PersistOutcome  `json:"persisted"`
	PersistSkipped bool            `json:"persist_skipped"`
	SkipReason     string          `json:"skip_reason,omitempty"`
	Pruned         int64           `json:"pruned"`
}
