package recorder

import (
	"context"
	"time"

	"RSIPipeline/internal/model"

	"github.com/shopspring/decimal"
)

// DefaultTable is the table RSI records are written to when none is configured.
const DefaultTable = "rsi_data"

// Record is one storage row. JSON tags match the column names.
type Record struct {
	Symbol    string  `json:"symbol"`
	Date      string  `json:"date"`
	RSIValue  float64 `json:"rsi_value"`
	RSIPeriod int     `json:"rsi_period"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    *int64  `json:"volume"`
	CreatedAt string  `json:"created_at"`
}

// Store persists RSI records. Implementations must make InsertBatch
// idempotent per (symbol, date, rsi_period).
type Store interface {
	Ping(ctx context.Context) error
	InsertBatch(ctx context.Context, table string, records []Record) (int, error)
	DeleteOlderThan(ctx context.Context, table string, cutoff time.Time) (int64, error)
	Close() error
}

// ToRecord maps a validated result to its storage row. Prices and the RSI
// are rounded to 4 decimal places. A zero CreatedAt is replaced by now.
func ToRecord(r model.RSIResult, now time.Time) Record {
	created := r.CreatedAt
	if created.IsZero() {
		created = now
	}
	rec := Record{
		Symbol:    r.Symbol,
		Date:      r.Date.UTC().Format(time.DateOnly),
		RSIValue:  round4(r.RSIValue),
		RSIPeriod: r.RSIPeriod,
		Open:      round4(r.Open),
		High:      round4(r.High),
		Low:       round4(r.Low),
		Close:     round4(r.Close),
		CreatedAt: created.UTC().Format(time.RFC3339),
	}
	if r.Volume != nil {
		v := *r.Volume
		rec.Volume = &v
	}
	return rec
}

func round4(v float64) float64 {
	return decimal.NewFromFloat(v).Round(4).InexactFloat64()
}
