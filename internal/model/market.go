package model

import "time"

// PriceBar represents a single daily OHLCV observation.
type PriceBar struct {
	Symbol string    `json:"symbol"`
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume *int64    `json:"volume,omitempty"` // nil when the source did not report volume
}

// Day returns the UTC calendar day of the bar.
func (b PriceBar) Day() time.Time {
	t := b.Time.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
