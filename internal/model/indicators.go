package model

import (
	"math"
	"time"
)

// DefaultRSIPeriod is the look-back used when none is configured.
const DefaultRSIPeriod = 14

// RSIResult is one computed RSI snapshot for a symbol.
//
// RSIValue is NaN when the indicator is undefined. Such results are rejected by
// the recorder and never stored.
type RSIResult struct {
	Symbol    string
	Date      time.Time
	RSIValue  float64
	RSIPeriod int
	Open      float64
	Close     float64
	High      float64
	Low       float64
	Volume    *int64
	CreatedAt time.Time
}

// Defined reports whether the RSI value is a number.
func (r RSIResult) Defined() bool {
	return !math.IsNaN(r.RSIValue)
}
