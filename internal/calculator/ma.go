package calculator

import (
	"errors"
	"math"
)

// SMASeries returns the trailing simple moving average at every index.
// Positions before the window is full are NaN, and so is any window that
// contains a NaN.
func SMASeries(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	out := make([]float64, len(values))
	for i := range values {
		if i+1 < period {
			out[i] = math.NaN()
			continue
		}
		out[i] = windowMean(values[i+1-period : i+1])
	}
	return out, nil
}

// windowMean sums the window from scratch so an all-zero window yields exactly 0.
func windowMean(window []float64) float64 {
	sum := 0.0
	for _, v := range window {
		sum += v
	}
	return sum / float64(len(window))
}
