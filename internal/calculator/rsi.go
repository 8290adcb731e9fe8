package calculator

import (
	"errors"
	"math"

	"RSIPipeline/internal/model"
)

// CalculateRSI computes the RSI at every position of closes using simple
// moving averages of gains and losses over period differences.
//
// The first period positions are NaN (warm-up). A window with neither gains
// nor losses is also NaN; a window with gains and no losses is 100.
func CalculateRSI(closes []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	if len(closes) == 0 {
		return nil, errors.New("no closing prices provided")
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	gains[0], losses[0] = math.NaN(), math.NaN()
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	avgGains, err := SMASeries(gains, period)
	if err != nil {
		return nil, err
	}
	avgLosses, err := SMASeries(losses, period)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(closes))
	for i := range closes {
		out[i] = rsiFromAverages(avgGains[i], avgLosses[i])
	}
	return out, nil
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	switch {
	case math.IsNaN(avgGain) || math.IsNaN(avgLoss):
		return math.NaN()
	case avgLoss == 0 && avgGain == 0:
		return math.NaN()
	case avgLoss == 0:
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// LastRSI returns the most recent RSI value for bars, NaN if undefined.
func LastRSI(bars []model.PriceBar, period int) (float64, error) {
	series, err := CalculateRSI(ExtractCloses(bars), period)
	if err != nil {
		return math.NaN(), err
	}
	return series[len(series)-1], nil
}

// ExtractCloses returns the closing prices of bars in order.
func ExtractCloses(bars []model.PriceBar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
