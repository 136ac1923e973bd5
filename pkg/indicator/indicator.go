// Package indicator provides pure technical indicator functions over an
// ordered sequence of closing prices (oldest first).
package indicator

import (
	"gonum.org/v1/gonum/stat"
)

// SMA calculates the Simple Moving Average.
// The result has len(prices)-period+1 values, one per sliding window.
// Returns nil when there are fewer prices than the period.
func SMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}

	values := make([]float64, 0, len(prices)-period+1)
	for i := 0; i+period <= len(prices); i++ {
		values = append(values, stat.Mean(prices[i:i+period], nil))
	}

	return values
}

// EMA calculates the Exponential Moving Average.
// The first value is seeded with the SMA of the first 'period' prices,
// each subsequent value is price*k + prev*(1-k) with k = 2/(period+1).
func EMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}

	k := 2.0 / float64(period+1)

	values := make([]float64, 0, len(prices)-period+1)
	values = append(values, stat.Mean(prices[:period], nil))

	for i := period; i < len(prices); i++ {
		prev := values[len(values)-1]
		values = append(values, prices[i]*k+prev*(1-k))
	}

	return values
}

// RSI calculates the Relative Strength Index from price deltas.
// Average gain/loss are seeded with the simple mean of the first 'period'
// deltas and then smoothed with avg = (avg*(period-1) + new) / period.
// When the average loss is zero the RSI saturates at 100.
func RSI(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) <= period {
		return nil
	}

	deltas := make([]float64, len(prices)-1)
	gains := make([]float64, len(deltas))
	losses := make([]float64, len(deltas))
	for i := 1; i < len(prices); i++ {
		deltas[i-1] = prices[i] - prices[i-1]
		if deltas[i-1] > 0 {
			gains[i-1] = deltas[i-1]
		} else {
			losses[i-1] = -deltas[i-1]
		}
	}

	avgGain := stat.Mean(gains[:period], nil)
	avgLoss := stat.Mean(losses[:period], nil)

	values := make([]float64, 0, len(deltas)-period+1)
	values = append(values, rsiValue(avgGain, avgLoss))

	for i := period; i < len(deltas); i++ {
		avgGain = (avgGain*float64(period-1) + gains[i]) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + losses[i]) / float64(period)
		values = append(values, rsiValue(avgGain, avgLoss))
	}

	return values
}

// rsiValue converts smoothed average gain/loss into an RSI value.
// A zero average loss is the mathematical limit of an infinite RS ratio.
func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// BollingerBands calculates the middle, upper and lower bands.
// The middle band is the SMA, the outer bands are offset by
// stdDevMult population standard deviations of each window.
func BollingerBands(prices []float64, period int, stdDevMult float64) (middle, upper, lower []float64) {
	middle = SMA(prices, period)
	if middle == nil {
		return nil, nil, nil
	}

	upper = make([]float64, len(middle))
	lower = make([]float64, len(middle))
	for i := range middle {
		std := stat.PopStdDev(prices[i:i+period], nil)
		upper[i] = middle[i] + stdDevMult*std
		lower[i] = middle[i] - stdDevMult*std
	}

	return middle, upper, lower
}
