// Package indicator computes technical indicators and statistical
// aggregates over validated price series. All math is plain float64;
// undefined values are represented as NaN and must be checked by callers
// with math.IsNaN, never treated as zero.
package indicator

import "math"

// DefaultRSIPeriod is the conventional RSI lookback.
const DefaultRSIPeriod = 14

// CalculateRSI returns the Relative Strength Index series for the given
// closes. The result is aligned with the input: the first period values
// are NaN (not enough history), as is any bar whose rolling window shows
// neither gains nor losses. When the input is shorter than period+1 the
// result is nil rather than a partially valid series.
func CalculateRSI(closes []float64, period int) []float64 {
	if period < 1 || len(closes) < period+1 {
		return nil
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	rsi := make([]float64, len(closes))
	var gainSum, loseSum float64
	for i := 1; i < len(closes); i++ {
		gainSum += gains[i]
		loseSum += losses[i]
		if i > period {
			gainSum -= gains[i-period]
			loseSum -= losses[i-period]
		}

		if i < period {
			rsi[i] = math.NaN()
			continue
		}

		meanGain := gainSum / float64(period)
		meanLoss := loseSum / float64(period)

		switch {
		case meanLoss == 0 && meanGain == 0:
			// Flat window: RS is 0/0, the value is undefined.
			rsi[i] = math.NaN()
		case meanLoss == 0:
			// Pure-gain window: RS grows without bound, RSI saturates.
			rsi[i] = 100
		default:
			rs := meanGain / meanLoss
			rsi[i] = 100 - 100/(1+rs)
		}
	}
	rsi[0] = math.NaN()

	return rsi
}

// Latest returns the last value of an indicator series, or NaN when the
// series is empty.
func Latest(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}
