package indicator

import "math"

// EMA returns the exponential moving average series with alpha 2/(span+1),
// seeded with the first value. The result has the same length as values.
func EMA(values []float64, span int) []float64 {
	if len(values) == 0 || span <= 0 {
		return nil
	}
	alpha := 2 / (float64(span) + 1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = out[i-1] + alpha*(values[i]-out[i-1])
	}
	return out
}

// SMA returns the mean of the trailing period values.
func SMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	return Mean(values[len(values)-period:]), true
}

// Mean is the arithmetic mean; zero for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev is the sample standard deviation.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := Mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

// Volatility is the sample deviation of simple returns over the trailing
// period, scaled by sqrt(period).
func Volatility(closes []float64, period int) float64 {
	if period < 2 || len(closes) < period {
		return 0
	}
	window := closes[len(closes)-period:]
	returns := make([]float64, 0, period-1)
	for i := 1; i < len(window); i++ {
		if window[i-1] <= 0 {
			continue
		}
		returns = append(returns, window[i]/window[i-1]-1)
	}
	v := StdDev(returns) * math.Sqrt(float64(period))
	if !finite(v) {
		return 0
	}
	return v
}
