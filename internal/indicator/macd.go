package indicator

import "math"

// MACDValues holds the MACD line, its signal line and their difference.
type MACDValues struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes fast/slow EMA difference series.
func MACD(closes []float64, fast, slow, signal int) MACDValues {
	if len(closes) == 0 || fast <= 0 || slow <= 0 || signal <= 0 {
		return MACDValues{}
	}
	f, s := EMA(closes, fast), EMA(closes, slow)
	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = f[i] - s[i]
	}
	sig := EMA(line, signal)
	hist := make([]float64, len(closes))
	for i := range line {
		hist[i] = line[i] - sig[i]
	}
	return MACDValues{MACD: line, Signal: sig, Histogram: hist}
}

// MACDSignal votes on a crossover of the MACD line through its signal line,
// or weakly on the histogram sign when no crossover happened on the last bar.
func MACDSignal(v MACDValues) Result {
	n := len(v.MACD)
	if n < 2 || len(v.Signal) != n || len(v.Histogram) != n {
		return neutral(KindMACD, "MACD insufficient data")
	}
	cur, prev := v.MACD[n-1], v.MACD[n-2]
	curSig, prevSig := v.Signal[n-1], v.Signal[n-2]
	hist := v.Histogram[n-1]
	if !finite(cur, prev, curSig, prevSig, hist) {
		return neutral(KindMACD, "MACD invalid")
	}

	ratio := 0.0
	if cur != 0 {
		ratio = math.Abs(hist) / math.Abs(cur)
	}
	switch {
	case prev <= prevSig && cur > curSig:
		return vote(KindMACD, Buy, ratio, "MACD crossed above signal")
	case prev >= prevSig && cur < curSig:
		return vote(KindMACD, Sell, ratio, "MACD crossed below signal")
	case hist > 0:
		return vote(KindMACD, Buy, math.Min(ratio, 0.5), "MACD histogram positive (%.4f)", hist)
	case hist < 0:
		return vote(KindMACD, Sell, math.Min(ratio, 0.5), "MACD histogram negative (%.4f)", hist)
	}
	return neutral(KindMACD, "MACD neutral")
}
