package indicator

import "math"

// Triplet holds the short, long and trend-filter EMA series.
type Triplet struct {
	Short  []float64
	Long   []float64
	Filter []float64
}

// EMATriplet computes the three EMA series.
func EMATriplet(closes []float64, short, long, filter int) Triplet {
	return Triplet{
		Short:  EMA(closes, short),
		Long:   EMA(closes, long),
		Filter: EMA(closes, filter),
	}
}

// EMASignal votes on a short/long crossover confirmed by price against the
// filter EMA. Without a fresh crossover, full alignment gives a weaker
// continuation vote capped at 0.5.
func EMASignal(price float64, t Triplet) Result {
	n := len(t.Short)
	if n < 2 || len(t.Long) != n || len(t.Filter) != n {
		return neutral(KindEMA, "EMA insufficient data")
	}
	s, l, f := t.Short[n-1], t.Long[n-1], t.Filter[n-1]
	ps, pl := t.Short[n-2], t.Long[n-2]
	if !finite(price, s, l, f, ps, pl) || l == 0 {
		return neutral(KindEMA, "EMA invalid")
	}

	if ps <= pl && s > l && price > f {
		return vote(KindEMA, Buy, math.Abs((s-l)/l), "golden cross confirmed above filter")
	}
	if ps >= pl && s < l && price < f {
		return vote(KindEMA, Sell, math.Abs((l-s)/l), "death cross confirmed below filter")
	}
	switch {
	case s > l && l > f:
		return vote(KindEMA, Buy, math.Min((s-l)/l*0.5, 0.5), "EMAs aligned up")
	case s < l && l < f:
		return vote(KindEMA, Sell, math.Min((l-s)/l*0.5, 0.5), "EMAs aligned down")
	}
	return neutral(KindEMA, "EMAs mixed")
}
