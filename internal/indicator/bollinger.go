package indicator

// Bands are the latest Bollinger values.
type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Width is the distance between the outer bands.
func (b Bands) Width() float64 { return b.Upper - b.Lower }

// Bollinger computes mean +/- mult sample deviations over the trailing period.
func Bollinger(closes []float64, period int, mult float64) (Bands, bool) {
	if period < 2 || len(closes) < period {
		return Bands{}, false
	}
	window := closes[len(closes)-period:]
	if !allFinite(window) {
		return Bands{}, false
	}
	mid := Mean(window)
	sd := StdDev(window)
	return Bands{Upper: mid + mult*sd, Middle: mid, Lower: mid - mult*sd}, true
}

// BollingerSignal votes BUY at or below the lower band and SELL at or above
// the upper band, graded by penetration relative to band width. Collapsed
// bands carry no information and vote NEUTRAL.
func BollingerSignal(price float64, b Bands, ok bool) Result {
	if !ok || !finite(price, b.Upper, b.Middle, b.Lower) {
		return neutral(KindBollinger, "Bollinger insufficient data")
	}
	width := b.Width()
	if width <= 0 {
		return neutral(KindBollinger, "Bollinger bands collapsed")
	}
	switch {
	case price <= b.Lower:
		return vote(KindBollinger, Buy, 2*(b.Lower-price)/width, "price at lower band (%.4f <= %.4f)", price, b.Lower)
	case price >= b.Upper:
		return vote(KindBollinger, Sell, 2*(price-b.Upper)/width, "price at upper band (%.4f >= %.4f)", price, b.Upper)
	}
	return neutral(KindBollinger, "price inside bands")
}
