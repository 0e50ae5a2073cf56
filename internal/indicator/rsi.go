package indicator

// RSI computes the relative strength index of the trailing period price
// changes using simple averages. ok is false when history is too short or the
// average loss is zero, where the ratio is undefined.
func RSI(closes []float64, period int) (value float64, ok bool) {
	if period <= 0 || len(closes) < period+1 || !allFinite(closes) {
		return 0, false
	}
	var gain, loss float64
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		return 0, false
	}
	rs := (gain / float64(period)) / (loss / float64(period))
	return 100 - 100/(1+rs), true
}

// RSISignal classifies an RSI reading against the oversold/overbought zones.
func RSISignal(rsi float64, ok bool, oversold, overbought float64) Result {
	if !ok || !finite(rsi) {
		return neutral(KindRSI, "RSI undefined")
	}
	switch {
	case rsi <= oversold:
		return vote(KindRSI, Buy, (oversold-rsi)/oversold, "RSI oversold (%.1f)", rsi)
	case rsi >= overbought:
		return vote(KindRSI, Sell, (rsi-overbought)/(100-overbought), "RSI overbought (%.1f)", rsi)
	}
	return neutral(KindRSI, "RSI neutral (%.1f)", rsi)
}
