package signal

import (
	"fmt"
	"math"

	"fusionbot-go/internal/indicator"
	"fusionbot-go/internal/market"
)

// Pattern is a single-candle reversal reading on the last bar.
type Pattern struct {
	Name       string  `json:"name"`
	Action     Action  `json:"action"`
	Volatility float64 `json:"volatility"`
	Reason     string  `json:"reason"`
}

// Reversal detects hammer, shooting star and doji candles. A pattern only
// yields an action when volatility over the configured period exceeds the
// minimum.
func (e *Engine) Reversal(bars []market.Bar) Pattern {
	p := Pattern{Name: "none", Action: Wait}
	n := len(bars)
	if n < 3 {
		p.Reason = "insufficient history"
		return p
	}
	cur, prev := bars[n-1], bars[n-2]
	body := math.Abs(cur.Close - cur.Open)
	upper := cur.High - math.Max(cur.Open, cur.Close)
	lower := math.Min(cur.Open, cur.Close) - cur.Low
	span := cur.High - cur.Low
	if span <= 0 {
		p.Reason = "flat candle"
		return p
	}

	shadow, opposite := body*e.pat.HammerShadow, body*e.pat.HammerOpposite
	var dir Action
	switch {
	case lower > shadow && upper < opposite && cur.Close > prev.Close:
		p.Name, dir = "hammer", Buy
	case upper > shadow && lower < opposite && cur.Close < prev.Close:
		p.Name, dir = "shooting_star", Sell
	case body < span*e.pat.DojiBody:
		switch e.shortTrend(bars) {
		case Bullish:
			p.Name, dir = "doji_bearish", Sell
		case Bearish:
			p.Name, dir = "doji_bullish", Buy
		}
	}
	if dir == "" {
		p.Reason = "no reversal pattern"
		return p
	}

	p.Volatility = indicator.Volatility(market.Closes(bars), e.pat.VolatilityPeriod)
	if p.Volatility <= e.pat.MinVolatility {
		p.Reason = fmt.Sprintf("%s ignored: volatility %.4f <= %.4f", p.Name, p.Volatility, e.pat.MinVolatility)
		return p
	}
	p.Action = dir
	p.Reason = fmt.Sprintf("%s with volatility %.4f", p.Name, p.Volatility)
	return p
}

// shortTrend compares the first and last close of the trend lookback.
func (e *Engine) shortTrend(bars []market.Bar) Trend {
	lb := e.pat.TrendLookback
	if lb < 2 || len(bars) < lb {
		return Sideways
	}
	first, last := bars[len(bars)-lb].Close, bars[len(bars)-1].Close
	if first <= 0 {
		return Sideways
	}
	switch ch := (last - first) / first; {
	case ch > e.pat.TrendChange:
		return Bullish
	case ch < -e.pat.TrendChange:
		return Bearish
	}
	return Sideways
}

// Divergence compares the last two price extremes with RSI at the same bars.
type Divergence struct {
	Bullish  bool    `json:"bullish"`
	Bearish  bool    `json:"bearish"`
	Strength float64 `json:"strength"`
	Peaks    int     `json:"peaks"`
	Troughs  int     `json:"troughs"`
}

type extremum struct {
	price float64
	rsi   float64
}

// Divergence looks for higher price peaks with lower RSI peaks (bearish) and
// lower price troughs with higher RSI troughs (bullish) inside the lookback.
// Both the price move and the RSI move must clear their thresholds.
func (e *Engine) Divergence(bars []market.Bar) Divergence {
	var d Divergence
	lb, period, wing := e.pat.DivergenceLookback, e.ind.RSI.Period, e.pat.ExtremumWing
	n := len(bars)
	if wing <= 0 || lb <= 2*wing || n < lb+period+5 {
		return d
	}
	closes := market.Closes(bars)
	start := n - lb

	var peaks, troughs []extremum
	for i := start + wing; i < n-wing; i++ {
		c := closes[i]
		high, low := true, true
		for k := 1; k <= wing; k++ {
			high = high && c > closes[i-k] && c > closes[i+k]
			low = low && c < closes[i-k] && c < closes[i+k]
		}
		if !high && !low {
			continue
		}
		rsi, ok := rsiAt(closes[:i+1], period)
		if !ok {
			continue
		}
		if high {
			peaks = append(peaks, extremum{c, rsi})
		} else {
			troughs = append(troughs, extremum{c, rsi})
		}
	}
	d.Peaks, d.Troughs = len(peaks), len(troughs)

	if len(peaks) >= 2 {
		prev, last := peaks[len(peaks)-2], peaks[len(peaks)-1]
		if last.price > prev.price && last.rsi < prev.rsi {
			pct := (last.price - prev.price) / prev.price
			drop := prev.rsi - last.rsi
			if pct > e.pat.DivergencePriceChange && drop > e.pat.DivergenceRSIChange {
				d.Bearish = true
				d.Strength = math.Min((pct+drop/100)/2, 1)
			}
		}
	}
	if len(troughs) >= 2 {
		prev, last := troughs[len(troughs)-2], troughs[len(troughs)-1]
		if last.price < prev.price && last.rsi > prev.rsi {
			pct := (prev.price - last.price) / prev.price
			rise := last.rsi - prev.rsi
			if pct > e.pat.DivergencePriceChange && rise > e.pat.DivergenceRSIChange {
				d.Bullish = true
				d.Strength = math.Min((pct+rise/100)/2, 1)
			}
		}
	}
	return d
}

// rsiAt is RSI with the all-gains case read as 100 rather than undefined.
func rsiAt(closes []float64, period int) (float64, bool) {
	if v, ok := indicator.RSI(closes, period); ok {
		return v, true
	}
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}
	for i := len(closes) - period; i < len(closes); i++ {
		if closes[i] > closes[i-1] {
			return 100, true
		}
	}
	return 0, false
}
