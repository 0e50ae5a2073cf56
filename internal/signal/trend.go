package signal

import (
	"fmt"
	"math"

	"fusionbot-go/internal/indicator"
	"fusionbot-go/internal/market"
)

// Trend classifies the confirmation timeframe by price against the filter
// EMA and the filter EMA's slope over the slope lookback.
func (e *Engine) Trend(bars []market.Bar) TrendContext {
	n, lb := len(bars), e.tr.SlopeLookback
	if lb <= 0 || n < e.ConfirmationHistory() || n <= lb {
		return sideways()
	}
	closes := market.Closes(bars)
	ema := indicator.EMA(closes, e.ind.EMA.Filter)
	cur, past := ema[n-1], ema[n-lb]
	price := closes[n-1]
	if cur <= 0 || past <= 0 || !finiteAll(cur, past, price) {
		return sideways()
	}

	pv := (price - cur) / cur
	slope := (cur - past) / past
	tc := TrendContext{PriceVsEMA: Level, Slope: Flat, FilterEMA: cur}
	switch {
	case pv > e.tr.PriceBand:
		tc.PriceVsEMA = Above
	case pv < -e.tr.PriceBand:
		tc.PriceVsEMA = Below
	}
	switch {
	case slope > e.tr.SlopeBand:
		tc.Slope = Up
	case slope < -e.tr.SlopeBand:
		tc.Slope = Down
	}

	full := math.Abs(pv) + math.Abs(slope)
	partial := math.Min(full*e.tr.PartialWeight, e.tr.PartialCap)
	switch {
	case tc.PriceVsEMA == Above && tc.Slope == Up:
		tc.Trend, tc.Strength = Bullish, math.Min(full, 1)
	case tc.PriceVsEMA == Below && tc.Slope == Down:
		tc.Trend, tc.Strength = Bearish, math.Min(full, 1)
	case tc.PriceVsEMA == Above || tc.Slope == Up:
		tc.Trend, tc.Strength = Bullish, partial
	case tc.PriceVsEMA == Below || tc.Slope == Down:
		tc.Trend, tc.Strength = Bearish, partial
	default:
		tc.Trend = Sideways
	}

	tc.Support, tc.Resistance = levels(bars, e.tr.LevelWindow)
	return tc
}

// levels returns the lowest low and highest high of the trailing window.
func levels(bars []market.Bar, window int) (support, resistance float64) {
	if window <= 0 || len(bars) < window {
		window = len(bars)
	}
	recent := bars[len(bars)-window:]
	support, resistance = recent[0].Low, recent[0].High
	for _, b := range recent[1:] {
		support = math.Min(support, b.Low)
		resistance = math.Max(resistance, b.High)
	}
	return support, resistance
}

// EvaluateWithTrendFilter evaluates the primary snapshot and approves or
// rejects it against the confirmation trend and the secondary composite.
func (e *Engine) EvaluateWithTrendFilter(primary, confirmation, secondary []market.Bar) Filtered {
	return e.ApplyTrendFilter(e.Evaluate(primary), e.Evaluate(secondary), e.Trend(confirmation))
}

// ApplyTrendFilter is the approval policy. A BUY needs a trend that is not
// BEARISH plus one supporting fact: the secondary timeframe agrees (boosted
// confidence), the trend is strongly BULLISH (unchanged), or price sits above
// the filter EMA (penalized). SELL mirrors it.
func (e *Engine) ApplyTrendFilter(primary, secondary Composite, trend TrendContext) Filtered {
	f := Filtered{Action: Wait, Primary: primary, Secondary: secondary, Trend: trend}

	var against Trend
	var with Trend
	var placement Placement
	switch primary.Action {
	case Buy:
		against, with, placement = Bearish, Bullish, Above
	case Sell:
		against, with, placement = Bullish, Bearish, Below
	default:
		f.Reason = fmt.Sprintf("primary signal %s", primary.Action)
		return f
	}

	if trend.Trend == against {
		f.Reason = fmt.Sprintf("%s rejected: confirmation trend %s", primary.Action, trend.Trend)
		return f
	}

	conf := primary.Confidence
	switch {
	case secondary.Action == primary.Action:
		conf = math.Min(conf*e.tr.SecondaryBoost, 1)
		f.Reason = fmt.Sprintf("%s approved: secondary timeframe agrees", primary.Action)
	case trend.Trend == with && trend.Strength > e.tr.StrongTrend:
		f.Reason = fmt.Sprintf("%s approved: strong %s trend (%.2f)", primary.Action, trend.Trend, trend.Strength)
	case trend.PriceVsEMA == placement:
		conf *= e.tr.PlacementFactor
		f.Reason = fmt.Sprintf("%s approved: price %s filter EMA", primary.Action, placement)
	default:
		f.Reason = fmt.Sprintf("%s rejected: no trend support (trend %s, price %s, secondary %s)",
			primary.Action, trend.Trend, trend.PriceVsEMA, secondary.Action)
		return f
	}

	f.Action = primary.Action
	f.Confidence = clamp(conf)
	f.Approved = true
	return f
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func finiteAll(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
