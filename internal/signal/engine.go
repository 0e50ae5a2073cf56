package signal

import (
	"fmt"
	"math"

	"fusionbot-go/internal/config"
	"fusionbot-go/internal/indicator"
	"fusionbot-go/internal/market"
)

// Engine evaluates bar snapshots. It holds only configuration, so one Engine
// may serve every instrument worker concurrently.
type Engine struct {
	ind config.Indicators
	sig config.Signal
	mom config.Momentum
	ex  config.Exit
	pat config.Patterns
	tr  config.Trend

	minHistory int
}

// NewEngine copies the tuning sections it needs out of cfg.
func NewEngine(cfg *config.Config) *Engine {
	return &Engine{
		ind: cfg.Indicators,
		sig: cfg.Signal,
		mom: cfg.Momentum,
		ex:  cfg.Exit,
		pat: cfg.Patterns,
		tr:  cfg.Trend,

		minHistory: cfg.MinHistory(),
	}
}

// MinHistory is the bar count Evaluate needs before it votes. It covers the
// filter EMA, so no indicator votes from a partially seeded average.
func (e *Engine) MinHistory() int { return e.minHistory }

// ConfirmationHistory is the bar count Trend needs.
func (e *Engine) ConfirmationHistory() int { return e.ind.EMA.Filter + e.tr.SlopeLookback }

// HighConfidence is the threshold for acting on a signal alone.
func (e *Engine) HighConfidence() float64 { return e.sig.HighConfidence }

// MediumConfidence is the threshold for acting with indicator consensus.
func (e *Engine) MediumConfidence() float64 { return e.sig.MediumConfidence }

// ConsensusRequired is the number of agreeing indicators that backs a
// medium-confidence composite.
func (e *Engine) ConsensusRequired() int { return e.sig.ConsensusRequired }

// Evaluate runs the four indicators on the snapshot and fuses their votes.
func (e *Engine) Evaluate(bars []market.Bar) Composite {
	if need := e.MinHistory(); len(bars) < need {
		return Composite{Action: Neutral, Reason: fmt.Sprintf("insufficient history (%d/%d bars)", len(bars), need)}
	}
	closes := market.Closes(bars)
	for _, c := range closes {
		if c <= 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			return Composite{Action: Neutral, Reason: "invalid close price in history"}
		}
	}
	return e.Fuse(e.Indicators(closes))
}

// Indicators computes every configured indicator vote over closes.
func (e *Engine) Indicators(closes []float64) []indicator.Result {
	price := closes[len(closes)-1]
	rsi, ok := indicator.RSI(closes, e.ind.RSI.Period)
	bands, bok := indicator.Bollinger(closes, e.ind.Bollinger.Period, e.ind.Bollinger.StdDev)
	return []indicator.Result{
		indicator.RSISignal(rsi, ok, e.ind.RSI.Oversold, e.ind.RSI.Overbought),
		indicator.MACDSignal(indicator.MACD(closes, e.ind.MACD.Fast, e.ind.MACD.Slow, e.ind.MACD.Signal)),
		indicator.BollingerSignal(price, bands, bok),
		indicator.EMASignal(price, indicator.EMATriplet(closes, e.ind.EMA.Short, e.ind.EMA.Long, e.ind.EMA.Filter)),
	}
}

// Fuse sums signed weighted strengths and classifies the score against the
// buy/sell thresholds. Confidence is always within [0, 1].
func (e *Engine) Fuse(results []indicator.Result) Composite {
	var score float64
	for _, r := range results {
		switch r.Signal {
		case indicator.Buy:
			score += e.weight(r.Kind) * r.Strength
		case indicator.Sell:
			score -= e.weight(r.Kind) * r.Strength
		}
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return Composite{Action: Neutral, Indicators: results, Reason: "non-finite score"}
	}

	c := Composite{Action: Neutral, Score: score, Indicators: results}
	switch {
	case score > e.sig.BuyThreshold:
		c.Action = Buy
	case score < e.sig.SellThreshold:
		c.Action = Sell
	}
	if c.Action != Neutral {
		c.Confidence = math.Min(math.Abs(score)*e.sig.ConfidenceMultiplier, 1)
	}
	c.Reason = fmt.Sprintf("score %.3f", score)
	return c
}

func (e *Engine) weight(kind indicator.Kind) float64 {
	switch kind {
	case indicator.KindRSI:
		return e.ind.RSI.Weight
	case indicator.KindMACD:
		return e.ind.MACD.Weight
	case indicator.KindBollinger:
		return e.ind.Bollinger.Weight
	case indicator.KindEMA:
		return e.ind.EMA.Weight
	}
	return 0
}
