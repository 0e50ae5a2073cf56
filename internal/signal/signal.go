// Package signal fuses indicator votes into trading decisions: the composite
// signal, the higher-timeframe trend filter, exit checks and the momentum and
// candle-pattern heuristics used as fallbacks.
package signal

import (
	"fusionbot-go/internal/indicator"
	"fusionbot-go/internal/market"
)

// Action is the outcome of an evaluation.
type Action string

const (
	Buy     Action = "BUY"
	Sell    Action = "SELL"
	Neutral Action = "NEUTRAL"
	Wait    Action = "WAIT"
)

func fromIndicator(s indicator.Signal) Action {
	switch s {
	case indicator.Buy:
		return Buy
	case indicator.Sell:
		return Sell
	}
	return Neutral
}

// Directional reports whether the action asks to trade.
func (a Action) Directional() bool { return a == Buy || a == Sell }

// Side maps BUY to Long and SELL to Short.
func (a Action) Side() (market.Side, bool) {
	switch a {
	case Buy:
		return market.Long, true
	case Sell:
		return market.Short, true
	}
	return 0, false
}

// Opposes reports whether the action points against a held side.
func (a Action) Opposes(side market.Side) bool {
	return (a == Sell && side == market.Long) || (a == Buy && side == market.Short)
}

// Composite is the weighted fusion of the four indicator votes.
type Composite struct {
	Action     Action             `json:"action"`
	Score      float64            `json:"weighted_score"`
	Confidence float64            `json:"confidence"`
	Indicators []indicator.Result `json:"indicators"`
	Reason     string             `json:"reason,omitempty"`
}

// Agreeing counts indicators voting in the composite's direction.
func (c Composite) Agreeing() int {
	var n int
	for _, r := range c.Indicators {
		if fromIndicator(r.Signal) == c.Action && c.Action.Directional() {
			n++
		}
	}
	return n
}

// Result returns the vote of one indicator kind.
func (c Composite) Result(kind indicator.Kind) (indicator.Result, bool) {
	for _, r := range c.Indicators {
		if r.Kind == kind {
			return r, true
		}
	}
	return indicator.Result{}, false
}

// Trend is the higher-timeframe direction.
type Trend string

const (
	Bullish  Trend = "BULLISH"
	Bearish  Trend = "BEARISH"
	Sideways Trend = "SIDEWAYS"
)

// Placement is the price relative to the filter EMA.
type Placement string

const (
	Above Placement = "ABOVE"
	Below Placement = "BELOW"
	Level Placement = "NEUTRAL"
)

// Slope is the filter EMA direction.
type Slope string

const (
	Up   Slope = "UP"
	Down Slope = "DOWN"
	Flat Slope = "FLAT"
)

// TrendContext classifies the confirmation timeframe.
type TrendContext struct {
	Trend      Trend     `json:"trend"`
	Strength   float64   `json:"strength"`
	PriceVsEMA Placement `json:"price_vs_filter_ema"`
	Slope      Slope     `json:"filter_ema_slope"`
	FilterEMA  float64   `json:"filter_ema"`
	Support    float64   `json:"support"`
	Resistance float64   `json:"resistance"`
}

func sideways() TrendContext {
	return TrendContext{Trend: Sideways, PriceVsEMA: Level, Slope: Flat}
}

// Filtered is a primary signal after trend approval. A rejected signal is
// reported as WAIT with Approved false and the reason retained.
type Filtered struct {
	Action     Action       `json:"action"`
	Confidence float64      `json:"confidence"`
	Approved   bool         `json:"approved"`
	Reason     string       `json:"reason"`
	Primary    Composite    `json:"primary"`
	Secondary  Composite    `json:"secondary"`
	Trend      TrendContext `json:"trend"`
}
