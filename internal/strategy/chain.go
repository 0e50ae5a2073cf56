package strategy

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"fusionbot-go/internal/market"
	"fusionbot-go/internal/metrics"
	"fusionbot-go/internal/signal"
)

// Chain asks each strategy in order and returns the first directional
// decision. Strategies that ignore the higher timeframe are vetoed when they
// fight the confirmation trend.
type Chain struct {
	engine     *signal.Engine
	strategies []Strategy
	log        zerolog.Logger
}

// NewChain wires strategies in evaluation order.
func NewChain(engine *signal.Engine, log zerolog.Logger, strategies ...Strategy) *Chain {
	return &Chain{engine: engine, strategies: strategies, log: log}
}

// Names lists the strategies in order.
func (c *Chain) Names() []string {
	out := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		out[i] = s.Name()
	}
	return out
}

// TrendFilter returns the first trend-filtered strategy in the chain.
func (c *Chain) TrendFilter() (*TrendFiltered, bool) {
	for _, s := range c.strategies {
		if tf, ok := s.(*TrendFiltered); ok {
			return tf, true
		}
	}
	return nil, false
}

// Evaluate runs the chain. The returned decision is WAIT with every
// strategy's reason when none of them fires.
func (c *Chain) Evaluate(s Snapshot) Decision {
	var (
		reasons []string
		trend   *signal.TrendContext
	)
	for _, st := range c.strategies {
		d := st.Evaluate(s)
		d.Strategy = st.Name()
		if !d.Directional() {
			reasons = append(reasons, st.Name()+": "+d.Reason)
			continue
		}
		if ta, ok := st.(trendAware); !ok || !ta.respectsTrend() {
			if trend == nil {
				tc := c.engine.Trend(s.Confirmation)
				trend = &tc
			}
			if fightsTrend(d.Action, trend.Trend) {
				reason := fmt.Sprintf("%s %s vetoed by %s confirmation trend", st.Name(), d.Action, trend.Trend)
				c.log.Debug().Str("instrument", s.Instrument).Str("strategy", st.Name()).Msg(reason)
				reasons = append(reasons, reason)
				continue
			}
		}
		c.record(s.Instrument, d)
		return d
	}

	d := Decision{Action: signal.Wait, Reason: strings.Join(reasons, "; "), Strategy: "none"}
	c.record(s.Instrument, d)
	return d
}

// Reversal returns the trend-filtered view used to flip a held position. It
// reports false when the chain carries no trend-filtered strategy.
func (c *Chain) Reversal(s Snapshot) (signal.Filtered, bool) {
	tf, ok := c.TrendFilter()
	if !ok {
		return signal.Filtered{}, false
	}
	return tf.Filter(s), true
}

// ShouldExit runs the engine's exit checks for a held side.
func (c *Chain) ShouldExit(primary []market.Bar, side market.Side) (bool, string) {
	return c.engine.ShouldExit(primary, side)
}

func (c *Chain) record(instrument string, d Decision) {
	metrics.SignalsTotal.WithLabelValues(instrument, string(d.Action), d.Strategy).Inc()
	ev := c.log.Debug()
	if d.Directional() {
		ev = c.log.Info()
	}
	ev.Str("instrument", instrument).
		Str("strategy", d.Strategy).
		Str("action", string(d.Action)).
		Float64("confidence", d.Confidence).
		Str("reason", d.Reason).
		Msg("entry evaluation")
}

func fightsTrend(a signal.Action, t signal.Trend) bool {
	return (a == signal.Buy && t == signal.Bearish) || (a == signal.Sell && t == signal.Bullish)
}
