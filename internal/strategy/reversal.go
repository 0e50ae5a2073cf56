package strategy

import (
	"fmt"

	"fusionbot-go/internal/signal"
)

// Reversal trades single-candle reversal patterns in volatile markets. The
// RSI divergence reading is attached to the reason for context.
type Reversal struct {
	engine *signal.Engine
}

// NewReversal builds the candle-pattern strategy.
func NewReversal(engine *signal.Engine) *Reversal {
	return &Reversal{engine: engine}
}

// Name returns the identifier for the strategy implementation.
func (r *Reversal) Name() string { return "reversal" }

// Evaluate maps the pattern reading to a decision at medium confidence.
func (r *Reversal) Evaluate(s Snapshot) Decision {
	p := r.engine.Reversal(s.Primary)
	if !p.Action.Directional() {
		return wait(r.Name(), p.Reason)
	}
	reason := p.Reason
	switch d := r.engine.Divergence(s.Primary); {
	case d.Bullish:
		reason = fmt.Sprintf("%s, bullish divergence %.2f", reason, d.Strength)
	case d.Bearish:
		reason = fmt.Sprintf("%s, bearish divergence %.2f", reason, d.Strength)
	}
	return act(r.Name(), p.Action, r.engine.MediumConfidence(), reason)
}
