package strategy

import "fusionbot-go/internal/signal"

// Momentum emits signals when the price change over a short period is backed
// by a volume surge and a recent trend that does not contradict it.
type Momentum struct {
	engine *signal.Engine
}

// NewMomentum builds the momentum fallback.
func NewMomentum(engine *signal.Engine) *Momentum {
	return &Momentum{engine: engine}
}

// Name returns the identifier for the strategy implementation.
func (m *Momentum) Name() string { return "momentum" }

// Evaluate maps the engine's momentum reading to a decision.
func (m *Momentum) Evaluate(s Snapshot) Decision {
	r := m.engine.Momentum(s.Primary)
	return act(m.Name(), r.Action, r.Confidence, r.Reason)
}
