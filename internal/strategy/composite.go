package strategy

import (
	"fmt"

	"fusionbot-go/internal/signal"
)

// ConfirmedComposite acts on the primary composite when momentum confirms
// it, when its confidence is high, or when a medium confidence is backed by
// enough agreeing indicators.
type ConfirmedComposite struct {
	engine *signal.Engine
}

// NewConfirmedComposite builds the single-timeframe composite strategy.
func NewConfirmedComposite(engine *signal.Engine) *ConfirmedComposite {
	return &ConfirmedComposite{engine: engine}
}

// Name returns the configured identifier for logging.
func (c *ConfirmedComposite) Name() string { return "confirmed_composite" }

// Evaluate checks data quality first; price problems or short history wait.
func (c *ConfirmedComposite) Evaluate(s Snapshot) Decision {
	if q := c.engine.Quality(s.Primary); !q.Tradable() {
		return wait(c.Name(), q.String())
	}
	comp := c.engine.Evaluate(s.Primary)
	if !comp.Action.Directional() {
		return wait(c.Name(), fmt.Sprintf("composite %s (%s)", comp.Action, comp.Reason))
	}

	agree := comp.Agreeing()
	switch {
	case c.engine.MomentumConfirms(s.Primary, comp.Action):
		return act(c.Name(), comp.Action, comp.Confidence, fmt.Sprintf("composite %s confirmed by momentum", comp.Action))
	case comp.Confidence >= c.engine.HighConfidence():
		return act(c.Name(), comp.Action, comp.Confidence, fmt.Sprintf("composite %s at high confidence %.2f", comp.Action, comp.Confidence))
	case comp.Confidence >= c.engine.MediumConfidence() && agree >= c.engine.ConsensusRequired():
		return act(c.Name(), comp.Action, comp.Confidence, fmt.Sprintf("composite %s with %d agreeing indicators", comp.Action, agree))
	}
	return wait(c.Name(), fmt.Sprintf("composite %s at %.2f unconfirmed (%d agreeing)", comp.Action, comp.Confidence, agree))
}
