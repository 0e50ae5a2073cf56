package strategy

import (
	"fusionbot-go/internal/signal"
)

// TrendFiltered approves primary composite signals against the confirmation
// timeframe trend and the secondary timeframe composite.
type TrendFiltered struct {
	engine *signal.Engine
}

// NewTrendFiltered builds the multi-timeframe strategy.
func NewTrendFiltered(engine *signal.Engine) *TrendFiltered {
	return &TrendFiltered{engine: engine}
}

// Name returns the configured identifier for logging.
func (t *TrendFiltered) Name() string { return "trend_filtered" }

func (t *TrendFiltered) respectsTrend() bool { return true }

// Filter exposes the full trend-filter result, used for reversals.
func (t *TrendFiltered) Filter(s Snapshot) signal.Filtered {
	return t.engine.EvaluateWithTrendFilter(s.Primary, s.Confirmation, s.Secondary)
}

// Evaluate reports the approved action or WAIT with the rejection reason.
func (t *TrendFiltered) Evaluate(s Snapshot) Decision {
	f := t.Filter(s)
	if !f.Approved {
		return wait(t.Name(), f.Reason)
	}
	return act(t.Name(), f.Action, f.Confidence, f.Reason)
}
