package signal

import (
	"fmt"

	"fusionbot-go/internal/indicator"
	"fusionbot-go/internal/market"
)

// ShouldExit evaluates the snapshot and reports whether a held side should
// be closed, with the triggering check as reason.
func (e *Engine) ShouldExit(bars []market.Bar, side market.Side) (bool, string) {
	return e.ExitDecision(e.Evaluate(bars), bars, side)
}

// ExitDecision runs the independent exit checks against an already computed
// composite. Any one of them is sufficient. With RSIZoneExit set, any RSI
// vote against the side closes, not only a critical one.
func (e *Engine) ExitDecision(c Composite, bars []market.Bar, side market.Side) (bool, string) {
	if c.Action.Opposes(side) && c.Confidence >= e.ex.ConfidenceThreshold {
		return true, fmt.Sprintf("composite %s at %.2f opposes %s", c.Action, c.Confidence, side)
	}
	if r, ok := c.Result(indicator.KindRSI); ok && fromIndicator(r.Signal).Opposes(side) {
		switch {
		case r.Strength >= e.ex.RSICriticalStrength:
			return true, fmt.Sprintf("RSI critical for %s: %s", side, r.Description)
		case e.ex.RSIZoneExit:
			return true, fmt.Sprintf("RSI zone against %s: %s", side, r.Description)
		}
	}
	if e.Exhausted(bars, side) {
		return true, fmt.Sprintf("momentum exhausted against %s", side)
	}
	return false, ""
}

// Exhausted reports fading volume together with highs (for LONG) or lows
// (for SHORT) turning against the position over the last TurnBars bars.
func (e *Engine) Exhausted(bars []market.Bar, side market.Side) bool {
	recentN, window, turn := e.mom.ExhaustionPeriod, e.mom.VolumeAvgPeriod, e.ex.TurnBars
	n := len(bars)
	if recentN <= 0 || window <= recentN || turn < 2 || n < recentN+window || n < turn {
		return false
	}
	vols := market.Volumes(bars)
	recent := indicator.Mean(vols[n-recentN:])
	prior := indicator.Mean(vols[n-window : n-recentN])
	if prior <= 0 || !finiteAll(recent, prior) {
		return false
	}
	if recent/prior >= e.mom.VolumeDeclineRatio {
		return false
	}

	last := bars[n-turn:]
	switch side {
	case market.Long:
		for i := 1; i < len(last); i++ {
			if last[i].High >= last[i-1].High {
				return false
			}
		}
		return true
	case market.Short:
		for i := 1; i < len(last); i++ {
			if last[i].Low <= last[i-1].Low {
				return false
			}
		}
		return true
	}
	return false
}
