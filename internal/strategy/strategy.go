// Package strategy turns bar snapshots into entry decisions through an
// ordered list of strategies.
package strategy

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"fusionbot-go/internal/market"
	"fusionbot-go/internal/signal"
)

// Snapshot is one instrument's view of its three timeframes at a bar close.
type Snapshot struct {
	Instrument   string
	Primary      []market.Bar
	Secondary    []market.Bar
	Confirmation []market.Bar
}

// Decision is a strategy verdict. Non-directional verdicts are WAIT.
type Decision struct {
	Action     signal.Action `json:"action"`
	Confidence float64       `json:"confidence"`
	Approved   bool          `json:"approved"`
	Reason     string        `json:"reason"`
	Strategy   string        `json:"strategy"`
}

// Directional reports whether the decision asks to open a position.
func (d Decision) Directional() bool { return d.Action.Directional() }

func wait(name, reason string) Decision {
	return Decision{Action: signal.Wait, Reason: reason, Strategy: name}
}

func act(name string, action signal.Action, confidence float64, reason string) Decision {
	if !action.Directional() {
		return wait(name, reason)
	}
	return Decision{Action: action, Confidence: confidence, Approved: true, Reason: reason, Strategy: name}
}

// Strategy defines behaviour shared by strategy implementations used by the bot.
type Strategy interface {
	Name() string
	Evaluate(s Snapshot) Decision
}

// trendAware strategies already account for the confirmation trend and are
// exempt from the chain's veto.
type trendAware interface {
	respectsTrend() bool
}

// Build returns a chain of the named strategies in order.
func Build(names []string, engine *signal.Engine, log zerolog.Logger) (*Chain, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no strategies configured")
	}
	list := make([]Strategy, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "trend_filtered", "mta", "trend":
			list = append(list, NewTrendFiltered(engine))
		case "confirmed_composite", "composite", "integrated":
			list = append(list, NewConfirmedComposite(engine))
		case "momentum", "legacy_momentum":
			list = append(list, NewMomentum(engine))
		case "reversal", "patterns":
			list = append(list, NewReversal(engine))
		default:
			return nil, fmt.Errorf("unknown strategy %q", name)
		}
	}
	return NewChain(engine, log, list...), nil
}
