package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fusionbot-go/internal/config"
	"fusionbot-go/internal/indicator"
	"fusionbot-go/internal/market"
)

func tuned(mutate func(*config.Config)) *Engine {
	cfg := config.Default()
	mutate(cfg)
	return NewEngine(cfg)
}

func TestExhaustionTurnBarsIsConfigurable(t *testing.T) {
	bars := exhaustionBars(market.Long)
	assert.True(t, newEngine().Exhausted(bars, market.Long))

	longer := tuned(func(c *config.Config) { c.Exit.TurnBars = 4 })
	assert.False(t, longer.Exhausted(bars, market.Long), "the fourth high from the end is below the turn")
}

func TestRSIZoneExit(t *testing.T) {
	mild := Composite{Action: Neutral, Indicators: []indicator.Result{
		{Kind: indicator.KindRSI, Signal: indicator.Sell, Strength: 0.3, Description: "RSI overbought (86.0)"},
	}}

	exit, _ := newEngine().ExitDecision(mild, nil, market.Long)
	assert.False(t, exit, "a mild zone vote is below the critical strength")

	zone := tuned(func(c *config.Config) { c.Exit.RSIZoneExit = true })
	exit, reason := zone.ExitDecision(mild, nil, market.Long)
	assert.True(t, exit)
	assert.Contains(t, reason, "RSI zone against LONG")

	exit, _ = zone.ExitDecision(mild, nil, market.Short)
	assert.False(t, exit, "an overbought RSI supports a SHORT")
}

func TestTrendPolicyIsConfigurable(t *testing.T) {
	buy := Composite{Action: Buy, Confidence: 0.6}
	agree := Composite{Action: Buy}

	f := tuned(func(c *config.Config) { c.Trend.SecondaryBoost = 1.5 }).ApplyTrendFilter(buy, agree, sideways())
	assert.InDelta(t, 0.9, f.Confidence, 1e-9)

	weak := TrendContext{Trend: Bullish, Strength: 0.2, PriceVsEMA: Level, Slope: Up}
	f = newEngine().ApplyTrendFilter(buy, Composite{Action: Neutral}, weak)
	assert.Equal(t, Wait, f.Action, "0.2 is not a strong trend by default")

	f = tuned(func(c *config.Config) { c.Trend.StrongTrend = 0.1 }).ApplyTrendFilter(buy, Composite{Action: Neutral}, weak)
	assert.Equal(t, Buy, f.Action)
	assert.InDelta(t, 0.6, f.Confidence, 1e-9)
}

func TestTrendSlopeLookbackSetsConfirmationHistory(t *testing.T) {
	bars := geometric(115, 100, 1.005)
	assert.Equal(t, Bullish, newEngine().Trend(bars).Trend)

	slow := tuned(func(c *config.Config) { c.Trend.SlopeLookback = 20 })
	assert.Equal(t, 120, slow.ConfirmationHistory())
	assert.Equal(t, Sideways, slow.Trend(bars).Trend)
}

func TestHammerShadowIsConfigurable(t *testing.T) {
	bars := withLast(choppy(22), hammer)
	assert.Equal(t, "hammer", newEngine().Reversal(bars).Name)

	strict := tuned(func(c *config.Config) { c.Patterns.HammerShadow = 6 })
	p := strict.Reversal(bars)
	assert.Equal(t, Wait, p.Action)
	assert.Equal(t, "no reversal pattern", p.Reason)
}

func TestMomentumTrendMovesIsConfigurable(t *testing.T) {
	// Two flat moves then one up move: no majority of three, but a majority
	// of one.
	closes := append(repeat(100, 30), 100, 100, 101)
	vols := append(repeat(100, 32), 500)
	bars := barsFrom(closes, vols)

	assert.Equal(t, 0, newEngine().Momentum(bars).TrendScore)
	assert.Equal(t, 2, tuned(func(c *config.Config) { c.Momentum.TrendMoves = 1 }).Momentum(bars).TrendScore)
}
