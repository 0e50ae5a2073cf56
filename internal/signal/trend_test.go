package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fusionbot-go/internal/indicator"
	"fusionbot-go/internal/market"
)

func TestTrendNeedsFilterPlusSlopeHistory(t *testing.T) {
	tc := newEngine().Trend(geometric(100, 100, 0.99))
	assert.Equal(t, Sideways, tc.Trend)
	assert.Equal(t, Level, tc.PriceVsEMA)
	assert.Equal(t, Flat, tc.Slope)
}

func TestTrendBearishOnDecline(t *testing.T) {
	bars := geometric(120, 200, 0.995)
	tc := newEngine().Trend(bars)
	assert.Equal(t, Bearish, tc.Trend)
	assert.Equal(t, Below, tc.PriceVsEMA)
	assert.Equal(t, Down, tc.Slope)
	assert.Greater(t, tc.Strength, 0.0)
	assert.LessOrEqual(t, tc.Strength, 1.0)
	assert.InDelta(t, bars[len(bars)-1].Low, tc.Support, 1e-9)
	assert.InDelta(t, bars[len(bars)-20].High, tc.Resistance, 1e-9)
}

func TestTrendBullishOnAdvance(t *testing.T) {
	tc := newEngine().Trend(geometric(120, 100, 1.005))
	assert.Equal(t, Bullish, tc.Trend)
	assert.Equal(t, Above, tc.PriceVsEMA)
	assert.Equal(t, Up, tc.Slope)
}

func TestTrendFilterRejectsBuyAgainstBearishTrend(t *testing.T) {
	trend := newEngine().Trend(geometric(120, 200, 0.995))
	primary := Composite{Action: Buy, Confidence: 0.9}
	secondary := Composite{Action: Buy, Confidence: 0.7}

	f := newEngine().ApplyTrendFilter(primary, secondary, trend)
	assert.Equal(t, Wait, f.Action)
	assert.False(t, f.Approved)
	assert.Zero(t, f.Confidence)
	assert.Contains(t, f.Reason, "BEARISH")
	assert.Equal(t, primary, f.Primary)
}

func TestTrendFilterApprovalPolicy(t *testing.T) {
	buy := Composite{Action: Buy, Confidence: 0.6}
	sell := Composite{Action: Sell, Confidence: 0.6}
	neutral := Composite{Action: Neutral}

	cases := []struct {
		name      string
		primary   Composite
		secondary Composite
		trend     TrendContext
		action    Action
		conf      float64
	}{
		{"secondary agrees boosts", buy, Composite{Action: Buy}, sideways(), Buy, 0.72},
		{"boost is capped", Composite{Action: Buy, Confidence: 0.95}, Composite{Action: Buy}, sideways(), Buy, 1},
		{"strong bullish keeps confidence", buy, neutral, TrendContext{Trend: Bullish, Strength: 0.5, PriceVsEMA: Above, Slope: Up}, Buy, 0.6},
		{"weak bullish above filter is penalized", buy, neutral, TrendContext{Trend: Bullish, Strength: 0.1, PriceVsEMA: Above, Slope: Flat}, Buy, 0.48},
		{"sideways without support waits", buy, neutral, sideways(), Wait, 0},
		{"sell on bullish waits", sell, Composite{Action: Sell}, TrendContext{Trend: Bullish, Strength: 0.9}, Wait, 0},
		{"sell with secondary agreement", sell, Composite{Action: Sell}, sideways(), Sell, 0.72},
		{"sell below filter is penalized", sell, neutral, TrendContext{Trend: Bearish, Strength: 0.2, PriceVsEMA: Below, Slope: Flat}, Sell, 0.48},
		{"strong bearish keeps sell", sell, neutral, TrendContext{Trend: Bearish, Strength: 0.4, PriceVsEMA: Level, Slope: Down}, Sell, 0.6},
		{"neutral primary waits", neutral, Composite{Action: Buy}, sideways(), Wait, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newEngine().ApplyTrendFilter(tc.primary, tc.secondary, tc.trend)
			assert.Equal(t, tc.action, f.Action)
			assert.Equal(t, tc.action != Wait, f.Approved)
			assert.InDelta(t, tc.conf, f.Confidence, 1e-9)
			assert.NotEmpty(t, f.Reason)
		})
	}
}

func TestEvaluateWithTrendFilterWaitsOnFlatMarket(t *testing.T) {
	flat := barsFrom(repeat(100, 120), repeat(100, 120))
	f := newEngine().EvaluateWithTrendFilter(flat[:60], flat, flat[:60])
	assert.Equal(t, Wait, f.Action)
	assert.False(t, f.Approved)
	assert.Equal(t, Sideways, f.Trend.Trend)
}

func TestExitOnOpposingComposite(t *testing.T) {
	e := newEngine()
	sell := Composite{Action: Sell, Confidence: 0.9}

	exit, reason := e.ExitDecision(sell, nil, market.Long)
	assert.True(t, exit)
	assert.Contains(t, reason, "opposes LONG")

	exit, _ = e.ExitDecision(sell, nil, market.Short)
	assert.False(t, exit, "a SELL never closes a SHORT")

	exit, _ = e.ExitDecision(Composite{Action: Sell, Confidence: 0.3}, nil, market.Long)
	assert.False(t, exit, "below the exit threshold")
}

func TestExitOnCriticalRSI(t *testing.T) {
	e := newEngine()
	critical := Composite{Action: Neutral, Indicators: []indicator.Result{
		{Kind: indicator.KindRSI, Signal: indicator.Sell, Strength: 0.7, Description: "RSI overbought (94.0)"},
	}}
	exit, reason := e.ExitDecision(critical, nil, market.Long)
	assert.True(t, exit)
	assert.Contains(t, reason, "RSI critical")

	mild := Composite{Action: Neutral, Indicators: []indicator.Result{
		{Kind: indicator.KindRSI, Signal: indicator.Buy, Strength: 0.5},
	}}
	exit, _ = e.ExitDecision(mild, nil, market.Short)
	assert.False(t, exit)
}

func exhaustionBars(side market.Side) []market.Bar {
	closes := repeat(100, 25)
	vols := append(repeat(100, 20), repeat(10, 5)...)
	bars := barsFrom(closes, vols)
	for i, h := range []float64{103, 102, 101} {
		b := &bars[22+i]
		if side == market.Long {
			b.High = h
		} else {
			b.Low = 97 + float64(i)
		}
	}
	return bars
}

func TestExhaustion(t *testing.T) {
	e := newEngine()
	assert.True(t, e.Exhausted(exhaustionBars(market.Long), market.Long))
	assert.True(t, e.Exhausted(exhaustionBars(market.Short), market.Short))
	assert.False(t, e.Exhausted(exhaustionBars(market.Long), market.Short))

	busy := exhaustionBars(market.Long)
	for i := range busy {
		busy[i].Volume = 100
	}
	assert.False(t, e.Exhausted(busy, market.Long), "volume has not faded")
	assert.False(t, e.Exhausted(busy[:10], market.Long))

	exit, reason := e.ExitDecision(Composite{Action: Neutral}, exhaustionBars(market.Long), market.Long)
	assert.True(t, exit)
	assert.Contains(t, reason, "exhausted")
}

func TestShouldExitHoldsInFlatMarket(t *testing.T) {
	exit, _ := newEngine().ShouldExit(barsFrom(repeat(100, 60), repeat(100, 60)), market.Long)
	assert.False(t, exit)
}
