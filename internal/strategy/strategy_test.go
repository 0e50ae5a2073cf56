package strategy

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fusionbot-go/internal/config"
	"fusionbot-go/internal/market"
	"fusionbot-go/internal/signal"
)

func bars(closes []float64, volumes []float64) []market.Bar {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	out := make([]market.Bar, len(closes))
	for i, c := range closes {
		out[i] = market.Bar{OpenTime: start.Add(time.Duration(i) * time.Minute), Open: c, High: c, Low: c, Close: c, Volume: volumes[i], Closed: true}
	}
	return out
}

func flat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func breakout() []market.Bar {
	closes, vols := flat(100, 30), flat(100, 30)
	p := 100.0
	for _, r := range []float64{0.01, 0.01, 0.01, 0.01, 0.02} {
		p *= 1 + r
		closes = append(closes, p)
		vols = append(vols, 100)
	}
	vols[len(vols)-1] = 500
	return bars(closes, vols)
}

func decline(n int) []market.Bar {
	closes := make([]float64, n)
	p := 200.0
	for i := range closes {
		closes[i] = p
		p *= 0.995
	}
	return bars(closes, flat(100, n))
}

func engine() *signal.Engine { return signal.NewEngine(config.Default()) }

type fixed struct {
	name string
	d    Decision
}

func (f fixed) Name() string               { return f.name }
func (f fixed) Evaluate(Snapshot) Decision { return f.d }

func TestBuildFollowsConfiguredOrder(t *testing.T) {
	chain, err := Build([]string{"momentum", "trend_filtered", "reversal", "confirmed_composite"}, engine(), zerolog.Nop())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	got := strings.Join(chain.Names(), ",")
	if got != "momentum,trend_filtered,reversal,confirmed_composite" {
		t.Fatalf("unexpected order %s", got)
	}
	if _, ok := chain.TrendFilter(); !ok {
		t.Fatalf("expected trend filter in chain")
	}
}

func TestBuildRejectsUnknownAndEmpty(t *testing.T) {
	if _, err := Build([]string{"obi"}, engine(), zerolog.Nop()); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
	if _, err := Build(nil, engine(), zerolog.Nop()); err == nil {
		t.Fatalf("expected error for empty list")
	}
}

func TestChainBuysOnBreakout(t *testing.T) {
	chain, err := Build(config.Default().Strategies, engine(), zerolog.Nop())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	b := breakout()
	d := chain.Evaluate(Snapshot{Instrument: "BTCUSDT", Primary: b, Secondary: b, Confirmation: b})
	if d.Action != signal.Buy {
		t.Fatalf("expected BUY, got %s (%s)", d.Action, d.Reason)
	}
	if d.Confidence <= 0 || !d.Approved {
		t.Fatalf("expected approved positive confidence, got %+v", d)
	}
}

func TestMomentumStrategyOnBreakout(t *testing.T) {
	d := NewMomentum(engine()).Evaluate(Snapshot{Primary: breakout()})
	if d.Action != signal.Buy || d.Confidence != 0.8 || d.Strategy != "momentum" {
		t.Fatalf("unexpected decision %+v", d)
	}
}

func TestChainWaitsOnFlatMarket(t *testing.T) {
	chain, err := Build(config.Default().Strategies, engine(), zerolog.Nop())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	b := bars(flat(100, 150), flat(100, 150))
	d := chain.Evaluate(Snapshot{Instrument: "ETHUSDT", Primary: b, Secondary: b, Confirmation: b})
	if d.Action != signal.Wait || d.Approved {
		t.Fatalf("expected WAIT, got %+v", d)
	}
	for _, name := range chain.Names() {
		if !strings.Contains(d.Reason, name+":") {
			t.Fatalf("reason %q misses %s", d.Reason, name)
		}
	}
}

func TestChainVetoesEntryAgainstConfirmationTrend(t *testing.T) {
	chain := NewChain(engine(), zerolog.Nop(), NewMomentum(engine()))
	d := chain.Evaluate(Snapshot{Instrument: "BTCUSDT", Primary: breakout(), Confirmation: decline(120)})
	if d.Action != signal.Wait {
		t.Fatalf("expected veto, got %s", d.Action)
	}
	if !strings.Contains(d.Reason, "vetoed by BEARISH") {
		t.Fatalf("unexpected reason %q", d.Reason)
	}
}

func TestChainFallsThroughInOrder(t *testing.T) {
	first := fixed{name: "first", d: wait("first", "nothing")}
	second := fixed{name: "second", d: act("second", signal.Sell, 0.6, "down")}
	third := fixed{name: "third", d: act("third", signal.Buy, 0.9, "up")}
	chain := NewChain(engine(), zerolog.Nop(), first, second, third)

	d := chain.Evaluate(Snapshot{Instrument: "SOLUSDT"})
	if d.Action != signal.Sell || d.Strategy != "second" {
		t.Fatalf("expected second strategy SELL, got %+v", d)
	}
}

func TestConfirmedCompositeWaitsOnShortHistory(t *testing.T) {
	d := NewConfirmedComposite(engine()).Evaluate(Snapshot{Primary: breakout()})
	if d.Action != signal.Wait {
		t.Fatalf("expected WAIT, got %s", d.Action)
	}
	if !strings.Contains(d.Reason, "bars") {
		t.Fatalf("expected data diagnosis in reason, got %q", d.Reason)
	}
}

func TestReversalStrategyOnHammer(t *testing.T) {
	closes := make([]float64, 22)
	for i := range closes {
		closes[i] = 100
		if (21-i)%2 == 1 {
			closes[i] = 103
		}
	}
	b := bars(closes, flat(100, 22))
	b = append(b, market.Bar{OpenTime: b[21].OpenTime.Add(time.Minute), Open: 100.5, High: 101.1, Low: 98, Close: 101, Volume: 100, Closed: true})

	d := NewReversal(engine()).Evaluate(Snapshot{Primary: b})
	if d.Action != signal.Buy || d.Confidence != 0.5 {
		t.Fatalf("unexpected decision %+v", d)
	}
}
