package risk

import (
	"errors"
	"sync"
	"testing"
	"time"

	"fusionbot-go/internal/market"
)

func limits() Limits {
	return Limits{
		InitialBalance: 100,
		MaxConcurrent:  2,
		DailyLossLimit: 20,
		MaxPositionPct: 10,
		Leverage:       50,
		StopLossPct:    1,
		TakeProfitPct:  5,
	}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func TestDailyLossBlocksEverything(t *testing.T) {
	clk := &clock{now: time.Date(2024, 5, 1, 22, 0, 0, 0, time.UTC)}
	m := NewManager(limits(), WithClock(clk.Now))

	if _, err := m.Open("BTCUSDT", market.Long, 100, 5); err != nil {
		t.Fatalf("open: %v", err)
	}
	res, err := m.Close("BTCUSDT", 92)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if res.PnL != -20 {
		t.Fatalf("expected -20 pnl, got %v", res.PnL)
	}
	if got := m.Stats().DailyPnL; got != -20 {
		t.Fatalf("expected daily pnl -20, got %v", got)
	}

	for _, value := range []float64{0, 1, 5, 1000} {
		ok, reason := m.CanOpen("ETHUSDT", value)
		if ok || reason != ReasonDailyLoss {
			t.Fatalf("value %v: expected %q, got %v %q", value, ReasonDailyLoss, ok, reason)
		}
	}
	if _, err := m.Open("ETHUSDT", market.Short, 100, 5); !errors.Is(err, ErrDenied) {
		t.Fatalf("expected ErrDenied, got %v", err)
	}

	clk.Set(time.Date(2024, 5, 2, 0, 1, 0, 0, time.UTC))
	if ok, reason := m.CanOpen("ETHUSDT", 5); !ok {
		t.Fatalf("expected reset after UTC midnight, got %q", reason)
	}
	if got := m.Stats(); got.DailyPnL != 0 || got.TotalPnL != -20 {
		t.Fatalf("unexpected stats after rollover %+v", got)
	}
}

func TestMaxConcurrentIgnoresValue(t *testing.T) {
	m := NewManager(limits())
	for _, sym := range []string{"BTCUSDT", "ETHUSDT"} {
		if _, err := m.Open(sym, market.Long, 100, 5); err != nil {
			t.Fatalf("open %s: %v", sym, err)
		}
	}
	for _, value := range []float64{0, 0.01, 5} {
		if ok, reason := m.CanOpen("SOLUSDT", value); ok || reason != ReasonMaxConcurrent {
			t.Fatalf("value %v: expected %q, got %v %q", value, ReasonMaxConcurrent, ok, reason)
		}
	}
}

func TestDenialReasons(t *testing.T) {
	m := NewManager(limits())
	if _, err := m.Open("BTCUSDT", market.Long, 100, 5); err != nil {
		t.Fatalf("open: %v", err)
	}
	if ok, reason := m.CanOpen("BTCUSDT", 1); ok || reason != ReasonExists {
		t.Fatalf("expected %q, got %q", ReasonExists, reason)
	}
	if ok, reason := m.CanOpen("ETHUSDT", 9.6); ok || reason != ReasonSize {
		t.Fatalf("expected %q on 9.6 of 95 balance, got %q", ReasonSize, reason)
	}
	if ok, reason := m.CanOpen("ETHUSDT", 9.5); !ok {
		t.Fatalf("expected approval at the size limit, got %q", reason)
	}

	wide := limits()
	wide.MaxPositionPct = 200
	m = NewManager(wide)
	if ok, reason := m.CanOpen("BTCUSDT", 150); ok || reason != ReasonBalance {
		t.Fatalf("expected %q, got %q", ReasonBalance, reason)
	}
}

func TestShortProfitAndStats(t *testing.T) {
	m := NewManager(limits())
	pos, err := m.Open("ETHUSDT", market.Short, 100, 5)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if pos.Quantity != 2.5 {
		t.Fatalf("expected quantity 2.5, got %v", pos.Quantity)
	}
	if got := m.Stats().Balance; got != 95 {
		t.Fatalf("expected margin reserved, balance %v", got)
	}

	res, err := m.Close("ETHUSDT", 98)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if res.PnL != 5 || res.PnLPct != 100 {
		t.Fatalf("expected +5 (100%%), got %v (%v%%)", res.PnL, res.PnLPct)
	}
	s := m.Stats()
	if s.Balance != 105 || s.Trades != 1 || s.Wins != 1 || s.WinRate != 1 || s.Open != 0 {
		t.Fatalf("unexpected stats %+v", s)
	}
	if _, err := m.Close("ETHUSDT", 98); !errors.Is(err, ErrNoPosition) {
		t.Fatalf("expected ErrNoPosition, got %v", err)
	}
}

func TestCheckStops(t *testing.T) {
	m := NewManager(limits())
	if _, err := m.Open("BTCUSDT", market.Long, 100, 5); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := m.Open("ETHUSDT", market.Short, 100, 5); err != nil {
		t.Fatalf("open: %v", err)
	}

	cases := []struct {
		sym   string
		price float64
		hit   bool
	}{
		{"BTCUSDT", 100, false},
		{"BTCUSDT", 99, true},
		{"BTCUSDT", 105.5, true},
		{"ETHUSDT", 100, false},
		{"ETHUSDT", 101.2, true},
		{"ETHUSDT", 94, true},
		{"SOLUSDT", 1, false},
	}
	for _, tc := range cases {
		if hit, reason := m.CheckStops(tc.sym, tc.price); hit != tc.hit {
			t.Fatalf("%s at %v: expected hit=%v, got %v (%s)", tc.sym, tc.price, tc.hit, hit, reason)
		}
	}
}

func TestReleaseReturnsMargin(t *testing.T) {
	m := NewManager(limits())
	if _, err := m.Open("BTCUSDT", market.Long, 100, 5); err != nil {
		t.Fatalf("open: %v", err)
	}
	if !m.Release("BTCUSDT") {
		t.Fatalf("expected release")
	}
	if s := m.Stats(); s.Balance != 100 || s.Open != 0 || s.Trades != 0 {
		t.Fatalf("unexpected stats %+v", s)
	}
	if m.Release("BTCUSDT") {
		t.Fatalf("expected second release to be a no-op")
	}
}

func TestConcurrentOpensRespectLimit(t *testing.T) {
	l := limits()
	l.MaxConcurrent = 3
	m := NewManager(l)
	syms := []string{"A", "B", "C", "D", "E", "F", "G", "H"}

	var wg sync.WaitGroup
	for _, sym := range syms {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			_, _ = m.Open(sym, market.Long, 100, 1)
		}(sym)
	}
	wg.Wait()
	if got := m.Stats().Open; got != 3 {
		t.Fatalf("expected exactly 3 open positions, got %d", got)
	}
}
