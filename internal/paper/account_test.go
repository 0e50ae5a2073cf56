package paper

import (
	"errors"
	"math"
	"testing"

	"fusionbot-go/internal/market"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestOpenCloseLongPnL(t *testing.T) {
	account := NewAccount(100, 50, 0.0005, 0)

	pos, err := account.Open("BTCUSDT", market.Long, 5, 100)
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	if !approx(pos.Quantity, 2.5) {
		t.Fatalf("expected qty 2.5, got %.6f", pos.Quantity)
	}
	if snap := account.Snapshot(nil); !approx(snap.Balance, 94.875) {
		t.Fatalf("expected margin and entry fee reserved, balance %.6f", snap.Balance)
	}

	trade, err := account.Close("BTCUSDT", 102)
	if err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if !approx(trade.PnL, 4.7475) {
		t.Fatalf("expected pnl 4.7475, got %.6f", trade.PnL)
	}
	if !approx(trade.Fees, 0.2525) {
		t.Fatalf("expected fees 0.2525, got %.6f", trade.Fees)
	}
	if trade.ID == "" {
		t.Fatalf("trade id missing")
	}
	snap := account.Snapshot(nil)
	if !approx(snap.Balance, 100+trade.PnL) {
		t.Fatalf("balance did not settle: %.6f", snap.Balance)
	}
	if !approx(snap.Realized, trade.PnL) {
		t.Fatalf("realized mismatch: %.6f", snap.Realized)
	}
	if account.HasPosition("BTCUSDT") {
		t.Fatalf("position should be gone")
	}
}

func TestShortProfitsOnDecline(t *testing.T) {
	account := NewAccount(100, 10, 0, 0)
	if _, err := account.Open("ETHUSDT", market.Short, 10, 200); err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	trade, err := account.Close("ETHUSDT", 190)
	if err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	// 5% move at 10x on 10 margin.
	if !approx(trade.PnL, 5) {
		t.Fatalf("expected pnl 5, got %.6f", trade.PnL)
	}
	if !approx(trade.PnLPct, 50) {
		t.Fatalf("expected pnl pct 50, got %.6f", trade.PnLPct)
	}
}

func TestSlippageMovesAgainstTrader(t *testing.T) {
	account := NewAccount(100, 1, 0, 0.001)
	long, err := account.Open("A", market.Long, 10, 100)
	if err != nil {
		t.Fatalf("open long: %v", err)
	}
	if !approx(long.Entry, 100.1) {
		t.Fatalf("long entry should be above price, got %.6f", long.Entry)
	}
	short, err := account.Open("B", market.Short, 10, 100)
	if err != nil {
		t.Fatalf("open short: %v", err)
	}
	if !approx(short.Entry, 99.9) {
		t.Fatalf("short entry should be below price, got %.6f", short.Entry)
	}
}

func TestOpenRejections(t *testing.T) {
	account := NewAccount(10, 50, 0.0005, 0)
	if _, err := account.Open("BTCUSDT", market.Long, 20, 100); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if _, err := account.Open("BTCUSDT", market.Long, 0, 100); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("expected invalid order, got %v", err)
	}
	if _, err := account.Open("BTCUSDT", market.Long, 5, 100); err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	if _, err := account.Open("BTCUSDT", market.Short, 1, 100); !errors.Is(err, ErrPositionOpen) {
		t.Fatalf("expected position open, got %v", err)
	}
	if _, err := account.Close("ETHUSDT", 100); !errors.Is(err, ErrNoPosition) {
		t.Fatalf("expected no position, got %v", err)
	}
}

func TestSnapshotMarksEquity(t *testing.T) {
	account := NewAccount(100, 10, 0, 0)
	if _, err := account.Open("BTCUSDT", market.Long, 10, 100); err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	snap := account.Snapshot(map[string]float64{"BTCUSDT": 110})
	pos := snap.Positions["BTCUSDT"]
	if !approx(pos.Unrealized, 10) {
		t.Fatalf("expected unrealized 10, got %.6f", pos.Unrealized)
	}
	if !approx(snap.Equity, 110) {
		t.Fatalf("expected equity 110, got %.6f", snap.Equity)
	}
}
