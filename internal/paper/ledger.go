package paper

import "sync"

// TradeRecorder captures closed paper trades for later inspection.
type TradeRecorder interface {
	Record(Trade)
}

// Ledger stores closed trades in memory for quick inspection.
type Ledger struct {
	mu     sync.Mutex
	trades []Trade
}

// NewLedger creates an empty ledger optionally pre-sizing storage.
func NewLedger(capacity int) *Ledger {
	if capacity < 0 {
		capacity = 0
	}
	return &Ledger{trades: make([]Trade, 0, capacity)}
}

// Record appends a trade to the ledger.
func (l *Ledger) Record(t Trade) {
	l.mu.Lock()
	l.trades = append(l.trades, t)
	l.mu.Unlock()
}

// Snapshot returns a copy of the recorded trades.
func (l *Ledger) Snapshot() []Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Len reports how many trades were recorded.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.trades)
}
