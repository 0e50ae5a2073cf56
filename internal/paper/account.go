// Package paper simulates futures execution with fees, slippage and leverage.
package paper

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fusionbot-go/internal/market"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrPositionOpen        = errors.New("position already open")
	ErrNoPosition          = errors.New("no open position")
	ErrInvalidOrder        = errors.New("invalid order")
	ErrNoPrice             = errors.New("no price")
)

// Trade is a closed paper position.
type Trade struct {
	ID         string      `json:"id"`
	Instrument string      `json:"instrument"`
	Side       market.Side `json:"side"`
	Entry      float64     `json:"entry_price"`
	Exit       float64     `json:"exit_price"`
	Quantity   float64     `json:"quantity"`
	Value      float64     `json:"trade_value"`
	Leverage   float64     `json:"leverage"`
	Fees       float64     `json:"fees"`
	PnL        float64     `json:"pnl"`
	PnLPct     float64     `json:"pnl_pct"`
	OpenedAt   time.Time   `json:"opened_at"`
	ClosedAt   time.Time   `json:"closed_at"`
}

type positionState struct {
	side     market.Side
	entry    decimal.Decimal
	qty      decimal.Decimal
	margin   decimal.Decimal
	entryFee decimal.Decimal
	openedAt time.Time
}

// PositionSnapshot exposes a read-only view of a single instrument position.
type PositionSnapshot struct {
	Side       market.Side `json:"side"`
	Entry      float64     `json:"entry_price"`
	Quantity   float64     `json:"quantity"`
	Margin     float64     `json:"margin"`
	Unrealized float64     `json:"unrealized"`
}

// Snapshot represents a thread-safe view of the account state, optionally marked to market using provided prices.
type Snapshot struct {
	Balance   float64                     `json:"balance"`
	Realized  float64                     `json:"realized_pnl"`
	Fees      float64                     `json:"fees"`
	Equity    float64                     `json:"equity"`
	Positions map[string]PositionSnapshot `json:"positions"`
}

// Account is a simulated futures account. Each position posts its trade
// value as margin; fees are charged on the leveraged notional.
type Account struct {
	mu        sync.Mutex
	initial   decimal.Decimal
	balance   decimal.Decimal
	realized  decimal.Decimal
	fees      decimal.Decimal
	leverage  decimal.Decimal
	feeRate   decimal.Decimal
	slippage  decimal.Decimal
	positions map[string]*positionState
	now       func() time.Time
}

// NewAccount constructs an account with starting balance, leverage and cost rates.
func NewAccount(startingBalance, leverage, feeRate, slippageRate float64) *Account {
	return &Account{
		initial:   decimal.NewFromFloat(startingBalance),
		balance:   decimal.NewFromFloat(startingBalance),
		leverage:  decimal.NewFromFloat(leverage),
		feeRate:   decimal.NewFromFloat(feeRate),
		slippage:  decimal.NewFromFloat(slippageRate),
		positions: make(map[string]*positionState),
		now:       time.Now,
	}
}

// StartingBalance returns the initial bankroll.
func (a *Account) StartingBalance() float64 { return a.initial.InexactFloat64() }

// fillPrice moves price against the trader by the slippage rate.
func (a *Account) fillPrice(price decimal.Decimal, buying bool) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if buying {
		return price.Mul(one.Add(a.slippage))
	}
	return price.Mul(one.Sub(a.slippage))
}

// Open posts value as margin and opens a leveraged position at price.
func (a *Account) Open(instrument string, side market.Side, value, price float64) (PositionSnapshot, error) {
	if value <= 0 || price <= 0 || (side != market.Long && side != market.Short) {
		return PositionSnapshot{}, fmt.Errorf("%w: value %v price %v side %s", ErrInvalidOrder, value, price, side)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.positions[instrument]; ok {
		return PositionSnapshot{}, fmt.Errorf("%w: %s", ErrPositionOpen, instrument)
	}
	margin := decimal.NewFromFloat(value)
	notional := margin.Mul(a.leverage)
	fee := notional.Mul(a.feeRate)
	if margin.Add(fee).GreaterThan(a.balance) {
		return PositionSnapshot{}, fmt.Errorf("%w: need %s have %s", ErrInsufficientBalance, margin.Add(fee).StringFixed(4), a.balance.StringFixed(4))
	}

	entry := a.fillPrice(decimal.NewFromFloat(price), side == market.Long)
	st := &positionState{
		side:     side,
		entry:    entry,
		qty:      notional.Div(entry),
		margin:   margin,
		entryFee: fee,
		openedAt: a.now(),
	}
	a.positions[instrument] = st
	a.balance = a.balance.Sub(margin).Sub(fee)
	a.fees = a.fees.Add(fee)
	return st.snapshot(decimal.Zero), nil
}

// Close settles the instrument's position at price and returns the trade.
func (a *Account) Close(instrument string, price float64) (Trade, error) {
	if price <= 0 {
		return Trade{}, fmt.Errorf("%w: price %v", ErrInvalidOrder, price)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	st, ok := a.positions[instrument]
	if !ok {
		return Trade{}, fmt.Errorf("%w: %s", ErrNoPosition, instrument)
	}
	exit := a.fillPrice(decimal.NewFromFloat(price), st.side == market.Short)
	gross := st.gross(exit)
	exitFee := exit.Mul(st.qty).Mul(a.feeRate)
	pnl := gross.Sub(st.entryFee).Sub(exitFee)

	a.balance = a.balance.Add(st.margin).Add(gross).Sub(exitFee)
	a.realized = a.realized.Add(pnl)
	a.fees = a.fees.Add(exitFee)
	delete(a.positions, instrument)

	return Trade{
		ID:         uuid.NewString(),
		Instrument: instrument,
		Side:       st.side,
		Entry:      st.entry.InexactFloat64(),
		Exit:       exit.InexactFloat64(),
		Quantity:   st.qty.InexactFloat64(),
		Value:      st.margin.InexactFloat64(),
		Leverage:   a.leverage.InexactFloat64(),
		Fees:       st.entryFee.Add(exitFee).InexactFloat64(),
		PnL:        pnl.InexactFloat64(),
		PnLPct:     pnl.Div(st.margin).Mul(decimal.NewFromInt(100)).InexactFloat64(),
		OpenedAt:   st.openedAt,
		ClosedAt:   a.now(),
	}, nil
}

func (st *positionState) gross(mark decimal.Decimal) decimal.Decimal {
	diff := mark.Sub(st.entry)
	if st.side == market.Short {
		diff = diff.Neg()
	}
	return diff.Mul(st.qty)
}

func (st *positionState) snapshot(mark decimal.Decimal) PositionSnapshot {
	ps := PositionSnapshot{
		Side:     st.side,
		Entry:    st.entry.InexactFloat64(),
		Quantity: st.qty.InexactFloat64(),
		Margin:   st.margin.InexactFloat64(),
	}
	if mark.IsPositive() {
		ps.Unrealized = st.gross(mark).InexactFloat64()
	}
	return ps
}

// Snapshot returns a copy of balances, optionally marked using the supplied prices map.
func (a *Account) Snapshot(prices map[string]float64) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	positions := make(map[string]PositionSnapshot, len(a.positions))
	equity := a.balance
	for sym, st := range a.positions {
		ps := st.snapshot(decimal.NewFromFloat(prices[sym]))
		positions[sym] = ps
		equity = equity.Add(st.margin).Add(decimal.NewFromFloat(ps.Unrealized))
	}
	return Snapshot{
		Balance:   a.balance.InexactFloat64(),
		Realized:  a.realized.InexactFloat64(),
		Fees:      a.fees.InexactFloat64(),
		Equity:    equity.InexactFloat64(),
		Positions: positions,
	}
}

// HasPosition reports whether instrument has an open paper position.
func (a *Account) HasPosition(instrument string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.positions[instrument]
	return ok
}
