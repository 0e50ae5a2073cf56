// Package risk gates new positions and keeps the process-wide P&L ledger.
package risk

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fusionbot-go/internal/config"
	"fusionbot-go/internal/market"
	"fusionbot-go/internal/metrics"
)

// Denial reasons returned by CanOpen.
const (
	ReasonDailyLoss     = "daily loss limit reached"
	ReasonMaxConcurrent = "max concurrent positions reached"
	ReasonExists        = "position already open"
	ReasonSize          = "position size exceeds limit"
	ReasonBalance       = "insufficient balance"
	ReasonApproved      = "approved"
)

var (
	// ErrDenied wraps the CanOpen reason when Open is refused.
	ErrDenied = errors.New("risk denied")
	// ErrNoPosition is returned when closing an instrument without a position.
	ErrNoPosition = errors.New("no open position")
	// ErrInvalidPrice rejects non-positive entry or exit prices.
	ErrInvalidPrice = errors.New("invalid price")
)

var hundred = decimal.NewFromInt(100)

// Limits encodes guard-rails for how much exposure the bot may take on.
type Limits struct {
	InitialBalance float64
	MaxConcurrent  int
	DailyLossLimit float64
	MaxPositionPct float64
	Leverage       float64
	StopLossPct    float64
	TakeProfitPct  float64
}

// LimitsFromConfig collects the risk and sizing settings.
func LimitsFromConfig(cfg *config.Config) Limits {
	return Limits{
		InitialBalance: cfg.Risk.InitialBalance,
		MaxConcurrent:  cfg.Risk.MaxConcurrent,
		DailyLossLimit: cfg.Risk.MaxDailyLoss,
		MaxPositionPct: cfg.Risk.MaxPositionPct,
		Leverage:       cfg.Trading.Leverage,
		StopLossPct:    cfg.Trading.StopLossPct,
		TakeProfitPct:  cfg.Trading.TakeProfitPct,
	}
}

// Position is an open exposure recorded by the ledger.
type Position struct {
	Instrument string      `json:"instrument"`
	Side       market.Side `json:"side"`
	Entry      float64     `json:"entry_price"`
	Value      float64     `json:"trade_value"`
	Quantity   float64     `json:"quantity"`
	Leverage   float64     `json:"leverage"`
	StopLoss   float64     `json:"stop_loss_price"`
	TakeProfit float64     `json:"take_profit_price"`
	OpenedAt   time.Time   `json:"opened_at"`
}

// TradeResult is a position closed by the ledger.
type TradeResult struct {
	Position
	Exit     float64   `json:"exit_price"`
	PnL      float64   `json:"pnl_usd"`
	PnLPct   float64   `json:"pnl_pct"`
	ClosedAt time.Time `json:"closed_at"`
}

// Stats is a point-in-time view of the ledger.
type Stats struct {
	Balance  float64 `json:"balance"`
	DailyPnL float64 `json:"daily_pnl"`
	TotalPnL float64 `json:"total_pnl"`
	Open     int     `json:"open_positions"`
	Trades   int     `json:"trades"`
	Wins     int     `json:"wins"`
	WinRate  float64 `json:"win_rate"`
}

type position struct {
	Position
	entry  decimal.Decimal
	margin decimal.Decimal
}

// Manager owns the risk ledger. All state sits behind one mutex that is
// never held across I/O.
type Manager struct {
	limits Limits
	log    zerolog.Logger
	now    func() time.Time

	mu        sync.Mutex
	balance   decimal.Decimal
	dailyPnL  decimal.Decimal
	totalPnL  decimal.Decimal
	positions map[string]*position
	trades    int
	wins      int
	resetAt   time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock replaces time.Now, mainly for day-rollover tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger attaches a logger for risk decisions.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// NewManager starts a ledger at the initial balance.
func NewManager(limits Limits, opts ...Option) *Manager {
	m := &Manager{
		limits:    limits,
		log:       zerolog.Nop(),
		now:       time.Now,
		balance:   decimal.NewFromFloat(limits.InitialBalance),
		positions: make(map[string]*position),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.resetAt = nextDay(m.now())
	return m
}

func nextDay(t time.Time) time.Time {
	y, mo, d := t.UTC().Date()
	return time.Date(y, mo, d+1, 0, 0, 0, 0, time.UTC)
}

// rollover clears daily P&L at the first call after a UTC midnight.
func (m *Manager) rollover() {
	now := m.now()
	if now.Before(m.resetAt) {
		return
	}
	m.log.Info().Str("daily_pnl", m.dailyPnL.StringFixed(2)).Msg("daily risk reset")
	m.dailyPnL = decimal.Zero
	m.resetAt = nextDay(now)
}

// CanOpen reports whether a new position worth value may be opened on
// instrument. Denials are ordinary results with a reason, not errors.
func (m *Manager) CanOpen(instrument string, value float64) (bool, string) {
	m.mu.Lock()
	m.rollover()
	ok, reason := m.check(instrument, decimal.NewFromFloat(value))
	m.mu.Unlock()

	metrics.RiskDecisions.WithLabelValues(strconv.FormatBool(ok), reason).Inc()
	m.log.Info().Str("instrument", instrument).Float64("value", value).Bool("allowed", ok).Str("reason", reason).Msg("risk decision")
	return ok, reason
}

func (m *Manager) check(instrument string, value decimal.Decimal) (bool, string) {
	if m.dailyPnL.LessThanOrEqual(decimal.NewFromFloat(-m.limits.DailyLossLimit)) {
		return false, ReasonDailyLoss
	}
	if len(m.positions) >= m.limits.MaxConcurrent {
		return false, ReasonMaxConcurrent
	}
	if _, ok := m.positions[instrument]; ok {
		return false, ReasonExists
	}
	if value.GreaterThan(m.balance.Mul(decimal.NewFromFloat(m.limits.MaxPositionPct)).Div(hundred)) {
		return false, ReasonSize
	}
	if value.GreaterThan(m.balance) {
		return false, ReasonBalance
	}
	return true, ReasonApproved
}

// Open records a position and reserves its value as margin. It re-runs the
// CanOpen checks under the same lock.
func (m *Manager) Open(instrument string, side market.Side, entry, value float64) (Position, error) {
	if entry <= 0 {
		return Position{}, ErrInvalidPrice
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()

	val := decimal.NewFromFloat(value)
	if ok, reason := m.check(instrument, val); !ok {
		return Position{}, fmt.Errorf("%w: %s", ErrDenied, reason)
	}

	e := decimal.NewFromFloat(entry)
	lev := decimal.NewFromFloat(m.limits.Leverage)
	sl := decimal.NewFromFloat(m.limits.StopLossPct).Div(hundred)
	tp := decimal.NewFromFloat(m.limits.TakeProfitPct).Div(hundred)
	one := decimal.NewFromInt(1)

	p := &position{entry: e, margin: val}
	p.Instrument = instrument
	p.Side = side
	p.Entry = entry
	p.Value = value
	p.Leverage = m.limits.Leverage
	p.Quantity = val.Mul(lev).Div(e).InexactFloat64()
	p.OpenedAt = m.now()
	if side == market.Long {
		p.StopLoss = e.Mul(one.Sub(sl)).InexactFloat64()
		p.TakeProfit = e.Mul(one.Add(tp)).InexactFloat64()
	} else {
		p.StopLoss = e.Mul(one.Add(sl)).InexactFloat64()
		p.TakeProfit = e.Mul(one.Sub(tp)).InexactFloat64()
	}

	m.positions[instrument] = p
	m.balance = m.balance.Sub(val)
	metrics.OpenPositions.Set(float64(len(m.positions)))
	m.log.Info().Str("instrument", instrument).Str("side", side.String()).
		Float64("entry", entry).Float64("stop_loss", p.StopLoss).Float64("take_profit", p.TakeProfit).
		Str("balance", m.balance.StringFixed(2)).Msg("position recorded")
	return p.Position, nil
}

// Close releases the margin of the instrument's position and books the
// leveraged P&L into the balance and today's figures.
func (m *Manager) Close(instrument string, exit float64) (TradeResult, error) {
	if exit <= 0 {
		return TradeResult{}, ErrInvalidPrice
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()

	p, ok := m.positions[instrument]
	if !ok {
		return TradeResult{}, fmt.Errorf("%w: %s", ErrNoPosition, instrument)
	}
	x := decimal.NewFromFloat(exit)
	move := x.Sub(p.entry).Div(p.entry)
	if p.Side == market.Short {
		move = move.Neg()
	}
	pct := move.Mul(decimal.NewFromFloat(p.Leverage)).Mul(hundred)
	pnl := pct.Div(hundred).Mul(p.margin)

	m.balance = m.balance.Add(p.margin).Add(pnl)
	m.dailyPnL = m.dailyPnL.Add(pnl)
	m.totalPnL = m.totalPnL.Add(pnl)
	m.trades++
	if pnl.IsPositive() {
		m.wins++
	}
	delete(m.positions, instrument)
	metrics.OpenPositions.Set(float64(len(m.positions)))

	res := TradeResult{
		Position: p.Position,
		Exit:     exit,
		PnL:      pnl.InexactFloat64(),
		PnLPct:   pct.InexactFloat64(),
		ClosedAt: m.now(),
	}
	m.log.Info().Str("instrument", instrument).Str("side", p.Side.String()).
		Float64("exit", exit).Str("pnl", pnl.StringFixed(4)).
		Str("balance", m.balance.StringFixed(2)).Str("daily_pnl", m.dailyPnL.StringFixed(2)).
		Msg("position released")
	return res, nil
}

// Release drops the instrument's position at its entry price, returning the
// margin with no P&L. Used when the position state is no longer trusted.
func (m *Manager) Release(instrument string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[instrument]
	if !ok {
		return false
	}
	m.balance = m.balance.Add(p.margin)
	delete(m.positions, instrument)
	metrics.OpenPositions.Set(float64(len(m.positions)))
	m.log.Warn().Str("instrument", instrument).Msg("position released without fill")
	return true
}

// CheckStops reports whether price has crossed the stop-loss or take-profit
// level of the instrument's position.
func (m *Manager) CheckStops(instrument string, price float64) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[instrument]
	if !ok || price <= 0 {
		return false, ""
	}
	switch p.Side {
	case market.Long:
		if price <= p.StopLoss {
			return true, fmt.Sprintf("stop loss hit: %.4f <= %.4f", price, p.StopLoss)
		}
		if price >= p.TakeProfit {
			return true, fmt.Sprintf("take profit hit: %.4f >= %.4f", price, p.TakeProfit)
		}
	case market.Short:
		if price >= p.StopLoss {
			return true, fmt.Sprintf("stop loss hit: %.4f >= %.4f", price, p.StopLoss)
		}
		if price <= p.TakeProfit {
			return true, fmt.Sprintf("take profit hit: %.4f <= %.4f", price, p.TakeProfit)
		}
	}
	return false, ""
}

// Position returns the open position of an instrument.
func (m *Manager) Position(instrument string) (Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[instrument]
	if !ok {
		return Position{}, false
	}
	return p.Position, true
}

// Stats snapshots the ledger.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()
	s := Stats{
		Balance:  m.balance.InexactFloat64(),
		DailyPnL: m.dailyPnL.InexactFloat64(),
		TotalPnL: m.totalPnL.InexactFloat64(),
		Open:     len(m.positions),
		Trades:   m.trades,
		Wins:     m.wins,
	}
	if m.trades > 0 {
		s.WinRate = float64(m.wins) / float64(m.trades)
	}
	return s
}
