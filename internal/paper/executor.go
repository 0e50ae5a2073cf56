package paper

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"fusionbot-go/internal/market"
)

// PriceSource returns the latest known price of an instrument.
type PriceSource interface {
	Price(instrument string) (float64, bool)
}

// PriceFunc adapts a function to PriceSource.
type PriceFunc func(instrument string) (float64, bool)

// Price implements PriceSource.
func (f PriceFunc) Price(instrument string) (float64, bool) { return f(instrument) }

// Executor fills orders against an Account at the source's latest price and
// hands every closed trade to the recorders.
type Executor struct {
	account   *Account
	prices    PriceSource
	recorders []TradeRecorder
	log       zerolog.Logger
}

// NewExecutor builds a paper executor.
func NewExecutor(account *Account, prices PriceSource, log zerolog.Logger, recorders ...TradeRecorder) *Executor {
	return &Executor{account: account, prices: prices, recorders: recorders, log: log}
}

// Account exposes the simulated account.
func (e *Executor) Account() *Account { return e.account }

// OpenLong opens a simulated long position.
func (e *Executor) OpenLong(ctx context.Context, instrument string, value, stopLossPct float64) (bool, error) {
	return e.open(ctx, instrument, market.Long, value)
}

// OpenShort opens a simulated short position.
func (e *Executor) OpenShort(ctx context.Context, instrument string, value, stopLossPct float64) (bool, error) {
	return e.open(ctx, instrument, market.Short, value)
}

func (e *Executor) open(ctx context.Context, instrument string, side market.Side, value float64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	price, ok := e.prices.Price(instrument)
	if !ok {
		return false, fmt.Errorf("%w for %s", ErrNoPrice, instrument)
	}
	pos, err := e.account.Open(instrument, side, value, price)
	switch {
	case errors.Is(err, ErrInsufficientBalance), errors.Is(err, ErrPositionOpen):
		e.log.Warn().Err(err).Str("instrument", instrument).Msg("paper order refused")
		return false, nil
	case err != nil:
		return false, err
	}
	e.log.Info().Str("instrument", instrument).Str("side", side.String()).
		Float64("entry", pos.Entry).Float64("qty", pos.Quantity).Float64("margin", pos.Margin).
		Msg("paper position opened")
	return true, nil
}

// Close settles the instrument's simulated position.
func (e *Executor) Close(ctx context.Context, instrument string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	price, ok := e.prices.Price(instrument)
	if !ok {
		return false, fmt.Errorf("%w for %s", ErrNoPrice, instrument)
	}
	trade, err := e.account.Close(instrument, price)
	if errors.Is(err, ErrNoPosition) {
		e.log.Warn().Str("instrument", instrument).Msg("paper close without position")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, r := range e.recorders {
		r.Record(trade)
	}
	e.log.Info().Str("id", trade.ID).Str("instrument", instrument).Str("side", trade.Side.String()).
		Float64("entry", trade.Entry).Float64("exit", trade.Exit).
		Float64("pnl", trade.PnL).Float64("fees", trade.Fees).
		Msg("paper position closed")
	return true, nil
}
