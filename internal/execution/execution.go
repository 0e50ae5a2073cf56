// Package execution handles order lifecycle and interaction with venues.
package execution

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"fusionbot-go/internal/market"
	"fusionbot-go/internal/metrics"
)

// Executor is the order-execution collaborator. Calls block until the venue
// answers or ctx ends; a false result without error is a venue refusal.
type Executor interface {
	OpenLong(ctx context.Context, instrument string, value, stopLossPct float64) (bool, error)
	OpenShort(ctx context.Context, instrument string, value, stopLossPct float64) (bool, error)
	Close(ctx context.Context, instrument string) (bool, error)
}

// Bounded applies a timeout to every call of the wrapped executor and
// records each call in logs and metrics.
type Bounded struct {
	next    Executor
	timeout time.Duration
	log     zerolog.Logger
}

// NewBounded wraps next. A non-positive timeout leaves calls unbounded.
func NewBounded(next Executor, timeout time.Duration, log zerolog.Logger) *Bounded {
	return &Bounded{next: next, timeout: timeout, log: log}
}

// OpenLong opens a long position within the timeout.
func (b *Bounded) OpenLong(ctx context.Context, instrument string, value, stopLossPct float64) (bool, error) {
	return b.open(ctx, market.Long, instrument, value, stopLossPct, b.next.OpenLong)
}

// OpenShort opens a short position within the timeout.
func (b *Bounded) OpenShort(ctx context.Context, instrument string, value, stopLossPct float64) (bool, error) {
	return b.open(ctx, market.Short, instrument, value, stopLossPct, b.next.OpenShort)
}

type openFunc func(context.Context, string, float64, float64) (bool, error)

func (b *Bounded) open(ctx context.Context, side market.Side, instrument string, value, stopLossPct float64, fn openFunc) (bool, error) {
	metrics.OrdersTotal.WithLabelValues(instrument, side.String()).Inc()
	ctx, cancel := b.bound(ctx)
	defer cancel()

	start := time.Now()
	ok, err := fn(ctx, instrument, value, stopLossPct)
	b.observe("open_"+sideOp(side), instrument, ok, err, start).
		Float64("value", value).Float64("stop_loss_pct", stopLossPct).Msg("open order")
	return ok, err
}

// Close closes the instrument's position within the timeout.
func (b *Bounded) Close(ctx context.Context, instrument string) (bool, error) {
	metrics.OrdersTotal.WithLabelValues(instrument, "CLOSE").Inc()
	ctx, cancel := b.bound(ctx)
	defer cancel()

	start := time.Now()
	ok, err := b.next.Close(ctx, instrument)
	b.observe("close", instrument, ok, err, start).Msg("close order")
	return ok, err
}

func (b *Bounded) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

func (b *Bounded) observe(op, instrument string, ok bool, err error, start time.Time) *zerolog.Event {
	if err != nil || !ok {
		metrics.OrderFailures.WithLabelValues(instrument, op).Inc()
	}
	ev := b.log.Info()
	if err != nil {
		ev = b.log.Error().Err(err)
	} else if !ok {
		ev = b.log.Warn()
	}
	return ev.Str("op", op).Str("instrument", instrument).Bool("ok", ok).Dur("took", time.Since(start))
}

func sideOp(s market.Side) string {
	if s == market.Short {
		return "short"
	}
	return "long"
}
