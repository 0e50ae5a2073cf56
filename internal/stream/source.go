package stream

import (
	"context"
	"fmt"
	"time"

	"fusionbot-go/internal/market"
)

// Source addresses the manager's streams by instrument and timeframe, which
// is how the orchestrator's workers see them.
type Source struct {
	m *Manager
}

// NewSource wraps m.
func NewSource(m *Manager) *Source { return &Source{m: m} }

func (s *Source) handle(instrument, timeframe string) (Handle, error) {
	h, ok := s.m.Lookup(instrument, timeframe)
	if !ok {
		return Handle{}, fmt.Errorf("%w: %s_%s", ErrUnknownHandle, instrument, timeframe)
	}
	return h, nil
}

// AwaitMinBars waits for n closed bars on the pair.
func (s *Source) AwaitMinBars(ctx context.Context, instrument, timeframe string, n int, timeout time.Duration) bool {
	h, err := s.handle(instrument, timeframe)
	if err != nil {
		return false
	}
	return s.m.AwaitMinBars(ctx, h, n, timeout)
}

// AwaitNextBar waits for the next closed bar after the given open time.
func (s *Source) AwaitNextBar(ctx context.Context, instrument, timeframe string, after time.Time) (market.Bar, error) {
	h, err := s.handle(instrument, timeframe)
	if err != nil {
		return market.Bar{}, err
	}
	return s.m.AwaitNextBar(ctx, h, after)
}

// Bars returns the pair's buffer when it holds at least n bars. A short
// buffer is topped up from REST history; when that fails too the short
// buffer is returned as is and evaluation degrades on insufficient history.
func (s *Source) Bars(ctx context.Context, instrument, timeframe string, n int) ([]market.Bar, error) {
	h, err := s.handle(instrument, timeframe)
	if err != nil {
		return nil, err
	}
	bars := s.m.Snapshot(h)
	if len(bars) >= n {
		return bars, nil
	}
	fetched, err := s.m.Ensure(ctx, instrument, timeframe, n, 0)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.m.log.Warn().Err(err).Str("stream", h.String()).Int("have", len(bars)).Int("want", n).Msg("history short")
		return bars, nil
	}
	return fetched, nil
}

// Price returns the latest price seen on the pair.
func (s *Source) Price(instrument, timeframe string) (float64, bool) {
	h, err := s.handle(instrument, timeframe)
	if err != nil {
		return 0, false
	}
	return s.m.Price(h)
}
