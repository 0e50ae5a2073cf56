// Package stream owns the live bar buffers: one subscription and one ring per
// (instrument, timeframe), with snapshot reads and cooperative waits.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"fusionbot-go/internal/exchange"
	"fusionbot-go/internal/market"
	"fusionbot-go/internal/metrics"
)

var (
	// ErrUnknownHandle is returned for handles that were never started or were stopped.
	ErrUnknownHandle = errors.New("unknown stream handle")
	// ErrStopped is returned by waits whose stream was stopped underneath them.
	ErrStopped = errors.New("stream stopped")
)

// Subscriber is the live kline source, satisfied by exchange.KlineStream.
type Subscriber interface {
	Run(ctx context.Context, instrument, timeframe string, handle func(exchange.KlineEvent)) error
}

// Handle identifies a started stream.
type Handle struct {
	key market.Key
}

// Key returns the (instrument, timeframe) pair behind the handle.
func (h Handle) Key() market.Key { return h.key }

func (h Handle) String() string { return h.key.String() }

type connection struct {
	key     market.Key
	buf     *market.Buffer
	cancel  context.CancelFunc
	stopped chan struct{}
	done    chan struct{}
}

// Manager starts, reads and stops stream connections. Every connection runs
// in its own goroutine with its own buffer, so a failing pair never affects
// another.
type Manager struct {
	mu      sync.Mutex
	conns   map[market.Key]*connection
	sub     Subscriber
	fetcher exchange.Fetcher
	log     zerolog.Logger
}

// NewManager wires a manager to its live source and history fetcher. fetcher may be nil.
func NewManager(sub Subscriber, fetcher exchange.Fetcher, log zerolog.Logger) *Manager {
	return &Manager{
		conns:   make(map[market.Key]*connection),
		sub:     sub,
		fetcher: fetcher,
		log:     log,
	}
}

// Start opens the subscription for one pair. With backfill, capacity closed
// bars are fetched first so the buffer is usable immediately; a failed
// backfill is logged and the stream warms up from live data instead.
// Starting an already running pair returns its existing handle.
func (m *Manager) Start(ctx context.Context, instrument, timeframe string, capacity int, backfill bool) (Handle, error) {
	if _, err := market.ParseTimeframe(timeframe); err != nil {
		return Handle{}, err
	}
	key := market.Key{Instrument: strings.ToUpper(instrument), Timeframe: timeframe}
	if key.Instrument == "" {
		return Handle{}, fmt.Errorf("start stream: empty instrument")
	}

	m.mu.Lock()
	if _, ok := m.conns[key]; ok {
		m.mu.Unlock()
		return Handle{key: key}, nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	c := &connection{
		key:     key,
		buf:     market.NewBuffer(capacity),
		cancel:  cancel,
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
	m.conns[key] = c
	m.mu.Unlock()

	log := m.log.With().Str("instrument", key.Instrument).Str("timeframe", key.Timeframe).Logger()
	if backfill && m.fetcher != nil {
		m.backfill(runCtx, c, capacity, log)
	}

	go m.run(runCtx, c, log)
	log.Info().Int("capacity", capacity).Bool("backfill", backfill).Int("bars", c.buf.Len()).Msg("stream started")
	return Handle{key: key}, nil
}

func (m *Manager) backfill(ctx context.Context, c *connection, limit int, log zerolog.Logger) {
	bars, err := m.fetcher.Fetch(ctx, c.key.Instrument, c.key.Timeframe, limit)
	if err != nil {
		log.Warn().Err(err).Msg("backfill failed, warming up from live data")
		return
	}
	for _, bar := range bars {
		if err := c.buf.Append(bar); err != nil {
			log.Warn().Err(err).Time("open_time", bar.OpenTime).Msg("skipping backfill bar")
		}
	}
}

func (m *Manager) run(ctx context.Context, c *connection, log zerolog.Logger) {
	defer close(c.done)
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("stream goroutine crashed")
		}
	}()

	err := m.sub.Run(ctx, c.key.Instrument, c.key.Timeframe, func(ev exchange.KlineEvent) {
		m.apply(c, ev, log)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Msg("stream ended")
	}
}

func (m *Manager) apply(c *connection, ev exchange.KlineEvent, log zerolog.Logger) {
	if !ev.Bar.Closed {
		c.buf.SetCurrent(ev.Bar)
		return
	}
	if err := c.buf.Append(ev.Bar); err != nil {
		log.Warn().Err(err).Time("open_time", ev.Bar.OpenTime).Msg("dropping closed bar")
		return
	}
	metrics.BarsClosed.WithLabelValues(c.key.Instrument, c.key.Timeframe).Inc()
	log.Debug().Time("open_time", ev.Bar.OpenTime).Float64("close", ev.Bar.Close).Msg("bar closed")
}

func (m *Manager) lookup(h Handle) (*connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[h.key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	return c, nil
}

// Lookup returns the handle of a running pair.
func (m *Manager) Lookup(instrument, timeframe string) (Handle, bool) {
	h := Handle{key: market.Key{Instrument: strings.ToUpper(instrument), Timeframe: timeframe}}
	_, err := m.lookup(h)
	return h, err == nil
}

// Snapshot returns a copy of the closed bars; nil for unknown handles. It never blocks on I/O.
func (m *Manager) Snapshot(h Handle) []market.Bar {
	c, err := m.lookup(h)
	if err != nil {
		return nil
	}
	return c.buf.Snapshot()
}

// Current returns the in-progress bar.
func (m *Manager) Current(h Handle) (market.Bar, bool) {
	c, err := m.lookup(h)
	if err != nil {
		return market.Bar{}, false
	}
	return c.buf.Current()
}

// Price returns the latest known price: the in-progress close, else the last closed bar's close.
func (m *Manager) Price(h Handle) (float64, bool) {
	c, err := m.lookup(h)
	if err != nil {
		return 0, false
	}
	if cur, ok := c.buf.Current(); ok {
		return cur.Close, true
	}
	if last, ok := c.buf.Last(); ok {
		return last.Close, true
	}
	return 0, false
}

// AwaitMinBars blocks until the buffer holds n closed bars, the timeout
// elapses or ctx ends.
func (m *Manager) AwaitMinBars(ctx context.Context, h Handle, n int, timeout time.Duration) bool {
	c, err := m.lookup(h)
	if err != nil {
		return false
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		changed := c.buf.Changed()
		if c.buf.Len() >= n {
			return true
		}
		select {
		case <-changed:
		case <-timer.C:
			return false
		case <-ctx.Done():
			return false
		case <-c.stopped:
			return false
		}
	}
}

// AwaitNextBar blocks until a closed bar newer than after exists and returns
// the oldest such bar, so successive calls walk bars in order.
func (m *Manager) AwaitNextBar(ctx context.Context, h Handle, after time.Time) (market.Bar, error) {
	c, err := m.lookup(h)
	if err != nil {
		return market.Bar{}, err
	}
	for {
		changed := c.buf.Changed()
		if bar, ok := c.buf.After(after); ok {
			return bar, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return market.Bar{}, ctx.Err()
		case <-c.stopped:
			return market.Bar{}, ErrStopped
		}
	}
}

// Ensure returns at least limit bars for a pair: from the live buffer when it
// fills within wait, otherwise from the history fetcher.
func (m *Manager) Ensure(ctx context.Context, instrument, timeframe string, limit int, wait time.Duration) ([]market.Bar, error) {
	if h, ok := m.Lookup(instrument, timeframe); ok {
		if m.AwaitMinBars(ctx, h, limit, wait) {
			return m.Snapshot(h), nil
		}
	}
	if m.fetcher == nil {
		return nil, fmt.Errorf("ensure %s_%s: stream short and no fetcher", instrument, timeframe)
	}
	m.log.Info().Str("instrument", instrument).Str("timeframe", timeframe).Int("limit", limit).Msg("falling back to REST history")
	bars, err := m.fetcher.Fetch(ctx, instrument, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("ensure %s_%s: %w", instrument, timeframe, err)
	}
	return bars, nil
}

// Stop cancels one subscription and waits for its goroutine to exit.
func (m *Manager) Stop(h Handle) {
	m.mu.Lock()
	c, ok := m.conns[h.key]
	if ok {
		delete(m.conns, h.key)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	close(c.stopped)
	c.cancel()
	<-c.done
	m.log.Info().Str("stream", h.String()).Msg("stream stopped")
}

// StopAll stops every running subscription.
func (m *Manager) StopAll() {
	for _, k := range m.Keys() {
		m.Stop(Handle{key: k})
	}
}

// Keys lists running pairs in a stable order.
func (m *Manager) Keys() []market.Key {
	m.mu.Lock()
	out := make([]market.Key, 0, len(m.conns))
	for k := range m.conns {
		out = append(out, k)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
