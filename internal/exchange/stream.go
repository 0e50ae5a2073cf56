// Package exchange hosts the market-data connectors: the kline websocket
// stream and the REST history fetcher.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const defaultWSBase = "wss://fstream.binance.com/ws"

// KlineStream subscribes to one kline websocket per Run call and keeps it
// alive across disconnects.
type KlineStream struct {
	baseURL     string
	backoff     Backoff
	log         zerolog.Logger
	onReconnect func(instrument, timeframe string)
	onDecodeErr func(instrument, timeframe string)
	readTimeout time.Duration
	pingEvery   time.Duration
}

// Option configures KlineStream construction parameters.
type Option func(*KlineStream)

// WithBaseURL overrides the websocket endpoint root.
func WithBaseURL(u string) Option {
	return func(s *KlineStream) {
		if u != "" {
			s.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithBackoff overrides the reconnect curve.
func WithBackoff(b Backoff) Option {
	return func(s *KlineStream) { s.backoff = b }
}

// WithHooks registers callbacks fired on reconnect attempts and skipped messages.
func WithHooks(onReconnect, onDecodeErr func(instrument, timeframe string)) Option {
	return func(s *KlineStream) {
		s.onReconnect = onReconnect
		s.onDecodeErr = onDecodeErr
	}
}

// WithKeepalive overrides the read deadline and ping cadence.
func WithKeepalive(readTimeout, pingEvery time.Duration) Option {
	return func(s *KlineStream) {
		if readTimeout > 0 {
			s.readTimeout = readTimeout
		}
		if pingEvery > 0 {
			s.pingEvery = pingEvery
		}
	}
}

// NewKlineStream builds a stream connector.
func NewKlineStream(log zerolog.Logger, opts ...Option) *KlineStream {
	s := &KlineStream{
		baseURL:     defaultWSBase,
		backoff:     DefaultBackoff(),
		log:         log,
		onReconnect: func(string, string) {},
		onDecodeErr: func(string, string) {},
		readTimeout: 30 * time.Second,
		pingEvery:   15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StreamURL returns the subscription URL for one instrument and timeframe.
func (s *KlineStream) StreamURL(instrument, timeframe string) string {
	return fmt.Sprintf("%s/%s@kline_%s", s.baseURL, strings.ToLower(instrument), timeframe)
}

// Run delivers kline events to handle until ctx is canceled, reconnecting on
// any transport failure. It only returns ctx's error.
func (s *KlineStream) Run(ctx context.Context, instrument, timeframe string, handle func(KlineEvent)) error {
	url := s.StreamURL(instrument, timeframe)
	log := s.log.With().Str("instrument", instrument).Str("timeframe", timeframe).Logger()

	attempt := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		connected, err := s.consume(ctx, url, instrument, timeframe, handle, log)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			attempt = 0
		}
		attempt++
		wait := s.backoff.Next(attempt)
		s.onReconnect(instrument, timeframe)
		log.Warn().Err(err).Dur("backoff", wait).Int("attempt", attempt).Msg("kline stream disconnected, retrying")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *KlineStream) consume(ctx context.Context, url, instrument, timeframe string, handle func(KlineEvent), log zerolog.Logger) (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	log.Info().Str("url", url).Msg("connected kline stream")

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(s.pingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					log.Warn().Err(err).Msg("kline ping failed")
					return
				}
			case <-pingCtx.Done():
				// unblock ReadMessage on shutdown
				_ = conn.Close()
				return
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))

		ev, err := DecodeKline(message)
		if err != nil {
			if !errors.Is(err, errNotKline) {
				s.onDecodeErr(instrument, timeframe)
				log.Warn().Err(err).Msg("failed to decode kline message")
			}
			continue
		}
		if ev.Timeframe == "" {
			ev.Timeframe = timeframe
		}
		if ev.Instrument == "" {
			ev.Instrument = strings.ToUpper(instrument)
		}
		handle(ev)
	}
}
