package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"fusionbot-go/internal/market"
)

const (
	defaultRESTBase = "https://fapi.binance.com"
	maxKlineLimit   = 1500
)

// Fetcher is the point-in-time market-data query used for backfill and as a
// history fallback.
type Fetcher interface {
	Fetch(ctx context.Context, instrument, timeframe string, limit int) ([]market.Bar, error)
}

// RESTFetcher queries the futures klines endpoint under a client-side rate limit.
type RESTFetcher struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
	now     func() time.Time
}

// RESTConfig tunes the fetcher.
type RESTConfig struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
}

// NewRESTFetcher constructs a fetcher; zero config values fall back to defaults.
func NewRESTFetcher(cfg RESTConfig, log zerolog.Logger) *RESTFetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultRESTBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &RESTFetcher{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst),
		log:     log,
		now:     time.Now,
	}
}

// Fetch returns up to limit closed bars, oldest first. A still-open final row
// is dropped.
func (f *RESTFetcher) Fetch(ctx context.Context, instrument, timeframe string, limit int) ([]market.Bar, error) {
	if limit <= 0 {
		return nil, nil
	}
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	q := url.Values{}
	q.Set("symbol", strings.ToUpper(instrument))
	q.Set("interval", timeframe)
	// one extra row covers the in-progress bar we drop
	q.Set("limit", strconv.Itoa(min(limit+1, maxKlineLimit)))
	endpoint := f.baseURL + "/fapi/v1/klines?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if f.apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", f.apiKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch klines: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch klines: unexpected status %d", resp.StatusCode)
	}

	var rows [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}

	now := f.now()
	bars := make([]market.Bar, 0, len(rows))
	for _, row := range rows {
		bar, closeTime, err := decodeKlineRow(row)
		if err != nil {
			f.log.Warn().Err(err).Str("instrument", instrument).Msg("skipping malformed kline row")
			continue
		}
		if closeTime.After(now) {
			continue
		}
		bar.Closed = true
		bars = append(bars, bar)
	}
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

func decodeKlineRow(row []json.RawMessage) (market.Bar, time.Time, error) {
	if len(row) < 7 {
		return market.Bar{}, time.Time{}, fmt.Errorf("kline row has %d fields", len(row))
	}
	var openTime, closeTime int64
	if err := json.Unmarshal(row[0], &openTime); err != nil {
		return market.Bar{}, time.Time{}, fmt.Errorf("open time: %w", err)
	}
	if err := json.Unmarshal(row[6], &closeTime); err != nil {
		return market.Bar{}, time.Time{}, fmt.Errorf("close time: %w", err)
	}
	var fields [5]string
	for i := range fields {
		if err := json.Unmarshal(row[i+1], &fields[i]); err != nil {
			return market.Bar{}, time.Time{}, fmt.Errorf("field %d: %w", i+1, err)
		}
	}
	bar, err := parseOHLCV(openTime, fields[0], fields[1], fields[2], fields[3], fields[4])
	return bar, time.UnixMilli(closeTime), err
}
