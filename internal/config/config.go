// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as metrics, logging and result paths.
type App struct {
	Name          string `yaml:"name"`
	Env           string `yaml:"env"`
	MetricsAddr   string `yaml:"metrics_addr"`
	LogLevel      string `yaml:"log_level"`
	PrettyLogs    bool   `yaml:"pretty_logs"`
	PyroscopeAddr string `yaml:"pyroscope_addr"`
	ResultsPath   string `yaml:"results_path"`
	TradesPath    string `yaml:"trades_path"`
}

// Exchange describes the market-data endpoints and credentials.
type Exchange struct {
	Name           string  `yaml:"name"`
	WSBase         string  `yaml:"ws_base"`
	RESTBase       string  `yaml:"rest_base"`
	APIKey         string  `yaml:"api_key"`
	APISecret      string  `yaml:"api_secret"`
	RequestsPerSec float64 `yaml:"requests_per_sec"`
	RequestBurst   int     `yaml:"request_burst"`
	HTTPTimeoutMs  int     `yaml:"http_timeout_ms"`
}

// Timeframes names the primary, secondary and confirmation bar intervals.
type Timeframes struct {
	Primary      string `yaml:"primary"`
	Secondary    string `yaml:"secondary"`
	Confirmation string `yaml:"confirmation"`
}

// Stream sizes the per-timeframe buffers and startup waits.
type Stream struct {
	PrimaryCapacity      int  `yaml:"primary_capacity"`
	SecondaryCapacity    int  `yaml:"secondary_capacity"`
	ConfirmationCapacity int  `yaml:"confirmation_capacity"`
	Backfill             bool `yaml:"backfill"`
	AwaitTimeoutMs       int  `yaml:"await_timeout_ms"`
	BackoffMinMs         int  `yaml:"backoff_min_ms"`
	BackoffMaxMs         int  `yaml:"backoff_max_ms"`
}

// RSI tunes the relative strength index.
type RSI struct {
	Period     int     `yaml:"period"`
	Oversold   float64 `yaml:"oversold"`
	Overbought float64 `yaml:"overbought"`
	Weight     float64 `yaml:"weight"`
}

// MACD tunes the moving average convergence divergence indicator.
type MACD struct {
	Fast   int     `yaml:"fast"`
	Slow   int     `yaml:"slow"`
	Signal int     `yaml:"signal"`
	Weight float64 `yaml:"weight"`
}

// Bollinger tunes the bands.
type Bollinger struct {
	Period int     `yaml:"period"`
	StdDev float64 `yaml:"std_dev"`
	Weight float64 `yaml:"weight"`
}

// EMA tunes the short/long/filter triplet.
type EMA struct {
	Short  int     `yaml:"short"`
	Long   int     `yaml:"long"`
	Filter int     `yaml:"filter"`
	Weight float64 `yaml:"weight"`
}

// Indicators groups every indicator setting.
type Indicators struct {
	RSI       RSI       `yaml:"rsi"`
	MACD      MACD      `yaml:"macd"`
	Bollinger Bollinger `yaml:"bollinger"`
	EMA       EMA       `yaml:"ema"`
}

// Signal holds fusion thresholds.
type Signal struct {
	BuyThreshold         float64 `yaml:"buy_threshold"`
	SellThreshold        float64 `yaml:"sell_threshold"`
	ConfidenceMultiplier float64 `yaml:"confidence_multiplier"`
	HighConfidence       float64 `yaml:"high_confidence"`
	MediumConfidence     float64 `yaml:"medium_confidence"`
	ConsensusRequired    int     `yaml:"consensus_required"`
	MinDataBuffer        int     `yaml:"min_data_buffer"`
	FallbackEMAFilter    int     `yaml:"fallback_ema_filter"`
	MinPriceDeviation    float64 `yaml:"min_price_deviation"`
}

// Momentum tunes the price/volume momentum heuristics.
type Momentum struct {
	PriceChangePct      float64 `yaml:"price_change_pct"`
	PriceChangePeriod   int     `yaml:"price_change_period"`
	VolumeMultiplier    float64 `yaml:"volume_multiplier"`
	VolumeAvgPeriod     int     `yaml:"volume_avg_period"`
	PriceConfirmFactor  float64 `yaml:"price_confirm_factor"`
	VolumeConfirmFactor float64 `yaml:"volume_confirm_factor"`
	ExhaustionPeriod    int     `yaml:"exhaustion_period"`
	VolumeDeclineRatio  float64 `yaml:"volume_decline_ratio"`
	TrendMoveThreshold  float64 `yaml:"trend_move_threshold"`
	TrendMoves          int     `yaml:"trend_moves"`
	PriceOnlyFactor     float64 `yaml:"price_only_factor"`
}

// Exit tunes position exit checks.
type Exit struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	RSICriticalStrength float64 `yaml:"rsi_critical_strength"`
	// TurnBars is how many consecutive highs (LONG) or lows (SHORT) must
	// turn against the position for the exhaustion exit.
	TurnBars int `yaml:"turn_bars"`
	// RSIZoneExit closes on any RSI vote against the position, not only a
	// critical one.
	RSIZoneExit bool `yaml:"rsi_zone_exit"`
}

// Trend tunes the confirmation-timeframe classifier and the approval policy.
type Trend struct {
	SlopeLookback   int     `yaml:"slope_lookback"`
	PriceBand       float64 `yaml:"price_band"`
	SlopeBand       float64 `yaml:"slope_band"`
	PartialWeight   float64 `yaml:"partial_weight"`
	PartialCap      float64 `yaml:"partial_cap"`
	LevelWindow     int     `yaml:"level_window"`
	StrongTrend     float64 `yaml:"strong_trend"`
	SecondaryBoost  float64 `yaml:"secondary_boost"`
	PlacementFactor float64 `yaml:"placement_factor"`
}

// Patterns tunes reversal and divergence heuristics.
type Patterns struct {
	MinVolatility         float64 `yaml:"min_volatility"`
	VolatilityPeriod      int     `yaml:"volatility_period"`
	TrendLookback         int     `yaml:"trend_lookback"`
	TrendChange           float64 `yaml:"trend_change"`
	DivergenceLookback    int     `yaml:"divergence_lookback"`
	DivergencePriceChange float64 `yaml:"divergence_price_change"`
	DivergenceRSIChange   float64 `yaml:"divergence_rsi_change"`
	ExtremumWing          int     `yaml:"extremum_wing"`
	HammerShadow          float64 `yaml:"hammer_shadow"`
	HammerOpposite        float64 `yaml:"hammer_opposite"`
	DojiBody              float64 `yaml:"doji_body"`
}

// Risk encodes guard-rails for how much exposure the bot may take on.
type Risk struct {
	InitialBalance float64 `yaml:"initial_balance"`
	MaxConcurrent  int     `yaml:"max_concurrent"`
	MaxDailyLoss   float64 `yaml:"max_daily_loss"`
	MaxPositionPct float64 `yaml:"max_position_pct"`
}

// Trading sizes each entry.
type Trading struct {
	TradeValueUSD  float64 `yaml:"trade_value_usd"`
	Leverage       float64 `yaml:"leverage"`
	StopLossPct    float64 `yaml:"stop_loss_pct"`
	TakeProfitPct  float64 `yaml:"take_profit_pct"`
	OrderTimeoutMs int     `yaml:"order_timeout_ms"`
}

// Paper captures simulated execution costs.
type Paper struct {
	FeeRate      float64 `yaml:"fee_rate"`
	SlippageRate float64 `yaml:"slippage_rate"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App         App        `yaml:"app"`
	Exchange    Exchange   `yaml:"exchange"`
	Timeframes  Timeframes `yaml:"timeframes"`
	Stream      Stream     `yaml:"stream"`
	Indicators  Indicators `yaml:"indicators"`
	Signal      Signal     `yaml:"signal"`
	Momentum    Momentum   `yaml:"momentum"`
	Exit        Exit       `yaml:"exit"`
	Trend       Trend      `yaml:"trend"`
	Patterns    Patterns   `yaml:"patterns"`
	Risk        Risk       `yaml:"risk"`
	Trading     Trading    `yaml:"trading"`
	Paper       Paper      `yaml:"paper"`
	Instruments []string   `yaml:"instruments"`
	Strategies  []string   `yaml:"strategies"`
}

// Default returns the baseline configuration; YAML files override it key by key.
func Default() *Config {
	return &Config{
		App: App{
			Name:        "fusionbot",
			Env:         "dev",
			MetricsAddr: ":9102",
			LogLevel:    "info",
			ResultsPath: "data/results.json",
			TradesPath:  "data/trades.jsonl",
		},
		Exchange: Exchange{
			Name:           "binance-futures",
			WSBase:         "wss://fstream.binance.com/ws",
			RESTBase:       "https://fapi.binance.com",
			RequestsPerSec: 10,
			RequestBurst:   5,
			HTTPTimeoutMs:  10000,
		},
		Timeframes: Timeframes{Primary: "1m", Secondary: "5m", Confirmation: "15m"},
		Stream: Stream{
			PrimaryCapacity:      200,
			SecondaryCapacity:    200,
			ConfirmationCapacity: 300,
			Backfill:             true,
			AwaitTimeoutMs:       30000,
			BackoffMinMs:         1000,
			BackoffMaxMs:         30000,
		},
		Indicators: Indicators{
			RSI:       RSI{Period: 7, Oversold: 20, Overbought: 80, Weight: 0.25},
			MACD:      MACD{Fast: 5, Slow: 13, Signal: 6, Weight: 0.25},
			Bollinger: Bollinger{Period: 14, StdDev: 2, Weight: 0.25},
			EMA:       EMA{Short: 7, Long: 14, Filter: 100, Weight: 0.25},
		},
		Signal: Signal{
			BuyThreshold:         0.15,
			SellThreshold:        -0.15,
			ConfidenceMultiplier: 2.0,
			HighConfidence:       0.8,
			MediumConfidence:     0.5,
			ConsensusRequired:    3,
			MinDataBuffer:        3,
			FallbackEMAFilter:    30,
			MinPriceDeviation:    0.001,
		},
		Momentum: Momentum{
			PriceChangePct:      0.5,
			PriceChangePeriod:   3,
			VolumeMultiplier:    2.0,
			VolumeAvgPeriod:     20,
			PriceConfirmFactor:  0.3,
			VolumeConfirmFactor: 0.5,
			ExhaustionPeriod:    5,
			VolumeDeclineRatio:  0.5,
			TrendMoveThreshold:  0.001,
			TrendMoves:          3,
			PriceOnlyFactor:     1.5,
		},
		Exit: Exit{
			ConfidenceThreshold: 0.4,
			RSICriticalStrength: 0.6,
			TurnBars:            3,
		},
		Trend: Trend{
			SlopeLookback:   10,
			PriceBand:       0.002,
			SlopeBand:       0.001,
			PartialWeight:   0.5,
			PartialCap:      0.7,
			LevelWindow:     20,
			StrongTrend:     0.3,
			SecondaryBoost:  1.2,
			PlacementFactor: 0.8,
		},
		Patterns: Patterns{
			MinVolatility:         0.02,
			VolatilityPeriod:      20,
			TrendLookback:         10,
			TrendChange:           0.02,
			DivergenceLookback:    10,
			DivergencePriceChange: 0.01,
			DivergenceRSIChange:   5,
			ExtremumWing:          2,
			HammerShadow:          2,
			HammerOpposite:        0.5,
			DojiBody:              0.1,
		},
		Risk: Risk{
			InitialBalance: 100,
			MaxConcurrent:  10,
			MaxDailyLoss:   20,
			MaxPositionPct: 10,
		},
		Trading: Trading{
			TradeValueUSD:  5,
			Leverage:       50,
			StopLossPct:    1,
			TakeProfitPct:  5,
			OrderTimeoutMs: 10000,
		},
		Paper:      Paper{FeeRate: 0.0005, SlippageRate: 0.0002},
		Strategies: []string{"trend_filtered", "confirmed_composite", "momentum", "reversal"},
	}
}

// Load reads a YAML file from disk on top of Default.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Default()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// AwaitTimeout is the startup wait for minimum history.
func (s Stream) AwaitTimeout() time.Duration { return ms(s.AwaitTimeoutMs) }

// OrderTimeout bounds each call to the execution collaborator.
func (t Trading) OrderTimeout() time.Duration { return ms(t.OrderTimeoutMs) }

// HTTPTimeout bounds REST calls.
func (e Exchange) HTTPTimeout() time.Duration { return ms(e.HTTPTimeoutMs) }

// MinHistory is the bar count required before the indicator fusion is
// trusted: the longest configured period plus the safety buffer.
func (c *Config) MinHistory() int {
	ind := c.Indicators
	n := max(ind.RSI.Period, ind.MACD.Slow, ind.Bollinger.Period, ind.EMA.Filter, c.Signal.FallbackEMAFilter)
	return n + c.Signal.MinDataBuffer
}

// ConfirmationHistory is the bar count the trend classifier needs.
func (c *Config) ConfirmationHistory() int {
	return c.Indicators.EMA.Filter + c.Trend.SlopeLookback
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
