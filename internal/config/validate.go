package config

import (
	"errors"
	"fmt"
	"strings"

	"fusionbot-go/internal/market"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// KnownStrategies lists the strategy names the chain factory accepts.
var KnownStrategies = []string{"trend_filtered", "confirmed_composite", "momentum", "reversal"}

// Validate rejects configurations that cannot run. It is called once at
// startup, before any worker is spawned.
func (c *Config) Validate() error {
	var problems []string
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(c.Instruments) == 0 {
		fail("instrument list is empty")
	}
	for i, sym := range c.Instruments {
		if strings.TrimSpace(sym) == "" {
			fail("instrument %d is blank", i)
		}
	}
	for _, tf := range []string{c.Timeframes.Primary, c.Timeframes.Secondary, c.Timeframes.Confirmation} {
		if _, err := market.ParseTimeframe(tf); err != nil {
			fail("%v", err)
		}
	}

	if c.Trading.TradeValueUSD <= 0 {
		fail("trade_value_usd must be positive")
	}
	if c.Trading.StopLossPct <= 0 || c.Trading.StopLossPct >= 100 {
		fail("stop_loss_pct must be within (0, 100)")
	}
	if c.Trading.TakeProfitPct < 0 {
		fail("take_profit_pct must not be negative")
	}
	if c.Trading.Leverage <= 0 {
		fail("leverage must be positive")
	}
	if c.Trading.OrderTimeoutMs <= 0 {
		fail("order_timeout_ms must be positive")
	}

	ind := c.Indicators
	for name, p := range map[string]int{
		"rsi.period":       ind.RSI.Period,
		"macd.fast":        ind.MACD.Fast,
		"macd.slow":        ind.MACD.Slow,
		"macd.signal":      ind.MACD.Signal,
		"bollinger.period": ind.Bollinger.Period,
		"ema.short":        ind.EMA.Short,
		"ema.long":         ind.EMA.Long,
		"ema.filter":       ind.EMA.Filter,
	} {
		if p <= 0 {
			fail("%s must be positive", name)
		}
	}
	if ind.MACD.Fast >= ind.MACD.Slow {
		fail("macd.fast must be below macd.slow")
	}
	if ind.EMA.Short >= ind.EMA.Long {
		fail("ema.short must be below ema.long")
	}
	if ind.RSI.Oversold <= 0 || ind.RSI.Overbought >= 100 || ind.RSI.Oversold >= ind.RSI.Overbought {
		fail("rsi zones must satisfy 0 < oversold < overbought < 100")
	}

	if c.Signal.BuyThreshold <= c.Signal.SellThreshold {
		fail("buy_threshold must exceed sell_threshold")
	}
	if c.Signal.ConfidenceMultiplier <= 0 {
		fail("confidence_multiplier must be positive")
	}
	if c.Exit.TurnBars < 2 {
		fail("exit.turn_bars must be at least 2")
	}
	if c.Trend.SlopeLookback <= 0 || c.Trend.LevelWindow <= 0 {
		fail("trend.slope_lookback and trend.level_window must be positive")
	}
	if c.Trend.PriceBand < 0 || c.Trend.SlopeBand < 0 {
		fail("trend bands must not be negative")
	}
	if c.Patterns.ExtremumWing <= 0 {
		fail("patterns.extremum_wing must be positive")
	}

	if c.Risk.MaxConcurrent <= 0 {
		fail("max_concurrent must be positive")
	}
	if c.Risk.InitialBalance <= 0 {
		fail("initial_balance must be positive")
	}
	if c.Risk.MaxDailyLoss <= 0 {
		fail("max_daily_loss must be positive")
	}
	if c.Risk.MaxPositionPct <= 0 || c.Risk.MaxPositionPct > 100 {
		fail("max_position_pct must be within (0, 100]")
	}

	if need := c.MinHistory(); c.Stream.PrimaryCapacity < need || c.Stream.SecondaryCapacity < need {
		fail("stream capacities must hold at least %d bars", need)
	}
	if need := c.ConfirmationHistory(); c.Stream.ConfirmationCapacity < need {
		fail("confirmation_capacity must hold at least %d bars", need)
	}

	if len(c.Strategies) == 0 {
		fail("strategy list is empty")
	}
	for _, name := range c.Strategies {
		if !known(name) {
			fail("unknown strategy %q", name)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func known(name string) bool {
	for _, k := range KnownStrategies {
		if k == name {
			return true
		}
	}
	return false
}
