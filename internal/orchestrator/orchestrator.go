package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"fusionbot-go/internal/config"
	"fusionbot-go/internal/execution"
	"fusionbot-go/internal/market"
	"fusionbot-go/internal/risk"
	"fusionbot-go/internal/signal"
	"fusionbot-go/internal/strategy"
)

// BarSource is the stream view a worker needs, satisfied by stream.Source.
type BarSource interface {
	AwaitMinBars(ctx context.Context, instrument, timeframe string, n int, timeout time.Duration) bool
	AwaitNextBar(ctx context.Context, instrument, timeframe string, after time.Time) (market.Bar, error)
	Bars(ctx context.Context, instrument, timeframe string, n int) ([]market.Bar, error)
	Price(instrument, timeframe string) (float64, bool)
}

// Evaluator produces entry, reversal and exit verdicts, satisfied by
// strategy.Chain.
type Evaluator interface {
	Evaluate(s strategy.Snapshot) strategy.Decision
	Reversal(s strategy.Snapshot) (signal.Filtered, bool)
	ShouldExit(primary []market.Bar, side market.Side) (bool, string)
}

// RiskGate guards capital, satisfied by risk.Manager.
type RiskGate interface {
	CanOpen(instrument string, value float64) (bool, string)
	Open(instrument string, side market.Side, entry, value float64) (risk.Position, error)
	Close(instrument string, exit float64) (risk.TradeResult, error)
	Release(instrument string) bool
	CheckStops(instrument string, price float64) (bool, string)
	Position(instrument string) (risk.Position, bool)
}

// Settings sizes the workers.
type Settings struct {
	Instruments        []string
	Primary            string
	Secondary          string
	Confirmation       string
	PrimaryBars        int
	SecondaryBars      int
	ConfirmationBars   int
	TradeValue         float64
	StopLossPct        float64
	ReversalConfidence float64
	StartupTimeout     time.Duration
}

// SettingsFromConfig derives worker settings. minHistory is the engine's
// minimum bar count.
func SettingsFromConfig(cfg *config.Config, minHistory int) Settings {
	return Settings{
		Instruments:        cfg.Instruments,
		Primary:            cfg.Timeframes.Primary,
		Secondary:          cfg.Timeframes.Secondary,
		Confirmation:       cfg.Timeframes.Confirmation,
		PrimaryBars:        minHistory,
		SecondaryBars:      minHistory,
		ConfirmationBars:   cfg.ConfirmationHistory(),
		TradeValue:         cfg.Trading.TradeValueUSD,
		StopLossPct:        cfg.Trading.StopLossPct,
		ReversalConfidence: cfg.Signal.HighConfidence,
		StartupTimeout:     cfg.Stream.AwaitTimeout(),
	}
}

// Orchestrator owns the per-instrument workers.
type Orchestrator struct {
	set    Settings
	bars   BarSource
	eval   Evaluator
	risk   RiskGate
	exec   execution.Executor
	status *Status
	log    zerolog.Logger
}

// New wires an orchestrator.
func New(set Settings, bars BarSource, eval Evaluator, gate RiskGate, exec execution.Executor, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		set:    set,
		bars:   bars,
		eval:   eval,
		risk:   gate,
		exec:   exec,
		status: NewStatus(),
		log:    log,
	}
}

// Status exposes the instrument state map.
func (o *Orchestrator) Status() *Status { return o.status }

// Run starts one worker per instrument and blocks until ctx ends. A failing
// instrument never stops the others.
func (o *Orchestrator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, inst := range o.set.Instruments {
		inst := inst
		g.Go(func() error {
			o.worker(ctx, inst)
			return nil
		})
	}
	return g.Wait()
}

func (o *Orchestrator) worker(ctx context.Context, instrument string) {
	log := o.log.With().Str("instrument", instrument).Logger()
	o.status.Reset(instrument)

	if !o.bars.AwaitMinBars(ctx, instrument, o.set.Primary, o.set.PrimaryBars, o.set.StartupTimeout) {
		if ctx.Err() != nil {
			return
		}
		log.Warn().Int("want", o.set.PrimaryBars).Msg("primary stream short at startup, using history")
	}
	var last time.Time
	if bars, err := o.bars.Bars(ctx, instrument, o.set.Primary, o.set.PrimaryBars); err == nil && len(bars) > 0 {
		last = bars[len(bars)-1].OpenTime
	}
	log.Info().Time("from", last).Msg("worker started")

	for {
		bar, err := o.bars.AwaitNextBar(ctx, instrument, o.set.Primary, last)
		if err != nil {
			if ctx.Err() == nil {
				log.Error().Err(err).Msg("bar stream ended")
			}
			log.Info().Msg("worker stopped")
			return
		}
		last = bar.OpenTime
		if err := o.safeStep(ctx, instrument); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Time("bar", bar.OpenTime).Msg("iteration failed, back to monitoring")
			o.flatten(instrument, log)
		}
	}
}

func (o *Orchestrator) safeStep(ctx context.Context, instrument string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return o.step(ctx, instrument)
}

// flatten closes any held position and puts the instrument back in MONITORING.
func (o *Orchestrator) flatten(instrument string, log zerolog.Logger) {
	prev := o.status.Reset(instrument)
	if _, held := prev.Side(); held {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if _, err := o.exec.Close(ctx, instrument); err != nil {
			log.Warn().Err(err).Msg("flatten failed")
		}
		cancel()
	}
	if o.risk.Release(instrument) {
		log.Warn().Str("from", prev.String()).Msg("risk position released")
	}
}

// Step runs one evaluation for instrument against the current buffers.
func (o *Orchestrator) Step(ctx context.Context, instrument string) error {
	return o.safeStep(ctx, instrument)
}

func (o *Orchestrator) step(ctx context.Context, instrument string) error {
	snap, err := o.snapshot(ctx, instrument)
	if err != nil {
		return err
	}
	st := o.status.Get(instrument)
	side, held := st.Side()
	if !held {
		return o.enter(ctx, snap)
	}
	return o.manage(ctx, snap, st, side)
}

func (o *Orchestrator) snapshot(ctx context.Context, instrument string) (strategy.Snapshot, error) {
	s := strategy.Snapshot{Instrument: instrument}
	var err error
	if s.Primary, err = o.bars.Bars(ctx, instrument, o.set.Primary, o.set.PrimaryBars); err != nil {
		return s, fmt.Errorf("primary bars: %w", err)
	}
	if s.Secondary, err = o.bars.Bars(ctx, instrument, o.set.Secondary, o.set.SecondaryBars); err != nil {
		return s, fmt.Errorf("secondary bars: %w", err)
	}
	if s.Confirmation, err = o.bars.Bars(ctx, instrument, o.set.Confirmation, o.set.ConfirmationBars); err != nil {
		return s, fmt.Errorf("confirmation bars: %w", err)
	}
	return s, nil
}

func (o *Orchestrator) enter(ctx context.Context, snap strategy.Snapshot) error {
	d := o.eval.Evaluate(snap)
	if !d.Directional() {
		return nil
	}
	side, _ := d.Action.Side()
	if ok, reason := o.risk.CanOpen(snap.Instrument, o.set.TradeValue); !ok {
		o.log.Debug().Str("instrument", snap.Instrument).Str("action", string(d.Action)).
			Float64("confidence", d.Confidence).Str("strategy", d.Strategy).Str("reason", reason).
			Msg("entry skipped")
		return nil
	}
	return o.open(ctx, snap.Instrument, side, d.Strategy+": "+d.Reason)
}

func (o *Orchestrator) open(ctx context.Context, instrument string, side market.Side, reason string) error {
	price, ok := o.bars.Price(instrument, o.set.Primary)
	if !ok {
		return fmt.Errorf("no price for %s", instrument)
	}
	openFn := o.exec.OpenLong
	if side == market.Short {
		openFn = o.exec.OpenShort
	}
	filled, err := openFn(ctx, instrument, o.set.TradeValue, o.set.StopLossPct)
	if err != nil {
		return fmt.Errorf("open %s: %w", side, err)
	}
	if !filled {
		return nil
	}
	if _, err := o.risk.Open(instrument, side, price, o.set.TradeValue); err != nil {
		if _, cerr := o.exec.Close(ctx, instrument); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return fmt.Errorf("record %s: %w", side, err)
	}
	if !o.status.Transition(instrument, Monitoring, holding(side)) {
		return fmt.Errorf("%s left MONITORING during entry", instrument)
	}
	o.log.Info().Str("instrument", instrument).Str("state", holding(side).String()).
		Float64("price", price).Str("reason", reason).Msg("position opened")
	return nil
}

func (o *Orchestrator) manage(ctx context.Context, snap strategy.Snapshot, st State, side market.Side) error {
	instrument := snap.Instrument
	if _, ok := o.risk.Position(instrument); !ok {
		return fmt.Errorf("%s is %s with no recorded position", instrument, st)
	}
	price, ok := o.bars.Price(instrument, o.set.Primary)
	if !ok {
		return fmt.Errorf("no price for %s", instrument)
	}

	if hit, reason := o.risk.CheckStops(instrument, price); hit {
		_, err := o.close(ctx, instrument, st, price, reason)
		return err
	}

	f, trend := o.eval.Reversal(snap)
	if trend && f.Approved && f.Action.Opposes(side) && f.Confidence >= o.set.ReversalConfidence {
		closed, err := o.close(ctx, instrument, st, price, "reversal: "+f.Reason)
		if err != nil || !closed {
			return err
		}
		if ok, reason := o.risk.CanOpen(instrument, o.set.TradeValue); !ok {
			o.log.Debug().Str("instrument", instrument).Str("action", string(f.Action)).
				Float64("confidence", f.Confidence).Str("reason", reason).Msg("reversal entry skipped")
			return nil
		}
		return o.open(ctx, instrument, side.Opposite(), "reversal: "+f.Reason)
	}

	if exit, reason := o.eval.ShouldExit(snap.Primary, side); exit {
		_, err := o.close(ctx, instrument, st, price, reason)
		return err
	}

	ev := o.log.Debug().Str("instrument", instrument).Str("state", st.String()).Float64("price", price)
	if trend {
		ev = ev.Str("action", string(f.Action)).Float64("confidence", f.Confidence).Str("reason", f.Reason)
	} else {
		ev = ev.Str("reason", "no exit condition")
	}
	ev.Msg("position held")
	return nil
}

// close exits the position. A refused close keeps the position for the next
// bar.
func (o *Orchestrator) close(ctx context.Context, instrument string, st State, price float64, reason string) (bool, error) {
	closed, err := o.exec.Close(ctx, instrument)
	if err != nil {
		return false, fmt.Errorf("close: %w", err)
	}
	if !closed {
		return false, nil
	}
	res, err := o.risk.Close(instrument, price)
	if err != nil {
		return false, fmt.Errorf("settle: %w", err)
	}
	if !o.status.Transition(instrument, st, Monitoring) {
		return false, fmt.Errorf("%s left %s during exit", instrument, st)
	}
	o.log.Info().Str("instrument", instrument).Str("from", st.String()).
		Float64("exit", price).Float64("pnl", res.PnL).Str("reason", reason).Msg("position closed")
	return true, nil
}
