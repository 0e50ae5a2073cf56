package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/grafana/pyroscope-go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"fusionbot-go/internal/config"
	"fusionbot-go/internal/exchange"
	"fusionbot-go/internal/execution"
	"fusionbot-go/internal/metrics"
	"fusionbot-go/internal/orchestrator"
	"fusionbot-go/internal/paper"
	"fusionbot-go/internal/risk"
	sig "fusionbot-go/internal/signal"
	"fusionbot-go/internal/strategy"
	"fusionbot-go/internal/stream"
	"fusionbot-go/internal/util"
)

const (
	defaultConfigPath = "internal/config/config.yaml"
	statusEvery       = time.Minute
)

func main() {
	path := flag.String("config", defaultConfigPath, "YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	config.LoadEnv(cfg)
	log := util.NewLogger(cfg.App.LogLevel, cfg.App.PrettyLogs)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("paper bot failed")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	started := time.Now()

	metricsSrv := metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	if cfg.App.PyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: cfg.App.Name,
			ServerAddress:   cfg.App.PyroscopeAddr,
			Tags:            map[string]string{"env": cfg.App.Env},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Warn().Err(err).Msg("profiler disabled")
		} else {
			defer func() { _ = profiler.Stop() }()
		}
	}

	fetcher := exchange.NewRESTFetcher(exchange.RESTConfig{
		BaseURL:        cfg.Exchange.RESTBase,
		APIKey:         cfg.Exchange.APIKey,
		Timeout:        cfg.Exchange.HTTPTimeout(),
		RequestsPerSec: cfg.Exchange.RequestsPerSec,
		Burst:          cfg.Exchange.RequestBurst,
	}, util.Component(log, "rest"))
	backoff := exchange.DefaultBackoff()
	backoff.Min = time.Duration(cfg.Stream.BackoffMinMs) * time.Millisecond
	backoff.Max = time.Duration(cfg.Stream.BackoffMaxMs) * time.Millisecond
	klines := exchange.NewKlineStream(util.Component(log, "ws"),
		exchange.WithBaseURL(cfg.Exchange.WSBase),
		exchange.WithBackoff(backoff),
		exchange.WithHooks(
			func(inst, tf string) { metrics.Reconnects.WithLabelValues(inst, tf).Inc() },
			func(inst, tf string) { metrics.DecodeErrors.WithLabelValues(inst, tf).Inc() },
		),
	)

	streams := stream.NewManager(klines, fetcher, util.Component(log, "streams"))
	defer streams.StopAll()
	capacities := []struct {
		tf  string
		cap int
	}{
		{cfg.Timeframes.Primary, cfg.Stream.PrimaryCapacity},
		{cfg.Timeframes.Secondary, cfg.Stream.SecondaryCapacity},
		{cfg.Timeframes.Confirmation, cfg.Stream.ConfirmationCapacity},
	}
	for _, inst := range cfg.Instruments {
		for _, c := range capacities {
			if _, err := streams.Start(ctx, inst, c.tf, c.cap, cfg.Stream.Backfill); err != nil {
				return fmt.Errorf("start %s %s: %w", inst, c.tf, err)
			}
		}
	}
	src := stream.NewSource(streams)

	engine := sig.NewEngine(cfg)
	chain, err := strategy.Build(cfg.Strategies, engine, util.Component(log, "strategy"))
	if err != nil {
		return err
	}
	gate := risk.NewManager(risk.LimitsFromConfig(cfg), risk.WithLogger(util.Component(log, "risk")))

	account := paper.NewAccount(cfg.Risk.InitialBalance, cfg.Trading.Leverage, cfg.Paper.FeeRate, cfg.Paper.SlippageRate)
	ledger := paper.NewLedger(64)
	recorders := []paper.TradeRecorder{ledger}
	var journal *paper.JSONLRecorder
	if cfg.App.TradesPath != "" {
		journal, err = paper.NewJSONLRecorder(cfg.App.TradesPath)
		if err != nil {
			return fmt.Errorf("open trade journal: %w", err)
		}
		defer journal.Close()
		recorders = append(recorders, journal)
	}
	prices := paper.PriceFunc(func(inst string) (float64, bool) { return src.Price(inst, cfg.Timeframes.Primary) })
	exec := execution.NewBounded(
		paper.NewExecutor(account, prices, util.Component(log, "paper"), recorders...),
		cfg.Trading.OrderTimeout(),
		util.Component(log, "execution"),
	)

	orch := orchestrator.New(
		orchestrator.SettingsFromConfig(cfg, engine.MinHistory()),
		src, chain, gate, exec,
		util.Component(log, "orchestrator"),
	)
	log.Info().Strs("instruments", cfg.Instruments).Strs("strategies", chain.Names()).
		Int("min_history", engine.MinHistory()).Msg("paper bot started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return orch.Run(gctx)
	})
	g.Go(func() error {
		t := time.NewTicker(statusEvery)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				logStatus(log, gate, orch)
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdown, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return metricsSrv.Shutdown(shutdown)
	})
	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	log.Info().Msg("shutting down")
	marks := make(map[string]float64, len(cfg.Instruments))
	for _, inst := range cfg.Instruments {
		if px, ok := src.Price(inst, cfg.Timeframes.Primary); ok {
			marks[inst] = px
		}
	}
	streams.StopAll()
	res := paper.Summarize(account, ledger, started, marks)
	if err := paper.SaveResults(cfg.App.ResultsPath, res); err != nil {
		log.Error().Err(err).Msg("save results")
	}
	logStatus(log, gate, orch)
	log.Info().Float64("balance", res.Balance).Float64("realized_pnl", res.RealizedPnL).
		Int("trades", res.Trades).Float64("win_rate", res.WinRate).Str("path", cfg.App.ResultsPath).
		Msg("results saved")
	return runErr
}

func logStatus(log zerolog.Logger, gate *risk.Manager, orch *orchestrator.Orchestrator) {
	s := gate.Stats()
	log.Info().Float64("balance", s.Balance).Float64("daily_pnl", s.DailyPnL).Float64("total_pnl", s.TotalPnL).
		Int("open", s.Open).Int("trades", s.Trades).Float64("win_rate", s.WinRate).
		Strs("holding", orch.Status().Holding()).Msg("status")
}
