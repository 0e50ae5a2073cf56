package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"

	"fusionbot-go/internal/config"
	"fusionbot-go/internal/paper"
	"fusionbot-go/internal/signal"
	"fusionbot-go/internal/strategy"
)

type field struct {
	label string
	get   func() string
	set   func(string) error
}

func floatField(label string, v *float64) field {
	return field{label,
		func() string { return strconv.FormatFloat(*v, 'f', -1, 64) },
		func(s string) error {
			n, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("%q is not a number", s)
			}
			*v = n
			return nil
		}}
}

// rateField edits a fraction as a percentage.
func rateField(label string, v *float64) field {
	pct := *v * 100
	f := floatField(label, &pct)
	set := f.set
	f.set = func(s string) error {
		if err := set(s); err != nil {
			return err
		}
		*v = pct / 100
		return nil
	}
	return f
}

func intField(label string, v *int) field {
	return field{label,
		func() string { return strconv.Itoa(*v) },
		func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil {
				return fmt.Errorf("%q is not a whole number", s)
			}
			*v = n
			return nil
		}}
}

func boolField(label string, v *bool) field {
	return field{label,
		func() string { return strconv.FormatBool(*v) },
		func(s string) error {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return fmt.Errorf("%q is not true or false", s)
			}
			*v = b
			return nil
		}}
}

func stringField(label string, v *string) field {
	return field{label,
		func() string { return *v },
		func(s string) error { *v = s; return nil }}
}

func splitList(s string, norm func(string) string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = norm(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func listField(label string, v *[]string, norm func(string) string) field {
	return field{label,
		func() string { return strings.Join(*v, ",") },
		func(s string) error {
			list := splitList(s, norm)
			if len(list) == 0 {
				return errors.New("list is empty")
			}
			*v = list
			return nil
		}}
}

// chainField only accepts strategy names the runtime can build.
func chainField(cfg *config.Config) field {
	return field{"strategy chain",
		func() string { return strings.Join(cfg.Strategies, ",") },
		func(s string) error {
			names := splitList(s, strings.ToLower)
			if _, err := strategy.Build(names, signal.NewEngine(cfg), zerolog.Nop()); err != nil {
				return err
			}
			cfg.Strategies = names
			return nil
		}}
}

func renderOverview(w io.Writer, cfg *config.Config) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	section := func(name string) { fmt.Fprintf(tw, "\n%s\t\n", strings.ToUpper(name)) }
	row := func(k, format string, a ...any) { fmt.Fprintf(tw, "  %s\t"+format+"\n", append([]any{k}, a...)...) }

	section("market")
	row("exchange", "%s", cfg.Exchange.Name)
	row("instruments", "%s", strings.Join(cfg.Instruments, " "))
	row("timeframes", "%s / %s / %s", cfg.Timeframes.Primary, cfg.Timeframes.Secondary, cfg.Timeframes.Confirmation)
	row("bars needed", "%d signal, %d confirmation", cfg.MinHistory(), cfg.ConfirmationHistory())

	section("pipeline")
	row("strategies", "%s", strings.Join(cfg.Strategies, " > "))
	row("consensus", "%d indicators", cfg.Signal.ConsensusRequired)
	row("reversal at", "%.2f confidence", cfg.Signal.HighConfidence)
	exit := fmt.Sprintf("opposing %.2f, RSI %.2f, %d-bar turn", cfg.Exit.ConfidenceThreshold, cfg.Exit.RSICriticalStrength, cfg.Exit.TurnBars)
	if cfg.Exit.RSIZoneExit {
		exit += ", any RSI zone"
	}
	row("exit on", "%s", exit)

	section("risk gate")
	row("balance", "$%.2f", cfg.Risk.InitialBalance)
	row("positions", "%d at most", cfg.Risk.MaxConcurrent)
	row("daily loss", "$%.2f", cfg.Risk.MaxDailyLoss)
	row("position size", "%.1f%% of balance", cfg.Risk.MaxPositionPct)

	section("sizing")
	row("per trade", "$%.2f x%.0f", cfg.Trading.TradeValueUSD, cfg.Trading.Leverage)
	row("stops", "-%.2f%% / +%.2f%%", cfg.Trading.StopLossPct, cfg.Trading.TakeProfitPct)
	row("paper costs", "%.3f%% fee, %.3f%% slippage", cfg.Paper.FeeRate*100, cfg.Paper.SlippageRate*100)
	tw.Flush()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(w, "\nnot runnable: %v\n", err)
	}
}

func loadResults(path string) (paper.Results, error) {
	var r paper.Results
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, fmt.Errorf("no paper session recorded at %s", path)
	}
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("decode %s: %w", path, err)
	}
	return r, nil
}

// renderResults prints the session totals and up to last closed trades,
// newest first.
func renderResults(w io.Writer, r paper.Results, last int) {
	fmt.Fprintf(w, "\nsession %s to %s\n", r.StartedAt.Format("2006-01-02 15:04"), r.FinishedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "equity $%.2f from $%.2f, realized %+.2f after $%.2f fees\n", r.Equity, r.StartingBalance, r.RealizedPnL, r.Fees)
	fmt.Fprintf(w, "%d trades, %d won, %.0f%% win rate, %d still open\n", r.Trades, r.Wins, r.WinRate*100, r.OpenPositions)
	if len(r.History) == 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "closed\tinstrument\tside\tentry\texit\tpnl\t")
	for i := len(r.History) - 1; i >= 0 && len(r.History)-i <= last; i-- {
		t := r.History[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f\t%.4f\t%+.2f (%+.2f%%)\t\n",
			t.ClosedAt.Format("01-02 15:04"), t.Instrument, t.Side, t.Entry, t.Exit, t.PnL, t.PnLPct)
	}
	tw.Flush()
}
