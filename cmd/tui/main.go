package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"fusionbot-go/internal/config"
)

const defaultConfigPath = "internal/config/config.yaml"

type command struct {
	key   string
	label string
	run   func() error
}

type console struct {
	path string
	cfg  *config.Config
	in   *bufio.Scanner
	out  io.Writer
	// dirty is set by edits not yet written to path.
	dirty bool
}

func main() {
	path := flag.String("config", defaultConfigPath, "YAML configuration file")
	flag.Parse()

	c := &console{path: *path, in: bufio.NewScanner(os.Stdin), out: os.Stdout}
	if err := c.reload(); err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	c.loop()
}

func (c *console) commands() []command {
	return []command{
		{"o", "overview", func() error { renderOverview(c.out, c.cfg); return nil }},
		{"r", "last paper session", c.showResults},
		{"g", "edit risk gate", c.editGate},
		{"s", "edit sizing and stops", c.editSizing},
		{"p", "edit instruments and strategy chain", c.editPipeline},
		{"x", "edit exit and reversal tuning", c.editExit},
		{"w", "write config", c.write},
		{"l", "reload config", c.reload},
		{"b", "run paper bot", c.runPaper},
	}
}

func (c *console) loop() {
	cmds := c.commands()
	for {
		fmt.Fprintf(c.out, "\nfusionbot [%s]", c.path)
		if c.dirty {
			fmt.Fprint(c.out, " *unsaved*")
		}
		fmt.Fprintln(c.out)
		for _, cmd := range cmds {
			fmt.Fprintf(c.out, "  %s  %s\n", cmd.key, cmd.label)
		}
		fmt.Fprintln(c.out, "  q  quit")

		key, ok := c.ask("> ")
		if !ok || key == "q" {
			if c.dirty {
				fmt.Fprintln(c.out, "discarding unsaved edits")
			}
			return
		}
		found := false
		for _, cmd := range cmds {
			if cmd.key == key {
				found = true
				if err := cmd.run(); err != nil {
					fmt.Fprintf(c.out, "%s: %v\n", cmd.label, err)
				}
			}
		}
		if !found && key != "" {
			fmt.Fprintf(c.out, "no command %q\n", key)
		}
	}
}

func (c *console) ask(prompt string) (string, bool) {
	fmt.Fprint(c.out, prompt)
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

// edit walks fields, keeping the current value on blank input.
func (c *console) edit(title string, fields []field) error {
	fmt.Fprintf(c.out, "\n[%s] blank keeps the current value\n", title)
	for _, f := range fields {
		for {
			line, ok := c.ask(fmt.Sprintf("%-28s (%s): ", f.label, f.get()))
			if !ok {
				return io.ErrUnexpectedEOF
			}
			if line == "" {
				break
			}
			if err := f.set(line); err != nil {
				fmt.Fprintf(c.out, "  %v\n", err)
				continue
			}
			c.dirty = true
			break
		}
	}
	if err := c.cfg.Validate(); err != nil {
		fmt.Fprintf(c.out, "config is not runnable yet: %v\n", err)
	}
	return nil
}

func (c *console) editGate() error {
	r := &c.cfg.Risk
	return c.edit("risk gate", []field{
		floatField("initial balance USD", &r.InitialBalance),
		intField("max concurrent positions", &r.MaxConcurrent),
		floatField("max daily loss USD", &r.MaxDailyLoss),
		floatField("max position % of balance", &r.MaxPositionPct),
	})
}

func (c *console) editSizing() error {
	t, p := &c.cfg.Trading, &c.cfg.Paper
	return c.edit("sizing", []field{
		floatField("trade value USD", &t.TradeValueUSD),
		floatField("leverage", &t.Leverage),
		floatField("stop loss %", &t.StopLossPct),
		floatField("take profit %", &t.TakeProfitPct),
		rateField("paper fee %", &p.FeeRate),
		rateField("paper slippage %", &p.SlippageRate),
	})
}

func (c *console) editPipeline() error {
	return c.edit("pipeline", []field{
		listField("instruments", &c.cfg.Instruments, strings.ToUpper),
		chainField(c.cfg),
		stringField("primary timeframe", &c.cfg.Timeframes.Primary),
		stringField("secondary timeframe", &c.cfg.Timeframes.Secondary),
		stringField("confirmation timeframe", &c.cfg.Timeframes.Confirmation),
	})
}

func (c *console) editExit() error {
	e, s := &c.cfg.Exit, &c.cfg.Signal
	return c.edit("exit", []field{
		floatField("exit confidence", &e.ConfidenceThreshold),
		floatField("RSI critical strength", &e.RSICriticalStrength),
		intField("exhaustion turn bars", &e.TurnBars),
		boolField("exit on any RSI zone", &e.RSIZoneExit),
		floatField("reversal confidence", &s.HighConfidence),
	})
}

func (c *console) showResults() error {
	r, err := loadResults(c.cfg.App.ResultsPath)
	if err != nil {
		return err
	}
	renderResults(c.out, r, 10)
	return nil
}

func (c *console) write() error {
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("refusing to write: %w", err)
	}
	if err := config.Save(c.path, c.cfg); err != nil {
		return err
	}
	c.dirty = false
	fmt.Fprintf(c.out, "wrote %s\n", c.path)
	return nil
}

func (c *console) reload() error {
	cfg, err := config.Load(c.path)
	if err != nil {
		return err
	}
	c.cfg, c.dirty = cfg, false
	return nil
}

// runPaper starts cmd/paper against the on-disk config until ENTER.
func (c *console) runPaper() error {
	if c.dirty {
		fmt.Fprintln(c.out, "note: the bot reads the file on disk, unsaved edits are not used")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bot := exec.CommandContext(ctx, "go", "run", "./cmd/paper", "-config", c.path)
	bot.Stdout, bot.Stderr = c.out, os.Stderr
	// Interrupt lets the bot write its results before exiting.
	bot.Cancel = func() error { return bot.Process.Signal(os.Interrupt) }
	bot.WaitDelay = 10 * time.Second
	if err := bot.Start(); err != nil {
		return fmt.Errorf("start paper bot: %w", err)
	}
	done := make(chan error, 1)
	go func() { done <- bot.Wait() }()

	fmt.Fprintln(c.out, "paper bot running, ENTER stops it")
	c.ask("")
	cancel()
	if err := <-done; err != nil && ctx.Err() == nil {
		return err
	}
	return c.showResults()
}
