// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/poiesic/thirteenf"
	"github.com/poiesic/thirteenf/config"
	"github.com/poiesic/thirteenf/core"
	"github.com/poiesic/thirteenf/cusip"
	"github.com/poiesic/thirteenf/ingestion"
	"github.com/poiesic/thirteenf/metrics"
	"github.com/urfave/cli/v2"
)

const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "thirteenf",
		Usage: "Load institutional holdings filings into a relational warehouse",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				EnvVars: []string{"THIRTEENF_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Set log format (text, json)",
			},
			&cli.StringFlag{
				Name:  "metrics-textfile",
				Usage: "Write Prometheus metrics to this file when a run ends",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Load every unprocessed bulk folder and document for a range of quarters",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "from",
						Usage:    "First quarter, e.g. 2023Q1",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "to",
						Usage: "Last quarter (defaults to --from)",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of parallel workers (0 = number of CPUs)",
					},
					&cli.StringFlag{
						Name:  "db",
						Usage: "Database DSN",
					},
					&cli.BoolFlag{
						Name:  "no-progress",
						Usage: "Disable the progress bar",
					},
				},
			},
			{
				Name:   "remediate",
				Usage:  "Run post-load cleanup and identifier reconciliation",
				Action: remediateCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "reference",
						Usage: "Reference file of valid identifiers",
					},
					&cli.StringFlag{
						Name:  "overrides",
						Usage: "YAML file of manual corrections",
					},
					&cli.StringFlag{
						Name:  "db",
						Usage: "Database DSN",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show ingestion progress and row counts",
				Action: statusCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "db",
						Usage: "Database DSN",
					},
				},
			},
			{
				Name:      "checkdigit",
				Usage:     "Complete 8-character identifier stems or verify 9-character codes",
				ArgsUsage: "CODE...",
				Action:    checkDigitCommand,
			},
		},
	}
}

// setup loads the configuration, applies global flag overrides and
// installs the default logger.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Logging.Format = c.String("log-format")
	}
	if c.IsSet("metrics-textfile") {
		cfg.Metrics.Textfile = c.String("metrics-textfile")
	}
	if err := setupLogger(cfg.Logging); err != nil {
		return err
	}
	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func setupLogger(lc config.LoggingConfig) error {
	level := slog.LevelInfo
	if lc.Level != "" {
		if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
			return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", lc.Level)
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(lc.Format) {
	case "text", "":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", lc.Format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// commandConfig returns the loaded configuration with the command's --db
// override applied.
func commandConfig(c *cli.Context) *config.Config {
	cfg, _ := c.App.Metadata[configKey].(*config.Config)
	if cfg == nil {
		cfg, _ = config.Load("")
	}
	if c.IsSet("db") {
		cfg.Database.DSN = c.String("db")
	}
	return cfg
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func writeMetrics(cfg *config.Config, rec *metrics.Recorder) {
	if cfg.Metrics.Textfile == "" {
		return
	}
	if err := rec.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		slog.Error("failed to write metrics", "path", cfg.Metrics.Textfile, "err", err)
	}
}

func parsePeriods(from, to string) ([]core.Period, error) {
	start, err := core.ParsePeriod(from)
	if err != nil {
		return nil, fmt.Errorf("--from: %w", err)
	}
	end := start
	if to != "" {
		if end, err = core.ParsePeriod(to); err != nil {
			return nil, fmt.Errorf("--to: %w", err)
		}
	}
	return core.QuarterRange(start, end)
}

func ingestCommand(c *cli.Context) error {
	ctx, stop := signalContext()
	defer stop()

	cfg := commandConfig(c)
	if c.IsSet("workers") {
		cfg.Ingestion.Workers = c.Int("workers")
	}
	periods, err := parsePeriods(c.String("from"), c.String("to"))
	if err != nil {
		return err
	}

	rec := metrics.NewRecorder()
	w, err := thirteenf.Open(ctx, cfg, thirteenf.WithMetrics(rec))
	if err != nil {
		return fmt.Errorf("failed to open warehouse: %w", err)
	}
	defer w.Close()

	reporter := newReporter(os.Stderr, !c.Bool("no-progress") && isTerminal(os.Stderr))
	pipeline, err := w.NewPipeline(ingestion.WithReporter(reporter))
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	fmt.Fprintf(os.Stderr, "Database: %s\n", cfg.Database.Driver)
	fmt.Fprintf(os.Stderr, "Quarters: %s to %s\n", periods[0], periods[len(periods)-1])
	fmt.Fprintln(os.Stderr)

	result, err := pipeline.Run(ctx, periods)
	if result != nil {
		printIngestResult(os.Stdout, result)
	}
	writeMetrics(cfg, rec)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	if failed := result.Total().Failed; failed > 0 {
		return cli.Exit(fmt.Sprintf("%d items failed and will be retried on the next run", failed), 2)
	}
	return nil
}

func remediateCommand(c *cli.Context) error {
	ctx, stop := signalContext()
	defer stop()

	cfg := commandConfig(c)
	if c.IsSet("reference") {
		cfg.Paths.ReferenceFile = c.String("reference")
	}
	if c.IsSet("overrides") {
		cfg.Paths.OverridesFile = c.String("overrides")
	}

	rec := metrics.NewRecorder()
	w, err := thirteenf.Open(ctx, cfg, thirteenf.WithMetrics(rec))
	if err != nil {
		return fmt.Errorf("failed to open warehouse: %w", err)
	}
	defer w.Close()

	runner, err := w.NewRemediator()
	if err != nil {
		return fmt.Errorf("failed to create remediator: %w", err)
	}
	report, err := runner.Run(ctx)
	if report != nil {
		printRemediateReport(os.Stdout, report)
	}
	writeMetrics(cfg, rec)
	if err != nil {
		return fmt.Errorf("remediation failed: %w", err)
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	ctx, stop := signalContext()
	defer stop()

	w, err := thirteenf.Open(ctx, commandConfig(c))
	if err != nil {
		return fmt.Errorf("failed to open warehouse: %w", err)
	}
	defer w.Close()

	status, err := w.Status(ctx)
	if err != nil {
		return err
	}
	printStatus(os.Stdout, status)
	return nil
}

// checkDigitCommand completes 8-character stems and verifies 9-character
// codes.
func checkDigitCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one stem is required")
	}
	for _, arg := range c.Args().Slice() {
		code := strings.ToUpper(strings.TrimSpace(arg))
		if len(code) == cusip.Length {
			full, err := cusip.Complete(code[:cusip.StemLength])
			if err != nil {
				return err
			}
			if full == code {
				fmt.Fprintf(c.App.Writer, "%s valid\n", code)
			} else {
				fmt.Fprintf(c.App.Writer, "%s invalid, expected %s\n", code, full)
			}
			continue
		}
		full, err := cusip.Complete(code)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, full)
	}
	return nil
}
