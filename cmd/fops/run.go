// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/jllopis/fops/pkg/config"
	"github.com/jllopis/fops/pkg/primitives"
	"github.com/jllopis/fops/pkg/procedure"
	"github.com/jllopis/fops/pkg/prompter"
	"github.com/jllopis/fops/pkg/resilience"
	"github.com/jllopis/fops/pkg/sink"
	"github.com/jllopis/fops/pkg/telemetry"
	"github.com/jllopis/fops/pkg/trace"
)

type runOptions struct {
	noSummary bool
	noColor   bool
}

func newRunCmd(root *rootFlags) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run <procedure>",
		Short: "Run a procedure against its simulated system",
		Long: `Run executes the steps of a procedure file in order. Failed steps are
offered to the operator (prompter first, console second) who may retry, skip
or cancel them. A cancelled step stops the run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcedure(cmd, root, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.noSummary, "no-summary", false, "Do not print the step summary table")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable coloured trace output")

	return cmd
}

func runProcedure(cmd *cobra.Command, root *rootFlags, opts runOptions, path string) error {
	ctx := cmd.Context()
	cfg, err := root.load()
	if err != nil {
		return err
	}
	logger, _ := setupLogging(cmd.ErrOrStderr(), cfg.Log)

	proc, err := procedure.Load(path)
	if err != nil {
		return NewProcedureError(err, path)
	}
	if err := proc.Validate(); err != nil {
		return NewProcedureError(err, path)
	}

	shutdown, err := telemetry.InitWithConfig("fops", version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		OTLPTimeout:  cfg.Telemetry.OTLPTimeout,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	tracer, closeSinks, err := buildTracer(cfg.Trace, cmd.OutOrStdout(), !opts.noColor, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	metrics, err := telemetry.NewPrimitiveMetrics()
	if err != nil {
		return err
	}

	rt, err := primitives.New(proc.NewSimulator(), runtimeOptions(cmd, cfg, tracer, metrics, logger)...)
	if err != nil {
		return err
	}

	runnerOpts := []procedure.RunnerOption{procedure.WithLogger(logger)}
	if cfg.Audit.SQLitePath != "" {
		db, err := sql.Open("sqlite", cfg.Audit.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		store, err := procedure.NewSQLiteAuditStore(db)
		if err != nil {
			return err
		}
		runnerOpts = append(runnerOpts, procedure.WithAudit(store))
	}

	results, runErr := procedure.NewRunner(rt, runnerOpts...).Run(ctx, proc)
	if !opts.noSummary {
		if err := printSummary(cmd.OutOrStdout(), proc.Name, results); err != nil {
			logger.Warn("summary rendering failed", slog.String("error", err.Error()))
		}
	}
	if runErr != nil {
		cancelled := len(results) > 0 && results[len(results)-1].Outcome == resilience.OutcomeCancelled
		return NewRunError(runErr, cancelled)
	}
	return nil
}

// runtimeOptions wires the decision chain and the operator channels. The
// console always comes last so a missing prompter never blocks a run.
func runtimeOptions(cmd *cobra.Command, cfg *config.Config, tracer *trace.Tracer, metrics *telemetry.PrimitiveMetrics, logger *slog.Logger) []primitives.Option {
	console := resilience.NewConsole(
		resilience.WithConsoleInput(cmd.InOrStdin()),
		resilience.WithConsoleOutput(cmd.OutOrStdout()),
	)
	opts := []primitives.Option{
		primitives.WithTracer(tracer),
		primitives.WithMetrics(metrics),
		primitives.WithLogger(logger),
	}

	var decider resilience.Decider = console
	if cfg.Prompter.Enabled {
		client := prompter.NewClient(cfg.Prompter.URL,
			prompter.WithSubmitTimeout(cfg.Prompter.SubmitTimeout),
			prompter.WithWaitTimeout(cfg.Prompter.WaitTimeout),
			prompter.WithLogger(logger),
		)
		breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: 1,
			Cooldown:         30 * time.Second,
			Name:             "prompter",
		})
		fallback := resilience.NewFallback(
			resilience.NewChannel(client, resilience.WithBreaker(breaker), resilience.WithChannelLogger(logger)),
			console,
		)
		fallback.Logger = logger
		if _, err := client.Health(cmd.Context()); err != nil {
			logger.Warn("prompter unreachable, operator answers fall back to the console",
				slog.String("url", client.BaseURL()), slog.String("error", err.Error()))
		}
		decider = fallback
		opts = append(opts, primitives.WithOperator(breakerAsker{asker: client, breaker: breaker}))
	}
	return append(opts, primitives.WithDecider(decider), primitives.WithOperator(console))
}

// breakerAsker shares the decision channel's breaker so an unreachable
// prompter is skipped by operator questions too.
type breakerAsker struct {
	asker   resilience.Asker
	breaker *resilience.CircuitBreaker
}

func (b breakerAsker) Ask(ctx context.Context, message string, options []string) (string, error) {
	var answer string
	err := b.breaker.Call(ctx, func() error {
		var err error
		answer, err = b.asker.Ask(ctx, message, options)
		return err
	})
	return answer, err
}

func buildTracer(cfg config.TraceConfig, out io.Writer, colored bool, logger *slog.Logger) (*trace.Tracer, func(), error) {
	if !cfg.Enabled {
		return nil, func() {}, nil
	}

	var (
		sinks   []trace.Sink
		closers []func() error
	)
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("closing trace sink", slog.String("error", err.Error()))
			}
		}
	}
	for _, name := range cfg.Sinks {
		switch name {
		case "console":
			sinks = append(sinks, sink.NewConsole(sink.WithWriter(out), sink.WithColor(colored)))
		case "http":
			sinks = append(sinks, sink.NewHTTP(cfg.HTTPURL, sink.WithHTTPLogger(logger)))
		case "sqlite":
			s, err := sink.OpenSQLite(cfg.SQLitePath, logger)
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("open trace store: %w", err)
			}
			sinks = append(sinks, s)
			closers = append(closers, s.Close)
		case "otel":
			s, err := sink.NewOTel()
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			sinks = append(sinks, s)
		}
	}

	tracer := trace.New(sink.NewMulti(sinks...),
		trace.WithOptions(trace.Options{
			Lines:         cfg.Lines,
			Calls:         cfg.Calls,
			Returns:       cfg.Returns,
			Exceptions:    cfg.Exceptions,
			CaptureValues: cfg.CaptureValues,
			MaxLen:        cfg.MaxLen,
		}),
		trace.WithLogger(logger),
	)
	return tracer, closeAll, nil
}

func printSummary(w io.Writer, name string, results []procedure.StepResult) error {
	fmt.Fprintf(w, "\nProcedure %s\n", name)
	table := tablewriter.NewWriter(w)
	table.Header("Step", "Line", "Primitive", "Subject", "Outcome", "Attempts", "Value", "Elapsed")
	for _, r := range results {
		value := ""
		if r.Value != nil {
			value = trace.SafeRender(r.Value, 40)
		}
		if err := table.Append(
			fmt.Sprint(r.Index),
			fmt.Sprint(r.Line),
			r.Primitive,
			r.Subject,
			string(r.Outcome),
			fmt.Sprint(r.Attempts),
			value,
			r.Elapsed.Round(time.Millisecond).String(),
		); err != nil {
			return err
		}
	}
	return table.Render()
}
