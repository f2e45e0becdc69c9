// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/jllopis/fops/pkg/config"
	"github.com/jllopis/fops/pkg/core"
	"github.com/jllopis/fops/pkg/prompter"
	"github.com/jllopis/fops/pkg/resilience"
	"github.com/jllopis/fops/pkg/telemetry"
)

func newPrompterCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompter",
		Short: "Run or operate the operator prompt server",
	}
	cmd.AddCommand(newPrompterServeCmd(root))
	cmd.AddCommand(newPrompterListCmd(root))
	cmd.AddCommand(newPrompterAnswerCmd(root))
	cmd.AddCommand(newPrompterStatusCmd(root))
	return cmd
}

func newPrompterServeCmd(root *rootFlags) *cobra.Command {
	var headless bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve prompts and answer them from this terminal",
		Long: `Serve listens on prompter.listen. Every new prompt is printed here and the
next line typed on stdin answers it. With --headless prompts are only
answered through 'fops prompter answer'. The configuration file is watched
and the log level follows reloads.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return servePrompter(cmd, root, headless)
		},
	}
	cmd.Flags().BoolVar(&headless, "headless", false, "Do not answer prompts from stdin")
	return cmd
}

func servePrompter(cmd *cobra.Command, root *rootFlags, headless bool) error {
	ctx := cmd.Context()
	cfg, err := root.load()
	if err != nil {
		return err
	}
	logger, level := setupLogging(cmd.ErrOrStderr(), cfg.Log)
	health := core.NewHealth()

	if root.configPath != "" {
		watcher, err := config.NewWatcher(root.configPath,
			config.WithWatchLogger(logger),
			config.WithWatchOverrides(root.profileName(), root.sets),
		)
		if err != nil {
			return NewConfigError(err, root.configPath)
		}
		watcher.OnChange(func(c *config.Config) {
			telemetry.SetLogLevel(level, c.Log.Level)
			logger.Info("log level updated", slog.String("level", c.Log.Level))
		})
		health.Register("config", func(context.Context) core.HealthResult {
			if err := watcher.LastError(); err != nil {
				return core.HealthResult{Status: core.HealthDegraded, Message: "reload failed: " + err.Error()}
			}
			return core.HealthResult{Status: core.HealthHealthy, Message: root.configPath}
		})
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	pending := make(chan prompter.Prompt, 64)
	opts := []prompter.ServerOption{prompter.WithServerLogger(logger), prompter.WithHealth(health)}
	if !headless {
		opts = append(opts, prompter.WithPromptHook(func(p prompter.Prompt) {
			select {
			case pending <- p:
			default:
				logger.Warn("terminal queue full, prompt left for 'fops prompter answer'",
					slog.String("prompt_id", p.ID))
			}
		}))
	}
	srv := prompter.NewServer(opts...)

	if !headless {
		console := resilience.NewConsole(
			resilience.WithConsoleInput(cmd.InOrStdin()),
			resilience.WithConsoleOutput(cmd.OutOrStdout()),
		)
		go answerFromConsole(ctx, srv, console, pending, logger)
	}

	return srv.ListenAndServe(ctx, cfg.Prompter.Listen)
}

// answerFromConsole answers queued prompts one at a time until ctx ends or
// the terminal input closes.
func answerFromConsole(ctx context.Context, srv *prompter.Server, console resilience.Asker, pending <-chan prompter.Prompt, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-pending:
			if !isPending(srv, p.ID) {
				continue
			}
			message := fmt.Sprintf("[%s] %s\nOptions: %s", shortID(p.ID), p.Message, strings.Join(p.Options, ", "))
			answer, err := console.Ask(ctx, message, p.Options)
			if err != nil {
				logger.Warn("terminal answers disabled", slog.String("error", err.Error()))
				return
			}
			if err := srv.Answer(p.ID, answer); err != nil && !errors.Is(err, prompter.ErrUnknownPrompt) {
				logger.Warn("answer rejected", slog.String("prompt_id", p.ID), slog.String("error", err.Error()))
			}
		}
	}
}

func newPrompterListCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the prompts of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := prompterClient(root)
			if err != nil {
				return err
			}
			prompts, err := client.List(cmd.Context())
			if err != nil {
				return WrapConnectionError(err, client.BaseURL())
			}
			return printPrompts(cmd.OutOrStdout(), prompts)
		},
	}
}

func newPrompterAnswerCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "answer <id> <answer>",
		Short: "Answer a pending prompt",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := prompterClient(root)
			if err != nil {
				return err
			}
			if err := client.Answer(cmd.Context(), args[0], args[1]); err != nil {
				return WrapConnectionError(err, client.BaseURL())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "answered %s\n", args[0])
			return nil
		},
	}
}

func newPrompterStatusCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the health of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := prompterClient(root)
			if err != nil {
				return err
			}
			report, err := client.Health(cmd.Context())
			if err != nil {
				return WrapConnectionError(err, client.BaseURL())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", client.BaseURL(), report.Status)
			for _, c := range report.Components {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-10s %-9s %s\n", c.Component, c.Status, c.Message)
			}
			return nil
		},
	}
}

func prompterClient(root *rootFlags) (*prompter.Client, error) {
	cfg, err := root.load()
	if err != nil {
		return nil, err
	}
	return prompter.NewClient(cfg.Prompter.URL, prompter.WithSubmitTimeout(cfg.Prompter.SubmitTimeout)), nil
}

func printPrompts(w io.Writer, prompts []prompter.Prompt) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Created", "Message", "Options", "Answer")
	for _, p := range prompts {
		answer := "(pending)"
		if p.Answered {
			answer = p.Answer
		}
		if err := table.Append(
			p.ID,
			p.CreatedAt.Format("15:04:05"),
			p.Message,
			strings.Join(p.Options, ", "),
			answer,
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func isPending(srv *prompter.Server, id string) bool {
	for _, p := range srv.Pending() {
		if p.ID == id {
			return true
		}
	}
	return false
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
