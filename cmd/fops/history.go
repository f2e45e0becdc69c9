// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"database/sql"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/jllopis/fops/pkg/errors"
	"github.com/jllopis/fops/pkg/procedure"
)

type historyOptions struct {
	filter procedure.AuditFilter
}

func newHistoryCmd(root *rootFlags) *cobra.Command {
	opts := historyOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded procedure steps",
		Long:  `History reads the step records kept in audit.sqlite_path by previous runs.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if cfg.Audit.SQLitePath == "" {
				fe := errors.New(errors.CodeInvalidConfig, "audit.sqlite_path is not set", nil).
					WithContext("field", "audit.sqlite_path")
				return NewCLIError(fe, "set audit.sqlite_path in the config file or with --set", exitUsage)
			}
			db, err := sql.Open("sqlite", cfg.Audit.SQLitePath)
			if err != nil {
				return err
			}
			defer db.Close()
			store, err := procedure.NewSQLiteAuditStore(db)
			if err != nil {
				return err
			}
			events, err := store.List(cmd.Context(), opts.filter)
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), events)
		},
	}

	cmd.Flags().StringVar(&opts.filter.Procedure, "procedure", "", "Only steps of this procedure")
	cmd.Flags().StringVar(&opts.filter.RunID, "run", "", "Only steps of this run id")
	cmd.Flags().StringVar(&opts.filter.Outcome, "outcome", "", "Only steps with this outcome (succeeded, skipped, cancelled, failed)")
	cmd.Flags().IntVar(&opts.filter.Limit, "limit", 50, "Maximum number of steps to list (0 for all)")

	return cmd
}

func printHistory(w io.Writer, events []procedure.AuditEvent) error {
	table := tablewriter.NewWriter(w)
	table.Header("Started", "Procedure", "Run", "Step", "Primitive", "Subject", "Outcome", "Attempts", "Error")
	for _, ev := range events {
		if err := table.Append(
			ev.StartedAt.Local().Format("2006-01-02 15:04:05"),
			ev.Procedure,
			shortID(ev.RunID),
			fmt.Sprint(ev.Index),
			ev.Primitive,
			ev.Subject,
			ev.Outcome,
			fmt.Sprint(ev.Attempts),
			ev.Error,
		); err != nil {
			return err
		}
	}
	return table.Render()
}
