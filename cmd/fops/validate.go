// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jllopis/fops/pkg/procedure"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <procedure>...",
		Short: "Check procedure files without running them",
		Long: `Validate parses each procedure and routes the modifiers and subject of every
step, reporting all bad steps at once. Nothing is sent to the system under test.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var firstErr error
			for _, path := range args {
				err := validateProcedure(path)
				if err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", path)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", path, err)
				if firstErr == nil {
					firstErr = NewProcedureError(err, path)
				}
			}
			return firstErr
		},
	}
}

func validateProcedure(path string) error {
	proc, err := procedure.Load(path)
	if err != nil {
		return err
	}
	return proc.Validate()
}
