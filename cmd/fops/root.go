// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jllopis/fops/pkg/config"
	"github.com/jllopis/fops/pkg/telemetry"
)

type rootFlags struct {
	configPath string
	profile    string
	sets       []string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "fops",
		Short:         "fops runs flight operations procedures against a system under test",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to a YAML configuration file")
	cmd.PersistentFlags().StringVar(&flags.profile, "profile", "", "Configuration profile overlay (defaults to $FOPS_PROFILE)")
	cmd.PersistentFlags().StringArrayVar(&flags.sets, "set", nil, "Override a configuration key (key=value, repeatable)")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newPrompterCmd(flags))
	cmd.AddCommand(newHistoryCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func (f *rootFlags) load() (*config.Config, error) {
	cfg, err := config.LoadWithOverrides(f.configPath, f.profileName(), f.sets)
	if err != nil {
		return nil, NewConfigError(err, f.configPath)
	}
	return cfg, nil
}

func (f *rootFlags) profileName() string {
	if f.profile != "" {
		return f.profile
	}
	return os.Getenv(config.ProfileEnv)
}

// setupLogging installs the default logger and returns the level so it can
// follow configuration reloads.
func setupLogging(w io.Writer, cfg config.LogConfig) (*slog.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	telemetry.SetLogLevel(level, cfg.Level)
	return telemetry.ConfigureSlogWithLevel(w, level, cfg.Format), level
}
