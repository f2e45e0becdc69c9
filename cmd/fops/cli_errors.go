// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

// Package main implements the fops command line.
package main

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/jllopis/fops/pkg/errors"
)

// Exit codes.
const (
	exitOK        = 0
	exitFailure   = 1
	exitUsage     = 2
	exitCancelled = 3
)

// CLIError wraps FopsError with CLI-specific formatting and hints.
type CLIError struct {
	*errors.FopsError
	Hint string
	Exit int
}

// NewCLIError creates a new CLI error.
func NewCLIError(fe *errors.FopsError, hint string, exit int) *CLIError {
	return &CLIError{
		FopsError: fe,
		Hint:      hint,
		Exit:      exit,
	}
}

// Error returns the formatted error message with hints.
func (e *CLIError) Error() string {
	if e.FopsError == nil {
		return "unknown error"
	}

	msg := e.FopsError.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// NewConfigError creates a configuration error with CLI hints.
func NewConfigError(err error, configPath string) *CLIError {
	fe := errors.AsFopsError(err)
	if fe.Code != errors.CodeInvalidConfig {
		fe = errors.New(errors.CodeInvalidConfig, "configuration error", err)
	}
	fe = fe.WithContext("config_path", configPath)

	hint := "check the FOPS_ environment and --set overrides"
	if configPath != "" {
		hint = fmt.Sprintf("check %s for syntax errors", configPath)
	}
	return NewCLIError(fe, hint, exitUsage)
}

// NewProcedureError reports a procedure that cannot be loaded or validated.
func NewProcedureError(err error, path string) *CLIError {
	code := errors.CodeOf(err)
	if code == "" {
		code = errors.CodeInvalidCondition
	}
	fe := errors.New(code, "invalid procedure", err).WithContext("procedure", path)
	return NewCLIError(fe, "run 'fops validate "+path+"' to list every bad step", exitUsage)
}

// WrapConnectionError wraps a prompter connection error with CLI hints.
func WrapConnectionError(err error, addr string) *CLIError {
	fe := errors.New(errors.CodeChannelUnavailable, "prompter unreachable", err).
		WithContext("address", addr).
		WithRecoverable(true)
	return NewCLIError(fe, fmt.Sprintf("check that 'fops prompter serve' is running at %s", addr), exitFailure)
}

// NewRunError classifies the error that stopped a procedure run. cancelled
// is set when the operator chose to cancel the failing step.
func NewRunError(err error, cancelled bool) *CLIError {
	code := errors.CodeOf(err)
	if code == "" {
		code = errors.CodeExecution
	}
	fe := errors.New(code, "procedure stopped", err)
	exit := exitFailure
	hint := ""
	if cancelled {
		exit = exitCancelled
	}
	if fe.Code == errors.CodeChannelUnavailable || fe.Code == errors.CodeTimeout {
		hint = "the operator channel failed; answers fall back to the console"
	}
	return NewCLIError(fe, hint, exit)
}

// printError writes err to w and returns the process exit code.
func printError(w io.Writer, err error) int {
	if err == nil {
		return exitOK
	}
	var cliErr *CLIError
	if stderrors.As(err, &cliErr) && cliErr.FopsError != nil {
		fmt.Fprintf(w, "Error: %s\n", cliErr.FopsError.Error())
		if cliErr.Hint != "" {
			fmt.Fprintf(w, "  Hint: %s\n", cliErr.Hint)
		}
		if cliErr.Exit != 0 {
			return cliErr.Exit
		}
		return exitFailure
	}
	fmt.Fprintf(w, "Error: %s\n", err.Error())
	return exitFailure
}
