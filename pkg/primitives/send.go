// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package primitives

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/jllopis/fops/pkg/dsl"
	ferrors "github.com/jllopis/fops/pkg/errors"
	"github.com/jllopis/fops/pkg/resilience"
	"github.com/jllopis/fops/pkg/sut"
	"github.com/jllopis/fops/pkg/trace"
)

// FaultCommand always fails with an injected fault. Procedures use it to
// rehearse the recovery protocol.
const FaultCommand = "COMMAND_EX"

func (r *Runtime) sendBody() trace.Func {
	return func(ctx context.Context, call *dsl.PrimitiveCall) (any, error) {
		command, err := commandOf(call)
		if err != nil {
			return nil, err
		}
		if command == FaultCommand {
			return nil, ferrors.New(ferrors.CodeInjectedFault, "injected fault", nil).
				WithContext("command", command).
				WithRecoverable(true)
		}
		args, err := argsOf(call)
		if err != nil {
			return nil, err
		}

		trace.Step(ctx)
		if err := sleep(ctx, call.Mods.Delay); err != nil {
			return nil, err
		}
		if call.Mods.Confirm {
			trace.Step(ctx)
			if err := r.confirm(ctx, command); err != nil {
				return nil, err
			}
		}

		trace.Step(ctx)
		_, err = resilience.WithTimeoutResult(ctx, call.Mods.Timeout, func(ctx context.Context) (any, error) {
			return nil, r.system.Send(ctx, command, args)
		})
		if err != nil {
			return nil, sendError(command, err)
		}
		if call.Mods.Notify {
			r.logger.InfoContext(ctx, "command sent",
				slog.String("command", command),
				slog.Int("args", len(args)))
		}

		if raw, ok := call.Param("verify"); ok && raw != nil {
			trace.Step(ctx)
			conds, err := dsl.NormalizeConditions(raw)
			if err != nil {
				return nil, err
			}
			held, err := r.await(ctx, call, conds)
			if err != nil {
				return nil, err
			}
			if _, err := r.verdict(ctx, call, conds, held); err != nil {
				return nil, err
			}
		}
		return sut.SentCommand{Command: command, Args: args, At: time.Now()}, nil
	}
}

func (r *Runtime) confirm(ctx context.Context, command string) error {
	message := fmt.Sprintf("Send %s:\nOptions: Ok (o), Cancel (c)?", command)
	answer, err := r.ask(ctx, message, []string{"Ok", "Cancel"})
	if err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "ok", "o", "yes", "y":
		return nil
	}
	return ferrors.New(ferrors.CodeExecution, "command not confirmed by operator", nil).
		WithContext("command", command).
		WithContext("answer", answer)
}

func commandOf(call *dsl.PrimitiveCall) (string, error) {
	subject := call.Spec
	if subject == nil || subject == "" {
		subject, _ = call.Param("command")
	}
	command, err := cast.ToStringE(subject)
	if err != nil || command == "" {
		return "", ferrors.New(ferrors.CodeExecution, "Send needs a command", err).
			WithContext("subject", fmt.Sprintf("%v", subject))
	}
	return command, nil
}

// argsOf reads the "args" parameter: a []sut.Arg or a list of
// [name, value] / [name, value, {options}] entries.
func argsOf(call *dsl.PrimitiveCall) ([]sut.Arg, error) {
	raw, ok := call.Param("args")
	if !ok || raw == nil {
		return nil, nil
	}
	if args, ok := raw.([]sut.Arg); ok {
		return args, nil
	}
	items, err := cast.ToSliceE(raw)
	if err != nil {
		return nil, badArgs(raw, err)
	}
	args := make([]sut.Arg, 0, len(items))
	for _, item := range items {
		parts, err := cast.ToSliceE(item)
		if err != nil || len(parts) < 2 || len(parts) > 3 {
			return nil, badArgs(item, err)
		}
		name, err := cast.ToStringE(parts[0])
		if err != nil {
			return nil, badArgs(item, err)
		}
		arg := sut.Arg{Name: name, Value: parts[1]}
		if len(parts) == 3 {
			if arg.Options, err = cast.ToStringMapE(parts[2]); err != nil {
				return nil, badArgs(item, err)
			}
		}
		args = append(args, arg)
	}
	return args, nil
}

func badArgs(v any, cause error) error {
	return ferrors.New(ferrors.CodeExecution, fmt.Sprintf("malformed command arguments: %v", v), cause)
}

func sendError(command string, err error) error {
	if ferrors.AsFopsError(err) != nil || errors.Is(err, context.Canceled) {
		return err
	}
	return ferrors.New(ferrors.CodeExecution, "send "+command, err).
		WithContext("command", command).
		WithRecoverable(true)
}
