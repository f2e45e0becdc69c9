// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package primitives

import (
	"context"
	"fmt"
	"strings"

	"github.com/jllopis/fops/pkg/dsl"
	ferrors "github.com/jllopis/fops/pkg/errors"
	"github.com/jllopis/fops/pkg/resilience"
	"github.com/jllopis/fops/pkg/trace"
)

func (r *Runtime) promptBody() trace.Func {
	return func(ctx context.Context, call *dsl.PrimitiveCall) (any, error) {
		message, err := messageOf(call)
		if err != nil {
			return nil, err
		}
		options := call.Mods.Type.Options()

		trace.Step(ctx)
		answer, err := resilience.WithTimeoutResult(ctx, call.Mods.Timeout, func(ctx context.Context) (any, error) {
			return r.ask(ctx, PromptText(message, options), options)
		})
		if err != nil {
			return nil, err
		}
		trace.Step(ctx)
		return matchAnswer(answer.(string), options)
	}
}

// messageOf reads the question from the subject or the "message" parameter.
func messageOf(call *dsl.PrimitiveCall) (string, error) {
	subject := call.Spec
	if subject == nil || subject == "" {
		subject, _ = call.Param("message")
	}
	if subject == nil || subject == "" {
		return "", ferrors.New(ferrors.CodeExecution, "Prompt needs a message", nil)
	}
	return fmt.Sprint(subject), nil
}

// PromptText renders the question shown to the operator, e.g.
// "Check valve:\nOptions: Ok (o)?".
func PromptText(message string, options []string) string {
	if len(options) == 0 {
		return message + ":"
	}
	labels := make([]string, len(options))
	for i, o := range options {
		labels[i] = fmt.Sprintf("%s (%s)", o, strings.ToLower(o[:1]))
	}
	return fmt.Sprintf("%s:\nOptions: %s?", message, strings.Join(labels, ", "))
}

// matchAnswer maps an answer onto one of options by full label or initial.
// Free-text prompts accept any answer.
func matchAnswer(answer string, options []string) (string, error) {
	answer = strings.TrimSpace(answer)
	if len(options) == 0 {
		return answer, nil
	}
	for _, o := range options {
		if strings.EqualFold(answer, o) || strings.EqualFold(answer, o[:1]) {
			return o, nil
		}
	}
	return "", ferrors.New(ferrors.CodeExecution, fmt.Sprintf("unexpected answer %q", answer), nil).
		WithContext("options", options).
		WithRecoverable(true)
}
