// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

// Package primitives implements the Send, VerifyTM and Prompt operations.
//
// Every call follows the same pipeline: the router validates the modifiers
// and parameters, the resilience loop drives attempts, the tracer observes
// each attempt and the primitive body talks to the system under test.
package primitives

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/jllopis/fops/pkg/dsl"
	ferrors "github.com/jllopis/fops/pkg/errors"
	"github.com/jllopis/fops/pkg/resilience"
	"github.com/jllopis/fops/pkg/sut"
	"github.com/jllopis/fops/pkg/telemetry"
	"github.com/jllopis/fops/pkg/trace"
)

// Primitive names.
const (
	SendName   = "Send"
	VerifyName = "VerifyTM"
	PromptName = "Prompt"
)

// DefaultPollInterval is how often a waiting verification re-reads telemetry.
const DefaultPollInterval = 250 * time.Millisecond

var routers = map[string]dsl.Router{
	SendName: {
		Primitive: SendName,
		Allowed: dsl.Allow("Delay", "Tolerance", "OnFailure", "PromptUser", "Confirm",
			"Notify", "Retries", "Timeout", "PromptFailure", "HandleError"),
	},
	VerifyName: {
		Primitive: VerifyName,
		Allowed: dsl.Allow("IgnoreCase", "Retries", "Tolerance", "ValueFormat", "Wait",
			"Timeout", "Delay", "OnFalse", "OnTrue", "PromptUser", "OnFailure", "PromptFailure"),
	},
	PromptName: {
		Primitive: PromptName,
		Allowed:   dsl.Allow("Type", "Timeout"),
	},
}

// Result describes a finished primitive call. It is returned even when the
// call fails.
type Result struct {
	Primitive     string
	Subject       string
	Value         any
	Outcome       resilience.Outcome
	Attempts      int
	CorrelationID string
	Elapsed       time.Duration
}

// Skipped reports whether the operator skipped the call.
func (r *Result) Skipped() bool { return r.Outcome == resilience.OutcomeSkipped }

type noResult struct{}

func (noResult) String() string { return "NoResult" }

// MarshalJSON encodes the sentinel as null so audit rows stay plain.
func (noResult) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// NoResult is the Value of a call the operator skipped.
var NoResult any = noResult{}

// Runtime executes primitives against a system under test.
type Runtime struct {
	system  sut.System
	tracer  *trace.Tracer
	decider resilience.Decider
	askers  []resilience.Asker
	metrics *telemetry.PrimitiveMetrics
	logger  *slog.Logger
	spans   oteltrace.Tracer
	poll    time.Duration
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithTracer instruments every primitive body with t.
func WithTracer(t *trace.Tracer) Option {
	return func(r *Runtime) {
		r.tracer = t
	}
}

// WithDecider sets who answers failed attempts. Without one, failures that
// would prompt are cancelled.
func WithDecider(d resilience.Decider) Option {
	return func(r *Runtime) {
		r.decider = d
	}
}

// WithOperator adds an operator channel for Prompt and Confirm questions.
// Channels are tried in the order they are added.
func WithOperator(a resilience.Asker) Option {
	return func(r *Runtime) {
		if a != nil {
			r.askers = append(r.askers, a)
		}
	}
}

// WithMetrics records primitive metrics into m.
func WithMetrics(m *telemetry.PrimitiveMetrics) Option {
	return func(r *Runtime) {
		r.metrics = m
	}
}

// WithLogger sets the runtime logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithPollInterval sets how often waiting verifications re-read telemetry.
func WithPollInterval(d time.Duration) Option {
	return func(r *Runtime) {
		if d > 0 {
			r.poll = d
		}
	}
}

// New creates a Runtime bound to system.
func New(system sut.System, opts ...Option) (*Runtime, error) {
	if system == nil {
		return nil, ferrors.New(ferrors.CodeInternal, "system under test is required", nil)
	}
	r := &Runtime{
		system: system,
		logger: slog.Default(),
		spans:  otel.Tracer("fops/primitives"),
		poll:   DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Call runs the named primitive.
func (r *Runtime) Call(ctx context.Context, primitive string, subject any, mods dsl.Mods, params dsl.Params) (*Result, error) {
	switch primitive {
	case SendName:
		return r.Send(ctx, subject, mods, params)
	case VerifyName:
		return r.VerifyTM(ctx, subject, mods, params)
	case PromptName:
		return r.Prompt(ctx, subject, mods, params)
	}
	return &Result{Primitive: primitive, Outcome: resilience.OutcomeFailed},
		ferrors.New(ferrors.CodeInternal, "unknown primitive: "+primitive, nil).WithContext("primitive", primitive)
}

// Check validates the arguments of a call without running it: modifiers
// against the primitive's allow-list, the VerifyTM conditions, the Send
// command and the Prompt message.
func Check(primitive string, subject any, mods dsl.Mods, params dsl.Params) error {
	router, ok := routers[primitive]
	if !ok {
		return ferrors.New(ferrors.CodeInternal, "unknown primitive: "+primitive, nil).WithContext("primitive", primitive)
	}
	call, err := router.Route(subject, mods, params)
	if err != nil {
		return err
	}
	switch primitive {
	case VerifyName:
		_, err = dsl.NormalizeConditions(call.Spec)
	case SendName:
		if _, err = commandOf(call); err != nil {
			return err
		}
		if _, err = argsOf(call); err != nil {
			return err
		}
		if raw, ok := call.Param("verify"); ok && raw != nil {
			_, err = dsl.NormalizeConditions(raw)
		}
	case PromptName:
		_, err = messageOf(call)
	}
	return err
}

// Send sends a command to the system under test. The command is the subject
// or the "command" parameter.
func (r *Runtime) Send(ctx context.Context, subject any, mods dsl.Mods, params dsl.Params) (*Result, error) {
	return r.invoke(ctx, routers[SendName], subject, mods, params, r.sendBody())
}

// VerifyTM checks telemetry against one condition, a list of conditions or
// a boolean expression.
func (r *Runtime) VerifyTM(ctx context.Context, subject any, mods dsl.Mods, params dsl.Params) (*Result, error) {
	return r.invoke(ctx, routers[VerifyName], subject, mods, params, r.verifyBody())
}

// Prompt asks the operator a question and returns the answer.
func (r *Runtime) Prompt(ctx context.Context, subject any, mods dsl.Mods, params dsl.Params) (*Result, error) {
	return r.invoke(ctx, routers[PromptName], subject, mods, params, r.promptBody())
}

func (r *Runtime) invoke(ctx context.Context, router dsl.Router, subject any, mods dsl.Mods, params dsl.Params, body trace.Func) (*Result, error) {
	res := &Result{Primitive: router.Primitive}
	if subject != nil {
		res.Subject = fmt.Sprint(subject)
	}

	call, err := router.Route(subject, mods, params)
	if err != nil {
		res.Outcome = resilience.OutcomeFailed
		r.metrics.RecordError(ctx, router.Primitive, err)
		r.logger.ErrorContext(ctx, "primitive rejected",
			slog.String("primitive", router.Primitive),
			slog.String("error", err.Error()))
		return res, err
	}

	ctx, span := r.spans.Start(ctx, "fops."+router.Primitive,
		oteltrace.WithAttributes(telemetry.PrimitiveAttributes(router.Primitive, "", 0, res.Subject)...))
	defer span.End()

	loop := resilience.NewLoop(router.Primitive, r.decider).
		WithPrompt(call.Mods.PromptFailure).
		WithHandleError(call.Mods.HandleError).
		WithOptions(resilience.OptionsFor(call.Mods.OnFailure)).
		WithMetrics(r.metrics).
		WithLogger(r.logger)
	if call.Overrides.IsSet("Retries") {
		loop = loop.WithMaxAttempts(call.Mods.Retries + 1)
	}

	traced := r.tracer.Wrap(router.Primitive, body)
	rep, err := loop.Run(ctx, func(actx context.Context) (any, error) {
		return traced(actx, call)
	})

	res.Value = rep.Value
	if rep.Outcome == resilience.OutcomeSkipped {
		res.Value = NoResult
	}
	res.Outcome = rep.Outcome
	res.Attempts = rep.Attempts
	res.CorrelationID = rep.CorrelationID
	res.Elapsed = rep.Elapsed

	span.SetAttributes(telemetry.PrimitiveAttributes(router.Primitive, rep.CorrelationID, rep.Attempts, "")...)
	span.SetAttributes(attribute.String(telemetry.AttrOutcome, string(rep.Outcome)))
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(telemetry.ErrorAttributes(err)...)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

// ask puts a question to the operator channels in order and returns the
// first answer.
func (r *Runtime) ask(ctx context.Context, message string, options []string) (string, error) {
	var last error
	for _, a := range r.askers {
		answer, err := a.Ask(ctx, message, options)
		if err == nil {
			return answer, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
		r.logger.WarnContext(ctx, "operator channel failed, trying next",
			slog.String("error", err.Error()))
		last = err
	}
	if last == nil {
		last = ferrors.New(ferrors.CodeChannelUnavailable, "no operator channel configured", nil).
			WithRecoverable(true)
	}
	return "", last
}

// sleep waits for d unless ctx ends first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
