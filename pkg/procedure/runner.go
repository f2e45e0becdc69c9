// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package procedure

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/fops/pkg/dsl"
	"github.com/jllopis/fops/pkg/primitives"
	"github.com/jllopis/fops/pkg/resilience"
)

// Caller runs one primitive call. *primitives.Runtime implements it.
type Caller interface {
	Call(ctx context.Context, primitive string, subject any, mods dsl.Mods, params dsl.Params) (*primitives.Result, error)
}

// StepResult describes one executed step.
type StepResult struct {
	Index         int
	Line          int
	Primitive     string
	Subject       string
	Outcome       resilience.Outcome
	Attempts      int
	CorrelationID string
	Value         any
	Err           error
	Elapsed       time.Duration
}

// Runner executes procedures step by step.
type Runner struct {
	caller Caller
	audit  AuditStore
	logger *slog.Logger
	tracer trace.Tracer
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithAudit records every step into store.
func WithAudit(store AuditStore) RunnerOption {
	return func(r *Runner) {
		r.audit = store
	}
}

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a runner issuing calls through caller.
func NewRunner(caller Caller, opts ...RunnerOption) *Runner {
	r := &Runner{
		caller: caller,
		logger: slog.Default(),
		tracer: otel.Tracer("fops/procedure"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the steps of proc in order. Skipped steps are recorded and the
// run continues; the first step ending in error stops the run and its error
// is returned wrapped with the step position. The results of every executed
// step are returned in both cases.
func (r *Runner) Run(ctx context.Context, proc *Procedure) ([]StepResult, error) {
	if proc == nil {
		return nil, fmt.Errorf("procedure is nil")
	}
	runID := uuid.NewString()
	ctx, span := r.tracer.Start(ctx, "Procedure.Run",
		trace.WithAttributes(
			attribute.String("procedure.name", proc.Name),
			attribute.String("procedure.run_id", runID),
			attribute.Int("procedure.steps", len(proc.Steps)),
		),
	)
	defer span.End()

	logger := r.logger.With(slog.String("procedure", proc.Name), slog.String("run_id", runID))
	logger.InfoContext(ctx, "procedure started", slog.Int("steps", len(proc.Steps)))

	results := make([]StepResult, 0, len(proc.Steps))
	for i, step := range proc.Steps {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return results, err
		}

		started := time.Now()
		stepCtx, stepSpan := r.tracer.Start(ctx, "Procedure.Step",
			trace.WithAttributes(
				attribute.Int("step.index", i+1),
				attribute.String("step.primitive", step.Primitive),
			),
		)
		res, err := r.caller.Call(stepCtx, step.Primitive, step.Subject, step.Mods, step.Params)
		stepSpan.End()

		sr := StepResult{Index: i + 1, Line: step.Line, Primitive: step.Primitive, Err: err, Elapsed: time.Since(started)}
		if res != nil {
			sr.Subject = res.Subject
			sr.Outcome = res.Outcome
			sr.Attempts = res.Attempts
			sr.CorrelationID = res.CorrelationID
			sr.Value = res.Value
		}
		results = append(results, sr)
		r.record(stepCtx, proc, runID, sr, started)

		logger.InfoContext(ctx, "step finished",
			slog.Int("step", sr.Index),
			slog.String("primitive", sr.Primitive),
			slog.String("outcome", string(sr.Outcome)),
			slog.Int("attempts", sr.Attempts))

		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			logger.ErrorContext(ctx, "procedure stopped", slog.Int("step", sr.Index), slog.String("error", err.Error()))
			return results, stepError(i, step, err)
		}
	}
	logger.InfoContext(ctx, "procedure completed")
	return results, nil
}

func (r *Runner) record(ctx context.Context, proc *Procedure, runID string, sr StepResult, started time.Time) {
	if r.audit == nil {
		return
	}
	event := AuditEvent{
		Procedure:     proc.Name,
		RunID:         runID,
		Index:         sr.Index,
		Primitive:     sr.Primitive,
		Subject:       sr.Subject,
		Outcome:       string(sr.Outcome),
		Attempts:      sr.Attempts,
		CorrelationID: sr.CorrelationID,
		Output:        sr.Value,
		StartedAt:     started,
		FinishedAt:    started.Add(sr.Elapsed),
	}
	if sr.Err != nil {
		event.Error = sr.Err.Error()
	}
	if err := r.audit.Record(ctx, event); err != nil {
		r.logger.WarnContext(ctx, "audit record failed", slog.String("error", err.Error()))
	}
}
