// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

// Package resilience runs primitive bodies under the retry/skip/cancel
// protocol. A failed attempt is put to a Decider; the answer retries the
// body, skips the call or cancels it with the original error.
package resilience

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jllopis/fops/pkg/core"
	ferrors "github.com/jllopis/fops/pkg/errors"
	"github.com/jllopis/fops/pkg/telemetry"
)

// Outcome is the final state of a Run.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeFailed is reported for errors that never entered the protocol.
	OutcomeFailed Outcome = "failed"
)

// AttemptFunc is one execution of a body. ctx carries the correlation id and
// attempt number of the run.
type AttemptFunc func(ctx context.Context) (any, error)

// Report describes a finished Run.
type Report struct {
	Value         any
	Outcome       Outcome
	Attempts      int
	CorrelationID string
	Elapsed       time.Duration
}

// Loop configures the recovery protocol for one primitive. The zero value
// is not usable; start from NewLoop.
type Loop struct {
	// Primitive names the call in logs, metrics and questions.
	Primitive string

	// Decider answers failed attempts.
	Decider Decider

	// MaxAttempts bounds the attempts when > 0. Exhaustion cancels.
	MaxAttempts int

	// Prompt asks for a decision on failure; false makes failures final.
	Prompt bool

	// HandleError enables the protocol; false returns the first error as is.
	HandleError bool

	// Options are the answers offered to the operator.
	Options []string

	Metrics *telemetry.PrimitiveMetrics
	Logger  *slog.Logger
}

// NewLoop returns a loop that prompts through decider on every failure.
func NewLoop(primitive string, decider Decider) Loop {
	return Loop{
		Primitive:   primitive,
		Decider:     decider,
		Prompt:      true,
		HandleError: true,
		Options:     append([]string(nil), DefaultOptions...),
	}
}

// WithMaxAttempts returns a copy bounded to n attempts.
func (l Loop) WithMaxAttempts(n int) Loop {
	l.MaxAttempts = n
	return l
}

// WithPrompt returns a copy with prompting toggled.
func (l Loop) WithPrompt(on bool) Loop {
	l.Prompt = on
	return l
}

// WithHandleError returns a copy with the protocol toggled.
func (l Loop) WithHandleError(on bool) Loop {
	l.HandleError = on
	return l
}

// WithOptions returns a copy offering options.
func (l Loop) WithOptions(options []string) Loop {
	if len(options) > 0 {
		l.Options = options
	}
	return l
}

// WithMetrics returns a copy recording into m.
func (l Loop) WithMetrics(m *telemetry.PrimitiveMetrics) Loop {
	l.Metrics = m
	return l
}

// WithLogger returns a copy logging to logger.
func (l Loop) WithLogger(logger *slog.Logger) Loop {
	l.Logger = logger
	return l
}

// Run executes fn until it succeeds or a decision ends the run.
//
// All attempts share one fresh correlation id; attempts are numbered from 1.
// On success the value is returned. On skip the returned value and error are
// both nil and the report says OutcomeSkipped. On cancel, and whenever the
// protocol does not apply, the error of the last attempt is returned
// unchanged.
func (l Loop) Run(ctx context.Context, fn AttemptFunc) (*Report, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	rep := &Report{CorrelationID: uuid.NewString()}
	finish := func(outcome Outcome, value any, err error) (*Report, error) {
		rep.Outcome = outcome
		rep.Value = value
		rep.Elapsed = time.Since(start)
		l.Metrics.RecordCall(ctx, l.Primitive, string(outcome), rep.Elapsed)
		return rep, err
	}

	for attempt := 1; ; attempt++ {
		actx := core.WithCall(ctx, rep.CorrelationID, attempt)
		rep.Attempts = attempt
		l.Metrics.RecordAttempt(actx, l.Primitive)

		value, err := fn(actx)
		if err == nil {
			if attempt > 1 {
				logger.InfoContext(actx, "primitive recovered", slog.String("primitive", l.Primitive))
			}
			return finish(OutcomeSucceeded, value, nil)
		}
		l.Metrics.RecordError(actx, l.Primitive, err)

		if !l.HandleError || !ferrors.IsRecoverable(err) {
			return finish(OutcomeFailed, nil, err)
		}
		if ctx.Err() != nil {
			return finish(OutcomeCancelled, nil, err)
		}
		if l.MaxAttempts > 0 && attempt >= l.MaxAttempts {
			logger.WarnContext(actx, "retries exhausted",
				slog.String("primitive", l.Primitive),
				slog.Int("max_attempts", l.MaxAttempts),
				slog.String("error", err.Error()))
			return finish(OutcomeCancelled, nil, err)
		}
		if !l.Prompt || l.Decider == nil {
			return finish(OutcomeCancelled, nil, err)
		}

		decision, derr := l.Decider.Decide(actx, Failure{
			Primitive:     l.Primitive,
			Err:           err,
			Attempt:       attempt,
			CorrelationID: rep.CorrelationID,
			Options:       l.Options,
		})
		if derr != nil {
			logger.ErrorContext(actx, "no decision available, cancelling",
				slog.String("primitive", l.Primitive),
				slog.String("error", derr.Error()))
			return finish(OutcomeCancelled, nil, err)
		}
		l.Metrics.RecordDecision(actx, l.Primitive, string(decision), sourceName(l.Decider))
		logger.InfoContext(actx, "recovery decision",
			slog.String("primitive", l.Primitive),
			slog.String("decision", string(decision)),
			slog.String("error", err.Error()))

		switch decision {
		case DecisionSkip:
			return finish(OutcomeSkipped, nil, nil)
		case DecisionCancel:
			return finish(OutcomeCancelled, nil, err)
		}
	}
}
