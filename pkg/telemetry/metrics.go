// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Primitive outcomes reported by RecordCall.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeSkipped   = "skipped"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// PrimitiveMetrics tracks primitive calls, attempts, recovery decisions and
// errors.
type PrimitiveMetrics struct {
	// callCounter counts finished calls by primitive and outcome
	callCounter metric.Int64Counter

	// attemptCounter counts every execution of a primitive body
	attemptCounter metric.Int64Counter

	// decisionCounter counts recovery decisions by answer and source
	decisionCounter metric.Int64Counter

	// errorCounter counts failures by code
	errorCounter metric.Int64Counter

	duration metric.Float64Histogram
}

// NewPrimitiveMetrics creates primitive metrics on the global meter provider.
func NewPrimitiveMetrics() (*PrimitiveMetrics, error) {
	return NewPrimitiveMetricsWithMeter(otel.Meter("fops/primitives"))
}

// NewPrimitiveMetricsWithMeter creates primitive metrics on meter.
func NewPrimitiveMetricsWithMeter(meter metric.Meter) (*PrimitiveMetrics, error) {
	callCounter, err := meter.Int64Counter(
		"fops.primitive.calls",
		metric.WithDescription("Finished primitive calls by primitive and outcome"),
	)
	if err != nil {
		return nil, err
	}

	attemptCounter, err := meter.Int64Counter(
		"fops.primitive.attempts",
		metric.WithDescription("Primitive body executions, including retries"),
	)
	if err != nil {
		return nil, err
	}

	decisionCounter, err := meter.Int64Counter(
		"fops.recovery.decisions",
		metric.WithDescription("Recovery decisions by answer and source"),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"fops.errors.total",
		metric.WithDescription("Primitive failures by code"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"fops.primitive.duration_ms",
		metric.WithDescription("Wall time of primitive calls including recovery"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &PrimitiveMetrics{
		callCounter:     callCounter,
		attemptCounter:  attemptCounter,
		decisionCounter: decisionCounter,
		errorCounter:    errorCounter,
		duration:        duration,
	}, nil
}

// RecordCall records a finished primitive call.
func (pm *PrimitiveMetrics) RecordCall(ctx context.Context, primitive, outcome string, elapsed time.Duration) {
	if pm == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrPrimitive, primitive),
		attribute.String(AttrOutcome, outcome),
	)
	pm.callCounter.Add(ctx, 1, attrs)
	pm.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
}

// RecordAttempt records one execution of a primitive body.
func (pm *PrimitiveMetrics) RecordAttempt(ctx context.Context, primitive string) {
	if pm == nil {
		return
	}
	pm.attemptCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrPrimitive, primitive)))
}

// RecordDecision records a recovery decision and where it came from.
func (pm *PrimitiveMetrics) RecordDecision(ctx context.Context, primitive, decision, source string) {
	if pm == nil {
		return
	}
	pm.decisionCounter.Add(ctx, 1, metric.WithAttributes(DecisionAttributes(primitive, decision, source)...))
}

// RecordError records a failed attempt.
func (pm *PrimitiveMetrics) RecordError(ctx context.Context, primitive string, err error) {
	if pm == nil || err == nil {
		return
	}
	attrs := append(ErrorAttributes(err), attribute.String(AttrPrimitive, primitive))
	pm.errorCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}
