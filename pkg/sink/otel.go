// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/jllopis/fops/pkg/telemetry"
	"github.com/jllopis/fops/pkg/trace"
)

// OTel records events on the active span and counts them per kind.
type OTel struct {
	counter metric.Int64Counter
}

// NewOTel creates an OpenTelemetry sink using the global meter provider.
func NewOTel() (*OTel, error) {
	return NewOTelWithMeter(otel.Meter("fops/trace"))
}

// NewOTelWithMeter creates an OpenTelemetry sink using meter.
func NewOTelWithMeter(meter metric.Meter) (*OTel, error) {
	counter, err := meter.Int64Counter(
		"fops.trace.events",
		metric.WithDescription("Trace events emitted by instrumented primitives"),
	)
	if err != nil {
		return nil, err
	}
	return &OTel{counter: counter}, nil
}

// Emit implements trace.Sink. Events without an active recording span are
// only counted.
func (o *OTel) Emit(ctx context.Context, ev trace.Event) {
	kindAttr := attribute.String(telemetry.AttrTraceEventKind, string(ev.Kind))
	o.counter.Add(ctx, 1, metric.WithAttributes(
		kindAttr,
		attribute.String(telemetry.AttrTraceFunction, ev.Function),
	))

	span := oteltrace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String(telemetry.AttrTraceFunction, ev.Function),
		attribute.Int(telemetry.AttrTraceLine, ev.Line),
		attribute.String(telemetry.AttrTraceCode, ev.Code),
		attribute.String(telemetry.AttrCorrelationID, ev.CorrelationID()),
		attribute.Int(telemetry.AttrAttempt, ev.Attempt()),
	}
	for _, key := range []string{trace.MetaArgsPreview, trace.MetaReturnValue, trace.MetaExceptionType, trace.MetaException} {
		if v, ok := ev.Meta[key]; ok {
			attrs = append(attrs, attribute.String("fops.trace."+key, fmt.Sprint(v)))
		}
	}
	span.AddEvent("fops.trace."+string(ev.Kind), oteltrace.WithAttributes(attrs...))
}
