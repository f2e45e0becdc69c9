// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides OpenTelemetry integration, structured logging and
// metrics for primitive execution.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"

	ferrors "github.com/jllopis/fops/pkg/errors"
)

// Semantic conventions for fops telemetry.
const (
	// Primitive call attributes
	AttrPrimitive     = "fops.primitive.name"
	AttrCorrelationID = "fops.correlation_id"
	AttrAttempt       = "fops.attempt"
	AttrOutcome       = "fops.primitive.outcome"
	AttrSubject       = "fops.primitive.subject"

	// Recovery attributes
	AttrDecision       = "fops.recovery.decision"
	AttrDecisionSource = "fops.recovery.source"

	// Error attributes
	AttrErrorCode        = "error.code"
	AttrErrorRecoverable = "error.recoverable"

	// Trace event attributes
	AttrTraceEventKind = "fops.trace.kind"
	AttrTraceFunction  = "fops.trace.function"
	AttrTraceLine      = "fops.trace.line"
	AttrTraceCode      = "fops.trace.code"

	// System under test attributes
	AttrCommand   = "fops.sut.command"
	AttrTelemetry = "fops.sut.telemetry"
)

// maxSubjectLen bounds the rendered subject stored on spans.
const maxSubjectLen = 200

// PrimitiveAttributes returns common attributes for primitive spans.
func PrimitiveAttributes(primitive, correlationID string, attempt int, subject string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrPrimitive, primitive),
	}
	if correlationID != "" {
		attrs = append(attrs, attribute.String(AttrCorrelationID, correlationID))
	}
	if attempt > 0 {
		attrs = append(attrs, attribute.Int(AttrAttempt, attempt))
	}
	if subject != "" {
		if len(subject) > maxSubjectLen {
			subject = subject[:maxSubjectLen] + "..."
		}
		attrs = append(attrs, attribute.String(AttrSubject, subject))
	}
	return attrs
}

// DecisionAttributes returns attributes for a recovery decision.
func DecisionAttributes(primitive, decision, source string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrPrimitive, primitive),
		attribute.String(AttrDecision, decision),
	}
	if source != "" {
		attrs = append(attrs, attribute.String(AttrDecisionSource, source))
	}
	return attrs
}

// ErrorAttributes returns attributes describing err. Errors that are not
// FopsError values report code UNKNOWN.
func ErrorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	code := string(ferrors.CodeOf(err))
	if code == "" {
		code = "UNKNOWN"
	}
	return []attribute.KeyValue{
		attribute.String(AttrErrorCode, code),
		attribute.Bool(AttrErrorRecoverable, ferrors.IsRecoverable(err)),
	}
}
