// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

// Package trace instruments primitive bodies and reports call, line, return
// and exception events to a Sink.
//
// A wrapped body runs with a hook stored in its context. The hook is keyed by
// the identity of the wrapped function, so line checkpoints placed with Step
// only report when they execute in that function's own frame. Checkpoints in
// helpers called by the body are ignored.
package trace

import (
	"context"
	"time"
)

// Kind names a trace event.
type Kind string

const (
	KindCall      Kind = "call"
	KindLine      Kind = "line"
	KindReturn    Kind = "return"
	KindException Kind = "exception"
)

// Metadata keys attached to events.
const (
	MetaCorrelationID = "corr_id"
	MetaAttempt       = "attempt"
	MetaArgsPreview   = "args_preview"
	MetaReturnValue   = "return_value"
	MetaExceptionType = "exception_type"
	MetaException     = "exception"
)

// Code placeholders for events that have no source line of their own.
const (
	CodeReturn    = "<return>"
	CodeException = "<exception>"
)

// Event is one observation of a traced body.
type Event struct {
	Kind     Kind
	Function string
	Line     int
	Code     string
	Meta     map[string]any
	Time     time.Time
}

// CorrelationID returns the corr_id metadata of the event, or "".
func (e Event) CorrelationID() string {
	s, _ := e.Meta[MetaCorrelationID].(string)
	return s
}

// Attempt returns the attempt metadata of the event, or 0.
func (e Event) Attempt() int {
	n, _ := e.Meta[MetaAttempt].(int)
	return n
}

// Sink receives trace events. Implementations must not block for long and
// must not panic; failures are theirs to log.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(function string, line int, code string, kind Kind, meta map[string]any)

// Emit calls f.
func (f SinkFunc) Emit(_ context.Context, ev Event) {
	f(ev.Function, ev.Line, ev.Code, ev.Kind, ev.Meta)
}
