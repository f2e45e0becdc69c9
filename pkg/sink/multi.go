// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"context"

	"github.com/jllopis/fops/pkg/trace"
)

// Multi fans every event out to its sinks in order.
type Multi []trace.Sink

// NewMulti drops nil sinks and returns the fan-out of the rest.
func NewMulti(sinks ...trace.Sink) Multi {
	out := make(Multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Emit implements trace.Sink.
func (m Multi) Emit(ctx context.Context, ev trace.Event) {
	for _, s := range m {
		s.Emit(ctx, ev)
	}
}

// Func adapts the five-argument function form to a trace.Sink.
func Func(fn func(function string, line int, code string, kind trace.Kind, meta map[string]any)) trace.Sink {
	return trace.SinkFunc(fn)
}
