// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

// Package sink provides trace.Sink implementations: console, HTTP, OpenTelemetry,
// SQLite and fan-out.
package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/jllopis/fops/pkg/trace"
)

// Console writes one human-readable line per event.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	colors map[trace.Kind]*color.Color
}

// ConsoleOption configures a Console sink.
type ConsoleOption func(*Console)

// WithWriter sets the destination writer. Defaults to stdout.
func WithWriter(w io.Writer) ConsoleOption {
	return func(c *Console) {
		if w != nil {
			c.out = w
		}
	}
}

// WithColor enables or disables ANSI colours for this sink.
func WithColor(enabled bool) ConsoleOption {
	return func(c *Console) {
		for _, col := range c.colors {
			if enabled {
				col.EnableColor()
			} else {
				col.DisableColor()
			}
		}
	}
}

// NewConsole creates a console sink.
func NewConsole(opts ...ConsoleOption) *Console {
	c := &Console{
		out: os.Stdout,
		colors: map[trace.Kind]*color.Color{
			trace.KindCall:      color.New(color.FgCyan, color.Bold),
			trace.KindLine:      color.New(color.Faint),
			trace.KindReturn:    color.New(color.FgGreen),
			trace.KindException: color.New(color.FgRed, color.Bold),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Emit implements trace.Sink.
func (c *Console) Emit(_ context.Context, ev trace.Event) {
	line := Format(ev)
	if col, ok := c.colors[ev.Kind]; ok {
		line = col.Sprint(line)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.out, line)
}

// Format renders ev as
//
//	[cid#att] EVENT fn:line code | args=.. | ret=.. | exc=T: msg
//
// Sections without data are omitted.
func Format(ev trace.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s#%d] %-9s %s:%d %s",
		ev.CorrelationID(), ev.Attempt(), strings.ToUpper(string(ev.Kind)), ev.Function, ev.Line, ev.Code)
	if v, ok := ev.Meta[trace.MetaArgsPreview]; ok {
		fmt.Fprintf(&b, " | args=%v", v)
	}
	if v, ok := ev.Meta[trace.MetaReturnValue]; ok {
		fmt.Fprintf(&b, " | ret=%v", v)
	}
	if typ, ok := ev.Meta[trace.MetaExceptionType]; ok {
		fmt.Fprintf(&b, " | exc=%v: %v", typ, ev.Meta[trace.MetaException])
	}
	return b.String()
}
