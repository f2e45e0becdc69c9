// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package trace

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jllopis/fops/pkg/core"
	"github.com/jllopis/fops/pkg/dsl"
)

// Func is the signature of a traced primitive body.
type Func func(ctx context.Context, call *dsl.PrimitiveCall) (any, error)

// Options selects which events a Tracer reports.
type Options struct {
	Lines         bool
	Calls         bool
	Returns       bool
	Exceptions    bool
	CaptureValues bool
	MaxLen        int
}

// DefaultOptions reports every event kind with captured values.
func DefaultOptions() Options {
	return Options{
		Lines:         true,
		Calls:         true,
		Returns:       true,
		Exceptions:    true,
		CaptureValues: true,
		MaxLen:        DefaultMaxLen,
	}
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithOptions replaces the event selection wholesale.
func WithOptions(opts Options) Option {
	return func(t *Tracer) {
		t.opts = opts
	}
}

// WithLines toggles line events.
func WithLines(on bool) Option {
	return func(t *Tracer) { t.opts.Lines = on }
}

// WithCalls toggles call events.
func WithCalls(on bool) Option {
	return func(t *Tracer) { t.opts.Calls = on }
}

// WithReturns toggles return events.
func WithReturns(on bool) Option {
	return func(t *Tracer) { t.opts.Returns = on }
}

// WithExceptions toggles exception events.
func WithExceptions(on bool) Option {
	return func(t *Tracer) { t.opts.Exceptions = on }
}

// WithCaptureValues toggles argument and return value previews.
func WithCaptureValues(on bool) Option {
	return func(t *Tracer) { t.opts.CaptureValues = on }
}

// WithMaxLen bounds rendered previews.
func WithMaxLen(n int) Option {
	return func(t *Tracer) { t.opts.MaxLen = n }
}

// WithLogger sets the logger used to report misbehaving sinks.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Tracer wraps primitive bodies and reports their execution to a Sink.
type Tracer struct {
	sink   Sink
	opts   Options
	logger *slog.Logger
}

// New creates a Tracer reporting to sink.
func New(sink Sink, opts ...Option) *Tracer {
	t := &Tracer{
		sink:   sink,
		opts:   DefaultOptions(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Options returns the tracer's event selection.
func (t *Tracer) Options() Options {
	return t.opts
}

type hookKey struct{}

type hook struct {
	tracer *Tracer
	name   string
	id     string
	// line is the last line reported by Step, or the function's entry line.
	line atomic.Int64
}

// Wrap returns fn instrumented under the given display name. An empty name
// uses the function's own name. A nil Tracer or a Tracer without sink returns
// fn unchanged.
func (t *Tracer) Wrap(name string, fn Func) Func {
	if t == nil || t.sink == nil || fn == nil {
		return fn
	}
	rf := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	var (
		id   string
		file string
		line int
	)
	if rf != nil {
		id = funcIdentity(rf.Name())
		file, line = rf.FileLine(rf.Entry())
	}
	if name == "" {
		name = shortName(id)
	}

	return func(ctx context.Context, call *dsl.PrimitiveCall) (result any, err error) {
		h := &hook{tracer: t, name: name, id: id}
		h.line.Store(int64(line))
		ctx = context.WithValue(ctx, hookKey{}, h)

		if t.opts.Calls {
			meta := t.baseMeta(ctx)
			if t.opts.CaptureValues {
				meta[MetaArgsPreview] = SafeRender(call, t.opts.MaxLen)
			}
			t.emit(ctx, Event{Kind: KindCall, Function: name, Line: line, Code: SourceLine(file, line), Meta: meta})
		}

		completed := false
		defer func() {
			if completed {
				return
			}
			r := recover()
			if r == nil {
				// runtime.Goexit
				return
			}
			if t.opts.Exceptions {
				t.emitException(ctx, h, fmt.Sprintf("%T", r), SafeRender(r, t.opts.MaxLen))
			}
			panic(r)
		}()

		result, err = fn(ctx, call)
		completed = true

		if err != nil {
			if t.opts.Exceptions {
				t.emitException(ctx, h, errorType(err), SafeRender(err, t.opts.MaxLen))
			}
			return result, err
		}
		if t.opts.Returns {
			meta := t.baseMeta(ctx)
			if t.opts.CaptureValues {
				meta[MetaReturnValue] = SafeRender(result, t.opts.MaxLen)
			}
			t.emit(ctx, Event{Kind: KindReturn, Function: name, Line: int(h.line.Load()), Code: CodeReturn, Meta: meta})
		}
		return result, nil
	}
}

// Step reports a line event for the caller's current line when the caller is
// the body of the innermost traced call in ctx. Calls from any other frame
// are ignored.
func Step(ctx context.Context) {
	h, _ := ctx.Value(hookKey{}).(*hook)
	if h == nil {
		return
	}
	var pcs [1]uintptr
	if runtime.Callers(2, pcs[:]) == 0 {
		return
	}
	frame, _ := runtime.CallersFrames(pcs[:]).Next()
	if funcIdentity(frame.Function) != h.id {
		return
	}
	h.line.Store(int64(frame.Line))
	if !h.tracer.opts.Lines {
		return
	}
	h.tracer.emit(ctx, Event{
		Kind:     KindLine,
		Function: h.name,
		Line:     frame.Line,
		Code:     SourceLine(frame.File, frame.Line),
		Meta:     h.tracer.baseMeta(ctx),
	})
}

func (t *Tracer) emitException(ctx context.Context, h *hook, typ, msg string) {
	meta := t.baseMeta(ctx)
	meta[MetaExceptionType] = typ
	meta[MetaException] = msg
	t.emit(ctx, Event{Kind: KindException, Function: h.name, Line: int(h.line.Load()), Code: CodeException, Meta: meta})
}

func (t *Tracer) baseMeta(ctx context.Context) map[string]any {
	return map[string]any{
		MetaCorrelationID: core.CorrelationID(ctx),
		MetaAttempt:       core.Attempt(ctx),
	}
}

func (t *Tracer) emit(ctx context.Context, ev Event) {
	ev.Time = time.Now()
	defer func() {
		if r := recover(); r != nil {
			t.logger.WarnContext(ctx, "trace sink panicked",
				slog.String("event", string(ev.Kind)),
				slog.String("function", ev.Function),
				slog.Any("panic", r))
		}
	}()
	t.sink.Emit(ctx, ev)
}

// funcIdentity normalizes runtime function names so a method value and the
// method body it refers to compare equal.
func funcIdentity(name string) string {
	return strings.TrimSuffix(name, "-fm")
}

func shortName(id string) string {
	if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:]
	}
	return id
}

func errorType(err error) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}
