package trace

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/fops/pkg/core"
	"github.com/jllopis/fops/pkg/dsl"
	ferrors "github.com/jllopis/fops/pkg/errors"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Emit(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func helperWithCheckpoint(ctx context.Context) {
	Step(ctx)
}

func testCall() *dsl.PrimitiveCall {
	return &dsl.PrimitiveCall{Primitive: "Send", Spec: "COMMAND_A", Mods: dsl.Defaults()}
}

func TestWrapReportsCallLinesReturn(t *testing.T) {
	rec := &recorder{}
	tr := New(rec)

	body := func(ctx context.Context, call *dsl.PrimitiveCall) (any, error) {
		Step(ctx)
		helperWithCheckpoint(ctx)
		Step(ctx)
		return 42, nil
	}
	ctx := core.WithCall(context.Background(), "cid-1", 3)
	got, err := tr.Wrap("Send", body)(ctx, testCall())
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	assert.Equal(t, []Kind{KindCall, KindLine, KindLine, KindReturn}, rec.kinds())

	call := rec.events[0]
	assert.Equal(t, "Send", call.Function)
	assert.Contains(t, call.Code, "func(ctx context.Context")
	assert.Contains(t, call.Meta[MetaArgsPreview], "COMMAND_A")

	first, second := rec.events[1], rec.events[2]
	assert.Equal(t, "Step(ctx)", first.Code)
	assert.Equal(t, first.Line+2, second.Line)
	assert.Greater(t, first.Line, call.Line)

	ret := rec.events[3]
	assert.Equal(t, CodeReturn, ret.Code)
	assert.Equal(t, "42", ret.Meta[MetaReturnValue])
	assert.Equal(t, second.Line, ret.Line)

	for _, ev := range rec.events {
		assert.Equal(t, "cid-1", ev.CorrelationID())
		assert.Equal(t, 3, ev.Attempt())
	}
}

func TestWrapReportsErrorWithoutReturn(t *testing.T) {
	rec := &recorder{}
	tr := New(rec)
	cause := ferrors.New(ferrors.CodeInjectedFault, "injected fault", nil)

	_, err := tr.Wrap("Send", func(ctx context.Context, _ *dsl.PrimitiveCall) (any, error) {
		Step(ctx)
		return nil, cause
	})(context.Background(), testCall())

	require.Same(t, cause, err)
	assert.Equal(t, []Kind{KindCall, KindLine, KindException}, rec.kinds())
	exc := rec.events[2]
	assert.Equal(t, CodeException, exc.Code)
	assert.Equal(t, "errors.FopsError", exc.Meta[MetaExceptionType])
	assert.Equal(t, "[INJECTED_FAULT] injected fault", exc.Meta[MetaException])
	assert.Equal(t, rec.events[1].Line, exc.Line)
}

func TestWrapReportsPanicAndRepanics(t *testing.T) {
	rec := &recorder{}
	tr := New(rec)

	wrapped := tr.Wrap("Boom", func(context.Context, *dsl.PrimitiveCall) (any, error) {
		panic("boom")
	})
	assert.PanicsWithValue(t, "boom", func() {
		_, _ = wrapped(context.Background(), testCall())
	})
	assert.Equal(t, []Kind{KindCall, KindException}, rec.kinds())
	assert.Equal(t, "string", rec.events[1].Meta[MetaExceptionType])
	assert.NotZero(t, rec.events[1].Line)
	assert.Equal(t, rec.events[0].Line, rec.events[1].Line, "no Step ran, so the entry line is reported")
}

func TestReturnLineTrackedWithLinesDisabled(t *testing.T) {
	rec := &recorder{}
	tr := New(rec, WithLines(false), WithCalls(false))

	var want int
	_, err := tr.Wrap("Send", func(ctx context.Context, _ *dsl.PrimitiveCall) (any, error) {
		_, _, want, _ = runtime.Caller(0)
		Step(ctx)
		return nil, nil
	})(context.Background(), testCall())
	require.NoError(t, err)

	require.Equal(t, []Kind{KindReturn}, rec.kinds())
	assert.Equal(t, want+1, rec.events[0].Line)
}

func TestWrapRespectsOptions(t *testing.T) {
	rec := &recorder{}
	tr := New(rec, WithLines(false), WithCalls(false), WithCaptureValues(false))

	_, err := tr.Wrap("", func(ctx context.Context, _ *dsl.PrimitiveCall) (any, error) {
		Step(ctx)
		return "ok", nil
	})(context.Background(), testCall())
	require.NoError(t, err)

	require.Equal(t, []Kind{KindReturn}, rec.kinds())
	assert.NotContains(t, rec.events[0].Meta, MetaReturnValue)
	assert.Contains(t, rec.events[0].Function, "TestWrapRespectsOptions")
}

func TestNestedWrapUsesInnermostHook(t *testing.T) {
	rec := &recorder{}
	tr := New(rec, WithCalls(false), WithReturns(false))

	inner := tr.Wrap("Inner", func(ctx context.Context, _ *dsl.PrimitiveCall) (any, error) {
		Step(ctx)
		return nil, nil
	})
	outer := tr.Wrap("Outer", func(ctx context.Context, call *dsl.PrimitiveCall) (any, error) {
		Step(ctx)
		_, err := inner(ctx, call)
		Step(ctx)
		return nil, err
	})
	_, err := outer(context.Background(), testCall())
	require.NoError(t, err)

	names := make([]string, 0, len(rec.events))
	for _, ev := range rec.events {
		names = append(names, ev.Function)
	}
	assert.Equal(t, []string{"Outer", "Inner", "Outer"}, names)
}

func TestStepWithoutHookIsNoop(t *testing.T) {
	assert.NotPanics(t, func() { Step(context.Background()) })
}

func TestNilTracerReturnsBody(t *testing.T) {
	var tr *Tracer
	called := false
	fn := tr.Wrap("x", func(context.Context, *dsl.PrimitiveCall) (any, error) {
		called = true
		return nil, nil
	})
	_, _ = fn(context.Background(), nil)
	assert.True(t, called)
}

func TestPanickingSinkDoesNotBreakBody(t *testing.T) {
	tr := New(SinkFunc(func(string, int, string, Kind, map[string]any) { panic("sink down") }))
	got, err := tr.Wrap("x", func(context.Context, *dsl.PrimitiveCall) (any, error) {
		return 1, nil
	})(context.Background(), testCall())
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestSinkFuncReceivesFields(t *testing.T) {
	var gotKind Kind
	var gotCode string
	sink := SinkFunc(func(fn string, line int, code string, kind Kind, meta map[string]any) {
		gotKind, gotCode = kind, code
	})
	sink.Emit(context.Background(), Event{Kind: KindReturn, Code: CodeReturn})
	assert.Equal(t, KindReturn, gotKind)
	assert.Equal(t, CodeReturn, gotCode)
}

func TestConcurrentWrapsDoNotShareHooks(t *testing.T) {
	rec := &recorder{}
	tr := New(rec, WithCalls(false), WithReturns(false))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := core.WithCall(context.Background(), "cid", i+1)
			_, _ = tr.Wrap("W", func(ctx context.Context, _ *dsl.PrimitiveCall) (any, error) {
				Step(ctx)
				return nil, errors.New("x")
			})(ctx, testCall())
		}(i)
	}
	wg.Wait()

	attempts := map[int]int{}
	for _, ev := range rec.events {
		attempts[ev.Attempt()]++
	}
	assert.Len(t, attempts, 8)
	for _, n := range attempts {
		assert.Equal(t, 2, n)
	}
}
