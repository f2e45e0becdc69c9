package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

type runIDKey struct{}
type correlationIDKey struct{}
type attemptKey struct{}

// DefaultAttempt is the attempt number reported outside of any retry loop.
const DefaultAttempt = 1

// WithRunID attaches a procedure run id to the context.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run id if present.
func RunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok
}

// EnsureRunID ensures a run id exists in the context.
func EnsureRunID(ctx context.Context) (context.Context, string) {
	if id, ok := RunID(ctx); ok {
		return ctx, id
	}
	id := newRunID()
	return WithRunID(ctx, id), id
}

// WithCorrelationID attaches the correlation id shared by every attempt of one
// resilience-wrapped call. The parent context keeps its own value.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationID returns the ambient correlation id, or "" outside a call.
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

// NewCorrelationID returns a globally unique correlation token.
func NewCorrelationID() string {
	return uuid.NewString()
}

// WithAttempt attaches the current attempt number (1-based).
func WithAttempt(ctx context.Context, attempt int) context.Context {
	return context.WithValue(ctx, attemptKey{}, attempt)
}

// Attempt returns the ambient attempt number, DefaultAttempt when unset.
func Attempt(ctx context.Context) int {
	if ctx == nil {
		return DefaultAttempt
	}
	if n, ok := ctx.Value(attemptKey{}).(int); ok {
		return n
	}
	return DefaultAttempt
}

// WithCall publishes both correlation id and attempt for one attempt.
func WithCall(ctx context.Context, correlationID string, attempt int) context.Context {
	return WithAttempt(WithCorrelationID(ctx, correlationID), attempt)
}

func newRunID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "run-unknown"
	}
	return "run-" + hex.EncodeToString(buf)
}
