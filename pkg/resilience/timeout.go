// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"errors"
	"time"

	ferrors "github.com/jllopis/fops/pkg/errors"
)

// WithTimeoutResult runs fn with a deadline of d, passing it a context that is
// cancelled when the deadline passes. A zero d runs fn without a deadline.
// Expiry returns a recoverable CodeTimeout error without waiting for fn.
func WithTimeoutResult(ctx context.Context, d time.Duration, fn func(context.Context) (any, error)) (any, error) {
	if d <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		value any
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := fn(ctx)
		done <- result{value, err}
	}()

	select {
	case <-ctx.Done():
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ctx.Err()
		}
		return nil, ferrors.New(ferrors.CodeTimeout, "operation exceeded timeout", ctx.Err()).
			WithContext("timeout", d.String()).
			WithRecoverable(true)
	case res := <-done:
		return res.value, res.err
	}
}
