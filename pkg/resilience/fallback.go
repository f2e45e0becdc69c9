// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"log/slog"

	ferrors "github.com/jllopis/fops/pkg/errors"
)

// Fallback tries its deciders in order and returns the first decision that
// does not fail. The usual chain is the remote channel first and the console
// last.
type Fallback struct {
	Deciders []Decider
	Logger   *slog.Logger
}

// NewFallback creates a chained decider.
func NewFallback(deciders ...Decider) *Fallback {
	return &Fallback{Deciders: deciders}
}

// Name identifies the decision source.
func (fb *Fallback) Name() string { return "fallback" }

// Decide implements Decider.
func (fb *Fallback) Decide(ctx context.Context, f Failure) (Decision, error) {
	logger := fb.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	for _, d := range fb.Deciders {
		if d == nil {
			continue
		}
		decision, err := d.Decide(ctx, f)
		if err == nil {
			return decision, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
		logger.WarnContext(ctx, "decision source failed, falling back",
			slog.String("source", sourceName(d)),
			slog.String("error", err.Error()))
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ferrors.New(ferrors.CodeChannelUnavailable, "no decision source configured", nil)
	}
	return "", lastErr
}

func sourceName(d Decider) string {
	if n, ok := d.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "custom"
}
