// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"log/slog"
)

// Asker is the remote side of a decision channel. *prompter.Client
// implements it.
type Asker interface {
	Ask(ctx context.Context, message string, options []string) (string, error)
}

// Channel asks an operator through a remote prompt channel. When a breaker is
// configured, repeated channel failures stop further attempts until the
// breaker cools down, so a missing operator console costs one submit timeout
// instead of one per failure.
type Channel struct {
	asker   Asker
	breaker *CircuitBreaker
	logger  *slog.Logger
}

// ChannelOption configures a Channel decider.
type ChannelOption func(*Channel)

// WithBreaker guards the channel with cb.
func WithBreaker(cb *CircuitBreaker) ChannelOption {
	return func(c *Channel) {
		c.breaker = cb
	}
}

// WithChannelLogger sets the logger.
func WithChannelLogger(logger *slog.Logger) ChannelOption {
	return func(c *Channel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewChannel creates a decider backed by asker.
func NewChannel(asker Asker, opts ...ChannelOption) *Channel {
	c := &Channel{asker: asker, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies the decision source.
func (c *Channel) Name() string { return "channel" }

// Decide implements Decider.
func (c *Channel) Decide(ctx context.Context, f Failure) (Decision, error) {
	var answer string
	ask := func() error {
		var err error
		answer, err = c.asker.Ask(ctx, f.Message(), f.Options)
		return err
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Call(ctx, ask)
	} else {
		err = ask()
	}
	if err != nil {
		return "", err
	}

	d, ok := ParseDecision(answer)
	if !ok {
		c.logger.WarnContext(ctx, "unrecognised answer, retrying", slog.String("answer", answer))
	}
	return d, nil
}
