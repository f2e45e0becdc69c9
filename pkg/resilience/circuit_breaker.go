// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"sync"
	"time"

	ferrors "github.com/jllopis/fops/pkg/errors"
)

// CircuitBreakerState represents the state of a circuit breaker.
type CircuitBreakerState string

const (
	// StateClosed lets every call through.
	StateClosed CircuitBreakerState = "closed"

	// StateOpen rejects calls without running them.
	StateOpen CircuitBreakerState = "open"

	// StateHalfOpen lets a probe call through after the cool-down.
	StateHalfOpen CircuitBreakerState = "half-open"
)

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int

	// Cooldown is how long the circuit stays open before a probe is allowed.
	Cooldown time.Duration

	// Name identifies the breaker in errors and logs.
	Name string

	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

// CircuitBreaker stops calling a failing dependency for a while.
type CircuitBreaker struct {
	config   CircuitBreakerConfig
	state    CircuitBreakerState
	failures int
	openedAt time.Time
	mu       sync.Mutex
}

// NewCircuitBreaker creates a circuit breaker with the given config.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = 1
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}
	if config.Name == "" {
		config.Name = "prompt_channel"
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &CircuitBreaker{config: config, state: StateClosed}
}

// Call runs fn unless the circuit is open. A failure in half-open state
// reopens the circuit at once; a success closes it.
func (cb *CircuitBreaker) Call(_ context.Context, fn func() error) error {
	cb.mu.Lock()
	if cb.state == StateOpen && cb.config.Now().Sub(cb.openedAt) >= cb.config.Cooldown {
		cb.state = StateHalfOpen
	}
	if cb.state == StateOpen {
		cb.mu.Unlock()
		return ferrors.New(ferrors.CodeChannelUnavailable, "circuit breaker open", nil).
			WithContext("breaker", cb.config.Name).
			WithRecoverable(true)
	}
	cb.mu.Unlock()

	// fn may block on an operator for a long time; it runs unlocked.
	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err == nil {
		cb.state = StateClosed
		cb.failures = 0
		return nil
	}
	cb.failures++
	if cb.state == StateHalfOpen || cb.failures >= cb.config.FailureThreshold {
		cb.state = StateOpen
		cb.openedAt = cb.config.Now()
		cb.failures = 0
	}
	return err
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
}
