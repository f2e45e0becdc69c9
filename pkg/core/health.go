// SPDX-License-Identifier: Apache-2.0
// Package core holds the ambient state shared by fops components: run and
// correlation ids carried in the context, and component health.
package core

import (
	"context"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	// HealthHealthy indicates the component is fully operational.
	HealthHealthy HealthStatus = "HEALTHY"

	// HealthDegraded indicates the component works but needs attention.
	HealthDegraded HealthStatus = "DEGRADED"

	// HealthUnhealthy indicates the component is not operational.
	HealthUnhealthy HealthStatus = "UNHEALTHY"
)

// HealthResult represents the result of a health check.
type HealthResult struct {
	Status    HealthStatus `json:"status"`
	Component string       `json:"component"`
	Message   string       `json:"message,omitempty"`
	LastCheck time.Time    `json:"last_check"`
}

// HealthCheckFunc checks one component.
type HealthCheckFunc func(ctx context.Context) HealthResult

// Health aggregates component checks.
type Health struct {
	mu       sync.RWMutex
	checkers map[string]HealthCheckFunc
}

// NewHealth creates an empty registry.
func NewHealth() *Health {
	return &Health{checkers: make(map[string]HealthCheckFunc)}
}

// Register adds or replaces the check of a component.
func (h *Health) Register(name string, fn HealthCheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = fn
}

// CheckAll runs every check in name order. The overall status is the worst
// individual status; an empty registry is healthy.
func (h *Health) CheckAll(ctx context.Context) ([]HealthResult, HealthStatus) {
	h.mu.RLock()
	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	checkers := make(map[string]HealthCheckFunc, len(h.checkers))
	for name, fn := range h.checkers {
		checkers[name] = fn
	}
	h.mu.RUnlock()
	sort.Strings(names)

	overall := HealthHealthy
	results := make([]HealthResult, 0, len(names))
	for _, name := range names {
		result := checkers[name](ctx)
		result.Component = name
		if result.LastCheck.IsZero() {
			result.LastCheck = time.Now()
		}
		results = append(results, result)

		switch result.Status {
		case HealthUnhealthy:
			overall = HealthUnhealthy
		case HealthDegraded:
			if overall == HealthHealthy {
				overall = HealthDegraded
			}
		}
	}
	return results, overall
}
