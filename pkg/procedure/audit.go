// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package procedure

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// AuditEvent is the persisted record of one executed step.
type AuditEvent struct {
	Procedure     string
	RunID         string
	Index         int
	Primitive     string
	Subject       string
	Outcome       string
	Attempts      int
	CorrelationID string
	Output        any
	Error         string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// AuditStore persists step records.
type AuditStore interface {
	Record(ctx context.Context, event AuditEvent) error
	List(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)
}

// AuditFilter limits audit queries.
type AuditFilter struct {
	Procedure string
	RunID     string
	Outcome   string
	Limit     int
}

func (f AuditFilter) match(ev AuditEvent) bool {
	return (f.Procedure == "" || ev.Procedure == f.Procedure) &&
		(f.RunID == "" || ev.RunID == f.RunID) &&
		(f.Outcome == "" || ev.Outcome == f.Outcome)
}

// MemoryAuditStore keeps audit events in memory.
type MemoryAuditStore struct {
	mu     sync.Mutex
	events []AuditEvent
}

// NewMemoryAuditStore returns an in-memory audit store.
func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

// Record appends an audit event.
func (s *MemoryAuditStore) Record(_ context.Context, event AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// List returns filtered audit events in recording order.
func (s *MemoryAuditStore) List(_ context.Context, filter AuditFilter) ([]AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditEvent, 0, len(s.events))
	for _, ev := range s.events {
		if !filter.match(ev) {
			continue
		}
		out = append(out, ev)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// encodeOutput marshals a step value to JSON. Values that cannot be encoded
// are stored as null.
func encodeOutput(output any) []byte {
	if output == nil {
		return []byte("null")
	}
	b, err := json.Marshal(output)
	if err != nil {
		return []byte("null")
	}
	return b
}

func decodeOutput(raw string) any {
	if raw == "" {
		return nil
	}
	var out any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
