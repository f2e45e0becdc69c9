// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package sut

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/jllopis/fops/pkg/dsl"
	ferrors "github.com/jllopis/fops/pkg/errors"
)

// SentCommand records a command accepted by the Simulator.
type SentCommand struct {
	Command string
	Args    []Arg
	At      time.Time
}

// Effect mutates the simulator when a command is sent.
type Effect func(s *Simulator, args []Arg)

// Simulator is an in-memory system under test.
type Simulator struct {
	mu      sync.Mutex
	eng     map[string]any
	raw     map[string]any
	effects map[string]Effect
	faults  map[string]error
	sent    []SentCommand
}

// NewSimulator creates a simulator holding the given engineering values.
func NewSimulator(values map[string]any) *Simulator {
	s := &Simulator{
		eng:     make(map[string]any),
		raw:     make(map[string]any),
		effects: make(map[string]Effect),
		faults:  make(map[string]error),
	}
	maps.Copy(s.eng, values)
	return s
}

// Set stores the engineering value of a telemetry point.
func (s *Simulator) Set(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eng[name] = value
}

// SetRaw stores the raw value of a telemetry point.
func (s *Simulator) SetRaw(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[name] = value
}

// OnCommand registers an effect applied whenever command is sent.
func (s *Simulator) OnCommand(command string, fn Effect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.effects[command] = fn
}

// Fail makes every send of command fail with err. A nil err clears the fault.
func (s *Simulator) Fail(command string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, command)
		return
	}
	s.faults[command] = err
}

// Send implements Commander.
func (s *Simulator) Send(ctx context.Context, command string, args []Arg) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if err, ok := s.faults[command]; ok {
		s.mu.Unlock()
		return err
	}
	s.sent = append(s.sent, SentCommand{Command: command, Args: args, At: time.Now()})
	effect := s.effects[command]
	s.mu.Unlock()

	if effect != nil {
		effect(s, args)
	}
	return nil
}

// Read implements TelemetrySource. RAW reads fall back to the engineering
// value when no raw value is stored.
func (s *Simulator) Read(ctx context.Context, name string, format dsl.ValueFormat) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if format == dsl.FormatRAW {
		if v, ok := s.raw[name]; ok {
			return v, nil
		}
	}
	v, ok := s.eng[name]
	if !ok {
		return nil, ferrors.New(ferrors.CodeExecution, "unknown telemetry point: "+name, nil).
			WithContext("telemetry", name).
			WithRecoverable(true)
	}
	return v, nil
}

// Sent returns the accepted commands in order.
func (s *Simulator) Sent() []SentCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentCommand(nil), s.sent...)
}
