// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

// Package sut defines how primitives reach the system under test: a
// Commander receives commands and a TelemetrySource serves telemetry points.
package sut

import (
	"context"

	"github.com/jllopis/fops/pkg/dsl"
)

// Arg is one command argument. Options carries per-argument settings such as
// a display radix; they are passed through untouched.
type Arg struct {
	Name    string
	Value   any
	Options map[string]any
}

// Commander sends commands to the system under test.
type Commander interface {
	Send(ctx context.Context, command string, args []Arg) error
}

// TelemetrySource reads telemetry points, engineering-converted or raw.
type TelemetrySource interface {
	Read(ctx context.Context, name string, format dsl.ValueFormat) (any, error)
}

// System is a system under test that accepts commands and serves telemetry.
type System interface {
	Commander
	TelemetrySource
}
