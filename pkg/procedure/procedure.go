// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

// Package procedure loads flight operations procedures from YAML or JSON and
// runs their steps in order through the primitives runtime.
package procedure

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jllopis/fops/pkg/dsl"
	"github.com/jllopis/fops/pkg/primitives"
	"github.com/jllopis/fops/pkg/sut"
)

// Step keywords naming the primitive of a step.
const (
	KeySend   = "send"
	KeyVerify = "verify"
	KeyPrompt = "prompt"
)

// Procedure is an ordered list of primitive calls plus the optional
// simulator state it runs against.
type Procedure struct {
	Name      string
	Simulator SimulatorSpec
	Steps     []Step
}

// SimulatorSpec seeds a sut.Simulator.
type SimulatorSpec struct {
	Telemetry map[string]any            `json:"telemetry" yaml:"telemetry"`
	Raw       map[string]any            `json:"raw" yaml:"raw"`
	Effects   map[string]map[string]any `json:"effects" yaml:"effects"`
	Faults    map[string]string         `json:"faults" yaml:"faults"`
}

// Step is one primitive call.
type Step struct {
	Primitive string
	Subject   any
	Mods      dsl.Mods
	Params    dsl.Params
	// Line is the source line of the step in YAML input, 0 otherwise.
	Line int
}

func (s Step) String() string {
	return fmt.Sprintf("%s(%v)", s.Primitive, s.Subject)
}

// Validate checks every step without running it.
func (p *Procedure) Validate() error {
	if p == nil {
		return fmt.Errorf("procedure is nil")
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("procedure has no steps")
	}
	var errs []error
	for i, step := range p.Steps {
		if err := primitives.Check(step.Primitive, step.Subject, step.Mods, step.Params); err != nil {
			errs = append(errs, stepError(i, step, err))
		}
	}
	return errors.Join(errs...)
}

// NewSimulator builds the simulator described by the procedure.
func (p *Procedure) NewSimulator() *sut.Simulator {
	sim := sut.NewSimulator(p.Simulator.Telemetry)
	for name, v := range p.Simulator.Raw {
		sim.SetRaw(name, v)
	}
	for command, values := range p.Simulator.Effects {
		sim.OnCommand(command, func(s *sut.Simulator, _ []sut.Arg) {
			for name, v := range values {
				s.Set(name, v)
			}
		})
	}
	for command, msg := range p.Simulator.Faults {
		sim.Fail(command, errors.New(msg))
	}
	return sim
}

// stepFromMap builds a Step from a decoded step mapping. The send, prompt or
// verify key names the primitive; a send step may also carry verify as a
// parameter. The remaining keys are split into modifiers and parameters.
func stepFromMap(raw map[string]any) (Step, error) {
	kw := make(map[string]any, len(raw))
	for k, v := range raw {
		kw[k] = v
	}

	var step Step
	switch {
	case has(kw, KeySend):
		step.Primitive = primitives.SendName
		step.Subject = kw[KeySend]
		delete(kw, KeySend)
	case has(kw, KeyPrompt):
		step.Primitive = primitives.PromptName
		step.Subject = kw[KeyPrompt]
		delete(kw, KeyPrompt)
	case has(kw, KeyVerify):
		step.Primitive = primitives.VerifyName
		step.Subject = kw[KeyVerify]
		delete(kw, KeyVerify)
	default:
		return Step{}, fmt.Errorf("step needs one of %s, %s or %s", KeySend, KeyVerify, KeyPrompt)
	}

	subject, err := subjectOf(step.Subject)
	if err != nil {
		return Step{}, err
	}
	step.Subject = subject
	step.Mods, step.Params = dsl.SplitKeywords(kw)
	if v, ok := step.Params[KeyVerify]; ok {
		if step.Params[KeyVerify], err = subjectOf(v); err != nil {
			return Step{}, err
		}
	}
	return step, nil
}

func has(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

// subjectOf turns {and: [...]} and {or: [...]} mappings into boolean
// expressions, recursively. Other values are returned unchanged.
func subjectOf(v any) (any, error) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return v, nil
	}
	for k, items := range m {
		var combine func(...any) (*dsl.BooleanExpr, error)
		switch strings.ToLower(k) {
		case "and":
			combine = dsl.And
		case "or":
			combine = dsl.Or
		default:
			return v, nil
		}
		list, ok := items.([]any)
		if !ok {
			return nil, fmt.Errorf("%s expects a list of conditions", k)
		}
		children := make([]any, len(list))
		for i, item := range list {
			child, err := subjectOf(item)
			if err != nil {
				return nil, err
			}
			children[i] = child
		}
		return combine(children...)
	}
	return v, nil
}

func stepError(i int, step Step, err error) error {
	if step.Line > 0 {
		return fmt.Errorf("step %d (%s, line %d): %w", i+1, step.Primitive, step.Line, err)
	}
	return fmt.Errorf("step %d (%s): %w", i+1, step.Primitive, err)
}
