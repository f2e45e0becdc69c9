// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

// Package dsl implements the condition and modifier language used by
// primitive calls: typed enums, immutable Modifiers with scoped overrides,
// conditions, boolean expressions and the router that turns an invocation
// into a PrimitiveCall.
package dsl

import (
	"fmt"
	"strings"

	ferrors "github.com/jllopis/fops/pkg/errors"
)

// Operator is a comparison operator between a telemetry value and a reference.
type Operator string

const (
	OpEQ  Operator = "eq"
	OpNEQ Operator = "neq"
	OpGT  Operator = "gt"
	OpGE  Operator = "ge"
	OpLT  Operator = "lt"
	OpLE  Operator = "le"
	// OpBW holds when actual AND reference is non-zero.
	OpBW Operator = "bw"
	// OpNBW holds when actual AND reference is zero.
	OpNBW Operator = "nbw"
)

var knownOperators = map[string]Operator{
	"eq": OpEQ, "neq": OpNEQ, "gt": OpGT, "ge": OpGE,
	"lt": OpLT, "le": OpLE, "bw": OpBW, "nbw": OpNBW,
}

// ParseOperator accepts an Operator or its case-insensitive name.
func ParseOperator(v any) (Operator, error) {
	switch op := v.(type) {
	case Operator:
		if _, ok := knownOperators[string(op)]; ok {
			return op, nil
		}
	case string:
		if known, ok := knownOperators[strings.ToLower(op)]; ok {
			return known, nil
		}
	}
	return "", ferrors.Validation(ferrors.CodeUnknownOperator, fmt.Sprintf("unknown operator: %#v", v)).
		WithContext("operator", v)
}

func (o Operator) String() string { return string(o) }

// ValueFormat selects engineering or raw telemetry values.
type ValueFormat string

const (
	FormatENG ValueFormat = "ENG"
	FormatRAW ValueFormat = "RAW"
)

// ParseValueFormat accepts a ValueFormat or its case-insensitive name.
func ParseValueFormat(v any) (ValueFormat, error) {
	var s string
	switch f := v.(type) {
	case ValueFormat:
		s = string(f)
	case string:
		s = f
	default:
		return "", ferrors.Validation(ferrors.CodeUnknownValueFormat, fmt.Sprintf("unknown ValueFormat: %#v", v))
	}
	switch strings.ToUpper(s) {
	case string(FormatENG):
		return FormatENG, nil
	case string(FormatRAW):
		return FormatRAW, nil
	}
	return "", ferrors.Validation(ferrors.CodeUnknownValueFormat, fmt.Sprintf("unknown ValueFormat: %#v", v))
}

// Action is a recovery action named by OnTrue, OnFalse and OnFailure.
type Action uint8

const (
	ActionNoAction Action = iota + 1
	ActionAbort
	ActionSkip
	ActionCancel
	ActionRepeat
	ActionRecheck
	ActionResend
	ActionResume
	ActionHandle
)

var actionNames = [...]string{
	ActionNoAction: "NOACTION",
	ActionAbort:    "ABORT",
	ActionSkip:     "SKIP",
	ActionCancel:   "CANCEL",
	ActionRepeat:   "REPEAT",
	ActionRecheck:  "RECHECK",
	ActionResend:   "RESEND",
	ActionResume:   "RESUME",
	ActionHandle:   "HANDLE",
}

func (a Action) String() string {
	if a >= ActionNoAction && a <= ActionHandle {
		return actionNames[a]
	}
	return fmt.Sprintf("Action(%d)", uint8(a))
}

// ParseAction accepts an Action or its case-insensitive name.
func ParseAction(v any) (Action, error) {
	switch a := v.(type) {
	case Action:
		if a >= ActionNoAction && a <= ActionHandle {
			return a, nil
		}
	case string:
		for i := ActionNoAction; i <= ActionHandle; i++ {
			if strings.EqualFold(actionNames[i], a) {
				return i, nil
			}
		}
	}
	return 0, ferrors.Validation(ferrors.CodeInvalidActionSet, fmt.Sprintf("unknown action: %#v", v))
}

// ActionSet is an immutable set of actions. The zero value is the empty set.
type ActionSet uint16

// NewActionSet builds a set from the given actions.
func NewActionSet(actions ...Action) ActionSet {
	var s ActionSet
	for _, a := range actions {
		s |= 1 << a
	}
	return s
}

// Has reports whether a is a member of s.
func (s ActionSet) Has(a Action) bool { return s&(1<<a) != 0 }

// Len returns the number of members.
func (s ActionSet) Len() int {
	n := 0
	for a := ActionNoAction; a <= ActionHandle; a++ {
		if s.Has(a) {
			n++
		}
	}
	return n
}

// Actions returns the members in declaration order.
func (s ActionSet) Actions() []Action {
	out := make([]Action, 0, s.Len())
	for a := ActionNoAction; a <= ActionHandle; a++ {
		if s.Has(a) {
			out = append(out, a)
		}
	}
	return out
}

func (s ActionSet) String() string {
	names := make([]string, 0, s.Len())
	for _, a := range s.Actions() {
		names = append(names, a.String())
	}
	return "{" + strings.Join(names, ", ") + "}"
}

// PromptType selects the answer shape of the Prompt primitive.
type PromptType string

const (
	PromptOK    PromptType = "OK"
	PromptYesNo PromptType = "YESNO"
	PromptInput PromptType = "INPUT"
)

// ParsePromptType accepts a PromptType or its case-insensitive name.
func ParsePromptType(v any) (PromptType, error) {
	var s string
	switch p := v.(type) {
	case PromptType:
		s = string(p)
	case string:
		s = p
	}
	switch PromptType(strings.ToUpper(s)) {
	case PromptOK:
		return PromptOK, nil
	case PromptYesNo:
		return PromptYesNo, nil
	case PromptInput:
		return PromptInput, nil
	}
	return "", ferrors.Validation(ferrors.CodeInvalidModifierValue, fmt.Sprintf("unknown prompt Type: %#v", v))
}

// Options returns the answer labels offered for the prompt type.
func (p PromptType) Options() []string {
	switch p {
	case PromptYesNo:
		return []string{"Yes", "No"}
	case PromptInput:
		return nil
	default:
		return []string{"Ok"}
	}
}
