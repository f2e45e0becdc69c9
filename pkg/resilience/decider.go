// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jllopis/fops/pkg/dsl"
)

// Decision is the operator's answer to a failed attempt.
type Decision string

const (
	DecisionRetry  Decision = "retry"
	DecisionSkip   Decision = "skip"
	DecisionCancel Decision = "cancel"
)

// ParseDecision interprets a free-text answer. Answers are trimmed and
// case-folded; "r"/"retry", "s"/"skip" and "c"/"cancel" are recognised.
// Anything else is a retry, and ok reports whether the text was recognised.
func ParseDecision(answer string) (d Decision, ok bool) {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "r", "retry":
		return DecisionRetry, true
	case "s", "skip":
		return DecisionSkip, true
	case "c", "cancel":
		return DecisionCancel, true
	}
	return DecisionRetry, false
}

// DefaultOptions are offered when nothing narrower applies.
var DefaultOptions = []string{"r", "s", "c"}

// OptionsFor maps an OnFailure action set to the answers offered to the
// operator: REPEAT offers retry, SKIP offers skip, CANCEL or ABORT offer
// cancel. An empty mapping falls back to DefaultOptions.
func OptionsFor(set dsl.ActionSet) []string {
	var out []string
	if set.Has(dsl.ActionRepeat) {
		out = append(out, "r")
	}
	if set.Has(dsl.ActionSkip) {
		out = append(out, "s")
	}
	if set.Has(dsl.ActionCancel) || set.Has(dsl.ActionAbort) {
		out = append(out, "c")
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultOptions...)
	}
	return out
}

// Failure describes a failed attempt awaiting a decision.
type Failure struct {
	Primitive     string
	Err           error
	Attempt       int
	CorrelationID string
	Options       []string
}

// Message renders the question put to the operator.
func (f Failure) Message() string {
	labels := make([]string, 0, len(f.Options))
	for _, o := range f.Options {
		switch o {
		case "r":
			labels = append(labels, "retry (r)")
		case "s":
			labels = append(labels, "skip (s)")
		case "c":
			labels = append(labels, "cancel (c)")
		default:
			labels = append(labels, o)
		}
	}
	subject := "Exception"
	if f.Primitive != "" {
		subject = f.Primitive + " failed"
	}
	return fmt.Sprintf("%s (attempt %d): %v\nOptions: %s?", subject, f.Attempt, f.Err, strings.Join(labels, ", "))
}

// Decider produces a decision for a failed attempt. An error means the
// decision source itself failed; the caller may try another one.
type Decider interface {
	Decide(ctx context.Context, f Failure) (Decision, error)
}

// DeciderFunc adapts a function to the Decider interface.
type DeciderFunc func(ctx context.Context, f Failure) (Decision, error)

// Decide implements Decider.
func (fn DeciderFunc) Decide(ctx context.Context, f Failure) (Decision, error) {
	return fn(ctx, f)
}

// Static always returns the same decision.
type Static struct {
	Decision Decision
}

// Decide implements Decider.
func (s Static) Decide(context.Context, Failure) (Decision, error) {
	if s.Decision == "" {
		return DecisionCancel, nil
	}
	return s.Decision, nil
}

// Scripted replays a fixed list of answers, one per decision, and cancels
// once the list is exhausted.
type Scripted struct {
	mu      sync.Mutex
	answers []string
	seen    []Failure
}

// NewScripted creates a decider replaying answers.
func NewScripted(answers ...string) *Scripted {
	return &Scripted{answers: answers}
}

// Decide implements Decider.
func (s *Scripted) Decide(_ context.Context, f Failure) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, f)
	if len(s.answers) == 0 {
		return DecisionCancel, nil
	}
	answer := s.answers[0]
	s.answers = s.answers[1:]
	d, _ := ParseDecision(answer)
	return d, nil
}

// Failures returns the failures this decider was asked about.
func (s *Scripted) Failures() []Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Failure(nil), s.seen...)
}
