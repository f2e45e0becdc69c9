// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package dsl

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/cast"

	ferrors "github.com/jllopis/fops/pkg/errors"
)

// Mods holds modifier overrides supplied at a call or condition site.
type Mods map[string]any

// Params holds the ordinary named arguments of a primitive call.
type Params map[string]any

// Modifiers is an immutable record of the behavioural options of a primitive
// call. New values are produced by With, ParseModifiers and MergeMods; a
// Modifiers value is never changed in place.
type Modifiers struct {
	IgnoreCase  bool
	Retries     int
	Tolerance   float64
	ValueFormat ValueFormat
	Wait        bool
	Timeout     time.Duration
	Delay       time.Duration
	AdjLimits   bool

	OnFalse    ActionSet
	OnTrue     ActionSet
	PromptUser bool

	OnFailure     ActionSet
	PromptFailure bool
	HandleError   bool

	Notify  bool
	Confirm bool

	Type PromptType

	set fieldMask
}

type fieldMask uint32

// Defaults returns the global default modifiers.
func Defaults() Modifiers {
	return Modifiers{
		IgnoreCase:    false,
		Retries:       2,
		Tolerance:     0,
		ValueFormat:   FormatENG,
		Wait:          false,
		AdjLimits:     false,
		OnFalse:       NewActionSet(ActionNoAction),
		OnTrue:        NewActionSet(ActionNoAction),
		PromptUser:    true,
		OnFailure:     NewActionSet(ActionAbort, ActionSkip, ActionRepeat, ActionCancel),
		PromptFailure: true,
		HandleError:   true,
		Notify:        true,
		Confirm:       false,
		Type:          PromptOK,
	}
}

type field struct {
	name  string
	apply func(m *Modifiers, raw any) error
	copy  func(dst *Modifiers, src *Modifiers)
}

// fields lists every modifier in declaration order; the index is its bit.
var fields = []field{
	{"IgnoreCase", func(m *Modifiers, raw any) (err error) { m.IgnoreCase, err = toBool(raw); return }, func(d, s *Modifiers) { d.IgnoreCase = s.IgnoreCase }},
	{"Retries", func(m *Modifiers, raw any) (err error) { m.Retries, err = toInt(raw); return }, func(d, s *Modifiers) { d.Retries = s.Retries }},
	{"Tolerance", func(m *Modifiers, raw any) (err error) { m.Tolerance, err = toFloat(raw); return }, func(d, s *Modifiers) { d.Tolerance = s.Tolerance }},
	{"ValueFormat", func(m *Modifiers, raw any) (err error) { m.ValueFormat, err = ParseValueFormat(raw); return }, func(d, s *Modifiers) { d.ValueFormat = s.ValueFormat }},
	{"Wait", func(m *Modifiers, raw any) (err error) { m.Wait, err = toBool(raw); return }, func(d, s *Modifiers) { d.Wait = s.Wait }},
	{"Timeout", func(m *Modifiers, raw any) (err error) { m.Timeout, err = toDuration(raw); return }, func(d, s *Modifiers) { d.Timeout = s.Timeout }},
	{"Delay", func(m *Modifiers, raw any) (err error) { m.Delay, err = toDuration(raw); return }, func(d, s *Modifiers) { d.Delay = s.Delay }},
	{"AdjLimits", func(m *Modifiers, raw any) (err error) { m.AdjLimits, err = toBool(raw); return }, func(d, s *Modifiers) { d.AdjLimits = s.AdjLimits }},
	{"OnFalse", func(m *Modifiers, raw any) (err error) { m.OnFalse, err = toActionSet(raw); return }, func(d, s *Modifiers) { d.OnFalse = s.OnFalse }},
	{"OnTrue", func(m *Modifiers, raw any) (err error) { m.OnTrue, err = toActionSet(raw); return }, func(d, s *Modifiers) { d.OnTrue = s.OnTrue }},
	{"PromptUser", func(m *Modifiers, raw any) (err error) { m.PromptUser, err = toBool(raw); return }, func(d, s *Modifiers) { d.PromptUser = s.PromptUser }},
	{"OnFailure", func(m *Modifiers, raw any) (err error) { m.OnFailure, err = toActionSet(raw); return }, func(d, s *Modifiers) { d.OnFailure = s.OnFailure }},
	{"PromptFailure", func(m *Modifiers, raw any) (err error) { m.PromptFailure, err = toBool(raw); return }, func(d, s *Modifiers) { d.PromptFailure = s.PromptFailure }},
	{"HandleError", func(m *Modifiers, raw any) (err error) { m.HandleError, err = toBool(raw); return }, func(d, s *Modifiers) { d.HandleError = s.HandleError }},
	{"Notify", func(m *Modifiers, raw any) (err error) { m.Notify, err = toBool(raw); return }, func(d, s *Modifiers) { d.Notify = s.Notify }},
	{"Confirm", func(m *Modifiers, raw any) (err error) { m.Confirm, err = toBool(raw); return }, func(d, s *Modifiers) { d.Confirm = s.Confirm }},
	{"Type", func(m *Modifiers, raw any) (err error) { m.Type, err = ParsePromptType(raw); return }, func(d, s *Modifiers) { d.Type = s.Type }},
}

var fieldIndex = func() map[string]int {
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		idx[f.name] = i
	}
	return idx
}()

// FieldNames returns every modifier name in declaration order.
func FieldNames() []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.name
	}
	return out
}

// IsModifierKey reports whether a keyword names a modifier by the
// capitalization convention (upper-case initial).
func IsModifierKey(key string) bool {
	r, _ := utf8.DecodeRuneInString(key)
	return r != utf8.RuneError && unicode.IsUpper(r)
}

// IsSet reports whether the named field was explicitly supplied.
func (m Modifiers) IsSet(name string) bool {
	i, ok := fieldIndex[name]
	return ok && m.set&(1<<i) != 0
}

// Explicit returns the names of explicitly supplied fields in declaration order.
func (m Modifiers) Explicit() []string {
	var out []string
	for i, f := range fields {
		if m.set&(1<<i) != 0 {
			out = append(out, f.name)
		}
	}
	return out
}

// With returns a copy of m with one field replaced and marked as supplied.
func (m Modifiers) With(name string, value any) (Modifiers, error) {
	i, ok := fieldIndex[name]
	if !ok {
		return m, unknownModifier(name)
	}
	out := m
	if err := fields[i].apply(&out, value); err != nil {
		return m, invalidValue(name, value, err)
	}
	out.set |= 1 << i
	return out, nil
}

// MustWith is With for literals known to be valid; it panics on error.
func (m Modifiers) MustWith(name string, value any) Modifiers {
	out, err := m.With(name, value)
	if err != nil {
		panic(err)
	}
	return out
}

// Get returns the value of the named field.
func (m Modifiers) Get(name string) (any, bool) {
	if _, ok := fieldIndex[name]; !ok {
		return nil, false
	}
	return reflect.ValueOf(m).FieldByName(name).Interface(), true
}

func (m Modifiers) String() string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		v, _ := m.Get(f.name)
		parts = append(parts, fmt.Sprintf("%s=%v", f.name, v))
	}
	return "Modifiers(" + strings.Join(parts, ", ") + ")"
}

// AllowList declares the modifiers a primitive accepts. A nil AllowList
// accepts every modifier.
type AllowList map[string]struct{}

// Allow builds an AllowList from names.
func Allow(names ...string) AllowList {
	out := make(AllowList, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

// Has reports whether name is allowed.
func (a AllowList) Has(name string) bool {
	if a == nil {
		return true
	}
	_, ok := a[name]
	return ok
}

// Names returns the allowed names sorted.
func (a AllowList) Names() []string {
	out := make([]string, 0, len(a))
	for n := range a {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ParseModifiers applies the modifier-style keys of kw on top of base
// (Defaults when nil). Keys that are not modifier-style are ignored. When
// allowed is non-nil every modifier-style key outside it is reported at once
// and no Modifiers value is produced.
func ParseModifiers(kw map[string]any, base *Modifiers, allowed AllowList) (Modifiers, error) {
	mods := Defaults()
	if base != nil {
		mods = *base
	}

	keys := make([]string, 0, len(kw))
	for k := range kw {
		if IsModifierKey(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	if allowed != nil {
		var bad []string
		for _, k := range keys {
			if !allowed.Has(k) {
				bad = append(bad, k)
			}
		}
		if len(bad) > 0 {
			return Modifiers{}, ferrors.Validation(ferrors.CodeUnsupportedModifier,
				fmt.Sprintf("unsupported modifier(s) for this primitive: [%s]", strings.Join(bad, ", "))).
				WithContext("keys", bad)
		}
	}

	for _, k := range keys {
		next, err := mods.With(k, kw[k])
		if err != nil {
			return Modifiers{}, err
		}
		mods = next
	}
	return mods, nil
}

// MergeMods returns base with every explicitly supplied field of overrides
// replacing the same field of base. Fields are replaced whole: an OnFailure
// override replaces the base set, it is never unioned with it.
func MergeMods(base Modifiers, overrides *Modifiers) Modifiers {
	if overrides == nil {
		return base
	}
	out := base
	for i, f := range fields {
		if overrides.set&(1<<i) != 0 {
			f.copy(&out, overrides)
		}
	}
	out.set |= overrides.set
	return out
}

// SplitKeywords routes an untyped keyword map by the capitalization
// convention: upper-case keys are modifiers, everything else is a parameter.
func SplitKeywords(kw map[string]any) (Mods, Params) {
	mods := Mods{}
	params := Params{}
	for k, v := range kw {
		if IsModifierKey(k) {
			mods[k] = v
		} else {
			params[k] = v
		}
	}
	return mods, params
}

func unknownModifier(name string) *ferrors.FopsError {
	return ferrors.Validation(ferrors.CodeUnknownModifier, fmt.Sprintf("unknown modifier '%s'", name)).
		WithContext("modifier", name)
}

func invalidValue(name string, value any, err error) error {
	if ferrors.IsValidation(err) {
		return err
	}
	return ferrors.New(ferrors.CodeInvalidModifierValue,
		fmt.Sprintf("invalid value %#v for modifier '%s'", value, name), err).
		WithContext("modifier", name).
		WithRecoverable(false)
}

func toBool(raw any) (bool, error) { return cast.ToBoolE(raw) }

func toInt(raw any) (int, error) {
	if _, ok := raw.(bool); ok {
		return 0, fmt.Errorf("bool is not a count")
	}
	return cast.ToIntE(raw)
}

func toFloat(raw any) (float64, error) {
	if _, ok := raw.(bool); ok {
		return 0, fmt.Errorf("bool is not a number")
	}
	return cast.ToFloat64E(raw)
}

// toDuration reads plain numbers as seconds and strings as Go durations.
// nil clears the duration.
func toDuration(raw any) (time.Duration, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return v, nil
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d, nil
		}
		secs, err := cast.ToFloat64E(v)
		if err != nil {
			return 0, fmt.Errorf("not a duration: %q", v)
		}
		return time.Duration(secs * float64(time.Second)), nil
	case bool:
		return 0, fmt.Errorf("bool is not a duration")
	}
	secs, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// toActionSet promotes a single action to a one-element set. Strings are
// rejected: a bare name is ambiguous with an iterable of characters.
func toActionSet(raw any) (ActionSet, error) {
	switch v := raw.(type) {
	case Action:
		if _, err := ParseAction(v); err != nil {
			return 0, err
		}
		return NewActionSet(v), nil
	case ActionSet:
		return v, nil
	case string, []byte:
		return 0, ferrors.Validation(ferrors.CodeInvalidActionSet,
			"action sets must be an Action or a collection of Actions, not str/bytes")
	case nil:
		return 0, nil
	}

	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return 0, ferrors.Validation(ferrors.CodeInvalidActionSet,
			fmt.Sprintf("action sets must be an Action or a collection of Actions, got %T", raw))
	}
	var set ActionSet
	for i := 0; i < rv.Len(); i++ {
		a, err := ParseAction(rv.Index(i).Interface())
		if err != nil {
			return 0, err
		}
		set |= NewActionSet(a)
	}
	return set, nil
}
