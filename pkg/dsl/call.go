// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package dsl

import (
	"fmt"
	"maps"
	"sort"
	"strings"

	ferrors "github.com/jllopis/fops/pkg/errors"
)

// PrimitiveCall is the normalized shape every primitive body receives. It is
// built once per invocation and shared by all retry attempts.
type PrimitiveCall struct {
	Primitive string
	// Spec is the positional subject: a value, a Condition or a BooleanExpr.
	Spec any
	// Mods is the resolved chain: global defaults, primitive defaults, call site.
	Mods Modifiers
	// Overrides holds only the modifiers supplied at the call site.
	Overrides Modifiers
	Params    Params
}

// Param returns a named parameter.
func (c *PrimitiveCall) Param(name string) (any, bool) {
	v, ok := c.Params[name]
	return v, ok
}

// ModsFor resolves the modifiers applying to one condition of the call:
// call-site overrides win over condition overrides, which win over the
// primitive and global defaults.
func (c *PrimitiveCall) ModsFor(cond Condition) Modifiers {
	return MergeMods(MergeMods(c.Mods, cond.Overrides), &c.Overrides)
}

func (c *PrimitiveCall) String() string {
	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys)+len(c.Overrides.Explicit())+1)
	parts = append(parts, fmt.Sprintf("%v", c.Spec))
	for _, name := range c.Overrides.Explicit() {
		v, _ := c.Overrides.Get(name)
		parts = append(parts, fmt.Sprintf("%s=%v", name, v))
	}
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, c.Params[k]))
	}
	return c.Primitive + "(" + strings.Join(parts, ", ") + ")"
}

// Router validates and normalizes the arguments of one primitive.
type Router struct {
	Primitive string
	// Base holds the primitive defaults; nil means the global defaults.
	Base *Modifiers
	// Allowed declares the meaningful modifiers; nil accepts all of them.
	Allowed AllowList
}

// Route builds the PrimitiveCall for an invocation with explicit modifier
// and parameter inputs. Every key in mods must be a modifier name.
func (r Router) Route(spec any, mods Mods, params Params) (*PrimitiveCall, error) {
	for k := range mods {
		if !IsModifierKey(k) {
			return nil, r.annotate(unknownModifier(k))
		}
	}
	resolved, err := ParseModifiers(mods, r.Base, r.Allowed)
	if err != nil {
		return nil, r.annotate(err)
	}
	explicit, err := ParseModifiers(mods, nil, nil)
	if err != nil {
		return nil, r.annotate(err)
	}
	return &PrimitiveCall{
		Primitive: r.Primitive,
		Spec:      spec,
		Mods:      resolved,
		Overrides: explicit,
		Params:    maps.Clone(params),
	}, nil
}

// RouteKeywords routes an untyped invocation: the first positional argument
// becomes the subject and keywords are split by SplitKeywords.
func (r Router) RouteKeywords(args []any, kw map[string]any) (*PrimitiveCall, error) {
	var spec any
	if len(args) > 0 {
		spec = args[0]
	}
	mods, params := SplitKeywords(kw)
	return r.Route(spec, mods, params)
}

func (r Router) annotate(err error) error {
	if fe := ferrors.AsFopsError(err); fe != nil && r.Primitive != "" {
		fe.WithContext("primitive", r.Primitive)
	}
	return err
}
