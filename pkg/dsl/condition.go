// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package dsl

import (
	"fmt"
	"reflect"
	"strings"

	ferrors "github.com/jllopis/fops/pkg/errors"
)

// Node is a member of a boolean expression tree: a Condition leaf or a
// *BooleanExpr internal node.
type Node interface {
	fmt.Stringer
	node()
}

// Condition is a single comparison with optional overrides scoped to it.
type Condition struct {
	Left      any
	Op        Operator
	Right     any
	Overrides *Modifiers
}

func (Condition) node() {}

func (c Condition) String() string {
	return fmt.Sprintf("%v %s %v", c.Left, c.Op, c.Right)
}

// ExprKind is the combinator of a BooleanExpr.
type ExprKind string

const (
	KindAND ExprKind = "AND"
	KindOR  ExprKind = "OR"
)

// BooleanExpr combines conditions and nested expressions. It is built bottom
// up by And and Or and is not modified afterwards.
type BooleanExpr struct {
	Kind     ExprKind
	Children []Node
}

func (*BooleanExpr) node() {}

func (e *BooleanExpr) String() string {
	parts := make([]string, len(e.Children))
	for i, c := range e.Children {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, " "+string(e.Kind)+" ") + ")"
}

// ParseCondition builds a Condition from [left, op, right] or
// [left, op, right, overrides] where overrides is a mapping of modifiers.
func ParseCondition(raw []any) (Condition, error) {
	if len(raw) < 3 || len(raw) > 4 {
		return Condition{}, ferrors.Validation(ferrors.CodeInvalidCondition,
			fmt.Sprintf("bad condition shape: %#v", raw))
	}
	op, err := ParseOperator(raw[1])
	if err != nil {
		return Condition{}, err
	}
	cond := Condition{Left: raw[0], Op: op, Right: raw[2]}
	if len(raw) == 4 {
		overrides, err := parseOverrides(raw[3])
		if err != nil {
			return Condition{}, err
		}
		cond.Overrides = overrides
	}
	return cond, nil
}

func parseOverrides(v any) (*Modifiers, error) {
	switch m := v.(type) {
	case Modifiers:
		return &m, nil
	case *Modifiers:
		if m != nil {
			out := *m
			return &out, nil
		}
	case Mods:
		return parsedOverrides(m)
	case map[string]any:
		return parsedOverrides(m)
	}
	return nil, ferrors.Validation(ferrors.CodeInvalidCondition,
		fmt.Sprintf("per-condition overrides must be a mapping as 4th element, got %T", v))
}

func parsedOverrides(kw map[string]any) (*Modifiers, error) {
	mods, err := ParseModifiers(kw, nil, nil)
	if err != nil {
		return nil, err
	}
	return &mods, nil
}

// And combines items into an AND node, preserving order and nesting.
func And(items ...any) (*BooleanExpr, error) { return combine(KindAND, items) }

// Or combines items into an OR node, preserving order and nesting.
func Or(items ...any) (*BooleanExpr, error) { return combine(KindOR, items) }

// MustAnd is And for script literals; it panics on a malformed item.
func MustAnd(items ...any) *BooleanExpr { return must(And(items...)) }

// MustOr is Or for script literals; it panics on a malformed item.
func MustOr(items ...any) *BooleanExpr { return must(Or(items...)) }

func must(e *BooleanExpr, err error) *BooleanExpr {
	if err != nil {
		panic(err)
	}
	return e
}

func combine(kind ExprKind, items []any) (*BooleanExpr, error) {
	children := make([]Node, 0, len(items))
	for _, item := range items {
		n, err := toNode(item)
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}
	return &BooleanExpr{Kind: kind, Children: children}, nil
}

func toNode(x any) (Node, error) {
	switch v := x.(type) {
	case *BooleanExpr:
		if v != nil {
			return v, nil
		}
	case BooleanExpr:
		return &v, nil
	case Condition:
		return v, nil
	case *Condition:
		if v != nil {
			return *v, nil
		}
	default:
		if seq, ok := asSequence(x); ok {
			return ParseCondition(seq)
		}
	}
	return nil, ferrors.Validation(ferrors.CodeInvalidCondition,
		fmt.Sprintf("AND/OR expect Condition, BooleanExpr, or a raw condition list, got %T", x))
}

// Conditions is the normalized subject of a verification: either a boolean
// expression or an ordered list of conditions.
type Conditions struct {
	Expr *BooleanExpr
	List []Condition
}

// IsExpr reports whether the subject is a boolean expression.
func (c Conditions) IsExpr() bool { return c.Expr != nil }

func (c Conditions) String() string {
	if c.Expr != nil {
		return c.Expr.String()
	}
	parts := make([]string, len(c.List))
	for i, cond := range c.List {
		parts[i] = cond.String()
	}
	return "[" + strings.Join(parts, "; ") + "]"
}

// NormalizeConditions accepts a BooleanExpr (returned unchanged), a single
// raw condition, or a sequence of raw conditions.
func NormalizeConditions(arg any) (Conditions, error) {
	switch v := arg.(type) {
	case *BooleanExpr:
		if v != nil {
			return Conditions{Expr: v}, nil
		}
	case Condition:
		return Conditions{List: []Condition{v}}, nil
	case []Condition:
		return Conditions{List: append([]Condition(nil), v...)}, nil
	}

	seq, ok := asSequence(arg)
	if !ok {
		return Conditions{}, ferrors.Validation(ferrors.CodeInvalidCondition,
			"expected a condition, list of conditions, or AND/OR expression")
	}
	if len(seq) > 0 {
		if _, nested := asSequence(seq[0]); nested {
			list := make([]Condition, 0, len(seq))
			for _, item := range seq {
				inner, ok := asSequence(item)
				if !ok {
					return Conditions{}, ferrors.Validation(ferrors.CodeInvalidCondition,
						fmt.Sprintf("bad condition shape: %#v", item))
				}
				cond, err := ParseCondition(inner)
				if err != nil {
					return Conditions{}, err
				}
				list = append(list, cond)
			}
			return Conditions{List: list}, nil
		}
	}
	cond, err := ParseCondition(seq)
	if err != nil {
		return Conditions{}, err
	}
	return Conditions{List: []Condition{cond}}, nil
}

// asSequence converts slices and arrays (except strings and byte slices)
// to []any.
func asSequence(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case nil, string, []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
