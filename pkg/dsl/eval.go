// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package dsl

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"

	ferrors "github.com/jllopis/fops/pkg/errors"
)

// Evaluate compares actual against the condition's reference value. Tolerance
// widens the equality part of eq, neq, ge and le; IgnoreCase applies to
// string comparisons.
func (c Condition) Evaluate(actual any, mods Modifiers) (bool, error) {
	switch c.Op {
	case OpBW, OpNBW:
		a, errA := cast.ToInt64E(actual)
		b, errB := cast.ToInt64E(c.Right)
		if errA != nil || errB != nil {
			return false, c.incomparable(actual)
		}
		if c.Op == OpBW {
			return a&b != 0, nil
		}
		return a&b == 0, nil
	}

	if isNumber(actual) && isNumber(c.Right) {
		a, _ := cast.ToFloat64E(actual)
		b, _ := cast.ToFloat64E(c.Right)
		return compareNumbers(c.Op, a, b, math.Abs(mods.Tolerance)), nil
	}

	as, aok := actual.(string)
	bs, bok := c.Right.(string)
	if aok && bok {
		if mods.IgnoreCase {
			as, bs = strings.ToLower(as), strings.ToLower(bs)
		}
		return compareOrdered(c.Op, strings.Compare(as, bs)), nil
	}

	switch c.Op {
	case OpEQ:
		return fmt.Sprint(actual) == fmt.Sprint(c.Right), nil
	case OpNEQ:
		return fmt.Sprint(actual) != fmt.Sprint(c.Right), nil
	}
	return false, c.incomparable(actual)
}

func (c Condition) incomparable(actual any) error {
	return ferrors.New(ferrors.CodeExecution,
		fmt.Sprintf("cannot evaluate %v %s %v: got %T", c.Left, c.Op, c.Right, actual), nil).
		WithContext("condition", c.String()).
		WithRecoverable(true)
}

func compareNumbers(op Operator, a, b, tol float64) bool {
	switch op {
	case OpEQ:
		return math.Abs(a-b) <= tol
	case OpNEQ:
		return math.Abs(a-b) > tol
	case OpGT:
		return a > b
	case OpGE:
		return a >= b-tol
	case OpLT:
		return a < b
	case OpLE:
		return a <= b+tol
	}
	return false
}

func compareOrdered(op Operator, cmp int) bool {
	switch op {
	case OpEQ:
		return cmp == 0
	case OpNEQ:
		return cmp != 0
	case OpGT:
		return cmp > 0
	case OpGE:
		return cmp >= 0
	case OpLT:
		return cmp < 0
	case OpLE:
		return cmp <= 0
	}
	return false
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

// Evaluate walks the expression, asking check for every leaf. AND stops at
// the first false child, OR at the first true one.
func (e *BooleanExpr) Evaluate(check func(Condition) (bool, error)) (bool, error) {
	for _, child := range e.Children {
		var (
			ok  bool
			err error
		)
		switch n := child.(type) {
		case Condition:
			ok, err = check(n)
		case *BooleanExpr:
			ok, err = n.Evaluate(check)
		}
		if err != nil {
			return false, err
		}
		if e.Kind == KindAND && !ok {
			return false, nil
		}
		if e.Kind == KindOR && ok {
			return true, nil
		}
	}
	return e.Kind == KindAND, nil
}
