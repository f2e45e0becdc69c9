package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionEvaluate(t *testing.T) {
	plain := Defaults()
	tolerant := Defaults().MustWith("Tolerance", 0.1)
	folded := Defaults().MustWith("IgnoreCase", true)

	tests := []struct {
		name   string
		cond   Condition
		actual any
		mods   Modifiers
		want   bool
	}{
		{"eq int", Condition{Left: "TM1", Op: OpEQ, Right: 100}, 100, plain, true},
		{"eq int vs float", Condition{Left: "TM1", Op: OpEQ, Right: 100}, 100.0, plain, true},
		{"eq outside tolerance", Condition{Left: "TM1", Op: OpEQ, Right: 10.0}, 10.2, tolerant, false},
		{"eq inside tolerance", Condition{Left: "TM1", Op: OpEQ, Right: 10.0}, 10.05, tolerant, true},
		{"neq inside tolerance", Condition{Left: "TM1", Op: OpNEQ, Right: 10.0}, 10.05, tolerant, false},
		{"gt", Condition{Left: "TM2", Op: OpGT, Right: 0}, 1, plain, true},
		{"ge with tolerance", Condition{Left: "TM2", Op: OpGE, Right: 5.0}, 4.95, tolerant, true},
		{"lt", Condition{Left: "TM2", Op: OpLT, Right: 5}, 5, plain, false},
		{"le", Condition{Left: "TM2", Op: OpLE, Right: 5}, 5, plain, true},
		{"bw set", Condition{Left: "ST", Op: OpBW, Right: 0x04}, 0x0F, plain, true},
		{"bw clear", Condition{Left: "ST", Op: OpBW, Right: 0x10}, 0x0F, plain, false},
		{"nbw", Condition{Left: "ST", Op: OpNBW, Right: 0x10}, 0x0F, plain, true},
		{"string eq", Condition{Left: "MODE", Op: OpEQ, Right: "SAFE"}, "safe", plain, false},
		{"string eq ignore case", Condition{Left: "MODE", Op: OpEQ, Right: "SAFE"}, "safe", folded, true},
		{"mixed eq", Condition{Left: "MODE", Op: OpEQ, Right: "1"}, 1, plain, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cond.Evaluate(tt.actual, tt.mods)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConditionEvaluateIncomparable(t *testing.T) {
	_, err := Condition{Left: "TM1", Op: OpGT, Right: 1}.Evaluate("high", Defaults())
	require.Error(t, err)
	_, err = Condition{Left: "TM1", Op: OpBW, Right: 1}.Evaluate("high", Defaults())
	require.Error(t, err)
}

func TestBooleanExprEvaluateShortCircuits(t *testing.T) {
	values := map[string]any{"TM1": 10, "TM2": 3, "TM3": 0}
	var visited []string
	check := func(c Condition) (bool, error) {
		visited = append(visited, c.Left.(string))
		return c.Evaluate(values[c.Left.(string)], Defaults())
	}

	expr := MustAnd(
		[]any{"TM1", "eq", 10},
		MustOr([]any{"TM2", "gt", 5}, []any{"TM3", "eq", 0}),
	)
	ok, err := expr.Evaluate(check)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"TM1", "TM2", "TM3"}, visited)

	visited = nil
	expr = MustAnd([]any{"TM1", "eq", 0}, []any{"TM2", "eq", 3})
	ok, err = expr.Evaluate(check)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"TM1"}, visited)
}
