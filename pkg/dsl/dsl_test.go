package dsl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/jllopis/fops/pkg/errors"
)

func TestParseConditionScenarios(t *testing.T) {
	cond, err := ParseCondition([]any{"TM1", "eq", 100})
	require.NoError(t, err)
	assert.Equal(t, "TM1", cond.Left)
	assert.Equal(t, OpEQ, cond.Op)
	assert.Equal(t, 100, cond.Right)
	assert.Nil(t, cond.Overrides)

	cond, err = ParseCondition([]any{"TM1", "gt", 5, map[string]any{"Timeout": 20}})
	require.NoError(t, err)
	require.NotNil(t, cond.Overrides)
	assert.Equal(t, 20*time.Second, cond.Overrides.Timeout)
	assert.True(t, cond.Overrides.IsSet("Timeout"))
	assert.False(t, cond.Overrides.IsSet("Tolerance"))
}

func TestParseConditionOperatorIdempotent(t *testing.T) {
	for _, name := range []string{"eq", "NEQ", "Gt", "ge", "lt", "LE", "bw", "nbw"} {
		t.Run(name, func(t *testing.T) {
			parsed, err := ParseCondition([]any{"x", name, 1})
			require.NoError(t, err)
			again, err := ParseCondition([]any{"x", parsed.Op, 1})
			require.NoError(t, err)
			assert.Equal(t, parsed.Op, again.Op)
		})
	}
}

func TestParseConditionErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  []any
		code ferrors.ErrorCode
	}{
		{"too short", []any{"TM1", "eq"}, ferrors.CodeInvalidCondition},
		{"too long", []any{"TM1", "eq", 1, Mods{}, "extra"}, ferrors.CodeInvalidCondition},
		{"overrides not a mapping", []any{"TM1", "eq", 1, "Timeout=2"}, ferrors.CodeInvalidCondition},
		{"unknown operator", []any{"TM1", "approx", 1}, ferrors.CodeUnknownOperator},
		{"unknown override", []any{"TM1", "eq", 1, Mods{"Radix": "HEX"}}, ferrors.CodeUnknownModifier},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCondition(tt.raw)
			require.Error(t, err)
			assert.Equal(t, tt.code, ferrors.CodeOf(err))
			assert.False(t, ferrors.IsRecoverable(err))
		})
	}
}

func TestAndOrPreserveOrderAndNesting(t *testing.T) {
	a := []any{"TM1", "eq", 10}
	b := []any{"TM2", "lt", 5}
	c := []any{"TM3", "ne", 0}

	and, err := And(a, b)
	require.NoError(t, err)
	require.Len(t, and.Children, 2)
	assert.Equal(t, KindAND, and.Kind)
	assert.Equal(t, "TM1", and.Children[0].(Condition).Left)
	assert.Equal(t, "TM2", and.Children[1].(Condition).Left)

	or, err := Or(a, b)
	require.NoError(t, err)
	assert.Equal(t, KindOR, or.Kind)

	_, err = And(or, c)
	require.Error(t, err, "ne is not an operator")

	nested, err := And(or, []any{"TM3", "neq", 0})
	require.NoError(t, err)
	require.Len(t, nested.Children, 2)
	inner, ok := nested.Children[0].(*BooleanExpr)
	require.True(t, ok)
	assert.Same(t, or, inner)
	assert.Equal(t, "((TM1 eq 10 OR TM2 lt 5) AND TM3 neq 0)", nested.String())
}

func TestAndRejectsBadItem(t *testing.T) {
	_, err := And(42)
	require.Error(t, err)
	assert.Equal(t, ferrors.CodeInvalidCondition, ferrors.CodeOf(err))

	assert.Panics(t, func() { MustOr("TM1") })
}

func TestNormalizeConditions(t *testing.T) {
	expr := MustAnd([]any{"TM1", "eq", 1})
	got, err := NormalizeConditions(expr)
	require.NoError(t, err)
	assert.True(t, got.IsExpr())
	assert.Same(t, expr, got.Expr)

	got, err = NormalizeConditions([]any{"TM1", "eq", 1})
	require.NoError(t, err)
	require.Len(t, got.List, 1)

	got, err = NormalizeConditions([]any{
		[]any{"TM1", "eq", 1},
		[]any{"TM2", "gt", 0, Mods{"Tolerance": 0.5}},
	})
	require.NoError(t, err)
	require.Len(t, got.List, 2)
	assert.Equal(t, 0.5, got.List[1].Overrides.Tolerance)

	_, err = NormalizeConditions(7)
	require.Error(t, err)
	_, err = NormalizeConditions([]any{})
	require.Error(t, err)
}

func TestParseModifiersKeepsUnsuppliedFields(t *testing.T) {
	base := Defaults().MustWith("Retries", 5)
	mods, err := ParseModifiers(map[string]any{
		"Tolerance": 0.1,
		"command":   "ignored",
	}, &base, Allow("Tolerance", "Retries"))
	require.NoError(t, err)

	assert.Equal(t, 0.1, mods.Tolerance)
	assert.Equal(t, 5, mods.Retries)
	assert.Equal(t, base.OnFailure, mods.OnFailure)
	assert.Equal(t, base.ValueFormat, mods.ValueFormat)
	assert.Equal(t, base.Timeout, mods.Timeout)
}

func TestParseModifiersDefaultsWithoutBase(t *testing.T) {
	mods, err := ParseModifiers(nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), mods)
	assert.Equal(t, 2, mods.Retries)
	assert.True(t, mods.OnFailure.Has(ActionRepeat))
	assert.True(t, mods.PromptFailure)
}

func TestParseModifiersAllowListReportsAllKeys(t *testing.T) {
	mods, err := ParseModifiers(map[string]any{
		"Wait":      true,
		"Delay":     2,
		"IgnoreCase": true,
		"verify":    nil,
	}, nil, Allow("Delay"))
	require.Error(t, err)
	assert.Equal(t, Modifiers{}, mods)

	fe := ferrors.AsFopsError(err)
	assert.Equal(t, ferrors.CodeUnsupportedModifier, fe.Code)
	assert.ElementsMatch(t, []string{"Wait", "IgnoreCase"}, fe.Context["keys"])
	assert.Contains(t, err.Error(), "IgnoreCase")
	assert.Contains(t, err.Error(), "Wait")
}

func TestParseModifiersUnknownAndInvalid(t *testing.T) {
	_, err := ParseModifiers(map[string]any{"Radix": "HEX"}, nil, nil)
	assert.Equal(t, ferrors.CodeUnknownModifier, ferrors.CodeOf(err))

	_, err = ParseModifiers(map[string]any{"ValueFormat": "hex"}, nil, nil)
	assert.Equal(t, ferrors.CodeUnknownValueFormat, ferrors.CodeOf(err))

	_, err = ParseModifiers(map[string]any{"Retries": "many"}, nil, nil)
	assert.Equal(t, ferrors.CodeInvalidModifierValue, ferrors.CodeOf(err))
}

func TestParseModifiersCoercion(t *testing.T) {
	mods, err := ParseModifiers(map[string]any{
		"ValueFormat": "raw",
		"OnFailure":   ActionCancel,
		"OnFalse":     []Action{ActionRecheck, ActionAbort},
		"OnTrue":      []any{"resume"},
		"Delay":       1.5,
		"Timeout":     "250ms",
		"PromptUser":  3,
	}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, FormatRAW, mods.ValueFormat)
	assert.Equal(t, NewActionSet(ActionCancel), mods.OnFailure)
	assert.Equal(t, NewActionSet(ActionAbort, ActionRecheck), mods.OnFalse)
	assert.Equal(t, NewActionSet(ActionResume), mods.OnTrue)
	assert.Equal(t, 1500*time.Millisecond, mods.Delay)
	assert.Equal(t, 250*time.Millisecond, mods.Timeout)
	assert.True(t, mods.PromptUser)
}

func TestActionSetRejectsStrings(t *testing.T) {
	for _, raw := range []any{"CANCEL", []byte("SKIP")} {
		_, err := ParseModifiers(map[string]any{"OnFailure": raw}, nil, nil)
		require.Error(t, err)
		assert.Equal(t, ferrors.CodeInvalidActionSet, ferrors.CodeOf(err))
	}
}

func TestMergeMods(t *testing.T) {
	base := Defaults().MustWith("Tolerance", 0.5).MustWith("Delay", 3)
	assert.Equal(t, base, MergeMods(base, nil))

	overrides := Defaults().MustWith("OnFailure", ActionSkip).MustWith("Timeout", 20)
	merged := MergeMods(base, &overrides)

	assert.Equal(t, NewActionSet(ActionSkip), merged.OnFailure, "sets are replaced, not unioned")
	assert.Equal(t, 20*time.Second, merged.Timeout)
	assert.Equal(t, 0.5, merged.Tolerance)
	assert.Equal(t, 3*time.Second, merged.Delay)

	twice := MergeMods(base, &merged)
	assert.Equal(t, merged, twice)
}

func TestModifiersImmutableWith(t *testing.T) {
	base := Defaults()
	next := base.MustWith("Retries", 9)
	assert.Equal(t, 2, base.Retries)
	assert.Equal(t, 9, next.Retries)
	assert.False(t, base.IsSet("Retries"))
	assert.Equal(t, []string{"Retries"}, next.Explicit())

	_, err := base.With("Nope", 1)
	assert.Equal(t, ferrors.CodeUnknownModifier, ferrors.CodeOf(err))
}

func TestSplitKeywords(t *testing.T) {
	mods, params := SplitKeywords(map[string]any{
		"command":    "COMMAND_E",
		"args":       []any{"ARG1", 1.0},
		"Delay":      10,
		"PromptUser": false,
	})
	assert.Equal(t, Mods{"Delay": 10, "PromptUser": false}, mods)
	assert.Equal(t, Params{"command": "COMMAND_E", "args": []any{"ARG1", 1.0}}, params)
}

func TestRouter(t *testing.T) {
	base := Defaults().MustWith("Retries", 4)
	r := Router{Primitive: "Send", Base: &base, Allowed: Allow("Delay", "Confirm")}

	call, err := r.Route("COMMAND_A", Mods{"Delay": 2}, Params{"note": "x"})
	require.NoError(t, err)
	assert.Equal(t, "COMMAND_A", call.Spec)
	assert.Equal(t, 2*time.Second, call.Mods.Delay)
	assert.Equal(t, 4, call.Mods.Retries)
	assert.Equal(t, []string{"Delay"}, call.Overrides.Explicit())
	v, ok := call.Param("note")
	require.True(t, ok)
	assert.Equal(t, "x", v)

	_, err = r.Route("COMMAND_A", Mods{"Wait": true}, nil)
	require.Error(t, err)
	fe := ferrors.AsFopsError(err)
	assert.Equal(t, ferrors.CodeUnsupportedModifier, fe.Code)
	assert.Equal(t, "Send", fe.Context["primitive"])

	_, err = r.Route("COMMAND_A", Mods{"delay": 2}, nil)
	assert.Equal(t, ferrors.CodeUnknownModifier, ferrors.CodeOf(err))

	call, err = r.RouteKeywords(nil, map[string]any{"command": "COMMAND_D", "Confirm": true})
	require.NoError(t, err)
	assert.Nil(t, call.Spec)
	assert.True(t, call.Mods.Confirm)
	assert.Equal(t, Params{"command": "COMMAND_D"}, call.Params)
}

func TestModsForPrecedence(t *testing.T) {
	base := Defaults().MustWith("Tolerance", 0.01).MustWith("Timeout", 1)
	r := Router{Primitive: "VerifyTM", Base: &base}
	call, err := r.Route(nil, Mods{"Timeout": 30}, nil)
	require.NoError(t, err)

	cond, err := ParseCondition([]any{"TM1", "eq", 1, Mods{"Tolerance": 0.5, "Timeout": 5}})
	require.NoError(t, err)

	eff := call.ModsFor(cond)
	assert.Equal(t, 0.5, eff.Tolerance, "condition beats primitive default")
	assert.Equal(t, 30*time.Second, eff.Timeout, "call site beats condition")

	plain, err := ParseCondition([]any{"TM1", "eq", 1})
	require.NoError(t, err)
	assert.Equal(t, 0.01, call.ModsFor(plain).Tolerance)
}
