// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package primitives

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jllopis/fops/pkg/dsl"
	ferrors "github.com/jllopis/fops/pkg/errors"
	"github.com/jllopis/fops/pkg/resilience"
	"github.com/jllopis/fops/pkg/trace"
)

func (r *Runtime) verifyBody() trace.Func {
	return func(ctx context.Context, call *dsl.PrimitiveCall) (any, error) {
		conds, err := dsl.NormalizeConditions(call.Spec)
		if err != nil {
			return nil, err
		}
		trace.Step(ctx)
		if err := sleep(ctx, call.Mods.Delay); err != nil {
			return nil, err
		}
		trace.Step(ctx)
		held, err := r.await(ctx, call, conds)
		if err != nil {
			return nil, err
		}
		trace.Step(ctx)
		return r.verdict(ctx, call, conds, held)
	}
}

// await evaluates conds, polling while Wait is set until they hold or the
// call's Timeout passes.
func (r *Runtime) await(ctx context.Context, call *dsl.PrimitiveCall, conds dsl.Conditions) (bool, error) {
	held, err := r.evaluate(ctx, call, conds)
	if err != nil || held || !call.Mods.Wait {
		return held, err
	}

	var deadline <-chan time.Time
	if call.Mods.Timeout > 0 {
		t := time.NewTimer(call.Mods.Timeout)
		defer t.Stop()
		deadline = t.C
	}
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline:
			return false, nil
		case <-ticker.C:
			held, err := r.evaluate(ctx, call, conds)
			if err != nil || held {
				return held, err
			}
		}
	}
}

// evaluate checks conds once. Every condition of a list must hold.
func (r *Runtime) evaluate(ctx context.Context, call *dsl.PrimitiveCall, conds dsl.Conditions) (bool, error) {
	check := func(cond dsl.Condition) (bool, error) {
		mods := call.ModsFor(cond)
		name := fmt.Sprint(cond.Left)
		readTimeout := mods.Timeout
		if mods.Wait {
			readTimeout = 0
		}
		actual, err := resilience.WithTimeoutResult(ctx, readTimeout, func(ctx context.Context) (any, error) {
			return r.system.Read(ctx, name, mods.ValueFormat)
		})
		if err != nil {
			return false, err
		}
		held, err := cond.Evaluate(actual, mods)
		r.logger.DebugContext(ctx, "condition evaluated",
			slog.String("condition", cond.String()),
			slog.Any("actual", actual),
			slog.Bool("held", held))
		return held, err
	}

	if conds.IsExpr() {
		return conds.Expr.Evaluate(check)
	}
	for _, cond := range conds.List {
		held, err := check(cond)
		if err != nil || !held {
			return false, err
		}
	}
	return true, nil
}

// verdict turns an evaluation into the primitive result. A false outcome
// fails the attempt unless OnFalse only says NOACTION and PromptUser is off.
func (r *Runtime) verdict(ctx context.Context, call *dsl.PrimitiveCall, conds dsl.Conditions, held bool) (any, error) {
	mods := call.Mods
	if held {
		if !onlyNoAction(mods.OnTrue) {
			r.logger.InfoContext(ctx, "verification held",
				slog.String("conditions", conds.String()),
				slog.String("on_true", mods.OnTrue.String()))
		}
		return true, nil
	}
	if onlyNoAction(mods.OnFalse) && !mods.PromptUser {
		r.logger.InfoContext(ctx, "verification false, continuing",
			slog.String("conditions", conds.String()))
		return false, nil
	}
	return false, ferrors.New(ferrors.CodeVerificationFailed, "verification failed: "+conds.String(), nil).
		WithContext("conditions", conds.String()).
		WithContext("on_false", mods.OnFalse.String()).
		WithRecoverable(true)
}

func onlyNoAction(s dsl.ActionSet) bool {
	return s.Len() == 1 && s.Has(dsl.ActionNoAction)
}
