// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling with rich context for fops.
//
// Errors fall in three families. Validation errors are raised while a
// primitive call is parsed and are never recoverable. Execution errors come
// from primitive bodies and are the only ones offered to the retry/skip/cancel
// protocol. Channel errors describe a failed interactive exchange and are
// downgraded to the console fallback before they reach a caller.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies fops errors for logging and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidCondition indicates a malformed condition description.
	CodeInvalidCondition ErrorCode = "INVALID_CONDITION"

	// CodeUnknownOperator indicates an operator token that is not recognised.
	CodeUnknownOperator ErrorCode = "UNKNOWN_OPERATOR"

	// CodeUnknownValueFormat indicates a value format token that is not recognised.
	CodeUnknownValueFormat ErrorCode = "UNKNOWN_VALUE_FORMAT"

	// CodeUnknownModifier indicates a modifier name that is not a Modifiers field.
	CodeUnknownModifier ErrorCode = "UNKNOWN_MODIFIER"

	// CodeUnsupportedModifier indicates modifiers outside a primitive's allow-list.
	CodeUnsupportedModifier ErrorCode = "UNSUPPORTED_MODIFIER"

	// CodeInvalidActionSet indicates an action set given in an ambiguous shape.
	CodeInvalidActionSet ErrorCode = "INVALID_ACTION_SET"

	// CodeInvalidModifierValue indicates a modifier value of the wrong type.
	CodeInvalidModifierValue ErrorCode = "INVALID_MODIFIER_VALUE"

	// CodeExecution indicates a primitive body failed to do its work.
	CodeExecution ErrorCode = "EXECUTION_FAILED"

	// CodeVerificationFailed indicates a verified condition did not hold.
	CodeVerificationFailed ErrorCode = "VERIFICATION_FAILED"

	// CodeInjectedFault indicates a deliberately failing command.
	CodeInjectedFault ErrorCode = "INJECTED_FAULT"

	// CodeChannelUnavailable indicates the interactive channel could not be reached.
	CodeChannelUnavailable ErrorCode = "CHANNEL_UNAVAILABLE"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeInvalidConfig indicates a configuration value failed validation.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIG"
)

// FopsError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type FopsError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Attributes  map[string]string
	Recoverable bool
}

// Error implements the error interface.
func (e *FopsError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *FopsError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *FopsError) MarshalJSON() ([]byte, error) {
	cause := ""
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return json.Marshal(&struct {
		Message     string                 `json:"message"`
		Code        string                 `json:"code"`
		Err         string                 `json:"error,omitempty"`
		Recoverable bool                   `json:"recoverable"`
		Context     map[string]interface{} `json:"context,omitempty"`
		Attributes  map[string]string      `json:"attributes,omitempty"`
	}{
		Message:     e.Error(),
		Code:        string(e.Code),
		Err:         cause,
		Recoverable: e.Recoverable,
		Context:     e.Context,
		Attributes:  e.Attributes,
	})
}

// New creates a new FopsError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *FopsError {
	return &FopsError{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		Attributes: make(map[string]string),
	}
}

// Newf creates a FopsError without cause and a formatted message.
func Newf(code ErrorCode, format string, args ...any) *FopsError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *FopsError) WithContext(key string, value interface{}) *FopsError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithAttribute adds a string attribute for OTEL traces.
// Returns the error for method chaining.
func (e *FopsError) WithAttribute(key, value string) *FopsError {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *FopsError) WithRecoverable(recoverable bool) *FopsError {
	e.Recoverable = recoverable
	return e
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *FopsError) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// AsFopsError attempts to convert an error to a FopsError.
// Returns the first FopsError in the chain, or wraps the error otherwise.
func AsFopsError(err error) *FopsError {
	if err == nil {
		return nil
	}
	var fe *FopsError
	if stderrors.As(err, &fe) {
		return fe
	}
	return New(CodeInternal, "wrapped error", err).WithRecoverable(true)
}

// CodeOf returns the code of the first FopsError in the chain, or "".
func CodeOf(err error) ErrorCode {
	var fe *FopsError
	if stderrors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// IsValidation reports whether err was raised while parsing a call.
func IsValidation(err error) bool {
	switch CodeOf(err) {
	case CodeInvalidCondition, CodeUnknownOperator, CodeUnknownValueFormat,
		CodeUnknownModifier, CodeUnsupportedModifier, CodeInvalidActionSet,
		CodeInvalidModifierValue:
		return true
	}
	return false
}

// IsRecoverable reports whether err may be offered to the recovery protocol.
// Errors that are not FopsError values are recoverable.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var fe *FopsError
	if stderrors.As(err, &fe) {
		return fe.Recoverable
	}
	return true
}

// Validation creates a non-recoverable validation error.
func Validation(code ErrorCode, msg string) *FopsError {
	return New(code, msg, nil).WithRecoverable(false)
}
