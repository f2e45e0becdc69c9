// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	ferrors "github.com/jllopis/fops/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		validateInst = validator.New(validator.WithRequiredStructEnabled())
	})
	return validateInst
}

// Validate checks field constraints and the settings that depend on each
// other.
func Validate(cfg *Config) error {
	if cfg == nil {
		return ferrors.New(ferrors.CodeInvalidConfig, "configuration is nil", nil)
	}
	if err := validatorInstance().Struct(cfg); err != nil {
		return convertValidationError(err)
	}
	if cfg.Trace.HasSink("http") && cfg.Trace.HTTPURL == "" {
		return invalid("trace.http_url", "required when the http sink is selected", nil)
	}
	if cfg.Trace.HasSink("sqlite") && cfg.Trace.SQLitePath == "" {
		return invalid("trace.sqlite_path", "required when the sqlite sink is selected", nil)
	}
	if cfg.Telemetry.Exporter == "otlp" && cfg.Telemetry.OTLPEndpoint == "" {
		return invalid("telemetry.otlp_endpoint", "required by the otlp exporter", nil)
	}
	return nil
}

// convertValidationError reports the first failed field by its config key.
func convertValidationError(err error) error {
	if ves, ok := err.(validator.ValidationErrors); ok && len(ves) > 0 {
		ve := ves[0]
		field := configKey(ve)
		return invalid(field, fmt.Sprintf("failed validation for tag '%s'", ve.Tag()), err)
	}
	return ferrors.New(ferrors.CodeInvalidConfig, err.Error(), err)
}

// configKey turns Config.Prompter.SubmitTimeout into prompter.submittimeout.
func configKey(fe validator.FieldError) string {
	parts := strings.Split(fe.StructNamespace(), ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = strings.ToLower(p)
	}
	return strings.Join(parts, ".")
}

func invalid(field, msg string, cause error) error {
	return ferrors.New(ferrors.CodeInvalidConfig, field+" "+msg, cause).WithContext("field", field)
}
