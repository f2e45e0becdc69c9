// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads fops settings from defaults, a YAML file, profile
// overlays, FOPS_ environment variables and command-line overrides, in that
// order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes environment overrides: FOPS_PROMPTER_URL sets
// prompter.url.
const EnvPrefix = "FOPS_"

// ProfileEnv names the environment variable selecting a profile overlay.
const ProfileEnv = "FOPS_PROFILE"

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Trace     TraceConfig     `koanf:"trace"`
	Prompter  PrompterConfig  `koanf:"prompter"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Audit     AuditConfig     `koanf:"audit"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn warning error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// TraceConfig selects trace events and where they are delivered.
type TraceConfig struct {
	Enabled       bool     `koanf:"enabled"`
	Lines         bool     `koanf:"lines"`
	Calls         bool     `koanf:"calls"`
	Returns       bool     `koanf:"returns"`
	Exceptions    bool     `koanf:"exceptions"`
	CaptureValues bool     `koanf:"capture_values"`
	MaxLen        int      `koanf:"max_len" validate:"gte=0"`
	Sinks         []string `koanf:"sinks" validate:"dive,oneof=console http sqlite otel"`
	HTTPURL       string   `koanf:"http_url" validate:"omitempty,url"`
	SQLitePath    string   `koanf:"sqlite_path"`
}

// PrompterConfig configures the operator prompt channel.
type PrompterConfig struct {
	Enabled       bool          `koanf:"enabled"`
	URL           string        `koanf:"url" validate:"required,url"`
	SubmitTimeout time.Duration `koanf:"submit_timeout" validate:"gt=0"`
	WaitTimeout   time.Duration `koanf:"wait_timeout" validate:"gte=0"`
	Listen        string        `koanf:"listen" validate:"required,hostname_port"`
}

type TelemetryConfig struct {
	Exporter     string        `koanf:"exporter" validate:"oneof=none stdout otlp"`
	OTLPEndpoint string        `koanf:"otlp_endpoint"`
	OTLPInsecure bool          `koanf:"otlp_insecure"`
	OTLPTimeout  time.Duration `koanf:"otlp_timeout" validate:"gte=0"`
}

// AuditConfig configures the procedure step history.
type AuditConfig struct {
	SQLitePath string `koanf:"sqlite_path"`
}

// HasSink reports whether the named trace sink is selected.
func (c TraceConfig) HasSink(name string) bool {
	for _, s := range c.Sinks {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

var defaults = map[string]any{
	"log.level":  "info",
	"log.format": "text",

	"trace.enabled":        true,
	"trace.lines":          true,
	"trace.calls":          true,
	"trace.returns":        true,
	"trace.exceptions":     true,
	"trace.capture_values": true,
	"trace.max_len":        160,
	"trace.sinks":          []string{"console"},
	"trace.sqlite_path":    "fops-trace.db",

	"prompter.enabled":        true,
	"prompter.url":            "http://127.0.0.1:5533",
	"prompter.submit_timeout": "2s",
	"prompter.wait_timeout":   "1h",
	"prompter.listen":         "127.0.0.1:5533",

	"telemetry.exporter":     "none",
	"telemetry.otlp_timeout": "10s",
}

// Load reads the configuration at path, which may be empty. A profile
// named by FOPS_PROFILE overlays <name>.<profile>.<ext> from the same
// directory.
func Load(path string) (*Config, error) {
	return LoadWithOverrides(path, os.Getenv(ProfileEnv), nil)
}

// LoadWithOverrides is Load with an explicit profile and key=value overrides
// applied last.
func LoadWithOverrides(path, profile string, sets []string) (*Config, error) {
	k := koanf.New(".")
	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		if profile != "" {
			overlay := ProfilePath(path, profile)
			if _, err := os.Stat(overlay); err == nil {
				if err := k.Load(file.Provider(overlay), yaml.Parser()); err != nil {
					return nil, fmt.Errorf("load profile %s: %w", overlay, err)
				}
			}
		}
	}

	// FOPS_PROMPTER_SUBMIT_TIMEOUT -> prompter.submit_timeout
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		if s == ProfileEnv {
			return ""
		}
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
	}), nil); err != nil {
		return nil, err
	}

	for _, set := range sets {
		key, value, ok := strings.Cut(set, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid override %q, expected key=value", set)
		}
		if err := k.Set(strings.TrimSpace(key), value); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ProfilePath returns the overlay file of profile for the config at path:
// fops.yaml with profile dev gives fops.dev.yaml.
func ProfilePath(path, profile string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "." + profile + ext
}
