package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/jllopis/fops/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWithOverrides("", "", nil)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.True(t, cfg.Trace.Enabled)
	assert.True(t, cfg.Trace.Lines)
	assert.Equal(t, 160, cfg.Trace.MaxLen)
	assert.Equal(t, []string{"console"}, cfg.Trace.Sinks)
	assert.Equal(t, "http://127.0.0.1:5533", cfg.Prompter.URL)
	assert.Equal(t, 2*time.Second, cfg.Prompter.SubmitTimeout)
	assert.Equal(t, time.Hour, cfg.Prompter.WaitTimeout)
	assert.Equal(t, "none", cfg.Telemetry.Exporter)
	assert.Equal(t, 10*time.Second, cfg.Telemetry.OTLPTimeout)
}

func TestLoadFileAndProfile(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "fops.yaml")
	require.NoError(t, os.WriteFile(base, []byte(`
log:
  level: debug
trace:
  sinks: [console, sqlite]
  sqlite_path: /tmp/trace.db
prompter:
  wait_timeout: 30s
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fops.ops.yaml"), []byte(`
log:
  format: json
prompter:
  url: http://ops-host:5533
`), 0o644))

	cfg, err := LoadWithOverrides(base, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.True(t, cfg.Trace.HasSink("sqlite"))
	assert.False(t, cfg.Trace.HasSink("http"))
	assert.Equal(t, 30*time.Second, cfg.Prompter.WaitTimeout)

	cfg, err = LoadWithOverrides(base, "ops", nil)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "http://ops-host:5533", cfg.Prompter.URL)

	_, err = LoadWithOverrides(base, "missing", nil)
	assert.NoError(t, err, "absent overlays are ignored")
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("FOPS_PROMPTER_URL", "http://10.0.0.5:5533")
	t.Setenv("FOPS_PROMPTER_SUBMIT_TIMEOUT", "5s")
	t.Setenv("FOPS_TRACE_CAPTURE_VALUES", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:5533", cfg.Prompter.URL)
	assert.Equal(t, 5*time.Second, cfg.Prompter.SubmitTimeout)
	assert.False(t, cfg.Trace.CaptureValues)
}

func TestLoadProfileFromEnv(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "fops.yaml")
	require.NoError(t, os.WriteFile(base, []byte("log:\n  level: info\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fops.dev.yaml"), []byte("log:\n  level: debug\n"), 0o644))
	t.Setenv(ProfileEnv, "dev")

	cfg, err := Load(base)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestOverridesWin(t *testing.T) {
	t.Setenv("FOPS_LOG_LEVEL", "warn")
	cfg, err := LoadWithOverrides("", "", []string{
		"log.level=error",
		"trace.max_len=80",
		"trace.sinks=console,http",
		"trace.http_url=http://localhost:8000/trace",
	})
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, 80, cfg.Trace.MaxLen)
	assert.Equal(t, []string{"console", "http"}, cfg.Trace.Sinks)

	_, err = LoadWithOverrides("", "", []string{"log.level"})
	assert.ErrorContains(t, err, "expected key=value")
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name  string
		sets  []string
		field string
	}{
		{"bad level", []string{"log.level=loud"}, "log.level"},
		{"bad sink", []string{"trace.sinks=console,kafka"}, "trace.sinks[1]"},
		{"http sink without url", []string{"trace.sinks=http"}, "trace.http_url"},
		{"bad prompter url", []string{"prompter.url=not a url"}, "prompter.url"},
		{"bad listen", []string{"prompter.listen=nowhere"}, "prompter.listen"},
		{"otlp without endpoint", []string{"telemetry.exporter=otlp"}, "telemetry.otlp_endpoint"},
		{"bad exporter", []string{"telemetry.exporter=zipkin"}, "telemetry.exporter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWithOverrides("", "", tt.sets)
			require.Error(t, err)
			assert.Equal(t, ferrors.CodeInvalidConfig, ferrors.CodeOf(err))
			fe := ferrors.AsFopsError(err)
			require.NotNil(t, fe)
			assert.Equal(t, tt.field, fe.Context["field"])
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestProfilePath(t *testing.T) {
	assert.Equal(t, "/etc/fops/fops.dev.yaml", ProfilePath("/etc/fops/fops.yaml", "dev"))
}
