package prompter

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/fops/pkg/core"
	ferrors "github.com/jllopis/fops/pkg/errors"
)

func startServer(t *testing.T, opts ...ServerOption) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(opts...)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestAskRoundTrip(t *testing.T) {
	submitted := make(chan Prompt, 1)
	srv, ts := startServer(t, WithPromptHook(func(p Prompt) { submitted <- p }))

	go func() {
		p := <-submitted
		_ = srv.Answer(p.ID, "s")
	}()

	answer, err := NewClient(ts.URL).Ask(context.Background(), "Send failed: retry?", []string{"r", "s"})
	require.NoError(t, err)
	assert.Equal(t, "s", answer)

	prompts := srv.List()
	require.Len(t, prompts, 1)
	assert.Equal(t, "Send failed: retry?", prompts[0].Message)
	assert.Equal(t, []string{"r", "s"}, prompts[0].Options)
	assert.True(t, prompts[0].Answered)
}

func TestSubmitDefaultsOptions(t *testing.T) {
	srv, ts := startServer(t)
	id, err := NewClient(ts.URL).Submit(context.Background(), "question", nil)
	require.NoError(t, err)

	pending := srv.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)
	assert.Equal(t, DefaultOptions, pending[0].Options)
}

func TestWaitReturnsStoredAnswer(t *testing.T) {
	srv, ts := startServer(t)
	p := srv.Add("already answered", nil)
	require.NoError(t, srv.Answer(p.ID, "r"))
	require.NoError(t, srv.Answer(p.ID, "c"), "second answer is ignored")

	answer, err := NewClient(ts.URL).Wait(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "r", answer)
}

func TestAnswerEndpoint(t *testing.T) {
	srv, ts := startServer(t)
	p := srv.Add("q", nil)
	client := NewClient(ts.URL)

	require.NoError(t, client.Answer(context.Background(), p.ID, "c"))
	got, err := srv.Wait(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "c", got)

	err = client.Answer(context.Background(), "nope", "c")
	require.Error(t, err)
	assert.Equal(t, ferrors.CodeChannelUnavailable, ferrors.CodeOf(err))
}

func TestUnknownWaitIs404(t *testing.T) {
	_, ts := startServer(t)
	resp, err := http.Get(ts.URL + "/wait?id=missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPromptEndpointRejectsBadJSON(t *testing.T) {
	_, ts := startServer(t)
	resp, err := http.Post(ts.URL+"/prompt", "application/json", bytes.NewBufferString("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListAndClear(t *testing.T) {
	srv, ts := startServer(t)
	a := srv.Add("first", nil)
	srv.Add("second", nil)
	require.NoError(t, srv.Answer(a.ID, "r"))

	prompts, err := NewClient(ts.URL).List(context.Background())
	require.NoError(t, err)
	require.Len(t, prompts, 2)
	assert.Equal(t, "first", prompts[0].Message)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/prompts", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 1, out["cleared"])
	assert.Len(t, srv.List(), 1)
}

func TestWaitTimeoutIsTimeoutError(t *testing.T) {
	srv, ts := startServer(t)
	p := srv.Add("never answered", nil)

	client := NewClient(ts.URL, WithWaitTimeout(50*time.Millisecond))
	_, err := client.Wait(context.Background(), p.ID)
	require.Error(t, err)
	assert.Equal(t, ferrors.CodeTimeout, ferrors.CodeOf(err))
	assert.True(t, ferrors.IsRecoverable(err))
}

func TestUnreachableServer(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := NewClient(url).Ask(context.Background(), "anyone?", nil)
	require.Error(t, err)
	assert.Equal(t, ferrors.CodeChannelUnavailable, ferrors.CodeOf(err))
}

func TestServerWaitHonoursContext(t *testing.T) {
	srv := NewServer()
	p := srv.Add("q", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := srv.Wait(ctx, p.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = srv.Wait(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownPrompt)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("")
	assert.Equal(t, DefaultURL, c.BaseURL())
	assert.Equal(t, "http://h:1", NewClient("http://h:1/").BaseURL())
}

func TestHealthReportsStalePrompts(t *testing.T) {
	srv, ts := startServer(t, WithStaleAfter(20*time.Millisecond))
	client := NewClient(ts.URL)

	report, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.HealthHealthy, report.Status)
	require.Len(t, report.Components, 1)
	assert.Equal(t, "prompts", report.Components[0].Component)

	srv.Add("waiting", nil)
	time.Sleep(40 * time.Millisecond)
	report, err = client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.HealthDegraded, report.Status)
	assert.Contains(t, report.Components[0].Message, "1 of 1 pending")
}

func TestHealthUnhealthyIs503(t *testing.T) {
	h := core.NewHealth()
	h.Register("config", func(context.Context) core.HealthResult {
		return core.HealthResult{Status: core.HealthUnhealthy, Message: "reload failed"}
	})
	_, ts := startServer(t, WithHealth(h))

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	report, err := NewClient(ts.URL).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.HealthUnhealthy, report.Status)
	assert.Len(t, report.Components, 2)
}
