package main

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/fops/pkg/prompter"
	"github.com/jllopis/fops/pkg/resilience"
)

func TestPrompterCommands(t *testing.T) {
	srv := prompter.NewServer()
	ts := httptest.NewServer(srv)
	defer ts.Close()
	p := srv.Add("Open valve", []string{"Ok"})

	out, errOut, code := runCLI(t, "", "prompter", "list", "--set", "prompter.url="+ts.URL)
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "Open valve")
	assert.Contains(t, out, "(pending)")

	out, errOut, code = runCLI(t, "", "prompter", "status", "--set", "prompter.url="+ts.URL)
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "HEALTHY")
	assert.Contains(t, out, "1 pending")

	_, errOut, code = runCLI(t, "", "prompter", "answer", p.ID, "Ok", "--set", "prompter.url="+ts.URL)
	require.Equal(t, exitOK, code, errOut)
	answer, err := srv.Wait(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ok", answer)
}

func TestPrompterUnreachable(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := ts.URL
	ts.Close()

	_, errOut, code := runCLI(t, "", "prompter", "list", "--set", "prompter.url="+url)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, errOut, "CHANNEL_UNAVAILABLE")
	assert.Contains(t, errOut, "fops prompter serve")
}

func TestAnswerFromConsole(t *testing.T) {
	srv := prompter.NewServer()
	pending := make(chan prompter.Prompt, 2)
	first := srv.Add("Open valve", []string{"Ok"})
	answered := srv.Add("Already handled", nil)
	require.NoError(t, srv.Answer(answered.ID, "s"))
	pending <- answered
	pending <- first

	var out strings.Builder
	console := resilience.NewConsole(
		resilience.WithConsoleInput(strings.NewReader("Ok\n")),
		resilience.WithConsoleOutput(&out),
	)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		answerFromConsole(ctx, srv, console, pending, discardLogger())
		close(done)
	}()

	answer, err := srv.Wait(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ok", answer)
	assert.Contains(t, out.String(), "Open valve\nOptions: Ok")
	assert.NotContains(t, out.String(), "Already handled")

	cancel()
	<-done
}
