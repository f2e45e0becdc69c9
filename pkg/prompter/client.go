// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

// Package prompter implements the interactive decision channel: an HTTP client
// that asks an operator a question and blocks for the answer, and the server
// an operator console runs to collect those answers.
package prompter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	ferrors "github.com/jllopis/fops/pkg/errors"
)

const (
	// DefaultURL is where the operator console listens by default.
	DefaultURL = "http://127.0.0.1:5533"

	// DefaultSubmitTimeout bounds the POST that registers a prompt.
	DefaultSubmitTimeout = 2 * time.Second

	// DefaultWaitTimeout bounds how long an answer is awaited.
	DefaultWaitTimeout = time.Hour
)

// DefaultOptions are offered when a prompt carries no options.
var DefaultOptions = []string{"r", "s", "c"}

type promptRequest struct {
	Message string   `json:"message"`
	Options []string `json:"options"`
}

type promptResponse struct {
	ID string `json:"id"`
}

type answerPayload struct {
	ID     string `json:"id"`
	Answer string `json:"answer"`
}

// Client talks to a prompt server.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	submitTimeout time.Duration
	waitTimeout   time.Duration
	logger        *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithSubmitTimeout bounds the prompt registration request.
func WithSubmitTimeout(d time.Duration) ClientOption {
	return func(cl *Client) {
		if d > 0 {
			cl.submitTimeout = d
		}
	}
}

// WithWaitTimeout bounds how long Ask waits for an answer.
func WithWaitTimeout(d time.Duration) ClientOption {
	return func(cl *Client) {
		if d > 0 {
			cl.waitTimeout = d
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// NewClient creates a client for the server at baseURL (DefaultURL if empty).
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultURL
	}
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{},
		submitTimeout: DefaultSubmitTimeout,
		waitTimeout:   DefaultWaitTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ask registers a prompt and blocks until it is answered. Failures are
// CodeChannelUnavailable errors, or CodeTimeout when the wait expired.
func (c *Client) Ask(ctx context.Context, message string, options []string) (string, error) {
	id, err := c.Submit(ctx, message, options)
	if err != nil {
		return "", err
	}
	return c.Wait(ctx, id)
}

// Submit registers a prompt and returns its id.
func (c *Client) Submit(ctx context.Context, message string, options []string) (string, error) {
	if len(options) == 0 {
		options = DefaultOptions
	}
	body, err := json.Marshal(promptRequest{Message: message, Options: options})
	if err != nil {
		return "", ferrors.New(ferrors.CodeInternal, "encode prompt", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prompt", bytes.NewReader(body))
	if err != nil {
		return "", c.channelError("build prompt request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out promptResponse
	if err := c.do(req, &out); err != nil {
		return "", c.classify(ctx, "submit prompt", err)
	}
	if out.ID == "" {
		return "", c.channelError("submit prompt", errors.New("server returned no prompt id"))
	}
	c.logger.DebugContext(ctx, "prompt submitted", slog.String("prompt_id", out.ID))
	return out.ID, nil
}

// Wait blocks until the prompt id is answered.
func (c *Client) Wait(ctx context.Context, id string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.waitTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/wait?id="+url.QueryEscape(id), nil)
	if err != nil {
		return "", c.channelError("build wait request", err)
	}
	var out answerPayload
	if err := c.do(req, &out); err != nil {
		return "", c.classify(ctx, "wait for answer", err).WithContext("prompt_id", id)
	}
	return out.Answer, nil
}

// Answer posts an answer for a prompt id.
func (c *Client) Answer(ctx context.Context, id, answer string) error {
	body, err := json.Marshal(answerPayload{ID: id, Answer: answer})
	if err != nil {
		return ferrors.New(ferrors.CodeInternal, "encode answer", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/answer", bytes.NewReader(body))
	if err != nil {
		return c.channelError("build answer request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.do(req, nil); err != nil {
		return c.classify(ctx, "post answer", err)
	}
	return nil
}

// List fetches all prompts known to the server.
func (c *Client) List(ctx context.Context) ([]Prompt, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/prompts", nil)
	if err != nil {
		return nil, c.channelError("build list request", err)
	}
	var out struct {
		Prompts []Prompt `json:"prompts"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, c.classify(ctx, "list prompts", err)
	}
	return out.Prompts, nil
}

// Health fetches the server health report. An unhealthy server answers 503
// with a report, which is returned without error.
func (c *Client) Health(ctx context.Context) (*HealthReport, error) {
	ctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return nil, c.channelError("build health request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classify(ctx, "health check", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, c.channelError("health check", fmt.Errorf("unexpected status %s", resp.Status))
	}
	var report HealthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, c.channelError("decode health report", err)
	}
	return &report, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) classify(ctx context.Context, op string, err error) *ferrors.FopsError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ferrors.New(ferrors.CodeTimeout, op+" timed out", err).
			WithContext("url", c.baseURL).
			WithRecoverable(true)
	}
	return c.channelError(op, err)
}

func (c *Client) channelError(op string, err error) *ferrors.FopsError {
	return ferrors.New(ferrors.CodeChannelUnavailable, op, err).
		WithContext("url", c.baseURL).
		WithRecoverable(true)
}
