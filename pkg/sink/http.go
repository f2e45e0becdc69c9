// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jllopis/fops/pkg/trace"
)

// DefaultHTTPTimeout bounds each POST of the HTTP sink.
const DefaultHTTPTimeout = 5 * time.Second

// HTTP posts each event as JSON to a collector endpoint.
type HTTP struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// HTTPOption configures an HTTP sink.
type HTTPOption func(*HTTP)

// WithHTTPClient sets the client used for posting.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(h *HTTP) {
		if client != nil {
			h.client = client
		}
	}
}

// WithHTTPLogger sets the logger used to report delivery failures.
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(h *HTTP) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHTTP creates an HTTP sink posting to url.
func NewHTTP(url string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		url:    url,
		client: &http.Client{Timeout: DefaultHTTPTimeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type httpEvent struct {
	Event      string         `json:"event"`
	Function   string         `json:"function"`
	LineNumber int            `json:"line_number"`
	CodeLine   string         `json:"code_line"`
	Meta       map[string]any `json:"meta"`
}

// Emit implements trace.Sink. Delivery failures are logged and dropped.
func (h *HTTP) Emit(ctx context.Context, ev trace.Event) {
	if err := h.post(ctx, ev); err != nil {
		h.logger.WarnContext(ctx, "trace event delivery failed",
			slog.String("url", h.url),
			slog.String("event", string(ev.Kind)),
			slog.String("error", err.Error()))
	}
}

func (h *HTTP) post(ctx context.Context, ev trace.Event) error {
	body, err := json.Marshal(httpEvent{
		Event:      string(ev.Kind),
		Function:   ev.Function,
		LineNumber: ev.Line,
		CodeLine:   ev.Code,
		Meta:       ev.Meta,
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	// Delivery is bounded by the client timeout, not by the caller's deadline.
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("collector returned %s", resp.Status)
	}
	return nil
}
