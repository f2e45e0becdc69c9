// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package prompter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/jllopis/fops/pkg/core"
)

// DefaultStaleAfter is how long a prompt may wait before the server reports
// itself degraded.
const DefaultStaleAfter = 10 * time.Minute

// ErrUnknownPrompt is returned when a prompt id is not registered.
var ErrUnknownPrompt = errors.New("unknown prompt id")

// Prompt is a question waiting for, or holding, an operator answer.
type Prompt struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Options   []string  `json:"options"`
	CreatedAt time.Time `json:"created_at"`
	Answer    string    `json:"answer,omitempty"`
	Answered  bool      `json:"answered"`
}

type entry struct {
	prompt Prompt
	seq    uint64
	done   chan struct{}
}

// Server is the operator side of the prompt channel. Prompts live in memory
// until they are answered and cleared.
type Server struct {
	mu       sync.Mutex
	prompts  map[string]*entry
	seq      uint64
	logger   *slog.Logger
	onPrompt func(Prompt)
	router   *mux.Router
	health   *core.Health
	stale    time.Duration
}

// HealthReport is the body of GET /healthz.
type HealthReport struct {
	Status     core.HealthStatus   `json:"status"`
	Components []core.HealthResult `json:"components"`
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the server logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPromptHook registers a callback run for every new prompt.
func WithPromptHook(fn func(Prompt)) ServerOption {
	return func(s *Server) {
		s.onPrompt = fn
	}
}

// WithHealth reports the checks of h, plus the server's own, on /healthz.
func WithHealth(h *core.Health) ServerOption {
	return func(s *Server) {
		if h != nil {
			s.health = h
		}
	}
}

// WithStaleAfter sets how long a prompt may stay unanswered before the
// server reports itself degraded.
func WithStaleAfter(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.stale = d
		}
	}
}

// NewServer creates a prompt server.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		prompts: make(map[string]*entry),
		logger:  slog.Default(),
		health:  core.NewHealth(),
		stale:   DefaultStaleAfter,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.health.Register("prompts", s.checkPrompts)
	s.router = mux.NewRouter()
	s.RegisterRoutes(s.router)
	return s
}

// RegisterRoutes mounts the prompt endpoints on r.
func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/prompt", s.handlePrompt).Methods(http.MethodPost)
	r.HandleFunc("/wait", s.handleWait).Methods(http.MethodGet)
	r.HandleFunc("/answer", s.handleAnswer).Methods(http.MethodPost)
	r.HandleFunc("/prompts", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/prompts", s.handleClear).Methods(http.MethodDelete)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("prompter listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Add registers a new prompt and returns it.
func (s *Server) Add(message string, options []string) Prompt {
	if len(options) == 0 {
		options = append([]string(nil), DefaultOptions...)
	}
	p := Prompt{
		ID:        uuid.NewString(),
		Message:   message,
		Options:   options,
		CreatedAt: time.Now(),
	}
	s.mu.Lock()
	s.seq++
	s.prompts[p.ID] = &entry{prompt: p, seq: s.seq, done: make(chan struct{})}
	hook := s.onPrompt
	s.mu.Unlock()

	s.logger.Info("prompt registered", slog.String("prompt_id", p.ID), slog.String("message", message))
	if hook != nil {
		hook(p)
	}
	return p
}

// Answer records the answer of a prompt and releases its waiters. Only the
// first answer counts.
func (s *Server) Answer(id, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.prompts[id]
	if !ok {
		return ErrUnknownPrompt
	}
	if e.prompt.Answered {
		return nil
	}
	e.prompt.Answer = answer
	e.prompt.Answered = true
	close(e.done)
	s.logger.Info("prompt answered", slog.String("prompt_id", id), slog.String("answer", answer))
	return nil
}

// Wait blocks until the prompt is answered or ctx is done.
func (s *Server) Wait(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	e, ok := s.prompts[id]
	s.mu.Unlock()
	if !ok {
		return "", ErrUnknownPrompt
	}
	select {
	case <-e.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return e.prompt.Answer, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// List returns all prompts in submission order.
func (s *Server) List() []Prompt {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.prompts))
	for _, e := range s.prompts {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})
	out := make([]Prompt, len(entries))
	for i, e := range entries {
		out[i] = e.prompt
	}
	s.mu.Unlock()
	return out
}

// Pending returns the unanswered prompts in submission order.
func (s *Server) Pending() []Prompt {
	var out []Prompt
	for _, p := range s.List() {
		if !p.Answered {
			out = append(out, p)
		}
	}
	return out
}

// ClearAnswered drops every answered prompt and returns how many were removed.
func (s *Server) ClearAnswered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.prompts {
		if e.prompt.Answered {
			delete(s.prompts, id)
			n++
		}
	}
	return n
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	p := s.Add(req.Message, req.Options)
	writeJSON(w, http.StatusOK, promptResponse{ID: p.ID})
}

func (s *Server) handleWait(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	answer, err := s.Wait(r.Context(), id)
	switch {
	case errors.Is(err, ErrUnknownPrompt):
		http.Error(w, "Unknown id", http.StatusNotFound)
		return
	case err != nil:
		// client went away
		return
	}
	writeJSON(w, http.StatusOK, answerPayload{ID: id, Answer: answer})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.Answer(req.ID, req.Answer); err != nil {
		http.Error(w, "Unknown id", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"prompts": s.List()})
}

func (s *Server) handleClear(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"cleared": s.ClearAnswered()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	results, status := s.health.CheckAll(r.Context())
	code := http.StatusOK
	if status == core.HealthUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, HealthReport{Status: status, Components: results})
}

// checkPrompts degrades when an operator has left a prompt waiting too long.
func (s *Server) checkPrompts(context.Context) core.HealthResult {
	pending := s.Pending()
	stale := 0
	for _, p := range pending {
		if time.Since(p.CreatedAt) > s.stale {
			stale++
		}
	}
	if stale > 0 {
		return core.HealthResult{
			Status:  core.HealthDegraded,
			Message: fmt.Sprintf("%d of %d pending prompts waiting longer than %s", stale, len(pending), s.stale),
		}
	}
	return core.HealthResult{
		Status:  core.HealthHealthy,
		Message: fmt.Sprintf("%d pending", len(pending)),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
