// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	ferrors "github.com/jllopis/fops/pkg/errors"
)

// Console asks for decisions on a terminal.
type Console struct {
	in     *bufio.Reader
	out    io.Writer
	prompt string
	warn   *color.Color
	alert  *color.Color

	readOnce sync.Once
	lines    chan consoleRead
	readErr  error
}

type consoleRead struct {
	line string
	err  error
}

// ConsoleOption configures the console decider.
type ConsoleOption func(*Console)

// NewConsole creates a console decider reading stdin and writing stdout.
func NewConsole(opts ...ConsoleOption) *Console {
	c := &Console{
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		prompt: "Options: [r]etry, [s]kip, [c]ancel: ",
		warn:   color.New(color.FgYellow),
		alert:  color.New(color.FgRed, color.Bold),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithConsoleInput sets the input reader.
func WithConsoleInput(r io.Reader) ConsoleOption {
	return func(c *Console) {
		if r != nil {
			c.in = bufio.NewReader(r)
		}
	}
}

// WithConsoleOutput sets the output writer.
func WithConsoleOutput(w io.Writer) ConsoleOption {
	return func(c *Console) {
		if w != nil {
			c.out = w
		}
	}
}

// WithConsolePrompt sets the prompt string.
func WithConsolePrompt(prompt string) ConsoleOption {
	return func(c *Console) {
		if strings.TrimSpace(prompt) != "" {
			c.prompt = prompt
		}
	}
}

// WithConsoleColor enables or disables ANSI colours.
func WithConsoleColor(enabled bool) ConsoleOption {
	return func(c *Console) {
		for _, col := range []*color.Color{c.warn, c.alert} {
			if enabled {
				col.EnableColor()
			} else {
				col.DisableColor()
			}
		}
	}
}

// Name identifies the decision source.
func (c *Console) Name() string { return "console" }

// Decide prints the failure and reads one answer. End of input cancels;
// unrecognised answers retry.
func (c *Console) Decide(ctx context.Context, f Failure) (Decision, error) {
	_, _ = fmt.Fprintln(c.out, c.alert.Sprintf("Exception occurred: %v", f.Err))
	_, _ = fmt.Fprint(c.out, c.prompt)

	line, err := c.readLine(ctx)
	if errors.Is(err, io.EOF) {
		_, _ = fmt.Fprintln(c.out)
		return DecisionCancel, nil
	}
	if err != nil {
		return "", err
	}
	d, ok := ParseDecision(line)
	if !ok {
		_, _ = fmt.Fprintln(c.out, c.warn.Sprint("Invalid choice. Retrying..."))
	}
	return d, nil
}

// Ask prints message and returns the next input line, trimmed. It makes the
// console usable as an Asker for operator prompts.
func (c *Console) Ask(ctx context.Context, message string, _ []string) (string, error) {
	_, _ = fmt.Fprintln(c.out, message)
	_, _ = fmt.Fprint(c.out, "> ")
	line, err := c.readLine(ctx)
	if errors.Is(err, io.EOF) {
		return "", ferrors.New(ferrors.CodeChannelUnavailable, "console input closed", err).WithRecoverable(true)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readLine returns one line of input. io.EOF is returned only when nothing
// was read. A single goroutine owns the reader, so a read abandoned by its
// context leaves the next line to the next caller.
func (c *Console) readLine(ctx context.Context) (string, error) {
	c.readOnce.Do(func() {
		c.lines = make(chan consoleRead)
		go c.readLoop()
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r, ok := <-c.lines:
		if !ok {
			return "", c.readErr
		}
		if r.err != nil && strings.TrimSpace(r.line) == "" {
			return "", r.err
		}
		return r.line, nil
	}
}

// readLoop feeds input lines to readLine until the input fails. The error
// is then kept for every later read.
func (c *Console) readLoop() {
	for {
		line, err := c.in.ReadString('\n')
		if err != nil {
			if line != "" {
				c.lines <- consoleRead{line: line, err: err}
			}
			c.readErr = err
			close(c.lines)
			return
		}
		c.lines <- consoleRead{line: line}
	}
}
