// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package trace

import (
	"os"
	"strings"
	"sync"
)

type sourceCache struct {
	mu    sync.Mutex
	files map[string][]string
}

var sources = &sourceCache{files: make(map[string][]string)}

// SourceLine returns the trimmed text of line n (1-based) of file, or "" when
// the file cannot be read or has no such line. Files are read once per process.
func SourceLine(file string, n int) string {
	return sources.line(file, n)
}

func (c *sourceCache) line(file string, n int) string {
	if file == "" || n <= 0 {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	lines, ok := c.files[file]
	if !ok {
		data, err := os.ReadFile(file)
		if err == nil {
			lines = strings.Split(string(data), "\n")
		}
		// Unreadable files are cached as empty so they are not retried.
		c.files[file] = lines
	}
	if n > len(lines) {
		return ""
	}
	return strings.TrimSpace(lines[n-1])
}
