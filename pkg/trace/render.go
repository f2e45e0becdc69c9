// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package trace

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// DefaultMaxLen bounds rendered values when no limit is configured.
const DefaultMaxLen = 160

// SafeRender renders v for display. It never panics: a value whose String,
// Error or formatting panics is rendered as "<unrenderable T: msg>". Results
// longer than maxLen runes are cut to maxLen-3 runes followed by "...".
// A maxLen of zero or less disables truncation.
func SafeRender(v any, maxLen int) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = unrenderable(v, r)
		}
		out = truncate(out, maxLen)
	}()

	switch x := v.(type) {
	case nil:
		return "<nil>"
	case string:
		return strconv.Quote(x)
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	}
	s := fmt.Sprintf("%v", v)
	// fmt recovers panics from nested String methods and inlines a marker.
	if i := strings.Index(s, "(PANIC="); i >= 0 {
		return unrenderable(v, strings.TrimSuffix(s[i+len("(PANIC="):], ")"))
	}
	return s
}

func unrenderable(v any, reason any) string {
	return fmt.Sprintf("<unrenderable %T: %v>", v, reason)
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return strings.Repeat(".", maxLen)
	}
	runes := []rune(s)
	return string(runes[:maxLen-3]) + "..."
}
