package logging

import (
	"log/slog"
	"strings"
	"unicode"
)

// sanitizer returns a ReplaceAttr function that strips control characters
// from string values and truncates them to maxLen bytes. Policy programs
// control some of these strings.
func sanitizer(maxLen int) func([]string, slog.Attr) slog.Attr {
	return func(_ []string, a slog.Attr) slog.Attr {
		if a.Value.Kind() != slog.KindString {
			return a
		}
		s := a.Value.String()
		clean := strings.Map(func(r rune) rune {
			if r == '\n' || r == '\t' || !unicode.IsControl(r) {
				return r
			}
			return -1
		}, s)
		if maxLen > 0 && len(clean) > maxLen {
			clean = strings.ToValidUTF8(clean[:maxLen], "") + "..."
		}
		if clean == s {
			return a
		}
		return slog.String(a.Key, clean)
	}
}
