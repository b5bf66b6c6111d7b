package utils

import (
	"strings"
)

// NormalizeTicker returns the EDGAR form of a ticker: upper-case, trimmed,
// "$" prefix removed, and share-class dots written as dashes ("BRK.B" -> "BRK-B").
func NormalizeTicker(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	t = strings.TrimPrefix(t, "$")
	t = strings.ReplaceAll(t, ".", "-")
	t = strings.ReplaceAll(t, "/", "-")
	return t
}

// IsNumeric reports whether s is a non-empty run of ASCII digits.
func IsNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// SafeName makes s usable as one path segment inside an archive:
// separators and spaces become "-", anything outside [A-Za-z0-9._-] is dropped.
func SafeName(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		case r == '/' || r == '\\' || r == ' ':
			b.WriteByte('-')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "unnamed"
	}
	return out
}
