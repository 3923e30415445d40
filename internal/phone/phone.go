package phone

import "strings"

// Normalize strips spaces, punctuation, and a leading plus sign, leaving the
// digits used for storage and duplicate comparison.
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Valid reports whether a normalized phone number has a plausible length.
func Valid(normalized string) bool {
	return len(normalized) >= 8 && len(normalized) <= 15
}
