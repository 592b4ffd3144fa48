package format

import (
	"regexp"
	"strings"
	"unicode"
)

var placeholderRe = regexp.MustCompile(`^[\s_.…]*$|^\[\s*\]$|^<\s*>$`)

// LooksLikeLabel reports whether cell or run text plausibly names a field.
// Short, letter-bearing, non-numeric text; a trailing colon is a strong hint
// but not required.
func LooksLikeLabel(s string) bool {
	t := strings.TrimSpace(s)
	if t == "" || len(t) > 80 {
		return false
	}
	hasLetter := false
	for _, r := range t {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return false
	}
	if strings.Count(t, " ") > 7 {
		// long sentences are instructions, not labels
		return strings.HasSuffix(t, ":")
	}
	return true
}

// IsPlaceholder reports whether text is a blank-slot convention: empty,
// underscores, dots, or an empty bracket pair.
func IsPlaceholder(s string) bool {
	return placeholderRe.MatchString(strings.TrimSpace(s))
}

// IsBlank reports whether text is empty after trimming.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// TrimLabel strips the trailing colon and whitespace from label text.
func TrimLabel(s string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ":"))
}
