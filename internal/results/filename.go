package results

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// removeDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func removeDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// SanitizeName makes a user-supplied export name safe to use as a file or
// folder name: diacritics stripped, path separators and control characters
// replaced, leading dots dropped.
func SanitizeName(name string) string {
	name = removeDiacritics(strings.TrimSpace(name))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == 0:
			b.WriteRune('_')
		case unicode.IsControl(r):
			// drop
		default:
			b.WriteRune(r)
		}
	}

	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		out = "export"
	}
	return out
}
