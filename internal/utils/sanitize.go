package utils

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MaxSanitizedLength caps sanitized free-text fields.
const MaxSanitizedLength = 150

// allowedRune reports whether r survives sanitization: ASCII letters and
// digits, Spanish accented vowels, Ñ/ñ, Ü/ü, whitespace and ".,()".
func allowedRune(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == ' ', r == '\t', r == '\n', r == '\r':
		return true
	case r == '.', r == ',', r == '(', r == ')':
		return true
	}
	switch r {
	case 'Á', 'É', 'Í', 'Ó', 'Ú', 'á', 'é', 'í', 'ó', 'ú', 'Ñ', 'ñ', 'Ü', 'ü':
		return true
	}
	return false
}

// SanitizeText canonicalizes free text: NFC normalization so accented letters
// arrive as single runes, disallowed runes stripped, surrounding whitespace
// trimmed, result truncated to maxLen runes. maxLen <= 0 means
// MaxSanitizedLength.
func SanitizeText(text string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = MaxSanitizedLength
	}

	normalized := norm.NFC.String(text)

	var b strings.Builder
	b.Grow(len(normalized))
	for _, r := range normalized {
		if allowedRune(r) {
			b.WriteRune(r)
		}
	}

	out := strings.TrimSpace(b.String())
	runes := []rune(out)
	if len(runes) > maxLen {
		out = string(runes[:maxLen])
	}
	return out
}

// ContainsDisallowedRunes reports whether text (after NFC normalization)
// holds any rune outside the sanitization allowlist.
func ContainsDisallowedRunes(text string) bool {
	for _, r := range norm.NFC.String(text) {
		if !allowedRune(r) {
			return true
		}
	}
	return false
}
