package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeText(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text unchanged", "Reparto de despensas", "Reparto de despensas"},
		{"keeps spanish diacritics", "Recolección de víveres en Cañón", "Recolección de víveres en Cañón"},
		{"keeps allowed punctuation", "Turno matutino (9 a.m.), zona 4", "Turno matutino (9 a.m.), zona 4"},
		{"strips angle brackets", "Brigada <b>urgente</b>", "Brigada burgenteb"},
		{"strips emoji", "Entrega 🚚 de despensas", "Entrega  de despensas"},
		{"strips control punctuation", "nombre; DROP TABLE tasks", "nombre DROP TABLE tasks"},
		{"trims surrounding whitespace", "  Acopio de víveres  ", "Acopio de víveres"},
		{"keeps diérisis", "Agüita para voluntarios", "Agüita para voluntarios"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeText(tc.input, 0))
		})
	}
}

func TestSanitizeText_Truncation(t *testing.T) {
	long := strings.Repeat("a", 200)
	assert.Len(t, SanitizeText(long, 50), 50)
	assert.Len(t, SanitizeText(long, 0), MaxSanitizedLength)

	// Truncation counts runes, not bytes.
	accented := strings.Repeat("á", 60)
	out := SanitizeText(accented, 50)
	assert.Equal(t, 50, len([]rune(out)))
}

func TestSanitizeText_NFCNormalization(t *testing.T) {
	// "e" followed by a combining acute accent normalizes to a single
	// allowed rune instead of being stripped.
	decomposed := "José"
	assert.Equal(t, "José", SanitizeText(decomposed, 0))
}

func TestContainsDisallowedRunes(t *testing.T) {
	assert.False(t, ContainsDisallowedRunes("Recolección de víveres (turno 1), zona A."))
	assert.True(t, ContainsDisallowedRunes("Brigada <urgente>"))
	assert.True(t, ContainsDisallowedRunes("Entrega 🚚"))
	assert.False(t, ContainsDisallowedRunes("José"))
}
