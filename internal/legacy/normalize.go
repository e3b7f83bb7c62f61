package legacy

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold lowercases s and strips diacritics: "Año_Técnico" -> "ano_tecnico".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return cases.Lower(language.Spanish).String(strings.TrimSpace(out))
}

// tokens splits a folded key into alphanumeric words.
func tokens(s string) []string {
	return strings.FieldsFunc(fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// slug folds s into underscore-joined tokens: "Sistema Operativo" -> "sistema_operativo".
func slug(s string) string {
	return strings.Join(tokens(s), "_")
}

var yearPrefixes = []string{"ano", "anio", "year", "y"}

// ParseYearKey accepts legacy year keys like "año1", "ano2", "year1" or "1".
func ParseYearKey(key string) (int, bool) {
	k := strings.ReplaceAll(slug(key), "_", "")
	for _, p := range yearPrefixes {
		if strings.HasPrefix(k, p) {
			k = strings.TrimPrefix(k, p)
			break
		}
	}
	n, err := strconv.Atoi(k)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
