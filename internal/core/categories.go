package core

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Categories is the vocabulary offered by the dashboard. Free text outside it
// is still accepted.
var Categories = []string{
	"Alimentação",
	"Moradia",
	"Transporte",
	"Saúde",
	"Educação",
	"Lazer",
	"Compras",
	"Serviços",
	"Assinaturas",
	"Impostos",
	"Salário",
	"Investimentos",
	"Outros",
	DefaultCategory,
}

// maxCategoryDistance is the largest edit distance, on folded text, at which
// a typed category is snapped to the vocabulary.
const maxCategoryDistance = 2

// Fold lower-cases s, trims it and strips combining marks, so "Descrição "
// and "descricao" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

// CanonicalCategory maps s onto the vocabulary when it is an accent, case or
// small-typo variant of a known category. Otherwise the trimmed input is
// returned unchanged; blank input yields the default category.
func CanonicalCategory(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultCategory
	}
	folded := Fold(s)

	best, bestDist := "", maxCategoryDistance+1
	for _, c := range Categories {
		fc := Fold(c)
		if fc == folded {
			return c
		}
		// Short words would match almost anything at distance 2.
		if len([]rune(folded)) < 5 {
			continue
		}
		if d := levenshtein.ComputeDistance(folded, fc); d < bestDist {
			best, bestDist = c, d
		}
	}
	if best != "" {
		return best
	}
	return s
}
