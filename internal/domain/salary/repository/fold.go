package repository

import (
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips diacritics, so "Peón" and "peon" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
		runes.Map(unicode.ToLower))
	folded, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return folded
}

// minFuzzyTerm is the shortest query term allowed a one-edit typo.
const minFuzzyTerm = 4

// matchTerms reports whether every term of query occurs in key, either as a
// substring or, for longer terms, as a word within edit distance one.
func matchTerms(key string, terms []string) bool {
	words := strings.Fields(key)
	for _, term := range terms {
		if strings.Contains(key, term) {
			continue
		}
		if len([]rune(term)) < minFuzzyTerm || !nearWord(term, words) {
			return false
		}
	}
	return true
}

func nearWord(term string, words []string) bool {
	for _, w := range words {
		if fuzzy.LevenshteinDistance(term, w) <= 1 {
			return true
		}
	}
	return false
}
