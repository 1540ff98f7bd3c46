package dedup

import (
	"strings"
	"unicode"
)

// minTitleTokens guards the similarity check against trivially short titles,
// where token overlap says nothing. Below this length items are always
// treated as distinct.
const minTitleTokens = 4

// NormalizeTitle lowercases a title and reduces it to its word tokens.
func NormalizeTitle(title string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, title)
	return strings.Fields(cleaned)
}

// TitleSimilarity returns the token-set Jaccard similarity of two normalized
// titles in [0,1]. Titles with fewer than minTitleTokens tokens score 0 so a
// false merge of two short, distinct headlines stays rare.
func TitleSimilarity(a, b []string) float64 {
	if len(a) < minTitleTokens || len(b) < minTitleTokens {
		return 0
	}

	setA := make(map[string]struct{}, len(a))
	for _, tok := range a {
		setA[tok] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, tok := range b {
		setB[tok] = struct{}{}
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
