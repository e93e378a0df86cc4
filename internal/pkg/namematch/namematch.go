// Package namematch normalizes transaction descriptions for word-level comparison.
package namematch

import (
	"strings"
	"unicode"
)

// Words lowercases s, strips every non-alphanumeric rune from each whitespace-separated
// token and drops tokens left empty.
func Words(s string) []string {
	var out []string
	for _, tok := range strings.Fields(s) {
		var b strings.Builder
		for _, r := range strings.ToLower(tok) {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(r)
			}
		}
		if b.Len() > 0 {
			out = append(out, b.String())
		}
	}
	return out
}

// FirstWords joins the first n normalized words of s with single spaces.
func FirstWords(s string, n int) string {
	words := Words(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

// SamePrefix reports whether a and b share the same first n normalized words.
// Names without any alphanumeric content never match.
func SamePrefix(a, b string, n int) bool {
	pa := FirstWords(a, n)
	return pa != "" && pa == FirstWords(b, n)
}

// Normalize collapses s to its normalized words separated by single spaces.
func Normalize(s string) string {
	return strings.Join(Words(s), " ")
}
