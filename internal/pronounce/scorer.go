// Package pronounce scores how closely a heard utterance matches an expected
// phrase. The score is derived from the edit distance between the normalized
// strings and is used both for pronunciation feedback and for XP awards.
package pronounce

import (
	"math"
	"strings"
	"unicode"
)

// Normalize lower-cases the input and strips every character that is not a
// word character or whitespace, then trims the result. Runs of whitespace are
// preserved as-is so that word boundaries keep their cost in the distance.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			b.WriteRune(r)
		}
		// Everything else (punctuation, symbols) is dropped
	}
	return strings.TrimSpace(b.String())
}

// Levenshtein computes the classic edit distance between two strings with
// insertion, deletion and substitution each costing 1. Uses a rolling row, so
// memory is O(min of the lengths in practice, len(b)+1 here).
func Levenshtein(a, b string) int {
	ar := []rune(a)
	br := []rune(b)
	n, m := len(ar), len(br)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}

	row := make([]int, m+1)
	for j := 0; j <= m; j++ {
		row[j] = j
	}

	for i := 1; i <= n; i++ {
		prev := row[0]
		row[0] = i
		for j := 1; j <= m; j++ {
			tmp := row[j]
			cost := 0
			if ar[i-1] != br[j-1] {
				cost = 1
			}
			ins := row[j] + 1
			del := row[j-1] + 1
			sub := prev + cost
			row[j] = min3(ins, del, sub)
			prev = tmp
		}
	}

	return row[m]
}

// Score returns a 0-100 pronunciation-match score between the expected phrase
// and what was heard. Both inputs are normalized first. If both normalize to
// the empty string the match is vacuously perfect and the score is 100.
func Score(expected, heard string) int {
	a := Normalize(expected)
	b := Normalize(heard)

	if a == "" && b == "" {
		return 100
	}

	d := Levenshtein(a, b)
	max := len([]rune(a))
	if l := len([]rune(b)); l > max {
		max = l
	}
	if max == 0 {
		max = 1
	}

	score := int(math.Round((1 - float64(d)/float64(max)) * 100))
	if score < 0 {
		score = 0
	}
	// No upper clamp: the distance never exceeds the longer length
	return score
}

func min3(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}
