package util

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

var reRecipeCode = regexp.MustCompile(`^[\p{L}0-9]+(?:[-_./ ][\p{L}0-9]+)*$`)

// NormalizeKey case-folds, trims and collapses internal whitespace. Every
// lookup key and similarity input goes through it.
func NormalizeKey(input string) string {
	return strings.Join(strings.Fields(cases.Fold().String(input)), " ")
}

func StripSpaces(input string) string {
	return strings.Join(strings.Fields(input), "")
}

// Words splits on whitespace and keeps words with more than minLen runes.
func Words(input string, minLen int) []string {
	parts := strings.Fields(input)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if utf8.RuneCountInString(p) > minLen {
			out = append(out, p)
		}
	}
	return out
}

// LooksLikeRecipeCode reports whether input has the shape of a plant recipe
// code: alphanumeric segments joined by - _ . / or single spaces, with at
// least one digit.
func LooksLikeRecipeCode(input string) bool {
	s := strings.TrimSpace(input)
	if utf8.RuneCountInString(s) < 3 || utf8.RuneCountInString(s) > 64 {
		return false
	}
	if !reRecipeCode.MatchString(s) {
		return false
	}
	return strings.ContainsAny(s, "0123456789")
}

func Levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
