// Package similarity scores how alike two short strings such as person names are.
package similarity

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize trims, composes (NFC) and lower-cases s.
func Normalize(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	// Casers carry state, so one is built per call.
	return cases.Lower(language.Und).String(s)
}

// Dice returns the Sørensen–Dice coefficient over character bigrams of the
// normalized inputs, ignoring whitespace. Identical inputs score 1, inputs
// sharing no bigram score 0, and strings shorter than two runes only match
// when identical.
func Dice(a, b string) float64 {
	ra := []rune(stripSpace(Normalize(a)))
	rb := []rune(stripSpace(Normalize(b)))

	if string(ra) == string(rb) {
		return 1
	}
	if len(ra) < 2 || len(rb) < 2 {
		return 0
	}

	bigrams := make(map[[2]rune]int, len(ra)-1)
	for i := 0; i < len(ra)-1; i++ {
		bigrams[[2]rune{ra[i], ra[i+1]}]++
	}

	shared := 0
	for i := 0; i < len(rb)-1; i++ {
		bg := [2]rune{rb[i], rb[i+1]}
		if bigrams[bg] > 0 {
			bigrams[bg]--
			shared++
		}
	}

	return 2 * float64(shared) / float64(len(ra)-1+len(rb)-1)
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
