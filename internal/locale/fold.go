// internal/locale/fold.go
package locale

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Fold produces the comparison form of UI text: NFKC normalised, case folded,
// Latin digits, and runs of whitespace collapsed to a single space.
func Fold(s string) string {
	// A Caser carries transform state, so a fresh one is used per call.
	folded := cases.Fold().String(norm.NFKC.String(s))
	folded = ToLatinDigits(folded)
	return strings.Join(strings.FieldsFunc(folded, unicode.IsSpace), " ")
}

// EqualFold reports whether a and b are the same text after folding.
func EqualFold(a, b string) bool {
	return Fold(a) == Fold(b)
}

// ContainsToken reports whether needle occurs in haystack after folding both.
// When the needle begins or ends with a digit the neighbouring characters in the
// haystack must not be digits, so "3" does not match inside "13" or "2025".
func ContainsToken(haystack, needle string) bool {
	h, n := Fold(haystack), Fold(needle)
	if n == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(n)
	last, _ := utf8.DecodeLastRuneInString(n)
	guardStart, guardEnd := isDigit(first), isDigit(last)

	for offset := 0; offset <= len(h)-len(n); {
		i := strings.Index(h[offset:], n)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(n)

		ok := true
		if guardStart && start > 0 {
			prev, _ := utf8.DecodeLastRuneInString(h[:start])
			ok = !isDigit(prev)
		}
		if ok && guardEnd && end < len(h) {
			next, _ := utf8.DecodeRuneInString(h[end:])
			ok = !isDigit(next)
		}
		if ok {
			return true
		}
		_, size := utf8.DecodeRuneInString(h[start:])
		offset = start + size
	}
	return false
}
