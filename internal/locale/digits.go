// internal/locale/digits.go
package locale

import (
	"strings"
)

// arabicIndicZero is U+0660 ARABIC-INDIC DIGIT ZERO; the ten digits are contiguous.
const arabicIndicZero = '٠'

// ToLatinDigits maps each Arabic-Indic digit to its Latin equivalent. Every other rune is left untouched.
func ToLatinDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= arabicIndicZero && r <= arabicIndicZero+9 {
			return '0' + (r - arabicIndicZero)
		}
		return r
	}, s)
}

// ToArabicIndicDigits is the inverse of ToLatinDigits.
func ToArabicIndicDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return arabicIndicZero + (r - '0')
		}
		return r
	}, s)
}

func isDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= arabicIndicZero && r <= arabicIndicZero+9)
}
