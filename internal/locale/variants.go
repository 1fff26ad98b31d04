// internal/locale/variants.go
package locale

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
)

var (
	monthShortEnglish = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
	monthLongEnglish  = [12]string{
		"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December",
	}
	monthLongArabic = [12]string{
		"يناير", "فبراير", "مارس", "أبريل", "مايو", "يونيو",
		"يوليو", "أغسطس", "سبتمبر", "أكتوبر", "نوفمبر", "ديسمبر",
	}
)

// TimeOfDayPattern matches any hour/minute token in either digit script with a colon,
// Arabic decimal separator or period between the parts.
var TimeOfDayPattern = regexp.MustCompile(`([0-9٠-٩]{1,2})\s*[:٫.]\s*([0-9٠-٩]{2})`)

// Separators that sites use between hours and minutes.
var timeSeparators = []string{":", "٫", "."}

// Dash spellings seen between the start and end of a slot label.
var rangeDashes = []string{" - ", "-", " – "}

// orderedSet keeps insertion order and drops duplicates.
type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (o *orderedSet) add(s string) {
	if s == "" {
		return
	}
	if _, ok := o.seen[s]; ok {
		return
	}
	o.seen[s] = struct{}{}
	o.items = append(o.items, s)
}

// DateVariants returns every textual rendering under which the date may appear in the UI.
// The ISO form always comes first, followed by day and month pairs and finally the bare day
// forms, so callers that try candidates in order prefer the most specific rendering.
func DateVariants(d schemas.CalendarDate) []string {
	set := newOrderedSet()
	set.add(d.ISO())

	days := []string{
		fmt.Sprintf("%02d", d.Day),
		strconv.Itoa(d.Day),
		ToArabicIndicDigits(strconv.Itoa(d.Day)),
	}
	idx := int(d.Month) - 1
	months := []string{monthShortEnglish[idx], monthLongEnglish[idx], monthLongArabic[idx]}

	for _, day := range days {
		for _, month := range months {
			set.add(day + " " + month)
		}
	}
	for _, day := range days {
		set.add(day)
	}
	return set.items
}

// TimeVariantSet is the expansion of a time label.
type TimeVariantSet struct {
	// Label is the canonical label the variants were generated from.
	Label string
	// Tokens are the canonical "HH:MM" tokens of the label in Latin digits.
	Tokens []string
	// Variants lists the literal renderings, most specific first.
	Variants []string
	// Pattern is the permissive last-resort matcher.
	Pattern *regexp.Regexp
}

// TimeVariants generates separator and digit-script variants for a "HH:MM" or
// "HH:MM - HH:MM" label. The start token alone is included for ranges so that a
// slot rendered as "16:00" still matches a "16:00 - 00:00" request.
func TimeVariants(label string) (TimeVariantSet, error) {
	tokens := TimeTokens(label)
	if len(tokens) == 0 {
		return TimeVariantSet{}, fmt.Errorf("time label '%s' contains no HH:MM token", label)
	}
	if len(tokens) > 2 {
		tokens = tokens[:2]
	}

	set := newOrderedSet()
	set.add(strings.TrimSpace(label))

	render := func(token, sep string, arabic bool) string {
		out := strings.Replace(token, ":", sep, 1)
		if arabic {
			out = ToArabicIndicDigits(out)
		}
		return out
	}

	scripts := []bool{false, true}
	if len(tokens) == 2 {
		for _, arabic := range scripts {
			for _, sep := range timeSeparators {
				for _, dash := range rangeDashes {
					set.add(render(tokens[0], sep, arabic) + dash + render(tokens[1], sep, arabic))
				}
			}
		}
	}
	for _, arabic := range scripts {
		for _, sep := range timeSeparators {
			set.add(render(tokens[0], sep, arabic))
		}
	}

	return TimeVariantSet{
		Label:    label,
		Tokens:   tokens,
		Variants: set.items,
		Pattern:  TimeOfDayPattern,
	}, nil
}

// TimeTokens extracts every time-of-day token in s, normalised to zero padded "HH:MM" Latin form.
func TimeTokens(s string) []string {
	matches := TimeOfDayPattern.FindAllStringSubmatch(s, -1)
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		hour, err := strconv.Atoi(ToLatinDigits(m[1]))
		if err != nil || hour > 24 {
			continue
		}
		minute := ToLatinDigits(m[2])
		if minute[0] > '5' {
			continue
		}
		tokens = append(tokens, fmt.Sprintf("%02d:%s", hour, minute))
	}
	return tokens
}
