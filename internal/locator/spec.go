// internal/locator/spec.go
package locator

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/locale"
)

// TargetKind names the semantic role of the element being looked for.
type TargetKind int

const (
	KindDayButton TargetKind = iota
	KindTimeSlot
	KindCookieAction
	KindAuthField
	KindPlusButton
	KindMinusButton
	KindConfirmButton
	KindTermsCheckbox
	KindSearchBox
	KindResultLink
	KindBookingEntry
)

var kindNames = map[TargetKind]string{
	KindDayButton:     "DayButton",
	KindTimeSlot:      "TimeSlot",
	KindCookieAction:  "CookieAction",
	KindAuthField:     "AuthField",
	KindPlusButton:    "PlusButton",
	KindMinusButton:   "MinusButton",
	KindConfirmButton: "ConfirmButton",
	KindTermsCheckbox: "TermsCheckbox",
	KindSearchBox:     "SearchBox",
	KindResultLink:    "ResultLink",
	KindBookingEntry:  "BookingEntry",
}

func (k TargetKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TargetKind(%d)", int(k))
}

// ParseTargetKind maps a kind name (case insensitive) back to its value.
func ParseTargetKind(s string) (TargetKind, error) {
	for kind, name := range kindNames {
		if strings.EqualFold(name, s) {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown target kind '%s'", s)
}

// MatchMode bounds how permissive text matching may become.
// Each mode enables the strategies of the modes before it.
type MatchMode int

const (
	MatchExact MatchMode = iota
	MatchContains
	MatchRegex
)

// defaultScopes are the selectors whose text the text strategies inspect.
var defaultScopes = map[TargetKind]string{
	KindDayButton:     `button, [role="button"], [role="gridcell"], td, li`,
	KindTimeSlot:      `button, [role="button"], [role="radio"], label, li`,
	KindCookieAction:  `button, [role="button"], a`,
	KindAuthField:     `input`,
	KindPlusButton:    `button, [role="button"]`,
	KindMinusButton:   `button, [role="button"]`,
	KindConfirmButton: `button, [role="button"], a, input[type="submit"]`,
	KindTermsCheckbox: `label, [role="checkbox"]`,
	KindSearchBox:     `input, [role="searchbox"], [role="combobox"]`,
	KindResultLink:    `a, [role="link"]`,
	KindBookingEntry:  `a, button, [role="button"]`,
}

// Spec is a semantic lookup request. It is built per workflow step and used once.
type Spec struct {
	Kind TargetKind
	// Name describes the target in logs.
	Name string
	// Candidates are tried in order; earlier candidates are more specific.
	Candidates []string
	// Structural lists CSS selectors that identify the target without relying on text.
	Structural []string
	// Scope overrides the per-kind selector inspected by text strategies.
	Scope string
	Mode  MatchMode
	// Tokens are the canonical "HH:MM" tokens the regex strategy accepts.
	Tokens []string
}

// ScopeSelector returns the selector text strategies query.
func (s Spec) ScopeSelector() string {
	if s.Scope != "" {
		return s.Scope
	}
	if scope, ok := defaultScopes[s.Kind]; ok {
		return scope
	}
	return "button, a"
}

func (s Spec) String() string {
	if s.Name != "" {
		return fmt.Sprintf("%s(%s)", s.Kind, s.Name)
	}
	return s.Kind.String()
}

// -- Spec builders --

// DaySpec targets the calendar cell for a date.
func DaySpec(d schemas.CalendarDate) Spec {
	iso := d.ISO()
	return Spec{
		Kind:       KindDayButton,
		Name:       iso,
		Candidates: locale.DateVariants(d),
		Structural: []string{
			fmt.Sprintf(`[data-date="%s"]`, iso),
			fmt.Sprintf(`[data-day="%s"]`, iso),
			fmt.Sprintf(`time[datetime="%s"]`, iso),
		},
		Mode: MatchContains,
	}
}

// TimeSpec targets a time slot from its expanded variants.
func TimeSpec(set locale.TimeVariantSet) Spec {
	var structural []string
	for _, tok := range set.Tokens {
		structural = append(structural,
			fmt.Sprintf(`[data-time="%s"]`, tok),
			fmt.Sprintf(`[data-slot="%s"]`, tok),
		)
	}
	return Spec{
		Kind:       KindTimeSlot,
		Name:       set.Label,
		Candidates: set.Variants,
		Structural: structural,
		Mode:       MatchRegex,
		Tokens:     set.Tokens,
	}
}

// CookieRejectSpec targets the consent banner's reject control.
func CookieRejectSpec() Spec {
	return Spec{
		Kind:       KindCookieAction,
		Name:       "reject",
		Candidates: []string{"Reject all", "Reject All", "رفض الكل", "Reject", "رفض"},
		Structural: []string{
			`#onetrust-reject-all-handler`,
			`button[data-testid="reject-all"]`,
			`[data-cookie-action="reject"]`,
		},
		Mode: MatchExact,
	}
}

// EmailFieldSpec targets the login identity input.
func EmailFieldSpec() Spec {
	return Spec{
		Kind: KindAuthField,
		Name: "email",
		Structural: []string{
			`input[type="email"]`,
			`input[autocomplete="username"]`,
			`input[placeholder*="Email" i]`,
			`input[name*="email" i]`,
		},
		Mode: MatchExact,
	}
}

// PasswordFieldSpec targets the login secret input.
func PasswordFieldSpec() Spec {
	return Spec{
		Kind:       KindAuthField,
		Name:       "password",
		Structural: []string{`input[type="password"]`},
		Mode:       MatchExact,
	}
}

// LoginButtonSpec targets the login form's submit control.
func LoginButtonSpec() Spec {
	return Spec{
		Kind:       KindConfirmButton,
		Name:       "login",
		Candidates: []string{"Login", "Log in", "Sign in", "تسجيل الدخول"},
		Mode:       MatchExact,
	}
}

// SearchBoxSpec targets the site search input.
func SearchBoxSpec() Spec {
	return Spec{
		Kind:       KindSearchBox,
		Name:       "search",
		Candidates: []string{"Search", "بحث"},
		Structural: []string{
			`input[type="search"]`,
			`input[name="q"]`,
			`input[placeholder*="Search" i]`,
			`input[placeholder*="بحث"]`,
		},
		Mode: MatchContains,
	}
}

// ResultLinkSpec targets the search result that matches the query.
// The full query is tried first, then its individual keywords.
func ResultLinkSpec(query string) Spec {
	candidates := []string{strings.TrimSpace(query)}
	for _, word := range strings.Fields(query) {
		if len([]rune(word)) >= 3 && !strings.EqualFold(word, query) {
			candidates = append(candidates, word)
		}
	}
	return Spec{
		Kind:       KindResultLink,
		Name:       query,
		Candidates: candidates,
		Mode:       MatchContains,
	}
}

// BookingEntrySpec targets the control on a listing that opens its booking surface.
func BookingEntrySpec() Spec {
	return Spec{
		Kind:       KindBookingEntry,
		Name:       "book",
		Candidates: []string{"Book now", "Book tickets", "Buy tickets", "Get tickets", "Book", "احجز الآن", "احجز"},
		Structural: []string{`a[href$="/book"]`, `[data-testid="book-button"]`},
		Mode:       MatchContains,
	}
}

// PlusSpec targets the ticket quantity increment control.
func PlusSpec() Spec {
	return Spec{
		Kind:       KindPlusButton,
		Name:       "increase",
		Candidates: []string{"+", "＋"},
		Structural: []string{
			`[aria-label="increase" i]`,
			`button[title*="increase" i]`,
			`[data-testid*="increment" i]`,
		},
		Mode: MatchExact,
	}
}

// MinusSpec targets the ticket quantity decrement control.
func MinusSpec() Spec {
	return Spec{
		Kind:       KindMinusButton,
		Name:       "decrease",
		Candidates: []string{"-", "−", "–"},
		Structural: []string{
			`[aria-label="decrease" i]`,
			`button[title*="decrease" i]`,
			`[data-testid*="decrement" i]`,
		},
		Mode: MatchExact,
	}
}

// CheckoutSpec targets the first confirmation phase.
func CheckoutSpec() Spec {
	return Spec{
		Kind:       KindConfirmButton,
		Name:       "checkout",
		Candidates: []string{"Next: Checkout", "Checkout", "Next", "التالي"},
		Mode:       MatchContains,
	}
}

// TermsSpec targets the terms and conditions acceptance box.
func TermsSpec() Spec {
	return Spec{
		Kind:       KindTermsCheckbox,
		Name:       "terms",
		Candidates: []string{"I agree", "I accept", "Terms", "أوافق", "الشروط"},
		Structural: []string{`input[type="checkbox"][name*="term" i]`, `input[type="checkbox"]`},
		Mode:       MatchContains,
	}
}

// CompleteSpec targets the final booking confirmation.
func CompleteSpec() Spec {
	return Spec{
		Kind:       KindConfirmButton,
		Name:       "complete",
		Candidates: []string{"Complete booking", "Confirm", "Complete", "إتمام"},
		Mode:       MatchContains,
	}
}
