// internal/locator/strategy.go
package locator

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/lancet-cli/internal/browser"
	"github.com/xkilldash9x/lancet-cli/internal/locale"
)

// RegexScanWindow caps the nodes the fuzzy time-of-day strategy inspects.
const RegexScanWindow = 250

// Match is a strategy hit before the visibility check.
type Match struct {
	Element browser.Element
	// Candidate is the selector or text that produced the hit.
	Candidate string
}

// Strategy is one way of finding a target in the live DOM. Implementations are read-only.
type Strategy interface {
	Name() string
	Applies(spec Spec) bool
	Find(ctx context.Context, page browser.Page, spec Spec) ([]Match, error)
}

// DefaultStrategies returns the fixed priority order: structural, exact text, contains text, regex.
func DefaultStrategies() []Strategy {
	return []Strategy{
		StructuralStrategy{},
		ExactTextStrategy{},
		ContainsTextStrategy{},
		RegexStrategy{ScanWindow: RegexScanWindow},
	}
}

// -- Structural --

// StructuralStrategy matches attribute selectors such as a machine readable date attribute.
type StructuralStrategy struct{}

func (StructuralStrategy) Name() string { return "structural" }

func (StructuralStrategy) Applies(spec Spec) bool { return len(spec.Structural) > 0 }

func (StructuralStrategy) Find(ctx context.Context, page browser.Page, spec Spec) ([]Match, error) {
	var out []Match
	for _, sel := range spec.Structural {
		els, err := page.QueryAll(ctx, browser.Query{Selector: sel})
		if err != nil {
			return out, fmt.Errorf("structural query '%s': %w", sel, err)
		}
		for _, el := range els {
			out = append(out, Match{Element: el, Candidate: sel})
		}
	}
	return out, nil
}

// -- Text strategies --

// textStrategy runs one scoped query and filters the captured text against every
// candidate in order, so hits are grouped by candidate priority.
func textStrategy(ctx context.Context, page browser.Page, spec Spec, match func(text, candidate string) bool) ([]Match, error) {
	els, err := page.QueryAll(ctx, browser.Query{Selector: spec.ScopeSelector()})
	if err != nil {
		return nil, fmt.Errorf("text scope query: %w", err)
	}
	var out []Match
	for _, candidate := range spec.Candidates {
		for _, el := range els {
			if match(el.Text(), candidate) {
				out = append(out, Match{Element: el, Candidate: candidate})
			}
		}
	}
	return out, nil
}

// ExactTextStrategy compares folded accessible text for equality.
type ExactTextStrategy struct{}

func (ExactTextStrategy) Name() string { return "exact_text" }

func (ExactTextStrategy) Applies(spec Spec) bool { return len(spec.Candidates) > 0 }

func (ExactTextStrategy) Find(ctx context.Context, page browser.Page, spec Spec) ([]Match, error) {
	return textStrategy(ctx, page, spec, locale.EqualFold)
}

// ContainsTextStrategy looks for a candidate inside the accessible text.
type ContainsTextStrategy struct{}

func (ContainsTextStrategy) Name() string { return "contains_text" }

func (ContainsTextStrategy) Applies(spec Spec) bool {
	return spec.Mode >= MatchContains && len(spec.Candidates) > 0
}

func (ContainsTextStrategy) Find(ctx context.Context, page browser.Page, spec Spec) ([]Match, error) {
	return textStrategy(ctx, page, spec, locale.ContainsToken)
}

// -- Regex --

// RegexStrategy is the last resort for time slots. It extracts every time-of-day token
// from a bounded window of nodes and accepts a node whose first token equals the
// requested start time.
type RegexStrategy struct {
	ScanWindow int
}

func (RegexStrategy) Name() string { return "regex" }

func (RegexStrategy) Applies(spec Spec) bool {
	return spec.Mode >= MatchRegex && spec.Kind == KindTimeSlot && len(spec.Tokens) > 0
}

func (s RegexStrategy) Find(ctx context.Context, page browser.Page, spec Spec) ([]Match, error) {
	els, err := page.QueryAll(ctx, browser.Query{Selector: spec.ScopeSelector(), Limit: s.ScanWindow})
	if err != nil {
		return nil, fmt.Errorf("regex scan query: %w", err)
	}
	want := spec.Tokens[0]
	var out []Match
	for _, el := range els {
		tokens := locale.TimeTokens(el.Text())
		if len(tokens) > 0 && tokens[0] == want {
			out = append(out, Match{Element: el, Candidate: locale.TimeOfDayPattern.String()})
		}
	}
	return out, nil
}
