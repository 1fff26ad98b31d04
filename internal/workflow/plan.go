// internal/workflow/plan.go
package workflow

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/locale"
)

// Credentials identify the account used when a login surface appears.
type Credentials struct {
	Email    string
	Password string
}

// Complete reports whether both values are present.
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.Email) != "" && c.Password != ""
}

// Plan is the complete, plain-value input of a run. It is built once by the
// configuration layer and handed to the orchestrator.
type Plan struct {
	HomeURL string
	Query   string
	// SearchURL is a template containing "{query}", used when no search box resolves.
	SearchURL string
	// BookingURL is opened directly when no booking control resolves on the listing.
	BookingURL string

	StartDate schemas.CalendarDate
	EndDate   schemas.CalendarDate
	TimeLabel string
	Quantity  int
	// ResetDecrements is the maximum number of decrement clicks issued before incrementing.
	ResetDecrements int

	Credentials Credentials

	// Deadline bounds the whole run. Zero disables it.
	Deadline time.Duration
	// StepBudget is the resolver budget for required targets.
	StepBudget time.Duration
	// ProbeBudget is the resolver budget for optional targets (consent, login, terms).
	ProbeBudget      time.Duration
	NavigationBudget time.Duration
	Retries          int
	PerTry           time.Duration
	MaxReloads       int
	// TermsScroll is the wheel distance scrolled before looking for the terms box.
	TermsScroll float64
}

// DefaultPlan carries the timing defaults; callers fill in the target.
func DefaultPlan() Plan {
	return Plan{
		Quantity:         1,
		ResetDecrements:  6,
		StepBudget:       12 * time.Second,
		ProbeBudget:      3 * time.Second,
		NavigationBudget: 15 * time.Second,
		Retries:          3,
		PerTry:           5 * time.Second,
		MaxReloads:       3,
		TermsScroll:      1600,
	}
}

// Validate checks the plan before any browser work starts.
func (p Plan) Validate() error {
	var errs []error
	if _, err := url.ParseRequestURI(p.HomeURL); err != nil {
		errs = append(errs, fmt.Errorf("home url: %w", err))
	}
	if strings.TrimSpace(p.Query) == "" {
		errs = append(errs, errors.New("query must not be empty"))
	}
	if p.SearchURL != "" && !strings.Contains(p.SearchURL, "{query}") {
		errs = append(errs, errors.New("search url template must contain {query}"))
	}
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		errs = append(errs, errors.New("start and end dates are required"))
	}
	if _, err := locale.TimeVariants(p.TimeLabel); err != nil {
		errs = append(errs, err)
	}
	if p.Quantity < 0 {
		errs = append(errs, errors.New("quantity must not be negative"))
	}
	if p.ResetDecrements < 0 {
		errs = append(errs, errors.New("reset decrements must not be negative"))
	}
	if p.Retries < 1 {
		errs = append(errs, errors.New("retries must be at least 1"))
	}
	if p.StepBudget <= 0 || p.PerTry <= 0 {
		errs = append(errs, errors.New("step budget and per-try timeout must be positive"))
	}
	return errors.Join(errs...)
}

// Dates expands the requested range in ascending order; a reversed range is swapped.
func (p Plan) Dates() []schemas.CalendarDate {
	return schemas.DateRange(p.StartDate, p.EndDate)
}

// SearchURLFor renders the search template for the plan's query.
func (p Plan) SearchURLFor() string {
	return strings.ReplaceAll(p.SearchURL, "{query}", url.QueryEscape(p.Query))
}

func (p Plan) probeBudget() time.Duration {
	if p.ProbeBudget > 0 {
		return p.ProbeBudget
	}
	return p.StepBudget / 4
}
