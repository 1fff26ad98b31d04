// File: internal/config/plan.go
package config

import (
	"fmt"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/action"
	"github.com/xkilldash9x/lancet-cli/internal/navigation"
	"github.com/xkilldash9x/lancet-cli/internal/workflow"
)

// Plan converts the booking related sections into a run plan. An empty end date
// books the start date only.
func (c *Config) Plan() (workflow.Plan, error) {
	if err := c.ValidateBooking(); err != nil {
		return workflow.Plan{}, fmt.Errorf("invalid booking configuration: %w", err)
	}
	start, err := schemas.ParseCalendarDate(c.Booking.StartDate)
	if err != nil {
		return workflow.Plan{}, err
	}
	end := start
	if c.Booking.EndDate != "" {
		if end, err = schemas.ParseCalendarDate(c.Booking.EndDate); err != nil {
			return workflow.Plan{}, err
		}
	}

	return workflow.Plan{
		HomeURL:         c.Target.HomeURL,
		Query:           c.Target.Query,
		SearchURL:       c.Target.SearchURL,
		BookingURL:      c.Target.BookingURL,
		StartDate:       start,
		EndDate:         end,
		TimeLabel:       c.Booking.TimeLabel,
		Quantity:        c.Booking.Quantity,
		ResetDecrements: c.Booking.ResetDecrements,
		Credentials: workflow.Credentials{
			Email:    c.Credentials.Email,
			Password: c.Credentials.Password,
		},
		Deadline:         c.Timeouts.Deadline,
		StepBudget:       c.Timeouts.StepBudget,
		ProbeBudget:      c.Timeouts.ProbeBudget,
		NavigationBudget: c.Navigation.Budget,
		Retries:          c.Timeouts.Retries,
		PerTry:           c.Timeouts.PerTry,
		MaxReloads:       c.Navigation.MaxReloads,
		TermsScroll:      c.Timeouts.TermsScroll,
	}, nil
}

// GuardConfig maps the navigation section onto the guard settings.
func (c *Config) GuardConfig() navigation.GuardConfig {
	gc := navigation.DefaultGuardConfig()
	if c.Navigation.InitialBackoff > 0 {
		gc.InitialBackoff = c.Navigation.InitialBackoff
	}
	if c.Navigation.MaxBackoff > 0 {
		gc.MaxBackoff = c.Navigation.MaxBackoff
	}
	if c.Navigation.Multiplier >= 1 {
		gc.Multiplier = c.Navigation.Multiplier
	}
	gc.Markers = c.Navigation.NotFoundMarkers
	return gc
}

// Pacer builds the interaction pacer. Disabled pacing yields a pacer that never waits.
func (c *Config) Pacer() action.Pacer {
	if !c.Pacing.Enabled {
		return action.NoopPacer{}
	}
	return action.NewHumanPacer(action.PacerConfig{
		RetryMin:   c.Pacing.RetryMin,
		RetryMax:   c.Pacing.RetryMax,
		KeyMean:    c.Pacing.KeyMean,
		KeyStdDev:  c.Pacing.KeyStdDev,
		MinSpacing: c.Pacing.MinSpacing,
	})
}
