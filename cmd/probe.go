// File: cmd/probe.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/config"
	"github.com/xkilldash9x/lancet-cli/internal/locale"
	"github.com/xkilldash9x/lancet-cli/internal/locator"
	"github.com/xkilldash9x/lancet-cli/internal/navigation"
	"github.com/xkilldash9x/lancet-cli/internal/observability"
)

// errProbeMiss is returned when no strategy resolved the target within the budget.
var errProbeMiss = errors.New("target not resolved")

type probeOptions struct {
	url    string
	kind   string
	text   string
	budget time.Duration
}

// newProbeCmd creates the `probe` diagnostic command.
func newProbeCmd(launcher browserLauncher) *cobra.Command {
	opts := probeOptions{}

	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Resolve a single target on a page and report the winning strategy",
		Long: `Loads a page through the navigation guard and runs the element resolver for one
target kind. Useful to check which strategy finds a control after the site changes.

Kinds: DayButton, TimeSlot, CookieAction, AuthField, PlusButton, MinusButton,
ConfirmButton, TermsCheckbox, SearchBox, ResultLink, BookingEntry.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			spec, err := probeSpec(opts.kind, opts.text)
			if err != nil {
				return err
			}
			if opts.url == "" {
				opts.url = cfg.Target.HomeURL
			}
			if opts.budget <= 0 {
				opts.budget = cfg.Timeouts.StepBudget
			}

			res, err := runProbe(ctx, observability.GetLogger(), cfg, launcher, opts.url, spec, opts.budget)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !res.Found {
				fmt.Fprintf(out, "%s: not found after %d rounds\n", spec, res.Rounds)
				return errProbeMiss
			}
			fmt.Fprintf(out, "%s: strategy=%s candidate=%q element=%s rounds=%d\n",
				spec, res.Strategy, res.Candidate, res.Element.Describe(), res.Rounds)
			return nil
		},
	}

	probeCmd.Flags().StringVar(&opts.url, "url", "", "Page to load (defaults to target.home_url)")
	probeCmd.Flags().StringVarP(&opts.kind, "kind", "k", locator.KindCookieAction.String(), "Target kind")
	probeCmd.Flags().StringVar(&opts.text, "text", "", "Visible text, date (DayButton) or time label (TimeSlot)")
	probeCmd.Flags().DurationVar(&opts.budget, "budget", 0, "Resolution budget (defaults to timeouts.step_budget)")
	probeCmd.Flags().String("driver", config.DriverChromedp, "Browser driver: chromedp or playwright")
	probeCmd.Flags().Bool("headless", false, "Run the browser without a window")
	bindFlag(probeCmd, "driver", "browser.driver")
	bindFlag(probeCmd, "headless", "browser.headless")

	return probeCmd
}

// probeSpec builds the lookup for a kind. Text replaces the built in candidates
// for kinds that are not date or time driven.
func probeSpec(kindName, text string) (locator.Spec, error) {
	kind, err := locator.ParseTargetKind(kindName)
	if err != nil {
		return locator.Spec{}, err
	}

	switch kind {
	case locator.KindDayButton:
		d, err := schemas.ParseCalendarDate(text)
		if err != nil {
			return locator.Spec{}, fmt.Errorf("DayButton needs --text YYYY-MM-DD: %w", err)
		}
		return locator.DaySpec(d), nil
	case locator.KindTimeSlot:
		set, err := locale.TimeVariants(text)
		if err != nil {
			return locator.Spec{}, fmt.Errorf("TimeSlot needs a --text time label: %w", err)
		}
		return locator.TimeSpec(set), nil
	case locator.KindResultLink:
		if text == "" {
			return locator.Spec{}, errors.New("ResultLink needs --text with the search query")
		}
		return locator.ResultLinkSpec(text), nil
	}

	if text != "" {
		return locator.Spec{Kind: kind, Name: text, Candidates: []string{text}, Mode: locator.MatchContains}, nil
	}
	builders := map[locator.TargetKind]func() locator.Spec{
		locator.KindCookieAction:  locator.CookieRejectSpec,
		locator.KindAuthField:     locator.EmailFieldSpec,
		locator.KindPlusButton:    locator.PlusSpec,
		locator.KindMinusButton:   locator.MinusSpec,
		locator.KindConfirmButton: locator.CheckoutSpec,
		locator.KindTermsCheckbox: locator.TermsSpec,
		locator.KindSearchBox:     locator.SearchBoxSpec,
		locator.KindBookingEntry:  locator.BookingEntrySpec,
	}
	build, ok := builders[kind]
	if !ok {
		return locator.Spec{}, fmt.Errorf("no built in lookup for %s; pass --text", kind)
	}
	return build(), nil
}

// runProbe loads url through the navigation guard and resolves spec once.
func runProbe(ctx context.Context, logger *zap.Logger, cfg *config.Config, launcher browserLauncher,
	url string, spec locator.Spec, budget time.Duration) (locator.Result, error) {
	b, err := launcher.Launch(ctx, cfg, logger)
	if err != nil {
		return locator.Result{}, fmt.Errorf("failed to launch browser: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("Browser did not shut down cleanly.", zap.Error(err))
		}
	}()

	pages, err := b.Pages(ctx)
	if err != nil {
		return locator.Result{}, err
	}
	page := pages[0]

	guard := navigation.NewGuard(logger, cfg.GuardConfig())
	healthy, err := guard.EnsureHealthy(ctx, page, url, navigation.DefaultTransforms(), cfg.Navigation.MaxReloads)
	if err != nil {
		return locator.Result{}, err
	}
	if !healthy {
		return locator.Result{}, fmt.Errorf("page %s did not load without a not-found response", url)
	}

	res, err := locator.NewResolver(logger).Resolve(ctx, page, spec, budget)
	if err != nil {
		return locator.Result{}, err
	}
	logger.Info("Probe finished.", zap.Stringer("spec", spec), zap.Bool("found", res.Found), zap.String("strategy", res.Strategy))
	return res, nil
}
