// File: cmd/book.go
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/action"
	"github.com/xkilldash9x/lancet-cli/internal/config"
	"github.com/xkilldash9x/lancet-cli/internal/locator"
	"github.com/xkilldash9x/lancet-cli/internal/navigation"
	"github.com/xkilldash9x/lancet-cli/internal/observability"
	"github.com/xkilldash9x/lancet-cli/internal/reporting"
	"github.com/xkilldash9x/lancet-cli/internal/workflow"
)

// errNothingBooked is returned when the run finished without confirming any date.
var errNothingBooked = errors.New("no requested date was booked")

// newBookCmd creates and configures the `book` command.
func newBookCmd(launcher browserLauncher, stores storeProvider) *cobra.Command {
	bookCmd := &cobra.Command{
		Use:   "book",
		Short: "Book tickets for every date in the requested range",
		Long: `Opens the ticketing site, finds the listing for the query and books the configured
time slot and quantity for each date from --start to --end. Dates that cannot be booked are
recorded and skipped; the command fails only when the run cannot continue at all.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runBook(ctx, observability.GetLogger(), cfg, launcher, stores)
		},
	}

	flags := bookCmd.Flags()
	flags.StringP("query", "q", "", "Event name to search for")
	flags.String("start", "", "First date to book (YYYY-MM-DD)")
	flags.String("end", "", "Last date to book (YYYY-MM-DD); defaults to --start")
	flags.StringP("time", "t", "", "Time slot label, e.g. \"18:00 - 23:00\"")
	flags.IntP("quantity", "n", 1, "Tickets per date")
	flags.String("search-url", "", "Search URL template containing {query}, used when no search box is found")
	flags.String("booking-url", "", "Direct booking page URL, used when no booking control is found")
	flags.String("driver", config.DriverChromedp, "Browser driver: chromedp or playwright")
	flags.Bool("headless", false, "Run the browser without a window")
	flags.Duration("deadline", 0, "Wall clock limit for the whole run (0 disables it)")
	flags.StringP("format", "f", "json", "Report format: json or text")
	flags.StringP("output", "o", reporting.StdoutDestination, "Report directory, or stdout")

	bindFlag(bookCmd, "query", "target.query")
	bindFlag(bookCmd, "start", "booking.start_date")
	bindFlag(bookCmd, "end", "booking.end_date")
	bindFlag(bookCmd, "time", "booking.time_label")
	bindFlag(bookCmd, "quantity", "booking.quantity")
	bindFlag(bookCmd, "search-url", "target.search_url")
	bindFlag(bookCmd, "booking-url", "target.booking_url")
	bindFlag(bookCmd, "driver", "browser.driver")
	bindFlag(bookCmd, "headless", "browser.headless")
	bindFlag(bookCmd, "deadline", "timeouts.deadline")
	bindFlag(bookCmd, "format", "reporting.format")
	bindFlag(bookCmd, "output", "reporting.output")

	return bookCmd
}

// runBook contains the core, testable logic of the booking command.
func runBook(ctx context.Context, logger *zap.Logger, cfg *config.Config, launcher browserLauncher, stores storeProvider) error {
	plan, err := cfg.Plan()
	if err != nil {
		return err
	}

	reporter, err := reporting.New(cfg.Reporting.Format, cfg.Reporting.Output, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize reporter: %w", err)
	}
	artifacts, err := reporting.NewArtifactWriter(cfg.Reporting.ArtifactsDir, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize artifact writer: %w", err)
	}

	deps := workflow.Dependencies{
		Resolver:  locator.NewResolver(logger),
		Executor:  action.NewExecutor(logger, cfg.Pacer()),
		Guard:     navigation.NewGuard(logger, cfg.GuardConfig()),
		Reporter:  reporter,
		Artifacts: artifacts,
	}

	// History is best effort; a run is never refused because the database is down.
	if cfg.Database.URL != "" {
		history, cleanup, err := stores.Create(ctx, cfg)
		if err != nil {
			logger.Warn("Run history disabled.", zap.Error(err))
		} else {
			if cleanup != nil {
				defer cleanup()
			}
			deps.History = history
		}
	}

	b, err := launcher.Launch(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("Browser did not shut down cleanly.", zap.Error(err))
		}
	}()

	report, err := workflow.New(logger, deps).Run(ctx, b, plan)
	if err != nil {
		if report == nil {
			return err
		}
		return fmt.Errorf("booking run %s failed: %w", report.RunID, err)
	}

	outcome := report.Outcome()
	logger.Info("Booking run complete.",
		zap.String("run_id", report.RunID),
		zap.String("outcome", string(outcome)),
		zap.Int("attempts", len(report.Attempts)))
	if outcome == schemas.OutcomeFailed {
		return fmt.Errorf("booking run %s: %w", report.RunID, errNothingBooked)
	}
	return nil
}
