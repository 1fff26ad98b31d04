// File: cmd/history.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/internal/config"
	"github.com/xkilldash9x/lancet-cli/internal/observability"
	"github.com/xkilldash9x/lancet-cli/internal/store"
	"github.com/xkilldash9x/lancet-cli/internal/workflow"
)

// historyStore is the slice of the store the CLI needs.
type historyStore interface {
	workflow.HistoryStore
	RecentRuns(ctx context.Context, limit int) ([]store.RunSummary, error)
}

// storeProvider creates the run history store. It lets tests inject a mock instead
// of a live database connection.
type storeProvider interface {
	// Create returns the store, a cleanup function releasing its resources, and an error.
	Create(ctx context.Context, cfg *config.Config) (historyStore, func(), error)
}

// defaultStoreProvider connects to PostgreSQL.
type defaultStoreProvider struct{}

// NewStoreProvider returns the production store provider.
func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

func (p *defaultStoreProvider) Create(ctx context.Context, cfg *config.Config) (historyStore, func(), error) {
	logger := observability.GetLogger()
	if cfg.Database.URL == "" {
		return nil, nil, errors.New("database URL is not configured (LANCET_DATABASE_URL)")
	}
	s, err := store.Open(ctx, cfg.Database.URL, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open run history: %w", err)
	}
	cleanup := func() {
		s.Close()
		logger.Debug("Database connection pool closed.")
	}
	return s, cleanup, nil
}

// newHistoryCmd creates the `history` command.
func newHistoryCmd(provider storeProvider) *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent booking runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runHistory(ctx, observability.GetLogger(), cfg, provider, limit, cmd.OutOrStdout())
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "l", 20, "Number of runs to show")
	return historyCmd
}

func runHistory(ctx context.Context, logger *zap.Logger, cfg *config.Config, provider storeProvider, limit int, out io.Writer) error {
	if limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", limit)
	}
	s, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	runs, err := s.RecentRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	logger.Debug("Loaded run history.", zap.Int("runs", len(runs)))
	return printRuns(out, runs)
}

func printRuns(out io.Writer, runs []store.RunSummary) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(out, "No runs recorded.")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTARTED\tDURATION\tQUERY\tOUTCOME\tCONFIRMED\tFATAL")
	for _, r := range runs {
		fatal := string(r.Fatal)
		if fatal == "" {
			fatal = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d/%d\t%s\n",
			r.RunID,
			r.StartedAt.Local().Format(time.DateTime),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
			r.Query,
			r.Outcome,
			r.Confirmed, r.Attempts,
			fatal)
	}
	return tw.Flush()
}
