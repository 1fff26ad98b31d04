package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists run history in PostgreSQL.
type Store struct {
	pool  DBPool
	log   *zap.Logger
	close func()
}

// RunSummary is one row of the run history listing.
type RunSummary struct {
	RunID      string
	Query      string
	Outcome    schemas.RunOutcome
	Fatal      schemas.ErrorKind
	StartedAt  time.Time
	FinishedAt time.Time
	Attempts   int
	Confirmed  int
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS lancet_runs (
    run_id        TEXT PRIMARY KEY,
    query         TEXT NOT NULL,
    outcome       TEXT NOT NULL,
    fatal         TEXT NOT NULL DEFAULT '',
    fatal_message TEXT NOT NULL DEFAULT '',
    final_url     TEXT NOT NULL DEFAULT '',
    started_at    TIMESTAMPTZ NOT NULL,
    finished_at   TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS lancet_attempts (
    id          TEXT PRIMARY KEY,
    run_id      TEXT NOT NULL REFERENCES lancet_runs (run_id) ON DELETE CASCADE,
    date        DATE NOT NULL,
    final_state TEXT NOT NULL,
    errors      TEXT[] NOT NULL DEFAULT '{}',
    detail      TEXT[] NOT NULL DEFAULT '{}',
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL
);
`

const (
	sqlInsertRun = `
        INSERT INTO lancet_runs (run_id, query, outcome, fatal, fatal_message, final_url, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
    `
	sqlInsertAttempt = `
        INSERT INTO lancet_attempts (id, run_id, date, final_state, errors, detail, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
    `
	sqlRecentRuns = `
        SELECT r.run_id, r.query, r.outcome, r.fatal, r.started_at, r.finished_at,
               COUNT(a.id), COUNT(a.id) FILTER (WHERE a.final_state = 'Confirmed')
        FROM lancet_runs r
        LEFT JOIN lancet_attempts a ON a.run_id = r.run_id
        GROUP BY r.run_id
        ORDER BY r.started_at DESC
        LIMIT $1;
    `
)

// Open connects to databaseURL, verifies the connection and ensures the schema exists.
func Open(ctx context.Context, databaseURL string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	s, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.close = pool.Close
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// Migrate creates the history tables when they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close releases the pool when the store owns it.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// SaveRun writes the run and all of its attempts in one transaction.
func (s *Store) SaveRun(ctx context.Context, report *schemas.RunReport) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	_, err = tx.Exec(ctx, sqlInsertRun,
		report.RunID, report.Query, string(report.Outcome()),
		string(report.Fatal), report.FatalMessage, report.FinalURL,
		report.StartedAt.UTC(), report.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", report.RunID, err)
	}

	for i, a := range report.Attempts {
		kinds := make([]string, len(a.Errors))
		for j, k := range a.Errors {
			kinds[j] = string(k)
		}
		detail := a.Detail
		if detail == nil {
			detail = []string{}
		}
		_, err := tx.Exec(ctx, sqlInsertAttempt,
			a.ID, report.RunID, a.Date.Time(), a.FinalState.String(),
			kinds, detail, a.StartedAt.UTC(), a.FinishedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert attempt %s (index %d): %w", a.ID, i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Run persisted.", zap.String("run_id", report.RunID), zap.Int("attempts", len(report.Attempts)))
	return nil
}

// RecentRuns lists the newest runs first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, sqlRecentRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var outcome, fatal string
		var attempts, confirmed int64
		if err := rows.Scan(&r.RunID, &r.Query, &outcome, &fatal, &r.StartedAt, &r.FinishedAt, &attempts, &confirmed); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		r.Outcome = schemas.RunOutcome(outcome)
		r.Fatal = schemas.ErrorKind(fatal)
		r.Attempts = int(attempts)
		r.Confirmed = int(confirmed)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}
