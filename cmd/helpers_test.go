// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/browser"
	"github.com/xkilldash9x/lancet-cli/internal/config"
	"github.com/xkilldash9x/lancet-cli/internal/observability"
	"github.com/xkilldash9x/lancet-cli/internal/store"
)

// -- Mocks --

type mockLauncher struct {
	mock.Mock
}

func (m *mockLauncher) Launch(ctx context.Context, cfg *config.Config, logger *zap.Logger) (browser.Browser, error) {
	args := m.Called(ctx, cfg, logger)
	b, _ := args.Get(0).(browser.Browser)
	return b, args.Error(1)
}

type mockHistoryStore struct {
	mock.Mock
}

func (m *mockHistoryStore) SaveRun(ctx context.Context, report *schemas.RunReport) error {
	return m.Called(ctx, report).Error(0)
}

func (m *mockHistoryStore) RecentRuns(ctx context.Context, limit int) ([]store.RunSummary, error) {
	args := m.Called(ctx, limit)
	runs, _ := args.Get(0).([]store.RunSummary)
	return runs, args.Error(1)
}

type mockStoreProvider struct {
	mock.Mock
}

func (m *mockStoreProvider) Create(ctx context.Context, cfg *config.Config) (historyStore, func(), error) {
	args := m.Called(ctx, cfg)
	s, _ := args.Get(0).(historyStore)
	cleanup, _ := args.Get(1).(func())
	return s, cleanup, args.Error(2)
}

// -- Helpers --

// isolate runs the test in an empty working directory with a quiet logger so no
// stray lancet.yaml or environment leaks into the configuration.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("LANCET_LOGGER_LEVEL", "fatal")
	t.Setenv("LANCET_REPORTING_ARTIFACTS_DIR", dir+"/artifacts")
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)
	return dir
}

// executeCommand runs root with args and returns everything written to its output.
func executeCommand(t *testing.T, root *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func configWithoutDatabase() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Database.URL = ""
	return cfg
}
