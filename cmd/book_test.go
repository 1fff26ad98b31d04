// File: cmd/book_test.go
package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/mocks"
)

// deadSite is a browser on which every page answers 404.
func deadSite(t *testing.T) *mocks.FakeBrowser {
	t.Helper()
	b := mocks.NewFakeBrowser()
	b.Primary().DefaultStatus = 404
	return b
}

func TestBook_FatalRunFailsAndStillReports(t *testing.T) {
	dir := isolate(t)
	t.Setenv("LANCET_NAVIGATION_MAX_RELOADS", "0")
	t.Setenv("LANCET_DATABASE_URL", "postgres://lancet@localhost/lancet")
	reports := filepath.Join(dir, "reports")

	b := deadSite(t)
	launcher := new(mockLauncher)
	launcher.On("Launch", mock.Anything, mock.Anything, mock.Anything).Return(b, nil)

	history := new(mockHistoryStore)
	history.On("SaveRun", mock.Anything, mock.MatchedBy(func(r *schemas.RunReport) bool {
		return r.Fatal == schemas.ErrorKindNavigationUnhealthy
	})).Return(nil).Once()
	cleaned := false
	stores := new(mockStoreProvider)
	stores.On("Create", mock.Anything, mock.Anything).Return(history, func() { cleaned = true }, nil)

	args := append(append([]string{}, bookArgs...), "--output", reports)
	_, err := executeCommand(t, newRootCmd(launcher, stores), args...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "booking run")

	history.AssertExpectations(t)
	assert.True(t, cleaned, "the store is released after the run")
	assert.True(t, b.Closed(), "the browser is closed after the run")

	files, err := filepath.Glob(filepath.Join(reports, "lancet-*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), string(schemas.ErrorKindNavigationUnhealthy))

	artifacts, err := os.ReadDir(filepath.Join(dir, "artifacts"))
	require.NoError(t, err)
	assert.NotEmpty(t, artifacts, "diagnostic artifacts are written on the fatal path")
}

func TestBook_HistoryOutageDoesNotBlockTheRun(t *testing.T) {
	isolate(t)
	t.Setenv("LANCET_DATABASE_URL", "postgres://lancet@localhost/lancet")

	launcher, captured := captureConfig(t)
	stores := new(mockStoreProvider)
	stores.On("Create", mock.Anything, mock.Anything).Return(nil, nil, assert.AnError)

	_, err := executeCommand(t, newRootCmd(launcher, stores), bookArgs...)
	require.ErrorIs(t, err, errNoChrome, "the run proceeds to launch without history")
	assert.NotNil(t, *captured)
	stores.AssertExpectations(t)
}

func TestBook_InvalidBookingIsRejectedBeforeLaunch(t *testing.T) {
	isolate(t)
	launcher := new(mockLauncher)

	_, err := executeCommand(t, newRootCmd(launcher, new(mockStoreProvider)),
		"book", "--query", "Suwaidi Park", "--start", "2025-11-01", "--time", "evening")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid booking configuration")
	launcher.AssertNotCalled(t, "Launch", mock.Anything, mock.Anything, mock.Anything)
}

func TestBook_RejectsArguments(t *testing.T) {
	isolate(t)
	_, err := executeCommand(t, newRootCmd(new(mockLauncher), new(mockStoreProvider)), "book", "Suwaidi Park")
	assert.Error(t, err)
}
