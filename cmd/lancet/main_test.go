// File: cmd/lancet/main_test.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetMocks(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		osWriteFile = os.WriteFile
		osExit = os.Exit
	})
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 0, exitCode(fmt.Errorf("run aborted: %w", context.Canceled)))
	assert.Equal(t, 1, exitCode(errors.New("listing not found")))
	assert.Equal(t, 1, exitCode(context.DeadlineExceeded))
}

func TestHandlePanic(t *testing.T) {
	t.Run("writes the panic log", func(t *testing.T) {
		resetMocks(t)
		var path string
		var contents []byte
		osWriteFile = func(name string, data []byte, perm os.FileMode) error {
			path, contents = name, data
			return nil
		}
		code := -1
		osExit = func(c int) { code = c }

		func() {
			defer handlePanic()
			panic("resolver exploded")
		}()

		assert.Equal(t, panicLogFile, path)
		assert.Contains(t, string(contents), "panic: resolver exploded")
		assert.Contains(t, string(contents), "goroutine")
		assert.Equal(t, 2, code)
	})

	t.Run("still exits when the log cannot be written", func(t *testing.T) {
		resetMocks(t)
		osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only file system") }
		code := -1
		osExit = func(c int) { code = c }

		func() {
			defer handlePanic()
			panic("boom")
		}()
		assert.Equal(t, 2, code)
	})

	t.Run("no panic is a no-op", func(t *testing.T) {
		resetMocks(t)
		osExit = func(int) { require.Fail(t, "exit must not be called") }
		func() {
			defer handlePanic()
		}()
	})
}
