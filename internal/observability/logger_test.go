// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/lancet-cli/internal/config"
)

func bufferSink() (*bytes.Buffer, zapcore.WriteSyncer) {
	var buf bytes.Buffer
	return &buf, zapcore.AddSync(&buf)
}

func TestInitialize(t *testing.T) {
	t.Run("should initialize console logger with colors", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		buf, sink := bufferSink()

		Initialize(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "lancet",
			Colors:      config.ColorConfig{Info: "green"},
		}, sink)
		GetLogger().Named("workflow").Info("State transition", zap.String("to", "Searching"))
		Sync()

		output := buf.String()
		assert.Contains(t, output, colorGreen+"INFO"+colorReset)
		assert.Contains(t, output, "lancet.workflow.")
		assert.Contains(t, output, "State transition")
		assert.Contains(t, output, `"to": "Searching"`)
	})

	t.Run("should initialize json logger", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		buf, sink := bufferSink()

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "lancet"}, sink)
		GetLogger().Warn("Reloading page", zap.Int("attempt", 2))
		Sync()

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "Log output should be valid JSON")
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "lancet", entry["logger"])
		assert.Equal(t, "Reloading page", entry["msg"])
		assert.EqualValues(t, 2, entry["attempt"])
	})

	t.Run("should drop entries below the configured level", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		buf, sink := bufferSink()

		Initialize(config.LoggerConfig{Level: "warn", Format: "json"}, sink)
		GetLogger().Info("quiet")
		Sync()
		assert.Empty(t, buf.String())
	})

	t.Run("should write to a rotating log file if configured", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		_, sink := bufferSink()
		logFile := filepath.Join(t.TempDir(), "lancet.log")

		Initialize(config.LoggerConfig{Level: "debug", Format: "console", LogFile: logFile, MaxSize: 1}, sink)
		GetLogger().Error("This should go to the file.")
		Sync()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"msg":"This should go to the file."`, "file output is always JSON")
	})

	t.Run("should only initialize once", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		buf, sink := bufferSink()

		Initialize(config.LoggerConfig{Level: "info", ServiceName: "First"}, sink)
		first := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", ServiceName: "Second"}, sink)
		second := GetLogger()

		assert.Same(t, first, second)
		second.Info("test")
		Sync()
		assert.Contains(t, buf.String(), "First")
		assert.NotContains(t, buf.String(), "Second")
	})
}

func TestNewLogger_LeavesGlobalsAlone(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)
	buf, sink := bufferSink()

	logger := NewLogger(config.LoggerConfig{Level: "info", Format: "json"}, sink)
	logger.Info("local")
	assert.Contains(t, buf.String(), "local")
	assert.Nil(t, globalLogger.Load())
}

func TestGetLogger(t *testing.T) {
	t.Run("should return a fallback logger if not initialized", func(t *testing.T) {
		ResetForTest()
		require.NotNil(t, GetLogger())
	})

	t.Run("should return the global logger after initialization", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		_, sink := bufferSink()
		Initialize(config.LoggerConfig{Level: "info"}, sink)
		assert.Same(t, globalLogger.Load(), GetLogger())
	})
}
