package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"buildcopy/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicLogging(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf))

	l.Info("info message")
	assert.Contains(t, buf.String(), "level=info")
	assert.Contains(t, buf.String(), "info message")
	buf.Reset()

	l.Warn("warn message")
	assert.Contains(t, buf.String(), "level=warning")
	assert.Contains(t, buf.String(), "warn message")
	buf.Reset()

	l.Error("error message")
	assert.Contains(t, buf.String(), "level=error")
	assert.Contains(t, buf.String(), "error message")
	buf.Reset()

	l.Infof("formatted %s", "message")
	assert.Contains(t, buf.String(), "formatted message")
}

func TestDebugLogging(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf))

	SetDebug(false)
	l.Debug("debug message")
	assert.Empty(t, buf.String())

	SetDebug(true)
	defer SetDebug(false)
	l.Debug("debug message")
	assert.Contains(t, buf.String(), "level=debug")
	assert.Contains(t, buf.String(), "debug message")
	buf.Reset()

	l.Debugf("formatted %s", "debug")
	assert.Contains(t, buf.String(), "formatted debug")
}

func TestStructuredLogging(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf))

	l.With(F("key1", "value1"), F("key2", 123)).Info("structured message")
	output := buf.String()
	assert.Contains(t, output, "structured message")
	assert.Contains(t, output, "key1=value1")
	assert.Contains(t, output, "key2=123")
	buf.Reset()

	// Chained fields accumulate
	l.With(F("key1", "value1")).With(F("key2", 123)).Info("chained fields")
	output = buf.String()
	assert.Contains(t, output, "key1=value1")
	assert.Contains(t, output, "key2=123")
}

func TestJSONLogging(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf), WithJSON())

	l.With(F("key1", "value1"), F("key2", 123)).Info("structured json")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))

	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "structured json", entry["message"])
	assert.Contains(t, entry, "timestamp")
	assert.Contains(t, entry, "caller")
	assert.Equal(t, "value1", entry["key1"])
	assert.Equal(t, float64(123), entry["key2"]) // JSON numbers are float64
}

func TestErrorLogging(t *testing.T) {
	var buf bytes.Buffer
	originalLogger := logger
	Configure(WithOutput(&buf))
	defer func() { logger = originalLogger }()

	stdErr := fmt.Errorf("standard error")
	LogWithFields(F("error", stdErr.Error())).Error("error occurred")
	output := buf.String()
	assert.Contains(t, output, "error occurred")
	assert.Contains(t, output, "standard error")
	buf.Reset()

	fileErr := errors.NewFileError("source does not exist", "/path/to/src", errors.SourceNotFound, nil)
	LogWithError(fileErr).Warn("skipping source")
	output = buf.String()
	assert.Contains(t, output, "skipping source")
	assert.Contains(t, output, "source does not exist: /path/to/src")
	assert.Contains(t, output, "path=/path/to/src")
	assert.Contains(t, output, "error_kind=1")
	buf.Reset()

	configErr := errors.NewConfigError("config error", "interval", errors.InvalidConfig, nil)
	LogWithError(configErr).Error("config error occurred")
	output = buf.String()
	assert.Contains(t, output, "param=interval")
	assert.Contains(t, output, "error_kind=7")
	buf.Reset()

	patternErr := errors.NewPatternError("invalid pattern", "[a", nil)
	LogWithError(patternErr).Error("bad glob")
	output = buf.String()
	assert.Contains(t, output, "error_kind=9")
	assert.Contains(t, output, "pattern=")
	buf.Reset()

	LogError(fileErr, "convenient error log")
	output = buf.String()
	assert.Contains(t, output, "convenient error log")
	assert.Contains(t, output, "/path/to/src")
}

func TestNilErrorHandling(t *testing.T) {
	var buf bytes.Buffer
	originalLogger := logger
	Configure(WithOutput(&buf))
	defer func() { logger = originalLogger }()

	LogWithError(nil).Error("nil error test")
	output := buf.String()
	assert.Contains(t, output, "nil error test")
	assert.Contains(t, output, "<nil>")
}

func TestCallerInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf))

	l.Info("caller test")
	assert.Contains(t, buf.String(), "logger_test.go:")
	buf.Reset()

	originalLogger := logger
	logger = l
	defer func() { logger = originalLogger }()
	Infof("global %s", "caller")
	assert.Contains(t, buf.String(), "logger_test.go:")
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buildcopy.log")

	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf), WithFile(path))
	l.Info("file test message")
	require.NoError(t, l.Close())

	assert.Contains(t, buf.String(), "file test message")
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "file test message")
}

func TestConfigureClosesPreviousFile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	originalLogger := logger
	defer func() { logger = originalLogger }()

	Configure(WithOutput(&buf), WithFile(filepath.Join(dir, "first.log")))
	first := logger
	require.NotNil(t, first.file)
	file := first.file

	Configure(WithOutput(&buf), WithFile(filepath.Join(dir, "second.log")))
	assert.Nil(t, first.file)
	_, err := file.WriteString("late entry")
	assert.ErrorIs(t, err, os.ErrClosed)

	Info("second message")
	require.NoError(t, Close())
	require.NoError(t, Close(), "closing twice is harmless")

	content, err := os.ReadFile(filepath.Join(dir, "second.log"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "second message")
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(&buf))

	l.WithContext(nil).Info("context message")
	assert.Contains(t, buf.String(), "context message")
}
