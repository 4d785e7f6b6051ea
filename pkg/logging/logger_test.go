package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	rpcerrors "github.com/ajitpratap0/lsp-sdk-go/pkg/errors"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTextLogger(buf *bytes.Buffer) Logger {
	f := NewTextFormatter()
	f.DisableColors = true
	f.DisableTimestamp = true
	return New(buf, f)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newTextLogger(&buf)
	logger.SetLevel(DebugLevel)

	logger.Debug("Debug message", String("key", "value"))
	logger.Info("Info message", Int("count", 42))
	logger.Warn("Warning message", Bool("flag", true))
	logger.Error("Error message", ErrorField(errors.New("test error")))

	output := buf.String()
	assert.Contains(t, output, "[DEBUG] Debug message | key=value")
	assert.Contains(t, output, "[INFO] Info message | count=42")
	assert.Contains(t, output, "[WARN] Warning message | flag=true")
	assert.Contains(t, output, `[ERROR] Error message | error="test error"`)
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newTextLogger(&buf)
	logger.SetLevel(WarnLevel)

	logger.Debug("Debug message")
	logger.Info("Info message")
	logger.Warn("Warning message")
	logger.Error("Error message")

	output := buf.String()
	assert.NotContains(t, output, "Debug message")
	assert.NotContains(t, output, "Info message")
	assert.Contains(t, output, "Warning message")
	assert.Contains(t, output, "Error message")

	buf.Reset()
	logger.SetLevel(OffLevel)
	logger.Error("silenced")
	assert.Empty(t, buf.String())
}

func TestDerivedLoggersShareLevel(t *testing.T) {
	var buf bytes.Buffer
	root := newTextLogger(&buf)
	child := root.WithFields(Component("router"))

	root.SetLevel(ErrorLevel)
	child.Info("hidden")
	assert.Empty(t, buf.String())
	assert.Equal(t, ErrorLevel, child.GetLevel())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"", InfoLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"off", OffLevel},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestHeaderFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newTextLogger(&buf).WithFields(Component("transport"))

	logger.Info("dispatching", Method("textDocument/hover"), ID(protocol.NumberID(7)))
	assert.Equal(t, "[INFO] [7] transport textDocument/hover: dispatching\n", buf.String())
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithRequestID(context.Background(), protocol.StringID("abc"))

	newTextLogger(&buf).WithContext(ctx).Info("handling")
	assert.Contains(t, buf.String(), `["abc"]`)

	buf.Reset()
	newTextLogger(&buf).WithContext(context.Background()).Info("plain")
	assert.Equal(t, "[INFO] plain\n", buf.String())
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewJSONFormatter())

	err := rpcerrors.MethodNotFound("foo/bar").WithContext(&rpcerrors.Context{
		RequestID: "12",
		Method:    "foo/bar",
		Component: "router",
	})
	logger.WithError(err).Error("dispatch failed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "dispatch failed", entry["message"])
	assert.Equal(t, float64(-32601), entry["error_code"])
	assert.Equal(t, "protocol", entry["error_category"])
	assert.Equal(t, "12", entry["request_id"])
	assert.Equal(t, "foo/bar", entry["method"])
	assert.Equal(t, "router", entry["component"])
	assert.Contains(t, entry["error"], "Method not found")
}

func TestNewFromConfig(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewFromConfig(&buf, "warn", "json")
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"message":"kept"`)

	_, err = NewFromConfig(&buf, "info", "xml")
	assert.Error(t, err)
	_, err = NewFromConfig(&buf, "loud", "text")
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	logger := Nop()
	logger.WithFields(String("a", "b")).WithError(errors.New("x")).Error("nothing")
	assert.Equal(t, OffLevel, logger.GetLevel())
}
