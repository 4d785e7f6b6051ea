package config

import (
	"bytes"
	"testing"
	"time"

	rpcerrors "github.com/ajitpratap0/lsp-sdk-go/pkg/errors"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/logging"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.Equal(t, 64, cfg.OutboundBuffer)
	assert.Equal(t, "none", cfg.TracingExporter)
}

func TestFromEnvMatchesDefault(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("LSP_MAX_CONCURRENCY", "16")
	t.Setenv("LSP_LOG_LEVEL", "debug")
	t.Setenv("LSP_LOG_FORMAT", "json")
	t.Setenv("LSP_TRACING_EXPORTER", "otlp-http")
	t.Setenv("LSP_TRACING_ENDPOINT", "localhost:4318")
	t.Setenv("LSP_SHUTDOWN_TIMEOUT", "250ms")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.MaxConcurrency)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 250*time.Millisecond, cfg.ShutdownTimeout)
	assert.Equal(t, observability.ExporterTypeOTLPHTTP, cfg.TracingConfig().ExporterType)
}

func TestFromEnvRejectsInvalid(t *testing.T) {
	t.Setenv("LSP_MAX_CONCURRENCY", "0")

	_, err := FromEnv()
	require.Error(t, err)
	assert.True(t, rpcerrors.IsCategory(err, rpcerrors.CategoryValidation))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"concurrency", func(c *Config) { c.MaxConcurrency = 0 }},
		{"buffer", func(c *Config) { c.OutboundBuffer = -1 }},
		{"frame size", func(c *Config) { c.MaxFrameSize = -1 }},
		{"sample rate", func(c *Config) { c.TracingSampleRate = 1.5 }},
		{"timeout", func(c *Config) { c.ShutdownTimeout = -time.Second }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
		{"log format", func(c *Config) { c.LogFormat = "xml" }},
		{"exporter", func(c *Config) { c.TracingExporter = "zipkin" }},
		{"endpoint", func(c *Config) { c.TracingExporter = "otlp-grpc" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "warn"

	var buf bytes.Buffer
	logger, err := cfg.NewLogger(&buf)
	require.NoError(t, err)
	assert.Equal(t, logging.WarnLevel, logger.GetLevel())

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestObservabilityConfigs(t *testing.T) {
	cfg := Default()
	cfg.ServiceName = "demo"

	mc := cfg.MetricsConfig()
	assert.Equal(t, "demo", mc.ServiceName)
	assert.Equal(t, "lsp", mc.Namespace)

	tc := cfg.TracingConfig()
	assert.Equal(t, observability.ExporterTypeNone, tc.ExporterType)

	tp, err := observability.NewTracingProvider(tc)
	require.NoError(t, err)
	assert.Nil(t, tp)
}
