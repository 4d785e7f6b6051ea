// Package config holds the engine's tunables. Values come from code, from a
// JSON document, or from the environment through envdecode.
package config

import (
	"errors"
	"fmt"
	"io"
	"time"

	rpcerrors "github.com/ajitpratap0/lsp-sdk-go/pkg/errors"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/logging"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/observability"
	"github.com/joeshaw/envdecode"
)

// Config is the engine configuration
type Config struct {
	ServiceName    string `json:"service_name" env:"LSP_SERVICE_NAME,default=lsp-server"`
	ServiceVersion string `json:"service_version" env:"LSP_SERVICE_VERSION,default=0.0.0"`

	// MaxConcurrency bounds the inbound request handlers running at once
	MaxConcurrency int `json:"max_concurrency" env:"LSP_MAX_CONCURRENCY,default=4"`
	// OutboundBuffer is the capacity of the server-to-peer message queue
	OutboundBuffer int `json:"outbound_buffer" env:"LSP_OUTBOUND_BUFFER,default=64"`
	// MaxFrameSize caps the declared Content-Length of an inbound frame. Zero disables the cap.
	MaxFrameSize int `json:"max_frame_size" env:"LSP_MAX_FRAME_SIZE,default=67108864"`

	LogLevel  string `json:"log_level" env:"LSP_LOG_LEVEL,default=info"`
	LogFormat string `json:"log_format" env:"LSP_LOG_FORMAT,default=text"`

	MetricsNamespace string `json:"metrics_namespace" env:"LSP_METRICS_NAMESPACE,default=lsp"`
	// MetricsAddr enables the /metrics endpoint when non-empty
	MetricsAddr string `json:"metrics_addr,omitempty" env:"LSP_METRICS_ADDR"`

	TracingExporter   string  `json:"tracing_exporter" env:"LSP_TRACING_EXPORTER,default=none"`
	TracingEndpoint   string  `json:"tracing_endpoint,omitempty" env:"LSP_TRACING_ENDPOINT"`
	TracingInsecure   bool    `json:"tracing_insecure" env:"LSP_TRACING_INSECURE,default=false"`
	TracingSampleRate float64 `json:"tracing_sample_rate" env:"LSP_TRACING_SAMPLE_RATE,default=1"`

	// ShutdownTimeout bounds flushing telemetry after the session exits
	ShutdownTimeout time.Duration `json:"shutdown_timeout" env:"LSP_SHUTDOWN_TIMEOUT,default=5s"`
}

// Default returns the configuration used when nothing is overridden
func Default() Config {
	return Config{
		ServiceName:       "lsp-server",
		ServiceVersion:    "0.0.0",
		MaxConcurrency:    4,
		OutboundBuffer:    64,
		MaxFrameSize:      64 << 20,
		LogLevel:          "info",
		LogFormat:         "text",
		MetricsNamespace:  "lsp",
		TracingExporter:   string(observability.ExporterTypeNone),
		TracingSampleRate: 1,
		ShutdownTimeout:   5 * time.Second,
	}
}

// FromEnv loads the configuration from LSP_* environment variables, falling
// back to the defaults in the struct tags, and validates the result.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, rpcerrors.WrapError(err, rpcerrors.CodeInvalidParams, "decode environment",
			rpcerrors.CategoryValidation, rpcerrors.SeverityError)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting
func (c Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return rpcerrors.NewError(rpcerrors.CodeInvalidParams, "invalid configuration",
			rpcerrors.CategoryValidation, rpcerrors.SeverityError).WithDetail(fmt.Sprintf(format, args...))
	}

	switch {
	case c.MaxConcurrency < 1:
		return invalid("max_concurrency must be at least 1, got %d", c.MaxConcurrency)
	case c.OutboundBuffer < 0:
		return invalid("outbound_buffer must not be negative, got %d", c.OutboundBuffer)
	case c.MaxFrameSize < 0:
		return invalid("max_frame_size must not be negative, got %d", c.MaxFrameSize)
	case c.TracingSampleRate < 0 || c.TracingSampleRate > 1:
		return invalid("tracing_sample_rate must be within [0, 1], got %v", c.TracingSampleRate)
	case c.ShutdownTimeout < 0:
		return invalid("shutdown_timeout must not be negative, got %s", c.ShutdownTimeout)
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return invalid("log_level: %v", err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return invalid("log_format must be text or json, got %q", c.LogFormat)
	}

	switch observability.ExporterType(c.TracingExporter) {
	case observability.ExporterTypeNone, observability.ExporterTypeNoop:
	case observability.ExporterTypeOTLPGRPC, observability.ExporterTypeOTLPHTTP:
		if c.TracingEndpoint == "" {
			return invalid("tracing_endpoint is required for the %s exporter", c.TracingExporter)
		}
	default:
		return invalid("unknown tracing_exporter %q", c.TracingExporter)
	}
	return nil
}

// NewLogger builds the logger described by LogLevel and LogFormat. Output
// must not be the protocol stream; nil means stderr.
func (c Config) NewLogger(output io.Writer) (logging.Logger, error) {
	return logging.NewFromConfig(output, c.LogLevel, c.LogFormat)
}

// MetricsConfig maps the settings onto observability.MetricsConfig
func (c Config) MetricsConfig() observability.MetricsConfig {
	return observability.MetricsConfig{
		ServiceName:    c.ServiceName,
		ServiceVersion: c.ServiceVersion,
		Namespace:      c.MetricsNamespace,
	}
}

// TracingConfig maps the settings onto observability.TracingConfig
func (c Config) TracingConfig() observability.TracingConfig {
	return observability.TracingConfig{
		ServiceName:    c.ServiceName,
		ServiceVersion: c.ServiceVersion,
		ExporterType:   observability.ExporterType(c.TracingExporter),
		Endpoint:       c.TracingEndpoint,
		Insecure:       c.TracingInsecure,
		SampleRate:     c.TracingSampleRate,
	}
}
