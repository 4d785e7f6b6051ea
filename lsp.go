package lsp

import (
	"github.com/ajitpratap0/lsp-sdk-go/pkg/config"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/lifecycle"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/server"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/transport"
)

// Version represents the current version of the SDK
const Version = "0.1.0"

// These exports provide direct access to the core SDK components
var (
	// NewBuilder starts a service over an application catalog
	NewBuilder = server.NewBuilder

	// NewStdio serves a session over stdin and stdout
	NewStdio = transport.NewStdio

	// NewTransport serves a session over arbitrary streams
	NewTransport = transport.New

	// ConfigFromEnv loads the engine configuration from LSP_* variables
	ConfigFromEnv = config.FromEnv

	// DefaultConfig returns the default engine configuration
	DefaultConfig = config.Default
)

// Gating layers
const (
	LayerNormal     = lifecycle.LayerNormal
	LayerInitialize = lifecycle.LayerInitialize
	LayerShutdown   = lifecycle.LayerShutdown
	LayerExit       = lifecycle.LayerExit
	LayerNone       = lifecycle.LayerNone
)

// Service options
var (
	WithLogger         = server.WithLogger
	WithMetrics        = server.WithMetrics
	WithTracing        = server.WithTracing
	WithOutboundBuffer = server.WithOutboundBuffer
	WithConfig         = server.WithConfig
)

// Transport options
var (
	WithMaxConcurrency = transport.WithMaxConcurrency
	WithMaxFrameSize   = transport.WithMaxFrameSize
)
