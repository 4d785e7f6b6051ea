package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the call metrics
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeRejected  = "rejected"
	OutcomeCancelled = "cancelled"
	OutcomeDropped   = "dropped"
)

// MetricsConfig configures the metrics provider
type MetricsConfig struct {
	ServiceName    string
	ServiceVersion string

	// Namespace is the Prometheus namespace (default: lsp)
	Namespace string
	Subsystem string

	// HistogramBuckets are latency buckets in milliseconds
	HistogramBuckets []float64

	// Registerer receives the collectors. Defaults to a fresh registry so
	// that several sessions in one process do not collide.
	Registerer prometheus.Registerer
	// Gatherer serves the metrics endpoint. Defaults to Registerer when it
	// is also a Gatherer.
	Gatherer prometheus.Gatherer

	ConstLabels prometheus.Labels
}

// Metrics records dispatch, correlation and framing metrics for one engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	config   MetricsConfig
	gatherer prometheus.Gatherer
	server   *http.Server

	inboundDuration  *prometheus.HistogramVec
	inboundTotal     *prometheus.CounterVec
	outboundDuration *prometheus.HistogramVec
	outboundTotal    *prometheus.CounterVec
	pendingEntries   *prometheus.GaugeVec
	sessionState     *prometheus.GaugeVec
	framingErrors    prometheus.Counter
	frameBytes       *prometheus.CounterVec
}

// NewMetrics creates and registers the engine's collectors
func NewMetrics(config MetricsConfig) (*Metrics, error) {
	if config.Namespace == "" {
		config.Namespace = "lsp"
	}
	if config.HistogramBuckets == nil {
		config.HistogramBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}
	}
	if config.Registerer == nil {
		registry := prometheus.NewRegistry()
		config.Registerer = registry
		if config.Gatherer == nil {
			config.Gatherer = registry
		}
	}
	if config.Gatherer == nil {
		if g, ok := config.Registerer.(prometheus.Gatherer); ok {
			config.Gatherer = g
		} else {
			config.Gatherer = prometheus.DefaultGatherer
		}
	}

	labels := prometheus.Labels{}
	for k, v := range config.ConstLabels {
		labels[k] = v
	}
	if config.ServiceName != "" {
		labels["service"] = config.ServiceName
	}
	if config.ServiceVersion != "" {
		labels["version"] = config.ServiceVersion
	}
	config.ConstLabels = labels

	m := &Metrics{config: config, gatherer: config.Gatherer}
	m.initializeMetrics()

	if err := m.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initializeMetrics() {
	c := m.config

	m.inboundDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   c.Namespace,
			Subsystem:   c.Subsystem,
			Name:        "inbound_call_duration_milliseconds",
			Help:        "Duration of inbound requests and notifications in milliseconds",
			Buckets:     c.HistogramBuckets,
			ConstLabels: c.ConstLabels,
		},
		[]string{"method", "kind", "outcome"},
	)

	m.inboundTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.Namespace,
			Subsystem:   c.Subsystem,
			Name:        "inbound_call_total",
			Help:        "Total number of inbound requests and notifications",
			ConstLabels: c.ConstLabels,
		},
		[]string{"method", "kind", "outcome"},
	)

	m.outboundDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   c.Namespace,
			Subsystem:   c.Subsystem,
			Name:        "outbound_call_duration_milliseconds",
			Help:        "Time from sending a request to the peer until its response in milliseconds",
			Buckets:     c.HistogramBuckets,
			ConstLabels: c.ConstLabels,
		},
		[]string{"method", "outcome"},
	)

	m.outboundTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.Namespace,
			Subsystem:   c.Subsystem,
			Name:        "outbound_call_total",
			Help:        "Total number of requests and notifications sent to the peer",
			ConstLabels: c.ConstLabels,
		},
		[]string{"method", "outcome"},
	)

	m.pendingEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   c.Namespace,
			Subsystem:   c.Subsystem,
			Name:        "pending_entries",
			Help:        "Number of in-flight requests by direction",
			ConstLabels: c.ConstLabels,
		},
		[]string{"direction"},
	)

	m.sessionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   c.Namespace,
			Subsystem:   c.Subsystem,
			Name:        "session_state",
			Help:        "Current session state (1 for the active state, 0 otherwise)",
			ConstLabels: c.ConstLabels,
		},
		[]string{"state"},
	)

	m.framingErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   c.Namespace,
			Subsystem:   c.Subsystem,
			Name:        "framing_errors_total",
			Help:        "Total number of malformed frames read from the stream",
			ConstLabels: c.ConstLabels,
		},
	)

	m.frameBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.Namespace,
			Subsystem:   c.Subsystem,
			Name:        "frame_bytes_total",
			Help:        "Total payload bytes moved through the codec",
			ConstLabels: c.ConstLabels,
		},
		[]string{"direction"},
	)
}

// registerMetrics registers every collector, reusing collectors that an
// earlier engine already registered on the same Registerer.
func (m *Metrics) registerMetrics() error {
	r := m.config.Registerer
	var err error

	if m.inboundDuration, err = register(r, m.inboundDuration); err != nil {
		return err
	}
	if m.inboundTotal, err = register(r, m.inboundTotal); err != nil {
		return err
	}
	if m.outboundDuration, err = register(r, m.outboundDuration); err != nil {
		return err
	}
	if m.outboundTotal, err = register(r, m.outboundTotal); err != nil {
		return err
	}
	if m.pendingEntries, err = register(r, m.pendingEntries); err != nil {
		return err
	}
	if m.sessionState, err = register(r, m.sessionState); err != nil {
		return err
	}
	if m.framingErrors, err = register(r, m.framingErrors); err != nil {
		return err
	}
	if m.frameBytes, err = register(r, m.frameBytes); err != nil {
		return err
	}
	return nil
}

func register[C prometheus.Collector](r prometheus.Registerer, c C) (C, error) {
	if err := r.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordInbound records one dispatched inbound call. kind is "request" or
// "notification".
func (m *Metrics) RecordInbound(method, kind, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	ms := float64(duration.Milliseconds())
	m.inboundDuration.WithLabelValues(method, kind, outcome).Observe(ms)
	m.inboundTotal.WithLabelValues(method, kind, outcome).Inc()
}

// RecordOutbound records one request or notification sent to the peer
func (m *Metrics) RecordOutbound(method, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.outboundDuration.WithLabelValues(method, outcome).Observe(float64(duration.Milliseconds()))
	m.outboundTotal.WithLabelValues(method, outcome).Inc()
}

// SetPending records the number of pending entries in one direction
func (m *Metrics) SetPending(direction string, count int) {
	if m == nil {
		return
	}
	m.pendingEntries.WithLabelValues(direction).Set(float64(count))
}

// SetSessionState marks current as the active state among all
func (m *Metrics) SetSessionState(current string, all []string) {
	if m == nil {
		return
	}
	for _, state := range all {
		m.sessionState.WithLabelValues(state).Set(0)
	}
	m.sessionState.WithLabelValues(current).Set(1)
}

// RecordFramingError counts one malformed frame
func (m *Metrics) RecordFramingError() {
	if m == nil {
		return
	}
	m.framingErrors.Inc()
}

// RecordFrame counts the bytes of one frame. direction is "inbound" or
// "outbound".
func (m *Metrics) RecordFrame(direction string, size int) {
	if m == nil {
		return
	}
	m.frameBytes.WithLabelValues(direction).Add(float64(size))
}

// Handler serves the registered metrics in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Start serves Handler on addr at /metrics in the background
func (m *Metrics) Start(addr string) error {
	if addr == "" {
		return errors.New("metrics address is empty")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	m.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		_ = m.server.ListenAndServe()
	}()

	return nil
}

// Shutdown gracefully shuts down the metrics server
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}
