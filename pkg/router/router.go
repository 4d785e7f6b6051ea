// Package router resolves inbound method names to handlers and runs them
// through their gating layer.
//
// The table is built once by a Builder and never changes afterwards, so
// lookups need no locking. Requests always produce exactly one response;
// notifications never do, and their failures are only logged and reported
// through the OnNotificationError hook.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	rpcerrors "github.com/ajitpratap0/lsp-sdk-go/pkg/errors"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/lifecycle"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/logging"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/observability"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/protocol"
	"go.opentelemetry.io/otel/trace"
)

// Builder collects routes before the table is frozen
type Builder struct {
	routes []Route
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends routes to the builder
func (b *Builder) Add(routes ...Route) *Builder {
	b.routes = append(b.routes, routes...)
	return b
}

// Option configures a Router
type Option func(*Router)

// WithLogger sets the router's logger
func WithLogger(logger logging.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithMetrics records every dispatched call
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// WithTracing opens a server span around every dispatched call
func WithTracing(tp *observability.TracingProvider) Option {
	return func(r *Router) {
		r.tracer = tp
	}
}

// OnNotificationError installs a side channel for notification failures
func OnNotificationError(fn func(ctx context.Context, method string, err error)) Option {
	return func(r *Router) {
		r.onNotifyErr = fn
	}
}

// Router is the immutable dispatch table
type Router struct {
	routes      map[string]Route
	machine     *lifecycle.Machine
	logger      logging.Logger
	metrics     *observability.Metrics
	tracer      *observability.TracingProvider
	onNotifyErr func(ctx context.Context, method string, err error)
}

// Build freezes the table. Every call is gated through machine. Duplicate
// method names and routes without a handler are rejected.
func (b *Builder) Build(machine *lifecycle.Machine, opts ...Option) (*Router, error) {
	if machine == nil {
		return nil, fmt.Errorf("router needs a lifecycle machine")
	}

	routes := make(map[string]Route, len(b.routes))
	for _, route := range b.routes {
		if route.Method == "" {
			return nil, fmt.Errorf("route without a method name")
		}
		if route.handler == nil {
			return nil, fmt.Errorf("route %q has no handler", route.Method)
		}
		if _, exists := routes[route.Method]; exists {
			return nil, fmt.Errorf("duplicate route for method %q", route.Method)
		}
		routes[route.Method] = route
	}

	r := &Router{
		routes:  routes,
		machine: machine,
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithFields(logging.Component("router"))
	return r, nil
}

// Lookup returns the route registered for method
func (r *Router) Lookup(method string) (Route, bool) {
	route, ok := r.routes[method]
	return route, ok
}

// Methods lists the registered method names in sorted order
func (r *Router) Methods() []string {
	names := make([]string, 0, len(r.routes))
	for name := range r.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call dispatches a request and always returns its response
func (r *Router) Call(ctx context.Context, req *protocol.Request) *protocol.Response {
	start := time.Now()
	logger := r.logger.WithFields(logging.Method(req.Method), logging.ID(req.ID))

	route, ok := r.routes[req.Method]
	if !ok {
		logger.Debug("method not found")
		r.metrics.RecordInbound(req.Method, "request", observability.OutcomeRejected, time.Since(start))
		return protocol.NewErrorResponse(req.ID, rpcerrors.ToProtocol(rpcerrors.MethodNotFound(req.Method)))
	}

	result, err := r.invoke(ctx, route, req.Method, req.Params)
	r.metrics.RecordInbound(req.Method, "request", outcomeOf(err), time.Since(start))

	if err != nil {
		if rpcerrors.IsCategory(err, rpcerrors.CategoryInternal) {
			logger.WithError(err).Error("request failed")
		} else {
			logger.WithError(err).Debug("request failed")
		}
		return protocol.NewErrorResponse(req.ID, rpcerrors.ToProtocol(err))
	}

	resp, err := protocol.NewResponse(req.ID, result)
	if err != nil {
		internal := rpcerrors.InternalError("encode result", err)
		logger.WithError(internal).Error("result encoding failed")
		return protocol.NewErrorResponse(req.ID, rpcerrors.ToProtocol(internal))
	}
	return resp
}

// Notify dispatches a notification. Unknown methods and handler failures are
// logged and dropped.
func (r *Router) Notify(ctx context.Context, n *protocol.Notification) {
	start := time.Now()
	logger := r.logger.WithFields(logging.Method(n.Method))

	route, ok := r.routes[n.Method]
	if !ok {
		logger.Warn("dropping notification for unknown method")
		r.metrics.RecordInbound(n.Method, "notification", observability.OutcomeDropped, time.Since(start))
		return
	}

	_, err := r.invoke(ctx, route, n.Method, n.Params)
	r.metrics.RecordInbound(n.Method, "notification", outcomeOf(err), time.Since(start))
	if err == nil {
		return
	}

	logger.WithError(err).Warn("notification handler failed")
	if r.onNotifyErr != nil {
		r.onNotifyErr(ctx, n.Method, err)
	}
}

func (r *Router) invoke(ctx context.Context, route Route, method string, params json.RawMessage) (result interface{}, err error) {
	ctx, span := r.tracer.StartMethodSpan(ctx, method, trace.SpanKindServer)
	defer func() { r.tracer.EndSpan(span, err) }()

	return r.machine.Invoke(ctx, route.Layer, method, func(ctx context.Context) (res interface{}, herr error) {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("handler panicked", logging.Method(method), logging.Any("panic", p))
				res, herr = nil, rpcerrors.InternalError(method, fmt.Errorf("panic: %v", p))
			}
		}()
		return route.handler(ctx, params)
	})
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeSuccess
	case rpcerrors.IsCategory(err, rpcerrors.CategoryLifecycle):
		return observability.OutcomeRejected
	case rpcerrors.IsCategory(err, rpcerrors.CategoryCancelled),
		rpcerrors.Is(err, context.Canceled):
		return observability.OutcomeCancelled
	default:
		return observability.OutcomeError
	}
}
