package server

import (
	"context"
	"fmt"

	"github.com/ajitpratap0/lsp-sdk-go/pkg/client"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/config"
	rpcerrors "github.com/ajitpratap0/lsp-sdk-go/pkg/errors"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/lifecycle"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/logging"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/observability"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/pending"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/protocol"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/router"
)

// Catalog returns the application's routes. It is called once during Build
// with the client handle the handlers may keep for talking to the peer.
type Catalog func(c *client.Client) []router.Route

// Builder assembles a Service
type Builder struct {
	catalog Catalog
	custom  []router.Route

	logger         logging.Logger
	metrics        *observability.Metrics
	tracer         *observability.TracingProvider
	outboundBuffer int
}

// Option configures a Builder
type Option func(*Builder)

// WithLogger sets the logger shared by every component of the service
func WithLogger(logger logging.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithMetrics records dispatch, outbound, pending and session state metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(b *Builder) {
		b.metrics = m
	}
}

// WithTracing opens spans around inbound and outbound calls
func WithTracing(tp *observability.TracingProvider) Option {
	return func(b *Builder) {
		b.tracer = tp
	}
}

// WithOutboundBuffer sets the capacity of the outbound message queue
func WithOutboundBuffer(n int) Option {
	return func(b *Builder) {
		b.outboundBuffer = n
	}
}

// WithConfig applies the service-level settings of cfg
func WithConfig(cfg config.Config) Option {
	return WithOutboundBuffer(cfg.OutboundBuffer)
}

// NewBuilder starts a service over catalog, which may be nil
func NewBuilder(catalog Catalog, opts ...Option) *Builder {
	b := &Builder{
		catalog:        catalog,
		logger:         logging.Nop(),
		outboundBuffer: client.DefaultOutboundBuffer,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Method adds application routes beyond the catalog
func (b *Builder) Method(routes ...router.Route) *Builder {
	b.custom = append(b.custom, routes...)
	return b
}

// Service is one protocol session: lifecycle state, pending requests, the
// dispatch table and the client handle.
type Service struct {
	state   *lifecycle.StateCell
	pending *pending.Registry
	machine *lifecycle.Machine
	router  *router.Router
	client  *client.Client
	socket  *client.Socket
	logger  logging.Logger
}

// Build wires the session. $/cancelRequest, window/workDoneProgress/cancel
// and exit are always registered and may not appear in the catalog. A
// no-op shutdown handler is added when the catalog has none.
func (b *Builder) Build() (*Service, error) {
	logger := b.logger.WithFields(logging.Component("server"))
	metrics := b.metrics

	stateNames := make([]string, len(lifecycle.States))
	for i, st := range lifecycle.States {
		stateNames[i] = st.String()
	}

	s := &Service{logger: logger}
	s.state = lifecycle.NewStateCell(func(st lifecycle.State) {
		metrics.SetSessionState(st.String(), stateNames)
	})
	s.pending = pending.New(pending.WithObserver(func(dir pending.Direction, count int) {
		metrics.SetPending(dir.String(), count)
	}))
	s.machine = lifecycle.NewMachine(s.state, s.pending, b.logger)
	s.client, s.socket = client.New(s.pending,
		client.WithLogger(b.logger),
		client.WithMetrics(metrics),
		client.WithTracing(b.tracer),
		client.WithOutboundBuffer(b.outboundBuffer),
	)
	s.machine.OnExit(s.socket.Close)

	var routes []router.Route
	if b.catalog != nil {
		routes = append(routes, b.catalog(s.client)...)
	}
	routes = append(routes, b.custom...)

	hasShutdown := false
	for _, route := range routes {
		switch route.Method {
		case protocol.MethodCancelRequest, protocol.MethodWorkDoneProgressCancel, protocol.MethodExit:
			return nil, fmt.Errorf("method %q is reserved", route.Method)
		case protocol.MethodShutdown:
			hasShutdown = true
		}
	}
	if !hasShutdown {
		routes = append(routes, router.RequestNoParams(protocol.MethodShutdown, lifecycle.LayerShutdown,
			func(context.Context) (interface{}, error) { return nil, nil }))
	}
	routes = append(routes, s.controlRoutes()...)

	rt, err := router.NewBuilder().Add(routes...).Build(s.machine,
		router.WithLogger(b.logger),
		router.WithMetrics(metrics),
		router.WithTracing(b.tracer),
		router.OnNotificationError(s.reportNotificationError),
	)
	if err != nil {
		return nil, err
	}
	s.router = rt
	return s, nil
}

func (s *Service) controlRoutes() []router.Route {
	return []router.Route{
		router.Notification(protocol.MethodCancelRequest, lifecycle.LayerNone,
			func(ctx context.Context, params protocol.CancelParams) error {
				if !s.pending.Cancel(pending.Inbound, params.ID) {
					s.logger.Debug("cancel for request that is not pending", logging.ID(params.ID))
				}
				return nil
			}),
		router.Notification(protocol.MethodWorkDoneProgressCancel, lifecycle.LayerNone,
			func(ctx context.Context, params protocol.WorkDoneProgressCancelParams) error {
				if !s.pending.Cancel(pending.Progress, params.Token) {
					s.logger.Debug("cancel for unknown progress token", logging.ID(params.Token))
				}
				return nil
			}),
		router.NotificationNoParams(protocol.MethodExit, lifecycle.LayerExit,
			func(context.Context) error { return nil }),
	}
}

func (s *Service) reportNotificationError(ctx context.Context, method string, err error) {
	msg := fmt.Sprintf("%s: %v", method, err)
	if lerr := s.client.LogMessage(ctx, protocol.MessageTypeError, msg); lerr != nil {
		s.logger.Debug("could not report notification failure", logging.ErrorField(lerr))
	}
}

// HandleMessage dispatches one inbound message. Requests return their
// response, notifications and responses return nil.
func (s *Service) HandleMessage(ctx context.Context, msg protocol.Message) *protocol.Response {
	switch m := msg.(type) {
	case *protocol.Request:
		return s.Call(ctx, m)
	case *protocol.Notification:
		s.Notify(ctx, m)
	case *protocol.Response:
		// stray responses are logged by the socket
		_ = s.socket.HandleResponse(m)
	}
	return nil
}

// Call dispatches an inbound request. The request is pending, and so
// cancellable through $/cancelRequest, until its handler returns. A handler
// failure after cancellation is answered with RequestCancelled; rejections
// that precede the handler keep their own error.
func (s *Service) Call(ctx context.Context, req *protocol.Request) *protocol.Response {
	entry, err := s.pending.Register(ctx, pending.Inbound, req.ID)
	if err != nil {
		if rpcerrors.Is(err, rpcerrors.ErrSessionClosed) {
			err = rpcerrors.AlreadyShutDown(req.Method)
		}
		s.logger.WithError(err).Warn("rejecting request", logging.Method(req.Method), logging.ID(req.ID))
		return protocol.NewErrorResponse(req.ID, rpcerrors.ToProtocol(err))
	}
	defer s.pending.Remove(pending.Inbound, req.ID)

	ctx = pending.ContextWithEntry(entry.Context(), entry)
	resp := s.router.Call(logging.ContextWithRequestID(ctx, req.ID), req)
	if resp.Error != nil && !rejectedBeforeDispatch(resp.Error) && entry.Cancelled() {
		return protocol.NewErrorResponse(req.ID, rpcerrors.ToProtocol(rpcerrors.RequestCancelled(req.ID)))
	}
	return resp
}

// rejectedBeforeDispatch reports errors produced by routing, gating or param
// decoding rather than by a handler
func rejectedBeforeDispatch(e *protocol.Error) bool {
	switch e.Code {
	case protocol.MethodNotFound, protocol.InvalidParams, protocol.InvalidRequest, protocol.ServerNotInitialized:
		return true
	}
	return false
}

// Notify dispatches an inbound notification
func (s *Service) Notify(ctx context.Context, n *protocol.Notification) {
	s.router.Notify(ctx, n)
}

// Client returns the handle for calling the peer
func (s *Service) Client() *client.Client {
	return s.client
}

// Outbound yields messages to write to the peer
func (s *Service) Outbound() <-chan protocol.Message {
	return s.socket.Outbound()
}

// State returns the current lifecycle state
func (s *Service) State() lifecycle.State {
	return s.machine.State()
}

// Methods lists every routed method, control methods included
func (s *Service) Methods() []string {
	return s.router.Methods()
}

// Exited is closed once the session has exited
func (s *Service) Exited() <-chan struct{} {
	return s.machine.Done()
}

// ForceExit ends the session as if exit had been received
func (s *Service) ForceExit() {
	s.machine.Exit()
}

// ExitCode is the process status the session ended with: 0 after an
// orderly shutdown and exit, 1 otherwise
func (s *Service) ExitCode() int {
	return s.machine.ExitCode()
}
