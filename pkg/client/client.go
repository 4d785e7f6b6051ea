package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	rpcerrors "github.com/ajitpratap0/lsp-sdk-go/pkg/errors"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/logging"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/observability"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/pending"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/protocol"
	"go.opentelemetry.io/otel/trace"
)

// DefaultOutboundBuffer is the outbound queue capacity used when no option
// overrides it
const DefaultOutboundBuffer = 64

// Client sends requests and notifications to the peer. It is safe for
// concurrent use; every outbound request is correlated through the shared
// pending registry.
type Client struct {
	pending  *pending.Registry
	outbound chan protocol.Message
	nextID   atomic.Int64

	closeOnce sync.Once
	done      chan struct{}

	logger  logging.Logger
	metrics *observability.Metrics
	tracer  *observability.TracingProvider
	buffer  int
}

// Socket is the peer-facing half of a Client. The transport loop drains
// Outbound and feeds every response from the peer into HandleResponse.
type Socket struct {
	client *Client
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the client's logger
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics records outbound calls
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTracing opens a client span around every outbound request
func WithTracing(tp *observability.TracingProvider) Option {
	return func(c *Client) {
		c.tracer = tp
	}
}

// WithOutboundBuffer sets the capacity of the outbound message queue
func WithOutboundBuffer(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.buffer = n
		}
	}
}

// New creates a connected Client/Socket pair over registry. Neither half
// references the other's internals beyond the shared registry and queue.
func New(registry *pending.Registry, opts ...Option) (*Client, *Socket) {
	c := &Client{
		pending: registry,
		done:    make(chan struct{}),
		logger:  logging.Nop(),
		buffer:  DefaultOutboundBuffer,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.outbound = make(chan protocol.Message, c.buffer)
	c.logger = c.logger.WithFields(logging.Component("client"))

	return c, &Socket{client: c}
}

// Notify sends a notification. It returns once the message is queued.
func (c *Client) Notify(ctx context.Context, method string, params interface{}) error {
	start := time.Now()
	n, err := protocol.NewNotification(method, params)
	if err != nil {
		return rpcerrors.InvalidParams(method, err)
	}

	err = c.send(ctx, n)
	c.metrics.RecordOutbound(method, outcome(err), time.Since(start))
	return err
}

// Call sends a request and waits for the correlated response. If ctx ends
// first the pending entry is dropped, $/cancelRequest is sent to the peer
// and ctx.Err() is returned. When the session exits the call fails with
// SessionClosed.
func (c *Client) Call(ctx context.Context, method string, params interface{}) (resp *protocol.Response, err error) {
	start := time.Now()
	ctx, span := c.tracer.StartMethodSpan(ctx, method, trace.SpanKindClient)
	defer func() {
		c.tracer.EndSpan(span, err)
		c.metrics.RecordOutbound(method, outcome(err), time.Since(start))
	}()

	if c.isClosed() {
		return nil, rpcerrors.SessionClosed()
	}

	id := protocol.NumberID(c.nextID.Add(1) - 1)
	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		return nil, rpcerrors.InvalidParams(method, err)
	}

	entry, err := c.pending.Register(context.Background(), pending.Outbound, id)
	if err != nil {
		return nil, err
	}

	if err := c.send(ctx, req); err != nil {
		c.pending.Remove(pending.Outbound, id)
		return nil, err
	}

	select {
	case o := <-entry.Done():
		return o.Response, o.Err
	case <-ctx.Done():
	}

	if !c.pending.Fail(id, ctx.Err()) {
		// The response won the race
		o := <-entry.Done()
		return o.Response, o.Err
	}
	<-entry.Done()

	c.logger.Debug("outbound request abandoned", logging.Method(method), logging.ID(id))
	cancelCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Notify(cancelCtx, protocol.MethodCancelRequest, protocol.CancelParams{ID: id}); err != nil {
		c.logger.Debug("could not send cancellation", logging.ErrorField(err))
	}
	return nil, ctx.Err()
}

// CallResult sends a request and decodes its result into result, which may
// be nil to discard it. An error response is returned as an RPCError.
func (c *Client) CallResult(ctx context.Context, method string, params, result interface{}) error {
	resp, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return rpcerrors.FromProtocol(resp.Error)
	}
	if result == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return rpcerrors.InternalError(fmt.Sprintf("decode %s result", method), err)
	}
	return nil
}

// LogMessage sends window/logMessage
func (c *Client) LogMessage(ctx context.Context, typ protocol.MessageType, message string) error {
	return c.Notify(ctx, protocol.MethodLogMessage, protocol.LogMessageParams{Type: typ, Message: message})
}

// ShowMessage sends window/showMessage
func (c *Client) ShowMessage(ctx context.Context, typ protocol.MessageType, message string) error {
	return c.Notify(ctx, protocol.MethodShowMessage, protocol.ShowMessageParams{Type: typ, Message: message})
}

// CreateWorkDoneProgress asks the peer to create a progress token before
// the server starts reporting on it
func (c *Client) CreateWorkDoneProgress(ctx context.Context, token protocol.ProgressToken) error {
	return c.CallResult(ctx, protocol.MethodWorkDoneProgressCreate, protocol.WorkDoneProgressCreateParams{Token: token}, nil)
}

func (c *Client) send(ctx context.Context, msg protocol.Message) error {
	if c.isClosed() {
		return rpcerrors.SessionClosed()
	}
	select {
	case c.outbound <- msg:
		return nil
	case <-c.done:
		return rpcerrors.SessionClosed()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return c.pending.Closed()
	}
}

// Outbound yields every message the client wants written to the peer
func (s *Socket) Outbound() <-chan protocol.Message {
	return s.client.outbound
}

// Done is closed by Close
func (s *Socket) Done() <-chan struct{} {
	return s.client.done
}

// HandleResponse resolves the outbound request resp answers. A response
// whose id is not pending is logged and reported as StrayResponse.
func (s *Socket) HandleResponse(resp *protocol.Response) error {
	if err := s.client.pending.Complete(resp.ID, resp); err != nil {
		s.client.logger.WithError(err).Warn("discarding response", logging.ID(resp.ID))
		return err
	}
	return nil
}

// Close stops the client. Queued but unwritten messages are dropped and
// further sends fail with SessionClosed.
func (s *Socket) Close() {
	s.client.closeOnce.Do(func() {
		close(s.client.done)
	})
}

func outcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeSuccess
	case rpcerrors.Is(err, context.Canceled), rpcerrors.Is(err, context.DeadlineExceeded):
		return observability.OutcomeCancelled
	default:
		return observability.OutcomeError
	}
}
