package transport

import (
	"context"
	"errors"
	"io"
	"os"
	"sync/atomic"

	rpcerrors "github.com/ajitpratap0/lsp-sdk-go/pkg/errors"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/logging"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/observability"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/protocol"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrency is the number of request handlers allowed to run at
// once when no option overrides it
const DefaultMaxConcurrency = 4

// Session is the protocol engine driven by a Server
type Session interface {
	// HandleMessage processes one inbound message and returns the response
	// to write, or nil when there is nothing to answer
	HandleMessage(ctx context.Context, msg protocol.Message) *protocol.Response
	// Outbound yields messages the session wants written to the peer
	Outbound() <-chan protocol.Message
	// Exited is closed once the session has ended
	Exited() <-chan struct{}
	// ForceExit ends the session without a shutdown handshake
	ForceExit()
}

// Server runs the read/dispatch/write loop of one session over a byte stream
type Server struct {
	in      io.Reader
	reader  *FrameReader
	writer  *FrameWriter
	session Session

	logger       logging.Logger
	metrics      *observability.Metrics
	concurrency  int
	maxFrameSize int

	started atomic.Bool
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server's logger
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics records frame sizes and framing errors
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithMaxConcurrency bounds the request handlers running at once
func WithMaxConcurrency(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithMaxFrameSize rejects inbound frames larger than n bytes instead of
// DefaultMaxFrameSize. Zero disables the check.
func WithMaxFrameSize(n int) Option {
	return func(s *Server) {
		if n >= 0 {
			s.maxFrameSize = n
		}
	}
}

// New creates a Server reading frames from in and writing frames to out
func New(in io.Reader, out io.Writer, session Session, opts ...Option) *Server {
	s := &Server{
		in:          in,
		session:     session,
		logger:       logging.Nop(),
		concurrency:  DefaultMaxConcurrency,
		maxFrameSize: DefaultMaxFrameSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithFields(logging.Component("transport"))
	s.reader = NewFrameReader(in, s.maxFrameSize, s.metrics)
	s.writer = NewFrameWriter(out, s.metrics)
	return s
}

// NewStdio creates a Server over the process's stdin and stdout
func NewStdio(session Session, opts ...Option) *Server {
	return New(os.Stdin, os.Stdout, session, opts...)
}

type frame struct {
	payload []byte
	err     error
}

// Serve reads and dispatches frames until the session exits, the input
// ends, a write fails or ctx is cancelled. Requests run concurrently, bounded
// by the concurrency limit. Application notifications run one at a time in
// arrival order on a worker of their own; responses and control
// notifications are handled on the read loop. No frame is read after the
// one carrying exit. The session is always exited when Serve returns. A
// clean end of input returns nil.
func (s *Server) Serve(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return rpcerrors.ProtocolMisuse("server already started")
	}
	defer s.session.ForceExit()

	next := make(chan struct{}, 1)
	frames := make(chan frame)
	stop := make(chan struct{})
	go s.pump(next, frames, stop)
	defer func() {
		close(stop)
		if c, ok := s.in.(io.Closer); ok {
			_ = c.Close()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(s.concurrency))

	queue := newNotificationQueue()

	g.Go(func() error {
		return s.writeLoop(gctx)
	})
	g.Go(func() error {
		queue.run(gctx, s.session.Exited(), func(n *protocol.Notification) {
			s.session.HandleMessage(gctx, n)
		})
		return nil
	})
	g.Go(func() error {
		return s.readLoop(gctx, g, sem, queue, next, frames)
	})

	err := g.Wait()
	if err != nil {
		s.logger.WithError(err).Error("transport stopped")
	}
	return err
}

// pump reads one frame per signal on next, so nothing is consumed from the
// input unless the loop is ready to dispatch it.
func (s *Server) pump(next <-chan struct{}, frames chan<- frame, stop <-chan struct{}) {
	for {
		select {
		case <-next:
		case <-stop:
			return
		}

		payload, err := s.reader.Read()
		select {
		case frames <- frame{payload: payload, err: err}:
		case <-stop:
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) readLoop(ctx context.Context, g *errgroup.Group, sem *semaphore.Weighted, queue *notificationQueue, next chan<- struct{}, frames <-chan frame) error {
	for {
		next <- struct{}{}

		var f frame
		select {
		case f = <-frames:
		case <-ctx.Done():
			return ctx.Err()
		}

		if f.err != nil {
			s.session.ForceExit()
			if errors.Is(f.err, io.EOF) {
				s.logger.Info("input closed by peer")
				return nil
			}
			return f.err
		}

		if err := s.dispatch(ctx, g, sem, queue, f.payload); err != nil {
			return err
		}

		select {
		case <-s.session.Exited():
			return nil
		default:
		}
	}
}

func (s *Server) dispatch(ctx context.Context, g *errgroup.Group, sem *semaphore.Weighted, queue *notificationQueue, payload []byte) error {
	msg, err := protocol.DecodeMessage(payload)
	if err != nil {
		return s.replyMalformed(err)
	}

	switch m := msg.(type) {
	case *protocol.Request:
		// Waiting for a slot happens off the read loop so that responses to
		// server-initiated calls keep flowing while every slot is busy.
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return nil
			}
			defer sem.Release(1)
			return s.reply(s.session.HandleMessage(ctx, m))
		})
	case *protocol.Notification:
		if isControl(m.Method) {
			s.session.HandleMessage(ctx, m)
		} else {
			queue.push(m)
		}
	default:
		return s.reply(s.session.HandleMessage(ctx, msg))
	}
	return nil
}

// isControl reports notifications that take effect immediately instead of
// waiting behind application notifications
func isControl(method string) bool {
	switch method {
	case protocol.MethodExit, protocol.MethodCancelRequest, protocol.MethodWorkDoneProgressCancel:
		return true
	}
	return false
}

func (s *Server) replyMalformed(err error) error {
	var malformed *protocol.MalformedError
	if !errors.As(err, &malformed) {
		malformed = &protocol.MalformedError{Code: protocol.ParseError, Reason: err.Error()}
	}
	s.logger.Warn("malformed message", logging.ID(malformed.ID), logging.String("reason", malformed.Reason))

	var rpcErr rpcerrors.RPCError
	switch {
	case malformed.Code == protocol.ParseError:
		rpcErr = rpcerrors.ParseError(malformed.Reason)
	case malformed.ID.IsValid():
		rpcErr = rpcerrors.InvalidRequest(malformed.Reason)
	default:
		return nil
	}
	return s.reply(protocol.NewErrorResponse(malformed.ID, rpcerrors.ToProtocol(rpcErr)))
}

func (s *Server) reply(resp *protocol.Response) error {
	if resp == nil {
		return nil
	}
	select {
	case <-s.session.Exited():
		s.logger.Debug("dropping response after exit", logging.ID(resp.ID))
		return nil
	default:
	}
	if err := s.writer.Write(resp); err != nil {
		s.session.ForceExit()
		return err
	}
	return nil
}

func (s *Server) writeLoop(ctx context.Context) error {
	outbound := s.session.Outbound()
	for {
		select {
		case msg := <-outbound:
			if err := s.writer.Write(msg); err != nil {
				s.session.ForceExit()
				return err
			}
		case <-s.session.Exited():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
