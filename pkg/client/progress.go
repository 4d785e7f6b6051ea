package client

import (
	"context"
	"sync"

	rpcerrors "github.com/ajitpratap0/lsp-sdk-go/pkg/errors"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/pending"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/protocol"
	"github.com/google/uuid"
)

// ProgressOption configures a progress stream at Begin
type ProgressOption func(*progressConfig)

type progressConfig struct {
	token       protocol.ProgressToken
	bounded     bool
	percentage  uint32
	cancellable bool
	message     string
}

// Bounded makes the stream percentage-based. Every Report must then carry
// a percentage.
func Bounded(initial uint32) ProgressOption {
	return func(c *progressConfig) {
		c.bounded = true
		c.percentage = initial
	}
}

// Cancellable lets the peer cancel the stream. Streams are not cancellable
// by default.
func Cancellable() ProgressOption {
	return func(c *progressConfig) {
		c.cancellable = true
	}
}

// WithProgressMessage sets the message of the begin notification
func WithProgressMessage(message string) ProgressOption {
	return func(c *progressConfig) {
		c.message = message
	}
}

// WithToken reports on a token chosen by the peer, such as the
// workDoneToken of a request, instead of minting a fresh one
func WithToken(token protocol.ProgressToken) ProgressOption {
	return func(c *progressConfig) {
		c.token = token
	}
}

// Progress is one open work-done progress stream
type Progress struct {
	client      *Client
	token       protocol.ProgressToken
	bounded     bool
	cancellable bool
	entry       *pending.Entry
	unfollow    func() bool

	// sendMu orders report and end notifications on the wire
	sendMu sync.Mutex
	mu     sync.Mutex
	ended  bool
}

// BeginProgress opens a progress stream titled title and sends its begin
// notification. A cancellable stream started on behalf of a pending
// request is cancelled when the peer cancels that request; the request
// merely completing leaves the stream alone.
func (c *Client) BeginProgress(ctx context.Context, title string, opts ...ProgressOption) (*Progress, error) {
	cfg := progressConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.token.IsValid() {
		cfg.token = protocol.StringID(uuid.NewString())
	}
	if cfg.bounded && cfg.percentage > 100 {
		return nil, rpcerrors.ProtocolMisuse("percentage must be between 0 and 100")
	}

	p := &Progress{
		client:      c,
		token:       cfg.token,
		bounded:     cfg.bounded,
		cancellable: cfg.cancellable,
	}

	if cfg.cancellable {
		entry, err := c.pending.Register(context.WithoutCancel(ctx), pending.Progress, cfg.token)
		if err != nil {
			return nil, err
		}
		p.entry = entry
		if request, ok := pending.EntryFromContext(ctx); ok {
			p.unfollow = context.AfterFunc(request.Context(), func() {
				if request.Cancelled() {
					c.pending.Cancel(pending.Progress, cfg.token)
				}
			})
		}
	}

	begin := protocol.WorkDoneProgressBegin{
		Kind:        protocol.ProgressKindBegin,
		Title:       title,
		Cancellable: cfg.cancellable,
		Message:     cfg.message,
	}
	if cfg.bounded {
		pct := cfg.percentage
		begin.Percentage = &pct
	}

	if err := c.sendProgress(ctx, cfg.token, begin); err != nil {
		p.release()
		return nil, err
	}
	return p, nil
}

// Token returns the stream's token
func (p *Progress) Token() protocol.ProgressToken {
	return p.token
}

// Report sends a report notification. A bounded stream requires exactly
// one percentage between 0 and 100; an unbounded stream accepts none.
func (p *Progress) Report(ctx context.Context, message string, percentage ...uint32) error {
	report := protocol.WorkDoneProgressReport{
		Kind:    protocol.ProgressKindReport,
		Message: message,
	}

	switch {
	case p.bounded && len(percentage) != 1:
		return rpcerrors.ProtocolMisuse("bounded progress report needs exactly one percentage")
	case !p.bounded && len(percentage) != 0:
		return rpcerrors.ProtocolMisuse("unbounded progress report cannot carry a percentage")
	case p.bounded && percentage[0] > 100:
		return rpcerrors.ProtocolMisuse("percentage must be between 0 and 100")
	case p.bounded:
		pct := percentage[0]
		report.Percentage = &pct
	}

	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	p.mu.Lock()
	ended := p.ended
	p.mu.Unlock()
	if ended {
		return rpcerrors.ProtocolMisuse("progress already ended")
	}

	return p.client.sendProgress(ctx, p.token, report)
}

// End sends the terminal notification and releases the cancellation entry.
// Ending a stream twice is a ProtocolMisuse error.
func (p *Progress) End(ctx context.Context, message string) error {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	p.mu.Lock()
	if p.ended {
		p.mu.Unlock()
		return rpcerrors.ProtocolMisuse("progress already ended")
	}
	p.ended = true
	p.mu.Unlock()

	p.release()
	return p.client.sendProgress(ctx, p.token, protocol.WorkDoneProgressEnd{
		Kind:    protocol.ProgressKindEnd,
		Message: message,
	})
}

// IsCancelled reports whether the peer cancelled the stream. It is always
// false for streams that were not begun as Cancellable.
func (p *Progress) IsCancelled() bool {
	if !p.cancellable {
		return false
	}

	p.mu.Lock()
	ended := p.ended
	p.mu.Unlock()
	if ended {
		return false
	}

	return p.entry.Cancelled()
}

// Context is cancelled when a cancellable stream is cancelled or ended. For
// other streams it is never cancelled.
func (p *Progress) Context() context.Context {
	if p.entry == nil {
		return context.Background()
	}
	return p.entry.Context()
}

func (p *Progress) release() {
	if p.unfollow != nil {
		p.unfollow()
	}
	if p.entry != nil {
		p.client.pending.Remove(pending.Progress, p.token)
	}
}

func (c *Client) sendProgress(ctx context.Context, token protocol.ProgressToken, value interface{}) error {
	return c.Notify(ctx, protocol.MethodProgress, protocol.ProgressParams{Token: token, Value: value})
}
