// Package pending tracks in-flight requests in both directions of a session.
//
// Every entry is keyed by (Direction, RequestID). Inbound entries carry the
// cancellation signal a handler observes, outbound entries additionally own
// the slot that the peer's response resolves, and progress entries carry
// only the cancellation flag of a work-done progress stream.
package pending

import (
	"context"
	"sync"
	"sync/atomic"

	rpcerrors "github.com/ajitpratap0/lsp-sdk-go/pkg/errors"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/protocol"
)

// Direction separates the id spaces of the two peers
type Direction int

const (
	// Inbound entries are requests the peer sent to us
	Inbound Direction = iota
	// Outbound entries are requests we sent to the peer
	Outbound
	// Progress entries watch a work-done progress token
	Progress
)

func (d Direction) String() string {
	switch d {
	case Inbound:
		return "inbound"
	case Outbound:
		return "outbound"
	case Progress:
		return "progress"
	default:
		return "unknown"
	}
}

// Directions lists every direction, in declaration order
var Directions = []Direction{Inbound, Outbound, Progress}

type key struct {
	dir Direction
	id  protocol.RequestID
}

// Outcome is the terminal result delivered to an outbound waiter. Exactly
// one of Response and Err is set.
type Outcome struct {
	Response *protocol.Response
	Err      error
}

// Entry is the bookkeeping record for one in-flight request
type Entry struct {
	dir       Direction
	id        protocol.RequestID
	ctx       context.Context
	cancel    context.CancelFunc
	cancelled atomic.Bool
	done      chan Outcome
	once      sync.Once
}

// ID returns the request id the entry was registered under
func (e *Entry) ID() protocol.RequestID { return e.id }

// Direction returns the direction the entry was registered under
func (e *Entry) Direction() Direction { return e.dir }

// Context is cancelled when the entry is cancelled, removed or cleared
func (e *Entry) Context() context.Context { return e.ctx }

// Cancelled reports whether cancellation was requested for the entry
func (e *Entry) Cancelled() bool { return e.cancelled.Load() }

// Done delivers the entry's outcome exactly once. Only outbound entries are
// ever resolved; for other directions the channel never fires.
func (e *Entry) Done() <-chan Outcome { return e.done }

func (e *Entry) resolve(o Outcome) {
	e.once.Do(func() {
		e.done <- o
	})
}

type entryContextKey struct{}

// ContextWithEntry returns ctx carrying entry, so code running on behalf of a
// pending request can find it
func ContextWithEntry(ctx context.Context, entry *Entry) context.Context {
	return context.WithValue(ctx, entryContextKey{}, entry)
}

// EntryFromContext returns the entry stored by ContextWithEntry
func EntryFromContext(ctx context.Context) (*Entry, bool) {
	entry, ok := ctx.Value(entryContextKey{}).(*Entry)
	return entry, ok && entry != nil
}

// Registry is a concurrency-safe table of pending entries. The zero value is
// not usable; create one with New.
type Registry struct {
	mu       sync.Mutex
	entries  map[key]*Entry
	counts   map[Direction]int
	closed   bool
	observer func(Direction, int)
}

// Option configures a Registry
type Option func(*Registry)

// WithObserver installs a callback invoked with the new entry count of a
// direction every time it changes. The callback runs under the registry lock
// and must not call back into the registry.
func WithObserver(fn func(dir Direction, count int)) Option {
	return func(r *Registry) {
		r.observer = fn
	}
}

// New creates an empty registry
func New(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[key]*Entry),
		counts:  make(map[Direction]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register inserts an entry for (dir, id). The entry's context derives from
// parent. Registering an id that is already pending in the same direction
// fails with a DuplicateID error, and registering after ClearAll fails with
// SessionClosed.
func (r *Registry) Register(parent context.Context, dir Direction, id protocol.RequestID) (*Entry, error) {
	if parent == nil {
		parent = context.Background()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, rpcerrors.SessionClosed()
	}

	k := key{dir: dir, id: id}
	if _, exists := r.entries[k]; exists {
		return nil, rpcerrors.DuplicateID(dir.String(), id)
	}

	ctx, cancel := context.WithCancel(parent)
	entry := &Entry{
		dir:    dir,
		id:     id,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan Outcome, 1),
	}
	r.entries[k] = entry
	r.adjust(dir, 1)
	return entry, nil
}

// IsCancelled reports whether (dir, id) is pending and has been cancelled
func (r *Registry) IsCancelled(dir Direction, id protocol.RequestID) bool {
	r.mu.Lock()
	entry, ok := r.entries[key{dir: dir, id: id}]
	r.mu.Unlock()

	return ok && entry.Cancelled()
}

// Cancel flags (dir, id) as cancelled and cancels its context. The entry
// stays registered: the handler may still complete normally. Cancel is a
// no-op for ids that are not pending and reports whether an entry was found.
func (r *Registry) Cancel(dir Direction, id protocol.RequestID) bool {
	r.mu.Lock()
	entry, ok := r.entries[key{dir: dir, id: id}]
	r.mu.Unlock()

	if !ok {
		return false
	}
	entry.cancelled.Store(true)
	entry.cancel()
	return true
}

// Complete resolves and removes an outbound entry with the peer's response.
// A response whose id is not pending yields a StrayResponse error.
func (r *Registry) Complete(id protocol.RequestID, resp *protocol.Response) error {
	entry, ok := r.take(key{dir: Outbound, id: id})
	if !ok {
		return rpcerrors.StrayResponse(id)
	}

	entry.resolve(Outcome{Response: resp})
	entry.cancel()
	return nil
}

// Fail resolves and removes an outbound entry with a local error
func (r *Registry) Fail(id protocol.RequestID, err error) bool {
	entry, ok := r.take(key{dir: Outbound, id: id})
	if !ok {
		return false
	}

	entry.resolve(Outcome{Err: err})
	entry.cancel()
	return true
}

// Remove deletes (dir, id) without resolving it. It reports whether the
// entry was present.
func (r *Registry) Remove(dir Direction, id protocol.RequestID) bool {
	entry, ok := r.take(key{dir: dir, id: id})
	if ok {
		entry.cancel()
	}
	return ok
}

// ClearAll cancels and removes every entry, resolving outbound waiters with
// SessionClosed, and closes the registry to further registrations.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[key]*Entry)
	r.closed = true
	for _, dir := range Directions {
		if r.counts[dir] != 0 {
			r.counts[dir] = 0
			r.notify(dir)
		}
	}
	r.mu.Unlock()

	for _, entry := range entries {
		entry.cancelled.Store(true)
		entry.resolve(Outcome{Err: rpcerrors.SessionClosed()})
		entry.cancel()
	}
}

// Closed reports whether ClearAll has run
func (r *Registry) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Len returns the number of pending entries in one direction
func (r *Registry) Len(dir Direction) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[dir]
}

func (r *Registry) take(k key) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[k]
	if ok {
		delete(r.entries, k)
		r.adjust(k.dir, -1)
	}
	return entry, ok
}

func (r *Registry) adjust(dir Direction, delta int) {
	r.counts[dir] += delta
	r.notify(dir)
}

func (r *Registry) notify(dir Direction) {
	if r.observer != nil {
		r.observer(dir, r.counts[dir])
	}
}
