package lifecycle

import (
	"context"
	"sync"

	rpcerrors "github.com/ajitpratap0/lsp-sdk-go/pkg/errors"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/logging"
	"github.com/ajitpratap0/lsp-sdk-go/pkg/pending"
)

// Handler is the gated unit of work: the decoded method invocation
type Handler func(ctx context.Context) (interface{}, error)

// Machine applies gating layers against a shared StateCell and owns the
// session's exit signal.
type Machine struct {
	state   *StateCell
	pending *pending.Registry
	logger  logging.Logger

	shutdownMu sync.Mutex

	exitOnce  sync.Once
	exited    chan struct{}
	exitState State

	hooksMu sync.Mutex
	hooks   []func()
}

// NewMachine creates a machine over state and registry. Exit clears the
// registry.
func NewMachine(state *StateCell, registry *pending.Registry, logger logging.Logger) *Machine {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Machine{
		state:   state,
		pending: registry,
		logger:  logger.WithFields(logging.Component("lifecycle")),
		exited:  make(chan struct{}),
	}
}

// State returns the current session state
func (m *Machine) State() State {
	return m.state.Load()
}

// Invoke runs handler through the given layer. A Reject decision returns the
// layer's error without calling handler; a Skip decision returns (nil, nil).
func (m *Machine) Invoke(ctx context.Context, layer Layer, method string, handler Handler) (interface{}, error) {
	switch layer {
	case LayerInitialize:
		return m.initialize(ctx, method, handler)
	case LayerShutdown:
		return m.shutdown(ctx, method, handler)
	case LayerExit:
		m.Exit()
		return nil, nil
	case LayerNone:
		return handler(ctx)
	}

	d := layer.Decide(m.state.Load(), method)
	if d.Verdict == Reject {
		return nil, d.Err
	}
	return handler(ctx)
}

func (m *Machine) initialize(ctx context.Context, method string, handler Handler) (interface{}, error) {
	d := LayerInitialize.Decide(m.state.Load(), method)
	if d.Verdict == Reject {
		return nil, d.Err
	}

	// Two racing initialize calls both pass Decide; only one wins the swap.
	if err := m.state.Transition(Uninitialized, Initializing); err != nil {
		return nil, rpcerrors.AlreadyInitialized()
	}

	result, err := handler(ctx)
	if err != nil {
		if terr := m.state.Transition(Initializing, Uninitialized); terr != nil {
			m.logger.Warn("initialize rollback skipped", logging.ErrorField(terr))
		}
		return nil, err
	}

	if terr := m.state.Transition(Initializing, Initialized); terr != nil {
		m.logger.Warn("initialize completed after state changed", logging.ErrorField(terr))
	}
	return result, nil
}

func (m *Machine) shutdown(ctx context.Context, method string, handler Handler) (interface{}, error) {
	m.shutdownMu.Lock()
	defer m.shutdownMu.Unlock()

	if d := LayerShutdown.Decide(m.state.Load(), method); d.Verdict != Run {
		return nil, d.Err
	}

	result, err := handler(ctx)
	if err != nil {
		return nil, err
	}

	if terr := m.state.Transition(Initialized, ShuttingDown); terr != nil {
		m.logger.Warn("shutdown completed after state changed", logging.ErrorField(terr))
	}
	return result, nil
}

// OnExit registers fn to run once the session exits, after the pending
// registry is cleared and before Done is closed. Hooks registered after exit
// never run.
func (m *Machine) OnExit(fn func()) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Exit moves the session to Exited, releases every pending entry with
// SessionClosed and closes the Done channel. Only the first call has any
// effect.
func (m *Machine) Exit() {
	m.exitOnce.Do(func() {
		m.exitState = m.state.ForceExit()
		m.pending.ClearAll()
		m.logger.Info("session exited", logging.String("previous_state", m.exitState.String()))

		m.hooksMu.Lock()
		hooks := m.hooks
		m.hooks = nil
		m.hooksMu.Unlock()
		for _, fn := range hooks {
			fn()
		}
		close(m.exited)
	})
}

// Done is closed once the session has exited
func (m *Machine) Done() <-chan struct{} {
	return m.exited
}

// ExitCode is 0 when the session went through shutdown before exiting and 1
// otherwise. It is only meaningful after Done is closed.
func (m *Machine) ExitCode() int {
	select {
	case <-m.exited:
	default:
		return 1
	}
	if m.exitState == ShuttingDown {
		return 0
	}
	return 1
}
