package lifecycle

import (
	"fmt"

	rpcerrors "github.com/ajitpratap0/lsp-sdk-go/pkg/errors"
)

// Layer selects the gating policy a method is dispatched through
type Layer int

const (
	// LayerNormal runs only while the session is Initialized
	LayerNormal Layer = iota
	// LayerInitialize runs once, from Uninitialized
	LayerInitialize
	// LayerShutdown runs once, from Initialized
	LayerShutdown
	// LayerExit always runs and terminates the session
	LayerExit
	// LayerNone bypasses gating; used by control methods such as
	// $/cancelRequest that must work in every phase
	LayerNone
)

func (l Layer) String() string {
	switch l {
	case LayerNormal:
		return "normal"
	case LayerInitialize:
		return "initialize"
	case LayerShutdown:
		return "shutdown"
	case LayerExit:
		return "exit"
	case LayerNone:
		return "none"
	default:
		return fmt.Sprintf("Layer(%d)", int(l))
	}
}

// Verdict is the outcome of a gating decision
type Verdict int

const (
	// Run invokes the handler
	Run Verdict = iota
	// Reject answers with Decision.Err without invoking the handler
	Reject
	// Skip answers with success without invoking the handler
	Skip
)

// Decision is what a layer decides for one call
type Decision struct {
	Verdict Verdict
	Err     error
}

func run() Decision { return Decision{Verdict: Run} }
func skip() Decision { return Decision{Verdict: Skip} }
func reject(err error) Decision { return Decision{Verdict: Reject, Err: err} }

// Decide applies the layer's policy to the given state. It is pure: state
// changes implied by a Run verdict are performed by Machine.Invoke.
func (l Layer) Decide(state State, method string) Decision {
	switch l {
	case LayerInitialize:
		if state == Uninitialized {
			return run()
		}
		return reject(rpcerrors.AlreadyInitialized())

	case LayerNormal:
		switch state {
		case Initialized:
			return run()
		case Uninitialized, Initializing:
			return reject(rpcerrors.ServerNotInitialized(method))
		default:
			return reject(rpcerrors.AlreadyShutDown(method))
		}

	case LayerShutdown:
		if state == Initialized {
			return run()
		}
		return skip()

	default:
		return run()
	}
}
