// Package lifecycle holds the session state machine and the gating layers
// that decide, per inbound call, whether a handler may run in the current
// session phase.
package lifecycle

import (
	"fmt"
	"sync/atomic"
)

// State is one phase of a session
type State int32

const (
	Uninitialized State = iota
	Initializing
	Initialized
	ShuttingDown
	Exited
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Initialized:
		return "initialized"
	case ShuttingDown:
		return "shutting_down"
	case Exited:
		return "exited"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// States lists every state in lifecycle order
var States = []State{Uninitialized, Initializing, Initialized, ShuttingDown, Exited}

// transitions is the set of legal ordinary moves. Initializing may fall back
// to Uninitialized when the initialize handler fails; every other edge moves
// forward. Exited is also reachable from anywhere through ForceExit.
var transitions = map[State][]State{
	Uninitialized: {Initializing},
	Initializing:  {Initialized, Uninitialized},
	Initialized:   {ShuttingDown},
	ShuttingDown:  {Exited},
}

// CanTransition reports whether from -> to is a legal ordinary transition
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError reports a rejected state change
type TransitionError struct {
	From    State
	To      State
	Current State
}

func (e *TransitionError) Error() string {
	if !CanTransition(e.From, e.To) {
		return fmt.Sprintf("illegal state transition %s -> %s", e.From, e.To)
	}
	return fmt.Sprintf("state transition %s -> %s lost race: state is %s", e.From, e.To, e.Current)
}

// StateCell is the single source of truth for the session state. All reads
// and writes are atomic; a transition succeeds only if the cell still holds
// the expected state.
type StateCell struct {
	v        atomic.Int32
	observer func(State)
}

// NewStateCell returns a cell in the Uninitialized state. observer, if not
// nil, is called after every successful change.
func NewStateCell(observer func(State)) *StateCell {
	c := &StateCell{observer: observer}
	if observer != nil {
		observer(Uninitialized)
	}
	return c
}

// Load returns the current state
func (c *StateCell) Load() State {
	return State(c.v.Load())
}

// Transition moves the cell from one state to another. It fails without
// side effects if the edge is not in the transition table or if the cell no
// longer holds from.
func (c *StateCell) Transition(from, to State) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to, Current: c.Load()}
	}
	if !c.v.CompareAndSwap(int32(from), int32(to)) {
		return &TransitionError{From: from, To: to, Current: c.Load()}
	}
	c.changed(to)
	return nil
}

// ForceExit moves the cell to Exited from any state and returns the state
// it held before.
func (c *StateCell) ForceExit() State {
	prev := State(c.v.Swap(int32(Exited)))
	if prev != Exited {
		c.changed(Exited)
	}
	return prev
}

func (c *StateCell) changed(s State) {
	if c.observer != nil {
		c.observer(s)
	}
}
