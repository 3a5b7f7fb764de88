// Package turn provides turn ID generation and the recognition turn lifecycle.
package turn

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a recognition turn.
type State int

const (
	// StateListening - Turn is active, partials are accepted.
	StateListening State = iota
	// StateFinalReceived - The recognizer reported its final result.
	StateFinalReceived
	// StateEnded - Turn ended normally (user stop, final result, limit).
	StateEnded
	// StateFailed - Turn ended because the recognizer failed. The transcript
	// collected so far is still finalized.
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateListening:
		return "LISTENING"
	case StateFinalReceived:
		return "FINAL_RECEIVED"
	case StateEnded:
		return "ENDED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is terminal (ENDED or FAILED).
func (s State) IsTerminal() bool {
	return s == StateEnded || s == StateFailed
}

// EndReason records why a turn ended.
type EndReason string

const (
	ReasonNone          EndReason = ""
	ReasonUserStop      EndReason = "user_stop"
	ReasonFinalResult   EndReason = "final_result"
	ReasonError         EndReason = "error"
	ReasonLimitExceeded EndReason = "limit_exceeded"
	ReasonSessionClosed EndReason = "session_closed"
)

// Errors for invalid state transitions.
var (
	ErrTurnEnded            = errors.New("turn has ended")
	ErrFinalAlreadyReceived = errors.New("final already received for this turn")
	ErrPartialAfterFinal    = errors.New("cannot accept partial after final")
)

// Lifecycle manages the state machine for a single recognition turn.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	LISTENING → FINAL_RECEIVED → ENDED
//	    │                          ↑
//	    ├── End() ─────────────────┘
//	    └── Fail() ──→ FAILED
type Lifecycle struct {
	mu     sync.RWMutex
	turnID string
	state  State
	reason EndReason
}

// NewLifecycle creates a new turn lifecycle in LISTENING state.
func NewLifecycle(turnID string) *Lifecycle {
	return &Lifecycle{
		turnID: turnID,
		state:  StateListening,
	}
}

// TurnID returns the turn ID.
func (l *Lifecycle) TurnID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.turnID
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Reason returns why the turn ended, or ReasonNone while it is active.
func (l *Lifecycle) Reason() EndReason {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.reason
}

// IsEnded returns true if the turn is in a terminal state.
func (l *Lifecycle) IsEnded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.IsTerminal()
}

// ObservePartial validates that a partial may be accepted.
func (l *Lifecycle) ObservePartial() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	switch l.state {
	case StateListening:
		return nil
	case StateFinalReceived:
		return ErrPartialAfterFinal
	case StateEnded, StateFailed:
		return ErrTurnEnded
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// ObserveFinal validates and transitions to FINAL_RECEIVED state.
func (l *Lifecycle) ObserveFinal() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateListening:
		l.state = StateFinalReceived
		return nil
	case StateFinalReceived:
		return ErrFinalAlreadyReceived
	case StateEnded, StateFailed:
		return ErrTurnEnded
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// End transitions the turn to ENDED. Returns false if already terminal.
func (l *Lifecycle) End(reason EndReason) bool {
	return l.terminate(StateEnded, reason)
}

// Fail transitions the turn to FAILED. Returns false if already terminal.
func (l *Lifecycle) Fail() bool {
	return l.terminate(StateFailed, ReasonError)
}

func (l *Lifecycle) terminate(state State, reason EndReason) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = state
	l.reason = reason
	return true
}

// Reset starts a new turn in LISTENING state.
func (l *Lifecycle) Reset(newTurnID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turnID = newTurnID
	l.state = StateListening
	l.reason = ReasonNone
}
