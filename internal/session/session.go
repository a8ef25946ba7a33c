// Package session implements the per-game bet lifecycle: session
// establishment against the authority, bet submission, outcome
// resolution, and end-of-session seed reveal with fairness
// verification. A session is the only writer of its own fields; the UI
// and the auto-bet controller drive it exclusively through its methods
// and observe it through snapshots and notifications.
package session

import (
	"errors"
	"fmt"
)

type Phase string

const (
	PhaseUninitialized Phase = "UNINITIALIZED"
	PhaseSessionActive Phase = "SESSION_ACTIVE"
	PhaseBetPending    Phase = "BET_PENDING"
	PhaseResolved      Phase = "RESOLVED"
	PhaseEnded         Phase = "ENDED"
	PhaseTimeout       Phase = "TIMEOUT"
)

// ErrFairnessViolation marks a revealed server seed that does not hash
// to the committed value. Surfaced as a trust-breaking condition,
// distinct from an ordinary loss.
var ErrFairnessViolation = errors.New("session: revealed server seed does not match commitment")

// ErrBetPending rejects a bet submitted while another is still in
// flight. The pending bet and the transport are untouched.
var ErrBetPending = errors.New("session: a bet is already pending")

// SessionError carries a server-reported error from an acknowledgement.
// The stake was not consumed; the machine is back in SESSION_ACTIVE.
type SessionError struct {
	Message string
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session error from server: %s", e.Message)
}

// PhaseError rejects an operation not permitted in the current phase.
type PhaseError struct {
	Op    string
	Phase Phase
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("cannot %s in phase %s", e.Op, e.Phase)
}

// TransportFailure wraps a transport-level error that drove the machine
// to TIMEOUT.
type TransportFailure struct {
	Err error
}

func (e *TransportFailure) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportFailure) Unwrap() error {
	return e.Err
}
