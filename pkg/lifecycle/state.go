// Package lifecycle implements the worker version state machine.
//
// Every worker version moves through Installing -> Waiting -> Activating ->
// Active -> Redundant. Transitions are guarded: an invalid transition is an
// error, never a silent state change. Install failures are the only fatal
// case; they leave the machine in Installing and the previous active version
// untouched.
package lifecycle

import (
	"errors"
	"fmt"
)

// State is a worker version's position in the lifecycle.
type State int

const (
	// StateInstalling means the version is pre-caching its manifest.
	StateInstalling State = iota

	// StateWaiting means install succeeded and the version is ready to
	// activate once the previous active version releases control.
	StateWaiting

	// StateActivating means stale cache namespaces are being purged.
	StateActivating

	// StateActive means the version controls clients.
	StateActive

	// StateRedundant means a newer version has activated and superseded
	// this one.
	StateRedundant
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateWaiting:
		return "waiting"
	case StateActivating:
		return "activating"
	case StateActive:
		return "active"
	case StateRedundant:
		return "redundant"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ErrInvalidTransition is returned when a transition is not allowed from the
// current state.
var ErrInvalidTransition = errors.New("lifecycle: invalid state transition")

// ErrInstallFailed is returned when a required pre-cache fetch fails. The
// install attempt is abandoned and the state stays Installing.
var ErrInstallFailed = errors.New("lifecycle: install failed")

// validNext lists the single allowed successor per state. The lifecycle is a
// straight line; there are no branches or back edges.
var validNext = map[State]State{
	StateInstalling: StateWaiting,
	StateWaiting:    StateActivating,
	StateActivating: StateActive,
	StateActive:     StateRedundant,
}

// canTransition reports whether from -> to is an allowed transition.
func canTransition(from, to State) bool {
	next, ok := validNext[from]
	return ok && next == to
}
