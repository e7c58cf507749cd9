package session

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when an event does not apply to a state
var ErrInvalidTransition = errors.New("invalid connection state transition")

// State is the lifecycle state of the outbound connection
type State int

const (
	// StateIdle - no connection has been requested
	StateIdle State = iota

	// StateConnecting - dial in progress, handshake not yet complete
	StateConnecting

	// StateOpen - handshake complete, frames are forwarded
	StateOpen

	// StateClosed - closed locally or by the peer
	StateClosed

	// StateErrored - dial failed or the connection broke
	StateErrored
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText lets states appear by name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Active reports whether a connection is in flight or open
func (s State) Active() bool {
	return s == StateConnecting || s == StateOpen
}

// Terminal reports whether a fresh connect is required to make progress
func (s State) Terminal() bool {
	return s == StateClosed || s == StateErrored
}

// Event drives the state machine
type Event int

const (
	// EventConnect - a connection was requested
	EventConnect Event = iota

	// EventOpened - the handshake completed
	EventOpened

	// EventFailed - the dial failed or the open connection broke
	EventFailed

	// EventClosed - the connection was closed, locally or by the peer
	EventClosed
)

// String returns the string representation of Event
func (e Event) String() string {
	switch e {
	case EventConnect:
		return "connect"
	case EventOpened:
		return "opened"
	case EventFailed:
		return "failed"
	case EventClosed:
		return "closed"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Transition returns the state reached by applying ev to from.
// It has no side effects.
func Transition(from State, ev Event) (State, error) {
	switch ev {
	case EventConnect:
		if from == StateIdle || from.Terminal() {
			return StateConnecting, nil
		}
	case EventOpened:
		if from == StateConnecting {
			return StateOpen, nil
		}
	case EventFailed:
		if from.Active() {
			return StateErrored, nil
		}
	case EventClosed:
		if from.Active() {
			return StateClosed, nil
		}
	}

	return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, from)
}
