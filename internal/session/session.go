// Package session tracks a single outbound connection attempt: its
// lifecycle state, its frame counter and the transport connection once
// the handshake has completed.
//
// A Session is never reused. Every connect request creates a new one; once
// it reaches StateClosed or StateErrored it is discarded by its owner.
// Session is not safe for concurrent use; the bridge controller only
// touches it from its event loop.
package session

import (
	"time"

	"github.com/google/uuid"

	"led-bridge/pkg/transport"
)

// Session is one tracked connection attempt
type Session struct {
	id        string
	url       string
	state     State
	frames    uint64
	conn      transport.Conn
	startedAt time.Time
}

// New creates a session for url in StateConnecting with a zero frame count
func New(url string) *Session {
	s := &Session{
		id:        uuid.NewString(),
		url:       url,
		state:     StateIdle,
		startedAt: time.Now(),
	}
	// Idle -> Connecting is always valid
	s.state, _ = Transition(s.state, EventConnect)
	return s
}

// ID returns the session identifier used in logs and status
func (s *Session) ID() string { return s.id }

// URL returns the target URL
func (s *Session) URL() string { return s.url }

// State returns the current state
func (s *Session) State() State { return s.state }

// StartedAt returns when the connect was requested
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Apply moves the session through the state machine
func (s *Session) Apply(ev Event) error {
	next, err := Transition(s.state, ev)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

// Attach records the connection established for this session
func (s *Session) Attach(conn transport.Conn) {
	s.conn = conn
}

// Conn returns the attached connection, or nil before the handshake
func (s *Session) Conn() transport.Conn { return s.conn }

// CanForward reports whether frames may be sent right now
func (s *Session) CanForward() bool {
	return s.state == StateOpen && s.conn != nil
}

// RecordFrame counts one forwarded frame and returns the new total
func (s *Session) RecordFrame() uint64 {
	s.frames++
	return s.frames
}

// Frames returns the number of frames forwarded in this session
func (s *Session) Frames() uint64 { return s.frames }
