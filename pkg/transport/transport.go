package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// Conn is an established outbound streaming connection.
//
// Each Send delivers exactly one message; message boundaries are the only
// framing the receiver sees.
type Conn interface {
	// Send writes one binary message
	Send(ctx context.Context, data []byte) error

	// Wait blocks until the connection has ended. It returns nil after a
	// local Close and the terminating error otherwise.
	Wait() error

	// Close closes the connection. Safe to call more than once.
	Close() error

	// RemoteAddr returns the peer address for logging
	RemoteAddr() string
}

// Dialer opens outbound connections
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// ErrNotConnected is returned by Send after the connection has ended
var ErrNotConnected = errors.New("not connected")

// Scheme is the URL scheme of a streaming endpoint
type Scheme int

const (
	// SchemeUnknown - unsupported or missing scheme
	SchemeUnknown Scheme = iota

	// SchemeWS - plain WebSocket (ws://)
	SchemeWS

	// SchemeWSS - WebSocket over TLS (wss://)
	SchemeWSS
)

// String returns the string representation of Scheme
func (s Scheme) String() string {
	switch s {
	case SchemeWS:
		return "ws"
	case SchemeWSS:
		return "wss"
	default:
		return "unknown"
	}
}

// DetectScheme determines the scheme of an endpoint URL
func DetectScheme(endpoint string) Scheme {
	lower := strings.ToLower(strings.TrimSpace(endpoint))
	switch {
	case strings.HasPrefix(lower, "ws://"):
		return SchemeWS
	case strings.HasPrefix(lower, "wss://"):
		return SchemeWSS
	default:
		return SchemeUnknown
	}
}

// ValidateEndpoint checks that endpoint is a dialable ws:// or wss:// URL
func ValidateEndpoint(endpoint string) (*url.URL, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("endpoint is empty")
	}

	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return nil, fmt.Errorf("invalid WebSocket URL %s: %w", endpoint, err)
	}

	if DetectScheme(endpoint) == SchemeUnknown {
		return nil, fmt.Errorf("invalid WebSocket scheme %q (expected ws:// or wss://)", u.Scheme)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("invalid WebSocket URL %s: missing host", endpoint)
	}

	return u, nil
}

// IsPeerClose reports whether err is the peer closing the connection with
// a close frame, as opposed to the connection breaking
func IsPeerClose(err error) bool {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return false
	}
	return closeErr.Code != websocket.CloseAbnormalClosure
}
