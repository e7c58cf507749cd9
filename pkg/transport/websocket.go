package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// closeGracePeriod bounds how long Close waits to deliver the close frame
const closeGracePeriod = time.Second

// defaultReadLimit caps inbound messages; the listener is not expected to
// send anything but control frames
const defaultReadLimit = 64 * 1024

// WebSocketOptions configures a WebSocketDialer
type WebSocketOptions struct {
	// HandshakeTimeout bounds the opening handshake. Zero waits forever.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds each Send when the caller's context has no
	// deadline. Zero means no deadline.
	WriteTimeout time.Duration

	// InsecureSkipVerify disables certificate checks for wss:// endpoints
	InsecureSkipVerify bool

	// ReadLimit caps the size of inbound messages
	ReadLimit int64

	// Header is sent with the opening handshake
	Header http.Header
}

// WebSocketDialer dials ws:// and wss:// listeners
type WebSocketDialer struct {
	opts WebSocketOptions
}

// NewWebSocketDialer creates a new WebSocket dialer
func NewWebSocketDialer(opts WebSocketOptions) *WebSocketDialer {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = defaultReadLimit
	}
	return &WebSocketDialer{opts: opts}
}

// Dial opens a connection to endpoint. The returned Conn is ready for Send.
func (d *WebSocketDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	wsURL, err := ValidateEndpoint(endpoint)
	if err != nil {
		return nil, err
	}

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.opts.HandshakeTimeout,
	}
	if DetectScheme(endpoint) == SchemeWSS && d.opts.InsecureSkipVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL.String(), d.opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s (HTTP %d): %w", wsURL.String(), resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", wsURL.String(), err)
	}

	log.Debug().
		Str("transport", "websocket").
		Str("endpoint", wsURL.String()).
		Str("remote_addr", conn.RemoteAddr().String()).
		Msg("WebSocket connection established")

	return newWebSocketConn(conn, d.opts), nil
}

// WebSocketConn is a Conn backed by a gorilla WebSocket
type WebSocketConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	// writeMu serializes writes; gorilla/websocket allows one writer at a time
	writeMu sync.Mutex

	done      chan struct{}
	err       error // valid once done is closed
	closing   atomic.Bool
	closeOnce sync.Once
}

func newWebSocketConn(conn *websocket.Conn, opts WebSocketOptions) *WebSocketConn {
	c := &WebSocketConn{
		conn:         conn,
		writeTimeout: opts.WriteTimeout,
		done:         make(chan struct{}),
	}
	conn.SetReadLimit(opts.ReadLimit)
	go c.readLoop()
	return c
}

// readLoop drains inbound messages so control frames are processed and
// the end of the connection is observed
func (c *WebSocketConn) readLoop() {
	defer close(c.done)

	for {
		_, r, err := c.conn.NextReader()
		if err != nil {
			if !c.closing.Load() {
				c.err = err
			}
			return
		}
		if _, err := io.Copy(io.Discard, r); err != nil {
			if !c.closing.Load() {
				c.err = err
			}
			return
		}
	}
}

// Send writes data as one binary message
func (c *WebSocketConn) Send(ctx context.Context, data []byte) error {
	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
	} else if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	} else {
		c.conn.SetWriteDeadline(time.Time{})
	}

	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("WebSocket write error: %w", err)
	}
	return nil
}

// Wait blocks until the read loop has exited
func (c *WebSocketConn) Wait() error {
	<-c.done
	return c.err
}

// Close sends a normal close frame and closes the socket
func (c *WebSocketConn) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		c.closing.Store(true)

		c.writeMu.Lock()
		// best effort; the peer may already be gone
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGracePeriod),
		)
		c.writeMu.Unlock()

		closeErr = c.conn.Close()
	})
	return closeErr
}

// RemoteAddr returns the peer address
func (c *WebSocketConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
