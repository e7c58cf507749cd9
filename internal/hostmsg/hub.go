package hostmsg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"led-bridge/internal/metrics"
	"led-bridge/internal/status"
)

const (
	// writeDeadline bounds a single write to the page
	writeDeadline = 5 * time.Second

	// readDeadline allows about three missed pings
	readDeadline = 90 * time.Second

	pingInterval = 30 * time.Second

	// maxReadMessageSize bounds one relayed window message
	maxReadMessageSize = 4 * 1024 * 1024
)

// Handler receives every text message relayed by the host page
type Handler func(ctx context.Context, data []byte)

// Hub serves the WebSocket endpoint the host page connects to.
//
// Only one page is attached at a time. A new connection replaces the
// previous one so page reloads work without cleanup.
//
// Lock ordering: writeMu -> mu.
type Hub struct {
	trustedOrigin string
	upgrader      websocket.Upgrader

	mu      sync.RWMutex
	conn    *websocket.Conn
	handler Handler
	last    *Envelope

	writeMu sync.Mutex
}

// NewHub creates a hub that only posts to trustedOrigin. An empty origin
// falls back to TrustedOrigin.
func NewHub(trustedOrigin string) *Hub {
	if trustedOrigin == "" {
		trustedOrigin = TrustedOrigin
	}
	return &Hub{
		trustedOrigin: trustedOrigin,
		upgrader: websocket.Upgrader{
			// The endpoint is meant for a page served by this process on
			// a loopback address
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// TrustedOrigin returns the origin posts are restricted to
func (h *Hub) TrustedOrigin() string {
	return h.trustedOrigin
}

// SetHandler installs the inbound message handler
func (h *Hub) SetHandler(handler Handler) {
	h.mu.Lock()
	h.handler = handler
	h.mu.Unlock()
}

// HostAttached reports whether a host page is connected
func (h *Hub) HostAttached() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conn != nil
}

// PostMessage asks the host page to post data to its parent window with
// the given target origin
func (h *Hub) PostMessage(targetOrigin string, data interface{}) error {
	if targetOrigin != h.trustedOrigin {
		metrics.HostPostsTotal.WithLabelValues("rejected").Inc()
		return fmt.Errorf("%w: %s", ErrUntrustedOrigin, targetOrigin)
	}

	err := h.send(Envelope{Type: EnvelopePost, TargetOrigin: targetOrigin, Data: data})
	if err != nil {
		metrics.HostPostsTotal.WithLabelValues("failed").Inc()
		return err
	}
	metrics.HostPostsTotal.WithLabelValues("sent").Inc()
	return nil
}

// Report implements status.Reporter by pushing the status to the page.
// The latest status is replayed to a page that attaches later.
func (h *Hub) Report(s status.Status) {
	env := NewStatusEnvelope(s)

	h.mu.Lock()
	h.last = &env
	h.mu.Unlock()

	if err := h.send(env); err != nil && !errors.Is(err, ErrNoHost) {
		log.Debug().Err(err).Msg("Failed to push status to host page")
	}
}

// Close drops the attached page, if any
func (h *Hub) Close() error {
	h.mu.Lock()
	conn := h.conn
	h.conn = nil
	h.mu.Unlock()

	if conn == nil {
		return nil
	}

	h.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "bridge shutting down"),
		time.Now().Add(time.Second))
	h.writeMu.Unlock()
	return conn.Close()
}

func (h *Hub) send(env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	h.mu.RLock()
	conn := h.conn
	h.mu.RUnlock()
	if conn == nil {
		return ErrNoHost
	}

	return h.write(conn, websocket.TextMessage, payload)
}

// write serializes writes on conn. Any failure disconnects the page.
func (h *Hub) write(conn *websocket.Conn, messageType int, payload []byte) error {
	h.writeMu.Lock()
	err := conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err == nil {
		err = conn.WriteMessage(messageType, payload)
		_ = conn.SetWriteDeadline(time.Time{})
	}
	h.writeMu.Unlock()

	if err != nil {
		h.clearIfCurrent(conn)
		_ = conn.Close()
		return fmt.Errorf("failed to write to host page: %w", err)
	}
	return nil
}

func (h *Hub) clearIfCurrent(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn != conn {
		return false
	}
	h.conn = nil
	metrics.HostConnected.Set(0)
	return true
}

// ServeHTTP upgrades the request and runs the read pump until the page
// goes away
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Host page upgrade failed")
		return
	}

	conn.SetReadLimit(maxReadMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		_ = conn.Close()
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	h.mu.Lock()
	old := h.conn
	h.conn = conn
	last := h.last
	h.mu.Unlock()
	metrics.HostConnected.Set(1)

	if old != nil {
		_ = old.Close()
		log.Info().Msg("Host page replaced by new connection")
	}

	log.Info().Str("remote_addr", conn.RemoteAddr().String()).Msg("Host page attached")

	if last != nil {
		if err := h.send(*last); err != nil {
			log.Debug().Err(err).Msg("Failed to replay status")
		}
	}

	pingDone := make(chan struct{})
	go h.pingLoop(conn, pingDone)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Str("stack", string(debug.Stack())).
				Msg("Host page handler recovered")
		}
		close(pingDone)
		h.clearIfCurrent(conn)
		_ = conn.Close()
		log.Info().Msg("Host page detached")
	}()

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Host page read error")
			}
			return
		}
		if msgType != websocket.TextMessage {
			metrics.HostMessagesTotal.WithLabelValues("binary").Inc()
			continue
		}
		metrics.HostMessagesTotal.WithLabelValues("text").Inc()

		h.mu.RLock()
		handler := h.handler
		current := h.conn == conn
		h.mu.RUnlock()

		if handler == nil || !current {
			continue
		}
		handler(r.Context(), msg)
	}
}

func (h *Hub) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := h.write(conn, websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Msg("Host page ping failed")
				return
			}
		}
	}
}
