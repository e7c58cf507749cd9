package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"led-bridge/internal/bridge"
	"led-bridge/internal/hostmsg"
	"led-bridge/internal/status"
	"led-bridge/pkg/transport"
)

type frameSink struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *frameSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.frames = append(s.frames, data)
		s.mu.Unlock()
	}
}

func (s *frameSink) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.frames...)
}

// readUntil reads envelopes from the page socket until match returns true
func readUntil(t *testing.T, page *websocket.Conn, match func(hostmsg.Envelope) bool) hostmsg.Envelope {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, page.SetReadDeadline(deadline))
		_, data, err := page.ReadMessage()
		require.NoError(t, err)

		var env hostmsg.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		if match(env) {
			return env
		}
	}
}

func TestBridgeEndToEnd(t *testing.T) {
	sink := &frameSink{}
	listener := httptest.NewServer(sink)
	defer listener.Close()
	listenerURL := "ws" + strings.TrimPrefix(listener.URL, "http")

	hub := hostmsg.NewHub(hostmsg.TrustedOrigin)
	board := status.NewBoard(hub)
	ctrl := bridge.New(bridge.Options{
		Dialer:   transport.NewWebSocketDialer(transport.WebSocketOptions{}),
		Poster:   hub,
		Reporter: board,
	})
	hub.SetHandler(func(ctx context.Context, data []byte) {
		_ = ctrl.HandleHostMessage(ctx, data)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = ctrl.Run(ctx) }()

	srv := New(Options{ListenAddress: "127.0.0.1:0"}, ctrl, hub, board)
	web := httptest.NewServer(srv.Handler())
	defer web.Close()

	page, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(web.URL, "http")+"/host/ws", nil)
	require.NoError(t, err)
	defer page.Close()
	require.Eventually(t, hub.HostAttached, 2*time.Second, 5*time.Millisecond)

	resp, err := http.Post(web.URL+"/api/connect", "application/json",
		strings.NewReader(`{"url":"`+listenerURL+`"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	post := readUntil(t, page, func(env hostmsg.Envelope) bool { return env.Type == hostmsg.EnvelopePost })
	assert.Equal(t, "https://wokwi.com", post.TargetOrigin)
	assert.Equal(t, "Connected!", board.Current().Text)

	require.NoError(t, page.WriteMessage(websocket.TextMessage, []byte(`{"neopixels":[255,65280]}`)))

	env := readUntil(t, page, func(env hostmsg.Envelope) bool {
		return env.Type == hostmsg.EnvelopeStatus && env.Status.Frames == 1
	})
	assert.Equal(t, "1 frames sent", env.Status.Text)
	assert.Equal(t, "status-ok", env.Status.ClassName)

	require.Eventually(t, func() bool { return len(sink.Frames()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []byte{0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00}, sink.Frames()[0])

	resp, err = http.Post(web.URL+"/api/disconnect", "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()

	readUntil(t, page, func(env hostmsg.Envelope) bool {
		return env.Type == hostmsg.EnvelopeStatus && env.Status.Text == "Disconnected"
	})
}
