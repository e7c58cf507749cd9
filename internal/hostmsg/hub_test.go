package hostmsg

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"led-bridge/internal/status"
)

func attachPage(t *testing.T, hub *Hub) (*websocket.Conn, func()) {
	t.Helper()

	srv := httptest.NewServer(hub)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.Eventually(t, hub.HostAttached, time.Second, 5*time.Millisecond)

	return conn, func() {
		_ = conn.Close()
		srv.Close()
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestHub_PostMessageWithoutHost(t *testing.T) {
	hub := NewHub("")
	assert.Equal(t, TrustedOrigin, hub.TrustedOrigin())
	assert.ErrorIs(t, hub.PostMessage(TrustedOrigin, ListenCommand), ErrNoHost)
}

func TestHub_PostMessageUntrustedOrigin(t *testing.T) {
	hub := NewHub(TrustedOrigin)
	_, cleanup := attachPage(t, hub)
	defer cleanup()

	err := hub.PostMessage("https://evil.example", ListenCommand)
	assert.ErrorIs(t, err, ErrUntrustedOrigin)
}

func TestHub_PostMessageDelivered(t *testing.T) {
	hub := NewHub(TrustedOrigin)
	page, cleanup := attachPage(t, hub)
	defer cleanup()

	require.NoError(t, hub.PostMessage(TrustedOrigin, ListenCommand))

	env := readEnvelope(t, page)
	assert.Equal(t, EnvelopePost, env.Type)
	assert.Equal(t, TrustedOrigin, env.TargetOrigin)

	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"app":"wokwi","command":"listen","version":1}`, string(data))
}

func TestHub_RelaysInboundMessages(t *testing.T) {
	hub := NewHub(TrustedOrigin)
	received := make(chan string, 1)
	hub.SetHandler(func(ctx context.Context, data []byte) {
		received <- string(data)
	})

	page, cleanup := attachPage(t, hub)
	defer cleanup()

	require.NoError(t, page.WriteMessage(websocket.TextMessage, []byte(`{"neopixels":[1]}`)))

	select {
	case msg := <-received:
		assert.Equal(t, `{"neopixels":[1]}`, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("message not relayed")
	}
}

func TestHub_ReplaysLastStatusOnAttach(t *testing.T) {
	hub := NewHub(TrustedOrigin)
	hub.Report(status.FramesSent("ws://x", 4))

	page, cleanup := attachPage(t, hub)
	defer cleanup()

	env := readEnvelope(t, page)
	assert.Equal(t, EnvelopeStatus, env.Type)
	require.NotNil(t, env.Status)
	assert.Equal(t, "4 frames sent", env.Status.Text)
	assert.Equal(t, uint64(4), env.Status.Frames)
}

func TestHub_NewPageReplacesOld(t *testing.T) {
	hub := NewHub(TrustedOrigin)
	first, cleanupFirst := attachPage(t, hub)
	defer cleanupFirst()
	second, cleanupSecond := attachPage(t, hub)
	defer cleanupSecond()

	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := first.ReadMessage()
	assert.Error(t, err, "replaced page should be disconnected")

	require.NoError(t, hub.PostMessage(TrustedOrigin, ListenCommand))
	env := readEnvelope(t, second)
	assert.Equal(t, EnvelopePost, env.Type)
}

func TestHub_DetachOnClose(t *testing.T) {
	hub := NewHub(TrustedOrigin)
	page, cleanup := attachPage(t, hub)
	defer cleanup()

	require.NoError(t, page.Close())
	assert.Eventually(t, func() bool { return !hub.HostAttached() }, 2*time.Second, 5*time.Millisecond)
	assert.NoError(t, hub.Close())
}
