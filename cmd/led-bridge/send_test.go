package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"led-bridge/pkg/config"
	"led-bridge/pkg/transport"
)

// recordingListener accepts one WebSocket client and records its messages
type recordingListener struct {
	mu       sync.Mutex
	messages [][]byte
	types    []int
}

func (l *recordingListener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		l.mu.Lock()
		l.messages = append(l.messages, data)
		l.types = append(l.types, msgType)
		l.mu.Unlock()
	}
}

func (l *recordingListener) Messages() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]byte(nil), l.messages...)
}

func testConfig(t *testing.T, url string) *config.Config {
	t.Helper()
	cfg, err := config.Load("", "")
	require.NoError(t, err)
	cfg.Bridge.DefaultURL = url
	return cfg
}

func TestRunSend_ForwardsFrames(t *testing.T) {
	listener := &recordingListener{}
	srv := httptest.NewServer(listener)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	input := strings.Join([]string{
		`{"neopixels":[255]}`,
		`{"app":"wokwi","command":"ignored"}`,
		``,
		`{"neopixels":{"pixels":[16711680,65280],"rows":1,"cols":2}}`,
	}, "\n")

	result, err := runSend(context.Background(), testConfig(t, url),
		transport.NewWebSocketDialer(transport.WebSocketOptions{}), strings.NewReader(input), 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Lines)
	assert.Equal(t, uint64(2), result.Frames)
	assert.Equal(t, "2 frames sent", result.Status)
	assert.Equal(t, "open", result.State)
	assert.NotEmpty(t, result.SessionID)

	require.Eventually(t, func() bool { return len(listener.Messages()) == 2 }, 2*time.Second, 10*time.Millisecond)
	msgs := listener.Messages()
	assert.Equal(t, []byte{0x00, 0x00, 0xFF}, msgs[0])
	assert.Equal(t, []byte{0x00, 0xFF, 0x00, 0xFF, 0x00, 0x00}, msgs[1])

	listener.mu.Lock()
	defer listener.mu.Unlock()
	for _, msgType := range listener.types {
		assert.Equal(t, websocket.BinaryMessage, msgType)
	}
}

func TestRunSend_ConnectError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	_, err := runSend(context.Background(), testConfig(t, url),
		transport.NewWebSocketDialer(transport.WebSocketOptions{}), strings.NewReader(""), 5*time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error establishing connection to "+url)
}

func TestRunSend_RequiresURL(t *testing.T) {
	_, err := runSend(context.Background(), testConfig(t, ""),
		transport.NewWebSocketDialer(transport.WebSocketOptions{}), strings.NewReader(""), time.Second)
	assert.Error(t, err)
}

func TestSendResult_WriteText(t *testing.T) {
	var buf bytes.Buffer
	r := sendResult{
		URL:       "ws://127.0.0.1:9000",
		SessionID: "0b7c",
		Lines:     4,
		Frames:    3,
		State:     "open",
		Status:    "3 frames sent",
	}
	require.NoError(t, r.WriteText(&buf))
	assert.Equal(t, "ws://127.0.0.1:9000: 3 frames sent (4 lines read, 3 frames sent, state open, session 0b7c)\n", buf.String())
}
