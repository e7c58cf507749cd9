package status

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name  string
		got   Status
		text  string
		style Style
	}{
		{"idle", Idle(), "Not connected", StyleNeutral},
		{"connecting", Connecting("ws://x"), "Connecting...", StyleConnecting},
		{"connected", Connected("ws://x"), "Connected!", StyleOK},
		{"disconnected", Disconnected("ws://x"), "Disconnected", StyleNeutral},
		{"frames", FramesSent("ws://x", 7), "7 frames sent", StyleOK},
		{"error", ConnectError("wss://example.test/x"), "Error establishing connection to wss://example.test/x", StyleError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.text, tt.got.Text)
			assert.Equal(t, tt.style, tt.got.Style)
			assert.False(t, tt.got.UpdatedAt.IsZero())
		})
	}

	assert.Equal(t, uint64(7), FramesSent("ws://x", 7).Frames)
}

func TestStyle_Names(t *testing.T) {
	assert.Equal(t, "neutral", StyleNeutral.String())
	assert.Equal(t, "status-ok", StyleOK.ClassName())
	assert.Equal(t, "status-error", StyleError.ClassName())
	assert.Equal(t, "", StyleNeutral.ClassName())

	for _, s := range []Style{StyleNeutral, StyleConnecting, StyleOK, StyleError} {
		text, err := s.MarshalText()
		require.NoError(t, err)

		var parsed Style
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, s, parsed)
	}

	var bad Style
	assert.Error(t, bad.UnmarshalText([]byte("shiny")))
}

func TestStatus_JSON(t *testing.T) {
	data, err := json.Marshal(FramesSent("ws://x", 3))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "3 frames sent", decoded["text"])
	assert.Equal(t, "ok", decoded["style"])
	assert.Equal(t, float64(3), decoded["frames"])
}

func TestBoard_FansOut(t *testing.T) {
	var mu sync.Mutex
	var first, second []Status

	board := NewBoard(ReporterFunc(func(s Status) {
		mu.Lock()
		defer mu.Unlock()
		first = append(first, s)
	}))
	assert.Equal(t, "Not connected", board.Current().Text)

	board.Attach(ReporterFunc(func(s Status) {
		mu.Lock()
		defer mu.Unlock()
		second = append(second, s)
	}))

	board.Report(Connecting("ws://x"))
	board.Report(Connected("ws://x"))

	assert.Equal(t, "Connected!", board.Current().Text)
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, first, 2)
	assert.Len(t, second, 2)
}

func TestBoard_ConcurrentReports(t *testing.T) {
	board := NewBoard()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n uint64) {
			defer wg.Done()
			board.Report(FramesSent("ws://x", n))
			_ = board.Current()
		}(uint64(i))
	}
	wg.Wait()
	assert.Equal(t, StyleOK, board.Current().Style)
}

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	reporter := LogReporter{Logger: zerolog.New(&buf).Level(zerolog.InfoLevel)}

	reporter.Report(ConnectError("ws://bad"))
	reporter.Report(FramesSent("ws://x", 1)) // debug, filtered

	out := buf.String()
	assert.Contains(t, out, "Error establishing connection to ws://bad")
	assert.Contains(t, out, `"level":"warn"`)
	assert.NotContains(t, out, "frames sent")
}
