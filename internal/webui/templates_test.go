package webui

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"led-bridge/internal/status"
)

func render(t *testing.T, data PageData) string {
	t.Helper()
	reader, err := RenderIndex(data)
	require.NoError(t, err)
	require.NotNil(t, reader)

	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	return string(content)
}

func TestRenderIndex(t *testing.T) {
	content := render(t, NewPageData("ws://192.168.1.50:8080/leds", status.Connected("ws://192.168.1.50:8080/leds")))

	expected := []string{
		"LED WebSocket Bridge",
		`value="ws://192.168.1.50:8080/leds"`,
		`class="status-ok"`,
		"Connected!",
		"/api/connect",
		"parent.postMessage",
	}
	for _, element := range expected {
		assert.Contains(t, content, element)
	}
}

func TestRenderIndex_EscapesURL(t *testing.T) {
	content := render(t, NewPageData(`"><script>alert(1)</script>`, status.Idle()))

	assert.NotContains(t, content, `"><script>alert(1)`)
	assert.Contains(t, content, "Not connected")
}

func TestRenderIndex_DefaultChannelPath(t *testing.T) {
	content := render(t, PageData{Title: "x"})
	line := content[strings.Index(content, "const hostChannelPath"):]
	line = line[:strings.Index(line, "\n")]
	assert.Contains(t, line, "host")
	assert.NotContains(t, line, `""`)
}
