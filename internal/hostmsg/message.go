// Package hostmsg carries cross-window messages between the bridge and the
// host page that embeds the simulator.
//
// The host page connects to the bridge over a local WebSocket. Window
// messages the page receives are relayed to the bridge as JSON text; posts
// the bridge wants to make to the parent window travel back as envelopes.
package hostmsg

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"led-bridge/internal/status"
	"led-bridge/pkg/pixel"
)

// TrustedOrigin is the only origin the bridge posts commands to by default
const TrustedOrigin = "https://wokwi.com"

var (
	// ErrUntrustedOrigin is returned when a post targets an origin other
	// than the configured one
	ErrUntrustedOrigin = errors.New("untrusted target origin")

	// ErrNoHost is returned when no host page is attached
	ErrNoHost = errors.New("no host page attached")
)

// Command is a control message posted to the parent window
type Command struct {
	App     string `json:"app"`
	Command string `json:"command"`
	Version int    `json:"version"`
}

// ListenCommand asks the simulator to start streaming pixel frames
var ListenCommand = Command{App: "wokwi", Command: "listen", Version: 1}

// Envelope types
const (
	EnvelopePost   = "post"
	EnvelopeStatus = "status"
)

// Envelope is a message from the bridge to the host page
type Envelope struct {
	Type         string         `json:"type"`
	TargetOrigin string         `json:"targetOrigin,omitempty"`
	Data         interface{}    `json:"data,omitempty"`
	Status       *StatusPayload `json:"status,omitempty"`
}

// StatusPayload is the status as rendered by the page
type StatusPayload struct {
	Text      string `json:"text"`
	Style     string `json:"style"`
	ClassName string `json:"className"`
	Frames    uint64 `json:"frames"`
}

// NewStatusEnvelope wraps a status update for the page
func NewStatusEnvelope(s status.Status) Envelope {
	return Envelope{
		Type: EnvelopeStatus,
		Status: &StatusPayload{
			Text:      s.Text,
			Style:     s.Style.String(),
			ClassName: s.Style.ClassName(),
			Frames:    s.Frames,
		},
	}
}

// inbound is the subset of a window message the bridge looks at
type inbound struct {
	Neopixels json.RawMessage `json:"neopixels"`
}

// ParseMessage inspects one relayed window message. It reports ok=false
// for anything that does not carry a non-null neopixels field, including
// payloads that are not JSON objects. An error is returned only when the
// neopixels field is present but cannot be decoded into a frame.
func ParseMessage(data []byte) (frame pixel.Frame, ok bool, err error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false, nil
	}

	var msg inbound
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return nil, false, nil
	}

	raw := bytes.TrimSpace(msg.Neopixels)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false, nil
	}

	frame, err = pixel.DecodeFrame(raw)
	if err != nil {
		return nil, true, fmt.Errorf("decode neopixels: %w", err)
	}
	return frame, true, nil
}
