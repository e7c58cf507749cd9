// Package status holds the human-readable connection status shown to the
// user and fans updates out to every interested sink.
package status

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Style is the categorical style tag attached to a status text
type Style int

const (
	// StyleNeutral - idle or disconnected
	StyleNeutral Style = iota

	// StyleConnecting - handshake in progress
	StyleConnecting

	// StyleOK - connected or forwarding frames
	StyleOK

	// StyleError - the connection failed
	StyleError
)

// String returns the string representation of Style
func (s Style) String() string {
	switch s {
	case StyleConnecting:
		return "connecting"
	case StyleOK:
		return "ok"
	case StyleError:
		return "error"
	default:
		return "neutral"
	}
}

// ClassName returns the CSS class used by the host page
func (s Style) ClassName() string {
	switch s {
	case StyleOK:
		return "status-ok"
	case StyleError:
		return "status-error"
	case StyleConnecting:
		return "status-connecting"
	default:
		return ""
	}
}

// MarshalText lets styles appear by name in JSON
func (s Style) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a style name
func (s *Style) UnmarshalText(text []byte) error {
	switch string(text) {
	case "neutral", "":
		*s = StyleNeutral
	case "connecting":
		*s = StyleConnecting
	case "ok":
		*s = StyleOK
	case "error":
		*s = StyleError
	default:
		return fmt.Errorf("unknown status style %q", text)
	}
	return nil
}

// Status is one status update
type Status struct {
	Text      string    `json:"text"`
	Style     Style     `json:"style"`
	Frames    uint64    `json:"frames"`
	URL       string    `json:"url,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Idle is the status before any connection was requested
func Idle() Status {
	return Status{Text: "Not connected", Style: StyleNeutral, UpdatedAt: time.Now()}
}

// Connecting is reported when a connect is requested
func Connecting(url string) Status {
	return Status{Text: "Connecting...", Style: StyleConnecting, URL: url, UpdatedAt: time.Now()}
}

// Connected is reported once the handshake completes
func Connected(url string) Status {
	return Status{Text: "Connected!", Style: StyleOK, URL: url, UpdatedAt: time.Now()}
}

// Disconnected is reported when the connection is closed by either side
func Disconnected(url string) Status {
	return Status{Text: "Disconnected", Style: StyleNeutral, URL: url, UpdatedAt: time.Now()}
}

// FramesSent is reported after every forwarded frame
func FramesSent(url string, frames uint64) Status {
	return Status{
		Text:      fmt.Sprintf("%d frames sent", frames),
		Style:     StyleOK,
		Frames:    frames,
		URL:       url,
		UpdatedAt: time.Now(),
	}
}

// ConnectError is reported when the connection fails
func ConnectError(url string) Status {
	return Status{
		Text:      fmt.Sprintf("Error establishing connection to %s", url),
		Style:     StyleError,
		URL:       url,
		UpdatedAt: time.Now(),
	}
}

// Reporter receives status updates
type Reporter interface {
	Report(Status)
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func(Status)

// Report implements Reporter
func (f ReporterFunc) Report(s Status) { f(s) }

// Board keeps the latest status and forwards every update to its sinks.
// It is safe for concurrent use.
type Board struct {
	mu      sync.RWMutex
	current Status
	sinks   []Reporter
}

// NewBoard creates a board starting at the idle status
func NewBoard(sinks ...Reporter) *Board {
	return &Board{current: Idle(), sinks: sinks}
}

// Attach adds a sink
func (b *Board) Attach(sink Reporter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, sink)
}

// Report records s and forwards it to the sinks
func (b *Board) Report(s Status) {
	b.mu.Lock()
	b.current = s
	sinks := make([]Reporter, len(b.sinks))
	copy(sinks, b.sinks)
	b.mu.Unlock()

	for _, sink := range sinks {
		sink.Report(s)
	}
}

// Current returns the latest status
func (b *Board) Current() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}

// LogReporter writes status changes to a zerolog logger. Frame count
// updates are logged at debug level to keep the info stream readable.
type LogReporter struct {
	Logger zerolog.Logger
}

// Report implements Reporter
func (r LogReporter) Report(s Status) {
	var event *zerolog.Event
	switch {
	case s.Style == StyleError:
		event = r.Logger.Warn()
	case s.Frames > 0:
		event = r.Logger.Debug()
	default:
		event = r.Logger.Info()
	}

	event.
		Str("style", s.Style.String()).
		Str("url", s.URL).
		Uint64("frames", s.Frames).
		Msg(s.Text)
}
