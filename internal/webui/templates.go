package webui

import (
	"bytes"
	"io"

	"led-bridge/internal/status"
)

// DefaultHostChannelPath is where the page opens its host channel socket
const DefaultHostChannelPath = "/host/ws"

// PageData is the data rendered into the host page
type PageData struct {
	Title string

	// URL pre-populates the listener field. It is not validated.
	URL string

	// HostChannelPath is the path of the host channel WebSocket
	HostChannelPath string

	InitialStatus string
	InitialClass  string
}

// NewPageData builds page data for url showing the given status
func NewPageData(url string, s status.Status) PageData {
	return PageData{
		Title:           "LED WebSocket Bridge",
		URL:             url,
		HostChannelPath: DefaultHostChannelPath,
		InitialStatus:   s.Text,
		InitialClass:    s.Style.ClassName(),
	}
}

// RenderIndex renders the host page
func RenderIndex(data PageData) (io.Reader, error) {
	if data.HostChannelPath == "" {
		data.HostChannelPath = DefaultHostChannelPath
	}

	var buf bytes.Buffer
	err := templates.ExecuteTemplate(&buf, "index.html", data)
	if err != nil {
		return nil, err
	}
	return &buf, nil
}
