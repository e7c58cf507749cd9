package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bridge metrics collectors
var (
	// Outbound connection

	ConnectionAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledbridge_connection_attempts_total",
			Help: "Total number of outbound connection attempts by result",
		},
		[]string{"result"},
	)

	ConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledbridge_connection_state",
			Help: "Outbound connection state (0=idle, 1=connecting, 2=open, 3=closed, 4=errored)",
		},
	)

	ConnectionsEndedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledbridge_connections_ended_total",
			Help: "Total number of outbound connections that ended, by reason",
		},
		[]string{"reason"},
	)

	// Frames

	FramesForwardedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledbridge_frames_forwarded_total",
			Help: "Total number of wire frames sent to the listener",
		},
	)

	FramesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledbridge_frames_dropped_total",
			Help: "Total number of pixel frames dropped, by reason",
		},
		[]string{"reason"},
	)

	WireBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledbridge_wire_bytes_total",
			Help: "Total number of wire frame bytes sent",
		},
	)

	FramePixels = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledbridge_frame_pixels",
			Help:    "Pixels per forwarded frame",
			Buckets: []float64{1, 8, 16, 32, 64, 128, 256, 512, 1024, 4096},
		},
	)

	// Host channel

	HostConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledbridge_host_connected",
			Help: "Host page channel status (0=detached, 1=attached)",
		},
	)

	HostMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledbridge_host_messages_total",
			Help: "Total number of messages received from the host page, by kind",
		},
		[]string{"kind"},
	)

	HostPostsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledbridge_host_posts_total",
			Help: "Total number of cross-window posts requested, by result",
		},
		[]string{"result"},
	)

	// HTTP

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledbridge_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledbridge_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)
