// Package server exposes the host page, the host channel and a small JSON
// API for driving the bridge over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"led-bridge/internal/bridge"
	"led-bridge/internal/metrics"
	"led-bridge/internal/status"
	"led-bridge/internal/webui"
)

// Bridge is the part of the controller the API drives
type Bridge interface {
	Connect(ctx context.Context, url string) error
	Disconnect(ctx context.Context) error
	Snapshot(ctx context.Context) (bridge.Snapshot, error)
}

// StatusSource provides the latest status
type StatusSource interface {
	Current() status.Status
}

// Options configures the HTTP server
type Options struct {
	ListenAddress string

	// DefaultURL pre-populates the page when no ?url= is given
	DefaultURL string

	MetricsEnabled bool
	MetricsPath    string

	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
}

// Server serves the bridge over HTTP/1.1 and cleartext HTTP/2
type Server struct {
	opts       Options
	bridge     Bridge
	hostWS     http.Handler
	status     StatusSource
	router     *mux.Router
	httpServer *http.Server
	listener   net.Listener
}

// New creates a server. hostWS serves the host channel WebSocket.
func New(opts Options, b Bridge, hostWS http.Handler, st StatusSource) *Server {
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	if opts.ReadHeaderTimeout == 0 {
		opts.ReadHeaderTimeout = 15 * time.Second
	}

	s := &Server{
		opts:   opts,
		bridge: b,
		hostWS: hostWS,
		status: st,
		router: mux.NewRouter(),
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              opts.ListenAddress,
		Handler:           h2c.NewHandler(s.router, &http2.Server{}),
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
		IdleTimeout:       opts.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(metrics.HTTPMiddleware(metrics.HTTPRequestsTotal, metrics.HTTPRequestDuration))

	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
	s.router.Handle(webui.DefaultHostChannelPath, s.hostWS).Methods("GET")

	s.router.HandleFunc("/api/connect", s.handleConnect).Methods("POST")
	s.router.HandleFunc("/api/disconnect", s.handleDisconnect).Methods("POST")
	s.router.HandleFunc("/api/status", s.handleStatus).Methods("GET")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	if s.opts.MetricsEnabled {
		s.router.Handle(s.opts.MetricsPath, promhttp.Handler()).Methods("GET")
	}
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start binds the listen address and serves in the background
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.ListenAddress, err)
	}
	s.listener = listener

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	log.Info().Str("address", s.Addr()).Msg("HTTP server started")
	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.opts.ListenAddress
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		url = s.opts.DefaultURL
	}

	page, err := webui.RenderIndex(webui.NewPageData(url, s.status.Current()))
	if err != nil {
		log.Error().Err(err).Msg("Failed to render host page")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.Copy(w, page)
}

type connectRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	}

	if err := s.bridge.Connect(r.Context(), req.URL); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	url := req.URL
	if url == "" {
		url = s.opts.DefaultURL
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "connecting",
		"url":    url,
	})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.bridge.Disconnect(r.Context()); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "disconnected"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.bridge.Snapshot(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  s.status.Current(),
		"session": snap,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap, err := s.bridge.Snapshot(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"state":  snap.State,
	})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, bridge.ErrNoURL):
		return http.StatusBadRequest
	case errors.Is(err, bridge.ErrControllerStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]interface{}{"error": message})
}
