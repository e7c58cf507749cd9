// Package bridge connects the host page to the outbound listener.
//
// A Controller owns at most one tracked session. Requests from the HTTP
// API, the CLI and the host channel, as well as callbacks from the
// transport, are turned into events and processed one at a time by Run,
// so the session itself needs no locking.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"led-bridge/internal/hostmsg"
	"led-bridge/internal/metrics"
	"led-bridge/internal/session"
	"led-bridge/internal/status"
	"led-bridge/pkg/pixel"
	"led-bridge/pkg/transport"
)

var (
	// ErrControllerStopped is returned by requests made after Run returned
	ErrControllerStopped = errors.New("bridge controller stopped")

	// ErrNoURL is returned by Connect when neither a URL nor a default is set
	ErrNoURL = errors.New("no listener URL given")
)

// HostPoster delivers a cross-window post to the host page
type HostPoster interface {
	PostMessage(targetOrigin string, data interface{}) error
}

// Options configures a Controller
type Options struct {
	Dialer   transport.Dialer
	Poster   HostPoster
	Reporter status.Reporter

	// TrustedOrigin receives the listen command after every successful
	// handshake. Defaults to hostmsg.TrustedOrigin.
	TrustedOrigin string

	// DefaultURL is used by Connect when called with an empty URL
	DefaultURL string

	// SendTimeout bounds a single frame send. Zero leaves it to the transport.
	SendTimeout time.Duration
}

// Snapshot is a point-in-time view of the tracked session. After a
// session ends it describes the last one.
type Snapshot struct {
	SessionID string        `json:"session_id,omitempty"`
	URL       string        `json:"url,omitempty"`
	State     session.State `json:"state"`
	Frames    uint64        `json:"frames"`
}

type event interface{}

type connectReq struct {
	url   string
	reply chan error
}

type disconnectReq struct {
	reply chan error
}

type frameReq struct {
	ctx   context.Context
	frame pixel.Frame
	reply chan error
}

type snapshotReq struct {
	reply chan Snapshot
}

type dialResult struct {
	gen  uint64
	conn transport.Conn
	err  error
}

type connEnded struct {
	gen uint64
	err error
}

// Controller is the single owner of the outbound connection
type Controller struct {
	opts Options

	events  chan event
	done    chan struct{}
	started atomic.Bool

	// Owned by the event loop
	runCtx     context.Context
	sess       *session.Session
	gen        uint64
	cancelDial context.CancelFunc
	last       Snapshot

	stateCode atomic.Int32
}

// New creates a controller. Run must be started before any request is
// served.
func New(opts Options) *Controller {
	if opts.TrustedOrigin == "" {
		opts.TrustedOrigin = hostmsg.TrustedOrigin
	}
	if opts.Reporter == nil {
		opts.Reporter = status.ReporterFunc(func(status.Status) {})
	}

	return &Controller{
		opts:   opts,
		events: make(chan event),
		done:   make(chan struct{}),
	}
}

// Run processes events until ctx is cancelled. The tracked connection, if
// any, is closed on return.
func (c *Controller) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("bridge controller already running")
	}
	c.runCtx = ctx

	defer close(c.done)
	defer c.teardown("shutdown")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-c.events:
			c.dispatch(ev)
		}
	}
}

// Connect starts a new session to url, replacing any tracked one. It
// returns once the attempt has started; the outcome is reported through
// the status reporter.
func (c *Controller) Connect(ctx context.Context, url string) error {
	if url == "" {
		url = c.opts.DefaultURL
	}
	if url == "" {
		return ErrNoURL
	}

	reply := make(chan error, 1)
	if err := c.submit(ctx, connectReq{url: url, reply: reply}); err != nil {
		return err
	}
	return c.await(ctx, reply)
}

// Disconnect closes the tracked session. It is a no-op when nothing is
// tracked.
func (c *Controller) Disconnect(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := c.submit(ctx, disconnectReq{reply: reply}); err != nil {
		return err
	}
	return c.await(ctx, reply)
}

// HandleFrame forwards one pixel frame when the session is open. Frames
// arriving at any other time are dropped without error.
func (c *Controller) HandleFrame(ctx context.Context, frame pixel.Frame) error {
	reply := make(chan error, 1)
	if err := c.submit(ctx, frameReq{ctx: ctx, frame: frame, reply: reply}); err != nil {
		return err
	}
	return c.await(ctx, reply)
}

// HandleHostMessage parses one message relayed by the host page and
// forwards the frame it carries. Messages without pixel data are ignored.
func (c *Controller) HandleHostMessage(ctx context.Context, data []byte) error {
	frame, ok, err := hostmsg.ParseMessage(data)
	if !ok {
		metrics.HostMessagesTotal.WithLabelValues("ignored").Inc()
		return nil
	}
	if err != nil {
		metrics.FramesDroppedTotal.WithLabelValues("undecodable").Inc()
		log.Debug().Err(err).Msg("Ignoring undecodable pixel frame")
		return nil
	}
	metrics.HostMessagesTotal.WithLabelValues("frame").Inc()
	return c.HandleFrame(ctx, frame)
}

// Snapshot returns the current session view
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if err := c.submit(ctx, snapshotReq{reply: reply}); err != nil {
		return Snapshot{}, err
	}

	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-c.done:
		return Snapshot{}, ErrControllerStopped
	}
}

// ConnectionStateCode returns the numeric session state for metrics
func (c *Controller) ConnectionStateCode() int {
	return int(c.stateCode.Load())
}

// HostAttached reports whether the poster has a page attached, when it
// can tell
func (c *Controller) HostAttached() bool {
	if p, ok := c.opts.Poster.(interface{ HostAttached() bool }); ok {
		return p.HostAttached()
	}
	return false
}

func (c *Controller) submit(ctx context.Context, ev event) error {
	select {
	case c.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrControllerStopped
	}
}

func (c *Controller) await(ctx context.Context, reply <-chan error) error {
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrControllerStopped
	}
}

// deliver hands a transport callback to the loop. Results arriving after
// shutdown are released here.
func (c *Controller) deliver(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
		if res, ok := ev.(dialResult); ok && res.conn != nil {
			_ = res.conn.Close()
		}
	}
}

func (c *Controller) dispatch(ev event) {
	switch ev := ev.(type) {
	case connectReq:
		c.handleConnect(ev.url)
		ev.reply <- nil
	case disconnectReq:
		c.handleDisconnect()
		ev.reply <- nil
	case frameReq:
		ev.reply <- c.handleFrame(ev.ctx, ev.frame)
	case snapshotReq:
		ev.reply <- c.snapshot()
	case dialResult:
		c.handleDialResult(ev)
	case connEnded:
		c.handleConnEnded(ev)
	}
}

func (c *Controller) logger() *zerolog.Logger {
	if c.sess == nil {
		return &log.Logger
	}
	logger := log.With().
		Str("session_id", c.sess.ID()).
		Str("url", c.sess.URL()).
		Logger()
	return &logger
}

func (c *Controller) handleConnect(url string) {
	if c.sess != nil {
		c.logger().Info().Msg("Replacing tracked session")
		c.teardown("superseded")
	}

	c.gen++
	gen := c.gen
	c.sess = session.New(url)
	c.syncState()

	logger := c.logger()
	logger.Info().Msg("Connecting to listener")
	c.opts.Reporter.Report(status.Connecting(url))

	dialCtx, cancel := context.WithCancel(c.runCtx)
	c.cancelDial = cancel

	go func() {
		conn, err := c.opts.Dialer.Dial(dialCtx, url)
		c.deliver(dialResult{gen: gen, conn: conn, err: err})
	}()
}

func (c *Controller) handleDialResult(ev dialResult) {
	if ev.gen != c.gen || c.sess == nil || c.sess.State() != session.StateConnecting {
		if ev.conn != nil {
			_ = ev.conn.Close()
		}
		return
	}

	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}

	logger := c.logger()
	url := c.sess.URL()

	if ev.err != nil {
		metrics.ConnectionAttemptsTotal.WithLabelValues("failed").Inc()
		logger.Warn().Err(ev.err).Msg("Failed to connect to listener")
		c.end(session.EventFailed, "connect_failed")
		c.opts.Reporter.Report(status.ConnectError(url))
		return
	}

	c.sess.Attach(ev.conn)
	if err := c.sess.Apply(session.EventOpened); err != nil {
		logger.Error().Err(err).Msg("Unexpected session state")
		_ = ev.conn.Close()
		return
	}
	c.syncState()
	metrics.ConnectionAttemptsTotal.WithLabelValues("success").Inc()
	logger.Info().Str("remote_addr", ev.conn.RemoteAddr()).Msg("Connected to listener")
	c.opts.Reporter.Report(status.Connected(url))

	if c.opts.Poster != nil {
		if err := c.opts.Poster.PostMessage(c.opts.TrustedOrigin, hostmsg.ListenCommand); err != nil {
			logger.Warn().Err(err).Msg("Failed to post listen command to host")
		}
	}

	gen := ev.gen
	conn := ev.conn
	go func() {
		c.deliver(connEnded{gen: gen, err: conn.Wait()})
	}()
}

func (c *Controller) handleConnEnded(ev connEnded) {
	if ev.gen != c.gen || c.sess == nil || c.sess.State() != session.StateOpen {
		return
	}

	logger := c.logger()
	url := c.sess.URL()

	if ev.err == nil || transport.IsPeerClose(ev.err) {
		logger.Info().Err(ev.err).Msg("Listener closed the connection")
		c.end(session.EventClosed, "peer_close")
	} else {
		logger.Warn().Err(ev.err).Msg("Connection to listener lost")
		c.end(session.EventFailed, "error")
	}
	c.opts.Reporter.Report(status.Disconnected(url))
}

func (c *Controller) handleDisconnect() {
	if c.sess == nil {
		return
	}
	url := c.sess.URL()
	c.logger().Info().Msg("Disconnecting from listener")
	c.teardown("local_close")
	c.opts.Reporter.Report(status.Disconnected(url))
}

func (c *Controller) handleFrame(ctx context.Context, frame pixel.Frame) error {
	if c.sess == nil || !c.sess.CanForward() {
		metrics.FramesDroppedTotal.WithLabelValues("not_open").Inc()
		return nil
	}

	wire := pixel.TranscodeFrame(frame)

	sendCtx := ctx
	if c.opts.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, c.opts.SendTimeout)
		defer cancel()
	}

	if err := c.sess.Conn().Send(sendCtx, wire); err != nil {
		metrics.FramesDroppedTotal.WithLabelValues("send_failed").Inc()
		c.logger().Warn().Err(err).Msg("Failed to send frame, dropping connection")
		url := c.sess.URL()
		_ = c.sess.Conn().Close()
		c.end(session.EventFailed, "send_failed")
		c.opts.Reporter.Report(status.Disconnected(url))
		return nil
	}

	n := c.sess.RecordFrame()
	metrics.FramesForwardedTotal.Inc()
	metrics.WireBytesTotal.Add(float64(len(wire)))
	metrics.FramePixels.Observe(float64(pixel.Len(frame)))
	c.opts.Reporter.Report(status.FramesSent(c.sess.URL(), n))
	return nil
}

// teardown closes the tracked session without reporting a status
func (c *Controller) teardown(reason string) {
	if c.sess == nil {
		return
	}
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	if conn := c.sess.Conn(); conn != nil {
		if err := conn.Close(); err != nil {
			c.logger().Debug().Err(err).Msg("Error closing listener connection")
		}
	}
	c.end(session.EventClosed, reason)
}

// end applies the final event and stops tracking the session
func (c *Controller) end(ev session.Event, reason string) {
	if err := c.sess.Apply(ev); err != nil {
		c.logger().Debug().Err(err).Msg("Ignoring transition")
	}
	if c.sess.Conn() != nil {
		metrics.ConnectionsEndedTotal.WithLabelValues(reason).Inc()
	}
	c.last = c.snapshot()
	c.sess = nil
	c.stateCode.Store(int32(c.last.State))
}

func (c *Controller) syncState() {
	c.stateCode.Store(int32(c.sess.State()))
}

func (c *Controller) snapshot() Snapshot {
	if c.sess == nil {
		return c.last
	}
	return Snapshot{
		SessionID: c.sess.ID(),
		URL:       c.sess.URL(),
		State:     c.sess.State(),
		Frames:    c.sess.Frames(),
	}
}
