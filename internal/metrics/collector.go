package metrics

import (
	"context"
	"time"
)

// BridgeState provides access to bridge state for metrics collection
type BridgeState interface {
	// ConnectionStateCode returns the numeric outbound connection state
	ConnectionStateCode() int

	// HostAttached reports whether a host page is on the channel
	HostAttached() bool
}

// Collector periodically updates gauge metrics from bridge state
type Collector struct {
	state    BridgeState
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(state BridgeState, interval time.Duration) *Collector {
	if interval == 0 {
		interval = 5 * time.Second
	}

	return &Collector{
		state:    state,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs until ctx is cancelled or Stop is called
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Collect()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.Collect()
		}
	}
}

// Stop stops the metrics collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

// Collect updates all gauges once
func (c *Collector) Collect() {
	ConnectionState.Set(float64(c.state.ConnectionStateCode()))

	attached := 0.0
	if c.state.HostAttached() {
		attached = 1.0
	}
	HostConnected.Set(attached)
}
