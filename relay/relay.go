// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package relay bridges a page-side pipe and a host-side port. Only requests
// travel towards the host and only responses and chain-state events travel
// back towards the page.
package relay

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/inconshreveable/log15"
	"github.com/pagewallet/pagewallet/event"
	"github.com/pagewallet/pagewallet/jsonrpc"
	"github.com/pagewallet/pagewallet/metrics"
	"github.com/pagewallet/pagewallet/transport"
	"github.com/pborman/uuid"
)

var log = log15.New("pkg", "relay")

const (
	toPort = "page_to_port"
	toPage = "port_to_page"
)

// DefaultEvents are the notification methods forwarded to the page.
var DefaultEvents = []string{"chainChanged", "accountsChanged", "connect", "disconnect", "message"}

// ChannelName returns the pipe channel of the relay with the given id.
func ChannelName(id string) string {
	return "pagewallet:" + id
}

// Stats counts relayed payloads.
type Stats struct {
	ToPort  uint64 `json:"toPort"`
	ToPage  uint64 `json:"toPage"`
	Dropped uint64 `json:"dropped"`
}

// Relay forwards payloads between one pipe and one port.
type Relay struct {
	id     string
	pipe   *transport.Pipe
	port   transport.Transport
	events map[string]bool

	toPort  uint64
	toPage  uint64
	dropped uint64

	mu     sync.Mutex
	subs   []*event.Subscription
	closed bool
}

// Option configures a Relay.
type Option func(*relayConfig)

type relayConfig struct {
	bus    *transport.Bus
	events []string
}

// WithBus joins the relay pipe to bus instead of transport.DefaultBus.
func WithBus(bus *transport.Bus) Option {
	return func(c *relayConfig) {
		c.bus = bus
	}
}

// WithEvents replaces the set of forwarded notification methods.
func WithEvents(names ...string) Option {
	return func(c *relayConfig) {
		c.events = names
	}
}

// New starts a relay for port on a freshly named pipe channel. Pages join
// the channel returned by Channel.
func New(port transport.Transport, opts ...Option) *Relay {
	cfg := relayConfig{bus: transport.DefaultBus, events: DefaultEvents}
	for _, opt := range opts {
		opt(&cfg)
	}

	id := uuid.New()
	r := &Relay{
		id:     id,
		pipe:   transport.NewPipe(ChannelName(id), transport.WithBus(cfg.bus)),
		port:   port,
		events: make(map[string]bool, len(cfg.events)),
	}
	for _, name := range cfg.events {
		r.events[name] = true
	}
	r.mu.Lock()
	r.subs = []*event.Subscription{
		r.pipe.On(transport.EventPayload, r.fromPage),
		port.On(transport.EventPayload, r.fromPort),
		port.On(transport.EventClose, func(interface{}) { _ = r.Close() }),
	}
	r.mu.Unlock()
	log.Debug("relay started", "id", id)
	return r
}

// ID returns the per-instance identifier.
func (r *Relay) ID() string { return r.id }

// Channel returns the pipe channel name pages must join.
func (r *Relay) Channel() string { return r.pipe.Name() }

// Stats returns a snapshot of the counters.
func (r *Relay) Stats() Stats {
	return Stats{
		ToPort:  atomic.LoadUint64(&r.toPort),
		ToPage:  atomic.LoadUint64(&r.toPage),
		Dropped: atomic.LoadUint64(&r.dropped),
	}
}

// Close stops forwarding and leaves the pipe channel. The port is left
// open.
func (r *Relay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	log.Debug("relay closed", "id", r.id)
	return r.pipe.Close()
}

func (r *Relay) fromPage(data interface{}) {
	p, ok := data.(jsonrpc.Payload)
	if !ok || !jsonrpc.IsRequest(p) {
		r.drop(toPort, p)
		return
	}
	if err := r.port.Send(context.Background(), p); err != nil {
		log.Error("forward to port failed", "id", r.id, "err", err)
		atomic.AddUint64(&r.dropped, 1)
		metrics.RelayPayloads.WithLabelValues(toPort, "failed").Inc()
		return
	}
	atomic.AddUint64(&r.toPort, 1)
	metrics.RelayPayloads.WithLabelValues(toPort, "forwarded").Inc()
}

func (r *Relay) fromPort(data interface{}) {
	p, ok := data.(jsonrpc.Payload)
	if !ok || !(jsonrpc.IsResponse(p) || r.isEvent(p)) {
		r.drop(toPage, p)
		return
	}
	if err := r.pipe.Send(context.Background(), p); err != nil {
		log.Error("forward to page failed", "id", r.id, "err", err)
		atomic.AddUint64(&r.dropped, 1)
		metrics.RelayPayloads.WithLabelValues(toPage, "failed").Inc()
		return
	}
	atomic.AddUint64(&r.toPage, 1)
	metrics.RelayPayloads.WithLabelValues(toPage, "forwarded").Inc()
}

func (r *Relay) isEvent(p jsonrpc.Payload) bool {
	return jsonrpc.IsNotification(p) && r.events[p.Method()]
}

// drop records a payload that may not travel in direction.
func (r *Relay) drop(direction string, p jsonrpc.Payload) {
	atomic.AddUint64(&r.dropped, 1)
	metrics.RelayPayloads.WithLabelValues(direction, "dropped").Inc()
	log.Warn("dropping payload", "id", r.id, "direction", direction, "method", p.Method(), "hasId", p.Has("id"))
}
