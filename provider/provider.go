// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package provider correlates JSON-RPC requests with their responses over a
// single transport and tracks the connection lifecycle.
package provider

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/inconshreveable/log15"
	"github.com/pagewallet/pagewallet/event"
	"github.com/pagewallet/pagewallet/jsonrpc"
	"github.com/pagewallet/pagewallet/metrics"
	"github.com/pagewallet/pagewallet/transport"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

var log = log15.New("pkg", "provider")

// Event names.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
	EventError      = "error"
	EventMessage    = "message"
	EventPayload    = "payload"
)

var (
	// ErrDuplicateID is returned when a caller-supplied id is already
	// awaiting a response.
	ErrDuplicateID = errors.New("duplicate request id")
	// ErrDisconnected fails pending requests under RejectOnClose.
	ErrDisconnected = errors.New("provider disconnected")
)

// Message carries a payload that is not a response, such as a pushed event.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ClosePolicy decides what happens to pending requests when the transport
// closes.
type ClosePolicy int

const (
	// LeavePending keeps waiting; a response may still arrive after a
	// reconnect, otherwise the caller's context ends the wait.
	LeavePending ClosePolicy = iota
	// RejectOnClose fails every pending request with ErrDisconnected.
	RejectOnClose
)

// Option configures a Provider.
type Option func(*Provider)

// WithClosePolicy sets the close policy. The default is LeavePending.
func WithClosePolicy(policy ClosePolicy) Option {
	return func(p *Provider) {
		p.policy = policy
	}
}

type result struct {
	raw json.RawMessage
	err error
}

// Provider issues requests over one transport.
type Provider struct {
	transport transport.Transport
	policy    ClosePolicy
	events    event.Emitter
	connects  singleflight.Group

	mu      sync.Mutex
	state   State
	pending map[string]chan result
	subs    []*event.Subscription
}

// New creates a provider bound to t. It does not connect.
func New(t transport.Transport, opts ...Option) *Provider {
	p := &Provider{
		transport: t,
		pending:   make(map[string]chan result),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.subs = []*event.Subscription{
		t.On(transport.EventPayload, p.onPayload),
		t.On(transport.EventClose, p.onClose),
		t.On(transport.EventError, p.onError),
	}
	return p
}

// Transport returns the underlying transport.
func (p *Provider) Transport() transport.Transport {
	return p.transport
}

func (p *Provider) On(name string, l event.Listener) *event.Subscription {
	return p.events.On(name, l)
}

func (p *Provider) Once(name string, l event.Listener) *event.Subscription {
	return p.events.Once(name, l)
}

func (p *Provider) Off(sub *event.Subscription) {
	p.events.Off(sub)
}

// State returns the lifecycle state.
func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Connected reports whether the state is Connected.
func (p *Provider) Connected() bool {
	return p.State() == Connected
}

// Connecting reports whether a connect is in flight.
func (p *Provider) Connecting() bool {
	return p.State() == Connecting
}

// Pending returns the number of requests awaiting a response.
func (p *Provider) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Connect opens the transport. Concurrent calls share one attempt; each
// caller stops waiting when its ctx is done.
func (p *Provider) Connect(ctx context.Context) error {
	if p.Connected() {
		return nil
	}
	ch := p.connects.DoChan("connect", func() (interface{}, error) {
		if p.Connected() {
			return nil, nil
		}
		p.setState(Connecting)
		if err := p.transport.Open(context.WithoutCancel(ctx)); err != nil {
			p.setState(Disconnected)
			return nil, err
		}
		p.setState(Connected)
		p.events.Emit(EventConnect, nil)
		return nil, nil
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect closes the transport. The error of the transport's Close is
// returned as is.
func (p *Provider) Disconnect() error {
	err := p.transport.Close()
	p.markDisconnected()
	return err
}

// Detach stops listening to the transport.
func (p *Provider) Detach() {
	p.mu.Lock()
	subs := p.subs
	p.subs = nil
	p.mu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// RequestOption configures a single request.
type RequestOption func(*jsonrpc.Request, *bool)

// WithID uses id instead of a generated one.
func WithID(id int64) RequestOption {
	return func(r *jsonrpc.Request, explicit *bool) {
		r.ID = id
		*explicit = true
	}
}

// Request sends method with params and waits for the matching response.
// An error response is returned as *jsonrpc.Error. There is no built-in
// timeout: ctx is the only way to stop waiting.
func (p *Provider) Request(ctx context.Context, method string, params []interface{}, opts ...RequestOption) (json.RawMessage, error) {
	raw, err := p.request(ctx, method, params, opts...)
	metrics.RequestsTotal.WithLabelValues(outcome(err)).Inc()
	return raw, err
}

func (p *Provider) request(ctx context.Context, method string, params []interface{}, opts ...RequestOption) (json.RawMessage, error) {
	req := jsonrpc.FormatRequest(method, params)
	var explicit bool
	for _, opt := range opts {
		opt(&req, &explicit)
	}

	if err := p.Connect(ctx); err != nil {
		return nil, err
	}

	ch, err := p.register(&req, explicit)
	if err != nil {
		return nil, err
	}
	key := req.Key()
	defer p.release(key, ch)

	log.Debug("request", "id", req.ID, "method", method)
	if err := p.transport.Send(ctx, req); err != nil {
		return nil, err
	}

	select {
	case r := <-ch:
		return r.raw, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Call is Request followed by decoding the result into out. out may be nil.
func (p *Provider) Call(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	raw, err := p.Request(ctx, method, params)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return errors.Wrap(json.Unmarshal(raw, out), "decode result")
}

// register adds a waiter for req. A generated id that collides is
// regenerated; a caller-supplied one fails with ErrDuplicateID.
func (p *Provider) register(req *jsonrpc.Request, explicit bool) (chan result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if _, dup := p.pending[req.Key()]; !dup {
			break
		}
		if explicit {
			return nil, errors.Wrapf(ErrDuplicateID, "id %d", req.ID)
		}
		req.ID = jsonrpc.NextID()
	}
	ch := make(chan result, 1)
	p.pending[req.Key()] = ch
	metrics.PendingRequests.Inc()
	return ch, nil
}

func (p *Provider) release(key string, ch chan result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.pending[key]; ok && cur == ch {
		delete(p.pending, key)
		metrics.PendingRequests.Dec()
	}
}

func (p *Provider) onPayload(data interface{}) {
	payload, ok := data.(jsonrpc.Payload)
	if !ok {
		return
	}
	p.events.Emit(EventPayload, payload)

	if jsonrpc.IsResponse(payload) {
		key := payload.Key()
		p.mu.Lock()
		ch, ok := p.pending[key]
		if ok {
			delete(p.pending, key)
			metrics.PendingRequests.Dec()
		}
		p.mu.Unlock()

		if !ok {
			log.Debug("response without waiter", "id", key)
			return
		}
		if jsonrpc.IsError(payload) {
			ch <- result{err: payload.RPCError()}
		} else {
			ch <- result{raw: payload.Result()}
		}
		return
	}

	if method := payload.Method(); method != "" {
		p.events.Emit(EventMessage, Message{Type: method, Data: payload.Params()})
	}
}

func (p *Provider) onClose(interface{}) {
	p.markDisconnected()
}

func (p *Provider) onError(data interface{}) {
	err, _ := data.(error)
	log.Debug("transport error", "err", err)
	p.events.Emit(EventError, err)
}

// markDisconnected moves to Disconnected and emits EventDisconnect when the
// provider was connected.
func (p *Provider) markDisconnected() {
	p.mu.Lock()
	prev := p.state
	if prev == Connecting {
		// the pending connect settles the state
		p.mu.Unlock()
		return
	}
	p.state = Disconnected
	var rejected []chan result
	if p.policy == RejectOnClose {
		for key, ch := range p.pending {
			rejected = append(rejected, ch)
			delete(p.pending, key)
			metrics.PendingRequests.Dec()
		}
	}
	p.mu.Unlock()

	for _, ch := range rejected {
		ch <- result{err: ErrDisconnected}
	}
	if prev == Connected {
		p.events.Emit(EventDisconnect, nil)
	}
}

func (p *Provider) setState(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var rpcErr *jsonrpc.Error
	switch {
	case errors.As(err, &rpcErr):
		return "rpc_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "error"
}
