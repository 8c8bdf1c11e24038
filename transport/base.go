// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package transport

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pagewallet/pagewallet/event"
	"github.com/pagewallet/pagewallet/jsonrpc"
	"github.com/pagewallet/pagewallet/metrics"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// base carries the state and event plumbing shared by all transports.
type base struct {
	kind   string
	events event.Emitter
	opens  singleflight.Group

	mu        sync.Mutex
	connected bool
}

func (b *base) On(name string, l event.Listener) *event.Subscription {
	return b.events.On(name, l)
}

func (b *base) Once(name string, l event.Listener) *event.Subscription {
	return b.events.Once(name, l)
}

func (b *base) Off(sub *event.Subscription) {
	b.events.Off(sub)
}

func (b *base) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// setConnected stores v and reports whether it changed.
func (b *base) setConnected(v bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.connected == v {
		return false
	}
	b.connected = v
	return true
}

func (b *base) emit(name string, data interface{}) {
	metrics.TransportEvents.WithLabelValues(b.kind, name).Inc()
	b.events.Emit(name, data)
}

// open runs dial at most once at a time. Callers arriving while a dial is
// pending wait for the same outcome; each caller stops waiting when its own
// ctx is done, without aborting the shared dial.
func (b *base) open(ctx context.Context, dial func(ctx context.Context) error) error {
	if b.Connected() {
		return nil
	}
	ch := b.opens.DoChan("open", func() (interface{}, error) {
		if b.Connected() {
			return nil, nil
		}
		if err := dial(context.WithoutCancel(ctx)); err != nil {
			return nil, err
		}
		if b.setConnected(true) {
			b.emit(EventOpen, nil)
		}
		return nil, nil
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// onClose marks the transport closed and emits EventClose once.
func (b *base) onClose() bool {
	if !b.setConnected(false) {
		return false
	}
	b.emit(EventClose, nil)
	return true
}

func (b *base) emitError(err error) {
	b.emit(EventError, err)
}

// emitPayloads decodes a single envelope or a batch and emits each element.
func (b *base) emitPayloads(data []byte) error {
	payloads, err := jsonrpc.ParsePayloads(data)
	if err != nil {
		log.Debug("undecodable payload", "transport", b.kind, "err", err)
		b.emitError(err)
		return err
	}
	for _, p := range payloads {
		b.emit(EventPayload, p)
	}
	return nil
}

// emitFailure answers every request in body with an error response built
// from cause, so that callers waiting on those ids are released.
func (b *base) emitFailure(body []byte, cause error) {
	payloads, err := jsonrpc.ParsePayloads(body)
	if err != nil {
		b.emitError(cause)
		return
	}
	for _, p := range payloads {
		if !p.Has("id") {
			continue
		}
		resp, err := jsonrpc.FormatError(p.ID(), cause.Error())
		if err != nil {
			b.emitError(err)
			continue
		}
		rp, err := jsonrpc.NewPayload(resp)
		if err != nil {
			b.emitError(err)
			continue
		}
		b.emit(EventPayload, rp)
	}
}

func encode(payload interface{}) ([]byte, error) {
	switch p := payload.(type) {
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encode payload")
	}
	return data, nil
}
