// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package transport provides duplex carriers for JSON-RPC payloads.
//
// Every transport reports its lifecycle through events: EventOpen,
// EventClose, EventError (data: error) and EventPayload (data:
// jsonrpc.Payload). Send never waits for a response; responses arrive as
// payload events.
package transport

import (
	"context"
	"fmt"

	"github.com/inconshreveable/log15"
	"github.com/pagewallet/pagewallet/event"
	"github.com/pkg/errors"
)

var log = log15.New("pkg", "transport")

// Event names.
const (
	EventOpen    = "open"
	EventClose   = "close"
	EventError   = "error"
	EventPayload = "payload"
)

var (
	// ErrAlreadyDisconnected is returned when closing an HTTP or WS
	// transport that is not connected.
	ErrAlreadyDisconnected = errors.New("already disconnected")
	// ErrDisconnected is returned when using a transport whose underlying
	// stream is gone for good.
	ErrDisconnected = errors.New("transport disconnected")
)

// Transport is a duplex carrier of JSON-RPC payloads.
type Transport interface {
	// Open connects the transport. Concurrent calls share one attempt.
	Open(ctx context.Context) error
	Close() error
	// Send opens the transport if needed and delivers payload. payload may
	// be raw JSON ([]byte, json.RawMessage) or any value json can encode.
	Send(ctx context.Context, payload interface{}) error
	Connected() bool

	On(name string, l event.Listener) *event.Subscription
	Once(name string, l event.Listener) *event.Subscription
	Off(sub *event.Subscription)
}

// UnavailableError reports an endpoint that could not be reached on open.
type UnavailableError struct {
	Kind  string // HTTP or WS
	URL   string
	cause error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("Unavailable %s RPC url at %s", e.Kind, e.URL)
}

// Cause returns the underlying dial error.
func (e *UnavailableError) Cause() error { return e.cause }

// Unwrap returns the underlying dial error.
func (e *UnavailableError) Unwrap() error { return e.cause }
