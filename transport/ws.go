// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package transport

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const closeWriteTimeout = time.Second

// WS keeps one persistent websocket and exchanges one payload per text frame.
type WS struct {
	base
	url    string
	dialer *websocket.Dialer
	header http.Header

	connMu sync.Mutex
	conn   *websocket.Conn

	writeMu sync.Mutex
}

// WSOption configures a WS transport.
type WSOption func(*WS)

// WithDialer sets the dialer. It is copied on every dial.
func WithDialer(d *websocket.Dialer) WSOption {
	return func(t *WS) {
		t.dialer = d
	}
}

// WithWSHeader sets the handshake request header, e.g. Origin.
func WithWSHeader(h http.Header) WSOption {
	return func(t *WS) {
		t.header = h
	}
}

// NewWS creates a websocket transport for url (ws:// or wss://).
func NewWS(url string, opts ...WSOption) *WS {
	t := &WS{
		base:   base{kind: "ws"},
		url:    url,
		dialer: websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// URL returns the endpoint.
func (t *WS) URL() string { return t.url }

// Open dials the socket. Dial failures yield an *UnavailableError.
func (t *WS) Open(ctx context.Context) error {
	return t.open(ctx, t.dial)
}

func (t *WS) dial(ctx context.Context) error {
	dialer := *t.dialer
	if isLocalhost(t.url) {
		// local nodes commonly run with self-signed certificates
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
	}
	conn, _, err := dialer.DialContext(ctx, t.url, t.header)
	if err != nil {
		log.Debug("dial failed", "url", t.url, "err", err)
		return &UnavailableError{Kind: "WS", URL: t.url, cause: err}
	}

	t.connMu.Lock()
	t.conn = conn
	t.connMu.Unlock()

	go t.readLoop(conn)
	return nil
}

func (t *WS) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.connMu.Lock()
			own := t.conn == conn
			if own {
				t.conn = nil
			}
			t.connMu.Unlock()

			// a nil conn means Close already took care of it
			if own {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Debug("read failed", "url", t.url, "err", err)
					t.emitError(err)
				}
				conn.Close()
				t.onClose()
			}
			return
		}
		_ = t.emitPayloads(data)
	}
}

// Close sends a close frame and drops the socket. Closing twice returns
// ErrAlreadyDisconnected.
func (t *WS) Close() error {
	t.connMu.Lock()
	conn := t.conn
	t.conn = nil
	t.connMu.Unlock()

	if conn == nil {
		// a connection that already dropped still owes its close event
		if !t.onClose() {
			return ErrAlreadyDisconnected
		}
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
	conn.Close()
	t.onClose()
	return nil
}

// Send writes payload as one text frame. A failed write is reported as an
// error response for each request in payload.
func (t *WS) Send(ctx context.Context, payload interface{}) error {
	if err := t.Open(ctx); err != nil {
		return err
	}
	data, err := encode(payload)
	if err != nil {
		return err
	}

	t.connMu.Lock()
	conn := t.conn
	t.connMu.Unlock()
	if conn == nil {
		t.emitFailure(data, ErrDisconnected)
		return nil
	}

	t.writeMu.Lock()
	deadline, _ := ctx.Deadline()
	_ = conn.SetWriteDeadline(deadline)
	err = conn.WriteMessage(websocket.TextMessage, data)
	t.writeMu.Unlock()

	if err != nil {
		log.Debug("write failed", "url", t.url, "err", err)
		t.emitFailure(data, err)
	}
	return nil
}

func isLocalhost(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
