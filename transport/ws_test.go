// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/pagewallet/pagewallet/jsonrpc"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

// newWSServer answers requests and closes the socket on method "bye".
func newWSServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			p, err := jsonrpc.ParsePayload(data)
			if err != nil {
				continue
			}
			if p.Method() == "bye" {
				return
			}
			out, _ := json.Marshal(answer(p))
			if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
				return
			}
		}
	}))
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestWSSend(t *testing.T) {
	ts := newWSServer()
	defer ts.Close()

	tr := NewWS(wsURL(ts))
	opens := collect(tr, EventOpen)
	payloads := collect(tr, EventPayload)

	req := jsonrpc.FormatRequest("eth_chainId", nil)
	require.NoError(t, tr.Send(context.Background(), req))
	recv(t, opens)
	assert.True(t, tr.Connected())

	p := recvPayload(t, payloads)
	assert.Equal(t, req.Key(), p.Key())
	assert.JSONEq(t, `"eth_chainId"`, string(p.Result()))

	raw := json.RawMessage(`{"id":5,"jsonrpc":"2.0","method":"eth_accounts","params":[]}`)
	require.NoError(t, tr.Send(context.Background(), raw))
	assert.Equal(t, "5", recvPayload(t, payloads).Key())
}

func TestWSUnavailable(t *testing.T) {
	ts := newWSServer()
	url := wsURL(ts)
	ts.Close()

	tr := NewWS(url)
	err := tr.Open(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Unavailable WS RPC url at "+url, err.Error())

	var unavailable *UnavailableError
	assert.True(t, errors.As(err, &unavailable))
	assert.False(t, tr.Connected())
}

func TestWSServerClose(t *testing.T) {
	ts := newWSServer()
	defer ts.Close()

	tr := NewWS(wsURL(ts))
	closes := collect(tr, EventClose)

	require.NoError(t, tr.Send(context.Background(), jsonrpc.FormatRequest("bye", nil)))
	recv(t, closes)
	assert.False(t, tr.Connected())
	assert.Equal(t, ErrAlreadyDisconnected, tr.Close())

	// a later send reconnects
	payloads := collect(tr, EventPayload)
	require.NoError(t, tr.Send(context.Background(), jsonrpc.FormatRequest("eth_chainId", nil, 3)))
	assert.Equal(t, "3", recvPayload(t, payloads).Key())
}

func TestWSDoubleClose(t *testing.T) {
	ts := newWSServer()
	defer ts.Close()

	tr := NewWS(wsURL(ts))
	closes := collect(tr, EventClose)
	errs := collect(tr, EventError)

	require.NoError(t, tr.Open(context.Background()))
	require.NoError(t, tr.Close())
	recv(t, closes)
	assert.Equal(t, ErrAlreadyDisconnected, tr.Close())
	assert.Len(t, closes, 0)
	assert.Len(t, errs, 0)
}

func TestWSCloseAfterConnectionDropped(t *testing.T) {
	tr := NewWS("ws://localhost:1")
	closes := collect(tr, EventClose)
	tr.setConnected(true)

	require.NoError(t, tr.Close())
	recv(t, closes)
	assert.False(t, tr.Connected())
	assert.Equal(t, ErrAlreadyDisconnected, tr.Close())
	assert.Len(t, closes, 0)
}

func TestIsLocalhost(t *testing.T) {
	for _, tc := range []struct {
		url  string
		want bool
	}{
		{"wss://localhost:8546", true},
		{"ws://127.0.0.1:8546/ws", true},
		{"wss://[::1]:8546", true},
		{"wss://mainnet.example.org", false},
		{"wss://localhost.example.org", false},
		{"::", false},
	} {
		t.Run(tc.url, func(t *testing.T) {
			assert.Equal(t, tc.want, isLocalhost(tc.url))
		})
	}
}
