// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ethprovider

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pagewallet/pagewallet/jsonrpc"
	"github.com/pagewallet/pagewallet/provider"
	"github.com/pagewallet/pagewallet/registry"
	"github.com/pagewallet/pagewallet/transport"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHost answers requests arriving on its end of a pipe.
type fakeHost struct {
	pipe *transport.Pipe

	mu       sync.Mutex
	calls    map[string]int
	chainID  string
	accounts []string
}

func newHost(t *testing.T) (*fakeHost, *transport.Pipe) {
	bus := transport.NewBus()
	h := &fakeHost{
		pipe:     transport.NewPipe(t.Name(), transport.WithBus(bus)),
		calls:    make(map[string]int),
		chainID:  "0x1",
		accounts: []string{"0xAA"},
	}
	h.pipe.On(transport.EventPayload, h.handle)
	t.Cleanup(func() { _ = h.pipe.Close() })
	return h, transport.NewPipe(t.Name(), transport.WithBus(bus))
}

func (h *fakeHost) handle(data interface{}) {
	req := data.(jsonrpc.Payload)
	if !jsonrpc.IsRequest(req) {
		return
	}
	h.mu.Lock()
	h.calls[req.Method()]++
	chainID, accounts := h.chainID, h.accounts
	h.mu.Unlock()

	var resp interface{}
	switch req.Method() {
	case "eth_chainId":
		resp = jsonrpc.FormatResult(req.ID(), chainID)
	case "eth_accounts":
		resp = jsonrpc.FormatResult(req.ID(), accounts)
	case "eth_requestAccounts":
		resp = jsonrpc.FormatResult(req.ID(), []string{"0xDD"})
	case "net_version":
		resp = jsonrpc.FormatResult(req.ID(), "1")
	case "eth_blockNumber":
		resp = jsonrpc.FormatResult(req.ID(), "0x10")
	case "fail":
		resp, _ = jsonrpc.FormatError(req.ID(), &jsonrpc.Error{Code: -32042, Message: "rejected"})
	case "reject":
		resp = jsonrpc.ErrorResponse{
			ID:      req.ID(),
			JSONRPC: jsonrpc.Version,
			Error:   &jsonrpc.Error{Code: 4001, Message: "User rejected the request."},
		}
	default:
		resp, _ = jsonrpc.FormatError(req.ID(), jsonrpc.ErrMethodNotFound)
	}
	_ = h.pipe.Send(context.Background(), resp)
}

func (h *fakeHost) count(method string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[method]
}

func (h *fakeHost) push(method string, params ...interface{}) {
	_ = h.pipe.Send(context.Background(), jsonrpc.FormatNotification(method, params...))
}

// flush pushes a marker message and waits for it, so every earlier push
// has been processed.
func (h *fakeHost) flush(t *testing.T, p *Provider) {
	t.Helper()
	done := make(chan struct{})
	sub := p.On(EventMessage, func(data interface{}) {
		if data.(provider.Message).Type == "flush" {
			close(done)
		}
	})
	defer sub.Unsubscribe()
	h.push("flush")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("flush timed out")
	}
}

func collect(p *Provider, name string) chan interface{} {
	ch := make(chan interface{}, 64)
	p.On(name, func(data interface{}) { ch <- data })
	return ch
}

func recv(t *testing.T, ch chan interface{}) interface{} {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestFastPathAfterSeeding(t *testing.T) {
	host, page := newHost(t)
	p := New(page)
	connects := collect(p, EventConnect)

	var chainID string
	require.NoError(t, p.Call(context.Background(), &chainID, "eth_chainId"))
	assert.Equal(t, "0x1", chainID)
	assert.Equal(t, ConnectInfo{ChainID: "0x1"}, recv(t, connects))

	var accounts []string
	require.NoError(t, p.Call(context.Background(), &accounts, "eth_accounts"))
	assert.Equal(t, []string{"0xAA"}, accounts)

	require.NoError(t, p.Call(context.Background(), &chainID, "eth_chainId"))
	assert.Equal(t, 1, host.count("eth_chainId"))
	assert.Equal(t, 1, host.count("eth_accounts"))

	state := p.State()
	assert.Equal(t, "1", state.NetworkVersion)
	assert.True(t, p.Seeded())
}

func TestOpenShared(t *testing.T) {
	host, page := newHost(t)
	p := New(page)
	connects := collect(p, EventConnect)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Open(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, host.count("eth_chainId"))
	assert.Equal(t, 1, host.count("eth_accounts"))
	recv(t, connects)
	assert.Len(t, connects, 0)
}

func TestChainChanged(t *testing.T) {
	host, page := newHost(t)
	p := New(page)
	require.NoError(t, p.Open(context.Background()))
	changes := collect(p, EventChainChanged)

	host.push("chainChanged", "0x1")
	host.flush(t, p)
	assert.Len(t, changes, 0)

	host.push("chainChanged", "0x89")
	assert.Equal(t, "0x89", recv(t, changes))
	assert.Equal(t, "137", p.State().NetworkVersion)

	// decimal form of the same chain
	host.push("chainChanged", "137")
	host.flush(t, p)
	assert.Len(t, changes, 0)

	// malformed values are ignored
	host.push("chainChanged", "not-a-number")
	host.push("chainChanged", 5)
	host.flush(t, p)
	assert.Len(t, changes, 0)
	assert.Equal(t, "0x89", p.State().ChainID)
}

func TestChainChangedBareValue(t *testing.T) {
	_, page := newHost(t)
	p := New(page)
	require.NoError(t, p.Open(context.Background()))
	changes := collect(p, EventChainChanged)

	// a host may push params as a bare value
	p.onMessage(provider.Message{Type: EventChainChanged, Data: json.RawMessage(`"0x5"`)})
	assert.Equal(t, "0x5", recv(t, changes))
}

func TestAccountsChanged(t *testing.T) {
	host, page := newHost(t)
	p := New(page)
	require.NoError(t, p.Open(context.Background()))
	changes := collect(p, EventAccountsChanged)

	host.push("accountsChanged", []string{"0xAA"})
	host.push("accountsChanged", []string{"0xaa"})
	host.flush(t, p)
	assert.Len(t, changes, 0)
	assert.Equal(t, []string{"0xAA"}, p.State().Accounts)

	host.push("accountsChanged", []string{"0xBB"})
	assert.Equal(t, []string{"0xBB"}, recv(t, changes))
	assert.Equal(t, []string{"0xBB"}, p.State().Accounts)
	host.flush(t, p)
	assert.Len(t, changes, 0)

	// params as a flat list
	p.onMessage(provider.Message{Type: EventAccountsChanged, Data: json.RawMessage(`["0xCC"]`)})
	assert.Equal(t, []string{"0xCC"}, recv(t, changes))

	host.push("accountsChanged", []string{})
	assert.Equal(t, []string{}, recv(t, changes))
}

func TestOtherMessages(t *testing.T) {
	host, page := newHost(t)
	p := New(page)
	messages := collect(p, EventMessage)
	require.NoError(t, p.Open(context.Background()))

	host.push("eth_subscription", map[string]string{"subscription": "0x1"})
	msg := recv(t, messages).(provider.Message)
	assert.Equal(t, "eth_subscription", msg.Type)
}

func TestNetVersionGoesToHost(t *testing.T) {
	host, page := newHost(t)
	p := New(page)

	for i := 0; i < 2; i++ {
		v, err := p.NetVersion(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "1", v)
	}
	assert.Equal(t, 2, host.count("net_version"))
}

func TestEnableReconcilesAccounts(t *testing.T) {
	host, page := newHost(t)
	p := New(page)
	require.NoError(t, p.Open(context.Background()))
	changes := collect(p, EventAccountsChanged)

	accounts, err := p.Enable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0xDD"}, accounts)
	assert.Equal(t, 1, host.count("eth_requestAccounts"))
	assert.Equal(t, []string{"0xDD"}, recv(t, changes))
	assert.Equal(t, []string{"0xDD"}, p.State().Accounts)
}

func TestLegacyUnknown(t *testing.T) {
	_, page := newHost(t)
	p := New(page)
	_, err := p.Legacy(context.Background(), LegacyMethod("eth_sign"))
	assert.True(t, errors.Is(err, jsonrpc.ErrMethodNotFound))
}

func TestRequestError(t *testing.T) {
	_, page := newHost(t)
	p := New(page)
	_, err := p.Request(context.Background(), "fail", nil)

	var rpcErr *jsonrpc.Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, -32042, rpcErr.Code)
	assert.Equal(t, "rejected", rpcErr.Message)
}

func sendAsync(t *testing.T, p *Provider, payload string) (interface{}, error) {
	t.Helper()
	type call struct {
		err    error
		result interface{}
	}
	calls := make(chan call, 2)
	p.SendAsync(context.Background(), json.RawMessage(payload), func(err error, result interface{}) {
		calls <- call{err, result}
	})
	select {
	case c := <-calls:
		time.Sleep(20 * time.Millisecond)
		assert.Len(t, calls, 0, "callback invoked more than once")
		return c.result, c.err
	case <-time.After(2 * time.Second):
		t.Fatal("callback not invoked")
		return nil, nil
	}
}

func TestSendAsyncBatch(t *testing.T) {
	_, page := newHost(t)
	p := New(page)

	result, err := sendAsync(t, p, `[
		{"id":1,"jsonrpc":"2.0","method":"eth_blockNumber","params":[]},
		{"id":2,"jsonrpc":"2.0","method":"fail","params":[]}
	]`)
	require.NoError(t, err)

	results, ok := result.([]AsyncResult)
	require.True(t, ok)
	require.Len(t, results, 2)

	assert.Equal(t, "eth_blockNumber", results[0].Method)
	assert.JSONEq(t, `"0x10"`, string(results[0].Result))
	assert.Nil(t, results[0].Error)
	assert.JSONEq(t, `1`, string(results[0].ID))

	assert.Equal(t, "fail", results[1].Method)
	assert.Nil(t, results[1].Result)
	require.NotNil(t, results[1].Error)
	assert.Equal(t, -32042, results[1].Error.Code)
}

func TestSendAsyncBatchKeepsHostCodes(t *testing.T) {
	_, page := newHost(t)
	p := New(page)

	result, err := sendAsync(t, p, `[
		{"id":1,"jsonrpc":"2.0","method":"reject","params":[]},
		{"id":2,"jsonrpc":"2.0","method":"eth_blockNumber","params":[]}
	]`)
	require.NoError(t, err)

	results, ok := result.([]AsyncResult)
	require.True(t, ok)
	require.Len(t, results, 2)

	require.NotNil(t, results[0].Error)
	assert.Equal(t, 4001, results[0].Error.Code)
	assert.Equal(t, "User rejected the request.", results[0].Error.Message)
	assert.JSONEq(t, `1`, string(results[0].ID))

	assert.Nil(t, results[1].Error)
	assert.JSONEq(t, `"0x10"`, string(results[1].Result))

	_, err = sendAsync(t, p, `{"id":3,"jsonrpc":"2.0","method":"reject"}`)
	var rpcErr *jsonrpc.Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, 4001, rpcErr.Code)
}

func TestSendAsyncSingle(t *testing.T) {
	_, page := newHost(t)
	p := New(page)

	result, err := sendAsync(t, p, `{"id":3,"jsonrpc":"2.0","method":"eth_chainId"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `"0x1"`, string(result.(AsyncResult).Result))

	result, err = sendAsync(t, p, `{"id":4,"jsonrpc":"2.0","method":"nope","params":{"a":1}}`)
	assert.True(t, errors.Is(err, jsonrpc.ErrMethodNotFound))
	assert.Equal(t, "nope", result.(AsyncResult).Method)

	result, err = sendAsync(t, p, `{"id":`)
	assert.True(t, errors.Is(err, jsonrpc.ErrParse))
	assert.Nil(t, result)
}

func TestDisconnectResetsSeed(t *testing.T) {
	host, page := newHost(t)
	p := New(page)
	disconnects := collect(p, EventDisconnect)

	require.NoError(t, p.Open(context.Background()))
	require.NoError(t, p.Close())
	recv(t, disconnects)
	assert.False(t, p.Seeded())

	require.NoError(t, p.Open(context.Background()))
	assert.Equal(t, 2, host.count("eth_chainId"))
}

func TestSeedFailure(t *testing.T) {
	host, page := newHost(t)
	host.mu.Lock()
	host.chainID = "garbage"
	host.mu.Unlock()

	p := New(page)
	err := p.Open(context.Background())
	require.Error(t, err)
	assert.False(t, p.Seeded())
}

func TestRegister(t *testing.T) {
	_, page := newHost(t)
	p := New(page)
	reg := registry.New()

	require.NoError(t, Register(reg, p))
	v, ok := reg.Lookup(RegistryName)
	require.True(t, ok)
	assert.Equal(t, p, v)
	assert.True(t, errors.Is(Register(reg, p), registry.ErrAlreadyRegistered))
}

func TestParseChainID(t *testing.T) {
	for _, tc := range []struct {
		in, hex, dec string
		ok           bool
	}{
		{"0x1", "0x1", "1", true},
		{"0x89", "0x89", "137", true},
		{"137", "0x89", "137", true},
		{"0x0", "0x0", "0", true},
		{"", "", "", false},
		{"0xzz", "", "", false},
	} {
		t.Run(tc.in, func(t *testing.T) {
			hex, dec, err := parseChainID(tc.in)
			if !tc.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.hex, hex)
			assert.Equal(t, tc.dec, dec)
		})
	}
}

func TestSameAccounts(t *testing.T) {
	assert.True(t, sameAccounts(nil, []string{}))
	assert.True(t, sameAccounts([]string{"0xAA"}, []string{"0xaa"}))
	assert.True(t, sameAccounts([]string{"0x1", "0x2"}, []string{"0x2", "0x1"}))
	assert.False(t, sameAccounts([]string{"0xAA"}, []string{"0xBB"}))
	assert.False(t, sameAccounts([]string{"0xAA"}, []string{"0xAA", "0xBB"}))
}
