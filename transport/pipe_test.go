// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package transport

import (
	"context"
	"testing"
	"time"

	"github.com/pagewallet/pagewallet/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeBroadcast(t *testing.T) {
	bus := NewBus()
	a := NewPipe("page:1", WithBus(bus))
	b := NewPipe("page:1", WithBus(bus))
	c := NewPipe("page:1", WithBus(bus))
	other := NewPipe("page:2", WithBus(bus))
	assert.Equal(t, 3, bus.Members("page:1"))

	fromA := collect(a, EventPayload)
	toB := collect(b, EventPayload)
	toC := collect(c, EventPayload)
	toOther := collect(other, EventPayload)

	req := jsonrpc.FormatRequest("eth_chainId", nil)
	require.NoError(t, a.Send(context.Background(), req))

	assert.Equal(t, req.Key(), recvPayload(t, toB).Key())
	assert.Equal(t, req.Key(), recvPayload(t, toC).Key())

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, fromA, 0)
	assert.Len(t, toOther, 0)
}

func TestPipeOrder(t *testing.T) {
	bus := NewBus()
	a := NewPipe("x", WithBus(bus))
	b := NewPipe("x", WithBus(bus))

	got := make(chan interface{}, 200)
	b.On(EventPayload, func(data interface{}) { got <- data })

	for i := int64(0); i < 100; i++ {
		require.NoError(t, a.Send(context.Background(), jsonrpc.FormatRequest("m", nil, i)))
	}
	for i := int64(0); i < 100; i++ {
		p := recvPayload(t, got)
		assert.Equal(t, jsonrpc.FormatRequest("m", nil, i).Key(), p.Key())
	}
}

func TestPipeAlwaysConnected(t *testing.T) {
	p := NewPipe("y", WithBus(NewBus()))
	assert.True(t, p.Connected())
	require.NoError(t, p.Open(context.Background()))
	assert.Equal(t, "y", p.Name())
}

func TestPipeClose(t *testing.T) {
	bus := NewBus()
	a := NewPipe("z", WithBus(bus))
	b := NewPipe("z", WithBus(bus))
	closes := collect(b, EventClose)
	toB := collect(b, EventPayload)

	require.NoError(t, b.Close())
	recv(t, closes)
	require.NoError(t, b.Close())
	assert.Len(t, closes, 0)
	assert.False(t, b.Connected())
	assert.Equal(t, 1, bus.Members("z"))

	require.NoError(t, a.Send(context.Background(), jsonrpc.FormatRequest("m", nil)))
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, toB, 0)

	// reopening rejoins the channel
	opens := collect(b, EventOpen)
	require.NoError(t, b.Open(context.Background()))
	recv(t, opens)
	require.NoError(t, a.Send(context.Background(), jsonrpc.FormatRequest("m", nil, 4)))
	assert.Equal(t, "4", recvPayload(t, toB).Key())
}

func TestPipeListenerCloses(t *testing.T) {
	bus := NewBus()
	a := NewPipe("w", WithBus(bus))
	b := NewPipe("w", WithBus(bus))
	closes := collect(b, EventClose)
	b.On(EventPayload, func(interface{}) { _ = b.Close() })

	require.NoError(t, a.Send(context.Background(), jsonrpc.FormatRequest("m", nil)))
	recv(t, closes)
}
