// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package ethprovider is the page-facing Ethereum provider. It caches the
// chain id and accounts, answers them locally and reconciles the state
// changes pushed by the host.
package ethprovider

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/inconshreveable/log15"
	"github.com/pagewallet/pagewallet/event"
	"github.com/pagewallet/pagewallet/provider"
	"github.com/pagewallet/pagewallet/transport"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var log = log15.New("pkg", "ethprovider")

// Event names.
const (
	EventConnect         = "connect"
	EventDisconnect      = "disconnect"
	EventChainChanged    = "chainChanged"
	EventAccountsChanged = "accountsChanged"
	EventMessage         = "message"
	EventError           = "error"
)

// ConnectInfo is the data of EventConnect.
type ConnectInfo struct {
	ChainID string `json:"chainId"`
}

// Provider wraps a provider core with cached chain state.
type Provider struct {
	core   *provider.Provider
	events event.Emitter
	opens  singleflight.Group

	mu     sync.Mutex
	state  ChainState
	seeded bool
}

// New creates a provider over t.
func New(t transport.Transport, opts ...provider.Option) *Provider {
	return Wrap(provider.New(t, opts...))
}

// Wrap layers chain state on an existing core.
func Wrap(core *provider.Provider) *Provider {
	p := &Provider{core: core}
	core.On(provider.EventMessage, p.onMessage)
	core.On(provider.EventDisconnect, p.onDisconnect)
	core.On(provider.EventError, func(data interface{}) {
		p.events.Emit(EventError, data)
	})
	return p
}

// Core returns the wrapped provider core.
func (p *Provider) Core() *provider.Provider {
	return p.core
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

// State returns a copy of the cached chain state.
func (p *Provider) State() ChainState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.clone()
}

// Seeded reports whether the cache holds values fetched from the host.
func (p *Provider) Seeded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seeded
}

func (p *Provider) ready() bool {
	return p.Seeded() && p.core.Connected()
}

// Open connects and seeds the cache as one unit. Concurrent calls share
// one attempt. EventConnect fires once seeding is done.
func (p *Provider) Open(ctx context.Context) error {
	if p.ready() {
		return nil
	}
	ch := p.opens.DoChan("open", func() (interface{}, error) {
		if p.ready() {
			return nil, nil
		}
		ctx := context.WithoutCancel(ctx)
		if err := p.core.Connect(ctx); err != nil {
			return nil, err
		}
		if err := p.seed(ctx); err != nil {
			return nil, err
		}
		p.events.Emit(EventConnect, ConnectInfo{ChainID: p.State().ChainID})
		return nil, nil
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects the core.
func (p *Provider) Close() error {
	return p.core.Disconnect()
}

func (p *Provider) seed(ctx context.Context) error {
	var (
		chainID  string
		accounts []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.core.Call(gctx, &chainID, "eth_chainId")
	})
	g.Go(func() error {
		return p.core.Call(gctx, &accounts, "eth_accounts")
	})
	if err := g.Wait(); err != nil {
		return errors.WithMessage(err, "seed chain state")
	}

	id, version, err := parseChainID(chainID)
	if err != nil {
		return errors.WithMessage(err, "seed chain state")
	}

	p.mu.Lock()
	p.state = ChainState{
		ChainID:        id,
		NetworkVersion: version,
		Accounts:       normalizeAccounts(accounts),
	}
	p.seeded = true
	p.mu.Unlock()

	log.Debug("seeded", "chainId", id, "accounts", len(accounts))
	return nil
}

// Request opens if needed, then answers eth_chainId and eth_accounts from
// the cache and sends everything else to the host.
func (p *Provider) Request(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	if err := p.Open(ctx); err != nil {
		return nil, err
	}

	switch method {
	case "eth_chainId":
		return json.Marshal(p.State().ChainID)
	case "eth_accounts":
		return json.Marshal(p.State().Accounts)
	}

	raw, err := p.core.Request(ctx, method, params)
	if err != nil {
		return nil, err
	}
	if method == "eth_requestAccounts" {
		var accounts []string
		if err := json.Unmarshal(raw, &accounts); err == nil {
			p.reconcileAccounts(accounts)
		}
	}
	return raw, nil
}

// Call is Request followed by decoding the result into out.
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

func (p *Provider) onMessage(data interface{}) {
	msg, ok := data.(provider.Message)
	if !ok {
		return
	}
	switch msg.Type {
	case EventChainChanged:
		p.onChainChanged(msg.Data)
	case EventAccountsChanged:
		p.onAccountsChanged(msg.Data)
	default:
		p.events.Emit(EventMessage, msg)
	}
}

func (p *Provider) onDisconnect(interface{}) {
	p.mu.Lock()
	p.seeded = false
	p.mu.Unlock()
	p.events.Emit(EventDisconnect, nil)
}
