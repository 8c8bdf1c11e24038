// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package wallet holds the host-side chain and account state and answers the
// provider methods that depend on it.
package wallet

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/inconshreveable/log15"
	"github.com/pagewallet/pagewallet/chainid"
	"github.com/pagewallet/pagewallet/jsonrpc"
	"github.com/pkg/errors"
)

var log = log15.New("pkg", "wallet")

// Change events.
const (
	EventChainChanged     = "chainChanged"
	EventAccountsChanged  = "accountsChanged"
	EventSwitchChainError = "switchChainError"
)

// CodeUnrecognizedChain is returned when switching to an unknown chain.
const CodeUnrecognizedChain = -32001

// Change is published whenever the state changes, or a switch fails.
type Change struct {
	Event    string
	Origin   string // origin that caused the change, if any
	ChainID  string
	Accounts []string
}

// Notification returns the wire notification for c, or false for events
// that are not pushed to providers.
func (c Change) Notification() (jsonrpc.Notification, bool) {
	switch c.Event {
	case EventChainChanged:
		return jsonrpc.FormatNotification(EventChainChanged, c.ChainID), true
	case EventAccountsChanged:
		return jsonrpc.FormatNotification(EventAccountsChanged, c.Accounts), true
	}
	return jsonrpc.Notification{}, false
}

// Signer handles every method the state does not answer itself, typically
// signing requests. It never sees key material through this package.
type Signer interface {
	Handle(ctx context.Context, origin, method string, params json.RawMessage) (interface{}, error)
}

// Options configures a State.
type Options struct {
	ChainID  string
	Accounts []string
	// Chains lists the chain ids a dapp may switch to, besides ChainID.
	Chains []string
	Signer Signer
}

// State is the wallet as seen by dapps.
type State struct {
	signer Signer

	mu        sync.RWMutex
	chainID   string
	accounts  []string
	chains    map[string]bool
	permitted map[string]bool

	feed  event.Feed
	scope event.SubscriptionScope
}

// New creates a State.
func New(opts Options) (*State, error) {
	id, err := chainid.Normalize(opts.ChainID)
	if err != nil {
		return nil, errors.WithMessage(err, "chain id")
	}
	accounts, err := checksum(opts.Accounts)
	if err != nil {
		return nil, err
	}
	s := &State{
		signer:    opts.Signer,
		chainID:   id,
		accounts:  accounts,
		chains:    map[string]bool{id: true},
		permitted: make(map[string]bool),
	}
	for _, c := range opts.Chains {
		cid, err := chainid.Normalize(c)
		if err != nil {
			return nil, errors.WithMessage(err, "chains")
		}
		s.chains[cid] = true
	}
	return s, nil
}

func checksum(accounts []string) ([]string, error) {
	out := make([]string, 0, len(accounts))
	for _, a := range accounts {
		if !common.IsHexAddress(a) {
			return nil, errors.Errorf("invalid account %q", a)
		}
		out = append(out, common.HexToAddress(a).Hex())
	}
	return out, nil
}

// Subscribe delivers every Change to ch. The subscriber must keep reading.
func (s *State) Subscribe(ch chan<- Change) event.Subscription {
	return s.scope.Track(s.feed.Subscribe(ch))
}

// Close ends all subscriptions.
func (s *State) Close() {
	s.scope.Close()
}

// ChainID returns the selected chain in hex.
func (s *State) ChainID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chainID
}

// Accounts returns the wallet accounts.
func (s *State) Accounts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.accounts...)
}

// Permitted reports whether origin was granted account access.
func (s *State) Permitted(origin string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permitted[origin]
}

// SetAccounts replaces the accounts and publishes the change, if any.
func (s *State) SetAccounts(accounts []string) error {
	next, err := checksum(accounts)
	if err != nil {
		return err
	}
	s.mu.Lock()
	changed := !equalAccounts(s.accounts, next)
	if changed {
		s.accounts = next
	}
	s.mu.Unlock()

	if changed {
		s.feed.Send(Change{Event: EventAccountsChanged, Accounts: append([]string{}, next...)})
	}
	return nil
}

// SwitchChain selects chainID on behalf of origin. Unknown chains fail with
// CodeUnrecognizedChain and publish EventSwitchChainError.
func (s *State) SwitchChain(origin, chainID string) error {
	id, err := chainid.Normalize(chainID)
	if err != nil {
		return jsonrpc.NewError(jsonrpc.CodeInvalidParams)
	}

	s.mu.Lock()
	if !s.chains[id] {
		s.mu.Unlock()
		log.Debug("switch to unknown chain", "chainId", id, "origin", origin)
		s.feed.Send(Change{Event: EventSwitchChainError, Origin: origin, ChainID: id})
		return &jsonrpc.Error{Code: CodeUnrecognizedChain, Message: "Unrecognized chain ID " + id}
	}
	changed := s.chainID != id
	s.chainID = id
	s.mu.Unlock()

	if changed {
		log.Info("chain switched", "chainId", id, "origin", origin)
		s.feed.Send(Change{Event: EventChainChanged, Origin: origin, ChainID: id})
	}
	return nil
}

// Handle answers one request from origin.
func (s *State) Handle(ctx context.Context, origin, method string, params json.RawMessage) (interface{}, error) {
	switch method {
	case "eth_chainId":
		return s.ChainID(), nil
	case "net_version":
		version, err := chainid.NetworkVersion(s.ChainID())
		if err != nil {
			return nil, err
		}
		return version, nil
	case "eth_accounts":
		if !s.Permitted(origin) {
			return []string{}, nil
		}
		return s.Accounts(), nil
	case "eth_requestAccounts":
		s.mu.Lock()
		s.permitted[origin] = true
		s.mu.Unlock()
		return s.Accounts(), nil
	case "wallet_switchEthereumChain":
		var args []struct {
			ChainID string `json:"chainId"`
		}
		if err := json.Unmarshal(params, &args); err != nil || len(args) == 0 {
			return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams)
		}
		if err := s.SwitchChain(origin, args[0].ChainID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if s.signer != nil {
		return s.signer.Handle(ctx, origin, method, params)
	}
	return nil, jsonrpc.NewError(jsonrpc.CodeMethodNotFound)
}

func equalAccounts(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}
