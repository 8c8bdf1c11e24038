// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ethprovider

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pagewallet/pagewallet/chainid"
	"github.com/pagewallet/pagewallet/metrics"
)

// ChainState is the cached view of the host's chain and accounts.
type ChainState struct {
	ChainID        string   `json:"chainId"`        // hex, e.g. 0x1
	NetworkVersion string   `json:"networkVersion"` // decimal form of ChainID
	Accounts       []string `json:"accounts"`
}

func (s ChainState) clone() ChainState {
	s.Accounts = append([]string{}, s.Accounts...)
	return s
}

// parseChainID accepts a hex or decimal chain id and returns its canonical
// hex form and its decimal network version.
func parseChainID(v string) (string, string, error) {
	n, err := chainid.Parse(v)
	if err != nil {
		return "", "", err
	}
	return hexutil.EncodeBig(n), n.String(), nil
}

func normalizeAccounts(accounts []string) []string {
	if accounts == nil {
		return []string{}
	}
	return accounts
}

// sameAccounts compares two account lists as sets, ignoring case.
func sameAccounts(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, x := range a {
		found := false
		for _, y := range b {
			if strings.EqualFold(x, y) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// firstParam returns params[0] when params is an array, params otherwise.
func firstParam(params json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(params)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err == nil && len(list) > 0 {
			return list[0]
		}
	}
	return trimmed
}

func (p *Provider) onChainChanged(params json.RawMessage) {
	var v string
	if err := json.Unmarshal(firstParam(params), &v); err != nil {
		log.Debug("malformed chainChanged", "params", string(params))
		return
	}
	chainID, version, err := parseChainID(v)
	if err != nil {
		log.Debug("malformed chainChanged", "err", err)
		return
	}

	p.mu.Lock()
	changed := p.state.ChainID != chainID
	if changed {
		p.state.ChainID = chainID
		p.state.NetworkVersion = version
	}
	p.mu.Unlock()

	if !changed {
		metrics.StateChanges.WithLabelValues(EventChainChanged, "suppressed").Inc()
		return
	}
	metrics.StateChanges.WithLabelValues(EventChainChanged, "emitted").Inc()
	p.events.Emit(EventChainChanged, chainID)
}

func (p *Provider) onAccountsChanged(params json.RawMessage) {
	var nested [][]string
	if err := json.Unmarshal(params, &nested); err == nil && len(nested) > 0 {
		p.reconcileAccounts(nested[0])
		return
	}
	var accounts []string
	if err := json.Unmarshal(params, &accounts); err != nil {
		log.Debug("malformed accountsChanged", "params", string(params))
		return
	}
	p.reconcileAccounts(accounts)
}

// reconcileAccounts stores accounts and emits EventAccountsChanged when they
// differ from the cache.
func (p *Provider) reconcileAccounts(accounts []string) {
	accounts = normalizeAccounts(accounts)

	p.mu.Lock()
	changed := !sameAccounts(p.state.Accounts, accounts)
	if changed {
		p.state.Accounts = append([]string{}, accounts...)
	}
	p.mu.Unlock()

	if !changed {
		metrics.StateChanges.WithLabelValues(EventAccountsChanged, "suppressed").Inc()
		return
	}
	metrics.StateChanges.WithLabelValues(EventAccountsChanged, "emitted").Inc()
	p.events.Emit(EventAccountsChanged, append([]string{}, accounts...))
}
