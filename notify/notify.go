// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package notify pushes in-dapp notifications to every open tab of an
// origin when the wallet switches chains, or fails to.
package notify

import (
	"context"
	"net/url"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
)

var log = log15.New("pkg", "notify")

// Notification events.
const (
	EventChainChanged     = "chainChanged"
	EventSwitchChainError = "switchChainError"
)

// Notification is what a tab receives.
type Notification struct {
	Event       string `json:"event"`
	NetworkName string `json:"networkName,omitempty"`
	NetworkIcon string `json:"networkIcon,omitempty"`
	ChainID     string `json:"chainId,omitempty"`
}

// Tabs reaches the open tabs of the browser, or anything that plays their
// role.
type Tabs interface {
	TabsByOrigin(origin string) []string
	SendMessage(tabID string, n Notification) error
}

// Notifier sends notifications through Tabs.
type Notifier struct {
	resolver Resolver
	tabs     Tabs
}

// New creates a Notifier.
func New(resolver Resolver, tabs Tabs) *Notifier {
	return &Notifier{resolver: resolver, tabs: tabs}
}

// ChainChanged tells the tabs of origin which network is now selected.
// Chains the resolver does not know are skipped silently.
func (n *Notifier) ChainChanged(ctx context.Context, chainID, origin string) error {
	network, err := n.resolver.Resolve(ctx, chainID)
	if err != nil {
		return errors.WithMessage(err, "resolve network")
	}
	if network == nil {
		log.Debug("no network for chain", "chainId", chainID)
		return nil
	}
	return n.notify(origin, Notification{
		Event:       EventChainChanged,
		NetworkName: network.Name,
		NetworkIcon: network.Icon,
	})
}

// SwitchChainError tells the tabs of origin that switching to chainID failed.
func (n *Notifier) SwitchChainError(ctx context.Context, chainID, origin string) error {
	return n.notify(origin, Notification{
		Event:   EventSwitchChainError,
		ChainID: chainID,
	})
}

// notify sends to every tab, returning the first failure.
func (n *Notifier) notify(origin string, note Notification) error {
	var first error
	for _, id := range n.tabs.TabsByOrigin(origin) {
		if err := n.tabs.SendMessage(id, note); err != nil {
			log.Debug("send notification failed", "tab", id, "err", err)
			if first == nil {
				first = errors.WithMessage(err, "tab "+id)
			}
		}
	}
	return first
}

// Origin returns the scheme://host[:port] of raw.
func Origin(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.Errorf("no origin in %q", raw)
	}
	return u.Scheme + "://" + u.Host, nil
}
