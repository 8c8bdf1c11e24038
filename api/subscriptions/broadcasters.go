// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package subscriptions

import (
	"github.com/pagewallet/pagewallet/api/subscriptions/broadcaster"
	"github.com/pagewallet/pagewallet/jsonrpc"
	"github.com/pagewallet/pagewallet/notify"
	"github.com/pagewallet/pagewallet/wallet"
)

// NotificationMethod carries in-dapp notifications to clients.
const NotificationMethod = "wallet_notification"

func notificationMessage(n notify.Notification) jsonrpc.Notification {
	return jsonrpc.FormatNotification(NotificationMethod, n)
}

// run forwards state changes. chainChanged goes to every client,
// accountsChanged only to clients of permitted origins, in-dapp
// notifications to the clients of the origin that caused the change.
func (s *Subscriptions) run() {
	for {
		select {
		case change := <-s.changes:
			s.broadcast(change)
		case err := <-s.sub.Err():
			if err != nil {
				log.Error("state subscription failed", "err", err)
			}
			return
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Subscriptions) broadcast(change wallet.Change) {
	if msg, ok := change.Notification(); ok {
		if change.Event == wallet.EventAccountsChanged {
			s.hub.BroadcastFunc(msg, func(c *broadcaster.Client) bool {
				return s.state.Permitted(c.Origin)
			})
		} else {
			s.hub.Broadcast(msg)
		}
	}
	if change.Origin == "" {
		return
	}

	var err error
	switch change.Event {
	case wallet.EventChainChanged:
		err = s.notifier.ChainChanged(s.ctx, change.ChainID, change.Origin)
	case wallet.EventSwitchChainError:
		err = s.notifier.SwitchChainError(s.ctx, change.ChainID, change.Origin)
	}
	if err != nil {
		log.Debug("notification not delivered", "event", change.Event, "origin", change.Origin, "err", err)
	}
}
