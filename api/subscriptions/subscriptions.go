// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package subscriptions

import (
	"context"
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/event"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/inconshreveable/log15"
	"github.com/pagewallet/pagewallet/api/rpc"
	"github.com/pagewallet/pagewallet/api/subscriptions/broadcaster"
	"github.com/pagewallet/pagewallet/api/utils"
	"github.com/pagewallet/pagewallet/notify"
	"github.com/pagewallet/pagewallet/wallet"
)

var log = log15.New("pkg", "subscriptions")

type Subscriptions struct {
	state    *wallet.State
	rpc      *rpc.RPC
	hub      *broadcaster.Hub
	notifier *notify.Notifier
	upgrader *websocket.Upgrader

	changes chan wallet.Change
	sub     event.Subscription
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates the websocket endpoint for state. Browser clients are
// accepted from allowedOrigins only; "*" allows every origin.
func New(state *wallet.State, resolver notify.Resolver, allowedOrigins []string) *Subscriptions {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Subscriptions{
		state:   state,
		rpc:     rpc.New(state),
		hub:     broadcaster.NewHub(),
		changes: make(chan wallet.Change, 16),
		ctx:     ctx,
		cancel:  cancel,
		upgrader: &websocket.Upgrader{
			EnableCompression: true,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if allowed == origin || allowed == "*" {
						return true
					}
				}
				return false
			},
		},
	}
	s.notifier = notify.New(resolver, s)
	s.sub = state.Subscribe(s.changes)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run()
	}()
	return s
}

// TabsByOrigin implements notify.Tabs over the connected clients.
func (s *Subscriptions) TabsByOrigin(origin string) []string {
	return s.hub.ByOrigin(origin)
}

// SendMessage implements notify.Tabs.
func (s *Subscriptions) SendMessage(tabID string, n notify.Notification) error {
	return s.hub.Send(tabID, notificationMessage(n))
}

// Clients returns the number of connected clients.
func (s *Subscriptions) Clients() int {
	return s.hub.Len()
}

func (s *Subscriptions) handleWS(w http.ResponseWriter, req *http.Request) error {
	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		// the upgrader has written the response already
		log.Debug("upgrade failed", "err", err)
		return nil
	}
	client := broadcaster.NewClient(s.hub, conn, rpc.Origin(req), s.onMessage)
	client.Start()
	log.Debug("client connected", "id", client.ID, "origin", client.Origin)
	return nil
}

func (s *Subscriptions) onMessage(c *broadcaster.Client, data []byte) interface{} {
	return s.rpc.Dispatch(s.ctx, c.Origin, data)
}

// Close disconnects every client and stops forwarding state changes.
func (s *Subscriptions) Close() {
	s.cancel()
	s.sub.Unsubscribe()
	s.wg.Wait()
	s.hub.Close()
}

func (s *Subscriptions) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(s.handleWS))
}
