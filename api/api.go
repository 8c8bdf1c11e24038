// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package api assembles the host http service: JSON-RPC over POST and
// websocket, health and metrics.
package api

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pagewallet/pagewallet/api/rpc"
	"github.com/pagewallet/pagewallet/api/subscriptions"
	"github.com/pagewallet/pagewallet/api/utils"
	"github.com/pagewallet/pagewallet/metrics"
	"github.com/pagewallet/pagewallet/notify"
	"github.com/pagewallet/pagewallet/wallet"
)

// Options configures the http service.
type Options struct {
	// AllowedOrigins are the browser origins accepted by CORS and the
	// websocket endpoint. "*" allows any.
	AllowedOrigins []string
	RateLimit      RateLimit
	EnableMetrics  bool
}

// New returns the http handler of the host and a function releasing its
// resources.
func New(state *wallet.State, resolver notify.Resolver, opts Options) (http.Handler, func()) {
	router := mux.NewRouter()

	rpc.New(state).Mount(router, "/rpc")

	subs := subscriptions.New(state, resolver, opts.AllowedOrigins)
	subs.Mount(router, "/ws")

	router.Path("/health").Methods(http.MethodGet).HandlerFunc(
		utils.WrapHandlerFunc(func(w http.ResponseWriter, _ *http.Request) error {
			return utils.WriteJSON(w, utils.M{
				"chainId": state.ChainID(),
				"clients": subs.Clients(),
			})
		}))

	if opts.EnableMetrics {
		router.Path("/metrics").Methods(http.MethodGet).Handler(metrics.Handler())
		router.Use(metricsMiddleware)
	}

	handler := newIPLimiter(opts.RateLimit).middleware(router)
	handler = handlers.CORS(
		handlers.AllowedOrigins(opts.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"content-type"}),
	)(handler)

	return handler, subs.Close
}
