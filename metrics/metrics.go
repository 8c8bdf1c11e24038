// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package metrics holds the prometheus collectors shared by the provider
// engine and the reference host.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pagewallet"

var (
	// RequestsTotal counts provider requests by outcome (ok, rpc_error, error, canceled).
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "requests_total",
		Help:      "Provider requests by outcome.",
	}, []string{"outcome"})

	// PendingRequests is the number of requests awaiting a response.
	PendingRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "pending_requests",
		Help:      "Requests waiting for a response.",
	})

	// TransportEvents counts lifecycle events emitted by transports.
	TransportEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "transport",
		Name:      "events_total",
		Help:      "Transport events by transport kind and event name.",
	}, []string{"transport", "event"})

	// RelayPayloads counts payloads seen by relays.
	RelayPayloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "payloads_total",
		Help:      "Relayed payloads by direction and outcome.",
	}, []string{"direction", "outcome"})

	// StateChanges counts chain-state events by whether they were re-emitted.
	StateChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ethprovider",
		Name:      "state_changes_total",
		Help:      "Chain-state events by event name and outcome (emitted, suppressed).",
	}, []string{"event", "outcome"})

	// HTTPRequests counts host API requests.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Host API requests by route, method and status code.",
	}, []string{"route", "method", "code"})

	// HTTPDuration observes host API latency.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_request_duration_seconds",
		Help:      "Host API request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	// WSClients is the number of connected websocket clients.
	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "ws_clients",
		Help:      "Connected websocket clients.",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
