package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenthub_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agenthub_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Hub metrics
	EnvelopesRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenthub_envelopes_routed_total",
			Help: "Envelopes forwarded by the hub",
		},
		[]string{"channel"},
	)

	EnvelopesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenthub_envelopes_dropped_total",
			Help: "Envelopes dropped by the hub",
		},
		[]string{"reason"}, // "malformed", "unknown_channel", "unknown_peer", "slow_peer"
	)

	ConnectedPeers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agenthub_connected_peers",
			Help: "Currently connected peers",
		},
		[]string{"kind"}, // "client" or "agent"
	)

	PeersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agenthub_peers_registered_total",
			Help: "Total peers registered",
		},
	)

	// Bridge metrics
	BridgeRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agenthub_bridge_requests_total",
			Help: "Total bridge ingress requests",
		},
	)

	BridgeForwarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agenthub_bridge_forwarded_total",
			Help: "Envelopes forwarded to the hub",
		},
	)

	BridgeRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agenthub_bridge_rate_limited_total",
			Help: "Requests rejected by the token bucket",
		},
	)

	BridgeAuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agenthub_bridge_auth_failures_total",
			Help: "Requests rejected by JWT or API key checks",
		},
	)

	BridgeHubConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agenthub_bridge_hub_connected",
			Help: "1 when the bridge's outbound hub connection is up",
		},
	)
)
