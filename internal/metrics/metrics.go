// Package metrics is the ambient instrumentation layer SPEC_FULL.md adds
// (no observability Non-goal excludes it): request/verify/coalesce/store
// counters exposed via github.com/prometheus/client_golang, the same
// library and wiring style as cmd/pulse-sensor-proxy/metrics.go and
// cmd/pulse/metrics_server.go use for their own daemons.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TargetRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notary_target_requests_total",
		Help: "Requests handled by the target endpoint, by method and response code.",
	}, []string{"method", "code"})

	VerifyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notary_verify_duration_seconds",
		Help:    "Time spent inside Verifier.Verify, by backend.",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend"})

	CoalesceJoinsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notary_coalesce_joins_total",
		Help: "Requests that attached to an already in-flight verification instead of starting a new one.",
	})

	StoreOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notary_store_ops_total",
		Help: "Fingerprint store operations, by operation and result.",
	}, []string{"op", "result"})

	ConnectTunnelsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notary_connect_tunnels_total",
		Help: "CONNECT tunnel setup attempts, by result.",
	}, []string{"result"})
)
