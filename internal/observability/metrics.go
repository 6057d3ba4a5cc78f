// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the sniper.
type Metrics struct {
	// Discovery metrics
	PoolsDetected       prometheus.Counter
	CandidatesExtracted prometheus.Counter
	CandidatesSkipped   *prometheus.CounterVec

	// Cycle metrics
	CyclesTotal        *prometheus.CounterVec
	CandidatesRejected *prometheus.CounterVec
	GateBusy           prometheus.Gauge

	// Trading metrics
	TradesTotal *prometheus.CounterVec
	PollTicks   prometheus.Counter

	// Latency metrics
	RPCCallLatency prometheus.Histogram
	RelayLatency   prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "cpmm_sniper"
	}

	return &Metrics{
		PoolsDetected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "pools_detected_total",
			Help:      "Total number of pool creations observed on the log stream",
		}),
		CandidatesExtracted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "candidates_extracted_total",
			Help:      "Total number of pool candidates handed to the pipeline",
		}),
		CandidatesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "candidates_skipped_total",
			Help:      "Total number of detections dropped before validation",
		}, []string{"reason"}),

		CyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "total",
			Help:      "Total number of trading cycles by terminal status",
		}, []string{"status"}),
		CandidatesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "candidates_rejected_total",
			Help:      "Total number of candidates rejected by the safety policy",
		}, []string{"reason"}),
		GateBusy: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "gate_busy",
			Help:      "1 while a trading cycle holds the gate",
		}),

		TradesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_total",
			Help:      "Total number of confirmed trades by side and reason",
		}, []string{"side", "reason"}),
		PollTicks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "poll_ticks_total",
			Help:      "Total number of exit-loop price polls",
		}),

		RPCCallLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_latency_seconds",
			Help:      "Latency of JSON-RPC calls",
			Buckets:   prometheus.DefBuckets,
		}),
		RelayLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "bundle_latency_seconds",
			Help:      "Latency of bundle submissions",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
