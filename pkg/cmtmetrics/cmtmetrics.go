// Package cmtmetrics exposes Prometheus instrumentation for Coded Merkle
// Tree construction, sampling, and decoding.
package cmtmetrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TreeBuildSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cmt",
		Name:      "tree_build_seconds",
		Help:      "Time to build a coded Merkle tree from a block's transactions.",
		Buckets:   prometheus.DefBuckets,
	})

	DecodeOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cmt",
		Name:      "decode_outcomes_total",
		Help:      "Decode sessions by outcome (done, not_zero, not_hash, stopped).",
	}, []string{"outcome"})

	SamplesRequested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cmt",
		Name:      "samples_requested_total",
		Help:      "Light-client symbol samples requested, by layer.",
	}, []string{"layer"})

	PeelingQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cmt",
		Name:      "peeling_queue_depth",
		Help:      "Current size of the degree-1 queue in the active peeling engine.",
	})
)

func init() {
	prometheus.MustRegister(
		TreeBuildSeconds,
		DecodeOutcomesTotal,
		SamplesRequested,
		PeelingQueueDepth,
	)
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DecodeOutcome records one decode session's terminal outcome.
func DecodeOutcome(outcome string) {
	DecodeOutcomesTotal.WithLabelValues(outcome).Inc()
}

// ObserveTreeBuild records how long a tree build took.
func ObserveTreeBuild(d time.Duration) {
	TreeBuildSeconds.Observe(d.Seconds())
}

// RecordSamplesRequested records a batch of samples drawn at layer.
func RecordSamplesRequested(layer int, count int) {
	SamplesRequested.WithLabelValues(strconv.Itoa(layer)).Add(float64(count))
}

// SetPeelingQueueDepth records the degree-1 queue length of whichever
// layer's peeling engine is currently running in the decoder.
func SetPeelingQueueDepth(n int) {
	PeelingQueueDepth.Set(float64(n))
}
