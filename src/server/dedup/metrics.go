package dedup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "swh_dedup"

var (
	contentsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "contents_total",
		Help:      "Content ids processed, by outcome.",
	}, []string{"outcome"})

	chunkingsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "chunkings_total",
		Help:      "Chunking method applications, by algorithm and outcome.",
	}, []string{"algo", "outcome"})

	chunkingDurationMetric = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "chunking_duration_seconds",
		Help:      "Time spent chunking one content with one method, by algorithm.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"algo"})

	fetchedBytesMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "fetched_bytes_total",
		Help:      "Bytes read from the object store.",
	})
)

const (
	outcomeDone      = "done"
	outcomeNotFound  = "not_found"
	outcomeFailed    = "failed"
	outcomeRecorded  = "recorded"
	outcomeDuplicate = "duplicate"
)
