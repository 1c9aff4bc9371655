package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	AggregateSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "insights",
		Name:      "aggregate_seconds",
		Help:      "Duration of analytics aggregation runs.",
		Buckets:   prometheus.DefBuckets,
	})
	SnapshotsCollectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "insights",
		Name:      "snapshots_collected_total",
		Help:      "Total snapshots collected and stored.",
	})
	CoderAPIErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "insights",
		Name:      "coder_api_errors_total",
		Help:      "Failed requests against the Coder API.",
	})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insights",
		Name:      "cache_hits_total",
		Help:      "Aggregate cache lookups by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(AggregateSeconds, SnapshotsCollectedTotal, CoderAPIErrorsTotal, CacheHitsTotal)
}
