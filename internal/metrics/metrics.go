package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldconditions_provider_calls_total",
			Help: "Total upstream provider HTTP attempts",
		},
		[]string{"provider", "outcome"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fieldconditions_provider_latency_seconds",
			Help:    "Upstream provider call latency in seconds, retries included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldconditions_pipeline_runs_total",
			Help: "Total conditions requests by terminal stage",
		},
		[]string{"stage"},
	)

	// BreakerState is 0 for closed, 1 for half-open and 2 for open.
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fieldconditions_provider_breaker_state",
			Help: "Circuit breaker state per provider as last sampled",
		},
		[]string{"provider"},
	)
)
