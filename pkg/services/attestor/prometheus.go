package attestor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics for monitoring service.
var (
	attestedHeight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Help:      "Chain state height of the latest attestation",
			Name:      "attested_height",
			Namespace: "attestree",
		},
	)
	attestedLeaves = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Help:      "Number of leaves in the latest attestation tree",
			Name:      "attested_leaves",
			Namespace: "attestree",
		},
	)
	attestationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of failed attestation attempts",
			Name:      "attestation_failures_total",
			Namespace: "attestree",
		},
	)
	attestationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Help:      "Attestation tree building time",
			Name:      "attestation_duration_seconds",
			Namespace: "attestree",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		},
	)
)

func init() {
	prometheus.MustRegister(
		attestedHeight,
		attestedLeaves,
		attestationFailures,
		attestationDuration,
	)
}

func updateAttestationMetrics(height uint32, leaves uint32, d time.Duration) {
	attestedHeight.Set(float64(height))
	attestedLeaves.Set(float64(leaves))
	attestationDuration.Observe(d.Seconds())
}
