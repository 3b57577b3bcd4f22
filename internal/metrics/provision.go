// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProvisionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provisiond_provision_total",
		Help: "Channel provisioning attempts by classification and outcome",
	}, []string{"classification", "outcome"}) // outcome=ready|failed|idempotent

	ProvisionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "provisiond_provision_duration_seconds",
		Help:    "End-to-end provisioning latency per classification",
		Buckets: prometheus.DefBuckets,
	}, []string{"classification"})

	EngineCallRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provisiond_engine_call_retries_total",
		Help: "Engine createChannel retries inside the backoff envelope",
	}, []string{"classification"})
)

// RecordProvisionOutcome records a terminal provisioning outcome.
func RecordProvisionOutcome(classification, outcome string) {
	if classification == "" {
		classification = "unknown"
	}
	ProvisionTotal.WithLabelValues(classification, outcome).Inc()
}

// ObserveProvisionDuration records the latency of a provisioning call.
func ObserveProvisionDuration(classification string, seconds float64) {
	if classification == "" {
		classification = "unknown"
	}
	ProvisionDuration.WithLabelValues(classification).Observe(seconds)
}

// RecordEngineRetry counts a single retried engine call.
func RecordEngineRetry(classification string) {
	if classification == "" {
		classification = "unknown"
	}
	EngineCallRetries.WithLabelValues(classification).Inc()
}
