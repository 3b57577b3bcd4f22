// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReconcileSweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "provisiond_reconcile_sweeps_total",
		Help: "Total reconciliation sweeps executed",
	})

	ReconcileRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provisiond_reconcile_records_total",
		Help: "Failed records replayed by outcome",
	}, []string{"outcome"}) // outcome=recovered|failed

	ReconcileBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "provisiond_reconcile_backlog",
		Help: "Failed records seen in the last sweep",
	})
)

// RecordReconcileResult records one replayed record's outcome.
func RecordReconcileResult(recovered bool) {
	outcome := "recovered"
	if !recovered {
		outcome = "failed"
	}
	ReconcileRecordsTotal.WithLabelValues(outcome).Inc()
}
