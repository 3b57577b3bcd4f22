// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provisiond_messages_total",
		Help: "Upload event messages handled by verdict",
	}, []string{"verdict"}) // verdict=ack|nack|poison

	DecodeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provisiond_decode_errors_total",
		Help: "Message decode failures by reason",
	}, []string{"reason"}) // reason=base64|json|event_type|payload

	PoisonDropsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "provisiond_poison_drops_total",
		Help: "Messages acked and dropped after exhausting delivery attempts",
	})

	NotifyPublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provisiond_notify_publish_total",
		Help: "Playback-ready notification publishes by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	AlertEmitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provisiond_alert_emit_total",
		Help: "Alerting sink emissions by outcome",
	}, []string{"outcome"})
)

// RecordVerdict records the final ack/nack/poison decision for a message.
func RecordVerdict(verdict string) {
	MessagesTotal.WithLabelValues(verdict).Inc()
}

// RecordDecodeError counts a permanent decode failure.
func RecordDecodeError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	DecodeErrorsTotal.WithLabelValues(reason).Inc()
}

// RecordNotifyPublish records a notification publish attempt outcome.
func RecordNotifyPublish(ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	NotifyPublishTotal.WithLabelValues(outcome).Inc()
}

// RecordAlertEmit records an alerting sink emission outcome.
func RecordAlertEmit(ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	AlertEmitTotal.WithLabelValues(outcome).Inc()
}
