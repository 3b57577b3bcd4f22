// SPDX-License-Identifier: MIT
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
// HTTP spans are attributed by the otelhttp middleware; these cover the
// domain spans layered on top of it.
const (
	// Provisioning attributes
	ContentIDKey      = "provision.content_id"
	ChannelIDKey      = "provision.channel_id"
	ClassificationKey = "provision.classification"
	StatusKey         = "provision.status"
	RetriesKey        = "provision.retries"

	// Message attributes
	MessageIDKey      = "message.id"
	MessageAttemptKey = "message.attempt"
	MessageVerdictKey = "message.verdict"
	MessageEventIDKey = "message.event_id"

	// Error attributes
	ErrorKey        = "error"
	ErrorTypeKey    = "error.type"
	ErrorMessageKey = "error.message"
)

// ProvisionAttributes creates provisioning span attributes.
func ProvisionAttributes(contentID, channelID, classification, status string, retries int) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 5)
	if contentID != "" {
		attrs = append(attrs, attribute.String(ContentIDKey, contentID))
	}
	if channelID != "" {
		attrs = append(attrs, attribute.String(ChannelIDKey, channelID))
	}
	if classification != "" {
		attrs = append(attrs, attribute.String(ClassificationKey, classification))
	}
	if status != "" {
		attrs = append(attrs, attribute.String(StatusKey, status))
	}
	attrs = append(attrs, attribute.Int(RetriesKey, retries))
	return attrs
}

// MessageAttributes creates pub/sub message span attributes.
func MessageAttributes(messageID, eventID, verdict string, attempt int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(MessageIDKey, messageID),
		attribute.String(MessageEventIDKey, eventID),
		attribute.String(MessageVerdictKey, verdict),
		attribute.Int(MessageAttemptKey, attempt),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(err error, errorType string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
	if err != nil {
		attrs = append(attrs, attribute.String(ErrorMessageKey, err.Error()))
	}
	return attrs
}
