// SPDX-License-Identifier: MIT

// Package event defines the upload-completed event wire format and the
// pub/sub push envelope it arrives in.
package event

import (
	"github.com/streamforge/provisiond/internal/model"
)

// TypeUploaded is the only event type the provisioning pipeline accepts.
const TypeUploaded = "media.uploaded"

// Acknowledgement carries optional delivery hints from the producer.
// The pipeline logs them and otherwise treats them as opaque.
type Acknowledgement struct {
	Mode     string `json:"mode,omitempty"`
	Deadline string `json:"deadline,omitempty"`
}

// Payload is the body of an UploadCompleted event.
type Payload struct {
	ContentID       string                    `json:"contentId"`
	TenantID        string                    `json:"tenantId"`
	ContentType     model.Classification      `json:"contentType"`
	SourceURI       string                    `json:"sourceUri,omitempty"`
	SourceGcsURI    string                    `json:"sourceGcsUri,omitempty"` // legacy producer field
	Checksum        string                    `json:"checksum"`
	DurationSeconds int                       `json:"durationSeconds"`
	IngestRegion    string                    `json:"ingestRegion"`
	DRM             *model.DRM                `json:"drm,omitempty"`
	Availability    *model.AvailabilityWindow `json:"availabilityWindow,omitempty"`
	GeoRestrictions *model.GeoRestrictions    `json:"geoRestrictions,omitempty"`
	Acknowledgement *Acknowledgement          `json:"acknowledgement,omitempty"`
}

// Source returns the asset location, preferring the canonical field over the
// legacy producer spelling.
func (p Payload) Source() string {
	if p.SourceURI != "" {
		return p.SourceURI
	}
	return p.SourceGcsURI
}

// UploadCompleted is the decoded upload event. Unknown top-level fields on
// the wire are ignored.
type UploadCompleted struct {
	EventID    string  `json:"eventId"`
	EventType  string  `json:"eventType"`
	Version    string  `json:"version,omitempty"`
	OccurredAt string  `json:"occurredAt,omitempty"`
	Data       Payload `json:"data"`
}

// PushMessage is the pub/sub push delivery envelope. Data is base64-encoded
// UTF-8 JSON. DeliveryAttempt is 1-based; zero means the substrate did not
// report it and the worker treats it as the first attempt.
type PushMessage struct {
	Data            string            `json:"data"`
	MessageID       string            `json:"messageId"`
	PublishTime     string            `json:"publishTime,omitempty"`
	DeliveryAttempt int               `json:"deliveryAttempt,omitempty"`
	Attributes      map[string]string `json:"attributes,omitempty"`
}

// Attempt normalises the delivery attempt counter.
func (m PushMessage) Attempt() int {
	if m.DeliveryAttempt < 1 {
		return 1
	}
	return m.DeliveryAttempt
}
