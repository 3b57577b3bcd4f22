// SPDX-License-Identifier: MIT
package event

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/streamforge/provisiond/internal/metrics"
)

// Decode failures are permanent: redelivering the same bytes cannot succeed.
var (
	ErrBadEncoding          = errors.New("message data is not valid base64")
	ErrBadJSON              = errors.New("message data is not valid JSON")
	ErrUnsupportedEventType = errors.New("unsupported event type")
	ErrInvalidPayload       = errors.New("invalid event payload")
)

// Permanent reports whether err is a decode-class error that no amount of
// redelivery will fix.
func Permanent(err error) bool {
	return errors.Is(err, ErrBadEncoding) ||
		errors.Is(err, ErrBadJSON) ||
		errors.Is(err, ErrUnsupportedEventType) ||
		errors.Is(err, ErrInvalidPayload)
}

// Decode unpacks a push message into an UploadCompleted event. It rejects
// anything that is not a well-formed media.uploaded event.
func Decode(msg PushMessage) (*UploadCompleted, error) {
	raw, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		metrics.RecordDecodeError("base64")
		return nil, fmt.Errorf("%w: %v", ErrBadEncoding, err)
	}

	var ev UploadCompleted
	if err := json.Unmarshal(raw, &ev); err != nil {
		metrics.RecordDecodeError("json")
		return nil, fmt.Errorf("%w: %v", ErrBadJSON, err)
	}

	if ev.EventType != TypeUploaded {
		metrics.RecordDecodeError("event_type")
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEventType, ev.EventType)
	}

	if err := ev.Validate(); err != nil {
		metrics.RecordDecodeError("payload")
		return nil, err
	}
	return &ev, nil
}

// Validate checks the payload fields the provisioner depends on.
func (e *UploadCompleted) Validate() error {
	switch {
	case e.Data.ContentID == "":
		return fmt.Errorf("%w: missing contentId", ErrInvalidPayload)
	case e.Data.Checksum == "":
		return fmt.Errorf("%w: missing checksum", ErrInvalidPayload)
	case e.Data.Source() == "":
		return fmt.Errorf("%w: missing sourceUri", ErrInvalidPayload)
	case !e.Data.ContentType.Valid():
		return fmt.Errorf("%w: contentType %q", ErrInvalidPayload, e.Data.ContentType)
	case e.Data.DurationSeconds <= 0:
		return fmt.Errorf("%w: durationSeconds must be positive", ErrInvalidPayload)
	}
	return nil
}

// Encode renders an event into the base64 wire form used by the push
// envelope. Producers and replay tooling use it to synthesize deliveries.
func Encode(ev *UploadCompleted) (string, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("marshal upload event: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
