// SPDX-License-Identifier: MIT

// Package alert is the side-channel for operational failures.
package alert

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/streamforge/provisiond/internal/log"
	"github.com/streamforge/provisiond/internal/metrics"
)

// UnknownContent is reported when a failure happens before the event could
// be parsed far enough to know which content it concerned.
const UnknownContent = "unknown"

// Sink receives operational failure notices. Implementations must be safe
// for concurrent use. Callers never propagate a sink error into their own
// result; Emit swallows them for that reason.
type Sink interface {
	IngestFailure(ctx context.Context, contentID string, cause error) error
}

// Emit reports a failure to the sink, logging and swallowing any error the
// sink itself produces.
func Emit(ctx context.Context, sink Sink, contentID string, cause error) {
	if sink == nil {
		return
	}
	if contentID == "" {
		contentID = UnknownContent
	}
	if err := sink.IngestFailure(ctx, contentID, cause); err != nil {
		metrics.RecordAlertEmit(false)
		logger := log.WithComponentFromContext(ctx, "alert")
		logger.Warn().
			Err(err).
			Str(log.FieldContentID, contentID).
			Msg("alert sink failed, dropping alert")
		return
	}
	metrics.RecordAlertEmit(true)
}

// LogSink writes alerts to the structured log. It is the default sink and
// a reasonable fallback when no pager integration is configured.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink() *LogSink {
	return &LogSink{logger: log.WithComponent("alert")}
}

func (s *LogSink) IngestFailure(ctx context.Context, contentID string, cause error) error {
	s.logger.Error().
		Err(cause).
		Str(log.FieldContentID, contentID).
		Msg("ingest failure")
	return nil
}
