// SPDX-License-Identifier: MIT

// Package notify fans playback-ready notifications out to downstream
// consumers.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/streamforge/provisiond/internal/log"
	"github.com/streamforge/provisiond/internal/model"
)

// PlaybackReady is the wire shape of the downstream notification.
type PlaybackReady struct {
	Metadata    model.ChannelMetadata `json:"metadata"`
	ManifestURL string                `json:"manifestUrl"`
	ExpiresAt   string                `json:"expiresAt"`
}

// Publisher emits playback-ready events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	PublishPlaybackReady(ctx context.Context, n PlaybackReady) error
}

// LogPublisher writes notifications to the structured log. Used in dry runs
// and local development where no broker is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{logger: log.WithComponent("notify")}
}

func (p *LogPublisher) PublishPlaybackReady(ctx context.Context, n PlaybackReady) error {
	p.logger.Info().
		Str(log.FieldContentID, n.Metadata.ContentID).
		Str(log.FieldChannelID, n.Metadata.ChannelID).
		Str("manifest_url", n.ManifestURL).
		Str("expires_at", n.ExpiresAt).
		Msg("playback ready")
	return nil
}
