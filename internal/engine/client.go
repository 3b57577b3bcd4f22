// SPDX-License-Identifier: MIT

// Package engine talks to the external media engine that owns streaming
// channel lifecycles.
package engine

import (
	"context"

	"github.com/streamforge/provisiond/internal/model"
)

// Client is the remote channel lifecycle contract. Implementations must be
// safe for concurrent use.
type Client interface {
	CreateChannel(ctx context.Context, req *model.ChannelProvisioningRequest) (*model.ChannelProvisioningResult, error)
	DeleteChannel(ctx context.Context, channelID string) error
	RotateIngestKey(ctx context.Context, channelID string) error
}
