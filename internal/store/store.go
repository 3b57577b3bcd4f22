// SPDX-License-Identifier: MIT

// Package store provides the durable channel metadata repository.
package store

import (
	"context"
	"errors"

	"github.com/streamforge/provisiond/internal/model"
)

var (
	// ErrClosed is returned by operations on a closed repository.
	ErrClosed = errors.New("repository is closed")
)

// Repository is the system-of-record for channel metadata.
//
// Design intent:
// - FindByContentID returns (nil, nil) when no record exists; callers must
//   check for a nil record before using it.
// - Upsert is a full-record replace keyed by ContentID and must be durable
//   before returning. Concurrent upserts for the same ContentID are
//   serialized by the store (last writer wins at record granularity).
// - ListFailed returns records with status "failed", oldest
//   lastProvisionedAt first, so repeated sweeps make progress instead of
//   starving newer failures.
type Repository interface {
	FindByContentID(ctx context.Context, contentID string) (*model.ChannelMetadata, error)
	Upsert(ctx context.Context, rec *model.ChannelMetadata) error
	ListFailed(ctx context.Context, limit int) ([]*model.ChannelMetadata, error)
	Close() error
}
