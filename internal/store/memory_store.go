// SPDX-License-Identifier: MIT
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/streamforge/provisiond/internal/model"
)

// MemoryStore is an in-memory Repository used for unit tests and local
// prototyping. It is not durable.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]model.ChannelMetadata
	closed  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]model.ChannelMetadata)}
}

func (s *MemoryStore) FindByContentID(ctx context.Context, contentID string) (*model.ChannelMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	rec, ok := s.records[contentID]
	if !ok {
		return nil, nil
	}
	out := rec
	return &out, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, rec *model.ChannelMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.records[rec.ContentID] = *rec
	return nil
}

func (s *MemoryStore) ListFailed(ctx context.Context, limit int) ([]*model.ChannelMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	var failed []*model.ChannelMetadata
	for _, rec := range s.records {
		if rec.Status == model.StatusFailed {
			out := rec
			failed = append(failed, &out)
		}
	}
	sort.Slice(failed, func(i, j int) bool {
		if failed[i].LastProvisionedAt == failed[j].LastProvisionedAt {
			return failed[i].ContentID < failed[j].ContentID
		}
		return failed[i].LastProvisionedAt < failed[j].LastProvisionedAt
	})
	if limit > 0 && len(failed) > limit {
		failed = failed[:limit]
	}
	return failed, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
