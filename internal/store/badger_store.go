// SPDX-License-Identifier: MIT
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/streamforge/provisiond/internal/model"
)

const channelKeyPrefix = "chan:"

// BadgerStore is the default embedded Repository.
// Records are stored as JSON under "chan:<contentID>".
type BadgerStore struct {
	db *badger.DB
}

func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store at %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func (s *BadgerStore) FindByContentID(ctx context.Context, contentID string) (*model.ChannelMetadata, error) {
	key := []byte(channelKeyPrefix + contentID)
	var out model.ChannelMetadata
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *BadgerStore) Upsert(ctx context.Context, rec *model.ChannelMetadata) error {
	key := []byte(channelKeyPrefix + rec.ContentID)
	buf, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, buf)
	})
}

func (s *BadgerStore) ListFailed(ctx context.Context, limit int) ([]*model.ChannelMetadata, error) {
	var failed []*model.ChannelMetadata
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(channelKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec model.ChannelMetadata
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			if rec.Status == model.StatusFailed {
				out := rec
				failed = append(failed, &out)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Oldest failures first so sweeps make progress.
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
