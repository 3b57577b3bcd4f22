package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/streamforge/provisiond/internal/model"
)

func record(contentID string, status model.Status, provisionedAt time.Time) *model.ChannelMetadata {
	return &model.ChannelMetadata{
		ContentID:         contentID,
		ChannelID:         model.PendingSentinel,
		Classification:    model.ClassificationReel,
		ManifestPath:      model.ManifestPath(contentID),
		OriginEndpoint:    model.PendingSentinel,
		CacheKey:          model.CacheKey(contentID, "sum"),
		Checksum:          "sum",
		Status:            status,
		SourceAssetURI:    "gs://bucket/" + contentID,
		LastProvisionedAt: model.Timestamp(provisionedAt),
	}
}

// repositoryContract runs the behaviors every Repository implementation
// must satisfy.
func repositoryContract(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	// Missing record is (nil, nil).
	got, err := repo.FindByContentID(ctx, "absent")
	require.NoError(t, err)
	require.Nil(t, got)

	// Upsert then find returns an equal record.
	rec := record("c1", model.StatusProvisioning, base)
	require.NoError(t, repo.Upsert(ctx, rec))
	got, err = repo.FindByContentID(ctx, "c1")
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(rec, got))

	// Upsert replaces the whole record.
	rec.Status = model.StatusReady
	rec.ChannelID = "ch-1"
	rec.OriginEndpoint = "origin-1"
	require.NoError(t, repo.Upsert(ctx, rec))
	got, err = repo.FindByContentID(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, model.StatusReady, got.Status)
	require.Equal(t, "ch-1", got.ChannelID)

	// ListFailed returns only failed records, oldest first, bounded by limit.
	require.NoError(t, repo.Upsert(ctx, record("f-new", model.StatusFailed, base.Add(2*time.Hour))))
	require.NoError(t, repo.Upsert(ctx, record("f-old", model.StatusFailed, base.Add(-2*time.Hour))))
	require.NoError(t, repo.Upsert(ctx, record("f-mid", model.StatusFailed, base)))

	failed, err := repo.ListFailed(ctx, 2)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	require.Equal(t, "f-old", failed[0].ContentID)
	require.Equal(t, "f-mid", failed[1].ContentID)

	failed, err = repo.ListFailed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 3)
	for _, f := range failed {
		require.Equal(t, model.StatusFailed, f.Status)
	}
}

func TestMemoryStoreContract(t *testing.T) {
	repo := NewMemoryStore()
	t.Cleanup(func() { _ = repo.Close() })
	repositoryContract(t, repo)
}

func TestBadgerStoreContract(t *testing.T) {
	repo, err := OpenBadgerStore(filepath.Join(t.TempDir(), "badger"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	repositoryContract(t, repo)
}

func TestSQLiteStoreContract(t *testing.T) {
	repo, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "channels.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	repositoryContract(t, repo)
}

func TestInstrumentedStoreDelegates(t *testing.T) {
	repo := NewInstrumentedStore(NewMemoryStore(), "memory")
	t.Cleanup(func() { _ = repo.Close() })
	repositoryContract(t, repo)
}

func TestMemoryStoreClosedOps(t *testing.T) {
	repo := NewMemoryStore()
	require.NoError(t, repo.Close())

	_, err := repo.FindByContentID(context.Background(), "c1")
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, repo.Upsert(context.Background(), record("c1", model.StatusReady, time.Now())), ErrClosed)
}
