package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/time/rate"

	"github.com/streamforge/provisiond/internal/abr"
	"github.com/streamforge/provisiond/internal/config"
	"github.com/streamforge/provisiond/internal/model"
	"github.com/streamforge/provisiond/internal/notify"
	"github.com/streamforge/provisiond/internal/provision"
	"github.com/streamforge/provisiond/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeEngine struct {
	requests []*model.ChannelProvisioningRequest
	failFor  map[string]error
}

func (e *fakeEngine) CreateChannel(_ context.Context, req *model.ChannelProvisioningRequest) (*model.ChannelProvisioningResult, error) {
	e.requests = append(e.requests, req)
	if err, ok := e.failFor[req.ContentID]; ok {
		return nil, err
	}
	return &model.ChannelProvisioningResult{
		ChannelID:      "ch-" + req.ContentID,
		OriginEndpoint: "https://origin.internal/" + req.ContentID,
	}, nil
}

func (e *fakeEngine) DeleteChannel(context.Context, string) error   { return nil }
func (e *fakeEngine) RotateIngestKey(context.Context, string) error { return nil }

type capturePublisher struct {
	published []notify.PlaybackReady
}

func (p *capturePublisher) PublishPlaybackReady(_ context.Context, n notify.PlaybackReady) error {
	p.published = append(p.published, n)
	return nil
}

type captureSink struct {
	alerts []string
}

func (s *captureSink) IngestFailure(_ context.Context, contentID string, _ error) error {
	s.alerts = append(s.alerts, contentID)
	return nil
}

func reconcileConfig(t *testing.T) *config.Config {
	t.Helper()
	ladder, err := abr.ParsePreset("480p|854x480|1200")
	require.NoError(t, err)
	return &config.Config{
		ManifestTTLSeconds:     3600,
		CDNBaseURL:             "https://cdn.example.com/",
		MaxProvisionRetries:    0,
		ReconcileInterval:      10 * time.Millisecond,
		ReconcileBatchLimit:    20,
		ReconcileDefaultTenant: "unknown-tenant",
		ReconcileHomeRegion:    "eu",
		ReelsLadder:            ladder,
		SeriesLadder:           ladder,
	}
}

func failedRecord(contentID string, retries int, at time.Time) *model.ChannelMetadata {
	return &model.ChannelMetadata{
		ContentID:         contentID,
		ChannelID:         model.PendingSentinel,
		Classification:    model.ClassificationReel,
		ManifestPath:      model.ManifestPath(contentID),
		OriginEndpoint:    model.PendingSentinel,
		CacheKey:          model.CacheKey(contentID, "sha256:aa"),
		Checksum:          "sha256:aa",
		Status:            model.StatusFailed,
		Retries:           retries,
		SourceAssetURI:    "s3://uploads/" + contentID + ".mp4",
		TenantID:          "tenant-a",
		IngestRegion:      "eu-west",
		LastProvisionedAt: model.Timestamp(at),
	}
}

func newReconciler(t *testing.T, repo store.Repository, eng *fakeEngine) (*Reconciler, *capturePublisher, *captureSink) {
	t.Helper()
	cfg := reconcileConfig(t)
	pub := &capturePublisher{}
	sink := &captureSink{}
	prov := provision.New(repo, eng, cfg)
	r := New(repo, prov, pub, sink, cfg).WithLimiter(rate.NewLimiter(rate.Inf, 0))
	return r, pub, sink
}

func TestReconcileFailedRecoversRecords(t *testing.T) {
	repo := store.NewMemoryStore()
	t.Cleanup(func() { _ = repo.Close() })
	base := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, failedRecord("c1", 1, base)))
	require.NoError(t, repo.Upsert(ctx, failedRecord("c2", 0, base.Add(time.Minute))))

	eng := &fakeEngine{}
	r, pub, sink := newReconciler(t, repo, eng)

	recovered, err := r.ReconcileFailed(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, recovered)
	assert.Empty(t, sink.alerts)
	assert.Len(t, pub.published, 2)

	for id, wantRetries := range map[string]int{"c1": 2, "c2": 1} {
		rec, err := repo.FindByContentID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, model.StatusReady, rec.Status, id)
		assert.Equal(t, wantRetries, rec.Retries, id)
		assert.Equal(t, "ch-"+id, rec.ChannelID, id)
	}
}

func TestReconcileFailedKeepsFailingRecordAndMovesOn(t *testing.T) {
	repo := store.NewMemoryStore()
	t.Cleanup(func() { _ = repo.Close() })
	base := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, failedRecord("c1", 0, base)))
	require.NoError(t, repo.Upsert(ctx, failedRecord("c2", 0, base.Add(time.Minute))))

	eng := &fakeEngine{failFor: map[string]error{"c1": errors.New("still down")}}
	r, pub, sink := newReconciler(t, repo, eng)

	recovered, err := r.ReconcileFailed(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)
	assert.Equal(t, []string{"c1"}, sink.alerts)
	assert.Len(t, pub.published, 1)

	rec, err := repo.FindByContentID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, rec.Status)
	assert.Equal(t, 1, rec.Retries)
}

func TestReconcileSynthesizesDefaultsForSparseRecords(t *testing.T) {
	repo := store.NewMemoryStore()
	t.Cleanup(func() { _ = repo.Close() })
	ctx := context.Background()
	rec := failedRecord("c3", 0, time.Now())
	rec.TenantID = ""
	rec.IngestRegion = ""
	require.NoError(t, repo.Upsert(ctx, rec))

	eng := &fakeEngine{}
	r, _, _ := newReconciler(t, repo, eng)

	_, err := r.ReconcileFailed(ctx, 20)
	require.NoError(t, err)

	require.Len(t, eng.requests, 1)
	req := eng.requests[0]
	assert.Equal(t, "unknown-tenant", req.Metadata["tenantId"])
	assert.Equal(t, "eu", req.Metadata["ingestRegion"])
	assert.Equal(t, "1", req.Metadata["durationSeconds"])
}

func TestReconcileFailedHonorsBatchLimit(t *testing.T) {
	repo := store.NewMemoryStore()
	t.Cleanup(func() { _ = repo.Close() })
	base := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()
	for i, id := range []string{"c1", "c2", "c3"} {
		require.NoError(t, repo.Upsert(ctx, failedRecord(id, 0, base.Add(time.Duration(i)*time.Minute))))
	}

	eng := &fakeEngine{}
	r, _, _ := newReconciler(t, repo, eng)

	recovered, err := r.ReconcileFailed(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, recovered)
	// Oldest failures replay first.
	assert.Equal(t, "c1", eng.requests[0].ContentID)
	assert.Equal(t, "c2", eng.requests[1].ContentID)
}

func TestReconcileEmptyBacklogIsANoOp(t *testing.T) {
	repo := store.NewMemoryStore()
	t.Cleanup(func() { _ = repo.Close() })
	eng := &fakeEngine{}
	r, pub, _ := newReconciler(t, repo, eng)

	recovered, err := r.ReconcileFailed(context.Background(), 20)
	require.NoError(t, err)
	assert.Zero(t, recovered)
	assert.Empty(t, eng.requests)
	assert.Empty(t, pub.published)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	repo := store.NewMemoryStore()
	t.Cleanup(func() { _ = repo.Close() })
	r, _, _ := newReconciler(t, repo, &fakeEngine{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("reconciler did not stop after cancellation")
	}
}
