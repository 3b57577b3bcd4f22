// SPDX-License-Identifier: MIT

// Package reconcile sweeps failed channel records and replays them through
// the provisioning pipeline.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/streamforge/provisiond/internal/alert"
	"github.com/streamforge/provisiond/internal/config"
	"github.com/streamforge/provisiond/internal/event"
	"github.com/streamforge/provisiond/internal/log"
	"github.com/streamforge/provisiond/internal/metrics"
	"github.com/streamforge/provisiond/internal/model"
	"github.com/streamforge/provisiond/internal/notify"
	"github.com/streamforge/provisiond/internal/store"
)

// Provisioner is the slice of the provisioning pipeline the reconciler replays
// records through.
type Provisioner interface {
	ProvisionFromUpload(ctx context.Context, ev *event.UploadCompleted) (*model.ChannelMetadata, error)
}

// Reconciler periodically lists failed records and re-drives each through
// provisioning with a synthesized upload event. Replays are paced so a large
// backlog cannot stampede the engine.
type Reconciler struct {
	repo        store.Repository
	provisioner Provisioner
	publisher   notify.Publisher
	alerts      alert.Sink
	cfg         *config.Config
	limiter     *rate.Limiter
	now         func() time.Time
}

func New(repo store.Repository, prov Provisioner, pub notify.Publisher, alerts alert.Sink, cfg *config.Config) *Reconciler {
	return &Reconciler{
		repo:        repo,
		provisioner: prov,
		publisher:   pub,
		alerts:      alerts,
		cfg:         cfg,
		limiter:     rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		now:         time.Now,
	}
}

// WithLimiter overrides the replay pacing, for tests.
func (r *Reconciler) WithLimiter(l *rate.Limiter) *Reconciler {
	r.limiter = l
	return r
}

// WithClock overrides the wall clock, for tests.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Run sweeps on the configured interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	logger := log.WithComponent("reconciler")
	logger.Info().
		Dur("interval", r.cfg.ReconcileInterval).
		Int("batch_limit", r.cfg.ReconcileBatchLimit).
		Msg("reconciler started")

	ticker := time.NewTicker(r.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("reconciler stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.ReconcileFailed(ctx, r.cfg.ReconcileBatchLimit); err != nil {
				logger.Error().Err(err).Msg("reconcile sweep failed")
			}
		}
	}
}

// ReconcileFailed replays up to limit failed records, oldest first, and
// returns how many recovered. A record that fails again stays failed with its
// retry counter bumped by the provisioner; the sweep moves on.
func (r *Reconciler) ReconcileFailed(ctx context.Context, limit int) (int, error) {
	logger := log.WithComponentFromContext(ctx, "reconciler")

	failed, err := r.repo.ListFailed(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list failed records: %w", err)
	}
	metrics.ReconcileSweepsTotal.Inc()
	metrics.ReconcileBacklog.Set(float64(len(failed)))
	if len(failed) == 0 {
		return 0, nil
	}
	logger.Info().Int("backlog", len(failed)).Msg("replaying failed records")

	recovered := 0
	for _, rec := range failed {
		if err := r.limiter.Wait(ctx); err != nil {
			return recovered, err
		}

		ev := r.synthesize(rec)
		got, err := r.provisioner.ProvisionFromUpload(ctx, ev)
		if err != nil {
			metrics.RecordReconcileResult(false)
			alert.Emit(ctx, r.alerts, rec.ContentID, err)
			logger.Warn().
				Err(err).
				Str(log.FieldContentID, rec.ContentID).
				Int(log.FieldRetries, rec.Retries).
				Msg("record failed again")
			continue
		}
		metrics.RecordReconcileResult(true)
		recovered++

		r.publish(ctx, got)
		logger.Info().
			Str(log.FieldContentID, got.ContentID).
			Str(log.FieldChannelID, got.ChannelID).
			Msg("record recovered")
	}
	return recovered, nil
}

// synthesize rebuilds an upload event from a stored record. Fields the record
// does not retain fall back to configured defaults.
func (r *Reconciler) synthesize(rec *model.ChannelMetadata) *event.UploadCompleted {
	tenant := rec.TenantID
	if tenant == "" {
		tenant = r.cfg.ReconcileDefaultTenant
	}
	region := rec.IngestRegion
	if region == "" {
		region = r.cfg.ReconcileHomeRegion
	}
	return &event.UploadCompleted{
		EventID:    "reconcile-" + rec.ContentID,
		EventType:  event.TypeUploaded,
		OccurredAt: model.Timestamp(r.now()),
		Data: event.Payload{
			ContentID:       rec.ContentID,
			TenantID:        tenant,
			ContentType:     rec.Classification,
			SourceURI:       rec.SourceAssetURI,
			Checksum:        rec.Checksum,
			DurationSeconds: 1,
			IngestRegion:    region,
			DRM:             rec.DRM,
			Availability:    rec.AvailabilityWindow,
			GeoRestrictions: rec.GeoRestrictions,
		},
	}
}

func (r *Reconciler) publish(ctx context.Context, rec *model.ChannelMetadata) {
	expiresAt := model.Timestamp(r.now().Add(time.Duration(r.cfg.ManifestTTLSeconds) * time.Second))
	n := notify.PlaybackReady{
		Metadata:    *rec,
		ManifestURL: rec.PlaybackURL,
		ExpiresAt:   expiresAt,
	}
	if err := r.publisher.PublishPlaybackReady(ctx, n); err != nil {
		// The record is already ready; losing the notification is recoverable
		// by a redelivered upload event, so it is not worth failing the sweep.
		metrics.RecordNotifyPublish(false)
		logger := log.WithComponentFromContext(ctx, "reconciler")
		logger.Warn().
			Err(err).
			Str(log.FieldContentID, rec.ContentID).
			Msg("playback-ready publish failed after recovery")
		return
	}
	metrics.RecordNotifyPublish(true)
}
