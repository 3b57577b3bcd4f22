// SPDX-License-Identifier: MIT

// Package provision turns upload events into durable, engine-backed
// streaming channels. It is an idempotency gate in front of a small
// per-record state machine:
//
//	(absent) --insert--> provisioning
//	provisioning --engine success--> ready
//	provisioning --engine terminal failure--> failed
//	failed --reconcile or new event--> provisioning   (retries++)
//	ready --new event, same checksum--> ready         (no-op)
//	ready --new event, different checksum--> provisioning (retries++)
//	ready --admin retire--> retired
package provision

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/streamforge/provisiond/internal/abr"
	"github.com/streamforge/provisiond/internal/config"
	"github.com/streamforge/provisiond/internal/engine"
	"github.com/streamforge/provisiond/internal/event"
	"github.com/streamforge/provisiond/internal/log"
	"github.com/streamforge/provisiond/internal/metrics"
	"github.com/streamforge/provisiond/internal/model"
	"github.com/streamforge/provisiond/internal/store"
	"github.com/streamforge/provisiond/internal/telemetry"
)

var (
	// ErrRetired rejects provisioning attempts against a retired record;
	// the admin surface must re-register the content first.
	ErrRetired = errors.New("content is retired")

	// ErrNotFound is returned by admin operations on unknown content.
	ErrNotFound = errors.New("channel metadata not found")

	// ErrBadTransition rejects a lifecycle change the state machine forbids.
	ErrBadTransition = errors.New("invalid status transition")
)

// Provisioner owns the provisioning state machine. All collaborators are
// injected; the Provisioner itself keeps no mutable state between calls.
type Provisioner struct {
	repo   store.Repository
	engine engine.Client
	cfg    *config.Config
	now    func() time.Time
}

func New(repo store.Repository, eng engine.Client, cfg *config.Config) *Provisioner {
	return &Provisioner{repo: repo, engine: eng, cfg: cfg, now: time.Now}
}

// WithClock overrides the wall clock, for tests.
func (p *Provisioner) WithClock(now func() time.Time) *Provisioner {
	p.now = now
	return p
}

// ProvisionFromUpload drives one upload event through the state machine and
// returns the terminal ready record. A record that is already ready for the
// same checksum is returned unchanged without touching the engine or store.
func (p *Provisioner) ProvisionFromUpload(ctx context.Context, ev *event.UploadCompleted) (*model.ChannelMetadata, error) {
	contentID := ev.Data.ContentID
	ctx = log.ContextWithContentID(ctx, contentID)
	ctx, span := telemetry.Tracer("provisiond/provision").Start(ctx, "provision.channel")
	defer span.End()
	logger := log.WithComponentFromContext(ctx, "provisioner")
	classification := ev.Data.ContentType
	start := p.now()

	existing, err := p.repo.FindByContentID(ctx, contentID)
	if err != nil {
		span.SetAttributes(telemetry.ErrorAttributes(err, "store")...)
		return nil, fmt.Errorf("lookup %s: %w", contentID, err)
	}

	// Idempotency gate: a re-delivered event for an unchanged asset is a no-op.
	if existing != nil && existing.Status == model.StatusReady && existing.Checksum == ev.Data.Checksum {
		logger.Debug().
			Str(log.FieldChecksum, ev.Data.Checksum).
			Msg("record already ready for checksum, returning unchanged")
		metrics.RecordProvisionOutcome(string(classification), "idempotent")
		span.SetAttributes(telemetry.ProvisionAttributes(contentID, existing.ChannelID, string(classification), string(existing.Status), existing.Retries)...)
		return existing, nil
	}

	if existing != nil && !model.CanTransition(existing.Status, model.StatusProvisioning) {
		span.SetAttributes(telemetry.ErrorAttributes(ErrRetired, "lifecycle")...)
		return nil, fmt.Errorf("%w: %s", ErrRetired, contentID)
	}

	req := p.buildRequest(ev)
	pre := p.buildPreRecord(ev, existing, req)
	if err := p.repo.Upsert(ctx, pre); err != nil {
		return nil, fmt.Errorf("persist provisioning record %s: %w", contentID, err)
	}
	logger.Info().
		Str(log.FieldClassification, string(classification)).
		Str(log.FieldTenantID, ev.Data.TenantID).
		Str(log.FieldIngestRegion, ev.Data.IngestRegion).
		Str(log.FieldCacheKey, req.CacheKey).
		Int(log.FieldRetries, pre.Retries).
		Msg("provisioning channel")

	var result *model.ChannelProvisioningResult
	err = withRetry(ctx, p.cfg.MaxProvisionRetries, string(classification), func() error {
		var engineErr error
		result, engineErr = p.engine.CreateChannel(ctx, req)
		return engineErr
	})
	if err != nil {
		failed := *pre
		failed.Status = model.StatusFailed
		failed.Retries = pre.Retries + 1
		failed.LastProvisionedAt = model.Timestamp(p.now())
		if upsertErr := p.repo.Upsert(ctx, &failed); upsertErr != nil {
			logger.Error().Err(upsertErr).Msg("failed to persist failed record")
		}
		metrics.RecordProvisionOutcome(string(classification), "failed")
		span.SetAttributes(telemetry.ProvisionAttributes(contentID, "", string(classification), string(failed.Status), failed.Retries)...)
		span.SetAttributes(telemetry.ErrorAttributes(err, "engine")...)
		return nil, fmt.Errorf("provision %s: %w", contentID, err)
	}

	final := *pre
	final.ChannelID = result.ChannelID
	final.OriginEndpoint = result.OriginEndpoint
	final.Status = model.StatusReady
	final.LastProvisionedAt = model.Timestamp(p.now())
	if result.ManifestPath != "" {
		final.ManifestPath = result.ManifestPath
	}
	if playbackURL, err := p.resolvePlayback(result, final.ManifestPath); err == nil && playbackURL != "" {
		final.PlaybackURL = playbackURL
	}
	if err := p.repo.Upsert(ctx, &final); err != nil {
		return nil, fmt.Errorf("persist ready record %s: %w", contentID, err)
	}

	metrics.RecordProvisionOutcome(string(classification), "ready")
	metrics.ObserveProvisionDuration(string(classification), p.now().Sub(start).Seconds())
	span.SetAttributes(telemetry.ProvisionAttributes(contentID, final.ChannelID, string(classification), string(final.Status), final.Retries)...)
	logger.Info().
		Str(log.FieldChannelID, final.ChannelID).
		Str(log.FieldManifestPath, final.ManifestPath).
		Str(log.FieldNewStatus, string(final.Status)).
		Msg("channel ready")
	return &final, nil
}

// Retire transitions a record to retired after deleting its engine channel.
// Retired is terminal; only an external re-registration revives the content.
func (p *Provisioner) Retire(ctx context.Context, contentID string) (*model.ChannelMetadata, error) {
	rec, err := p.repo.FindByContentID(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, contentID)
	}
	if !model.CanTransition(rec.Status, model.StatusRetired) {
		return nil, fmt.Errorf("%w: cannot retire %s from status %s", ErrBadTransition, contentID, rec.Status)
	}
	if rec.Assigned() {
		if err := p.engine.DeleteChannel(ctx, rec.ChannelID); err != nil {
			return nil, fmt.Errorf("delete engine channel %s: %w", rec.ChannelID, err)
		}
	}
	retired := *rec
	retired.Status = model.StatusRetired
	retired.LastProvisionedAt = model.Timestamp(p.now())
	if err := p.repo.Upsert(ctx, &retired); err != nil {
		return nil, err
	}
	logger := log.WithComponentFromContext(ctx, "provisioner")
	logger.Info().
		Str(log.FieldContentID, contentID).
		Str(log.FieldOldStatus, string(rec.Status)).
		Str(log.FieldNewStatus, string(model.StatusRetired)).
		Msg("channel retired")
	return &retired, nil
}

// RotateIngestKey rotates the engine-side ingest key of a ready channel.
func (p *Provisioner) RotateIngestKey(ctx context.Context, contentID string) error {
	rec, err := p.repo.FindByContentID(ctx, contentID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, contentID)
	}
	if !rec.Assigned() {
		return fmt.Errorf("channel for %s has no engine assignment", contentID)
	}
	return p.engine.RotateIngestKey(ctx, rec.ChannelID)
}

func (p *Provisioner) ladderFor(c model.Classification) ([]abr.Variant, string, string) {
	if c == model.ClassificationReel {
		return p.cfg.ReelsLadder, p.cfg.ReelsIngestPool, p.cfg.ReelsEgressPool
	}
	return p.cfg.SeriesLadder, p.cfg.SeriesIngestPool, p.cfg.SeriesEgressPool
}

func (p *Provisioner) buildRequest(ev *event.UploadCompleted) *model.ChannelProvisioningRequest {
	data := ev.Data
	ladder, ingestPool, egressPool := p.ladderFor(data.ContentType)

	return &model.ChannelProvisioningRequest{
		ContentID:          data.ContentID,
		Classification:     data.ContentType,
		SourceURI:          data.Source(),
		IngestPool:         ingestPool,
		EgressPool:         egressPool,
		AbrLadder:          ladder,
		OutputBucket:       p.cfg.ManifestBucket,
		ManifestPath:       model.ManifestPath(data.ContentID),
		CacheKey:           model.CacheKey(data.ContentID, data.Checksum),
		DRM:                data.DRM,
		AvailabilityWindow: data.Availability,
		GeoRestrictions:    data.GeoRestrictions,
		Metadata: map[string]string{
			"tenantId":        data.TenantID,
			"checksum":        data.Checksum,
			"ingestRegion":    data.IngestRegion,
			"durationSeconds": strconv.Itoa(data.DurationSeconds),
			"signingKeyId":    p.cfg.SigningKeyID,
			"dryRun":          strconv.FormatBool(p.cfg.DryRun),
		},
	}
}

func (p *Provisioner) buildPreRecord(ev *event.UploadCompleted, existing *model.ChannelMetadata, req *model.ChannelProvisioningRequest) *model.ChannelMetadata {
	pre := &model.ChannelMetadata{
		ContentID:          req.ContentID,
		ChannelID:          model.PendingSentinel,
		Classification:     req.Classification,
		ManifestPath:       req.ManifestPath,
		OriginEndpoint:     model.PendingSentinel,
		CacheKey:           req.CacheKey,
		Checksum:           ev.Data.Checksum,
		Status:             model.StatusProvisioning,
		Retries:            0,
		SourceAssetURI:     req.SourceURI,
		TenantID:           ev.Data.TenantID,
		IngestRegion:       ev.Data.IngestRegion,
		LastProvisionedAt:  model.Timestamp(p.now()),
		DRM:                ev.Data.DRM,
		AvailabilityWindow: ev.Data.Availability,
		GeoRestrictions:    ev.Data.GeoRestrictions,
	}
	if playbackURL, err := model.ResolvePlaybackURL(p.cfg.CDNBaseURL, req.ManifestPath); err == nil {
		pre.PlaybackURL = playbackURL
	}
	if existing != nil {
		pre.ChannelID = existing.ChannelID
		pre.OriginEndpoint = existing.OriginEndpoint
		pre.Retries = existing.Retries + 1
	}
	return pre
}

func (p *Provisioner) resolvePlayback(result *model.ChannelProvisioningResult, manifestPath string) (string, error) {
	base := p.cfg.CDNBaseURL
	if result.PlaybackBaseURL != "" {
		base = result.PlaybackBaseURL
	}
	if base == "" {
		return "", nil
	}
	return model.ResolvePlaybackURL(base, manifestPath)
}
