// SPDX-License-Identifier: MIT

// Package model holds the persistent channel metadata record and the
// derivations shared by the provisioner, repository, and admin surfaces.
package model

import (
	"time"

	"github.com/streamforge/provisiond/internal/abr"
)

// PendingSentinel marks engine-assigned fields that have no value yet.
// A record in StatusReady must not carry it.
const PendingSentinel = "pending"

// Status is the lifecycle state of a channel metadata record.
type Status string

const (
	StatusProvisioning Status = "provisioning"
	StatusReady        Status = "ready"
	StatusFailed       Status = "failed"
	StatusRetired      Status = "retired"
)

// Classification distinguishes the two supported content types.
type Classification string

const (
	ClassificationReel   Classification = "reel"
	ClassificationSeries Classification = "series"
)

// Valid reports whether c names a supported content type.
func (c Classification) Valid() bool {
	return c == ClassificationReel || c == ClassificationSeries
}

// DRM carries the key reference forwarded to the engine for protected content.
type DRM struct {
	KeyID         string `json:"keyId"`
	LicenseServer string `json:"licenseServer"`
}

// AvailabilityWindow bounds when a channel may be played back.
type AvailabilityWindow struct {
	StartsAt string `json:"startsAt,omitempty"`
	EndsAt   string `json:"endsAt,omitempty"`
}

// GeoRestrictions limits playback to or from named territories.
type GeoRestrictions struct {
	Allow []string `json:"allow,omitempty"`
	Deny  []string `json:"deny,omitempty"`
}

// ChannelMetadata is the durable record of a channel's lifecycle,
// keyed by ContentID. At most one record exists per content.
type ChannelMetadata struct {
	ContentID          string              `json:"contentId"`
	ChannelID          string              `json:"channelId"`
	Classification     Classification      `json:"classification"`
	ManifestPath       string              `json:"manifestPath"`
	PlaybackURL        string              `json:"playbackUrl"`
	OriginEndpoint     string              `json:"originEndpoint"`
	CacheKey           string              `json:"cacheKey"`
	Checksum           string              `json:"checksum"`
	Status             Status              `json:"status"`
	Retries            int                 `json:"retries"`
	SourceAssetURI     string              `json:"sourceAssetUri"`
	TenantID           string              `json:"tenantId,omitempty"`
	IngestRegion       string              `json:"ingestRegion,omitempty"`
	LastProvisionedAt  string              `json:"lastProvisionedAt"`
	DRM                *DRM                `json:"drm,omitempty"`
	AvailabilityWindow *AvailabilityWindow `json:"availabilityWindow,omitempty"`
	GeoRestrictions    *GeoRestrictions    `json:"geoRestrictions,omitempty"`
}

// Assigned reports whether the engine has filled in both assigned fields.
func (m *ChannelMetadata) Assigned() bool {
	return m.ChannelID != "" && m.ChannelID != PendingSentinel &&
		m.OriginEndpoint != "" && m.OriginEndpoint != PendingSentinel
}

// ChannelProvisioningRequest is the derived request sent to the media engine.
type ChannelProvisioningRequest struct {
	ContentID          string              `json:"contentId"`
	Classification     Classification      `json:"classification"`
	SourceURI          string              `json:"sourceUri"`
	IngestPool         string              `json:"ingestPool"`
	EgressPool         string              `json:"egressPool"`
	AbrLadder          []abr.Variant       `json:"abrLadder"`
	OutputBucket       string              `json:"outputBucket"`
	ManifestPath       string              `json:"manifestPath"`
	CacheKey           string              `json:"cacheKey"`
	DRM                *DRM                `json:"drm,omitempty"`
	AvailabilityWindow *AvailabilityWindow `json:"availabilityWindow,omitempty"`
	GeoRestrictions    *GeoRestrictions    `json:"geoRestrictions,omitempty"`
	Metadata           map[string]string   `json:"metadata"`
}

// ChannelProvisioningResult is the engine's answer to a create call.
type ChannelProvisioningResult struct {
	ChannelID       string `json:"channelId"`
	ManifestPath    string `json:"manifestPath,omitempty"`
	OriginEndpoint  string `json:"originEndpoint"`
	PlaybackBaseURL string `json:"playbackBaseUrl,omitempty"`
	ProfileHash     string `json:"profileHash,omitempty"`
}

// Timestamp renders t in the wire format used throughout the records.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
