// SPDX-License-Identifier: MIT

// Package config loads and validates the closed set of recognized options
// from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/streamforge/provisiond/internal/abr"
)

// Defaults for options that have one.
const (
	DefaultMaxDeliveryAttempts = 5
	DefaultMaxProvisionRetries = 3
	DefaultAckDeadlineSeconds  = 60
	DefaultManifestTTLSeconds  = 3600
	DefaultReconcileBatchLimit = 20
)

// Config is the full configuration of the daemon. The recognized option set
// is closed; anything else the process needs comes in through collaborators.
type Config struct {
	// Subscription / worker
	AckDeadlineSeconds  int
	ManifestTTLSeconds  int
	MaxDeliveryAttempts int

	// Provisioning derivation
	ManifestBucket   string
	ReelsPreset      string
	SeriesPreset     string
	ReelsIngestPool  string
	SeriesIngestPool string
	ReelsEgressPool  string
	SeriesEgressPool string
	CDNBaseURL       string
	SigningKeyID     string
	DryRun           bool

	// Engine retry budget
	MaxProvisionRetries int

	// Reconciliation
	ReconcileInterval      time.Duration
	ReconcileBatchLimit    int
	ReconcileDefaultTenant string
	ReconcileHomeRegion    string

	// Ambient: transports and storage
	ListenAddr    string
	EngineBaseURL string
	EngineTimeout time.Duration
	StoreBackend  string // badger | sqlite | memory
	StorePath     string
	RedisAddr     string
	RedisChannel  string

	// Ambient: observability
	LogLevel        string
	TracingEnabled  bool
	TracingExporter string
	TracingEndpoint string

	// Parsed at load time
	ReelsLadder  []abr.Variant
	SeriesLadder []abr.Variant
}

// FromEnv loads the configuration from environment variables, parses the
// ABR presets once, and validates the result.
func FromEnv() (*Config, error) {
	cfg := &Config{
		AckDeadlineSeconds:  ParseInt("ACK_DEADLINE_SECONDS", DefaultAckDeadlineSeconds),
		ManifestTTLSeconds:  ParseInt("MANIFEST_TTL_SECONDS", DefaultManifestTTLSeconds),
		MaxDeliveryAttempts: ParseInt("MAX_DELIVERY_ATTEMPTS", DefaultMaxDeliveryAttempts),

		ManifestBucket:   ParseString("MANIFEST_BUCKET", ""),
		ReelsPreset:      ParseString("REELS_PRESET", "240p|426x240|400,480p|854x480|1200,720p|1280x720|2500"),
		SeriesPreset:     ParseString("SERIES_PRESET", "480p|854x480|1200,720p|1280x720|2500,1080p|1920x1080|4500"),
		ReelsIngestPool:  ParseString("REELS_INGEST_POOL", "ingest-reels"),
		SeriesIngestPool: ParseString("SERIES_INGEST_POOL", "ingest-series"),
		ReelsEgressPool:  ParseString("REELS_EGRESS_POOL", "egress-reels"),
		SeriesEgressPool: ParseString("SERIES_EGRESS_POOL", "egress-series"),
		CDNBaseURL:       ParseString("CDN_BASE_URL", ""),
		SigningKeyID:     ParseString("SIGNING_KEY_ID", ""),
		DryRun:           ParseBool("DRY_RUN", false),

		MaxProvisionRetries: ParseInt("MAX_PROVISION_RETRIES", DefaultMaxProvisionRetries),

		ReconcileInterval:      ParseDuration("RECONCILE_INTERVAL", 5*time.Minute),
		ReconcileBatchLimit:    ParseInt("RECONCILE_BATCH_LIMIT", DefaultReconcileBatchLimit),
		ReconcileDefaultTenant: ParseString("RECONCILE_DEFAULT_TENANT", "unknown-tenant"),
		ReconcileHomeRegion:    ParseString("RECONCILE_HOME_REGION", "eu"),

		ListenAddr:    ParseString("LISTEN_ADDR", ":8080"),
		EngineBaseURL: ParseString("ENGINE_BASE_URL", ""),
		EngineTimeout: ParseDuration("ENGINE_TIMEOUT", 15*time.Second),
		StoreBackend:  ParseString("STORE_BACKEND", "badger"),
		StorePath:     ParseString("STORE_PATH", "/var/lib/provisiond"),
		RedisAddr:     ParseString("REDIS_ADDR", ""),
		RedisChannel:  ParseString("REDIS_CHANNEL", "playback.ready"),

		LogLevel:        ParseString("LOG_LEVEL", "info"),
		TracingEnabled:  ParseBool("TRACING_ENABLED", false),
		TracingExporter: ParseString("TRACING_EXPORTER", "grpc"),
		TracingEndpoint: ParseString("TRACING_ENDPOINT", "localhost:4317"),
	}

	var err error
	if cfg.ReelsLadder, err = abr.ParsePreset(cfg.ReelsPreset); err != nil {
		return nil, fmt.Errorf("REELS_PRESET: %w", err)
	}
	if cfg.SeriesLadder, err = abr.ParsePreset(cfg.SeriesPreset); err != nil {
		return nil, fmt.Errorf("SERIES_PRESET: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field consistency of the loaded options.
func (c *Config) Validate() error {
	if c.MaxDeliveryAttempts < 1 {
		return errors.New("MAX_DELIVERY_ATTEMPTS must be at least 1")
	}
	if c.MaxProvisionRetries < 0 {
		return errors.New("MAX_PROVISION_RETRIES must not be negative")
	}
	if c.AckDeadlineSeconds < 1 {
		return errors.New("ACK_DEADLINE_SECONDS must be at least 1")
	}
	if c.ManifestTTLSeconds < 1 {
		return errors.New("MANIFEST_TTL_SECONDS must be at least 1")
	}
	if c.CDNBaseURL != "" {
		if _, err := url.Parse(c.CDNBaseURL); err != nil {
			return fmt.Errorf("CDN_BASE_URL: %w", err)
		}
	}
	switch c.StoreBackend {
	case "badger", "sqlite", "memory":
	default:
		return fmt.Errorf("STORE_BACKEND %q: want badger, sqlite or memory", c.StoreBackend)
	}
	if c.ReconcileBatchLimit < 1 {
		return errors.New("RECONCILE_BATCH_LIMIT must be at least 1")
	}
	return nil
}
