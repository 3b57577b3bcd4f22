// SPDX-License-Identifier: MIT
package model

import (
	"crypto/sha1" //nolint:gosec // cache key derivation, not a security boundary
	"encoding/hex"
	"fmt"
	"net/url"
)

// CacheKey derives the CDN cache key for a content version. It is a pure
// function of (contentID, checksum); a checksum change yields a new key.
func CacheKey(contentID, checksum string) string {
	sum := sha1.Sum([]byte(contentID + ":" + checksum)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// ManifestPath returns the default master manifest location for a content.
// The engine may override it in its provisioning result.
func ManifestPath(contentID string) string {
	return fmt.Sprintf("manifests/%s/master.m3u8", contentID)
}

// ResolvePlaybackURL resolves manifestPath against base using RFC 3986
// reference resolution.
func ResolvePlaybackURL(base, manifestPath string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse cdn base url %q: %w", base, err)
	}
	ref, err := url.Parse(manifestPath)
	if err != nil {
		return "", fmt.Errorf("parse manifest path %q: %w", manifestPath, err)
	}
	return baseURL.ResolveReference(ref).String(), nil
}

// validTransitions enumerates the permitted status edges. Identity edges for
// provisioning and ready cover retried pre-records and idempotent replays.
var validTransitions = map[Status][]Status{
	StatusProvisioning: {StatusProvisioning, StatusReady, StatusFailed},
	StatusReady:        {StatusReady, StatusProvisioning, StatusRetired},
	StatusFailed:       {StatusProvisioning},
	StatusRetired:      {},
}

// CanTransition reports whether a record may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
