package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamforge/provisiond/internal/model"
)

func testRequest(contentID string) *model.ChannelProvisioningRequest {
	return &model.ChannelProvisioningRequest{
		ContentID:      contentID,
		Classification: model.ClassificationReel,
		SourceURI:      "s3://uploads/" + contentID + ".mp4",
		IngestPool:     "ingest-reels",
		EgressPool:     "egress-reels",
		OutputBucket:   "vod-manifests",
		ManifestPath:   model.ManifestPath(contentID),
		CacheKey:       model.CacheKey(contentID, "sha256:aa"),
		Metadata:       map[string]string{"tenantId": "tenant-a"},
	}
}

func TestCreateChannel(t *testing.T) {
	var got model.ChannelProvisioningRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/channels", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model.ChannelProvisioningResult{
			ChannelID:      "ch-1",
			OriginEndpoint: "https://origin.internal/c1",
			ManifestPath:   "manifests/c1/master.m3u8",
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 5*time.Second)
	res, err := c.CreateChannel(context.Background(), testRequest("c1"))
	require.NoError(t, err)
	assert.Equal(t, "ch-1", res.ChannelID)
	assert.Equal(t, "https://origin.internal/c1", res.OriginEndpoint)
	assert.Equal(t, "c1", got.ContentID)
	assert.Equal(t, "tenant-a", got.Metadata["tenantId"])
}

func TestCreateChannelRejectsMissingChannelID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(model.ChannelProvisioningResult{OriginEndpoint: "o"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 5*time.Second)
	_, err := c.CreateChannel(context.Background(), testRequest("c2"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no channelId")
}

func TestCreateChannelSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"ingest pool exhausted"}`, http.StatusConflict)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 5*time.Second)
	_, err := c.CreateChannel(context.Background(), testRequest("c3"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 409")
	assert.Contains(t, err.Error(), "ingest pool exhausted")
}

func TestCreateChannelBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "engine down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 5*time.Second)
	for i := 0; i < 5; i++ {
		_, err := c.CreateChannel(context.Background(), testRequest("c4"))
		require.Error(t, err)
	}

	// Breaker is open now: the request fails without reaching the server.
	_, err := c.CreateChannel(context.Background(), testRequest("c4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker")
}

func TestDeleteChannel(t *testing.T) {
	var path, method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, method = r.URL.Path, r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 5*time.Second)
	require.NoError(t, c.DeleteChannel(context.Background(), "ch-9"))
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/v1/channels/ch-9", path)
}

func TestRotateIngestKey(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 5*time.Second)
	require.NoError(t, c.RotateIngestKey(context.Background(), "ch-9"))
	assert.Equal(t, "/v1/channels/ch-9/rotate-ingest-key", path)
}
