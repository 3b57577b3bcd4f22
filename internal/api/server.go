// SPDX-License-Identifier: MIT

// Package api exposes the HTTP surface of the daemon: the pub/sub push
// endpoint, a small admin façade over the channel records, and the usual
// health and metrics probes.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamforge/provisiond/internal/config"
	"github.com/streamforge/provisiond/internal/event"
	"github.com/streamforge/provisiond/internal/log"
	"github.com/streamforge/provisiond/internal/model"
	"github.com/streamforge/provisiond/internal/store"
	"github.com/streamforge/provisiond/internal/version"
	"github.com/streamforge/provisiond/internal/worker"
)

// Pipeline is the slice of the worker the push endpoint and admin register
// path drive.
type Pipeline interface {
	HandleMessage(ctx context.Context, msg event.PushMessage) worker.Verdict
	ProcessUpload(ctx context.Context, ev *event.UploadCompleted) (*model.ChannelMetadata, error)
}

// Admin covers the operator-facing channel lifecycle operations.
type Admin interface {
	Retire(ctx context.Context, contentID string) (*model.ChannelMetadata, error)
	RotateIngestKey(ctx context.Context, contentID string) error
}

// HealthChecker reports whether a downstream dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server wires the HTTP surface to the provisioning pipeline.
type Server struct {
	cfg      *config.Config
	pipeline Pipeline
	admin    Admin
	repo     store.Repository
	health   []HealthChecker
	now      func() time.Time
}

func NewServer(cfg *config.Config, pipeline Pipeline, admin Admin, repo store.Repository, health ...HealthChecker) *Server {
	return &Server{
		cfg:      cfg,
		pipeline: pipeline,
		admin:    admin,
		repo:     repo,
		health:   health,
		now:      time.Now,
	}
}

// Router assembles the chi router with the full middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(recoverer)
	r.Use(tracing("provisiond-api"))

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/pubsub/push", s.handlePush)

	r.Route("/admin", func(r chi.Router) {
		r.Use(adminRateLimit(60, time.Minute))
		r.Post("/channels", s.handleRegister)
		r.Get("/channels/{contentID}", s.handleGet)
		r.Delete("/channels/{contentID}", s.handleRetire)
		r.Post("/channels/{contentID}/rotate", s.handleRotate)
		r.Post("/channels/{contentID}/purge", s.handlePurge)
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, hc := range s.health {
		if err := hc.HealthCheck(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger := log.WithComponent("api")
		logger.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
