// SPDX-License-Identifier: MIT
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/streamforge/provisiond/internal/event"
	"github.com/streamforge/provisiond/internal/log"
	"github.com/streamforge/provisiond/internal/model"
	"github.com/streamforge/provisiond/internal/provision"
	"github.com/streamforge/provisiond/internal/worker"
)

// pushEnvelope is the subscription push delivery body: the message itself
// plus the subscription name, which is logged and otherwise ignored.
type pushEnvelope struct {
	Message      event.PushMessage `json:"message"`
	Subscription string            `json:"subscription,omitempty"`
}

// handlePush translates a push delivery into the worker's verdict. An ack
// (including a poison drop) maps to 204 so the substrate removes the message;
// a nack maps to 503 with a Retry-After hint.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	var env pushEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, "malformed push envelope")
		return
	}

	v := s.pipeline.HandleMessage(r.Context(), env.Message)
	if v.Action == worker.ActionAck {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Retry-After", strconv.Itoa(v.RetryInSeconds))
	writeError(w, http.StatusServiceUnavailable, "message nacked for redelivery")
}

// handleRegister provisions a channel without waiting for an upload event,
// by synthesizing one from the request body.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload event.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	ev := &event.UploadCompleted{
		EventID:    "admin-" + uuid.NewString(),
		EventType:  event.TypeUploaded,
		OccurredAt: model.Timestamp(s.now()),
		Data:       payload,
	}
	if err := ev.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := log.ContextWithContentID(r.Context(), payload.ContentID)
	rec, err := s.pipeline.ProcessUpload(ctx, ev)
	if err != nil {
		if errors.Is(err, provision.ErrRetired) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "contentID")
	rec, err := s.repo.FindByContentID(r.Context(), contentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "no channel metadata for "+contentID)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRetire(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "contentID")
	rec, err := s.admin.Retire(r.Context(), contentID)
	if err != nil {
		switch {
		case errors.Is(err, provision.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, provision.ErrBadTransition):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "contentID")
	if err := s.admin.RotateIngestKey(r.Context(), contentID); err != nil {
		if errors.Is(err, provision.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePurge marks a record as purged from the CDN by refreshing its
// lastProvisionedAt and returns the cache key operators need to invalidate.
func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "contentID")
	rec, err := s.repo.FindByContentID(r.Context(), contentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "no channel metadata for "+contentID)
		return
	}

	purged := *rec
	purged.LastProvisionedAt = model.Timestamp(s.now())
	if err := s.repo.Upsert(r.Context(), &purged); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(log.FieldContentID, contentID).
		Str(log.FieldCacheKey, purged.CacheKey).
		Msg("cache purge marker written")

	writeJSON(w, http.StatusOK, map[string]string{
		"contentId": purged.ContentID,
		"cacheKey":  purged.CacheKey,
		"purgedAt":  purged.LastProvisionedAt,
	})
}
