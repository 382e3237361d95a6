// Package api exposes the engine's small read/admin HTTP surface: the
// dashboard's anomaly list and a manual detection trigger for testing.
// Anomalies are re-read from the Anomaly Store on every request; the engine
// keeps no in-process cache of the last run's results.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/munimap/anomaly-engine/internal/logger"
	"github.com/munimap/anomaly-engine/internal/store"
)

// JobRunner triggers one on-demand detection run and reports how many
// anomalies it upserted.
type JobRunner interface {
	RunOnce(ctx context.Context) (int, error)
}

// Handler provides the HTTP handlers for the anomaly API
type Handler struct {
	store *store.Store
	job   JobRunner
}

// NewHandler creates a new API handler
func NewHandler(st *store.Store, job JobRunner) *Handler {
	return &Handler{store: st, job: job}
}

// Routes registers the anomaly API routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/anomalies", h.ListAnomalies)
		r.Post("/run", h.TriggerRun)
	})

	return r
}

// Health reports process liveness
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListAnomalies returns every stored anomaly document
func (h *Handler) ListAnomalies(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.ListAnomalies(r.Context())
	if err != nil {
		logger.Error("api: failed to list anomalies: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list anomalies")
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// TriggerRun starts one detection run and blocks until it completes
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	count, err := h.job.RunOnce(r.Context())
	if err != nil {
		logger.Error("api: manual detection run failed: %v", err)
		writeError(w, http.StatusInternalServerError, "detection run failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"anomalies": count})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("api: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
