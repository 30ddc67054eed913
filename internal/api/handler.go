package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harborlab/leasealert/internal/classify"
	"github.com/harborlab/leasealert/internal/config"
	"github.com/harborlab/leasealert/internal/metrics"
	"github.com/harborlab/leasealert/internal/runner"
)

const maxBatchSize = 100

// maxBodyBytes caps a single ingest request.
const maxBodyBytes = 1 << 20

// Handler holds all HTTP handler dependencies.
type Handler struct {
	run    *runner.Runner
	loader *config.Loader
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(run *runner.Runner, loader *config.Loader) http.Handler {
	h := &Handler{run: run, loader: loader, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/events", h.ingestEvent)
	h.mux.HandleFunc("POST /v1/events/batch", h.ingestBatch)
	h.mux.HandleFunc("GET /v1/classifications", h.listClassifications)
	h.mux.HandleFunc("POST /v1/config/reload", h.reloadConfig)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

// POST /v1/events: single-event ingestion. The event is queued for
// processing; delivery upstream is at least once, so the caller may safely
// repost on any non-2xx answer.
func (h *Handler) ingestEvent(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %s", err))
		return
	}
	if !json.Valid(raw) {
		writeError(w, http.StatusBadRequest, "body is not valid JSON")
		return
	}
	if !h.run.Submit(raw) {
		writeError(w, http.StatusTooManyRequests, "event queue full")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// POST /v1/events/batch: batch ingestion (up to 100 events).
func (h *Handler) ingestBatch(w http.ResponseWriter, r *http.Request) {
	var events []json.RawMessage
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&events); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if len(events) == 0 {
		writeError(w, http.StatusBadRequest, "batch must contain at least one event")
		return
	}
	if len(events) > maxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch size %d exceeds max %d", len(events), maxBatchSize))
		return
	}

	queued := 0
	for _, raw := range events {
		if h.run.Submit(raw) {
			queued++
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"total":    len(events),
		"queued":   queued,
		"rejected": len(events) - queued,
	})
}

// GET /v1/classifications: the routing table, for operator inspection.
func (h *Handler) listClassifications(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]interface{}, len(classify.Types()))
	for _, typ := range classify.Types() {
		c := classify.Classify(typ)
		out[typ] = map[string]interface{}{
			"priority":    c.Priority,
			"mention_all": c.MentionAll,
			"channels":    c.Channels,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// POST /v1/config/reload: re-read the pipeline config from disk.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := config.Validate(cfg); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded": true,
		"version":  cfg.Version,
	})
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 if event queue >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.run.QueueUtilization()
	metrics.QueueUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
	})
}
