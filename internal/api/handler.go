package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mvaidya/graphstage/internal/config"
	"github.com/mvaidya/graphstage/internal/dataset"
	"github.com/mvaidya/graphstage/internal/engine"
	"github.com/mvaidya/graphstage/internal/graph"
	"github.com/mvaidya/graphstage/internal/render"
)

// Handler holds all HTTP handler dependencies.
type Handler struct {
	coord  *engine.Coordinator
	ds     *dataset.Dataset
	loader *config.Loader
	frames *render.FrameStore
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes. frames may be nil
// when the renderer boundary is not pull-based.
func New(coord *engine.Coordinator, ds *dataset.Dataset, loader *config.Loader, frames *render.FrameStore) http.Handler {
	h := &Handler{coord: coord, ds: ds, loader: loader, frames: frames, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/graph", h.loadGraph)
	h.mux.HandleFunc("POST /v1/deltas", h.ingestDelta)
	h.mux.HandleFunc("GET /v1/nodes/{index}", h.nodeByIndex)
	h.mux.HandleFunc("GET /v1/nodes/by-id/{id}", h.indexByID)
	h.mux.HandleFunc("GET /v1/stats", h.stats)
	h.mux.HandleFunc("GET /v1/frame", h.latestFrame)
	h.mux.HandleFunc("POST /v1/config/reload", h.reloadConfig)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

// graphPayload is the full-load request body.
type graphPayload struct {
	Nodes []graph.RawNode `json:"nodes"`
	Links []graph.RawLink `json:"links"`
}

// POST /v1/graph — full dataset load/replace through the serializer.
func (h *Handler) loadGraph(w http.ResponseWriter, r *http.Request) {
	var payload graphPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}

	timeout := time.Duration(h.loader.Config().Engine.PrepareTimeoutMs) * time.Millisecond
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	err := h.coord.FullReplace(ctx, payload.Nodes, payload.Links)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, h.coord.Stats())
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil:
		writeError(w, http.StatusGatewayTimeout, "preparation timed out")
	case errors.Is(err, engine.ErrSuperseded):
		writeJSON(w, http.StatusConflict, map[string]any{
			"superseded": true,
		})
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// POST /v1/deltas — async single-delta ingestion.
func (h *Handler) ingestDelta(w http.ResponseWriter, r *http.Request) {
	var d graph.Delta
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	switch d.Op {
	case graph.OpAdd, graph.OpUpdate, graph.OpDelete:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown operation %q", d.Op))
		return
	}
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	d.ReceivedAt = time.Now()

	if !h.coord.SubmitDelta(&d) {
		writeError(w, http.StatusTooManyRequests, "delta queue full")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"id":     d.ID,
		"queued": true,
	})
}

// GET /v1/nodes/{index} — prepared node by dense index.
func (h *Handler) nodeByIndex(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || idx < 0 {
		writeError(w, http.StatusBadRequest, "index must be a non-negative integer")
		return
	}
	n, ok := h.ds.NodeByIndex(idx)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no node at index %d", idx))
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// GET /v1/nodes/by-id/{id} — dense index lookup by external id.
func (h *Handler) indexByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	idx, ok := h.ds.IndexByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown node id %q", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":    id,
		"index": idx,
	})
}

// GET /v1/stats — live dataset summary.
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.coord.Stats())
}

// GET /v1/frame — latest prepared frame for pull-based renderers.
func (h *Handler) latestFrame(w http.ResponseWriter, r *http.Request) {
	if h.frames == nil {
		writeError(w, http.StatusNotFound, "frame store not enabled")
		return
	}
	f, ok := h.frames.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "no frame prepared yet")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// POST /v1/config/reload — re-read config from disk. Re-preparation runs
// through the loader's OnChange callbacks, which Reload fires; triggering
// it here as well would rebuild twice per request.
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
	writeJSON(w, http.StatusOK, map[string]any{
		"reloaded": true,
		"version":  cfg.Version,
	})
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 until the first build, or while the queue is >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if !h.coord.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "no dataset built yet",
		})
		return
	}
	util := h.coord.QueueUtilization()
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ready",
		"queue_utilization": util,
	})
}

// loggingMiddleware logs one line per request with method, path and duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
