package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/lowtide/resonance/internal/lifecycle"
	"github.com/lowtide/resonance/internal/memory"
	"github.com/lowtide/resonance/internal/relational"
	"go.uber.org/zap"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	engine    *memory.Engine
	agg       *relational.Aggregator
	lifecycle *lifecycle.Manager
	logger    *zap.Logger
}

// NewHandler creates an API handler.
func NewHandler(engine *memory.Engine, agg *relational.Aggregator, lc *lifecycle.Manager, logger *zap.Logger) *Handler {
	return &Handler{
		engine:    engine,
		agg:       agg,
		lifecycle: lc,
		logger:    logger,
	}
}

// Router builds the HTTP route tree.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/healthz", h.healthCheck)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/memories", h.storeMemory)
		r.Post("/memories/search", h.searchMemories)
		r.Get("/memories/{id}", h.getMemory)

		r.Get("/owners/{ownerID}/context", h.ownerContext)

		r.Get("/lifecycle/stats", h.lifecycleStats)
		r.Post("/lifecycle/decay", h.runDecay)
		r.Post("/lifecycle/cleanup", h.runCleanup)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) storeMemory(w http.ResponseWriter, r *http.Request) {
	var in memory.StoreInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rec, err := h.engine.Store(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) searchMemories(w http.ResponseWriter, r *http.Request) {
	var in memory.SearchInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ranked, err := h.engine.Search(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if ranked == nil {
		ranked = []memory.RankedMemory{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": ranked,
		"count":   len(ranked),
	})
}

func (h *Handler) getMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.engine.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) ownerContext(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")
	snap, err := h.agg.Metrics(r.Context(), ownerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) lifecycleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.lifecycle.Stats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type sweepRequest struct {
	DryRun bool `json:"dry_run"`
	// GraceMultiplier applies to cleanup only; <= 0 selects the default.
	GraceMultiplier float64 `json:"grace_multiplier"`
}

func (h *Handler) runDecay(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	}

	updated, skipped, err := h.lifecycle.Decay(r.Context(), req.DryRun)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"updated": updated,
		"skipped": skipped,
		"dry_run": req.DryRun,
	})
}

func (h *Handler) runCleanup(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	}

	removed, err := h.lifecycle.Cleanup(r.Context(), req.GraceMultiplier, req.DryRun)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"removed": removed,
		"dry_run": req.DryRun,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, memory.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, memory.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, memory.ErrEmbeddingUnavailable), errors.Is(err, memory.ErrIndexUnavailable):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
