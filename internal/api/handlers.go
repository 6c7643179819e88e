// Package api implements the HTTP surface described in the external
// interfaces section: /ask, /pending, /pending/{id}, /retry, /retry_all,
// /stats, served by a plain net/http.ServeMux with method-pattern routes.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/brunobiangulo/hybridrag"
	"github.com/brunobiangulo/hybridrag/internal/detector"
	"github.com/brunobiangulo/hybridrag/internal/memory"
)

// Handler wires the orchestrator and the document-change detector into the
// HTTP surface.
type Handler struct {
	engine *hybridrag.Engine
	det    *detector.Detector
	log    zerolog.Logger
}

// New constructs a Handler. det may be nil if corpus-change detection is
// not configured; /stats then reports zero new documents, and /retry_all
// responds 503 Service Unavailable.
func New(engine *hybridrag.Engine, det *detector.Detector, log zerolog.Logger) *Handler {
	return &Handler{engine: engine, det: det, log: log}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /ask", h.handleAsk)
	mux.HandleFunc("GET /pending", h.handlePendingList)
	mux.HandleFunc("GET /pending/{id}", h.handlePendingByID)
	mux.HandleFunc("POST /retry", h.handleRetry)
	mux.HandleFunc("POST /retry_all", h.handleRetryAll)
	mux.HandleFunc("GET /stats", h.handleStats)
	mux.HandleFunc("GET /health", h.handleHealth)
}

type askRequest struct {
	RetryStrategies []string `json:"retry_strats"`
}

// POST /ask?query=<string>
func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := ctxWithTimeout(r, 2*time.Minute)
	defer cancel()

	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	var req askRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	requestID := uuid.New().String()
	log := h.log.With().Str("request_id", requestID).Str("query", query).Logger()

	result, err := h.engine.Ask(ctx, query, req.RetryStrategies)
	if err != nil {
		log.Error().Err(err).Msg("ask failed")
		writeError(w, http.StatusInternalServerError, "ask failed")
		return
	}
	result.RequestID = requestID

	writeJSON(w, http.StatusOK, map[string]any{"model_answer": result})
}

// GET /pending
func (h *Handler) handlePendingList(w http.ResponseWriter, r *http.Request) {
	entries := h.engine.Memory().Pending()
	out := make([]hybridrag.UnresolvedEntry, len(entries))
	for i, e := range entries {
		out[i] = toUnresolvedEntry(e)
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending_queries": out})
}

// GET /pending/{id}
func (h *Handler) handlePendingByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	entry, ok := h.engine.Memory().ByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, "no such pending query")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": toUnresolvedEntry(entry)})
}

// POST /retry?id=<int>
func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := ctxWithTimeout(r, 2*time.Minute)
	defer cancel()

	id, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	result, err := h.engine.Retry(ctx, id)
	if errors.Is(err, hybridrag.ErrEntryNotFound) {
		writeError(w, http.StatusNotFound, "no such pending query")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Uint64("id", id).Msg("retry failed")
		writeError(w, http.StatusInternalServerError, "retry failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"model_answer": result})
}

// POST /retry_all
func (h *Handler) handleRetryAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := ctxWithTimeout(r, 10*time.Minute)
	defer cancel()

	if h.det == nil {
		writeError(w, http.StatusServiceUnavailable, "document change detection is not configured")
		return
	}

	results, err := h.engine.RetryAll(ctx, h.det)
	if err != nil {
		h.log.Error().Err(err).Msg("retry_all failed")
		writeError(w, http.StatusInternalServerError, "retry_all failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// GET /stats
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	memStats := h.engine.Memory().Statistics()

	detStats := map[string]any{"initial_documents": 0, "new_documents": 0}
	if h.det != nil {
		detStats["initial_documents"] = h.det.InitialDocumentCount()
		if newDocs, err := h.det.GetNewDocuments(r.Context()); err == nil {
			detStats["new_documents"] = len(newDocs)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"memory":   memStats,
		"detector": detStats,
	})
}

// GET /health
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toUnresolvedEntry(e memory.Entry) hybridrag.UnresolvedEntry {
	years := make([]string, len(e.YearsHint))
	for i, y := range e.YearsHint {
		years[i] = strconv.Itoa(y)
	}
	return hybridrag.UnresolvedEntry{
		ID:           e.ID,
		Query:        e.Query,
		EntitiesHint: e.EntitiesHint,
		YearsHint:    years,
		PlacesHint:   e.PlacesHint,
		RetryCount:   e.RetryCount,
		Status:       e.Status,
		Timestamp:    e.Timestamp,
		ResolvedAt:   e.ResolvedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Println("api: encode response:", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
