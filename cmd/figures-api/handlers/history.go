package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/spherical-ai/spherical/libs/figure-service/internal/domain"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/history"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/observability"
)

// HistoryReader reads recorded batches.
type HistoryReader interface {
	Get(ctx context.Context, id string) (*domain.BatchResult, error)
	List(ctx context.Context, limit int) ([]history.Entry, error)
}

var _ HistoryReader = (*history.Store)(nil)

// HistoryHandler serves the batch ledger.
type HistoryHandler struct {
	logger       *observability.Logger
	store        HistoryReader
	defaultLimit int
}

// NewHistoryHandler creates a history handler. A nil store answers 503.
func NewHistoryHandler(logger *observability.Logger, store HistoryReader, defaultLimit int) *HistoryHandler {
	return &HistoryHandler{logger: logger, store: store, defaultLimit: defaultLimit}
}

// List handles GET /history?limit=N.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "history is disabled", "")
		return
	}

	limit := h.defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit", raw)
			return
		}
		limit = n
	}

	entries, err := h.store.List(r.Context(), limit)
	if err != nil {
		h.logger.WithContext(r.Context()).Error().Err(err).Msg("Failed to list history")
		writeError(w, http.StatusInternalServerError, "failed to list history", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"batches": entries,
		"count":   len(entries),
	})
}

// Get handles GET /history/{batchId}.
func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "history is disabled", "")
		return
	}

	id := chi.URLParam(r, "batchId")
	result, err := h.store.Get(r.Context(), id)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.WithContext(r.Context()).Error().Err(err).Str("batch_id", id).Msg("Failed to load batch")
		}
		writeError(w, status, errorMessage(err), "")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
