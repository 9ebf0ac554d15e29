package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/spherical-ai/spherical/libs/figure-service/internal/batch"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/domain"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/extract"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/figures"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/observability"
)

// Extractor runs one extraction request.
type Extractor interface {
	Extract(ctx context.Context, req domain.ExtractionRequest, progress batch.ProgressFunc) (*domain.BatchResult, error)
}

// Visualizer runs the tool's visualization entry point.
type Visualizer interface {
	Visualize(ctx context.Context, pdfPath string, intermediate bool) (*domain.VisualizationResult, error)
}

var (
	_ Extractor  = (*extract.Service)(nil)
	_ Visualizer = (*figures.Visualizer)(nil)
)

// ExtractionHandler handles figure extraction requests.
type ExtractionHandler struct {
	logger       *observability.Logger
	extractor    Extractor
	visualizer   Visualizer
	maxBodyBytes int64
}

// NewExtractionHandler creates a new extraction handler. visualizer may be nil,
// in which case /visualize answers 503.
func NewExtractionHandler(logger *observability.Logger, extractor Extractor, visualizer Visualizer, maxBodyBytes int64) *ExtractionHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 << 20
	}
	return &ExtractionHandler{
		logger:       logger,
		extractor:    extractor,
		visualizer:   visualizer,
		maxBodyBytes: maxBodyBytes,
	}
}

// Extract handles POST /extract.
func (h *ExtractionHandler) Extract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.WithContext(ctx)

	var req domain.ExtractionRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	req.Source = strings.TrimSpace(req.Source)
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, "No source provided", "")
		return
	}

	logger.Info().Str("source", req.Source).Str("stat_file", req.StatFile).Msg("Extraction requested")

	result, err := h.extractor.Extract(ctx, req, nil)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).Str("source", req.Source).Msg("Extraction failed")
		}
		writeError(w, status, errorMessage(err), errorDetail(err))
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Visualize handles POST /visualize.
func (h *ExtractionHandler) Visualize(w http.ResponseWriter, r *http.Request) {
	if h.visualizer == nil {
		writeError(w, http.StatusServiceUnavailable, "visualization is not configured", "")
		return
	}

	var req domain.VisualizationRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	req.Source = strings.TrimSpace(req.Source)
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, "No source provided", "")
		return
	}

	result, err := h.visualizer.Visualize(r.Context(), req.Source, req.Intermediate)
	if err != nil {
		switch domain.TypeOf(err) {
		case domain.ErrorTypeValidation, domain.ErrorTypeNotFound:
			writeError(w, http.StatusBadRequest, "Invalid file or path: "+req.Source, errorMessage(err))
		default:
			h.logger.WithContext(r.Context()).Error().Err(err).Msg("Visualization failed")
			writeError(w, http.StatusInternalServerError, "visualization failed", err.Error())
		}
		return
	}
	if !result.Success {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":  result.Message,
			"output": result.Output,
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *ExtractionHandler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return nil
}

func errorMessage(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

func errorDetail(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) && de.Err != nil {
		return de.Err.Error()
	}
	return ""
}
