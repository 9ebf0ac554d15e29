// Package handlers provides HTTP handlers for the figure service API.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/spherical-ai/spherical/libs/figure-service/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	writeJSON(w, status, resp)
}

// statusFor maps a request-level error to its HTTP status.
func statusFor(err error) int {
	switch domain.TypeOf(err) {
	case domain.ErrorTypeValidation:
		return http.StatusBadRequest
	case domain.ErrorTypeNotFound:
		return http.StatusNotFound
	case domain.ErrorTypeDownload:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
