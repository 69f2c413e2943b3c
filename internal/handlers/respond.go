package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/otcheredev/dicom-study-loader/internal/services"
)

type errorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind,omitempty"`
	Source string `json:"sourceKey,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// loadErrorStatus maps a load failure to its HTTP status
func loadErrorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, services.ErrDirectoryNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNoFilesFound), errors.Is(err, services.ErrNoValidStudies):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeLoadError renders a failed load. Load errors carry their reason;
// anything else is reported generically.
func writeLoadError(w http.ResponseWriter, err error) {
	var loadErr *services.LoadError
	if errors.As(err, &loadErr) {
		writeJSON(w, loadErrorStatus(err), errorResponse{
			Error:  loadErr.Reason,
			Kind:   string(loadErr.Kind),
			Source: loadErr.SourceKey,
		})
		return
	}
	log.Error().Err(err).Msg("Study load failed")
	writeError(w, http.StatusInternalServerError, "Failed to load studies")
}
