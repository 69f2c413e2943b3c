package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/dicom-study-loader/internal/models"
	"github.com/otcheredev/dicom-study-loader/internal/recents"
	"github.com/otcheredev/dicom-study-loader/internal/services"
)

type RecentsHandler struct {
	loader *services.StudyLoader
}

func NewRecentsHandler(loader *services.StudyLoader) *RecentsHandler {
	return &RecentsHandler{loader: loader}
}

// List returns the recent locations, newest first
func (h *RecentsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.loader.RecentLocations(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list recent locations")
		writeError(w, http.StatusInternalServerError, "Failed to list recent locations")
		return
	}
	if list == nil {
		list = []models.RecentLocation{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Clear empties the recent list
func (h *RecentsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.loader.ClearRecentLocations(r.Context()); err != nil {
		log.Error().Err(err).Msg("Failed to clear recent locations")
		writeError(w, http.StatusInternalServerError, "Failed to clear recent locations")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reload re-opens the recent location at {index}
func (h *RecentsHandler) Reload(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.loader.ReloadRecent(r.Context(), index, services.LoadOptions{
		UseCache:          r.URL.Query().Get("useCache") != "false",
		RequestPermission: r.URL.Query().Get("requestPermission") == "true",
	})
	switch {
	case errors.Is(err, recents.ErrIndexOutOfRange):
		writeError(w, http.StatusNotFound, "Recent location not found")
	case errors.Is(err, services.ErrNotReloadable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		writeLoadError(w, err)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}
