package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/dicom-study-loader/internal/services"
)

type CacheHandler struct {
	loader *services.StudyLoader
}

func NewCacheHandler(loader *services.StudyLoader) *CacheHandler {
	return &CacheHandler{loader: loader}
}

// Clear drops every cached study list
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.loader.ClearCache(r.Context()); err != nil {
		log.Error().Err(err).Msg("Failed to clear study cache")
		writeError(w, http.StatusInternalServerError, "Failed to clear cache")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Evict drops the cached study list for the URL-escaped source key
func (h *CacheHandler) Evict(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil || key == "" {
		writeError(w, http.StatusBadRequest, "Invalid cache key")
		return
	}
	if err := h.loader.EvictCache(r.Context(), key); err != nil {
		log.Error().Err(err).Str("source_key", key).Msg("Failed to evict cache entry")
		writeError(w, http.StatusInternalServerError, "Failed to evict cache entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
