package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/dicom-study-loader/internal/imaging"
	"github.com/otcheredev/dicom-study-loader/internal/source"
)

// ImageSource re-reads registered images by image id
type ImageSource interface {
	Get(ctx context.Context, id string) ([]byte, error)
}

type ImageHandler struct {
	images ImageSource
}

func NewImageHandler(images ImageSource) *ImageHandler {
	return &ImageHandler{images: images}
}

// Get serves the raw DICOM buffer registered under {imageId}
func (h *ImageHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "imageId")
	buf, err := h.images.Get(r.Context(), id)
	switch {
	case errors.Is(err, imaging.ErrImageNotFound), errors.Is(err, source.ErrDirectoryNotFound):
		writeError(w, http.StatusNotFound, "Image not found")
		return
	case errors.Is(err, imaging.ErrImageChanged):
		writeError(w, http.StatusGone, "Image changed on disk")
		return
	case err != nil:
		log.Error().Err(err).Str("image_id", id).Msg("Failed to read image")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve image")
		return
	}

	w.Header().Set("Content-Type", "application/dicom")
	w.Header().Set("Content-Length", strconv.Itoa(len(buf)))
	w.Header().Set("Cache-Control", "private, max-age=3600, immutable")
	w.WriteHeader(http.StatusOK)
	w.Write(buf)
}
