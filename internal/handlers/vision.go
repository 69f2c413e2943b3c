package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/otcheredev/dicom-study-loader/internal/adapters"
	"github.com/otcheredev/dicom-study-loader/internal/models"
)

type VisionHandler struct {
	detector adapters.VisionDetector
}

func NewVisionHandler(detector adapters.VisionDetector) *VisionHandler {
	return &VisionHandler{detector: detector}
}

// Detect forwards a detection request to the configured detector
func (h *VisionHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req models.DetectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FilePath == "" {
		writeError(w, http.StatusBadRequest, "file_path is required")
		return
	}

	res, err := h.detector.Detect(r.Context(), req)
	if errors.Is(err, adapters.ErrFileNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("detector", h.detector.Name()).Msg("Detection failed")
		writeError(w, http.StatusBadGateway, "Vision detector failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Status reports detector health
func (h *VisionHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.detector.Health(r.Context())
	if err != nil {
		log.Warn().Err(err).Str("detector", h.detector.Name()).Msg("Detector health check failed")
	}
	code := http.StatusOK
	if status == nil || !status.IsAvailable {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}
