package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/otcheredev/dicom-study-loader/internal/models"
)

// AuditLister reads the load audit trail
type AuditLister interface {
	List(ctx context.Context, limit, offset int) ([]models.LoadAudit, error)
	GetBySourceKey(ctx context.Context, sourceKey string) ([]models.LoadAudit, error)
}

type AuditHandler struct {
	audits AuditLister
}

func NewAuditHandler(audits AuditLister) *AuditHandler {
	return &AuditHandler{audits: audits}
}

// List returns audits newest first, optionally filtered by ?sourceKey=
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var (
		audits []models.LoadAudit
		err    error
	)
	if key := q.Get("sourceKey"); key != "" {
		audits, err = h.audits.GetBySourceKey(ctx, key)
	} else {
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		audits, err = h.audits.List(ctx, limit, offset)
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to list load audits")
		writeError(w, http.StatusInternalServerError, "Failed to list load audits")
		return
	}
	if audits == nil {
		audits = []models.LoadAudit{}
	}
	writeJSON(w, http.StatusOK, audits)
}
