package repository

import (
	"context"
	"fmt"

	"github.com/otcheredev/dicom-study-loader/internal/database"
	"github.com/otcheredev/dicom-study-loader/internal/models"
)

// LoadAuditRepository handles load audit database operations
type LoadAuditRepository struct{}

// NewLoadAuditRepository creates a new load audit repository
func NewLoadAuditRepository() *LoadAuditRepository {
	return &LoadAuditRepository{}
}

// Create records one load call
func (r *LoadAuditRepository) Create(ctx context.Context, audit *models.LoadAudit) error {
	if err := database.DB.WithContext(ctx).Create(audit).Error; err != nil {
		return fmt.Errorf("failed to create load audit: %w", err)
	}
	return nil
}

// List retrieves the newest audits first
func (r *LoadAuditRepository) List(ctx context.Context, limit, offset int) ([]models.LoadAudit, error) {
	var audits []models.LoadAudit
	query := database.DB.WithContext(ctx).Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&audits).Error; err != nil {
		return nil, fmt.Errorf("failed to get load audits: %w", err)
	}
	return audits, nil
}

// GetBySourceKey retrieves the audits for one source location
func (r *LoadAuditRepository) GetBySourceKey(ctx context.Context, sourceKey string) ([]models.LoadAudit, error) {
	var audits []models.LoadAudit
	if err := database.DB.WithContext(ctx).
		Where("source_key = ?", sourceKey).
		Order("created_at DESC").
		Find(&audits).Error; err != nil {
		return nil, fmt.Errorf("failed to get load audits: %w", err)
	}
	return audits, nil
}
