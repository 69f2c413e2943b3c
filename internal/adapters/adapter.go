package adapters

import (
	"context"

	"github.com/otcheredev/dicom-study-loader/internal/models"
)

// VisionDetector defines the interface that all vision detector adapters must implement
type VisionDetector interface {
	// Detect analyzes one instance file
	Detect(ctx context.Context, req models.DetectRequest) (*models.DetectResult, error)

	// Connection management
	Health(ctx context.Context) (*models.DetectorStatus, error)
	Close() error

	// Adapter info
	Type() models.DetectorType
	Name() string
}

// BaseAdapter provides common functionality for all adapters
type BaseAdapter struct {
	config models.DetectorConfig
}

func (b *BaseAdapter) Type() models.DetectorType {
	return b.config.Type
}

func (b *BaseAdapter) Name() string {
	return b.config.Name
}

func (b *BaseAdapter) GetConfig() models.DetectorConfig {
	return b.config
}
