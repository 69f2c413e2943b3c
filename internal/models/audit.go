package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LoadAudit records the outcome of one load call
type LoadAudit struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SourceKey     string     `gorm:"type:varchar(1024);index" json:"source_key"`
	SourceKind    SourceKind `gorm:"type:varchar(32);index" json:"source_kind"`
	Status        string     `gorm:"type:varchar(32);not null;index" json:"status"` // done, permission_denied, ...
	CacheHit      bool       `gorm:"not null" json:"cache_hit"`
	FilesRead     int        `json:"files_read"`
	InstanceCount int        `json:"instance_count"`
	StudyCount    int        `json:"study_count"`
	ErrorMessage  string     `gorm:"type:text" json:"error_message,omitempty"`
	Duration      int64      `json:"duration_ms"` // milliseconds
	CreatedAt     time.Time  `gorm:"index" json:"timestamp"`
}

// TableName overrides the table name
func (LoadAudit) TableName() string {
	return "load_audits"
}

// BeforeCreate hook
func (a *LoadAudit) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
