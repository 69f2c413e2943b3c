package models

import "time"

// DetectorType represents the kind of vision detector backend
type DetectorType string

const (
	DetectorTypeSidecar DetectorType = "sidecar"
)

// DetectorConfig describes how to reach a vision detector
type DetectorConfig struct {
	Name     string        `json:"name"`
	Type     DetectorType  `json:"type"`
	Endpoint string        `json:"endpoint"`
	Timeout  time.Duration `json:"timeout"`
	APIKey   string        `json:"-"`
}

// DetectorStatus represents the health of a vision detector
type DetectorStatus struct {
	IsAvailable  bool      `json:"is_available"`
	LastChecked  time.Time `json:"last_checked"`
	ResponseTime int64     `json:"response_time_ms"`
	Version      string    `json:"version,omitempty"`
	Device       string    `json:"device,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// DetectRequest asks a detector to analyze one instance file
type DetectRequest struct {
	FilePath string  `json:"file_path"`
	FastMode bool    `json:"fast_mode"`
	Device   *string `json:"device,omitempty"`
}

// Point3D is a position in patient space
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Detection is one labelled structure found by a detector
type Detection struct {
	Label      string  `json:"label"`
	Center     Point3D `json:"center"`
	Confidence float64 `json:"confidence"`
}

// DetectResult is the detector response
type DetectResult struct {
	Success          bool        `json:"success"`
	Vertebrae        []Detection `json:"vertebrae"`
	ProcessingTimeMs float64     `json:"processing_time_ms"`
	Error            *string     `json:"error,omitempty"`
}
