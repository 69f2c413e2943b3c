package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/otcheredev/dicom-study-loader/internal/models"
)

const defaultSidecarTimeout = 120 * time.Second

// ErrFileNotFound is returned when the sidecar cannot see the requested file
var ErrFileNotFound = errors.New("detector could not find file")

// SidecarError is a non-2xx response from the sidecar
type SidecarError struct {
	StatusCode int
	Detail     string
}

func (e *SidecarError) Error() string {
	return fmt.Sprintf("detector returned status %d: %s", e.StatusCode, e.Detail)
}

// healthResponse is the sidecar's /api/health body
type healthResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	Version       string `json:"version"`
	Device        string `json:"device"`
	CUDAAvailable bool   `json:"cuda_available"`
}

// SidecarAdapter implements VisionDetector for the HTTP inference sidecar
type SidecarAdapter struct {
	BaseAdapter
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewSidecarAdapter creates a new sidecar adapter
func NewSidecarAdapter(config models.DetectorConfig) (*SidecarAdapter, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("detector %q has no endpoint", config.Name)
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultSidecarTimeout
	}

	return &SidecarAdapter{
		BaseAdapter: BaseAdapter{config: config},
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(config.Endpoint, "/"),
		apiKey:  config.APIKey,
	}, nil
}

func (s *SidecarAdapter) Type() models.DetectorType {
	return models.DetectorTypeSidecar
}

// Detect posts the request to /api/detect-vertebrae
func (s *SidecarAdapter) Detect(ctx context.Context, detectReq models.DetectRequest) (*models.DetectResult, error) {
	body, err := json.Marshal(detectReq)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/detect-vertebrae", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	s.addAuth(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		serr := readSidecarError(resp)
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, serr.Detail)
		}
		return nil, serr
	}

	var result models.DetectResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	log.Debug().
		Str("detector", s.Name()).
		Str("file", detectReq.FilePath).
		Int("detections", len(result.Vertebrae)).
		Dur("duration", time.Since(start)).
		Msg("Detection completed")

	return &result, nil
}

// Health queries /api/health. A failed check returns the status and the error.
func (s *SidecarAdapter) Health(ctx context.Context) (*models.DetectorStatus, error) {
	start := time.Now()
	status := &models.DetectorStatus{
		LastChecked: start,
	}

	health, err := s.fetchHealth(ctx)
	status.ResponseTime = time.Since(start).Milliseconds()

	if err != nil {
		status.IsAvailable = false
		status.ErrorMessage = err.Error()
		return status, err
	}

	status.IsAvailable = health.Status == "healthy"
	status.Version = health.Version
	status.Device = health.Device
	if !status.IsAvailable {
		status.ErrorMessage = health.Message
	}
	return status, nil
}

func (s *SidecarAdapter) fetchHealth(ctx context.Context) (*healthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	s.addAuth(req)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readSidecarError(resp)
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &health, nil
}

// Close closes the adapter
func (s *SidecarAdapter) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// addAuth adds authentication to the request
func (s *SidecarAdapter) addAuth(req *http.Request) {
	if s.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.apiKey))
	}
}

// readSidecarError extracts the "detail" field the sidecar puts in error bodies
func readSidecarError(resp *http.Response) *SidecarError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	serr := &SidecarError{StatusCode: resp.StatusCode, Detail: strings.TrimSpace(string(body))}

	var payload struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Detail != "" {
		serr.Detail = payload.Detail
	}
	return serr
}
