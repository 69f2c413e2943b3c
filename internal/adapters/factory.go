package adapters

import (
	"fmt"
	"sync"

	"github.com/otcheredev/dicom-study-loader/internal/models"
)

// AdapterFactory manages vision detector instances
type AdapterFactory struct {
	mu       sync.RWMutex
	adapters map[string]VisionDetector // keyed by detector name
}

// NewAdapterFactory creates a new adapter factory
func NewAdapterFactory() *AdapterFactory {
	return &AdapterFactory{
		adapters: make(map[string]VisionDetector),
	}
}

// GetAdapter gets or creates the detector for config
func (f *AdapterFactory) GetAdapter(config models.DetectorConfig) (VisionDetector, error) {
	f.mu.RLock()
	adapter, exists := f.adapters[config.Name]
	f.mu.RUnlock()

	if exists {
		return adapter, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Double-check after acquiring write lock
	if adapter, exists := f.adapters[config.Name]; exists {
		return adapter, nil
	}

	var err error
	switch config.Type {
	case models.DetectorTypeSidecar:
		adapter, err = NewSidecarAdapter(config)
	default:
		return nil, fmt.Errorf("unsupported detector type: %s", config.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create adapter: %w", err)
	}

	f.adapters[config.Name] = adapter
	return adapter, nil
}

// RemoveAdapter closes and forgets the detector registered under name
func (f *AdapterFactory) RemoveAdapter(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	adapter, exists := f.adapters[name]
	if !exists {
		return nil
	}

	if err := adapter.Close(); err != nil {
		return fmt.Errorf("failed to close adapter: %w", err)
	}

	delete(f.adapters, name)
	return nil
}

// CloseAll closes all adapters
func (f *AdapterFactory) CloseAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for name, adapter := range f.adapters {
		if err := adapter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close detector %s: %w", name, err))
		}
		delete(f.adapters, name)
	}

	if len(errs) > 0 {
		return fmt.Errorf("encountered %d errors while closing adapters", len(errs))
	}

	return nil
}
