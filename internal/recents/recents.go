// Package recents keeps the most-recently-used list of loaded locations
package recents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/otcheredev/dicom-study-loader/internal/models"
	"github.com/otcheredev/dicom-study-loader/internal/storage"
)

// StorageKey is the single key the list is persisted under
const StorageKey = "recent-locations"

// DefaultLimit is the number of entries kept
const DefaultLimit = 10

// ErrIndexOutOfRange is returned by Get for a position past the end of the list
var ErrIndexOutOfRange = errors.New("recent location index out of range")

// Manager reads and updates the persisted list. Newest entries come first and
// each study uid appears at most once.
type Manager struct {
	mu    sync.Mutex
	store storage.Store
	limit int
	now   func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithLimit overrides DefaultLimit
func WithLimit(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.limit = n
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a manager persisting through st
func NewManager(st storage.Store, opts ...Option) *Manager {
	m := &Manager{
		store: st,
		limit: DefaultLimit,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// List returns the entries, newest first
func (m *Manager) List(ctx context.Context) ([]models.RecentLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(ctx)
}

// Get returns the entry at index
func (m *Manager) Get(ctx context.Context, index int) (models.RecentLocation, error) {
	list, err := m.List(ctx)
	if err != nil {
		return models.RecentLocation{}, err
	}
	if index < 0 || index >= len(list) {
		return models.RecentLocation{}, ErrIndexOutOfRange
	}
	return list[index], nil
}

// Add moves loc to the front, replacing any entry for the same study, and
// evicts the oldest entries past the limit. A zero LastOpened is set to now.
func (m *Manager) Add(ctx context.Context, loc models.RecentLocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if loc.LastOpened.IsZero() {
		loc.LastOpened = m.now()
	}

	list, err := m.load(ctx)
	if err != nil {
		return err
	}

	next := make([]models.RecentLocation, 0, len(list)+1)
	next = append(next, loc)
	for _, existing := range list {
		if existing.StudyInstanceUID == loc.StudyInstanceUID {
			continue
		}
		next = append(next, existing)
	}
	if len(next) > m.limit {
		next = next[:m.limit]
	}
	return m.save(ctx, next)
}

// Clear removes every entry
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Delete(ctx, StorageKey); err != nil {
		return fmt.Errorf("failed to clear recent locations: %w", err)
	}
	return nil
}

func (m *Manager) load(ctx context.Context) ([]models.RecentLocation, error) {
	data, err := m.store.Get(ctx, StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read recent locations: %w", err)
	}

	// an unreadable list is dropped so the next save replaces it
	var list []models.RecentLocation
	if err := json.Unmarshal(data, &list); err != nil {
		log.Warn().Err(err).Str("key", StorageKey).Msg("Discarding unreadable recent locations")
		return nil, nil
	}
	return list, nil
}

func (m *Manager) save(ctx context.Context, list []models.RecentLocation) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode recent locations: %w", err)
	}
	if err := m.store.Set(ctx, StorageKey, data); err != nil {
		return fmt.Errorf("failed to persist recent locations: %w", err)
	}
	return nil
}
