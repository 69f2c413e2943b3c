package cache

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/otcheredev/dicom-study-loader/internal/models"
)

// StudyKeyPrefix namespaces study entries inside the shared byte cache
const StudyKeyPrefix = "studies:"

// StudyKey returns the cache key for a source location
func StudyKey(sourceKey string) string {
	return StudyKeyPrefix + sourceKey
}

// StudyCache maps a source-location key to the organized study list loaded from it.
// Entries never expire; they live until overwritten or cleared.
// Backend failures are logged and reported as a miss.
type StudyCache struct {
	cache Cache
}

// NewStudyCache wraps a byte cache
func NewStudyCache(c Cache) *StudyCache {
	return &StudyCache{cache: c}
}

// Get returns the studies stored for sourceKey
func (s *StudyCache) Get(ctx context.Context, sourceKey string) ([]models.Study, bool) {
	data, err := s.cache.Get(ctx, StudyKey(sourceKey))
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			log.Warn().Err(err).Str("source_key", sourceKey).Msg("Study cache read failed, treating as miss")
		}
		return nil, false
	}

	var studies []models.Study
	if err := json.Unmarshal(data, &studies); err != nil {
		log.Warn().Err(err).Str("source_key", sourceKey).Msg("Corrupt study cache entry, treating as miss")
		return nil, false
	}
	return studies, true
}

// Put replaces the entry for sourceKey. The whole array is serialized before
// the write, so readers see the old or the new value, never a mix.
func (s *StudyCache) Put(ctx context.Context, sourceKey string, studies []models.Study) error {
	data, err := json.Marshal(studies)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, StudyKey(sourceKey), data, 0)
}

// Delete removes the entry for sourceKey
func (s *StudyCache) Delete(ctx context.Context, sourceKey string) error {
	return s.cache.Delete(ctx, StudyKey(sourceKey))
}

// Clear removes every study entry
func (s *StudyCache) Clear(ctx context.Context) error {
	return s.cache.Clear(ctx, StudyKeyPrefix+"*")
}
