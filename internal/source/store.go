package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/otcheredev/dicom-study-loader/internal/storage"
)

// HandleKeyPrefix namespaces persisted directory handles in the key-value store
const HandleKeyPrefix = "handle:"

// ErrHandleNotFound is returned for unknown handle ids
var ErrHandleNotFound = errors.New("directory handle not found")

// Resolver turns a persisted descriptor back into a live handle
type Resolver func(d HandleDescriptor) (DirectoryHandle, error)

// ResolveFS resolves descriptors of kind "fs"
func ResolveFS(d HandleDescriptor) (DirectoryHandle, error) {
	if d.Kind != HandleKindFS {
		return nil, fmt.Errorf("unsupported handle kind: %s", d.Kind)
	}
	return NewFSHandle(d.Path), nil
}

// HandleStore persists directory handles under generated UUID keys
type HandleStore struct {
	store   storage.Store
	resolve Resolver
}

// NewHandleStore creates a handle store. A nil resolver defaults to ResolveFS.
func NewHandleStore(st storage.Store, resolve Resolver) *HandleStore {
	if resolve == nil {
		resolve = ResolveFS
	}
	return &HandleStore{store: st, resolve: resolve}
}

// Save persists handle under a freshly minted id and returns the id
func (s *HandleStore) Save(ctx context.Context, handle DirectoryHandle) (string, error) {
	data, err := json.Marshal(handle.Descriptor())
	if err != nil {
		return "", fmt.Errorf("failed to marshal handle: %w", err)
	}
	id := uuid.New().String()
	if err := s.store.Set(ctx, HandleKeyPrefix+id, data); err != nil {
		return "", fmt.Errorf("failed to persist handle: %w", err)
	}
	return id, nil
}

// Load restores the handle saved under id
func (s *HandleStore) Load(ctx context.Context, id string) (DirectoryHandle, error) {
	data, err := s.store.Get(ctx, HandleKeyPrefix+id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrHandleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load handle: %w", err)
	}

	var d HandleDescriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to decode handle %s: %w", id, err)
	}
	return s.resolve(d)
}

// Delete forgets the handle saved under id
func (s *HandleStore) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, HandleKeyPrefix+id)
}
