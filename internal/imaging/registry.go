// Package imaging is the boundary to the image codec. Parsed files are registered
// once and referenced afterwards by an opaque image id.
package imaging

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/zeebo/blake3"
)

// Scheme prefixes every image id handed out by the registry
const Scheme = "dicomfile:"

var (
	// ErrImageNotFound is returned for ids that were never registered or have been evicted
	ErrImageNotFound = errors.New("image not found")
	// ErrImageChanged is returned when the file behind an id no longer has the registered content
	ErrImageChanged = errors.New("image changed since it was registered")
)

// Opener re-reads the bytes of a registered image
type Opener func(ctx context.Context) ([]byte, error)

// BytesOpener returns an Opener over an in-memory buffer
func BytesOpener(buf []byte) Opener {
	return func(context.Context) ([]byte, error) {
		return buf, nil
	}
}

// Registry hands out image ids for parsed DICOM files. Only open is retained;
// buf is hashed for the id and may be released by the caller.
type Registry interface {
	RegisterImage(buf []byte, open Opener) string
}

// MemoryRegistry keeps openers in a bounded LRU keyed by content hash,
// so registering the same bytes twice yields the same id
type MemoryRegistry struct {
	openers *lru.Cache
}

// NewMemoryRegistry creates a registry holding at most size references
func NewMemoryRegistry(size int) (*MemoryRegistry, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create image registry: %w", err)
	}
	return &MemoryRegistry{openers: c}, nil
}

// ImageID returns the id a buffer is registered under
func ImageID(buf []byte) string {
	sum := blake3.Sum256(buf)
	return Scheme + hex.EncodeToString(sum[:])
}

// RegisterImage records open under the id of buf and returns the id.
// A later registration of the same content replaces the opener.
func (r *MemoryRegistry) RegisterImage(buf []byte, open Opener) string {
	id := ImageID(buf)
	if open == nil {
		open = BytesOpener(buf)
	}
	r.openers.Add(id, open)
	return id
}

// Get re-reads the image registered under id
func (r *MemoryRegistry) Get(ctx context.Context, id string) ([]byte, error) {
	if !strings.HasPrefix(id, Scheme) {
		return nil, fmt.Errorf("invalid image id %q: %w", id, ErrImageNotFound)
	}
	v, ok := r.openers.Get(id)
	if !ok {
		return nil, ErrImageNotFound
	}
	buf, err := v.(Opener)(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", id, err)
	}
	if ImageID(buf) != id {
		r.openers.Remove(id)
		return nil, fmt.Errorf("%s: %w", id, ErrImageChanged)
	}
	return buf, nil
}

// Len returns the number of references currently held
func (r *MemoryRegistry) Len() int {
	return r.openers.Len()
}
