package source

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Permission is the access state of a directory handle
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionPrompt  Permission = "prompt"
	PermissionDenied  Permission = "denied"
)

// HandleKindFS is the descriptor kind of FSHandle
const HandleKindFS = "fs"

// HandleDescriptor is the serializable form of a directory handle
type HandleDescriptor struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
}

// Key identifies the directory
func (d HandleDescriptor) Key() string {
	if d.Path != "" {
		return d.Path
	}
	return d.Name
}

// DirectoryHandle is a directory with its own permission check and recursive listing
type DirectoryHandle interface {
	Name() string
	QueryPermission(ctx context.Context) (Permission, error)
	RequestPermission(ctx context.Context) (Permission, error)
	Files(ctx context.Context) ([]File, error)
	Descriptor() HandleDescriptor
}

// FSHandle is a DirectoryHandle over a local directory. Its permission state
// mirrors the operating system's: it cannot prompt.
type FSHandle struct {
	root string
}

// NewFSHandle creates a handle for root
func NewFSHandle(root string) *FSHandle {
	return &FSHandle{root: filepath.Clean(root)}
}

// Name returns the directory's base name
func (h *FSHandle) Name() string {
	return filepath.Base(h.root)
}

// QueryPermission reports granted when the directory can be listed
func (h *FSHandle) QueryPermission(ctx context.Context) (Permission, error) {
	f, err := os.Open(h.root)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return PermissionDenied, nil
		}
		return PermissionDenied, classifyFSError(err)
	}
	defer f.Close()

	if _, err := f.ReadDir(1); err != nil && errors.Is(err, fs.ErrPermission) {
		return PermissionDenied, nil
	}
	return PermissionGranted, nil
}

// RequestPermission is QueryPermission
func (h *FSHandle) RequestPermission(ctx context.Context) (Permission, error) {
	return h.QueryPermission(ctx)
}

// Files lists the directory recursively. Each file carries this handle.
func (h *FSHandle) Files(ctx context.Context) ([]File, error) {
	files, err := ListDirectory(ctx, h.root)
	if err != nil {
		return nil, err
	}
	for i := range files {
		files[i].Handle = h
	}
	return files, nil
}

// Descriptor returns the persisted form of the handle
func (h *FSHandle) Descriptor() HandleDescriptor {
	return HandleDescriptor{Kind: HandleKindFS, Name: h.Name(), Path: h.root}
}
