// Package source models where study files come from: a filesystem path,
// a directory handle with its own permission model, or a flat list of files.
package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/otcheredev/dicom-study-loader/internal/models"
)

var (
	// ErrDirectoryNotFound is returned when the source directory was moved or deleted
	ErrDirectoryNotFound = errors.New("directory not found")
	// ErrPermissionDenied is returned when read access to the source is refused
	ErrPermissionDenied = errors.New("permission denied")
)

// Ref is a source reference. The concrete types are PathRef, HandleRef and FilesRef.
type Ref interface {
	// Key is the source-location key used for caching and recents
	Key() string
	Kind() models.SourceKind
	isRef()
}

// PathRef reads every file below a filesystem directory
type PathRef struct {
	Path string
}

// Dir returns the cleaned folder path
func (r PathRef) Dir() string { return filepath.Clean(r.Path) }

// Key returns the cleaned folder path, so "/data/ct" and "/data/ct/" share one key
func (r PathRef) Key() string { return r.Dir() }

// Kind returns SourceKindPath
func (r PathRef) Kind() models.SourceKind { return models.SourceKindPath }

func (PathRef) isRef() {}

// HandleRef reads through a directory handle. HandleID is set when the handle
// was restored from the handle store.
type HandleRef struct {
	Handle   DirectoryHandle
	HandleID string
}

// Key identifies the directory the handle points at
func (r HandleRef) Key() string { return "dir:" + r.Handle.Descriptor().Key() }

// Kind returns SourceKindDirectoryHandle
func (r HandleRef) Kind() models.SourceKind { return models.SourceKindDirectoryHandle }

func (HandleRef) isRef() {}

// FilesRef is an already selected set of files. SourceKey may be empty, in
// which case the load is neither cached nor remembered.
type FilesRef struct {
	SourceKey string
	Files     []File
}

// Key returns the caller supplied key
func (r FilesRef) Key() string { return r.SourceKey }

// Kind returns SourceKindFiles
func (r FilesRef) Kind() models.SourceKind { return models.SourceKindFiles }

func (FilesRef) isRef() {}

// File is one readable file. Handle is the directory handle it was listed
// through, if any.
type File struct {
	Name   string
	Path   string
	Handle DirectoryHandle
	read   func(ctx context.Context) ([]byte, error)
}

// NewFile creates a file backed by read
func NewFile(name, path string, read func(ctx context.Context) ([]byte, error)) File {
	return File{Name: name, Path: path, read: read}
}

// BytesFile creates an in-memory file
func BytesFile(name string, data []byte) File {
	return NewFile(name, name, func(context.Context) ([]byte, error) {
		return data, nil
	})
}

// OSFile creates a file read from disk on demand
func OSFile(name, path string) File {
	return NewFile(name, path, func(ctx context.Context) ([]byte, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, classifyFSError(err)
		}
		return data, nil
	})
}

// Read returns the file contents
func (f File) Read(ctx context.Context) ([]byte, error) {
	if f.read == nil {
		return nil, fmt.Errorf("file %s has no reader", f.Name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.read(ctx)
}

func classifyFSError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", ErrDirectoryNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	default:
		return err
	}
}
