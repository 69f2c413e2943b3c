package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed load
type ErrorKind string

const (
	KindDirectoryNotFound ErrorKind = "directory_not_found"
	KindPermissionDenied  ErrorKind = "permission_denied"
	KindNoFilesFound      ErrorKind = "no_files_found"
	KindNoValidStudies    ErrorKind = "no_valid_studies"
	KindReadError         ErrorKind = "read_error"
)

// Sentinels matched by errors.Is against a *LoadError of the same kind
var (
	ErrDirectoryNotFound = errors.New("directory was moved or deleted")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrNoFilesFound      = errors.New("no DICOM files found")
	ErrNoValidStudies    = errors.New("no valid studies found")
	ErrReadError         = errors.New("failed to read files")
)

var sentinels = map[ErrorKind]error{
	KindDirectoryNotFound: ErrDirectoryNotFound,
	KindPermissionDenied:  ErrPermissionDenied,
	KindNoFilesFound:      ErrNoFilesFound,
	KindNoValidStudies:    ErrNoValidStudies,
	KindReadError:         ErrReadError,
}

var reasons = map[ErrorKind]string{
	KindDirectoryNotFound: "Directory was moved or deleted",
	KindPermissionDenied:  "Permission denied",
	KindNoFilesFound:      "No DICOM files found",
	KindNoValidStudies:    "No valid studies found",
	KindReadError:         "Failed to read files",
}

// LoadError is the single terminal failure of a load call
type LoadError struct {
	Kind      ErrorKind
	Reason    string
	SourceKey string
	Err       error
}

func newLoadError(kind ErrorKind, sourceKey string, err error) *LoadError {
	return &LoadError{
		Kind:      kind,
		Reason:    reasons[kind],
		SourceKey: sourceKey,
		Err:       err,
	}
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.SourceKey, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.SourceKey)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e.Kind
func (e *LoadError) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// State returns the terminal state for the error kind
func (e *LoadError) State() State {
	switch e.Kind {
	case KindDirectoryNotFound:
		return StateDirectoryNotFound
	case KindPermissionDenied:
		return StatePermissionDenied
	case KindNoFilesFound:
		return StateNoFilesFound
	case KindNoValidStudies:
		return StateNoValidStudiesFound
	default:
		return StateReadError
	}
}
