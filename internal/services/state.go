package services

// State is a step of one load call
type State string

const (
	StateIdle                 State = "idle"
	StateCheckingCache        State = "checkingCache"
	StateRequestingPermission State = "requestingPermission"
	StateReadingFiles         State = "readingFiles"
	StateParsing              State = "parsing"
	StateOrganizing           State = "organizing"
	StateCaching              State = "caching"
	StateDone                 State = "done"

	// terminal failures
	StatePermissionDenied    State = "permissionDenied"
	StateDirectoryNotFound   State = "directoryNotFound"
	StateNoFilesFound        State = "noFilesFound"
	StateNoValidStudiesFound State = "noValidStudiesFound"
	StateReadError           State = "readError"
)

// Terminal reports whether no further transition follows s
func (s State) Terminal() bool {
	switch s {
	case StateDone, StatePermissionDenied, StateDirectoryNotFound,
		StateNoFilesFound, StateNoValidStudiesFound, StateReadError:
		return true
	}
	return false
}

// StateObserver is notified of every transition of every load call
type StateObserver func(sourceKey string, state State)
