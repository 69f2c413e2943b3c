package modality

import "maps"

// ModalityState is the remembered window/level for one modality in a viewport
type ModalityState struct {
	Current      WindowLevel  `json:"current"`
	DicomDefault *WindowLevel `json:"dicomDefault,omitempty"`
}

// ViewportState maps modality codes to their remembered window/level.
// Transitions return a new value and never mutate the receiver.
type ViewportState map[string]ModalityState

// ApplyNewDicomDefaults records the window/level carried by a newly displayed
// image. The current value follows the new defaults unless the user has
// customized this modality.
func (s ViewportState) ApplyNewDicomDefaults(modality string, wl WindowLevel) ViewportState {
	next := maps.Clone(s)
	if next == nil {
		next = make(ViewportState)
	}
	prev, seen := s[modality]
	dicom := wl
	state := ModalityState{Current: wl, DicomDefault: &dicom}
	if seen && s.IsCustomized(modality) {
		state.Current = prev.Current
	}
	next[modality] = state
	return next
}

// ApplyUserAdjustment records an interactive window/level change
func (s ViewportState) ApplyUserAdjustment(modality string, wl WindowLevel) ViewportState {
	next := maps.Clone(s)
	if next == nil {
		next = make(ViewportState)
	}
	state := s[modality]
	state.Current = wl
	next[modality] = state
	return next
}

// Current returns the window/level to display for a modality
func (s ViewportState) Current(modality string) WindowLevel {
	if state, ok := s[modality]; ok {
		return state.Current
	}
	return Default(modality)
}

// IsCustomized reports whether the current value differs from both the
// table default and the last DICOM default seen for the modality.
func (s ViewportState) IsCustomized(modality string) bool {
	state, ok := s[modality]
	if !ok {
		return false
	}
	if state.Current == Default(modality) {
		return false
	}
	if state.DicomDefault != nil && state.Current == *state.DicomDefault {
		return false
	}
	return true
}
