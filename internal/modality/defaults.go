// Package modality holds per-modality display defaults and the viewport
// window/level state derived from them.
package modality

import "strings"

// WindowLevel is a window-center/window-width pair
type WindowLevel struct {
	WindowCenter float64 `json:"windowCenter"`
	WindowWidth  float64 `json:"windowWidth"`
}

// Fallback is the modality code whose entry is used for unrecognized modalities
const Fallback = "OT"

var defaults = map[string]WindowLevel{
	"CT": {WindowCenter: 40, WindowWidth: 400},
	"MR": {WindowCenter: 600, WindowWidth: 1200},
	"CR": {WindowCenter: 2048, WindowWidth: 4096},
	"DX": {WindowCenter: 2048, WindowWidth: 4096},
	"MG": {WindowCenter: 2048, WindowWidth: 4096},
	"XA": {WindowCenter: 128, WindowWidth: 256},
	"RF": {WindowCenter: 128, WindowWidth: 256},
	"US": {WindowCenter: 128, WindowWidth: 256},
	"NM": {WindowCenter: 128, WindowWidth: 256},
	"PT": {WindowCenter: 128, WindowWidth: 256},
	"OT": {WindowCenter: 128, WindowWidth: 256},
}

// Default returns the display default for a modality code, falling back to OT.
func Default(modality string) WindowLevel {
	if wl, ok := defaults[strings.ToUpper(strings.TrimSpace(modality))]; ok {
		return wl
	}
	return defaults[Fallback]
}

// Known reports whether the table has an entry for the modality
func Known(modality string) bool {
	_, ok := defaults[strings.ToUpper(strings.TrimSpace(modality))]
	return ok
}

// Codes returns the modality codes in the table
func Codes() []string {
	codes := make([]string, 0, len(defaults))
	for code := range defaults {
		codes = append(codes, code)
	}
	return codes
}
