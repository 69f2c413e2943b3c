// Package transfersyntax classifies DICOM transfer syntaxes by codec name and lossiness
package transfersyntax

import "fmt"

// Syntax represents a DICOM Transfer Syntax UID
type Syntax string

// Standard Transfer Syntaxes
const (
	// Uncompressed
	ImplicitVRLittleEndian    Syntax = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian    Syntax = "1.2.840.10008.1.2.1"
	ExplicitVRLittleEndianExt Syntax = "1.2.840.10008.1.2.1.64"
	DeflatedExplicitVR        Syntax = "1.2.840.10008.1.2.1.99"
	ExplicitVRBigEndian       Syntax = "1.2.840.10008.1.2.2" // Retired

	// JPEG
	JPEGBaseline           Syntax = "1.2.840.10008.1.2.4.50"
	JPEGExtended           Syntax = "1.2.840.10008.1.2.4.51"
	JPEGLossless           Syntax = "1.2.840.10008.1.2.4.57"
	JPEGLosslessFirstOrder Syntax = "1.2.840.10008.1.2.4.70"

	// JPEG-LS
	JPEGLSLossless     Syntax = "1.2.840.10008.1.2.4.80"
	JPEGLSNearLossless Syntax = "1.2.840.10008.1.2.4.81"

	// JPEG 2000
	JPEG2000Lossless Syntax = "1.2.840.10008.1.2.4.90"
	JPEG2000         Syntax = "1.2.840.10008.1.2.4.91"

	// High-Throughput JPEG 2000. The lossless-only profiles (.201, .202) are
	// outside the lossless set and stay unnamed.
	HTJ2K Syntax = "1.2.840.10008.1.2.4.203"

	// Video
	MPEG2MainProfile Syntax = "1.2.840.10008.1.2.4.100"
	MPEG4AVCH264     Syntax = "1.2.840.10008.1.2.4.102"
	HEVCH265         Syntax = "1.2.840.10008.1.2.4.107"

	// Other
	RLELossless Syntax = "1.2.840.10008.1.2.5"
)

var names = map[Syntax]string{
	ImplicitVRLittleEndian:    "Implicit VR Little Endian",
	ExplicitVRLittleEndian:    "Explicit VR Little Endian",
	ExplicitVRLittleEndianExt: "Explicit VR Little Endian Extended",
	DeflatedExplicitVR:        "Deflated Explicit VR Little Endian",
	ExplicitVRBigEndian:       "Explicit VR Big Endian",
	JPEGBaseline:              "JPEG Baseline (Process 1)",
	JPEGExtended:              "JPEG Extended (Process 2 & 4)",
	JPEGLossless:              "JPEG Lossless (Process 14)",
	JPEGLosslessFirstOrder:    "JPEG Lossless (Process 14, SV1)",
	JPEGLSLossless:            "JPEG-LS Lossless",
	JPEGLSNearLossless:        "JPEG-LS Near-Lossless",
	JPEG2000Lossless:          "JPEG 2000 Lossless",
	JPEG2000:                  "JPEG 2000",
	HTJ2K:                     "High-Throughput JPEG 2000",
	MPEG2MainProfile:          "MPEG2 Main Profile",
	MPEG4AVCH264:              "MPEG-4 AVC/H.264 High Profile",
	HEVCH265:                  "HEVC/H.265 Main Profile",
	RLELossless:               "RLE Lossless",
}

var lossless = map[Syntax]bool{
	ImplicitVRLittleEndian:    true,
	ExplicitVRLittleEndian:    true,
	ExplicitVRLittleEndianExt: true,
	DeflatedExplicitVR:        true,
	ExplicitVRBigEndian:       true,
	JPEGLossless:              true,
	JPEGLosslessFirstOrder:    true,
	JPEGLSLossless:            true,
	JPEG2000Lossless:          true,
	RLELossless:               true,
}

// Name returns a human-readable name, or "Unknown (<uid>)" for unlisted syntaxes
func (s Syntax) Name() string {
	if name, ok := names[s]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (%s)", string(s))
}

// IsLossless reports membership in the lossless set. Anything else is lossy.
func (s Syntax) IsLossless() bool {
	return lossless[s]
}

// Classification is the result of classifying one transfer syntax
type Classification struct {
	UID      string
	Name     string
	Lossless bool
}

// Classify looks up the name and lossless flag for a transfer syntax UID
func Classify(uid string) Classification {
	s := Syntax(uid)
	return Classification{
		UID:      uid,
		Name:     s.Name(),
		Lossless: s.IsLossless(),
	}
}

// Warning returns the lossy-compression message for a classification,
// or "" when the syntax is lossless.
func (c Classification) Warning() string {
	if c.Lossless {
		return ""
	}
	return fmt.Sprintf("Image uses lossy compression (%s); some image information may have been discarded", c.Name)
}
