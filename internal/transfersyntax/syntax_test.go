package transfersyntax

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		uid      string
		name     string
		lossless bool
	}{
		{"1.2.840.10008.1.2", "Implicit VR Little Endian", true},
		{"1.2.840.10008.1.2.1", "Explicit VR Little Endian", true},
		{"1.2.840.10008.1.2.2", "Explicit VR Big Endian", true},
		{"1.2.840.10008.1.2.1.99", "Deflated Explicit VR Little Endian", true},
		{"1.2.840.10008.1.2.4.57", "JPEG Lossless (Process 14)", true},
		{"1.2.840.10008.1.2.4.70", "JPEG Lossless (Process 14, SV1)", true},
		{"1.2.840.10008.1.2.4.80", "JPEG-LS Lossless", true},
		{"1.2.840.10008.1.2.4.90", "JPEG 2000 Lossless", true},
		{"1.2.840.10008.1.2.5", "RLE Lossless", true},
		{"1.2.840.10008.1.2.4.50", "JPEG Baseline (Process 1)", false},
		{"1.2.840.10008.1.2.4.81", "JPEG-LS Near-Lossless", false},
		{"1.2.840.10008.1.2.4.91", "JPEG 2000", false},
		{"1.2.840.10008.1.2.4.201", "Unknown (1.2.840.10008.1.2.4.201)", false},
		{"1.2.840.10008.1.2.4.203", "High-Throughput JPEG 2000", false},
		{"1.2.3.4", "Unknown (1.2.3.4)", false},
	}

	for _, tt := range tests {
		t.Run(tt.uid, func(t *testing.T) {
			c := Classify(tt.uid)
			assert.Equal(t, tt.name, c.Name)
			assert.Equal(t, tt.lossless, c.Lossless)
			if tt.lossless {
				assert.Empty(t, c.Warning())
			} else {
				assert.Contains(t, c.Warning(), tt.name)
			}
		})
	}
}

func TestLossyNamesDoNotClaimLossless(t *testing.T) {
	for s, name := range names {
		if s.IsLossless() || strings.Contains(name, "Near-Lossless") {
			continue
		}
		assert.NotContains(t, name, "Lossless", string(s))
	}
}
