package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

func newDataset(t *testing.T, values map[tag.Tag]interface{}) *dicom.Dataset {
	t.Helper()
	ds := &dicom.Dataset{}
	for tg, v := range values {
		elem, err := dicom.NewElement(tg, v)
		require.NoError(t, err)
		ds.Elements = append(ds.Elements, elem)
	}
	return ds
}

func TestReadRecoversFromPanic(t *testing.T) {
	got := read("fallback", func() (string, error) {
		panic("decoder blew up")
	})
	assert.Equal(t, "fallback", got)
}

func TestStringAccessor(t *testing.T) {
	ds := newDataset(t, map[tag.Tag]interface{}{
		tag.PatientID:        []string{"PID-1 \x00"},
		tag.StudyDescription: []string{""},
		tag.Rows:             []int{512},
	})

	assert.Equal(t, "PID-1", String(ds, tag.PatientID, "x"))
	assert.Equal(t, "x", String(ds, tag.StudyDescription, "x"))
	assert.Equal(t, "x", String(ds, tag.AccessionNumber, "x"))
	assert.Equal(t, "512", String(ds, tag.Rows, ""))
}

func TestNumericAccessors(t *testing.T) {
	ds := newDataset(t, map[tag.Tag]interface{}{
		tag.RescaleSlope:         []string{"invalid"},
		tag.RescaleIntercept:     []string{"-1024"},
		tag.SliceThickness:       []string{"NaN"},
		tag.SliceLocation:        []string{"12.5"},
		tag.InstanceNumber:       []string{"7"},
		tag.PixelSpacing:         []string{"0.5", "0.75"},
		tag.ImagePositionPatient: []string{"1", "oops", "3"},
	})

	assert.Equal(t, 1.0, Number(ds, tag.RescaleSlope, 1))
	assert.Equal(t, -1024.0, Number(ds, tag.RescaleIntercept, 0))
	assert.Nil(t, OptionalNumber(ds, tag.SliceThickness))
	require.NotNil(t, OptionalNumber(ds, tag.SliceLocation))
	assert.Equal(t, 12.5, *OptionalNumber(ds, tag.SliceLocation))
	assert.Equal(t, 7, Int(ds, tag.InstanceNumber, 0))
	assert.Equal(t, 3, Int(ds, tag.SeriesNumber, 3))
	assert.Equal(t, []float64{0.5, 0.75}, Numbers(ds, tag.PixelSpacing))
	assert.Nil(t, Numbers(ds, tag.ImagePositionPatient))
	assert.Nil(t, Numbers(ds, tag.ImageOrientationPatient))
}

func TestWindowLevel(t *testing.T) {
	tests := []struct {
		name     string
		values   map[tag.Tag]interface{}
		modality string
		center   float64
		width    float64
	}{
		{
			name:     "CT without window tags",
			values:   map[tag.Tag]interface{}{},
			modality: "CT",
			center:   40,
			width:    400,
		},
		{
			name: "MR with non-numeric center",
			values: map[tag.Tag]interface{}{
				tag.WindowCenter: []string{"invalid"},
				tag.WindowWidth:  []string{"900"},
			},
			modality: "MR",
			center:   600,
			width:    1200,
		},
		{
			name: "zero width discards both",
			values: map[tag.Tag]interface{}{
				tag.WindowCenter: []string{"50"},
				tag.WindowWidth:  []string{"0"},
			},
			modality: "CT",
			center:   40,
			width:    400,
		},
		{
			name: "unknown modality uses OT",
			values: map[tag.Tag]interface{}{
				tag.WindowCenter: []string{"50"},
			},
			modality: "ZZ",
			center:   128,
			width:    256,
		},
		{
			name: "dicom values kept",
			values: map[tag.Tag]interface{}{
				tag.WindowCenter: []string{"35", "40"},
				tag.WindowWidth:  []string{"350", "400"},
			},
			modality: "CT",
			center:   35,
			width:    350,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wl := WindowLevel(newDataset(t, tt.values), tt.modality)
			assert.Equal(t, tt.center, wl.WindowCenter)
			assert.Equal(t, tt.width, wl.WindowWidth)
		})
	}
}

func TestExtractDefaults(t *testing.T) {
	e, err := New()
	require.NoError(t, err)

	m := e.Extract(newDataset(t, map[tag.Tag]interface{}{
		tag.Rows:    []int{64},
		tag.Columns: []int{32},
	}))

	assert.Equal(t, "Unknown", m.PatientName)
	assert.Equal(t, "Unknown", m.PatientID)
	assert.Equal(t, "OT", m.Modality)
	assert.Empty(t, m.StudyInstanceUID)
	assert.Empty(t, m.SeriesInstanceUID)
	assert.Empty(t, m.SOPInstanceUID)
	assert.Equal(t, 64, m.Rows)
	assert.Equal(t, 32, m.Columns)
	assert.Equal(t, 1.0, m.RescaleSlope)
	assert.Equal(t, 128.0, m.WindowCenter)
	assert.Equal(t, 256.0, m.WindowWidth)
	assert.Empty(t, m.TransferSyntaxName)
	assert.Nil(t, m.CustomTags)
}

func TestExtractFields(t *testing.T) {
	e, err := New("ProtocolName", "StationName")
	require.NoError(t, err)

	m := e.Extract(newDataset(t, map[tag.Tag]interface{}{
		tag.TransferSyntaxUID: []string{"1.2.840.10008.1.2.4.50"},
		tag.PatientName:       []string{"Doe^Jane"},
		tag.PatientID:         []string{"P1"},
		tag.StudyInstanceUID:  []string{"1.2.3"},
		tag.SeriesInstanceUID: []string{"1.2.3.4"},
		tag.SOPInstanceUID:    []string{"1.2.3.4.5"},
		tag.Modality:          []string{"CT"},
		tag.SeriesNumber:      []string{"2"},
		tag.InstanceNumber:    []string{"9"},
		tag.ProtocolName:      []string{"HEAD ROUTINE"},
	}))

	assert.Equal(t, "Doe^Jane", m.PatientName)
	assert.Equal(t, "1.2.3", m.StudyInstanceUID)
	assert.Equal(t, 2, m.SeriesNumber)
	assert.Equal(t, 9, m.InstanceNumber)
	assert.Equal(t, "JPEG Baseline (Process 1)", m.TransferSyntaxName)
	assert.False(t, m.Lossless)
	assert.Equal(t, map[string]string{"ProtocolName": "HEAD ROUTINE"}, m.CustomTags)
}

func TestNewRejectsUnknownKeyword(t *testing.T) {
	_, err := New("NotARealKeyword")
	assert.Error(t, err)
}

func TestDecodeText(t *testing.T) {
	// "Müller" in ISO 8859-1
	latin1 := string([]byte{'M', 0xfc, 'l', 'l', 'e', 'r'})
	assert.Equal(t, "Müller", decodeText(latin1, "ISO_IR 100"))
	assert.Equal(t, "Müller", decodeText("Müller", "ISO_IR 100"))
	assert.Equal(t, "Müller", decodeText(latin1, ""))
}
