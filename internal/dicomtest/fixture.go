// Package dicomtest builds DICOM Part 10 buffers for tests
package dicomtest

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// ExplicitVRLittleEndian is the transfer syntax fixtures are written with unless overridden
const ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"

// Image describes one fixture file. Empty strings leave the tag out entirely.
type Image struct {
	TransferSyntax    string
	PatientName       string
	PatientID         string
	StudyInstanceUID  string
	StudyDate         string
	StudyDescription  string
	SeriesInstanceUID string
	SeriesNumber      string
	SeriesDescription string
	Modality          string
	SOPInstanceUID    string
	InstanceNumber    string
	WindowCenter      string
	WindowWidth       string
	Rows              int
	Columns           int

	// NoPixelData produces a metadata-only file such as a DICOMDIR record
	NoPixelData bool
	// EmptyStudyUID writes the StudyInstanceUID tag with an empty value
	EmptyStudyUID bool
}

func mustNewElement(t tag.Tag, value interface{}) *dicom.Element {
	elem, err := dicom.NewElement(t, value)
	if err != nil {
		panic(fmt.Sprintf("failed to create element %v: %v", t, err))
	}
	return elem
}

// Dataset returns the in-memory dataset for img
func (img Image) Dataset() dicom.Dataset {
	ts := img.TransferSyntax
	if ts == "" {
		ts = ExplicitVRLittleEndian
	}
	rows, cols := img.Rows, img.Columns
	if rows == 0 {
		rows = 4
	}
	if cols == 0 {
		cols = 4
	}

	elements := []*dicom.Element{
		mustNewElement(tag.MediaStorageSOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.7"}),
		mustNewElement(tag.MediaStorageSOPInstanceUID, []string{orDefault(img.SOPInstanceUID, "1.2.826.0.1.3680043.8.498.1")}),
		mustNewElement(tag.TransferSyntaxUID, []string{ts}),
	}

	optional := []struct {
		t tag.Tag
		v string
	}{
		{tag.PatientName, img.PatientName},
		{tag.PatientID, img.PatientID},
		{tag.StudyInstanceUID, img.StudyInstanceUID},
		{tag.StudyDate, img.StudyDate},
		{tag.StudyDescription, img.StudyDescription},
		{tag.SeriesInstanceUID, img.SeriesInstanceUID},
		{tag.SeriesNumber, img.SeriesNumber},
		{tag.SeriesDescription, img.SeriesDescription},
		{tag.Modality, img.Modality},
		{tag.SOPInstanceUID, img.SOPInstanceUID},
		{tag.InstanceNumber, img.InstanceNumber},
		{tag.WindowCenter, img.WindowCenter},
		{tag.WindowWidth, img.WindowWidth},
	}
	for _, o := range optional {
		if o.v != "" {
			elements = append(elements, mustNewElement(o.t, []string{o.v}))
		}
	}
	if img.EmptyStudyUID && img.StudyInstanceUID == "" {
		elements = append(elements, mustNewElement(tag.StudyInstanceUID, []string{""}))
	}

	if img.NoPixelData {
		return dicom.Dataset{Elements: elements}
	}

	elements = append(elements,
		mustNewElement(tag.Rows, []int{rows}),
		mustNewElement(tag.Columns, []int{cols}),
		mustNewElement(tag.BitsAllocated, []int{16}),
		mustNewElement(tag.BitsStored, []int{12}),
		mustNewElement(tag.HighBit, []int{11}),
		mustNewElement(tag.PixelRepresentation, []int{0}),
		mustNewElement(tag.SamplesPerPixel, []int{1}),
		mustNewElement(tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
	)

	nativeFrame := frame.NewNativeFrame[uint16](16, rows, cols, rows*cols, 1)
	for i := range nativeFrame.RawData {
		nativeFrame.RawData[i] = uint16(i % 4096)
	}
	elements = append(elements, mustNewElement(tag.PixelData, dicom.PixelDataInfo{
		Frames: []*frame.Frame{
			{
				Encapsulated: false,
				NativeData:   nativeFrame,
			},
		},
	}))

	return dicom.Dataset{Elements: elements}
}

// Encode writes img as a Part 10 buffer
func (img Image) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := dicom.Write(&buf, img.Dataset()); err != nil {
		return nil, fmt.Errorf("failed to write fixture: %w", err)
	}
	return buf.Bytes(), nil
}

// Bytes is Encode for tests
func (img Image) Bytes(t testing.TB) []byte {
	t.Helper()
	data, err := img.Encode()
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
