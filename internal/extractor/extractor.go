package extractor

import (
	"fmt"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/otcheredev/dicom-study-loader/internal/modality"
	"github.com/otcheredev/dicom-study-loader/internal/models"
	"github.com/otcheredev/dicom-study-loader/internal/transfersyntax"
)

// Extractor builds Metadata records. The zero value extracts the fixed field set only.
type Extractor struct {
	extra []tag.Info
}

// New creates an extractor that also copies the given DICOM keywords into CustomTags
func New(extraKeywords ...string) (*Extractor, error) {
	e := &Extractor{}
	for _, kw := range extraKeywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		info, err := tag.FindByName(kw)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve extra tag %q: %w", kw, err)
		}
		e.extra = append(e.extra, info)
	}
	return e, nil
}

// Extract reads the metadata of one decoded dataset. It never fails.
func (e *Extractor) Extract(ds *dicom.Dataset) models.Metadata {
	charset := String(ds, tag.SpecificCharacterSet, "")
	text := func(t tag.Tag, def string) string {
		return decodeText(String(ds, t, def), charset)
	}

	m := models.Metadata{
		PatientName:      text(tag.PatientName, models.UnknownPatient),
		PatientID:        String(ds, tag.PatientID, models.UnknownPatient),
		PatientBirthDate: String(ds, tag.PatientBirthDate, ""),
		PatientSex:       String(ds, tag.PatientSex, ""),

		StudyInstanceUID: String(ds, tag.StudyInstanceUID, ""),
		StudyDate:        String(ds, tag.StudyDate, ""),
		StudyTime:        String(ds, tag.StudyTime, ""),
		StudyDescription: text(tag.StudyDescription, ""),
		AccessionNumber:  String(ds, tag.AccessionNumber, ""),

		SeriesInstanceUID: String(ds, tag.SeriesInstanceUID, ""),
		SeriesNumber:      Int(ds, tag.SeriesNumber, 0),
		SeriesDescription: text(tag.SeriesDescription, ""),
		Modality:          String(ds, tag.Modality, models.DefaultModality),
		BodyPartExamined:  String(ds, tag.BodyPartExamined, ""),

		SOPInstanceUID: String(ds, tag.SOPInstanceUID, ""),
		SOPClassUID:    String(ds, tag.SOPClassUID, ""),
		InstanceNumber: Int(ds, tag.InstanceNumber, 0),

		Rows:                      Int(ds, tag.Rows, 0),
		Columns:                   Int(ds, tag.Columns, 0),
		BitsAllocated:             Int(ds, tag.BitsAllocated, 16),
		BitsStored:                Int(ds, tag.BitsStored, 16),
		HighBit:                   Int(ds, tag.HighBit, 15),
		PixelRepresentation:       Int(ds, tag.PixelRepresentation, 0),
		PhotometricInterpretation: String(ds, tag.PhotometricInterpretation, ""),
		SamplesPerPixel:           Int(ds, tag.SamplesPerPixel, 1),
		NumberOfFrames:            Int(ds, tag.NumberOfFrames, 1),

		RescaleSlope:     Number(ds, tag.RescaleSlope, 1),
		RescaleIntercept: Number(ds, tag.RescaleIntercept, 0),

		PixelSpacing:            Numbers(ds, tag.PixelSpacing),
		SliceThickness:          OptionalNumber(ds, tag.SliceThickness),
		SliceLocation:           OptionalNumber(ds, tag.SliceLocation),
		ImagePositionPatient:    Numbers(ds, tag.ImagePositionPatient),
		ImageOrientationPatient: Numbers(ds, tag.ImageOrientationPatient),

		Manufacturer:    text(tag.Manufacturer, ""),
		InstitutionName: text(tag.InstitutionName, ""),

		TransferSyntaxUID: String(ds, tag.TransferSyntaxUID, ""),
	}

	wl := WindowLevel(ds, m.Modality)
	m.WindowCenter = wl.WindowCenter
	m.WindowWidth = wl.WindowWidth

	if m.TransferSyntaxUID != "" {
		c := transfersyntax.Classify(m.TransferSyntaxUID)
		m.TransferSyntaxName = c.Name
		m.Lossless = c.Lossless
	}

	if len(e.extra) > 0 {
		m.CustomTags = make(map[string]string, len(e.extra))
		for _, info := range e.extra {
			if v := String(ds, info.Tag, ""); v != "" {
				m.CustomTags[info.Name] = v
			}
		}
		if len(m.CustomTags) == 0 {
			m.CustomTags = nil
		}
	}

	return m
}

// WindowLevel returns the dataset's window center/width, or the modality
// default for both when either value is missing, zero or non-numeric
func WindowLevel(ds *dicom.Dataset, mod string) modality.WindowLevel {
	center := Number(ds, tag.WindowCenter, 0)
	width := Number(ds, tag.WindowWidth, 0)
	if center == 0 || width == 0 {
		return modality.Default(mod)
	}
	return modality.WindowLevel{WindowCenter: center, WindowWidth: width}
}
