package models

// UnknownUID is the grouping key used for studies and series whose identifier is absent or empty
const UnknownUID = "unknown"

// UnknownPatient is the display value for a missing patient name or id
const UnknownPatient = "Unknown"

// DefaultModality is used when the Modality tag is absent
const DefaultModality = "OT"

// Study represents an organized DICOM study
type Study struct {
	StudyInstanceUID  string   `json:"studyInstanceUid"`
	StudyDate         string   `json:"studyDate"`
	StudyDescription  string   `json:"studyDescription"`
	PatientName       string   `json:"patientName"`
	PatientID         string   `json:"patientId"`
	Series            []Series `json:"series"`
	FolderPath        string   `json:"folderPath,omitempty"`
	DirectoryHandleID string   `json:"directoryHandleId,omitempty"`
}

// Series represents an ordered collection of instances sharing a series uid
type Series struct {
	SeriesInstanceUID string     `json:"seriesInstanceUid"`
	SeriesNumber      int        `json:"seriesNumber"`
	SeriesDescription string     `json:"seriesDescription"`
	Modality          string     `json:"modality"`
	Instances         []Instance `json:"instances"`
}

// Instance represents one image (slice)
type Instance struct {
	SOPInstanceUID string   `json:"sopInstanceUid"`
	InstanceNumber int      `json:"instanceNumber"`
	ImageID        string   `json:"imageId"`
	Rows           int      `json:"rows"`
	Columns        int      `json:"columns"`
	FileName       string   `json:"fileName,omitempty"`
	Metadata       Metadata `json:"metadata"`
}

// Metadata is the flat record of extracted tag values.
// Pointer fields are nil when the tag is missing or not numeric.
type Metadata struct {
	// Patient
	PatientName      string `json:"patientName"`
	PatientID        string `json:"patientId"`
	PatientBirthDate string `json:"patientBirthDate,omitempty"`
	PatientSex       string `json:"patientSex,omitempty"`

	// Study
	StudyInstanceUID string `json:"studyInstanceUid"`
	StudyDate        string `json:"studyDate"`
	StudyTime        string `json:"studyTime,omitempty"`
	StudyDescription string `json:"studyDescription"`
	AccessionNumber  string `json:"accessionNumber,omitempty"`

	// Series
	SeriesInstanceUID string `json:"seriesInstanceUid"`
	SeriesNumber      int    `json:"seriesNumber"`
	SeriesDescription string `json:"seriesDescription"`
	Modality          string `json:"modality"`
	BodyPartExamined  string `json:"bodyPartExamined,omitempty"`

	// Instance
	SOPInstanceUID string `json:"sopInstanceUid"`
	SOPClassUID    string `json:"sopClassUid,omitempty"`
	InstanceNumber int    `json:"instanceNumber"`

	// Image pixel module
	Rows                      int    `json:"rows"`
	Columns                   int    `json:"columns"`
	BitsAllocated             int    `json:"bitsAllocated"`
	BitsStored                int    `json:"bitsStored"`
	HighBit                   int    `json:"highBit"`
	PixelRepresentation       int    `json:"pixelRepresentation"`
	PhotometricInterpretation string `json:"photometricInterpretation,omitempty"`
	SamplesPerPixel           int    `json:"samplesPerPixel"`
	NumberOfFrames            int    `json:"numberOfFrames"`

	// Display
	WindowCenter     float64 `json:"windowCenter"`
	WindowWidth      float64 `json:"windowWidth"`
	RescaleSlope     float64 `json:"rescaleSlope"`
	RescaleIntercept float64 `json:"rescaleIntercept"`

	// Geometry
	PixelSpacing            []float64 `json:"pixelSpacing,omitempty"`
	SliceThickness          *float64  `json:"sliceThickness,omitempty"`
	SliceLocation           *float64  `json:"sliceLocation,omitempty"`
	ImagePositionPatient    []float64 `json:"imagePositionPatient,omitempty"`
	ImageOrientationPatient []float64 `json:"imageOrientationPatient,omitempty"`

	// Equipment
	Manufacturer    string `json:"manufacturer,omitempty"`
	InstitutionName string `json:"institutionName,omitempty"`

	// Encoding
	TransferSyntaxUID  string `json:"transferSyntaxUid,omitempty"`
	TransferSyntaxName string `json:"transferSyntaxName,omitempty"`
	Lossless           bool   `json:"lossless"`

	CustomTags map[string]string `json:"customTags,omitempty"`
}

// InstanceCount returns the number of instances across all series
func (s Study) InstanceCount() int {
	n := 0
	for _, series := range s.Series {
		n += len(series.Instances)
	}
	return n
}

// Modalities returns the distinct series modalities in series order
func (s Study) Modalities() []string {
	seen := make(map[string]bool)
	var out []string
	for _, series := range s.Series {
		if !seen[series.Modality] {
			seen[series.Modality] = true
			out = append(out, series.Modality)
		}
	}
	return out
}
