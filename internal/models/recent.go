package models

import "time"

// SourceKind identifies how a study's files can be re-read
type SourceKind string

const (
	SourceKindPath            SourceKind = "path"
	SourceKindDirectoryHandle SourceKind = "directory_handle"
	SourceKindFiles           SourceKind = "files"
)

// RecentLocation is a "resume last session" entry
type RecentLocation struct {
	SourceKey         string     `json:"sourceKey"`
	Kind              SourceKind `json:"kind"`
	FolderPath        string     `json:"folderPath,omitempty"`
	DirectoryHandleID string     `json:"directoryHandleId,omitempty"`
	StudyInstanceUID  string     `json:"studyInstanceUid"`
	PatientName       string     `json:"patientName"`
	PatientID         string     `json:"patientId"`
	StudyDate         string     `json:"studyDate"`
	StudyDescription  string     `json:"studyDescription"`
	Modalities        []string   `json:"modalities,omitempty"`
	InstanceCount     int        `json:"instanceCount"`
	LastOpened        time.Time  `json:"lastOpened"`
}

// NewRecentLocation builds a recent entry for a loaded study
func NewRecentLocation(sourceKey string, kind SourceKind, study Study, at time.Time) RecentLocation {
	return RecentLocation{
		SourceKey:         sourceKey,
		Kind:              kind,
		FolderPath:        study.FolderPath,
		DirectoryHandleID: study.DirectoryHandleID,
		StudyInstanceUID:  study.StudyInstanceUID,
		PatientName:       study.PatientName,
		PatientID:         study.PatientID,
		StudyDate:         study.StudyDate,
		StudyDescription:  study.StudyDescription,
		Modalities:        study.Modalities(),
		InstanceCount:     study.InstanceCount(),
		LastOpened:        at,
	}
}
