// Package organizer groups parsed instances into the Study -> Series -> Instance hierarchy.
package organizer

import (
	"cmp"
	"context"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/otcheredev/dicom-study-loader/internal/models"
	"github.com/otcheredev/dicom-study-loader/internal/source"
)

// Organize groups instances by study and series uid. Studies come out in
// first-seen order, series sorted by series number and instances by instance
// number, both stable. Empty uids group under models.UnknownUID, which merges
// every instance missing its study uid into one synthetic study.
func Organize(instances []models.Instance) []models.Study {
	studies, _ := group(instances)
	return studies
}

// group returns the studies and, per study index, the input positions of its instances
func group(instances []models.Instance) ([]models.Study, [][]int) {
	var (
		studies     []models.Study
		members     [][]int
		studyIndex  = make(map[string]int)
		seriesIndex = make(map[string]map[string]int)
	)

	for pos, inst := range instances {
		m := inst.Metadata

		studyUID := orUnknown(m.StudyInstanceUID)
		si, ok := studyIndex[studyUID]
		if !ok {
			si = len(studies)
			studyIndex[studyUID] = si
			seriesIndex[studyUID] = make(map[string]int)
			studies = append(studies, models.Study{
				StudyInstanceUID: studyUID,
				StudyDate:        m.StudyDate,
				StudyDescription: m.StudyDescription,
				PatientName:      orDefault(m.PatientName, models.UnknownPatient),
				PatientID:        orDefault(m.PatientID, models.UnknownPatient),
			})
			members = append(members, nil)
		}
		members[si] = append(members[si], pos)

		seriesUID := orUnknown(m.SeriesInstanceUID)
		study := &studies[si]
		ri, ok := seriesIndex[studyUID][seriesUID]
		if !ok {
			ri = len(study.Series)
			seriesIndex[studyUID][seriesUID] = ri
			study.Series = append(study.Series, models.Series{
				SeriesInstanceUID: seriesUID,
				SeriesNumber:      m.SeriesNumber,
				SeriesDescription: m.SeriesDescription,
				Modality:          orDefault(m.Modality, models.DefaultModality),
			})
		}
		study.Series[ri].Instances = append(study.Series[ri].Instances, inst)
	}

	for i := range studies {
		series := studies[i].Series
		slices.SortStableFunc(series, func(a, b models.Series) int {
			return cmp.Compare(a.SeriesNumber, b.SeriesNumber)
		})
		for j := range series {
			slices.SortStableFunc(series[j].Instances, func(a, b models.Instance) int {
				return cmp.Compare(a.InstanceNumber, b.InstanceNumber)
			})
		}
	}

	return studies, members
}

// Entry pairs an instance with the directory handle its file was listed through
type Entry struct {
	Instance models.Instance
	Handle   source.DirectoryHandle
}

// HandleSaver persists a directory handle and returns its new id
type HandleSaver interface {
	Save(ctx context.Context, handle source.DirectoryHandle) (string, error)
}

// OrganizeWithHandles organizes entries and records, per study, the directory
// handle to reload it from. root wins over any per-file handle. Each study's
// handle is saved exactly once under a fresh id; save failures leave the
// study without an id and are only logged.
func OrganizeWithHandles(ctx context.Context, entries []Entry, root source.DirectoryHandle, saver HandleSaver) []models.Study {
	instances := make([]models.Instance, len(entries))
	for i, e := range entries {
		instances[i] = e.Instance
	}

	studies, members := group(instances)
	for i := range studies {
		handle := root
		if handle == nil {
			for _, pos := range members[i] {
				if entries[pos].Handle != nil {
					handle = entries[pos].Handle
					break
				}
			}
		}
		if handle == nil || saver == nil {
			continue
		}

		id, err := saver.Save(ctx, handle)
		if err != nil {
			log.Warn().Err(err).
				Str("study_uid", studies[i].StudyInstanceUID).
				Msg("Failed to persist directory handle")
			continue
		}
		studies[i].DirectoryHandleID = id
	}
	return studies
}

// AttachFolderPath records the filesystem path every study was read from
func AttachFolderPath(studies []models.Study, path string) []models.Study {
	for i := range studies {
		studies[i].FolderPath = path
		studies[i].DirectoryHandleID = ""
	}
	return studies
}

func orUnknown(uid string) string {
	return orDefault(uid, models.UnknownUID)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
