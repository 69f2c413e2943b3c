package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/otcheredev/dicom-study-loader/internal/cache"
	"github.com/otcheredev/dicom-study-loader/internal/dicomtest"
	"github.com/otcheredev/dicom-study-loader/internal/imaging"
	"github.com/otcheredev/dicom-study-loader/internal/models"
	"github.com/otcheredev/dicom-study-loader/internal/parser"
	"github.com/otcheredev/dicom-study-loader/internal/recents"
	"github.com/otcheredev/dicom-study-loader/internal/source"
	"github.com/otcheredev/dicom-study-loader/internal/storage"
)

// fixture wires a loader to in-memory collaborators
type fixture struct {
	loader  *StudyLoader
	store   *storage.MemoryStore
	cache   *cache.StudyCache
	handles *source.HandleStore
	recents *recents.Manager
	audits  *recordingAudits

	mu     sync.Mutex
	reads  int
	states []State
}

func newFixture(t testing.TB, opts ...Option) *fixture {
	t.Helper()
	reg, err := imaging.NewMemoryRegistry(64)
	require.NoError(t, err)

	f := &fixture{
		store:  storage.NewMemoryStore(),
		audits: &recordingAudits{},
	}
	f.cache = cache.NewStudyCache(cache.NewStoreCache(f.store))
	f.handles = source.NewHandleStore(f.store, nil)
	f.recents = recents.NewManager(f.store)

	base := []Option{
		WithStudyCache(f.cache),
		WithHandleStore(f.handles),
		WithRecents(f.recents),
		WithAuditRecorder(f.audits),
		WithStateObserver(func(_ string, s State) {
			f.mu.Lock()
			f.states = append(f.states, s)
			f.mu.Unlock()
		}),
	}
	f.loader = NewStudyLoader(parser.New(nil, reg), append(base, opts...)...)
	return f
}

// file returns an in-memory file whose reads are counted
func (f *fixture) file(t testing.TB, name string, img dicomtest.Image) source.File {
	t.Helper()
	return f.rawFile(name, img.Bytes(t))
}

func (f *fixture) rawFile(name string, data []byte) source.File {
	return source.NewFile(name, name, func(context.Context) ([]byte, error) {
		f.mu.Lock()
		f.reads++
		f.mu.Unlock()
		return data, nil
	})
}

func (f *fixture) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func (f *fixture) resetStates() {
	f.mu.Lock()
	f.states = nil
	f.mu.Unlock()
}

func (f *fixture) observed() []State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]State(nil), f.states...)
}

// writeDir writes fixtures as files below a fresh temp directory
func writeDir(t testing.TB, files map[string]dicomtest.Image) string {
	t.Helper()
	root := t.TempDir()
	for name, img := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, img.Bytes(t), 0o644))
	}
	return root
}

func image(study, series, instanceNumber string) dicomtest.Image {
	return dicomtest.Image{
		PatientName:       "Doe^Jane",
		PatientID:         "P1",
		StudyInstanceUID:  study,
		SeriesInstanceUID: series,
		SeriesNumber:      "1",
		SOPInstanceUID:    fmt.Sprintf("%s.%s.%s", study, series, instanceNumber),
		InstanceNumber:    instanceNumber,
		Modality:          "CT",
	}
}

type recordingAudits struct {
	mu     sync.Mutex
	audits []models.LoadAudit
}

func (r *recordingAudits) Create(ctx context.Context, a *models.LoadAudit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits = append(r.audits, *a)
	return nil
}

func (r *recordingAudits) last() models.LoadAudit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.audits[len(r.audits)-1]
}

// fakeHandle is a directory handle with a scripted permission flow
type fakeHandle struct {
	name         string
	permission   source.Permission
	afterRequest source.Permission
	files        []source.File
	requested    bool
	listed       bool
}

func (h *fakeHandle) Name() string { return h.name }

func (h *fakeHandle) QueryPermission(context.Context) (source.Permission, error) {
	return h.permission, nil
}

func (h *fakeHandle) RequestPermission(context.Context) (source.Permission, error) {
	h.requested = true
	h.permission = h.afterRequest
	return h.permission, nil
}

func (h *fakeHandle) Files(context.Context) ([]source.File, error) {
	h.listed = true
	files := make([]source.File, len(h.files))
	for i, f := range h.files {
		f.Handle = h
		files[i] = f
	}
	return files, nil
}

func (h *fakeHandle) Descriptor() source.HandleDescriptor {
	return source.HandleDescriptor{Kind: "fake", Name: h.name}
}

func instanceNumbers(s models.Series) []int {
	out := make([]int, len(s.Instances))
	for i, inst := range s.Instances {
		out[i] = inst.InstanceNumber
	}
	return out
}
