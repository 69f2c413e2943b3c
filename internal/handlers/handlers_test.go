package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otcheredev/dicom-study-loader/internal/cache"
	"github.com/otcheredev/dicom-study-loader/internal/dicomtest"
	"github.com/otcheredev/dicom-study-loader/internal/imaging"
	"github.com/otcheredev/dicom-study-loader/internal/models"
	"github.com/otcheredev/dicom-study-loader/internal/parser"
	"github.com/otcheredev/dicom-study-loader/internal/recents"
	"github.com/otcheredev/dicom-study-loader/internal/services"
	"github.com/otcheredev/dicom-study-loader/internal/source"
	"github.com/otcheredev/dicom-study-loader/internal/storage"
)

type testServer struct {
	router   chi.Router
	registry *imaging.MemoryRegistry
}

func newTestServer(t *testing.T, opts ...StudyHandlerOption) *testServer {
	t.Helper()
	reg, err := imaging.NewMemoryRegistry(64)
	require.NoError(t, err)

	st := storage.NewMemoryStore()
	handles := source.NewHandleStore(st, nil)
	loader := services.NewStudyLoader(parser.New(nil, reg),
		services.WithStudyCache(cache.NewStudyCache(cache.NewStoreCache(st))),
		services.WithHandleStore(handles),
		services.WithRecents(recents.NewManager(st)),
	)

	opts = append([]StudyHandlerOption{WithUploadSpool(t.TempDir(), 0)}, opts...)
	studies := NewStudyHandler(loader, handles, opts...)
	t.Cleanup(func() { studies.Close() })
	recentsHandler := NewRecentsHandler(loader)
	cacheHandler := NewCacheHandler(loader)
	images := NewImageHandler(reg)

	r := chi.NewRouter()
	r.Post("/api/v1/studies/load", studies.Load)
	r.Post("/api/v1/studies/upload", studies.Upload)
	r.Get("/api/v1/recents", recentsHandler.List)
	r.Delete("/api/v1/recents", recentsHandler.Clear)
	r.Post("/api/v1/recents/{index}/reload", recentsHandler.Reload)
	r.Delete("/api/v1/cache", cacheHandler.Clear)
	r.Delete("/api/v1/cache/{key}", cacheHandler.Evict)
	r.Get("/api/v1/images/{imageId}", images.Get)
	return &testServer{router: r, registry: reg}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func studyDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for i, n := range []string{"2", "1"} {
		img := dicomtest.Image{
			StudyInstanceUID:  "ST1",
			SeriesInstanceUID: "S1",
			SeriesNumber:      "1",
			Modality:          "CT",
			SOPInstanceUID:    "ST1.S1." + n,
			InstanceNumber:    n,
		}
		name := filepath.Join(dir, "IM"+string(rune('A'+i)))
		require.NoError(t, os.WriteFile(name, img.Bytes(t), 0o644))
	}
	return dir
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) services.LoadResult {
	t.Helper()
	var res services.LoadResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestLoadByPath(t *testing.T) {
	s := newTestServer(t)
	dir := studyDir(t)
	body := `{"path":` + quote(dir) + `}`

	rec := s.do(t, http.MethodPost, "/api/v1/studies/load", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeResult(t, rec)
	require.Len(t, res.Studies, 1)
	assert.Equal(t, dir, res.Studies[0].FolderPath)
	assert.False(t, res.FromCache)

	rec = s.do(t, http.MethodPost, "/api/v1/studies/load", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResult(t, rec).FromCache)

	rec = s.do(t, http.MethodPost, "/api/v1/studies/load", `{"path":`+quote(dir)+`,"useCache":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeResult(t, rec).FromCache)
}

func TestLoadErrorMapping(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/studies/load", `{"path":`+quote(filepath.Join(t.TempDir(), "gone"))+`}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Directory was moved or deleted")

	rec = s.do(t, http.MethodPost, "/api/v1/studies/load", `{"path":`+quote(t.TempDir())+`}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "No DICOM files found")

	rec = s.do(t, http.MethodPost, "/api/v1/studies/load", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/studies/load", `{"handleId":"missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoadErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{services.ErrPermissionDenied, http.StatusForbidden},
		{services.ErrDirectoryNotFound, http.StatusNotFound},
		{services.ErrNoFilesFound, http.StatusUnprocessableEntity},
		{services.ErrNoValidStudies, http.StatusUnprocessableEntity},
		{services.ErrReadError, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, loadErrorStatus(tt.err), tt.err.Error())
	}
}

func TestUploadAndFetchImage(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("sourceKey", "upload-1"))
	part, err := mw.CreateFormFile("files", "IM1.dcm")
	require.NoError(t, err)
	_, err = part.Write(dicomtest.Image{StudyInstanceUID: "ST9", SeriesInstanceUID: "S1", InstanceNumber: "1"}.Bytes(t))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/studies/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeResult(t, rec)
	require.Len(t, res.Studies, 1)
	assert.Equal(t, "upload-1", res.SourceKey)
	imageID := res.Studies[0].Series[0].Instances[0].ImageID

	rec = s.do(t, http.MethodGet, "/api/v1/images/"+imageID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/dicom", rec.Header().Get("Content-Type"))
	stored, err := s.registry.Get(context.Background(), imageID)
	require.NoError(t, err)
	assert.Equal(t, stored, rec.Body.Bytes())

	rec = s.do(t, http.MethodGet, "/api/v1/images/"+imaging.Scheme+"0000", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func uploadBody(t *testing.T, names ...string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for i, name := range names {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(dicomtest.Image{
			StudyInstanceUID:  "ST-" + name,
			SeriesInstanceUID: "S1",
			SOPInstanceUID:    "SOP-" + name,
			InstanceNumber:    strconv.Itoa(i + 1),
		}.Bytes(t))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func (s *testServer) upload(t *testing.T, names ...string) services.LoadResult {
	t.Helper()
	body, contentType := uploadBody(t, names...)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/studies/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeResult(t, rec)
}

func TestUploadSpoolsFilesToDisk(t *testing.T) {
	spool := t.TempDir()
	s := newTestServer(t, WithUploadSpool(spool, 1))

	first := s.upload(t, "a.dcm", "../../b.dcm")
	require.Len(t, first.Studies, 2)
	assert.Equal(t, 2, first.FilesRead)

	dirs, err := os.ReadDir(spool)
	require.NoError(t, err)
	require.Len(t, dirs, 1)
	spooled, err := os.ReadDir(filepath.Join(spool, dirs[0].Name()))
	require.NoError(t, err)
	assert.Len(t, spooled, 2)

	firstImage := first.Studies[0].Series[0].Instances[0].ImageID
	rec := s.do(t, http.MethodGet, "/api/v1/images/"+firstImage, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// a second upload pushes the first past the retention
	second := s.upload(t, "c.dcm")
	dirs, err = os.ReadDir(spool)
	require.NoError(t, err)
	assert.Len(t, dirs, 1)

	rec = s.do(t, http.MethodGet, "/api/v1/images/"+firstImage, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/v1/images/"+second.Studies[0].Series[0].Instances[0].ImageID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadRejectsOversizedBodies(t *testing.T) {
	spool := t.TempDir()
	reg, err := imaging.NewMemoryRegistry(8)
	require.NoError(t, err)
	h := NewStudyHandler(services.NewStudyLoader(parser.New(nil, reg)), nil, WithUploadSpool(spool, 1))
	h.maxUploadBytes = 256

	body, contentType := uploadBody(t, "big.dcm")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	dirs, err := os.ReadDir(spool)
	require.NoError(t, err)
	assert.Empty(t, dirs)
}

func TestRecentsAndCache(t *testing.T) {
	s := newTestServer(t)
	dir := studyDir(t)

	rec := s.do(t, http.MethodPost, "/api/v1/studies/load", `{"path":`+quote(dir)+`}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/recents", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.RecentLocation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "ST1", list[0].StudyInstanceUID)

	rec = s.do(t, http.MethodPost, "/api/v1/recents/0/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResult(t, rec).FromCache)

	rec = s.do(t, http.MethodDelete, "/api/v1/cache/"+url.PathEscape(dir), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/recents/0/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeResult(t, rec).FromCache)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/v1/cache", "").Code)
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/v1/recents", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/v1/recents/0/reload", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/v1/recents/x/reload", "").Code)
	assert.JSONEq(t, `[]`, s.do(t, http.MethodGet, "/api/v1/recents", "").Body.String())
}

func TestHealth(t *testing.T) {
	ok := NewHealthHandler(map[string]Check{
		"storage": func(context.Context) error { return nil },
	})
	rec := httptest.NewRecorder()
	ok.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"storage":"healthy"`)

	bad := NewHealthHandler(map[string]Check{
		"database": func(context.Context) error { return errors.New("down") },
	})
	rec = httptest.NewRecorder()
	bad.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type fakeDetector struct {
	err error
}

func (f *fakeDetector) Detect(ctx context.Context, req models.DetectRequest) (*models.DetectResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.DetectResult{Success: true, Vertebrae: []models.Detection{{Label: "C7", Confidence: 0.8}}}, nil
}

func (f *fakeDetector) Health(ctx context.Context) (*models.DetectorStatus, error) {
	return &models.DetectorStatus{IsAvailable: f.err == nil}, f.err
}

func (f *fakeDetector) Close() error              { return nil }
func (f *fakeDetector) Type() models.DetectorType { return models.DetectorTypeSidecar }
func (f *fakeDetector) Name() string              { return "fake" }

func TestVisionDetect(t *testing.T) {
	h := NewVisionHandler(&fakeDetector{})
	rec := httptest.NewRecorder()
	h.Detect(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"file_path":"/data/IM1"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"C7"`)

	rec = httptest.NewRecorder()
	h.Detect(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h = NewVisionHandler(&fakeDetector{err: errors.New("connection refused")})
	rec = httptest.NewRecorder()
	h.Detect(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"file_path":"/data/IM1"}`)))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
