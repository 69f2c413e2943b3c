package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/otcheredev/dicom-study-loader/internal/services"
	"github.com/otcheredev/dicom-study-loader/internal/source"
)

const (
	defaultMaxUploadBytes  = 2 << 30
	defaultUploadRetention = 16
	maxFormFieldBytes      = 64 << 10
)

// HandleLoader restores persisted directory handles
type HandleLoader interface {
	Load(ctx context.Context, id string) (source.DirectoryHandle, error)
}

// StudyHandler serves study loads. Uploaded files are spooled to disk one part
// at a time and the last few uploads stay there so their images can be fetched.
type StudyHandler struct {
	loader         *services.StudyLoader
	handles        HandleLoader
	maxUploadBytes int64
	uploadDir      string
	retention      int

	mu      sync.Mutex
	spooled []string
}

// StudyHandlerOption configures a StudyHandler
type StudyHandlerOption func(*StudyHandler)

// WithUploadSpool spools uploads below dir and keeps the newest retention of them.
// An empty dir means the system temp dir.
func WithUploadSpool(dir string, retention int) StudyHandlerOption {
	return func(h *StudyHandler) {
		h.uploadDir = dir
		if retention > 0 {
			h.retention = retention
		}
	}
}

func NewStudyHandler(loader *services.StudyLoader, handles HandleLoader, opts ...StudyHandlerOption) *StudyHandler {
	h := &StudyHandler{
		loader:         loader,
		handles:        handles,
		maxUploadBytes: defaultMaxUploadBytes,
		retention:      defaultUploadRetention,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// loadRequest selects a folder path or a persisted directory handle.
// UseCache defaults to true when omitted.
type loadRequest struct {
	Path              string `json:"path"`
	HandleID          string `json:"handleId"`
	UseCache          *bool  `json:"useCache"`
	RequestPermission bool   `json:"requestPermission"`
	StudyInstanceUID  string `json:"studyInstanceUid"`
}

func (req loadRequest) options() services.LoadOptions {
	useCache := true
	if req.UseCache != nil {
		useCache = *req.UseCache
	}
	return services.LoadOptions{
		UseCache:          useCache,
		RequestPermission: req.RequestPermission,
		StudyInstanceUID:  req.StudyInstanceUID,
	}
}

// Load loads studies from a folder path or directory handle
func (h *StudyHandler) Load(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var ref source.Ref
	switch {
	case req.HandleID != "":
		if h.handles == nil {
			writeError(w, http.StatusBadRequest, "Directory handles are not enabled")
			return
		}
		handle, err := h.handles.Load(ctx, req.HandleID)
		if errors.Is(err, source.ErrHandleNotFound) {
			writeError(w, http.StatusNotFound, "Directory handle not found")
			return
		}
		if err != nil {
			log.Error().Err(err).Str("handle_id", req.HandleID).Msg("Failed to restore directory handle")
			writeError(w, http.StatusInternalServerError, "Failed to restore directory handle")
			return
		}
		ref = source.HandleRef{Handle: handle, HandleID: req.HandleID}
	case req.Path != "":
		ref = source.PathRef{Path: req.Path}
	default:
		writeError(w, http.StatusBadRequest, "path or handleId is required")
		return
	}

	res, err := h.loader.LoadFromDirectory(ctx, ref, req.options())
	if err != nil {
		writeLoadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Upload loads studies from multipart files. The optional sourceKey form
// field enables caching under that key.
func (h *StudyHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Expected multipart/form-data")
		return
	}

	if h.uploadDir != "" {
		if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
			log.Error().Err(err).Str("dir", h.uploadDir).Msg("Failed to create upload directory")
			writeError(w, http.StatusInternalServerError, "Failed to store upload")
			return
		}
	}
	dir, err := os.MkdirTemp(h.uploadDir, "upload-")
	if err != nil {
		log.Error().Err(err).Msg("Failed to create upload spool directory")
		writeError(w, http.StatusInternalServerError, "Failed to store upload")
		return
	}
	retained := false
	defer func() {
		if !retained {
			os.RemoveAll(dir)
		}
	}()

	var (
		files     []source.File
		sourceKey string
		opts      = services.LoadOptions{UseCache: true}
	)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			writeUploadError(w, err, "Malformed multipart body")
			return
		}

		if part.FileName() != "" {
			f, err := spoolPart(dir, len(files), part)
			part.Close()
			if err != nil {
				writeUploadError(w, err, "Failed to read upload")
				return
			}
			files = append(files, f)
			continue
		}

		data, err := io.ReadAll(io.LimitReader(part, maxFormFieldBytes))
		part.Close()
		if err != nil {
			writeUploadError(w, err, "Failed to read upload")
			return
		}
		switch part.FormName() {
		case "sourceKey":
			sourceKey = string(data)
		case "studyInstanceUid":
			opts.StudyInstanceUID = string(data)
		case "useCache":
			opts.UseCache = string(data) != "false"
		}
	}

	log.Debug().Int("files", len(files)).Str("source_key", sourceKey).Msg("Upload received")

	res, err := h.loader.LoadFromFiles(r.Context(), files, sourceKey, opts)
	if err != nil {
		writeLoadError(w, err)
		return
	}
	if len(files) > 0 {
		h.retain(dir)
		retained = true
	}
	writeJSON(w, http.StatusOK, res)
}

// spoolPart copies one file part to disk. The on-disk name is generated; the
// client file name is kept only for display.
func spoolPart(dir string, index int, part *multipart.Part) (source.File, error) {
	name := filepath.Base(part.FileName())
	path := filepath.Join(dir, fmt.Sprintf("%05d.dcm", index))

	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return source.File{}, err
	}
	if _, err := io.Copy(out, part); err != nil {
		out.Close()
		return source.File{}, err
	}
	if err := out.Close(); err != nil {
		return source.File{}, err
	}
	return source.OSFile(name, path), nil
}

// retain keeps dir on disk and removes the oldest spooled uploads past the retention
func (h *StudyHandler) retain(dir string) {
	h.mu.Lock()
	h.spooled = append(h.spooled, dir)
	var expired []string
	if n := len(h.spooled) - h.retention; n > 0 {
		expired = append(expired, h.spooled[:n]...)
		h.spooled = append([]string(nil), h.spooled[n:]...)
	}
	h.mu.Unlock()

	for _, d := range expired {
		if err := os.RemoveAll(d); err != nil {
			log.Warn().Err(err).Str("dir", d).Msg("Failed to remove spooled upload")
		}
	}
}

// Close removes every spooled upload
func (h *StudyHandler) Close() error {
	h.mu.Lock()
	dirs := h.spooled
	h.spooled = nil
	h.mu.Unlock()

	var errs []error
	for _, d := range dirs {
		if err := os.RemoveAll(d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func writeUploadError(w http.ResponseWriter, err error, msg string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "Upload too large")
		return
	}
	writeError(w, http.StatusBadRequest, msg)
}

func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid index %q", s)
	}
	return n, nil
}
