// Package services holds the study load orchestrator: the entry point that
// turns a source reference into organized, cached studies.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/otcheredev/dicom-study-loader/internal/cache"
	"github.com/otcheredev/dicom-study-loader/internal/metrics"
	"github.com/otcheredev/dicom-study-loader/internal/models"
	"github.com/otcheredev/dicom-study-loader/internal/organizer"
	"github.com/otcheredev/dicom-study-loader/internal/parser"
	"github.com/otcheredev/dicom-study-loader/internal/recents"
	"github.com/otcheredev/dicom-study-loader/internal/source"
	"github.com/otcheredev/dicom-study-loader/internal/transfersyntax"
)

// ErrNotReloadable is returned by Reload for entries that carry neither a
// directory handle id nor a folder path
var ErrNotReloadable = errors.New("recent location cannot be reloaded")

// LoadOptions controls one load call
type LoadOptions struct {
	// UseCache allows a cached result to be returned without reading files
	UseCache bool `json:"useCache"`
	// RequestPermission allows prompting when a directory handle lacks a grant
	RequestPermission bool `json:"requestPermission"`
	// StudyInstanceUID selects a study in the result; the first study otherwise
	StudyInstanceUID string `json:"studyInstanceUid,omitempty"`
}

// LoadResult is the outcome of a successful load
type LoadResult struct {
	SourceKey string         `json:"sourceKey"`
	Studies   []models.Study `json:"studies"`
	Selected  *models.Study  `json:"selected,omitempty"`
	FromCache bool           `json:"fromCache"`
	FilesRead int            `json:"filesRead"`
	Stats     parser.Stats   `json:"stats"`
	Warnings  []string       `json:"warnings,omitempty"`
}

// HandleStore persists and restores directory handles
type HandleStore interface {
	organizer.HandleSaver
	Load(ctx context.Context, id string) (source.DirectoryHandle, error)
}

// AuditRecorder stores one record per load call
type AuditRecorder interface {
	Create(ctx context.Context, audit *models.LoadAudit) error
}

// StudyLoader orchestrates cache lookup, permission, file reading, parsing,
// organizing and caching. Files of one load are read and parsed one at a time.
// Concurrent loads of the same source are not deduplicated.
type StudyLoader struct {
	parser   *parser.Parser
	cache    *cache.StudyCache
	handles  HandleStore
	recents  *recents.Manager
	audits   AuditRecorder
	metrics  *metrics.Metrics
	observer StateObserver
	now      func() time.Time
}

// Option configures a StudyLoader
type Option func(*StudyLoader)

// WithStudyCache enables read-through/write-through caching
func WithStudyCache(c *cache.StudyCache) Option {
	return func(l *StudyLoader) { l.cache = c }
}

// WithHandleStore enables persisting directory handles with each study
func WithHandleStore(h HandleStore) Option {
	return func(l *StudyLoader) { l.handles = h }
}

// WithRecents enables recent-location bookkeeping
func WithRecents(r *recents.Manager) Option {
	return func(l *StudyLoader) { l.recents = r }
}

// WithAuditRecorder records each load call
func WithAuditRecorder(a AuditRecorder) Option {
	return func(l *StudyLoader) { l.audits = a }
}

// WithMetrics records load metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *StudyLoader) { l.metrics = m }
}

// WithStateObserver receives every state transition
func WithStateObserver(o StateObserver) Option {
	return func(l *StudyLoader) { l.observer = o }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(l *StudyLoader) { l.now = now }
}

// NewStudyLoader creates a loader around p
func NewStudyLoader(p *parser.Parser, opts ...Option) *StudyLoader {
	l := &StudyLoader{
		parser: p,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadFromFiles loads an explicit file list. An empty sourceKey disables
// caching and recents for this call.
func (l *StudyLoader) LoadFromFiles(ctx context.Context, files []source.File, sourceKey string, opts LoadOptions) (*LoadResult, error) {
	return l.Load(ctx, source.FilesRef{SourceKey: sourceKey, Files: files}, opts)
}

// LoadFromDirectory loads a filesystem path or a directory handle
func (l *StudyLoader) LoadFromDirectory(ctx context.Context, ref source.Ref, opts LoadOptions) (*LoadResult, error) {
	return l.Load(ctx, ref, opts)
}

// Reload re-opens a recent location, restoring its directory handle when it has one.
// The entry's study is selected unless opts names another.
func (l *StudyLoader) Reload(ctx context.Context, loc models.RecentLocation, opts LoadOptions) (*LoadResult, error) {
	if opts.StudyInstanceUID == "" {
		opts.StudyInstanceUID = loc.StudyInstanceUID
	}

	switch {
	case loc.DirectoryHandleID != "" && l.handles != nil:
		handle, err := l.handles.Load(ctx, loc.DirectoryHandleID)
		if errors.Is(err, source.ErrHandleNotFound) {
			return nil, newLoadError(KindDirectoryNotFound, loc.SourceKey, err)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to restore directory handle: %w", err)
		}
		return l.Load(ctx, source.HandleRef{Handle: handle, HandleID: loc.DirectoryHandleID}, opts)
	case loc.FolderPath != "":
		return l.Load(ctx, source.PathRef{Path: loc.FolderPath}, opts)
	default:
		return nil, ErrNotReloadable
	}
}

// ReloadRecent reloads the recent location at index
func (l *StudyLoader) ReloadRecent(ctx context.Context, index int, opts LoadOptions) (*LoadResult, error) {
	if l.recents == nil {
		return nil, recents.ErrIndexOutOfRange
	}
	loc, err := l.recents.Get(ctx, index)
	if err != nil {
		return nil, err
	}
	return l.Reload(ctx, loc, opts)
}

// RecentLocations returns the recent list, newest first
func (l *StudyLoader) RecentLocations(ctx context.Context) ([]models.RecentLocation, error) {
	if l.recents == nil {
		return nil, nil
	}
	return l.recents.List(ctx)
}

// ClearRecentLocations empties the recent list
func (l *StudyLoader) ClearRecentLocations(ctx context.Context) error {
	if l.recents == nil {
		return nil
	}
	return l.recents.Clear(ctx)
}

// ClearCache drops every cached study list
func (l *StudyLoader) ClearCache(ctx context.Context) error {
	if l.cache == nil {
		return nil
	}
	return l.cache.Clear(ctx)
}

// EvictCache drops the cached study list for one source key
func (l *StudyLoader) EvictCache(ctx context.Context, sourceKey string) error {
	if l.cache == nil {
		return nil
	}
	return l.cache.Delete(ctx, sourceKey)
}

// load tracks one call through the state machine
type load struct {
	ref    source.Ref
	key    string
	opts   LoadOptions
	start  time.Time
	state  State
	result LoadResult
}

func (l *StudyLoader) transition(ld *load, s State) {
	ld.state = s
	log.Debug().
		Str("source_key", ld.key).
		Str("state", string(s)).
		Msg("Load state changed")
	l.metrics.RecordState(string(s))
	if l.observer != nil {
		l.observer(ld.key, s)
	}
}

// Load runs one load call for any source reference
func (l *StudyLoader) Load(ctx context.Context, ref source.Ref, opts LoadOptions) (*LoadResult, error) {
	ld := &load{
		ref:   ref,
		key:   ref.Key(),
		opts:  opts,
		start: l.now(),
	}
	ld.result.SourceKey = ld.key
	l.transition(ld, StateIdle)

	res, err := l.run(ctx, ld)
	l.finish(ctx, ld, err)
	return res, err
}

func (l *StudyLoader) run(ctx context.Context, ld *load) (*LoadResult, error) {
	cacheable := l.cache != nil && ld.key != ""

	if ld.opts.UseCache && cacheable {
		l.transition(ld, StateCheckingCache)
		studies, hit := l.cache.Get(ctx, ld.key)
		l.metrics.RecordCacheLookup(hit)
		if hit {
			log.Info().Str("source_key", ld.key).Int("studies", len(studies)).Msg("Study cache hit")
			ld.result.Studies = studies
			ld.result.FromCache = true
			return l.complete(ctx, ld)
		}
	}

	files, err := l.acquire(ctx, ld)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, newLoadError(KindNoFilesFound, ld.key, nil)
	}

	l.transition(ld, StateParsing)
	entries, err := l.parseFiles(ctx, ld, files)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, newLoadError(KindNoValidStudies, ld.key, nil)
	}

	l.transition(ld, StateOrganizing)
	ld.result.Studies = l.organize(ctx, ld, entries)
	l.metrics.RecordOrganized(len(ld.result.Studies), len(entries))

	if cacheable {
		l.transition(ld, StateCaching)
		if err := l.cache.Put(ctx, ld.key, ld.result.Studies); err != nil {
			log.Warn().Err(err).Str("source_key", ld.key).Msg("Failed to cache studies")
		}
	}

	return l.complete(ctx, ld)
}

// acquire checks permission and lists the files of the source
func (l *StudyLoader) acquire(ctx context.Context, ld *load) ([]source.File, error) {
	switch ref := ld.ref.(type) {
	case source.PathRef:
		l.transition(ld, StateReadingFiles)
		files, err := source.ListDirectory(ctx, ref.Dir())
		if err != nil {
			return nil, classifyReadError(ld.key, err)
		}
		return files, nil

	case source.HandleRef:
		l.transition(ld, StateRequestingPermission)
		if err := l.ensurePermission(ctx, ld, ref.Handle); err != nil {
			return nil, err
		}
		l.transition(ld, StateReadingFiles)
		files, err := ref.Handle.Files(ctx)
		if err != nil {
			return nil, classifyReadError(ld.key, err)
		}
		return files, nil

	case source.FilesRef:
		l.transition(ld, StateReadingFiles)
		return ref.Files, nil

	default:
		return nil, fmt.Errorf("unsupported source reference %T", ld.ref)
	}
}

func (l *StudyLoader) ensurePermission(ctx context.Context, ld *load, h source.DirectoryHandle) error {
	perm, err := h.QueryPermission(ctx)
	if err != nil {
		return classifyReadError(ld.key, err)
	}
	if perm != source.PermissionGranted && ld.opts.RequestPermission {
		perm, err = h.RequestPermission(ctx)
		if err != nil {
			return classifyReadError(ld.key, err)
		}
	}
	if perm != source.PermissionGranted {
		return newLoadError(KindPermissionDenied, ld.key, fmt.Errorf("permission state %q", perm))
	}
	return nil
}

// parseFiles reads and parses files one by one, releasing each buffer before the next read
func (l *StudyLoader) parseFiles(ctx context.Context, ld *load, files []source.File) ([]organizer.Entry, error) {
	var entries []organizer.Entry
	for _, f := range files {
		data, err := f.Read(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, classifyReadError(ld.key, fmt.Errorf("failed to read %s: %w", f.Path, err))
		}
		ld.result.FilesRead++

		inst, err := l.parser.ParseFile(ctx, f.Name, data, f.Read)
		ld.result.Stats.Add(parser.Tally(inst, err))
		if err != nil {
			continue
		}
		if uid := inst.Metadata.TransferSyntaxUID; uid != "" && !inst.Metadata.Lossless {
			ld.result.Warnings = append(ld.result.Warnings,
				f.Name+": "+transfersyntax.Classify(uid).Warning())
		}
		entries = append(entries, organizer.Entry{Instance: *inst, Handle: f.Handle})
	}
	return entries, nil
}

func (l *StudyLoader) organize(ctx context.Context, ld *load, entries []organizer.Entry) []models.Study {
	var saver organizer.HandleSaver
	if l.handles != nil {
		saver = l.handles
	}

	switch ref := ld.ref.(type) {
	case source.PathRef:
		instances := make([]models.Instance, len(entries))
		for i, e := range entries {
			instances[i] = e.Instance
		}
		return organizer.AttachFolderPath(organizer.Organize(instances), ref.Dir())
	case source.HandleRef:
		return organizer.OrganizeWithHandles(ctx, entries, ref.Handle, saver)
	default:
		return organizer.OrganizeWithHandles(ctx, entries, nil, saver)
	}
}

// complete selects the requested study and records the recent location
func (l *StudyLoader) complete(ctx context.Context, ld *load) (*LoadResult, error) {
	ld.result.Selected = selectStudy(ld.result.Studies, ld.opts.StudyInstanceUID)

	if l.recents != nil && ld.key != "" && ld.result.Selected != nil {
		loc := models.NewRecentLocation(ld.key, ld.ref.Kind(), *ld.result.Selected, l.now())
		if err := l.recents.Add(ctx, loc); err != nil {
			log.Warn().Err(err).Str("source_key", ld.key).Msg("Failed to update recent locations")
		}
	}

	l.transition(ld, StateDone)
	res := ld.result
	return &res, nil
}

// selectStudy returns the study with uid, or the first study
func selectStudy(studies []models.Study, uid string) *models.Study {
	if len(studies) == 0 {
		return nil
	}
	if uid != "" {
		for i := range studies {
			if studies[i].StudyInstanceUID == uid {
				return &studies[i]
			}
		}
	}
	return &studies[0]
}

func classifyReadError(key string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, source.ErrDirectoryNotFound):
		return newLoadError(KindDirectoryNotFound, key, err)
	case errors.Is(err, source.ErrPermissionDenied):
		return newLoadError(KindPermissionDenied, key, err)
	default:
		return newLoadError(KindReadError, key, err)
	}
}

// finish moves failed loads into their terminal state and records the outcome
func (l *StudyLoader) finish(ctx context.Context, ld *load, err error) {
	duration := l.now().Sub(ld.start)
	outcome := string(StateDone)

	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			l.transition(ld, loadErr.State())
			outcome = string(loadErr.State())
		} else {
			outcome = "error"
		}
		log.Warn().Err(err).
			Str("source_key", ld.key).
			Str("state", outcome).
			Dur("duration", duration).
			Msg("Study load failed")
	} else {
		log.Info().
			Str("source_key", ld.key).
			Bool("cache_hit", ld.result.FromCache).
			Int("files_read", ld.result.FilesRead).
			Int("studies", len(ld.result.Studies)).
			Dur("duration", duration).
			Msg("Study load completed")
	}

	l.metrics.RecordLoad(string(ld.ref.Kind()), outcome, duration)

	if l.audits == nil {
		return
	}
	audit := &models.LoadAudit{
		SourceKey:     ld.key,
		SourceKind:    ld.ref.Kind(),
		Status:        outcome,
		CacheHit:      ld.result.FromCache,
		FilesRead:     ld.result.FilesRead,
		InstanceCount: instanceCount(ld.result.Studies),
		StudyCount:    len(ld.result.Studies),
		Duration:      duration.Milliseconds(),
	}
	if err != nil {
		audit.ErrorMessage = err.Error()
	}
	// the caller's context may already be cancelled
	if aerr := l.audits.Create(context.WithoutCancel(ctx), audit); aerr != nil {
		log.Warn().Err(aerr).Str("source_key", ld.key).Msg("Failed to record load audit")
	}
}

func instanceCount(studies []models.Study) int {
	n := 0
	for _, s := range studies {
		n += s.InstanceCount()
	}
	return n
}
