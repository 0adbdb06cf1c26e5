package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cesargomez89/tracksync/internal/config"
	"github.com/cesargomez89/tracksync/internal/constants"
	"github.com/cesargomez89/tracksync/internal/domain"
	"github.com/cesargomez89/tracksync/internal/downloader"
	"github.com/cesargomez89/tracksync/internal/fetcher"
	"github.com/cesargomez89/tracksync/internal/httpclient"
	"github.com/cesargomez89/tracksync/internal/logger"
	"github.com/cesargomez89/tracksync/internal/manifest"
	"github.com/cesargomez89/tracksync/internal/normalize"
	"github.com/cesargomez89/tracksync/internal/reconcile"
	"github.com/cesargomez89/tracksync/internal/source"
	"github.com/cesargomez89/tracksync/internal/storage"
)

// History persists run records. *store.DB implements it.
type History interface {
	CreateRun(run *domain.RunSummary) error
	FinishRun(run *domain.RunSummary) error
	GetRun(id string) (*domain.RunSummary, error)
	ListRuns(limit int) ([]*domain.RunSummary, error)
}

// Deps are the collaborators of a Syncer. History may be nil.
type Deps struct {
	Config    *config.Config
	Session   *Session
	Fetcher   fetcher.Fetcher
	Dumper    source.MetadataDumper
	HTTP      *httpclient.Client
	Manifests *manifest.Store
	Playlists PlaylistGenerator
	History   History
	Logger    *logger.Logger
}

// Syncer coordinates playlist runs end to end.
type Syncer struct {
	cfg        *config.Config
	session    *Session
	fetcher    fetcher.Fetcher
	sources    source.Deps
	manifests  *manifest.Store
	reconciler *reconcile.Reconciler
	playlists  PlaylistGenerator
	history    History
	Logger     *logger.Logger
	now        func() time.Time
}

func NewSyncer(deps Deps) *Syncer {
	log := deps.Logger
	if log == nil {
		log = logger.Default()
	}
	if deps.Session == nil {
		deps.Session = NewSession("")
	}
	if deps.Manifests == nil {
		deps.Manifests = manifest.NewStore(log)
	}
	if deps.Playlists == nil {
		deps.Playlists = NewPlaylistGenerator()
	}
	if deps.HTTP == nil {
		deps.HTTP = httpclient.NewClient(nil, constants.SpotifyMinInterval)
	}

	return &Syncer{
		cfg:     deps.Config,
		session: deps.Session,
		fetcher: deps.Fetcher,
		sources: source.Deps{
			HTTP:          deps.HTTP,
			SpotifyAPIURL: deps.Config.SpotifyAPIURL,
			Tokens:        deps.Session,
			Dumper:        deps.Dumper,
			Logger:        log,
		},
		manifests:  deps.Manifests,
		reconciler: reconcile.New(deps.Manifests),
		playlists:  deps.Playlists,
		history:    deps.History,
		Logger:     log.WithComponent("syncer"),
		now:        time.Now,
	}
}

// Session returns the session the syncer reads its token from.
func (s *Syncer) Session() *Session {
	return s.session
}

// History returns the run history store, or nil.
func (s *Syncer) History() History {
	return s.history
}

// Resolved is a source turned into the tracks one run works on.
type Resolved struct {
	Kind     source.Kind
	Playlist *domain.Playlist
	Tracks   []domain.Track
	Excluded []domain.Track
	Folder   string
}

// Resolve fetches the track list for input, applies the instrumental filter
// and computes the output folder.
func (s *Syncer) Resolve(ctx context.Context, input string) (*Resolved, error) {
	resolver, err := source.New(input, s.sources)
	if err != nil {
		return nil, err
	}

	pl, err := resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	res := &Resolved{Kind: resolver.Kind(), Playlist: pl, Folder: s.folderFor(pl.Name)}
	for _, t := range pl.Tracks {
		if s.cfg.ExcludeInstrumental && normalize.LooksInstrumental(t.Title) {
			res.Excluded = append(res.Excluded, t)
			continue
		}
		res.Tracks = append(res.Tracks, t)
	}

	if len(res.Excluded) > 0 {
		s.Logger.Info("Excluded instrumental tracks", "count", len(res.Excluded))
	}
	return res, nil
}

func (s *Syncer) folderFor(name string) string {
	dir := storage.Sanitize(name)
	if dir == "" {
		dir = constants.UnknownValue
	}
	return filepath.Join(s.cfg.OutputRoot, dir)
}

// PlanReport is the outcome of a dry run.
type PlanReport struct {
	Playlist string            `json:"playlist"`
	Folder   string            `json:"folder"`
	Excluded []domain.Track    `json:"excluded,omitempty"`
	Result   *reconcile.Result `json:"result"`
}

// Plan resolves input and reports what a run would fetch. Nothing is
// downloaded; stale manifest entries are still pruned.
func (s *Syncer) Plan(ctx context.Context, input string) (*PlanReport, error) {
	r, err := s.Resolve(ctx, input)
	if err != nil {
		return nil, err
	}

	res, err := s.reconciler.Plan(r.Tracks, r.Folder)
	if err != nil {
		return nil, err
	}

	return &PlanReport{Playlist: r.Playlist.Name, Folder: r.Folder, Excluded: r.Excluded, Result: res}, nil
}

// Run is one claimed playlist run. Prepare creates it; Execute drives it.
type Run struct {
	ID       string
	Resolved *Resolved

	syncer  *Syncer
	release func()
	worker  *downloader.Worker

	mu       sync.Mutex
	summary  domain.RunSummary
	skipped  int
	recorded bool
}

// Prepare resolves input and claims its folder. It fails with
// domain.ErrRunActive when the folder already has a run.
func (s *Syncer) Prepare(ctx context.Context, input string) (*Run, error) {
	r, err := s.Resolve(ctx, input)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	release, err := s.session.Acquire(r.Folder, id)
	if err != nil {
		active, _ := s.session.ActiveRun(r.Folder)
		s.Logger.Warn("Run refused", "folder", r.Folder, "active_run", active)
		return nil, fmt.Errorf("%w: %s", err, r.Folder)
	}

	return &Run{
		ID:       id,
		Resolved: r,
		syncer:   s,
		release:  release,
		summary: domain.RunSummary{
			ID:         id,
			Source:     input,
			SourceKind: string(r.Kind),
			Playlist:   r.Playlist.Name,
			Folder:     r.Folder,
			Status:     domain.RunStatusRunning,
			Total:      len(r.Tracks),
			StartedAt:  s.now().UTC(),
		},
	}, nil
}

// Sync prepares and executes a run in one call.
func (s *Syncer) Sync(ctx context.Context, input string, events chan<- downloader.Event) (*domain.RunSummary, error) {
	run, err := s.Prepare(ctx, input)
	if err != nil {
		return nil, err
	}
	return run.Execute(ctx, events), nil
}

// Abort releases a prepared run that will not be executed.
func (r *Run) Abort() {
	r.release()
}

// Summary returns a snapshot of the run. While the pool is working the
// counters come from the live aggregate.
func (r *Run) Summary() domain.RunSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.summary
	out.Results = append([]domain.TrackResult(nil), r.summary.Results...)
	if r.worker != nil && out.Status == domain.RunStatusRunning {
		a := r.worker.Snapshot()
		out.Succeeded, out.Failed, out.Cancelled = a.Succeeded, a.Failed, a.Cancelled
		out.Skipped = r.skipped
	}
	return out
}

// Recorded reports whether the finished run was written to history.
func (r *Run) Recorded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recorded
}

// Progress returns the live aggregate of the worker pool, if it started.
func (r *Run) Progress() (downloader.Aggregate, bool) {
	r.mu.Lock()
	w := r.worker
	r.mu.Unlock()
	if w == nil {
		return downloader.Aggregate{}, false
	}
	return w.Snapshot(), true
}

// Execute reconciles, fetches the pending tracks and writes the playlist
// files. Every track has a terminal status in the returned summary. events
// may be nil; otherwise the caller must drain it until Execute returns.
func (r *Run) Execute(ctx context.Context, events chan<- downloader.Event) *domain.RunSummary {
	defer r.release()

	s := r.syncer
	res := r.Resolved
	log := s.Logger.WithRun(r.ID, res.Folder)

	r.mu.Lock()
	s.createRecord(&r.summary, log)
	r.mu.Unlock()

	_, statErr := os.Stat(res.Folder)
	folderExisted := statErr == nil

	results, err := r.execute(ctx, events, log)

	r.mu.Lock()
	defer r.mu.Unlock()

	sum := &r.summary
	sum.Results = results
	sum.Tally()
	finished := s.now().UTC()
	sum.FinishedAt = &finished

	switch {
	case err != nil:
		sum.Status = domain.RunStatusFailed
		sum.Error = err.Error()
	case ctx.Err() != nil:
		sum.Status = domain.RunStatusCancelled
		sum.Error = domain.ErrCancelledByUser.Error()
	default:
		sum.Status = domain.RunStatusCompleted
	}

	if sum.Status == domain.RunStatusCancelled && !folderExisted && sum.Succeeded == 0 {
		if err := storage.DeleteFolderIfEmpty(res.Folder); err != nil {
			log.Warn("Failed to remove empty folder", "error", err)
		}
	} else if err == nil {
		r.writePlaylists(sum, log)
	}

	log.Info("Run finished",
		"status", sum.Status,
		"total", sum.Total,
		"succeeded", sum.Succeeded,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"cancelled", sum.Cancelled,
		"elapsed", sum.Elapsed().Round(time.Millisecond),
	)

	r.recorded = s.finishRecord(sum, log)
	out := *sum
	return &out
}

func (r *Run) execute(ctx context.Context, events chan<- downloader.Event, log *logger.Logger) ([]domain.TrackResult, error) {
	s := r.syncer
	res := r.Resolved

	results := make([]domain.TrackResult, len(res.Tracks))
	position := make(map[int]int, len(res.Tracks))
	for i, t := range res.Tracks {
		results[i] = domain.TrackResult{Track: t, Status: domain.JobStatusQueued}
		position[t.OrderIndex] = i
	}

	plan, err := s.reconciler.Plan(res.Tracks, res.Folder)
	if err != nil {
		for i := range results {
			results[i].Status = domain.JobStatusFailed
			results[i].Error = err.Error()
		}
		return results, err
	}

	for _, skip := range plan.Skipped {
		if skip.Rule == reconcile.RuleFilename {
			if err := s.manifests.Record(res.Folder, skip.Track, skip.Filename); err != nil {
				log.Warn("Failed to record existing file", "filename", skip.Filename, "error", err)
			} else {
				log.Debug("Recorded existing file", "filename", skip.Filename)
			}
		}
		i := position[skip.Track.OrderIndex]
		results[i].Status = domain.JobStatusSkipped
		results[i].Filename = skip.Filename
	}

	log.Info("Planned run", "pending", len(plan.Pending), "skipped", len(plan.Skipped))
	if len(plan.Pending) == 0 {
		return results, nil
	}

	if err := storage.EnsureDir(res.Folder); err != nil {
		err = fmt.Errorf("failed to create output folder: %w", err)
		for _, t := range plan.Pending {
			i := position[t.OrderIndex]
			results[i].Status = domain.JobStatusFailed
			results[i].Error = err.Error()
		}
		return results, err
	}

	w := downloader.NewWorker(s.fetcher, s.manifests, s.workerOptions(), log).WithEvents(events)
	r.mu.Lock()
	r.worker = w
	r.skipped = len(plan.Skipped)
	r.mu.Unlock()

	for _, jr := range w.Run(ctx, res.Folder, plan.Pending) {
		results[position[jr.OrderIndex]] = jr
	}
	return results, nil
}

func (r *Run) writePlaylists(sum *domain.RunSummary, log *logger.Logger) {
	s := r.syncer
	folder := r.Resolved.Folder
	if _, err := os.Stat(folder); errors.Is(err, os.ErrNotExist) {
		return
	}

	if s.cfg.GenerateM3U {
		if entries := s.manifests.Entries(folder); len(entries) > 0 {
			path, err := s.playlists.Generate(folder, sum.Playlist, entries, s.cfg.Numbering)
			if err != nil {
				log.Error("Failed to write playlist", "error", err)
			} else {
				log.Info("Playlist written", "path", path, "entries", len(entries))
			}
		}
	}

	path, err := s.playlists.GenerateNotFound(folder, sum.Playlist, sum.Results)
	if err != nil {
		log.Error("Failed to write not-found report", "error", err)
	} else if path != "" {
		log.Info("Not-found report written", "path", path, "failed", sum.Failed)
	}
}

func (s *Syncer) workerOptions() downloader.Options {
	return downloader.Options{
		Workers:        s.cfg.Threads,
		JobTimeout:     s.cfg.JobTimeout.Duration,
		Format:         s.cfg.Format,
		Numbering:      s.cfg.Numbering,
		DeepSearch:     s.cfg.DeepSearch,
		SearchVariants: s.cfg.DeepSearchVariants,
		CookiesPath:    s.cfg.CookiesPath,
		DurationMin:    s.cfg.DurationMin,
		DurationMax:    s.cfg.DurationMax,
		TagFiles:       s.cfg.TagFiles,
	}
}

func (s *Syncer) createRecord(sum *domain.RunSummary, log *logger.Logger) {
	if s.history == nil {
		return
	}
	if err := s.history.CreateRun(sum); err != nil {
		log.Warn("Failed to record run start", "error", err)
	}
}

// finishRecord stores the final summary and reports whether history now
// holds it.
func (s *Syncer) finishRecord(sum *domain.RunSummary, log *logger.Logger) bool {
	if s.history == nil {
		return false
	}
	if err := s.history.FinishRun(sum); err != nil {
		log.Warn("Failed to record run result", "error", err)
		return false
	}
	return true
}
