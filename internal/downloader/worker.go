// Package downloader runs fetch jobs for pending tracks on a bounded pool of
// workers and reports their progress.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cesargomez89/tracksync/internal/constants"
	"github.com/cesargomez89/tracksync/internal/domain"
	"github.com/cesargomez89/tracksync/internal/fetcher"
	"github.com/cesargomez89/tracksync/internal/logger"
	"github.com/cesargomez89/tracksync/internal/storage"
	"github.com/cesargomez89/tracksync/internal/tagging"
)

var ErrJobTimeout = errors.New("job exceeded its time limit")

// Recorder persists a successful fetch. It must return only once the record
// is durable.
type Recorder interface {
	Record(folder string, track domain.Track, filename string) error
}

// Options control one pool run.
type Options struct {
	Workers        int
	JobTimeout     time.Duration
	Format         string
	Numbering      bool
	DeepSearch     bool
	SearchVariants int
	CookiesPath    string
	DurationMin    int
	DurationMax    int
	TagFiles       bool
}

// Aggregate is the run-wide progress tuple.
type Aggregate struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Cancelled int           `json:"cancelled"`
	Running   int           `json:"running"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Completed counts jobs in a terminal state.
func (a Aggregate) Completed() int {
	return a.Succeeded + a.Failed + a.Cancelled
}

// Worker owns the pool for one run. It is not reusable.
type Worker struct {
	fetcher  fetcher.Fetcher
	recorder Recorder
	opts     Options
	Logger   *logger.Logger
	events   chan<- Event
	tag      func(string, domain.Track) error

	started   atomic.Int64
	total     atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	cancelled atomic.Int64
	running   atomic.Int64
}

func NewWorker(f fetcher.Fetcher, rec Recorder, opts Options, log *logger.Logger) *Worker {
	if log == nil {
		log = logger.Default()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Workers > constants.MaxThreads {
		opts.Workers = constants.MaxThreads
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = constants.DefaultJobTimeout
	}
	if opts.Format == "" {
		opts.Format = constants.DefaultFormat
	}

	return &Worker{
		fetcher:  f,
		recorder: rec,
		opts:     opts,
		Logger:   log.WithComponent("worker"),
		tag:      tagging.TagFile,
	}
}

// WithEvents sets the channel state and progress events are sent on. State
// events block until received; progress events are dropped when the channel
// is full. The caller must keep draining it until Run returns.
func (w *Worker) WithEvents(ch chan<- Event) *Worker {
	w.events = ch
	return w
}

// Snapshot returns the current aggregate. Safe to call concurrently with Run.
func (w *Worker) Snapshot() Aggregate {
	a := Aggregate{
		Total:     int(w.total.Load()),
		Succeeded: int(w.succeeded.Load()),
		Failed:    int(w.failed.Load()),
		Cancelled: int(w.cancelled.Load()),
		Running:   int(w.running.Load()),
	}
	if ns := w.started.Load(); ns != 0 {
		a.Elapsed = time.Since(time.Unix(0, ns))
	}
	return a
}

// Run fetches tracks into folder and returns one result per track, in input
// order. Every result is terminal when Run returns. Cancelling ctx stops
// workers from starting queued jobs and interrupts running fetches.
func (w *Worker) Run(ctx context.Context, folder string, tracks []domain.Track) []domain.TrackResult {
	w.started.Store(time.Now().UnixNano())
	w.total.Store(int64(len(tracks)))

	results := make([]domain.TrackResult, len(tracks))
	queue := make(chan int, len(tracks))
	for i, t := range tracks {
		results[i] = domain.TrackResult{Track: t, Status: domain.JobStatusQueued}
		queue <- i
	}
	close(queue)

	if len(tracks) == 0 {
		return results
	}

	for i := range results {
		w.emitState(results[i])
	}
	names := w.assignBaseNames(folder, tracks)

	workers := w.opts.Workers
	if workers > len(tracks) {
		workers = len(tracks)
	}
	w.Logger.Info("Starting workers", "workers", workers, "jobs", len(tracks), "folder", folder)

	var wg sync.WaitGroup
	for n := 0; n < workers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				if ctx.Err() != nil {
					results[i].Status = domain.JobStatusCancelled
					w.cancelled.Add(1)
					w.emitState(results[i])
					continue
				}
				w.runJob(ctx, folder, names[i], &results[i])
			}
		}()
	}
	wg.Wait()

	a := w.Snapshot()
	w.Logger.Info("Workers finished",
		"succeeded", a.Succeeded,
		"failed", a.Failed,
		"cancelled", a.Cancelled,
		"elapsed", a.Elapsed.Round(time.Millisecond),
	)
	return results
}

// assignBaseNames gives every track its own output name. Without numbering a
// single and its album version share "Title - Artist"; later ones get a
// " (n)" suffix. Names already taken on disk are skipped too.
func (w *Worker) assignBaseNames(folder string, tracks []domain.Track) []string {
	ext := storage.ParseExtension(w.opts.Format)
	claimed := make(map[string]bool, len(tracks))
	names := make([]string, len(tracks))

	for i, t := range tracks {
		base := storage.BaseName(w.opts.Numbering, t.Number(), t.Title, t.PrimaryArtist)
		name := base
		for n := 2; claimed[strings.ToLower(name)] || storage.FileNonEmpty(filepath.Join(folder, name+ext)); n++ {
			name = fmt.Sprintf("%s (%d)", base, n)
		}
		if name != base {
			w.Logger.Info("Output name taken, using suffix", "order_index", t.OrderIndex, "base_name", name)
		}
		claimed[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

func (w *Worker) runJob(ctx context.Context, folder, baseName string, res *domain.TrackResult) {
	t := res.Track
	log := w.Logger.WithTrack(t.OrderIndex, t.Title)

	res.Status = domain.JobStatusRunning
	w.running.Add(1)
	w.emitState(*res)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic in job", "panic", r)
			w.cleanup(folder, baseName, log)
			res.Status = domain.JobStatusFailed
			res.Error = fmt.Sprintf("panic: %v", r)
		}
		w.running.Add(-1)
		switch res.Status {
		case domain.JobStatusSucceeded:
			w.succeeded.Add(1)
		case domain.JobStatusCancelled:
			w.cancelled.Add(1)
		default:
			res.Status = domain.JobStatusFailed
			w.failed.Add(1)
		}
		w.emitState(*res)
	}()

	jobCtx, cancel := context.WithTimeout(ctx, w.opts.JobTimeout)
	defer cancel()

	path, err := w.fetch(jobCtx, folder, baseName, res, log)
	if err != nil {
		w.cleanup(folder, baseName, log)
		if ctx.Err() != nil {
			log.Info("Job cancelled")
			res.Status = domain.JobStatusCancelled
			return
		}
		if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w (%s, %d attempts)", ErrJobTimeout, w.opts.JobTimeout, res.Attempts)
		}
		log.Warn("Fetch failed", "attempts", res.Attempts, "error", err)
		res.Status = domain.JobStatusFailed
		res.Error = err.Error()
		return
	}

	if w.opts.TagFiles {
		if err := w.tag(path, t); err != nil {
			if errors.Is(err, tagging.ErrUnsupportedFormat) {
				log.Debug("Skipping tags", "reason", err)
			} else {
				log.Warn("Failed to tag file", "file_path", path, "error", err)
			}
		}
	}

	filename := filepath.Base(path)
	if err := w.recorder.Record(folder, t, filename); err != nil {
		// The file stays; the next run heals the manifest from the folder.
		log.Error("Failed to record manifest entry", "filename", filename, "error", err)
		res.Status = domain.JobStatusFailed
		res.Error = err.Error()
		return
	}

	res.Filename = filename
	res.Status = domain.JobStatusSucceeded
	log.Info("Track fetched", "filename", filename, "attempts", res.Attempts)
}

// fetch tries the direct source first, then each search query, until one
// produces a non-empty file. Without deep search there is a single attempt.
// ctx carries the job deadline, shared by all attempts.
func (w *Worker) fetch(ctx context.Context, folder, baseName string, res *domain.TrackResult, log *logger.Logger) (string, error) {
	t := res.Track
	base := fetcher.Request{
		OutputDir:   folder,
		BaseName:    baseName,
		Format:      w.opts.Format,
		SampleRate:  constants.TargetSampleRate,
		CookiesPath: w.opts.CookiesPath,
		DurationMin: w.opts.DurationMin,
		DurationMax: w.opts.DurationMax,
		Thumbnail:   w.opts.TagFiles && (w.opts.Format == constants.FormatFLAC || w.opts.Format == constants.FormatMP3),
	}

	var requests []fetcher.Request
	if t.SourceURL != "" {
		r := base
		r.URL = t.SourceURL
		requests = append(requests, r)
	}
	if t.SourceURL == "" || w.opts.DeepSearch {
		for _, q := range fetcher.Queries(t, w.opts.DeepSearch, w.opts.SearchVariants) {
			r := base
			r.Query = q
			requests = append(requests, r)
		}
	}

	var lastErr error
	for _, req := range requests {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		res.Attempts++
		log.Debug("Fetch attempt", "attempt", res.Attempts, "target", req.Target())

		path, err := w.attempt(ctx, req, t)
		if err == nil {
			return path, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if len(requests) > 1 {
			log.Debug("Attempt failed", "attempt", res.Attempts, "error", err)
			w.cleanup(folder, baseName, log)
		}
	}
	return "", &domain.FetchError{Track: t.DisplayName(), Attempts: res.Attempts, Err: lastErr}
}

func (w *Worker) attempt(ctx context.Context, req fetcher.Request, t domain.Track) (string, error) {
	path, err := w.fetcher.Fetch(ctx, req, func(p fetcher.Progress) {
		w.emitProgress(t, p)
	})
	if err != nil {
		return "", err
	}
	if !storage.FileNonEmpty(path) {
		return "", fmt.Errorf("output missing or empty: %s", filepath.Base(path))
	}
	return path, nil
}

// cleanup removes whatever a failed or cancelled job left so the next run
// does not mistake it for a finished download.
func (w *Worker) cleanup(folder, baseName string, log *logger.Logger) {
	removed, err := storage.RemovePartials(folder, baseName)
	if err != nil {
		log.Warn("Failed to remove partial files", "error", err)
	}
	if len(removed) > 0 {
		log.Debug("Removed partial files", "files", removed)
	}
}
