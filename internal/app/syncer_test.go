package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/cesargomez89/tracksync/internal/config"
	"github.com/cesargomez89/tracksync/internal/domain"
	"github.com/cesargomez89/tracksync/internal/fetcher"
	"github.com/cesargomez89/tracksync/internal/logger"
	"github.com/cesargomez89/tracksync/internal/manifest"
	"github.com/cesargomez89/tracksync/internal/reconcile"
	"github.com/cesargomez89/tracksync/internal/store"
)

type fakeFetcher struct {
	block   bool
	started chan struct{}
	fail    string

	mu    sync.Mutex
	calls []fetcher.Request
}

func (f *fakeFetcher) Fetch(ctx context.Context, req fetcher.Request, onProgress func(fetcher.Progress)) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.fail != "" && strings.Contains(req.Target(), f.fail) {
		return "", errors.New("no results")
	}

	path := filepath.Join(req.OutputDir, req.BaseName+"."+req.Format)
	return path, os.WriteFile(path, []byte("audio"), 0o644)
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type harness struct {
	cfg     *config.Config
	fetcher *fakeFetcher
	syncer  *Syncer
	history *store.DB
	srcDir  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := config.Default()
	cfg.OutputRoot = t.TempDir()
	cfg.Threads = 2
	cfg.Format = "mp3"
	cfg.TagFiles = false
	cfg.GenerateM3U = true
	cfg.Numbering = true

	db, err := store.NewSQLiteDB(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("failed to open history: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	f := &fakeFetcher{}
	log := logger.Discard()
	s := NewSyncer(Deps{
		Config:    cfg,
		Fetcher:   f,
		Manifests: manifest.NewStore(log),
		History:   db,
		Logger:    log,
	})

	return &harness{cfg: cfg, fetcher: f, syncer: s, history: db, srcDir: t.TempDir()}
}

func (h *harness) csv(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(h.srcDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const twoTracks = "Track URI,Track Name,Artist Name(s)\n" +
	"u1,A Song,Artist\n" +
	"u2,B Song,Artist\n"

func TestSyncer_FreshFolderThenRerun(t *testing.T) {
	h := newHarness(t)
	src := h.csv(t, "Mix.csv", twoTracks)

	sum, err := h.syncer.Sync(context.Background(), src, nil)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if sum.Status != domain.RunStatusCompleted || sum.Succeeded != 2 || sum.Total != 2 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	folder := filepath.Join(h.cfg.OutputRoot, "Mix")
	for _, name := range []string{"001 - A Song - Artist.mp3", "002 - B Song - Artist.mp3"} {
		if _, err := os.Stat(filepath.Join(folder, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}

	entries := manifest.NewStore(logger.Discard()).Entries(folder)
	if len(entries) != 2 || entries[0].URI != "u1" || entries[1].URI != "u2" {
		t.Fatalf("unexpected manifest entries: %+v", entries)
	}

	m3u, err := os.ReadFile(filepath.Join(folder, "Mix.m3u"))
	if err != nil {
		t.Fatalf("playlist not written: %v", err)
	}
	want := "#EXTM3U\n" +
		"#EXTINF:-1,Artist - A Song\n001 - A Song - Artist.mp3\n" +
		"#EXTINF:-1,Artist - B Song\n002 - B Song - Artist.mp3\n"
	if string(m3u) != want {
		t.Errorf("playlist =\n%s\nwant\n%s", m3u, want)
	}

	// Second run against the unchanged folder fetches nothing.
	again, err := h.syncer.Sync(context.Background(), src, nil)
	if err != nil {
		t.Fatalf("second Sync failed: %v", err)
	}
	if again.Skipped != 2 || again.Succeeded != 0 {
		t.Errorf("expected both skipped, got %+v", again)
	}
	if n := h.fetcher.callCount(); n != 2 {
		t.Errorf("fetcher called %d times, want 2", n)
	}

	rec, err := h.history.GetRun(again.ID)
	if err != nil {
		t.Fatalf("run not recorded: %v", err)
	}
	if rec.Status != domain.RunStatusCompleted || len(rec.Results) != 2 || rec.Results[0].Status != domain.JobStatusSkipped {
		t.Errorf("unexpected recorded run: %+v", rec)
	}
}

func TestSyncer_SelfHealsFromExistingFile(t *testing.T) {
	h := newHarness(t)
	folder := filepath.Join(h.cfg.OutputRoot, "Heal")
	if err := os.MkdirAll(folder, 0o755); err != nil {
		t.Fatal(err)
	}
	existing := "003 - C Title - Artist.mp3"
	if err := os.WriteFile(filepath.Join(folder, existing), []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := h.csv(t, "Heal.csv", "Track Name,Artist Name(s)\nC Title,Artist\n")
	sum, err := h.syncer.Sync(context.Background(), src, nil)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if sum.Skipped != 1 || h.fetcher.callCount() != 0 {
		t.Fatalf("expected a skip without fetching, got %+v (calls %d)", sum, h.fetcher.callCount())
	}
	if sum.Results[0].Filename != existing {
		t.Errorf("Filename = %q", sum.Results[0].Filename)
	}

	entries := manifest.NewStore(logger.Discard()).Entries(folder)
	if len(entries) != 1 || entries[0].Filename != existing || entries[0].NormalizedTitleArtist != "c title artist" {
		t.Errorf("manifest not healed: %+v", entries)
	}

	// The healed entry now matches by title and artist.
	plan, err := h.syncer.Plan(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Result.Skipped) != 1 || plan.Result.Skipped[0].Rule != reconcile.RuleTitleArtist {
		t.Errorf("expected a title+artist match after healing, got %+v", plan.Result.Skipped)
	}
}

func TestSyncer_FailuresWriteReport(t *testing.T) {
	h := newHarness(t)
	h.fetcher.fail = "Missing"
	src := h.csv(t, "Mix.csv", "Track Name,Artist Name(s)\nFound,X\nMissing,Y\n")

	sum, err := h.syncer.Sync(context.Background(), src, nil)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Status != domain.RunStatusCompleted || sum.Succeeded != 1 || sum.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if sum.Results[1].Status != domain.JobStatusFailed || sum.Results[1].Error == "" {
		t.Errorf("unexpected failed result: %+v", sum.Results[1])
	}

	report, err := os.ReadFile(filepath.Join(h.cfg.OutputRoot, "Mix", "Mix_not_found.csv"))
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if !strings.Contains(string(report), "Missing,Y,,2,") {
		t.Errorf("unexpected report:\n%s", report)
	}
}

func TestSyncer_ExcludesInstrumentals(t *testing.T) {
	h := newHarness(t)
	h.cfg.ExcludeInstrumental = true
	src := h.csv(t, "Mix.csv", "Track Name,Artist Name(s)\nSong,X\nSong (Instrumental),X\nSong - Karaoke Version,X\n")

	sum, err := h.syncer.Sync(context.Background(), src, nil)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Total != 1 || sum.Succeeded != 1 || h.fetcher.callCount() != 1 {
		t.Errorf("expected a single track, got %+v", sum)
	}
}

func TestSyncer_SingleFlightPerFolder(t *testing.T) {
	h := newHarness(t)
	src := h.csv(t, "Mix.csv", twoTracks)

	release, err := h.syncer.Session().Acquire(filepath.Join(h.cfg.OutputRoot, "Mix"), "other")
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	if _, err := h.syncer.Sync(context.Background(), src, nil); !errors.Is(err, domain.ErrRunActive) {
		t.Errorf("Expected ErrRunActive, got %v", err)
	}
	if h.fetcher.callCount() != 0 {
		t.Error("refused run must not fetch")
	}
}

func TestSyncer_CancelledRunRemovesNewFolder(t *testing.T) {
	h := newHarness(t)
	src := h.csv(t, "Mix.csv", twoTracks)

	run, err := h.syncer.Prepare(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum := run.Execute(ctx, nil)

	if sum.Status != domain.RunStatusCancelled || sum.Cancelled != 2 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	for _, r := range sum.Results {
		if !r.Status.IsTerminal() {
			t.Errorf("result %q not terminal: %s", r.Title, r.Status)
		}
	}
	if _, err := os.Stat(run.Resolved.Folder); !os.IsNotExist(err) {
		t.Errorf("expected empty folder to be removed, stat err = %v", err)
	}
	if _, ok := h.syncer.Session().ActiveRun(run.Resolved.Folder); ok {
		t.Error("folder should be released after the run")
	}
}

func TestSyncer_SourceErrorAbortsBeforeFetching(t *testing.T) {
	h := newHarness(t)
	src := h.csv(t, "bad.csv", "Artist,Album\nA,B\n")

	_, err := h.syncer.Sync(context.Background(), src, nil)
	if !errors.Is(err, domain.ErrSourceParse) {
		t.Errorf("Expected ErrSourceParse, got %v", err)
	}
	if h.fetcher.callCount() != 0 {
		t.Error("source failure must not fetch")
	}
}

func TestSyncer_PlanDoesNotFetch(t *testing.T) {
	h := newHarness(t)
	src := h.csv(t, "Mix.csv", twoTracks)

	report, err := h.syncer.Plan(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	if report.Playlist != "Mix" || len(report.Result.Pending) != 2 {
		t.Errorf("unexpected plan: %+v", report)
	}
	if h.fetcher.callCount() != 0 {
		t.Error("plan must not fetch")
	}
	if _, err := os.Stat(report.Folder); !os.IsNotExist(err) {
		t.Error("plan must not create the folder")
	}
}
