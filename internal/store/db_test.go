package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cesargomez89/tracksync/internal/domain"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() {
		if cErr := db.Close(); cErr != nil {
			t.Logf("db.Close error: %v", cErr)
		}
	})
	return db
}

func newRun(id string, started time.Time) *domain.RunSummary {
	return &domain.RunSummary{
		ID:         id,
		Source:     "playlist.csv",
		SourceKind: "csv",
		Playlist:   "Playlist",
		Folder:     "/music/Playlist",
		Status:     domain.RunStatusRunning,
		StartedAt:  started,
	}
}

func TestDB_RunLifecycle(t *testing.T) {
	db := setupTestDB(t)

	run := newRun("run-1", time.Now().UTC().Truncate(time.Second))
	if err := db.CreateRun(run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	finished := run.StartedAt.Add(time.Minute)
	run.Status = domain.RunStatusCompleted
	run.FinishedAt = &finished
	run.Results = []domain.TrackResult{
		{Track: domain.Track{URI: "u1", Title: "A", PrimaryArtist: "X", Artists: []string{"X", "Y"}, OrderIndex: 0}, Status: domain.JobStatusSucceeded, Filename: "001 - A - X.mp3", Attempts: 1},
		{Track: domain.Track{Title: "B", PrimaryArtist: "Z", OrderIndex: 1}, Status: domain.JobStatusFailed, Error: "no match", Attempts: 3},
		{Track: domain.Track{Title: "C", PrimaryArtist: "Z", OrderIndex: 2}, Status: domain.JobStatusSkipped, Filename: "003 - C - Z.mp3"},
	}
	run.Tally()

	if err := db.FinishRun(run); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	got, err := db.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != domain.RunStatusCompleted || got.Succeeded != 1 || got.Failed != 1 || got.Skipped != 1 {
		t.Errorf("unexpected run: %+v", got)
	}
	if got.FinishedAt == nil {
		t.Fatal("FinishedAt should be set")
	}
	if len(got.Results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(got.Results))
	}
	if got.Results[0].URI != "u1" || len(got.Results[0].Artists) != 2 || got.Results[0].Filename != "001 - A - X.mp3" {
		t.Errorf("unexpected first result: %+v", got.Results[0])
	}
	if got.Results[1].Error != "no match" || got.Results[1].Attempts != 3 {
		t.Errorf("unexpected second result: %+v", got.Results[1])
	}

	// Finishing again replaces results instead of duplicating them.
	if err := db.FinishRun(run); err != nil {
		t.Fatalf("second FinishRun failed: %v", err)
	}
	again, _ := db.GetRun("run-1")
	if len(again.Results) != 3 {
		t.Errorf("Expected 3 results after re-finish, got %d", len(again.Results))
	}
}

func TestDB_GetRunNotFound(t *testing.T) {
	db := setupTestDB(t)
	if _, err := db.GetRun("missing"); !errors.Is(err, domain.ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
	if err := db.FinishRun(newRun("missing", time.Now())); !errors.Is(err, domain.ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound from FinishRun, got %v", err)
	}
}

func TestDB_ListRuns(t *testing.T) {
	db := setupTestDB(t)
	base := time.Now().UTC()

	for i, id := range []string{"old", "mid", "new"} {
		if err := db.CreateRun(newRun(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := db.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "new" || runs[1].ID != "mid" {
		t.Errorf("unexpected order: %v, %v", runs[0].ID, runs[1].ID)
	}
}

func TestDB_ResetStuckRuns(t *testing.T) {
	db := setupTestDB(t)
	if err := db.CreateRun(newRun("stuck", time.Now())); err != nil {
		t.Fatal(err)
	}

	n, err := db.ResetStuckRuns()
	if err != nil || n != 1 {
		t.Fatalf("ResetStuckRuns = %d, %v", n, err)
	}
	got, _ := db.GetRun("stuck")
	if got.Status != domain.RunStatusFailed {
		t.Errorf("Expected failed, got %s", got.Status)
	}
}
