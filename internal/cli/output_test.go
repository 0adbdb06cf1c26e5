package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cesargomez89/tracksync/internal/domain"
	"github.com/cesargomez89/tracksync/internal/downloader"
)

func result(i int, title string, status domain.JobStatus) domain.TrackResult {
	return domain.TrackResult{
		Track:  domain.Track{Title: title, PrimaryArtist: "Artist", OrderIndex: i},
		Status: status,
	}
}

func TestPrintEvents(t *testing.T) {
	events := make(chan downloader.Event, 8)
	ok := result(0, "One", domain.JobStatusSucceeded)
	ok.Filename = "001 - One - Artist.mp3"
	bad := result(1, "Two", domain.JobStatusFailed)
	bad.Error = "not found"

	events <- downloader.Event{Type: downloader.EventState, Result: result(0, "One", domain.JobStatusRunning)}
	events <- downloader.Event{Type: downloader.EventProgress, Result: result(0, "One", domain.JobStatusRunning)}
	events <- downloader.Event{Type: downloader.EventState, Result: ok}
	events <- downloader.Event{Type: downloader.EventState, Result: bad}
	close(events)

	var buf bytes.Buffer
	printEvents(&buf, 12, events)
	out := buf.String()

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines (progress ignored), got %d:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[1], "[ 1/12] ok") || !strings.Contains(lines[1], "001 - One - Artist.mp3") {
		t.Errorf("unexpected success line: %q", lines[1])
	}
	if !strings.Contains(lines[2], "[ 2/12] failed") || !strings.Contains(lines[2], "not found") {
		t.Errorf("unexpected failure line: %q", lines[2])
	}
}

func TestPrintSummary(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	end := start.Add(90 * time.Second)
	missing := result(2, "Gone", domain.JobStatusFailed)
	missing.Error = "no match"

	sum := &domain.RunSummary{
		Playlist:   "Mix",
		Folder:     "/music/Mix",
		Status:     domain.RunStatusCompleted,
		StartedAt:  start,
		FinishedAt: &end,
		Results: []domain.TrackResult{
			result(0, "A", domain.JobStatusSucceeded),
			result(1, "B", domain.JobStatusSkipped),
			missing,
		},
	}
	sum.Tally()

	var buf bytes.Buffer
	printSummary(&buf, sum)
	out := buf.String()

	for _, want := range []string{"Mix: completed", "fetched    1", "present    1", "failed     1", "elapsed    1m30s", "003  Artist - Gone: no match"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "cancelled") {
		t.Errorf("zero cancelled count should be omitted:\n%s", out)
	}
}

func TestPrintRuns(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	runs := []*domain.RunSummary{
		{ID: "0123456789abcdef", Playlist: "Mix", Status: domain.RunStatusCompleted, StartedAt: now.Add(-2 * time.Hour), Succeeded: 3},
	}

	var buf bytes.Buffer
	printRuns(&buf, runs, now)
	out := buf.String()

	if !strings.HasPrefix(out, "ID") {
		t.Errorf("Expected a header row, got:\n%s", out)
	}
	if !strings.Contains(out, "01234567 ") || strings.Contains(out, "89abcdef") {
		t.Errorf("Expected a shortened id:\n%s", out)
	}
	if !strings.Contains(out, "2 hours ago") {
		t.Errorf("Expected a relative start time:\n%s", out)
	}
}

type fakeHistory struct {
	runs []*domain.RunSummary
}

func (f *fakeHistory) GetRun(id string) (*domain.RunSummary, error) {
	for _, r := range f.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, domain.ErrRunNotFound
}

func (f *fakeHistory) ListRuns(limit int) ([]*domain.RunSummary, error) {
	return f.runs, nil
}

func TestFindByPrefix(t *testing.T) {
	h := &fakeHistory{runs: []*domain.RunSummary{{ID: "abc123"}, {ID: "abd456"}}}

	run, err := findByPrefix(h, "abc")
	if err != nil || run.ID != "abc123" {
		t.Errorf("findByPrefix(abc) = %v, %v", run, err)
	}

	if _, err := findByPrefix(h, "ab"); err == nil || !strings.Contains(err.Error(), "ambiguous") {
		t.Errorf("Expected ambiguity error, got %v", err)
	}

	if _, err := findByPrefix(h, "zz"); !errors.Is(err, domain.ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
}
