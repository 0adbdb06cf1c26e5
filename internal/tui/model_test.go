package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cesargomez89/tracksync/internal/domain"
	"github.com/cesargomez89/tracksync/internal/downloader"
	"github.com/cesargomez89/tracksync/internal/fetcher"
)

func state(idx int, title string, status domain.JobStatus, errMsg string) EventMsg {
	return EventMsg(downloader.Event{
		Type: downloader.EventState,
		Result: domain.TrackResult{
			Track:  domain.Track{Title: title, PrimaryArtist: "Artist", OrderIndex: idx},
			Status: status,
			Error:  errMsg,
		},
	})
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return nm, cmd
}

func TestModel_Counters(t *testing.T) {
	m := NewModel("Road Trip", "/music/Road Trip", 4, nil)

	for i := 1; i <= 3; i++ {
		m, _ = update(t, m, state(i, "T", domain.JobStatusQueued, ""))
	}
	if m.skipped != 1 {
		t.Fatalf("skipped = %d, want 1", m.skipped)
	}

	m, _ = update(t, m, state(1, "One", domain.JobStatusRunning, ""))
	m, _ = update(t, m, state(2, "Two", domain.JobStatusRunning, ""))
	m, _ = update(t, m, EventMsg(downloader.Event{
		Type:     downloader.EventProgress,
		Result:   domain.TrackResult{Track: domain.Track{Title: "One", OrderIndex: 1}},
		Progress: fetcher.Progress{Percent: 50, Speed: 2048, Downloaded: 4096},
	}))

	if len(m.running) != 2 || m.running[1].progress.Percent != 50 {
		t.Fatalf("unexpected running jobs: %+v", m.running)
	}
	view := m.View()
	if !strings.Contains(view, "Road Trip") || !strings.Contains(view, "Artist - One") {
		t.Errorf("view missing playlist or running job:\n%s", view)
	}

	m, _ = update(t, m, state(1, "One", domain.JobStatusSucceeded, ""))
	m, _ = update(t, m, state(2, "Two", domain.JobStatusFailed, "no match"))
	m, _ = update(t, m, state(3, "Three", domain.JobStatusCancelled, ""))

	if m.succeeded != 1 || m.failed != 1 || m.cancelled != 1 || len(m.running) != 0 {
		t.Errorf("unexpected counters: ok=%d failed=%d cancelled=%d running=%d", m.succeeded, m.failed, m.cancelled, len(m.running))
	}
	if m.Completed() != 4 {
		t.Errorf("Completed() = %d, want 4", m.Completed())
	}
	if !strings.Contains(m.View(), "no match") {
		t.Error("failed track error should be listed")
	}
}

func TestModel_ProgressForUnknownJobIgnored(t *testing.T) {
	m := NewModel("P", "/f", 1, nil)
	m, _ = update(t, m, EventMsg(downloader.Event{
		Type:     downloader.EventProgress,
		Result:   domain.TrackResult{Track: domain.Track{OrderIndex: 7}},
		Progress: fetcher.Progress{Percent: 10},
	}))
	if len(m.running) != 0 {
		t.Error("progress must not create a job")
	}
}

func TestModel_CtrlCCancelsOnce(t *testing.T) {
	calls := 0
	m := NewModel("P", "/f", 2, func() { calls++ })

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd != nil {
		t.Error("first ctrl+c should wait for the run, not quit")
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if calls != 1 {
		t.Errorf("cancel called %d times, want 1", calls)
	}
	if !strings.Contains(m.View(), "Cancelling") {
		t.Error("view should show the cancelling state")
	}

	m, cmd = update(t, m, DoneMsg{Summary: &domain.RunSummary{Status: domain.RunStatusCancelled, Cancelled: 2}})
	if cmd == nil {
		t.Fatal("done should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected a quit command")
	}
	if !strings.Contains(m.View(), "cancelled") || m.Completed() != 2 {
		t.Error("view should show the final status")
	}
}

func TestModel_WindowResizeClampsBars(t *testing.T) {
	m := NewModel("P", "/f", 1, nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 15, Height: 10})
	if m.bar.Width != minBar {
		t.Errorf("bar width = %d, want %d", m.bar.Width, minBar)
	}
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 300, Height: 10})
	if m.bar.Width != 80 {
		t.Errorf("bar width = %d, want 80", m.bar.Width)
	}
}

func TestTransferLine(t *testing.T) {
	got := transferLine(fetcher.Progress{Percent: 42, Speed: 3_100_000, Downloaded: 1_200_000, ETA: 5 * time.Second})
	want := " 42% 3.1 MB/s 1.2 MB eta 5s"
	if got != want {
		t.Errorf("transferLine = %q, want %q", got, want)
	}
	if got := transferLine(fetcher.Progress{}); got != "  0%" {
		t.Errorf("empty transferLine = %q", got)
	}
}

func TestShorten(t *testing.T) {
	if got := shorten("abcdef", 4); got != "abc…" {
		t.Errorf("shorten = %q", got)
	}
	if got := shorten("abc", 4); got != "abc" {
		t.Errorf("shorten = %q", got)
	}
}
