// Package tui renders a playlist run as a live terminal view.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/cesargomez89/tracksync/internal/domain"
	"github.com/cesargomez89/tracksync/internal/downloader"
	"github.com/cesargomez89/tracksync/internal/fetcher"
)

const (
	maxRecent   = 6
	defaultBar  = 40
	minBar      = 10
	refreshRate = 500 * time.Millisecond
)

// EventMsg carries one worker event into the program.
type EventMsg downloader.Event

// DoneMsg is sent once the run has returned.
type DoneMsg struct {
	Summary *domain.RunSummary
}

type tickMsg time.Time

type jobView struct {
	track    domain.Track
	progress fetcher.Progress
}

// Model is the bubbletea model of one run.
type Model struct {
	playlist string
	folder   string
	total    int
	queued   int
	skipped  int
	started  time.Time
	now      func() time.Time

	running   map[int]*jobView
	succeeded int
	failed    int
	cancelled int
	recent    []string

	bar     progress.Model
	jobBar  progress.Model
	width   int
	cancel  context.CancelFunc
	stopped bool
	summary *domain.RunSummary
}

// NewModel creates the view for a run over total tracks. cancel is invoked
// on ctrl+c.
func NewModel(playlist, folder string, total int, cancel context.CancelFunc) Model {
	return Model{
		playlist: playlist,
		folder:   folder,
		total:    total,
		started:  time.Now(),
		now:      time.Now,
		running:  make(map[int]*jobView),
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(defaultBar)),
		jobBar:   progress.New(progress.WithSolidFill(string(Info)), progress.WithWidth(defaultBar/2), progress.WithoutPercentage()),
		cancel:   cancel,
	}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.summary != nil {
				return m, tea.Quit
			}
			if !m.stopped {
				m.stopped = true
				if m.cancel != nil {
					m.cancel()
				}
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		w := msg.Width - 20
		if w < minBar {
			w = minBar
		}
		if w > 80 {
			w = 80
		}
		m.bar.Width = w
		m.jobBar.Width = w / 2
		return m, nil

	case EventMsg:
		m.apply(downloader.Event(msg))
		return m, nil

	case DoneMsg:
		m.summary = msg.Summary
		m.running = make(map[int]*jobView)
		if s := msg.Summary; s != nil {
			m.succeeded, m.failed, m.cancelled, m.skipped = s.Succeeded, s.Failed, s.Cancelled, s.Skipped
		}
		return m, tea.Quit

	case tickMsg:
		if m.summary != nil {
			return m, nil
		}
		return m, tick()
	}

	return m, nil
}

func (m *Model) apply(ev downloader.Event) {
	r := ev.Result
	switch ev.Type {
	case downloader.EventProgress:
		if j, ok := m.running[r.OrderIndex]; ok {
			j.progress = ev.Progress
		}

	case downloader.EventState:
		switch r.Status {
		case domain.JobStatusQueued:
			// Tracks never queued were already present.
			m.queued++
			m.skipped = m.total - m.queued
		case domain.JobStatusRunning:
			m.running[r.OrderIndex] = &jobView{track: r.Track}
		case domain.JobStatusSucceeded:
			delete(m.running, r.OrderIndex)
			m.succeeded++
			m.pushRecent(successStyle.Render("✓ ") + r.Track.DisplayName())
		case domain.JobStatusFailed:
			delete(m.running, r.OrderIndex)
			m.failed++
			m.pushRecent(errorStyle.Render("✗ ") + r.Track.DisplayName() + dimStyle.Render(" "+shorten(r.Error, 60)))
		case domain.JobStatusCancelled:
			delete(m.running, r.OrderIndex)
			m.cancelled++
		}
	}
}

func (m *Model) pushRecent(line string) {
	m.recent = append(m.recent, line)
	if len(m.recent) > maxRecent {
		m.recent = m.recent[len(m.recent)-maxRecent:]
	}
}

// Completed counts tracks with a final status, including skipped ones.
func (m Model) Completed() int {
	return m.skipped + m.succeeded + m.failed + m.cancelled
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.playlist))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render(m.folder))
	b.WriteString("\n\n")

	percent := 0.0
	if m.total > 0 {
		percent = float64(m.Completed()) / float64(m.total)
	}
	b.WriteString(m.bar.ViewAs(percent))
	b.WriteString("\n")
	b.WriteString(m.counters())
	b.WriteString("\n")

	if len(m.running) > 0 {
		b.WriteString("\n")
		b.WriteString(m.runningView())
	}

	if len(m.recent) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(m.recent, "\n"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.summary != nil:
		b.WriteString(mutedStyle.Render("Finished: " + string(m.summary.Status)))
	case m.stopped:
		b.WriteString(warningStyle.Render("Cancelling, waiting for running jobs to stop..."))
	default:
		b.WriteString(dimStyle.Render("ctrl+c to cancel"))
	}
	b.WriteString("\n")

	return b.String()
}

func (m Model) counters() string {
	elapsed := m.now().Sub(m.started).Round(time.Second)
	parts := []string{
		fmt.Sprintf("%d/%d", m.Completed(), m.total),
		successStyle.Render(fmt.Sprintf("%d fetched", m.succeeded)),
		infoStyle.Render(fmt.Sprintf("%d present", m.skipped)),
	}
	if m.failed > 0 {
		parts = append(parts, errorStyle.Render(fmt.Sprintf("%d failed", m.failed)))
	}
	if m.cancelled > 0 {
		parts = append(parts, warningStyle.Render(fmt.Sprintf("%d cancelled", m.cancelled)))
	}
	parts = append(parts, dimStyle.Render(elapsed.String()))
	return strings.Join(parts, mutedStyle.Render(" · "))
}

func (m Model) runningView() string {
	keys := make([]int, 0, len(m.running))
	for k := range m.running {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		j := m.running[k]
		label := lipgloss.NewStyle().Width(32).Render(shorten(j.track.DisplayName(), 30))
		lines = append(lines, label+" "+m.jobBar.ViewAs(j.progress.Percent/100)+" "+dimStyle.Render(transferLine(j.progress)))
	}
	return panelStyle.Render(strings.Join(lines, "\n")) + "\n"
}

// transferLine renders "42% 3.1 MB/s 1.2 MB eta 5s" with the parts known so far.
func transferLine(p fetcher.Progress) string {
	parts := []string{fmt.Sprintf("%3.0f%%", p.Percent)}
	if p.Speed > 0 {
		parts = append(parts, humanize.Bytes(uint64(p.Speed))+"/s")
	}
	if p.Downloaded > 0 {
		parts = append(parts, humanize.Bytes(uint64(p.Downloaded)))
	}
	if p.ETA > 0 {
		parts = append(parts, "eta "+p.ETA.Round(time.Second).String())
	}
	return strings.Join(parts, " ")
}

func shorten(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
