package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/cesargomez89/tracksync/internal/domain"
	"github.com/cesargomez89/tracksync/internal/downloader"
)

// Table provides a simple table formatter.
type Table struct {
	w *tabwriter.Writer
}

// NewTable creates a table writing to out with the given headers.
func NewTable(out io.Writer, headers ...string) *Table {
	t := &Table{w: tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)}
	if len(headers) > 0 {
		t.Row(headers...)
	}
	return t
}

// Row adds a row to the table.
func (t *Table) Row(values ...string) {
	_, _ = t.w.Write([]byte(strings.Join(values, "\t") + "\n"))
}

// Flush writes the table output.
func (t *Table) Flush() {
	_ = t.w.Flush()
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printEvents writes one line per job state change until events is closed.
func printEvents(out io.Writer, total int, events <-chan downloader.Event) {
	done := 0
	for ev := range events {
		if ev.Type != downloader.EventState {
			continue
		}
		r := ev.Result
		switch r.Status {
		case domain.JobStatusRunning:
			fmt.Fprintf(out, "      fetching  %s\n", r.DisplayName())
		case domain.JobStatusSucceeded:
			done++
			fmt.Fprintf(out, "[%*d/%d] ok        %s -> %s\n", width(total), done, total, r.DisplayName(), r.Filename)
		case domain.JobStatusFailed:
			done++
			fmt.Fprintf(out, "[%*d/%d] failed    %s: %s\n", width(total), done, total, r.DisplayName(), r.Error)
		case domain.JobStatusCancelled:
			done++
			fmt.Fprintf(out, "[%*d/%d] cancelled %s\n", width(total), done, total, r.DisplayName())
		}
	}
}

func width(n int) int {
	return len(fmt.Sprint(n))
}

// printSummary writes the end-of-run report.
func printSummary(out io.Writer, s *domain.RunSummary) {
	fmt.Fprintf(out, "\n%s: %s\n", s.Playlist, s.Status)
	fmt.Fprintf(out, "  folder     %s\n", s.Folder)
	fmt.Fprintf(out, "  tracks     %d\n", s.Total)
	fmt.Fprintf(out, "  fetched    %d\n", s.Succeeded)
	fmt.Fprintf(out, "  present    %d\n", s.Skipped)
	if s.Failed > 0 {
		fmt.Fprintf(out, "  failed     %d\n", s.Failed)
	}
	if s.Cancelled > 0 {
		fmt.Fprintf(out, "  cancelled  %d\n", s.Cancelled)
	}
	fmt.Fprintf(out, "  elapsed    %s\n", s.Elapsed().Round(time.Second))

	var failed []domain.TrackResult
	for _, r := range s.Results {
		if r.Status == domain.JobStatusFailed {
			failed = append(failed, r)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintf(out, "\nNot found (%s):\n", humanize.Comma(int64(len(failed))))
		for _, r := range failed {
			fmt.Fprintf(out, "  %03d  %s: %s\n", r.Number(), r.DisplayName(), r.Error)
		}
	}
	if s.Error != "" && s.Status == domain.RunStatusFailed {
		fmt.Fprintf(out, "\nError: %s\n", s.Error)
	}
}

// printRuns lists run records as a table.
func printRuns(out io.Writer, runs []*domain.RunSummary, now time.Time) {
	t := NewTable(out, "ID", "STARTED", "PLAYLIST", "STATUS", "FETCHED", "PRESENT", "FAILED")
	for _, r := range runs {
		t.Row(
			shortID(r.ID),
			humanize.RelTime(r.StartedAt, now, "ago", "from now"),
			r.Playlist,
			string(r.Status),
			fmt.Sprint(r.Succeeded),
			fmt.Sprint(r.Skipped),
			fmt.Sprint(r.Failed),
		)
	}
	t.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
