package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/cesargomez89/tracksync/internal/constants"
	"github.com/cesargomez89/tracksync/internal/normalize"
)

// JobStatus is the state of one track's fetch job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
	// JobStatusSkipped marks tracks the reconciler found already present.
	// It appears in results only, never as a job state.
	JobStatusSkipped JobStatus = "skipped"
)

// IsTerminal reports whether no further transition is possible.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCancelled, JobStatusSkipped:
		return true
	}
	return false
}

// RunStatus is the overall state of a playlist run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusCancelled RunStatus = "cancelled"
	RunStatusFailed    RunStatus = "failed"
)

// Track is one playlist entry as resolved from a source.
type Track struct {
	URI           string      `json:"uri,omitempty" db:"uri"`
	Title         string      `json:"title" db:"title"`
	PrimaryArtist string      `json:"primary_artist" db:"primary_artist"`
	Artists       StringSlice `json:"artists,omitempty" db:"artists"`
	Album         string      `json:"album,omitempty" db:"album"`
	DurationMS    int         `json:"duration_ms,omitempty" db:"duration_ms"`
	SourceURL     string      `json:"source_url,omitempty" db:"source_url"`
	OrderIndex    int         `json:"order_index" db:"order_index"`
}

// Normalize trims fields and coerces an empty title or artist to "Unknown".
func (t *Track) Normalize() {
	t.URI = strings.TrimSpace(t.URI)
	t.Title = strings.TrimSpace(t.Title)
	t.PrimaryArtist = strings.TrimSpace(t.PrimaryArtist)
	t.Album = strings.TrimSpace(t.Album)
	t.SourceURL = strings.TrimSpace(t.SourceURL)

	if t.PrimaryArtist == "" && len(t.Artists) > 0 {
		t.PrimaryArtist = strings.TrimSpace(t.Artists[0])
	}
	if t.Title == "" {
		t.Title = constants.UnknownValue
	}
	if t.PrimaryArtist == "" {
		t.PrimaryArtist = constants.UnknownValue
	}
}

// Key is the normalized title/artist identity.
func (t Track) Key() string {
	return normalize.Key(t.Title, t.PrimaryArtist)
}

// Identity is the manifest key: the URI when known, else the normalized key.
func (t Track) Identity() string {
	if t.URI != "" {
		return t.URI
	}
	return t.Key()
}

// DisplayName renders "Artist - Title".
func (t Track) DisplayName() string {
	return t.PrimaryArtist + " - " + t.Title
}

// Number is the 1-based position used for filename numbering.
func (t Track) Number() int {
	return t.OrderIndex + 1
}

// Playlist is the resolved output of a source adapter.
type Playlist struct {
	Name   string  `json:"name"`
	Tracks []Track `json:"tracks"`
}

// AssignOrder normalizes every track and sets OrderIndex to its position.
func (p *Playlist) AssignOrder() {
	for i := range p.Tracks {
		p.Tracks[i].Normalize()
		p.Tracks[i].OrderIndex = i
	}
	if strings.TrimSpace(p.Name) == "" {
		p.Name = constants.UnknownValue
	}
}

// ManifestEntry records one successfully fetched track.
type ManifestEntry struct {
	URI                   string    `json:"uri,omitempty"`
	NormalizedTitleArtist string    `json:"normalized_title_artist"`
	Filename              string    `json:"filename"`
	OrderIndex            int       `json:"order_index"`
	DownloadedAt          time.Time `json:"downloaded_at"`
	Title                 string    `json:"title,omitempty"`
	Artist                string    `json:"artist,omitempty"`
}

// Identity mirrors Track.Identity for a stored entry.
func (e ManifestEntry) Identity() string {
	if e.URI != "" {
		return e.URI
	}
	return e.NormalizedTitleArtist
}

// NewManifestEntry builds the entry recorded after a track lands in filename.
func NewManifestEntry(t Track, filename string, at time.Time) ManifestEntry {
	return ManifestEntry{
		URI:                   t.URI,
		NormalizedTitleArtist: t.Key(),
		Filename:              filename,
		OrderIndex:            t.OrderIndex,
		DownloadedAt:          at.UTC(),
		Title:                 t.Title,
		Artist:                t.PrimaryArtist,
	}
}

// Manifest is the persisted record of one output folder.
type Manifest struct {
	Version   int                      `json:"version"`
	UpdatedAt time.Time                `json:"updated_at"`
	Entries   map[string]ManifestEntry `json:"entries"`
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{
		Version: constants.ManifestVersion,
		Entries: make(map[string]ManifestEntry),
	}
}

// Put inserts or replaces e, evicting any other entry that claims the same filename.
func (m *Manifest) Put(e ManifestEntry) {
	if m.Entries == nil {
		m.Entries = make(map[string]ManifestEntry)
	}
	id := e.Identity()
	for k, existing := range m.Entries {
		if k != id && existing.Filename == e.Filename {
			delete(m.Entries, k)
		}
	}
	m.Entries[id] = e
}

// Sorted returns entries ordered by order index, then download time.
func (m *Manifest) Sorted() []ManifestEntry {
	out := make([]ManifestEntry, 0, len(m.Entries))
	for _, e := range m.Entries {
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		if !out[i].DownloadedAt.Equal(out[j].DownloadedAt) {
			return out[i].DownloadedAt.Before(out[j].DownloadedAt)
		}
		return out[i].Filename < out[j].Filename
	})
	return out
}

// Clone returns a deep copy.
func (m *Manifest) Clone() *Manifest {
	c := &Manifest{Version: m.Version, UpdatedAt: m.UpdatedAt, Entries: make(map[string]ManifestEntry, len(m.Entries))}
	for k, v := range m.Entries {
		c.Entries[k] = v
	}
	return c
}

// TrackResult is the final status of one source track in a run.
type TrackResult struct {
	Track
	Status   JobStatus `json:"status" db:"status"`
	Filename string    `json:"filename,omitempty" db:"filename"`
	Error    string    `json:"error,omitempty" db:"error"`
	Attempts int       `json:"attempts,omitempty" db:"attempts"`
}

// RunSummary is the outcome of a playlist run.
type RunSummary struct {
	ID         string        `json:"id" db:"id"`
	Source     string        `json:"source" db:"source"`
	SourceKind string        `json:"source_kind" db:"source_kind"`
	Playlist   string        `json:"playlist" db:"playlist"`
	Folder     string        `json:"folder" db:"folder"`
	Status     RunStatus     `json:"status" db:"status"`
	Total      int           `json:"total" db:"total"`
	Succeeded  int           `json:"succeeded" db:"succeeded"`
	Failed     int           `json:"failed" db:"failed"`
	Skipped    int           `json:"skipped" db:"skipped"`
	Cancelled  int           `json:"cancelled" db:"cancelled"`
	Error      string        `json:"error,omitempty" db:"error"`
	StartedAt  time.Time     `json:"started_at" db:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty" db:"finished_at"`
	Results    []TrackResult `json:"results,omitempty" db:"-"`
}

// Elapsed returns the run duration, or the time since start for a live run.
func (s *RunSummary) Elapsed() time.Duration {
	if s.FinishedAt != nil {
		return s.FinishedAt.Sub(s.StartedAt)
	}
	return time.Since(s.StartedAt)
}

// Tally recomputes the counters from Results.
func (s *RunSummary) Tally() {
	s.Total = len(s.Results)
	s.Succeeded, s.Failed, s.Skipped, s.Cancelled = 0, 0, 0, 0
	for _, r := range s.Results {
		switch r.Status {
		case JobStatusSucceeded:
			s.Succeeded++
		case JobStatusFailed:
			s.Failed++
		case JobStatusSkipped:
			s.Skipped++
		case JobStatusCancelled:
			s.Cancelled++
		}
	}
}
