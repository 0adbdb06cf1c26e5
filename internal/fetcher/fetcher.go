// Package fetcher runs the external search, download and encode tool for a
// single track.
package fetcher

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/cesargomez89/tracksync/internal/domain"
)

// Request describes one fetch invocation.
type Request struct {
	// URL is a direct page for the track. When set, Query is ignored.
	URL   string
	Query string

	OutputDir   string
	BaseName    string
	Format      string
	SampleRate  int
	CookiesPath string

	// Search results outside this range (seconds) are rejected.
	DurationMin int
	DurationMax int

	// Thumbnail asks the tool to leave a cover image next to the output.
	Thumbnail bool
}

// Target returns what the tool is asked to fetch.
func (r Request) Target() string {
	if r.URL != "" {
		return r.URL
	}
	return "ytsearch1:" + r.Query
}

// Progress is one incremental report from a running fetch.
type Progress struct {
	Percent    float64
	Downloaded int64
	Total      int64
	Speed      float64 // bytes per second
	ETA        time.Duration
}

// Fetcher downloads and encodes one track, returning the output path.
type Fetcher interface {
	Fetch(ctx context.Context, req Request, onProgress func(Progress)) (string, error)
}

var parenthetical = regexp.MustCompile(`\s*[\(\[][^\)\]]*[\)\]]`)

// Query is the base search text for a track.
func Query(t domain.Track) string {
	return strings.TrimSpace(t.PrimaryArtist + " " + t.Title)
}

// Queries returns the search texts to try in order. Without deep search only
// the base query is returned; otherwise up to variants alternates follow it.
func Queries(t domain.Track, deep bool, variants int) []string {
	base := Query(t)
	out := []string{base}
	if !deep || variants <= 0 {
		return out
	}

	candidates := []string{
		base + " official audio",
		base + " lyrics",
	}
	if stripped := strings.TrimSpace(parenthetical.ReplaceAllString(t.Title, "")); stripped != "" && stripped != t.Title {
		candidates = append(candidates, strings.TrimSpace(t.PrimaryArtist+" "+stripped))
	}
	candidates = append(candidates, strings.TrimSpace(t.Title+" audio"))

	seen := map[string]bool{base: true}
	for _, c := range candidates {
		if len(out) > variants {
			break
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
