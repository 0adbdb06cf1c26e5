package app

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cesargomez89/tracksync/internal/constants"
	"github.com/cesargomez89/tracksync/internal/domain"
	"github.com/cesargomez89/tracksync/internal/storage"
)

type PlaylistGenerator interface {
	Generate(folder, name string, entries []domain.ManifestEntry, numbering bool) (string, error)
	GenerateNotFound(folder, name string, results []domain.TrackResult) (string, error)
}

type playlistGenerator struct{}

func NewPlaylistGenerator() PlaylistGenerator {
	return &playlistGenerator{}
}

// Generate writes <folder>/<name>.m3u listing every recorded file still on
// disk. The order is recomputed from the entries each time, never from
// completion order.
func (pg *playlistGenerator) Generate(folder, name string, entries []domain.ManifestEntry, numbering bool) (string, error) {
	var present []domain.ManifestEntry
	for _, e := range entries {
		if storage.FileNonEmpty(filepath.Join(folder, e.Filename)) {
			present = append(present, e)
		}
	}
	sortEntries(present, numbering)

	var buf bytes.Buffer
	buf.WriteString("#EXTM3U\n")
	for _, e := range present {
		label := strings.TrimSuffix(e.Filename, filepath.Ext(e.Filename))
		if e.Title != "" {
			label = e.Artist + " - " + e.Title
		}
		fmt.Fprintf(&buf, "#EXTINF:-1,%s\n%s\n", label, e.Filename)
	}

	playlistPath := filepath.Join(folder, playlistFileName(name))
	if err := storage.WriteFileAtomic(playlistPath, buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to write playlist file: %w", err)
	}
	return playlistPath, nil
}

// GenerateNotFound writes <folder>/<name>_not_found.csv for failed tracks,
// or removes a stale report when nothing failed.
func (pg *playlistGenerator) GenerateNotFound(folder, name string, results []domain.TrackResult) (string, error) {
	reportPath := filepath.Join(folder, storage.Sanitize(name)+constants.NotFoundSuffix)

	var failed []domain.TrackResult
	for _, r := range results {
		if r.Status == domain.JobStatusFailed {
			failed = append(failed, r)
		}
	}
	if len(failed) == 0 {
		return "", storage.RemoveFile(reportPath)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"Track Name", "Artist Name(s)", "Album Name", "Track Number", "Error"})
	for _, r := range failed {
		artists := r.PrimaryArtist
		if len(r.Artists) > 0 {
			artists = strings.Join(r.Artists, ", ")
		}
		_ = w.Write([]string{r.Title, artists, r.Album, strconv.Itoa(r.Number()), r.Error})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	if err := storage.WriteFileAtomic(reportPath, buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return reportPath, nil
}

func playlistFileName(name string) string {
	base := storage.Sanitize(name)
	if base == "" {
		base = "playlist"
	}
	return base + constants.ExtM3U
}

// sortEntries orders by numeric filename prefix when numbering is on, else by
// source position and first download time.
func sortEntries(entries []domain.ManifestEntry, numbering bool) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if numbering {
			na, oka := numericPrefix(a.Filename)
			nb, okb := numericPrefix(b.Filename)
			switch {
			case oka && okb && na != nb:
				return na < nb
			case oka != okb:
				return oka
			}
			return a.Filename < b.Filename
		}
		if a.OrderIndex != b.OrderIndex {
			return a.OrderIndex < b.OrderIndex
		}
		return a.DownloadedAt.Before(b.DownloadedAt)
	})
}

func numericPrefix(filename string) (int, bool) {
	end := 0
	for end < len(filename) && filename[end] >= '0' && filename[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(filename[:end])
	return n, err == nil
}
