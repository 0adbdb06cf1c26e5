package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cesargomez89/tracksync/internal/domain"
)

type column int

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

const (
	colTitle column = iota
	colArtist
	colAlbum
	colDuration
	colURI
	colSourceURL
)

// headerAliases maps lowercased header names to the column they fill.
var headerAliases = map[string]column{
	"track name":        colTitle,
	"track":             colTitle,
	"title":             colTitle,
	"name":              colTitle,
	"song":              colTitle,
	"artist name(s)":    colArtist,
	"artist name":       colArtist,
	"artist names":      colArtist,
	"artist":            colArtist,
	"artists":           colArtist,
	"album name":        colAlbum,
	"album":             colAlbum,
	"duration (ms)":     colDuration,
	"duration_ms":       colDuration,
	"duration":          colDuration,
	"track duration":    colDuration,
	"track uri":         colURI,
	"uri":               colURI,
	"spotify uri":       colURI,
	"spotify track uri": colURI,
	"source url":        colSourceURL,
	"url":               colSourceURL,
}

// CSVSource reads a playlist export such as the ones produced by Exportify.
type CSVSource struct {
	Path string
}

func NewCSV(path string) *CSVSource {
	return &CSVSource{Path: path}
}

func (s *CSVSource) Kind() Kind { return KindCSV }

func (s *CSVSource) Resolve(ctx context.Context) (*domain.Playlist, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.NewSourceError(domain.ErrSourceParse, s.Path, err).WithHint("Check the CSV file path")
		}
		return nil, domain.NewSourceError(domain.ErrSourceUnavailable, s.Path, err)
	}
	defer f.Close()

	tracks, err := parseCSV(ctx, f)
	if err != nil {
		return nil, domain.NewSourceError(domain.ErrSourceParse, s.Path, err).
			WithHint("The CSV needs a header row with a track name column (e.g. \"Track Name\")")
	}

	name := strings.TrimSuffix(filepath.Base(s.Path), filepath.Ext(s.Path))
	return finish(&domain.Playlist{Name: name, Tracks: tracks}, s.Path, "The CSV has a header but no track rows")
}

func parseCSV(ctx context.Context, r io.Reader) ([]domain.Track, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, err
	}
	if bytes.HasPrefix(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
		head = head[len(utf8BOM):]
	}

	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(head)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("file is empty")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := mapHeader(header)
	if _, ok := cols[colTitle]; !ok {
		return nil, errors.New("no recognizable title column")
	}

	var tracks []domain.Track
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		get := func(c column) string {
			idx, ok := cols[c]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		title, artists, uri, url := get(colTitle), get(colArtist), get(colURI), get(colSourceURL)
		if title == "" && artists == "" && uri == "" && url == "" {
			continue
		}

		all := splitArtists(artists)
		tr := domain.Track{
			URI:        uri,
			Title:      title,
			Artists:    all,
			Album:      get(colAlbum),
			DurationMS: parseDuration(get(colDuration)),
			SourceURL:  url,
		}
		if len(all) > 0 {
			tr.PrimaryArtist = all[0]
		}
		tracks = append(tracks, tr)
	}

	return tracks, nil
}

func mapHeader(header []string) map[column]int {
	cols := make(map[column]int)
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		if c, ok := headerAliases[h]; ok {
			if _, seen := cols[c]; !seen {
				cols[c] = i
			}
		}
	}
	return cols
}

// sniffDelimiter picks the most frequent of comma, semicolon and tab in the first line.
func sniffDelimiter(head []byte) rune {
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	best, bestCount := ',', bytes.Count(head, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(head, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// parseDuration accepts milliseconds ("215000") or clock form ("3:35", "1:02:03").
func parseDuration(s string) int {
	if s == "" {
		return 0
	}
	if ms, err := strconv.Atoi(s); err == nil && ms > 0 {
		return ms
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return int(f)
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0
	}
	seconds := 0
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return 0
		}
		seconds = seconds*60 + n
	}
	return int((time.Duration(seconds) * time.Second).Milliseconds())
}
