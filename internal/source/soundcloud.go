package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/cesargomez89/tracksync/internal/domain"
	"github.com/cesargomez89/tracksync/internal/logger"
)

var soundcloudSetPattern = regexp.MustCompile(`(?i)soundcloud\.com/.+?/sets/.+`)

const regionLockedHint = "SoundCloud returned no tracks: the set may be region-locked, private, or the link is invalid"

// SoundCloudSource lists a SoundCloud set (public or secret link) from the
// metadata the fetch tool extracts.
type SoundCloudSource struct {
	Link   string
	dumper MetadataDumper
	logger *logger.Logger
}

type soundcloudEntry struct {
	ID         any     `json:"id"`
	Title      string  `json:"title"`
	Uploader   string  `json:"uploader"`
	UploaderID string  `json:"uploader_id"`
	Artist     string  `json:"artist"`
	Duration   float64 `json:"duration"`
	WebpageURL string  `json:"webpage_url"`
	URL        string  `json:"url"`
}

type soundcloudDump struct {
	soundcloudEntry
	Entries []*soundcloudEntry `json:"entries"`
}

func NewSoundCloud(link string, dumper MetadataDumper, log *logger.Logger) (*SoundCloudSource, error) {
	if !soundcloudPattern.MatchString(strings.TrimSpace(link)) {
		return nil, domain.NewSourceError(domain.ErrSourceParse, link, errors.New("not a SoundCloud link"))
	}
	if log == nil {
		log = logger.Default()
	}
	return &SoundCloudSource{Link: strings.TrimSpace(link), dumper: dumper, logger: log}, nil
}

func (s *SoundCloudSource) Kind() Kind { return KindSoundCloud }

// IsSet reports whether the link names a set rather than a single track.
func (s *SoundCloudSource) IsSet() bool {
	return soundcloudSetPattern.MatchString(s.Link)
}

func (s *SoundCloudSource) Resolve(ctx context.Context) (*domain.Playlist, error) {
	raw, err := s.dumper.DumpJSON(ctx, s.Link, s.IsSet())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.NewSourceError(domain.ErrSourceUnavailable, s.Link, err)
	}

	pl, err := parseSoundCloud(raw)
	if err != nil {
		return nil, domain.NewSourceError(domain.ErrSourceParse, s.Link, err).WithHint(regionLockedHint)
	}

	s.logger.Info("Resolved SoundCloud source", "name", pl.Name, "tracks", len(pl.Tracks))
	return finish(pl, s.Link, regionLockedHint)
}

func parseSoundCloud(raw []byte) (*domain.Playlist, error) {
	var dump soundcloudDump
	if err := json.Unmarshal(raw, &dump); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}

	name := dump.Title
	if name == "" {
		name = "SoundCloud"
	}

	entries := dump.Entries
	if entries == nil && dump.Title != "" {
		// Single track link
		single := dump.soundcloudEntry
		entries = []*soundcloudEntry{&single}
	}

	pl := &domain.Playlist{Name: name}
	for _, e := range entries {
		if e == nil {
			continue
		}
		pl.Tracks = append(pl.Tracks, e.toTrack(name))
	}
	return pl, nil
}

func (e *soundcloudEntry) toTrack(album string) domain.Track {
	artist := e.Uploader
	if artist == "" {
		artist = e.Artist
	}
	if artist == "" {
		artist = e.UploaderID
	}

	page := e.WebpageURL
	if page == "" {
		page = e.URL
	}

	uri := ""
	if id := idString(e.ID); id != "" {
		uri = "soundcloud:track:" + id
	} else {
		uri = page
	}

	return domain.Track{
		URI:           uri,
		Title:         e.Title,
		PrimaryArtist: artist,
		Album:         album,
		DurationMS:    int(e.Duration * 1000),
		SourceURL:     page,
	}
}

func idString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return fmt.Sprint(id)
	}
}
