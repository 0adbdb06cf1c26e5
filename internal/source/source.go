// Package source resolves a playlist reference into an ordered track list.
// The set of sources is closed: CSV exports, Spotify links and SoundCloud
// links.
package source

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/cesargomez89/tracksync/internal/domain"
	"github.com/cesargomez89/tracksync/internal/httpclient"
	"github.com/cesargomez89/tracksync/internal/logger"
)

// Kind identifies one of the supported sources.
type Kind string

const (
	KindCSV        Kind = "csv"
	KindSpotify    Kind = "spotify"
	KindSoundCloud Kind = "soundcloud"
)

// Resolver turns a source reference into an ordered playlist.
type Resolver interface {
	Kind() Kind
	Resolve(ctx context.Context) (*domain.Playlist, error)
}

// TokenSource supplies the in-memory Spotify bearer token.
type TokenSource interface {
	Token() string
}

// MetadataDumper returns the JSON metadata yt-dlp produces for a URL.
type MetadataDumper interface {
	DumpJSON(ctx context.Context, url string, playlist bool) ([]byte, error)
}

// Deps are the collaborators adapters may need.
type Deps struct {
	HTTP          *httpclient.Client
	SpotifyAPIURL string
	Tokens        TokenSource
	Dumper        MetadataDumper
	Logger        *logger.Logger
}

var (
	spotifyPattern    = regexp.MustCompile(`(?i)(?:spotify:(playlist|album):|open\.spotify\.com/(?:intl-[a-z]+/)?(playlist|album)/)([A-Za-z0-9]+)`)
	soundcloudPattern = regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.|m\.|on\.)?soundcloud\.com/`)
	urlPattern        = regexp.MustCompile(`(?i)^[a-z][a-z0-9+.-]*://`)
)

// Detect classifies input. Anything that is not a URL or Spotify URI is
// treated as a CSV path.
func Detect(input string) (Kind, error) {
	in := strings.TrimSpace(input)
	switch {
	case in == "":
		return "", domain.NewSourceError(domain.ErrSourceParse, "", errors.New("empty source"))
	case strings.HasPrefix(strings.ToLower(in), "spotify:"), strings.Contains(strings.ToLower(in), "open.spotify.com/"):
		return KindSpotify, nil
	case soundcloudPattern.MatchString(in):
		return KindSoundCloud, nil
	case urlPattern.MatchString(in):
		return "", domain.NewSourceError(domain.ErrSourceParse, in, errors.New("unsupported link")).
			WithHint("Use a Spotify playlist/album link, a SoundCloud set link, or a CSV file")
	}
	return KindCSV, nil
}

// New builds the resolver for input.
func New(input string, deps Deps) (Resolver, error) {
	kind, err := Detect(input)
	if err != nil {
		return nil, err
	}

	if deps.Logger == nil {
		deps.Logger = logger.Default()
	}
	log := deps.Logger.WithComponent("source")
	input = strings.TrimSpace(input)

	switch kind {
	case KindCSV:
		return NewCSV(input), nil
	case KindSpotify:
		if deps.HTTP == nil {
			return nil, fmt.Errorf("spotify source requires an http client")
		}
		return NewSpotify(input, deps.HTTP, deps.SpotifyAPIURL, deps.Tokens, log)
	case KindSoundCloud:
		if deps.Dumper == nil {
			return nil, fmt.Errorf("soundcloud source requires a metadata dumper")
		}
		return NewSoundCloud(input, deps.Dumper, log)
	}
	return nil, fmt.Errorf("unknown source kind %q", kind)
}

// finish assigns order indexes and rejects empty results.
func finish(pl *domain.Playlist, src string, emptyHint string) (*domain.Playlist, error) {
	if len(pl.Tracks) == 0 {
		return nil, domain.NewSourceError(domain.ErrSourceParse, src, errors.New("no tracks found")).WithHint(emptyHint)
	}
	pl.AssignOrder()
	return pl, nil
}

// splitArtists splits "A, B" or "A;B" into its parts, dropping blanks.
func splitArtists(s string) []string {
	var out []string
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
