package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cesargomez89/tracksync/internal/constants"
	"github.com/cesargomez89/tracksync/internal/domain"
	"github.com/cesargomez89/tracksync/internal/httpclient"
	"github.com/cesargomez89/tracksync/internal/logger"
)

const playlistTrackFields = "next,items(is_local,track(type,uri,name,duration_ms,artists(name),album(name),external_urls(spotify)))"

// SpotifySource lists a Spotify playlist or album through the Web API.
type SpotifySource struct {
	Link       string
	collection string // "playlist" or "album"
	id         string
	client     *httpclient.Client
	baseURL    string
	tokens     TokenSource
	logger     *logger.Logger
}

type spotifyArtist struct {
	Name string `json:"name"`
}

type spotifyTrack struct {
	Type         string          `json:"type"`
	URI          string          `json:"uri"`
	Name         string          `json:"name"`
	DurationMS   int             `json:"duration_ms"`
	Artists      []spotifyArtist `json:"artists"`
	Album        *struct {
		Name string `json:"name"`
	} `json:"album"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

type playlistPage struct {
	Next  *string `json:"next"`
	Items []struct {
		IsLocal bool          `json:"is_local"`
		Track   *spotifyTrack `json:"track"`
	} `json:"items"`
}

type albumTracksPage struct {
	Next  *string        `json:"next"`
	Items []spotifyTrack `json:"items"`
}

// NewSpotify parses link and returns a source for it.
func NewSpotify(link string, client *httpclient.Client, baseURL string, tokens TokenSource, log *logger.Logger) (*SpotifySource, error) {
	m := spotifyPattern.FindStringSubmatch(link)
	if m == nil {
		return nil, domain.NewSourceError(domain.ErrSourceParse, link, errors.New("not a Spotify playlist or album link")).
			WithHint("Use a link like https://open.spotify.com/playlist/<id>")
	}
	collection := strings.ToLower(m[1] + m[2])

	if baseURL == "" {
		baseURL = constants.DefaultSpotifyAPIURL
	}
	if log == nil {
		log = logger.Default()
	}

	return &SpotifySource{
		Link:       link,
		collection: collection,
		id:         m[3],
		client:     client,
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		logger:     log,
	}, nil
}

func (s *SpotifySource) Kind() Kind { return KindSpotify }

// ID returns the playlist or album id parsed from the link.
func (s *SpotifySource) ID() string { return s.id }

func (s *SpotifySource) Resolve(ctx context.Context) (*domain.Playlist, error) {
	token := ""
	if s.tokens != nil {
		token = strings.TrimSpace(s.tokens.Token())
	}
	if token == "" {
		return nil, domain.NewSourceError(domain.ErrSourceAuthRequired, s.Link, errors.New("no Spotify access token in session"))
	}

	var (
		pl  *domain.Playlist
		err error
	)
	if s.collection == "album" {
		pl, err = s.resolveAlbum(ctx, token)
	} else {
		pl, err = s.resolvePlaylist(ctx, token)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Resolved Spotify source", "collection", s.collection, "id", s.id, "tracks", len(pl.Tracks))
	return finish(pl, s.Link, "The playlist is empty or contains only local files")
}

func (s *SpotifySource) resolvePlaylist(ctx context.Context, token string) (*domain.Playlist, error) {
	var meta struct {
		Name string `json:"name"`
	}
	metaURL := s.buildURL("/playlists/"+s.id, url.Values{"fields": {"name"}})
	if err := s.client.GetJSON(ctx, metaURL, token, &meta); err != nil {
		return nil, s.mapError(err)
	}

	pl := &domain.Playlist{Name: meta.Name}
	next := s.buildURL("/playlists/"+s.id+"/tracks", url.Values{
		"limit":  {strconv.Itoa(constants.SpotifyPageLimit)},
		"offset": {"0"},
		"fields": {playlistTrackFields},
	})

	for page := 0; next != ""; page++ {
		var p playlistPage
		if err := s.client.GetJSON(ctx, next, token, &p); err != nil {
			return nil, s.mapError(err)
		}
		for _, item := range p.Items {
			if item.IsLocal || item.Track == nil || (item.Track.Type != "" && item.Track.Type != "track") {
				continue
			}
			pl.Tracks = append(pl.Tracks, s.toTrack(*item.Track, ""))
		}
		next = deref(p.Next)
		s.logger.Debug("Fetched playlist page", "page", page, "items", len(p.Items))
	}

	return pl, nil
}

func (s *SpotifySource) resolveAlbum(ctx context.Context, token string) (*domain.Playlist, error) {
	var album struct {
		Name   string          `json:"name"`
		Tracks albumTracksPage `json:"tracks"`
	}
	if err := s.client.GetJSON(ctx, s.buildURL("/albums/"+s.id, nil), token, &album); err != nil {
		return nil, s.mapError(err)
	}

	pl := &domain.Playlist{Name: album.Name}
	page := album.Tracks
	for {
		for _, t := range page.Items {
			pl.Tracks = append(pl.Tracks, s.toTrack(t, album.Name))
		}
		next := deref(page.Next)
		if next == "" {
			break
		}
		page = albumTracksPage{}
		if err := s.client.GetJSON(ctx, next, token, &page); err != nil {
			return nil, s.mapError(err)
		}
	}

	return pl, nil
}

func (s *SpotifySource) toTrack(t spotifyTrack, albumName string) domain.Track {
	var artists []string
	for _, a := range t.Artists {
		if a.Name != "" {
			artists = append(artists, a.Name)
		}
	}
	if t.Album != nil && t.Album.Name != "" {
		albumName = t.Album.Name
	}

	tr := domain.Track{
		URI:        t.URI,
		Title:      t.Name,
		Artists:    artists,
		Album:      albumName,
		DurationMS: t.DurationMS,
	}
	if len(artists) > 0 {
		tr.PrimaryArtist = artists[0]
	}
	return tr
}

// mapError converts transport and API failures into the source taxonomy.
// Nothing here is retried: re-authorizing is a user action.
func (s *SpotifySource) mapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var se *httpclient.StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusUnauthorized:
			return domain.NewSourceError(domain.ErrSourceAuthRequired, s.Link, err).
				WithHint("The Spotify token is missing or expired; sign in again and retry")
		case http.StatusForbidden, http.StatusNotFound:
			return domain.NewSourceError(domain.ErrSourceUnavailable, s.Link, err).
				WithHint(fmt.Sprintf("The %s is private or does not exist", s.collection))
		}
	}
	return domain.NewSourceError(domain.ErrSourceUnavailable, s.Link, err)
}

func (s *SpotifySource) buildURL(path string, params url.Values) string {
	u := s.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
