package fetcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/cesargomez89/tracksync/internal/constants"
	"github.com/cesargomez89/tracksync/internal/logger"
	"github.com/cesargomez89/tracksync/internal/storage"
)

// YTDLP fetches through the yt-dlp executable. It also serves as the
// metadata dumper for SoundCloud links.
type YTDLP struct {
	executable string
	logger     *logger.Logger
}

// NewYTDLP returns a fetcher using executable, or yt-dlp from PATH when empty.
func NewYTDLP(executable string, log *logger.Logger) *YTDLP {
	if log == nil {
		log = logger.Default()
	}
	return &YTDLP{executable: executable, logger: log.WithComponent("ytdlp")}
}

func (y *YTDLP) command() *ytdlp.Command {
	cmd := ytdlp.New()
	if y.executable != "" {
		cmd.SetExecutable(y.executable)
	}
	return cmd
}

func (y *YTDLP) Fetch(ctx context.Context, req Request, onProgress func(Progress)) (string, error) {
	format := req.Format
	if format == "" {
		format = constants.DefaultFormat
	}
	rate := req.SampleRate
	if rate <= 0 {
		rate = constants.TargetSampleRate
	}

	cmd := y.command().
		NoPlaylist().
		ForceOverwrites().
		NoWarnings().
		Format("bestaudio/best").
		ExtractAudio().
		AudioFormat(format).
		AudioQuality("0").
		PostProcessorArgs("ffmpeg:-ar " + strconv.Itoa(rate)).
		EmbedMetadata().
		Output(filepath.Join(req.OutputDir, req.BaseName+".%(ext)s"))

	if req.URL == "" && req.DurationMax > 0 {
		cmd.MatchFilters(fmt.Sprintf("duration >= %d & duration <= %d", req.DurationMin, req.DurationMax))
	}
	if req.CookiesPath != "" {
		cmd.Cookies(req.CookiesPath)
	}
	if req.Thumbnail {
		cmd.WriteThumbnail().ConvertThumbnails("jpg")
	}
	if onProgress != nil {
		cmd.ProgressFunc(constants.ProgressUpdateFreq, func(update ytdlp.ProgressUpdate) {
			onProgress(toProgress(update))
		})
	}

	target := req.Target()
	y.logger.Debug("Running yt-dlp", "target", target, "base", req.BaseName, "format", format)

	if _, err := cmd.Run(ctx, target); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("yt-dlp failed: %w", err)
	}

	path, err := locateOutput(req.OutputDir, req.BaseName, format)
	if err != nil {
		return "", err
	}
	return path, nil
}

// DumpJSON returns the single-JSON metadata for url.
func (y *YTDLP) DumpJSON(ctx context.Context, url string, playlist bool) ([]byte, error) {
	cmd := y.command().DumpSingleJSON().NoWarnings()
	if !playlist {
		cmd.NoPlaylist()
	}

	res, err := cmd.Run(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if res != nil && strings.TrimSpace(res.Stderr) != "" {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(res.Stderr))
		}
		return nil, err
	}
	if strings.TrimSpace(res.Stdout) == "" {
		return nil, errors.New("yt-dlp returned no metadata")
	}
	return []byte(res.Stdout), nil
}

// locateOutput finds the encoded file. A search that matched nothing exits
// cleanly without producing one.
func locateOutput(dir, baseName, format string) (string, error) {
	expected := filepath.Join(dir, baseName+"."+format)
	if storage.FileNonEmpty(expected) {
		return expected, nil
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !storage.IsArtifactOf(name, baseName) || !storage.IsAudioFile(name) {
			continue
		}
		if p := filepath.Join(dir, name); storage.FileNonEmpty(p) {
			return p, nil
		}
	}

	if _, err := os.Stat(expected); err == nil {
		return "", fmt.Errorf("output file is empty: %s", filepath.Base(expected))
	}
	return "", errors.New("no output produced (no search result passed the filters)")
}

func toProgress(u ytdlp.ProgressUpdate) Progress {
	p := Progress{
		Downloaded: int64(u.DownloadedBytes),
		Total:      int64(u.TotalBytes),
		ETA:        u.ETA(),
	}
	if u.TotalBytes > 0 {
		p.Percent = float64(u.DownloadedBytes) / float64(u.TotalBytes) * 100
	}
	if !u.Started.IsZero() {
		if elapsed := time.Since(u.Started).Seconds(); elapsed > 0 {
			p.Speed = float64(u.DownloadedBytes) / elapsed
		}
	}
	return p
}
