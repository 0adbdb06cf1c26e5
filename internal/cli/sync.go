package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/cesargomez89/tracksync/internal/app"
	"github.com/cesargomez89/tracksync/internal/constants"
	"github.com/cesargomez89/tracksync/internal/domain"
	"github.com/cesargomez89/tracksync/internal/downloader"
	"github.com/cesargomez89/tracksync/internal/tui"
)

var (
	syncPlain      bool
	syncThreads    int
	syncFormat     string
	syncDeepSearch bool
	syncOutput     string
)

var syncCmd = &cobra.Command{
	Use:   "sync <source>",
	Short: "Fetch the tracks of a playlist that are missing locally",
	Long: `Resolve a playlist and fetch every track not already in its folder.

The source is a CSV export, a Spotify playlist or album link, or a
SoundCloud set link. Tracks land in <output_root>/<playlist name>/.

Examples:
  tracksync sync ~/Downloads/road_trip.csv
  tracksync sync https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M --token $TOKEN
  tracksync sync https://soundcloud.com/artist/sets/mix --threads 4 --format flac`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncPlain, "plain", false, "print line-oriented progress instead of the live view")
	syncCmd.Flags().IntVarP(&syncThreads, "threads", "t", 0, "concurrent downloads (1-8)")
	syncCmd.Flags().StringVarP(&syncFormat, "format", "f", "", "audio format: mp3, m4a, flac, opus")
	syncCmd.Flags().BoolVar(&syncDeepSearch, "deep-search", false, "try alternative search queries before giving up")
	syncCmd.Flags().StringVarP(&syncOutput, "output", "o", "", "output root directory")
	rootCmd.AddCommand(syncCmd)
}

// applySyncFlags overrides config values with explicitly set flags.
func applySyncFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("threads") {
		cfg.Threads = syncThreads
	}
	if flags.Changed("format") {
		cfg.Format = syncFormat
	}
	if flags.Changed("deep-search") {
		cfg.DeepSearch = syncDeepSearch
	}
	if flags.Changed("output") {
		cfg.OutputRoot = syncOutput
	}
	return cfg.Validate()
}

func runSync(cmd *cobra.Command, args []string) error {
	if err := applySyncFlags(cmd); err != nil {
		return err
	}

	interactive := !syncPlain && !jsonOut && isatty.IsTerminal(os.Stdout.Fd())
	log, closeLog, err := newLogger(interactive)
	if err != nil {
		return err
	}
	defer closeLog()

	svc := newServices(log)
	defer svc.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	if !jsonOut {
		fmt.Fprintf(out, "Resolving %s...\n", args[0])
	}
	run, err := svc.syncer.Prepare(ctx, args[0])
	if err != nil {
		return err
	}
	res := run.Resolved
	if !jsonOut {
		fmt.Fprintf(out, "%s: %d tracks -> %s\n", res.Playlist.Name, len(res.Tracks), res.Folder)
		if n := len(res.Excluded); n > 0 {
			fmt.Fprintf(out, "Excluded %d instrumental tracks\n", n)
		}
	}

	var sum *domain.RunSummary
	if interactive {
		sum, err = tui.Run(ctx, run, res.Playlist.Name, res.Folder, len(res.Tracks))
		if err != nil {
			return fmt.Errorf("terminal view failed: %w", err)
		}
	} else {
		sum = executePlain(ctx, run, len(res.Tracks), out)
	}

	if jsonOut {
		if err := printJSON(out, sum); err != nil {
			return err
		}
	} else {
		printSummary(out, sum)
	}

	if sum.Status != domain.RunStatusCompleted || sum.Failed > 0 {
		return errReported
	}
	return nil
}

// executePlain runs without the terminal view, printing one line per job
// transition unless JSON output was requested.
func executePlain(ctx context.Context, run *app.Run, total int, out io.Writer) *domain.RunSummary {
	events := make(chan downloader.Event, constants.EventBufferSize)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		if jsonOut {
			out = io.Discard
		}
		printEvents(out, total, events)
	}()

	sum := run.Execute(ctx, events)
	close(events)
	<-printed
	return sum
}
