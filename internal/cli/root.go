// Package cli implements the tracksync command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cesargomez89/tracksync/internal/config"
	"github.com/cesargomez89/tracksync/internal/constants"
	"github.com/cesargomez89/tracksync/internal/domain"
	"github.com/cesargomez89/tracksync/internal/logger"
)

const tokenEnv = "TRACKSYNC_SPOTIFY_TOKEN"

var (
	cfgFile string
	token   string
	jsonOut bool
	verbose bool

	cfg *config.Config
)

// errReported marks failures whose details were already printed.
var errReported = errors.New("run did not complete")

var rootCmd = &cobra.Command{
	Use:   constants.AppName,
	Short: "Keep a local music folder in sync with a playlist",
	Long: `tracksync mirrors a playlist (CSV export, Spotify playlist or album,
SoundCloud set) into a local folder. Tracks already present are skipped;
the rest are fetched in parallel and recorded in a manifest inside the folder.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.config/tracksync/config.toml)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Spotify access token (env "+tokenEnv+")")
	rootCmd.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initConfig() error {
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, domain.FormatError(err))
		}
		os.Exit(1)
	}
}

// sessionToken returns the --token flag, falling back to the environment.
func sessionToken() string {
	if token != "" {
		return token
	}
	return os.Getenv(tokenEnv)
}

// newLogger builds the process logger. When toFile is set, records go to the
// configured log file (or one in the data directory) so they do not draw over
// the terminal view.
func newLogger(toFile bool) (*logger.Logger, func(), error) {
	var out io.Writer = os.Stderr
	closeFn := func() {}

	if toFile {
		path := cfg.LogFile
		if path == "" {
			path = filepath.Join(config.DataDir(), constants.AppName+".log")
		}
		if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, constants.FilePermissions)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
		closeFn = func() { _ = f.Close() }
	}

	return logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: out,
	}), closeFn, nil
}
