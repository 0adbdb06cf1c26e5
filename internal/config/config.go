package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/cesargomez89/tracksync/internal/constants"
)

// Duration is a time.Duration that decodes from TOML strings like "10m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config holds all application configuration
type Config struct {
	OutputRoot          string   `toml:"output_root"`
	Threads             int      `toml:"threads"`
	Numbering           bool     `toml:"numbering"`
	Format              string   `toml:"format"`
	GenerateM3U         bool     `toml:"generate_m3u"`
	ExcludeInstrumental bool     `toml:"exclude_instrumental"`
	DeepSearch          bool     `toml:"deep_search"`
	DeepSearchVariants  int      `toml:"deep_search_variants"`
	CookiesPath         string   `toml:"cookies_path"`
	JobTimeout          Duration `toml:"job_timeout"`
	DurationMin         int      `toml:"duration_min"`
	DurationMax         int      `toml:"duration_max"`
	TagFiles            bool     `toml:"tag_files"`
	YtdlpPath           string   `toml:"ytdlp_path"`
	HistoryDB           string   `toml:"history_db"`
	SpotifyAPIURL       string   `toml:"spotify_api_url"`
	Port                string   `toml:"port"`
	LogLevel            string   `toml:"log_level"`
	LogFormat           string   `toml:"log_format"`
	LogFile             string   `toml:"log_file"`
}

// Default returns a configuration populated with application defaults.
func Default() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		OutputRoot:         filepath.Join(home, "Music", constants.AppName),
		Threads:            constants.DefaultThreads,
		Numbering:          true,
		Format:             constants.DefaultFormat,
		GenerateM3U:        true,
		DeepSearchVariants: constants.DefaultSearchVariants,
		JobTimeout:         Duration{constants.DefaultJobTimeout},
		DurationMin:        constants.DefaultDurationMin,
		DurationMax:        constants.DefaultDurationMax,
		TagFiles:           true,
		HistoryDB:          filepath.Join(DataDir(), constants.DefaultDBFile),
		SpotifyAPIURL:      constants.DefaultSpotifyAPIURL,
		Port:               constants.DefaultPort,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// Load reads configuration from the standard locations, then applies
// environment overrides. A missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(findConfigFile())
}

// LoadFrom reads configuration from a specific file path. An empty path
// yields defaults plus environment overrides.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.OutputRoot = expandHome(cfg.OutputRoot)
	cfg.CookiesPath = expandHome(cfg.CookiesPath)
	cfg.HistoryDB = expandHome(cfg.HistoryDB)

	return cfg, nil
}

// DataDir returns the directory used for the history database and log files.
func DataDir() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return filepath.Join(v, constants.AppName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", constants.AppName)
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var errors []string

	if c.OutputRoot == "" {
		errors = append(errors, "output_root cannot be empty")
	}

	if c.Threads < 1 || c.Threads > constants.MaxThreads {
		errors = append(errors, fmt.Sprintf("threads must be between 1 and %d, got: %d", constants.MaxThreads, c.Threads))
	}

	validFormats := map[string]bool{
		constants.FormatMP3:  true,
		constants.FormatM4A:  true,
		constants.FormatFLAC: true,
		constants.FormatOpus: true,
	}
	if !validFormats[c.Format] {
		errors = append(errors, fmt.Sprintf("format must be one of: mp3, m4a, flac, opus, got: %s", c.Format))
	}

	if c.DeepSearchVariants < 1 || c.DeepSearchVariants > constants.MaxSearchVariants {
		errors = append(errors, fmt.Sprintf("deep_search_variants must be between 1 and %d, got: %d", constants.MaxSearchVariants, c.DeepSearchVariants))
	}

	if c.JobTimeout.Duration <= 0 {
		errors = append(errors, fmt.Sprintf("job_timeout must be positive, got: %s", c.JobTimeout))
	}

	if c.DurationMin < 0 || c.DurationMax < 0 {
		errors = append(errors, "duration_min and duration_max cannot be negative")
	} else if c.DurationMax > 0 && c.DurationMin > c.DurationMax {
		errors = append(errors, fmt.Sprintf("duration_min (%d) cannot exceed duration_max (%d)", c.DurationMin, c.DurationMax))
	}

	if c.CookiesPath != "" {
		if _, err := os.Stat(c.CookiesPath); err != nil {
			errors = append(errors, fmt.Sprintf("cookies_path is not readable: %s", c.CookiesPath))
		}
	}

	if c.SpotifyAPIURL == "" {
		errors = append(errors, "spotify_api_url cannot be empty")
	} else if u, err := url.Parse(c.SpotifyAPIURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Sprintf("spotify_api_url is not a valid URL: %s", c.SpotifyAPIURL))
	}

	if c.Port != "" {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("port must be a valid number, got: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("port must be between 1 and 65535, got: %d", port))
		}
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		errors = append(errors, fmt.Sprintf("log_level must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.LogFormat] {
		errors = append(errors, fmt.Sprintf("log_format must be one of: text, json, got: %s", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// findConfigFile returns the first existing config file path.
func findConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}

	paths := []string{
		filepath.Join(xdgConfig, constants.AppName, "config.toml"),
		filepath.Join(home, "."+constants.AppName+".toml"),
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// applyEnvOverrides applies TRACKSYNC_* environment variables on top of the file values.
func applyEnvOverrides(cfg *Config) {
	cfg.OutputRoot = getEnv("TRACKSYNC_OUTPUT_ROOT", cfg.OutputRoot)
	cfg.Threads = getEnvInt("TRACKSYNC_THREADS", cfg.Threads)
	cfg.Numbering = getEnvBool("TRACKSYNC_NUMBERING", cfg.Numbering)
	cfg.Format = getEnv("TRACKSYNC_FORMAT", cfg.Format)
	cfg.GenerateM3U = getEnvBool("TRACKSYNC_GENERATE_M3U", cfg.GenerateM3U)
	cfg.ExcludeInstrumental = getEnvBool("TRACKSYNC_EXCLUDE_INSTRUMENTAL", cfg.ExcludeInstrumental)
	cfg.DeepSearch = getEnvBool("TRACKSYNC_DEEP_SEARCH", cfg.DeepSearch)
	cfg.CookiesPath = getEnv("TRACKSYNC_COOKIES_PATH", cfg.CookiesPath)
	cfg.HistoryDB = getEnv("TRACKSYNC_HISTORY_DB", cfg.HistoryDB)
	cfg.SpotifyAPIURL = getEnv("TRACKSYNC_SPOTIFY_API_URL", cfg.SpotifyAPIURL)
	cfg.YtdlpPath = getEnv("TRACKSYNC_YTDLP_PATH", cfg.YtdlpPath)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	if v, ok := os.LookupEnv("TRACKSYNC_JOB_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.JobTimeout = Duration{d}
		}
	}
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
