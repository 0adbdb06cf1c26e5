// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	AppName               = "tracksync"
	DefaultPort           = "8080"
	DefaultDBFile         = "history.db"
	DefaultFormat         = FormatMP3
	DefaultThreads        = 3
	MaxThreads            = 8
	DefaultJobTimeout     = 10 * time.Minute
	DefaultSearchVariants = 3
	MaxSearchVariants     = 4
	DefaultDurationMin    = 30
	DefaultDurationMax    = 600
	DefaultHTTPTimeout    = 30 * time.Second
	DefaultRetryCount     = 3
	DefaultRetryBase      = 1 * time.Second
	DefaultSpotifyAPIURL  = "https://api.spotify.com/v1"
	SpotifyMinInterval    = 100 * time.Millisecond
	SpotifyPageLimit      = 100
	TargetSampleRate      = 44100
	UnknownValue          = "Unknown"
)

// Audio formats
const (
	FormatMP3  = "mp3"
	FormatM4A  = "m4a"
	FormatFLAC = "flac"
	FormatOpus = "opus"
)

// File Extensions
const (
	ExtFLAC = ".flac"
	ExtMP3  = ".mp3"
	ExtM4A  = ".m4a"
	ExtOpus = ".opus"
	ExtOGG  = ".ogg"
	ExtWAV  = ".wav"
	ExtM3U  = ".m3u"
	ExtJPG  = ".jpg"
	ExtWebP = ".webp"
	ExtPNG  = ".png"
	ExtPart = ".part"
)

// AudioExtensions lists the extensions considered audio files when scanning a folder.
var AudioExtensions = []string{ExtMP3, ExtM4A, ExtFLAC, ExtOpus, ExtOGG, ExtWAV}

// File Names
const (
	ManifestFile     = ".tracksync.json"
	NotFoundSuffix   = "_not_found.csv"
	TempFilePattern  = ".tracksync-*.tmp"
	ManifestVersion  = 1
	NumberedTemplate = "{{.Number}} - {{.Title}} - {{.Artist}}"
	PlainTemplate    = "{{.Title}} - {{.Artist}}"
)

// File Permissions
const (
	DirPermissions  = 0755
	FilePermissions = 0644
)

// Progress
const (
	ProgressUpdateFreq = 500 * time.Millisecond
	EventBufferSize    = 256
)

// Characters to sanitize from filesystem paths
const InvalidPathChars = "<>:\"/\\|?*"
