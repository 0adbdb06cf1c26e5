package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error kinds surfaced by the sync core.
var (
	ErrSourceUnavailable  = errors.New("source unavailable")
	ErrSourceAuthRequired = errors.New("source authentication required")
	ErrSourceParse        = errors.New("source could not be parsed")
	ErrFetchFailed        = errors.New("fetch failed")
	ErrManifestCorrupt    = errors.New("manifest corrupt")
	ErrCancelledByUser    = errors.New("cancelled by user")
	ErrRunActive          = errors.New("a run is already active for this folder")
	ErrRunNotFound        = errors.New("run not found")
)

// SourceError is a track-list resolution failure with an optional user hint.
type SourceError struct {
	Kind   error
	Source string
	Hint   string
	Err    error
}

func (e *SourceError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Source != "" {
		fmt.Fprintf(&b, " (%s)", e.Source)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Is matches the error kind so callers can use errors.Is(err, ErrSourceParse).
func (e *SourceError) Is(target error) bool {
	return target == e.Kind
}

// NewSourceError builds a SourceError of the given kind.
func NewSourceError(kind error, source string, err error) *SourceError {
	return &SourceError{Kind: kind, Source: source, Err: err}
}

// WithHint attaches a user-facing hint.
func (e *SourceError) WithHint(hint string) *SourceError {
	e.Hint = hint
	return e
}

// FetchError is a per-track failure after all query variants were tried.
type FetchError struct {
	Track    string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed for %s after %d attempt(s): %v", e.Track, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}

// Suggestion returns a hint for the user, or "" when none applies.
func Suggestion(err error) string {
	if err == nil {
		return ""
	}

	var srcErr *SourceError
	if errors.As(err, &srcErr) && srcErr.Hint != "" {
		return srcErr.Hint
	}

	switch {
	case errors.Is(err, ErrSourceAuthRequired):
		return "Provide a fresh Spotify access token with --token or TRACKSYNC_SPOTIFY_TOKEN"
	case errors.Is(err, ErrSourceUnavailable):
		return "Check your internet connection and try again"
	case errors.Is(err, ErrSourceParse):
		return "Check that the file or link points to a playlist"
	case errors.Is(err, ErrRunActive):
		return "Wait for the current run on this folder to finish or cancel it"
	case errors.Is(err, ErrCancelledByUser), errors.Is(err, context.Canceled):
		return ""
	}
	return ""
}

// FormatError returns a formatted error message with suggestion if available.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	if s := Suggestion(err); s != "" {
		return fmt.Sprintf("Error: %s\n\nSuggestion: %s", err.Error(), s)
	}
	return fmt.Sprintf("Error: %s", err.Error())
}
