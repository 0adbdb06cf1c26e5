// Package normalize holds the matching semantics shared by the reconciler,
// the manifest store and the source adapters. Nothing else should re-derive
// these rules.
package normalize

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Placeholder is the key produced for empty or unknown input. It contains a
// character that Key strips from real input, so it never equals a real title.
const Placeholder = "#unknown"

var numericPrefix = regexp.MustCompile(`^\s*\d+\s*[-._)\]]+\s*`)

var instrumentalMarkers = []string{"instrumental", "karaoke", "8d audio"}

// Key returns the normalized identity of a title/artist pair. It lowercases,
// strips diacritics and punctuation, and collapses whitespace. An empty artist
// is left out of the key.
func Key(title, artist string) string {
	t := clean(title)
	a := clean(artist)

	switch {
	case t == "" && a == "":
		return Placeholder
	case t == "":
		t = Placeholder
	}

	if a == "" {
		return t
	}
	return t + " " + a
}

// StripNumericPrefix removes a leading "001 - " style prefix from a
// filename-derived string.
func StripNumericPrefix(s string) string {
	return numericPrefix.ReplaceAllString(s, "")
}

// FilenameStem returns the base name without extension and numeric prefix.
func FilenameStem(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return StripNumericPrefix(base)
}

// FilenameKey is the normalized key of an on-disk filename.
func FilenameKey(filename string) string {
	return Key(FilenameStem(filename), "")
}

// LooksInstrumental reports whether a title names an instrumental, karaoke or
// "8D audio" rendition.
func LooksInstrumental(title string) bool {
	t := strings.ToLower(title)
	for _, m := range instrumentalMarkers {
		if strings.Contains(t, m) {
			return true
		}
	}
	return false
}

func clean(s string) string {
	s = stripDiacritics(strings.ToLower(s))

	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}

	return strings.TrimSpace(b.String())
}

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
