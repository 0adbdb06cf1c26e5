package storage

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/cesargomez89/tracksync/internal/constants"
)

// NameTemplateData holds the data for filename template execution
type NameTemplateData struct {
	Number string
	Title  string
	Artist string
}

var (
	numberedTmpl = template.Must(template.New("numbered").Parse(constants.NumberedTemplate))
	plainTmpl    = template.Must(template.New("plain").Parse(constants.PlainTemplate))
)

// BaseName returns the file base name for a track: "001 - Title - Artist"
// with numbering, "Title - Artist" without.
func BaseName(numbering bool, number int, title, artist string) string {
	data := BuildNameTemplateData(number, title, artist)

	tmpl := plainTmpl
	if numbering {
		tmpl = numberedTmpl
	}

	name, err := execute(tmpl, data)
	if err != nil {
		// Both templates are static, so this only guards against a broken constant.
		return data.Title + " - " + data.Artist
	}
	return name
}

// Filename returns BaseName plus the extension for format.
func Filename(numbering bool, number int, title, artist, format string) string {
	return BaseName(numbering, number, title, artist) + ParseExtension(format)
}

// BuildNameTemplateData creates NameTemplateData from track metadata
func BuildNameTemplateData(number int, title, artist string) *NameTemplateData {
	return &NameTemplateData{
		Number: FormatTrackNumber(number),
		Title:  Sanitize(title),
		Artist: Sanitize(artist),
	}
}

func execute(tmpl *template.Template, data *NameTemplateData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return Sanitize(buf.String()), nil
}

// ParseExtension parses an extension string, ensuring it starts with a dot
func ParseExtension(ext string) string {
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		return "." + ext
	}
	return ext
}

// FormatTrackNumber formats a playlist position with three-digit zero-padding
func FormatTrackNumber(n int) string {
	return fmt.Sprintf("%03d", n)
}
