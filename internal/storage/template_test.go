package storage

import (
	"testing"
)

func TestBaseName(t *testing.T) {
	tests := []struct {
		name      string
		numbering bool
		number    int
		title     string
		artist    string
		want      string
	}{
		{
			name:      "numbered",
			numbering: true,
			number:    3,
			title:     "C Title",
			artist:    "Artist",
			want:      "003 - C Title - Artist",
		},
		{
			name:      "plain",
			numbering: false,
			number:    3,
			title:     "C Title",
			artist:    "Artist",
			want:      "C Title - Artist",
		},
		{
			name:      "sanitized parts",
			numbering: true,
			number:    12,
			title:     "What/Ever?",
			artist:    "AC/DC",
			want:      "012 - WhatEver - ACDC",
		},
		{
			name:      "large numbers keep all digits",
			numbering: true,
			number:    1234,
			title:     "T",
			artist:    "A",
			want:      "1234 - T - A",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BaseName(tt.numbering, tt.number, tt.title, tt.artist)
			if got != tt.want {
				t.Errorf("BaseName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilename(t *testing.T) {
	if got := Filename(true, 1, "Song", "Band", "mp3"); got != "001 - Song - Band.mp3" {
		t.Errorf("Filename() = %q", got)
	}
	if got := Filename(false, 1, "Song", "Band", ".flac"); got != "Song - Band.flac" {
		t.Errorf("Filename() = %q", got)
	}
}

func TestBuildNameTemplateData(t *testing.T) {
	data := BuildNameTemplateData(7, "Title:", "Artist*")
	if data.Number != "007" {
		t.Errorf("Number = %q, want 007", data.Number)
	}
	if data.Title != "Title" {
		t.Errorf("Title = %q, want Title", data.Title)
	}
	if data.Artist != "Artist" {
		t.Errorf("Artist = %q, want Artist", data.Artist)
	}
}

func TestFormatTrackNumber(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "001"},
		{10, "010"},
		{100, "100"},
	}

	for _, tt := range tests {
		if got := FormatTrackNumber(tt.n); got != tt.want {
			t.Errorf("FormatTrackNumber(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestParseExtension(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".mp3", ".mp3"},
		{"mp3", ".mp3"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ParseExtension(tt.ext); got != tt.want {
			t.Errorf("ParseExtension(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}
