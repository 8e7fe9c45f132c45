package audio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bogem/id3v2"
)

func TestLyricsSheet(t *testing.T) {
	tests := []struct {
		name          string
		style, lyrics string
		incStyle      bool
		incLyrics     bool
		want          string
	}{
		{"both", "synthwave", "la la\n", true, true, "Style:\nsynthwave\n\nLyrics:\nla la\n"},
		{"lyrics only", "synthwave", "la la", false, true, "Lyrics:\nla la\n"},
		{"style only", "synthwave", "la la", true, false, "Style:\nsynthwave\n\n"},
		{"empty values", "  ", "", true, true, ""},
		{"disabled", "synthwave", "la la", false, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LyricsSheet(tt.style, tt.lyrics, tt.incStyle, tt.incLyrics)
			if got != tt.want {
				t.Errorf("LyricsSheet() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTagger_SaveTags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.mp3")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0xFF, 0xFB, 0x90, 0x00}, 64), 0644); err != nil {
		t.Fatal(err)
	}

	info := TrackInfo{
		Title:     "Midnight Drive",
		Artist:    "Suno",
		Style:     "synthwave",
		Lyrics:    "neon lights",
		CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := NewTagger(nil).SaveTags(path, info, []byte{0xFF, 0xD8, 0xFF}); err != nil {
		t.Fatalf("SaveTags() error = %v", err)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatal(err)
	}
	defer tag.Close()

	if tag.Title() != "Midnight Drive" {
		t.Errorf("Title = %q", tag.Title())
	}
	if tag.Genre() != "synthwave" {
		t.Errorf("Genre = %q", tag.Genre())
	}
	if tag.Year() != "2024" {
		t.Errorf("Year = %q", tag.Year())
	}
	if len(tag.GetFrames(tag.CommonID("Attached picture"))) != 1 {
		t.Error("expected one embedded cover")
	}
	if len(tag.GetFrames(tag.CommonID("Unsynchronised lyrics/text transcription"))) != 1 {
		t.Error("expected one lyrics frame")
	}
}

func TestTagger_MissingFile(t *testing.T) {
	err := NewTagger(nil).SaveTags(filepath.Join(t.TempDir(), "missing.mp3"), TrackInfo{}, nil)
	if err == nil {
		t.Error("expected error for a missing file")
	}
}
