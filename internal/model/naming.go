package model

import (
	"path/filepath"
	"strings"

	ioutils "github.com/handiism/suno-downloader/internal/io"
)

// Format is the audio format requested for each item.
type Format int

const (
	// FormatWAV is rendered server-side on request and must be polled for.
	FormatWAV Format = iota

	// FormatMP3 is available as soon as the clip exists.
	FormatMP3
)

// ParseFormat converts "wav" or "mp3" into a Format. Anything else is WAV.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "mp3") {
		return FormatMP3
	}
	return FormatWAV
}

// Extension returns the file extension for the format, without the dot.
func (f Format) Extension() string {
	if f == FormatMP3 {
		return "mp3"
	}
	return "wav"
}

// NeedsConversion reports whether the asset must be rendered before it can
// be fetched.
func (f Format) NeedsConversion() bool {
	return f == FormatWAV
}

// String implements fmt.Stringer.
func (f Format) String() string {
	return f.Extension()
}

// subfolderPrefix is prepended to the workspace name for the optional subfolder.
const subfolderPrefix = "SUNO_"

// NamingConfig controls how output file names are built.
//
// Example configuration:
//
//	cfg := &NamingConfig{
//	    IncludeID:       true,
//	    CreateSubfolder: true,
//	    WorkspaceName:   "Demos",
//	}
//	// "A/B:C*D" with id "xyz123" → "SUNO_Demos/A_B_C_D - xyz123.wav"
type NamingConfig struct {
	// IncludeID appends " - <id>" to every name. Without it, items with the
	// same title rely on collision handling in the storage layer.
	IncludeID bool

	// CreateSubfolder places files under "SUNO_<WorkspaceName>/" when a
	// workspace name is set.
	CreateSubfolder bool

	// WorkspaceName is the name of the workspace the items came from.
	WorkspaceName string
}

// FileName returns the relative output path for item with the given
// extension (without the dot), e.g. "Song - 0f3c.wav".
//
// The title is sanitized; path separators only ever come from the
// subfolder option.
func (c *NamingConfig) FileName(item Item, ext string) string {
	base := ioutils.SanitizeFileName(item.DisplayTitle())
	if base == "" {
		base = "Untitled"
	}
	if c == nil || c.IncludeID {
		base += " - " + ioutils.SanitizeFileName(item.ID)
	}
	name := base + "." + ext

	if c != nil && c.CreateSubfolder {
		if ws := ioutils.SanitizeFileName(c.WorkspaceName); ws != "" {
			name = filepath.Join(subfolderPrefix+ws, name)
		}
	}
	return name
}
