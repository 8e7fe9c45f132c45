package audio

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PlaylistFormat represents supported playlist file formats.
//
// Each format has different features and compatibility:
//   - M3U: Simple text format, widely supported
//   - PLS: INI-style format, used by Winamp
//   - WPL: XML format, Windows Media Player
//   - ZPL: XML format, Zune/Groove Music
type PlaylistFormat int

const (
	// FormatM3U creates .m3u files (most compatible).
	FormatM3U PlaylistFormat = iota

	// FormatPLS creates .pls files (Winamp/SHOUTcast format).
	FormatPLS

	// FormatWPL creates .wpl files (Windows Media Player).
	FormatWPL

	// FormatZPL creates .zpl files (Zune/Groove Music).
	FormatZPL
)

// ParsePlaylistFormat maps "m3u", "pls", "wpl" or "zpl" to a format.
// Anything else is M3U.
func ParsePlaylistFormat(s string) PlaylistFormat {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pls":
		return FormatPLS
	case "wpl":
		return FormatWPL
	case "zpl":
		return FormatZPL
	default:
		return FormatM3U
	}
}

// Extension returns the file extension for the format, without the dot.
func (f PlaylistFormat) Extension() string {
	switch f {
	case FormatPLS:
		return "pls"
	case FormatWPL:
		return "wpl"
	case FormatZPL:
		return "zpl"
	default:
		return "m3u"
	}
}

// PlaylistEntry is one file in a playlist.
type PlaylistEntry struct {
	// Path is relative to the playlist file.
	Path string

	// Title is shown by players that read it.
	Title string

	// Duration in seconds, or 0 when unknown.
	Duration float64
}

// PlaylistCreator generates playlist files in various formats.
//
// Example:
//
//	creator := NewPlaylistCreator(FormatM3U, true)
//	content := creator.CreatePlaylist("Suno 2024-05-01", entries)
//
//	// Result:
//	// #EXTM3U
//	// #EXTINF:-1,Midnight Drive
//	// Midnight Drive - 0f3c.wav
type PlaylistCreator struct {
	format   PlaylistFormat
	extended bool // For M3U: include EXTINF lines
}

// NewPlaylistCreator creates a new PlaylistCreator.
//
// extended only affects M3U output.
func NewPlaylistCreator(format PlaylistFormat, extended bool) *PlaylistCreator {
	return &PlaylistCreator{
		format:   format,
		extended: extended,
	}
}

// Format returns the playlist format.
func (p *PlaylistCreator) Format() PlaylistFormat {
	return p.format
}

// CreatePlaylist generates playlist content for entries.
func (p *PlaylistCreator) CreatePlaylist(title string, entries []PlaylistEntry) string {
	switch p.format {
	case FormatPLS:
		return p.createPLS(entries)
	case FormatWPL:
		return p.createSMIL("wpl", "1.0", title, entries, false)
	case FormatZPL:
		return p.createSMIL("zpl", "2.0", title, entries, true)
	default:
		return p.createM3U(entries)
	}
}

// createM3U generates an M3U playlist.
//
// Extended M3U format (when extended=true):
//
//	#EXTM3U
//	#EXTINF:-1,Title
//	filename1.wav
func (p *PlaylistCreator) createM3U(entries []PlaylistEntry) string {
	var sb strings.Builder

	if p.extended {
		sb.WriteString("#EXTM3U\n")
	}

	for _, e := range entries {
		if p.extended {
			fmt.Fprintf(&sb, "#EXTINF:%d,%s\n", seconds(e.Duration), e.Title)
		}
		sb.WriteString(filepath.ToSlash(e.Path) + "\n")
	}

	return sb.String()
}

// createPLS generates a PLS playlist.
//
//	[playlist]
//	File1=filename1.wav
//	Title1=Song Title
//	Length1=-1
//	NumberOfEntries=1
//	Version=2
func (p *PlaylistCreator) createPLS(entries []PlaylistEntry) string {
	var sb strings.Builder

	sb.WriteString("[playlist]\n")

	for i, e := range entries {
		idx := i + 1
		fmt.Fprintf(&sb, "File%d=%s\n", idx, filepath.ToSlash(e.Path))
		fmt.Fprintf(&sb, "Title%d=%s\n", idx, e.Title)
		fmt.Fprintf(&sb, "Length%d=%d\n", idx, seconds(e.Duration))
	}

	fmt.Fprintf(&sb, "NumberOfEntries=%d\n", len(entries))
	sb.WriteString("Version=2\n")

	return sb.String()
}

// createSMIL generates the XML formats used by Windows Media Player and Zune.
func (p *PlaylistCreator) createSMIL(kind, version, title string, entries []PlaylistEntry, meta bool) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "<?%s version=\"%s\"?>\n", kind, version)
	sb.WriteString("<smil>\n")
	sb.WriteString("  <head>\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", escapeXML(title))
	if meta {
		sb.WriteString("    <meta name=\"Generator\" content=\"suno-downloader\"/>\n")
		fmt.Fprintf(&sb, "    <meta name=\"ItemCount\" content=\"%d\"/>\n", len(entries))
	}
	sb.WriteString("  </head>\n")
	sb.WriteString("  <body>\n")
	sb.WriteString("    <seq>\n")

	for _, e := range entries {
		if meta {
			fmt.Fprintf(&sb, "      <media src=\"%s\" trackTitle=\"%s\"/>\n",
				escapeXML(filepath.ToSlash(e.Path)), escapeXML(e.Title))
			continue
		}
		fmt.Fprintf(&sb, "      <media src=\"%s\"/>\n", escapeXML(filepath.ToSlash(e.Path)))
	}

	sb.WriteString("    </seq>\n")
	sb.WriteString("  </body>\n")
	sb.WriteString("</smil>\n")

	return sb.String()
}

func seconds(d float64) int {
	if d <= 0 {
		return -1
	}
	return int(d)
}

// escapeXML escapes special XML characters in a string.
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
