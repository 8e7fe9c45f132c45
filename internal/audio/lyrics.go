package audio

import "strings"

// LyricsSheet renders the text sidecar saved next to a song: its style tags
// and lyrics, each under a heading. Sections that are empty or disabled are
// left out; the result is "" when nothing remains.
func LyricsSheet(style, lyrics string, includeStyle, includeLyrics bool) string {
	var sb strings.Builder

	if includeStyle && strings.TrimSpace(style) != "" {
		sb.WriteString("Style:\n")
		sb.WriteString(strings.TrimSpace(style))
		sb.WriteString("\n\n")
	}
	if includeLyrics && strings.TrimSpace(lyrics) != "" {
		sb.WriteString("Lyrics:\n")
		sb.WriteString(strings.TrimSpace(lyrics))
		sb.WriteString("\n")
	}

	return sb.String()
}
