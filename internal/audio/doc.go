// Package audio post-processes downloaded songs: ID3 tagging for MP3 files,
// the lyrics/style text sidecar and the session playlist.
//
// # ID3 Tagging
//
//	tagger := audio.NewTagger(audio.DefaultTagConfig())
//	err := tagger.SaveTags(path, audio.TrackInfo{Title: "Midnight Drive"}, coverJPEG)
//
// WAV files carry no ID3 tags; the tagger is only used for MP3 output.
//
// # Playlist Generation
//
//	creator := audio.NewPlaylistCreator(audio.FormatM3U, true)
//	content := creator.CreatePlaylist("Suno 2024-05-01", entries)
//
// Supported formats:
//   - M3U (with optional extended info)
//   - PLS
//   - WPL (Windows Media Player)
//   - ZPL (Zune Media Player)
package audio
