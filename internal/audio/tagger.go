package audio

import (
	"time"

	"github.com/bogem/id3v2"
)

// TagEditAction defines how to handle individual ID3 tags.
//
// Each tag field can be configured independently to determine whether
// it should be modified, cleared, or left unchanged.
type TagEditAction int

const (
	// TagEmpty clears the tag value.
	TagEmpty TagEditAction = iota

	// TagModify updates the tag with the value from the catalog.
	TagModify

	// TagDoNotModify leaves the existing tag value unchanged.
	TagDoNotModify
)

// TagConfig holds tagging configuration for each ID3 field.
//
// Example:
//
//	cfg := &TagConfig{
//	    ModifyTags: true,
//	    TrackTitle: TagModify,      // song title
//	    Genre:      TagModify,      // style tags
//	    Lyrics:     TagModify,      // generation prompt
//	    Comments:   TagEmpty,       // clear encoder comments
//	    Album:      TagDoNotModify, // keep whatever is there
//	}
type TagConfig struct {
	// ModifyTags is a master switch. If false, no string tags are modified.
	ModifyTags bool

	// Artist controls the TPE1 (Lead artist) frame.
	Artist TagEditAction

	// Album controls the TALB (Album title) frame.
	Album TagEditAction

	// Year controls the TYER (Year) frame.
	Year TagEditAction

	// TrackTitle controls the TIT2 (Title) frame.
	TrackTitle TagEditAction

	// Genre controls the TCON (Content type) frame.
	Genre TagEditAction

	// Lyrics controls the USLT (Unsynchronized lyrics) frame.
	Lyrics TagEditAction

	// Comments controls the COMM (Comments) frame.
	Comments TagEditAction
}

// DefaultTagConfig updates every field from the catalog and clears comments.
func DefaultTagConfig() *TagConfig {
	return &TagConfig{
		ModifyTags: true,
		Artist:     TagModify,
		Album:      TagModify,
		Year:       TagModify,
		TrackTitle: TagModify,
		Genre:      TagModify,
		Lyrics:     TagModify,
		Comments:   TagEmpty,
	}
}

// TrackInfo is the metadata written into a file.
type TrackInfo struct {
	Title     string
	Artist    string
	Album     string
	Style     string
	Lyrics    string
	CreatedAt time.Time
}

// Tagger writes ID3 tags to MP3 files.
//
// Example:
//
//	tagger := NewTagger(DefaultTagConfig())
//	err := tagger.SaveTags(path, info, coverJPEG)
type Tagger struct {
	config *TagConfig
}

// NewTagger creates a new Tagger with the given configuration.
//
// If config is nil, DefaultTagConfig() is used.
func NewTagger(config *TagConfig) *Tagger {
	if config == nil {
		config = DefaultTagConfig()
	}
	return &Tagger{config: config}
}

// SaveTags writes ID3 tags to the MP3 file at path.
//
// String frames follow the TagConfig; artwork, when non-nil, replaces any
// embedded front cover. Returns an error if the file cannot be opened or
// saved.
func (t *Tagger) SaveTags(path string, info TrackInfo, artwork []byte) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return err
	}
	defer tag.Close()

	if t.config.ModifyTags {
		t.updateStringTags(tag, info)
	}

	if artwork != nil {
		t.updateArtwork(tag, artwork)
	}

	return tag.Save()
}

func (t *Tagger) updateStringTags(tag *id3v2.Tag, info TrackInfo) {
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	switch t.config.TrackTitle {
	case TagEmpty:
		tag.SetTitle("")
	case TagModify:
		tag.SetTitle(info.Title)
	}

	switch t.config.Artist {
	case TagEmpty:
		tag.SetArtist("")
	case TagModify:
		if info.Artist != "" {
			tag.SetArtist(info.Artist)
		}
	}

	switch t.config.Album {
	case TagEmpty:
		tag.SetAlbum("")
	case TagModify:
		if info.Album != "" {
			tag.SetAlbum(info.Album)
		}
	}

	switch t.config.Year {
	case TagEmpty:
		tag.DeleteFrames(tag.CommonID("Year"))
	case TagModify:
		if !info.CreatedAt.IsZero() {
			tag.SetYear(info.CreatedAt.Format("2006"))
		}
	}

	switch t.config.Genre {
	case TagEmpty:
		tag.SetGenre("")
	case TagModify:
		if info.Style != "" {
			tag.SetGenre(info.Style)
		}
	}

	switch t.config.Lyrics {
	case TagEmpty:
		tag.DeleteFrames(tag.CommonID("Unsynchronised lyrics/text transcription"))
	case TagModify:
		if info.Lyrics != "" {
			tag.DeleteFrames(tag.CommonID("Unsynchronised lyrics/text transcription"))
			tag.AddUnsynchronisedLyricsFrame(id3v2.UnsynchronisedLyricsFrame{
				Encoding:          id3v2.EncodingUTF8,
				Language:          "eng",
				ContentDescriptor: "",
				Lyrics:            info.Lyrics,
			})
		}
	}

	if t.config.Comments == TagEmpty {
		tag.DeleteFrames(tag.CommonID("Comments"))
	}
}

// updateArtwork embeds cover art as the front cover (APIC).
func (t *Tagger) updateArtwork(tag *id3v2.Tag, artwork []byte) {
	tag.DeleteFrames(tag.CommonID("Attached picture"))

	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    "image/jpeg",
		PictureType: id3v2.PTFrontCover,
		Description: "Cover",
		Picture:     artwork,
	})
}
