package dto

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/handiism/suno-downloader/internal/model"
)

// SunoTime handles the timestamp formats the feed has been seen to return.
type SunoTime struct {
	time.Time
}

// UnmarshalJSON parses RFC 3339 timestamps with or without fractional
// seconds. An empty, null or unrecognized value leaves the zero time so a
// single odd clip never fails its page.
func (st *SunoTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		st.Time = time.Time{}
		return nil
	}

	if s == "" {
		st.Time = time.Time{}
		return nil
	}

	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999", // no zone
		"2006-01-02 15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			st.Time = t
			return nil
		}
	}

	st.Time = time.Time{}
	return nil
}

// FeedRequest is the body of POST /api/feed/v3. Cursor is omitted on the
// first page.
type FeedRequest struct {
	Page   int    `json:"page"`
	Cursor string `json:"cursor,omitempty"`
}

// FeedResponse is one page of the library feed.
type FeedResponse struct {
	Clips      []Clip `json:"clips"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// Clip is one generated song as listed in the feed.
type Clip struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Status        string        `json:"status"`
	CreatedAt     *SunoTime     `json:"created_at"`
	AudioURL      string        `json:"audio_url"`
	ImageLargeURL string        `json:"image_large_url"`
	Metadata      *ClipMetadata `json:"metadata"`
}

// ClipMetadata holds the generation inputs.
type ClipMetadata struct {
	Prompt string `json:"prompt"`
	Tags   string `json:"tags"`
}

// ToItem converts the clip into a model.Item.
func (c *Clip) ToItem() model.Item {
	item := model.Item{
		ID:       c.ID,
		Title:    strings.TrimSpace(c.Title),
		Status:   model.ParseStatus(c.Status),
		AudioURL: c.AudioURL,
		ImageURL: c.ImageLargeURL,
	}
	if c.CreatedAt != nil {
		item.CreatedAt = c.CreatedAt.Time
	}
	if c.Metadata != nil {
		item.Lyrics = c.Metadata.Prompt
		item.Style = c.Metadata.Tags
	}
	return item
}
