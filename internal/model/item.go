package model

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"
)

// Status is the catalog state of an item.
type Status int

const (
	// StatusNormal covers every playable state reported by the catalog
	// ("complete", "streaming", ...).
	StatusNormal Status = iota

	// StatusTrashed marks items the user moved to the trash.
	StatusTrashed

	// StatusError marks items whose generation errored.
	StatusError

	// StatusFailed marks items whose generation failed.
	StatusFailed

	// StatusOther is any state this package does not recognise.
	StatusOther
)

// ParseStatus maps the catalog's free-form status string to a Status.
//
// Matching is case-insensitive. An empty string is treated as normal, since
// items supplied by hand carry no status.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal", "complete", "streaming", "submitted", "queued":
		return StatusNormal
	case "trashed":
		return StatusTrashed
	case "error":
		return StatusError
	case "failed":
		return StatusFailed
	default:
		return StatusOther
	}
}

// String returns the lower-case name used in settings files.
func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusTrashed:
		return "trashed"
	case StatusError:
		return "error"
	case StatusFailed:
		return "failed"
	default:
		return "other"
	}
}

// StatusSet is a set of statuses, used for the catalog skip list.
type StatusSet map[Status]struct{}

// NewStatusSet builds a StatusSet from status names such as "trashed".
func NewStatusSet(names ...string) StatusSet {
	set := make(StatusSet, len(names))
	for _, name := range names {
		set[ParseStatus(name)] = struct{}{}
	}
	return set
}

// Contains reports whether s is in the set.
func (set StatusSet) Contains(s Status) bool {
	_, ok := set[s]
	return ok
}

// Item is a unit of remote content eligible for conversion and download.
//
// Identity is ID. Title is only used to build output file names and is
// sanitized before use. Items are created when enumerated from the catalog
// (or read from an item list) and are not modified afterwards.
type Item struct {
	// ID is the opaque clip identifier.
	ID string

	// Title is the display name. May be empty.
	Title string

	// Status is the catalog state.
	Status Status

	// CreatedAt is when the clip was generated. Zero if unknown.
	CreatedAt time.Time

	// AudioURL is the streaming URL reported by the catalog, if any.
	AudioURL string

	// ImageURL is the large cover URL reported by the catalog, if any.
	ImageURL string

	// Lyrics holds the generation prompt, if the catalog reported one.
	Lyrics string

	// Style holds the style tags, if the catalog reported them.
	Style string
}

// DisplayTitle returns Title, or "Untitled" when it is blank.
func (i Item) DisplayTitle() string {
	if strings.TrimSpace(i.Title) == "" {
		return "Untitled"
	}
	return i.Title
}

// ParseItemList reads items from a plain text list.
//
// Each non-empty line holds an id optionally followed by whitespace and a
// title. Lines starting with "#" are comments. Duplicate ids keep their first
// occurrence.
//
// Example input:
//
//	# exported from the library page
//	0f3c2a1e-...  Midnight Drive
//	9b7d44aa-...
func ParseItemList(r io.Reader) ([]Item, error) {
	var items []Item
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		id := fields[0]
		if strings.ContainsAny(id, "/\\") {
			return nil, fmt.Errorf("line %d: invalid id %q", lineNo, id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		items = append(items, Item{
			ID:     id,
			Title:  strings.Join(fields[1:], " "),
			Status: StatusNormal,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
