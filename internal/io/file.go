package ioutils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// maxUniqueSuffix bounds the " (n)" search in UniquePath.
const maxUniqueSuffix = 10000

var (
	invalidChars  = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDots  = regexp.MustCompile(`\.+$`)
	runsOfSpaces  = regexp.MustCompile(`\s+`)
	errNoFreeName = errors.New("no free file name")
)

// SanitizeFileName removes or replaces characters that are invalid in file/folder names.
//
// This function ensures filenames are valid across different operating systems,
// particularly Windows which has the most restrictive naming rules.
//
// The following transformations are applied:
//   - Invalid characters (<>:"/\|?* and control chars 0x00-0x1f) → underscore
//   - Trailing dots → removed (Windows limitation)
//   - Multiple whitespace → single space
//   - Leading and trailing whitespace → removed
//
// Example:
//
//	SanitizeFileName("Song: Part 1/2")      // Returns "Song_ Part 1_2"
//	SanitizeFileName("Track...")            // Returns "Track"
//	SanitizeFileName("Name   with  spaces") // Returns "Name with spaces"
func SanitizeFileName(name string) string {
	name = invalidChars.ReplaceAllString(name, "_")
	name = runsOfSpaces.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	name = trailingDots.ReplaceAllString(name, "")
	return strings.TrimRight(name, " ")
}

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755 (rwxr-xr-x).
// If the directory already exists, no error is returned.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// UniquePath returns path if nothing exists there, otherwise the first free
// variant of the form "name (1).ext", "name (2).ext", ...
//
// This mirrors the "uniquify" conflict action of browser download managers,
// so an existing file is never overwritten.
func UniquePath(path string) (string, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return path, nil
	} else if err != nil {
		return "", err
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; i < maxUniqueSuffix; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		} else if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%s: %w", path, errNoFreeName)
}

// WriteStream copies r into a new file at path without overwriting anything.
//
// Content goes to "<path>.part" first and is renamed into place once the copy
// completes, so an interrupted write never leaves a truncated file under the
// final name. Parent directories are created as needed. The returned path is
// the name actually used, which differs from path when a file already
// existed there.
//
// Example:
//
//	final, n, err := WriteStream(ctx, "/music/Song - abc.wav", resp.Body)
func WriteStream(ctx context.Context, path string, r io.Reader) (string, int64, error) {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return "", 0, err
	}

	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return "", 0, err
	}

	written, err := io.Copy(f, r)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		os.Remove(tmp)
		return "", written, err
	}

	final, err := UniquePath(path)
	if err != nil {
		os.Remove(tmp)
		return "", written, err
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", written, err
	}
	return final, written, nil
}

// WriteFile writes data to a new file at path without overwriting anything.
//
// It is the small-payload counterpart of WriteStream, used for cover art,
// lyrics sidecars and playlists.
func WriteFile(ctx context.Context, path string, data []byte) (string, error) {
	final, _, err := WriteStream(ctx, path, strings.NewReader(string(data)))
	return final, err
}
