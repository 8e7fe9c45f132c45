// Package ioutils provides file system and image processing utilities.
//
// This package contains functions for:
//   - Filename sanitization for cross-platform compatibility
//   - Collision-safe writes (existing files are never overwritten)
//   - Directory creation
//   - Cover image resizing and format conversion
//
// # File Operations
//
//	// Stream a download to disk; "Song.wav" becomes "Song (1).wav" if taken
//	final, n, err := ioutils.WriteStream(ctx, "/music/Song.wav", resp.Body)
//
//	// Ensure directory exists
//	err := ioutils.EnsureDir("/path/to/new/directory")
//
// # Filename Sanitization
//
// Use SanitizeFileName to remove invalid characters from filenames:
//
//	safe := ioutils.SanitizeFileName("Song: Part 1/2") // Returns "Song_ Part 1_2"
//
// # Image Processing
//
// The ImageService handles cover art manipulation:
//
//	svc := ioutils.NewImageService()
//
//	// Resize image to fit within 500x500
//	resized, _ := svc.ResizeImage(ctx, imageData, 500, 500)
//
//	// Convert to JPEG
//	jpeg, _ := svc.ConvertToJPEG(ctx, pngData)
package ioutils
