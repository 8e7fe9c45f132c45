// Package config provides configuration management for suno-downloader.
//
// This package handles:
//   - Loading and saving settings from JSON files
//   - Default configuration values
//   - SUNO_* environment overrides
//   - Conversion to the configs of the other packages
//
// # Loading from File
//
//	settings, err := config.Load(config.DefaultPath())
//	if err != nil {
//	    // Uses defaults if file doesn't exist
//	}
//
// # Environment
//
// These variables override the file:
//   - SUNO_COOKIE: Cookie header holding __session
//   - SUNO_CLIENT_COOKIE: Clerk __client cookie value
//   - SUNO_DOWNLOADS_PATH
//   - SUNO_DATABASE_URL: PostgreSQL DSN for the postgres progress backend
//   - SUNO_PROGRESS_BACKEND: file, postgres, s3 or memory
//   - SUNO_S3_ACCESS_KEY, SUNO_S3_SECRET_KEY
//   - SUNO_MAX_ITEMS
//   - SUNO_LOG_LEVEL
package config
