package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/handiism/suno-downloader/internal/audio"
	"github.com/handiism/suno-downloader/internal/auth"
	"github.com/handiism/suno-downloader/internal/download"
	sunohttp "github.com/handiism/suno-downloader/internal/http"
	ioutils "github.com/handiism/suno-downloader/internal/io"
	"github.com/handiism/suno-downloader/internal/logging"
	"github.com/handiism/suno-downloader/internal/model"
	"github.com/handiism/suno-downloader/internal/progress"
	"github.com/handiism/suno-downloader/internal/suno"
)

// Settings holds all configuration options.
//
// Durations are stored in seconds.
type Settings struct {
	// Output
	DownloadsPath   string `json:"downloads_path"`
	Format          string `json:"format"` // wav, mp3
	IncludeID       bool   `json:"include_id"`
	CreateSubfolder bool   `json:"create_subfolder"`
	WorkspaceName   string `json:"workspace_name"`

	// Cover art settings
	IncludeCoverArt      bool `json:"include_cover_art"`
	CoverArtResize       bool `json:"cover_art_resize"`
	CoverArtMaxSize      int  `json:"cover_art_max_size"`
	ConvertCoverArtToJPG bool `json:"convert_cover_art_to_jpg"`

	// Sidecar and tags
	IncludeLyrics bool `json:"include_lyrics"`
	IncludeStyle  bool `json:"include_style"`
	ModifyTags    bool `json:"modify_tags"`

	// Playlist settings
	CreatePlaylist bool   `json:"create_playlist"`
	PlaylistFormat string `json:"playlist_format"` // m3u, pls, wpl, zpl
	M3UExtended    bool   `json:"m3u_extended"`

	// Pacing
	ItemDelay        float64  `json:"item_delay"`
	PageDelay        float64  `json:"page_delay"`
	ReadyDelay       float64  `json:"ready_delay"`
	RetryDelay       float64  `json:"retry_delay"`
	MaxAttempts      int      `json:"max_attempts"`
	NetworkBackoff   float64  `json:"network_backoff"`
	RateLimitBackoff float64  `json:"rate_limit_backoff"`
	MaxItems         int      `json:"max_items"`
	SkipStatuses     []string `json:"skip_statuses"`

	// Credentials
	TokenTTL             float64 `json:"token_ttl"`
	TokenRefreshInterval int     `json:"token_refresh_interval"`
	SessionCookie        string  `json:"session_cookie"`
	ClientCookie         string  `json:"client_cookie"`

	ETAInterval int `json:"eta_interval"`

	// Endpoints
	APIBaseURL   string `json:"api_base_url"`
	CDNBaseURL   string `json:"cdn_base_url"`
	ImageBaseURL string `json:"image_base_url"`
	ClerkBaseURL string `json:"clerk_base_url"`
	UserAgent    string `json:"user_agent"`

	// Progress storage
	ProgressBackend string `json:"progress_backend"` // file, postgres, s3, memory
	ProgressDir     string `json:"progress_dir"`
	DatabaseURL     string `json:"database_url"`
	S3Endpoint      string `json:"s3_endpoint"`
	S3Bucket        string `json:"s3_bucket"`
	S3Region        string `json:"s3_region"`
	S3AccessKey     string `json:"s3_access_key"`
	S3SecretKey     string `json:"s3_secret_key"`
	S3Prefix        string `json:"s3_prefix"`

	// Observability
	LogLevel    string `json:"log_level"`
	LogFormat   string `json:"log_format"`
	MetricsAddr string `json:"metrics_addr"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	return &Settings{
		DownloadsPath:   filepath.Join(homeDir, "Music", "Suno"),
		Format:          "wav",
		IncludeID:       true,
		CreateSubfolder: false,

		IncludeCoverArt:      false,
		CoverArtResize:       false,
		CoverArtMaxSize:      1000,
		ConvertCoverArtToJPG: true,

		IncludeLyrics: false,
		IncludeStyle:  false,
		ModifyTags:    true,

		CreatePlaylist: false,
		PlaylistFormat: "m3u",
		M3UExtended:    true,

		ItemDelay:        8,
		PageDelay:        3,
		ReadyDelay:       6,
		RetryDelay:       6,
		MaxAttempts:      8,
		NetworkBackoff:   10,
		RateLimitBackoff: 20,
		MaxItems:         0,
		SkipStatuses:     []string{"trashed", "error", "failed"},

		TokenTTL:             auth.DefaultTTL.Seconds(),
		TokenRefreshInterval: 25,
		ETAInterval:          10,

		APIBaseURL:   suno.DefaultAPIBaseURL,
		CDNBaseURL:   suno.DefaultCDNBaseURL,
		ImageBaseURL: suno.DefaultImageBaseURL,
		ClerkBaseURL: auth.DefaultClerkBaseURL,
		UserAgent:    sunohttp.DefaultConfig().UserAgent,

		ProgressBackend: "file",
		S3Region:        "us-east-1",

		LogLevel:  "info",
		LogFormat: "console",
	}
}

// Load reads settings from a JSON file, then applies environment overrides.
// A missing file yields the defaults.
func Load(path string) (*Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := json.Unmarshal(data, settings); err != nil {
			return nil, err
		}
	}

	settings.ApplyEnv()
	return settings, nil
}

// ApplyEnv overrides settings from SUNO_* environment variables.
func (s *Settings) ApplyEnv() {
	s.SessionCookie = envOr("SUNO_COOKIE", s.SessionCookie)
	s.ClientCookie = envOr("SUNO_CLIENT_COOKIE", s.ClientCookie)
	s.DownloadsPath = envOr("SUNO_DOWNLOADS_PATH", s.DownloadsPath)
	s.DatabaseURL = envOr("SUNO_DATABASE_URL", s.DatabaseURL)
	s.LogLevel = envOr("SUNO_LOG_LEVEL", s.LogLevel)
	s.ProgressBackend = envOr("SUNO_PROGRESS_BACKEND", s.ProgressBackend)
	s.S3AccessKey = envOr("SUNO_S3_ACCESS_KEY", s.S3AccessKey)
	s.S3SecretKey = envOr("SUNO_S3_SECRET_KEY", s.S3SecretKey)
	s.MaxItems = envInt("SUNO_MAX_ITEMS", s.MaxItems)
}

// Save writes settings to a JSON file.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultPath returns the settings file location under the user config dir.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "suno-downloader", "settings.json")
}

// ToClientConfig converts settings to the HTTP retry policy.
func (s *Settings) ToClientConfig() sunohttp.Config {
	cfg := sunohttp.DefaultConfig()
	cfg.NetworkBackoff = seconds(s.NetworkBackoff)
	cfg.RateLimitBackoff = seconds(s.RateLimitBackoff)
	if s.UserAgent != "" {
		cfg.UserAgent = s.UserAgent
	}
	return cfg
}

// ToEndpoints converts settings to the service URLs.
func (s *Settings) ToEndpoints() suno.Endpoints {
	return suno.Endpoints{API: s.APIBaseURL, CDN: s.CDNBaseURL, Image: s.ImageBaseURL}
}

// ToCatalogConfig converts settings to CatalogConfig.
func (s *Settings) ToCatalogConfig() suno.CatalogConfig {
	return suno.CatalogConfig{
		PageDelay:  seconds(s.PageDelay),
		RetryDelay: seconds(s.NetworkBackoff),
		Skip:       model.NewStatusSet(s.SkipStatuses...),
	}
}

// ToNamingConfig converts settings to NamingConfig.
func (s *Settings) ToNamingConfig() model.NamingConfig {
	return model.NamingConfig{
		IncludeID:       s.IncludeID,
		CreateSubfolder: s.CreateSubfolder,
		WorkspaceName:   s.WorkspaceName,
	}
}

// ToPollerConfig converts settings to the per-item download configuration.
func (s *Settings) ToPollerConfig() download.PollerConfig {
	cfg := download.DefaultPollerConfig()
	cfg.OutputDir = s.DownloadsPath
	cfg.Naming = s.ToNamingConfig()
	cfg.Format = model.ParseFormat(s.Format)
	cfg.ReadyDelay = seconds(s.ReadyDelay)
	cfg.RetryDelay = seconds(s.RetryDelay)
	cfg.MaxAttempts = s.MaxAttempts
	cfg.IncludeCover = s.IncludeCoverArt
	cfg.Cover = ioutils.CoverOptions{
		Resize:        s.CoverArtResize,
		MaxSize:       s.CoverArtMaxSize,
		ConvertToJPEG: s.ConvertCoverArtToJPG,
	}
	cfg.IncludeLyrics = s.IncludeLyrics
	cfg.IncludeStyle = s.IncludeStyle
	cfg.ModifyTags = s.ModifyTags
	return cfg
}

// ToPipelineConfig converts settings to PipelineConfig.
func (s *Settings) ToPipelineConfig() download.PipelineConfig {
	return download.PipelineConfig{
		Format:          model.ParseFormat(s.Format),
		ItemDelay:       seconds(s.ItemDelay),
		RefreshInterval: s.TokenRefreshInterval,
		ETAInterval:     s.ETAInterval,
		MaxItems:        s.MaxItems,
		CreatePlaylist:  s.CreatePlaylist,
		PlaylistFormat:  audio.ParsePlaylistFormat(s.PlaylistFormat),
		M3UExtended:     s.M3UExtended,
		OutputDir:       s.DownloadsPath,
	}
}

// ToLoggingConfig converts settings to the logger configuration.
func (s *Settings) ToLoggingConfig() logging.Config {
	return logging.Config{Level: s.LogLevel, Format: s.LogFormat, OutputPath: "stderr"}
}

// ToS3Config converts settings to the S3 progress backend configuration.
func (s *Settings) ToS3Config() progress.S3Config {
	return progress.S3Config{
		Endpoint:  s.S3Endpoint,
		Bucket:    s.S3Bucket,
		Region:    s.S3Region,
		AccessKey: s.S3AccessKey,
		SecretKey: s.S3SecretKey,
		Prefix:    s.S3Prefix,
	}
}

// ProgressPath returns the directory used by the file progress backend.
func (s *Settings) ProgressPath() string {
	if s.ProgressDir != "" {
		return s.ProgressDir
	}
	return s.DownloadsPath
}

// TokenTTLDuration returns TokenTTL as a duration.
func (s *Settings) TokenTTLDuration() time.Duration {
	return seconds(s.TokenTTL)
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
