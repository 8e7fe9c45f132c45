package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/handiism/suno-downloader/internal/audio"
	"github.com/handiism/suno-downloader/internal/model"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	settings, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if settings.MaxAttempts != 8 || settings.ItemDelay != 8 || settings.Format != "wav" {
		t.Errorf("unexpected defaults: %+v", settings)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"format":"mp3","retry_delay":1.5,"max_items":3}`), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SUNO_COOKIE", "__session=abc")
	t.Setenv("SUNO_MAX_ITEMS", "7")

	settings, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if settings.Format != "mp3" {
		t.Errorf("Format = %q", settings.Format)
	}
	if settings.SessionCookie != "__session=abc" {
		t.Errorf("SessionCookie = %q", settings.SessionCookie)
	}
	if settings.MaxItems != 7 {
		t.Errorf("MaxItems = %d, want env override 7", settings.MaxItems)
	}
	// untouched keys keep their defaults
	if settings.PageDelay != 3 {
		t.Errorf("PageDelay = %v", settings.PageDelay)
	}

	poller := settings.ToPollerConfig()
	if poller.RetryDelay != 1500*time.Millisecond || poller.Format != model.FormatMP3 {
		t.Errorf("ToPollerConfig() = %+v", poller)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	os.WriteFile(path, []byte("{"), 0644)
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	settings := DefaultSettings()
	settings.WorkspaceName = "Demos"
	settings.PlaylistFormat = "pls"

	if err := settings.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.WorkspaceName != "Demos" {
		t.Errorf("WorkspaceName = %q", loaded.WorkspaceName)
	}
	if loaded.ToPipelineConfig().PlaylistFormat != audio.FormatPLS {
		t.Error("playlist format not carried through")
	}
}

func TestConverters(t *testing.T) {
	s := DefaultSettings()
	s.SkipStatuses = []string{"trashed"}
	s.TokenRefreshInterval = 5

	catalog := s.ToCatalogConfig()
	if !catalog.Skip.Contains(model.StatusTrashed) || catalog.Skip.Contains(model.StatusFailed) {
		t.Errorf("skip set = %v", catalog.Skip)
	}
	if catalog.PageDelay != 3*time.Second {
		t.Errorf("PageDelay = %v", catalog.PageDelay)
	}

	client := s.ToClientConfig()
	if client.NetworkBackoff != 10*time.Second || client.RateLimitBackoff != 20*time.Second {
		t.Errorf("client = %+v", client)
	}

	pipeline := s.ToPipelineConfig()
	if pipeline.RefreshInterval != 5 || pipeline.ItemDelay != 8*time.Second {
		t.Errorf("pipeline = %+v", pipeline)
	}
	if s.TokenTTLDuration() != 5*time.Minute {
		t.Errorf("TokenTTLDuration() = %v", s.TokenTTLDuration())
	}
}
