package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/handiism/suno-downloader/internal/audio"
	sunohttp "github.com/handiism/suno-downloader/internal/http"
	ioutils "github.com/handiism/suno-downloader/internal/io"
	"github.com/handiism/suno-downloader/internal/logging"
	"github.com/handiism/suno-downloader/internal/metrics"
	"github.com/handiism/suno-downloader/internal/model"
	"github.com/handiism/suno-downloader/internal/suno"
)

// State is a step of the per-item download state machine.
type State int

const (
	StateWaitingInitial State = iota
	StateProbing
	StateReady
	StateExhausted
	StateDownloading
	StateComplete
	StateDownloadFailed
)

func (s State) String() string {
	switch s {
	case StateWaitingInitial:
		return "waiting_initial"
	case StateProbing:
		return "probing"
	case StateReady:
		return "ready"
	case StateExhausted:
		return "exhausted"
	case StateDownloading:
		return "downloading"
	case StateComplete:
		return "complete"
	case StateDownloadFailed:
		return "download_failed"
	default:
		return "unknown"
	}
}

// PollerConfig controls how one item is awaited and saved.
type PollerConfig struct {
	// OutputDir is the root all files are written under.
	OutputDir string

	// Naming builds the file name relative to OutputDir.
	Naming model.NamingConfig

	// Format selects WAV (rendered on request) or MP3 (available at once).
	Format model.Format

	// ReadyDelay is the wait before the first probe of a converted asset.
	ReadyDelay time.Duration

	// RetryDelay is the wait between probes.
	RetryDelay time.Duration

	// MaxAttempts bounds probes and download attempts together.
	MaxAttempts int

	// IncludeCover saves the cover image next to the audio file.
	IncludeCover bool
	Cover        ioutils.CoverOptions

	// IncludeLyrics and IncludeStyle write a .txt sidecar.
	IncludeLyrics bool
	IncludeStyle  bool

	// ModifyTags writes ID3 tags into MP3 files.
	ModifyTags bool
	TagArtist  string
}

// DefaultPollerConfig returns the pacing used against the CDN.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		OutputDir:   ".",
		Naming:      model.NamingConfig{IncludeID: true},
		Format:      model.FormatWAV,
		ReadyDelay:  6 * time.Second,
		RetryDelay:  6 * time.Second,
		MaxAttempts: 8,
		TagArtist:   "Suno",
	}
}

// DownloadOutcome is the result of one Execute call.
type DownloadOutcome struct {
	Success bool

	// Path is where the audio file was written.
	Path string

	BytesWritten int64

	// Probes is the number of readiness checks issued.
	Probes int

	// State is the terminal state reached.
	State State

	Err error
}

// Executor waits for an item's asset to become available and downloads it.
//
// The states run in order WAITING_INITIAL, PROBING, then READY or
// EXHAUSTED, then DOWNLOADING, then COMPLETE or DOWNLOAD_FAILED. Probes and
// download attempts share the MaxAttempts budget.
type Executor struct {
	http      *sunohttp.Client
	endpoints suno.Endpoints
	cfg       PollerConfig
	images    *ioutils.ImageService
	tagger    *audio.Tagger
	logger    *zap.Logger
	sleep     sunohttp.SleepFunc

	onProgress progressFunc
}

// NewExecutor creates an Executor. Waits use the client's SleepFunc.
func NewExecutor(hc *sunohttp.Client, endpoints suno.Endpoints, cfg PollerConfig, logger *zap.Logger, onProgress func(ProgressEvent)) *Executor {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	tagCfg := audio.DefaultTagConfig()
	tagCfg.ModifyTags = cfg.ModifyTags

	return &Executor{
		http:       hc,
		endpoints:  endpoints,
		cfg:        cfg,
		images:     ioutils.NewImageService(),
		tagger:     audio.NewTagger(tagCfg),
		logger:     logging.OrNop(logger),
		sleep:      hc.Sleeper(),
		onProgress: onProgress,
	}
}

// Execute runs the state machine for item. It never retries beyond
// MaxAttempts; an exhausted item is left for a later run.
//
// If ctx ends, Err is ctx.Err() and the outcome must not be recorded.
func (e *Executor) Execute(ctx context.Context, item model.Item) DownloadOutcome {
	log := e.logger.With(logging.ItemID(item.ID))
	out := DownloadOutcome{State: StateWaitingInitial}

	if e.cfg.Format.NeedsConversion() {
		if err := e.sleep(ctx, e.cfg.ReadyDelay); err != nil {
			out.Err = err
			return out
		}
	}

	assetURL := e.endpoints.AssetURL(item.ID, e.cfg.Format)
	var lastErr error

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		out.State = StateProbing
		out.Probes = attempt

		status, _, err := e.http.Head(ctx, assetURL)
		if err != nil {
			out.Err = err
			return out
		}

		if status == http.StatusOK {
			metrics.RecordProbe("ready")
			out.State = StateDownloading

			path, n, err := e.download(ctx, item, assetURL)
			if err == nil {
				out.State = StateComplete
				out.Success = true
				out.Path = path
				out.BytesWritten = n
				metrics.RecordBytes("audio", n)
				log.Info("downloaded", zap.String("path", path), zap.Int64("bytes", n), zap.Int("probes", attempt))

				e.companions(ctx, item, path)
				return out
			}
			if ctx.Err() != nil {
				out.Err = ctx.Err()
				return out
			}

			lastErr = fmt.Errorf("%w: %w", ErrDownloadFailed, err)
			log.Warn("download attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			e.onProgress.emit(ProgressEvent{
				Message: fmt.Sprintf("Download attempt %d/%d failed for %s: %v", attempt, e.cfg.MaxAttempts, item.DisplayTitle(), err),
				Level:   LevelWarning,
				ItemID:  item.ID,
			})
		} else {
			metrics.RecordProbe("not_ready")
			lastErr = fmt.Errorf("%w: status %d after %d probes", ErrAssetNotReady, status, attempt)
			log.Debug("asset not ready", zap.Int("attempt", attempt), zap.Int("status", status))
			e.onProgress.emit(ProgressEvent{
				Message: fmt.Sprintf("Not ready yet (%d/%d): %s", attempt, e.cfg.MaxAttempts, item.DisplayTitle()),
				Level:   LevelVerbose,
				ItemID:  item.ID,
			})
		}

		if attempt < e.cfg.MaxAttempts {
			if err := e.sleep(ctx, e.cfg.RetryDelay); err != nil {
				out.Err = err
				return out
			}
		}
	}

	if out.State == StateDownloading {
		out.State = StateDownloadFailed
	} else {
		out.State = StateExhausted
	}
	out.Err = lastErr
	return out
}

// download streams the asset to its final name and returns the path.
func (e *Executor) download(ctx context.Context, item model.Item, assetURL string) (string, int64, error) {
	target := filepath.Join(e.cfg.OutputDir, e.cfg.Naming.FileName(item, e.cfg.Format.Extension()))

	var (
		path    string
		written int64
	)
	err := e.http.Stream(ctx, assetURL, nil, func(r io.Reader) error {
		var err error
		path, written, err = ioutils.WriteStream(ctx, target, r)
		return err
	})
	if err != nil {
		return "", 0, err
	}
	return path, written, nil
}

// companions writes the best-effort extras next to audioPath. Failures are
// reported and logged only.
func (e *Executor) companions(ctx context.Context, item model.Item, audioPath string) {
	base := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))

	var cover []byte
	if e.cfg.IncludeCover {
		var err error
		cover, err = e.saveCover(ctx, item, base+".jpeg")
		if err != nil {
			e.companionFailed(item, "cover art", err)
		}
	}

	if e.cfg.IncludeLyrics || e.cfg.IncludeStyle {
		sheet := audio.LyricsSheet(item.Style, item.Lyrics, e.cfg.IncludeStyle, e.cfg.IncludeLyrics)
		if sheet != "" {
			if _, err := ioutils.WriteFile(ctx, base+".txt", []byte(sheet)); err != nil {
				e.companionFailed(item, "lyrics", err)
			}
		}
	}

	if e.cfg.ModifyTags && e.cfg.Format == model.FormatMP3 {
		info := audio.TrackInfo{
			Title:     item.DisplayTitle(),
			Artist:    e.cfg.TagArtist,
			Album:     e.cfg.Naming.WorkspaceName,
			Style:     item.Style,
			Lyrics:    item.Lyrics,
			CreatedAt: item.CreatedAt,
		}
		if err := e.tagger.SaveTags(audioPath, info, cover); err != nil {
			e.companionFailed(item, "tags", err)
		}
	}
}

func (e *Executor) saveCover(ctx context.Context, item model.Item, path string) ([]byte, error) {
	data, err := e.http.Get(ctx, e.endpoints.ImageURL(item.ID))
	if err != nil {
		return nil, err
	}
	metrics.RecordBytes("cover", int64(len(data)))

	data, err = e.images.Process(ctx, data, e.cfg.Cover)
	if err != nil {
		return nil, err
	}
	if _, err := ioutils.WriteFile(ctx, path, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (e *Executor) companionFailed(item model.Item, what string, err error) {
	err = fmt.Errorf("%w: %s: %w", ErrCompanionFailed, what, err)
	e.logger.Warn("companion failed", logging.ItemID(item.ID), zap.Error(err))
	e.onProgress.emit(ProgressEvent{
		Message: fmt.Sprintf("Could not save %s for %s: %v", what, item.DisplayTitle(), err),
		Level:   LevelWarning,
		ItemID:  item.ID,
	})
}
