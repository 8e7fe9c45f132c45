package download

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/handiism/suno-downloader/internal/audio"
	sunohttp "github.com/handiism/suno-downloader/internal/http"
	ioutils "github.com/handiism/suno-downloader/internal/io"
	"github.com/handiism/suno-downloader/internal/logging"
	"github.com/handiism/suno-downloader/internal/metrics"
	"github.com/handiism/suno-downloader/internal/model"
	"github.com/handiism/suno-downloader/internal/progress"
	"github.com/handiism/suno-downloader/internal/suno"
)

// Enumerator lists the items to process. *suno.Client implements it.
type Enumerator interface {
	FetchAll(ctx context.Context, creds suno.Credentials) ([]model.Item, error)
}

// Converter starts server-side conversion. *suno.Client implements it.
type Converter interface {
	Trigger(ctx context.Context, token, id string) bool
}

// Downloader awaits and saves one item. *Executor implements it.
type Downloader interface {
	Execute(ctx context.Context, item model.Item) DownloadOutcome
}

// PipelineConfig controls the run as a whole.
type PipelineConfig struct {
	// Format decides whether a conversion is requested per item.
	Format model.Format

	// ItemDelay is the pause between items (not after the last).
	ItemDelay time.Duration

	// RefreshInterval forces a credential refresh every N items. 0 disables.
	RefreshInterval int

	// ETAInterval emits an estimate every N items. 0 disables.
	ETAInterval int

	// MaxItems caps how many pending items are processed. 0 means all.
	MaxItems int

	// DryRun lists the pending items without touching them.
	DryRun bool

	// CreatePlaylist writes a playlist of this run's files into OutputDir.
	CreatePlaylist bool
	PlaylistFormat audio.PlaylistFormat
	M3UExtended    bool
	OutputDir      string
}

// DefaultPipelineConfig returns the pacing used against the API.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Format:          model.FormatWAV,
		ItemDelay:       8 * time.Second,
		RefreshInterval: 25,
		ETAInterval:     10,
		OutputDir:       ".",
	}
}

// Dependencies are the collaborators a Pipeline drives.
type Dependencies struct {
	Credentials suno.Credentials
	Catalog     Enumerator
	Converter   Converter
	Downloader  Downloader
	Store       *progress.Store
}

// Summary describes a finished run.
type Summary struct {
	RunID string

	// Total is the number of items enumerated or supplied.
	Total int

	// Skipped were already downloaded by an earlier run.
	Skipped int

	// Pending is how many items this run set out to process.
	Pending   int
	Succeeded int
	Failed    int

	Cancelled bool
	DryRun    bool

	// Cumulative are the store totals since the last reset.
	Cumulative progress.Stats

	Elapsed time.Duration

	// Files are the audio files written by this run.
	Files []string

	PlaylistPath string
}

// Report renders the end-of-run summary shown to the user.
func (s Summary) Report() string {
	var sb strings.Builder

	if s.DryRun {
		fmt.Fprintf(&sb, "Dry run: %d of %d items would be downloaded (%d already done).\n", s.Pending, s.Total, s.Skipped)
		return sb.String()
	}

	fmt.Fprintf(&sb, "This session: %d succeeded, %d failed", s.Succeeded, s.Failed)
	if s.Skipped > 0 {
		fmt.Fprintf(&sb, ", %d skipped", s.Skipped)
	}
	fmt.Fprintf(&sb, " in %s.\n", s.Elapsed.Round(time.Second))
	fmt.Fprintf(&sb, "All time: %d downloaded, %d failed.\n", s.Cumulative.Done, s.Cumulative.Failed)
	if s.PlaylistPath != "" {
		fmt.Fprintf(&sb, "Playlist: %s\n", s.PlaylistPath)
	}
	if s.Cancelled {
		sb.WriteString("Stopped early.\n")
	}
	if s.Failed > 0 || s.Cancelled {
		sb.WriteString("Run again to retry the items not yet downloaded.\n")
	}
	return sb.String()
}

// Pipeline processes items strictly one at a time, recording each outcome
// in the progress store so an interrupted run resumes where it stopped.
type Pipeline struct {
	deps   Dependencies
	cfg    PipelineConfig
	runID  string
	logger *zap.Logger
	sleep  sunohttp.SleepFunc
	now    func() time.Time

	onProgress progressFunc
	cancelled  atomic.Bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logging.OrNop(l) }
}

// WithSleep replaces the wait used between items.
func WithSleep(fn sunohttp.SleepFunc) Option {
	return func(p *Pipeline) { p.sleep = fn }
}

// WithClock replaces time.Now for elapsed and ETA calculations.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithRunID sets the session id instead of generating one.
func WithRunID(id string) Option {
	return func(p *Pipeline) { p.runID = id }
}

// NewPipeline creates a Pipeline. onProgress may be nil.
func NewPipeline(cfg PipelineConfig, deps Dependencies, onProgress func(ProgressEvent), opts ...Option) *Pipeline {
	p := &Pipeline{
		deps:       deps,
		cfg:        cfg,
		runID:      uuid.NewString(),
		logger:     zap.NewNop(),
		sleep:      sunohttp.Sleep,
		now:        time.Now,
		onProgress: onProgress,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(logging.RunID(p.runID))
	return p
}

// RunID identifies this pipeline's session in logs.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Cancel asks the run to stop before the next item. The item in flight
// finishes normally.
func (p *Pipeline) Cancel() {
	if p.cancelled.CompareAndSwap(false, true) {
		p.logger.Info("cancel requested")
		p.onProgress.emit(ProgressEvent{Message: "Stopping after the current item...", Level: LevelWarning})
	}
}

// Cancelled reports whether Cancel was called.
func (p *Pipeline) Cancelled() bool {
	return p.cancelled.Load()
}

// Run enumerates the library and processes every item not yet done.
//
// It fails without processing anything when no credential can be obtained
// or the library is empty.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	if _, err := p.deps.Credentials.Get(ctx, false); err != nil {
		return p.fatal(err)
	}

	p.onProgress.emit(ProgressEvent{Message: "Fetching your song library...", Level: LevelInfo})
	items, err := p.deps.Catalog.FetchAll(ctx, p.deps.Credentials)
	if err != nil {
		return p.fatal(err)
	}
	if len(items) == 0 {
		return p.fatal(ErrEmptyCatalog)
	}
	p.onProgress.emit(ProgressEvent{Message: fmt.Sprintf("Found %d songs in your library.", len(items)), Level: LevelSuccess})

	return p.RunItems(ctx, items)
}

func (p *Pipeline) fatal(err error) (Summary, error) {
	p.logger.Error("run aborted", zap.Error(err))
	p.onProgress.emit(ProgressEvent{Message: fmt.Sprintf("Aborted: %v", err), Level: LevelError})
	return Summary{RunID: p.runID, Cumulative: p.deps.Store.Stats()}, err
}

// RunItems processes a supplied item list.
//
// Per-item failures are recorded and the run moves on. The returned error is
// non-nil only for a credential failure or ctx ending; in the latter case
// the item in flight is left unrecorded.
func (p *Pipeline) RunItems(ctx context.Context, items []model.Item) (Summary, error) {
	start := p.now()
	summary := Summary{RunID: p.runID, Total: len(items), DryRun: p.cfg.DryRun}

	var pending []model.Item
	for _, item := range items {
		if p.deps.Store.IsDone(item.ID) {
			summary.Skipped++
			continue
		}
		pending = append(pending, item)
	}
	if p.cfg.MaxItems > 0 && len(pending) > p.cfg.MaxItems {
		pending = pending[:p.cfg.MaxItems]
	}
	summary.Pending = len(pending)

	p.logger.Info("run started",
		zap.Int("total", summary.Total),
		zap.Int("skipped", summary.Skipped),
		zap.Int("pending", summary.Pending),
	)
	p.onProgress.emit(ProgressEvent{
		Message: fmt.Sprintf("%d items, %d already downloaded, %d to process.", summary.Total, summary.Skipped, summary.Pending),
		Level:   LevelInfo,
		Total:   summary.Pending,
	})

	if p.cfg.DryRun {
		for i, item := range pending {
			p.onProgress.emit(ProgressEvent{
				Message: fmt.Sprintf("Would download: %s (%s)", item.DisplayTitle(), item.ID),
				Level:   LevelInfo,
				ItemID:  item.ID,
				Current: i + 1,
				Total:   len(pending),
			})
		}
		return p.finish(summary, start), nil
	}

	for i, item := range pending {
		if p.cancelled.Load() {
			summary.Cancelled = true
			break
		}

		refresh := p.cfg.RefreshInterval > 0 && i > 0 && i%p.cfg.RefreshInterval == 0
		cred, err := p.deps.Credentials.Get(ctx, refresh)
		if err != nil {
			p.logger.Error("credential unavailable", zap.Error(err))
			p.onProgress.emit(ProgressEvent{Message: fmt.Sprintf("Aborted: %v", err), Level: LevelError})
			return p.finish(summary, start), err
		}

		p.onProgress.emit(ProgressEvent{
			Message: fmt.Sprintf("[%d/%d] %s", i+1, len(pending), item.DisplayTitle()),
			Level:   LevelInfo,
			ItemID:  item.ID,
			Current: i + 1,
			Total:   len(pending),
		})

		itemStart := p.now()
		outcome := p.processItem(ctx, cred.Token, item)
		if ctx.Err() != nil {
			return p.finish(summary, start), ctx.Err()
		}
		p.record(ctx, &summary, item, outcome, i+1, len(pending))
		metrics.RecordItem(resultLabel(outcome), p.now().Sub(itemStart))

		processed := i + 1
		if p.cfg.ETAInterval > 0 && processed%p.cfg.ETAInterval == 0 && processed < len(pending) {
			p.emitETA(start, processed, len(pending))
		}

		if processed < len(pending) && !p.cancelled.Load() {
			if err := p.sleep(ctx, p.cfg.ItemDelay); err != nil {
				return p.finish(summary, start), err
			}
		}
	}

	if p.cfg.CreatePlaylist && len(summary.Files) > 0 {
		summary.PlaylistPath = p.writePlaylist(ctx, summary.Files)
	}

	summary = p.finish(summary, start)
	p.logger.Info("run finished",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Bool("cancelled", summary.Cancelled),
		zap.Duration("elapsed", summary.Elapsed),
	)
	level := LevelSuccess
	if summary.Failed > 0 || summary.Cancelled {
		level = LevelWarning
	}
	p.onProgress.emit(ProgressEvent{Message: summary.Report(), Level: level})
	return summary, nil
}

func (p *Pipeline) processItem(ctx context.Context, token string, item model.Item) DownloadOutcome {
	if p.cfg.Format.NeedsConversion() {
		if !p.deps.Converter.Trigger(ctx, token, item.ID) {
			return DownloadOutcome{State: StateWaitingInitial, Err: ErrTriggerRejected}
		}
	}
	return p.deps.Downloader.Execute(ctx, item)
}

func (p *Pipeline) record(ctx context.Context, summary *Summary, item model.Item, outcome DownloadOutcome, current, total int) {
	log := p.logger.With(logging.ItemID(item.ID))

	if outcome.Success {
		summary.Succeeded++
		summary.Files = append(summary.Files, outcome.Path)
		if err := p.deps.Store.MarkDone(ctx, item.ID); err != nil {
			log.Error("could not record success", zap.Error(err))
			p.onProgress.emit(ProgressEvent{Message: fmt.Sprintf("Could not save progress: %v", err), Level: LevelError, ItemID: item.ID})
		}
		p.onProgress.emit(ProgressEvent{
			Message: fmt.Sprintf("Downloaded: %s", filepath.Base(outcome.Path)),
			Level:   LevelSuccess,
			ItemID:  item.ID,
			Current: current,
			Total:   total,
		})
		return
	}

	summary.Failed++
	log.Warn("item failed", zap.Stringer("state", outcome.State), zap.Error(outcome.Err))
	if err := p.deps.Store.MarkFailed(ctx, item.ID); err != nil {
		log.Error("could not record failure", zap.Error(err))
	}
	p.onProgress.emit(ProgressEvent{
		Message: fmt.Sprintf("Failed: %s: %v", item.DisplayTitle(), outcome.Err),
		Level:   LevelError,
		ItemID:  item.ID,
		Current: current,
		Total:   total,
	})
}

func (p *Pipeline) emitETA(start time.Time, processed, total int) {
	elapsed := p.now().Sub(start)
	perItem := elapsed / time.Duration(processed)
	eta := perItem * time.Duration(total-processed)

	p.logger.Info("eta", zap.Int("processed", processed), zap.Duration("remaining", eta))
	p.onProgress.emit(ProgressEvent{
		Message: fmt.Sprintf("Progress: %d/%d, about %s remaining.", processed, total, eta.Round(time.Second)),
		Level:   LevelInfo,
		Current: processed,
		Total:   total,
	})
}

func (p *Pipeline) writePlaylist(ctx context.Context, files []string) string {
	creator := audio.NewPlaylistCreator(p.cfg.PlaylistFormat, p.cfg.M3UExtended)

	entries := make([]audio.PlaylistEntry, 0, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(p.cfg.OutputDir, f)
		if err != nil {
			rel = f
		}
		entries = append(entries, audio.PlaylistEntry{
			Path:  rel,
			Title: strings.TrimSuffix(filepath.Base(f), filepath.Ext(f)),
		})
	}

	title := "Suno " + p.now().Format("2006-01-02 15-04")
	content := creator.CreatePlaylist(title, entries)
	path := filepath.Join(p.cfg.OutputDir, title+"."+creator.Format().Extension())

	written, err := ioutils.WriteFile(ctx, path, []byte(content))
	if err != nil {
		p.logger.Warn("playlist not written", zap.Error(err))
		p.onProgress.emit(ProgressEvent{Message: fmt.Sprintf("Error creating playlist: %v", err), Level: LevelWarning})
		return ""
	}
	p.onProgress.emit(ProgressEvent{Message: fmt.Sprintf("Created playlist %s", filepath.Base(written)), Level: LevelSuccess})
	return written
}

func (p *Pipeline) finish(summary Summary, start time.Time) Summary {
	summary.Elapsed = p.now().Sub(start)
	summary.Cumulative = p.deps.Store.Stats()
	return summary
}

func resultLabel(outcome DownloadOutcome) string {
	switch {
	case outcome.Success:
		return "succeeded"
	case errors.Is(outcome.Err, ErrTriggerRejected):
		return "trigger_rejected"
	case errors.Is(outcome.Err, ErrAssetNotReady):
		return "not_ready"
	default:
		return "failed"
	}
}
