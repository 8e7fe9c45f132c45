// Package app wires the packages of suno-downloader together from Settings.
// It is shared by the command-line and terminal UI front-ends.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/handiism/suno-downloader/internal/auth"
	"github.com/handiism/suno-downloader/internal/config"
	"github.com/handiism/suno-downloader/internal/download"
	sunohttp "github.com/handiism/suno-downloader/internal/http"
	"github.com/handiism/suno-downloader/internal/logging"
	"github.com/handiism/suno-downloader/internal/model"
	"github.com/handiism/suno-downloader/internal/progress"
	"github.com/handiism/suno-downloader/internal/suno"
)

// App holds a ready-to-run pipeline and the resources behind it.
type App struct {
	Settings *config.Settings
	Store    *progress.Store
	Pipeline *download.Pipeline

	logger *zap.Logger
	close  func() error
}

// Options tweak a single invocation on top of Settings.
type Options struct {
	DryRun bool

	// HTTPOptions are passed to the shared HTTP client, e.g. for tests.
	HTTPOptions []sunohttp.Option
}

// New builds the HTTP client, credential cache, progress store and pipeline
// described by settings. The caller must Close the App.
func New(ctx context.Context, settings *config.Settings, opts Options, logger *zap.Logger, onProgress func(download.ProgressEvent)) (*App, error) {
	logger = logging.OrNop(logger)

	backend, closeBackend, err := OpenBackend(ctx, settings)
	if err != nil {
		return nil, err
	}
	store, err := progress.Open(ctx, backend)
	if err != nil {
		closeBackend()
		return nil, fmt.Errorf("open progress: %w", err)
	}

	httpOpts := append([]sunohttp.Option{sunohttp.WithLogger(logger)}, opts.HTTPOptions...)
	hc := sunohttp.NewClient(settings.ToClientConfig(), httpOpts...)

	creds := auth.NewCache(settings.TokenTTLDuration(), Sources(settings, hc), auth.WithLogger(logger))
	client := suno.NewClient(hc, settings.ToEndpoints(), settings.ToCatalogConfig(), logger)
	client.OnPage = func(p suno.PageInfo) {
		if onProgress != nil {
			onProgress(download.ProgressEvent{
				Message: fmt.Sprintf("Page %d: %d clips (%d total)", p.Page, p.Clips, p.Total),
				Level:   download.LevelVerbose,
			})
		}
	}

	executor := download.NewExecutor(hc, settings.ToEndpoints(), settings.ToPollerConfig(), logger, onProgress)

	pipelineCfg := settings.ToPipelineConfig()
	pipelineCfg.DryRun = opts.DryRun
	pipeline := download.NewPipeline(pipelineCfg, download.Dependencies{
		Credentials: creds,
		Catalog:     client,
		Converter:   client,
		Downloader:  executor,
		Store:       store,
	}, onProgress, download.WithLogger(logger), download.WithSleep(hc.Sleeper()))

	return &App{
		Settings: settings,
		Store:    store,
		Pipeline: pipeline,
		logger:   logger,
		close:    closeBackend,
	}, nil
}

// Run processes the items listed in itemsPath, or the whole library when
// itemsPath is empty. "-" reads the list from stdin.
func (a *App) Run(ctx context.Context, itemsPath string) (download.Summary, error) {
	if itemsPath == "" {
		return a.Pipeline.Run(ctx)
	}

	items, err := LoadItems(itemsPath)
	if err != nil {
		return download.Summary{}, err
	}
	if len(items) == 0 {
		return download.Summary{}, fmt.Errorf("%s: %w", itemsPath, download.ErrEmptyCatalog)
	}
	return a.Pipeline.RunItems(ctx, items)
}

// Close releases the progress backend.
func (a *App) Close() error {
	if a.close == nil {
		return nil
	}
	return a.close()
}

// LoadItems reads an item list file.
func LoadItems(path string) ([]model.Item, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return model.ParseItemList(r)
}

// Sources returns the credential sources in preference order: the Clerk
// session API when a client cookie is configured, then the session cookie.
// A session value without "=" is taken as a bare token.
func Sources(settings *config.Settings, hc *sunohttp.Client) []auth.Source {
	var sources []auth.Source
	if settings.ClientCookie != "" {
		sources = append(sources, &auth.ClerkSource{
			BaseURL:      settings.ClerkBaseURL,
			ClientCookie: settings.ClientCookie,
			Client:       hc,
		})
	}
	if cookie := strings.TrimSpace(settings.SessionCookie); cookie != "" {
		if strings.Contains(cookie, "=") {
			sources = append(sources, &auth.CookieSource{Header: cookie})
		} else {
			sources = append(sources, auth.StaticSource(cookie))
		}
	}
	return sources
}

// OpenBackend opens the progress backend named by settings.ProgressBackend.
// The returned func closes it.
func OpenBackend(ctx context.Context, settings *config.Settings) (progress.Backend, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(settings.ProgressBackend) {
	case "", "file":
		return progress.NewFileBackend(settings.ProgressPath(), progress.DefaultNamespace), noop, nil
	case "memory":
		return progress.NewMemoryBackend(progress.Record{}), noop, nil
	case "postgres":
		if settings.DatabaseURL == "" {
			return nil, nil, errors.New("postgres progress backend needs database_url")
		}
		pg, err := progress.OpenPostgres(ctx, settings.DatabaseURL, progress.DefaultNamespace)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	case "s3":
		if settings.S3Bucket == "" {
			return nil, nil, errors.New("s3 progress backend needs s3_bucket")
		}
		b, err := progress.OpenS3(ctx, settings.ToS3Config(), progress.DefaultNamespace)
		if err != nil {
			return nil, nil, err
		}
		return b, noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown progress backend %q", settings.ProgressBackend)
	}
}
