package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/handiism/suno-downloader/internal/app"
	"github.com/handiism/suno-downloader/internal/auth"
	"github.com/handiism/suno-downloader/internal/config"
	"github.com/handiism/suno-downloader/internal/download"
	"github.com/handiism/suno-downloader/internal/logging"
	"github.com/handiism/suno-downloader/internal/metrics"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is main without os.Exit, so deferred cleanup always happens. It
// returns the process exit code.
func run(args []string) int {
	fs := flag.NewFlagSet("suno-dl", flag.ContinueOnError)
	var (
		configFlag   = fs.String("config", config.DefaultPath(), "Path to config file")
		outputFlag   = fs.String("output", "", "Output directory (overrides config)")
		itemsFlag    = fs.String("items", "", "Item list file, one \"<id> [title]\" per line (- for stdin); default is the whole library")
		formatFlag   = fs.String("format", "", "Audio format: wav or mp3 (overrides config)")
		cookieFlag   = fs.String("cookie", "", "Cookie header with __session, or a bare session token")
		clientFlag   = fs.String("client-cookie", "", "Clerk __client cookie value, used to refresh tokens")
		maxFlag      = fs.Int("max", -1, "Process at most this many pending items (0 = all)")
		dryRunFlag   = fs.Bool("dry-run", false, "List pending items without downloading")
		resetFlag    = fs.Bool("reset", false, "Forget all recorded progress and exit")
		playlistFlag = fs.Bool("playlist", false, "Create a playlist of this session's files")
		verboseFlag  = fs.Bool("verbose", false, "Show verbose output")
		metricsFlag  = fs.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	)

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Suno Downloader - bulk download your Suno songs")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  suno-dl -cookie '<Cookie header>' [options]")
		fmt.Fprintln(os.Stderr, "  suno-dl -items songs.txt [options]")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "For interactive mode, use: suno-tui")
		fmt.Fprintln(os.Stderr)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	settings, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}

	// Apply flags
	if *outputFlag != "" {
		settings.DownloadsPath = *outputFlag
	}
	if *formatFlag != "" {
		settings.Format = *formatFlag
	}
	if *cookieFlag != "" {
		settings.SessionCookie = *cookieFlag
	}
	if *clientFlag != "" {
		settings.ClientCookie = *clientFlag
	}
	if *maxFlag >= 0 {
		settings.MaxItems = *maxFlag
	}
	if *playlistFlag {
		settings.CreatePlaylist = true
	}
	if *metricsFlag != "" {
		settings.MetricsAddr = *metricsFlag
	}
	if *verboseFlag && settings.LogLevel == "info" {
		settings.LogLevel = "debug"
	}

	logger, err := logging.New(settings.ToLoggingConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, abort := context.WithCancel(context.Background())
	defer abort()

	a, err := app.New(ctx, settings, app.Options{DryRun: *dryRunFlag}, logger, printer(*verboseFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing: %v\n", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("closing progress backend", zap.Error(err))
		}
	}()

	if *resetFlag {
		if err := a.Store.Reset(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error resetting progress: %v\n", err)
			return 1
		}
		fmt.Println("Progress reset. The next run will process every item again.")
		return 0
	}

	fmt.Println("♪ Suno Downloader")
	fmt.Println("────────────────────────────────────────")
	stats := a.Store.Stats()
	fmt.Printf("Saving to %s (%d downloaded, %d failed so far)\n\n", settings.DownloadsPath, stats.Done, stats.Failed)

	summary, runErr := runPipeline(ctx, abort, a, settings.MetricsAddr, *itemsFlag, logger)

	fmt.Println()
	fmt.Println("────────────────────────────────────────")
	switch {
	case errors.Is(runErr, context.Canceled):
		fmt.Println("Aborted. The interrupted song will be retried on the next run.")
		fmt.Print(summary.Report())
	case errors.Is(runErr, auth.ErrNoCredential):
		fmt.Fprintf(os.Stderr, "Could not get an auth token: %v\n", runErr)
		fmt.Fprintln(os.Stderr, "Pass -cookie with the Cookie header from a logged-in suno.com tab, or set SUNO_COOKIE.")
	case runErr != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
	}
	return exitCode(runErr)
}

// exitCode maps a run error to the process status: 130 for an abort, as a
// shell does for SIGINT.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}

// runPipeline drives the pipeline alongside the signal handler and the
// optional metrics server. The first interrupt stops after the current item,
// the second aborts it.
func runPipeline(ctx context.Context, abort context.CancelFunc, a *app.App, metricsAddr, itemsPath string, logger *zap.Logger) (download.Summary, error) {
	svcCtx, stopServices := context.WithCancel(context.Background())
	defer stopServices()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var g errgroup.Group

	g.Go(func() error {
		for {
			select {
			case <-svcCtx.Done():
				return nil
			case <-sigCh:
				if !a.Pipeline.Cancelled() {
					fmt.Println("\nInterrupted, finishing the current song (interrupt again to abort)...")
					a.Pipeline.Cancel()
					continue
				}
				fmt.Println("\nAborting...")
				abort()
			}
		}
	})

	if metricsAddr != "" {
		g.Go(func() error {
			logger.Info("serving metrics", zap.String("addr", metricsAddr))
			if err := metrics.Serve(svcCtx, metricsAddr); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
			return nil
		})
	}

	var (
		summary download.Summary
		runErr  error
	)
	g.Go(func() error {
		defer stopServices()
		summary, runErr = a.Run(ctx, itemsPath)
		return nil
	})

	g.Wait()
	return summary, runErr
}

func printer(verbose bool) func(download.ProgressEvent) {
	return func(event download.ProgressEvent) {
		if event.Level == download.LevelVerbose && !verbose {
			return
		}
		prefix := ""
		switch event.Level {
		case download.LevelError:
			prefix = "✗ "
		case download.LevelWarning:
			prefix = "! "
		case download.LevelSuccess:
			prefix = "✓ "
		case download.LevelInfo:
			prefix = "› "
		default:
			prefix = "  "
		}

		fmt.Print(prefix + strings.TrimRight(event.Message, "\n") + "\n")
	}
}
