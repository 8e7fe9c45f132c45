package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/handiism/suno-downloader/internal/config"
	"github.com/handiism/suno-downloader/internal/logging"
	"github.com/handiism/suno-downloader/internal/tui"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("suno-tui", flag.ContinueOnError)
	configFlag := fs.String("config", config.DefaultPath(), "Path to config file")
	logFlag := fs.String("log", "", "Write logs to this file (the screen is used by the UI)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	settings, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}

	logger := zap.NewNop()
	if *logFlag != "" {
		cfg := settings.ToLoggingConfig()
		cfg.OutputPath = *logFlag
		if logger, err = logging.New(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
			return 1
		}
		defer logger.Sync()
	}

	if err := tui.Run(settings, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
