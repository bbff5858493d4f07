package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"assetgate/internal/config"
)

var (
	configPath = flag.String("config", "./assetgate.toml", "Path to config file")
	watch      = flag.Bool("watch", false, "Stay resident and re-check on file changes")
	recent     = flag.Int("recent", 0, "Print the N most recent runs and exit")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("assetgate v%s\n", VERSION)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}

	app, err := NewApp(cfg)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(2)
	}
	defer app.Close()

	if *recent > 0 {
		if err := app.PrintRecentRuns(*recent); err != nil {
			slog.Error("failed to read run history", "error", err)
			os.Exit(2)
		}
		os.Exit(0)
	}

	candidateArgs := flag.Args()
	if len(candidateArgs) == 0 {
		if cfg.Paths.ProjectRoot == "" {
			fmt.Fprintln(os.Stderr, "no candidate paths: pass files or directories, or set paths.project_root")
			os.Exit(2)
		}
		candidateArgs = []string{cfg.Paths.ProjectRoot}
	}

	if err := app.CollectCandidates(candidateArgs); err != nil {
		slog.Error("failed to collect candidate files", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := app.RunOnce(ctx)
	if err != nil {
		slog.Error("consistency check failed", "error", err)
		os.Exit(2)
	}
	app.PrintSummary(rep)

	if !*watch && !cfg.Watch.Enabled {
		if rep.Clean() {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if cfg.Metrics.Enabled {
		if err := app.StartObservability(ctx); err != nil {
			slog.Error("failed to start observability server", "error", err)
			os.Exit(2)
		}
	}

	if err := app.StartWatcher(ctx); err != nil {
		slog.Error("failed to start watcher", "error", err)
		os.Exit(2)
	}

	<-ctx.Done()
	slog.Info("shutting down")
}

// loadConfig falls through to the example file and then to built-in
// defaults, but only when the default config path was left untouched. An
// explicit -config that fails to load is always an error.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil || path != "./assetgate.toml" {
		return cfg, err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return nil, err
	}
	if cfg, exErr := config.Load("./assetgate.example.toml"); exErr == nil {
		return cfg, nil
	}
	slog.Debug("no config file, using defaults")
	return config.Default(), nil
}
