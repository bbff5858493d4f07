package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"assetgate/internal/checker"
	"assetgate/internal/config"
	"assetgate/internal/extract"
	"assetgate/internal/history"
	"assetgate/internal/report"
	"assetgate/internal/shared/observability"
	"assetgate/internal/shared/util"
	"assetgate/internal/store"
	"assetgate/internal/watcher"

	"github.com/gobwas/glob"
)

type App struct {
	Config  *config.Config
	Checker *checker.Checker

	hist *history.Store
	obs  *observability.Server
	fsw  *watcher.Watcher

	// candidates is the batch under check. Watch mode grows it when new
	// asset files appear under the watched roots.
	candidateRoots []string
	candidateMu    sync.Mutex
	candidates     map[string]struct{}

	runMu sync.Mutex
}

func NewApp(cfg *config.Config) (*App, error) {
	if cfg.Paths.StoreRoot == "" {
		return nil, fmt.Errorf("paths.store_root is required")
	}

	st, err := store.NewDirStore(cfg.Paths.StoreRoot, cfg.Store.Exclude, cfg.Check.StoreReadsPerSecond, cfg.Check.FoldCase)
	if err != nil {
		return nil, err
	}

	chk := checker.New(st, checker.Options{
		ProjectRoot:       cfg.Paths.ProjectRoot,
		FoldCase:          cfg.Check.FoldCase,
		Workers:           cfg.Check.Workers,
		HeavyRefThreshold: cfg.Check.HeavyRefThreshold,
		OnStage: func(stage string) {
			slog.Debug("stage", "name", stage)
		},
	})

	app := &App{
		Config:     cfg,
		Checker:    chk,
		candidates: make(map[string]struct{}),
	}

	if cfg.History.Enabled {
		h, err := history.Open(cfg.History.Path)
		if err != nil {
			// History is a convenience; a locked or unwritable db must not
			// block the check itself.
			slog.Warn("run history unavailable", "path", cfg.History.Path, "error", err)
		} else {
			app.hist = h
		}
	}

	return app, nil
}

// CollectCandidates expands the given files and directories into the batch.
// Directories are walked recursively; only recognized asset extensions are
// taken, so stray editor files never enter the batch.
func (a *App) CollectCandidates(args []string) error {
	excludes := make([]glob.Glob, 0, len(a.Config.Store.Exclude))
	for _, p := range a.Config.Store.Exclude {
		g, err := glob.Compile(p)
		if err != nil {
			return fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		excludes = append(excludes, g)
	}

	a.candidateMu.Lock()
	defer a.candidateMu.Unlock()

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return fmt.Errorf("candidate path %q: %w", arg, err)
		}
		if !info.IsDir() {
			a.candidates[arg] = struct{}{}
			continue
		}

		a.candidateRoots = append(a.candidateRoots, arg)
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			base := filepath.Base(path)
			if d.IsDir() {
				for _, g := range excludes {
					if g.Match(base) {
						return filepath.SkipDir
					}
				}
				return nil
			}
			if extract.KnownExt(path) {
				a.candidates[path] = struct{}{}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	if len(a.candidates) == 0 {
		return fmt.Errorf("no asset files found under the given paths")
	}
	return nil
}

// RunOnce executes one consistency check over the current batch and persists
// the report in every configured format.
func (a *App) RunOnce(ctx context.Context) (*report.Report, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	a.candidateMu.Lock()
	paths := make([]string, 0, len(a.candidates))
	for p := range a.candidates {
		paths = append(paths, p)
	}
	a.candidateMu.Unlock()

	slog.Info("starting consistency check", "candidates", len(paths))
	rep, err := a.Checker.Run(ctx, paths)
	if err != nil {
		return nil, err
	}

	if err := a.writeOutputs(rep); err != nil {
		slog.Error("failed to write report", "error", err)
	}
	a.saveHistory(rep)

	slog.Info("consistency check finished",
		"run_id", rep.RunID,
		"clean", rep.Clean(),
		"partial", rep.Partial,
		"findings", rep.FindingCount(),
		"duration", rep.Stats.Duration)
	return rep, nil
}

func (a *App) writeOutputs(rep *report.Report) error {
	for _, format := range a.Config.Output.Formats {
		var (
			data []byte
			name string
		)
		switch format {
		case "markdown":
			md, err := report.NewMarkdownGenerator().Generate(rep, report.MarkdownOptions{
				ProjectName: a.Config.Project,
				Version:     VERSION,
			})
			if err != nil {
				return err
			}
			data, name = []byte(md), "consistency-report.md"
		case "tsv":
			tsv, err := report.NewTSVGenerator().Generate(rep)
			if err != nil {
				return err
			}
			data, name = []byte(tsv), "consistency-report.tsv"
		case "json":
			raw, err := json.MarshalIndent(rep, "", "  ")
			if err != nil {
				return err
			}
			data, name = raw, "consistency-report.json"
		default:
			continue
		}

		path := filepath.Join(a.Config.Output.Dir, name)
		if err := util.WriteFileWithDirs(path, data, 0o644); err != nil {
			return err
		}
		slog.Debug("report written", "path", path, "format", format)
	}
	return nil
}

func (a *App) saveHistory(rep *report.Report) {
	if a.hist == nil {
		return
	}
	run := history.FromReport(a.projectKey(), rep)
	if err := a.hist.SaveRun(run); err != nil {
		slog.Warn("failed to record run", "run_id", rep.RunID, "error", err)
	}
}

func (a *App) projectKey() string {
	if a.Config.Project != "" {
		return a.Config.Project
	}
	if a.Config.Paths.ProjectRoot != "" {
		return a.Config.Paths.ProjectRoot
	}
	return "default"
}

func (a *App) PrintRecentRuns(limit int) error {
	if a.hist == nil {
		return fmt.Errorf("run history is disabled in config")
	}
	runs, err := a.hist.RecentRuns(a.projectKey(), limit)
	if err != nil {
		return err
	}
	printRunHistory(os.Stdout, runs)
	return nil
}

// StartWatcher begins re-checking the batch whenever files under the
// candidate roots change.
func (a *App) StartWatcher(ctx context.Context) error {
	fsw, err := watcher.New(a.Config.Watch.Debounce, a.Config.Watch.Exclude, func(changed []string) {
		a.onChange(ctx, changed)
	})
	if err != nil {
		return err
	}
	a.fsw = fsw

	roots := a.candidateRoots
	if len(roots) == 0 && a.Config.Paths.ProjectRoot != "" {
		roots = []string{a.Config.Paths.ProjectRoot}
	}
	for _, root := range roots {
		if err := fsw.Watch(root); err != nil {
			return err
		}
		slog.Info("watching for changes", "root", root)
	}
	return nil
}

func (a *App) onChange(ctx context.Context, changed []string) {
	if ctx.Err() != nil {
		return
	}

	a.candidateMu.Lock()
	for _, p := range changed {
		if extract.KnownExt(p) {
			a.candidates[p] = struct{}{}
		}
	}
	a.candidateMu.Unlock()

	slog.Info("change detected, re-checking", "changed", len(changed))
	rep, err := a.RunOnce(ctx)
	if err != nil {
		slog.Error("re-check failed", "error", err)
		return
	}
	a.PrintSummary(rep)
}

func (a *App) StartObservability(ctx context.Context) error {
	a.obs = observability.NewServer(a.Config.Metrics.Address, a.health)
	return a.obs.Start(ctx)
}

func (a *App) health(ctx context.Context) observability.HealthStatus {
	status := observability.HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	if info, err := os.Stat(a.Config.Paths.StoreRoot); err != nil || !info.IsDir() {
		status.Status = "degraded"
		status.Components["store"] = "unreachable"
	} else {
		status.Components["store"] = "ok"
	}

	if a.hist == nil {
		status.Components["history"] = "disabled"
	} else {
		status.Components["history"] = "ok"
	}

	return status
}

func (a *App) Close() {
	if a.fsw != nil {
		if err := a.fsw.Close(); err != nil {
			slog.Warn("failed to close watcher", "error", err)
		}
	}
	if a.obs != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.obs.Stop(ctx); err != nil {
			slog.Warn("failed to stop observability server", "error", err)
		}
	}
	if a.hist != nil {
		if err := a.hist.Close(); err != nil {
			slog.Warn("failed to close run history", "error", err)
		}
	}
}
