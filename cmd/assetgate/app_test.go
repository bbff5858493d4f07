package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"assetgate/internal/config"
)

func writeAsset(t *testing.T, dir, name, guid string) {
	t.Helper()
	content := "%YAML 1.1\n--- !u!21 &2100000\nMaterial:\n  m_Name: " + name + "\n"
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	meta := "fileFormatVersion: 2\nguid: " + guid + "\n"
	if err := os.WriteFile(filepath.Join(dir, name+".meta"), []byte(meta), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestApp(t *testing.T) {
	projectDir := t.TempDir()
	storeDir := t.TempDir()

	writeAsset(t, projectDir, "Floor.mat", "0123456789abcdef0123456789abcdef")
	// Editor droppings must not enter the batch.
	if err := os.WriteFile(filepath.Join(projectDir, "notes.txt"), []byte("scratch"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Project = "apptest"
	cfg.Paths.ProjectRoot = projectDir
	cfg.Paths.StoreRoot = storeDir
	cfg.Output.Dir = filepath.Join(projectDir, "reports")
	cfg.Output.Formats = []string{"markdown", "tsv", "json"}
	cfg.History.Enabled = true
	cfg.History.Path = filepath.Join(projectDir, "history.db")

	app, err := NewApp(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close()

	if err := app.CollectCandidates([]string{projectDir}); err != nil {
		t.Fatal(err)
	}
	// floor.mat plus its meta sidecar.
	if got := len(app.candidates); got != 2 {
		t.Errorf("expected 2 candidate files, got %d", got)
	}

	rep, err := app.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Clean() {
		t.Errorf("expected clean report, got %d findings", rep.FindingCount())
	}

	for _, name := range []string{"consistency-report.md", "consistency-report.tsv", "consistency-report.json"} {
		if _, err := os.Stat(filepath.Join(cfg.Output.Dir, name)); os.IsNotExist(err) {
			t.Errorf("%s was not generated", name)
		}
	}

	runs, err := app.hist.RecentRuns("apptest", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 recorded run, got %d", len(runs))
	}
	if runs[0].RunID != rep.RunID {
		t.Errorf("recorded run id %q does not match report %q", runs[0].RunID, rep.RunID)
	}
}

func TestAppRequiresStoreRoot(t *testing.T) {
	cfg := config.Default()
	if _, err := NewApp(cfg); err == nil {
		t.Fatal("expected error without store_root")
	}
}
