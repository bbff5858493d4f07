package report

import (
	"strings"
	"testing"
	"time"

	"assetgate/internal/canonical"
	"assetgate/internal/closure"
	"assetgate/internal/registry"
)

func sampleReport() *Report {
	return &Report{
		RunID:               "0d6f1c9e-0000-0000-0000-000000000000",
		GeneratedAt:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		MissingDependencies: []canonical.Key{"textures/gone.png"},
		UnresolvedReferences: []closure.Reference{
			{Source: "prefabs/body.prefab", Type: closure.RefByIdentifier, Target: "deadbeefdeadbeefdeadbeefdeadbeef"},
		},
		IdentifierConflicts: []registry.Conflict{
			{Identifier: "aabbccddaabbccddaabbccddaabbccdd", Scope: registry.ScopeCross, PathA: "mats/a.mat", PathB: "mats/b.mat"},
		},
		ParseFailures: []Failure{
			{Path: "broken.asset", Status: closure.StatusParseError, Message: "unrecognized asset format"},
		},
		Stats: Stats{CandidateFiles: 4, ResolvedAssets: 6, StoreAssets: 2, Rounds: 3},
	}
}

func TestClean(t *testing.T) {
	r := &Report{}
	if !r.Clean() {
		t.Error("empty report should be clean")
	}

	r.Partial = true
	if r.Clean() {
		t.Error("a partial report must never be treated as clean")
	}

	r = &Report{OrphanCandidates: []canonical.Key{"a.png"}}
	if !r.Clean() {
		t.Error("advisory findings must not block")
	}

	if sampleReport().Clean() {
		t.Error("report with findings cannot be clean")
	}
}

func TestMarkdown_SectionsAndVerdict(t *testing.T) {
	out, err := NewMarkdownGenerator().Generate(sampleReport(), MarkdownOptions{ProjectName: "art-pack"})
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		"project: art-pack",
		"## Missing Dependencies",
		"textures/gone.png",
		"## Unresolved References",
		"deadbeefdeadbeefdeadbeefdeadbeef",
		"## Identifier Conflicts",
		"batch-vs-store",
		"## Parse Failures",
		"not transferable as-is",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown output missing %q", want)
		}
	}
}

func TestMarkdown_PartialBanner(t *testing.T) {
	r := sampleReport()
	r.Partial = true
	out, err := NewMarkdownGenerator().Generate(r, MarkdownOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Partial run") {
		t.Error("partial reports must be explicitly marked")
	}
}

func TestTSV_OneRowPerFinding(t *testing.T) {
	out, err := NewTSVGenerator().Generate(sampleReport())
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	// Header plus four findings.
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[1], "missing_dependency\t") {
		t.Errorf("unexpected first row: %s", lines[1])
	}
}
