package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"assetgate/internal/history"
	"assetgate/internal/report"

	"github.com/charmbracelet/lipgloss"
)

var (
	blockingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	advisoryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

func (a *App) PrintSummary(r *report.Report) {
	fmt.Println(strings.Repeat("-", 40))
	fmt.Printf("Checked %d candidate files, %d assets in closure (%d rounds) in %v\n",
		r.Stats.CandidateFiles, r.Stats.ResolvedAssets, r.Stats.Rounds, r.Stats.Duration.Round(time.Millisecond))

	if r.Partial {
		fmt.Println(blockingStyle.Render(fmt.Sprintf("⚠️  RUN WAS INTERRUPTED after %d rounds, results are incomplete", r.Stats.Rounds)))
	}

	if len(r.MissingDependencies) > 0 {
		fmt.Println(blockingStyle.Render(fmt.Sprintf("❌ %d MISSING DEPENDENCIES:", len(r.MissingDependencies))))
		for _, k := range r.MissingDependencies {
			fmt.Printf("   %s\n", k)
		}
	} else {
		fmt.Println(successStyle.Render("✅ No missing dependencies."))
	}

	if len(r.UnresolvedReferences) > 0 {
		fmt.Println(blockingStyle.Render(fmt.Sprintf("❓ %d UNRESOLVED REFERENCES:", len(r.UnresolvedReferences))))
		for _, ref := range r.UnresolvedReferences {
			fmt.Printf("   %s referenced from %s\n", ref.Target, ref.Source)
		}
	} else {
		fmt.Println(successStyle.Render("✅ No unresolved references."))
	}

	if len(r.IdentifierConflicts) > 0 {
		fmt.Println(blockingStyle.Render(fmt.Sprintf("⚔️  %d IDENTIFIER CONFLICTS:", len(r.IdentifierConflicts))))
		for _, c := range r.IdentifierConflicts {
			fmt.Printf("   %s (%s): %s vs %s\n", c.Identifier, c.Scope, c.PathA, c.PathB)
		}
	} else {
		fmt.Println(successStyle.Render("✅ No identifier conflicts."))
	}

	if len(r.ParseFailures) > 0 {
		fmt.Println(blockingStyle.Render(fmt.Sprintf("💥 %d FILES COULD NOT BE READ:", len(r.ParseFailures))))
		for _, f := range r.ParseFailures {
			fmt.Printf("   %s (%s)\n", f.Path, f.Status)
		}
	}

	if len(r.MissingMeta) > 0 {
		fmt.Println(blockingStyle.Render(fmt.Sprintf("📎 %d CANDIDATES WITHOUT META SIDECAR:", len(r.MissingMeta))))
		for _, k := range r.MissingMeta {
			fmt.Printf("   %s\n", k)
		}
	}

	if len(r.OrphanCandidates) > 0 {
		fmt.Println(advisoryStyle.Render(fmt.Sprintf("🏝️  %d orphan candidates (nothing in the batch references them):", len(r.OrphanCandidates))))
		for _, k := range r.OrphanCandidates {
			fmt.Printf("   %s\n", k)
		}
	}

	if len(r.HeavyDependents) > 0 {
		fmt.Println(advisoryStyle.Render(fmt.Sprintf("🏋️  %d files with heavy outgoing references:", len(r.HeavyDependents))))
		for _, h := range r.HeavyDependents {
			fmt.Printf("   %s (%d references)\n", h.Path, h.RefCount)
		}
	}

	if r.Clean() {
		fmt.Println(successStyle.Render("Batch is transferable as-is."))
	} else {
		fmt.Println(blockingStyle.Render("Batch is NOT transferable as-is."))
	}
	fmt.Println(statusStyle.Render("run " + r.RunID))
}

func printRunHistory(w io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No recorded runs.")
		return
	}

	fmt.Fprintf(w, "%-36s  %-20s  %-8s  %9s  %8s  %9s\n",
		"RUN", "WHEN", "STATE", "FILES", "MISSING", "CONFLICTS")
	for _, run := range runs {
		state := "clean"
		if run.Partial {
			state = "partial"
		} else if run.Missing+run.Unresolved+run.Conflicts+run.ParseFailures > 0 {
			state = "findings"
		}
		fmt.Fprintf(w, "%-36s  %-20s  %-8s  %9d  %8d  %9d\n",
			run.RunID,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			state,
			run.CandidateFiles,
			run.Missing+run.Unresolved,
			run.Conflicts)
	}
}
