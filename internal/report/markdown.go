package report

import (
	"fmt"
	"strings"
	"time"
)

type MarkdownOptions struct {
	ProjectName string
	Version     string
}

type MarkdownGenerator struct{}

func NewMarkdownGenerator() *MarkdownGenerator {
	return &MarkdownGenerator{}
}

func (m *MarkdownGenerator) Generate(r *Report, opts MarkdownOptions) (string, error) {
	var b strings.Builder

	b.WriteString("---\n")
	b.WriteString("title: Batch Consistency Report\n")
	b.WriteString("project: " + nonEmpty(opts.ProjectName, "unknown") + "\n")
	b.WriteString("run_id: " + r.RunID + "\n")
	b.WriteString("generated_at: " + r.GeneratedAt.UTC().Format(time.RFC3339) + "\n")
	b.WriteString("version: " + nonEmpty(opts.Version, "unknown") + "\n")
	b.WriteString("---\n\n")

	b.WriteString("# Batch Consistency Report\n\n")
	if r.Partial {
		b.WriteString("> **Partial run.** Cancellation stopped expansion early; absence of findings below proves nothing.\n\n")
	}

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- Candidate files: %d\n", r.Stats.CandidateFiles)
	fmt.Fprintf(&b, "- Closure size: %d (%d already in store)\n", r.Stats.ResolvedAssets, r.Stats.StoreAssets)
	fmt.Fprintf(&b, "- Expansion rounds: %d\n", r.Stats.Rounds)
	fmt.Fprintf(&b, "- Built-in engine references: %d\n", r.Stats.BuiltinRefs)
	fmt.Fprintf(&b, "- Blocking findings: %d\n", r.FindingCount())
	if r.Clean() {
		b.WriteString("- Verdict: **clean**\n")
	} else {
		b.WriteString("- Verdict: **not transferable as-is**\n")
	}
	b.WriteString("\n")

	if len(r.MissingDependencies) > 0 {
		b.WriteString("## Missing Dependencies\n\n")
		b.WriteString("Reachable from the batch, present in neither the batch nor the store.\n\n")
		for _, k := range r.MissingDependencies {
			fmt.Fprintf(&b, "- `%s`\n", k)
		}
		b.WriteString("\n")
	}

	if len(r.UnresolvedReferences) > 0 {
		b.WriteString("## Unresolved References\n\n")
		b.WriteString("| Source | Type | Target |\n|---|---|---|\n")
		for _, ref := range r.UnresolvedReferences {
			fmt.Fprintf(&b, "| `%s` | %s | `%s` |\n", ref.Source, ref.Type, ref.Target)
		}
		b.WriteString("\n")
	}

	if len(r.IdentifierConflicts) > 0 {
		b.WriteString("## Identifier Conflicts\n\n")
		b.WriteString("| Identifier | Scope | Path A | Path B |\n|---|---|---|---|\n")
		for _, c := range r.IdentifierConflicts {
			fmt.Fprintf(&b, "| `%s` | %s | `%s` | `%s` |\n", c.Identifier, c.Scope, c.PathA, c.PathB)
		}
		b.WriteString("\n")
	}

	if len(r.ParseFailures) > 0 {
		b.WriteString("## Parse Failures\n\n")
		for _, f := range r.ParseFailures {
			fmt.Fprintf(&b, "- `%s` (%s): %s\n", f.Path, f.Status, f.Message)
		}
		b.WriteString("\n")
	}

	if len(r.MissingMeta) > 0 {
		b.WriteString("## Candidates Without Meta\n\n")
		b.WriteString("The store cannot assign an identifier to these files.\n\n")
		for _, k := range r.MissingMeta {
			fmt.Fprintf(&b, "- `%s`\n", k)
		}
		b.WriteString("\n")
	}

	if len(r.OrphanCandidates) > 0 {
		b.WriteString("## Possibly Orphaned Candidates\n\n")
		b.WriteString("Leaf assets in the batch that nothing in the closure references.\n\n")
		for _, k := range r.OrphanCandidates {
			fmt.Fprintf(&b, "- `%s`\n", k)
		}
		b.WriteString("\n")
	}

	if len(r.HeavyDependents) > 0 {
		b.WriteString("## Heavy Dependents\n\n")
		for _, h := range r.HeavyDependents {
			fmt.Fprintf(&b, "- `%s` carries %d outgoing references\n", h.Path, h.RefCount)
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}

func nonEmpty(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
