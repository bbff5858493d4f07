package report

import (
	"fmt"
	"strings"
)

// TSVGenerator emits one row per finding for spreadsheet triage.
type TSVGenerator struct{}

func NewTSVGenerator() *TSVGenerator {
	return &TSVGenerator{}
}

func (t *TSVGenerator) Generate(r *Report) (string, error) {
	var buf strings.Builder

	buf.WriteString("Category\tPath\tDetail\tExtra\n")

	for _, k := range r.MissingDependencies {
		fmt.Fprintf(&buf, "missing_dependency\t%s\t\t\n", k)
	}
	for _, ref := range r.UnresolvedReferences {
		fmt.Fprintf(&buf, "unresolved_reference\t%s\t%s\t%s\n", ref.Source, ref.Type, ref.Target)
	}
	for _, c := range r.IdentifierConflicts {
		fmt.Fprintf(&buf, "identifier_conflict\t%s\t%s\t%s|%s\n", c.Identifier, c.Scope, c.PathA, c.PathB)
	}
	for _, f := range r.ParseFailures {
		fmt.Fprintf(&buf, "parse_failure\t%s\t%s\t%s\n", f.Path, f.Status, sanitizeTSV(f.Message))
	}
	for _, k := range r.MissingMeta {
		fmt.Fprintf(&buf, "missing_meta\t%s\t\t\n", k)
	}
	for _, k := range r.OrphanCandidates {
		fmt.Fprintf(&buf, "orphan_candidate\t%s\t\t\n", k)
	}
	for _, h := range r.HeavyDependents {
		fmt.Fprintf(&buf, "heavy_dependent\t%s\t%d\t\n", h.Path, h.RefCount)
	}

	return buf.String(), nil
}

func sanitizeTSV(s string) string {
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
