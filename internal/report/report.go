package report

import (
	"time"

	"assetgate/internal/canonical"
	"assetgate/internal/closure"
	"assetgate/internal/registry"
)

// Failure is one file whose content could not be fully read or parsed. The
// run carried on; the message is what the run kept of the error.
type Failure struct {
	Path    canonical.Key       `json:"path"`
	Status  closure.ParseStatus `json:"status"`
	Message string              `json:"message"`
}

// HeavyDependent flags a file with an outgoing reference count over the
// configured threshold. Advisory only.
type HeavyDependent struct {
	Path     canonical.Key `json:"path"`
	RefCount int           `json:"ref_count"`
}

type Stats struct {
	CandidateFiles int           `json:"candidate_files"`
	ResolvedAssets int           `json:"resolved_assets"`
	StoreAssets    int           `json:"store_assets"`
	Rounds         int           `json:"rounds"`
	BuiltinRefs    int           `json:"builtin_refs"`
	Duration       time.Duration `json:"duration"`
}

// Report is the single structured result of one consistency run. It is built
// once, owned by the caller afterwards, and never mutated.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	// Partial means cancellation stopped the run between expansion rounds.
	// A partial report must never be treated as clean.
	Partial bool `json:"partial"`

	MissingDependencies  []canonical.Key     `json:"missing_dependencies"`
	UnresolvedReferences []closure.Reference `json:"unresolved_references"`
	IdentifierConflicts  []registry.Conflict `json:"identifier_conflicts"`
	ParseFailures        []Failure           `json:"parse_failures"`
	MissingMeta          []canonical.Key     `json:"missing_meta"`
	OrphanCandidates     []canonical.Key     `json:"orphan_candidates"`
	HeavyDependents      []HeavyDependent    `json:"heavy_dependents"`

	Stats Stats `json:"stats"`
}

// Clean reports whether the batch is safe to transfer as-is. Advisory
// findings (orphans, heavy dependents) do not block; a partial run does.
func (r *Report) Clean() bool {
	return !r.Partial &&
		len(r.MissingDependencies) == 0 &&
		len(r.UnresolvedReferences) == 0 &&
		len(r.IdentifierConflicts) == 0 &&
		len(r.ParseFailures) == 0 &&
		len(r.MissingMeta) == 0
}

// FindingCount counts the blocking findings.
func (r *Report) FindingCount() int {
	return len(r.MissingDependencies) +
		len(r.UnresolvedReferences) +
		len(r.IdentifierConflicts) +
		len(r.ParseFailures) +
		len(r.MissingMeta)
}
