package checker

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"assetgate/internal/canonical"
	"assetgate/internal/closure"
	"assetgate/internal/core/errors"
	"assetgate/internal/extract"
	"assetgate/internal/registry"
	"assetgate/internal/report"
	"assetgate/internal/shared/observability"
	"assetgate/internal/store"
)

type Options struct {
	// ProjectRoot anchors path canonicalization for the candidate side.
	ProjectRoot string
	// FoldCase treats path spellings case-insensitively. On by default via
	// config; asset projects usually originate on case-insensitive disks.
	FoldCase bool
	// Workers bounds the extraction pool. Zero means GOMAXPROCS.
	Workers int
	// HeavyRefThreshold flags files with more outgoing references than this.
	// Zero disables the advisory.
	HeavyRefThreshold int
	// OnStage, when set, receives coarse progress notifications.
	OnStage func(stage string)
}

// Checker runs one consistency analysis per Run call. All per-run state
// (registry, visited set) is created inside Run and discarded with the
// report; a Checker holds nothing mutable across runs.
type Checker struct {
	opts Options
	st   store.Store
	norm *canonical.Normalizer
	ext  *extract.Extractor
	src  *fsSource
}

func New(st store.Store, opts Options) *Checker {
	if opts.Workers < 1 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	norm := canonical.NewNormalizer(opts.ProjectRoot, opts.FoldCase)
	return &Checker{
		opts: opts,
		st:   st,
		norm: norm,
		ext:  extract.New(norm),
		src:  newFSSource(opts.ProjectRoot, opts.FoldCase),
	}
}

// candidateResult carries one candidate's extraction from a worker to the
// aggregation goroutine.
type candidateResult struct {
	key      canonical.Key
	kind     extract.Kind
	declared string
	hasMeta  bool
	res      extract.Result
	readErr  error
}

// Run executes the full pipeline: canonicalize and dedup the candidate
// list, extract candidates in parallel, build the identifier registry,
// expand the closure, assemble the report. Per-file problems become report
// findings; the only error returned is an orchestration-level failure such
// as the store becoming unreachable.
func (c *Checker) Run(ctx context.Context, candidatePaths []string) (*report.Report, error) {
	started := time.Now()
	rep := &report.Report{
		RunID:       uuid.NewString(),
		GeneratedAt: started.UTC(),
	}

	c.stage("canonicalize")
	keys := c.dedupCandidates(candidatePaths)
	rep.Stats.CandidateFiles = len(keys)

	c.stage("extract")
	results, err := c.extractCandidates(ctx, keys)
	if err != nil {
		return nil, err
	}

	c.stage("registry")
	reg := registry.New()
	seeds, err := c.buildRegistry(ctx, reg, results, rep)
	if err != nil {
		return nil, err
	}

	c.stage("closure")
	builder := closure.NewBuilder(c.ext, reg, c.st, c.src, c.opts.Workers)
	outcome, err := builder.CloseOver(ctx, seeds)
	if err != nil {
		if ctx.Err() != nil {
			// Store lookups surface cancellation as an error; the round
			// boundary check usually wins, this is the narrow race.
			outcome = &closure.Outcome{Resolved: map[canonical.Key]*closure.Asset{}, Partial: true}
		} else {
			return nil, errors.Wrap(err, errors.CodeStoreUnavailable, "closure expansion failed")
		}
	}

	c.stage("report")
	c.assemble(rep, reg, outcome, time.Since(started))
	if ctx.Err() != nil {
		rep.Partial = true
	}
	c.observe(rep)
	return rep, nil
}

func (c *Checker) stage(name string) {
	if c.opts.OnStage != nil {
		c.opts.OnStage(name)
	}
	slog.Debug("checker stage", "stage", name)
}

// dedupCandidates folds every spelling into canonical keys exactly once at
// the point of ingestion. Sidecar meta paths collapse onto their base
// asset, matching how selections arrive from file pickers that include
// both. Downstream stages never re-filter duplicates.
func (c *Checker) dedupCandidates(paths []string) []canonical.Key {
	set := canonical.NewKeySet()
	for _, p := range paths {
		if trimmed := strings.TrimSuffix(p, ".meta"); trimmed != p {
			p = trimmed
		}
		if strings.TrimSpace(p) == "" {
			continue
		}
		set.Add(c.norm.Canonicalize(p))
	}
	return set.Keys()
}

// extractCandidates runs the bounded worker pool. Workers only read and
// extract; all merging happens on the receiving side of the channel.
func (c *Checker) extractCandidates(ctx context.Context, keys []canonical.Key) ([]candidateResult, error) {
	out := make(chan candidateResult, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)

	for _, key := range keys {
		g.Go(func() error {
			r := candidateResult{key: key, kind: extract.KindForPath(string(key))}
			r.declared, r.hasMeta = c.src.DeclaredIdentifier(gctx, key)

			timer := time.Now()
			content, err := c.src.Load(gctx, key)
			if err != nil {
				r.readErr = err
			} else {
				r.res = c.ext.Extract(content, r.kind)
			}
			observability.ExtractionDuration.WithLabelValues(string(r.kind)).Observe(time.Since(timer).Seconds())

			select {
			case out <- r:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return nil, err
	}
	close(out)

	results := make([]candidateResult, 0, len(keys))
	for r := range out {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].key < results[j].key })
	return results, nil
}

// buildRegistry is the serialized merge: one goroutine walks the extraction
// results, records parse failures, registers identifiers, and probes the
// store for cross-namespace collisions. Conflict membership is independent
// of worker completion order because the registry orders each pair by
// canonical path.
func (c *Checker) buildRegistry(ctx context.Context, reg *registry.Registry, results []candidateResult, rep *report.Report) ([]closure.Seed, error) {
	seeds := make([]closure.Seed, 0, len(results))

	for _, r := range results {
		// Cancellation turns read errors into noise; the closure stage will
		// mark the run partial, so stop merging instead of misreporting.
		if ctx.Err() != nil {
			return seeds, nil
		}
		asset := closure.Asset{
			Key:        r.key,
			Identifier: r.declared,
			Kind:       r.kind,
			Set:        closure.SetCandidate,
			Status:     closure.StatusOK,
		}

		switch {
		case r.readErr != nil:
			asset.Status = closure.StatusUnreadable
			rep.ParseFailures = append(rep.ParseFailures, report.Failure{
				Path: r.key, Status: closure.StatusUnreadable, Message: r.readErr.Error(),
			})
		case r.res.Err != nil:
			asset.Status = closure.StatusParseError
			rep.ParseFailures = append(rep.ParseFailures, report.Failure{
				Path: r.key, Status: closure.StatusParseError, Message: r.res.Err.Error(),
			})
		}

		if !r.hasMeta {
			rep.MissingMeta = append(rep.MissingMeta, r.key)
		}

		if r.declared != "" {
			reg.Insert(registry.NamespaceCandidate, r.declared, r.key)

			// The uniqueness guarantee runs against the destination too: a
			// store binding for the same identifier at a different path is
			// the collision the transfer would create.
			storeKey, ok, err := c.st.PathForIdentifier(ctx, r.declared)
			observability.StoreLookupsTotal.WithLabelValues("path_for_identifier").Inc()
			if err != nil {
				if ctx.Err() != nil {
					return seeds, nil
				}
				return nil, errors.Wrap(err, errors.CodeStoreUnavailable, "store identifier lookup failed")
			}
			if ok {
				reg.Insert(registry.NamespaceStore, r.declared, storeKey)
			}
		}

		seeds = append(seeds, closure.Seed{Asset: asset, Extraction: r.res})
	}
	return seeds, nil
}

func (c *Checker) assemble(rep *report.Report, reg *registry.Registry, outcome *closure.Outcome, elapsed time.Duration) {
	rep.Partial = outcome.Partial
	rep.MissingDependencies = outcome.Missing
	rep.UnresolvedReferences = outcome.Unresolved
	rep.IdentifierConflicts = reg.Conflicts()

	for _, f := range outcome.ParseFailures {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		rep.ParseFailures = append(rep.ParseFailures, report.Failure{Path: f.Key, Status: f.Status, Message: msg})
	}
	sort.Slice(rep.ParseFailures, func(i, j int) bool { return rep.ParseFailures[i].Path < rep.ParseFailures[j].Path })

	for key, asset := range outcome.Resolved {
		if asset.Set != closure.SetCandidate || !isLeafKind(asset.Kind) {
			continue
		}
		if outcome.InboundCount[key] == 0 {
			rep.OrphanCandidates = append(rep.OrphanCandidates, key)
		}
	}
	sort.Slice(rep.OrphanCandidates, func(i, j int) bool { return rep.OrphanCandidates[i] < rep.OrphanCandidates[j] })

	if c.opts.HeavyRefThreshold > 0 {
		for key, n := range outcome.OutboundCount {
			if n > c.opts.HeavyRefThreshold {
				rep.HeavyDependents = append(rep.HeavyDependents, report.HeavyDependent{Path: key, RefCount: n})
			}
		}
		sort.Slice(rep.HeavyDependents, func(i, j int) bool { return rep.HeavyDependents[i].Path < rep.HeavyDependents[j].Path })
	}

	storeAssets := 0
	for _, a := range outcome.Resolved {
		if a.Set == closure.SetStore {
			storeAssets++
		}
	}
	rep.Stats.ResolvedAssets = len(outcome.Resolved)
	rep.Stats.StoreAssets = storeAssets
	rep.Stats.Rounds = outcome.Rounds
	rep.Stats.BuiltinRefs = outcome.BuiltinRefs
	rep.Stats.Duration = elapsed
}

func (c *Checker) observe(rep *report.Report) {
	observability.CheckDuration.Observe(rep.Stats.Duration.Seconds())
	observability.ClosureRounds.Observe(float64(rep.Stats.Rounds))
	observability.ClosureSize.Set(float64(rep.Stats.ResolvedAssets))

	observability.FindingsTotal.WithLabelValues("missing_dependency").Add(float64(len(rep.MissingDependencies)))
	observability.FindingsTotal.WithLabelValues("unresolved_reference").Add(float64(len(rep.UnresolvedReferences)))
	observability.FindingsTotal.WithLabelValues("identifier_conflict").Add(float64(len(rep.IdentifierConflicts)))
	observability.FindingsTotal.WithLabelValues("parse_failure").Add(float64(len(rep.ParseFailures)))

	switch {
	case rep.Partial:
		observability.RunsTotal.WithLabelValues("partial").Inc()
	case rep.Clean():
		observability.RunsTotal.WithLabelValues("clean").Inc()
	default:
		observability.RunsTotal.WithLabelValues("findings").Inc()
	}
}

// isLeafKind marks kinds that are normally referenced by something else; a
// batch shipping one nothing points at deserves a second look.
func isLeafKind(k extract.Kind) bool {
	return k == extract.KindBinary || k == extract.KindMaterial
}
