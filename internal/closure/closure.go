package closure

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"assetgate/internal/canonical"
	"assetgate/internal/extract"
	"assetgate/internal/registry"
	"assetgate/internal/store"
)

// Builder expands the transitive reference closure of a candidate batch.
// One Builder serves one run; the visited set and registry it works on are
// owned by the caller and discarded with the outcome.
type Builder struct {
	extractor *extract.Extractor
	reg       *registry.Registry
	st        store.Store
	src       Source
	workers   int
}

func NewBuilder(extractor *extract.Extractor, reg *registry.Registry, st store.Store, src Source, workers int) *Builder {
	if workers < 1 {
		workers = 1
	}
	return &Builder{extractor: extractor, reg: reg, st: st, src: src, workers: workers}
}

// frontierItem pairs an asset awaiting classification of its references with
// that asset's extraction result.
type frontierItem struct {
	asset Asset
	res   extract.Result
}

// CloseOver runs the breadth-first fixpoint. Work within a round runs in
// parallel; rounds are strictly sequential because round N+1's frontier
// depends on round N's discoveries. Cancellation is observed at round
// boundaries only and yields a partial outcome, never an error.
//
// Termination: visited only grows and is bounded by the finite set of
// discoverable files, so a cycle simply contributes no new frontier entry.
func (b *Builder) CloseOver(ctx context.Context, seeds []Seed) (*Outcome, error) {
	out := &Outcome{
		Resolved:      make(map[canonical.Key]*Asset),
		InboundCount:  make(map[canonical.Key]int),
		OutboundCount: make(map[canonical.Key]int),
	}
	visited := canonical.NewKeySet()
	missing := canonical.NewKeySet()

	frontier := make([]frontierItem, 0, len(seeds))
	for _, s := range seeds {
		if !visited.Add(s.Asset.Key) {
			continue
		}
		a := s.Asset
		out.Resolved[a.Key] = &a
		frontier = append(frontier, frontierItem{asset: a, res: s.Extraction})
	}

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			out.Partial = true
			break
		}
		out.Rounds++

		var next []frontierItem
		for _, item := range frontier {
			targets, err := b.classify(ctx, item, out, visited, missing)
			if err != nil {
				return nil, err
			}
			next = append(next, targets...)
		}

		if len(next) == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			out.Partial = true
			break
		}
		discovered, err := b.extractRound(ctx, next, out)
		if err != nil {
			return nil, err
		}
		frontier = discovered
	}

	out.Missing = missing.Keys()
	sort.Slice(out.ParseFailures, func(i, j int) bool {
		return out.ParseFailures[i].Key < out.ParseFailures[j].Key
	})
	sort.Slice(out.Unresolved, func(i, j int) bool {
		if out.Unresolved[i].Source != out.Unresolved[j].Source {
			return out.Unresolved[i].Source < out.Unresolved[j].Source
		}
		return out.Unresolved[i].Target < out.Unresolved[j].Target
	})
	return out, nil
}

// classify walks one asset's references and buckets every target. Returned
// items are newly discovered local files that still need extraction before
// the next round can classify them.
func (b *Builder) classify(ctx context.Context, item frontierItem, out *Outcome, visited, missing *canonical.KeySet) ([]frontierItem, error) {
	src := item.asset
	out.BuiltinRefs += item.res.BuiltinRefs

	// Visitation is keyed by canonical path, never by reference identity: an
	// identifier ref and a path ref naming the same target are one discovery.
	targets := canonical.NewKeySet()
	for _, key := range item.res.PathRefs {
		targets.Add(key)
	}
	for _, id := range item.res.IdentifierRefs {
		if id == src.Identifier {
			continue
		}
		key, ok, err := b.resolveIdentifier(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			out.Unresolved = append(out.Unresolved, Reference{Source: src.Key, Type: RefByIdentifier, Target: id})
			continue
		}
		targets.Add(key)
	}

	var discovered []frontierItem
	for _, key := range targets.Keys() {
		if key == src.Key {
			continue
		}
		out.OutboundCount[src.Key]++
		out.InboundCount[key]++

		if visited.Has(key) {
			continue
		}

		inStore, err := b.st.Exists(ctx, key)
		if err != nil {
			return nil, err
		}
		if inStore {
			visited.Add(key)
			a := &Asset{Key: key, Kind: extract.KindForPath(string(key)), Set: SetStore, Status: StatusOK}
			if id, ok, err := b.st.IdentifierAt(ctx, key); err != nil {
				return nil, err
			} else if ok {
				a.Identifier = id
			}
			out.Resolved[key] = a
			continue
		}

		if b.src.Exists(key) {
			visited.Add(key)
			missing.Add(key)
			item, err := b.discoverLocal(ctx, key)
			if err != nil {
				return nil, err
			}
			out.Resolved[key] = &item.asset
			discovered = append(discovered, item)
			continue
		}

		missing.Add(key)
	}
	return discovered, nil
}

// discoverLocal admits an on-disk file that is in neither the batch nor the
// store. Its declared identifier joins the candidate namespace so later
// identifier references land on it instead of coming up unresolved.
func (b *Builder) discoverLocal(ctx context.Context, key canonical.Key) (frontierItem, error) {
	a := Asset{Key: key, Kind: extract.KindForPath(string(key)), Set: SetUnknown, Status: StatusOK}
	if id, ok := b.src.DeclaredIdentifier(ctx, key); ok {
		a.Identifier = id
		b.reg.Insert(registry.NamespaceCandidate, id, key)
	}
	return frontierItem{asset: a}, nil
}

// resolveIdentifier is candidate-registry first, then the store's lazy
// index. Store answers are cached in the store namespace so each identifier
// is hunted at most once per run.
func (b *Builder) resolveIdentifier(ctx context.Context, id string) (canonical.Key, bool, error) {
	if key, ok := b.reg.Lookup(id); ok {
		return key, true, nil
	}
	key, ok, err := b.st.PathForIdentifier(ctx, id)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	b.reg.Insert(registry.NamespaceStore, id, key)
	return key, true, nil
}

// extractRound reads and extracts the new frontier in parallel. Extraction
// is a pure function of one file's bytes, so workers share nothing; results
// are merged back on the coordinating goroutine.
func (b *Builder) extractRound(ctx context.Context, items []frontierItem, outcome *Outcome) ([]frontierItem, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	var mu sync.Mutex
	extracted := make([]frontierItem, 0, len(items))

	for i := range items {
		item := items[i]
		g.Go(func() error {
			content, err := b.src.Load(gctx, item.asset.Key)
			var res extract.Result
			status := StatusOK
			var failure error
			if err != nil {
				status = StatusUnreadable
				failure = err
			} else {
				res = b.extractor.Extract(content, item.asset.Kind)
				if res.Err != nil {
					status = StatusParseError
					failure = res.Err
				}
			}

			mu.Lock()
			defer mu.Unlock()
			item.asset.Status = status
			item.res = res
			extracted = append(extracted, item)
			if failure != nil {
				outcome.ParseFailures = append(outcome.ParseFailures, ParseFailure{Key: item.asset.Key, Status: status, Err: failure})
				slog.Debug("partial extraction", "path", item.asset.Key, "error", failure)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Deterministic round order regardless of worker completion order, and
	// the frontier copies' status flows back onto the resolved entries.
	sort.Slice(extracted, func(i, j int) bool { return extracted[i].asset.Key < extracted[j].asset.Key })
	for i := range extracted {
		if a, ok := outcome.Resolved[extracted[i].asset.Key]; ok {
			a.Status = extracted[i].asset.Status
		}
	}
	return extracted, nil
}
