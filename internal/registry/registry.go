package registry

import (
	"sort"

	"assetgate/internal/canonical"
)

// Namespace separates the batch under review from the destination store.
type Namespace string

const (
	NamespaceCandidate Namespace = "candidate"
	NamespaceStore     Namespace = "store"
)

// ConflictScope distinguishes the two remediation classes: intra-batch means
// the source content duplicates an identifier, cross means the upload would
// collide with content already in the store.
type ConflictScope string

const (
	ScopeIntra ConflictScope = "intra-batch"
	ScopeCross ConflictScope = "batch-vs-store"
)

// Conflict is one identifier bound to two different canonical paths. PathA
// and PathB are ordered by canonical-path comparison so the pair is the same
// value regardless of which binding arrived first.
type Conflict struct {
	Identifier string        `json:"identifier"`
	Scope      ConflictScope `json:"scope"`
	PathA      canonical.Key `json:"path_a"`
	PathB      canonical.Key `json:"path_b"`
}

type conflictKey struct {
	id    string
	scope ConflictScope
	a, b  canonical.Key
}

// Registry maps identifiers to canonical paths in two namespaces. It is not
// safe for concurrent use; the checker owns one instance per run and feeds
// it from a single aggregation goroutine.
type Registry struct {
	candidate map[string]canonical.Key
	store     map[string]canonical.Key
	conflicts map[conflictKey]Conflict
}

func New() *Registry {
	return &Registry{
		candidate: make(map[string]canonical.Key),
		store:     make(map[string]canonical.Key),
		conflicts: make(map[conflictKey]Conflict),
	}
}

// Insert binds id to path in ns. Re-inserting the same binding is a no-op.
// A different path for an already-bound id records an intra-namespace
// conflict and keeps the existing binding. Either way the other namespace is
// checked for a cross conflict. Reports whether a new conflict was recorded.
func (r *Registry) Insert(ns Namespace, id string, path canonical.Key) bool {
	if id == "" {
		return false
	}
	own := r.namespace(ns)
	conflicted := false

	if existing, ok := own[id]; ok {
		if existing != path {
			conflicted = r.record(id, ScopeIntra, existing, path) || conflicted
		}
	} else {
		own[id] = path
	}

	other := r.candidate
	if ns == NamespaceCandidate {
		other = r.store
	}
	if theirs, ok := other[id]; ok && theirs != own[id] {
		conflicted = r.record(id, ScopeCross, own[id], theirs) || conflicted
	}
	return conflicted
}

// Lookup resolves id candidate-first: the batch under review is the
// operation's subject, so its binding wins over the store's.
func (r *Registry) Lookup(id string) (canonical.Key, bool) {
	if p, ok := r.candidate[id]; ok {
		return p, true
	}
	if p, ok := r.store[id]; ok {
		return p, true
	}
	return "", false
}

// CandidateIdentifiers returns the ids bound in the candidate namespace,
// sorted.
func (r *Registry) CandidateIdentifiers() []string {
	ids := make([]string, 0, len(r.candidate))
	for id := range r.candidate {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Conflicts returns all recorded conflicts sorted by identifier, then scope.
func (r *Registry) Conflicts() []Conflict {
	out := make([]Conflict, 0, len(r.conflicts))
	for _, c := range r.conflicts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Identifier != out[j].Identifier {
			return out[i].Identifier < out[j].Identifier
		}
		if out[i].Scope != out[j].Scope {
			return out[i].Scope < out[j].Scope
		}
		return out[i].PathA < out[j].PathA
	})
	return out
}

func (r *Registry) namespace(ns Namespace) map[string]canonical.Key {
	if ns == NamespaceStore {
		return r.store
	}
	return r.candidate
}

func (r *Registry) record(id string, scope ConflictScope, a, b canonical.Key) bool {
	if b < a {
		a, b = b, a
	}
	k := conflictKey{id: id, scope: scope, a: a, b: b}
	if _, seen := r.conflicts[k]; seen {
		return false
	}
	r.conflicts[k] = Conflict{Identifier: id, Scope: scope, PathA: a, PathB: b}
	return true
}
