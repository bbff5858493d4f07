package closure

import (
	"context"

	"assetgate/internal/canonical"
	"assetgate/internal/extract"
)

// SetTag records which side of the transfer boundary an asset lives on.
// Unknown means the file was discovered on local disk during expansion but
// belongs to neither the batch nor the store; transferring the batch without
// it would break the closure.
type SetTag string

const (
	SetCandidate SetTag = "candidate"
	SetStore     SetTag = "store"
	SetUnknown   SetTag = "unknown"
)

type ParseStatus string

const (
	StatusOK         ParseStatus = "ok"
	StatusParseError ParseStatus = "parse-error"
	StatusUnreadable ParseStatus = "unreadable"
)

// Asset is one discovered file. Identity is the canonical path; never
// mutated after creation, alive only for the duration of one run.
type Asset struct {
	Key        canonical.Key
	Identifier string
	Kind       extract.Kind
	Set        SetTag
	Status     ParseStatus
}

type RefType string

const (
	RefByIdentifier RefType = "by-identifier"
	RefByPath       RefType = "by-path"
)

// Reference is a directed edge from a source asset to a target that may or
// may not have been located.
type Reference struct {
	Source canonical.Key `json:"source"`
	Type   RefType       `json:"type"`
	Target string        `json:"target"`
}

// ParseFailure is a per-file error that did not abort the run.
type ParseFailure struct {
	Key    canonical.Key
	Status ParseStatus
	Err    error
}

// Seed is a candidate asset with its already-completed extraction, handed to
// the builder so candidate files are never read twice.
type Seed struct {
	Asset      Asset
	Extraction extract.Result
}

// Outcome is the closure result handed back to the checker.
type Outcome struct {
	Resolved      map[canonical.Key]*Asset
	Missing       []canonical.Key
	Unresolved    []Reference
	ParseFailures []ParseFailure
	// InboundCount counts how many distinct sources reference each resolved
	// key; OutboundCount counts each source's outgoing references. Both feed
	// the advisory findings, not the transfer guarantees.
	InboundCount  map[canonical.Key]int
	OutboundCount map[canonical.Key]int
	BuiltinRefs   int
	Rounds        int
	Partial       bool
}

// Source reads files on the candidate side of the boundary. Implementations
// must be safe for concurrent use within one expansion round.
type Source interface {
	Exists(key canonical.Key) bool
	Load(ctx context.Context, key canonical.Key) ([]byte, error)
	DeclaredIdentifier(ctx context.Context, key canonical.Key) (string, bool)
}
