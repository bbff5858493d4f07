package store

import (
	"context"

	"assetgate/internal/canonical"
)

// Store is the read-only view of the destination content store. The checker
// never writes through it; retry and backoff for flaky backends belong to
// the implementation, not the callers.
type Store interface {
	// Exists reports whether the store already holds the file at key.
	Exists(ctx context.Context, key canonical.Key) (bool, error)
	// IdentifierAt returns the identifier the store assigned to key, if any.
	IdentifierAt(ctx context.Context, key canonical.Key) (string, bool, error)
	// PathForIdentifier resolves id to the store path declaring it, if any.
	PathForIdentifier(ctx context.Context, id string) (canonical.Key, bool, error)
}
