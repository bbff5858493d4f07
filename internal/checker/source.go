package checker

import (
	"context"
	"os"
	"path/filepath"

	"assetgate/internal/canonical"
	"assetgate/internal/extract"
)

// fsSource reads candidate-side files relative to the project root. Keys
// are folded identities, not physical spellings, so every read goes through
// the Locator to recover the on-disk casing.
type fsSource struct {
	root string
	loc  *canonical.Locator
}

func newFSSource(root string, foldCase bool) *fsSource {
	return &fsSource{
		root: filepath.Clean(root),
		loc:  canonical.NewLocator(root, foldCase),
	}
}

func (s *fsSource) path(key canonical.Key) string {
	return s.loc.Physical(key)
}

func (s *fsSource) Exists(key canonical.Key) bool {
	info, err := os.Stat(s.path(key))
	return err == nil && !info.IsDir()
}

func (s *fsSource) Load(ctx context.Context, key canonical.Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(s.path(key))
}

func (s *fsSource) DeclaredIdentifier(ctx context.Context, key canonical.Key) (string, bool) {
	if err := ctx.Err(); err != nil {
		return "", false
	}
	content, err := os.ReadFile(s.path(key) + ".meta")
	if err != nil {
		return "", false
	}
	id, err := extract.ParseMeta(content)
	if err != nil {
		return "", false
	}
	return id, true
}
