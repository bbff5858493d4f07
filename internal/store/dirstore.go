package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"assetgate/internal/canonical"
	"assetgate/internal/core/errors"
	"assetgate/internal/extract"
)

const metaCacheSize = 4096

// DirStore serves store lookups from a directory tree, typically a git
// working copy of the destination repository. The tree is never indexed up
// front: identifier lookups advance a progressive walk over meta files and
// stop as soon as the wanted identifier turns up, so small batches against
// large stores stay cheap.
type DirStore struct {
	root    string
	norm    *canonical.Normalizer
	loc     *canonical.Locator
	exclude []glob.Glob
	limiter *rate.Limiter

	mu        sync.Mutex
	idIndex   map[string]canonical.Key
	pending   []string
	exhausted bool

	metaCache *lru.Cache[canonical.Key, string]
}

// NewDirStore opens a store rooted at root. Exclude patterns use glob
// syntax and match path segments relative to the root. readsPerSecond
// bounds the progressive meta scan; zero disables the limit. foldCase must
// match the candidate side so both sides of the boundary produce the same
// Key for the same relative path.
func NewDirStore(root string, excludePatterns []string, readsPerSecond float64, foldCase bool) (*DirStore, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreUnavailable, "store root unreadable")
	}
	if !info.IsDir() {
		return nil, errors.New(errors.CodeValidationError, "store root is not a directory")
	}

	globs := make([]glob.Glob, 0, len(excludePatterns))
	for _, p := range excludePatterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, "invalid store exclude pattern "+p)
		}
		globs = append(globs, g)
	}

	cache, err := lru.New[canonical.Key, string](metaCacheSize)
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if readsPerSecond > 0 {
		// Token bucket over meta reads keeps a cold scan of a large store
		// from starving the batch's own file reads.
		burst := int(readsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(readsPerSecond), burst)
	}

	return &DirStore{
		root:      filepath.Clean(root),
		norm:      canonical.NewNormalizer(root, foldCase),
		loc:       canonical.NewLocator(root, foldCase),
		exclude:   globs,
		limiter:   limiter,
		idIndex:   make(map[string]canonical.Key),
		pending:   []string{filepath.Clean(root)},
		metaCache: cache,
	}, nil
}

func (s *DirStore) Exists(ctx context.Context, key canonical.Key) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.join(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrap(err, errors.CodeStoreUnavailable, "store stat failed")
}

func (s *DirStore) IdentifierAt(ctx context.Context, key canonical.Key) (string, bool, error) {
	if id, ok := s.metaCache.Get(key); ok {
		return id, id != "", nil
	}

	id, err := s.readMeta(ctx, s.join(key)+".meta")
	if err != nil {
		if os.IsNotExist(err) {
			s.metaCache.Add(key, "")
			return "", false, nil
		}
		return "", false, err
	}
	s.metaCache.Add(key, id)
	return id, id != "", nil
}

// PathForIdentifier answers from what the walk has already seen, then keeps
// walking until the identifier turns up or the tree is exhausted.
func (s *DirStore) PathForIdentifier(ctx context.Context, id string) (canonical.Key, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key, ok := s.idIndex[id]; ok {
		return key, true, nil
	}
	if s.exhausted {
		return "", false, nil
	}
	return s.scanForLocked(ctx, id)
}

// scanForLocked advances the progressive walk one directory at a time. Every
// meta file it passes lands in the index, so later lookups start further in.
func (s *DirStore) scanForLocked(ctx context.Context, want string) (canonical.Key, bool, error) {
	for len(s.pending) > 0 {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}

		dir := s.pending[0]
		s.pending = s.pending[1:]

		entries, err := os.ReadDir(dir)
		if err != nil {
			if dir == s.root {
				return "", false, errors.Wrap(err, errors.CodeStoreUnavailable, "store root unreadable")
			}
			slog.Debug("skipping unreadable store directory", "dir", dir, "error", err)
			continue
		}

		found := false
		for _, entry := range entries {
			full := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				if !s.excluded(entry.Name(), full) {
					s.pending = append(s.pending, full)
				}
				continue
			}
			if !strings.HasSuffix(strings.ToLower(entry.Name()), ".meta") {
				continue
			}

			id, err := s.readMeta(ctx, full)
			if err != nil || id == "" {
				continue
			}
			key := s.norm.Canonicalize(strings.TrimSuffix(full, filepath.Ext(full)))
			if _, taken := s.idIndex[id]; !taken {
				s.idIndex[id] = key
			}
			s.metaCache.Add(key, id)
			if id == want {
				found = true
			}
		}
		if found {
			return s.idIndex[want], true, nil
		}
	}

	s.exhausted = true
	return "", false, nil
}

func (s *DirStore) readMeta(ctx context.Context, path string) (string, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	id, err := extract.ParseMeta(content)
	if err != nil {
		// A store meta without a guid is the store's problem, not a batch
		// finding; it just cannot answer identifier lookups.
		return "", nil
	}
	return id, nil
}

func (s *DirStore) join(key canonical.Key) string {
	return s.loc.Physical(key)
}

func (s *DirStore) excluded(name, full string) bool {
	rel := string(s.norm.Canonicalize(full))
	for _, g := range s.exclude {
		if g.Match(name) || g.Match(rel) {
			return true
		}
	}
	return false
}
