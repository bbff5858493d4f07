package canonical

import (
	"path"
	"sort"
	"strings"
)

// Key is a normalized path string. Two spellings of the same file always
// produce the same Key, so Keys are the only identity used for set
// membership and deduplication.
type Key string

// Normalizer turns raw path spellings into Keys. It is pure: no stat calls,
// no symlink resolution, the named file does not need to exist.
type Normalizer struct {
	root     string
	foldCase bool
}

// NewNormalizer builds a Normalizer anchored at projectRoot. Paths inside the
// root are keyed relative to it; paths outside keep their absolute form.
// foldCase should be true when the underlying file system is
// case-insensitive, which is the common case for asset projects.
func NewNormalizer(projectRoot string, foldCase bool) *Normalizer {
	n := &Normalizer{foldCase: foldCase}
	n.root = n.scrub(projectRoot)
	return n
}

// Canonicalize maps a raw path to its Key. Idempotent: feeding a Key's
// string form back in yields the same Key.
func (n *Normalizer) Canonicalize(raw string) Key {
	p := n.scrub(raw)
	if n.root != "" {
		if p == n.root {
			return Key(".")
		}
		if strings.HasPrefix(p, n.root+"/") {
			p = strings.TrimPrefix(p, n.root+"/")
		}
	}
	return Key(p)
}

func (n *Normalizer) scrub(raw string) string {
	s := strings.TrimSpace(strings.ReplaceAll(raw, "\\", "/"))
	if s == "" {
		return ""
	}
	s = path.Clean(s)
	if s == "." {
		return ""
	}
	s = strings.TrimPrefix(s, "./")
	if n.foldCase {
		s = strings.ToLower(s)
	}
	return s
}

// KeySet is the single dedup primitive: insert-if-absent over Keys.
type KeySet struct {
	members map[Key]struct{}
}

func NewKeySet() *KeySet {
	return &KeySet{members: make(map[Key]struct{})}
}

// Add inserts k and reports whether it was newly added.
func (s *KeySet) Add(k Key) bool {
	if _, ok := s.members[k]; ok {
		return false
	}
	s.members[k] = struct{}{}
	return true
}

func (s *KeySet) Has(k Key) bool {
	_, ok := s.members[k]
	return ok
}

func (s *KeySet) Len() int {
	return len(s.members)
}

// Keys returns the members in sorted order.
func (s *KeySet) Keys() []Key {
	out := make([]Key, 0, len(s.members))
	for k := range s.members {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
