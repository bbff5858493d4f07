package canonical

import (
	"os"
	"path/filepath"
	"strings"
)

// Locator maps Keys back to physical paths under a root. Folded Keys lose
// the on-disk casing, so on case-sensitive file systems a literal join can
// name a file that does not exist; Physical falls back to a per-segment
// case-insensitive match against the directory listing. Unlike Normalizer,
// locating is where identity meets the disk, so it does I/O.
type Locator struct {
	root string
	fold bool
}

func NewLocator(root string, fold bool) *Locator {
	return &Locator{root: filepath.Clean(root), fold: fold}
}

// Physical returns the path to open for key. The result is not guaranteed
// to exist; when nothing matches, the literal join comes back so the
// caller's error names something recognizable.
func (l *Locator) Physical(key Key) string {
	p := filepath.FromSlash(string(key))

	exact := p
	start := string(filepath.Separator)
	segments := strings.Split(string(key), "/")
	if !filepath.IsAbs(p) {
		exact = filepath.Join(l.root, p)
		start = l.root
	} else if len(segments) > 0 && segments[0] == "" {
		segments = segments[1:]
	}

	if !l.fold {
		return exact
	}
	if _, err := os.Lstat(exact); err == nil {
		return exact
	}

	cur := start
	for _, seg := range segments {
		next := filepath.Join(cur, seg)
		if _, err := os.Lstat(next); err == nil {
			cur = next
			continue
		}
		entries, err := os.ReadDir(cur)
		if err != nil {
			return exact
		}
		match := ""
		for _, e := range entries {
			if strings.EqualFold(e.Name(), seg) {
				match = e.Name()
				break
			}
		}
		if match == "" {
			return exact
		}
		cur = filepath.Join(cur, match)
	}
	return cur
}
