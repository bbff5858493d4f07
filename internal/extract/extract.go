package extract

import (
	"bytes"
	"regexp"
	"sort"
	"strings"

	"assetgate/internal/canonical"
	"assetgate/internal/core/errors"
)

var (
	yamlGUIDPattern = regexp.MustCompile(`(?i)(?:m_GUID|guid):\s*([0-9a-f]{32})`)
	jsonGUIDPattern = regexp.MustCompile(`(?i)"m_GUID":\s*"([0-9a-f]{32})"`)
	bareGUIDPattern = regexp.MustCompile(`(?i)\b([0-9a-f]{32})\b`)
	hyphenedPattern = regexp.MustCompile(`(?i)"([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})"`)
	yamlPathPattern = regexp.MustCompile(`(?im)^\s*(?:m_FilePath|m_Path|path):\s*['"]?([^'"\r\n]+?)['"]?\s*$`)
	jsonPathPattern = regexp.MustCompile(`(?i)"(?:m_FilePath|m_Path|path)":\s*"([^"]+)"`)
)

// Engine-reserved identifiers. References to these are counted, never
// reported as missing: the destination runtime always provides them.
const builtinPrefix = "00000000000000"

// Extractor scans one asset file's bytes for outgoing references. It holds
// no state besides the normalizer, so one instance is safe for concurrent
// use by the worker pool.
type Extractor struct {
	norm *canonical.Normalizer
}

func New(norm *canonical.Normalizer) *Extractor {
	return &Extractor{norm: norm}
}

// Extract scans content according to kind. It is a pure function of the
// bytes plus the kind: no file system access, no shared state.
func (e *Extractor) Extract(content []byte, kind Kind) Result {
	if kind == KindMeta {
		declared, err := ParseMeta(content)
		return Result{Declared: declared, Err: err}
	}
	if !kind.HasReferences() {
		return Result{}
	}

	var res Result
	switch {
	case bytes.HasPrefix(content, []byte("%YAML")):
		res = e.scanUnityYAML(content)
	case startsWithBrace(content):
		res = e.scanJSONTemplate(content)
	default:
		// Generic data assets may legitimately carry free-form content, so
		// they take the bare scan as-is. Kinds with a known framing are a
		// parse failure when neither marker is present, though the scan
		// still recovers whatever it can.
		res = e.scanGeneric(content)
		if kind != KindData {
			res.Err = errors.AddContext(
				errors.New(errors.CodeParseError, "unrecognized asset format"),
				errors.CtxAssetKind, string(kind))
		}
	}
	return res
}

func (e *Extractor) scanUnityYAML(content []byte) Result {
	var res Result
	res.IdentifierRefs = collectGUIDs(&res, yamlGUIDPattern.FindAllSubmatch(content, -1))
	res.PathRefs = e.collectPaths(yamlPathPattern.FindAllSubmatch(content, -1))
	return res
}

func (e *Extractor) scanJSONTemplate(content []byte) Result {
	var res Result
	res.IdentifierRefs = collectGUIDs(&res, jsonGUIDPattern.FindAllSubmatch(content, -1))
	res.PathRefs = e.collectPaths(jsonPathPattern.FindAllSubmatch(content, -1))
	return res
}

func (e *Extractor) scanGeneric(content []byte) Result {
	var res Result
	matches := bareGUIDPattern.FindAllSubmatch(content, -1)
	for _, m := range hyphenedPattern.FindAllSubmatch(content, -1) {
		flat := bytes.ReplaceAll(m[1], []byte("-"), nil)
		matches = append(matches, [][]byte{nil, flat})
	}
	res.IdentifierRefs = collectGUIDs(&res, matches)
	return res
}

func collectGUIDs(res *Result, matches [][][]byte) []string {
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		id := strings.ToLower(string(m[1]))
		if strings.HasPrefix(id, builtinPrefix) {
			res.BuiltinRefs++
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (e *Extractor) collectPaths(matches [][][]byte) []canonical.Key {
	set := canonical.NewKeySet()
	for _, m := range matches {
		raw := strings.TrimSpace(string(m[1]))
		if !looksLikeAssetPath(raw) {
			continue
		}
		set.Add(e.norm.Canonicalize(raw))
	}
	if set.Len() == 0 {
		return nil
	}
	return set.Keys()
}

// looksLikeAssetPath filters out scalar values that happen to live in a
// path-named field (empty strings, booleans, bare numbers).
func looksLikeAssetPath(v string) bool {
	if v == "" || v == "0" || v == "1" {
		return false
	}
	if strings.Contains(v, "/") || strings.Contains(v, "\\") {
		return true
	}
	ext := strings.ToLower(v)
	if i := strings.LastIndexByte(ext, '.'); i >= 0 {
		_, known := kindByExt[ext[i:]]
		return known
	}
	return false
}

func startsWithBrace(content []byte) bool {
	return len(bytes.TrimLeft(content, " \t\r\n")) > 0 &&
		bytes.TrimLeft(content, " \t\r\n")[0] == '{'
}
