package extract

import (
	"path"
	"strings"

	"assetgate/internal/canonical"
)

// Kind is the closed set of asset flavors the extractor understands. Every
// kind shares the same extraction contract; the kind only selects how the
// bytes are scanned.
type Kind string

const (
	KindScene      Kind = "scene"
	KindPrefab     Kind = "prefab"
	KindMaterial   Kind = "material"
	KindAnimation  Kind = "animation"
	KindController Kind = "controller"
	KindData       Kind = "data"
	KindBinary     Kind = "binary"
	KindMeta       Kind = "meta"
)

var kindByExt = map[string]Kind{
	".unity":      KindScene,
	".prefab":     KindPrefab,
	".mat":        KindMaterial,
	".anim":       KindAnimation,
	".skanim":     KindAnimation,
	".controller": KindController,
	".asset":      KindData,
	".meta":       KindMeta,
	".fbx":        KindBinary,
	".mesh":       KindBinary,
	".png":        KindBinary,
	".jpg":        KindBinary,
	".jpeg":       KindBinary,
	".tga":        KindBinary,
	".psd":        KindBinary,
}

// KindForPath maps a file path to its asset kind by extension. Unknown
// extensions fall back to KindData, which uses the generic scan.
func KindForPath(p string) Kind {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(p, "\\", "/")))
	if k, ok := kindByExt[ext]; ok {
		return k
	}
	return KindData
}

// KnownExt reports whether the extension maps to a recognized asset kind.
// Directory scans use it to skip editor droppings and build artifacts.
func KnownExt(p string) bool {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(p, "\\", "/")))
	_, ok := kindByExt[ext]
	return ok
}

// HasReferences reports whether files of this kind can carry outgoing
// references at all. Binary payloads (textures, models) are leaves.
func (k Kind) HasReferences() bool {
	return k != KindBinary && k != KindMeta
}

// Result is the outcome of extracting one file. Err being non-nil means the
// content was malformed; the reference sets then hold whatever the
// best-effort scan still recovered.
type Result struct {
	IdentifierRefs []string
	PathRefs       []canonical.Key
	Declared       string
	BuiltinRefs    int
	Err            error
}
