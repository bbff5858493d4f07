package extract

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"assetgate/internal/core/errors"
)

var (
	metaJSONGUIDPattern = regexp.MustCompile(`(?i)"m_GUID":\s*"([0-9a-f]{32})"`)
	guidShapePattern    = regexp.MustCompile(`(?i)^[0-9a-f]{32}$`)
)

type metaDoc struct {
	GUID string `yaml:"guid"`
}

// ParseMeta extracts the declared identifier from a sidecar meta file.
// Meta files are plain YAML with a top-level guid field; some exported
// templates use a JSON body with a string-valued m_GUID instead. Object
// valued m_GUID fields are ignored, matching the editor's own behavior.
func ParseMeta(content []byte) (string, error) {
	var doc metaDoc
	if err := yaml.Unmarshal(content, &doc); err == nil {
		if id := strings.ToLower(strings.TrimSpace(doc.GUID)); guidShapePattern.MatchString(id) {
			return id, nil
		}
	}

	if m := metaJSONGUIDPattern.FindSubmatch(content); m != nil {
		return strings.ToLower(string(m[1])), nil
	}

	return "", errors.New(errors.CodeParseError, "meta file carries no guid")
}
