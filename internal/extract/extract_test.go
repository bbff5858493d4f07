package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetgate/internal/canonical"
)

func newTestExtractor() *Extractor {
	return New(canonical.NewNormalizer("/project/assets", true))
}

const samplePrefab = `%YAML 1.1
%TAG !u! tag:unity3d.com,2011:
--- !u!1 &100000
GameObject:
  m_Name: Body
  m_Materials:
  - {fileID: 2100000, guid: aabbccddaabbccddaabbccddaabbccdd, type: 2}
  - {fileID: 2100000, guid: 11223344556677881122334455667788, type: 2}
  - {fileID: 2100000, guid: aabbccddaabbccddaabbccddaabbccdd, type: 2}
  m_BuiltinShader: {fileID: 46, guid: 0000000000000000e000000000000000, type: 0}
`

func TestExtract_UnityYAMLIdentifiers(t *testing.T) {
	res := newTestExtractor().Extract([]byte(samplePrefab), KindPrefab)

	require.NoError(t, res.Err)
	assert.Equal(t, []string{
		"11223344556677881122334455667788",
		"aabbccddaabbccddaabbccddaabbccdd",
	}, res.IdentifierRefs, "duplicates collapse, output is sorted")
	assert.Equal(t, 1, res.BuiltinRefs, "builtin shader reference is counted, not reported")
}

func TestExtract_JSONTemplate(t *testing.T) {
	content := []byte(`{
  "m_Template": {
    "m_GUID": "ffeeddccbbaa0099ffeeddccbbaa0099",
    "m_FilePath": "Textures/Skin.png"
  }
}`)
	res := newTestExtractor().Extract(content, KindMaterial)

	require.NoError(t, res.Err)
	assert.Equal(t, []string{"ffeeddccbbaa0099ffeeddccbbaa0099"}, res.IdentifierRefs)
	assert.Equal(t, []canonical.Key{"textures/skin.png"}, res.PathRefs)
}

func TestExtract_PathRefsNormalized(t *testing.T) {
	content := []byte("%YAML 1.1\nMaterial:\n  m_FilePath: Textures\\HERO.PNG\n")
	res := newTestExtractor().Extract(content, KindMaterial)

	require.NoError(t, res.Err)
	assert.Equal(t, []canonical.Key{"textures/hero.png"}, res.PathRefs)
}

func TestExtract_MalformedContentIsPartial(t *testing.T) {
	content := []byte("not yaml, not json, but aabbccddaabbccddaabbccddaabbccdd lives here")
	res := newTestExtractor().Extract(content, KindController)

	require.Error(t, res.Err, "structured kind with unknown framing is a parse failure")
	assert.Equal(t, []string{"aabbccddaabbccddaabbccddaabbccdd"}, res.IdentifierRefs,
		"best-effort scan still recovers references")
}

func TestExtract_FreeFormDataAssetIsNotAFailure(t *testing.T) {
	content := []byte("custom table v3\nrow aabbccddaabbccddaabbccddaabbccdd weight=4\n")
	res := newTestExtractor().Extract(content, KindData)

	assert.NoError(t, res.Err, "generic data assets have no required framing")
	assert.Equal(t, []string{"aabbccddaabbccddaabbccddaabbccdd"}, res.IdentifierRefs)
}

func TestExtract_BinaryKindsAreLeaves(t *testing.T) {
	res := newTestExtractor().Extract([]byte{0x89, 'P', 'N', 'G'}, KindBinary)
	assert.NoError(t, res.Err)
	assert.Empty(t, res.IdentifierRefs)
	assert.Empty(t, res.PathRefs)
}

func TestParseMeta(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{"yaml meta", "fileFormatVersion: 2\nguid: AABBCCDDAABBCCDDAABBCCDDAABBCCDD\n", "aabbccddaabbccddaabbccddaabbccdd", false},
		{"json meta", `{"m_GUID": "11223344556677881122334455667788"}`, "11223344556677881122334455667788", false},
		{"no guid", "fileFormatVersion: 2\n", "", true},
		{"object guid ignored", `{"m_GUID": {"data[0]": 123}}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMeta([]byte(tt.content))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKindForPath(t *testing.T) {
	assert.Equal(t, KindScene, KindForPath("Scenes/Main.unity"))
	assert.Equal(t, KindPrefab, KindForPath(`Prefabs\Body.PREFAB`))
	assert.Equal(t, KindAnimation, KindForPath("anim/run.skAnim"))
	assert.Equal(t, KindBinary, KindForPath("tex/hero.png"))
	assert.Equal(t, KindMeta, KindForPath("tex/hero.png.meta"))
	assert.Equal(t, KindData, KindForPath("misc/unknown.xyz"))
}
