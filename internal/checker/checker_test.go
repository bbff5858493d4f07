package checker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetgate/internal/canonical"
	"assetgate/internal/registry"
	"assetgate/internal/store"
)

type fakeStore struct {
	present map[canonical.Key]bool
	ids     map[string]canonical.Key
}

var _ store.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{present: map[canonical.Key]bool{}, ids: map[string]canonical.Key{}}
}

func (f *fakeStore) Exists(_ context.Context, key canonical.Key) (bool, error) {
	return f.present[key], nil
}

func (f *fakeStore) IdentifierAt(_ context.Context, key canonical.Key) (string, bool, error) {
	for id, k := range f.ids {
		if k == key {
			return id, true, nil
		}
	}
	return "", false, nil
}

func (f *fakeStore) PathForIdentifier(_ context.Context, id string) (canonical.Key, bool, error) {
	key, ok := f.ids[id]
	return key, ok, nil
}

type project struct {
	root string
	t    *testing.T
}

func newProject(t *testing.T) *project {
	return &project{root: t.TempDir(), t: t}
}

func (p *project) write(rel, content string) string {
	p.t.Helper()
	full := filepath.Join(p.root, filepath.FromSlash(rel))
	require.NoError(p.t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(p.t, os.WriteFile(full, []byte(content), 0o644))
	return full
}

func (p *project) asset(rel, guid string, refs ...string) string {
	p.t.Helper()
	content := "%YAML 1.1\nAsset:\n"
	for _, ref := range refs {
		content += fmt.Sprintf("  m_Ref: {fileID: 2100000, guid: %s, type: 2}\n", ref)
	}
	full := p.write(rel, content)
	if guid != "" {
		p.write(rel+".meta", "fileFormatVersion: 2\nguid: "+guid+"\n")
	}
	return full
}

func (p *project) checker(st store.Store) *Checker {
	return New(st, Options{ProjectRoot: p.root, FoldCase: true, Workers: 4, HeavyRefThreshold: 15})
}

const (
	guidA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	guidB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	guidC = "cccccccccccccccccccccccccccccccc"
)

func TestRun_CleanBatch(t *testing.T) {
	p := newProject(t)
	a := p.asset("prefabs/body.prefab", guidA, guidB)
	b := p.asset("mats/skin.mat", guidB)

	rep, err := p.checker(newFakeStore()).Run(context.Background(), []string{a, b})
	require.NoError(t, err)

	assert.True(t, rep.Clean(), "findings: %+v", rep)
	assert.Equal(t, 2, rep.Stats.CandidateFiles)
	assert.Equal(t, 2, rep.Stats.ResolvedAssets)
	assert.NotEmpty(t, rep.RunID)
	assert.False(t, rep.Partial)
}

func TestRun_UppercaseSpellingsOnDisk(t *testing.T) {
	p := newProject(t)
	a := p.asset("Prefabs/Body.prefab", guidA, guidB)

	storeSide := newProject(t)
	storeSide.asset("Mats/Skin.mat", guidB)
	st, err := store.NewDirStore(storeSide.root, nil, 0, true)
	require.NoError(t, err)

	// Folded keys never match the capitalized on-disk names literally;
	// reads on both sides have to recover the real spelling.
	rep, err := p.checker(st).Run(context.Background(), []string{a})
	require.NoError(t, err)

	assert.True(t, rep.Clean(), "findings: %+v", rep)
	assert.Empty(t, rep.ParseFailures)
	assert.Empty(t, rep.MissingMeta)
	assert.Empty(t, rep.MissingDependencies)
	assert.Equal(t, 1, rep.Stats.StoreAssets)
}

func TestRun_CaseSensitiveReuploadIsNotAConflict(t *testing.T) {
	p := newProject(t)
	a := p.asset("Mats/Skin.mat", guidA)

	storeSide := newProject(t)
	storeSide.asset("Mats/Skin.mat", guidA)
	st, err := store.NewDirStore(storeSide.root, nil, 0, false)
	require.NoError(t, err)

	chk := New(st, Options{ProjectRoot: p.root, FoldCase: false, Workers: 4})
	rep, err := chk.Run(context.Background(), []string{a})
	require.NoError(t, err)

	// Both sides must key the identical relative path identically, so this
	// is an update of the stored asset, not a collision.
	assert.Empty(t, rep.IdentifierConflicts)
	assert.True(t, rep.Clean(), "findings: %+v", rep)
}

func TestRun_DedupIdempotence(t *testing.T) {
	p := newProject(t)
	a := p.asset("prefabs/body.prefab", guidA, guidB)
	b := p.asset("mats/skin.mat", guidB)

	once, err := p.checker(newFakeStore()).Run(context.Background(), []string{a, b})
	require.NoError(t, err)

	// Same file again, in a different spelling, plus its sidecar meta.
	respelled := filepath.Join(p.root, "prefabs", "..", "prefabs", "BODY.PREFAB")
	twice, err := p.checker(newFakeStore()).Run(context.Background(), []string{a, b, respelled, a + ".meta"})
	require.NoError(t, err)

	assert.Equal(t, once.Stats.CandidateFiles, twice.Stats.CandidateFiles)
	assert.Equal(t, once.MissingDependencies, twice.MissingDependencies)
	assert.Equal(t, once.UnresolvedReferences, twice.UnresolvedReferences)
	assert.Equal(t, once.IdentifierConflicts, twice.IdentifierConflicts)
	assert.Equal(t, once.ParseFailures, twice.ParseFailures)
}

func TestRun_CrossStoreConflict(t *testing.T) {
	p := newProject(t)
	a := p.asset("mats/new.mat", guidA)

	st := newFakeStore()
	st.ids[guidA] = "mats/old.mat"

	rep, err := p.checker(st).Run(context.Background(), []string{a})
	require.NoError(t, err)

	require.Len(t, rep.IdentifierConflicts, 1)
	c := rep.IdentifierConflicts[0]
	assert.Equal(t, registry.ScopeCross, c.Scope)
	assert.Equal(t, guidA, c.Identifier)
}

func TestRun_SamePathInStoreIsUpdateNotConflict(t *testing.T) {
	p := newProject(t)
	a := p.asset("mats/skin.mat", guidA)

	st := newFakeStore()
	st.ids[guidA] = "mats/skin.mat"
	st.present["mats/skin.mat"] = true

	rep, err := p.checker(st).Run(context.Background(), []string{a})
	require.NoError(t, err)
	assert.Empty(t, rep.IdentifierConflicts, "re-upload of the same path is an update")
}

func TestRun_IntraBatchConflict(t *testing.T) {
	p := newProject(t)
	a := p.asset("mats/one.mat", guidA)
	b := p.asset("mats/two.mat", guidA)

	rep, err := p.checker(newFakeStore()).Run(context.Background(), []string{a, b})
	require.NoError(t, err)

	require.Len(t, rep.IdentifierConflicts, 1)
	assert.Equal(t, registry.ScopeIntra, rep.IdentifierConflicts[0].Scope)
}

func TestRun_MissingDependencyViaStore(t *testing.T) {
	p := newProject(t)
	a := p.asset("prefabs/body.prefab", guidA, guidC)

	t.Run("store has it", func(t *testing.T) {
		st := newFakeStore()
		st.ids[guidC] = "mats/base.mat"
		st.present["mats/base.mat"] = true

		rep, err := p.checker(st).Run(context.Background(), []string{a})
		require.NoError(t, err)
		assert.Empty(t, rep.MissingDependencies)
		assert.Empty(t, rep.UnresolvedReferences)
	})

	t.Run("nobody has it", func(t *testing.T) {
		rep, err := p.checker(newFakeStore()).Run(context.Background(), []string{a})
		require.NoError(t, err)
		assert.Empty(t, rep.MissingDependencies)
		require.Len(t, rep.UnresolvedReferences, 1, "identifier with no binding anywhere is unresolved, not missing")
		assert.Equal(t, guidC, rep.UnresolvedReferences[0].Target)
	})
}

func TestRun_PartialFailureIsolation(t *testing.T) {
	p := newProject(t)
	paths := make([]string, 0, 10)
	for i := 0; i < 9; i++ {
		paths = append(paths, p.asset(fmt.Sprintf("mats/m%d.mat", i), fmt.Sprintf("%032d", i)))
	}
	// Tenth file is unparsable for its kind.
	broken := p.write("prefabs/broken.controller", "\x00\x01 garbage but with deadbeefdeadbeefdeadbeefdeadbeef")
	p.write("prefabs/broken.controller.meta", "fileFormatVersion: 2\nguid: "+guidB+"\n")
	paths = append(paths, broken)

	rep, err := p.checker(newFakeStore()).Run(context.Background(), []string{broken})
	require.NoError(t, err)
	require.Len(t, rep.ParseFailures, 1)

	rep, err = p.checker(newFakeStore()).Run(context.Background(), paths)
	require.NoError(t, err)

	require.Len(t, rep.ParseFailures, 1, "one bad file must not fail the batch")
	assert.Equal(t, 10, rep.Stats.CandidateFiles)
	assert.False(t, rep.Partial)
}

func TestRun_MissingMetaFinding(t *testing.T) {
	p := newProject(t)
	naked := p.write("mats/naked.mat", "%YAML 1.1\nMaterial: {}\n")

	rep, err := p.checker(newFakeStore()).Run(context.Background(), []string{naked})
	require.NoError(t, err)

	require.Len(t, rep.MissingMeta, 1)
	assert.False(t, rep.Clean())
}

func TestRun_OrphanAdvisory(t *testing.T) {
	p := newProject(t)
	used := p.asset("mats/used.mat", guidB)
	stray := p.asset("mats/stray.mat", guidC)
	owner := p.asset("prefabs/body.prefab", guidA, guidB)

	rep, err := p.checker(newFakeStore()).Run(context.Background(), []string{used, stray, owner})
	require.NoError(t, err)

	require.Len(t, rep.OrphanCandidates, 1)
	assert.Equal(t, canonical.Key("mats/stray.mat"), rep.OrphanCandidates[0])
	assert.True(t, rep.Clean(), "orphans are advisory, not blocking")
}

func TestRun_CancelledRunIsPartial(t *testing.T) {
	p := newProject(t)
	a := p.asset("prefabs/body.prefab", guidA, guidB)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := p.checker(newFakeStore()).Run(ctx, []string{a})
	require.NoError(t, err)
	assert.True(t, rep.Partial)
	assert.False(t, rep.Clean())
}
