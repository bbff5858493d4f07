package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetgate/internal/canonical"
	"assetgate/internal/report"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndLoadRuns(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.SaveRun(Run{
			RunID:          string(rune('a' + i)),
			ProjectKey:     "art-pack",
			Timestamp:      base.Add(time.Duration(i) * time.Hour),
			CandidateFiles: 10 + i,
			Missing:        i,
			Partial:        i == 2,
			Duration:       3 * time.Second,
		}))
	}

	runs, err := s.RecentRuns("art-pack", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].RunID, "newest first")
	assert.True(t, runs[0].Partial)
	assert.Equal(t, 3*time.Second, runs[0].Duration)
	assert.Equal(t, base.Add(2*time.Hour), runs[0].Timestamp)
}

func TestRecentRuns_ProjectIsolation(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveRun(Run{RunID: "x", ProjectKey: "one"}))

	runs, err := s.RecentRuns("other", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSaveRun_ReplacesSameRunID(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveRun(Run{RunID: "x", ProjectKey: "p", Missing: 1}))
	require.NoError(t, s.SaveRun(Run{RunID: "x", ProjectKey: "p", Missing: 5}))

	runs, err := s.RecentRuns("p", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 5, runs[0].Missing)
}

func TestFromReport(t *testing.T) {
	rep := &report.Report{
		RunID:               "run-1",
		GeneratedAt:         time.Now().UTC(),
		Partial:             true,
		MissingDependencies: []canonical.Key{"a", "b"},
		Stats:               report.Stats{CandidateFiles: 7, Rounds: 2, Duration: time.Second},
	}
	run := FromReport("p", rep)
	assert.Equal(t, "run-1", run.RunID)
	assert.Equal(t, 2, run.Missing)
	assert.Equal(t, 7, run.CandidateFiles)
	assert.True(t, run.Partial)
	assert.Equal(t, time.Second, run.Duration)
}
