package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"assetgate/internal/report"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// Run is one persisted row: the shape of a past check, not its findings.
type Run struct {
	RunID          string
	ProjectKey     string
	Timestamp      time.Time
	Partial        bool
	CandidateFiles int
	ResolvedAssets int
	StoreAssets    int
	Rounds         int
	Missing        int
	Unresolved     int
	Conflicts      int
	ParseFailures  int
	Duration       time.Duration
}

// FromReport flattens a report into its history row.
func FromReport(projectKey string, r *report.Report) Run {
	return Run{
		RunID:          r.RunID,
		ProjectKey:     projectKey,
		Timestamp:      r.GeneratedAt,
		Partial:        r.Partial,
		CandidateFiles: r.Stats.CandidateFiles,
		ResolvedAssets: r.Stats.ResolvedAssets,
		StoreAssets:    r.Stats.StoreAssets,
		Rounds:         r.Stats.Rounds,
		Missing:        len(r.MissingDependencies),
		Unresolved:     len(r.UnresolvedReferences),
		Conflicts:      len(r.IdentifierConflicts),
		ParseFailures:  len(r.ParseFailures),
		Duration:       r.Stats.Duration,
	}
}

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open run history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping run history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize history schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) SaveRun(run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ProjectKey == "" {
		run.ProjectKey = "default"
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now().UTC()
	}

	return s.withRetry("save run", func() error {
		_, err := s.db.Exec(`
INSERT OR REPLACE INTO runs (
  run_id, project_key, ts_utc, partial, candidate_files, resolved_assets,
  store_assets, rounds, missing_count, unresolved_count, conflict_count,
  parse_failure_count, duration_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.ProjectKey, run.Timestamp.UTC().Format(time.RFC3339Nano),
			boolToInt(run.Partial), run.CandidateFiles, run.ResolvedAssets,
			run.StoreAssets, run.Rounds, run.Missing, run.Unresolved,
			run.Conflicts, run.ParseFailures, run.Duration.Milliseconds())
		return err
	})
}

// RecentRuns returns up to limit rows for projectKey, newest first.
func (s *Store) RecentRuns(projectKey string, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if projectKey == "" {
		projectKey = "default"
	}
	if limit <= 0 {
		limit = 20
	}

	var runs []Run
	err := s.withRetry("load runs", func() error {
		rows, err := s.db.Query(`
SELECT run_id, project_key, ts_utc, partial, candidate_files, resolved_assets,
       store_assets, rounds, missing_count, unresolved_count, conflict_count,
       parse_failure_count, duration_ms
FROM runs WHERE project_key = ? ORDER BY ts_utc DESC LIMIT ?`, projectKey, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		runs = runs[:0]
		for rows.Next() {
			var r Run
			var ts string
			var partial int
			var durMS int64
			if err := rows.Scan(&r.RunID, &r.ProjectKey, &ts, &partial,
				&r.CandidateFiles, &r.ResolvedAssets, &r.StoreAssets, &r.Rounds,
				&r.Missing, &r.Unresolved, &r.Conflicts, &r.ParseFailures, &durMS); err != nil {
				return err
			}
			r.Partial = partial != 0
			r.Duration = time.Duration(durMS) * time.Millisecond
			if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				r.Timestamp = t
			}
			runs = append(runs, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
