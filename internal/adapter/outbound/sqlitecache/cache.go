// Package sqlitecache provides an on-disk decision cache for the remote
// policy client: a single-table key/value store recording the last
// known-good decision for a given request fingerprint, so a circuit-open
// fallback window has something better than a blind fail-open/fail-closed
// guess to fall back to.
package sqlitecache

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS decision_cache (
	key        TEXT PRIMARY KEY,
	decision   TEXT NOT NULL,
	reason     TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Entry is one cached remote-policy decision.
type Entry struct {
	Decision  string
	Reason    string
	UpdatedAt time.Time
}

// Store is a SQLite-backed cache of the last decision seen for each key.
// A single guarded handle to on-disk state, opened once and reused, but
// backed by a real table instead of a whole-file marshal/rename cycle,
// since entries are looked up and overwritten individually rather than
// as one blob.
type Store struct {
	db       *sql.DB
	path     string
	lockPath string
	logger   *slog.Logger
}

// Open opens (creating if absent) the SQLite database at path and ensures
// its schema exists. SECU-07: warns if an existing database file has
// permissions more open than 0600.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	warnIfTooOpen(path, logger)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open decision cache: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers on one handle

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply decision cache schema: %w", err)
	}

	if err := chmodCache(path, logger); err != nil {
		logger.Warn("failed to set permissions on decision cache", "error", err)
	}

	return &Store{db: db, path: path, lockPath: path + ".lock", logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the cached decision for key, or (Entry{}, false) if absent.
func (s *Store) Get(ctx context.Context, key string) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT decision, reason, updated_at FROM decision_cache WHERE key = ?`, key)
	var (
		e       Entry
		updated int64
	)
	switch err := row.Scan(&e.Decision, &e.Reason, &updated); err {
	case nil:
		e.UpdatedAt = time.Unix(updated, 0).UTC()
		return e, true, nil
	case sql.ErrNoRows:
		return Entry{}, false, nil
	default:
		return Entry{}, false, fmt.Errorf("query decision cache: %w", err)
	}
}

// Put upserts the decision recorded for key.
func (s *Store) Put(ctx context.Context, key string, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decision_cache (key, decision, reason, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET decision = excluded.decision, reason = excluded.reason, updated_at = excluded.updated_at
	`, key, e.Decision, e.Reason, e.UpdatedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("write decision cache: %w", err)
	}
	return nil
}

// Purge removes entries older than maxAge, returning the number removed.
// Intended to be called periodically so the cache doesn't grow unbounded
// with fingerprints for calls that never recur. Purge is the one
// maintenance operation multiple guardrail-gate processes sharing the same
// cache file might run concurrently (e.g. independently scheduled sweeps),
// so it takes an exclusive advisory lock on a sibling .lock file for its
// duration, the same flock/LockFileEx pairing used elsewhere in this
// codebase to guard on-disk state files across processes.
func (s *Store) Purge(ctx context.Context, maxAge time.Duration) (int64, error) {
	lockFile, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return 0, fmt.Errorf("open decision cache lock file: %w", err)
	}
	defer lockFile.Close()

	if err := flockLock(lockFile.Fd()); err != nil {
		return 0, fmt.Errorf("lock decision cache for purge: %w", err)
	}
	defer flockUnlock(lockFile.Fd()) //nolint:errcheck

	cutoff := time.Now().Add(-maxAge).UTC().Unix()
	res, err := s.db.ExecContext(ctx, `DELETE FROM decision_cache WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge decision cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count purged rows: %w", err)
	}
	return n, nil
}

// Path returns the configured database file path.
func (s *Store) Path() string {
	return s.path
}

// GetDecision and PutDecision adapt Get/Put to the primitive-typed shape
// resilience.DecisionCache expects, so the domain layer can consult this
// store without importing it.

// GetDecision returns the cached decision and reason for key.
func (s *Store) GetDecision(ctx context.Context, key string) (decision, reason string, ok bool, err error) {
	e, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return "", "", false, err
	}
	return e.Decision, e.Reason, true, nil
}

// PutDecision caches decision/reason for key, stamped with the current time.
func (s *Store) PutDecision(ctx context.Context, key, decision, reason string) error {
	return s.Put(ctx, key, Entry{Decision: decision, Reason: reason, UpdatedAt: time.Now()})
}
