package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/contre95/fpbridge/src/audio"
	"github.com/contre95/fpbridge/src/features/fingerprinting"
)

// SqliteCache is a SQLite implementation of the fingerprint cache.
type SqliteCache struct {
	db *sql.DB
}

// NewSqliteCache opens (or creates) the cache database at path.
func NewSqliteCache(path string) (*SqliteCache, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SqliteCache{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS fingerprints (
			path TEXT PRIMARY KEY,
			size INTEGER NOT NULL,
			mod_time INTEGER NOT NULL,
			algorithm INTEGER NOT NULL,
			max_duration_ms INTEGER NOT NULL DEFAULT -1,
			fingerprint TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			engine TEXT,
			updated_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_fingerprints_fingerprint ON fingerprints(fingerprint);
	`)
	if err != nil {
		return err
	}

	// Rows written before the column existed keep -1 and never match a key.
	_, err = db.Exec(`ALTER TABLE fingerprints ADD COLUMN max_duration_ms INTEGER NOT NULL DEFAULT -1;`)
	if err != nil && !strings.Contains(err.Error(), "duplicate column name") {
		return err
	}
	return nil
}

// Get returns the cached result for key. Rows for an older version of the file,
// another algorithm or another max duration are treated as a miss.
func (d *SqliteCache) Get(ctx context.Context, key fingerprinting.CacheKey) (*fingerprinting.Result, error) {
	var (
		size, modTime, durationMs, maxDurationMs int64
		algorithm                                int
		fingerprint               string
		engine                    sql.NullString
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT size, mod_time, algorithm, max_duration_ms, fingerprint, duration_ms, engine
		FROM fingerprints WHERE path = ?
	`, key.Path).Scan(&size, &modTime, &algorithm, &maxDurationMs, &fingerprint, &durationMs, &engine)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached fingerprint: %w", err)
	}

	if size != key.Size || modTime != key.ModTime.UnixNano() || audio.Algorithm(algorithm) != key.Algorithm ||
		maxDurationMs != key.MaxDuration.Milliseconds() {
		slog.Debug("Stale fingerprint cache entry", "path", key.Path)
		return nil, nil
	}

	return &fingerprinting.Result{
		Path:        key.Path,
		Fingerprint: fingerprint,
		Duration:    time.Duration(durationMs) * time.Millisecond,
		Algorithm:   audio.Algorithm(algorithm),
		Engine:      engine.String,
	}, nil
}

// Put stores result under key, replacing whatever was cached for the path.
func (d *SqliteCache) Put(ctx context.Context, key fingerprinting.CacheKey, result *fingerprinting.Result) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO fingerprints (path, size, mod_time, algorithm, max_duration_ms, fingerprint, duration_ms, engine, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			size = excluded.size,
			mod_time = excluded.mod_time,
			algorithm = excluded.algorithm,
			max_duration_ms = excluded.max_duration_ms,
			fingerprint = excluded.fingerprint,
			duration_ms = excluded.duration_ms,
			engine = excluded.engine,
			updated_at = excluded.updated_at
	`, key.Path, key.Size, key.ModTime.UnixNano(), int(key.Algorithm), key.MaxDuration.Milliseconds(), result.Fingerprint,
		result.Duration.Milliseconds(), result.Engine, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to cache fingerprint: %w", err)
	}
	return nil
}

// Delete forgets the cached fingerprint of path.
func (d *SqliteCache) Delete(ctx context.Context, path string) error {
	_, err := d.db.ExecContext(ctx, "DELETE FROM fingerprints WHERE path = ?", path)
	return err
}

// FindByFingerprint returns the paths whose cached fingerprint equals fingerprint.
func (d *SqliteCache) FindByFingerprint(ctx context.Context, fingerprint string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT path FROM fingerprints WHERE fingerprint = ? ORDER BY path", fingerprint)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// Count returns the number of cached fingerprints.
func (d *SqliteCache) Count(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fingerprints").Scan(&n)
	return n, err
}

func (d *SqliteCache) Close() error {
	return d.db.Close()
}
