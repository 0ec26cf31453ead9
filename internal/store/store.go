// Package store persists job artifacts in SQLite: parts, occurrences,
// clusters, membership, and postings, keyed by job id. Parts are written
// once and never updated; cluster edits replace the cluster tables inside
// one transaction so the three artifact tables stay mutually consistent at
// every commit point.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// Store wraps the artifact database.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens (creating if needed) the artifact database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open artifact db: %w", err)
	}

	// Single writer prevents lock contention under the pure-Go driver.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite ignores DSN pragma params; set them explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &Store{db: db, path: path, logger: logger}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS jobs (
		id         TEXT PRIMARY KEY,
		status     TEXT NOT NULL,
		error      TEXT NOT NULL DEFAULT '',
		processed  INTEGER NOT NULL DEFAULT 0,
		total      INTEGER NOT NULL DEFAULT 0,
		skipped    INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);

	-- Parts are the audit record: inserted once, never updated.
	CREATE TABLE IF NOT EXISTS parts (
		job_id      TEXT NOT NULL,
		id          TEXT NOT NULL,
		from_header TEXT NOT NULL DEFAULT '',
		to_header   TEXT NOT NULL DEFAULT '[]',
		cc_header   TEXT NOT NULL DEFAULT '[]',
		bcc_header  TEXT NOT NULL DEFAULT '[]',
		date        TEXT NOT NULL DEFAULT '',
		has_date    INTEGER NOT NULL DEFAULT 0,
		subject     TEXT NOT NULL DEFAULT '',
		body        TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (job_id, id)
	);

	CREATE TABLE IF NOT EXISTS occurrences (
		job_id     TEXT NOT NULL,
		identifier TEXT NOT NULL,
		role       TEXT NOT NULL,
		part_id    TEXT NOT NULL,
		PRIMARY KEY (job_id, identifier, role, part_id)
	);

	CREATE TABLE IF NOT EXISTS clusters (
		job_id TEXT NOT NULL,
		id     TEXT NOT NULL,
		label  TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (job_id, id)
	);

	-- The primary key doubles as the one-cluster-per-identifier invariant.
	CREATE TABLE IF NOT EXISTS members (
		job_id     TEXT NOT NULL,
		identifier TEXT NOT NULL,
		cluster_id TEXT NOT NULL,
		PRIMARY KEY (job_id, identifier)
	);
	CREATE INDEX IF NOT EXISTS idx_members_cluster
		ON members (job_id, cluster_id);

	CREATE TABLE IF NOT EXISTS postings (
		job_id     TEXT NOT NULL,
		cluster_id TEXT NOT NULL,
		role       TEXT NOT NULL,
		part_id    TEXT NOT NULL,
		PRIMARY KEY (job_id, cluster_id, role, part_id)
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}
