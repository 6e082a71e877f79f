package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/slaffer-au/searchbot/internal/domain"

	_ "modernc.org/sqlite"
)

// schemaVersion is bumped whenever the snapshot layout changes. A
// mismatch makes Load fail so the caller falls back to a refresh
// instead of guessing at old data.
const schemaVersion = 1

var (
	// ErrNoSnapshot means no snapshot has been persisted yet.
	ErrNoSnapshot = errors.New("no directory snapshot")
	// ErrSnapshotVersion means the persisted snapshot predates the
	// current schema.
	ErrSnapshotVersion = errors.New("directory snapshot schema version mismatch")
)

// Store persists directory snapshots in SQLite. Snapshots are written
// wholesale inside one transaction; there is no partial update path.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func OpenStore(dbPath string, logger *slog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create snapshot directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open snapshot database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshot migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshot_meta (
		key    TEXT PRIMARY KEY,
		value  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id     INTEGER PRIMARY KEY,
		name   TEXT NOT NULL,
		email  TEXT
	);

	CREATE TABLE IF NOT EXISTS organizations (
		id     INTEGER PRIMARY KEY,
		name   TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads the persisted snapshot. It returns ErrNoSnapshot when
// nothing was ever saved and ErrSnapshotVersion when the snapshot was
// written by a different schema version.
func (s *Store) Load(ctx context.Context) (users, orgs []domain.DirectoryEntry, err error) {
	var raw string
	err = s.db.QueryRowContext(ctx,
		`SELECT value FROM snapshot_meta WHERE key = 'schema_version'`).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read snapshot version: %w", err)
	}
	v, convErr := strconv.Atoi(raw)
	if convErr != nil || v != schemaVersion {
		return nil, nil, fmt.Errorf("%w: have %q, want %d", ErrSnapshotVersion, raw, schemaVersion)
	}

	users, err = s.loadEntries(ctx, `SELECT id, name, COALESCE(email, '') FROM users ORDER BY id`)
	if err != nil {
		return nil, nil, fmt.Errorf("load users: %w", err)
	}
	orgs, err = s.loadEntries(ctx, `SELECT id, name, '' FROM organizations ORDER BY id`)
	if err != nil {
		return nil, nil, fmt.Errorf("load organizations: %w", err)
	}
	return users, orgs, nil
}

func (s *Store) loadEntries(ctx context.Context, query string) ([]domain.DirectoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.DirectoryEntry
	for rows.Next() {
		var e domain.DirectoryEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.Email); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Save replaces the whole snapshot in one transaction.
func (s *Store) Save(ctx context.Context, users, orgs []domain.DirectoryEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return fmt.Errorf("clear users: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM organizations`); err != nil {
		return fmt.Errorf("clear organizations: %w", err)
	}

	for _, u := range users {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, name, email) VALUES (?, ?, ?)`,
			u.ID, u.Name, u.Email); err != nil {
			return fmt.Errorf("insert user %d: %w", u.ID, err)
		}
	}
	for _, o := range orgs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO organizations (id, name) VALUES (?, ?)`,
			o.ID, o.Name); err != nil {
			return fmt.Errorf("insert organization %d: %w", o.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshot_meta (key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		strconv.Itoa(schemaVersion)); err != nil {
		return fmt.Errorf("write snapshot version: %w", err)
	}

	return tx.Commit()
}
