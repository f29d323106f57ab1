package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mailferry/internal/model"

	_ "modernc.org/sqlite"
)

// Ledger is the SQLite-backed export ledger. It remembers which messages
// have been exported so later runs can resume, and keeps a run history.
type Ledger struct {
	db *sql.DB
}

// Open opens (or creates) the ledger database at the given path and runs
// migrations.
func Open(dbPath string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets a status reader look at the ledger while a run writes it.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db}, nil
}

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS exported (
	message_id  TEXT PRIMARY KEY,
	folder_id   TEXT NOT NULL,
	exported_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_exported_folder ON exported(folder_id);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT '',
	processed   INTEGER NOT NULL DEFAULT 0,
	succeeded   INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL DEFAULT ''
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// ExportedIDs returns the ids of all messages already exported from a folder.
func (l *Ledger) ExportedIDs(ctx context.Context, folderID string) (map[string]struct{}, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT message_id FROM exported WHERE folder_id = ?", folderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// MarkExported records one successfully written message.
func (l *Ledger) MarkExported(ctx context.Context, folderID, messageID string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO exported (message_id, folder_id, exported_at) VALUES (?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET
			folder_id   = excluded.folder_id,
			exported_at = excluded.exported_at
	`, messageID, folderID, time.Now().UTC().Format(time.RFC3339))
	return err
}

// CountExported returns how many messages the ledger holds in total.
func (l *Ledger) CountExported(ctx context.Context) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM exported").Scan(&n)
	return n, err
}

// StartRun records the beginning of a run.
func (l *Ledger) StartRun(ctx context.Context, runID string) error {
	_, err := l.db.ExecContext(ctx,
		"INSERT INTO runs (id, started_at) VALUES (?, ?)",
		runID, time.Now().UTC().Format(time.RFC3339))
	return err
}

// FinishRun records the terminal status and final counters of a run.
func (l *Ledger) FinishRun(ctx context.Context, runID string, status model.RunStatus, stats model.RunStats) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, status = ?, processed = ?, succeeded = ?, failed = ?, skipped = ?
		WHERE id = ?
	`, time.Now().UTC().Format(time.RFC3339), string(status),
		stats.Processed, stats.Succeeded, stats.Failed, stats.Skipped, runID)
	return err
}

// RunRecord is one row of the run history.
type RunRecord struct {
	ID         string
	StartedAt  string
	FinishedAt string
	Status     string
	Stats      model.RunStats
}

// Runs returns the run history, newest first.
func (l *Ledger) Runs(ctx context.Context) ([]RunRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, status, processed, succeeded, failed, skipped
		FROM runs ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status,
			&r.Stats.Processed, &r.Stats.Succeeded, &r.Stats.Failed, &r.Stats.Skipped); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetMeta reads a metadata value; missing keys yield an empty string.
func (l *Ledger) GetMeta(ctx context.Context, key string) (string, error) {
	var val string
	err := l.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return val, err
}

// SetMeta writes a metadata value.
func (l *Ledger) SetMeta(ctx context.Context, key, value string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
