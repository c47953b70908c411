// Package store persists identity snapshots and archived audit entries in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/stewardgate/internal/audit"
	"github.com/ppiankov/stewardgate/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS identities (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	status     TEXT NOT NULL,
	record     TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS audit_entries (
	seq         INTEGER PRIMARY KEY,
	id          TEXT NOT NULL,
	ts          TEXT NOT NULL,
	identity_id TEXT NOT NULL,
	action      TEXT NOT NULL,
	result      TEXT NOT NULL DEFAULT '',
	entry       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_entries_identity ON audit_entries (identity_id, seq);
`

// SQLite is the gate's durable state. Identity rows are whole-record
// snapshots; audit rows are append-only and keyed by sequence number.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for an ephemeral store.
func Open(ctx context.Context, path string, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases coherent and
	// serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLite{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// HealthCheck pings the database.
func (s *SQLite) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveIdentities upserts every record in one transaction.
func (s *SQLite) SaveIdentities(ctx context.Context, ids []model.Identity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO identities (id, kind, status, record, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			status = excluded.status,
			record = excluded.record,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, id := range ids {
		data, err := json.Marshal(id)
		if err != nil {
			return fmt.Errorf("failed to marshal identity %s: %w", id.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, id.ID, string(id.Kind), string(id.Status), string(data), now); err != nil {
			return fmt.Errorf("failed to save identity %s: %w", id.ID, err)
		}
	}
	return tx.Commit()
}

// LoadIdentities returns every stored record ordered by ID.
func (s *SQLite) LoadIdentities(ctx context.Context) ([]model.Identity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM identities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query identities: %w", err)
	}
	defer rows.Close()

	var out []model.Identity
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		var id model.Identity
		if err := json.Unmarshal([]byte(raw), &id); err != nil {
			s.logger.Warn("skipping corrupt identity row", "error", err)
			continue
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// AppendAudit stores entries. Entries already stored (same seq) are
// ignored, so flushing an overlapping batch is safe.
func (s *SQLite) AppendAudit(ctx context.Context, entries []audit.Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO audit_entries (seq, id, ts, identity_id, action, result, entry)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal entry %d: %w", e.Seq, err)
		}
		res, err := stmt.ExecContext(ctx, int64(e.Seq), e.ID,
			e.Timestamp.UTC().Format(time.RFC3339Nano), e.IdentityID, e.Action, e.Result, string(data))
		if err != nil {
			return 0, fmt.Errorf("failed to insert entry %d: %w", e.Seq, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit audit batch: %w", err)
	}
	return inserted, nil
}

// AuditEntries returns stored entries for identityID (all when empty) in
// sequence order.
func (s *SQLite) AuditEntries(ctx context.Context, identityID string) ([]audit.Entry, error) {
	query := `SELECT entry FROM audit_entries ORDER BY seq`
	args := []any{}
	if identityID != "" {
		query = `SELECT entry FROM audit_entries WHERE identity_id = ? ORDER BY seq`
		args = append(args, identityID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		var e audit.Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("failed to decode audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LastSeq returns the highest stored sequence number, or 0.
func (s *SQLite) LastSeq(ctx context.Context) (uint64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM audit_entries`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to get last seq: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return uint64(seq.Int64), nil
}
