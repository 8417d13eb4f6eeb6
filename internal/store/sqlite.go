package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/vaultetl/internal/transform"
	"github.com/jackc/pgx/v5/pgtype"
	_ "github.com/mattn/go-sqlite3"
)

// SQLite is a Store backed by a local database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path. A single
// connection is used so batch transactions never contend for the file lock.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return &SQLite{db: db}, nil
}

func (s *SQLite) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &sqliteTx{tx: tx}, nil
}

func (s *SQLite) FilesByID(ctx context.Context, ids []int64) ([]File, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	rows, err := s.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id IN (`+placeholders+`) ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *SQLite) EachFile(ctx context.Context, fn func(File) error) error {
	// Files are collected first; the single connection stays busy while
	// rows are open.
	rows, err := s.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM files ORDER BY id`)
	if err != nil {
		return fmt.Errorf("query files: %w", err)
	}
	var files []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			rows.Close()
			return fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, f := range files {
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) InsertMissingItems(ctx context.Context, items []MissingItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert missing items: %w", err)
	}
	defer tx.Rollback()

	for _, it := range items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO missing_items (file_id, hex_name, checked_path, status, checked_at) VALUES (?, ?, ?, ?, ?)`,
			nullID(it.FileID), transform.ToPgText(it.Hex), it.CheckedPath, string(it.Status), checkedAt(it),
		)
		if err != nil {
			return fmt.Errorf("insert missing item: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) MissingItems(ctx context.Context, status MissingStatus, limit int) ([]MissingItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(file_id, 0), COALESCE(hex_name, ''), checked_path, status, checked_at
		FROM missing_items
		WHERE (?1 = '' OR status = ?1)
		ORDER BY id DESC
		LIMIT ?2`, string(status), listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query missing items: %w", err)
	}
	defer rows.Close()

	var items []MissingItem
	for rows.Next() {
		var it MissingItem
		var st string
		var at pgtype.Timestamptz
		if err := rows.Scan(&it.ID, &it.FileID, &it.Hex, &it.CheckedPath, &st, &at); err != nil {
			return nil, fmt.Errorf("scan missing item: %w", err)
		}
		it.Status = MissingStatus(st)
		it.CheckedAt = at.Time
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *SQLite) LogEvent(ctx context.Context, e Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO etl_logs (operation, detail, affected, severity, occurred_at) VALUES (?, ?, ?, ?, ?)`,
		e.Operation, e.Detail, e.Affected, string(e.Severity), eventTime(e),
	)
	if err != nil {
		return fmt.Errorf("insert etl log: %w", err)
	}
	return nil
}

func (s *SQLite) Events(ctx context.Context, operation string, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, operation, COALESCE(detail, ''), affected, severity, occurred_at
		FROM etl_logs
		WHERE (?1 = '' OR operation = ?1)
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?2`, operation, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query etl logs: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var sev string
		var at pgtype.Timestamptz
		if err := rows.Scan(&e.ID, &e.Operation, &e.Detail, &e.Affected, &sev, &at); err != nil {
			return nil, fmt.Errorf("scan etl log: %w", err)
		}
		e.Severity = Severity(sev)
		e.OccurredAt = at.Time
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQLite) Setting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read setting %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLite) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now())
	if err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, statsQuery).Scan(&st.Documents, &st.Files, &st.FilesWithHex, &st.PendingMissing)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	return st, nil
}

func (s *SQLite) Reset(ctx context.Context, table string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("reset %s: %w", table, err)
	}
	// Restart ids like TRUNCATE ... RESTART IDENTITY does.
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name = ?", table); err != nil {
		return fmt.Errorf("reset %s sequence: %w", table, err)
	}
	return nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Migrate(ctx context.Context) error {
	for i, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}

func (s *SQLite) Close() {
	s.db.Close()
}

// sqliteTx implements Tx over *sql.Tx.
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) FindDocument(ctx context.Context, d transform.DocumentRecord) (int64, bool, error) {
	return t.findID(ctx, `
		SELECT id FROM documents
		WHERE number IS ? AND version IS ? AND iteration = ?
		LIMIT 1`, d.Number, d.Version, d.Iteration)
}

func (t *sqliteTx) InsertDocument(ctx context.Context, d transform.DocumentRecord) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO documents (number, name, version, iteration, state, created_by, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Number, d.Name, d.Version, d.Iteration, d.State, d.CreatedBy, d.CreatedAt, d.ModifiedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}
	return res.LastInsertId()
}

func (t *sqliteTx) FindFile(ctx context.Context, f transform.FileRecord) (int64, bool, error) {
	return t.findID(ctx, `
		SELECT id FROM files
		WHERE hex_name IS ? AND original_name IS ?
		LIMIT 1`, f.Hex, f.OriginalName)
}

func (t *sqliteTx) InsertFile(ctx context.Context, f transform.FileRecord, documentID pgtype.Int8) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO files (document_id, filename, original_name, size_mb, content_type, doc_type,
			internal_name, sequence, hex_name, vault_root, estimated_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		documentID, f.Filename, f.OriginalName, f.SizeMB, f.ContentType, f.DocType,
		f.InternalName, f.Sequence, f.Hex, f.VaultRoot, f.EstimatedPath,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	return res.LastInsertId()
}

func (t *sqliteTx) Commit(context.Context) error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback(context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (t *sqliteTx) findID(ctx context.Context, query string, args ...any) (int64, bool, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("dedup lookup: %w", err)
	}
	return id, true, nil
}
