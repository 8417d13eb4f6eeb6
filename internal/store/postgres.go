package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/vaultetl/internal/transform"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an open pool. The caller keeps ownership of the pool
// until Close is called.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

func (p *Postgres) FilesByID(ctx context.Context, ids []int64) ([]File, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ANY($1) ORDER BY id`, ids)
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

func (p *Postgres) EachFile(ctx context.Context, fn func(File) error) error {
	rows, err := p.pool.Query(ctx, `SELECT `+fileColumns+` FROM files ORDER BY id`)
	if err != nil {
		return fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return fmt.Errorf("scan file: %w", err)
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (p *Postgres) InsertMissingItems(ctx context.Context, items []MissingItem) error {
	if len(items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(
			`INSERT INTO missing_items (file_id, hex_name, checked_path, status, checked_at) VALUES ($1, $2, $3, $4, $5)`,
			nullID(it.FileID), transform.ToPgText(it.Hex), it.CheckedPath, string(it.Status), checkedAt(it),
		)
	}
	if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert missing items: %w", err)
	}
	return nil
}

func (p *Postgres) MissingItems(ctx context.Context, status MissingStatus, limit int) ([]MissingItem, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, COALESCE(file_id, 0), COALESCE(hex_name, ''), checked_path, status, checked_at
		FROM missing_items
		WHERE ($1 = '' OR status = $1)
		ORDER BY id DESC
		LIMIT $2`, string(status), listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query missing items: %w", err)
	}
	defer rows.Close()

	var items []MissingItem
	for rows.Next() {
		var it MissingItem
		var st string
		if err := rows.Scan(&it.ID, &it.FileID, &it.Hex, &it.CheckedPath, &st, &it.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan missing item: %w", err)
		}
		it.Status = MissingStatus(st)
		items = append(items, it)
	}
	return items, rows.Err()
}

func (p *Postgres) LogEvent(ctx context.Context, e Event) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO etl_logs (operation, detail, affected, severity, occurred_at) VALUES ($1, $2, $3, $4, $5)`,
		e.Operation, e.Detail, e.Affected, string(e.Severity), eventTime(e),
	)
	if err != nil {
		return fmt.Errorf("insert etl log: %w", err)
	}
	return nil
}

func (p *Postgres) Events(ctx context.Context, operation string, limit int) ([]Event, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, operation, COALESCE(detail, ''), affected, severity, occurred_at
		FROM etl_logs
		WHERE ($1 = '' OR operation = $1)
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2`, operation, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query etl logs: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var sev string
		if err := rows.Scan(&e.ID, &e.Operation, &e.Detail, &e.Affected, &sev, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan etl log: %w", err)
		}
		e.Severity = Severity(sev)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (p *Postgres) Setting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read setting %s: %w", key, err)
	}
	return value, true, nil
}

func (p *Postgres) SetSetting(ctx context.Context, key, value string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value, now())
	if err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := p.pool.QueryRow(ctx, statsQuery).Scan(&s.Documents, &s.Files, &s.FilesWithHex, &s.PendingMissing)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	return s, nil
}

func (p *Postgres) Reset(ctx context.Context, table string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, "TRUNCATE TABLE "+table+" RESTART IDENTITY CASCADE"); err != nil {
		return fmt.Errorf("reset %s: %w", table, err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Migrate(ctx context.Context) error {
	for i, stmt := range postgresSchema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

// pgTx implements Tx over pgx.Tx.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) FindDocument(ctx context.Context, d transform.DocumentRecord) (int64, bool, error) {
	return findID(ctx, t.tx, `
		SELECT id FROM documents
		WHERE number IS NOT DISTINCT FROM $1
		  AND version IS NOT DISTINCT FROM $2
		  AND iteration = $3
		LIMIT 1`, d.Number, d.Version, d.Iteration)
}

func (t *pgTx) InsertDocument(ctx context.Context, d transform.DocumentRecord) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO documents (number, name, version, iteration, state, created_by, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		d.Number, d.Name, d.Version, d.Iteration, d.State, d.CreatedBy, d.CreatedAt, d.ModifiedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

func (t *pgTx) FindFile(ctx context.Context, f transform.FileRecord) (int64, bool, error) {
	return findID(ctx, t.tx, `
		SELECT id FROM files
		WHERE hex_name IS NOT DISTINCT FROM $1
		  AND original_name IS NOT DISTINCT FROM $2
		LIMIT 1`, f.Hex, f.OriginalName)
}

func (t *pgTx) InsertFile(ctx context.Context, f transform.FileRecord, documentID pgtype.Int8) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO files (document_id, filename, original_name, size_mb, content_type, doc_type,
			internal_name, sequence, hex_name, vault_root, estimated_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		documentID, f.Filename, f.OriginalName, f.SizeMB, f.ContentType, f.DocType,
		f.InternalName, f.Sequence, f.Hex, f.VaultRoot, f.EstimatedPath,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	return id, nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func findID(ctx context.Context, db DBTX, query string, args ...any) (int64, bool, error) {
	var id int64
	err := db.QueryRow(ctx, query, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("dedup lookup: %w", err)
	}
	return id, true, nil
}

const statsQuery = `
	SELECT
		(SELECT COUNT(*) FROM documents),
		(SELECT COUNT(*) FROM files),
		(SELECT COUNT(*) FROM files WHERE hex_name IS NOT NULL),
		(SELECT COUNT(*) FROM missing_items WHERE status = 'PENDING')`

func nullID(id int64) pgtype.Int8 {
	return pgtype.Int8{Int64: id, Valid: id > 0}
}

func checkedAt(it MissingItem) pgtype.Timestamptz {
	t := it.CheckedAt
	if t.IsZero() {
		t = now()
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func eventTime(e Event) pgtype.Timestamptz {
	t := e.OccurredAt
	if t.IsZero() {
		t = now()
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}
