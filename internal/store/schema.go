package store

// Statements are idempotent and run in order by Migrate.

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id          BIGSERIAL PRIMARY KEY,
		number      TEXT,
		name        TEXT,
		version     TEXT,
		iteration   INTEGER NOT NULL DEFAULT 0,
		state       TEXT,
		created_by  TEXT,
		created_at  TIMESTAMP,
		modified_at TIMESTAMP,
		imported_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS documents_business_key_idx ON documents (number, version, iteration)`,
	`CREATE TABLE IF NOT EXISTS files (
		id             BIGSERIAL PRIMARY KEY,
		document_id    BIGINT REFERENCES documents (id) ON DELETE SET NULL,
		filename       TEXT,
		original_name  TEXT,
		size_mb        DOUBLE PRECISION,
		content_type   TEXT,
		doc_type       TEXT,
		internal_name  TEXT,
		sequence       INTEGER NOT NULL DEFAULT 0,
		hex_name       TEXT,
		vault_root     TEXT,
		estimated_path TEXT,
		imported_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS files_business_key_idx ON files (hex_name, original_name)`,
	`CREATE INDEX IF NOT EXISTS files_document_id_idx ON files (document_id)`,
	`CREATE TABLE IF NOT EXISTS missing_items (
		id           BIGSERIAL PRIMARY KEY,
		file_id      BIGINT REFERENCES files (id) ON DELETE CASCADE,
		hex_name     TEXT,
		checked_path TEXT NOT NULL,
		status       TEXT NOT NULL DEFAULT 'PENDING',
		checked_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS missing_items_status_idx ON missing_items (status)`,
	`CREATE TABLE IF NOT EXISTS etl_logs (
		id          BIGSERIAL PRIMARY KEY,
		operation   TEXT NOT NULL,
		detail      TEXT,
		affected    INTEGER NOT NULL DEFAULT 0,
		severity    TEXT NOT NULL DEFAULT 'INFO',
		occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS etl_logs_occurred_at_idx ON etl_logs (occurred_at DESC)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		number      TEXT,
		name        TEXT,
		version     TEXT,
		iteration   INTEGER NOT NULL DEFAULT 0,
		state       TEXT,
		created_by  TEXT,
		created_at  TIMESTAMP,
		modified_at TIMESTAMP,
		imported_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS documents_business_key_idx ON documents (number, version, iteration)`,
	`CREATE TABLE IF NOT EXISTS files (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id    INTEGER REFERENCES documents (id) ON DELETE SET NULL,
		filename       TEXT,
		original_name  TEXT,
		size_mb        REAL,
		content_type   TEXT,
		doc_type       TEXT,
		internal_name  TEXT,
		sequence       INTEGER NOT NULL DEFAULT 0,
		hex_name       TEXT,
		vault_root     TEXT,
		estimated_path TEXT,
		imported_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS files_business_key_idx ON files (hex_name, original_name)`,
	`CREATE INDEX IF NOT EXISTS files_document_id_idx ON files (document_id)`,
	`CREATE TABLE IF NOT EXISTS missing_items (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id      INTEGER REFERENCES files (id) ON DELETE CASCADE,
		hex_name     TEXT,
		checked_path TEXT NOT NULL,
		status       TEXT NOT NULL DEFAULT 'PENDING',
		checked_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS missing_items_status_idx ON missing_items (status)`,
	`CREATE TABLE IF NOT EXISTS etl_logs (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		operation   TEXT NOT NULL,
		detail      TEXT,
		affected    INTEGER NOT NULL DEFAULT 0,
		severity    TEXT NOT NULL DEFAULT 'INFO',
		occurred_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS etl_logs_occurred_at_idx ON etl_logs (occurred_at DESC)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

const fileColumns = `id, document_id, filename, original_name, size_mb, content_type, doc_type,
	internal_name, sequence, hex_name, vault_root, estimated_path`

// rowScanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (File, error) {
	var f File
	err := row.Scan(
		&f.ID, &f.DocumentID, &f.Filename, &f.OriginalName, &f.SizeMB, &f.ContentType, &f.DocType,
		&f.InternalName, &f.Sequence, &f.Hex, &f.VaultRoot, &f.EstimatedPath,
	)
	return f, err
}
