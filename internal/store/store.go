// Package store persists documents, files and the bookkeeping tables of the
// vault ETL: missing items, ETL log events and settings.
//
// Two backends implement Store: Postgres (pgx pool) for the service and
// SQLite for offline runs and tests. Imports write through Tx, one
// transaction per batch.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/JonMunkholm/vaultetl/internal/transform"
	"github.com/jackc/pgx/v5/pgtype"
)

// Store is the persistence collaborator used by the service layer.
type Store interface {
	// Begin opens a transaction for one import batch.
	Begin(ctx context.Context) (Tx, error)

	FilesByID(ctx context.Context, ids []int64) ([]File, error)
	// EachFile streams every file ordered by id.
	EachFile(ctx context.Context, fn func(File) error) error

	InsertMissingItems(ctx context.Context, items []MissingItem) error
	MissingItems(ctx context.Context, status MissingStatus, limit int) ([]MissingItem, error)

	LogEvent(ctx context.Context, e Event) error
	Events(ctx context.Context, operation string, limit int) ([]Event, error)

	Setting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error

	Stats(ctx context.Context) (Stats, error)
	// Reset removes every row of table, which must be one of DataTables.
	Reset(ctx context.Context, table string) error
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close()
}

// Tx is a single batch transaction. Find methods compare NULLs as equal.
type Tx interface {
	FindDocument(ctx context.Context, d transform.DocumentRecord) (int64, bool, error)
	InsertDocument(ctx context.Context, d transform.DocumentRecord) (int64, error)
	FindFile(ctx context.Context, f transform.FileRecord) (int64, bool, error)
	InsertFile(ctx context.Context, f transform.FileRecord, documentID pgtype.Int8) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// File is a persisted file entity.
type File struct {
	ID         int64
	DocumentID pgtype.Int8
	transform.FileRecord
}

// MissingStatus is the triage state of a missing item.
type MissingStatus string

const (
	MissingPending  MissingStatus = "PENDING"
	MissingResolved MissingStatus = "RESOLVED"
	MissingIgnored  MissingStatus = "IGNORED"
)

// MissingItem records a file whose physical vault path was not found.
type MissingItem struct {
	ID          int64
	FileID      int64
	Hex         string
	CheckedPath string
	Status      MissingStatus
	CheckedAt   time.Time
}

// Severity grades an ETL log event.
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// Event is one ETL log entry.
type Event struct {
	ID         int64     `json:"id"`
	Operation  string    `json:"operation"`
	Detail     string    `json:"detail"`
	Affected   int       `json:"affected"`
	Severity   Severity  `json:"severity"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Stats summarizes table sizes.
type Stats struct {
	Documents      int64 `json:"documents"`
	Files          int64 `json:"files"`
	FilesWithHex   int64 `json:"files_with_hex"`
	PendingMissing int64 `json:"pending_missing"`
}

// Setting keys read by restore, verify and export.
const (
	SettingVaultRoot          = "vault_root"
	SettingUseHexPadding      = "use_hex_padding"
	SettingAddFVExtension     = "add_fv_extension"
	SettingDefaultDestination = "default_destination"
)

// DataTables lists the tables cleared by a reset, children first. Settings
// survive a reset.
var DataTables = []string{"missing_items", "files", "documents", "etl_logs"}

// ErrUnknownTable is returned by Reset for tables outside DataTables.
var ErrUnknownTable = errors.New("unknown table")

func checkTable(table string) error {
	if !slices.Contains(DataTables, table) {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return nil
}

const defaultListLimit = 100

func listLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return defaultListLimit
	}
	return limit
}

func now() time.Time {
	return time.Now().UTC()
}
