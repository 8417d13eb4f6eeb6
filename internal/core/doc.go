// Package core provides the business logic of the vault ETL.
//
// This package ties the pipeline together independent of any transport. It
// is used by the HTTP server, the vaultctl CLI and tests without
// modification.
//
// # Import
//
// An import reads one exported metadata file and writes its records:
//
//  1. [ingest] detects the format from the file name and builds a table
//  2. [transform] detects the record kind and converts every row
//  3. Records are written in batches of [Options.BatchSize], one
//     transaction per batch; records already stored (by dedup key) are
//     skipped and each new document also gets its companion file
//
// [Service.Import] runs synchronously. [Service.StartImport] returns a job
// id at once and runs in the background; poll it through [JobRegistry].
// Both hold an [ImportLimiter] slot for the whole run. A failed batch is
// rolled back and ends the import; earlier batches stay committed.
//
// # Restore and Verify
//
// [Service.Restore] copies selected files out of the vault into a local
// directory or an s3:// destination. [Service.Verify] checks presence and
// records every missing file as a PENDING missing item.
//
// # Settings
//
// The vault root, default destination and logical path shape come from
// configuration. Rows in the settings table override them at run time.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FMT001-FMT006: Input file errors
//   - DB001-DB006: Database errors
//   - JOB001-JOB005: Import job errors
//   - RST001-RST005: Restore, export and settings errors
package core
