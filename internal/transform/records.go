package transform

import "github.com/jackc/pgx/v5/pgtype"

// Kind is the record shape a table transforms into.
type Kind string

const (
	KindDocuments Kind = "documents"
	KindFiles     Kind = "files"
	KindUnknown   Kind = "unknown"
)

// DocumentRecord is one row of document metadata.
// Business key: Number, Version, Iteration.
type DocumentRecord struct {
	Number     pgtype.Text
	Name       pgtype.Text
	Version    pgtype.Text
	Iteration  pgtype.Int4
	State      pgtype.Text
	CreatedBy  pgtype.Text
	CreatedAt  pgtype.Timestamp
	ModifiedAt pgtype.Timestamp

	// Companion file columns.
	Filename      pgtype.Text
	SizeMB        pgtype.Float8
	ContentType   pgtype.Text
	Hex           pgtype.Text
	EstimatedPath pgtype.Text
}

// Companion returns the file entity stored alongside the document, if the
// row names a file.
func (d DocumentRecord) Companion() (FileRecord, bool) {
	if !d.Filename.Valid {
		return FileRecord{}, false
	}
	return FileRecord{
		Filename:      d.Filename,
		SizeMB:        d.SizeMB,
		ContentType:   d.ContentType,
		Hex:           d.Hex,
		EstimatedPath: d.EstimatedPath,
	}, true
}

// FileRecord is one row of physical file metadata.
// Business key: Hex, OriginalName.
type FileRecord struct {
	Filename      pgtype.Text
	OriginalName  pgtype.Text
	SizeMB        pgtype.Float8
	ContentType   pgtype.Text
	DocType       pgtype.Text
	InternalName  pgtype.Text
	Sequence      pgtype.Int4
	Hex           pgtype.Text
	VaultRoot     pgtype.Text
	EstimatedPath pgtype.Text
}

// Records is the transformer output. Exactly one of Documents or Files is
// populated, as selected by Kind.
type Records struct {
	Kind      Kind
	Documents []DocumentRecord
	Files     []FileRecord
}

// Len returns the number of records of the active kind.
func (r Records) Len() int {
	switch r.Kind {
	case KindDocuments:
		return len(r.Documents)
	case KindFiles:
		return len(r.Files)
	default:
		return 0
	}
}

// Slice returns the records in [lo, hi) of the active kind.
func (r Records) Slice(lo, hi int) Records {
	out := Records{Kind: r.Kind}
	switch r.Kind {
	case KindDocuments:
		out.Documents = r.Documents[lo:hi]
	case KindFiles:
		out.Files = r.Files[lo:hi]
	}
	return out
}
