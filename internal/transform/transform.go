// Package transform maps ingested tables onto canonical document and file
// records.
package transform

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/vaultetl/internal/ingest"
	"github.com/JonMunkholm/vaultetl/internal/vault"
	"github.com/jackc/pgx/v5/pgtype"
)

// ErrUnknownKind is returned when a table carries neither document nor file
// columns.
var ErrUnknownKind = errors.New("unknown record kind")

// Transformer converts tables using a mapping table.
type Transformer struct {
	mappings Mappings
}

// New creates a Transformer. A zero Mappings selects DefaultMappings.
func New(m Mappings) *Transformer {
	if len(m.Documents.Detect) == 0 && len(m.Files.Detect) == 0 {
		m = DefaultMappings
	}
	return &Transformer{mappings: m}
}

// DetectKind inspects the table header. Document columns take precedence.
func (tr *Transformer) DetectKind(t *ingest.Table) Kind {
	switch {
	case t.Has(tr.mappings.Documents.Detect...):
		return KindDocuments
	case t.Has(tr.mappings.Files.Detect...):
		return KindFiles
	default:
		return KindUnknown
	}
}

// Transform detects the kind of t and converts every row.
func (tr *Transformer) Transform(t *ingest.Table) (Records, error) {
	kind := tr.DetectKind(t)
	switch kind {
	case KindDocuments:
		return Records{Kind: kind, Documents: tr.documents(t)}, nil
	case KindFiles:
		return Records{Kind: kind, Files: tr.files(t)}, nil
	default:
		return Records{Kind: KindUnknown}, fmt.Errorf("%w: columns %v", ErrUnknownKind, t.Columns)
	}
}

// row reads canonical fields out of one table row.
type row struct {
	cells []string
	index map[Field]int
}

func (r row) get(f Field) string {
	i, ok := r.index[f]
	if !ok {
		return ""
	}
	return r.cells[i]
}

func (tr *Transformer) documents(t *ingest.Table) []DocumentRecord {
	index := tr.mappings.Documents.columnIndex(t.Columns)
	out := make([]DocumentRecord, 0, len(t.Rows))
	for _, cells := range t.Rows {
		r := row{cells: cells, index: index}
		d := DocumentRecord{
			Number:        ToPgText(r.get(FieldNumber)),
			Name:          ToPgText(r.get(FieldName)),
			Version:       ToPgText(r.get(FieldVersion)),
			Iteration:     ToPgInt4(r.get(FieldIteration)),
			State:         ToPgText(r.get(FieldState)),
			CreatedBy:     ToPgText(r.get(FieldCreatedBy)),
			CreatedAt:     ToPgTimestamp(r.get(FieldCreatedAt)),
			ModifiedAt:    ToPgTimestamp(r.get(FieldModifiedAt)),
			Filename:      ToPgText(r.get(FieldFilename)),
			SizeMB:        ToPgFloat8(r.get(FieldSizeMB)),
			ContentType:   ToPgText(r.get(FieldContentType)),
			EstimatedPath: ToPgText(r.get(FieldEstimatedPath)),
		}
		d.Hex = hexFromPath(d.EstimatedPath)
		out = append(out, d)
	}
	return out
}

func (tr *Transformer) files(t *ingest.Table) []FileRecord {
	index := tr.mappings.Files.columnIndex(t.Columns)
	rebuildPath := columnEmpty(t, index, FieldEstimatedPath)

	out := make([]FileRecord, 0, len(t.Rows))
	for _, cells := range t.Rows {
		r := row{cells: cells, index: index}
		f := FileRecord{
			Filename:      ToPgText(r.get(FieldFilename)),
			OriginalName:  ToPgText(r.get(FieldOriginalName)),
			SizeMB:        ToPgFloat8(r.get(FieldSizeMB)),
			ContentType:   ToPgText(r.get(FieldContentType)),
			DocType:       ToPgText(r.get(FieldDocType)),
			InternalName:  ToPgText(r.get(FieldInternalName)),
			Sequence:      ToPgInt4(r.get(FieldSequence)),
			Hex:           normalizedHex(r.get(FieldHex)),
			VaultRoot:     ToPgText(r.get(FieldVaultRoot)),
			EstimatedPath: ToPgText(r.get(FieldEstimatedPath)),
		}
		if !f.Filename.Valid {
			f.Filename = f.OriginalName
		}
		if rebuildPath && f.VaultRoot.Valid && f.Hex.Valid {
			f.EstimatedPath = ToPgText(vault.LogicalPath(f.VaultRoot.String, f.Hex.String, "", vault.PhysicalWidth))
		}
		out = append(out, f)
	}
	return out
}

// columnEmpty reports whether field has no column in t or only blank cells.
func columnEmpty(t *ingest.Table, index map[Field]int, field Field) bool {
	i, ok := index[field]
	if !ok {
		return true
	}
	for _, cells := range t.Rows {
		if ToPgText(cells[i]).Valid {
			return false
		}
	}
	return true
}

// normalizedHex returns the pure hex identifier, or NULL when raw does not
// normalize to valid hex.
func normalizedHex(raw string) pgtype.Text {
	h := vault.NormalizeHex(raw)
	if !vault.ValidHex(h) {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: h, Valid: true}
}

func hexFromPath(p pgtype.Text) pgtype.Text {
	if !p.Valid {
		return pgtype.Text{Valid: false}
	}
	return normalizedHex(p.String)
}
