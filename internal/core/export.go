package core

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/JonMunkholm/vaultetl/internal/store"
	"github.com/JonMunkholm/vaultetl/internal/transform"
	"github.com/JonMunkholm/vaultetl/internal/vault"
)

// ExportFormat selects the encoding of an export.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportJSON ExportFormat = "json"
)

// ParseExportFormat accepts "csv" (the default when empty) or "json".
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case "", ExportCSV:
		return ExportCSV, nil
	case ExportJSON:
		return ExportJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ExportedFile is one row of a file export.
type ExportedFile struct {
	ID           int64  `json:"id"`
	DocumentID   *int64 `json:"document_id,omitempty"`
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	InternalName string `json:"internal_name"`
	Hex          string `json:"hex"`
	VaultRoot    string `json:"vault_root"`
	PhysicalPath string `json:"physical_path"`
	LogicalPath  string `json:"logical_path"`
}

var exportHeader = []string{
	"id", "document_id", "filename", "original_name", "internal_name",
	"hex", "vault_root", "physical_path", "logical_path",
}

// PathPreview describes how a hex identifier maps into a vault.
type PathPreview struct {
	Input        string `json:"input"`
	Hex          string `json:"hex"`
	Valid        bool   `json:"valid"`
	Root         string `json:"root"`
	PhysicalPath string `json:"physical_path"`
	LogicalPath  string `json:"logical_path"`
}

// logicalPath renders the path shape selected by the settings.
func logicalPath(root, hex string, settings VaultSettings) string {
	width := 0
	if settings.UseHexPadding {
		width = vault.PhysicalWidth
	}
	ext := ""
	if settings.AddFVExtension {
		ext = vault.FVExtension
	}
	return vault.LogicalPath(root, hex, ext, width)
}

// PreviewPath normalizes input and computes its paths under root, or under
// the configured vault root when root is empty.
func (s *Service) PreviewPath(ctx context.Context, input, root string) (PathPreview, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return PathPreview{}, err
	}
	root = rootOverride(root, settings)

	hex := vault.NormalizeHex(input)
	p := PathPreview{Input: input, Hex: hex, Valid: vault.ValidHex(hex), Root: root}
	if p.Valid {
		p.PhysicalPath = vault.PhysicalPath(root, hex)
		p.LogicalPath = logicalPath(root, hex, settings)
	}
	return p, nil
}

// Export writes every stored file to w in format.
func (s *Service) Export(ctx context.Context, w io.Writer, format ExportFormat) (int, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return 0, err
	}

	var (
		write func(ExportedFile) error
		flush func() error
	)
	switch format {
	case ExportJSON:
		write, flush = jsonExporter(w)
	default:
		write, flush = csvExporter(w)
	}

	n := 0
	err = s.store.EachFile(ctx, func(f store.File) error {
		n++
		return write(exportedFile(f, settings))
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		return n, fmt.Errorf("export files: %w", err)
	}

	s.logEvent(ctx, OpExport, fmt.Sprintf("exported %d files as %s", n, format), n, store.SeverityInfo)
	return n, nil
}

func exportedFile(f store.File, settings VaultSettings) ExportedFile {
	root := transform.TextValue(f.VaultRoot)
	if root == "" {
		root = vault.Dir(transform.TextValue(f.EstimatedPath))
	}
	hex := transform.TextValue(f.Hex)

	out := ExportedFile{
		ID:           f.ID,
		Filename:     transform.TextValue(f.Filename),
		OriginalName: transform.TextValue(f.OriginalName),
		InternalName: transform.TextValue(f.InternalName),
		Hex:          hex,
		VaultRoot:    root,
		PhysicalPath: vault.PhysicalPath(root, hex),
		LogicalPath:  logicalPath(root, hex, settings),
	}
	if f.DocumentID.Valid {
		id := f.DocumentID.Int64
		out.DocumentID = &id
	}
	return out
}

func csvExporter(w io.Writer) (func(ExportedFile) error, func() error) {
	cw := csv.NewWriter(w)
	wroteHeader := false

	write := func(f ExportedFile) error {
		if !wroteHeader {
			if err := cw.Write(exportHeader); err != nil {
				return err
			}
			wroteHeader = true
		}
		docID := ""
		if f.DocumentID != nil {
			docID = strconv.FormatInt(*f.DocumentID, 10)
		}
		return cw.Write([]string{
			strconv.FormatInt(f.ID, 10), docID, f.Filename, f.OriginalName, f.InternalName,
			f.Hex, f.VaultRoot, f.PhysicalPath, f.LogicalPath,
		})
	}
	flush := func() error {
		if !wroteHeader {
			if err := cw.Write(exportHeader); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}
	return write, flush
}

// jsonExporter streams a JSON array one element at a time.
func jsonExporter(w io.Writer) (func(ExportedFile) error, func() error) {
	enc := json.NewEncoder(w)
	first := true

	write := func(f ExportedFile) error {
		sep := ","
		if first {
			sep = "["
			first = false
		}
		if _, err := io.WriteString(w, sep); err != nil {
			return err
		}
		return enc.Encode(f)
	}
	flush := func() error {
		if first {
			_, err := io.WriteString(w, "[]\n")
			return err
		}
		_, err := io.WriteString(w, "]\n")
		return err
	}
	return write, flush
}
