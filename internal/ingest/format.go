// Package ingest reads exported vault metadata into a uniform table.
//
// Three formats are accepted: delimited text (CSV), JSON and Markdown pipe
// tables. Whatever the source, the result is a Table whose column names are
// trimmed and uppercased and whose exact-duplicate rows have been removed.
package ingest

import (
	"path/filepath"
	"strings"

	"github.com/zeebo/errs"
)

// Input format errors. Each is fatal to a single ingest call.
var (
	ErrUnsupportedFormat = errs.Class("unsupported format")
	ErrEncoding          = errs.Class("encoding error")
	ErrNoHeader          = errs.Class("no header found")
)

// Format identifies the textual layout of a source file.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatUnknown  Format = "unknown"
)

// DetectFormat classifies a file by its extension.
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return FormatCSV
	case ".json":
		return FormatJSON
	case ".md", ".markdown":
		return FormatMarkdown
	default:
		return FormatUnknown
	}
}
