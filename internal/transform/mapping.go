package transform

import (
	_ "embed"
	"fmt"

	"github.com/goccy/go-yaml"
)

//go:embed mappings.yaml
var mappingsYAML []byte

// Field is a canonical record field name.
type Field string

const (
	FieldNumber        Field = "number"
	FieldName          Field = "name"
	FieldVersion       Field = "version"
	FieldIteration     Field = "iteration"
	FieldState         Field = "state"
	FieldCreatedBy     Field = "created_by"
	FieldCreatedAt     Field = "created_at"
	FieldModifiedAt    Field = "modified_at"
	FieldFilename      Field = "filename"
	FieldSizeMB        Field = "size_mb"
	FieldContentType   Field = "content_type"
	FieldEstimatedPath Field = "estimated_path"
	FieldOriginalName  Field = "original_name"
	FieldDocType       Field = "doc_type"
	FieldInternalName  Field = "internal_name"
	FieldSequence      Field = "sequence"
	FieldHex           Field = "hex"
	FieldVaultRoot     Field = "vault_root"
)

// ShapeMapping describes how one record kind is recognized and renamed.
type ShapeMapping struct {
	Detect  []string         `yaml:"detect"`
	Columns map[string]Field `yaml:"columns"`
}

// Mappings is the declarative rename table for both record kinds.
type Mappings struct {
	Documents ShapeMapping `yaml:"documents"`
	Files     ShapeMapping `yaml:"files"`
}

// DefaultMappings is parsed from the embedded mappings.yaml.
var DefaultMappings = mustParseMappings(mappingsYAML)

// ParseMappings decodes a mapping table.
func ParseMappings(data []byte) (Mappings, error) {
	var m Mappings
	if err := yaml.UnmarshalWithOptions(data, &m, yaml.Strict()); err != nil {
		return Mappings{}, fmt.Errorf("parse mappings: %w", err)
	}
	if len(m.Documents.Detect) == 0 || len(m.Files.Detect) == 0 {
		return Mappings{}, fmt.Errorf("parse mappings: detect columns are required for both kinds")
	}
	return m, nil
}

func mustParseMappings(data []byte) Mappings {
	m, err := ParseMappings(data)
	if err != nil {
		panic(err)
	}
	return m
}

// columnIndex resolves each canonical field to its column position in a
// table header. When several source columns map to one field the first
// present in the header wins.
func (s ShapeMapping) columnIndex(columns []string) map[Field]int {
	idx := make(map[Field]int, len(s.Columns))
	for i, col := range columns {
		field, ok := s.Columns[col]
		if !ok {
			continue
		}
		if _, seen := idx[field]; !seen {
			idx[field] = i
		}
	}
	return idx
}
