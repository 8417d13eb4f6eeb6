package ingest

import "strings"

// Table is a uniform row/column view of an ingested file. Every row has
// exactly len(Columns) cells; an empty cell means the value is absent.
type Table struct {
	Columns  []string
	Rows     [][]string
	Format   Format
	Encoding string
}

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Has reports whether any of names is a column of t.
func (t *Table) Has(names ...string) bool {
	for _, n := range names {
		if t.Index(n) >= 0 {
			return true
		}
	}
	return false
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// normalize uppercases column names, squares rows to the header width and
// removes exact-duplicate rows while keeping first occurrences in order.
func (t *Table) normalize() {
	for i, c := range t.Columns {
		t.Columns[i] = strings.ToUpper(strings.TrimSpace(c))
	}

	width := len(t.Columns)
	seen := make(map[string]struct{}, len(t.Rows))
	rows := t.Rows[:0]
	for _, row := range t.Rows {
		row = fitRow(row, width)
		key := strings.Join(row, "\x1f")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		rows = append(rows, row)
	}
	t.Rows = rows
}

func fitRow(row []string, width int) []string {
	switch {
	case len(row) == width:
		return row
	case len(row) > width:
		return row[:width]
	default:
		out := make([]string, width)
		copy(out, row)
		return out
	}
}
