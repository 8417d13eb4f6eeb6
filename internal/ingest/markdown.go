package ingest

import (
	"bufio"
	"strings"
)

func readMarkdown(text string) (*Table, error) {
	var t *Table

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || !strings.Contains(line, "|") || isSeparatorRow(line) {
			continue
		}
		cells := splitPipeRow(line)
		if t == nil {
			t = &Table{Columns: cells, Format: FormatMarkdown, Encoding: "utf-8"}
			continue
		}
		t.Rows = append(t.Rows, cells)
	}
	if err := sc.Err(); err != nil {
		return nil, ErrUnsupportedFormat.Wrap(err)
	}
	if t == nil {
		return nil, ErrNoHeader.New("no table header row in markdown input")
	}
	return t, nil
}

// isSeparatorRow reports whether line only holds pipes, dashes, alignment
// colons and whitespace.
func isSeparatorRow(line string) bool {
	return strings.Trim(line, "|-: \t") == ""
}

func splitPipeRow(line string) []string {
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	parts := strings.Split(line, "|")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
