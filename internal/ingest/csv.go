package ingest

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

func readCSV(data []byte) (*Table, error) {
	text, encoding, err := decodeText(data, csvEncodings)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sniffDelimiter(text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader.New("csv file is empty")
	}
	if err != nil {
		return nil, ErrUnsupportedFormat.Wrap(err)
	}

	t := &Table{Columns: header, Format: FormatCSV, Encoding: encoding}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, ErrUnsupportedFormat.Wrap(err)
		}
		t.Rows = append(t.Rows, record)
	}
	return t, nil
}

// sniffDelimiter picks ';' for exports whose header line has semicolons but
// no commas, and ',' otherwise.
func sniffDelimiter(text string) rune {
	line := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		line = text[:i]
	}
	if strings.Contains(line, ";") && !strings.Contains(line, ",") {
		return ';'
	}
	return ','
}
