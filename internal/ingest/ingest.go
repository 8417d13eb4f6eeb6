package ingest

import (
	"bytes"
	"io"
	"os"
)

// ReadFile ingests the file at path. The format is chosen from path's
// extension.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Read(f, path)
}

// Read ingests r, choosing the format from name's extension.
func Read(r io.Reader, name string) (*Table, error) {
	format := DetectFormat(name)
	if format == FormatUnknown {
		return nil, ErrUnsupportedFormat.New("%q", name)
	}

	data, err := io.ReadAll(NewBOMSkippingReader(r))
	if err != nil {
		return nil, err
	}
	return Parse(data, format)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse ingests raw bytes in the given format. A leading BOM is ignored.
func Parse(data []byte, format Format) (*Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	var (
		t   *Table
		err error
	)

	switch format {
	case FormatCSV:
		t, err = readCSV(data)
	case FormatJSON:
		t, err = readJSON(data)
	case FormatMarkdown:
		var text, encoding string
		text, encoding, err = decodeText(data, csvEncodings)
		if err == nil {
			t, err = readMarkdown(text)
		}
		if t != nil {
			t.Encoding = encoding
		}
	default:
		return nil, ErrUnsupportedFormat.New("%q", format)
	}
	if err != nil {
		return nil, err
	}

	t.normalize()
	return t, nil
}

