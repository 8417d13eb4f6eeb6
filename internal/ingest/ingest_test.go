package ingest

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ----
// Format detection
// ----

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatCSV, DetectFormat("export.CSV"))
	assert.Equal(t, FormatJSON, DetectFormat("/tmp/docs.json"))
	assert.Equal(t, FormatMarkdown, DetectFormat("table.md"))
	assert.Equal(t, FormatUnknown, DetectFormat("sheet.xlsx"))
	assert.Equal(t, FormatUnknown, DetectFormat("noext"))
}

func TestRead_UnsupportedFormat(t *testing.T) {
	_, err := Read(strings.NewReader("a,b"), "data.xlsx")
	require.Error(t, err)
	assert.True(t, ErrUnsupportedFormat.Has(err))
}

// ----
// CSV
// ----

func TestParseCSV(t *testing.T) {
	data := []byte(" numero_doc ,Nome_Doc,VERSAO\nD1,Bracket,A\nD2,Plate,B\nD1,Bracket,A\n")

	table, err := Parse(data, FormatCSV)
	require.NoError(t, err)

	assert.Equal(t, []string{"NUMERO_DOC", "NOME_DOC", "VERSAO"}, table.Columns)
	want := [][]string{{"D1", "Bracket", "A"}, {"D2", "Plate", "B"}}
	if diff := cmp.Diff(want, table.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "utf-8", table.Encoding)
}

func TestParseCSV_Latin1Fallback(t *testing.T) {
	data := []byte("NOME_DOC\nJos\xe9\n")

	table, err := Parse(data, FormatCSV)
	require.NoError(t, err)

	assert.Equal(t, "latin-1", table.Encoding)
	assert.Equal(t, "José", table.Rows[0][0])
}

func TestParseCSV_EncodingError(t *testing.T) {
	_, _, err := decodeText([]byte{0xff, 0xfe}, []textEncoding{{name: "utf-8", decode: decodeUTF8}})
	require.Error(t, err)
	assert.True(t, ErrEncoding.Has(err))
}

func TestParseCSV_BOMAndSemicolons(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("NOME_ORIGINAL;SEQ_DECIMAL\npart.prt;12\n")...)

	table, err := Parse(data, FormatCSV)
	require.NoError(t, err)

	assert.Equal(t, []string{"NOME_ORIGINAL", "SEQ_DECIMAL"}, table.Columns)
	assert.Equal(t, [][]string{{"part.prt", "12"}}, table.Rows)
}

func TestParseCSV_ShortRowsArePadded(t *testing.T) {
	table, err := Parse([]byte("A,B,C\n1,2\n"), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "2", ""}}, table.Rows)
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := Parse(nil, FormatCSV)
	require.Error(t, err)
	assert.True(t, ErrNoHeader.Has(err))
}

// ----
// JSON
// ----

func TestParseJSON_List(t *testing.T) {
	data := []byte(`[
  {"numero_doc": "D1", "iteracao": 2, "tamanho_mb": 1.5, "estado": null},
  {"numero_doc": "D2", "iteracao": 1, "tamanho_mb": 0.25, "estado": "RELEASED"}
]`)

	table, err := Parse(data, FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, []string{"NUMERO_DOC", "ITERACAO", "TAMANHO_MB", "ESTADO"}, table.Columns)
	assert.Equal(t, [][]string{
		{"D1", "2", "1.5", ""},
		{"D2", "1", "0.25", "RELEASED"},
	}, table.Rows)
}

func TestParseJSON_WrapperAndNested(t *testing.T) {
	data := []byte(`{
  "documentos": [
    {"NUMERO_DOC": "D1", "meta": {"autor": "ana", "setor": {"nome": "eng"}}},
    {"NUMERO_DOC": "D2", "extra": "x"}
  ]
}`)

	table, err := Parse(data, FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, []string{"NUMERO_DOC", "META.AUTOR", "META.SETOR.NOME", "EXTRA"}, table.Columns)
	assert.Equal(t, [][]string{
		{"D1", "ana", "eng", ""},
		{"D2", "", "", "x"},
	}, table.Rows)
}

func TestParseJSON_WrappedSingleObject(t *testing.T) {
	data := []byte(`{"select * from docs": {"NUMERO_DOC": "D1", "NOME_DOC": "x"}}`)

	table, err := Parse(data, FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, []string{"NUMERO_DOC", "NOME_DOC"}, table.Columns)
	assert.Equal(t, [][]string{{"D1", "x"}}, table.Rows)
}

func TestParseJSON_WrappedScalarIsOneRow(t *testing.T) {
	table, err := Parse([]byte(`{"NUMERO_DOC": "D1"}`), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, []string{"NUMERO_DOC"}, table.Columns)
	assert.Equal(t, [][]string{{"D1"}}, table.Rows)
}

func TestParseJSON_SingleObject(t *testing.T) {
	table, err := Parse([]byte(`{"NOME_ORIGINAL": "a.prt", "SEQ_DECIMAL": "7"}`), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, []string{"NOME_ORIGINAL", "SEQ_DECIMAL"}, table.Columns)
	assert.Len(t, table.Rows, 1)
}

func TestParseJSON_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"scalar list", `[1, 2]`},
		{"yaml list", "- NUMERO_DOC: D1\n  NOME_DOC: x\n"},
		{"yaml mapping", "NUMERO_DOC: D1\n"},
		{"truncated", `[{"NUMERO_DOC": "D1"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input), FormatJSON)
			require.Error(t, err)
			assert.True(t, ErrUnsupportedFormat.Has(err), err.Error())
		})
	}
}

// ----
// Markdown
// ----

func TestParseMarkdown(t *testing.T) {
	data := []byte("Export\n\n| numero_doc | nome_doc |\n|---|---|\n| D1 | Bracket |\n")

	table, err := Parse(data, FormatMarkdown)
	require.NoError(t, err)

	assert.Equal(t, []string{"NUMERO_DOC", "NOME_DOC"}, table.Columns)
	assert.Equal(t, [][]string{{"D1", "Bracket"}}, table.Rows)
}

func TestParseMarkdown_AlignmentAndDuplicates(t *testing.T) {
	data := []byte("| A | B |\n|:---|---:|\n| 1 | 2 |\n| 1 | 2 |\n| 3 | 4 |\n")

	table, err := Parse(data, FormatMarkdown)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "2"}, {"3", "4"}}, table.Rows)
}

func TestParseMarkdown_NoHeader(t *testing.T) {
	_, err := Parse([]byte("just text\n|---|---|\n"), FormatMarkdown)
	require.Error(t, err)
	assert.True(t, ErrNoHeader.Has(err))
}

// ----
// Readers
// ----

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "files.csv")
	require.NoError(t, os.WriteFile(path, []byte("\xEF\xBB\xBFNOME_ORIGINAL\nx.prt\n"), 0o600))

	table, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"NOME_ORIGINAL"}, table.Columns)
	assert.Equal(t, FormatCSV, table.Format)
}

func TestBOMSkippingReader(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{name: "with bom", in: []byte("\xEF\xBB\xBFabc"), want: []byte("abc")},
		{name: "without bom", in: []byte("abcdef"), want: []byte("abcdef")},
		{name: "short", in: []byte("a"), want: []byte("a")},
		{name: "bom only", in: []byte("\xEF\xBB\xBF"), want: []byte{}},
		{name: "empty", in: []byte{}, want: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(NewBOMSkippingReader(bytes.NewReader(tt.in)))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCountingReader(t *testing.T) {
	cr := NewCountingReader(strings.NewReader("hello"))
	_, err := io.ReadAll(cr)
	require.NoError(t, err)
	assert.Equal(t, int64(5), cr.BytesRead)
}
