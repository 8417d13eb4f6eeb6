package ingest

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// textEncoding decodes raw bytes into UTF-8 or reports that it cannot.
type textEncoding struct {
	name   string
	decode func([]byte) ([]byte, error)
}

// csvEncodings is tried in order; the first successful decode wins.
var csvEncodings = []textEncoding{
	{name: "utf-8", decode: decodeUTF8},
	{name: "latin-1", decode: charmapDecoder(charmap.ISO8859_1)},
	{name: "windows-1252", decode: charmapDecoder(charmap.Windows1252)},
}

// charmapDecoder builds a fresh decoder per call; x/text decoders are stateful.
func charmapDecoder(cm *charmap.Charmap) func([]byte) ([]byte, error) {
	return func(b []byte) ([]byte, error) {
		return cm.NewDecoder().Bytes(b)
	}
}

func decodeUTF8(b []byte) ([]byte, error) {
	if !utf8.Valid(b) {
		return nil, ErrEncoding.New("invalid utf-8 sequence")
	}
	return b, nil
}

// decodeText runs data through encodings and returns the text together with
// the name of the encoding that accepted it.
func decodeText(data []byte, encodings []textEncoding) (string, string, error) {
	var tried []string
	for _, enc := range encodings {
		out, err := enc.decode(data)
		if err == nil {
			return string(out), enc.name, nil
		}
		tried = append(tried, enc.name)
	}
	return "", "", ErrEncoding.New("could not decode input with any of %v", tried)
}
