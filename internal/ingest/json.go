package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// readJSON accepts a list of objects, an object wrapping such a list or a
// single object under one key, or a single object. Objects are decoded as ordered maps so the
// column order follows the source. Nested objects become dotted columns.
func readJSON(data []byte) (*Table, error) {
	if !json.Valid(data) {
		return nil, ErrUnsupportedFormat.New("invalid json")
	}

	var doc any
	if err := yaml.UnmarshalWithOptions(data, &doc, yaml.UseOrderedMap()); err != nil {
		return nil, ErrUnsupportedFormat.New("invalid json: %v", err)
	}

	records, err := jsonRecords(doc)
	if err != nil {
		return nil, err
	}

	t := &Table{Format: FormatJSON, Encoding: "utf-8"}
	index := make(map[string]int)
	flat := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		row := make(map[string]string)
		flatten("", rec, row, func(col string) {
			if _, ok := index[col]; !ok {
				index[col] = len(t.Columns)
				t.Columns = append(t.Columns, col)
			}
		})
		flat = append(flat, row)
	}

	for _, row := range flat {
		cells := make([]string, len(t.Columns))
		for col, v := range row {
			cells[index[col]] = v
		}
		t.Rows = append(t.Rows, cells)
	}
	return t, nil
}

func jsonRecords(doc any) ([]yaml.MapSlice, error) {
	switch v := doc.(type) {
	case nil:
		return nil, nil
	case []any:
		return objectList(v)
	case yaml.MapSlice:
		if len(v) == 1 {
			switch inner := v[0].Value.(type) {
			case []any:
				return objectList(inner)
			case yaml.MapSlice:
				return []yaml.MapSlice{inner}, nil
			}
		}
		return []yaml.MapSlice{v}, nil
	default:
		return nil, ErrUnsupportedFormat.New("json document must be an object or a list of objects")
	}
}

func objectList(list []any) ([]yaml.MapSlice, error) {
	out := make([]yaml.MapSlice, 0, len(list))
	for i, item := range list {
		obj, ok := item.(yaml.MapSlice)
		if !ok {
			return nil, ErrUnsupportedFormat.New("json list element %d is not an object", i)
		}
		out = append(out, obj)
	}
	return out, nil
}

func flatten(prefix string, obj yaml.MapSlice, row map[string]string, addColumn func(string)) {
	for _, item := range obj {
		key := fmt.Sprint(item.Key)
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := item.Value.(yaml.MapSlice); ok {
			flatten(key, nested, row, addColumn)
			continue
		}
		addColumn(key)
		row[key] = scalarString(item.Value)
	}
}

func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []any:
		b, err := yaml.MarshalWithOptions(x, yaml.JSON())
		if err != nil {
			return fmt.Sprint(x)
		}
		return strings.TrimSpace(string(b))
	default:
		return fmt.Sprint(x)
	}
}
