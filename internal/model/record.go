// Package model defines the core domain models used throughout the application.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is one parsed row of an upload. Column order is preserved because
// the first record's columns become the source field list for mapping.
// Values are float64, string, bool or nil.
type Record struct {
	values  map[string]any
	columns []string
}

// NewRecord builds a record from alternating column/value arguments,
// e.g. NewRecord("qty", 2, "unit_price", 10). A trailing column without a
// value is stored as nil.
func NewRecord(kv ...any) Record {
	var r Record
	for i := 0; i < len(kv); i += 2 {
		col := fmt.Sprint(kv[i])
		var v any
		if i+1 < len(kv) {
			v = kv[i+1]
		}
		r.Set(col, v)
	}
	return r
}

// Set stores a value. Re-setting an existing column keeps its position.
func (r *Record) Set(column string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[column]; !ok {
		r.columns = append(r.columns, column)
	}
	r.values[column] = value
}

// Get returns the raw value for a column.
func (r Record) Get(column string) (any, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Columns returns the column names in insertion order.
func (r Record) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// Len returns the number of columns.
func (r Record) Len() int {
	return len(r.columns)
}

// Lookup returns the first truthy value among the given column aliases, or
// nil when none is set. Aliases let rules read both snake_case and camelCase
// exports of the same field.
func (r Record) Lookup(aliases ...string) any {
	for _, alias := range aliases {
		if v, ok := r.values[alias]; ok && Truthy(v) {
			return v
		}
	}
	return nil
}

// MarshalJSON encodes the record as a JSON object in column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[col])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping key order. Nested objects and
// arrays are kept as their compact JSON text since records hold scalars only.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record must be a JSON object")
	}

	*r = Record{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected record key %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("column %q: %w", key, err)
		}
		value, err := scalarFromJSON(raw)
		if err != nil {
			return fmt.Errorf("column %q: %w", key, err)
		}
		r.Set(key, value)
	}

	_, err = dec.Token()
	return err
}

func scalarFromJSON(raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		var compact bytes.Buffer
		if err := json.Compact(&compact, trimmed); err != nil {
			return nil, err
		}
		return compact.String(), nil
	}

	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, err
	}
	return v, nil
}
