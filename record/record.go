// Package record models one user record fetched from the record source and
// its row-oriented (CSV) encoding.
package record

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

// PartitionField names the field used as the stream partition key.
const PartitionField = "username"

// DefaultPartitionKey is used when a record has no usable username.
const DefaultPartitionKey = "default_username"

// Field is one named scalar value. Value is nil, a string, a json.Number or
// a bool. Nested objects and arrays are kept as their compact JSON text.
type Field struct {
	Name  string
	Value interface{}
}

// Record is a flat, ordered set of fields. Order follows the keys of the
// JSON object it was decoded from, and becomes the CSV column order.
type Record struct {
	Fields []Field
}

// Decode parses a single JSON object into a Record, keeping key order.
func Decode(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return Record{}, errors.Wrap(err, "reading record")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Record{}, errors.Errorf("record must be a JSON object, got %v", tok)
	}

	var rec Record
	seen := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Record{}, errors.Wrap(err, "reading field name")
		}
		name, ok := tok.(string)
		if !ok {
			return Record{}, errors.Errorf("unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return Record{}, errors.Wrapf(err, "reading field %q", name)
		}
		val, err := scalar(raw)
		if err != nil {
			return Record{}, errors.Wrapf(err, "decoding field %q", name)
		}
		// a repeated key keeps its first position and its last value,
		// which is what encoding/json does for maps
		if i, ok := seen[name]; ok {
			rec.Fields[i].Value = val
			continue
		}
		seen[name] = len(rec.Fields)
		rec.Fields = append(rec.Fields, Field{Name: name, Value: val})
	}
	if _, err := dec.Token(); err != nil {
		return Record{}, errors.Wrap(err, "reading end of record")
	}
	if _, err := dec.Token(); err != io.EOF {
		return Record{}, errors.New("trailing data after record")
	}
	return rec, nil
}

func scalar(raw json.RawMessage) (interface{}, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("empty value")
	}
	switch trimmed[0] {
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return nil, err
		}
		return buf.String(), nil
	case 'n':
		return nil, nil
	case 't', 'f':
		var b bool
		err := json.Unmarshal(trimmed, &b)
		return b, err
	case '"':
		var s string
		err := json.Unmarshal(trimmed, &s)
		return s, err
	default:
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		var n json.Number
		err := dec.Decode(&n)
		return n, err
	}
}

// Get returns the value of the named field.
func (r Record) Get(name string) (interface{}, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Names returns the field names in order.
func (r Record) Names() []string {
	names := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		names[i] = f.Name
	}
	return names
}

// PartitionKey returns the record's username, or DefaultPartitionKey when it
// is missing or empty.
func (r Record) PartitionKey() string {
	v, ok := r.Get(PartitionField)
	if !ok || v == nil {
		return DefaultPartitionKey
	}
	s := FormatValue(v)
	if s == "" {
		return DefaultPartitionKey
	}
	return s
}

// FormatValue renders a field value as a CSV cell. Null is the empty cell.
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// EncodeCSV writes the records as CSV with a header row. The header is the
// first record's field names; later records are written in that column order
// and must not carry fields the first lacks.
func EncodeCSV(records ...Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, errors.New("no records to encode")
	}
	header := records[0].Names()
	if len(header) == 0 {
		return nil, errors.New("record has no fields")
	}
	index := make(map[string]int, len(header))
	for i, n := range header {
		index[n] = i
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, errors.Wrap(err, "writing header")
	}
	row := make([]string, len(header))
	for ri, rec := range records {
		for i := range row {
			row[i] = ""
		}
		for _, f := range rec.Fields {
			i, ok := index[f.Name]
			if !ok {
				return nil, errors.Errorf("record %d has field %q not in header", ri, f.Name)
			}
			row[i] = FormatValue(f.Value)
		}
		if len(row) == 1 && row[0] == "" {
			// a lone empty field would be written as a blank line, which
			// readers skip
			w.Flush()
			buf.WriteString("\"\"\n")
			continue
		}
		if err := w.Write(row); err != nil {
			return nil, errors.Wrapf(err, "writing record %d", ri)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, "flushing csv")
	}
	return buf.Bytes(), nil
}
