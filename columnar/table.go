// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package columnar holds a small typed, row-addressable table and converts
// it to and from CSV and parquet. The merge accumulator uses it to combine
// the accumulated store object with newly staged rows.
package columnar

import (
	"strconv"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/pkg/errors"
)

// Type is a column type. Every column is nullable.
type Type int

const (
	// Null is the type of a column with no values; it unifies with any
	// other type.
	Null Type = iota
	Int64
	Float64
	Bool
	String
)

func (t Type) String() string {
	switch t {
	case Null:
		return "null"
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	case Bool:
		return "bool"
	case String:
		return "string"
	}
	return "unknown(" + strconv.Itoa(int(t)) + ")"
}

// arrowType returns the arrow type a column is stored as. Null columns are
// written as strings.
func (t Type) arrowType() arrow.DataType {
	switch t {
	case Int64:
		return arrow.PrimitiveTypes.Int64
	case Float64:
		return arrow.PrimitiveTypes.Float64
	case Bool:
		return arrow.FixedWidthTypes.Boolean
	}
	return arrow.BinaryTypes.String
}

// Column is a named, typed column.
type Column struct {
	Name string
	Type Type
}

// Table is a schema plus rows. A row holds one cell per column: nil for
// null, otherwise an int64, float64, bool or string matching the column's
// type.
type Table struct {
	Schema []Column
	Rows   [][]interface{}
	// Metadata is carried in the parquet footer.
	Metadata map[string]string
}

// NewTable returns an empty table with the given schema.
func NewTable(schema []Column) *Table {
	return &Table{Schema: schema, Metadata: make(map[string]string)}
}

func (t *Table) NumRows() int { return len(t.Rows) }

func (t *Table) NumCols() int { return len(t.Schema) }

// ColumnIndex returns the position of the named column or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Schema {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Value returns the cell at row, col.
func (t *Table) Value(row, col int) interface{} {
	return t.Rows[row][col]
}

// Format renders the cell at row, col. Nulls render as the empty string.
func (t *Table) Format(row, col int) string {
	return formatCell(t.Rows[row][col])
}

// Append adds a row after checking it against the schema.
func (t *Table) Append(row []interface{}) error {
	if len(row) != len(t.Schema) {
		return errors.Errorf("row has %d cells, schema has %d columns", len(row), len(t.Schema))
	}
	for i, v := range row {
		if !accepts(t.Schema[i].Type, v) {
			return errors.Errorf("column %s (%s) cannot hold %T", t.Schema[i].Name, t.Schema[i].Type, v)
		}
	}
	t.Rows = append(t.Rows, row)
	return nil
}

func accepts(typ Type, v interface{}) bool {
	if v == nil {
		return true
	}
	switch v.(type) {
	case int64:
		return typ == Int64
	case float64:
		return typ == Float64
	case bool:
		return typ == Bool
	case string:
		return typ == String
	}
	return false
}

// effectiveType is the column's declared type, or Null if no row holds a
// value for it.
func (t *Table) effectiveType(col int) Type {
	for _, row := range t.Rows {
		if row[col] != nil {
			return t.Schema[col].Type
		}
	}
	return Null
}

// unifyType returns the narrowest type both a and b convert to.
func unifyType(a, b Type) Type {
	switch {
	case a == b:
		return a
	case a == Null:
		return b
	case b == Null:
		return a
	case (a == Int64 && b == Float64) || (a == Float64 && b == Int64):
		return Float64
	}
	return String
}

// Concat returns the rows of a followed by the rows of b under a unified
// schema: a's columns in order, then any columns only b has. Cells of a
// column one side lacks are null. Column types unify as int64 with float64
// to float64; any other disagreement makes the column a string column.
// Metadata of a is kept and overlaid with b's.
func Concat(a, b *Table) (*Table, error) {
	type source struct {
		aIdx, bIdx int
	}
	var schema []Column
	var sources []source
	seen := make(map[string]int)
	for i, c := range a.Schema {
		if _, dup := seen[c.Name]; dup {
			return nil, errors.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = len(schema)
		schema = append(schema, Column{Name: c.Name, Type: a.effectiveType(i)})
		sources = append(sources, source{aIdx: i, bIdx: -1})
	}
	bSeen := make(map[string]bool)
	for i, c := range b.Schema {
		if bSeen[c.Name] {
			return nil, errors.Errorf("duplicate column %q", c.Name)
		}
		bSeen[c.Name] = true
		if j, ok := seen[c.Name]; ok {
			schema[j].Type = unifyType(schema[j].Type, b.effectiveType(i))
			sources[j].bIdx = i
			continue
		}
		seen[c.Name] = len(schema)
		schema = append(schema, Column{Name: c.Name, Type: b.effectiveType(i)})
		sources = append(sources, source{aIdx: -1, bIdx: i})
	}
	// a column that is null on both sides keeps a declared type when the
	// sides agree on one
	for j := range schema {
		if schema[j].Type != Null {
			continue
		}
		var at, bt = Null, Null
		if s := sources[j]; s.aIdx >= 0 {
			at = a.Schema[s.aIdx].Type
		}
		if s := sources[j]; s.bIdx >= 0 {
			bt = b.Schema[s.bIdx].Type
		}
		schema[j].Type = unifyType(at, bt)
		if schema[j].Type == Null {
			schema[j].Type = String
		}
	}

	out := NewTable(schema)
	out.Rows = make([][]interface{}, 0, len(a.Rows)+len(b.Rows))
	for _, side := range []struct {
		t   *Table
		isA bool
	}{{a, true}, {b, false}} {
		for _, row := range side.t.Rows {
			nr := make([]interface{}, len(schema))
			for j, s := range sources {
				idx := s.bIdx
				if side.isA {
					idx = s.aIdx
				}
				if idx < 0 {
					continue
				}
				nr[j] = convert(row[idx], schema[j].Type)
			}
			out.Rows = append(out.Rows, nr)
		}
	}
	for k, v := range a.Metadata {
		out.Metadata[k] = v
	}
	for k, v := range b.Metadata {
		out.Metadata[k] = v
	}
	return out, nil
}

// convert changes v to typ. Only widening conversions are asked for.
func convert(v interface{}, typ Type) interface{} {
	if v == nil {
		return nil
	}
	switch typ {
	case Float64:
		if i, ok := v.(int64); ok {
			return float64(i)
		}
	case String:
		if _, ok := v.(string); !ok {
			return formatCell(v)
		}
	}
	return v
}

func formatCell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}
