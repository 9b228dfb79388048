// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package columnar

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ReadCSV decodes a CSV document with a header row. Empty cells are null.
// A column's type is inferred from its non-empty cells: int64 if all parse
// as integers, float64 if all parse as numbers, bool if all are true/false,
// otherwise string. A column with no values has type Null.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "reading csv")
	}
	if len(records) == 0 {
		return nil, errors.New("csv has no header")
	}
	header := records[0]
	// a UTF-8 byte order mark before the first column name
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	seen := make(map[string]bool, len(header))
	for _, name := range header {
		if seen[name] {
			return nil, errors.Errorf("duplicate column %q", name)
		}
		seen[name] = true
	}
	body := records[1:]

	schema := make([]Column, len(header))
	for i, name := range header {
		schema[i] = Column{Name: name, Type: inferType(body, i)}
	}

	t := NewTable(schema)
	t.Rows = make([][]interface{}, 0, len(body))
	for ri, rec := range body {
		row := make([]interface{}, len(schema))
		for i, cell := range rec {
			v, err := parseCell(cell, schema[i].Type)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d column %s", ri+1, schema[i].Name)
			}
			row[i] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func inferType(rows [][]string, col int) Type {
	typ := Null
	for _, row := range rows {
		cell := row[col]
		if cell == "" {
			continue
		}
		typ = unifyType(typ, cellType(cell))
		if typ == String {
			return String
		}
	}
	return typ
}

func cellType(s string) Type {
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int64
	}
	if _, ok := parseFloat(s); ok {
		return Float64
	}
	if _, ok := parseBool(s); ok {
		return Bool
	}
	return String
}

// parseFloat accepts finite decimal numbers only, so names like "Nan" or
// "Infinity" stay strings.
func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseBool(s string) (bool, bool) {
	switch {
	case strings.EqualFold(s, "true"):
		return true, true
	case strings.EqualFold(s, "false"):
		return false, true
	}
	return false, false
}

func parseCell(s string, typ Type) (interface{}, error) {
	if s == "" {
		return nil, nil
	}
	switch typ {
	case Int64:
		return strconv.ParseInt(s, 10, 64)
	case Float64:
		f, ok := parseFloat(s)
		if !ok {
			return nil, errors.Errorf("invalid number %q", s)
		}
		return f, nil
	case Bool:
		b, ok := parseBool(s)
		if !ok {
			return nil, errors.Errorf("invalid bool %q", s)
		}
		return b, nil
	}
	return s, nil
}
