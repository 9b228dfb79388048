// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package columnar

import (
	"bytes"
	"context"
	"sort"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/apache/arrow/go/v10/parquet"
	"github.com/apache/arrow/go/v10/parquet/compress"
	"github.com/apache/arrow/go/v10/parquet/file"
	"github.com/apache/arrow/go/v10/parquet/pqarrow"
	"github.com/pkg/errors"
)

const rowGroupSize = 64 * 1024

// footer keys written by other tools that describe a layout we do not
// preserve, so they are not carried into Table.Metadata.
var droppedMetadata = map[string]bool{
	"ARROW:schema": true,
	"pandas":       true,
}

// EncodeParquet encodes t as a snappy-compressed parquet file. Table
// metadata is written to the file's key/value metadata.
func EncodeParquet(t *Table) ([]byte, error) {
	if len(t.Schema) == 0 {
		return nil, errors.New("table has no columns")
	}
	mem := memory.NewGoAllocator()

	fields := make([]arrow.Field, len(t.Schema))
	cols := make([]arrow.Array, len(t.Schema))
	for i, c := range t.Schema {
		fields[i] = arrow.Field{Name: c.Name, Type: c.Type.arrowType(), Nullable: true}
		arr, err := buildColumn(mem, t, i)
		if err != nil {
			return nil, err
		}
		defer arr.Release()
		cols[i] = arr
	}

	keys := make([]string, 0, len(t.Metadata))
	for k := range t.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = t.Metadata[k]
	}
	md := arrow.NewMetadata(keys, values)
	schema := arrow.NewSchema(fields, &md)

	rec := array.NewRecord(schema, cols, int64(len(t.Rows)))
	defer rec.Release()
	table := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer table.Release()

	props := parquet.NewWriterProperties(
		parquet.WithAllocator(mem),
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithDictionaryDefault(false),
	)
	arrProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	var buf bytes.Buffer
	if err := pqarrow.WriteTable(table, &buf, rowGroupSize, props, arrProps); err != nil {
		return nil, errors.Wrap(err, "writing parquet")
	}
	return buf.Bytes(), nil
}

func buildColumn(mem memory.Allocator, t *Table, col int) (arrow.Array, error) {
	name := t.Schema[col].Name
	switch t.Schema[col].Type {
	case Int64:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		for _, row := range t.Rows {
			switch v := row[col].(type) {
			case nil:
				b.AppendNull()
			case int64:
				b.Append(v)
			default:
				return nil, errors.Errorf("column %s: %T in int64 column", name, v)
			}
		}
		return b.NewArray(), nil
	case Float64:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		for _, row := range t.Rows {
			switch v := row[col].(type) {
			case nil:
				b.AppendNull()
			case float64:
				b.Append(v)
			case int64:
				b.Append(float64(v))
			default:
				return nil, errors.Errorf("column %s: %T in float64 column", name, v)
			}
		}
		return b.NewArray(), nil
	case Bool:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		for _, row := range t.Rows {
			switch v := row[col].(type) {
			case nil:
				b.AppendNull()
			case bool:
				b.Append(v)
			default:
				return nil, errors.Errorf("column %s: %T in bool column", name, v)
			}
		}
		return b.NewArray(), nil
	default:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		for _, row := range t.Rows {
			switch v := row[col].(type) {
			case nil:
				b.AppendNull()
			case string:
				b.Append(v)
			default:
				b.Append(formatCell(v))
			}
		}
		return b.NewArray(), nil
	}
}

// ReadParquet decodes a parquet file, such as a bytes.Reader or an
// os.File, into a Table.
func ReadParquet(ctx context.Context, r parquet.ReaderAtSeeker) (*Table, error) {
	pf, err := file.NewParquetReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening parquet")
	}
	defer pf.Close()

	mem := memory.NewGoAllocator()
	reader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, errors.Wrap(err, "creating arrow reader")
	}
	tbl, err := reader.ReadTable(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reading table")
	}
	defer tbl.Release()

	nrows := int(tbl.NumRows())
	ncols := int(tbl.NumCols())
	schema := make([]Column, ncols)
	rows := make([][]interface{}, nrows)
	for i := range rows {
		rows[i] = make([]interface{}, ncols)
	}
	for c := 0; c < ncols; c++ {
		col := tbl.Column(c)
		typ, err := fromArrow(col.DataType())
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", col.Name())
		}
		schema[c] = Column{Name: col.Name(), Type: typ}
		offset := 0
		for _, chunk := range col.Data().Chunks() {
			if err := readChunk(chunk, rows[offset:], c); err != nil {
				return nil, errors.Wrapf(err, "column %s", col.Name())
			}
			offset += chunk.Len()
		}
	}

	t := NewTable(schema)
	t.Rows = rows
	kv := pf.MetaData().KeyValueMetadata()
	keys, values := kv.Keys(), kv.Values()
	for i, k := range keys {
		if droppedMetadata[k] {
			continue
		}
		t.Metadata[k] = values[i]
	}
	return t, nil
}

// DecodeParquet is ReadParquet over an in-memory file.
func DecodeParquet(ctx context.Context, data []byte) (*Table, error) {
	return ReadParquet(ctx, bytes.NewReader(data))
}

func fromArrow(dt arrow.DataType) (Type, error) {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32:
		return Int64, nil
	case arrow.FLOAT32, arrow.FLOAT64:
		return Float64, nil
	case arrow.BOOL:
		return Bool, nil
	case arrow.STRING:
		return String, nil
	case arrow.NULL:
		return Null, nil
	}
	return Null, errors.Errorf("unsupported column type %s", dt)
}

func readChunk(chunk arrow.Array, rows [][]interface{}, col int) error {
	n := chunk.Len()
	if n > len(rows) {
		return errors.Errorf("chunk of %d rows overruns table", n)
	}
	for j := 0; j < n; j++ {
		if chunk.IsNull(j) {
			continue
		}
		switch a := chunk.(type) {
		case *array.Int8:
			rows[j][col] = int64(a.Value(j))
		case *array.Int16:
			rows[j][col] = int64(a.Value(j))
		case *array.Int32:
			rows[j][col] = int64(a.Value(j))
		case *array.Int64:
			rows[j][col] = a.Value(j)
		case *array.Uint8:
			rows[j][col] = int64(a.Value(j))
		case *array.Uint16:
			rows[j][col] = int64(a.Value(j))
		case *array.Uint32:
			rows[j][col] = int64(a.Value(j))
		case *array.Float32:
			rows[j][col] = float64(a.Value(j))
		case *array.Float64:
			rows[j][col] = a.Value(j)
		case *array.Boolean:
			rows[j][col] = a.Value(j)
		case *array.String:
			rows[j][col] = a.Value(j)
		default:
			return errors.Errorf("unsupported array %T", chunk)
		}
	}
	return nil
}
