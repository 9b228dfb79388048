// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package columnar

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featurebasedb/edp/record"
)

func mustReadCSV(t *testing.T, s string) *Table {
	t.Helper()
	tbl, err := ReadCSV(strings.NewReader(s))
	require.NoError(t, err)
	return tbl
}

func TestReadCSVInference(t *testing.T) {
	tbl := mustReadCSV(t, "username,age,score,verified,nickname,zip\n"+
		"alice,30,1.5,True,,02139\n"+
		"bob,41,2,false,,x1\n")

	assert.Equal(t, []Column{
		{"username", String},
		{"age", Int64},
		{"score", Float64},
		{"verified", Bool},
		{"nickname", Null},
		{"zip", String},
	}, tbl.Schema)
	require.Equal(t, 2, tbl.NumRows())
	assert.Equal(t, []interface{}{"alice", int64(30), 1.5, true, nil, "02139"}, tbl.Rows[0])
	assert.Equal(t, []interface{}{"bob", int64(41), 2.0, false, nil, "x1"}, tbl.Rows[1])
}

func TestReadCSVNonFiniteStaysString(t *testing.T) {
	tbl := mustReadCSV(t, "name\nNaN\nInf\n")
	assert.Equal(t, String, tbl.Schema[0].Type)
}

func TestReadCSVErrors(t *testing.T) {
	for _, in := range []string{"", "a,a\n1,2\n", "a,b\n1\n"} {
		_, err := ReadCSV(strings.NewReader(in))
		assert.Error(t, err, in)
	}
}

func TestReadCSVHeaderOnly(t *testing.T) {
	tbl := mustReadCSV(t, "a,b\n")
	assert.Equal(t, 0, tbl.NumRows())
	assert.Equal(t, 2, tbl.NumCols())
}

func TestRecordCSVRoundTrip(t *testing.T) {
	rec, err := record.Decode([]byte(`{"username": "jdoe", "address": "5 Elm St, Apt 2", "age": 27, "ratio": 0.25, "active": false, "note": null}`))
	require.NoError(t, err)
	data, err := record.EncodeCSV(rec)
	require.NoError(t, err)

	tbl := mustReadCSV(t, string(data))
	require.Equal(t, 1, tbl.NumRows())
	require.Equal(t, rec.Names(), names(tbl.Schema))
	for i, f := range rec.Fields {
		got := tbl.Value(0, i)
		switch want := f.Value.(type) {
		case json.Number:
			assert.Equal(t, want.String(), tbl.Format(0, i), f.Name)
		default:
			assert.Equal(t, want, got, f.Name)
		}
	}
}

func TestRecordCSVRoundTripSingleNullField(t *testing.T) {
	rec, err := record.Decode([]byte(`{"username": null}`))
	require.NoError(t, err)
	data, err := record.EncodeCSV(rec)
	require.NoError(t, err)

	tbl := mustReadCSV(t, string(data))
	require.Equal(t, 1, tbl.NumRows())
	assert.Equal(t, []Column{{"username", Null}}, tbl.Schema)
	assert.Nil(t, tbl.Value(0, 0))
}

func names(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

func TestConcatSameSchema(t *testing.T) {
	a := mustReadCSV(t, "username,age\nalice,30\n")
	b := mustReadCSV(t, "username,age\nbob,41\n")
	out, err := Concat(a, b)
	require.NoError(t, err)
	assert.Equal(t, []Column{{"username", String}, {"age", Int64}}, out.Schema)
	assert.Equal(t, [][]interface{}{{"alice", int64(30)}, {"bob", int64(41)}}, out.Rows)
}

func TestConcatUnifiesSchemas(t *testing.T) {
	a := mustReadCSV(t, "username,age,score,flag\nalice,30,1,true\n")
	b := mustReadCSV(t, "email,username,score,flag\nb@example.com,bob,2.5,7\n")
	out, err := Concat(a, b)
	require.NoError(t, err)

	assert.Equal(t, []Column{
		{"username", String},
		{"age", Int64},
		{"score", Float64},
		{"flag", String},
		{"email", String},
	}, out.Schema)
	assert.Equal(t, [][]interface{}{
		{"alice", int64(30), 1.0, "true", nil},
		{"bob", nil, 2.5, "7", "b@example.com"},
	}, out.Rows)
}

func TestConcatNullColumnAdoptsType(t *testing.T) {
	a := mustReadCSV(t, "username,nickname\nalice,\n")
	b := mustReadCSV(t, "username,nickname\nbob,5\n")
	out, err := Concat(a, b)
	require.NoError(t, err)
	assert.Equal(t, Int64, out.Schema[1].Type)

	c := mustReadCSV(t, "username,nickname\ncarol,\n")
	out, err = Concat(a, c)
	require.NoError(t, err)
	assert.Equal(t, String, out.Schema[1].Type)
}

func TestConcatMetadata(t *testing.T) {
	a := NewTable([]Column{{"a", Int64}})
	a.Metadata["k"] = "old"
	a.Metadata["keep"] = "1"
	b := NewTable([]Column{{"a", Int64}})
	b.Metadata["k"] = "new"
	out, err := Concat(a, b)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"k": "new", "keep": "1"}, out.Metadata)
}

func TestAppend(t *testing.T) {
	tbl := NewTable([]Column{{"a", Int64}, {"b", String}})
	require.NoError(t, tbl.Append([]interface{}{int64(1), nil}))
	assert.Error(t, tbl.Append([]interface{}{"x", "y"}))
	assert.Error(t, tbl.Append([]interface{}{int64(1)}))
	assert.Equal(t, 1, tbl.NumRows())
	assert.Equal(t, 1, tbl.ColumnIndex("b"))
	assert.Equal(t, -1, tbl.ColumnIndex("c"))
}

func TestParquetRoundTrip(t *testing.T) {
	ctx := context.Background()
	tbl := NewTable([]Column{
		{"username", String},
		{"age", Int64},
		{"score", Float64},
		{"verified", Bool},
		{"nickname", Null},
	})
	require.NoError(t, tbl.Append([]interface{}{"alice", int64(30), 1.5, true, nil}))
	require.NoError(t, tbl.Append([]interface{}{nil, nil, nil, nil, nil}))
	require.NoError(t, tbl.Append([]interface{}{"bob", int64(-4), 0.0, false, nil}))
	tbl.Metadata["edp.merged_objects"] = `["inbound/a.csv"]`

	data, err := EncodeParquet(tbl)
	require.NoError(t, err)
	assert.Equal(t, "PAR1", string(data[:4]))

	got, err := DecodeParquet(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, []Column{
		{"username", String},
		{"age", Int64},
		{"score", Float64},
		{"verified", Bool},
		{"nickname", String},
	}, got.Schema)
	assert.Equal(t, tbl.Rows, got.Rows)
	assert.Equal(t, `["inbound/a.csv"]`, got.Metadata["edp.merged_objects"])
	_, ok := got.Metadata["ARROW:schema"]
	assert.False(t, ok)
}

func TestParquetEmptyTable(t *testing.T) {
	_, err := EncodeParquet(NewTable(nil))
	assert.Error(t, err)

	tbl := NewTable([]Column{{"a", String}})
	data, err := EncodeParquet(tbl)
	require.NoError(t, err)
	got, err := DecodeParquet(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, 0, got.NumRows())
	assert.Equal(t, []Column{{"a", String}}, got.Schema)
}

func TestDecodeParquetGarbage(t *testing.T) {
	_, err := DecodeParquet(context.Background(), []byte("not parquet at all"))
	assert.Error(t, err)
}
