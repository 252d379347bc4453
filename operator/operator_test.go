// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package operator

import (
	"context"
	"io"
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/cubeql/qexec/meta"
)

func testSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "v", Type: arrow.BinaryTypes.String},
	}, nil)
}

func buildRecord(t *testing.T, schema *arrow.Schema, ids []int64, vals []string) arrow.Record {
	t.Helper()
	bld := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer bld.Release()
	bld.Field(0).(*array.Int64Builder).AppendValues(ids, nil)
	bld.Field(1).(*array.StringBuilder).AppendValues(vals, nil)
	return bld.NewRecord()
}

func drain(t *testing.T, it RecordIter) []arrow.Record {
	t.Helper()
	var out []arrow.Record
	for {
		rec, err := it.Next(context.Background())
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out = append(out, rec)
	}
}

func totalRows(recs []arrow.Record) int64 {
	var n int64
	for _, r := range recs {
		n += r.NumRows()
	}
	return n
}

func TestEmptyYieldsNoRows(t *testing.T) {
	schema := testSchema()
	e := NewEmpty(schema)
	it, err := e.Execute(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	recs := drain(t, it)
	if len(recs) != 0 {
		t.Fatalf("expected no records, got %d", len(recs))
	}
	if !e.OutputHints().Sorted || !e.OutputHints().Deduplicated {
		t.Fatal("Empty must report sorted+deduplicated output")
	}
}

func TestMemorySourceReplaysBatches(t *testing.T) {
	schema := testSchema()
	r1 := buildRecord(t, schema, []int64{1, 2}, []string{"a", "b"})
	r2 := buildRecord(t, schema, []int64{3}, []string{"c"})
	src := NewMemorySource(schema, []arrow.Record{r1, r2}, Hints{})
	it, err := src.Execute(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	recs := drain(t, it)
	if totalRows(recs) != 3 {
		t.Fatalf("expected 3 rows total, got %d", totalRows(recs))
	}

	it2, err := src.Execute(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if recs2 := drain(t, it2); len(recs2) != 0 {
		t.Fatal("non-zero partition of a MemorySource must be empty")
	}
}

func TestProjectionSelectsColumns(t *testing.T) {
	schema := testSchema()
	rec := buildRecord(t, schema, []int64{1, 2}, []string{"a", "b"})
	src := NewMemorySource(schema, []arrow.Record{rec}, Hints{})
	proj, err := NewProjection(src, []int{1})
	if err != nil {
		t.Fatal(err)
	}
	if len(proj.Schema().Fields()) != 1 || proj.Schema().Field(0).Name != "v" {
		t.Fatalf("unexpected projected schema: %v", proj.Schema())
	}
	it, err := proj.Execute(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	recs := drain(t, it)
	if len(recs) != 1 || recs[0].NumCols() != 1 {
		t.Fatalf("unexpected projected output: %v", recs)
	}
}

func TestFilterByKeyRangePrunesRows(t *testing.T) {
	schema := testSchema()
	rec := buildRecord(t, schema, []int64{1, 2, 3, 4, 5}, []string{"a", "b", "c", "d", "e"})
	src := NewMemorySource(schema, []arrow.Record{rec}, Hints{Sorted: true})
	f := meta.Of(meta.RowRange{Start: meta.RowKey{meta.Int(2)}, End: meta.RowKey{meta.Int(4)}})
	filt := NewFilterByKeyRange(src, []int{0}, f)
	it, err := filt.Execute(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	recs := drain(t, it)
	if totalRows(recs) != 2 {
		t.Fatalf("expected 2 rows (ids 2,3), got %d", totalRows(recs))
	}
}

func TestFilterByKeyRangeDefaultPassesThrough(t *testing.T) {
	schema := testSchema()
	rec := buildRecord(t, schema, []int64{1, 2}, []string{"a", "b"})
	src := NewMemorySource(schema, []arrow.Record{rec}, Hints{})
	filt := NewFilterByKeyRange(src, []int{0}, meta.Default())
	it, err := filt.Execute(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	recs := drain(t, it)
	if totalRows(recs) != 2 {
		t.Fatalf("expected all rows to pass the default filter, got %d", totalRows(recs))
	}
}

func TestMergeConcatenatesChildren(t *testing.T) {
	schema := testSchema()
	a := NewMemorySource(schema, []arrow.Record{buildRecord(t, schema, []int64{1}, []string{"a"})}, Hints{})
	b := NewMemorySource(schema, []arrow.Record{buildRecord(t, schema, []int64{2}, []string{"b"})}, Hints{})
	m, err := NewMerge([]ExecutionPlan{a, b})
	if err != nil {
		t.Fatal(err)
	}
	it, err := m.Execute(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	recs := drain(t, it)
	if totalRows(recs) != 2 {
		t.Fatalf("expected 2 rows, got %d", totalRows(recs))
	}
}

func TestMergeSortOrdersAcrossChildren(t *testing.T) {
	schema := testSchema()
	a := NewMemorySource(schema, []arrow.Record{buildRecord(t, schema, []int64{1, 3, 5}, []string{"a", "c", "e"})}, Hints{Sorted: true})
	b := NewMemorySource(schema, []arrow.Record{buildRecord(t, schema, []int64{2, 4}, []string{"b", "d"})}, Hints{Sorted: true})
	ms, err := NewMergeSort([]ExecutionPlan{a, b}, []int{0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	it, err := ms.Execute(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	recs := drain(t, it)
	var ids []int64
	for _, r := range recs {
		col := r.Column(0).(*array.Int64)
		for i := 0; i < col.Len(); i++ {
			ids = append(ids, col.Value(i))
		}
	}
	want := []int64{1, 2, 3, 4, 5}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestLastRowByUniqueKeyKeepsLatest(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "seq", Type: arrow.PrimitiveTypes.Int64},
	}, nil)
	bld := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	bld.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 1, 2, 2, 2}, nil)
	bld.Field(1).(*array.Int64Builder).AppendValues([]int64{10, 20, 5, 6, 7}, nil)
	rec := bld.NewRecord()
	bld.Release()

	src := NewMemorySource(schema, []arrow.Record{rec}, Hints{Sorted: true})
	dedup := NewLastRowByUniqueKey(src, []int{0}, 1, 4096)
	it, err := dedup.Execute(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	recs := drain(t, it)
	type row struct{ id, seq int64 }
	var got []row
	for _, r := range recs {
		idCol := r.Column(0).(*array.Int64)
		seqCol := r.Column(1).(*array.Int64)
		for i := 0; i < idCol.Len(); i++ {
			got = append(got, row{idCol.Value(i), seqCol.Value(i)})
		}
	}
	want := []row{{1, 20}, {2, 7}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestLastRowByUniqueKeyPicksMaxSeqNotStreamOrder(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "seq", Type: arrow.PrimitiveTypes.Int64},
	}, nil)
	bld := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	// id=1's run is NOT in ascending seq order: the last row seen
	// (seq=5) is not the winner, seq=9 is.
	bld.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 1, 1}, nil)
	bld.Field(1).(*array.Int64Builder).AppendValues([]int64{5, 9, 5}, nil)
	rec := bld.NewRecord()
	bld.Release()

	src := NewMemorySource(schema, []arrow.Record{rec}, Hints{Sorted: true})
	dedup := NewLastRowByUniqueKey(src, []int{0}, 1, 4096)
	it, err := dedup.Execute(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	recs := drain(t, it)
	if totalRows(recs) != 1 {
		t.Fatalf("expected 1 deduplicated row, got %d", totalRows(recs))
	}
	seqCol := recs[0].Column(1).(*array.Int64)
	if seqCol.Value(0) != 9 {
		t.Fatalf("expected max seq 9 to win, got %d", seqCol.Value(0))
	}
}
