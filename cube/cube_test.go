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

package cube

import (
	"context"
	"io"
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/cubeql/qexec/meta"
	"github.com/cubeql/qexec/operator"
)

var testSchema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.PrimitiveTypes.Int64},
	{Name: "seq", Type: arrow.PrimitiveTypes.Int64},
	{Name: "v", Type: arrow.BinaryTypes.String},
}, nil)

// fakeScan implements operator.ColumnarFileScan, reading back a
// fixed in-memory record keyed by path regardless of the
// requested schema/batchRows (real narrowing is handled by the
// read-projection built before Open is called).
type fakeScan struct {
	byPath map[string]arrow.Record
}

func (f *fakeScan) Open(ctx context.Context, path string, schema *arrow.Schema, batchRows int) (operator.RecordIter, error) {
	rec, ok := f.byPath[path]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return &onceIter{rec: rec}, nil
}

type onceIter struct {
	rec  arrow.Record
	done bool
}

func (it *onceIter) Next(ctx context.Context) (arrow.Record, error) {
	if it.done {
		return nil, io.EOF
	}
	it.done = true
	return it.rec, nil
}

func rec(ids, seqs []int64, vs []string) arrow.Record {
	bld := array.NewRecordBuilder(memory.DefaultAllocator, testSchema)
	defer bld.Release()
	bld.Field(0).(*array.Int64Builder).AppendValues(ids, nil)
	bld.Field(1).(*array.Int64Builder).AppendValues(seqs, nil)
	bld.Field(2).(*array.StringBuilder).AppendValues(vs, nil)
	return bld.NewRecord()
}

func drainAll(t *testing.T, plan operator.ExecutionPlan) []arrow.Record {
	t.Helper()
	var out []arrow.Record
	n := plan.OutputPartitioning().Count
	if n <= 0 {
		n = 1
	}
	for p := 0; p < n; p++ {
		it, err := plan.Execute(context.Background(), p)
		if err != nil {
			t.Fatal(err)
		}
		for {
			r, err := it.Next(context.Background())
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatal(err)
			}
			out = append(out, r)
		}
	}
	return out
}

func rowCount(recs []arrow.Record) int {
	n := 0
	for _, r := range recs {
		n += int(r.NumRows())
	}
	return n
}

func TestBuildScanDedupAcrossPartitionAndMemoryChunk(t *testing.T) {
	idx := meta.Index{
		Table:     "t",
		Sorted:    []meta.ColumnRef{{Name: "id", Pos: 0}},
		KeyLen:    1,
		UniqueKey: []meta.ColumnRef{{Name: "id"}},
		Sequence:  meta.ColumnRef{Name: "seq"},
	}
	partition := meta.Partition{
		ID: "p1",
		Chunks: []meta.Chunk{
			{Path: "file1.parquet", Min: meta.RowKey{meta.Int(1)}, Max: meta.RowKey{meta.Int(2)}, Rows: 3},
			{Path: "mem1", InMemory: true, Min: meta.RowKey{meta.Int(1)}, Max: meta.RowKey{meta.Int(1)}, Rows: 1},
		},
	}
	snapshot := meta.IndexSnapshot{Index: idx, Partitions: []meta.Partition{partition}}
	assigned := []meta.AssignedPartition{
		{Snapshot: meta.PartitionSnapshot{Partition: partition, Filter: meta.Default()}, Worker: 0},
	}

	table := Table{
		Schema: testSchema,
		Scan:   &fakeScan{byPath: map[string]arrow.Record{"file1.parquet": rec([]int64{1, 1, 2}, []int64{1, 2, 1}, []string{"a", "b", "c"})}},
		MemChunks: map[string][]arrow.Record{
			"mem1": {rec([]int64{1}, []int64{3}, []string{"d"})},
		},
	}

	plan, err := BuildScan(table, []string{"id", "v"}, 4096, nil, snapshot, assigned)
	if err != nil {
		t.Fatal(err)
	}
	recs := drainAll(t, plan)
	if rowCount(recs) != 2 {
		t.Fatalf("expected 2 deduplicated rows, got %d", rowCount(recs))
	}
	if int(plan.Schema().NumFields()) != 2 {
		t.Fatalf("expected final schema restricted to 2 columns, got %d", plan.Schema().NumFields())
	}
}

func TestBuildScanEmptyWhenNoPartitionAssigned(t *testing.T) {
	idx := meta.Index{Table: "t", Sorted: []meta.ColumnRef{{Name: "id"}}, KeyLen: 1}
	partition := meta.Partition{ID: "p1"}
	snapshot := meta.IndexSnapshot{Index: idx, Partitions: []meta.Partition{partition}}

	table := Table{Schema: testSchema, Scan: &fakeScan{byPath: map[string]arrow.Record{}}}
	plan, err := BuildScan(table, []string{"id"}, 4096, nil, snapshot, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := plan.(*operator.Empty); !ok {
		t.Fatalf("expected Empty fallback, got %T", plan)
	}
}

func TestBuildScanMissingInMemoryChunkIsInjectionError(t *testing.T) {
	idx := meta.Index{Table: "t", Sorted: []meta.ColumnRef{{Name: "id"}}, KeyLen: 1}
	partition := meta.Partition{
		ID:     "p1",
		Chunks: []meta.Chunk{{Path: "missing", InMemory: true}},
	}
	snapshot := meta.IndexSnapshot{Index: idx, Partitions: []meta.Partition{partition}}
	assigned := []meta.AssignedPartition{
		{Snapshot: meta.PartitionSnapshot{Partition: partition, Filter: meta.Default()}},
	}
	table := Table{Schema: testSchema, MemChunks: map[string][]arrow.Record{}}
	_, err := BuildScan(table, []string{"id"}, 4096, nil, snapshot, assigned)
	if err == nil {
		t.Fatal("expected an injection error for the unregistered in-memory chunk")
	}
}
