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

package localcluster

import (
	"context"
	"io"
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/cubeql/qexec/batch"
	"github.com/cubeql/qexec/config"
	"github.com/cubeql/qexec/cube"
	"github.com/cubeql/qexec/meta"
	"github.com/cubeql/qexec/operator"
	"github.com/cubeql/qexec/plan"
)

var testSchema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.PrimitiveTypes.Int64},
}, nil)

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

type fakeScan struct {
	rec arrow.Record
}

func (f *fakeScan) Open(ctx context.Context, path string, schema *arrow.Schema, batchRows int) (operator.RecordIter, error) {
	return &onceIter{rec: f.rec}, nil
}

func idRecord(ids ...int64) arrow.Record {
	bld := array.NewRecordBuilder(memory.DefaultAllocator, testSchema)
	defer bld.Release()
	bld.Field(0).(*array.Int64Builder).AppendValues(ids, nil)
	return bld.NewRecord()
}

type fakeSource struct {
	table    cube.Table
	snapshot meta.IndexSnapshot
}

func (s *fakeSource) Table(name string) (cube.Table, meta.IndexSnapshot, error) {
	return s.table, s.snapshot, nil
}

func newTestCluster(t *testing.T) (*Cluster, *plan.Template) {
	t.Helper()
	idx := meta.Index{Table: "t", Sorted: []meta.ColumnRef{{Name: "id"}}, KeyLen: 1}
	partition := meta.Partition{
		ID:     "p1",
		Chunks: []meta.Chunk{{Path: "file1.parquet", Min: meta.RowKey{meta.Int(1)}, Max: meta.RowKey{meta.Int(3)}, Rows: 3}},
	}
	snapshot := meta.IndexSnapshot{Index: idx, Partitions: []meta.Partition{partition}}
	src := &fakeSource{
		table: cube.Table{
			Schema: testSchema,
			Scan:   &fakeScan{rec: idRecord(1, 2, 3)},
		},
		snapshot: snapshot,
	}
	cfg, err := config.Parse([]byte("nodes:\n  - worker-0:8080\n"))
	if err != nil {
		t.Fatal(err)
	}
	tpl := &plan.Template{Table: "t", Projection: []string{"id"}, BatchSize: 4096}
	return New(cfg, src), tpl
}

func TestRunSelectReturnsOneBlob(t *testing.T) {
	c, tpl := newTestCluster(t)
	sp, err := tpl.WithPartitionFilters(map[string]meta.RowFilter{"p1": meta.Default()})
	if err != nil {
		t.Fatal(err)
	}
	blob, err := c.RunSelect(context.Background(), 0, sp)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := batch.Decode(blob)
	if err != nil {
		t.Fatal(err)
	}
	if rec.NumRows() != 3 {
		t.Fatalf("expected 3 rows, got %d", rec.NumRows())
	}
}

func TestRunSelectStreamFramesBatches(t *testing.T) {
	c, tpl := newTestCluster(t)
	sp, err := tpl.WithPartitionFilters(map[string]meta.RowFilter{"p1": meta.Default()})
	if err != nil {
		t.Fatal(err)
	}
	rc, err := c.RunSelectStream(context.Background(), 0, sp)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatal("expected a non-empty framed stream")
	}
}

func TestPickWorkerIsDeterministic(t *testing.T) {
	c, _ := newTestCluster(t)
	a := c.PickWorkerByPartitions("p1")
	b := c.PickWorkerByPartitions("p1")
	if a != b {
		t.Fatalf("expected deterministic worker pick, got %d and %d", a, b)
	}
	if a < 0 || a >= len(c.Config().Nodes()) {
		t.Fatalf("worker ordinal %d out of range", a)
	}
}
