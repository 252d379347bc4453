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

package clustersend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/cubeql/qexec/batch"
	"github.com/cubeql/qexec/meta"
	"github.com/cubeql/qexec/operator"
)

var execTestSchema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.PrimitiveTypes.Int64},
}, nil)

func idRecord(ids ...int64) arrow.Record {
	bld := array.NewRecordBuilder(memory.DefaultAllocator, execTestSchema)
	defer bld.Release()
	bld.Field(0).(*array.Int64Builder).AppendValues(ids, nil)
	return bld.NewRecord()
}

type fakeBinder struct {
	got map[string]meta.RowFilter
}

func (b *fakeBinder) WithPartitionFilters(filters map[string]meta.RowFilter) (meta.SerializedPlan, error) {
	b.got = filters
	return meta.SerializedPlan("plan-bytes"), nil
}

type fakeCluster struct {
	lastWorker int
	lastPlan   meta.SerializedPlan
	result     arrow.Record
	stream     []arrow.Record
}

func (c *fakeCluster) Config() meta.ConfigObj                       { return nil }
func (c *fakeCluster) PickWorkerByIDs(id string) int                { return 0 }
func (c *fakeCluster) PickWorkerByPartitions(id string) int         { return 0 }
func (c *fakeCluster) RunSelect(ctx context.Context, worker int, plan meta.SerializedPlan) ([]byte, error) {
	c.lastWorker = worker
	c.lastPlan = plan
	return batch.Encode(c.result)
}
func (c *fakeCluster) RunSelectStream(ctx context.Context, worker int, plan meta.SerializedPlan) (io.ReadCloser, error) {
	var buf bytes.Buffer
	for _, r := range c.stream {
		if err := writeStreamBatch(&buf, r); err != nil {
			return nil, err
		}
	}
	return io.NopCloser(&buf), nil
}

func TestExecGroupsAndBindsFiltersBeforeDispatch(t *testing.T) {
	binder := &fakeBinder{}
	cluster := &fakeCluster{result: idRecord(1, 2, 3)}
	assignments := []WorkerAssignment{
		{Worker: 2, Filters: []PartitionFilter{
			{PartitionID: "p2", Range: meta.RowRange{Start: meta.RowKey{meta.Int(0)}, End: meta.RowKey{meta.Int(5)}}},
			{PartitionID: "p1", Range: meta.DefaultRange},
		}},
	}
	ex := NewExec(execTestSchema, assignments, binder, cluster, nil, false)
	if ex.OutputPartitioning().Count != 1 {
		t.Fatalf("expected 1 output partition, got %d", ex.OutputPartitioning().Count)
	}
	it, err := ex.Execute(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := it.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rec.NumRows() != 3 {
		t.Fatalf("expected 3 rows, got %d", rec.NumRows())
	}
	if cluster.lastWorker != 2 {
		t.Fatalf("expected dispatch to worker 2, got %d", cluster.lastWorker)
	}
	if len(binder.got) != 2 {
		t.Fatalf("expected filters grouped for 2 partitions, got %d", len(binder.got))
	}
	if !binder.got["p1"].IsDefault() {
		t.Fatalf("expected p1 to carry the default filter")
	}
}

func TestExecStreamingReadsEachBatch(t *testing.T) {
	binder := &fakeBinder{}
	cluster := &fakeCluster{stream: []arrow.Record{idRecord(1), idRecord(2, 3)}}
	assignments := []WorkerAssignment{{Worker: 0, Filters: []PartitionFilter{{PartitionID: "p1", Range: meta.DefaultRange}}}}
	ex := NewExec(execTestSchema, assignments, binder, cluster, nil, true)
	it, err := ex.Execute(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	var total int64
	for {
		rec, err := it.Next(context.Background())
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		total += rec.NumRows()
	}
	if total != 3 {
		t.Fatalf("expected 3 total rows across streamed batches, got %d", total)
	}
}

func TestSkeletonChildPanicsOnExecute(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when executing the plan-skeleton child")
		}
	}()
	src := &panicPlan{}
	ex := NewExec(execTestSchema, nil, &fakeBinder{}, &fakeCluster{}, src, false)
	children := ex.Children()
	if len(children) != 1 {
		t.Fatal("expected one skeleton child")
	}
	_, _ = children[0].Execute(context.Background(), 0)
}

type panicPlan struct{}

func (panicPlan) Schema() *arrow.Schema { return execTestSchema }
func (panicPlan) OutputPartitioning() operator.Partitioning {
	return operator.Partitioning{Count: 1}
}
func (panicPlan) Children() []operator.ExecutionPlan { return nil }
func (p panicPlan) WithNewChildren(children []operator.ExecutionPlan) (operator.ExecutionPlan, error) {
	if len(children) != 0 {
		return nil, fmt.Errorf("panicPlan: expected 0 children, got %d", len(children))
	}
	return p, nil
}
func (panicPlan) OutputHints() operator.Hints { return operator.Hints{} }
func (panicPlan) Execute(ctx context.Context, partition int) (operator.RecordIter, error) {
	return nil, nil
}
