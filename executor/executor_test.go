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

package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/cubeql/qexec/errs"
	"github.com/cubeql/qexec/expr"
	"github.com/cubeql/qexec/meta"
	"github.com/cubeql/qexec/operator"
	"github.com/cubeql/qexec/plan"
)

var schema = arrow.NewSchema([]arrow.Field{{Name: "id", Type: arrow.PrimitiveTypes.Int64}}, nil)

func oneBatchPlan() operator.ExecutionPlan {
	bld := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer bld.Release()
	bld.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
	rec := bld.NewRecord()
	return operator.NewMemorySource(schema, []arrow.Record{rec}, operator.Hints{})
}

func TestGetWorkerPlanFindsMarker(t *testing.T) {
	leaf := oneBatchPlan()
	marked := operator.NewMarker(leaf, 4096)
	proj, err := operator.NewProjection(marked, []int{0})
	if err != nil {
		t.Fatal(err)
	}
	m, err := GetWorkerPlan(proj)
	if err != nil {
		t.Fatal(err)
	}
	if m.MaxBatchRows() != 4096 {
		t.Fatalf("expected max batch rows 4096, got %d", m.MaxBatchRows())
	}
}

func TestGetWorkerPlanMissingMarker(t *testing.T) {
	_, err := GetWorkerPlan(oneBatchPlan())
	if !errors.Is(err, errs.NoWorkerMarker) {
		t.Fatalf("expected errs.NoWorkerMarker, got %v", err)
	}
}

func TestWorkerEmitsAllBatches(t *testing.T) {
	planner := func(ctx context.Context, sp meta.SerializedPlan) (operator.ExecutionPlan, error) {
		return operator.NewMarker(oneBatchPlan(), 4096), nil
	}
	var total int64
	err := Worker(context.Background(), NewExecutionContext(""), meta.SerializedPlan("x"), planner, func(rec arrow.Record) error {
		total += rec.NumRows()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Fatalf("expected 3 total rows, got %d", total)
	}
}

func TestRouterPropagatesPlannerError(t *testing.T) {
	boom := errors.New("boom")
	planner := plan.RouterPlanner(func(ctx context.Context, table string, projection []string, filters []expr.Node) (operator.ExecutionPlan, error) {
		return nil, boom
	})
	err := Router(context.Background(), NewExecutionContext(""), "t", nil, nil, planner, func(arrow.Record) error { return nil })
	if !errors.Is(err, boom) {
		t.Fatalf("expected planner error to propagate, got %v", err)
	}
}
