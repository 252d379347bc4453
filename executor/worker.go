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
	"fmt"
	"io"
	"log"
	"time"

	"github.com/apache/arrow/go/v17/arrow"

	"github.com/cubeql/qexec/errs"
	"github.com/cubeql/qexec/meta"
	"github.com/cubeql/qexec/operator"
	"github.com/cubeql/qexec/plan"
	"github.com/cubeql/qexec/regroup"
)

// slowRequestThreshold is the duration past which Router/Worker
// log at WARN instead of INFO (§4.6, §7).
const slowRequestThreshold = 200 * time.Millisecond

// GetWorkerPlan walks plan's tree for the operator.WorkerMarker
// node demarcating where the worker's sub-plan begins, depth
// first, returning the first one found. It returns
// errs.NoWorkerMarker if the tree carries none (§4.6).
func GetWorkerPlan(tree operator.ExecutionPlan) (operator.WorkerMarker, error) {
	if m, ok := tree.(operator.WorkerMarker); ok {
		return m, nil
	}
	for _, c := range tree.Children() {
		if m, err := GetWorkerPlan(c); err == nil {
			return m, nil
		}
	}
	return nil, errs.NoWorkerMarker
}

// Worker runs one worker-side request: it reconstructs the
// physical plan via planner, locates the worker-marker boundary,
// and executes every output partition of the plan in turn,
// handing each batch to emit until the plan is exhausted or emit
// returns an error.
//
// Requests slower than 200ms are logged at WARN; failures are
// logged at ERROR with the plan dumped via fmt.Stringer, exactly
// as the teacher's request handlers log slow/failed queries.
func Worker(ctx context.Context, ectx ExecutionContext, sp meta.SerializedPlan, planner plan.WorkerPlanner, emit func(arrow.Record) error) error {
	start := time.Now()
	tree, err := planner(ctx, sp)
	if err != nil {
		log.Printf("level=ERROR component=worker msg=%q err=%q", "planner failed", err)
		return err
	}
	marker, err := GetWorkerPlan(tree)
	if err != nil {
		log.Printf("level=ERROR component=worker msg=%q plan=%q", "no worker marker in plan", describe(tree))
		return err
	}
	maxRows := marker.MaxBatchRows()
	if maxRows <= 0 {
		maxRows = ectx.BatchRows
	}
	log.Printf("level=INFO component=worker msg=%q batch_rows=%d", "worker marker found", maxRows)

	err = runPlan(ctx, tree, maxRows, emit)
	elapsed := time.Since(start)
	logOutcome("worker", elapsed, err, tree)
	return err
}

// runPlan drains every output partition of tree, collects its
// batches, and regroups them to maxRows rows per batch (§4.6 C6)
// before handing each regrouped batch to emit.
func runPlan(ctx context.Context, tree operator.ExecutionPlan, maxRows int, emit func(arrow.Record) error) error {
	n := tree.OutputPartitioning().Count
	if n <= 0 {
		n = 1
	}
	var collected []arrow.Record
	for p := 0; p < n; p++ {
		it, err := tree.Execute(ctx, p)
		if err != nil {
			return err
		}
		for {
			rec, err := it.Next(ctx)
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			collected = append(collected, rec)
		}
	}
	batches, err := regroup.Regroup(collected, maxRows)
	if err != nil {
		return err
	}
	for _, rec := range batches {
		if err := emit(rec); err != nil {
			return err
		}
	}
	return nil
}

func logOutcome(component string, elapsed time.Duration, err error, tree operator.ExecutionPlan) {
	switch {
	case err != nil:
		log.Printf("level=ERROR component=%s duration=%s err=%q plan=%q", component, elapsed, err, describe(tree))
	case elapsed > slowRequestThreshold:
		log.Printf("level=WARN component=%s duration=%s msg=%q plan=%q", component, elapsed, "slow request", describe(tree))
	default:
		log.Printf("level=INFO component=%s duration=%s", component, elapsed)
	}
}

func describe(tree operator.ExecutionPlan) string {
	if tree == nil {
		return "<nil>"
	}
	if s, ok := tree.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", tree)
}
