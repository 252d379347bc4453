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

// Package clustersend implements the router-side fan-out
// operator (§4.5, C5): one output partition per assigned worker,
// each binding that worker's partition filters into the
// serialized plan before dispatching it across meta.Cluster.
//
// Grounded on the teacher's plan.Op leaf-with-remote-dispatch
// convention and on splitter.go's partition/worker bookkeeping,
// generalized from the row-oriented ion VM to the Arrow-typed
// operator tree.
package clustersend

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"

	"github.com/cubeql/qexec/batch"
	"github.com/cubeql/qexec/meta"
	"github.com/cubeql/qexec/operator"
)

// PartitionFilter pairs a partition id with the RowRange the
// worker reading it should restrict to.
type PartitionFilter struct {
	PartitionID string
	Range       meta.RowRange
}

// WorkerAssignment is one output partition's share of the query:
// the worker ordinal to dispatch to and the partition filters it
// must apply.
type WorkerAssignment struct {
	Worker  int
	Filters []PartitionFilter
}

// PlanBinder binds a worker's grouped RowFilters into a logical
// plan's serialized form, producing the SerializedPlan that
// worker should execute. It is supplied by package plan, kept as
// an interface here to avoid an import cycle (plan depends on
// operator, which clustersend itself implements).
type PlanBinder interface {
	WithPartitionFilters(filters map[string]meta.RowFilter) (meta.SerializedPlan, error)
}

// Exec is the ClusterSendExec node of §4.5: one output partition
// per assigned worker, dispatching a worker-specialized plan over
// meta.Cluster and replaying the (possibly streamed) result as
// this node's output for that partition.
type Exec struct {
	schema      *arrow.Schema
	assignments []WorkerAssignment
	binder      PlanBinder
	cluster     meta.Cluster
	// skeleton is kept only so optimizer decisions stay
	// consistent between router and worker planning; per §9 its
	// Execute must never be invoked.
	skeleton    operator.ExecutionPlan
	useStream   bool
	hints       operator.Hints
}

// NewExec builds a ClusterSendExec. assignments must already be
// sorted by worker name/ordinal by the caller (package assign's
// Plan does this); skeleton is the plan-skeleton child, never
// executed.
func NewExec(schema *arrow.Schema, assignments []WorkerAssignment, binder PlanBinder, cluster meta.Cluster, skeleton operator.ExecutionPlan, useStream bool) *Exec {
	hints := operator.Hints{}
	if skeleton != nil {
		hints = skeleton.OutputHints()
	}
	return &Exec{
		schema:      schema,
		assignments: assignments,
		binder:      binder,
		cluster:     cluster,
		skeleton:    skeleton,
		useStream:   useStream,
		hints:       hints,
	}
}

func (e *Exec) Schema() *arrow.Schema { return e.schema }

func (e *Exec) OutputPartitioning() operator.Partitioning {
	return operator.Partitioning{Count: len(e.assignments)}
}

// Children returns the plan-skeleton child. Its Execute must
// never be called; it exists purely so the optimizer sees a
// consistent shape on both the router and the worker side (§9).
func (e *Exec) Children() []operator.ExecutionPlan {
	if e.skeleton == nil {
		return nil
	}
	return []operator.ExecutionPlan{&skeletonGuard{e.skeleton}}
}

func (e *Exec) OutputHints() operator.Hints { return e.hints }

func (e *Exec) WithNewChildren(children []operator.ExecutionPlan) (operator.ExecutionPlan, error) {
	if len(children) != len(e.Children()) {
		return nil, fmt.Errorf("clustersend: WithNewChildren expected %d children, got %d", len(e.Children()), len(children))
	}
	cp := *e
	if len(children) == 1 {
		if g, ok := children[0].(*skeletonGuard); ok {
			cp.skeleton = g.inner
		} else {
			cp.skeleton = children[0]
		}
	}
	return &cp, nil
}

// WithChangedSchema returns a clone of e carrying a new declared
// schema and a new optimizer-skeleton child; partition assignment
// and worker list are unchanged (§4.5).
func (e *Exec) WithChangedSchema(schema *arrow.Schema, skeleton operator.ExecutionPlan) *Exec {
	cp := *e
	cp.schema = schema
	cp.skeleton = skeleton
	if skeleton != nil {
		cp.hints = skeleton.OutputHints()
	}
	return &cp
}

// Execute implements execute(i) from §4.5 steps 1-4.
func (e *Exec) Execute(ctx context.Context, partition int) (operator.RecordIter, error) {
	if partition < 0 || partition >= len(e.assignments) {
		return nil, fmt.Errorf("clustersend: partition %d out of range for %d workers", partition, len(e.assignments))
	}
	wa := e.assignments[partition]

	grouped := groupByPartition(wa.Filters)
	serialized, err := e.binder.WithPartitionFilters(grouped)
	if err != nil {
		return nil, err
	}

	if e.useStream {
		rc, err := e.cluster.RunSelectStream(ctx, wa.Worker, serialized)
		if err != nil {
			return nil, err
		}
		return newStreamIter(rc), nil
	}

	blob, err := e.cluster.RunSelect(ctx, wa.Worker, serialized)
	if err != nil {
		return nil, err
	}
	rec, err := batch.Decode(blob)
	if err != nil {
		return nil, err
	}
	src := operator.NewMemorySource(e.schema, []arrow.Record{rec}, e.hints)
	return src.Execute(ctx, 0)
}

// groupByPartition implements §4.5 step 2: group a worker's
// filters by partition id, OR-combining ranges within a
// partition. Callers that need a deterministic partition order
// (e.g. for encoding) impose their own sort over the map's keys;
// plan.Template.WithPartitionFilters does exactly that.
func groupByPartition(filters []PartitionFilter) map[string]meta.RowFilter {
	out := make(map[string]meta.RowFilter)
	for _, f := range filters {
		out[f.PartitionID] = meta.OR(out[f.PartitionID], meta.Of(f.Range))
	}
	return out
}

// skeletonGuard wraps the plan-skeleton child so that an
// accidental Execute call fails loudly instead of silently
// reading through to real data, per §9's assertion contract.
type skeletonGuard struct {
	inner operator.ExecutionPlan
}

func (g *skeletonGuard) Schema() *arrow.Schema                      { return g.inner.Schema() }
func (g *skeletonGuard) OutputPartitioning() operator.Partitioning  { return g.inner.OutputPartitioning() }
func (g *skeletonGuard) Children() []operator.ExecutionPlan         { return g.inner.Children() }
func (g *skeletonGuard) OutputHints() operator.Hints                { return g.inner.OutputHints() }
func (g *skeletonGuard) WithNewChildren(c []operator.ExecutionPlan) (operator.ExecutionPlan, error) {
	next, err := g.inner.WithNewChildren(c)
	if err != nil {
		return nil, err
	}
	return &skeletonGuard{next}, nil
}
func (g *skeletonGuard) Execute(ctx context.Context, partition int) (operator.RecordIter, error) {
	panic("clustersend: plan-skeleton child executed; it exists only to keep router/worker optimizer decisions consistent")
}
