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

// Package operator defines the physical-plan protocol shared by
// every node in a query's execution tree: a small fixed
// interface implemented by a handful of tagged node kinds,
// mirroring the teacher's plan.Op convention generalized from
// the row-oriented ion VM to an Arrow-typed physical plan.
package operator

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"
)

// Partitioning describes how a node's output is divided across
// the partition indices Execute may be called with.
type Partitioning struct {
	// Count is the number of output partitions. A node that
	// does not repartition its input reports its child's
	// count; a leaf scan reports the number of chunks/files
	// it will read independently.
	Count int
}

// UnknownPartitioning is used by nodes whose output partitioning
// is not meaningful to report (e.g. Empty).
var UnknownPartitioning = Partitioning{Count: 1}

// Hints carries planner-visible properties of a node's output
// that downstream nodes may exploit without re-deriving them,
// per the output_hints rule of §4.3.
type Hints struct {
	// Sorted is true when rows within each output partition
	// are known to be emitted in ascending sort-key order.
	Sorted bool
	// Deduplicated is true when the output is known to
	// contain at most one row per unique key.
	Deduplicated bool
}

// RecordIter is a pull-based iterator over a node's output
// batches for one partition.
type RecordIter interface {
	// Next returns the next batch, or (nil, io.EOF) when
	// the partition is exhausted.
	Next(ctx context.Context) (arrow.Record, error)
}

// ExecutionPlan is the shared protocol of every physical-plan
// node (§4.3, §9).
type ExecutionPlan interface {
	// Schema returns the node's output schema.
	Schema() *arrow.Schema
	// OutputPartitioning reports how the node's output is
	// divided across the partition indices Execute accepts.
	OutputPartitioning() Partitioning
	// Children returns the node's direct plan inputs, or nil
	// for a leaf.
	Children() []ExecutionPlan
	// WithNewChildren returns a copy of the node with its
	// children replaced; it returns an error if the number of
	// children supplied does not match Children().
	WithNewChildren(children []ExecutionPlan) (ExecutionPlan, error)
	// OutputHints reports planner-visible properties of this
	// node's output.
	OutputHints() Hints
	// Execute begins producing the given output partition.
	Execute(ctx context.Context, partition int) (RecordIter, error)
}

// WorkerMarker is implemented by the node that demarcates the
// boundary a worker's sub-plan begins at, carrying the maximum
// batch size a worker should produce per §4.6.
type WorkerMarker interface {
	ExecutionPlan
	MaxBatchRows() int
}

// checkChildren is a helper for WithNewChildren implementations:
// it verifies the replacement slice has the expected arity.
func checkChildren(want int, children []ExecutionPlan) error {
	if len(children) != want {
		return fmt.Errorf("operator: WithNewChildren expected %d children, got %d", want, len(children))
	}
	return nil
}
