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
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
)

// Projection restricts its child's output to a fixed list of
// columns, by position in the child's schema, per §4.3's
// projection-restoration step: BuildScan augments the requested
// projection with the unique key and sequence columns needed for
// dedup, then wraps the final result in a Projection to drop
// them back out before returning to the caller.
type Projection struct {
	child   ExecutionPlan
	indices []int
	schema  *arrow.Schema
}

// NewProjection builds a Projection over child selecting the
// columns at indices (by position in child.Schema()).
func NewProjection(child ExecutionPlan, indices []int) (*Projection, error) {
	childSchema := child.Schema()
	fields := make([]arrow.Field, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(childSchema.Fields()) {
			return nil, fmt.Errorf("operator: projection index %d out of range for schema with %d fields", idx, len(childSchema.Fields()))
		}
		fields[i] = childSchema.Field(idx)
	}
	return &Projection{
		child:   child,
		indices: indices,
		schema:  arrow.NewSchema(fields, nil),
	}, nil
}

func (p *Projection) Schema() *arrow.Schema            { return p.schema }
func (p *Projection) OutputPartitioning() Partitioning { return p.child.OutputPartitioning() }
func (p *Projection) Children() []ExecutionPlan        { return []ExecutionPlan{p.child} }
func (p *Projection) OutputHints() Hints               { return p.child.OutputHints() }

func (p *Projection) WithNewChildren(children []ExecutionPlan) (ExecutionPlan, error) {
	if err := checkChildren(1, children); err != nil {
		return nil, err
	}
	return NewProjection(children[0], p.indices)
}

func (p *Projection) Execute(ctx context.Context, partition int) (RecordIter, error) {
	inner, err := p.child.Execute(ctx, partition)
	if err != nil {
		return nil, err
	}
	return &projectionIter{inner: inner, indices: p.indices, schema: p.schema}, nil
}

type projectionIter struct {
	inner   RecordIter
	indices []int
	schema  *arrow.Schema
}

func (it *projectionIter) Next(ctx context.Context) (arrow.Record, error) {
	rec, err := it.inner.Next(ctx)
	if err != nil {
		return nil, err
	}
	cols := make([]arrow.Array, len(it.indices))
	for i, idx := range it.indices {
		cols[i] = rec.Column(idx)
	}
	return array.NewRecord(it.schema, cols, rec.NumRows()), nil
}
