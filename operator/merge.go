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
	"io"

	"github.com/apache/arrow/go/v17/arrow"
)

// Merge concatenates its children's single output partition into
// one partition, with no ordering guarantee across children. It
// is used to fan multiple per-chunk scans of one partition back
// into a single stream (§4.3) when no sort order is required
// downstream.
type Merge struct {
	children []ExecutionPlan
	schema   *arrow.Schema
}

// NewMerge builds a Merge over children, which must all share a
// schema.
func NewMerge(children []ExecutionPlan) (*Merge, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("operator: Merge requires at least one child")
	}
	return &Merge{children: children, schema: children[0].Schema()}, nil
}

func (m *Merge) Schema() *arrow.Schema            { return m.schema }
func (m *Merge) OutputPartitioning() Partitioning { return Partitioning{Count: 1} }
func (m *Merge) Children() []ExecutionPlan        { return m.children }

func (m *Merge) OutputHints() Hints {
	// merging multiple partitions destroys any single child's
	// sortedness, but dedup survives if every child is already
	// deduplicated against disjoint key ranges.
	dedup := true
	for _, c := range m.children {
		if !c.OutputHints().Deduplicated {
			dedup = false
			break
		}
	}
	return Hints{Sorted: false, Deduplicated: dedup}
}

func (m *Merge) WithNewChildren(children []ExecutionPlan) (ExecutionPlan, error) {
	if err := checkChildren(len(m.children), children); err != nil {
		return nil, err
	}
	return NewMerge(children)
}

func (m *Merge) Execute(ctx context.Context, partition int) (RecordIter, error) {
	iters := make([]RecordIter, len(m.children))
	for i, c := range m.children {
		it, err := c.Execute(ctx, 0)
		if err != nil {
			return nil, err
		}
		iters[i] = it
	}
	return &mergeIter{iters: iters}, nil
}

type mergeIter struct {
	iters []RecordIter
	pos   int
}

func (it *mergeIter) Next(ctx context.Context) (arrow.Record, error) {
	for it.pos < len(it.iters) {
		rec, err := it.iters[it.pos].Next(ctx)
		if err == io.EOF {
			it.pos++
			continue
		}
		if err != nil {
			return nil, err
		}
		return rec, nil
	}
	return nil, io.EOF
}
