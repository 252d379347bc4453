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
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/cubeql/qexec/arrowutil"
	"github.com/cubeql/qexec/heap"
	"github.com/cubeql/qexec/meta"
)

// MergeSort merges its children's single output partitions into
// one partition in ascending order of the columns at SortCols
// (by position in the shared schema), using a k-way min-heap
// merge (§4.3's sort unification step). Each child must already
// emit rows in ascending order on SortCols.
type MergeSort struct {
	children  []ExecutionPlan
	SortCols  []int
	BatchRows int
	schema    *arrow.Schema
	mem       memory.Allocator
}

// NewMergeSort builds a MergeSort over children sharing a
// schema, merging on sortCols and re-chunking output into
// batches of at most batchRows rows.
func NewMergeSort(children []ExecutionPlan, sortCols []int, batchRows int) (*MergeSort, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("operator: MergeSort requires at least one child")
	}
	if batchRows <= 0 {
		batchRows = 4096
	}
	return &MergeSort{
		children:  children,
		SortCols:  sortCols,
		BatchRows: batchRows,
		schema:    children[0].Schema(),
		mem:       memory.DefaultAllocator,
	}, nil
}

func (m *MergeSort) Schema() *arrow.Schema            { return m.schema }
func (m *MergeSort) OutputPartitioning() Partitioning { return Partitioning{Count: 1} }
func (m *MergeSort) Children() []ExecutionPlan        { return m.children }

func (m *MergeSort) OutputHints() Hints {
	dedup := true
	for _, c := range m.children {
		if !c.OutputHints().Deduplicated {
			dedup = false
			break
		}
	}
	return Hints{Sorted: true, Deduplicated: dedup}
}

func (m *MergeSort) WithNewChildren(children []ExecutionPlan) (ExecutionPlan, error) {
	if err := checkChildren(len(m.children), children); err != nil {
		return nil, err
	}
	return NewMergeSort(children, m.SortCols, m.BatchRows)
}

func (m *MergeSort) Execute(ctx context.Context, partition int) (RecordIter, error) {
	cursors := make([]*mergeCursor, 0, len(m.children))
	for _, c := range m.children {
		it, err := c.Execute(ctx, 0)
		if err != nil {
			return nil, err
		}
		cur := &mergeCursor{iter: it, sortCols: m.SortCols}
		if err := cur.advance(ctx); err != nil && err != io.EOF {
			return nil, err
		}
		if !cur.done {
			cursors = append(cursors, cur)
		}
	}
	heap.OrderSlice(cursors, cursorLess)
	return &mergeSortIter{
		cursors:   cursors,
		schema:    m.schema,
		batchRows: m.BatchRows,
		mem:       m.mem,
	}, nil
}

// mergeCursor tracks one child's current record and row offset.
type mergeCursor struct {
	iter     RecordIter
	sortCols []int
	rec      arrow.Record
	row      int
	key      meta.RowKey
	done     bool
}

func (c *mergeCursor) advance(ctx context.Context) error {
	for {
		if c.rec != nil && c.row < int(c.rec.NumRows())-1 {
			c.row++
		} else {
			rec, err := c.iter.Next(ctx)
			if err == io.EOF {
				c.done = true
				return io.EOF
			}
			if err != nil {
				return err
			}
			if rec.NumRows() == 0 {
				continue
			}
			c.rec = rec
			c.row = 0
		}
		cols := make([]arrow.Array, len(c.sortCols))
		for i, idx := range c.sortCols {
			cols[i] = c.rec.Column(idx)
		}
		key, err := arrowutil.RowKeyAt(cols, c.row)
		if err != nil {
			return err
		}
		c.key = key
		return nil
	}
}

func cursorLess(a, b *mergeCursor) bool {
	return a.key.Compare(b.key) < 0
}

type mergeSortIter struct {
	cursors   []*mergeCursor
	schema    *arrow.Schema
	batchRows int
	mem       memory.Allocator
}

func (it *mergeSortIter) Next(ctx context.Context) (arrow.Record, error) {
	if len(it.cursors) == 0 {
		return nil, io.EOF
	}
	bld := array.NewRecordBuilder(it.mem, it.schema)
	defer bld.Release()
	n := 0
	for n < it.batchRows && len(it.cursors) > 0 {
		top := heap.PopSlice(&it.cursors, cursorLess)
		for i := 0; i < int(it.schema.NumFields()); i++ {
			col := top.rec.Column(i)
			if err := arrowutil.AppendValue(bld.Field(i), col, top.row); err != nil {
				return nil, err
			}
		}
		n++
		if err := top.advance(ctx); err != nil {
			if err != io.EOF {
				return nil, err
			}
		} else {
			heap.PushSlice(&it.cursors, top, cursorLess)
		}
	}
	if n == 0 {
		return nil, io.EOF
	}
	return bld.NewRecord(), nil
}
