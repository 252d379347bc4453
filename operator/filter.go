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

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/cubeql/qexec/arrowutil"
	"github.com/cubeql/qexec/meta"
)

// FilterByKeyRange restricts its child's output to rows whose
// sort-key tuple (the columns at KeyCols, by position in the
// child's schema) is contained in Filter (§4.3, §4.4). It is the
// node assign.IssueFilters' per-partition RowFilters are pushed
// down through.
type FilterByKeyRange struct {
	child   ExecutionPlan
	KeyCols []int
	Filter  meta.RowFilter
	mem     memory.Allocator
}

// NewFilterByKeyRange builds a FilterByKeyRange over child. A
// default (unbounded) filter degenerates to passing every row
// through unmodified.
func NewFilterByKeyRange(child ExecutionPlan, keyCols []int, filter meta.RowFilter) *FilterByKeyRange {
	return &FilterByKeyRange{child: child, KeyCols: keyCols, Filter: filter, mem: memory.DefaultAllocator}
}

func (f *FilterByKeyRange) Schema() *arrow.Schema            { return f.child.Schema() }
func (f *FilterByKeyRange) OutputPartitioning() Partitioning { return f.child.OutputPartitioning() }
func (f *FilterByKeyRange) Children() []ExecutionPlan        { return []ExecutionPlan{f.child} }

func (f *FilterByKeyRange) OutputHints() Hints {
	h := f.child.OutputHints()
	// filtering a range out of a sorted, deduplicated stream
	// preserves both properties.
	return h
}

func (f *FilterByKeyRange) WithNewChildren(children []ExecutionPlan) (ExecutionPlan, error) {
	if err := checkChildren(1, children); err != nil {
		return nil, err
	}
	return NewFilterByKeyRange(children[0], f.KeyCols, f.Filter), nil
}

func (f *FilterByKeyRange) Execute(ctx context.Context, partition int) (RecordIter, error) {
	if f.Filter.IsDefault() {
		return f.child.Execute(ctx, partition)
	}
	inner, err := f.child.Execute(ctx, partition)
	if err != nil {
		return nil, err
	}
	return &filterIter{inner: inner, keyCols: f.KeyCols, filter: f.Filter, mem: f.mem}, nil
}

type filterIter struct {
	inner   RecordIter
	keyCols []int
	filter  meta.RowFilter
	mem     memory.Allocator
}

func (it *filterIter) Next(ctx context.Context) (arrow.Record, error) {
	for {
		rec, err := it.inner.Next(ctx)
		if err != nil {
			return nil, err
		}
		out, err := it.apply(rec)
		if err != nil {
			return nil, err
		}
		if out == nil {
			// every row in this batch was pruned; pull the next one
			continue
		}
		return out, nil
	}
}

func (it *filterIter) apply(rec arrow.Record) (arrow.Record, error) {
	keyArrs := make([]arrow.Array, len(it.keyCols))
	for i, c := range it.keyCols {
		keyArrs[i] = rec.Column(c)
	}
	var selected []int
	n := int(rec.NumRows())
	for r := 0; r < n; r++ {
		key, err := arrowutil.RowKeyAt(keyArrs, r)
		if err != nil {
			return nil, err
		}
		if it.filter.Contains(key) {
			selected = append(selected, r)
		}
	}
	if len(selected) == 0 {
		return nil, nil
	}
	if len(selected) == n {
		return rec, nil
	}
	return arrowutil.SelectRows(it.mem, rec, selected)
}
