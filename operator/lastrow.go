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
	"io"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/cubeql/qexec/arrowutil"
	"github.com/cubeql/qexec/meta"
)

// LastRowByUniqueKey implements last-write-wins deduplication
// (§4.3's name-giving dedup step): its child must emit rows
// already sorted ascending so that every run of rows sharing a
// unique key is contiguous; within a run the row carrying the
// highest SeqCol value is kept, regardless of stream order.
type LastRowByUniqueKey struct {
	child      ExecutionPlan
	UniqueCols []int
	SeqCol     int
	BatchRows  int
	mem        memory.Allocator
}

// NewLastRowByUniqueKey builds a LastRowByUniqueKey over child,
// breaking ties within a unique-key run by the column at seqCol.
func NewLastRowByUniqueKey(child ExecutionPlan, uniqueCols []int, seqCol int, batchRows int) *LastRowByUniqueKey {
	if batchRows <= 0 {
		batchRows = 4096
	}
	return &LastRowByUniqueKey{child: child, UniqueCols: uniqueCols, SeqCol: seqCol, BatchRows: batchRows, mem: memory.DefaultAllocator}
}

func (l *LastRowByUniqueKey) Schema() *arrow.Schema            { return l.child.Schema() }
func (l *LastRowByUniqueKey) OutputPartitioning() Partitioning { return l.child.OutputPartitioning() }
func (l *LastRowByUniqueKey) Children() []ExecutionPlan        { return []ExecutionPlan{l.child} }

func (l *LastRowByUniqueKey) OutputHints() Hints {
	h := l.child.OutputHints()
	h.Deduplicated = true
	return h
}

func (l *LastRowByUniqueKey) WithNewChildren(children []ExecutionPlan) (ExecutionPlan, error) {
	if err := checkChildren(1, children); err != nil {
		return nil, err
	}
	return NewLastRowByUniqueKey(children[0], l.UniqueCols, l.SeqCol, l.BatchRows), nil
}

func (l *LastRowByUniqueKey) Execute(ctx context.Context, partition int) (RecordIter, error) {
	inner, err := l.child.Execute(ctx, partition)
	if err != nil {
		return nil, err
	}
	return &lastRowIter{
		inner:      inner,
		uniqueCols: l.UniqueCols,
		seqCol:     l.SeqCol,
		batchRows:  l.BatchRows,
		schema:     l.child.Schema(),
		mem:        l.mem,
	}, nil
}

type lastRowIter struct {
	inner      RecordIter
	uniqueCols []int
	seqCol     int
	batchRows  int
	schema     *arrow.Schema
	mem        memory.Allocator

	rec        arrow.Record
	row        int
	pendingKey meta.RowKey
	bestSeq    meta.Scalar
	lastRec    arrow.Record
	lastRow    int
	havePend   bool
	eof        bool
}

func (it *lastRowIter) nextRow(ctx context.Context) (arrow.Record, int, bool, error) {
	for {
		if it.rec != nil && it.row < int(it.rec.NumRows())-1 {
			it.row++
			return it.rec, it.row, true, nil
		}
		rec, err := it.inner.Next(ctx)
		if err == io.EOF {
			return nil, 0, false, nil
		}
		if err != nil {
			return nil, 0, false, err
		}
		if rec.NumRows() == 0 {
			continue
		}
		it.rec = rec
		it.row = 0
		return it.rec, it.row, true, nil
	}
}

func (it *lastRowIter) keyOf(rec arrow.Record, row int) (meta.RowKey, error) {
	cols := make([]arrow.Array, len(it.uniqueCols))
	for i, c := range it.uniqueCols {
		cols[i] = rec.Column(c)
	}
	return arrowutil.RowKeyAt(cols, row)
}

func (it *lastRowIter) seqOf(rec arrow.Record, row int) (meta.Scalar, error) {
	return arrowutil.ScalarAt(rec.Column(it.seqCol), row)
}

func (it *lastRowIter) Next(ctx context.Context) (arrow.Record, error) {
	if it.eof && !it.havePend {
		return nil, io.EOF
	}
	bld := array.NewRecordBuilder(it.mem, it.schema)
	defer bld.Release()
	n := 0

	for n < it.batchRows {
		rec, row, ok, err := it.nextRow(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			it.eof = true
			if it.havePend {
				if err := copyRow(bld, it.schema, it.lastRec, it.lastRow); err != nil {
					return nil, err
				}
				n++
				it.havePend = false
			}
			break
		}
		key, err := it.keyOf(rec, row)
		if err != nil {
			return nil, err
		}
		seq, err := it.seqOf(rec, row)
		if err != nil {
			return nil, err
		}
		if it.havePend && key.Compare(it.pendingKey) != 0 {
			if err := copyRow(bld, it.schema, it.lastRec, it.lastRow); err != nil {
				return nil, err
			}
			n++
			it.havePend = false
		}
		if !it.havePend || seq.Compare(it.bestSeq) >= 0 {
			it.lastRec = rec
			it.lastRow = row
			it.bestSeq = seq
		}
		it.pendingKey = key
		it.havePend = true
	}
	if n == 0 {
		return nil, io.EOF
	}
	return bld.NewRecord(), nil
}

func copyRow(bld *array.RecordBuilder, schema *arrow.Schema, rec arrow.Record, row int) error {
	for i := 0; i < int(schema.NumFields()); i++ {
		if err := arrowutil.AppendValue(bld.Field(i), rec.Column(i), row); err != nil {
			return err
		}
	}
	return nil
}
