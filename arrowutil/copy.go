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

// Package arrowutil holds small helpers shared by the operator
// tree and the batch regrouper for forcing a contiguous,
// physical copy of selected rows out of an arrow.Record, instead
// of Arrow's logical, buffer-sharing array.NewSlice. Grounded on
// the chunked-copy discipline of the teacher's vm.NewStreamTable
// (vm/table.go) and the row-selection helpers in
// other_examples/polarsignals-arcticdb__table.go and
// other_examples/garrensmith-frostdb__table.go.
package arrowutil

import (
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// SelectRows builds a new record containing only the rows at
// the given indices (which must be in non-decreasing order),
// physically copying every value rather than sharing the
// source record's underlying buffers.
func SelectRows(mem memory.Allocator, rec arrow.Record, rows []int) (arrow.Record, error) {
	schema := rec.Schema()
	cols := make([]arrow.Array, rec.NumCols())
	for c := 0; c < int(rec.NumCols()); c++ {
		col, err := copyColumn(mem, rec.Column(c), rows)
		if err != nil {
			return nil, fmt.Errorf("arrowutil: column %q: %w", schema.Field(c).Name, err)
		}
		cols[c] = col
	}
	return array.NewRecord(schema, cols, int64(len(rows))), nil
}

// CopyAll is SelectRows over every row of rec: it forces a
// physical buffer copy without narrowing the row set, which is
// what the batch regrouper needs at chunk boundaries (§4.1).
func CopyAll(mem memory.Allocator, rec arrow.Record) (arrow.Record, error) {
	rows := make([]int, rec.NumRows())
	for i := range rows {
		rows[i] = i
	}
	return SelectRows(mem, rec, rows)
}

// Concat stacks recs (which must share a schema) into a single
// record, physically copying every value. Used where a caller
// needs one buffered result out of a stream of batches, e.g.
// meta.Cluster.RunSelect's single-blob contract.
func Concat(mem memory.Allocator, schema *arrow.Schema, recs []arrow.Record) (arrow.Record, error) {
	bld := array.NewRecordBuilder(mem, schema)
	defer bld.Release()
	for _, rec := range recs {
		for c := 0; c < int(rec.NumCols()); c++ {
			col := rec.Column(c)
			for r := 0; r < col.Len(); r++ {
				if err := AppendValue(bld.Field(c), col, r); err != nil {
					return nil, fmt.Errorf("arrowutil: column %q: %w", schema.Field(c).Name, err)
				}
			}
		}
	}
	return bld.NewRecord(), nil
}

func copyColumn(mem memory.Allocator, col arrow.Array, rows []int) (arrow.Array, error) {
	bld := array.NewBuilder(mem, col.DataType())
	defer bld.Release()
	for _, r := range rows {
		if col.IsNull(r) {
			bld.AppendNull()
			continue
		}
		if err := AppendValue(bld, col, r); err != nil {
			return nil, err
		}
	}
	return bld.NewArray(), nil
}

// AppendValue appends the value at row `row` of column col onto
// builder bld. It is exported so that operators assembling
// output rows one at a time from multiple source batches
// (MergeSort, LastRowByUniqueKey) can reuse the same per-type
// dispatch as SelectRows.
func AppendValue(bld array.Builder, col arrow.Array, row int) error {
	if col.IsNull(row) {
		bld.AppendNull()
		return nil
	}
	return appendValue(bld, col, row)
}

func appendValue(bld array.Builder, col arrow.Array, row int) error {
	switch c := col.(type) {
	case *array.Boolean:
		bld.(*array.BooleanBuilder).Append(c.Value(row))
	case *array.Int8:
		bld.(*array.Int8Builder).Append(c.Value(row))
	case *array.Int16:
		bld.(*array.Int16Builder).Append(c.Value(row))
	case *array.Int32:
		bld.(*array.Int32Builder).Append(c.Value(row))
	case *array.Int64:
		bld.(*array.Int64Builder).Append(c.Value(row))
	case *array.Uint8:
		bld.(*array.Uint8Builder).Append(c.Value(row))
	case *array.Uint16:
		bld.(*array.Uint16Builder).Append(c.Value(row))
	case *array.Uint32:
		bld.(*array.Uint32Builder).Append(c.Value(row))
	case *array.Uint64:
		bld.(*array.Uint64Builder).Append(c.Value(row))
	case *array.Float32:
		bld.(*array.Float32Builder).Append(c.Value(row))
	case *array.Float64:
		bld.(*array.Float64Builder).Append(c.Value(row))
	case *array.String:
		bld.(*array.StringBuilder).Append(c.Value(row))
	case *array.LargeString:
		bld.(*array.LargeStringBuilder).Append(c.Value(row))
	case *array.Binary:
		bld.(*array.BinaryBuilder).Append(c.Value(row))
	case *array.Timestamp:
		bld.(*array.TimestampBuilder).Append(c.Value(row))
	case *array.Date32:
		bld.(*array.Date32Builder).Append(c.Value(row))
	case *array.Decimal128:
		bld.(*array.Decimal128Builder).Append(c.Value(row))
	default:
		return fmt.Errorf("arrowutil: unsupported column type %s", col.DataType())
	}
	return nil
}
