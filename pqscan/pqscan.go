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

// Package pqscan is the reference operator.ColumnarFileScan: it
// reads a chunk's backing parquet file with parquet-go and
// assembles Arrow batches of the requested projection, grounded
// on the row-group-to-Arrow conversion style of
// other_examples/polarsignals-arcticdb__table.go and
// other_examples/garrensmith-frostdb__table.go, adapted from
// segmentio-style dynamic schemas to this repo's fixed,
// caller-supplied arrow.Schema.
package pqscan

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/parquet-go/parquet-go"

	"github.com/cubeql/qexec/errs"
	"github.com/cubeql/qexec/operator"
)

// Scan is an operator.ColumnarFileScan backed by on-disk parquet
// files.
type Scan struct {
	Allocator memory.Allocator
}

// New returns a Scan using the default allocator.
func New() *Scan {
	return &Scan{Allocator: memory.DefaultAllocator}
}

func (s *Scan) mem() memory.Allocator {
	if s.Allocator != nil {
		return s.Allocator
	}
	return memory.DefaultAllocator
}

// Open implements operator.ColumnarFileScan.
func (s *Scan) Open(ctx context.Context, path string, schema *arrow.Schema, batchRows int) (operator.RecordIter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.Io, "pqscan: open "+path, err)
	}
	reader := parquet.NewReader(f)

	cols, err := columnIndices(reader.Schema(), schema)
	if err != nil {
		f.Close()
		return nil, err
	}

	if batchRows <= 0 {
		batchRows = 4096
	}
	return &scanIter{
		f:         f,
		reader:    reader,
		schema:    schema,
		cols:      cols,
		batchRows: batchRows,
		mem:       s.mem(),
	}, nil
}

// columnIndices maps each field of want, by name, to its leaf
// column position within pf's flattened (non-nested) schema.
func columnIndices(pf *parquet.Schema, want *arrow.Schema) ([]int, error) {
	byName := make(map[string]int, len(pf.Fields()))
	for i, f := range pf.Fields() {
		byName[f.Name()] = i
	}
	out := make([]int, want.NumFields())
	for i := 0; i < int(want.NumFields()); i++ {
		name := want.Field(i).Name
		idx, ok := byName[name]
		if !ok {
			return nil, errs.New(errs.Plan, fmt.Sprintf("pqscan: column %q not present in parquet file", name))
		}
		out[i] = idx
	}
	return out, nil
}

type scanIter struct {
	f         *os.File
	reader    *parquet.Reader
	schema    *arrow.Schema
	cols      []int
	batchRows int
	mem       memory.Allocator
}

func (it *scanIter) Next(ctx context.Context) (arrow.Record, error) {
	rows := make([]parquet.Row, it.batchRows)
	n, err := it.reader.ReadRows(rows)
	if n == 0 {
		it.f.Close()
		if err == nil {
			return nil, errs.New(errs.Data, "pqscan: reader returned 0 rows without EOF")
		}
		return nil, err
	}
	rows = rows[:n]

	bld := array.NewRecordBuilder(it.mem, it.schema)
	defer bld.Release()
	for _, row := range rows {
		for outCol, pqCol := range it.cols {
			if pqCol >= len(row) {
				bld.Field(outCol).AppendNull()
				continue
			}
			if err := appendParquetValue(bld.Field(outCol), row[pqCol]); err != nil {
				it.f.Close()
				return nil, err
			}
		}
	}
	rec := bld.NewRecord()
	// err is io.EOF here only when this was also the final batch;
	// parquet-go's ReadRows returns (n>0, io.EOF) on the last
	// partial read, so surface the batch now and let the next
	// Next() observe (0, io.EOF) and close the file.
	return rec, nil
}

func appendParquetValue(bld array.Builder, v parquet.Value) error {
	if v.IsNull() {
		bld.AppendNull()
		return nil
	}
	switch b := bld.(type) {
	case *array.Int8Builder:
		b.Append(int8(v.Int64()))
	case *array.Int16Builder:
		b.Append(int16(v.Int64()))
	case *array.Int32Builder:
		b.Append(v.Int32())
	case *array.Int64Builder:
		b.Append(v.Int64())
	case *array.Uint8Builder:
		b.Append(uint8(v.Int64()))
	case *array.Uint16Builder:
		b.Append(uint16(v.Int64()))
	case *array.Uint32Builder:
		b.Append(uint32(v.Int64()))
	case *array.Uint64Builder:
		b.Append(uint64(v.Int64()))
	case *array.Float32Builder:
		b.Append(v.Float32())
	case *array.Float64Builder:
		b.Append(v.Float64())
	case *array.StringBuilder:
		b.Append(string(v.ByteArray()))
	case *array.LargeStringBuilder:
		b.Append(string(v.ByteArray()))
	case *array.BinaryBuilder:
		b.Append(v.ByteArray())
	case *array.BooleanBuilder:
		b.Append(v.Boolean())
	case *array.TimestampBuilder:
		b.Append(arrow.Timestamp(v.Int64()))
	default:
		return errs.New(errs.Data, fmt.Sprintf("pqscan: unsupported target builder %T", bld))
	}
	return nil
}
