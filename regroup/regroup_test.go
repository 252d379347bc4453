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

package regroup

import (
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

func intRecord(t *testing.T, n int) arrow.Record {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{{Name: "id", Type: arrow.PrimitiveTypes.Int64}}, nil)
	bld := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer bld.Release()
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(i)
	}
	bld.Field(0).(*array.Int64Builder).AppendValues(ids, nil)
	return bld.NewRecord()
}

func TestRegroupNeverMergesAcrossInputBatches(t *testing.T) {
	b1 := intRecord(t, 7)
	b2 := intRecord(t, 3)
	out, err := Regroup([]arrow.Record{b1, b2}, 4)
	if err != nil {
		t.Fatal(err)
	}
	var sizes []int64
	for _, r := range out {
		sizes = append(sizes, r.NumRows())
	}
	want := []int64{4, 3, 3}
	if len(sizes) != len(want) {
		t.Fatalf("got sizes %v, want %v", sizes, want)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Fatalf("got sizes %v, want %v", sizes, want)
		}
	}
}

func TestRegroupEveryOutputBatchWithinBound(t *testing.T) {
	b := intRecord(t, 23)
	out, err := Regroup([]arrow.Record{b}, 5)
	if err != nil {
		t.Fatal(err)
	}
	var total int64
	for _, r := range out {
		if r.NumRows() > 5 {
			t.Fatalf("batch exceeds max_rows: %d", r.NumRows())
		}
		total += r.NumRows()
	}
	if total != 23 {
		t.Fatalf("expected total of 23 rows preserved, got %d", total)
	}
}

func TestRegroupRejectsZeroMaxRows(t *testing.T) {
	if _, err := Regroup(nil, 0); err == nil {
		t.Fatal("expected an error for max_rows < 1")
	}
}
