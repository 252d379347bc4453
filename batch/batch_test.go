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

package batch

import (
	"bytes"
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

func sampleRecord() arrow.Record {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "ok", Type: arrow.FixedWidthTypes.Boolean},
	}, nil)
	bld := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer bld.Release()
	bld.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
	bld.Field(1).(*array.StringBuilder).AppendValues([]string{"a", "", "c"}, []bool{true, false, true})
	bld.Field(2).(*array.BooleanBuilder).AppendValues([]bool{true, false, true}, nil)
	return bld.NewRecord()
}

func TestCodecRoundTrip(t *testing.T) {
	rec := sampleRecord()
	blob, err := Encode(rec)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(blob)
	if err != nil {
		t.Fatal(err)
	}
	if got.NumRows() != rec.NumRows() || got.NumCols() != rec.NumCols() {
		t.Fatalf("round trip shape mismatch: got %dx%d, want %dx%d", got.NumRows(), got.NumCols(), rec.NumRows(), rec.NumCols())
	}
	if !got.Schema().Equal(rec.Schema()) {
		t.Fatalf("round trip schema mismatch: got %v, want %v", got.Schema(), rec.Schema())
	}
}

func TestDecodeEmptyBlobFails(t *testing.T) {
	if _, err := Decode(nil); err == nil {
		t.Fatal("expected decode of an empty blob to fail")
	}
}

func TestDecodeMultiBatchBlobFails(t *testing.T) {
	rec := sampleRecord()
	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(rec.Schema()))
	if err := w.Write(rec); err != nil {
		t.Fatal(err)
	}
	if err := w.Write(rec); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(buf.Bytes()); err == nil {
		t.Fatal("expected decode of a blob with two batches to fail")
	}
}

func TestToRows(t *testing.T) {
	rec := sampleRecord()
	df, err := ToRows(rec)
	if err != nil {
		t.Fatal(err)
	}
	if len(df.Columns) != 3 || len(df.Rows) != 3 {
		t.Fatalf("unexpected shape: %d cols, %d rows", len(df.Columns), len(df.Rows))
	}
	if df.Rows[0][0].Kind != Int || df.Rows[0][0].I != 1 {
		t.Fatalf("unexpected id value: %+v", df.Rows[0][0])
	}
	if df.Rows[1][1].Kind != Null {
		t.Fatalf("expected row 1's name to be Null, got %+v", df.Rows[1][1])
	}
	if df.Rows[2][1].Kind != String || df.Rows[2][1].S != "c" {
		t.Fatalf("unexpected name value: %+v", df.Rows[2][1])
	}
	if df.Rows[0][2].Kind != Boolean || !df.Rows[0][2].Bool {
		t.Fatalf("unexpected ok value: %+v", df.Rows[0][2])
	}
}
