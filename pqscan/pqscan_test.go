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

package pqscan

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/parquet-go/parquet-go"
)

type testRow struct {
	ID int64  `parquet:"id"`
	V  string `parquet:"v"`
}

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "chunk.parquet")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	rows := []testRow{{ID: 1, V: "a"}, {ID: 2, V: "b"}, {ID: 3, V: "c"}}
	if _, err := parquet.Write(f, rows); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScanOpenReadsProjectedColumns(t *testing.T) {
	path := writeFixture(t)
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
	}, nil)

	s := New()
	it, err := s.Open(context.Background(), path, schema, 4096)
	if err != nil {
		t.Fatal(err)
	}
	var total int64
	var ids []int64
	for {
		rec, err := it.Next(context.Background())
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		total += rec.NumRows()
		col := rec.Column(0).(*array.Int64)
		for i := 0; i < col.Len(); i++ {
			ids = append(ids, col.Value(i))
		}
	}
	if total != 3 {
		t.Fatalf("expected 3 rows, got %d", total)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[2] != 3 {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestScanOpenRejectsUnknownColumn(t *testing.T) {
	path := writeFixture(t)
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "nope", Type: arrow.PrimitiveTypes.Int64},
	}, nil)
	s := New()
	_, err := s.Open(context.Background(), path, schema, 4096)
	if err == nil {
		t.Fatal("expected an error for a column absent from the parquet file")
	}
}
