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

package meta

import "testing"

func TestPartitionTotals(t *testing.T) {
	p := Partition{
		ID: "p0",
		Chunks: []Chunk{
			{Path: "a.parquet", Rows: 100, SizeBytes: 1000},
			{Path: "b.parquet", Rows: 200, SizeBytes: 2000},
		},
	}
	if got := p.TotalRows(); got != 300 {
		t.Fatalf("TotalRows = %d, want 300", got)
	}
	if got := p.TotalSize(); got != 3000 {
		t.Fatalf("TotalSize = %d, want 3000", got)
	}
}

func TestIndexSnapshotPinsPartitions(t *testing.T) {
	idx := Index{
		Table:     "orders",
		Sorted:    []ColumnRef{{Name: "order_id", Pos: 0}},
		UniqueKey: []ColumnRef{{Name: "order_id", Pos: 0}},
		Sequence:  ColumnRef{Name: "_seq", Pos: 1},
	}
	snap := IndexSnapshot{
		Index: idx,
		Partitions: []Partition{
			{ID: "p0", Chunks: []Chunk{{Path: "c0", Rows: 10}}},
		},
	}
	if snap.Index.Table != "orders" {
		t.Fatal("snapshot must retain the index definition")
	}
	if len(snap.Partitions) != 1 {
		t.Fatal("snapshot must pin the partition list it was built from")
	}
}
