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

package plan

import (
	"testing"

	"github.com/cubeql/qexec/meta"
)

func TestDescriptorEncodeDecodeRoundTrip(t *testing.T) {
	d := Descriptor{
		Table:      "events",
		Projection: []string{"id", "v"},
		Filters:    []string{"id > 10"},
		BatchSize:  4096,
		Partitions: []PartitionFilter{
			{ID: "p1", Filter: meta.Of(meta.RowRange{Start: meta.RowKey{meta.Int(1)}, End: meta.RowKey{meta.Int(5)}})},
			{ID: "p2", Filter: meta.Default()},
		},
	}
	sp, err := Encode(d)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(sp)
	if err != nil {
		t.Fatal(err)
	}
	if got.Table != d.Table || got.BatchSize != d.BatchSize {
		t.Fatalf("scalar fields did not round-trip: %+v", got)
	}
	if len(got.Projection) != 2 || got.Projection[0] != "id" || got.Projection[1] != "v" {
		t.Fatalf("projection did not round-trip: %v", got.Projection)
	}
	if len(got.Partitions) != 2 {
		t.Fatalf("expected 2 partitions, got %d", len(got.Partitions))
	}
	if got.Partitions[0].ID != "p1" || len(got.Partitions[0].Filter.Ranges) != 1 {
		t.Fatalf("partition p1 did not round-trip: %+v", got.Partitions[0])
	}
	if !got.Partitions[1].Filter.IsDefault() {
		t.Fatalf("expected p2 to stay the default filter")
	}
}

func TestTemplateWithPartitionFiltersGroupsByPartition(t *testing.T) {
	tpl := Template{Table: "events", Projection: []string{"id"}, BatchSize: 4096}
	sp, err := tpl.WithPartitionFilters(map[string]meta.RowFilter{
		"p1": meta.Of(meta.RowRange{Start: meta.RowKey{meta.Int(0)}, End: meta.RowKey{meta.Int(9)}}),
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(sp)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Partitions) != 1 || got.Partitions[0].ID != "p1" {
		t.Fatalf("expected single bound partition p1, got %+v", got.Partitions)
	}
}
