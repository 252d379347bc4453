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

package assign

import (
	"testing"

	"github.com/cubeql/qexec/errs"
	"github.com/cubeql/qexec/meta"
)

func TestCartesianTwoUnions(t *testing.T) {
	a := meta.Partition{ID: "a"}
	b := meta.Partition{ID: "b"}
	c := meta.Partition{ID: "c"}
	got := Cartesian([][]meta.Partition{{a, b}, {c}})
	if len(got) != 2 {
		t.Fatalf("expected 2 logical partitions, got %d", len(got))
	}
	for _, lp := range got {
		if len(lp.Partitions) != 2 {
			t.Fatalf("expected each combo to have 2 partitions, got %d", len(lp.Partitions))
		}
	}
}

func TestOrdinarySinglePartitionIssuesDefaultFilter(t *testing.T) {
	p1 := meta.Partition{ID: "p1"}
	lp := LogicalPartition{Partitions: []meta.Partition{p1}}
	filters := IssueFilters(lp)
	if len(filters) != 1 || filters[0].PartitionID != "p1" || !filters[0].Filter.IsDefault() {
		t.Fatalf("unexpected filters: %+v", filters)
	}
}

func TestMultiTreeTwoLevel(t *testing.T) {
	tree := []meta.MultiPartition{
		{ID: "10", Parent: ""},
		{ID: "20", Parent: "10"},
		{ID: "30", Parent: "10"},
	}
	pa := meta.Partition{ID: "Pa", MultiID: "20", Chunks: []meta.Chunk{{Min: meta.RowKey{meta.Int(0)}, Max: meta.RowKey{meta.Int(5)}}}}
	pb := meta.Partition{ID: "Pb", MultiID: "30", Chunks: []meta.Chunk{{Min: meta.RowKey{meta.Int(5)}, Max: meta.RowKey{meta.Int(10)}}}}
	pc := meta.Partition{ID: "Pc", MultiID: "10", Chunks: []meta.Chunk{{Min: meta.RowKey{meta.Int(0)}, Max: meta.RowKey{meta.Int(10)}}}}

	logical := MultiTree([]meta.Partition{pa, pb, pc}, tree)
	if len(logical) != 2 {
		t.Fatalf("expected 2 leaves, got %d", len(logical))
	}

	byLeaf := map[string]LogicalPartition{}
	for _, lp := range logical {
		byLeaf[lp.Partitions[0].MultiID] = lp
	}

	leaf20 := byLeaf["20"]
	if len(leaf20.Partitions) != 2 || leaf20.Partitions[0].ID != "Pa" || leaf20.Partitions[1].ID != "Pc" {
		t.Fatalf("unexpected leaf 20 partitions: %+v", leaf20.Partitions)
	}
	f20 := IssueFilters(leaf20)
	if f20[0].PartitionID != "Pa" || !f20[0].Filter.IsDefault() {
		t.Fatalf("expected Pa to carry the default filter, got %+v", f20[0])
	}
	if f20[1].PartitionID != "Pc" || f20[1].Filter.IsDefault() {
		t.Fatalf("expected Pc to carry the leaf's restricted range, got %+v", f20[1])
	}
	if !f20[1].Filter.Contains(meta.RowKey{meta.Int(3)}) || f20[1].Filter.Contains(meta.RowKey{meta.Int(7)}) {
		t.Fatalf("expected Pc's filter to cover [0,5), got %+v", f20[1].Filter)
	}

	leaf30 := byLeaf["30"]
	f30 := IssueFilters(leaf30)
	if f30[1].PartitionID != "Pc" || f30[1].Filter.Contains(meta.RowKey{meta.Int(3)}) {
		t.Fatalf("expected Pc's filter under leaf 30 to cover [5,10), got %+v", f30[1].Filter)
	}
}

func TestMixedRegimeIsRejected(t *testing.T) {
	ordinary := meta.Partition{ID: "p1"}
	multi := meta.Partition{ID: "p2", MultiID: "m1"}
	_, err := DetectRegime([]meta.Partition{ordinary, multi})
	if err == nil {
		t.Fatal("expected mixed regime to be rejected")
	}
	if !isMixedRegimeErr(err) {
		t.Fatalf("expected errs.MixedPartitionRegime, got %v", err)
	}
}

func isMixedRegimeErr(err error) bool {
	return err == errs.MixedPartitionRegime || err.Error() == errs.MixedPartitionRegime.Error()
}

func TestWorkerDeterminism(t *testing.T) {
	a := PickWorkerByPartitions([]string{"p1", "p2"}, 5)
	b := PickWorkerByPartitions([]string{"p1", "p2"}, 5)
	if a != b {
		t.Fatalf("expected deterministic hashing, got %d != %d", a, b)
	}
	if a < 0 || a >= 5 {
		t.Fatalf("worker ordinal out of range: %d", a)
	}
}

func TestPlanSortsByWorkerName(t *testing.T) {
	nodes := []string{"w0", "w1", "w2"}
	p1 := meta.Partition{ID: "p1"}
	out, err := Plan(nodes, [][]meta.Partition{{p1}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one worker assignment, got %d", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i-1].Worker > out[i].Worker {
			t.Fatal("expected output sorted by worker name")
		}
	}
}
