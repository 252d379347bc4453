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

// Package assign implements worker assignment (§4.4, C4): given
// a set of index snapshots participating in a query's union arms
// and a multi-partition tree, it produces one logical worker
// partition per unit of assignable work, a per-partition
// RowFilter for each, and a deterministic worker ordinal.
package assign

import (
	"sort"

	"github.com/dchest/siphash"

	"github.com/cubeql/qexec/errs"
	"github.com/cubeql/qexec/meta"
)

// fixed hash keys, analogous to the teacher's Splitter.partition
// (splitter.go): arbitrary constants, stable across restarts so
// that hashing is reproducible from one process run to the next.
const (
	hashKey0 = 0x5d1ec810feedface
	hashKey1 = 0xfebed702cafebabe
)

// LogicalPartition is one unit of assignable work: the ordered
// list of meta.Partition values that must be read together
// (either one Cartesian-product combination in the Ordinary
// regime, or one leaf's ancestor chain in the Multi regime).
type LogicalPartition struct {
	Partitions []meta.Partition
}

// Regime distinguishes the two mutually exclusive assignment
// strategies of §4.4.
type Regime int

const (
	Ordinary Regime = iota
	Multi
)

// DetectRegime classifies a union arm's partitions, asserting
// the "all or none carry a multi_partition_id" invariant rather
// than guessing at mixed-regime semantics (§9's open question).
func DetectRegime(partitions []meta.Partition) (Regime, error) {
	anyMulti, anyOrdinary := false, false
	for _, p := range partitions {
		if p.MultiID != "" {
			anyMulti = true
		} else {
			anyOrdinary = true
		}
	}
	if anyMulti && anyOrdinary {
		return 0, errs.MixedPartitionRegime
	}
	if anyMulti {
		return Multi, nil
	}
	return Ordinary, nil
}

// Cartesian computes the logical worker partitions for the
// Ordinary regime: one combination per element of the Cartesian
// product of the union arms, so joined relations co-locate at
// the cost of duplicated read work.
func Cartesian(unions [][]meta.Partition) []LogicalPartition {
	if len(unions) == 0 {
		return nil
	}
	combos := []LogicalPartition{{}}
	for _, arm := range unions {
		var next []LogicalPartition
		for _, c := range combos {
			for _, p := range arm {
				parts := append(append([]meta.Partition{}, c.Partitions...), p)
				next = append(next, LogicalPartition{Partitions: parts})
			}
		}
		combos = next
	}
	return combos
}

// MultiTree computes the logical worker partitions for the Multi
// regime: one per leaf of the multi-partition tree, each carrying
// the leaf's own partitions followed by every ancestor's, walking
// up the parent chain (§4.4).
func MultiTree(partitions []meta.Partition, tree []meta.MultiPartition) []LogicalPartition {
	parentOf := make(map[string]string, len(tree))
	isParent := make(map[string]bool, len(tree))
	for _, n := range tree {
		if n.Parent != "" {
			parentOf[n.ID] = n.Parent
			isParent[n.Parent] = true
		}
	}
	byMulti := make(map[string][]meta.Partition)
	for _, p := range partitions {
		byMulti[p.MultiID] = append(byMulti[p.MultiID], p)
	}

	var leaves []string
	seen := make(map[string]bool)
	for _, n := range tree {
		if !isParent[n.ID] && !seen[n.ID] {
			seen[n.ID] = true
			leaves = append(leaves, n.ID)
		}
	}
	sort.Strings(leaves)

	out := make([]LogicalPartition, 0, len(leaves))
	for _, leaf := range leaves {
		var parts []meta.Partition
		parts = append(parts, byMulti[leaf]...)
		id := leaf
		for {
			parent, ok := parentOf[id]
			if !ok {
				break
			}
			parts = append(parts, byMulti[parent]...)
			id = parent
		}
		out = append(out, LogicalPartition{Partitions: parts})
	}
	return out
}

// AssignedFilter pairs a partition id with the RowFilter the
// worker reading it should apply.
type AssignedFilter struct {
	PartitionID string
	Filter      meta.RowFilter
}

// IssueFilters computes, for one logical worker partition, the
// per-partition RowFilter to push down (§4.4). In the Ordinary
// regime every partition is read in full. In the Multi regime
// the leaf partition (ps[0]) is read in full, and every ancestor
// is restricted to the leaf's own key range so the same rows are
// never read by two descendants.
func IssueFilters(lp LogicalPartition) []AssignedFilter {
	ps := lp.Partitions
	if len(ps) == 0 {
		return nil
	}
	if ps[0].MultiID == "" {
		out := make([]AssignedFilter, len(ps))
		for i, p := range ps {
			out[i] = AssignedFilter{PartitionID: p.ID, Filter: meta.Default()}
		}
		return out
	}

	leaf := ps[0]
	leafRange := leafKeyRange(leaf)
	out := make([]AssignedFilter, len(ps))
	for i, p := range ps {
		if p.MultiID == leaf.MultiID {
			out[i] = AssignedFilter{PartitionID: p.ID, Filter: meta.Default()}
		} else {
			out[i] = AssignedFilter{PartitionID: p.ID, Filter: meta.Of(leafRange)}
		}
	}
	return out
}

func leafKeyRange(p meta.Partition) meta.RowRange {
	if len(p.Chunks) == 0 {
		return meta.DefaultRange
	}
	min, max := p.Chunks[0].Min, p.Chunks[0].Max
	for _, c := range p.Chunks[1:] {
		if c.Min.Compare(min) < 0 {
			min = c.Min
		}
		if c.Max.Compare(max) > 0 {
			max = c.Max
		}
	}
	return meta.RowRange{Start: min, End: max}
}

// Worker deterministically hashes a key to a worker ordinal in
// [0, nodes), using a 128-bit siphash so the result is stable
// across process restarts (the teacher's own dependency, used
// the same way for content splitting in splitter.go).
func Worker(key []byte, nodes int) int {
	if nodes <= 0 {
		return 0
	}
	h := siphash.Hash(hashKey0, hashKey1, key)
	return int(h % uint64(nodes))
}

// PickWorkerByIDs implements pick_worker_by_ids: the Multi
// regime hashes the leaf's multi-partition id alone, so the same
// multi-id always routes to the same worker across queries.
func PickWorkerByIDs(multiID string, nodes int) int {
	return Worker([]byte(multiID), nodes)
}

// PickWorkerByPartitions implements pick_worker_by_partitions:
// the Ordinary regime hashes over the ordered tuple of partition
// ids assigned to one logical worker partition.
func PickWorkerByPartitions(partitionIDs []string, nodes int) int {
	var buf []byte
	for _, id := range partitionIDs {
		buf = append(buf, id...)
		buf = append(buf, 0)
	}
	return Worker(buf, nodes)
}
