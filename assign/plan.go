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
	"sort"

	"github.com/cubeql/qexec/meta"
)

// WorkerAssignment is one worker's share of a query: every
// partition filter routed to it, in partition-id order.
type WorkerAssignment struct {
	Worker  string
	Filters []AssignedFilter
}

// Plan computes the full node assignment for a query (§4.4):
// given the cluster's node list and the query's union arms'
// partitions (outer slice = union arms) plus the multi-partition
// tree, it detects the regime, builds logical worker partitions,
// issues per-partition filters, assigns each to a worker, and
// returns the result grouped by worker and sorted by worker name
// for deterministic output-partition ordering.
func Plan(nodes []string, unions [][]meta.Partition, tree []meta.MultiPartition) ([]WorkerAssignment, error) {
	var all []meta.Partition
	for _, arm := range unions {
		all = append(all, arm...)
	}
	regime, err := DetectRegime(all)
	if err != nil {
		return nil, err
	}

	var logical []LogicalPartition
	if regime == Multi {
		logical = MultiTree(all, tree)
	} else {
		logical = Cartesian(unions)
	}

	byWorker := make(map[int][]AssignedFilter)
	for _, lp := range logical {
		var worker int
		if regime == Multi {
			worker = PickWorkerByIDs(lp.Partitions[0].MultiID, len(nodes))
		} else {
			ids := make([]string, len(lp.Partitions))
			for i, p := range lp.Partitions {
				ids[i] = p.ID
			}
			worker = PickWorkerByPartitions(ids, len(nodes))
		}
		byWorker[worker] = append(byWorker[worker], IssueFilters(lp)...)
	}

	out := make([]WorkerAssignment, 0, len(byWorker))
	for w, filters := range byWorker {
		name := ""
		if w >= 0 && w < len(nodes) {
			name = nodes[w]
		}
		sort.Slice(filters, func(i, j int) bool { return filters[i].PartitionID < filters[j].PartitionID })
		out = append(out, WorkerAssignment{Worker: name, Filters: filters})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Worker < out[j].Worker })
	return out, nil
}
