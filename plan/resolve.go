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
	"github.com/cubeql/qexec/cube"
	"github.com/cubeql/qexec/errs"
	"github.com/cubeql/qexec/meta"
	"github.com/cubeql/qexec/operator"
)

// TableSource resolves a table name to the cube.Table and
// IndexSnapshot a worker should scan it against. It is supplied
// by the process hosting the worker (executor.Worker), which
// owns the locally materialized table metadata.
type TableSource interface {
	Table(name string) (cube.Table, meta.IndexSnapshot, error)
}

// Resolve decodes sp and rebuilds the physical scan it describes
// against the worker's local table metadata (§4.5 step 3: "each
// worker rebuilds its own sub-plan from the serialized template
// plus its bound partition filters").
func Resolve(sp meta.SerializedPlan, src TableSource) (operator.ExecutionPlan, error) {
	d, err := Decode(sp)
	if err != nil {
		return nil, err
	}
	table, snapshot, err := src.Table(d.Table)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]meta.Partition, len(snapshot.Partitions))
	for _, p := range snapshot.Partitions {
		byID[p.ID] = p
	}

	assigned := make([]meta.AssignedPartition, 0, len(d.Partitions))
	for _, pf := range d.Partitions {
		p, ok := byID[pf.ID]
		if !ok {
			return nil, errs.New(errs.Plan, "plan: worker has no partition "+pf.ID+" for table "+d.Table)
		}
		assigned = append(assigned, meta.AssignedPartition{
			Snapshot: meta.PartitionSnapshot{Partition: p, Filter: pf.Filter},
		})
	}

	tree, err := cube.BuildScan(table, d.Projection, d.BatchSize, nil, snapshot, assigned)
	if err != nil {
		return nil, err
	}
	return operator.NewMarker(tree, d.BatchSize), nil
}
