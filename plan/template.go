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
	"sort"

	"github.com/cubeql/qexec/expr"
	"github.com/cubeql/qexec/meta"
)

// Template implements clustersend.PlanBinder: it carries the
// router-side scan's fixed shape (table, projection, residual
// filters, batch size) and binds a worker's grouped partition
// filters into a Descriptor, encoded as a SerializedPlan.
type Template struct {
	Table      string
	Projection []string
	Filters    []expr.Node
	BatchSize  int
}

// WithPartitionFilters implements clustersend.PlanBinder.
func (t Template) WithPartitionFilters(filters map[string]meta.RowFilter) (meta.SerializedPlan, error) {
	d := Descriptor{
		Table:      t.Table,
		Projection: t.Projection,
		BatchSize:  t.BatchSize,
	}
	for _, f := range t.Filters {
		d.Filters = append(d.Filters, expr.ToString(f))
	}
	ids := make([]string, 0, len(filters))
	for id := range filters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		d.Partitions = append(d.Partitions, PartitionFilter{ID: id, Filter: filters[id]})
	}
	return Encode(d)
}
