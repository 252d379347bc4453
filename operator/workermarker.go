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

package operator

import (
	"context"

	"github.com/apache/arrow/go/v17/arrow"
)

// Marker is a pass-through node implementing WorkerMarker: it
// demarcates where a worker's sub-plan begins and carries the
// maximum row count the worker should pack into one output
// batch (§4.6).
type Marker struct {
	child   ExecutionPlan
	maxRows int
}

// NewMarker wraps child with a worker-boundary marker reporting
// maxRows as MaxBatchRows.
func NewMarker(child ExecutionPlan, maxRows int) *Marker {
	return &Marker{child: child, maxRows: maxRows}
}

func (m *Marker) Schema() *arrow.Schema            { return m.child.Schema() }
func (m *Marker) OutputPartitioning() Partitioning { return m.child.OutputPartitioning() }
func (m *Marker) Children() []ExecutionPlan        { return []ExecutionPlan{m.child} }
func (m *Marker) OutputHints() Hints               { return m.child.OutputHints() }
func (m *Marker) MaxBatchRows() int                { return m.maxRows }

func (m *Marker) WithNewChildren(children []ExecutionPlan) (ExecutionPlan, error) {
	if err := checkChildren(1, children); err != nil {
		return nil, err
	}
	return NewMarker(children[0], m.maxRows), nil
}

func (m *Marker) Execute(ctx context.Context, partition int) (RecordIter, error) {
	return m.child.Execute(ctx, partition)
}
