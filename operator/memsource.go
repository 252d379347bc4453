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
	"io"

	"github.com/apache/arrow/go/v17/arrow"
)

// MemorySource is a leaf node that replays a fixed, already
// materialized list of batches as a single output partition. It
// is used by clustersend to turn a buffered remote result into
// partition 0 of a local sub-plan (§4.5 step 4), and is also
// convenient for injecting fixture batches in tests.
type MemorySource struct {
	schema  *arrow.Schema
	records []arrow.Record
	hints   Hints
}

// NewMemorySource wraps records (all sharing schema) as a
// single-partition plan node.
func NewMemorySource(schema *arrow.Schema, records []arrow.Record, hints Hints) *MemorySource {
	return &MemorySource{schema: schema, records: records, hints: hints}
}

func (m *MemorySource) Schema() *arrow.Schema            { return m.schema }
func (m *MemorySource) OutputPartitioning() Partitioning { return Partitioning{Count: 1} }
func (m *MemorySource) Children() []ExecutionPlan        { return nil }
func (m *MemorySource) OutputHints() Hints               { return m.hints }

func (m *MemorySource) WithNewChildren(children []ExecutionPlan) (ExecutionPlan, error) {
	if err := checkChildren(0, children); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MemorySource) Execute(ctx context.Context, partition int) (RecordIter, error) {
	if partition != 0 {
		return emptyIter{}, nil
	}
	return &memIter{records: m.records}, nil
}

type memIter struct {
	records []arrow.Record
	pos     int
}

func (it *memIter) Next(ctx context.Context) (arrow.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.pos >= len(it.records) {
		return nil, io.EOF
	}
	r := it.records[it.pos]
	it.pos++
	return r, nil
}
