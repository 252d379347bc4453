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

// Package cube implements partition reader assembly (§4.3, C3):
// BuildScan turns one cube-table scan request into the physical
// operator tree reading every assigned partition's parquet file
// and in-memory chunks, filtered to their assigned key ranges,
// merged, sorted, and deduplicated as the table declares.
//
// Grounded on the teacher's plan.Op tagged-interface-tree
// convention (plan/plan.go, plan/filter.go), generalized from a
// row-oriented ion VM to an Arrow-typed physical plan, and on
// other_examples/polarsignals-arcticdb__table.go /
// other_examples/garrensmith-frostdb__table.go for how an
// Arrow+parquet columnar store assembles per-partition scan
// nodes with projection and predicate pushdown.
package cube

import (
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"

	"github.com/cubeql/qexec/errs"
	"github.com/cubeql/qexec/operator"
)

// Table is the provided capability BuildScan operates against:
// the table's full declared schema, the ColumnarFileScan used to
// read its on-disk partition and chunk files, and the lookup for
// caller-injected in-memory chunk batches (keyed by Chunk.Path).
type Table struct {
	Schema *arrow.Schema
	Scan   operator.ColumnarFileScan
	// MemChunks resolves an in-memory chunk's Path to the batches
	// it holds. A chunk marked meta.Chunk.InMemory whose Path is
	// absent from MemChunks is an injection error (§7).
	MemChunks map[string][]arrow.Record
}

func fieldIndex(schema *arrow.Schema, name string) (int, error) {
	indices := schema.FieldIndices(name)
	switch len(indices) {
	case 0:
		return 0, errs.New(errs.Plan, fmt.Sprintf("cube: column %q not found in schema", name))
	case 1:
		return indices[0], nil
	default:
		return 0, errs.New(errs.Plan, fmt.Sprintf("cube: column %q is ambiguous in schema", name))
	}
}

func subsetSchema(schema *arrow.Schema, indices []int) *arrow.Schema {
	fields := make([]arrow.Field, len(indices))
	for i, idx := range indices {
		fields[i] = schema.Field(idx)
	}
	return arrow.NewSchema(fields, nil)
}
